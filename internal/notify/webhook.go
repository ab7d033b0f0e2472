// Package notify delivers terminal job status to a caller-supplied webhook.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// Webhook status strings understood by the receiving automation.
const (
	StatusComplete = "Complete"
	StatusFailed   = "🚩 Failed"
)

// DefaultTimeout bounds a single webhook POST.
const DefaultTimeout = 10 * time.Second

// Payload is the JSON body posted to the webhook. Empty fields are sent as
// empty strings.
type Payload struct {
	Status       string `json:"status"`
	RecordID     string `json:"record_id"`
	OutputURL    string `json:"output_url"`
	ErrorMessage string `json:"error_message"`
}

// Success builds the payload of a completed job.
func Success(recordID, outputURL string) Payload {
	return Payload{Status: StatusComplete, RecordID: recordID, OutputURL: outputURL}
}

// Failure builds the payload of a failed job.
func Failure(recordID, message string) Payload {
	return Payload{Status: StatusFailed, RecordID: recordID, ErrorMessage: message}
}

// WebhookNotifier posts payloads with one attempt per call. Failures are
// logged and never returned.
type WebhookNotifier struct {
	client *http.Client
	logger *slog.Logger
}

// Option configures a WebhookNotifier.
type Option func(*WebhookNotifier)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(n *WebhookNotifier) {
		n.client = c
	}
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(n *WebhookNotifier) {
		if d > 0 {
			n.client = &http.Client{Timeout: d}
		}
	}
}

// New creates a WebhookNotifier.
func New(logger *slog.Logger, opts ...Option) *WebhookNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	n := &WebhookNotifier{
		client: &http.Client{Timeout: DefaultTimeout},
		logger: logger,
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Notify POSTs payload to url once.
func (n *WebhookNotifier) Notify(ctx context.Context, url string, payload Payload) {
	logger := n.logger.With(
		slog.String("record_id", payload.RecordID),
		slog.String("webhook_status", payload.Status),
	)

	if err := n.post(ctx, url, payload); err != nil {
		logger.Error("webhook delivery failed", slog.String("error", err.Error()))
		return
	}
	logger.Info("webhook delivered")
}

func (n *WebhookNotifier) post(ctx context.Context, url string, payload Payload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64*1024))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("unexpected status code %d", resp.StatusCode)
	}
	return nil
}
