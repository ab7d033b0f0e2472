package transfer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"time"
)

// DefaultTimeout bounds connecting, waiting for response headers and every
// gap between body reads.
const DefaultTimeout = 30 * time.Second

// maxTransferTime bounds a whole download, body included.
const maxTransferTime = 30 * time.Minute

const chunkSize = 32 * 1024

// HTTPFetcher downloads remote resources to local files with a single
// attempt and no retries.
type HTTPFetcher struct {
	client  *http.Client
	timeout time.Duration
}

// FetchOption configures an HTTPFetcher.
type FetchOption func(*HTTPFetcher)

// WithHTTPClient sets a custom HTTP client. It replaces the client built
// from WithTimeout.
func WithHTTPClient(c *http.Client) FetchOption {
	return func(f *HTTPFetcher) {
		f.client = c
	}
}

// WithTimeout sets the connect, response-header and read-idle timeout.
func WithTimeout(d time.Duration) FetchOption {
	return func(f *HTTPFetcher) {
		if d > 0 {
			f.timeout = d
		}
	}
}

// NewHTTPFetcher creates an HTTPFetcher.
func NewHTTPFetcher(opts ...FetchOption) *HTTPFetcher {
	f := &HTTPFetcher{timeout: DefaultTimeout}
	for _, opt := range opts {
		opt(f)
	}

	if f.client == nil {
		transport := http.DefaultTransport.(*http.Transport).Clone()
		transport.DialContext = (&net.Dialer{Timeout: f.timeout}).DialContext
		transport.TLSHandshakeTimeout = f.timeout
		transport.ResponseHeaderTimeout = f.timeout
		f.client = &http.Client{
			Transport: transport,
			Timeout:   maxTransferTime, // Videos can be large
		}
	}
	return f
}

// Fetch streams url into dest. On any failure dest is removed and an *Error
// with Op download is returned.
func (f *HTTPFetcher) Fetch(ctx context.Context, url, dest string) error {
	if err := f.fetch(ctx, url, dest); err != nil {
		_ = os.Remove(dest)
		return err
	}
	return nil
}

func (f *HTTPFetcher) fetch(ctx context.Context, url, dest string) error {
	ctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	// Fires when no bytes arrive for f.timeout; every read re-arms it.
	idle := time.AfterFunc(f.timeout, func() { cancel(ErrStalled) })
	defer idle.Stop()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return &Error{Op: OpDownload, URL: url, Err: fmt.Errorf("create request: %w", err)}
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return &Error{Op: OpDownload, URL: url, Err: f.stallCause(ctx, err)}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &Error{Op: OpDownload, URL: url, StatusCode: resp.StatusCode, Err: ErrUnexpectedStatus}
	}

	out, err := os.OpenFile(dest, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600) // #nosec G304 - dest is inside a job workspace
	if err != nil {
		return &Error{Op: OpDownload, URL: url, Err: fmt.Errorf("create %s: %w", dest, err)}
	}

	idle.Reset(f.timeout)
	body := &idleReader{r: resp.Body, timer: idle, timeout: f.timeout}
	if _, err := io.CopyBuffer(out, body, make([]byte, chunkSize)); err != nil {
		_ = out.Close()
		return &Error{Op: OpDownload, URL: url, Err: fmt.Errorf("read body: %w", f.stallCause(ctx, err))}
	}
	if err := out.Close(); err != nil {
		return &Error{Op: OpDownload, URL: url, Err: fmt.Errorf("close %s: %w", dest, err)}
	}
	return nil
}

// stallCause replaces the context error produced by the idle timer with
// ErrStalled.
func (f *HTTPFetcher) stallCause(ctx context.Context, err error) error {
	if errors.Is(context.Cause(ctx), ErrStalled) {
		return fmt.Errorf("%w (%s)", ErrStalled, f.timeout)
	}
	return err
}

// idleReader re-arms timer after every read that returned data.
type idleReader struct {
	r       io.Reader
	timer   *time.Timer
	timeout time.Duration
}

func (r *idleReader) Read(p []byte) (int, error) {
	n, err := r.r.Read(p)
	if n > 0 {
		r.timer.Reset(r.timeout)
	}
	return n, err
}
