// Package server provides the HTTP trigger for the face-swap pipeline.
// It includes handlers, middleware, routes, and DTOs separated from domain types.
package server

import (
	"time"

	"github.com/maauso/faceswap-api/internal/job"
	"github.com/maauso/faceswap-api/internal/media"
)

// ProcessRequest is the HTTP request body for running a job. Both the
// source_video_url/avatar_image_url and the video_url/avatar_url naming
// conventions are accepted.
type ProcessRequest struct {
	// RecordID identifies the job. Required for /process; generated for /jobs
	// when empty.
	RecordID string `json:"record_id"`
	// SourceVideoURL is the video whose face is replaced.
	SourceVideoURL string `json:"source_video_url"`
	// VideoURL is an alias of SourceVideoURL.
	VideoURL string `json:"video_url"`
	// AvatarImageURL is the reference face image.
	AvatarImageURL string `json:"avatar_image_url"`
	// AvatarURL is an alias of AvatarImageURL.
	AvatarURL string `json:"avatar_url"`
	// WebhookURL is notified once the job ends.
	WebhookURL string `json:"webhook_url,omitempty"`
	// Mode selects "segmented" or "direct" processing.
	Mode string `json:"mode,omitempty"`
	// Segments overrides the configured segment layout.
	Segments *media.SegmentSpec `json:"segments,omitempty"`
	// SwapOriginals also face-swaps the original segments.
	SwapOriginals *bool `json:"swap_originals,omitempty"`
}

// jobRequest is a ProcessRequest with aliases resolved, in the form the
// validator checks.
type jobRequest struct {
	RecordID   string `validate:"omitempty,max=256"`
	VideoURL   string `validate:"required,url"`
	AvatarURL  string `validate:"required,url"`
	WebhookURL string `validate:"omitempty,url"`
	Mode       string `validate:"omitempty,oneof=segmented direct"`
}

func (r ProcessRequest) normalize() jobRequest {
	return jobRequest{
		RecordID:   r.RecordID,
		VideoURL:   firstNonEmpty(r.SourceVideoURL, r.VideoURL),
		AvatarURL:  firstNonEmpty(r.AvatarImageURL, r.AvatarURL),
		WebhookURL: r.WebhookURL,
		Mode:       r.Mode,
	}
}

// Input converts the request into pipeline input.
func (r ProcessRequest) Input() job.Input {
	n := r.normalize()
	return job.Input{
		JobID:         n.RecordID,
		VideoURL:      n.VideoURL,
		AvatarURL:     n.AvatarURL,
		WebhookURL:    n.WebhookURL,
		Mode:          job.Mode(n.Mode),
		Segments:      r.Segments,
		SwapOriginals: r.SwapOriginals,
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// AcceptedResponse is the HTTP response after queueing a job.
type AcceptedResponse struct {
	Status  string `json:"status"`
	JobID   string `json:"job_id"`
	Message string `json:"message"`
}

// JobResponse is the HTTP response for getting job details.
type JobResponse struct {
	ID          string     `json:"id"`
	Mode        string     `json:"mode"`
	State       string     `json:"state"`
	Error       string     `json:"error,omitempty"`
	OutputURL   string     `json:"output_url,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

func newJobResponse(j *job.Job) JobResponse {
	return JobResponse{
		ID:          j.ID,
		Mode:        string(j.Mode),
		State:       string(j.State),
		Error:       j.Error,
		OutputURL:   j.OutputURL,
		CreatedAt:   j.CreatedAt,
		UpdatedAt:   j.UpdatedAt,
		StartedAt:   timePtr(j.StartedAt),
		CompletedAt: timePtr(j.CompletedAt),
	}
}

func timePtr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

// ErrorResponse is the standard error response format.
type ErrorResponse struct {
	// Error is the human-readable error message.
	Error string `json:"error"`
	// Code is the error code for programmatic handling.
	Code string `json:"code"`
}

// HealthResponse is the HTTP response for the health check endpoint.
type HealthResponse struct {
	Status      string `json:"status"`
	Service     string `json:"service"`
	ModelPath   string `json:"model_path"`
	ModelExists bool   `json:"model_exists"`
}

// StatusResponse reports what the worker runs on and how busy it is.
type StatusResponse struct {
	Service    string  `json:"service"`
	Version    string  `json:"version"`
	Model      string  `json:"model"`
	GPU        string  `json:"gpu"`
	CPUPercent float64 `json:"cpu_percent"`
	ActiveJobs int     `json:"active_jobs"`
}
