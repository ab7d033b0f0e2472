package job

import (
	"errors"
	"fmt"

	"github.com/maauso/faceswap-api/internal/media"
)

// Static errors for job input validation.
var (
	// ErrMissingVideoURL is returned when the trigger carries no source video.
	ErrMissingVideoURL = errors.New("job: video URL is required")
	// ErrMissingAvatarURL is returned when the trigger carries no avatar image.
	ErrMissingAvatarURL = errors.New("job: avatar URL is required")
	// ErrInvalidMode is returned for an unknown processing mode.
	ErrInvalidMode = errors.New("job: invalid processing mode")
)

// Settings is the configuration a single run sees. It is built once from the
// process configuration and copied, with caller overrides applied, for each
// job.
type Settings struct {
	Mode     Mode
	Segments media.SegmentSpec
	// SwapOriginals also face-swaps original_1 and original_2 in segmented
	// mode.
	SwapOriginals     bool
	ModelPath         string
	DefaultWebhookURL string
}

// DefaultSettings returns direct mode with the default segment layout.
func DefaultSettings() Settings {
	return Settings{
		Mode:     ModeDirect,
		Segments: media.DefaultSegmentSpec(),
	}
}

// Input is what a trigger supplies for one job. Nil or empty optional fields
// fall back to Settings.
type Input struct {
	JobID         string
	VideoURL      string
	AvatarURL     string
	WebhookURL    string
	Mode          Mode
	Segments      *media.SegmentSpec
	SwapOriginals *bool
}

// Validate checks the fields the pipeline cannot default.
func (in Input) Validate() error {
	if in.VideoURL == "" {
		return ErrMissingVideoURL
	}
	if in.AvatarURL == "" {
		return ErrMissingAvatarURL
	}
	if in.Mode != "" && !in.Mode.IsValid() {
		return fmt.Errorf("%w: %q", ErrInvalidMode, in.Mode)
	}
	return nil
}

// merge returns a copy of s with the overrides of in applied.
func (s Settings) merge(in Input) Settings {
	out := s
	if in.Mode.IsValid() {
		out.Mode = in.Mode
	}
	if !out.Mode.IsValid() {
		out.Mode = ModeDirect
	}
	if in.Segments != nil {
		out.Segments = *in.Segments
	}
	if in.SwapOriginals != nil {
		out.SwapOriginals = *in.SwapOriginals
	}
	return out
}

// webhookURL picks the caller's callback, falling back to the configured one.
func (s Settings) webhookURL(in Input) string {
	if in.WebhookURL != "" {
		return in.WebhookURL
	}
	return s.DefaultWebhookURL
}

// ResultStatus is the terminal outcome reported to the caller.
type ResultStatus string

const (
	// ResultSuccess indicates the video was published; OutputURL is set.
	ResultSuccess ResultStatus = "success"
	// ResultFailed indicates a stage failed; Error is set.
	ResultFailed ResultStatus = "failed"
)

// Result is produced exactly once per job.
type Result struct {
	Status    ResultStatus `json:"status"`
	OutputURL string       `json:"output_url,omitempty"`
	Error     string       `json:"error,omitempty"`
}
