// Package job provides the face-swap job pipeline: the Job aggregate with its
// state machine, the Service that drives a job from download to notification,
// and an in-memory registry of live job state.
package job

import (
	"errors"
	"sync"
	"time"
)

// Mode selects the middle stages of the pipeline.
type Mode string

const (
	// ModeSegmented cuts the source into four ranges, swaps the designated
	// ranges and stitches the result back together.
	ModeSegmented Mode = "segmented"
	// ModeDirect swaps the whole source video in one pass.
	ModeDirect Mode = "direct"
)

// IsValid returns true if the mode is valid.
func (m Mode) IsValid() bool {
	return m == ModeSegmented || m == ModeDirect
}

// State represents the current stage of a Job.
type State string

const (
	// StateCreated indicates the job is registered but no stage has run.
	StateCreated State = "CREATED"
	// StateDownloading indicates the source video and avatar are being fetched.
	StateDownloading State = "DOWNLOADING"
	// StateSegmenting indicates the source is being cut into its four ranges.
	StateSegmenting State = "SEGMENTING"
	// StateSwapping indicates the model is replacing faces.
	StateSwapping State = "SWAPPING"
	// StateStitching indicates the segments are being joined back together.
	StateStitching State = "STITCHING"
	// StateUploading indicates the final video is being published.
	StateUploading State = "UPLOADING"
	// StateNotifying indicates the outcome is known and the webhook is due.
	StateNotifying State = "NOTIFYING"
	// StateSucceeded indicates the video was published and the caller notified.
	StateSucceeded State = "SUCCEEDED"
	// StateFailed indicates a stage failed; Error holds the reason.
	StateFailed State = "FAILED"
)

// ErrInvalidTransition is returned when an invalid state transition is attempted.
var ErrInvalidTransition = errors.New("invalid state transition")

// validTransitions defines which state transitions are allowed. Every
// working state may jump to NOTIFYING on failure; only NOTIFYING reaches a
// terminal state.
var validTransitions = map[State][]State{
	StateCreated:     {StateDownloading, StateNotifying},
	StateDownloading: {StateSegmenting, StateSwapping, StateNotifying},
	StateSegmenting:  {StateSwapping, StateNotifying},
	StateSwapping:    {StateStitching, StateUploading, StateNotifying},
	StateStitching:   {StateUploading, StateNotifying},
	StateUploading:   {StateNotifying},
	StateNotifying:   {StateSucceeded, StateFailed},
	StateSucceeded:   {},
	StateFailed:      {},
}

// canTransition checks if a transition from one state to another is valid.
func canTransition(from, to State) bool {
	allowed, ok := validTransitions[from]
	if !ok {
		return false
	}
	for _, s := range allowed {
		if s == to {
			return true
		}
	}
	return false
}

// Job represents one face-swap request from trigger to notification.
type Job struct {
	mu sync.RWMutex

	// ID is the caller-supplied record identifier. It names the workspace
	// and the published object.
	ID string
	// Mode is the pipeline variant.
	Mode Mode
	// State is the current stage.
	State State
	// Error contains the failure message if the job failed.
	Error string
	// VideoURL is the source video location.
	VideoURL string
	// AvatarURL is the reference face image location.
	AvatarURL string
	// WebhookURL is the callback notified on completion, if any.
	WebhookURL string
	// OutputURL is the public URL of the published result.
	OutputURL string
	// CreatedAt is when the job was created.
	CreatedAt time.Time
	// UpdatedAt is when the job was last updated.
	UpdatedAt time.Time
	// StartedAt is when processing started.
	StartedAt time.Time
	// CompletedAt is when the job reached a terminal state.
	CompletedAt time.Time
}

// NewWithID creates a new Job in CREATED state.
func NewWithID(jobID string, mode Mode) *Job {
	now := time.Now()
	return &Job{
		ID:        jobID,
		Mode:      mode,
		State:     StateCreated,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// TransitionTo attempts to change the job state to the specified state.
// Returns ErrInvalidTransition if the transition is not allowed.
func (j *Job) TransitionTo(state State) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.transitionLocked(state)
}

func (j *Job) transitionLocked(state State) error {
	if !canTransition(j.State, state) {
		return ErrInvalidTransition
	}

	j.State = state
	j.UpdatedAt = time.Now()

	switch state {
	case StateDownloading:
		j.StartedAt = j.UpdatedAt
	case StateSucceeded, StateFailed:
		j.CompletedAt = j.UpdatedAt
	}

	return nil
}

// Fail records errMsg and moves the job to NOTIFYING.
func (j *Job) Fail(errMsg string) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Error = errMsg
	return j.transitionLocked(StateNotifying)
}

// Deliver records the published URL and moves the job to NOTIFYING.
func (j *Job) Deliver(outputURL string) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.OutputURL = outputURL
	return j.transitionLocked(StateNotifying)
}

// Finish moves a notified job to SUCCEEDED, or FAILED if an error was recorded.
func (j *Job) Finish() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.Error != "" {
		return j.transitionLocked(StateFailed)
	}
	return j.transitionLocked(StateSucceeded)
}

// GetState returns the current job state (thread-safe).
func (j *Job) GetState() State {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.State
}

// IsTerminal returns true if the job is in a terminal state.
func (j *Job) IsTerminal() bool {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.State == StateSucceeded || j.State == StateFailed
}

// Clone creates a copy of the job for safe reads.
func (j *Job) Clone() *Job {
	j.mu.RLock()
	defer j.mu.RUnlock()

	return &Job{
		ID:          j.ID,
		Mode:        j.Mode,
		State:       j.State,
		Error:       j.Error,
		VideoURL:    j.VideoURL,
		AvatarURL:   j.AvatarURL,
		WebhookURL:  j.WebhookURL,
		OutputURL:   j.OutputURL,
		CreatedAt:   j.CreatedAt,
		UpdatedAt:   j.UpdatedAt,
		StartedAt:   j.StartedAt,
		CompletedAt: j.CompletedAt,
	}
}
