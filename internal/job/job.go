// Package job provides the Job aggregate that tracks a logo animation
// render from submission to its final state, plus repository interfaces
// for keeping jobs around while their session is alive.
package job

import (
	"errors"
	"sync"
	"time"

	"github.com/maauso/logo-animator-api/internal/job/id"
)

// Status represents the current state of a Job.
type Status string

const (
	// StatusInQueue indicates the job was accepted but not yet submitted.
	StatusInQueue Status = "IN_QUEUE"
	// StatusRunning indicates the render was submitted and is being polled.
	StatusRunning Status = "RUNNING"
	// StatusCompleted indicates the video was downloaded and stored.
	StatusCompleted Status = "COMPLETED"
	// StatusFailed indicates the render or download failed.
	StatusFailed Status = "FAILED"
	// StatusCancelled indicates the render was cancelled by the user or shutdown.
	StatusCancelled Status = "CANCELLED"
	// StatusTimedOut indicates polling exceeded its time or attempt bound.
	StatusTimedOut Status = "TIMED_OUT"
)

// ErrInvalidTransition is returned when an invalid state transition is attempted.
var ErrInvalidTransition = errors.New("invalid state transition")

// validTransitions defines which state transitions are allowed.
var validTransitions = map[Status][]Status{
	StatusInQueue:   {StatusRunning, StatusCancelled, StatusTimedOut},
	StatusRunning:   {StatusCompleted, StatusFailed, StatusCancelled, StatusTimedOut},
	StatusCompleted: {},
	StatusFailed:    {},
	StatusCancelled: {},
	StatusTimedOut:  {},
}

// canTransition checks if a transition from one status to another is valid.
func canTransition(from, to Status) bool {
	for _, s := range validTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Job tracks one animation render.
type Job struct {
	mu sync.RWMutex

	// ID is the unique identifier for this job.
	ID string
	// SessionID is the session that requested the render.
	SessionID string
	// Status is the current job state.
	Status Status
	// OperationName is the remote operation handle, set after submission.
	OperationName string
	// Prompt is the animation prompt sent to the video model.
	Prompt string
	// AspectRatio is "16:9" or "9:16".
	AspectRatio string
	// Polls is the number of status queries issued so far.
	Polls int
	// Error contains the failure reason if the job failed or timed out.
	Error string
	// VideoPath is the local path of the stored video.
	VideoPath string
	// VideoURL is the S3 URL if the video was published.
	VideoURL string
	// PushToS3 indicates whether the video should be published to S3.
	PushToS3 bool
	// CreatedAt is when the job was created.
	CreatedAt time.Time
	// UpdatedAt is when the job was last updated.
	UpdatedAt time.Time
	// StartedAt is when the render was submitted.
	StartedAt time.Time
	// CompletedAt is when the job reached a terminal state.
	CompletedAt time.Time
}

// New creates a new Job for a session with a generated ID and initial IN_QUEUE status.
func New(sessionID string) *Job {
	return NewWithID(id.Generate(), sessionID)
}

// NewWithID creates a new Job with the specified ID and initial IN_QUEUE status.
func NewWithID(jobID, sessionID string) *Job {
	now := time.Now()
	return &Job{
		ID:        jobID,
		SessionID: sessionID,
		Status:    StatusInQueue,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// TransitionTo attempts to change the job status to the specified state.
// Returns ErrInvalidTransition if the transition is not allowed.
func (j *Job) TransitionTo(status Status) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.transitionLocked(status)
}

func (j *Job) transitionLocked(status Status) error {
	if !canTransition(j.Status, status) {
		return ErrInvalidTransition
	}

	j.Status = status
	j.UpdatedAt = time.Now()

	switch status {
	case StatusRunning:
		j.StartedAt = j.UpdatedAt
	case StatusCompleted, StatusFailed, StatusCancelled, StatusTimedOut:
		j.CompletedAt = j.UpdatedAt
	}

	return nil
}

// Start transitions the job from IN_QUEUE to RUNNING.
func (j *Job) Start() error {
	return j.TransitionTo(StatusRunning)
}

// Complete transitions the job to COMPLETED state.
func (j *Job) Complete() error {
	return j.TransitionTo(StatusCompleted)
}

// Fail transitions the job to FAILED state with an error message.
// The message is only recorded when the transition is allowed.
func (j *Job) Fail(errMsg string) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if err := j.transitionLocked(StatusFailed); err != nil {
		return err
	}
	j.Error = errMsg
	return nil
}

// Cancel transitions the job to CANCELLED state.
func (j *Job) Cancel() error {
	return j.TransitionTo(StatusCancelled)
}

// Timeout transitions the job to TIMED_OUT state with a reason.
func (j *Job) Timeout(reason string) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if err := j.transitionLocked(StatusTimedOut); err != nil {
		return err
	}
	j.Error = reason
	return nil
}

// GetStatus returns the current job status (thread-safe).
func (j *Job) GetStatus() Status {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.Status
}

// SetOperation records the remote operation handle.
func (j *Job) SetOperation(name string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.OperationName = name
	j.UpdatedAt = time.Now()
}

// RecordPoll records the number of status queries issued so far.
func (j *Job) RecordPoll(attempt int) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if attempt > j.Polls {
		j.Polls = attempt
	}
	j.UpdatedAt = time.Now()
}

// SetOutput sets the output video path and optional S3 URL.
func (j *Job) SetOutput(videoPath, videoURL string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.VideoPath = videoPath
	j.VideoURL = videoURL
	j.UpdatedAt = time.Now()
}

// ClearOutput clears the output video path and URL.
// This is used when the session releases the video.
func (j *Job) ClearOutput() {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.VideoPath = ""
	j.VideoURL = ""
	j.UpdatedAt = time.Now()
}

// IsTerminal returns true if the job is in a terminal state.
func (j *Job) IsTerminal() bool {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.Status == StatusCompleted ||
		j.Status == StatusFailed ||
		j.Status == StatusCancelled ||
		j.Status == StatusTimedOut
}

// Clone creates a copy of the job for safe reads.
func (j *Job) Clone() *Job {
	j.mu.RLock()
	defer j.mu.RUnlock()

	return &Job{
		ID:            j.ID,
		SessionID:     j.SessionID,
		Status:        j.Status,
		OperationName: j.OperationName,
		Prompt:        j.Prompt,
		AspectRatio:   j.AspectRatio,
		Polls:         j.Polls,
		Error:         j.Error,
		VideoPath:     j.VideoPath,
		VideoURL:      j.VideoURL,
		PushToS3:      j.PushToS3,
		CreatedAt:     j.CreatedAt,
		UpdatedAt:     j.UpdatedAt,
		StartedAt:     j.StartedAt,
		CompletedAt:   j.CompletedAt,
	}
}
