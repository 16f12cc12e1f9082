// Package fingerprint dispatches accepted segment files to an external
// audio-fingerprinting service. The fingerprinting itself is opaque; this
// package owns the Job entity with its state machine, a repository port for
// tracking outcomes, and a bounded-concurrency dispatcher.
package fingerprint

import (
	"errors"
	"sync"
	"time"

	"github.com/commcut/commcut/internal/fingerprint/id"
)

// Status represents the current state of a fingerprint Job.
type Status string

const (
	// StatusQueued indicates the job is waiting for a worker slot.
	StatusQueued Status = "QUEUED"
	// StatusRunning indicates the job is being submitted to the service.
	StatusRunning Status = "RUNNING"
	// StatusCompleted indicates the service accepted the segment.
	StatusCompleted Status = "COMPLETED"
	// StatusFailed indicates submission failed after retries.
	StatusFailed Status = "FAILED"
)

// ErrInvalidTransition is returned when an invalid state transition is attempted.
var ErrInvalidTransition = errors.New("invalid state transition")

// validTransitions defines which state transitions are allowed.
var validTransitions = map[Status][]Status{
	StatusQueued:    {StatusRunning, StatusFailed},
	StatusRunning:   {StatusCompleted, StatusFailed},
	StatusCompleted: {},
	StatusFailed:    {},
}

// canTransition checks if a transition from one status to another is valid.
func canTransition(from, to Status) bool {
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

// Job tracks one segment file through fingerprint submission.
type Job struct {
	mu sync.RWMutex

	// ID is the unique identifier for this job.
	ID string
	// SegmentIndex is the sequence index of the segment being fingerprinted.
	SegmentIndex int
	// FilePath is the path to the segment file.
	FilePath string
	// Status is the current job state.
	Status Status
	// RemoteID is the identifier assigned by the fingerprint service.
	RemoteID string
	// Error contains any error message if submission failed.
	Error string
	// CreatedAt is when the job was created.
	CreatedAt time.Time
	// UpdatedAt is when the job was last updated.
	UpdatedAt time.Time
	// StartedAt is when submission started.
	StartedAt time.Time
	// CompletedAt is when submission finished.
	CompletedAt time.Time
}

// NewJob creates a new Job for a segment file with a generated ID and
// initial QUEUED status.
func NewJob(segmentIndex int, filePath string) *Job {
	now := time.Now()
	return &Job{
		ID:           id.Generate(),
		SegmentIndex: segmentIndex,
		FilePath:     filePath,
		Status:       StatusQueued,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// TransitionTo attempts to change the job status to the specified state.
// Returns ErrInvalidTransition if the transition is not allowed.
func (j *Job) TransitionTo(status Status) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if !canTransition(j.Status, status) {
		return ErrInvalidTransition
	}

	j.Status = status
	j.UpdatedAt = time.Now()

	switch status {
	case StatusRunning:
		j.StartedAt = j.UpdatedAt
	case StatusCompleted, StatusFailed:
		j.CompletedAt = j.UpdatedAt
	}

	return nil
}

// Start transitions the job from QUEUED to RUNNING.
func (j *Job) Start() error {
	return j.TransitionTo(StatusRunning)
}

// Complete transitions the job to COMPLETED with the service-assigned ID.
func (j *Job) Complete(remoteID string) error {
	j.mu.Lock()
	j.RemoteID = remoteID
	j.mu.Unlock()
	return j.TransitionTo(StatusCompleted)
}

// Fail transitions the job to FAILED state with an error message.
func (j *Job) Fail(errMsg string) error {
	j.mu.Lock()
	j.Error = errMsg
	j.mu.Unlock()
	return j.TransitionTo(StatusFailed)
}

// GetStatus returns the current job status (thread-safe).
func (j *Job) GetStatus() Status {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.Status
}

// IsTerminal returns true if the job is in a terminal state.
func (j *Job) IsTerminal() bool {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.Status == StatusCompleted || j.Status == StatusFailed
}

// Clone creates a deep copy of the job for safe reads.
func (j *Job) Clone() *Job {
	j.mu.RLock()
	defer j.mu.RUnlock()

	return &Job{
		ID:           j.ID,
		SegmentIndex: j.SegmentIndex,
		FilePath:     j.FilePath,
		Status:       j.Status,
		RemoteID:     j.RemoteID,
		Error:        j.Error,
		CreatedAt:    j.CreatedAt,
		UpdatedAt:    j.UpdatedAt,
		StartedAt:    j.StartedAt,
		CompletedAt:  j.CompletedAt,
	}
}
