// Package jobs owns the background job table: submission, status reads,
// cooperative cancellation, progress publication and reaping of stale jobs.
package jobs

import (
	"errors"
	"time"
)

// Sentinel errors for the jobs package
var (
	// ErrNotFound is returned for unknown or already-reaped job ids.
	ErrNotFound = errors.New("job not found")

	// ErrCancelled is returned by work functions that observed cancellation.
	// It records the job as cancelled, not failed.
	ErrCancelled = errors.New("job cancelled")
)

// Status is the lifecycle state of a job
type Status string

const (
	StatusPending    Status = "pending"
	StatusRunning    Status = "running"
	StatusCancelling Status = "cancelling"
	StatusCancelled  Status = "cancelled"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusTimeout    Status = "timeout"
)

// Terminal reports whether the status permits no further mutation.
// Progress and message are frozen once a job is terminal.
func (s Status) Terminal() bool {
	switch s {
	case StatusCancelled, StatusCompleted, StatusFailed, StatusTimeout:
		return true
	}
	return false
}

// Job is a point-in-time snapshot of a job record
type Job struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	Status    Status     `json:"status"`
	Progress  int        `json:"progress"`
	Message   string     `json:"message,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	StartedAt *time.Time `json:"started_at,omitempty"`
	Cancelled bool       `json:"cancelled"`
	Result    []string   `json:"result,omitempty"` // Set only on completion
}

// CancelCheck reports whether cancellation has been requested.
// Work functions poll it at their own checkpoints; cancellation is
// cooperative, never preemptive.
type CancelCheck func() bool

// ProgressFunc reports work progress as a percentage with a message
type ProgressFunc func(percent int, message string)

// WorkFunc is the unit of work a job executes. It receives its own job id,
// a cancellation check and a progress reporter. Returning ErrCancelled marks
// the job cancelled; any other error marks it failed with the error message.
type WorkFunc func(jobID string, cancelled CancelCheck, report ProgressFunc) ([]string, error)
