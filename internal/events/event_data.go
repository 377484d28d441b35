package events

import "time"

// EventData is the interface implemented by all typed event payloads.
// It ties a payload struct to the event type it is published under.
type EventData interface {
	EventType() EventType
}

// JobProgressInfo carries the progress portion of a job status event
type JobProgressInfo struct {
	Percent int    `json:"percent"`
	Message string `json:"message,omitempty"`
}

// JobStatusData contains data for job lifecycle events
// (JobQueued, JobStarted, JobProgress, JobCompleted, JobFailed, JobCancelled,
// JobTimedOut, JobReaped).
type JobStatusData struct {
	JobID     string           `json:"job_id"`
	Name      string           `json:"name"`
	Status    string           `json:"status"`
	Progress  *JobProgressInfo `json:"progress,omitempty"`
	Error     string           `json:"error,omitempty"`
	Timestamp time.Time        `json:"timestamp"`

	eventType EventType
}

// NewJobStatusData creates a job status payload for the given event type
func NewJobStatusData(eventType EventType, jobID, name, status string) *JobStatusData {
	return &JobStatusData{
		JobID:     jobID,
		Name:      name,
		Status:    status,
		Timestamp: time.Now(),
		eventType: eventType,
	}
}

// EventType returns the event type this payload was created for
func (d *JobStatusData) EventType() EventType {
	return d.eventType
}

// ScreenCachedData contains data for ScreenCached events
type ScreenCachedData struct {
	Fingerprint string `json:"fingerprint"`
	Strategy    string `json:"strategy"`
	Candidates  int    `json:"candidates"`
}

// EventType returns the event type for ScreenCachedData
func (d *ScreenCachedData) EventType() EventType {
	return ScreenCached
}

// BackupFinishedData contains data for BackupFinished events
type BackupFinishedData struct {
	Archive   string `json:"archive"`
	SizeBytes int64  `json:"size_bytes"`
}

// EventType returns the event type for BackupFinishedData
func (d *BackupFinishedData) EventType() EventType {
	return BackupFinished
}

// ErrorData contains data for ErrorOccurred events
type ErrorData struct {
	Error string `json:"error"`
}

// EventType returns the event type for ErrorData
func (d *ErrorData) EventType() EventType {
	return ErrorOccurred
}
