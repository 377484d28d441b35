package jobs

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/aristath/screener/internal/events"
)

// progressThrottle is the minimum interval between published progress events
// per job. Terminal progress (100%) always bypasses the throttle.
const progressThrottle = 100 * time.Millisecond

// record is the internal, mutex-guarded state of one job. The executing
// worker is the only writer of status and progress; Cancel only flips the
// cancelled flag (and the running→cancelling status), so status reads never
// block on a running computation.
type record struct {
	mu       sync.Mutex
	job      Job
	lastEmit time.Time
}

// snapshot returns a copy of the job safe to hand to callers
func (r *record) snapshot() Job {
	r.mu.Lock()
	defer r.mu.Unlock()

	job := r.job
	if job.Result != nil {
		job.Result = append([]string(nil), job.Result...)
	}
	return job
}

// Manager owns the job table and executes submitted work on dedicated
// goroutines.
type Manager struct {
	records map[string]*record
	bus     *events.Bus
	log     zerolog.Logger
	now     func() time.Time
	mu      sync.RWMutex
}

// NewManager creates a new job manager
func NewManager(bus *events.Bus, log zerolog.Logger) *Manager {
	return &Manager{
		records: make(map[string]*record),
		bus:     bus,
		log:     log.With().Str("component", "job_manager").Logger(),
		now:     time.Now,
	}
}

// Submit registers a pending job and starts executing work asynchronously.
// Input validation happens before submission (see screens service); Submit
// itself has no other precondition.
func (m *Manager) Submit(name string, work WorkFunc) string {
	now := m.now()
	rec := &record{
		job: Job{
			ID:        uuid.NewString(),
			Name:      name,
			Status:    StatusPending,
			CreatedAt: now,
			UpdatedAt: now,
		},
	}

	m.mu.Lock()
	m.records[rec.job.ID] = rec
	m.mu.Unlock()

	m.emit(events.JobQueued, rec)
	m.log.Info().Str("job_id", rec.job.ID).Str("name", name).Msg("Job submitted")

	go m.run(rec, work)

	return rec.job.ID
}

// Status returns a snapshot of a job. It never blocks on running work.
func (m *Manager) Status(jobID string) (Job, error) {
	m.mu.RLock()
	rec, ok := m.records[jobID]
	m.mu.RUnlock()
	if !ok {
		return Job{}, fmt.Errorf("%w: %s", ErrNotFound, jobID)
	}
	return rec.snapshot(), nil
}

// Jobs returns snapshots of all known jobs
func (m *Manager) Jobs() []Job {
	m.mu.RLock()
	recs := make([]*record, 0, len(m.records))
	for _, rec := range m.records {
		recs = append(recs, rec)
	}
	m.mu.RUnlock()

	jobs := make([]Job, 0, len(recs))
	for _, rec := range recs {
		jobs = append(jobs, rec.snapshot())
	}
	return jobs
}

// Cancel requests cooperative cancellation. It is idempotent; cancelling a
// terminal job is a no-op. The returned bool is false when the job was
// already terminal. The running work must observe cancellation itself, so
// callers poll Status to learn the outcome.
func (m *Manager) Cancel(jobID string) (bool, error) {
	m.mu.RLock()
	rec, ok := m.records[jobID]
	m.mu.RUnlock()
	if !ok {
		return false, fmt.Errorf("%w: %s", ErrNotFound, jobID)
	}

	rec.mu.Lock()
	if rec.job.Status.Terminal() {
		rec.mu.Unlock()
		return false, nil
	}
	rec.job.Cancelled = true
	if rec.job.Status == StatusRunning {
		rec.job.Status = StatusCancelling
	}
	rec.job.UpdatedAt = m.now()
	rec.mu.Unlock()

	m.log.Info().Str("job_id", jobID).Msg("Cancellation requested")
	return true, nil
}

// ReportProgress updates a job's progress, clamped to [0,100] and never
// decreasing, then publishes a throttled progress event. Invoked only by
// the executing worker; terminal jobs ignore late reports.
func (m *Manager) ReportProgress(jobID string, percent int, message string) {
	m.mu.RLock()
	rec, ok := m.records[jobID]
	m.mu.RUnlock()
	if !ok {
		return
	}

	rec.mu.Lock()
	if rec.job.Status.Terminal() {
		rec.mu.Unlock()
		return
	}
	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}
	if percent < rec.job.Progress {
		percent = rec.job.Progress
	}
	rec.job.Progress = percent
	if message != "" {
		rec.job.Message = message
	}
	rec.job.UpdatedAt = m.now()

	// Throttle intermediate reports; 100% always goes out.
	now := m.now()
	throttled := percent != 100 && now.Sub(rec.lastEmit) < progressThrottle
	if !throttled {
		rec.lastEmit = now
	}
	rec.mu.Unlock()

	if !throttled {
		m.emit(events.JobProgress, rec)
	}
}

// run executes the work function and records the terminal outcome
func (m *Manager) run(rec *record, work WorkFunc) {
	defer func() {
		if r := recover(); r != nil {
			m.finish(rec, StatusFailed, nil, fmt.Sprintf("panic: %v", r))
			m.log.Error().Str("job_id", rec.job.ID).Interface("panic", r).Msg("Job panicked")
		}
	}()

	// Cancelled while still pending: never starts.
	rec.mu.Lock()
	if rec.job.Cancelled {
		rec.mu.Unlock()
		m.finish(rec, StatusCancelled, nil, "cancelled before start")
		return
	}
	started := m.now()
	rec.job.Status = StatusRunning
	rec.job.StartedAt = &started
	rec.job.UpdatedAt = started
	rec.mu.Unlock()

	m.emit(events.JobStarted, rec)

	cancelled := func() bool {
		rec.mu.Lock()
		defer rec.mu.Unlock()
		return rec.job.Cancelled
	}
	report := func(percent int, message string) {
		m.ReportProgress(rec.job.ID, percent, message)
	}

	result, err := work(rec.job.ID, cancelled, report)
	switch {
	case err == nil:
		m.finish(rec, StatusCompleted, result, "")
	case errors.Is(err, ErrCancelled):
		m.finish(rec, StatusCancelled, nil, "cancelled")
	default:
		m.finish(rec, StatusFailed, nil, err.Error())
	}
}

// finish records a terminal state exactly once
func (m *Manager) finish(rec *record, status Status, result []string, message string) {
	rec.mu.Lock()
	if rec.job.Status.Terminal() {
		rec.mu.Unlock()
		return
	}
	rec.job.Status = status
	if status == StatusCompleted {
		rec.job.Progress = 100
		rec.job.Result = result
	}
	if message != "" {
		rec.job.Message = message
	}
	rec.job.UpdatedAt = m.now()
	rec.mu.Unlock()

	switch status {
	case StatusCompleted:
		m.emit(events.JobCompleted, rec)
	case StatusCancelled:
		m.emit(events.JobCancelled, rec)
	case StatusTimeout:
		m.emit(events.JobTimedOut, rec)
	default:
		m.emit(events.JobFailed, rec)
	}

	job := rec.snapshot()
	m.log.Info().
		Str("job_id", job.ID).
		Str("status", string(job.Status)).
		Str("message", job.Message).
		Msg("Job finished")
}

// emit publishes a job status event to the bus
func (m *Manager) emit(eventType events.EventType, rec *record) {
	if m.bus == nil {
		return
	}

	job := rec.snapshot()
	data := events.NewJobStatusData(eventType, job.ID, job.Name, string(job.Status))
	data.Progress = &events.JobProgressInfo{Percent: job.Progress, Message: job.Message}
	if job.Status == StatusFailed {
		data.Error = job.Message
	}
	m.bus.Emit(eventType, "jobs", data)
}
