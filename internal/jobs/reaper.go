package jobs

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/screener/internal/events"
)

// ReapPolicy configures the reaper's thresholds
type ReapPolicy struct {
	// Timeout is the wall-clock budget of a running job. Enforced by the
	// reaper independent of cooperative checks, so a worker that never polls
	// its cancel check cannot occupy the table forever.
	Timeout time.Duration

	// StuckAfter flags a job whose progress reached 100 without the status
	// advancing for this long.
	StuckAfter time.Duration

	// StaleAfter flags a running job whose record has not been touched for
	// this long.
	StaleAfter time.Duration

	// Retention is how long terminal jobs stay queryable before deletion.
	Retention time.Duration
}

// DefaultReapPolicy returns the production thresholds
func DefaultReapPolicy() ReapPolicy {
	return ReapPolicy{
		Timeout:    7 * time.Minute,
		StuckAfter: 30 * time.Second,
		StaleAfter: 2 * time.Minute,
		Retention:  time.Hour,
	}
}

// Reaper periodically sweeps the job table: it force-fails zombie jobs,
// times out over-budget ones and deletes terminal jobs past retention.
// It satisfies the scheduler.Job interface.
type Reaper struct {
	manager *Manager
	policy  ReapPolicy
	log     zerolog.Logger
}

// NewReaper creates a new reaper for the given manager
func NewReaper(manager *Manager, policy ReapPolicy, log zerolog.Logger) *Reaper {
	return &Reaper{
		manager: manager,
		policy:  policy,
		log:     log.With().Str("component", "job_reaper").Logger(),
	}
}

// Name returns the scheduler job name
func (r *Reaper) Name() string {
	return "job_reaper"
}

// Run performs one sweep
func (r *Reaper) Run() error {
	reaped, deleted := r.manager.Sweep(r.policy)
	if reaped > 0 || deleted > 0 {
		r.log.Info().Int("reaped", reaped).Int("deleted", deleted).Msg("Sweep finished")
	}
	return nil
}

// Sweep applies a reap policy once against the current job table. It returns
// how many running jobs were force-transitioned and how many terminal
// records were deleted.
//
// Detection precedence: once progress has reached 100, stuck detection is
// authoritative; otherwise the wall-clock timeout wins over staleness.
func (m *Manager) Sweep(policy ReapPolicy) (reaped, deleted int) {
	now := m.now()

	m.mu.RLock()
	recs := make(map[string]*record, len(m.records))
	for id, rec := range m.records {
		recs[id] = rec
	}
	m.mu.RUnlock()

	var expired []string
	for id, rec := range recs {
		rec.mu.Lock()
		job := rec.job
		rec.mu.Unlock()

		if job.Status.Terminal() {
			if policy.Retention > 0 && now.Sub(job.UpdatedAt) > policy.Retention {
				expired = append(expired, id)
			}
			continue
		}
		if job.Status == StatusPending {
			continue
		}

		switch {
		case job.Progress == 100 && policy.StuckAfter > 0 && now.Sub(job.UpdatedAt) > policy.StuckAfter:
			m.finish(rec, StatusFailed, nil, "reaped: stalled at 100% without completing")
			m.emitReaped(rec)
			reaped++
		case policy.Timeout > 0 && job.StartedAt != nil && now.Sub(*job.StartedAt) > policy.Timeout:
			m.finish(rec, StatusTimeout, nil, "reaped: wall-clock budget exceeded")
			m.emitReaped(rec)
			reaped++
		case policy.StaleAfter > 0 && now.Sub(job.UpdatedAt) > policy.StaleAfter:
			m.finish(rec, StatusFailed, nil, "reaped: no progress observed")
			m.emitReaped(rec)
			reaped++
		}
	}

	if len(expired) > 0 {
		m.mu.Lock()
		for _, id := range expired {
			delete(m.records, id)
			deleted++
		}
		m.mu.Unlock()
	}

	return reaped, deleted
}

// emitReaped publishes a reap event alongside the terminal status event
func (m *Manager) emitReaped(rec *record) {
	if m.bus == nil {
		return
	}
	job := rec.snapshot()
	data := events.NewJobStatusData(events.JobReaped, job.ID, job.Name, string(job.Status))
	data.Error = job.Message
	m.bus.Emit(events.JobReaped, "jobs", data)
}
