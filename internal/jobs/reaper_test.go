package jobs

import (
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/screener/internal/events"
)

// reaperClock is a manually advanced clock shared by a manager under test
type reaperClock struct {
	mu  sync.Mutex
	now time.Time
}

func newReaperClock() *reaperClock {
	return &reaperClock{now: time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)}
}

func (c *reaperClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *reaperClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// startBlockedJob submits work that parks until release is closed and waits
// for it to be running.
func startBlockedJob(t *testing.T, m *Manager) (id string, release chan struct{}) {
	t.Helper()

	started := make(chan struct{})
	release = make(chan struct{})
	id = m.Submit("screen", func(_ string, _ CancelCheck, _ ProgressFunc) ([]string, error) {
		close(started)
		<-release
		return []string{}, nil
	})
	<-started
	require.Eventually(t, func() bool {
		job, err := m.Status(id)
		require.NoError(t, err)
		return job.Status == StatusRunning
	}, 2*time.Second, 5*time.Millisecond)
	return id, release
}

func TestSweepTimesOutOverBudgetJob(t *testing.T) {
	clock := newReaperClock()
	m := newTestManager()
	m.now = clock.Now

	id, release := startBlockedJob(t, m)
	defer close(release)

	// Staleness disabled so only the wall-clock budget is in play.
	policy := DefaultReapPolicy()
	policy.StaleAfter = 0

	// Inside budget: untouched.
	clock.Advance(policy.Timeout - time.Second)
	reaped, _ := m.Sweep(policy)
	assert.Equal(t, 0, reaped)

	clock.Advance(2 * time.Second)
	reaped, _ = m.Sweep(policy)
	assert.Equal(t, 1, reaped)

	job, err := m.Status(id)
	require.NoError(t, err)
	assert.Equal(t, StatusTimeout, job.Status)
	assert.Contains(t, job.Message, "budget")
}

func TestSweepFailsJobStuckAtFullProgress(t *testing.T) {
	clock := newReaperClock()
	m := newTestManager()
	m.now = clock.Now

	id, release := startBlockedJob(t, m)
	defer close(release)

	m.ReportProgress(id, 100, "finalizing")

	policy := DefaultReapPolicy()
	clock.Advance(policy.StuckAfter + time.Second)

	reaped, _ := m.Sweep(policy)
	assert.Equal(t, 1, reaped)

	job, err := m.Status(id)
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, job.Status)
	assert.Contains(t, job.Message, "stalled at 100%")
}

// Once progress has hit 100 the stuck rule wins even when the job is also
// past its wall-clock budget.
func TestSweepStuckTakesPrecedenceOverTimeout(t *testing.T) {
	clock := newReaperClock()
	m := newTestManager()
	m.now = clock.Now

	id, release := startBlockedJob(t, m)
	defer close(release)

	m.ReportProgress(id, 100, "finalizing")

	policy := DefaultReapPolicy()
	clock.Advance(policy.Timeout + time.Minute)

	reaped, _ := m.Sweep(policy)
	assert.Equal(t, 1, reaped)

	job, err := m.Status(id)
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, job.Status)
	assert.Contains(t, job.Message, "stalled at 100%")
}

func TestSweepFailsStaleJob(t *testing.T) {
	clock := newReaperClock()
	m := newTestManager()
	m.now = clock.Now

	id, release := startBlockedJob(t, m)
	defer close(release)

	m.ReportProgress(id, 40, "screening")

	policy := DefaultReapPolicy()
	clock.Advance(policy.StaleAfter + time.Second)

	reaped, _ := m.Sweep(policy)
	assert.Equal(t, 1, reaped)

	job, err := m.Status(id)
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, job.Status)
	assert.Contains(t, job.Message, "no progress")
}

func TestSweepKeepsHealthyJob(t *testing.T) {
	clock := newReaperClock()
	m := newTestManager()
	m.now = clock.Now

	id, release := startBlockedJob(t, m)
	defer close(release)

	policy := DefaultReapPolicy()

	// A job that keeps reporting stays alive past the stale threshold.
	clock.Advance(policy.StaleAfter - time.Second)
	m.ReportProgress(id, 30, "screening")
	clock.Advance(policy.StaleAfter - time.Second)

	reaped, _ := m.Sweep(policy)
	assert.Equal(t, 0, reaped)

	job, err := m.Status(id)
	require.NoError(t, err)
	assert.Equal(t, StatusRunning, job.Status)
}

func TestSweepSkipsPendingJobs(t *testing.T) {
	clock := newReaperClock()
	m := newTestManager()
	m.now = clock.Now

	// Build a pending record directly; a submitted job would start running.
	rec := &record{job: Job{
		ID:        "pending-1",
		Name:      "screen",
		Status:    StatusPending,
		CreatedAt: clock.Now(),
		UpdatedAt: clock.Now(),
	}}
	m.records[rec.job.ID] = rec

	clock.Advance(time.Hour)
	reaped, deleted := m.Sweep(DefaultReapPolicy())
	assert.Equal(t, 0, reaped)
	assert.Equal(t, 0, deleted)
}

func TestSweepDeletesTerminalPastRetention(t *testing.T) {
	clock := newReaperClock()
	m := newTestManager()
	m.now = clock.Now

	id := m.Submit("screen", func(_ string, _ CancelCheck, _ ProgressFunc) ([]string, error) {
		return []string{}, nil
	})
	waitTerminal(t, m, id)

	policy := DefaultReapPolicy()

	clock.Advance(policy.Retention - time.Minute)
	_, deleted := m.Sweep(policy)
	assert.Equal(t, 0, deleted)

	clock.Advance(2 * time.Minute)
	_, deleted = m.Sweep(policy)
	assert.Equal(t, 1, deleted)

	_, err := m.Status(id)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSweepEmitsReapEvent(t *testing.T) {
	bus := events.NewBus(zerolog.Nop())
	clock := newReaperClock()
	m := NewManager(bus, zerolog.Nop())
	m.now = clock.Now

	var mu sync.Mutex
	var reapedIDs []string
	bus.Subscribe(events.JobReaped, func(e *events.Event) {
		data := e.Data.(*events.JobStatusData)
		mu.Lock()
		reapedIDs = append(reapedIDs, data.JobID)
		mu.Unlock()
	})

	id, release := startBlockedJob(t, m)
	defer close(release)

	clock.Advance(DefaultReapPolicy().Timeout + time.Second)
	m.Sweep(DefaultReapPolicy())

	mu.Lock()
	assert.Equal(t, []string{id}, reapedIDs)
	mu.Unlock()
}

func TestReaperRun(t *testing.T) {
	clock := newReaperClock()
	m := newTestManager()
	m.now = clock.Now

	_, release := startBlockedJob(t, m)
	defer close(release)

	r := NewReaper(m, DefaultReapPolicy(), zerolog.Nop())
	assert.Equal(t, "job_reaper", r.Name())

	clock.Advance(DefaultReapPolicy().Timeout + time.Second)
	require.NoError(t, r.Run())

	jobs := m.Jobs()
	require.Len(t, jobs, 1)
	assert.Equal(t, StatusTimeout, jobs[0].Status)
}
