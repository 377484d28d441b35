package jobs

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/screener/internal/events"
)

func newTestManager() *Manager {
	return NewManager(events.NewBus(zerolog.Nop()), zerolog.Nop())
}

func waitTerminal(t *testing.T, m *Manager, jobID string) Job {
	t.Helper()

	var job Job
	require.Eventually(t, func() bool {
		var err error
		job, err = m.Status(jobID)
		require.NoError(t, err)
		return job.Status.Terminal()
	}, 2*time.Second, 5*time.Millisecond, "job never reached a terminal state")
	return job
}

func TestSubmitRunsToCompletion(t *testing.T) {
	m := newTestManager()

	var mu sync.Mutex
	var receivedID string
	jobID := m.Submit("screen", func(id string, cancelled CancelCheck, report ProgressFunc) ([]string, error) {
		mu.Lock()
		receivedID = id
		mu.Unlock()
		report(50, "halfway")
		return []string{"AAPL", "MSFT"}, nil
	})
	require.NotEmpty(t, jobID)

	job := waitTerminal(t, m, jobID)
	assert.Equal(t, StatusCompleted, job.Status)
	assert.Equal(t, 100, job.Progress)
	assert.Equal(t, []string{"AAPL", "MSFT"}, job.Result)

	// Workers receive their own id without racing the Submit return.
	mu.Lock()
	assert.Equal(t, jobID, receivedID)
	mu.Unlock()
}

func TestSubmitRecordsFailure(t *testing.T) {
	m := newTestManager()

	id := m.Submit("screen", func(_ string, _ CancelCheck, _ ProgressFunc) ([]string, error) {
		return nil, errors.New("provider unavailable")
	})

	job := waitTerminal(t, m, id)
	assert.Equal(t, StatusFailed, job.Status)
	assert.Equal(t, "provider unavailable", job.Message)
	assert.Nil(t, job.Result)
}

func TestWorkPanicBecomesFailure(t *testing.T) {
	m := newTestManager()

	id := m.Submit("screen", func(_ string, _ CancelCheck, _ ProgressFunc) ([]string, error) {
		panic("boom")
	})

	job := waitTerminal(t, m, id)
	assert.Equal(t, StatusFailed, job.Status)
	assert.Contains(t, job.Message, "panic")
}

func TestStatusUnknownJob(t *testing.T) {
	m := newTestManager()

	_, err := m.Status("nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCancelCooperative(t *testing.T) {
	m := newTestManager()

	started := make(chan struct{})
	release := make(chan struct{})

	id := m.Submit("screen", func(_ string, cancelled CancelCheck, _ ProgressFunc) ([]string, error) {
		close(started)
		<-release
		if cancelled() {
			return nil, ErrCancelled
		}
		return []string{"AAPL"}, nil
	})

	<-started
	changed, err := m.Cancel(id)
	require.NoError(t, err)
	assert.True(t, changed)

	// Between the request and the worker's next checkpoint the job reports
	// cancelling, not cancelled.
	job, err := m.Status(id)
	require.NoError(t, err)
	assert.Equal(t, StatusCancelling, job.Status)

	close(release)
	job = waitTerminal(t, m, id)
	assert.Equal(t, StatusCancelled, job.Status)
}

func TestCancelBeforeStart(t *testing.T) {
	m := newTestManager()

	var wg sync.WaitGroup
	wg.Add(1)
	id := m.Submit("screen", func(_ string, _ CancelCheck, _ ProgressFunc) ([]string, error) {
		defer wg.Done()
		// The run goroutine checks the flag before invoking work, so when
		// Cancel lands first this never executes.
		return []string{"AAPL"}, nil
	})

	// Best effort: the race between Cancel and the run goroutine is real, so
	// accept either cancelled (flag observed in time) or completed.
	_, err := m.Cancel(id)
	require.NoError(t, err)

	job := waitTerminal(t, m, id)
	assert.Contains(t, []Status{StatusCancelled, StatusCompleted}, job.Status)
	if job.Status == StatusCompleted {
		wg.Wait()
	}
}

func TestCancelTerminalIsNoOp(t *testing.T) {
	m := newTestManager()

	id := m.Submit("screen", func(_ string, _ CancelCheck, _ ProgressFunc) ([]string, error) {
		return []string{}, nil
	})
	waitTerminal(t, m, id)

	changed, err := m.Cancel(id)
	require.NoError(t, err)
	assert.False(t, changed)

	// Frozen terminal state survives the no-op.
	job, err := m.Status(id)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, job.Status)
}

func TestCancelUnknownJob(t *testing.T) {
	m := newTestManager()

	_, err := m.Cancel("nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestProgressClampedAndMonotonic(t *testing.T) {
	m := newTestManager()
	m.now = func() time.Time { return time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC) }

	started := make(chan struct{})
	release := make(chan struct{})
	id := m.Submit("screen", func(_ string, _ CancelCheck, _ ProgressFunc) ([]string, error) {
		close(started)
		<-release
		return []string{}, nil
	})
	<-started

	tests := []struct {
		name    string
		percent int
		want    int
	}{
		{"negative clamps to zero", -10, 0},
		{"normal advance", 40, 40},
		{"regression ignored", 25, 40},
		{"equal allowed", 40, 40},
		{"overflow clamps to 100", 150, 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m.ReportProgress(id, tt.percent, "")
			job, err := m.Status(id)
			require.NoError(t, err)
			assert.Equal(t, tt.want, job.Progress)
		})
	}

	close(release)
	waitTerminal(t, m, id)
}

func TestProgressIgnoredAfterTerminal(t *testing.T) {
	m := newTestManager()

	id := m.Submit("screen", func(_ string, _ CancelCheck, _ ProgressFunc) ([]string, error) {
		return nil, errors.New("nope")
	})
	waitTerminal(t, m, id)

	m.ReportProgress(id, 99, "late report")

	job, err := m.Status(id)
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, job.Status)
	assert.NotEqual(t, "late report", job.Message)
}

func TestProgressEventsThrottled(t *testing.T) {
	bus := events.NewBus(zerolog.Nop())
	m := NewManager(bus, zerolog.Nop())

	clock := time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)
	var clockMu sync.Mutex
	m.now = func() time.Time {
		clockMu.Lock()
		defer clockMu.Unlock()
		return clock
	}
	advance := func(d time.Duration) {
		clockMu.Lock()
		clock = clock.Add(d)
		clockMu.Unlock()
	}

	var mu sync.Mutex
	var got []int
	bus.Subscribe(events.JobProgress, func(e *events.Event) {
		data := e.Data.(*events.JobStatusData)
		mu.Lock()
		got = append(got, data.Progress.Percent)
		mu.Unlock()
	})

	started := make(chan struct{})
	release := make(chan struct{})
	id := m.Submit("screen", func(_ string, _ CancelCheck, _ ProgressFunc) ([]string, error) {
		close(started)
		<-release
		return []string{}, nil
	})
	<-started

	m.ReportProgress(id, 10, "")
	m.ReportProgress(id, 20, "") // same instant: throttled
	advance(progressThrottle + time.Millisecond)
	m.ReportProgress(id, 30, "")
	m.ReportProgress(id, 100, "") // 100 bypasses the throttle

	mu.Lock()
	assert.Equal(t, []int{10, 30, 100}, got)
	mu.Unlock()

	close(release)
	waitTerminal(t, m, id)
}

func TestJobsListsAll(t *testing.T) {
	m := newTestManager()

	var ids []string
	for i := 0; i < 3; i++ {
		id := m.Submit("screen", func(_ string, _ CancelCheck, _ ProgressFunc) ([]string, error) {
			return []string{}, nil
		})
		ids = append(ids, id)
	}
	for _, id := range ids {
		waitTerminal(t, m, id)
	}

	jobs := m.Jobs()
	assert.Len(t, jobs, 3)
}
