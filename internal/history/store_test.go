package history

import (
	"database/sql"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	s := NewStore(db, zerolog.Nop())
	require.NoError(t, s.InitSchema())
	return s
}

func TestRecordAndGet(t *testing.T) {
	s := newTestStore(t)

	require.NoError(t, s.Record(Run{
		JobID:       "j-1",
		Strategy:    "daily_screen",
		Fingerprint: "fp-1",
		Status:      "completed",
		Candidates:  2,
		Result:      []string{"AAPL", "MSFT"},
	}))

	runs, err := s.Recent(10)
	require.NoError(t, err)
	require.Len(t, runs, 1)

	got, err := s.Get(runs[0].ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "j-1", got.JobID)
	assert.Equal(t, "daily_screen", got.Strategy)
	assert.Equal(t, "completed", got.Status)
	assert.Equal(t, []string{"AAPL", "MSFT"}, got.Result)
	assert.False(t, got.CreatedAt.IsZero())
}

func TestRecordWithoutResult(t *testing.T) {
	s := newTestStore(t)

	require.NoError(t, s.Record(Run{
		JobID:       "j-2",
		Strategy:    "daily_screen",
		Fingerprint: "fp-2",
		Status:      "failed",
		Message:     "provider unavailable",
	}))

	runs, err := s.Recent(10)
	require.NoError(t, err)
	require.Len(t, runs, 1)

	got, err := s.Get(runs[0].ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "provider unavailable", got.Message)
	assert.Nil(t, got.Result)
}

func TestRecentOrdersNewestFirst(t *testing.T) {
	s := newTestStore(t)

	clock := time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return clock }

	for i, jobID := range []string{"j-1", "j-2", "j-3"} {
		clock = clock.Add(time.Minute)
		require.NoError(t, s.Record(Run{
			JobID:       jobID,
			Strategy:    "daily_screen",
			Fingerprint: "fp",
			Status:      "completed",
			Candidates:  i,
		}))
	}

	runs, err := s.Recent(2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "j-3", runs[0].JobID)
	assert.Equal(t, "j-2", runs[1].JobID)

	// Recent never carries the payload.
	assert.Nil(t, runs[0].Result)
}

func TestGetUnknownRun(t *testing.T) {
	s := newTestStore(t)

	got, err := s.Get(42)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestDeleteOlderThan(t *testing.T) {
	s := newTestStore(t)

	clock := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return clock }

	require.NoError(t, s.Record(Run{JobID: "old", Strategy: "s", Fingerprint: "fp", Status: "completed"}))

	clock = clock.Add(40 * 24 * time.Hour)
	require.NoError(t, s.Record(Run{JobID: "new", Strategy: "s", Fingerprint: "fp", Status: "completed"}))

	deleted, err := s.DeleteOlderThan(clock.Add(-30 * 24 * time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	runs, err := s.Recent(10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "new", runs[0].JobID)
}
