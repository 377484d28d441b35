// Package history persists completed screen runs: the parameter fingerprint,
// strategy, terminal status and result of every finished job, for later
// inspection by the presentation layer.
package history

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/vmihailenco/msgpack/v5"
)

// Run is one recorded screen run
type Run struct {
	ID          int64     `json:"id"`
	JobID       string    `json:"job_id"`
	Strategy    string    `json:"strategy"`
	Fingerprint string    `json:"fingerprint"`
	Status      string    `json:"status"`
	Message     string    `json:"message,omitempty"`
	Candidates  int       `json:"candidates"`
	Result      []string  `json:"result,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// Store is the SQLite-backed run history
type Store struct {
	db  *sql.DB
	log zerolog.Logger
	now func() time.Time
}

// NewStore creates a new run history store
func NewStore(db *sql.DB, log zerolog.Logger) *Store {
	return &Store{
		db:  db,
		log: log.With().Str("component", "run_history").Logger(),
		now: time.Now,
	}
}

// InitSchema creates the screen_runs table if it doesn't exist
func (s *Store) InitSchema() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS screen_runs (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			job_id      TEXT NOT NULL,
			strategy    TEXT NOT NULL,
			fingerprint TEXT NOT NULL,
			status      TEXT NOT NULL,
			message     TEXT NOT NULL DEFAULT '',
			candidates  INTEGER NOT NULL DEFAULT 0,
			result      BLOB,
			created_at  INTEGER NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_screen_runs_created
			ON screen_runs (created_at DESC);
	`)
	return err
}

// Record appends a finished run
func (s *Store) Record(run Run) error {
	var blob []byte
	if run.Result != nil {
		var err error
		blob, err = msgpack.Marshal(run.Result)
		if err != nil {
			return fmt.Errorf("failed to encode run result: %w", err)
		}
	}

	createdAt := run.CreatedAt
	if createdAt.IsZero() {
		createdAt = s.now()
	}

	_, err := s.db.Exec(`
		INSERT INTO screen_runs (job_id, strategy, fingerprint, status, message, candidates, result, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, run.JobID, run.Strategy, run.Fingerprint, run.Status, run.Message, run.Candidates, blob, createdAt.Unix())
	if err != nil {
		return fmt.Errorf("failed to record run: %w", err)
	}

	s.log.Debug().
		Str("job_id", run.JobID).
		Str("strategy", run.Strategy).
		Str("status", run.Status).
		Msg("Run recorded")
	return nil
}

// Recent returns the most recent runs, newest first, without result payloads
func (s *Store) Recent(limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.db.Query(`
		SELECT id, job_id, strategy, fingerprint, status, message, candidates, created_at
		FROM screen_runs
		ORDER BY created_at DESC, id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var run Run
		var createdAt int64
		if err := rows.Scan(&run.ID, &run.JobID, &run.Strategy, &run.Fingerprint,
			&run.Status, &run.Message, &run.Candidates, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		run.CreatedAt = time.Unix(createdAt, 0).UTC()
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// Get returns one run including its result payload
func (s *Store) Get(id int64) (*Run, error) {
	var run Run
	var blob []byte
	var createdAt int64

	err := s.db.QueryRow(`
		SELECT id, job_id, strategy, fingerprint, status, message, candidates, result, created_at
		FROM screen_runs
		WHERE id = ?
	`, id).Scan(&run.ID, &run.JobID, &run.Strategy, &run.Fingerprint,
		&run.Status, &run.Message, &run.Candidates, &blob, &createdAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query run: %w", err)
	}

	run.CreatedAt = time.Unix(createdAt, 0).UTC()
	if len(blob) > 0 {
		if err := msgpack.Unmarshal(blob, &run.Result); err != nil {
			return nil, fmt.Errorf("failed to decode run result: %w", err)
		}
	}
	return &run, nil
}

// DeleteOlderThan removes runs recorded before the cutoff and returns the count
func (s *Store) DeleteOlderThan(cutoff time.Time) (int64, error) {
	res, err := s.db.Exec("DELETE FROM screen_runs WHERE created_at < ?", cutoff.Unix())
	if err != nil {
		return 0, fmt.Errorf("failed to delete old runs: %w", err)
	}
	return res.RowsAffected()
}
