package screener

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/vmihailenco/msgpack/v5"
	"golang.org/x/sync/singleflight"
)

// CacheStatus is the settlement state of a cache entry
type CacheStatus string

const (
	CacheSuccess CacheStatus = "success"
	CacheFailed  CacheStatus = "failed"
)

// CacheEntry is a settled screen result keyed by fingerprint
type CacheEntry struct {
	Fingerprint string
	Strategy    string
	Status      CacheStatus
	Result      []string
	ComputedAt  time.Time
}

// Cache stores settled screen results by fingerprint and collapses
// concurrent computations for the same fingerprint into a single one.
//
// Success entries persist in SQLite with a TTL; failures are recorded only
// as transient markers so a failed run never poisons future attempts.
type Cache struct {
	db         *sql.DB
	group      singleflight.Group
	successTTL time.Duration
	failedTTL  time.Duration
	log        zerolog.Logger
	now        func() time.Time
}

// CacheConfig holds cache configuration
type CacheConfig struct {
	SuccessTTL time.Duration // How long settled successes are served (default 1h)
	FailedTTL  time.Duration // How long failure markers linger (default 5m)
}

// NewCache creates a new result cache backed by the given database
func NewCache(db *sql.DB, cfg CacheConfig, log zerolog.Logger) *Cache {
	if cfg.SuccessTTL <= 0 {
		cfg.SuccessTTL = time.Hour
	}
	if cfg.FailedTTL <= 0 {
		cfg.FailedTTL = 5 * time.Minute
	}
	return &Cache{
		db:         db,
		successTTL: cfg.SuccessTTL,
		failedTTL:  cfg.FailedTTL,
		log:        log.With().Str("component", "result_cache").Logger(),
		now:        time.Now,
	}
}

// InitSchema creates the screen_results table if it doesn't exist
func (c *Cache) InitSchema() error {
	_, err := c.db.Exec(`
		CREATE TABLE IF NOT EXISTS screen_results (
			fingerprint TEXT PRIMARY KEY,
			strategy    TEXT NOT NULL,
			status      TEXT NOT NULL,
			result      BLOB,
			computed_at INTEGER NOT NULL,
			expires_at  INTEGER NOT NULL
		)
	`)
	return err
}

// Get returns the settled entry for a fingerprint, or nil if none exists
// or the entry has expired.
func (c *Cache) Get(fingerprint string) (*CacheEntry, error) {
	var entry CacheEntry
	var result []byte
	var computedAt, expiresAt int64

	err := c.db.QueryRow(`
		SELECT fingerprint, strategy, status, result, computed_at, expires_at
		FROM screen_results
		WHERE fingerprint = ?
	`, fingerprint).Scan(&entry.Fingerprint, &entry.Strategy, &entry.Status, &result, &computedAt, &expiresAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query cache entry: %w", err)
	}

	if c.now().Unix() >= expiresAt {
		return nil, nil
	}

	entry.ComputedAt = time.Unix(computedAt, 0).UTC()
	if len(result) > 0 {
		if err := msgpack.Unmarshal(result, &entry.Result); err != nil {
			return nil, fmt.Errorf("failed to decode cached result: %w", err)
		}
	}
	return &entry, nil
}

// GetOrCompute returns the settled success for a fingerprint, computing it
// at most once across concurrent callers.
//
// Concurrent callers with the same fingerprint wait on the single in-flight
// computation; its error (if any) propagates to all of them. The returned
// bool is true when the result was served from a settled entry.
func (c *Cache) GetOrCompute(fingerprint, strategy string, compute func() ([]string, error)) ([]string, bool, error) {
	if entry, err := c.Get(fingerprint); err != nil {
		return nil, false, err
	} else if entry != nil && entry.Status == CacheSuccess {
		return entry.Result, true, nil
	}

	hit := false
	v, err, shared := c.group.Do(fingerprint, func() (any, error) {
		// A caller that queued behind the winner may find the entry settled
		// by the time it gets here.
		if entry, err := c.Get(fingerprint); err == nil && entry != nil && entry.Status == CacheSuccess {
			hit = true
			return entry.Result, nil
		}

		result, err := compute()
		if err != nil {
			// Transient marker only. The next attempt recomputes.
			if markErr := c.put(fingerprint, strategy, CacheFailed, nil, c.failedTTL); markErr != nil {
				c.log.Warn().Err(markErr).Str("fingerprint", fingerprint).Msg("Failed to record failure marker")
			}
			return nil, err
		}

		if putErr := c.put(fingerprint, strategy, CacheSuccess, result, c.successTTL); putErr != nil {
			c.log.Warn().Err(putErr).Str("fingerprint", fingerprint).Msg("Failed to persist screen result")
		}
		return result, nil
	})
	if err != nil {
		return nil, false, err
	}

	c.log.Debug().
		Str("fingerprint", fingerprint).
		Bool("shared", shared).
		Bool("cached", hit).
		Msg("Screen result resolved")

	return v.([]string), hit || shared, nil
}

// put writes a settled entry, replacing any previous one for the fingerprint
func (c *Cache) put(fingerprint, strategy string, status CacheStatus, result []string, ttl time.Duration) error {
	var blob []byte
	if result != nil {
		var err error
		blob, err = msgpack.Marshal(result)
		if err != nil {
			return fmt.Errorf("failed to encode result: %w", err)
		}
	}

	now := c.now()
	_, err := c.db.Exec(`
		INSERT INTO screen_results (fingerprint, strategy, status, result, computed_at, expires_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(fingerprint) DO UPDATE SET
			strategy    = excluded.strategy,
			status      = excluded.status,
			result      = excluded.result,
			computed_at = excluded.computed_at,
			expires_at  = excluded.expires_at
	`, fingerprint, strategy, string(status), blob, now.Unix(), now.Add(ttl).Unix())
	return err
}

// Invalidate removes the entry for a fingerprint
func (c *Cache) Invalidate(fingerprint string) error {
	_, err := c.db.Exec("DELETE FROM screen_results WHERE fingerprint = ?", fingerprint)
	return err
}

// GC deletes expired entries and returns how many were removed
func (c *Cache) GC() (int64, error) {
	res, err := c.db.Exec("DELETE FROM screen_results WHERE expires_at < ?", c.now().Unix())
	if err != nil {
		return 0, fmt.Errorf("failed to garbage-collect cache: %w", err)
	}
	return res.RowsAffected()
}
