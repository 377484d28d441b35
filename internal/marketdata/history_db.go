package marketdata

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// HistoryDB is the SQLite-backed Provider implementation. It reads the
// candidate universe and daily price history from the screener's data
// databases.
type HistoryDB struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewHistoryDB creates a new history database accessor
func NewHistoryDB(db *sql.DB, log zerolog.Logger) *HistoryDB {
	return &HistoryDB{
		db:  db,
		log: log.With().Str("component", "history_db").Logger(),
	}
}

// compile-time interface check
var _ Provider = (*HistoryDB)(nil)

// InitSchema creates the universe and history tables if they don't exist
func (h *HistoryDB) InitSchema() error {
	_, err := h.db.Exec(`
		CREATE TABLE IF NOT EXISTS candidates (
			id           TEXT PRIMARY KEY,
			name         TEXT NOT NULL DEFAULT '',
			kind         TEXT NOT NULL,
			market       TEXT,
			product_type TEXT,
			board        TEXT,
			market_cap   REAL
		);
		CREATE TABLE IF NOT EXISTS daily_prices (
			candidate_id TEXT NOT NULL,
			date         INTEGER NOT NULL,
			open         REAL NOT NULL,
			high         REAL NOT NULL,
			low          REAL NOT NULL,
			close        REAL NOT NULL,
			volume       INTEGER,
			PRIMARY KEY (candidate_id, date)
		);
		CREATE INDEX IF NOT EXISTS idx_daily_prices_candidate
			ON daily_prices (candidate_id, date DESC);
	`)
	return err
}

// Universe returns all candidates of the given kind
func (h *HistoryDB) Universe(ctx context.Context, kind EntityKind) ([]Candidate, error) {
	rows, err := h.db.QueryContext(ctx, `
		SELECT id, name, kind, market, product_type, board, market_cap
		FROM candidates
		WHERE kind = ?
		ORDER BY id
	`, string(kind))
	if err != nil {
		return nil, fmt.Errorf("failed to query universe: %w", err)
	}
	defer rows.Close()

	var candidates []Candidate
	for rows.Next() {
		var c Candidate
		var market, productType, board sql.NullString
		var marketCap sql.NullFloat64

		if err := rows.Scan(&c.ID, &c.Name, &c.Kind, &market, &productType, &board, &marketCap); err != nil {
			return nil, fmt.Errorf("failed to scan candidate: %w", err)
		}
		c.Market = market.String
		c.ProductType = productType.String
		c.Board = board.String
		if marketCap.Valid {
			c.MarketCap = &marketCap.Float64
		}

		candidates = append(candidates, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate universe: %w", err)
	}

	h.log.Debug().
		Str("kind", string(kind)).
		Int("count", len(candidates)).
		Msg("Universe loaded")

	return candidates, nil
}

// BatchWindow fetches up to limit candles per candidate in one query.
// The query is a single IN-clause select rather than one query per candidate,
// which is what keeps screening over thousands of candidates tractable.
func (h *HistoryDB) BatchWindow(ctx context.Context, kind EntityKind, ids []string, limit int) (map[string]Window, error) {
	if len(ids) == 0 {
		return map[string]Window{}, nil
	}
	if limit <= 0 {
		limit = 250
	}

	placeholders := strings.Repeat("?,", len(ids))
	placeholders = placeholders[:len(placeholders)-1]

	args := make([]any, 0, len(ids)+1)
	for _, id := range ids {
		args = append(args, id)
	}
	args = append(args, limit)

	// Window function keeps only the newest `limit` rows per candidate.
	query := fmt.Sprintf(`
		SELECT candidate_id, date, open, high, low, close, volume
		FROM (
			SELECT candidate_id, date, open, high, low, close, volume,
			       ROW_NUMBER() OVER (PARTITION BY candidate_id ORDER BY date DESC) AS rn
			FROM daily_prices
			WHERE candidate_id IN (%s)
		)
		WHERE rn <= ?
		ORDER BY candidate_id, date ASC
	`, placeholders)

	rows, err := h.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query price windows: %w", err)
	}
	defer rows.Close()

	windows := make(map[string]Window, len(ids))
	for rows.Next() {
		var id string
		var c Candle
		var dateUnix int64
		var volume sql.NullInt64

		if err := rows.Scan(&id, &dateUnix, &c.Open, &c.High, &c.Low, &c.Close, &volume); err != nil {
			return nil, fmt.Errorf("failed to scan candle: %w", err)
		}
		c.Date = time.Unix(dateUnix, 0).UTC().Format("2006-01-02")
		if volume.Valid {
			c.Volume = &volume.Int64
		}

		windows[id] = append(windows[id], c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate price windows: %w", err)
	}

	h.log.Debug().
		Int("requested", len(ids)).
		Int("with_history", len(windows)).
		Int("limit", limit).
		Msg("Batch window fetched")

	return windows, nil
}
