// Package marketdata provides the candidate universe and historical price
// windows consumed by the screening pipeline. The pipeline only depends on the
// Provider interface; the SQLite-backed implementation lives alongside it.
package marketdata

import "context"

// EntityKind is the category of instrument being screened
type EntityKind string

const (
	KindStock EntityKind = "stock"
	KindETF   EntityKind = "etf"
	KindBond  EntityKind = "bond"
	KindIndex EntityKind = "index"
)

// Candidate represents a screenable instrument with its coarse attributes.
// Optional attributes use pointers (nil = not known); coarse filters treat
// missing data as exclusion, never as an error.
type Candidate struct {
	ID          string     `json:"id"` // Primary key (ISIN or exchange symbol)
	Name        string     `json:"name"`
	Kind        EntityKind `json:"kind"`
	Market      string     `json:"market,omitempty"`       // Exchange/market code (e.g. "XETR", "NYSE")
	ProductType string     `json:"product_type,omitempty"` // EQUITY, ETF, BOND, INDEX
	Board       string     `json:"board,omitempty"`        // Listing board (e.g. "main", "growth")
	MarketCap   *float64   `json:"market_cap,omitempty"`
}

// Candle is a single OHLCV point of a candidate's historical window,
// ordered oldest first.
type Candle struct {
	Date   string  `json:"date"` // YYYY-MM-DD
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
	Volume *int64  `json:"volume,omitempty"`
}

// Window is a candidate's historical candles keyed by candidate ID
type Window []Candle

// Closes returns the close prices of the window, oldest first
func (w Window) Closes() []float64 {
	closes := make([]float64, len(w))
	for i, c := range w {
		closes[i] = c.Close
	}
	return closes
}

// Volumes returns the volumes of the window, oldest first.
// Missing volumes are reported as zero.
func (w Window) Volumes() []float64 {
	vols := make([]float64, len(w))
	for i, c := range w {
		if c.Volume != nil {
			vols[i] = float64(*c.Volume)
		}
	}
	return vols
}

// Provider supplies the candidate universe and batched history windows.
// These are the only I/O-bound dependencies of the screening pipeline.
type Provider interface {
	// Universe returns all candidates of the given kind.
	Universe(ctx context.Context, kind EntityKind) ([]Candidate, error)

	// BatchWindow fetches up to limit candles for every requested candidate
	// in a single call, grouped by candidate ID. Candidates without history
	// are simply absent from the result.
	BatchWindow(ctx context.Context, kind EntityKind, ids []string, limit int) (map[string]Window, error)
}
