package screener

import (
	"github.com/aristath/screener/internal/marketdata"
)

// attributeFilter is one coarse pre-filter applied before any history is
// fetched. Filters run in a fixed order and each one is skipped entirely
// when its enable flag is absent from the context.
type attributeFilter struct {
	key   string
	apply func(ctx Context, in []marketdata.Candidate) []marketdata.Candidate
}

// coarseFilters in their fixed application order: market membership,
// product-type membership, market-cap range, board include/exclude.
var coarseFilters = []attributeFilter{
	{key: "markets", apply: filterMarkets},
	{key: "product_types", apply: filterProductTypes},
	{key: "market_cap", apply: filterMarketCap},
	{key: "boards", apply: filterBoards},
}

// filterMarkets keeps candidates whose market is in the configured set
func filterMarkets(ctx Context, in []marketdata.Candidate) []marketdata.Candidate {
	allowed := stringSet(ctx["markets"])
	if len(allowed) == 0 {
		return in
	}

	out := in[:0:0]
	for _, c := range in {
		if c.Market != "" && allowed[c.Market] {
			out = append(out, c)
		}
	}
	return out
}

// filterProductTypes keeps candidates whose product type is in the configured set
func filterProductTypes(ctx Context, in []marketdata.Candidate) []marketdata.Candidate {
	allowed := stringSet(ctx["product_types"])
	if len(allowed) == 0 {
		return in
	}

	out := in[:0:0]
	for _, c := range in {
		if c.ProductType != "" && allowed[c.ProductType] {
			out = append(out, c)
		}
	}
	return out
}

// filterMarketCap keeps candidates whose market capitalization lies within
// the configured bounds. Candidates without a known market cap are excluded,
// not erred.
func filterMarketCap(ctx Context, in []marketdata.Candidate) []marketdata.Candidate {
	min, hasMin := toFloat(ctx["market_cap_min"])
	max, hasMax := toFloat(ctx["market_cap_max"])
	if !hasMin && !hasMax {
		return in
	}

	out := in[:0:0]
	for _, c := range in {
		if c.MarketCap == nil {
			continue
		}
		if hasMin && *c.MarketCap < min {
			continue
		}
		if hasMax && *c.MarketCap > max {
			continue
		}
		out = append(out, c)
	}
	return out
}

// filterBoards keeps (or, in exclusion mode, subtracts) candidates by their
// listing board.
func filterBoards(ctx Context, in []marketdata.Candidate) []marketdata.Candidate {
	boards := stringSet(ctx["boards"])
	if len(boards) == 0 {
		return in
	}
	exclude, _ := ctx["boards_exclude"].(bool)

	out := in[:0:0]
	for _, c := range in {
		member := c.Board != "" && boards[c.Board]
		if exclude {
			if !member {
				out = append(out, c)
			}
		} else if member {
			out = append(out, c)
		}
	}
	return out
}

// stringSet coerces a context value ([]string or []any of strings, as
// produced by JSON decoding) into a membership set.
func stringSet(v any) map[string]bool {
	set := make(map[string]bool)
	switch vs := v.(type) {
	case []string:
		for _, s := range vs {
			set[s] = true
		}
	case []any:
		for _, item := range vs {
			if s, ok := item.(string); ok {
				set[s] = true
			}
		}
	}
	return set
}

// toFloat coerces a context value into a float64. JSON decoding produces
// float64 for all numbers but typed callers may pass ints.
func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}
