package conditions

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/screener/internal/marketdata"
	"github.com/aristath/screener/internal/screener"
)

// makeWindow builds a window of daily candles from close prices, all with
// the given volume.
func makeWindow(volume int64, closes ...float64) marketdata.Window {
	start := time.Date(2025, 10, 1, 0, 0, 0, 0, time.UTC)
	w := make(marketdata.Window, len(closes))
	for i, price := range closes {
		vol := volume
		w[i] = marketdata.Candle{
			Date:   start.AddDate(0, 0, i).Format("2006-01-02"),
			Open:   price,
			High:   price,
			Low:    price,
			Close:  price,
			Volume: &vol,
		}
	}
	return w
}

// flatWindow builds n candles at a constant price
func flatWindow(n int, price float64, volume int64) marketdata.Window {
	closes := make([]float64, n)
	for i := range closes {
		closes[i] = price
	}
	return makeWindow(volume, closes...)
}

// trendingWindow builds n candles rising (or falling) by step per day
func trendingWindow(n int, start, step float64, volume int64) marketdata.Window {
	closes := make([]float64, n)
	for i := range closes {
		closes[i] = start + float64(i)*step
	}
	return makeWindow(volume, closes...)
}

func evaluate(t *testing.T, cond *screener.Condition, window marketdata.Window, params map[string]any) screener.Decision {
	t.Helper()

	d, err := cond.Evaluate(marketdata.Candidate{ID: "X", Kind: marketdata.KindStock}, window, cond.ResolveParams(params))
	require.NoError(t, err)
	return d
}

func TestRegisterBuiltins(t *testing.T) {
	registry := screener.NewRegistry()
	RegisterBuiltins(registry)

	assert.Equal(t, []string{"rsi", "trend", "volatility", "volume"}, registry.Keys())
}

func TestRSICondition(t *testing.T) {
	cond := RSI()

	t.Run("insufficient history excludes", func(t *testing.T) {
		d := evaluate(t, cond, flatWindow(10, 100, 1e6), map[string]any{"rsi_period": 14})
		assert.Equal(t, screener.Exclude, d)
	})

	t.Run("strong uptrend fails an oversold band", func(t *testing.T) {
		// RSI of a monotonically rising series approaches 100.
		d := evaluate(t, cond, trendingWindow(40, 100, 1, 1e6), map[string]any{
			"rsi_period": 14,
			"rsi_max":    30.0,
		})
		assert.Equal(t, screener.Exclude, d)
	})

	t.Run("strong downtrend passes an oversold band", func(t *testing.T) {
		d := evaluate(t, cond, trendingWindow(40, 100, -1, 1e6), map[string]any{
			"rsi_period": 14,
			"rsi_max":    30.0,
		})
		assert.Equal(t, screener.Include, d)
	})

	t.Run("default band accepts any computable rsi", func(t *testing.T) {
		d := evaluate(t, cond, trendingWindow(40, 100, 1, 1e6), nil)
		assert.Equal(t, screener.Include, d)
	})
}

func TestTrendCondition(t *testing.T) {
	cond := Trend()

	t.Run("insufficient history excludes", func(t *testing.T) {
		d := evaluate(t, cond, flatWindow(20, 100, 1e6), map[string]any{"trend_period": 50})
		assert.Equal(t, screener.Exclude, d)
	})

	t.Run("price above rising average", func(t *testing.T) {
		d := evaluate(t, cond, trendingWindow(60, 100, 1, 1e6), map[string]any{
			"trend_period": 20,
			"trend_ma":     "sma",
		})
		assert.Equal(t, screener.Include, d)
	})

	t.Run("price below falling average with direction below", func(t *testing.T) {
		d := evaluate(t, cond, trendingWindow(60, 200, -1, 1e6), map[string]any{
			"trend_period":    20,
			"trend_ma":        "sma",
			"trend_direction": "below",
		})
		assert.Equal(t, screener.Include, d)
	})

	t.Run("direction mismatch excludes", func(t *testing.T) {
		d := evaluate(t, cond, trendingWindow(60, 100, 1, 1e6), map[string]any{
			"trend_period":    20,
			"trend_direction": "below",
		})
		assert.Equal(t, screener.Exclude, d)
	})
}

func TestVolumeCondition(t *testing.T) {
	cond := Volume()

	tests := []struct {
		name   string
		window marketdata.Window
		params map[string]any
		want   screener.Decision
	}{
		{
			name:   "average above floor",
			window: flatWindow(30, 100, 2e6),
			params: map[string]any{"volume_period": 20, "volume_min": 1e6},
			want:   screener.Include,
		},
		{
			name:   "average below floor",
			window: flatWindow(30, 100, 5e5),
			params: map[string]any{"volume_period": 20, "volume_min": 1e6},
			want:   screener.Exclude,
		},
		{
			name:   "insufficient history",
			window: flatWindow(10, 100, 2e6),
			params: map[string]any{"volume_period": 20},
			want:   screener.Exclude,
		},
		{
			name:   "json float period accepted",
			window: flatWindow(30, 100, 2e6),
			params: map[string]any{"volume_period": 20.0, "volume_min": 1e6},
			want:   screener.Include,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, evaluate(t, cond, tt.window, tt.params))
		})
	}
}

func TestVolatilityCondition(t *testing.T) {
	cond := Volatility()

	t.Run("flat series has zero volatility", func(t *testing.T) {
		d := evaluate(t, cond, flatWindow(70, 100, 1e6), map[string]any{
			"volatility_period": 60,
			"volatility_max":    0.10,
		})
		assert.Equal(t, screener.Include, d)
	})

	t.Run("flat series fails a minimum", func(t *testing.T) {
		d := evaluate(t, cond, flatWindow(70, 100, 1e6), map[string]any{
			"volatility_period": 60,
			"volatility_min":    0.05,
		})
		assert.Equal(t, screener.Exclude, d)
	})

	t.Run("alternating series exceeds a tight band", func(t *testing.T) {
		closes := make([]float64, 70)
		for i := range closes {
			if i%2 == 0 {
				closes[i] = 100
			} else {
				closes[i] = 110
			}
		}
		d := evaluate(t, cond, makeWindow(1e6, closes...), map[string]any{
			"volatility_period": 60,
			"volatility_max":    0.20,
		})
		assert.Equal(t, screener.Exclude, d)
	})

	t.Run("insufficient history excludes", func(t *testing.T) {
		d := evaluate(t, cond, flatWindow(30, 100, 1e6), map[string]any{"volatility_period": 60})
		assert.Equal(t, screener.Exclude, d)
	})

	t.Run("zero close excludes", func(t *testing.T) {
		closes := make([]float64, 70)
		for i := range closes {
			closes[i] = 100
		}
		closes[40] = 0
		d := evaluate(t, cond, makeWindow(1e6, closes...), map[string]any{"volatility_period": 60})
		assert.Equal(t, screener.Exclude, d)
	})
}
