package conditions

import (
	"math"

	"github.com/markcheno/go-talib"

	"github.com/aristath/screener/internal/marketdata"
	"github.com/aristath/screener/internal/screener"
)

// Trend keeps candidates trading above (or below) their moving average.
// The direction parameter selects the comparison: "above" (default) or
// "below". Insufficient history excludes the candidate.
func Trend() *screener.Condition {
	return &screener.Condition{
		Key:   "trend",
		Label: "Price vs moving average",
		Params: map[string]screener.ParamSpec{
			"trend_period":    {Type: screener.ParamInt, Default: 200},
			"trend_ma":        {Type: screener.ParamString, Default: "ema"},
			"trend_direction": {Type: screener.ParamString, Default: "above"},
		},
		Evaluate: func(c marketdata.Candidate, window marketdata.Window, params map[string]any) (screener.Decision, error) {
			period := intParam(params, "trend_period", 200)
			maKind := stringParam(params, "trend_ma", "ema")
			direction := stringParam(params, "trend_direction", "above")

			closes := window.Closes()
			if len(closes) < period {
				return screener.Exclude, nil
			}

			var values []float64
			if maKind == "sma" {
				values = talib.Sma(closes, period)
			} else {
				values = talib.Ema(closes, period)
			}

			ma := values[len(values)-1]
			price := closes[len(closes)-1]
			if math.IsNaN(ma) {
				return screener.Exclude, nil
			}

			if direction == "below" {
				if price < ma {
					return screener.Include, nil
				}
				return screener.Exclude, nil
			}
			if price > ma {
				return screener.Include, nil
			}
			return screener.Exclude, nil
		},
	}
}
