package conditions

import (
	"math"

	"github.com/markcheno/go-talib"

	"github.com/aristath/screener/internal/marketdata"
	"github.com/aristath/screener/internal/screener"
)

// RSI keeps candidates whose current Relative Strength Index lies within
// the configured band. Candidates with less history than the RSI period
// are excluded (insufficient data, not an error).
func RSI() *screener.Condition {
	return &screener.Condition{
		Key:   "rsi",
		Label: "Relative Strength Index band",
		Params: map[string]screener.ParamSpec{
			"rsi_period": {Type: screener.ParamInt, Default: 14},
			"rsi_min":    {Type: screener.ParamFloat, Default: 0.0},
			"rsi_max":    {Type: screener.ParamFloat, Default: 100.0},
		},
		Evaluate: func(c marketdata.Candidate, window marketdata.Window, params map[string]any) (screener.Decision, error) {
			period := intParam(params, "rsi_period", 14)
			min := floatParam(params, "rsi_min", 0)
			max := floatParam(params, "rsi_max", 100)

			closes := window.Closes()
			if len(closes) < period+1 {
				return screener.Exclude, nil
			}

			values := talib.Rsi(closes, period)
			current := values[len(values)-1]
			if math.IsNaN(current) {
				return screener.Exclude, nil
			}

			if current < min || current > max {
				return screener.Exclude, nil
			}
			return screener.Include, nil
		},
	}
}
