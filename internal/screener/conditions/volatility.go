package conditions

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/aristath/screener/internal/marketdata"
	"github.com/aristath/screener/internal/screener"
)

// tradingDaysPerYear is used to annualize daily return volatility.
const tradingDaysPerYear = 252

// Volatility keeps candidates whose annualized daily-return volatility lies
// within the configured band. Insufficient history excludes the candidate.
func Volatility() *screener.Condition {
	return &screener.Condition{
		Key:   "volatility",
		Label: "Annualized volatility band",
		Params: map[string]screener.ParamSpec{
			"volatility_period": {Type: screener.ParamInt, Default: 60},
			"volatility_min":    {Type: screener.ParamFloat, Default: 0.0},
			"volatility_max":    {Type: screener.ParamFloat, Default: math.MaxFloat64},
		},
		Evaluate: func(c marketdata.Candidate, window marketdata.Window, params map[string]any) (screener.Decision, error) {
			period := intParam(params, "volatility_period", 60)
			min := floatParam(params, "volatility_min", 0)
			max := floatParam(params, "volatility_max", math.MaxFloat64)

			closes := window.Closes()
			if len(closes) < period+1 {
				return screener.Exclude, nil
			}

			closes = closes[len(closes)-period-1:]
			returns := make([]float64, 0, period)
			for i := 1; i < len(closes); i++ {
				if closes[i-1] == 0 {
					return screener.Exclude, nil
				}
				returns = append(returns, closes[i]/closes[i-1]-1)
			}

			annualized := stat.StdDev(returns, nil) * math.Sqrt(tradingDaysPerYear)
			if math.IsNaN(annualized) || annualized < min || annualized > max {
				return screener.Exclude, nil
			}
			return screener.Include, nil
		},
	}
}
