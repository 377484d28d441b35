package conditions

import (
	"gonum.org/v1/gonum/stat"

	"github.com/aristath/screener/internal/marketdata"
	"github.com/aristath/screener/internal/screener"
)

// Volume keeps candidates whose average daily volume over the lookback
// period meets the configured minimum. Candidates with no volume data or a
// shorter history are excluded.
func Volume() *screener.Condition {
	return &screener.Condition{
		Key:   "volume",
		Label: "Average daily volume floor",
		Params: map[string]screener.ParamSpec{
			"volume_period": {Type: screener.ParamInt, Default: 20},
			"volume_min":    {Type: screener.ParamFloat, Default: 0.0},
		},
		Evaluate: func(c marketdata.Candidate, window marketdata.Window, params map[string]any) (screener.Decision, error) {
			period := intParam(params, "volume_period", 20)
			min := floatParam(params, "volume_min", 0)

			vols := window.Volumes()
			if len(vols) < period {
				return screener.Exclude, nil
			}

			avg := stat.Mean(vols[len(vols)-period:], nil)
			if avg < min {
				return screener.Exclude, nil
			}
			return screener.Include, nil
		},
	}
}
