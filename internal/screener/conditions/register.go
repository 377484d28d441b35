package conditions

import (
	"github.com/aristath/screener/internal/screener"
)

// RegisterBuiltins registers all built-in conditions. Called once during
// start-up wiring, before the pipeline accepts work.
func RegisterBuiltins(registry *screener.Registry) {
	registry.Register(RSI())
	registry.Register(Trend())
	registry.Register(Volume())
	registry.Register(Volatility())
}
