// Package conditions provides the built-in screening conditions registered
// at start-up: technical-indicator predicates (RSI, moving-average trend),
// liquidity and volatility checks.
package conditions

// intParam reads an integer parameter, tolerating the float64 values that
// JSON decoding produces.
func intParam(params map[string]any, name string, fallback int) int {
	switch v := params[name].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return fallback
}

// floatParam reads a float parameter
func floatParam(params map[string]any, name string, fallback float64) float64 {
	switch v := params[name].(type) {
	case float64:
		return v
	case float32:
		return float64(v)
	case int:
		return float64(v)
	case int64:
		return float64(v)
	}
	return fallback
}

// stringParam reads a string parameter
func stringParam(params map[string]any, name string, fallback string) string {
	if v, ok := params[name].(string); ok && v != "" {
		return v
	}
	return fallback
}
