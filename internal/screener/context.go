package screener

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// Context is the caller-supplied parameter bag of a screen run.
// Keys follow the "enable_<filter>" / "<filter>_<param>" convention, e.g.
//
//	{"kind": "stock", "enable_market_cap": true, "market_cap_min": 1e9,
//	 "enable_rsi": true, "rsi_period": 14, "rsi_max": 30}
type Context map[string]any

// sessionKeys are caller/session identifiers excluded from normalization so
// that semantically identical requests from different callers share one
// fingerprint.
var sessionKeys = map[string]bool{
	"session_id": true,
	"user_id":    true,
	"request_id": true,
	"client_id":  true,
}

// EntityKind returns the entity kind the context targets, defaulting to
// "stock" when absent.
func (c Context) EntityKind() string {
	if v, ok := c["kind"].(string); ok && v != "" {
		return v
	}
	return "stock"
}

// Enabled reports whether the enable flag for a filter or condition key is
// present and true. Missing key means the filter is skipped entirely.
func (c Context) Enabled(key string) bool {
	v, ok := c["enable_"+key]
	if !ok {
		return false
	}
	b, ok := v.(bool)
	return ok && b
}

// Normalize returns a copy of the context with session keys removed.
// The copy is what fingerprinting operates on.
func (c Context) Normalize() Context {
	normalized := make(Context, len(c))
	for key, value := range c {
		if sessionKeys[key] {
			continue
		}
		normalized[key] = value
	}
	return normalized
}

// Fingerprint returns the deterministic hash of the normalized context,
// used as the result cache key. json.Marshal emits map keys in sorted order,
// which makes the encoding canonical.
func (c Context) Fingerprint() (string, error) {
	encoded, err := json.Marshal(c.Normalize())
	if err != nil {
		return "", fmt.Errorf("failed to encode context: %w", err)
	}

	sum := sha256.Sum256(encoded)
	return hex.EncodeToString(sum[:]), nil
}

// Fingerprint returns the cache key for a strategy name and context pair.
// The strategy name participates in the hash so that two strategies sharing
// parameter values never collide.
func Fingerprint(strategy string, ctx Context) (string, error) {
	normalized := ctx.Normalize()
	normalized["strategy"] = strategy

	encoded, err := json.Marshal(normalized)
	if err != nil {
		return "", fmt.Errorf("failed to encode context: %w", err)
	}

	sum := sha256.Sum256(encoded)
	return hex.EncodeToString(sum[:]), nil
}
