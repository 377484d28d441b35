// Package screener implements the screening pipeline: a registry of
// parameterized filter conditions, a fingerprint-keyed result cache with
// in-flight collapsing, and the pipeline that runs coarse attribute filters
// and the condition chain over the candidate universe.
package screener

import (
	"errors"

	"github.com/aristath/screener/internal/marketdata"
)

// Sentinel errors for the screener package
var (
	// ErrConditionNotFound is returned when neither an entity-specific nor a
	// generic implementation exists for a condition key.
	ErrConditionNotFound = errors.New("condition not found")

	// ErrCancelled signals cooperative cancellation observed at a pipeline
	// checkpoint. It is not a failure.
	ErrCancelled = errors.New("screen cancelled")

	// ErrUnknownStrategy is returned for strategy names with no registered
	// strategy definition.
	ErrUnknownStrategy = errors.New("unknown strategy")
)

// ParamType is the declared type of a condition parameter
type ParamType string

const (
	ParamInt    ParamType = "int"
	ParamFloat  ParamType = "float"
	ParamString ParamType = "string"
	ParamBool   ParamType = "bool"
)

// ParamSpec declares one parameter of a condition's schema
type ParamSpec struct {
	Type    ParamType `json:"type"`
	Default any       `json:"default,omitempty"`
}

// Decision is the outcome of evaluating a condition for one candidate
type Decision int

const (
	// Exclude removes the candidate from the running set.
	Exclude Decision = iota
	// Include keeps the candidate in the running set.
	Include
	// Skip means the condition does not apply; it must not alter the set.
	// Distinct from Exclude: an inapplicable condition is not an empty result.
	Skip
)

// EvaluateFn decides whether a candidate passes a condition. It must be a
// pure function of the candidate, its historical window and the resolved
// parameters, with no side effects.
type EvaluateFn func(c marketdata.Candidate, window marketdata.Window, params map[string]any) (Decision, error)

// Condition is a named, parameterized predicate over a candidate's history
type Condition struct {
	// Key uniquely identifies the condition in the registry. An entity-kind
	// specialization uses the key "<base>_<kind>" (e.g. "volume_stock").
	Key string

	// Label is a human-readable description.
	Label string

	// Kinds lists the entity kinds this condition supports. Empty = all.
	Kinds []marketdata.EntityKind

	// Params declares the parameter schema (name -> type and default).
	Params map[string]ParamSpec

	// Evaluate is the predicate itself.
	Evaluate EvaluateFn
}

// Supports reports whether the condition supports the given entity kind
func (c *Condition) Supports(kind marketdata.EntityKind) bool {
	if len(c.Kinds) == 0 {
		return true
	}
	for _, k := range c.Kinds {
		if k == kind {
			return true
		}
	}
	return false
}

// ResolveParams merges caller parameters over the declared defaults.
// Undeclared caller keys are ignored; declared parameters missing from the
// caller input fall back to their defaults.
func (c *Condition) ResolveParams(input map[string]any) map[string]any {
	resolved := make(map[string]any, len(c.Params))
	for name, spec := range c.Params {
		if v, ok := input[name]; ok {
			resolved[name] = v
		} else if spec.Default != nil {
			resolved[name] = spec.Default
		}
	}
	return resolved
}
