package screener

import (
	"fmt"
	"sort"
	"sync"

	"github.com/aristath/screener/internal/marketdata"
)

// Registry holds all registered conditions and resolves the most specific
// implementation for a condition key and entity kind.
//
// Registration happens once at start-up; Resolve is safe for concurrent use
// afterwards. Registering an existing key replaces it.
type Registry struct {
	conditions map[string]*Condition
	mu         sync.RWMutex
}

// NewRegistry creates a new condition registry
func NewRegistry() *Registry {
	return &Registry{
		conditions: make(map[string]*Condition),
	}
}

// Register adds a condition to the registry, replacing any existing
// condition with the same key.
func (r *Registry) Register(cond *Condition) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.conditions[cond.Key] = cond
}

// Get returns a condition by exact key, or nil if not registered
func (r *Registry) Get(key string) *Condition {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.conditions[key]
}

// Has returns true if a condition with the given key is registered
func (r *Registry) Has(key string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, exists := r.conditions[key]
	return exists
}

// Resolve returns the implementation for a condition key and entity kind.
// The entity-specific key "<key>_<kind>" takes precedence over the generic
// key. A condition registered for the key but not supporting the kind does
// not resolve.
func (r *Registry) Resolve(key string, kind marketdata.EntityKind) (*Condition, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if cond, ok := r.conditions[key+"_"+string(kind)]; ok {
		return cond, nil
	}
	if cond, ok := r.conditions[key]; ok && cond.Supports(kind) {
		return cond, nil
	}
	return nil, fmt.Errorf("%w: %q for kind %q", ErrConditionNotFound, key, kind)
}

// Count returns the number of registered conditions
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.conditions)
}

// Remove removes a condition from the registry
func (r *Registry) Remove(key string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.conditions, key)
}

// Keys returns all registered condition keys, sorted
func (r *Registry) Keys() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	keys := make([]string, 0, len(r.conditions))
	for key := range r.conditions {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// All returns all registered conditions ordered by key
func (r *Registry) All() []*Condition {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conds := make([]*Condition, 0, len(r.conditions))
	for _, cond := range r.conditions {
		conds = append(conds, cond)
	}
	sort.Slice(conds, func(i, j int) bool { return conds[i].Key < conds[j].Key })
	return conds
}
