package screener

import (
	"context"
	"fmt"
	"runtime"
	"sort"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/aristath/screener/internal/marketdata"
)

// CancelCheck reports whether cancellation has been requested for the
// running screen. The pipeline polls it at stage boundaries; cancellation
// latency is therefore bounded by the cost of a single stage.
type CancelCheck func() bool

// ProgressFunc receives monotonically increasing progress for the running
// screen.
type ProgressFunc func(percent int, message string)

// Strategy names an ordered chain of condition keys. Only conditions whose
// enable flag is present in the context actually run; the strategy fixes
// their order.
type Strategy struct {
	Name       string   `json:"name"`
	Label      string   `json:"label"`
	Conditions []string `json:"conditions"`
}

// Pipeline orchestrates a screen run: candidate acquisition, coarse
// attribute filters, one batched history fetch and the AND-composed
// condition chain, with the result cache consulted first.
type Pipeline struct {
	registry    *Registry
	cache       *Cache
	provider    marketdata.Provider
	strategies  map[string]*Strategy
	windowLimit int
	log         zerolog.Logger
	mu          sync.RWMutex
}

// PipelineConfig holds pipeline configuration
type PipelineConfig struct {
	WindowLimit int // Candles fetched per candidate (default 250)
}

// NewPipeline creates a new screening pipeline
func NewPipeline(registry *Registry, cache *Cache, provider marketdata.Provider, cfg PipelineConfig, log zerolog.Logger) *Pipeline {
	if cfg.WindowLimit <= 0 {
		cfg.WindowLimit = 250
	}
	return &Pipeline{
		registry:    registry,
		cache:       cache,
		provider:    provider,
		strategies:  make(map[string]*Strategy),
		windowLimit: cfg.WindowLimit,
		log:         log.With().Str("component", "pipeline").Logger(),
	}
}

// RegisterStrategy adds a strategy definition, replacing any existing one
// with the same name.
func (p *Pipeline) RegisterStrategy(s *Strategy) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.strategies[s.Name] = s
}

// Strategy returns a registered strategy by name, or nil
func (p *Pipeline) Strategy(name string) *Strategy {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return p.strategies[name]
}

// Strategies returns all registered strategies ordered by name
func (p *Pipeline) Strategies() []*Strategy {
	p.mu.RLock()
	defer p.mu.RUnlock()

	out := make([]*Strategy, 0, len(p.strategies))
	for _, s := range p.strategies {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Validate checks a strategy name and context before a job is accepted.
// Every enabled condition in the chain must resolve for the requested
// entity kind.
func (p *Pipeline) Validate(strategyName string, sctx Context) error {
	strategy := p.Strategy(strategyName)
	if strategy == nil {
		return fmt.Errorf("%w: %q", ErrUnknownStrategy, strategyName)
	}

	kind := marketdata.EntityKind(sctx.EntityKind())
	for _, key := range strategy.Conditions {
		if !sctx.Enabled(key) {
			continue
		}
		if _, err := p.registry.Resolve(key, kind); err != nil {
			return err
		}
	}
	return nil
}

// Execute runs a screen and returns the surviving candidate IDs.
//
// A settled success for the same fingerprint is returned without
// re-execution; otherwise the computation runs at most once across
// concurrent fingerprint-equal callers.
func (p *Pipeline) Execute(ctx context.Context, strategyName string, sctx Context, cancelled CancelCheck, report ProgressFunc) ([]string, error) {
	if err := p.Validate(strategyName, sctx); err != nil {
		return nil, err
	}

	fingerprint, err := Fingerprint(strategyName, sctx)
	if err != nil {
		return nil, err
	}

	result, cached, err := p.cache.GetOrCompute(fingerprint, strategyName, func() ([]string, error) {
		return p.run(ctx, strategyName, sctx, cancelled, report)
	})
	if err != nil {
		return nil, err
	}
	if cached {
		report(100, "served from cache")
	}
	return result, nil
}

// run executes the pipeline stages for a cache miss
func (p *Pipeline) run(ctx context.Context, strategyName string, sctx Context, cancelled CancelCheck, report ProgressFunc) ([]string, error) {
	strategy := p.Strategy(strategyName)
	kind := marketdata.EntityKind(sctx.EntityKind())

	if cancelled() {
		return nil, ErrCancelled
	}

	candidates, err := p.provider.Universe(ctx, kind)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire universe: %w", err)
	}
	report(15, fmt.Sprintf("universe: %d candidates", len(candidates)))

	if cancelled() {
		return nil, ErrCancelled
	}

	for _, filter := range coarseFilters {
		if !sctx.Enabled(filter.key) {
			continue
		}
		candidates = filter.apply(sctx, candidates)
	}
	report(30, fmt.Sprintf("attribute filters: %d candidates", len(candidates)))

	// Nothing survived the coarse filters; skip the batch fetch and the
	// condition chain entirely.
	if len(candidates) == 0 {
		report(90, "no candidates after attribute filters")
		return []string{}, nil
	}

	if cancelled() {
		return nil, ErrCancelled
	}

	ids := make([]string, len(candidates))
	for i, c := range candidates {
		ids[i] = c.ID
	}
	windows, err := p.provider.BatchWindow(ctx, kind, ids, p.windowLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch history windows: %w", err)
	}
	report(55, fmt.Sprintf("history: %d windows", len(windows)))

	progress := 55
	step := 0
	if n := enabledCount(strategy, sctx); n > 0 {
		step = 35 / n
	}

	for _, key := range strategy.Conditions {
		if !sctx.Enabled(key) {
			continue
		}
		if cancelled() {
			return nil, ErrCancelled
		}

		cond, err := p.registry.Resolve(key, kind)
		if err != nil {
			return nil, err
		}

		candidates, err = p.applyCondition(ctx, cond, sctx, candidates, windows)
		if err != nil {
			return nil, fmt.Errorf("condition %q failed: %w", key, err)
		}

		progress += step
		report(progress, fmt.Sprintf("condition %s: %d candidates", key, len(candidates)))
	}

	if cancelled() {
		return nil, ErrCancelled
	}

	result := make([]string, len(candidates))
	for i, c := range candidates {
		result[i] = c.ID
	}
	sort.Strings(result)

	report(95, fmt.Sprintf("screen complete: %d candidates", len(result)))
	return result, nil
}

// applyCondition intersects the candidate set with one condition's output.
// Candidates are evaluated concurrently; any evaluation error aborts the
// whole run so a partial result set is never returned as complete.
func (p *Pipeline) applyCondition(ctx context.Context, cond *Condition, sctx Context, candidates []marketdata.Candidate, windows map[string]marketdata.Window) ([]marketdata.Candidate, error) {
	params := cond.ResolveParams(sctx)

	decisions := make([]Decision, len(candidates))
	g, _ := errgroup.WithContext(ctx)
	g.SetLimit(runtime.NumCPU())

	for i := range candidates {
		i := i
		g.Go(func() error {
			d, err := cond.Evaluate(candidates[i], windows[candidates[i].ID], params)
			if err != nil {
				return err
			}
			decisions[i] = d
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := candidates[:0:0]
	for i, c := range candidates {
		// Skip leaves the candidate in the running set untouched.
		if decisions[i] == Include || decisions[i] == Skip {
			out = append(out, c)
		}
	}
	return out, nil
}

// enabledCount returns how many of the strategy's conditions are enabled
func enabledCount(strategy *Strategy, sctx Context) int {
	n := 0
	for _, key := range strategy.Conditions {
		if sctx.Enabled(key) {
			n++
		}
	}
	return n
}
