package orchestrator

import (
	"context"
	"fmt"
	"sort"
	"time"
)

// Registry maps strategy names to their backends. It is assembled before a
// Pipeline is built and must not be modified while pipelines run; after that
// it is safe for concurrent reads.
type Registry struct {
	backends map[StrategyName]Backend
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		backends: make(map[StrategyName]Backend),
	}
}

// Register associates a backend with a strategy name, replacing any previous
// registration.
func (r *Registry) Register(name StrategyName, b Backend) {
	r.backends[name] = b
}

// Lookup returns the backend registered for name.
func (r *Registry) Lookup(name StrategyName) (Backend, bool) {
	b, ok := r.backends[name]
	return b, ok
}

// Names returns the registered strategy names in sorted order.
func (r *Registry) Names() []StrategyName {
	names := make([]StrategyName, 0, len(r.backends))
	for n := range r.backends {
		names = append(names, n)
	}
	sort.Slice(names, func(i, j int) bool { return names[i] < names[j] })
	return names
}

// Len returns the number of registered strategies.
func (r *Registry) Len() int {
	return len(r.backends)
}

// Dispatch executes route against its registered backend. It never returns an
// error: a missing strategy, a backend error, or a backend panic becomes the
// Result text and is kept in Err.
func (r *Registry) Dispatch(ctx context.Context, route SubqueryRoute, c Context) (res ExecutionResult) {
	res = ExecutionResult{
		Subquery: route.Subquery,
		Strategy: route.Strategy,
	}

	b, ok := r.backends[route.Strategy]
	if !ok {
		res.Err = fmt.Errorf("dispatch %q: %w", route.Strategy, ErrMissingStrategy)
		res.Result = MissingStrategyText(route.Strategy)
		return res
	}

	start := time.Now()
	defer func() {
		res.Duration = time.Since(start)
		if p := recover(); p != nil {
			res.Err = fmt.Errorf("%w: panic: %v", ErrBackendExecution, p)
			res.Result = BackendErrorText(route.Strategy, fmt.Errorf("panic: %v", p))
		}
	}()

	out, err := b.Execute(ctx, route.Subquery, c)
	if err != nil {
		res.Err = fmt.Errorf("%w: %w", ErrBackendExecution, err)
		res.Result = BackendErrorText(route.Strategy, err)
		return res
	}
	res.Result = out
	return res
}

// BuildIndex forwards to the named backend if it implements IndexBuilder.
func (r *Registry) BuildIndex(ctx context.Context, name StrategyName, data []string, metadata map[string]any) (bool, error) {
	b, ok := r.backends[name]
	if !ok {
		return false, fmt.Errorf("registry: build index %q: %w", name, ErrMissingStrategy)
	}
	ib, ok := b.(IndexBuilder)
	if !ok {
		return false, fmt.Errorf("registry: strategy %q does not build an index", name)
	}
	return ib.BuildIndex(ctx, data, metadata), nil
}
