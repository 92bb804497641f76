package orchestrator

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// FanOut runs per-sub-query work on a bounded pool of goroutines. Each worker
// writes to its own index in the result slice, so output order always matches
// input order regardless of completion order.
type FanOut struct {
	limit      int
	onProgress func(ProgressEvent)
}

// NewFanOut creates a FanOut running at most limit workers at once.
// onProgress is called from worker goroutines; it may be nil.
func NewFanOut(limit int, onProgress func(ProgressEvent)) *FanOut {
	if limit < 1 {
		limit = 1
	}
	return &FanOut{
		limit:      limit,
		onProgress: onProgress,
	}
}

// RouteAll assigns a strategy to every sub-query.
func (f *FanOut) RouteAll(ctx context.Context, router Router, subqueries []string) []SubqueryRoute {
	routes := make([]SubqueryRoute, len(subqueries))
	f.run(ctx, len(subqueries), func(ctx context.Context, i int) {
		sq := subqueries[i]
		f.emit(ProgressEvent{Stage: StageRoute, Subquery: sq, Status: ProgressWorking})

		strategy := router.Route(ctx, sq)
		if strategy == "" {
			strategy = DefaultStrategy
		}
		routes[i] = SubqueryRoute{Subquery: sq, Strategy: strategy}

		f.emit(ProgressEvent{Stage: StageRoute, Subquery: sq, Strategy: strategy, Status: ProgressComplete})
	})
	return routes
}

// ExecuteAll dispatches every route through the registry. A failing route
// never stops the others.
func (f *FanOut) ExecuteAll(ctx context.Context, reg *Registry, routes []SubqueryRoute, c Context) []ExecutionResult {
	results := make([]ExecutionResult, len(routes))
	for _, r := range routes {
		f.emit(ProgressEvent{Stage: StageExecute, Subquery: r.Subquery, Strategy: r.Strategy, Status: ProgressPending})
	}
	f.run(ctx, len(routes), func(ctx context.Context, i int) {
		r := routes[i]
		f.emit(ProgressEvent{Stage: StageExecute, Subquery: r.Subquery, Strategy: r.Strategy, Status: ProgressWorking})

		results[i] = reg.Dispatch(ctx, r, c)

		ev := ProgressEvent{Stage: StageExecute, Subquery: r.Subquery, Strategy: r.Strategy, Status: ProgressComplete}
		if results[i].Err != nil {
			ev.Status = ProgressFailed
			ev.Message = results[i].Err.Error()
		}
		f.emit(ev)
	})
	return results
}

// run calls fn for each index in [0, n). Workers never return an error to the
// group, so one slow or failing item cannot cancel its siblings.
func (f *FanOut) run(ctx context.Context, n int, fn func(ctx context.Context, i int)) {
	if f.limit == 1 {
		for i := 0; i < n; i++ {
			fn(ctx, i)
		}
		return
	}

	var g errgroup.Group
	g.SetLimit(f.limit)
	for i := 0; i < n; i++ {
		g.Go(func() error {
			fn(ctx, i)
			return nil
		})
	}
	_ = g.Wait()
}

// emit sends a progress event if a callback is registered.
func (f *FanOut) emit(ev ProgressEvent) {
	if f.onProgress != nil {
		f.onProgress(ev)
	}
}
