package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/dusk-indust/queryroute/internal/metrics"
)

// Orchestrator is the query pipeline as seen by the outer surfaces (CLI, MCP,
// A2A agents).
type Orchestrator interface {
	// Process runs decompose, route, execute and combine, returning the
	// combined answer.
	Process(ctx context.Context, query string, c Context) (string, error)

	// ProcessTrace is Process but returns every intermediate value.
	ProcessTrace(ctx context.Context, query string, c Context) (*Trace, error)

	// RouteOnly runs the decompose and route stages without executing.
	RouteOnly(ctx context.Context, query string) ([]SubqueryRoute, error)

	// Strategies lists the registered strategy names.
	Strategies() []StrategyName
}

// Compile-time interface check.
var _ Orchestrator = (*Pipeline)(nil)

// Pipeline sequences Decomposer, Router, Registry dispatch and Combiner.
// A Pipeline holds no per-call state and may serve concurrent calls.
type Pipeline struct {
	decomposer Decomposer
	router     Router
	registry   *Registry
	combiner   Combiner
	opts       Options
	logger     *zap.Logger
	progress   *ProgressReporter
	fanout     *FanOut
}

// PipelineOption configures a Pipeline.
type PipelineOption func(*Pipeline)

// WithOptions replaces the runtime options.
func WithOptions(o Options) PipelineOption {
	return func(p *Pipeline) { p.opts = o }
}

// WithLogger sets the logger used for stage and recovery messages.
func WithLogger(l *zap.Logger) PipelineOption {
	return func(p *Pipeline) {
		if l != nil {
			p.logger = l
		}
	}
}

// WithProgress attaches a reporter that receives per-sub-query events. The
// caller owns the reporter and must not close it while the pipeline runs.
func WithProgress(pr *ProgressReporter) PipelineOption {
	return func(p *Pipeline) { p.progress = pr }
}

// WithCombiner overrides the default block combiner.
func WithCombiner(c Combiner) PipelineOption {
	return func(p *Pipeline) {
		if c != nil {
			p.combiner = c
		}
	}
}

// NewPipeline wires a pipeline. The registry must be fully populated before
// this call and left unmodified afterwards.
func NewPipeline(d Decomposer, r Router, reg *Registry, opts ...PipelineOption) *Pipeline {
	p := &Pipeline{
		decomposer: d,
		router:     r,
		registry:   reg,
		combiner:   BlockCombiner{},
		opts:       DefaultOptions(),
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.fanout = NewFanOut(p.opts.Concurrency, p.emit)
	return p
}

// ---------------------------------------------------------------------------
// Orchestrator interface
// ---------------------------------------------------------------------------

// Process runs the full pipeline and returns the combined answer. The only
// error it returns is a decomposition failure (unless DecomposeFallback is
// set); every other failure is reported inside the answer text.
func (p *Pipeline) Process(ctx context.Context, query string, c Context) (string, error) {
	trace, err := p.ProcessTrace(ctx, query, c)
	if err != nil {
		return "", err
	}
	return trace.Answer, nil
}

// ProcessTrace runs the full pipeline and returns its trace.
func (p *Pipeline) ProcessTrace(ctx context.Context, query string, c Context) (*Trace, error) {
	start := time.Now()
	trace := &Trace{Query: query}

	subqueries, fallback, err := p.decompose(ctx, query)
	if err != nil {
		return nil, err
	}
	trace.Subqueries = subqueries
	trace.Fallback = fallback

	trace.Routes = p.route(ctx, subqueries)

	p.logger.Debug("pipeline: executing", zap.Int("subqueries", len(trace.Routes)))
	trace.Results = p.fanout.ExecuteAll(ctx, p.registry, trace.Routes, c)
	p.observeResults(trace.Results)

	p.emit(ProgressEvent{Stage: StageCombine, Subquery: query, Status: ProgressWorking})
	trace.Answer = p.combiner.Combine(trace.Results)
	p.emit(ProgressEvent{Stage: StageCombine, Subquery: query, Status: ProgressComplete})

	trace.Duration = time.Since(start)
	metrics.ObservePipeline(start, len(subqueries))
	return trace, nil
}

// RouteOnly decomposes query and routes each sub-query without executing.
func (p *Pipeline) RouteOnly(ctx context.Context, query string) ([]SubqueryRoute, error) {
	subqueries, _, err := p.decompose(ctx, query)
	if err != nil {
		return nil, err
	}
	return p.route(ctx, subqueries), nil
}

// Strategies lists the registered strategy names.
func (p *Pipeline) Strategies() []StrategyName {
	return p.registry.Names()
}

// Registry returns the registry the pipeline dispatches through.
func (p *Pipeline) Registry() *Registry {
	return p.registry
}

// ---------------------------------------------------------------------------
// Stages
// ---------------------------------------------------------------------------

func (p *Pipeline) route(ctx context.Context, subqueries []string) []SubqueryRoute {
	p.logger.Debug("pipeline: routing", zap.Int("subqueries", len(subqueries)))
	routes := p.fanout.RouteAll(ctx, p.router, subqueries)
	for _, r := range routes {
		metrics.IncRoute(string(r.Strategy))
	}
	return routes
}

func (p *Pipeline) observeResults(results []ExecutionResult) {
	for _, r := range results {
		if r.Err == nil {
			metrics.ObserveBackend(string(r.Strategy), r.Duration)
			continue
		}
		kind := "execution"
		if errors.Is(r.Err, ErrMissingStrategy) {
			kind = "missing"
		}
		metrics.IncBackendError(string(r.Strategy), kind)
		p.logger.Warn("pipeline: sub-query failed",
			zap.String("subquery", r.Subquery),
			zap.String("strategy", string(r.Strategy)),
			zap.String("kind", kind),
			zap.Error(r.Err),
		)
	}
}

func (p *Pipeline) emit(ev ProgressEvent) {
	if p.progress != nil {
		p.progress.Emit(ev)
	}
}

// errNilDecomposer guards against a pipeline built without a decomposer.
var errNilDecomposer = errors.New("pipeline: no decomposer configured")

func wrapDecomposeErr(err error) error {
	return fmt.Errorf("pipeline: decompose: %w", err)
}
