package orchestrator

import (
	"context"
	"time"
)

// StrategyName identifies a retrieval strategy. The set is closed for routing
// purposes but extensible: any name may be registered in a Registry.
type StrategyName string

const (
	NoRAG    StrategyName = "no_rag"
	NaiveRAG StrategyName = "naive_rag"
	GraphRAG StrategyName = "graph_rag"

	// DefaultStrategy is returned by routers whenever classification fails.
	DefaultStrategy = NoRAG
)

// KnownStrategies returns the built-in strategies in classification priority
// order.
func KnownStrategies() []StrategyName {
	return []StrategyName{NoRAG, NaiveRAG, GraphRAG}
}

// IsKnown reports whether s is one of the built-in strategies.
func (s StrategyName) IsKnown() bool {
	for _, k := range KnownStrategies() {
		if s == k {
			return true
		}
	}
	return false
}

func (s StrategyName) String() string { return string(s) }

// Context is an opaque bag passed untouched from Process to every backend.
type Context map[string]any

// SubqueryRoute pairs a sub-query with the strategy chosen for it.
type SubqueryRoute struct {
	Subquery string       `json:"subquery"`
	Strategy StrategyName `json:"strategy"`
}

// ExecutionResult is the outcome of dispatching one SubqueryRoute. Result
// holds either the backend answer or a formatted error text.
type ExecutionResult struct {
	Subquery string        `json:"subquery"`
	Strategy StrategyName  `json:"strategy"`
	Result   string        `json:"result"`
	Duration time.Duration `json:"durationNs"`

	// Err is the recovered failure, if any. It never aborts the pipeline.
	Err error `json:"-"`
}

// Failed reports whether the result text was synthesized from an error.
func (r ExecutionResult) Failed() bool { return r.Err != nil }

// Trace records every intermediate value of one pipeline run.
type Trace struct {
	Query      string            `json:"query"`
	Subqueries []string          `json:"subqueries"`
	Routes     []SubqueryRoute   `json:"routes"`
	Results    []ExecutionResult `json:"results"`
	Answer     string            `json:"answer"`

	// Fallback is true when decomposition failed and the query was
	// processed unsplit.
	Fallback bool          `json:"fallback,omitempty"`
	Duration time.Duration `json:"durationNs"`
}

// Decomposer splits a query into ordered sub-queries. An empty result means
// "do not split". Errors are returned to the caller unhandled.
type Decomposer interface {
	Decompose(ctx context.Context, query string) ([]string, error)
}

// Router assigns exactly one strategy to a sub-query. Implementations must
// never return an empty name; on any internal failure they return
// DefaultStrategy.
type Router interface {
	Route(ctx context.Context, subquery string) StrategyName
}

// Backend answers a single sub-query for one strategy.
type Backend interface {
	Execute(ctx context.Context, query string, c Context) (string, error)
}

// IndexBuilder is implemented by backends that need a pre-built index.
// Failure is reported through the return value.
type IndexBuilder interface {
	BuildIndex(ctx context.Context, data []string, metadata map[string]any) bool
}

// FallbackReporter is implemented by backends that answer with placeholder
// text instead of failing. Placeholder answers are not cached.
type FallbackReporter interface {
	IsFallback(query, answer string) bool
}

// BackendFunc adapts a function to the Backend interface.
type BackendFunc func(ctx context.Context, query string, c Context) (string, error)

// Execute calls f.
func (f BackendFunc) Execute(ctx context.Context, query string, c Context) (string, error) {
	return f(ctx, query, c)
}

// Stage identifies a step of the pipeline.
type Stage int

const (
	StageDecompose Stage = iota
	StageRoute
	StageExecute
	StageCombine
)

func (s Stage) String() string {
	switch s {
	case StageDecompose:
		return "decompose"
	case StageRoute:
		return "route"
	case StageExecute:
		return "execute"
	case StageCombine:
		return "combine"
	default:
		return "unknown"
	}
}

// ProgressEvent reports the state of one sub-query within a stage.
type ProgressEvent struct {
	Stage    Stage
	Subquery string
	Strategy StrategyName
	Status   ProgressStatus
	Message  string
}

// ProgressStatus is the lifecycle state carried by a ProgressEvent.
type ProgressStatus int

const (
	ProgressPending ProgressStatus = iota
	ProgressWorking
	ProgressComplete
	ProgressFailed
)
