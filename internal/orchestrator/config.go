package orchestrator

import "sort"

// CapabilityLevel summarizes which strategies a deployment can serve.
// It is computed once at wiring time from configuration, never probed per call.
type CapabilityLevel int

const (
	// CapDirect serves only direct LLM answers.
	CapDirect CapabilityLevel = iota

	// CapVector adds vector retrieval.
	CapVector

	// CapGraph adds graph retrieval but not vector retrieval.
	CapGraph

	// CapFull serves every built-in strategy.
	CapFull
)

func (c CapabilityLevel) String() string {
	switch c {
	case CapDirect:
		return "direct"
	case CapVector:
		return "vector"
	case CapGraph:
		return "graph"
	case CapFull:
		return "full"
	default:
		return "unknown"
	}
}

// Capabilities records the strategies available to a pipeline and why the
// others are not.
type Capabilities struct {
	Level CapabilityLevel

	// Available lists strategies that will be registered, sorted.
	Available []StrategyName

	// Unavailable maps a strategy to the reason it is disabled.
	Unavailable map[StrategyName]string

	// Remote maps strategies served by reachable remote agents to their endpoint.
	Remote map[StrategyName]string
}

// Has reports whether name is available locally or remotely.
func (c Capabilities) Has(name StrategyName) bool {
	for _, n := range c.Available {
		if n == name {
			return true
		}
	}
	_, ok := c.Remote[name]
	return ok
}

// levelFor derives the capability level from the set of available strategies.
func levelFor(avail map[StrategyName]bool) CapabilityLevel {
	switch {
	case avail[NaiveRAG] && avail[GraphRAG]:
		return CapFull
	case avail[NaiveRAG]:
		return CapVector
	case avail[GraphRAG]:
		return CapGraph
	default:
		return CapDirect
	}
}

func sortedStrategies(set map[StrategyName]bool) []StrategyName {
	out := make([]StrategyName, 0, len(set))
	for n, ok := range set {
		if ok {
			out = append(out, n)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Options holds runtime settings for a Pipeline.
type Options struct {
	// Concurrency bounds how many sub-queries are routed or executed at once.
	// Values <= 1 process sub-queries strictly in order.
	Concurrency int

	// DecomposeFallback processes the query unsplit when decomposition
	// fails, instead of returning the error.
	DecomposeFallback bool
}

// DefaultOptions returns the options used when none are given.
func DefaultOptions() Options {
	return Options{Concurrency: 4}
}
