package orchestrator

import (
	"context"

	"github.com/dusk-indust/queryroute/internal/a2a"
)

// Detector reports which strategies can be served. It runs once when the
// pipeline is wired so that unavailable strategies are known before any
// query is processed.
type Detector interface {
	Detect(ctx context.Context) (Capabilities, error)
}

// AgentDiscoverer fetches the agent card of a remote A2A endpoint.
type AgentDiscoverer interface {
	DiscoverAgent(ctx context.Context, baseURL string) (*a2a.AgentCard, error)
}

// StrategyFlags are the explicit, configuration-derived switches for the
// optional strategies.
type StrategyFlags struct {
	NaiveRAG bool
	GraphRAG bool

	// GraphStoreErr is non-nil when the configured graph store cannot be
	// opened in this build (for example kuzu without cgo).
	GraphStoreErr error
}
