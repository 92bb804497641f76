// Package status reports what a queryroute deployment can serve: which
// strategies are available and the state of their indexes.
package status

import (
	"context"
	"sort"

	"github.com/dusk-indust/queryroute/internal/config"
	"github.com/dusk-indust/queryroute/internal/graph"
	"github.com/dusk-indust/queryroute/internal/orchestrator"
	"github.com/dusk-indust/queryroute/internal/vectorstore"
)

// Report is the full status of a deployment.
type Report struct {
	Level      string            `json:"level"`
	Strategies []StrategyInfo    `json:"strategies"`
	NaiveIndex *NaiveIndexStatus `json:"naiveIndex,omitempty"`
	GraphIndex *GraphIndexStatus `json:"graphIndex,omitempty"`
	Remote     map[string]string `json:"remote,omitempty"`
}

// StrategyInfo describes one strategy.
type StrategyInfo struct {
	Name      string `json:"name"`
	Available bool   `json:"available"`
	Remote    string `json:"remote,omitempty"`
	Reason    string `json:"reason,omitempty"` // why it is unavailable
}

// NaiveIndexStatus describes the naive_rag vector store.
type NaiveIndexStatus struct {
	Store  string `json:"store"`
	Chunks int    `json:"chunks"`
	Error  string `json:"error,omitempty"`
}

// GraphIndexStatus describes the graph_rag index under a data path.
type GraphIndexStatus struct {
	DataPath string       `json:"dataPath"`
	Ready    bool         `json:"ready"`
	Missing  []string     `json:"missing,omitempty"`
	Stats    *graph.Stats `json:"stats,omitempty"`
	Error    string       `json:"error,omitempty"`
}

// Strategies lists every known or registered strategy with its
// availability, sorted by name.
func Strategies(caps orchestrator.Capabilities) []StrategyInfo {
	names := make(map[orchestrator.StrategyName]bool)
	for _, n := range orchestrator.KnownStrategies() {
		names[n] = true
	}
	for _, n := range caps.Available {
		names[n] = true
	}
	for n := range caps.Remote {
		names[n] = true
	}

	out := make([]StrategyInfo, 0, len(names))
	for n := range names {
		info := StrategyInfo{
			Name:      string(n),
			Available: caps.Has(n),
			Remote:    caps.Remote[n],
		}
		if !info.Available {
			info.Reason = caps.Unavailable[n]
			if info.Reason == "" {
				info.Reason = "not configured"
			}
		}
		out = append(out, info)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// NaiveIndex counts the chunks in store.
func NaiveIndex(ctx context.Context, storeName string, store vectorstore.Store) *NaiveIndexStatus {
	st := &NaiveIndexStatus{Store: storeName}
	n, err := store.Count(ctx)
	if err != nil {
		st.Error = err.Error()
		return st
	}
	st.Chunks = n
	return st
}

// GraphIndex checks the index files under dataPath and, when all are
// present, loads them to report their sizes.
func GraphIndex(ctx context.Context, dataPath string) *GraphIndexStatus {
	st := &GraphIndexStatus{DataPath: dataPath}
	if dataPath == "" {
		st.Error = "graph_rag.data_path is not set"
		return st
	}
	if st.Missing = graph.MissingFiles(dataPath); len(st.Missing) > 0 {
		return st
	}

	s := graph.NewMemStore()
	if err := graph.LoadDir(ctx, dataPath, s); err != nil {
		st.Error = err.Error()
		return st
	}
	stats, err := s.Stats(ctx)
	if err != nil {
		st.Error = err.Error()
		return st
	}
	st.Ready = true
	st.Stats = stats
	return st
}

// Collect assembles a Report. naive may be nil when naive_rag is disabled;
// the graph index is inspected only when graph_rag is available.
func Collect(ctx context.Context, cfg *config.Config, caps orchestrator.Capabilities, naive vectorstore.Store) *Report {
	r := &Report{
		Level:      caps.Level.String(),
		Strategies: Strategies(caps),
	}
	if len(caps.Remote) > 0 {
		r.Remote = make(map[string]string, len(caps.Remote))
		for n, ep := range caps.Remote {
			r.Remote[string(n)] = ep
		}
	}
	if naive != nil {
		r.NaiveIndex = NaiveIndex(ctx, cfg.NaiveRAG.Store, naive)
	}
	if caps.Has(orchestrator.GraphRAG) && caps.Remote[orchestrator.GraphRAG] == "" {
		r.GraphIndex = GraphIndex(ctx, cfg.GraphRAG.DataPath)
	}
	return r
}
