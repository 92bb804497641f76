// Package router assigns each sub-query to a retrieval strategy.
package router

import (
	"strings"

	"github.com/dusk-indust/queryroute/internal/orchestrator"
)

// aliases lists the labels recognized for each strategy, in priority order.
var aliases = []struct {
	strategy orchestrator.StrategyName
	labels   []string
}{
	{orchestrator.NoRAG, []string{"no_rag", "no rag"}},
	{orchestrator.NaiveRAG, []string{"naive_rag", "naive rag"}},
	{orchestrator.GraphRAG, []string{"graph_rag", "graph rag"}},
}

// Classify maps free-form classifier text to a strategy. Matching is a
// case-insensitive substring search; the first strategy in priority order
// with a matching label wins. The boolean is false when nothing matched, in
// which case the default strategy is returned.
func Classify(text string) (orchestrator.StrategyName, bool) {
	lower := strings.ToLower(strings.TrimSpace(text))
	for _, a := range aliases {
		for _, label := range a.labels {
			if strings.Contains(lower, label) {
				return a.strategy, true
			}
		}
	}
	return orchestrator.DefaultStrategy, false
}
