package router

import (
	"context"

	"github.com/dusk-indust/queryroute/internal/orchestrator"
)

// Compile-time interface check.
var _ orchestrator.Router = (*RuleRouter)(nil)

// RuleRouter routes sub-queries from a fixed table. Unknown sub-queries get
// the default strategy.
type RuleRouter struct {
	routes map[string]orchestrator.StrategyName
}

// NewRuleRouter creates a router over routes. Values are normalized with
// Classify so that the router only ever returns known strategies.
func NewRuleRouter(routes map[string]string) *RuleRouter {
	cp := make(map[string]orchestrator.StrategyName, len(routes))
	for sq, label := range routes {
		name, _ := Classify(label)
		cp[sq] = name
	}
	return &RuleRouter{routes: cp}
}

// Route looks subquery up in the table.
func (r *RuleRouter) Route(_ context.Context, subquery string) orchestrator.StrategyName {
	if name, ok := r.routes[subquery]; ok {
		return name
	}
	return orchestrator.DefaultStrategy
}
