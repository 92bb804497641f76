package mcptools

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/dusk-indust/queryroute/internal/export"
	"github.com/dusk-indust/queryroute/internal/orchestrator"
	"github.com/dusk-indust/queryroute/internal/status"
)

// Indexer builds the index of a named strategy. *orchestrator.Registry
// implements it.
type Indexer interface {
	BuildIndex(ctx context.Context, name orchestrator.StrategyName, data []string, metadata map[string]any) (bool, error)
}

// StatusFunc reports the current deployment status.
type StatusFunc func(ctx context.Context) *status.Report

// QueryService handles MCP tool calls against a wired pipeline.
type QueryService struct {
	pipeline orchestrator.Orchestrator
	indexer  Indexer
	caps     orchestrator.Capabilities
	status   StatusFunc
}

// NewQueryService creates a QueryService. statusFn may be nil, in which case
// index_status reports capabilities only.
func NewQueryService(pipeline orchestrator.Orchestrator, indexer Indexer, caps orchestrator.Capabilities, statusFn StatusFunc) *QueryService {
	return &QueryService{
		pipeline: pipeline,
		indexer:  indexer,
		caps:     caps,
		status:   statusFn,
	}
}

// ProcessQuery runs the full pipeline and returns the combined answer along
// with every sub-query result.
func (s *QueryService) ProcessQuery(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input ProcessQueryInput,
) (*mcp.CallToolResult, ProcessQueryOutput, error) {
	if strings.TrimSpace(input.Query) == "" {
		return nil, ProcessQueryOutput{}, errors.New("query is required")
	}

	trace, err := s.pipeline.ProcessTrace(ctx, input.Query, orchestrator.Context(input.Context))
	if err != nil {
		return nil, ProcessQueryOutput{}, err
	}

	return nil, ProcessQueryOutput{
		Answer:   trace.Answer,
		Results:  export.ExportTrace(trace).Subqueries,
		Fallback: trace.Fallback,
	}, nil
}

// RouteQuery decomposes and routes a query without executing it.
func (s *QueryService) RouteQuery(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input RouteQueryInput,
) (*mcp.CallToolResult, RouteQueryOutput, error) {
	if strings.TrimSpace(input.Query) == "" {
		return nil, RouteQueryOutput{}, errors.New("query is required")
	}

	routes, err := s.pipeline.RouteOnly(ctx, input.Query)
	if err != nil {
		return nil, RouteQueryOutput{}, err
	}

	out := RouteQueryOutput{Routes: make([]Route, len(routes))}
	for i, r := range routes {
		out.Routes[i] = Route{Subquery: r.Subquery, Strategy: string(r.Strategy)}
	}
	return nil, out, nil
}

// ListStrategies reports every strategy and whether it can be served.
func (s *QueryService) ListStrategies(
	_ context.Context,
	_ *mcp.CallToolRequest,
	_ ListStrategiesInput,
) (*mcp.CallToolResult, ListStrategiesOutput, error) {
	return nil, ListStrategiesOutput{
		Strategies: status.Strategies(s.caps),
		Capability: s.caps.Level.String(),
	}, nil
}

// BuildIndex indexes documents for one strategy. A build that the backend
// reports as failed is returned with ok=false, not as a tool error.
func (s *QueryService) BuildIndex(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input BuildIndexInput,
) (*mcp.CallToolResult, BuildIndexOutput, error) {
	if input.Strategy == "" {
		return nil, BuildIndexOutput{}, errors.New("strategy is required")
	}
	if len(input.Documents) == 0 {
		return nil, BuildIndexOutput{}, errors.New("documents is required")
	}

	metadata := map[string]any{"source": "mcp"}
	if input.DataPath != "" {
		metadata["data_path"] = input.DataPath
	}

	ok, err := s.indexer.BuildIndex(ctx, orchestrator.StrategyName(input.Strategy), input.Documents, metadata)
	if err != nil {
		return nil, BuildIndexOutput{}, err
	}

	out := BuildIndexOutput{OK: ok, Documents: len(input.Documents)}
	if !ok {
		out.Message = fmt.Sprintf("%s index build failed; see server logs", input.Strategy)
	}
	return nil, out, nil
}

// IndexStatus reports capabilities and index state.
func (s *QueryService) IndexStatus(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	_ IndexStatusInput,
) (*mcp.CallToolResult, IndexStatusOutput, error) {
	if s.status == nil {
		return nil, IndexStatusOutput{Status: &status.Report{
			Level:      s.caps.Level.String(),
			Strategies: status.Strategies(s.caps),
		}}, nil
	}
	return nil, IndexStatusOutput{Status: s.status(ctx)}, nil
}
