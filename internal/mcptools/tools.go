package mcptools

import (
	"github.com/dusk-indust/queryroute/internal/export"
	"github.com/dusk-indust/queryroute/internal/status"
)

// --- MCP Tool Input/Output Types ---
// The MCP Go SDK generates each tool's JSON schema from these struct tags.

// ProcessQueryInput is the input for the process_query MCP tool.
type ProcessQueryInput struct {
	Query   string         `json:"query" jsonschema:"the natural-language query to answer"`
	Context map[string]any `json:"context,omitempty" jsonschema:"optional values passed to every backend, e.g. documents, data_path, search_mode"`
}

// ProcessQueryOutput is the result of the process_query MCP tool.
type ProcessQueryOutput struct {
	Answer   string                  `json:"answer"`
	Results  []export.SubqueryExport `json:"results"`
	Fallback bool                    `json:"fallback,omitempty"`
}

// RouteQueryInput is the input for the route_query MCP tool.
type RouteQueryInput struct {
	Query string `json:"query" jsonschema:"the query to decompose and route"`
}

// RouteQueryOutput is the result of the route_query MCP tool.
type RouteQueryOutput struct {
	Routes []Route `json:"routes"`
}

// Route is one routed sub-query.
type Route struct {
	Subquery string `json:"subquery"`
	Strategy string `json:"strategy"`
}

// ListStrategiesInput is the input for the list_strategies MCP tool.
type ListStrategiesInput struct{}

// ListStrategiesOutput is the result of the list_strategies MCP tool.
type ListStrategiesOutput struct {
	Strategies []status.StrategyInfo `json:"strategies"`
	Capability string                `json:"capability"`
}

// BuildIndexInput is the input for the build_index MCP tool.
type BuildIndexInput struct {
	Strategy  string   `json:"strategy" jsonschema:"strategy whose index to build: naive_rag or graph_rag"`
	Documents []string `json:"documents" jsonschema:"document texts to index"`
	DataPath  string   `json:"dataPath,omitempty" jsonschema:"graph_rag only: directory to write the index to (default: graph_rag.data_path)"`
}

// BuildIndexOutput is the result of the build_index MCP tool.
type BuildIndexOutput struct {
	OK        bool   `json:"ok"`
	Documents int    `json:"documents"`
	Message   string `json:"message,omitempty"`
}

// IndexStatusInput is the input for the index_status MCP tool.
type IndexStatusInput struct{}

// IndexStatusOutput is the result of the index_status MCP tool.
type IndexStatusOutput struct {
	Status *status.Report `json:"status"`
}
