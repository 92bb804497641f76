package mcptools

import (
	"context"
	"net/http"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// version is set by the linker at build time.
var version = "dev"

// NewQueryMCPServer creates an MCP server with all 5 query tools registered.
func NewQueryMCPServer(svc *QueryService) *mcp.Server {
	server := mcp.NewServer(&mcp.Implementation{
		Name:    "queryroute",
		Version: version,
	}, nil)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "process_query",
		Description: "Answer a natural-language query. The query is decomposed into sub-queries, each is routed to a retrieval strategy (no_rag, naive_rag, graph_rag) and the answers are combined.",
	}, svc.ProcessQuery)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "route_query",
		Description: "Decompose a query and show which strategy each sub-query would be routed to, without executing it.",
	}, svc.RouteQuery)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "list_strategies",
		Description: "List the retrieval strategies, whether each is available, and the overall capability level.",
	}, svc.ListStrategies)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "build_index",
		Description: "Index documents for naive_rag (vector store) or graph_rag (entity graph with community reports).",
	}, svc.BuildIndex)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "index_status",
		Description: "Report the state of the naive_rag and graph_rag indexes and which strategies are available.",
	}, svc.IndexStatus)

	return server
}

// RunStdio runs the MCP server on stdio transport, blocking until stdin is
// closed or the context is cancelled.
func RunStdio(ctx context.Context, server *mcp.Server) error {
	return server.Run(ctx, &mcp.StdioTransport{})
}

// RunHTTP serves the MCP server over streamable HTTP at addr until ctx is
// cancelled. extra handlers, such as /metrics, are mounted alongside.
func RunHTTP(ctx context.Context, server *mcp.Server, addr string, extra map[string]http.Handler) error {
	handler := mcp.NewStreamableHTTPHandler(
		func(_ *http.Request) *mcp.Server { return server },
		nil,
	)

	mux := http.NewServeMux()
	mux.Handle("/", handler)
	for pattern, h := range extra {
		mux.Handle(pattern, h)
	}

	httpServer := &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	// Shutdown gracefully when context is cancelled.
	go func() {
		<-ctx.Done()
		httpServer.Shutdown(context.Background())
	}()

	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}
