//go:build e2e

package e2e

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dusk-indust/queryroute/internal/a2a"
	"github.com/dusk-indust/queryroute/internal/agent"
	"github.com/dusk-indust/queryroute/internal/backend/graphrag"
	"github.com/dusk-indust/queryroute/internal/backend/remote"
	"github.com/dusk-indust/queryroute/internal/graph"
	"github.com/dusk-indust/queryroute/internal/orchestrator"
)

func testContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	t.Cleanup(cancel)
	return ctx
}

// mockRoutes is the routing the rule file produces for each mock query.
var mockRoutes = []struct {
	query  string
	routes []orchestrator.SubqueryRoute
}{
	{"谁是美国总统且美国首都在哪里？", []orchestrator.SubqueryRoute{
		{Subquery: "谁是美国总统？", Strategy: orchestrator.NaiveRAG},
		{Subquery: "美国首都在哪里？", Strategy: orchestrator.GraphRAG},
	}},
	{"北京的天气如何以及上海的GDP是多少？", []orchestrator.SubqueryRoute{
		{Subquery: "北京的天气如何？", Strategy: orchestrator.NoRAG},
		{Subquery: "上海的GDP是多少？", Strategy: orchestrator.NaiveRAG},
	}},
	{"如何制作蛋糕", []orchestrator.SubqueryRoute{
		{Subquery: "如何制作蛋糕？", Strategy: orchestrator.NaiveRAG},
	}},
	{"Python和JavaScript哪个更好用", []orchestrator.SubqueryRoute{
		{Subquery: "Python有什么优势？", Strategy: orchestrator.GraphRAG},
		{Subquery: "JavaScript有什么优势？", Strategy: orchestrator.NaiveRAG},
	}},
}

// TestPipeline_E2E_MockRoutes checks decomposition and routing of the mock
// queries without executing them.
func TestPipeline_E2E_MockRoutes(t *testing.T) {
	h := newHarness(t)

	for _, tt := range mockRoutes {
		t.Run(tt.query, func(t *testing.T) {
			routes, err := h.pipeline.RouteOnly(testContext(t), tt.query)
			require.NoError(t, err)
			assert.Equal(t, tt.routes, routes)
		})
	}
}

// TestPipeline_E2E_MockQueries runs every mock query through the real
// backends and checks that each sub-query is answered by its strategy, in
// order.
func TestPipeline_E2E_MockQueries(t *testing.T) {
	h := newHarness(t)

	for _, tt := range mockRoutes {
		t.Run(tt.query, func(t *testing.T) {
			trace, err := h.pipeline.ProcessTrace(testContext(t), tt.query, graphContext())
			require.NoError(t, err)
			require.Len(t, trace.Results, len(tt.routes))

			blocks := strings.Split(trace.Answer, orchestrator.BlockSeparator)
			require.Len(t, blocks, len(tt.routes))

			for i, r := range tt.routes {
				res := trace.Results[i]
				assert.NoError(t, res.Err)
				assert.Equal(t, r.Strategy, res.Strategy)
				assert.Equal(t, "mock: "+r.Subquery, res.Result)
				assert.Equal(t, orchestrator.FormatBlock(res), blocks[i])
			}
		})
	}
}

// TestPipeline_E2E_GraphSearchContext checks that graph_rag answers over the
// entities, relationships and reports of the index.
func TestPipeline_E2E_GraphSearchContext(t *testing.T) {
	h := newHarness(t)

	_, err := h.pipeline.Process(testContext(t), "谁是美国总统且美国首都在哪里？", graphContext())
	require.NoError(t, err)

	var system string
	for _, s := range h.llm.Systems() {
		if strings.Contains(s, "-----Entities-----") {
			system = s
		}
	}
	require.NotEmpty(t, system, "graph_rag should send its search context as the system prompt")
	assert.Contains(t, system, "华盛顿")
	assert.Contains(t, system, "-----Relationships-----")
	assert.Contains(t, system, "-----Reports-----")
	assert.Contains(t, system, "华盛顿是美国的首都")
}

// TestPipeline_E2E_GraphWithoutDataPath checks the explanatory answer when
// no index location is known.
func TestPipeline_E2E_GraphWithoutDataPath(t *testing.T) {
	h := newHarness(t)

	trace, err := h.pipeline.ProcessTrace(testContext(t), "Python和JavaScript哪个更好用", nil)
	require.NoError(t, err)
	require.Len(t, trace.Results, 2)
	assert.Equal(t, graphrag.MissingDataPathText, trace.Results[0].Result)
	assert.Equal(t, "mock: JavaScript有什么优势？", trace.Results[1].Result)
}

// TestPipeline_E2E_UnknownQueryUsesDefaultStrategy checks that a query the
// rules do not know is processed unsplit with no_rag.
func TestPipeline_E2E_UnknownQueryUsesDefaultStrategy(t *testing.T) {
	h := newHarness(t)

	trace, err := h.pipeline.ProcessTrace(testContext(t), "今天星期几", nil)
	require.NoError(t, err)
	require.Len(t, trace.Results, 1)
	assert.Equal(t, []string{"今天星期几"}, trace.Subqueries)
	assert.Equal(t, orchestrator.DefaultStrategy, trace.Results[0].Strategy)
	assert.Equal(t, "mock: 今天星期几", trace.Results[0].Result)
}

// TestPipeline_E2E_NaiveIndexThenQuery indexes a document and checks that
// naive_rag retrieves it for the prompt.
func TestPipeline_E2E_NaiveIndexThenQuery(t *testing.T) {
	h := newHarness(t)
	ctx := testContext(t)

	ok, err := h.registry.BuildIndex(ctx, orchestrator.NaiveRAG, []string{"上海的GDP在2023年约为4.7万亿元。"}, nil)
	require.NoError(t, err)
	require.True(t, ok)

	_, err = h.pipeline.Process(ctx, "北京的天气如何以及上海的GDP是多少？", nil)
	require.NoError(t, err)

	var found bool
	for _, p := range h.llm.Prompts() {
		if strings.Contains(p, "4.7万亿") && strings.Contains(p, "Query: 上海的GDP是多少？") {
			found = true
		}
	}
	assert.True(t, found, "the indexed document should be in the naive_rag prompt")
}

// TestPipeline_E2E_GraphIndexThenQuery builds a graph index from documents
// and queries it.
func TestPipeline_E2E_GraphIndexThenQuery(t *testing.T) {
	h := newHarness(t)
	ctx := testContext(t)
	dataPath := t.TempDir()

	ok, err := h.registry.BuildIndex(ctx, orchestrator.GraphRAG,
		[]string{"华盛顿是美国的首都。"},
		map[string]any{graphrag.ContextDataPath: dataPath},
	)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Empty(t, graph.MissingFiles(dataPath))

	trace, err := h.pipeline.ProcessTrace(ctx, "谁是美国总统且美国首都在哪里？",
		orchestrator.Context{graphrag.ContextDataPath: dataPath})
	require.NoError(t, err)
	require.Len(t, trace.Results, 2)
	assert.Equal(t, "mock: 美国首都在哪里？", trace.Results[1].Result)
}

// TestPipeline_E2E_RemoteGraphBackend serves graph_rag as an A2A backend
// agent and routes to it through the remote backend.
func TestPipeline_E2E_RemoteGraphBackend(t *testing.T) {
	h := newHarness(t)

	srv := httptest.NewServer(agent.NewBackendAgent(orchestrator.GraphRAG, h.backends[orchestrator.GraphRAG]).Server().Handler())
	defer srv.Close()

	reg := orchestrator.NewRegistry()
	reg.Register(orchestrator.NoRAG, h.backends[orchestrator.NoRAG])
	reg.Register(orchestrator.NaiveRAG, h.backends[orchestrator.NaiveRAG])
	reg.Register(orchestrator.GraphRAG, remote.New(a2a.NewHTTPClient(), srv.URL))

	p := orchestrator.NewPipeline(h.decomposer, h.router, reg)

	trace, err := p.ProcessTrace(testContext(t), "谁是美国总统且美国首都在哪里？", graphContext())
	require.NoError(t, err)
	require.Len(t, trace.Results, 2)
	assert.NoError(t, trace.Results[1].Err)
	assert.Equal(t, "mock: 美国首都在哪里？", trace.Results[1].Result)
}

// TestPipeline_E2E_PipelineAgent sends a query to the pipeline served as an
// A2A agent.
func TestPipeline_E2E_PipelineAgent(t *testing.T) {
	h := newHarness(t)

	srv := httptest.NewServer(agent.NewPipelineAgent(h.pipeline).Server().Handler())
	defer srv.Close()

	client := a2a.NewHTTPClient()
	ctx := testContext(t)

	card, err := client.DiscoverAgent(ctx, srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "queryroute", card.Name)

	data, err := a2a.DataPart(map[string]any{graphrag.ContextDataPath: graphDataPath()})
	require.NoError(t, err)
	task, err := client.SendMessage(ctx, srv.URL, a2a.SendMessageRequest{
		Message: a2a.NewUserMessage(a2a.TextPart("谁是美国总统且美国首都在哪里？"), data),
	})
	require.NoError(t, err)
	assert.Equal(t, a2a.TaskStateCompleted, task.Status.State)
	assert.Contains(t, task.Text(), "Result: mock: 谁是美国总统？")
	assert.Contains(t, task.Text(), "Result: mock: 美国首都在哪里？")
}
