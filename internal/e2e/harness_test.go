//go:build e2e

package e2e

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dusk-indust/queryroute/internal/backend/graphrag"
	"github.com/dusk-indust/queryroute/internal/backend/naiverag"
	"github.com/dusk-indust/queryroute/internal/backend/norag"
	"github.com/dusk-indust/queryroute/internal/config"
	"github.com/dusk-indust/queryroute/internal/decomposer"
	"github.com/dusk-indust/queryroute/internal/embed"
	"github.com/dusk-indust/queryroute/internal/llm"
	"github.com/dusk-indust/queryroute/internal/orchestrator"
	"github.com/dusk-indust/queryroute/internal/router"
	"github.com/dusk-indust/queryroute/internal/textsplit"
	"github.com/dusk-indust/queryroute/internal/vectorstore"
)

// rulesPath is the rule file shared by the rule-based decomposer and router.
func rulesPath() string {
	return filepath.Join("..", "..", "testdata", "rules.yml")
}

// graphDataPath is the checked-in graph_rag index.
func graphDataPath() string {
	return filepath.Join("..", "..", "testdata", "graphrag")
}

// extractionReply is what the fake model answers to an extraction prompt.
const extractionReply = `{"entities": [
  {"name": "美国", "type": "geo", "description": "北美洲国家"},
  {"name": "华盛顿", "type": "geo", "description": "美国首都"}
], "relationships": [
  {"source": "华盛顿", "target": "美国", "description": "华盛顿是美国的首都", "weight": 2}
]}`

// fakeLLM is an OpenAI-compatible endpoint. It answers "mock: <query>" where
// the query is taken from the "Query:" line of the prompt, or the whole
// prompt when there is none, and records every request.
type fakeLLM struct {
	srv *httptest.Server

	mu      sync.Mutex
	systems []string
	prompts []string
}

func newFakeLLM(t *testing.T) *fakeLLM {
	t.Helper()
	f := &fakeLLM{}
	f.srv = httptest.NewServer(http.HandlerFunc(f.handle))
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeLLM) handle(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/v1/chat/completions" {
		http.NotFound(w, r)
		return
	}
	var body struct {
		Messages []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"messages"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var system, prompt string
	for _, m := range body.Messages {
		switch m.Role {
		case "system":
			system = m.Content
		case "user":
			prompt = m.Content
		}
	}
	f.mu.Lock()
	f.systems = append(f.systems, system)
	f.prompts = append(f.prompts, prompt)
	f.mu.Unlock()

	reply := "mock: " + queryOf(prompt)
	if strings.HasPrefix(prompt, "Identify all entities") {
		reply = extractionReply
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"id":      "chatcmpl-e2e",
		"object":  "chat.completion",
		"created": 0,
		"model":   "mock",
		"choices": []map[string]any{{
			"index":         0,
			"finish_reason": "stop",
			"message":       map[string]any{"role": "assistant", "content": reply},
		}},
	})
}

func queryOf(prompt string) string {
	i := strings.LastIndex(prompt, "Query: ")
	if i < 0 {
		return strings.TrimSpace(prompt)
	}
	rest := prompt[i+len("Query: "):]
	if j := strings.IndexByte(rest, '\n'); j >= 0 {
		rest = rest[:j]
	}
	return strings.TrimSpace(rest)
}

// Systems returns the recorded system prompts.
func (f *fakeLLM) Systems() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.systems...)
}

// Prompts returns the recorded user prompts.
func (f *fakeLLM) Prompts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.prompts...)
}

// harness is a pipeline wired like the CLI wires it, with every model
// endpoint pointed at a fakeLLM and the rule-based decomposer and router.
type harness struct {
	llm *fakeLLM
	cfg *config.Config

	decomposer orchestrator.Decomposer
	router     orchestrator.Router
	backends   map[orchestrator.StrategyName]orchestrator.Backend
	registry   *orchestrator.Registry
	pipeline   *orchestrator.Pipeline
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	fake := newFakeLLM(t)
	cfg := config.Default()
	for _, m := range []*config.ModelConfig{&cfg.NoRAG.ModelConfig, &cfg.NaiveRAG.ModelConfig, &cfg.GraphRAG.ModelConfig} {
		m.APIURL = fake.srv.URL + "/v1"
		m.APIKey = "sk-e2e"
	}
	cfg.Retry.Attempts = 1
	cfg.NaiveRAG.EmbeddingModel = embed.HashModel
	cfg.Rules.Decompositions = rulesPath()
	cfg.Rules.Routes = rulesPath()
	require.NoError(t, cfg.Validate())

	rules, err := decomposer.LoadRuleFile(rulesPath())
	require.NoError(t, err)

	client := func(m config.ModelConfig) llm.ChatClient {
		c, err := llm.New(m, cfg.Retry)
		require.NoError(t, err)
		return c
	}

	// Rune splitting keeps the tests independent of the tokenizer download.
	splitter := textsplit.NewRuneSplitter(cfg.NaiveRAG.ChunkSize, cfg.NaiveRAG.ChunkOverlap)

	store := vectorstore.NewMemStore()
	graphBackend := graphrag.New(client(cfg.GraphRAG.ModelConfig), cfg.GraphRAG, graphrag.WithSplitter(splitter))
	t.Cleanup(func() { _ = graphBackend.Close() })

	naiveBackend := naiverag.New(client(cfg.NaiveRAG.ModelConfig), embed.New(cfg.NaiveRAG), store, cfg.NaiveRAG,
		naiverag.WithSplitter(splitter),
	)

	h := &harness{
		llm:        fake,
		cfg:        cfg,
		decomposer: decomposer.NewRuleDecomposer(rules.Decompositions),
		router:     router.NewRuleRouter(rules.Routes),
		registry:   orchestrator.NewRegistry(),
	}
	h.backends = map[orchestrator.StrategyName]orchestrator.Backend{
		orchestrator.NoRAG:    norag.New(client(cfg.NoRAG.ModelConfig), cfg.NoRAG),
		orchestrator.NaiveRAG: naiveBackend,
		orchestrator.GraphRAG: graphBackend,
	}
	for name, b := range h.backends {
		h.registry.Register(name, b)
	}
	h.pipeline = orchestrator.NewPipeline(h.decomposer, h.router, h.registry,
		orchestrator.WithOptions(orchestrator.Options{Concurrency: cfg.Pipeline.Concurrency}),
	)
	return h
}

// graphContext points graph_rag at the checked-in index.
func graphContext() orchestrator.Context {
	return orchestrator.Context{graphrag.ContextDataPath: graphDataPath()}
}
