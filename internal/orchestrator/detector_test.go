package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dusk-indust/queryroute/internal/a2a"
)

func agentCardServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/.well-known/agent-card.json", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(a2a.AgentCard{Name: "graph-agent", Version: "dev"})
	})
	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)
	return ts
}

func TestDetector_AllEnabled_Full(t *testing.T) {
	d := NewDefaultDetector(StrategyFlags{NaiveRAG: true, GraphRAG: true}, nil, nil, nil)

	caps, err := d.Detect(context.Background())
	require.NoError(t, err)

	assert.Equal(t, CapFull, caps.Level)
	assert.Equal(t, []StrategyName{GraphRAG, NaiveRAG, NoRAG}, caps.Available)
	assert.Empty(t, caps.Unavailable)
}

func TestDetector_DisabledFlags_DirectOnly(t *testing.T) {
	d := NewDefaultDetector(StrategyFlags{}, nil, nil, nil)

	caps, err := d.Detect(context.Background())
	require.NoError(t, err)

	assert.Equal(t, CapDirect, caps.Level)
	assert.Equal(t, []StrategyName{NoRAG}, caps.Available)
	assert.Contains(t, caps.Unavailable, NaiveRAG)
	assert.Contains(t, caps.Unavailable, GraphRAG)
	assert.True(t, caps.Has(NoRAG))
	assert.False(t, caps.Has(GraphRAG))
}

func TestDetector_GraphStoreUnavailable_ReportsReason(t *testing.T) {
	flags := StrategyFlags{NaiveRAG: true, GraphRAG: true, GraphStoreErr: errors.New("kuzu store requires cgo")}
	d := NewDefaultDetector(flags, nil, nil, nil)

	caps, err := d.Detect(context.Background())
	require.NoError(t, err)

	assert.Equal(t, CapVector, caps.Level)
	assert.Equal(t, "kuzu store requires cgo", caps.Unavailable[GraphRAG])
}

func TestDetector_RemoteAgentReachable(t *testing.T) {
	ts := agentCardServer(t)
	client := a2a.NewHTTPClient(a2a.WithTimeout(time.Second))
	remotes := map[StrategyName]string{GraphRAG: ts.URL}

	d := NewDefaultDetector(StrategyFlags{NaiveRAG: true}, remotes, client, nil)
	caps, err := d.Detect(context.Background())
	require.NoError(t, err)

	assert.Equal(t, ts.URL, caps.Remote[GraphRAG])
	assert.NotContains(t, caps.Unavailable, GraphRAG)
	assert.True(t, caps.Has(GraphRAG))
	assert.Equal(t, CapFull, caps.Level)
}

func TestDetector_RemoteAgentUnreachable(t *testing.T) {
	client := a2a.NewHTTPClient(a2a.WithTimeout(200 * time.Millisecond))
	remotes := map[StrategyName]string{"web_rag": "http://127.0.0.1:1"}

	d := NewDefaultDetector(StrategyFlags{}, remotes, client, nil)
	caps, err := d.Detect(context.Background())
	require.NoError(t, err)

	assert.Empty(t, caps.Remote)
	assert.Contains(t, caps.Unavailable["web_rag"], "unreachable")
}

func TestCapabilityLevel_String(t *testing.T) {
	assert.Equal(t, "direct", CapDirect.String())
	assert.Equal(t, "vector", CapVector.String())
	assert.Equal(t, "graph", CapGraph.String())
	assert.Equal(t, "full", CapFull.String())
	assert.Equal(t, "unknown", CapabilityLevel(42).String())
}
