package naiverag

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dusk-indust/queryroute/internal/config"
	"github.com/dusk-indust/queryroute/internal/embed"
	"github.com/dusk-indust/queryroute/internal/llm"
	"github.com/dusk-indust/queryroute/internal/orchestrator"
	"github.com/dusk-indust/queryroute/internal/textsplit"
	"github.com/dusk-indust/queryroute/internal/vectorstore"
)

// promptRecorder is a ChatClient that returns a fixed answer and keeps the
// last prompt.
type promptRecorder struct {
	prompt string
	calls  int
	err    error
}

func (p *promptRecorder) Complete(_ context.Context, req llm.Request) (string, error) {
	p.calls++
	p.prompt = req.Prompt
	if p.err != nil {
		return "", p.err
	}
	return " answer ", nil
}

type failingEmbedder struct{}

func (failingEmbedder) Embed(context.Context, []string) ([][]float32, error) {
	return nil, errors.New("embedding service down")
}

func newBackend(t *testing.T, client llm.ChatClient, e embed.Embedder) (*Backend, *vectorstore.MemStore) {
	t.Helper()
	store := vectorstore.NewMemStore()
	cfg := config.BackendConfig{TopK: 1, ChunkSize: 1000}
	b := New(client, e, store, cfg, WithSplitter(textsplit.NewRuneSplitter(1000, 0)))
	return b, store
}

func TestExecute_SampleDocumentWhenEmpty(t *testing.T) {
	rec := &promptRecorder{}
	b, store := newBackend(t, rec, embed.NewHashEmbedder(64))

	out, err := b.Execute(context.Background(), "什么是RAG？", nil)
	require.NoError(t, err)
	assert.Equal(t, "answer", out)

	n, _ := store.Count(context.Background())
	assert.Equal(t, 1, n)
	assert.Contains(t, rec.prompt, SampleDocument)
	assert.Contains(t, rec.prompt, "Query: 什么是RAG？")
}

func TestExecute_IndexesContextDocuments(t *testing.T) {
	rec := &promptRecorder{}
	b, store := newBackend(t, rec, embed.NewHashEmbedder(256))

	c := orchestrator.Context{ContextDocuments: []any{
		"the capital of france is paris",
		map[string]any{"text": "the president lives in the white house"},
		42,
	}}
	_, err := b.Execute(context.Background(), "where does the president live", c)
	require.NoError(t, err)

	n, _ := store.Count(context.Background())
	assert.Equal(t, 2, n, "only the two text documents are indexed")
	assert.Contains(t, rec.prompt, "white house")
	assert.NotContains(t, rec.prompt, "paris", "top_k is 1")

	// Re-sending the same documents does not duplicate chunks.
	_, err = b.Execute(context.Background(), "where does the president live", c)
	require.NoError(t, err)
	n, _ = store.Count(context.Background())
	assert.Equal(t, 2, n)
}

func TestExecute_LLMError(t *testing.T) {
	b, _ := newBackend(t, &promptRecorder{err: errors.New("503")}, embed.NewHashEmbedder(64))
	_, err := b.Execute(context.Background(), "q", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "naiverag: answer")
}

func TestExecute_EmbedError(t *testing.T) {
	rec := &promptRecorder{}
	b, _ := newBackend(t, rec, failingEmbedder{})
	_, err := b.Execute(context.Background(), "q", nil)
	require.Error(t, err)
	assert.Zero(t, rec.calls)
}

func TestBuildIndex(t *testing.T) {
	b, store := newBackend(t, &promptRecorder{}, embed.NewHashEmbedder(64))

	ok := b.BuildIndex(context.Background(), []string{"doc one", "", "doc two"}, map[string]any{"source": "test"})
	require.True(t, ok)

	n, _ := store.Count(context.Background())
	assert.Equal(t, 2, n)

	hits, err := b.Retrieve(context.Background(), "doc one")
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "test", hits[0].Metadata["source"])
	assert.Equal(t, 0, hits[0].Metadata["chunk_index"])
}

func TestBuildIndex_Failure(t *testing.T) {
	b, _ := newBackend(t, &promptRecorder{}, failingEmbedder{})
	assert.False(t, b.BuildIndex(context.Background(), []string{"a", "b"}, nil))
}

func TestDocuments(t *testing.T) {
	tests := []struct {
		name string
		c    orchestrator.Context
		want []string
	}{
		{"nil context", nil, nil},
		{"absent", orchestrator.Context{"data_path": "x"}, nil},
		{"string slice", orchestrator.Context{ContextDocuments: []string{"a", "b"}}, []string{"a", "b"}},
		{"mixed", orchestrator.Context{ContextDocuments: []any{"a", map[string]any{"text": "b"}, map[string]any{"body": "c"}}}, []string{"a", "b"}},
		{"not a list", orchestrator.Context{ContextDocuments: "a"}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Documents(tt.c))
		})
	}
}
