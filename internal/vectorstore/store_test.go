package vectorstore

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dusk-indust/queryroute/internal/config"
)

func sampleDocs() []Document {
	return []Document{
		{ID: "a", Text: "north", Embedding: []float32{0, 1}, Metadata: map[string]any{"source": "x.txt"}},
		{ID: "b", Text: "east", Embedding: []float32{1, 0}},
		{ID: "c", Text: "north-east", Embedding: []float32{1, 1}},
	}
}

// exerciseStore runs the shared Store contract against s.
func exerciseStore(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()

	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	hits, err := s.Search(ctx, []float32{1, 0}, 3)
	require.NoError(t, err)
	assert.Empty(t, hits)

	require.NoError(t, s.Add(ctx, sampleDocs()))
	n, err = s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	hits, err = s.Search(ctx, []float32{0, 1}, 2)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, "a", hits[0].ID)
	assert.Equal(t, "c", hits[1].ID)
	assert.InDelta(t, 1.0, hits[0].Score, 1e-6)
	assert.Equal(t, "x.txt", hits[0].Metadata["source"])

	// Re-adding an ID replaces the document.
	require.NoError(t, s.Add(ctx, []Document{{ID: "b", Text: "due east", Embedding: []float32{1, 0}}}))
	n, err = s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	hits, err = s.Search(ctx, []float32{1, 0}, 1)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "due east", hits[0].Text)
}

func TestMemStore(t *testing.T) {
	s := NewMemStore()
	defer s.Close()
	exerciseStore(t, s)
}

func TestSQLStore_SQLite(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "chunks.db")

	s, err := OpenSQLStore(ctx, "sqlite", path)
	require.NoError(t, err)
	exerciseStore(t, s)
	require.NoError(t, s.Close())

	// Documents survive a reopen.
	s, err = OpenSQLStore(ctx, "sqlite", path)
	require.NoError(t, err)
	defer s.Close()
	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestOpen(t *testing.T) {
	ctx := context.Background()

	s, err := Open(ctx, config.BackendConfig{Store: "memory"})
	require.NoError(t, err)
	assert.IsType(t, &MemStore{}, s)

	s, err = Open(ctx, config.BackendConfig{Store: "sqlite", DSN: filepath.Join(t.TempDir(), "v.db")})
	require.NoError(t, err)
	assert.IsType(t, &SQLStore{}, s)
	require.NoError(t, s.Close())

	_, err = Open(ctx, config.BackendConfig{Store: "milvus"})
	assert.Error(t, err)
}

func TestRank_KeepsInsertionOrderOnTies(t *testing.T) {
	docs := []Document{
		{ID: "1", Embedding: []float32{1, 0}},
		{ID: "2", Embedding: []float32{2, 0}},
		{ID: "3", Embedding: []float32{0, 1}},
	}
	hits := rank(docs, []float32{1, 0}, 0)
	require.Len(t, hits, 3)
	assert.Equal(t, []string{"1", "2", "3"}, []string{hits[0].ID, hits[1].ID, hits[2].ID})
}
