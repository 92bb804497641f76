// Package vectorstore holds embedded chunks and answers nearest-neighbour
// queries for the naive_rag backend.
package vectorstore

import (
	"context"
	"sort"

	"github.com/dusk-indust/queryroute/internal/embed"
)

// Document is one embedded chunk.
type Document struct {
	ID        string
	Text      string
	Metadata  map[string]any
	Embedding []float32
}

// Hit is a search result.
type Hit struct {
	Document
	Score float64
}

// Store persists documents and ranks them by cosine similarity.
type Store interface {
	// Add inserts docs, replacing any document with the same ID.
	Add(ctx context.Context, docs []Document) error

	// Search returns up to k documents, most similar first.
	Search(ctx context.Context, query []float32, k int) ([]Hit, error)

	// Count returns the number of stored documents.
	Count(ctx context.Context) (int, error)

	Close() error
}

// rank scores docs against query and keeps the best k. Ties keep insertion
// order.
func rank(docs []Document, query []float32, k int) []Hit {
	hits := make([]Hit, len(docs))
	for i, d := range docs {
		hits[i] = Hit{Document: d, Score: embed.Cosine(query, d.Embedding)}
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	if k > 0 && len(hits) > k {
		hits = hits[:k]
	}
	return hits
}
