// Package naiverag answers sub-queries from a vector index: chunk, embed,
// store, retrieve the top_k chunks and ask the model over them.
package naiverag

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"go.uber.org/zap"

	"github.com/dusk-indust/queryroute/internal/config"
	"github.com/dusk-indust/queryroute/internal/embed"
	"github.com/dusk-indust/queryroute/internal/llm"
	"github.com/dusk-indust/queryroute/internal/orchestrator"
	"github.com/dusk-indust/queryroute/internal/textsplit"
	"github.com/dusk-indust/queryroute/internal/vectorstore"
)

// Compile-time interface checks.
var (
	_ orchestrator.Backend      = (*Backend)(nil)
	_ orchestrator.IndexBuilder = (*Backend)(nil)
)

// SampleDocument is indexed when a query arrives and the store is empty.
const SampleDocument = "这是一个示例文档，用于演示Naive RAG功能。"

// ContextDocuments is the Context key holding documents to index before the
// query runs.
const ContextDocuments = "documents"

// AnswerPrompt is the template used to answer over retrieved chunks.
const AnswerPrompt = `Context information is below.
---------------------
{context}
---------------------
Given the context information and not prior knowledge, answer the query.
Query: {query}
Answer: `

// chunkNamespace scopes the deterministic chunk IDs.
var chunkNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("queryroute/naive_rag"))

// Backend is the naive_rag strategy.
type Backend struct {
	client      llm.ChatClient
	embedder    embed.Embedder
	store       vectorstore.Store
	splitter    textsplit.Splitter
	topK        int
	maxTokens   int
	temperature float64
	logger      *zap.Logger
}

// Option configures a Backend.
type Option func(*Backend)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(b *Backend) {
		if l != nil {
			b.logger = l
		}
	}
}

// WithSplitter overrides the chunker built from chunk_size and chunk_overlap.
func WithSplitter(s textsplit.Splitter) Option {
	return func(b *Backend) {
		if s != nil {
			b.splitter = s
		}
	}
}

// New creates a naive_rag backend. The backend does not own store; the
// caller closes it.
func New(client llm.ChatClient, embedder embed.Embedder, store vectorstore.Store, cfg config.BackendConfig, opts ...Option) *Backend {
	b := &Backend{
		client:      client,
		embedder:    embedder,
		store:       store,
		topK:        cfg.TopK,
		maxTokens:   cfg.MaxTokens,
		temperature: cfg.Temperature,
		logger:      zap.NewNop(),
	}
	if b.topK < 1 {
		b.topK = 5
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.splitter == nil {
		b.splitter = textsplit.ForName(cfg.Splitter, cfg.ChunkSize, cfg.ChunkOverlap)
	}
	return b
}

// Execute indexes any documents carried in c, falls back to the sample
// document when the store is empty, then answers query over the top_k
// chunks.
func (b *Backend) Execute(ctx context.Context, query string, c orchestrator.Context) (string, error) {
	for _, doc := range Documents(c) {
		if err := b.AddDocument(ctx, doc, nil); err != nil {
			return "", err
		}
	}

	n, err := b.store.Count(ctx)
	if err != nil {
		return "", fmt.Errorf("naiverag: count: %w", err)
	}
	if n == 0 {
		b.logger.Info("naiverag: no documents indexed, using sample document")
		if err := b.AddDocument(ctx, SampleDocument, map[string]any{"sample": true}); err != nil {
			return "", err
		}
	}

	hits, err := b.Retrieve(ctx, query)
	if err != nil {
		return "", err
	}

	out, err := b.client.Complete(ctx, llm.Request{
		Prompt:      BuildPrompt(query, hits),
		MaxTokens:   b.maxTokens,
		Temperature: b.temperature,
	})
	if err != nil {
		return "", fmt.Errorf("naiverag: answer: %w", err)
	}
	return strings.TrimSpace(out), nil
}

// Retrieve returns the top_k chunks most similar to query.
func (b *Backend) Retrieve(ctx context.Context, query string) ([]vectorstore.Hit, error) {
	vecs, err := b.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("naiverag: embed query: %w", err)
	}
	if len(vecs) != 1 {
		return nil, fmt.Errorf("naiverag: embed query: got %d vectors", len(vecs))
	}
	hits, err := b.store.Search(ctx, vecs[0], b.topK)
	if err != nil {
		return nil, fmt.Errorf("naiverag: search: %w", err)
	}
	return hits, nil
}

// AddDocument chunks, embeds and stores text. Chunk IDs derive from the
// chunk text, so adding the same document twice does not duplicate it.
func (b *Backend) AddDocument(ctx context.Context, text string, metadata map[string]any) error {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	chunks := b.splitter.Split(text)
	if len(chunks) == 0 {
		return nil
	}

	vecs, err := b.embedder.Embed(ctx, chunks)
	if err != nil {
		return fmt.Errorf("naiverag: embed: %w", err)
	}
	if len(vecs) != len(chunks) {
		return fmt.Errorf("naiverag: embed: got %d vectors for %d chunks", len(vecs), len(chunks))
	}

	docs := make([]vectorstore.Document, len(chunks))
	for i, chunk := range chunks {
		meta := make(map[string]any, len(metadata)+1)
		for k, v := range metadata {
			meta[k] = v
		}
		meta["chunk_index"] = i
		docs[i] = vectorstore.Document{
			ID:        uuid.NewSHA1(chunkNamespace, []byte(chunk)).String(),
			Text:      chunk,
			Metadata:  meta,
			Embedding: vecs[i],
		}
	}
	if err := b.store.Add(ctx, docs); err != nil {
		return fmt.Errorf("naiverag: store: %w", err)
	}
	return nil
}

// BuildIndex adds every entry of data, sharing metadata. Failures are
// collected and logged; the result is false if any document failed.
func (b *Backend) BuildIndex(ctx context.Context, data []string, metadata map[string]any) bool {
	var result *multierror.Error
	for i, text := range data {
		if err := b.AddDocument(ctx, text, metadata); err != nil {
			result = multierror.Append(result, fmt.Errorf("document %d: %w", i, err))
			if errors.Is(err, context.Canceled) {
				break
			}
		}
	}
	if err := result.ErrorOrNil(); err != nil {
		b.logger.Error("naiverag: build index failed", zap.Int("documents", len(data)), zap.Error(err))
		return false
	}
	b.logger.Info("naiverag: index built", zap.Int("documents", len(data)))
	return true
}

// Documents extracts the texts of Context["documents"]. Entries may be
// strings or maps with a "text" field; anything else is skipped.
func Documents(c orchestrator.Context) []string {
	raw, ok := c[ContextDocuments]
	if !ok {
		return nil
	}
	switch docs := raw.(type) {
	case []string:
		return docs
	case []any:
		out := make([]string, 0, len(docs))
		for _, d := range docs {
			switch v := d.(type) {
			case string:
				out = append(out, v)
			case map[string]any:
				if text, ok := v["text"].(string); ok {
					out = append(out, text)
				}
			}
		}
		return out
	default:
		return nil
	}
}

// BuildPrompt formats AnswerPrompt with the retrieved chunk texts.
func BuildPrompt(query string, hits []vectorstore.Hit) string {
	texts := make([]string, len(hits))
	for i, h := range hits {
		texts[i] = h.Text
	}
	return llm.FormatPrompt(AnswerPrompt, map[string]string{
		"context": strings.Join(texts, "\n\n"),
		"query":   query,
	})
}
