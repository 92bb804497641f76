// Package graphrag answers sub-queries from a knowledge-graph index: the
// entities, relationships, community reports and text units written under
// <data_path>/output.
package graphrag

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/dusk-indust/queryroute/internal/config"
	"github.com/dusk-indust/queryroute/internal/graph"
	"github.com/dusk-indust/queryroute/internal/llm"
	"github.com/dusk-indust/queryroute/internal/orchestrator"
	"github.com/dusk-indust/queryroute/internal/textsplit"
)

// Compile-time interface checks.
var (
	_ orchestrator.Backend      = (*Backend)(nil)
	_ orchestrator.IndexBuilder = (*Backend)(nil)
)

// Context keys read by Execute and BuildIndex.
const (
	ContextSearchMode = "search_mode"
	ContextDataPath   = "data_path"
)

// LocalSearch is the only supported search mode.
const LocalSearch = "local"

// MissingDataPathText is the answer when no index location is known.
const MissingDataPathText = "错误：需要提供包含已索引数据的路径。请在context中指定'data_path'参数。"

// UnsupportedModeText is the answer for search modes other than local.
func UnsupportedModeText(query string) string {
	return fmt.Sprintf("当前仅支持本地搜索模式。查询: %s", query)
}

// StoreOpener returns an empty store for the index under dataPath.
type StoreOpener func(dataPath string) (graph.Store, error)

// Backend is the graph_rag strategy. Loaded indexes are kept per data path
// until BuildIndex rewrites them or the backend is closed. A replaced index
// is closed once the searches still reading it finish.
type Backend struct {
	client      llm.ChatClient
	open        StoreOpener
	splitter    textsplit.Splitter
	dataPath    string
	searchMode  string
	topK        int
	maxTokens   int
	temperature float64
	logger      *zap.Logger

	mu      sync.Mutex
	indexes map[string]*loadedIndex
}

// loadedIndex counts the searches reading a store. A retired store is
// closed when the count drops to zero.
type loadedIndex struct {
	store   graph.Store
	readers int
	retired bool
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

// WithStoreOpener overrides how loaded indexes are held. The default follows
// graph_rag.store.
func WithStoreOpener(open StoreOpener) Option {
	return func(b *Backend) {
		if open != nil {
			b.open = open
		}
	}
}

// WithSplitter overrides the chunker used to cut documents into text units.
func WithSplitter(s textsplit.Splitter) Option {
	return func(b *Backend) {
		if s != nil {
			b.splitter = s
		}
	}
}

// New creates a graph_rag backend.
func New(client llm.ChatClient, cfg config.BackendConfig, opts ...Option) *Backend {
	b := &Backend{
		client:      client,
		dataPath:    cfg.DataPath,
		searchMode:  cfg.SearchMode,
		topK:        cfg.TopK,
		maxTokens:   cfg.MaxTokens,
		temperature: cfg.Temperature,
		logger:      zap.NewNop(),
		indexes:     make(map[string]*loadedIndex),
	}
	if b.searchMode == "" {
		b.searchMode = LocalSearch
	}
	if b.topK < 1 {
		b.topK = 5
	}
	b.open = func(dataPath string) (graph.Store, error) {
		c := cfg
		c.DataPath = dataPath
		return graph.Open(c)
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.splitter == nil {
		b.splitter = textsplit.ForName(cfg.Splitter, cfg.ChunkSize, cfg.ChunkOverlap)
	}
	return b
}

// Execute runs a local search over the index at Context["data_path"] (or
// graph_rag.data_path) and asks the model over the assembled context. A
// missing data path or an unsupported search mode is answered with an
// explanatory text, not an error.
func (b *Backend) Execute(ctx context.Context, query string, c orchestrator.Context) (string, error) {
	mode := contextString(c, ContextSearchMode, b.searchMode)
	dataPath := contextString(c, ContextDataPath, b.dataPath)

	if dataPath == "" {
		return MissingDataPathText, nil
	}
	if mode != LocalSearch {
		return UnsupportedModeText(query), nil
	}

	idx, err := b.acquire(ctx, dataPath)
	if err != nil {
		return "", err
	}
	defer b.release(idx)
	store := idx.store

	sc, err := BuildSearchContext(ctx, store, query, b.topK)
	if err != nil {
		return "", fmt.Errorf("graphrag: search: %w", err)
	}
	b.logger.Debug("graphrag: local search",
		zap.String("query", query),
		zap.Int("entities", len(sc.Entities)),
		zap.Int("relationships", len(sc.Relationships)),
		zap.Int("reports", len(sc.Reports)),
		zap.Int("sources", len(sc.Sources)),
	)

	out, err := b.client.Complete(ctx, llm.Request{
		System:      llm.FormatPrompt(LocalSearchPrompt, map[string]string{"context_data": sc.String()}),
		Prompt:      query,
		MaxTokens:   b.maxTokens,
		Temperature: b.temperature,
	})
	if err != nil {
		return "", fmt.Errorf("graphrag: answer: %w", err)
	}
	return strings.TrimSpace(out), nil
}

// acquire returns the loaded index for dataPath, loading it on first use.
// Callers must release it when done reading.
func (b *Backend) acquire(ctx context.Context, dataPath string) (*loadedIndex, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if idx, ok := b.indexes[dataPath]; ok {
		idx.readers++
		return idx, nil
	}

	s, err := b.open(dataPath)
	if err != nil {
		return nil, fmt.Errorf("graphrag: open store: %w", err)
	}
	if err := graph.LoadDir(ctx, dataPath, s); err != nil {
		s.Close()
		return nil, fmt.Errorf("graphrag: load index: %w", err)
	}
	idx := &loadedIndex{store: s, readers: 1}
	b.indexes[dataPath] = idx
	b.logger.Info("graphrag: index loaded", zap.String("data_path", dataPath))
	return idx, nil
}

func (b *Backend) release(idx *loadedIndex) {
	b.mu.Lock()
	defer b.mu.Unlock()
	idx.readers--
	if idx.retired && idx.readers == 0 {
		idx.store.Close()
	}
}

// retire drops idx from the cache. Its store closes now if unused, otherwise
// on the last release. b.mu must be held.
func (b *Backend) retire(dataPath string, idx *loadedIndex) {
	delete(b.indexes, dataPath)
	idx.retired = true
	if idx.readers == 0 {
		idx.store.Close()
	}
}

// forget drops the cached store for dataPath.
func (b *Backend) forget(dataPath string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if idx, ok := b.indexes[dataPath]; ok {
		b.retire(dataPath, idx)
	}
}

// Close releases every loaded index.
func (b *Backend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for path, idx := range b.indexes {
		b.retire(path, idx)
	}
	return nil
}

func contextString(c orchestrator.Context, key, def string) string {
	if v, ok := c[key].(string); ok && v != "" {
		return v
	}
	return def
}
