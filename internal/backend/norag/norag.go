// Package norag answers a sub-query directly from the language model,
// without retrieval.
package norag

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/dusk-indust/queryroute/internal/config"
	"github.com/dusk-indust/queryroute/internal/llm"
	"github.com/dusk-indust/queryroute/internal/orchestrator"
)

// Compile-time interface checks.
var (
	_ orchestrator.Backend          = (*Backend)(nil)
	_ orchestrator.IndexBuilder     = (*Backend)(nil)
	_ orchestrator.FallbackReporter = (*Backend)(nil)
)

// defaultMaxTokens bounds the answer length when the config leaves it unset.
const defaultMaxTokens = 200

// Backend is the no_rag strategy.
type Backend struct {
	client      llm.ChatClient
	maxTokens   int
	temperature float64
	logger      *zap.Logger
}

// Option configures a Backend.
type Option func(*Backend)

// WithLogger sets the logger used for LLM failures.
func WithLogger(l *zap.Logger) Option {
	return func(b *Backend) {
		if l != nil {
			b.logger = l
		}
	}
}

// New creates a no_rag backend answering through client.
func New(client llm.ChatClient, cfg config.BackendConfig, opts ...Option) *Backend {
	b := &Backend{
		client:      client,
		maxTokens:   cfg.MaxTokens,
		temperature: cfg.Temperature,
		logger:      zap.NewNop(),
	}
	if b.maxTokens <= 0 {
		b.maxTokens = defaultMaxTokens
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Execute sends query to the model as a single user message. An LLM failure
// is logged and answered with FallbackText, so Execute never fails.
func (b *Backend) Execute(ctx context.Context, query string, _ orchestrator.Context) (string, error) {
	out, err := b.client.Complete(ctx, llm.Request{
		Prompt:      query,
		MaxTokens:   b.maxTokens,
		Temperature: b.temperature,
	})
	if err != nil {
		b.logger.Error("norag: llm call failed", zap.String("query", query), zap.Error(err))
		return FallbackText(query), nil
	}
	return strings.TrimSpace(out), nil
}

// BuildIndex is a no-op; direct answers need no index.
func (b *Backend) BuildIndex(context.Context, []string, map[string]any) bool {
	return true
}

// IsFallback reports whether answer is the FallbackText for query.
func (b *Backend) IsFallback(query, answer string) bool {
	return answer == FallbackText(query)
}

// FallbackText is the answer returned when the model cannot be reached.
func FallbackText(query string) string {
	return fmt.Sprintf("直接回答: %s", query)
}
