package router

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/dusk-indust/queryroute/internal/config"
	"github.com/dusk-indust/queryroute/internal/llm"
	"github.com/dusk-indust/queryroute/internal/metrics"
	"github.com/dusk-indust/queryroute/internal/orchestrator"
)

// Compile-time interface check.
var _ orchestrator.Router = (*LLMRouter)(nil)

// LLMRouter asks a language model which strategy suits a sub-query.
type LLMRouter struct {
	client      llm.ChatClient
	prompt      string
	maxTokens   int
	temperature float64
	logger      *zap.Logger
}

// Option configures an LLMRouter.
type Option func(*LLMRouter)

// WithLogger sets the logger used for fallback warnings.
func WithLogger(l *zap.Logger) Option {
	return func(r *LLMRouter) {
		if l != nil {
			r.logger = l
		}
	}
}

// NewLLMRouter creates a router from the router config section.
func NewLLMRouter(client llm.ChatClient, cfg config.ModelConfig, opts ...Option) *LLMRouter {
	r := &LLMRouter{
		client:      client,
		prompt:      cfg.Prompt,
		maxTokens:   cfg.MaxTokens,
		temperature: cfg.Temperature,
		logger:      zap.NewNop(),
	}
	if r.prompt == "" {
		r.prompt = config.DefaultRouterPrompt
	}
	if r.maxTokens == 0 {
		r.maxTokens = 20
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Route never fails: transport errors, panics in the client and
// unrecognized replies all yield the default strategy.
func (r *LLMRouter) Route(ctx context.Context, subquery string) (strategy orchestrator.StrategyName) {
	defer func() {
		if p := recover(); p != nil {
			r.fallback(subquery, "panic", fmt.Errorf("%w: %v", orchestrator.ErrTransport, p))
			strategy = orchestrator.DefaultStrategy
		}
	}()

	out, err := r.client.Complete(ctx, llm.Request{
		Prompt:      llm.FormatPrompt(r.prompt, map[string]string{"sub_query": subquery}),
		MaxTokens:   r.maxTokens,
		Temperature: r.temperature,
	})
	if err != nil {
		r.fallback(subquery, "transport", err)
		return orchestrator.DefaultStrategy
	}

	name, ok := Classify(out)
	if !ok {
		r.fallback(subquery, "unrecognized", fmt.Errorf("%w: %q", orchestrator.ErrUnrecognizedStrategy, out))
	}
	return name
}

func (r *LLMRouter) fallback(subquery, reason string, err error) {
	metrics.IncRouterFallback(reason)
	r.logger.Warn("router: falling back to default strategy",
		zap.String("subquery", subquery),
		zap.String("reason", reason),
		zap.Stringer("strategy", orchestrator.DefaultStrategy),
		zap.Error(err),
	)
}
