// Package llm provides the chat completion clients used by the decomposer,
// the router and the strategy backends.
package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/dusk-indust/queryroute/internal/config"
)

// Request is a single-turn chat completion request.
type Request struct {
	System      string
	Prompt      string
	MaxTokens   int
	Temperature float64
}

// ChatClient completes a prompt.
type ChatClient interface {
	Complete(ctx context.Context, req Request) (string, error)
}

// ChatFunc adapts a function to ChatClient.
type ChatFunc func(ctx context.Context, req Request) (string, error)

// Complete calls f.
func (f ChatFunc) Complete(ctx context.Context, req Request) (string, error) {
	return f(ctx, req)
}

// New builds the client for a model section and wraps it with the retry
// policy.
func New(m config.ModelConfig, r config.RetryConfig) (ChatClient, error) {
	var client ChatClient
	switch strings.ToLower(m.Provider) {
	case "", "openai":
		client = NewOpenAIClient(m)
	case "anthropic":
		client = NewAnthropicClient(m)
	default:
		return nil, fmt.Errorf("llm: unknown provider %q", m.Provider)
	}
	return WithRetry(client, r.Attempts, r.Delay), nil
}

// FormatPrompt substitutes {name} placeholders in template.
func FormatPrompt(template string, vars map[string]string) string {
	pairs := make([]string, 0, len(vars)*2)
	for k, v := range vars {
		pairs = append(pairs, "{"+k+"}", v)
	}
	return strings.NewReplacer(pairs...).Replace(template)
}
