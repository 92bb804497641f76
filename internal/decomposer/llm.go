// Package decomposer splits a query into sub-queries, either with a language
// model or from a fixed rule table.
package decomposer

import (
	"context"
	"fmt"
	"strings"

	"github.com/dusk-indust/queryroute/internal/config"
	"github.com/dusk-indust/queryroute/internal/llm"
	"github.com/dusk-indust/queryroute/internal/orchestrator"
)

// Compile-time interface check.
var _ orchestrator.Decomposer = (*LLMDecomposer)(nil)

// LLMDecomposer asks a language model for one sub-query per line.
type LLMDecomposer struct {
	client      llm.ChatClient
	prompt      string
	maxTokens   int
	temperature float64
}

// NewLLMDecomposer creates a decomposer using the prompt and sampling
// settings of the decomposer config section.
func NewLLMDecomposer(client llm.ChatClient, cfg config.ModelConfig) *LLMDecomposer {
	d := &LLMDecomposer{
		client:      client,
		prompt:      cfg.Prompt,
		maxTokens:   cfg.MaxTokens,
		temperature: cfg.Temperature,
	}
	if d.prompt == "" {
		d.prompt = config.DefaultDecomposerPrompt
	}
	if d.maxTokens == 0 {
		d.maxTokens = 200
	}
	return d
}

// Decompose returns the non-blank, trimmed lines of the model's reply.
// Transport failures are returned to the caller.
func (d *LLMDecomposer) Decompose(ctx context.Context, query string) ([]string, error) {
	out, err := d.client.Complete(ctx, llm.Request{
		Prompt:      llm.FormatPrompt(d.prompt, map[string]string{"query": query}),
		MaxTokens:   d.maxTokens,
		Temperature: d.temperature,
	})
	if err != nil {
		return nil, fmt.Errorf("decomposer: %w", err)
	}
	return SplitLines(out), nil
}

// SplitLines splits s on newlines, trims each line and drops blank ones.
func SplitLines(s string) []string {
	var out []string
	for _, line := range strings.Split(s, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			out = append(out, line)
		}
	}
	return out
}
