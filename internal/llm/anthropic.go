package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/dusk-indust/queryroute/internal/config"
	"github.com/dusk-indust/queryroute/internal/orchestrator"
)

// Compile-time interface check.
var _ ChatClient = (*AnthropicClient)(nil)

const defaultAnthropicMaxTokens = 1024

// AnthropicClient completes prompts with the Anthropic Messages API.
type AnthropicClient struct {
	inner anthropic.Client
	model anthropic.Model
}

// NewAnthropicClient creates a client for m. When api_key is empty the SDK
// reads ANTHROPIC_API_KEY.
func NewAnthropicClient(m config.ModelConfig) *AnthropicClient {
	opts := []option.RequestOption{
		option.WithMaxRetries(0),
	}
	if m.APIKey != "" {
		opts = append(opts, option.WithAPIKey(m.APIKey))
	}
	if m.APIURL != "" {
		opts = append(opts, option.WithBaseURL(m.APIURL))
	}
	if m.Timeout > 0 {
		opts = append(opts, option.WithRequestTimeout(m.Timeout))
	}

	model := anthropic.Model(m.Model)
	if model == "" || strings.HasPrefix(m.Model, "gpt-") {
		model = anthropic.ModelClaudeSonnet4_20250514
	}
	return &AnthropicClient{
		inner: anthropic.NewClient(opts...),
		model: model,
	}
}

// Complete sends req and concatenates the text blocks of the reply.
func (c *AnthropicClient) Complete(ctx context.Context, req Request) (string, error) {
	maxTokens := int64(req.MaxTokens)
	if maxTokens <= 0 {
		maxTokens = defaultAnthropicMaxTokens
	}

	params := anthropic.MessageNewParams{
		Model:       c.model,
		MaxTokens:   maxTokens,
		Temperature: anthropic.Float(req.Temperature),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(req.Prompt)),
		},
	}
	if req.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.System}}
	}

	resp, err := c.inner.Messages.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("llm: anthropic: %w: %w", orchestrator.ErrTransport, err)
	}

	var out strings.Builder
	for _, block := range resp.Content {
		if variant, ok := block.AsAny().(anthropic.TextBlock); ok {
			out.WriteString(variant.Text)
		}
	}
	return out.String(), nil
}
