package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"

	"github.com/dusk-indust/queryroute/internal/config"
	"github.com/dusk-indust/queryroute/internal/orchestrator"
)

// Compile-time interface check.
var _ ChatClient = (*OpenAIClient)(nil)

// OpenAIClient talks to any OpenAI-compatible chat completions endpoint.
type OpenAIClient struct {
	inner openai.Client
	model string
}

// NewOpenAIClient creates a client for m. The configured api_url may be the
// full chat completions URL; the SDK appends that path itself, so it is
// trimmed to the base.
func NewOpenAIClient(m config.ModelConfig) *OpenAIClient {
	opts := []option.RequestOption{
		option.WithMaxRetries(0),
	}
	if m.APIKey != "" {
		opts = append(opts, option.WithAPIKey(m.APIKey))
	}
	if base := BaseURL(m.APIURL); base != "" {
		opts = append(opts, option.WithBaseURL(base))
	}
	if m.Timeout > 0 {
		opts = append(opts, option.WithRequestTimeout(m.Timeout))
	}
	return &OpenAIClient{
		inner: openai.NewClient(opts...),
		model: m.Model,
	}
}

// BaseURL strips a trailing /chat/completions or /embeddings from url and
// ensures a trailing slash. An empty url stays empty.
func BaseURL(url string) string {
	url = strings.TrimSpace(url)
	if url == "" {
		return ""
	}
	url = strings.TrimRight(url, "/")
	for _, suffix := range []string{"/chat/completions", "/embeddings"} {
		url = strings.TrimSuffix(url, suffix)
	}
	return url + "/"
}

// Complete sends req as one user message.
func (c *OpenAIClient) Complete(ctx context.Context, req Request) (string, error) {
	var messages []openai.ChatCompletionMessageParamUnion
	if req.System != "" {
		messages = append(messages, openai.SystemMessage(req.System))
	}
	messages = append(messages, openai.UserMessage(req.Prompt))

	params := openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(c.model),
		Messages:    messages,
		Temperature: openai.Float(req.Temperature),
	}
	if req.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(req.MaxTokens))
	}

	resp, err := c.inner.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("llm: openai: %w: %w", orchestrator.ErrTransport, err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("llm: openai: %w: empty choices", orchestrator.ErrTransport)
	}
	return resp.Choices[0].Message.Content, nil
}
