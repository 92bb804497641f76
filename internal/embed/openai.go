package embed

import (
	"context"
	"fmt"

	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"

	"github.com/dusk-indust/queryroute/internal/config"
	"github.com/dusk-indust/queryroute/internal/llm"
	"github.com/dusk-indust/queryroute/internal/orchestrator"
)

// Compile-time interface check.
var _ Embedder = (*OpenAIEmbedder)(nil)

// OpenAIEmbedder calls an OpenAI-compatible embeddings endpoint.
type OpenAIEmbedder struct {
	inner openai.Client
	model string
}

// NewOpenAIEmbedder creates an embedder from a backend config section. The
// api_url is shared with the section's chat model.
func NewOpenAIEmbedder(cfg config.BackendConfig) *OpenAIEmbedder {
	opts := []option.RequestOption{option.WithMaxRetries(2)}
	if cfg.APIKey != "" {
		opts = append(opts, option.WithAPIKey(cfg.APIKey))
	}
	if base := llm.BaseURL(cfg.APIURL); base != "" {
		opts = append(opts, option.WithBaseURL(base))
	}
	if cfg.Timeout > 0 {
		opts = append(opts, option.WithRequestTimeout(cfg.Timeout))
	}
	model := cfg.EmbeddingModel
	if model == "" {
		model = "text-embedding-ada-002"
	}
	return &OpenAIEmbedder{inner: openai.NewClient(opts...), model: model}
}

// Embed requests all texts in one call.
func (e *OpenAIEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	resp, err := e.inner.Embeddings.New(ctx, openai.EmbeddingNewParams{
		Input: openai.EmbeddingNewParamsInputUnion{OfArrayOfStrings: texts},
		Model: openai.EmbeddingModel(e.model),
	})
	if err != nil {
		return nil, fmt.Errorf("embed: %w: %w", orchestrator.ErrTransport, err)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("embed: got %d embeddings for %d texts", len(resp.Data), len(texts))
	}

	out := make([][]float32, len(texts))
	for _, d := range resp.Data {
		if d.Index < 0 || int(d.Index) >= len(out) {
			return nil, fmt.Errorf("embed: embedding index %d out of range", d.Index)
		}
		v := make([]float32, len(d.Embedding))
		for i, x := range d.Embedding {
			v[i] = float32(x)
		}
		out[d.Index] = v
	}
	return out, nil
}

// HashModel is the embedding_model value that selects the offline
// HashEmbedder.
const HashModel = "hash"

// New returns the embedder configured by cfg.
func New(cfg config.BackendConfig) Embedder {
	if cfg.EmbeddingModel == HashModel {
		return NewHashEmbedder(256)
	}
	return NewOpenAIEmbedder(cfg)
}
