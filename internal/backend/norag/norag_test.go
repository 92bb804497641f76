package norag

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dusk-indust/queryroute/internal/config"
	"github.com/dusk-indust/queryroute/internal/llm"
)

func TestExecute(t *testing.T) {
	var got llm.Request
	client := llm.ChatFunc(func(_ context.Context, req llm.Request) (string, error) {
		got = req
		return "  华盛顿  \n", nil
	})

	b := New(client, config.BackendConfig{ModelConfig: config.ModelConfig{Temperature: 0.7}})
	out, err := b.Execute(context.Background(), "美国首都在哪里？", nil)
	require.NoError(t, err)

	assert.Equal(t, "华盛顿", out)
	assert.Equal(t, "美国首都在哪里？", got.Prompt)
	assert.Empty(t, got.System)
	assert.Equal(t, defaultMaxTokens, got.MaxTokens)
	assert.InDelta(t, 0.7, got.Temperature, 1e-9)
}

func TestExecute_ConfiguredMaxTokens(t *testing.T) {
	var got llm.Request
	client := llm.ChatFunc(func(_ context.Context, req llm.Request) (string, error) {
		got = req
		return "ok", nil
	})

	b := New(client, config.BackendConfig{ModelConfig: config.ModelConfig{MaxTokens: 64}})
	_, err := b.Execute(context.Background(), "q", nil)
	require.NoError(t, err)
	assert.Equal(t, 64, got.MaxTokens)
}

func TestExecute_LLMErrorFallsBack(t *testing.T) {
	client := llm.ChatFunc(func(context.Context, llm.Request) (string, error) {
		return "", errors.New("connection refused")
	})

	b := New(client, config.BackendConfig{})
	out, err := b.Execute(context.Background(), "如何制作蛋糕？", nil)
	require.NoError(t, err)
	assert.Equal(t, "直接回答: 如何制作蛋糕？", out)
}

func TestBuildIndex(t *testing.T) {
	b := New(llm.ChatFunc(func(context.Context, llm.Request) (string, error) { return "", nil }), config.BackendConfig{})
	assert.True(t, b.BuildIndex(context.Background(), []string{"doc"}, nil))
	assert.True(t, b.BuildIndex(context.Background(), nil, nil))
}

func TestIsFallback(t *testing.T) {
	b := New(llm.ChatFunc(func(context.Context, llm.Request) (string, error) { return "", nil }), config.BackendConfig{})
	assert.True(t, b.IsFallback("q", FallbackText("q")))
	assert.False(t, b.IsFallback("q", "answer"))
	assert.False(t, b.IsFallback("other", FallbackText("q")))
}
