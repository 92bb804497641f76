package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dusk-indust/queryroute/internal/config"
	"github.com/dusk-indust/queryroute/internal/orchestrator"
)

// chatServer fakes an OpenAI-compatible endpoint. It records the last
// request body and answers with content.
func chatServer(t *testing.T, content string, status int, last *map[string]any) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			http.NotFound(w, r)
			return
		}
		if last != nil {
			var body map[string]any
			_ = json.NewDecoder(r.Body).Decode(&body)
			*last = body
		}
		w.Header().Set("Content-Type", "application/json")
		if status != http.StatusOK {
			w.WriteHeader(status)
			_, _ = w.Write([]byte(`{"error":{"message":"boom","type":"server_error"}}`))
			return
		}
		resp := map[string]any{
			"id":      "chatcmpl-1",
			"object":  "chat.completion",
			"created": 0,
			"model":   "test-model",
			"choices": []map[string]any{{
				"index":         0,
				"finish_reason": "stop",
				"message":       map[string]any{"role": "assistant", "content": content},
			}},
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
}

func TestBaseURL(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"", ""},
		{"https://api.example.com/v1", "https://api.example.com/v1/"},
		{"https://api.example.com/v1/", "https://api.example.com/v1/"},
		{"https://api.example.com/v1/chat/completions", "https://api.example.com/v1/"},
		{"https://api.example.com/v1/embeddings", "https://api.example.com/v1/"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, BaseURL(tt.in), tt.in)
	}
}

func TestOpenAIClient_Complete(t *testing.T) {
	var last map[string]any
	srv := chatServer(t, "子问题一\n子问题二", http.StatusOK, &last)
	defer srv.Close()

	c := NewOpenAIClient(config.ModelConfig{
		APIURL: srv.URL + "/v1/chat/completions",
		APIKey: "sk-test",
		Model:  "test-model",
	})

	out, err := c.Complete(context.Background(), Request{Prompt: "hi", MaxTokens: 200, Temperature: 0.3})
	require.NoError(t, err)
	assert.Equal(t, "子问题一\n子问题二", out)

	assert.Equal(t, "test-model", last["model"])
	assert.EqualValues(t, 200, last["max_tokens"])
	assert.InDelta(t, 0.3, last["temperature"], 1e-9)
	msgs, ok := last["messages"].([]any)
	require.True(t, ok)
	require.Len(t, msgs, 1)
}

func TestOpenAIClient_ServerError(t *testing.T) {
	srv := chatServer(t, "", http.StatusInternalServerError, nil)
	defer srv.Close()

	c := NewOpenAIClient(config.ModelConfig{APIURL: srv.URL + "/v1", APIKey: "sk-test", Model: "m"})
	_, err := c.Complete(context.Background(), Request{Prompt: "hi"})
	require.Error(t, err)
	assert.ErrorIs(t, err, orchestrator.ErrTransport)
}

func TestAnthropicClient_Complete(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/messages" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "msg_1",
			"type": "message",
			"role": "assistant",
			"model": "claude-sonnet-4-20250514",
			"content": [{"type": "text", "text": "graph"}, {"type": "text", "text": "_rag"}],
			"stop_reason": "end_turn",
			"usage": {"input_tokens": 3, "output_tokens": 2}
		}`))
	}))
	defer srv.Close()

	c := NewAnthropicClient(config.ModelConfig{APIURL: srv.URL, APIKey: "test", Model: "claude-sonnet-4-20250514"})
	out, err := c.Complete(context.Background(), Request{Prompt: "route", MaxTokens: 20})
	require.NoError(t, err)
	assert.Equal(t, "graph_rag", out)
}

func TestWithRetry(t *testing.T) {
	var calls atomic.Int32
	flaky := ChatFunc(func(context.Context, Request) (string, error) {
		if calls.Add(1) < 3 {
			return "", errors.New("temporary")
		}
		return "ok", nil
	})

	out, err := WithRetry(flaky, 3, time.Millisecond).Complete(context.Background(), Request{})
	require.NoError(t, err)
	assert.Equal(t, "ok", out)
	assert.EqualValues(t, 3, calls.Load())
}

func TestWithRetry_GivesUp(t *testing.T) {
	var calls atomic.Int32
	failing := ChatFunc(func(context.Context, Request) (string, error) {
		calls.Add(1)
		return "", errors.New("down")
	})

	_, err := WithRetry(failing, 2, time.Millisecond).Complete(context.Background(), Request{})
	require.Error(t, err)
	assert.Equal(t, "down", err.Error())
	assert.EqualValues(t, 2, calls.Load())
}

func TestWithRetry_StopsOnCancel(t *testing.T) {
	var calls atomic.Int32
	cancelled := ChatFunc(func(context.Context, Request) (string, error) {
		calls.Add(1)
		return "", context.Canceled
	})

	_, err := WithRetry(cancelled, 5, time.Millisecond).Complete(context.Background(), Request{})
	assert.ErrorIs(t, err, context.Canceled)
	assert.EqualValues(t, 1, calls.Load())
}

func TestWithRetry_SingleAttemptIsUnwrapped(t *testing.T) {
	c := ChatFunc(func(context.Context, Request) (string, error) { return "x", nil })
	_, wrapped := WithRetry(c, 1, 0).(*retryClient)
	assert.False(t, wrapped)
}

func TestNew(t *testing.T) {
	retry := config.RetryConfig{Attempts: 2, Delay: time.Millisecond}

	c, err := New(config.ModelConfig{Provider: "openai", Model: "m"}, retry)
	require.NoError(t, err)
	assert.IsType(t, &retryClient{}, c)

	c, err = New(config.ModelConfig{Provider: "anthropic"}, config.RetryConfig{Attempts: 1})
	require.NoError(t, err)
	assert.IsType(t, &AnthropicClient{}, c)

	_, err = New(config.ModelConfig{Provider: "cohere"}, retry)
	assert.Error(t, err)
}

func TestFormatPrompt(t *testing.T) {
	got := FormatPrompt("查询：{sub_query}\n策略：", map[string]string{"sub_query": "什么是RAG"})
	assert.Equal(t, "查询：什么是RAG\n策略：", got)

	// Unknown placeholders are left alone.
	assert.Equal(t, "{other} x", FormatPrompt("{other} {query}", map[string]string{"query": "x"}))
}
