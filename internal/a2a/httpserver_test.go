package a2a

import (
	"bytes"
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
)

// ---------------------------------------------------------------------------
// Mock Handler
// ---------------------------------------------------------------------------

type mockHandler struct {
	sendMessage func(ctx context.Context, req SendMessageRequest) (*Task, error)
	getTask     func(ctx context.Context, req GetTaskRequest) (*Task, error)
}

func (m *mockHandler) HandleSendMessage(ctx context.Context, req SendMessageRequest) (*Task, error) {
	if m.sendMessage != nil {
		return m.sendMessage(ctx, req)
	}
	return nil, errors.New("sendMessage not implemented")
}

func (m *mockHandler) HandleGetTask(ctx context.Context, req GetTaskRequest) (*Task, error) {
	if m.getTask != nil {
		return m.getTask(ctx, req)
	}
	return nil, errors.New("getTask not implemented")
}

func (m *mockHandler) HandleCancelTask(_ context.Context, req CancelTaskRequest) (*Task, error) {
	return &Task{ID: req.ID, Status: TaskStatus{State: TaskStateCanceled}}, nil
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func testCard() AgentCard {
	return AgentCard{
		Name:        "queryroute",
		Description: "query pipeline",
		Version:     "dev",
		Skills:      []AgentSkill{{ID: "process_query", Name: "Process query"}},
	}
}

func startTestServer(t *testing.T, h Handler) *httptest.Server {
	t.Helper()
	ts := httptest.NewServer(NewServer(testCard(), h).Handler())
	t.Cleanup(ts.Close)
	return ts
}

func postRPC(t *testing.T, url string, body string) JSONRPCResponse {
	t.Helper()
	resp, err := http.Post(url, "application/json", bytes.NewBufferString(body))
	require.NoError(t, err)
	defer resp.Body.Close()

	var rpc JSONRPCResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&rpc))
	return rpc
}

// ---------------------------------------------------------------------------
// Tests
// ---------------------------------------------------------------------------

func TestServer_AgentCard(t *testing.T) {
	ts := startTestServer(t, &mockHandler{})

	card, err := NewHTTPClient().DiscoverAgent(context.Background(), ts.URL+"/")
	require.NoError(t, err)
	assert.Equal(t, "queryroute", card.Name)
	require.Len(t, card.Skills, 1)
	assert.Equal(t, "process_query", card.Skills[0].ID)
}

func TestServer_SendMessage_RoundTrip(t *testing.T) {
	h := &mockHandler{
		sendMessage: func(_ context.Context, req SendMessageRequest) (*Task, error) {
			return &Task{
				ID:        "task-1",
				Status:    TaskStatus{State: TaskStateCompleted, Timestamp: time.Now()},
				Artifacts: []Artifact{NewTextArtifact("answer", "echo: "+req.Message.Text())},
			}, nil
		},
	}
	ts := startTestServer(t, h)

	task, err := NewHTTPClient().SendMessage(context.Background(), ts.URL, SendMessageRequest{
		Message:       NewUserMessage(TextPart("hello")),
		Configuration: &SendMessageConfig{Blocking: true},
	})
	require.NoError(t, err)
	assert.Equal(t, "task-1", task.ID)
	assert.Equal(t, TaskStateCompleted, task.Status.State)
	assert.Equal(t, "echo: hello", task.Text())
}

func TestServer_HandlerError_ReturnsRPCError(t *testing.T) {
	h := &mockHandler{
		getTask: func(context.Context, GetTaskRequest) (*Task, error) {
			return nil, ErrTaskNotFound
		},
	}
	ts := startTestServer(t, h)

	_, err := NewHTTPClient().GetTask(context.Background(), ts.URL, GetTaskRequest{ID: "nope"})
	var rpcErr *RPCError
	require.ErrorAs(t, err, &rpcErr)
	assert.Equal(t, ErrCodeTaskNotFound, rpcErr.Code)
	assert.Equal(t, MethodGetTask, rpcErr.Method)
}

func TestServer_CancelTask(t *testing.T) {
	ts := startTestServer(t, &mockHandler{})

	task, err := NewHTTPClient().CancelTask(context.Background(), ts.URL, CancelTaskRequest{ID: "t"})
	require.NoError(t, err)
	assert.Equal(t, TaskStateCanceled, task.Status.State)
}

func TestServer_UnknownMethod(t *testing.T) {
	ts := startTestServer(t, &mockHandler{})

	rpc := postRPC(t, ts.URL, `{"jsonrpc":"2.0","id":1,"method":"tasks/list"}`)
	require.NotNil(t, rpc.Error)
	assert.Equal(t, ErrCodeMethodNotFound, rpc.Error.Code)
}

func TestServer_ParseError(t *testing.T) {
	ts := startTestServer(t, &mockHandler{})

	rpc := postRPC(t, ts.URL, `{not json`)
	require.NotNil(t, rpc.Error)
	assert.Equal(t, ErrCodeParse, rpc.Error.Code)
}

func TestServer_InvalidRequest(t *testing.T) {
	ts := startTestServer(t, &mockHandler{})

	for _, body := range []string{
		`{"jsonrpc":"1.0","id":1,"method":"tasks/get"}`,
		`{"jsonrpc":"2.0","id":2}`,
	} {
		rpc := postRPC(t, ts.URL, body)
		require.NotNil(t, rpc.Error, body)
		assert.Equal(t, ErrCodeInvalidRequest, rpc.Error.Code, body)
	}
}

func TestServer_InvalidParams(t *testing.T) {
	ts := startTestServer(t, &mockHandler{})

	rpc := postRPC(t, ts.URL, `{"jsonrpc":"2.0","id":7,"method":"message/send","params":"oops"}`)
	require.NotNil(t, rpc.Error)
	assert.Equal(t, ErrCodeInvalidParams, rpc.Error.Code)
}

func TestServer_StartStop(t *testing.T) {
	srv := NewServer(testCard(), &mockHandler{})
	require.NoError(t, srv.Start(context.Background(), "127.0.0.1:0"))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.NoError(t, srv.Stop(ctx))
}

func TestClient_HTTPErrorStatus(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer ts.Close()

	_, err := NewHTTPClient().SendMessage(context.Background(), ts.URL, SendMessageRequest{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "HTTP 503")
}

func TestClient_RetriesUnavailable(t *testing.T) {
	var calls atomic.Int32
	inner := NewServer(testCard(), &mockHandler{
		getTask: func(_ context.Context, req GetTaskRequest) (*Task, error) {
			return &Task{ID: req.ID, Status: TaskStatus{State: TaskStateWorking}}, nil
		},
	}).Handler()
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			http.Error(w, "warming up", http.StatusServiceUnavailable)
			return
		}
		inner.ServeHTTP(w, r)
	}))
	defer ts.Close()

	c := NewHTTPClient(WithRetry(3, time.Millisecond))
	task, err := c.GetTask(context.Background(), ts.URL, GetTaskRequest{ID: "t-9"})
	require.NoError(t, err)
	assert.Equal(t, "t-9", task.ID)
	assert.Equal(t, int32(3), calls.Load())
}

func TestClient_DoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		http.Error(w, "bad", http.StatusBadRequest)
	}))
	defer ts.Close()

	_, err := NewHTTPClient(WithRetry(3, time.Millisecond)).GetTask(context.Background(), ts.URL, GetTaskRequest{ID: "t"})
	require.Error(t, err)

	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusBadRequest, se.Code)
	assert.Equal(t, int32(1), calls.Load())
}

func TestMessage_TextAndData(t *testing.T) {
	data, err := DataPart(map[string]any{"data_path": "/tmp/g"})
	require.NoError(t, err)
	msg := NewUserMessage(TextPart("a"), data, TextPart("b"))

	assert.NotEmpty(t, msg.MessageID)
	assert.Equal(t, "a\nb", msg.Text())
	assert.JSONEq(t, `{"data_path":"/tmp/g"}`, string(msg.Data()))
}

func TestTaskState_IsTerminal(t *testing.T) {
	assert.True(t, TaskStateCompleted.IsTerminal())
	assert.True(t, TaskStateFailed.IsTerminal())
	assert.True(t, TaskStateCanceled.IsTerminal())
	assert.False(t, TaskStateWorking.IsTerminal())
	assert.False(t, TaskStateSubmitted.IsTerminal())
}
