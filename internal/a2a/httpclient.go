package a2a

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/google/uuid"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"
)

var _ Client = (*HTTPClient)(nil)

// HTTPClient speaks JSON-RPC 2.0 over HTTP POST to remote agents.
type HTTPClient struct {
	http     *http.Client
	attempts uint
	delay    time.Duration
	logger   *zap.Logger
}

// ClientOption configures an HTTPClient.
type ClientOption func(*HTTPClient)

// WithTimeout sets the per-request HTTP timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *HTTPClient) { c.http.Timeout = d }
}

// WithHTTPClient replaces the underlying *http.Client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *HTTPClient) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithRetry retries RPC calls that fail before reaching the agent, or that
// the agent answers with 502, 503 or 504. attempts counts the first try.
// Agent card discovery is never retried.
func WithRetry(attempts uint, delay time.Duration) ClientOption {
	return func(c *HTTPClient) {
		c.attempts = attempts
		c.delay = delay
	}
}

// WithClientLogger sets the logger used for retry messages.
func WithClientLogger(l *zap.Logger) ClientOption {
	return func(c *HTTPClient) {
		if l != nil {
			c.logger = l
		}
	}
}

// NewHTTPClient returns a client with a 60 second timeout and no retries.
func NewHTTPClient(opts ...ClientOption) *HTTPClient {
	c := &HTTPClient{
		http:     &http.Client{Timeout: 60 * time.Second},
		attempts: 1,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *HTTPClient) SendMessage(ctx context.Context, endpoint string, req SendMessageRequest) (*Task, error) {
	return invoke[Task](ctx, c, endpoint, MethodSendMessage, req)
}

func (c *HTTPClient) GetTask(ctx context.Context, endpoint string, req GetTaskRequest) (*Task, error) {
	return invoke[Task](ctx, c, endpoint, MethodGetTask, req)
}

func (c *HTTPClient) CancelTask(ctx context.Context, endpoint string, req CancelTaskRequest) (*Task, error) {
	return invoke[Task](ctx, c, endpoint, MethodCancelTask, req)
}

// DiscoverAgent fetches the agent card served under baseURL.
func (c *HTTPClient) DiscoverAgent(ctx context.Context, baseURL string) (*AgentCard, error) {
	url := strings.TrimRight(baseURL, "/") + AgentCardPath
	body, err := c.do(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("a2a: discover agent: %w", err)
	}

	var card AgentCard
	if err := json.Unmarshal(body, &card); err != nil {
		return nil, fmt.Errorf("a2a: decode agent card: %w", err)
	}
	return &card, nil
}

// invoke performs one JSON-RPC call, retrying transient failures, and
// decodes the result member into a T.
func invoke[T any](ctx context.Context, c *HTTPClient, endpoint, method string, params any) (*T, error) {
	payload, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("a2a: marshal params: %w", err)
	}
	body, err := json.Marshal(JSONRPCRequest{
		JSONRPC: JSONRPCVersion,
		ID:      uuid.NewString(),
		Method:  method,
		Params:  payload,
	})
	if err != nil {
		return nil, fmt.Errorf("a2a: marshal request: %w", err)
	}

	var raw []byte
	err = retry.Do(
		func() error {
			var err error
			raw, err = c.do(ctx, http.MethodPost, endpoint, body)
			return err
		},
		retry.Context(ctx),
		retry.Attempts(max(c.attempts, 1)),
		retry.Delay(c.delay),
		retry.LastErrorOnly(true),
		retry.RetryIf(retryable),
		retry.OnRetry(func(n uint, err error) {
			c.logger.Debug("a2a: retrying call",
				zap.String("method", method),
				zap.String("endpoint", endpoint),
				zap.Uint("attempt", n+1),
				zap.Error(err),
			)
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("a2a: %s: %w", method, err)
	}
	return decodeResult[T](method, raw)
}

func decodeResult[T any](method string, raw []byte) (*T, error) {
	if !gjson.ValidBytes(raw) {
		return nil, fmt.Errorf("a2a: %s: response is not valid JSON", method)
	}
	if e := gjson.GetBytes(raw, "error"); e.Exists() && e.Type != gjson.Null {
		rpcErr := &RPCError{
			Method:  method,
			Code:    int(e.Get("code").Int()),
			Message: e.Get("message").String(),
		}
		if d := e.Get("data"); d.Exists() {
			rpcErr.Data = json.RawMessage(d.Raw)
		}
		return nil, rpcErr
	}

	out := new(T)
	if r := gjson.GetBytes(raw, "result"); r.Exists() && r.Type != gjson.Null {
		if err := json.Unmarshal([]byte(r.Raw), out); err != nil {
			return nil, fmt.Errorf("a2a: %s: decode result: %w", method, err)
		}
	}
	return out, nil
}

// do sends one HTTP request and returns the body of a 200 response.
func (c *HTTPClient) do(ctx context.Context, method, url string, body []byte) ([]byte, error) {
	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, rd)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(data))}
	}
	return data, nil
}

func retryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var se *StatusError
	if errors.As(err, &se) {
		switch se.Code {
		case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
			return true
		}
		return false
	}
	return true
}

// StatusError is a non-200 HTTP answer from an agent.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.Code, e.Body)
}

// RPCError is a JSON-RPC error object returned by a remote agent.
type RPCError struct {
	Method  string
	Code    int
	Message string
	Data    json.RawMessage
}

func (e *RPCError) Error() string {
	if len(e.Data) > 0 {
		return fmt.Sprintf("a2a: %s: rpc error %d: %s (data: %s)", e.Method, e.Code, e.Message, string(e.Data))
	}
	return fmt.Sprintf("a2a: %s: rpc error %d: %s", e.Method, e.Code, e.Message)
}
