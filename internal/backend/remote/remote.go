// Package remote executes sub-queries on another queryroute instance through
// its A2A backend agent.
package remote

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"github.com/dusk-indust/queryroute/internal/a2a"
	"github.com/dusk-indust/queryroute/internal/orchestrator"
)

// Compile-time interface check.
var _ orchestrator.Backend = (*Backend)(nil)

// Backend forwards Execute to a remote A2A agent.
type Backend struct {
	client       a2a.Client
	endpoint     string
	pollInterval time.Duration
	logger       *zap.Logger
}

// Option configures a Backend.
type Option func(*Backend)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(b *Backend) {
		if l != nil {
			b.logger = l
		}
	}
}

// WithPollInterval sets how often a task that the agent did not finish
// within message/send is polled.
func WithPollInterval(d time.Duration) Option {
	return func(b *Backend) {
		if d > 0 {
			b.pollInterval = d
		}
	}
}

// New creates a backend that sends sub-queries to the agent at endpoint.
func New(client a2a.Client, endpoint string, opts ...Option) *Backend {
	b := &Backend{
		client:       client,
		endpoint:     endpoint,
		pollInterval: 500 * time.Millisecond,
		logger:       zap.NewNop(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Endpoint returns the agent URL.
func (b *Backend) Endpoint() string { return b.endpoint }

// Execute sends query, plus c as a data part, in a blocking message/send and
// returns the text of the first artifact. A task still running when the
// call returns is polled until it reaches a terminal state or ctx ends.
func (b *Backend) Execute(ctx context.Context, query string, c orchestrator.Context) (string, error) {
	parts := []a2a.Part{a2a.TextPart(query)}
	if len(c) > 0 {
		data, err := a2a.DataPart(c)
		if err != nil {
			return "", fmt.Errorf("remote: encode context: %w", err)
		}
		parts = append(parts, data)
	}

	task, err := b.client.SendMessage(ctx, b.endpoint, a2a.SendMessageRequest{
		Message:       a2a.NewUserMessage(parts...),
		Configuration: &a2a.SendMessageConfig{Blocking: true},
	})
	if err != nil {
		return "", b.transportErr(err)
	}

	task, err = b.wait(ctx, task)
	if err != nil {
		return "", err
	}
	return taskResult(task)
}

// wait polls task until it is terminal.
func (b *Backend) wait(ctx context.Context, task *a2a.Task) (*a2a.Task, error) {
	if task == nil {
		return nil, errors.New("remote: agent returned no task")
	}
	for !task.Status.State.IsTerminal() {
		b.logger.Debug("remote: waiting for task",
			zap.String("endpoint", b.endpoint),
			zap.String("task", task.ID),
			zap.String("state", string(task.Status.State)),
		)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(b.pollInterval):
		}
		next, err := b.client.GetTask(ctx, b.endpoint, a2a.GetTaskRequest{ID: task.ID})
		if err != nil {
			return nil, b.transportErr(err)
		}
		task = next
	}
	return task, nil
}

func (b *Backend) transportErr(err error) error {
	var rpcErr *a2a.RPCError
	if errors.As(err, &rpcErr) {
		return fmt.Errorf("remote: %s: %w", b.endpoint, err)
	}
	return fmt.Errorf("remote: %s: %w: %w", b.endpoint, orchestrator.ErrTransport, err)
}

// taskResult returns the answer carried by a terminal task. Text parts win;
// a data-only artifact is searched for an "answer" or "result" field.
func taskResult(task *a2a.Task) (string, error) {
	switch task.Status.State {
	case a2a.TaskStateCompleted:
	case a2a.TaskStateFailed:
		msg := "task failed"
		if task.Status.Message != nil && task.Status.Message.Text() != "" {
			msg = task.Status.Message.Text()
		}
		return "", fmt.Errorf("remote: task %s: %s", task.ID, msg)
	default:
		return "", fmt.Errorf("remote: task %s ended %s", task.ID, task.Status.State)
	}

	if len(task.Artifacts) == 0 {
		return "", fmt.Errorf("remote: task %s has no artifacts", task.ID)
	}
	first := task.Artifacts[0]
	for _, p := range first.Parts {
		if p.Text != "" {
			return p.Text, nil
		}
	}
	for _, p := range first.Parts {
		if len(p.Data) == 0 {
			continue
		}
		if r := gjson.GetBytes(p.Data, "answer"); r.Exists() {
			return r.String(), nil
		}
		if r := gjson.GetBytes(p.Data, "result"); r.Exists() {
			return r.String(), nil
		}
	}
	return "", fmt.Errorf("remote: task %s: artifact %q has no text", task.ID, first.Name)
}
