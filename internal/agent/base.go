package agent

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/dusk-indust/queryroute/internal/a2a"
)

var (
	_ Agent       = (*BaseAgent)(nil)
	_ a2a.Handler = (*BaseAgent)(nil)
)

// ProcessFunc turns one incoming message into the artifacts of a completed
// task. It runs while the task is in the working state.
type ProcessFunc func(ctx context.Context, task *a2a.Task, msg a2a.Message) ([]a2a.Artifact, error)

// BaseAgent runs a ProcessFunc behind an A2A server, recording every task
// in a TaskStore as it moves from submitted through working to a terminal
// state.
//
// message/send is synchronous unless the request sets Blocking to false.
// Non-blocking tasks run in the background and can be polled with
// tasks/get or stopped with tasks/cancel.
type BaseAgent struct {
	server  *a2a.Server
	store   *a2a.TaskStore
	card    a2a.AgentCard
	process ProcessFunc
	logger  *zap.Logger

	mu      sync.Mutex
	cancels map[string]context.CancelFunc
	wg      sync.WaitGroup
}

// Option configures a BaseAgent.
type Option func(*BaseAgent)

// WithLogger sets the logger for task lifecycle messages.
func WithLogger(l *zap.Logger) Option {
	return func(b *BaseAgent) {
		if l != nil {
			b.logger = l
		}
	}
}

func NewBaseAgent(card a2a.AgentCard, process ProcessFunc, opts ...Option) *BaseAgent {
	b := &BaseAgent{
		store:   a2a.NewTaskStore(),
		card:    card,
		process: process,
		logger:  zap.NewNop(),
		cancels: make(map[string]context.CancelFunc),
	}
	for _, opt := range opts {
		opt(b)
	}
	b.server = a2a.NewServer(card, b)
	return b
}

func (b *BaseAgent) Card() a2a.AgentCard { return b.card }

// Server exposes the A2A server so callers can mount extra handlers.
func (b *BaseAgent) Server() *a2a.Server { return b.server }

// HandleTask records task, runs the process function to completion and
// returns the terminal task. On failure both the failed task and the error
// are returned.
func (b *BaseAgent) HandleTask(ctx context.Context, task a2a.Task, msg a2a.Message) (*a2a.Task, error) {
	if err := b.submit(&task, msg); err != nil {
		return nil, err
	}
	return b.run(ctx, task, msg)
}

func (b *BaseAgent) submit(task *a2a.Task, msg a2a.Message) error {
	task.Status = a2a.TaskStatus{State: a2a.TaskStateSubmitted, Timestamp: time.Now()}
	task.History = append(task.History, msg)
	if err := b.store.Create(*task); err != nil {
		return fmt.Errorf("create task: %w", err)
	}
	return nil
}

func (b *BaseAgent) run(ctx context.Context, task a2a.Task, msg a2a.Message) (*a2a.Task, error) {
	ctx, cancel := context.WithCancel(ctx)
	b.mu.Lock()
	b.cancels[task.ID] = cancel
	b.mu.Unlock()
	defer func() {
		b.mu.Lock()
		delete(b.cancels, task.ID)
		b.mu.Unlock()
		cancel()
	}()

	if err := b.transition(task.ID, a2a.TaskStateWorking, nil, nil); err != nil {
		return nil, fmt.Errorf("update task to working: %w", err)
	}

	start := time.Now()
	artifacts, err := b.process(ctx, &task, msg)
	if err != nil {
		b.logger.Warn("agent: task failed",
			zap.String("agent", b.card.Name),
			zap.String("task", task.ID),
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err),
		)
		failure := &a2a.Message{Role: a2a.RoleAgent, Parts: []a2a.Part{a2a.TextPart(err.Error())}}
		_ = b.transition(task.ID, a2a.TaskStateFailed, failure, nil)
		result, _ := b.store.Get(task.ID)
		return result, err
	}

	if err := b.transition(task.ID, a2a.TaskStateCompleted, nil, artifacts); err != nil {
		return nil, fmt.Errorf("update task to completed: %w", err)
	}
	b.logger.Debug("agent: task completed",
		zap.String("agent", b.card.Name),
		zap.String("task", task.ID),
		zap.Duration("elapsed", time.Since(start)),
	)
	return b.store.Get(task.ID)
}

// transition moves a task to state unless it already reached a terminal
// state, e.g. through tasks/cancel.
func (b *BaseAgent) transition(id string, state a2a.TaskState, msg *a2a.Message, artifacts []a2a.Artifact) error {
	return b.store.Update(id, func(t *a2a.Task) {
		if t.Status.State.IsTerminal() {
			return
		}
		t.Status = a2a.TaskStatus{State: state, Message: msg, Timestamp: time.Now()}
		if artifacts != nil {
			t.Artifacts = artifacts
		}
	})
}

func (b *BaseAgent) Start(ctx context.Context, addr string) error {
	return b.server.Start(ctx, addr)
}

// Stop shuts the server down and waits for background tasks.
func (b *BaseAgent) Stop(ctx context.Context) error {
	err := b.server.Stop(ctx)
	b.wg.Wait()
	return err
}

// HandleSendMessage creates a task for the message. A processing failure is
// reported through the task state, never as a JSON-RPC error.
func (b *BaseAgent) HandleSendMessage(ctx context.Context, req a2a.SendMessageRequest) (*a2a.Task, error) {
	task := a2a.Task{
		ID:        a2a.NewTaskID(),
		ContextID: req.Message.ContextID,
	}

	if req.Configuration != nil && !req.Configuration.Blocking {
		if err := b.submit(&task, req.Message); err != nil {
			return nil, err
		}
		b.wg.Add(1)
		go func() {
			defer b.wg.Done()
			_, _ = b.run(context.WithoutCancel(ctx), task, req.Message)
		}()
		return b.store.Get(task.ID)
	}

	result, err := b.HandleTask(ctx, task, req.Message)
	if result != nil {
		return result, nil
	}
	return nil, err
}

func (b *BaseAgent) HandleGetTask(_ context.Context, req a2a.GetTaskRequest) (*a2a.Task, error) {
	return b.store.Get(req.ID)
}

// HandleCancelTask cancels a task that is still running. Terminal tasks are
// returned unchanged.
func (b *BaseAgent) HandleCancelTask(_ context.Context, req a2a.CancelTaskRequest) (*a2a.Task, error) {
	err := b.store.Update(req.ID, func(t *a2a.Task) {
		if !t.Status.State.IsTerminal() {
			t.Status = a2a.TaskStatus{State: a2a.TaskStateCanceled, Timestamp: time.Now()}
		}
	})
	if err != nil {
		return nil, err
	}

	b.mu.Lock()
	if cancel, ok := b.cancels[req.ID]; ok {
		cancel()
	}
	b.mu.Unlock()
	return b.store.Get(req.ID)
}
