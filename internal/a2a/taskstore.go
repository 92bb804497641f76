package a2a

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// NewTaskID returns a random UUID for a new task.
func NewTaskID() string {
	return uuid.NewString()
}

// TaskStore is a concurrency-safe in-memory store for agent-side task
// tracking. It keeps at most limit tasks, evicting the oldest terminal ones.
type TaskStore struct {
	mu       sync.RWMutex
	tasks    map[string]*Task
	orderIDs []string
	limit    int
}

// NewTaskStore returns a TaskStore holding up to 1024 tasks.
func NewTaskStore() *TaskStore {
	return &TaskStore{
		tasks: make(map[string]*Task),
		limit: 1024,
	}
}

// Create stores a new task. It returns an error if a task with the same ID
// already exists.
func (s *TaskStore) Create(task Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.tasks[task.ID]; exists {
		return fmt.Errorf("task %q already exists", task.ID)
	}
	s.tasks[task.ID] = &task
	s.orderIDs = append(s.orderIDs, task.ID)
	s.evictLocked()
	return nil
}

// Get returns a copy of the task with the given ID.
func (s *TaskStore) Get(id string) (*Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.tasks[id]
	if !ok {
		return nil, fmt.Errorf("task %q: %w", id, ErrTaskNotFound)
	}
	return copyTask(t), nil
}

// Update applies fn to the stored task under the write lock.
func (s *TaskStore) Update(id string, fn func(*Task)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tasks[id]
	if !ok {
		return fmt.Errorf("task %q: %w", id, ErrTaskNotFound)
	}
	fn(t)
	return nil
}

// Len returns the number of stored tasks.
func (s *TaskStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.tasks)
}

// evictLocked drops the oldest terminal tasks while over the limit.
func (s *TaskStore) evictLocked() {
	for i := 0; len(s.tasks) > s.limit && i < len(s.orderIDs); {
		id := s.orderIDs[i]
		if s.tasks[id].Status.State.IsTerminal() {
			delete(s.tasks, id)
			s.orderIDs = append(s.orderIDs[:i], s.orderIDs[i+1:]...)
			continue
		}
		i++
	}
}

// copyTask returns a copy of src whose slices can be mutated independently.
func copyTask(src *Task) *Task {
	dst := *src
	if src.Artifacts != nil {
		dst.Artifacts = make([]Artifact, len(src.Artifacts))
		for i, a := range src.Artifacts {
			a.Parts = append([]Part(nil), a.Parts...)
			dst.Artifacts[i] = a
		}
	}
	if src.History != nil {
		dst.History = make([]Message, len(src.History))
		for i, m := range src.History {
			m.Parts = append([]Part(nil), m.Parts...)
			dst.History[i] = m
		}
	}
	if src.Status.Message != nil {
		msg := *src.Status.Message
		msg.Parts = append([]Part(nil), msg.Parts...)
		dst.Status.Message = &msg
	}
	return &dst
}
