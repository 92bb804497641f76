package vectorstore

import (
	"context"
	"sync"
)

// Compile-time interface check.
var _ Store = (*MemStore)(nil)

// MemStore keeps documents in memory.
type MemStore struct {
	mu    sync.RWMutex
	docs  []Document
	index map[string]int
}

// NewMemStore creates an empty MemStore.
func NewMemStore() *MemStore {
	return &MemStore{index: make(map[string]int)}
}

func (s *MemStore) Add(_ context.Context, docs []Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, d := range docs {
		if i, ok := s.index[d.ID]; ok {
			s.docs[i] = d
			continue
		}
		s.index[d.ID] = len(s.docs)
		s.docs = append(s.docs, d)
	}
	return nil
}

func (s *MemStore) Search(_ context.Context, query []float32, k int) ([]Hit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return rank(s.docs, query, k), nil
}

func (s *MemStore) Count(context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.docs), nil
}

func (s *MemStore) Close() error { return nil }
