package graph

import (
	"context"
	"sort"
	"sync"
)

// Compile-time assertion: *MemStore satisfies Store.
var _ Store = (*MemStore)(nil)

// MemStore implements Store using Go maps. Thread-safe via sync.RWMutex.
type MemStore struct {
	mu        sync.RWMutex
	entities  map[string]Entity // key: title
	rels      []Relationship
	textUnits map[string]TextUnit
	reports   []CommunityReport
}

// NewMemStore returns an initialized MemStore ready for use.
func NewMemStore() *MemStore {
	return &MemStore{
		entities:  make(map[string]Entity),
		textUnits: make(map[string]TextUnit),
	}
}

// InitSchema is a no-op for the in-memory store.
func (m *MemStore) InitSchema(_ context.Context) error {
	return nil
}

func (m *MemStore) Reset(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entities = make(map[string]Entity)
	m.textUnits = make(map[string]TextUnit)
	m.rels = nil
	m.reports = nil
	return nil
}

func (m *MemStore) AddEntity(_ context.Context, e Entity) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entities[e.Title] = e
	return nil
}

func (m *MemStore) AddRelationship(_ context.Context, r Relationship) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, title := range []string{r.Source, r.Target} {
		if _, ok := m.entities[title]; !ok {
			m.entities[title] = Entity{Title: title}
		}
	}
	m.rels = append(m.rels, r)
	return nil
}

func (m *MemStore) AddTextUnit(_ context.Context, u TextUnit) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.textUnits[u.ID] = u
	return nil
}

func (m *MemStore) AddCommunityReport(_ context.Context, r CommunityReport) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reports = append(m.reports, r)
	return nil
}

// GetEntity returns the entity with the given title, or nil if not found.
func (m *MemStore) GetEntity(_ context.Context, title string) (*Entity, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.entities[title]
	if !ok {
		return nil, nil
	}
	return &e, nil
}

func (m *MemStore) Entities(_ context.Context) ([]Entity, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Entity, 0, len(m.entities))
	for _, e := range m.entities {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Title < out[j].Title })
	return out, nil
}

func (m *MemStore) Relationships(_ context.Context) ([]Relationship, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Relationship, len(m.rels))
	copy(out, m.rels)
	return out, nil
}

// RelationshipsOf returns relationships with either endpoint in titles.
func (m *MemStore) RelationshipsOf(_ context.Context, titles []string) ([]Relationship, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	want := toSet(titles)
	var out []Relationship
	for _, r := range m.rels {
		if want[r.Source] || want[r.Target] {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *MemStore) TextUnits(_ context.Context, ids []string) ([]TextUnit, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []TextUnit
	if ids == nil {
		for _, u := range m.textUnits {
			out = append(out, u)
		}
	} else {
		for id := range toSet(ids) {
			if u, ok := m.textUnits[id]; ok {
				out = append(out, u)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MemStore) CommunityReports(_ context.Context) ([]CommunityReport, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]CommunityReport, len(m.reports))
	copy(out, m.reports)
	sort.SliceStable(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Neighbors performs a BFS from title over relationships in both
// directions, up to maxDepth hops. It returns one Path per reachable entity.
func (m *MemStore) Neighbors(_ context.Context, title string, maxDepth int) ([]Path, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return bfs(title, maxDepth, m.adjacent), nil
}

// adjacent returns titles one hop from title, sorted.
func (m *MemStore) adjacent(title string) []string {
	set := make(map[string]bool)
	for _, r := range m.rels {
		switch title {
		case r.Source:
			set[r.Target] = true
		case r.Target:
			set[r.Source] = true
		}
	}
	delete(set, title)
	return setToSlice(set)
}

// Stats returns counts of every record type.
func (m *MemStore) Stats(_ context.Context) (*Stats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return &Stats{
		EntityCount:       len(m.entities),
		RelationshipCount: len(m.rels),
		TextUnitCount:     len(m.textUnits),
		ReportCount:       len(m.reports),
	}, nil
}

// Close is a no-op for the in-memory store.
func (m *MemStore) Close() error {
	return nil
}

// bfs walks outward from start using next for adjacency. Shared by both
// store implementations.
func bfs(start string, maxDepth int, next func(string) []string) []Path {
	if maxDepth <= 0 {
		return nil
	}

	// BFS state: each entry tracks the path from start to the current node.
	type bfsEntry struct {
		id   string
		path []string
	}

	visited := map[string]bool{start: true}
	queue := []bfsEntry{{id: start, path: []string{start}}}
	var paths []Path

	for depth := 0; depth < maxDepth && len(queue) > 0; depth++ {
		var nextQueue []bfsEntry
		for _, entry := range queue {
			for _, nb := range next(entry.id) {
				if visited[nb] {
					continue
				}
				visited[nb] = true
				newPath := make([]string, len(entry.path), len(entry.path)+1)
				copy(newPath, entry.path)
				newPath = append(newPath, nb)
				paths = append(paths, Path{Nodes: newPath, Depth: len(newPath) - 1})
				nextQueue = append(nextQueue, bfsEntry{id: nb, path: newPath})
			}
		}
		queue = nextQueue
	}
	return paths
}

func toSet(ss []string) map[string]bool {
	set := make(map[string]bool, len(ss))
	for _, s := range ss {
		set[s] = true
	}
	return set
}

// setToSlice converts a string bool map to a sorted slice.
func setToSlice(s map[string]bool) []string {
	out := make([]string, 0, len(s))
	for k := range s {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
