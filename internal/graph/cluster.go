package graph

import (
	"context"
	"fmt"
	"sort"
	"strings"
)

// DetectCommunities finds connected components of the entity graph.
//
// Algorithm:
//  1. Build an undirected adjacency list from all relationships.
//  2. Find connected components via BFS, visiting entities in title order.
//  3. Keep components with >= 2 entities and compute a cohesion score.
//
// Community IDs are assigned from 0 in order of each component's first
// member, so the result is deterministic.
func DetectCommunities(ctx context.Context, store Store) ([]Community, error) {
	entities, err := store.Entities(ctx)
	if err != nil {
		return nil, fmt.Errorf("graph: communities: %w", err)
	}
	rels, err := store.Relationships(ctx)
	if err != nil {
		return nil, fmt.Errorf("graph: communities: %w", err)
	}

	adj := buildAdjacency(entities, rels)

	visited := make(map[string]bool, len(entities))
	var communities []Community
	for _, e := range entities {
		if visited[e.Title] {
			continue
		}
		component := bfsComponent(e.Title, adj, visited)
		if len(component) < 2 {
			continue
		}
		sort.Strings(component)
		communities = append(communities, Community{
			ID:       len(communities),
			Members:  component,
			Cohesion: computeCohesion(component, adj),
		})
	}
	return communities, nil
}

// buildAdjacency constructs a bidirectional adjacency list in a single pass
// over the relationships. Self-loops are dropped.
func buildAdjacency(entities []Entity, rels []Relationship) map[string]map[string]bool {
	adj := make(map[string]map[string]bool, len(entities))
	for _, e := range entities {
		adj[e.Title] = make(map[string]bool)
	}
	for _, r := range rels {
		if r.Source == r.Target || adj[r.Source] == nil || adj[r.Target] == nil {
			continue
		}
		adj[r.Source][r.Target] = true
		adj[r.Target][r.Source] = true
	}
	return adj
}

// bfsComponent performs BFS from start on the adjacency list and returns
// all reachable nodes. It marks visited nodes as it goes.
func bfsComponent(start string, adj map[string]map[string]bool, visited map[string]bool) []string {
	var component []string
	queue := []string{start}
	visited[start] = true

	for len(queue) > 0 {
		node := queue[0]
		queue = queue[1:]
		component = append(component, node)
		for neighbor := range adj[node] {
			if !visited[neighbor] {
				visited[neighbor] = true
				queue = append(queue, neighbor)
			}
		}
	}
	return component
}

// computeCohesion is the edge density of a component: its distinct internal
// edges divided by the edges of a complete graph on the same members.
// A connected component always scores above zero.
func computeCohesion(component []string, adj map[string]map[string]bool) float64 {
	n := len(component)
	if n < 2 {
		return 0
	}
	internal := 0
	for _, m := range component {
		for neighbor := range adj[m] {
			// Count each undirected edge once.
			if m < neighbor {
				internal++
			}
		}
	}
	return float64(internal) / float64(n*(n-1)/2)
}

// ComputeDegrees sets each entity's Degree to its number of distinct
// neighbours.
func ComputeDegrees(entities []Entity, rels []Relationship) []Entity {
	adj := buildAdjacency(entities, rels)
	out := make([]Entity, len(entities))
	for i, e := range entities {
		e.Degree = len(adj[e.Title])
		out[i] = e
	}
	return out
}

// BuildReports derives one report per community. The title names the
// community's most connected entities and the summary lists their
// descriptions.
func BuildReports(communities []Community, entities []Entity) []CommunityReport {
	byTitle := make(map[string]Entity, len(entities))
	for _, e := range entities {
		byTitle[e.Title] = e
	}

	reports := make([]CommunityReport, 0, len(communities))
	for _, c := range communities {
		members := make([]Entity, 0, len(c.Members))
		for _, t := range c.Members {
			e, ok := byTitle[t]
			if !ok {
				e = Entity{Title: t}
			}
			members = append(members, e)
		}
		sort.SliceStable(members, func(i, j int) bool { return members[i].Degree > members[j].Degree })

		var (
			head    []string
			summary strings.Builder
			degree  int
		)
		for i, e := range members {
			if i < 3 {
				head = append(head, e.Title)
			}
			degree += e.Degree
			summary.WriteString("- ")
			summary.WriteString(e.Title)
			if e.Description != "" {
				summary.WriteString(": ")
				summary.WriteString(e.Description)
			}
			summary.WriteString("\n")
		}

		reports = append(reports, CommunityReport{
			ID:        fmt.Sprintf("community-%d", c.ID),
			Community: c.ID,
			Title:     strings.Join(head, ", "),
			Summary:   strings.TrimRight(summary.String(), "\n"),
			Rank:      float64(degree) * c.Cohesion,
			Entities:  append([]string(nil), c.Members...),
		})
	}
	return reports
}
