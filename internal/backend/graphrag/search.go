package graphrag

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/dusk-indust/queryroute/internal/embed"
	"github.com/dusk-indust/queryroute/internal/graph"
)

// LocalSearchPrompt is the system prompt for answering over a local search
// context. {context_data} is replaced by SearchContext.String.
const LocalSearchPrompt = `---Role---

You are a helpful assistant responding to questions about data in the tables provided.

---Goal---

Generate a response that answers the user's question, summarizing all relevant information in the input data tables.
If you don't know the answer, just say so. Do not make anything up.

---Data tables---

{context_data}`

// SearchContext is the part of the graph relevant to one query.
type SearchContext struct {
	Entities      []graph.Entity
	Relationships []graph.Relationship
	Reports       []graph.CommunityReport
	Sources       []graph.TextUnit
}

// BuildSearchContext selects up to topK entities whose title or description
// share terms with query, then pulls in their relationships, the community
// reports that mention them and the text units they were extracted from.
func BuildSearchContext(ctx context.Context, store graph.Store, query string, topK int) (*SearchContext, error) {
	entities, err := store.Entities(ctx)
	if err != nil {
		return nil, err
	}
	sc := &SearchContext{Entities: rankEntities(entities, query, topK)}
	if len(sc.Entities) == 0 {
		return sc, nil
	}

	titles := make([]string, len(sc.Entities))
	selected := make(map[string]bool, len(sc.Entities))
	var unitIDs []string
	seenUnit := make(map[string]bool)
	for i, e := range sc.Entities {
		titles[i] = e.Title
		selected[e.Title] = true
		for _, id := range e.TextUnitIDs {
			if !seenUnit[id] {
				seenUnit[id] = true
				unitIDs = append(unitIDs, id)
			}
		}
	}

	rels, err := store.RelationshipsOf(ctx, titles)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(rels, func(i, j int) bool { return rels[i].Weight > rels[j].Weight })
	sc.Relationships = truncate(rels, 2*topK)

	reports, err := store.CommunityReports(ctx)
	if err != nil {
		return nil, err
	}
	for _, r := range reports {
		for _, member := range r.Entities {
			if selected[member] {
				sc.Reports = append(sc.Reports, r)
				break
			}
		}
	}
	sort.SliceStable(sc.Reports, func(i, j int) bool { return sc.Reports[i].Rank > sc.Reports[j].Rank })
	sc.Reports = truncate(sc.Reports, topK)

	if len(unitIDs) > 0 {
		units, err := store.TextUnits(ctx, unitIDs)
		if err != nil {
			return nil, err
		}
		sc.Sources = truncate(units, topK)
	}
	return sc, nil
}

// rankEntities scores each entity by the number of query terms found in its
// title (counted twice) and description. Ties go to the higher degree.
func rankEntities(entities []graph.Entity, query string, topK int) []graph.Entity {
	var terms []string
	for t := range termSet(query) {
		terms = append(terms, t)
	}
	if len(terms) == 0 {
		return nil
	}

	type scored struct {
		e     graph.Entity
		score int
	}
	var hits []scored
	for _, e := range entities {
		title := termSet(e.Title)
		desc := termSet(e.Description)
		score := 0
		for _, t := range terms {
			if title[t] {
				score += 2
			}
			if desc[t] {
				score++
			}
		}
		if score > 0 {
			hits = append(hits, scored{e, score})
		}
	}
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].score != hits[j].score {
			return hits[i].score > hits[j].score
		}
		return hits[i].e.Degree > hits[j].e.Degree
	})

	out := make([]graph.Entity, 0, topK)
	for _, h := range truncate(hits, topK) {
		out = append(out, h.e)
	}
	return out
}

func termSet(s string) map[string]bool {
	set := make(map[string]bool)
	for _, t := range embed.Terms(s) {
		set[t] = true
	}
	return set
}

func truncate[T any](s []T, n int) []T {
	if n > 0 && len(s) > n {
		return s[:n]
	}
	return s
}

// String renders the context as the pipe-delimited tables the prompt
// expects. Empty tables are omitted.
func (sc *SearchContext) String() string {
	var b strings.Builder

	if len(sc.Reports) > 0 {
		b.WriteString("-----Reports-----\nid|title|content\n")
		for _, r := range sc.Reports {
			fmt.Fprintf(&b, "%d|%s|%s\n", r.Community, clean(r.Title), clean(r.Summary))
		}
		b.WriteString("\n")
	}
	if len(sc.Entities) > 0 {
		b.WriteString("-----Entities-----\nid|entity|description|number of relationships\n")
		for i, e := range sc.Entities {
			fmt.Fprintf(&b, "%d|%s|%s|%d\n", i, clean(e.Title), clean(e.Description), e.Degree)
		}
		b.WriteString("\n")
	}
	if len(sc.Relationships) > 0 {
		b.WriteString("-----Relationships-----\nid|source|target|description|weight\n")
		for i, r := range sc.Relationships {
			fmt.Fprintf(&b, "%d|%s|%s|%s|%g\n", i, clean(r.Source), clean(r.Target), clean(r.Description), r.Weight)
		}
		b.WriteString("\n")
	}
	if len(sc.Sources) > 0 {
		b.WriteString("-----Sources-----\nid|text\n")
		for i, u := range sc.Sources {
			fmt.Fprintf(&b, "%d|%s\n", i, clean(u.Text))
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

// clean keeps a cell on one line.
func clean(s string) string {
	return strings.Join(strings.Fields(strings.ReplaceAll(s, "|", "/")), " ")
}
