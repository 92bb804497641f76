package export

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/dusk-indust/queryroute/internal/graph"
	"github.com/dusk-indust/queryroute/internal/orchestrator"
)

// GenerateTraceMermaid produces a Mermaid graph TD diagram of a pipeline
// run: the query fans out to its sub-queries, each labelled edge names the
// chosen strategy, and failed results are styled.
func GenerateTraceMermaid(t *orchestrator.Trace) string {
	var sb strings.Builder
	sb.WriteString("graph TD\n")
	fmt.Fprintf(&sb, "  Q[\"%s\"]\n", label(t.Query, 60))

	var failed []string
	for i, r := range t.Routes {
		sq := fmt.Sprintf("S%d", i)
		fmt.Fprintf(&sb, "  Q --> %s[\"%s\"]\n", sq, label(r.Subquery, 40))
		if i >= len(t.Results) {
			continue
		}
		res := t.Results[i]
		rid := fmt.Sprintf("R%d", i)
		fmt.Fprintf(&sb, "  %s -->|%s| %s[\"%s\"]\n", sq, r.Strategy, rid, label(res.Result, 40))
		if res.Err != nil {
			failed = append(failed, rid)
		}
	}
	if len(failed) > 0 {
		sb.WriteString("  classDef failed stroke:#d33,stroke-width:2px\n")
		fmt.Fprintf(&sb, "  class %s failed\n", strings.Join(failed, ","))
	}
	return sb.String()
}

// GenerateGraphMermaid produces a Mermaid graph TD diagram of a knowledge
// graph. Entities are grouped by community report; relationships become
// arrows.
func GenerateGraphMermaid(ctx context.Context, store graph.Store) (string, error) {
	reports, err := store.CommunityReports(ctx)
	if err != nil {
		return "", fmt.Errorf("get community reports: %w", err)
	}

	rels, err := store.Relationships(ctx)
	if err != nil {
		return "", fmt.Errorf("get relationships: %w", err)
	}

	// Build node → ID mapping for Mermaid (alphanumeric only).
	nodeIDs := make(map[string]string)
	nextID := 0
	getID := func(name string) string {
		if id, ok := nodeIDs[name]; ok {
			return id
		}
		id := fmt.Sprintf("N%d", nextID)
		nextID++
		nodeIDs[name] = id
		return id
	}

	var sb strings.Builder
	sb.WriteString("graph TD\n")

	for _, r := range reports {
		if len(r.Entities) == 0 {
			continue
		}
		sorted := make([]string, len(r.Entities))
		copy(sorted, r.Entities)
		sort.Strings(sorted)

		fmt.Fprintf(&sb, "  subgraph %s[\"%s\"]\n", getID(r.ID+"_community"), label(r.Title, 40))
		for _, member := range sorted {
			fmt.Fprintf(&sb, "    %s[\"%s\"]\n", getID(member), label(member, 40))
		}
		sb.WriteString("  end\n")
	}

	for _, r := range rels {
		src, tgt := getID(r.Source), getID(r.Target)
		if r.Description != "" {
			fmt.Fprintf(&sb, "  %s -->|%s| %s\n", src, label(r.Description, 30), tgt)
		} else {
			fmt.Fprintf(&sb, "  %s --> %s\n", src, tgt)
		}
	}

	return sb.String(), nil
}

// label makes s safe inside a quoted Mermaid label and cuts it to max runes.
func label(s string, max int) string {
	s = strings.Join(strings.Fields(s), " ")
	s = strings.NewReplacer(`"`, "'", "|", "/", "[", "(", "]", ")").Replace(s)
	r := []rune(s)
	if len(r) > max {
		return string(r[:max-1]) + "…"
	}
	return s
}
