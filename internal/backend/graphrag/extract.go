package graphrag

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"github.com/dusk-indust/queryroute/internal/graph"
	"github.com/dusk-indust/queryroute/internal/llm"
)

// ExtractPrompt asks the model for the entities and relationships of one
// text unit. {text} is replaced by the unit text.
const ExtractPrompt = `Identify all entities in the text below and all relationships between them.

Return a single JSON object and nothing else, in this form:
{"entities": [{"name": "...", "type": "person|organization|geo|event|concept", "description": "..."}],
 "relationships": [{"source": "...", "target": "...", "description": "...", "weight": 1}]}

Relationship sources and targets must be entity names from the entities list.

Text:
{text}`

// extractMaxTokens bounds the extraction answer.
const extractMaxTokens = 2048

var idNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("queryroute/graph_rag"))

func newID(parts ...string) string {
	return uuid.NewSHA1(idNamespace, []byte(strings.Join(parts, "\x00"))).String()
}

// Extraction is the parsed model output for one text unit.
type Extraction struct {
	Entities      []graph.Entity
	Relationships []graph.Relationship
}

// ParseExtraction reads the JSON object embedded in a model answer. Text
// around the object, such as a Markdown fence, is ignored. Entities without
// a name and relationships without both endpoints are dropped.
func ParseExtraction(out string) (*Extraction, error) {
	start := strings.Index(out, "{")
	end := strings.LastIndex(out, "}")
	if start < 0 || end < start {
		return nil, errors.New("graphrag: no JSON object in extraction output")
	}
	raw := out[start : end+1]
	if !gjson.Valid(raw) {
		return nil, errors.New("graphrag: invalid JSON in extraction output")
	}

	doc := gjson.Parse(raw)
	ex := &Extraction{}
	for _, e := range doc.Get("entities").Array() {
		name := strings.TrimSpace(e.Get("name").String())
		if name == "" {
			name = strings.TrimSpace(e.Get("title").String())
		}
		if name == "" {
			continue
		}
		ex.Entities = append(ex.Entities, graph.Entity{
			Title:       name,
			Type:        strings.ToLower(strings.TrimSpace(e.Get("type").String())),
			Description: strings.TrimSpace(e.Get("description").String()),
		})
	}
	for _, r := range doc.Get("relationships").Array() {
		src := strings.TrimSpace(r.Get("source").String())
		dst := strings.TrimSpace(r.Get("target").String())
		if src == "" || dst == "" {
			continue
		}
		w := r.Get("weight")
		weight := 1.0
		if w.Exists() && w.Float() > 0 {
			weight = w.Float()
		}
		ex.Relationships = append(ex.Relationships, graph.Relationship{
			Source:      src,
			Target:      dst,
			Description: strings.TrimSpace(r.Get("description").String()),
			Weight:      weight,
		})
	}
	return ex, nil
}

// indexBuilder merges extractions across text units.
type indexBuilder struct {
	entities map[string]*graph.Entity
	rels     map[string]*graph.Relationship
	units    []graph.TextUnit
}

func newIndexBuilder() *indexBuilder {
	return &indexBuilder{
		entities: make(map[string]*graph.Entity),
		rels:     make(map[string]*graph.Relationship),
	}
}

// add merges ex, extracted from unit. Repeated entities accumulate distinct
// descriptions; repeated relationships accumulate weight.
func (ib *indexBuilder) add(unit graph.TextUnit, ex *Extraction) {
	seen := make(map[string]bool)
	for _, e := range ex.Entities {
		cur, ok := ib.entities[e.Title]
		if !ok {
			cur = &graph.Entity{ID: newID("entity", e.Title), Title: e.Title, Type: e.Type}
			ib.entities[e.Title] = cur
		}
		cur.Description = appendDescription(cur.Description, e.Description)
		if cur.Type == "" {
			cur.Type = e.Type
		}
		cur.TextUnitIDs = appendUnique(cur.TextUnitIDs, unit.ID)
		if !seen[cur.ID] {
			seen[cur.ID] = true
			unit.EntityIDs = append(unit.EntityIDs, cur.ID)
		}
	}
	for _, r := range ex.Relationships {
		key := r.Source + "\x00" + r.Target
		cur, ok := ib.rels[key]
		if !ok {
			cur = &graph.Relationship{ID: newID("relationship", r.Source, r.Target), Source: r.Source, Target: r.Target}
			ib.rels[key] = cur
		}
		cur.Description = appendDescription(cur.Description, r.Description)
		cur.Weight += r.Weight
		cur.TextUnitIDs = appendUnique(cur.TextUnitIDs, unit.ID)

		// Endpoints the model forgot to list still become entities.
		for _, title := range []string{r.Source, r.Target} {
			e, ok := ib.entities[title]
			if !ok {
				e = &graph.Entity{ID: newID("entity", title), Title: title}
				ib.entities[title] = e
			}
			e.TextUnitIDs = appendUnique(e.TextUnitIDs, unit.ID)
			if !seen[e.ID] {
				seen[e.ID] = true
				unit.EntityIDs = append(unit.EntityIDs, e.ID)
			}
		}
	}
	ib.units = append(ib.units, unit)
}

// write stores the merged graph, its communities and their reports in store.
func (ib *indexBuilder) write(ctx context.Context, store graph.Store) error {
	entities := make([]graph.Entity, 0, len(ib.entities))
	for _, e := range ib.entities {
		entities = append(entities, *e)
	}
	sort.Slice(entities, func(i, j int) bool { return entities[i].Title < entities[j].Title })

	rels := make([]graph.Relationship, 0, len(ib.rels))
	for _, r := range ib.rels {
		rels = append(rels, *r)
	}
	sort.Slice(rels, func(i, j int) bool { return rels[i].ID < rels[j].ID })

	entities = graph.ComputeDegrees(entities, rels)

	if err := store.InitSchema(ctx); err != nil {
		return err
	}
	for _, e := range entities {
		if err := store.AddEntity(ctx, e); err != nil {
			return err
		}
	}
	for _, r := range rels {
		if err := store.AddRelationship(ctx, r); err != nil {
			return err
		}
	}
	for _, u := range ib.units {
		if err := store.AddTextUnit(ctx, u); err != nil {
			return err
		}
	}

	communities, err := graph.DetectCommunities(ctx, store)
	if err != nil {
		return err
	}
	for _, r := range graph.BuildReports(communities, entities) {
		if err := store.AddCommunityReport(ctx, r); err != nil {
			return err
		}
	}
	return nil
}

// BuildIndex extracts a graph from data and writes it under
// metadata["data_path"] (or graph_rag.data_path). Each document is cut into
// text units; a unit whose model answer cannot be parsed is skipped with a
// warning, while an LLM call failure fails the build.
func (b *Backend) BuildIndex(ctx context.Context, data []string, metadata map[string]any) bool {
	dataPath := b.dataPath
	if v, ok := metadata[ContextDataPath].(string); ok && v != "" {
		dataPath = v
	}
	if dataPath == "" {
		b.logger.Error("graphrag: build index: no data path configured")
		return false
	}

	ib := newIndexBuilder()
	var result *multierror.Error
	for i, doc := range data {
		docID := newID("document", doc)
		for j, chunk := range b.splitter.Split(doc) {
			unit := graph.TextUnit{ID: newID("unit", docID, fmt.Sprint(j)), Text: chunk, DocumentID: docID}
			ex, err := b.extract(ctx, chunk)
			var parseErr *parseError
			switch {
			case errors.As(err, &parseErr):
				b.logger.Warn("graphrag: skipping text unit",
					zap.Int("document", i),
					zap.Int("unit", j),
					zap.Error(err),
				)
				ex = &Extraction{}
			case err != nil:
				result = multierror.Append(result, fmt.Errorf("document %d unit %d: %w", i, j, err))
				continue
			}
			ib.add(unit, ex)
		}
	}
	if err := result.ErrorOrNil(); err != nil {
		b.logger.Error("graphrag: build index failed", zap.Error(err))
		return false
	}

	scratch := graph.NewMemStore()
	if err := ib.write(ctx, scratch); err != nil {
		b.logger.Error("graphrag: build index failed", zap.Error(err))
		return false
	}
	if err := graph.WriteDir(ctx, dataPath, scratch); err != nil {
		b.logger.Error("graphrag: write index failed", zap.String("data_path", dataPath), zap.Error(err))
		return false
	}
	b.forget(dataPath)

	stats, _ := scratch.Stats(ctx)
	b.logger.Info("graphrag: index built",
		zap.String("data_path", dataPath),
		zap.Int("documents", len(data)),
		zap.Int("entities", stats.EntityCount),
		zap.Int("relationships", stats.RelationshipCount),
		zap.Int("reports", stats.ReportCount),
	)
	return true
}

type parseError struct{ err error }

func (e *parseError) Error() string { return e.err.Error() }
func (e *parseError) Unwrap() error { return e.err }

func (b *Backend) extract(ctx context.Context, text string) (*Extraction, error) {
	out, err := b.client.Complete(ctx, llm.Request{
		Prompt:      llm.FormatPrompt(ExtractPrompt, map[string]string{"text": text}),
		MaxTokens:   extractMaxTokens,
		Temperature: 0,
	})
	if err != nil {
		return nil, fmt.Errorf("graphrag: extract: %w", err)
	}
	ex, err := ParseExtraction(out)
	if err != nil {
		return nil, &parseError{err}
	}
	return ex, nil
}

func appendDescription(cur, add string) string {
	switch {
	case add == "":
		return cur
	case cur == "":
		return add
	case strings.Contains(cur, add):
		return cur
	default:
		return cur + "\n" + add
	}
}

func appendUnique(s []string, v string) []string {
	for _, x := range s {
		if x == v {
			return s
		}
	}
	return append(s, v)
}
