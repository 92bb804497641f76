package graph

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/tidwall/gjson"
)

// Index output files, relative to <data_path>/output.
const (
	OutputDir            = "output"
	EntitiesFile         = "entities.json"
	RelationshipsFile    = "relationships.json"
	CommunityReportsFile = "community_reports.json"
	TextUnitsFile        = "text_units.json"
)

// OutputFiles lists the files an index must contain, in load order.
var OutputFiles = []string{EntitiesFile, RelationshipsFile, CommunityReportsFile, TextUnitsFile}

// ErrMissingIndexFile is returned when an index output file is absent.
var ErrMissingIndexFile = errors.New("graph: index file missing")

// OutputPath returns <dataPath>/output.
func OutputPath(dataPath string) string {
	return filepath.Join(dataPath, OutputDir)
}

// MissingFiles returns the index files absent under dataPath.
func MissingFiles(dataPath string) []string {
	var missing []string
	for _, name := range OutputFiles {
		if _, err := os.Stat(filepath.Join(OutputPath(dataPath), name)); err != nil {
			missing = append(missing, name)
		}
	}
	return missing
}

// LoadDir reads the index under dataPath into store, replacing whatever the
// store held before. Every output file must exist; records are decoded leniently so that indexes written by other
// tools, with extra or missing fields, still load.
func LoadDir(ctx context.Context, dataPath string, store Store) error {
	if missing := MissingFiles(dataPath); len(missing) > 0 {
		return fmt.Errorf("%w: %s in %s", ErrMissingIndexFile, missing[0], OutputPath(dataPath))
	}

	docs := make(map[string]gjson.Result, len(OutputFiles))
	for _, name := range OutputFiles {
		path := filepath.Join(OutputPath(dataPath), name)
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("graph: read %s: %w", path, err)
		}
		if !gjson.ValidBytes(data) {
			return fmt.Errorf("graph: %s is not valid JSON", path)
		}
		doc := gjson.ParseBytes(data)
		if !doc.IsArray() {
			return fmt.Errorf("graph: %s must hold a JSON array", path)
		}
		docs[name] = doc
	}

	if err := store.InitSchema(ctx); err != nil {
		return err
	}
	if err := store.Reset(ctx); err != nil {
		return err
	}

	var err error
	each := func(name string, fn func(v gjson.Result) error) {
		docs[name].ForEach(func(_, v gjson.Result) bool {
			err = fn(v)
			return err == nil
		})
	}

	each(EntitiesFile, func(v gjson.Result) error {
		return store.AddEntity(ctx, Entity{
			ID:          v.Get("id").String(),
			Title:       v.Get("title").String(),
			Type:        v.Get("type").String(),
			Description: v.Get("description").String(),
			Degree:      int(v.Get("degree").Int()),
			TextUnitIDs: stringArray(v.Get("text_unit_ids")),
		})
	})
	if err != nil {
		return fmt.Errorf("graph: load entities: %w", err)
	}

	each(RelationshipsFile, func(v gjson.Result) error {
		weight := 1.0
		if w := v.Get("weight"); w.Exists() {
			weight = w.Float()
		}
		return store.AddRelationship(ctx, Relationship{
			ID:          v.Get("id").String(),
			Source:      v.Get("source").String(),
			Target:      v.Get("target").String(),
			Description: v.Get("description").String(),
			Weight:      weight,
			TextUnitIDs: stringArray(v.Get("text_unit_ids")),
		})
	})
	if err != nil {
		return fmt.Errorf("graph: load relationships: %w", err)
	}

	each(CommunityReportsFile, func(v gjson.Result) error {
		return store.AddCommunityReport(ctx, CommunityReport{
			ID:        v.Get("id").String(),
			Community: int(v.Get("community").Int()),
			Title:     v.Get("title").String(),
			Summary:   v.Get("summary").String(),
			Rank:      v.Get("rank").Float(),
			Entities:  stringArray(v.Get("entities")),
		})
	})
	if err != nil {
		return fmt.Errorf("graph: load community reports: %w", err)
	}

	each(TextUnitsFile, func(v gjson.Result) error {
		return store.AddTextUnit(ctx, TextUnit{
			ID:         v.Get("id").String(),
			Text:       v.Get("text").String(),
			DocumentID: v.Get("document_id").String(),
			EntityIDs:  stringArray(v.Get("entity_ids")),
		})
	})
	if err != nil {
		return fmt.Errorf("graph: load text units: %w", err)
	}
	return nil
}

// WriteDir writes every record in store under dataPath/output.
func WriteDir(ctx context.Context, dataPath string, store Store) error {
	dir := OutputPath(dataPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("graph: create %s: %w", dir, err)
	}

	entities, err := store.Entities(ctx)
	if err != nil {
		return err
	}
	rels, err := store.Relationships(ctx)
	if err != nil {
		return err
	}
	reports, err := store.CommunityReports(ctx)
	if err != nil {
		return err
	}
	units, err := store.TextUnits(ctx, nil)
	if err != nil {
		return err
	}

	for name, v := range map[string]any{
		EntitiesFile:         nonNil(entities),
		RelationshipsFile:    nonNil(rels),
		CommunityReportsFile: nonNil(reports),
		TextUnitsFile:        nonNil(units),
	} {
		data, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return fmt.Errorf("graph: encode %s: %w", name, err)
		}
		if err := os.WriteFile(filepath.Join(dir, name), data, 0o644); err != nil {
			return fmt.Errorf("graph: write %s: %w", name, err)
		}
	}
	return nil
}

func stringArray(r gjson.Result) []string {
	if !r.IsArray() {
		return nil
	}
	arr := r.Array()
	out := make([]string, 0, len(arr))
	for _, v := range arr {
		out = append(out, v.String())
	}
	return out
}

// nonNil keeps empty listings encoding as [] rather than null.
func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
