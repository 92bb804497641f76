//go:build cgo

package graph

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	kuzu "github.com/kuzudb/go-kuzu"
)

// KuzuStore implements the Store interface using KuzuDB as the graph backend.
// It requires CGO because the go-kuzu driver wraps KuzuDB's C library.
type KuzuStore struct {
	db   *kuzu.Database
	conn *kuzu.Connection
}

// Compile-time check that KuzuStore satisfies Store.
var _ Store = (*KuzuStore)(nil)

// NewKuzuStore creates a KuzuStore backed by an in-memory KuzuDB instance.
func NewKuzuStore() (*KuzuStore, error) {
	return openKuzu(":memory:")
}

// NewKuzuFileStore creates a KuzuStore backed by a file-based KuzuDB at the
// given directory path. KuzuDB creates the leaf directory itself.
func NewKuzuFileStore(dbPath string) (*KuzuStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("kuzu: create parent directory: %w", err)
	}
	return openKuzu(dbPath)
}

func openKuzu(path string) (*KuzuStore, error) {
	cfg := kuzu.DefaultSystemConfig()
	db, err := kuzu.OpenDatabase(path, cfg)
	if err != nil {
		return nil, fmt.Errorf("kuzu: open database: %w", err)
	}
	conn, err := kuzu.OpenConnection(db)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("kuzu: open connection: %w", err)
	}
	return &KuzuStore{db: db, conn: conn}, nil
}

// Close releases the KuzuDB connection and database.
func (s *KuzuStore) Close() error {
	if s.conn != nil {
		s.conn.Close()
	}
	if s.db != nil {
		s.db.Close()
	}
	return nil
}

// ---------- Schema setup ----------

// ddlStatements defines the Cypher DDL executed by InitSchema.
// Node tables must precede relationship tables. List-valued fields are
// stored as JSON strings.
var ddlStatements = []string{
	`CREATE NODE TABLE IF NOT EXISTS Entity(
		title STRING,
		id STRING,
		type STRING,
		description STRING,
		degree INT64,
		text_unit_ids STRING,
		PRIMARY KEY(title)
	)`,
	`CREATE NODE TABLE IF NOT EXISTS TextUnit(
		id STRING,
		text STRING,
		document_id STRING,
		entity_ids STRING,
		PRIMARY KEY(id)
	)`,
	`CREATE NODE TABLE IF NOT EXISTS Report(
		id STRING,
		community INT64,
		title STRING,
		summary STRING,
		rank DOUBLE,
		entities STRING,
		PRIMARY KEY(id)
	)`,
	`CREATE REL TABLE IF NOT EXISTS RELATED(
		FROM Entity TO Entity,
		id STRING,
		description STRING,
		weight DOUBLE,
		text_unit_ids STRING
	)`,
}

// InitSchema creates all node and relationship tables if they do not exist.
func (s *KuzuStore) InitSchema(_ context.Context) error {
	for _, stmt := range ddlStatements {
		res, err := s.conn.Query(stmt)
		if err != nil {
			return fmt.Errorf("kuzu: init schema: %w", err)
		}
		res.Close()
	}
	return nil
}

// resetStatements delete edges before the nodes they join.
var resetStatements = []string{
	`MATCH ()-[r:RELATED]->() DELETE r`,
	`MATCH (e:Entity) DELETE e`,
	`MATCH (u:TextUnit) DELETE u`,
	`MATCH (r:Report) DELETE r`,
}

// Reset deletes every node and edge.
func (s *KuzuStore) Reset(_ context.Context) error {
	for _, stmt := range resetStatements {
		res, err := s.conn.Query(stmt)
		if err != nil {
			return fmt.Errorf("kuzu: reset: %w", err)
		}
		res.Close()
	}
	return nil
}

// ---------- Write operations ----------

// AddEntity upserts an Entity node keyed by title.
func (s *KuzuStore) AddEntity(_ context.Context, e Entity) error {
	return s.exec(
		`MERGE (e:Entity {title: $title})
		 SET e.id = $id, e.type = $type, e.description = $description,
		     e.degree = $degree, e.text_unit_ids = $tus`,
		map[string]any{
			"title":       e.Title,
			"id":          e.ID,
			"type":        e.Type,
			"description": e.Description,
			"degree":      int64(e.Degree),
			"tus":         encodeList(e.TextUnitIDs),
		},
	)
}

// AddRelationship merges both endpoint entities and creates a RELATED edge.
func (s *KuzuStore) AddRelationship(_ context.Context, r Relationship) error {
	for _, title := range []string{r.Source, r.Target} {
		if err := s.exec(
			`MERGE (e:Entity {title: $title})
			 ON CREATE SET e.id = '', e.type = '', e.description = '', e.degree = 0, e.text_unit_ids = '[]'`,
			map[string]any{"title": title},
		); err != nil {
			return err
		}
	}
	return s.exec(
		`MATCH (a:Entity {title: $src}), (b:Entity {title: $dst})
		 CREATE (a)-[:RELATED {id: $id, description: $description, weight: $weight, text_unit_ids: $tus}]->(b)`,
		map[string]any{
			"src":         r.Source,
			"dst":         r.Target,
			"id":          r.ID,
			"description": r.Description,
			"weight":      r.Weight,
			"tus":         encodeList(r.TextUnitIDs),
		},
	)
}

// AddTextUnit upserts a TextUnit node.
func (s *KuzuStore) AddTextUnit(_ context.Context, u TextUnit) error {
	return s.exec(
		`MERGE (u:TextUnit {id: $id})
		 SET u.text = $text, u.document_id = $doc, u.entity_ids = $eids`,
		map[string]any{
			"id":   u.ID,
			"text": u.Text,
			"doc":  u.DocumentID,
			"eids": encodeList(u.EntityIDs),
		},
	)
}

// AddCommunityReport upserts a Report node.
func (s *KuzuStore) AddCommunityReport(_ context.Context, r CommunityReport) error {
	return s.exec(
		`MERGE (r:Report {id: $id})
		 SET r.community = $community, r.title = $title, r.summary = $summary,
		     r.rank = $rank, r.entities = $entities`,
		map[string]any{
			"id":        r.ID,
			"community": int64(r.Community),
			"title":     r.Title,
			"summary":   r.Summary,
			"rank":      r.Rank,
			"entities":  encodeList(r.Entities),
		},
	)
}

// ---------- Read operations ----------

const entityColumns = `e.id, e.title, e.type, e.description, e.degree, e.text_unit_ids`

// GetEntity retrieves an Entity node by title, or returns nil if not found.
func (s *KuzuStore) GetEntity(_ context.Context, title string) (*Entity, error) {
	rows, err := s.query(
		"MATCH (e:Entity {title: $title}) RETURN "+entityColumns,
		map[string]any{"title": title},
	)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	e := rowToEntity(rows[0])
	return &e, nil
}

func (s *KuzuStore) Entities(_ context.Context) ([]Entity, error) {
	rows, err := s.query("MATCH (e:Entity) RETURN "+entityColumns+" ORDER BY e.title", nil)
	if err != nil {
		return nil, err
	}
	out := make([]Entity, 0, len(rows))
	for _, r := range rows {
		out = append(out, rowToEntity(r))
	}
	return out, nil
}

const relColumns = `r.id, a.title, b.title, r.description, r.weight, r.text_unit_ids`

func (s *KuzuStore) Relationships(_ context.Context) ([]Relationship, error) {
	rows, err := s.query(
		"MATCH (a:Entity)-[r:RELATED]->(b:Entity) RETURN "+relColumns+" ORDER BY r.id, a.title, b.title",
		nil,
	)
	if err != nil {
		return nil, err
	}
	return rowsToRels(rows), nil
}

// RelationshipsOf returns relationships with either endpoint in titles.
func (s *KuzuStore) RelationshipsOf(ctx context.Context, titles []string) ([]Relationship, error) {
	all, err := s.Relationships(ctx)
	if err != nil {
		return nil, err
	}
	want := toSet(titles)
	var out []Relationship
	for _, r := range all {
		if want[r.Source] || want[r.Target] {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *KuzuStore) TextUnits(_ context.Context, ids []string) ([]TextUnit, error) {
	rows, err := s.query("MATCH (u:TextUnit) RETURN u.id, u.text, u.document_id, u.entity_ids ORDER BY u.id", nil)
	if err != nil {
		return nil, err
	}
	var want map[string]bool
	if ids != nil {
		want = toSet(ids)
	}
	var out []TextUnit
	for _, r := range rows {
		u := TextUnit{
			ID:         toString(r[0]),
			Text:       toString(r[1]),
			DocumentID: toString(r[2]),
			EntityIDs:  decodeList(r[3]),
		}
		if want == nil || want[u.ID] {
			out = append(out, u)
		}
	}
	return out, nil
}

func (s *KuzuStore) CommunityReports(_ context.Context) ([]CommunityReport, error) {
	rows, err := s.query(
		"MATCH (r:Report) RETURN r.id, r.community, r.title, r.summary, r.rank, r.entities ORDER BY r.id",
		nil,
	)
	if err != nil {
		return nil, err
	}
	out := make([]CommunityReport, 0, len(rows))
	for _, r := range rows {
		out = append(out, CommunityReport{
			ID:        toString(r[0]),
			Community: toInt(r[1]),
			Title:     toString(r[2]),
			Summary:   toString(r[3]),
			Rank:      toFloat64(r[4]),
			Entities:  decodeList(r[5]),
		})
	}
	return out, nil
}

// ---------- Graph traversal ----------

// Neighbors walks RELATED edges in both directions, up to maxDepth hops.
func (s *KuzuStore) Neighbors(_ context.Context, title string, maxDepth int) ([]Path, error) {
	var firstErr error
	paths := bfs(title, maxDepth, func(id string) []string {
		nbs, err := s.adjacent(id)
		if err != nil && firstErr == nil {
			firstErr = err
		}
		return nbs
	})
	if firstErr != nil {
		return nil, firstErr
	}
	return paths, nil
}

func (s *KuzuStore) adjacent(title string) ([]string, error) {
	rows, err := s.query(
		"MATCH (a:Entity {title: $t})-[:RELATED]-(b:Entity) RETURN DISTINCT b.title",
		map[string]any{"t": title},
	)
	if err != nil {
		return nil, err
	}
	set := make(map[string]bool, len(rows))
	for _, r := range rows {
		set[toString(r[0])] = true
	}
	delete(set, title)
	return setToSlice(set), nil
}

// ---------- Stats ----------

// Stats returns counts of every record type.
func (s *KuzuStore) Stats(_ context.Context) (*Stats, error) {
	entities, err := s.count("MATCH (n:Entity) RETURN count(n)")
	if err != nil {
		return nil, err
	}
	rels, err := s.count("MATCH ()-[r:RELATED]->() RETURN count(r)")
	if err != nil {
		return nil, err
	}
	units, err := s.count("MATCH (n:TextUnit) RETURN count(n)")
	if err != nil {
		return nil, err
	}
	reports, err := s.count("MATCH (n:Report) RETURN count(n)")
	if err != nil {
		return nil, err
	}
	return &Stats{
		EntityCount:       entities,
		RelationshipCount: rels,
		TextUnitCount:     units,
		ReportCount:       reports,
	}, nil
}

// ---------- Query helpers ----------

// exec runs a parameterized statement and discards its result.
func (s *KuzuStore) exec(cypher string, params map[string]any) error {
	stmt, err := s.conn.Prepare(cypher)
	if err != nil {
		return fmt.Errorf("kuzu: prepare: %w", err)
	}
	defer stmt.Close()

	res, err := s.conn.Execute(stmt, params)
	if err != nil {
		return fmt.Errorf("kuzu: execute: %w", err)
	}
	res.Close()
	return nil
}

// query runs cypher and collects every row as a slice of values.
func (s *KuzuStore) query(cypher string, params map[string]any) ([][]any, error) {
	var res *kuzu.QueryResult
	var err error

	if len(params) == 0 {
		res, err = s.conn.Query(cypher)
	} else {
		var stmt *kuzu.PreparedStatement
		stmt, err = s.conn.Prepare(cypher)
		if err != nil {
			return nil, fmt.Errorf("kuzu: prepare: %w", err)
		}
		defer stmt.Close()
		res, err = s.conn.Execute(stmt, params)
	}
	if err != nil {
		return nil, fmt.Errorf("kuzu: query: %w", err)
	}
	defer res.Close()

	var rows [][]any
	for res.HasNext() {
		tuple, err := res.Next()
		if err != nil {
			return nil, fmt.Errorf("kuzu: next: %w", err)
		}
		vals, err := tuple.GetAsSlice()
		if err != nil {
			return nil, fmt.Errorf("kuzu: row values: %w", err)
		}
		rows = append(rows, vals)
	}
	return rows, nil
}

func (s *KuzuStore) count(cypher string) (int, error) {
	rows, err := s.query(cypher, nil)
	if err != nil {
		return 0, err
	}
	if len(rows) == 0 || len(rows[0]) == 0 {
		return 0, nil
	}
	return toInt(rows[0][0]), nil
}

// rowToEntity converts a row in entityColumns order.
func rowToEntity(r []any) Entity {
	return Entity{
		ID:          toString(r[0]),
		Title:       toString(r[1]),
		Type:        toString(r[2]),
		Description: toString(r[3]),
		Degree:      toInt(r[4]),
		TextUnitIDs: decodeList(r[5]),
	}
}

// rowsToRels converts rows in relColumns order.
func rowsToRels(rows [][]any) []Relationship {
	out := make([]Relationship, 0, len(rows))
	for _, r := range rows {
		out = append(out, Relationship{
			ID:          toString(r[0]),
			Source:      toString(r[1]),
			Target:      toString(r[2]),
			Description: toString(r[3]),
			Weight:      toFloat64(r[4]),
			TextUnitIDs: decodeList(r[5]),
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func encodeList(ss []string) string {
	if ss == nil {
		ss = []string{}
	}
	data, _ := json.Marshal(ss)
	return string(data)
}

func decodeList(v any) []string {
	s, ok := v.(string)
	if !ok || s == "" {
		return nil
	}
	var out []string
	if err := json.Unmarshal([]byte(s), &out); err != nil {
		return nil
	}
	return out
}

// ---------- Type coercion helpers ----------
// KuzuDB returns typed Go values (int64, float64, bool, string).

func toString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	if v == nil {
		return ""
	}
	return fmt.Sprintf("%v", v)
}

func toInt(v any) int {
	switch n := v.(type) {
	case int64:
		return int(n)
	case int:
		return n
	case int32:
		return int(n)
	case float64:
		return int(n)
	default:
		return 0
	}
}

func toFloat64(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case float32:
		return float64(n)
	case int64:
		return float64(n)
	default:
		return 0
	}
}
