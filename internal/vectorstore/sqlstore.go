package vectorstore

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// Compile-time interface check.
var _ Store = (*SQLStore)(nil)

func init() {
	// modernc registers itself as "sqlite", which sqlx does not know.
	sqlx.BindDriver("sqlite", sqlx.QUESTION)
}

const schema = `CREATE TABLE IF NOT EXISTS queryroute_chunks (
	id        TEXT PRIMARY KEY,
	text      TEXT NOT NULL,
	metadata  TEXT NOT NULL,
	embedding TEXT NOT NULL
)`

const upsert = `INSERT INTO queryroute_chunks (id, text, metadata, embedding)
VALUES (:id, :text, :metadata, :embedding)
ON CONFLICT (id) DO UPDATE SET
	text = excluded.text,
	metadata = excluded.metadata,
	embedding = excluded.embedding`

type chunkRow struct {
	ID        string `db:"id"`
	Text      string `db:"text"`
	Metadata  string `db:"metadata"`
	Embedding string `db:"embedding"`
}

// SQLStore persists documents in SQLite or Postgres. Embeddings are stored
// as JSON and ranked in process.
type SQLStore struct {
	db *sqlx.DB
}

// OpenSQLStore connects with driver ("sqlite" or "postgres") and creates the
// chunk table if needed.
func OpenSQLStore(ctx context.Context, driver, dsn string) (*SQLStore, error) {
	db, err := sqlx.ConnectContext(ctx, driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("vectorstore: connect %s: %w", driver, err)
	}
	if driver == "sqlite" {
		// A single connection serializes writers.
		db.SetMaxOpenConns(1)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("vectorstore: create schema: %w", err)
	}
	return &SQLStore{db: db}, nil
}

func (s *SQLStore) Add(ctx context.Context, docs []Document) error {
	if len(docs) == 0 {
		return nil
	}
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("vectorstore: begin: %w", err)
	}
	defer tx.Rollback()

	for _, d := range docs {
		row, err := toRow(d)
		if err != nil {
			return err
		}
		if _, err := tx.NamedExecContext(ctx, upsert, row); err != nil {
			return fmt.Errorf("vectorstore: insert %s: %w", d.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("vectorstore: commit: %w", err)
	}
	return nil
}

func (s *SQLStore) Search(ctx context.Context, query []float32, k int) ([]Hit, error) {
	var rows []chunkRow
	if err := s.db.SelectContext(ctx, &rows, `SELECT id, text, metadata, embedding FROM queryroute_chunks ORDER BY id`); err != nil {
		return nil, fmt.Errorf("vectorstore: select: %w", err)
	}
	docs := make([]Document, 0, len(rows))
	for _, r := range rows {
		d, err := fromRow(r)
		if err != nil {
			return nil, err
		}
		docs = append(docs, d)
	}
	return rank(docs, query, k), nil
}

func (s *SQLStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM queryroute_chunks`); err != nil {
		return 0, fmt.Errorf("vectorstore: count: %w", err)
	}
	return n, nil
}

func (s *SQLStore) Close() error {
	return s.db.Close()
}

func toRow(d Document) (chunkRow, error) {
	md := d.Metadata
	if md == nil {
		md = map[string]any{}
	}
	mdJSON, err := json.Marshal(md)
	if err != nil {
		return chunkRow{}, fmt.Errorf("vectorstore: encode metadata for %s: %w", d.ID, err)
	}
	embJSON, err := json.Marshal(d.Embedding)
	if err != nil {
		return chunkRow{}, fmt.Errorf("vectorstore: encode embedding for %s: %w", d.ID, err)
	}
	return chunkRow{ID: d.ID, Text: d.Text, Metadata: string(mdJSON), Embedding: string(embJSON)}, nil
}

func fromRow(r chunkRow) (Document, error) {
	d := Document{ID: r.ID, Text: r.Text}
	if err := json.Unmarshal([]byte(r.Metadata), &d.Metadata); err != nil {
		return Document{}, fmt.Errorf("vectorstore: decode metadata for %s: %w", r.ID, err)
	}
	if err := json.Unmarshal([]byte(r.Embedding), &d.Embedding); err != nil {
		return Document{}, fmt.Errorf("vectorstore: decode embedding for %s: %w", r.ID, err)
	}
	return d, nil
}
