package graph

import (
	"context"
	"io"
)

// Store is the interface for the knowledge graph backend.
// Implementations: KuzuStore (cgo builds), MemStore.
type Store interface {
	io.Closer

	// Schema setup, called once before any data is inserted.
	InitSchema(ctx context.Context) error

	// Reset removes every record, keeping the schema.
	Reset(ctx context.Context) error

	// Write operations. Adding an entity with an existing title replaces it.
	// Adding a relationship creates placeholder entities for unknown
	// endpoints.
	AddEntity(ctx context.Context, e Entity) error
	AddRelationship(ctx context.Context, r Relationship) error
	AddTextUnit(ctx context.Context, u TextUnit) error
	AddCommunityReport(ctx context.Context, r CommunityReport) error

	// Read operations. Listings are sorted by title or ID.
	GetEntity(ctx context.Context, title string) (*Entity, error)
	Entities(ctx context.Context) ([]Entity, error)
	Relationships(ctx context.Context) ([]Relationship, error)
	RelationshipsOf(ctx context.Context, titles []string) ([]Relationship, error)
	TextUnits(ctx context.Context, ids []string) ([]TextUnit, error) // nil ids lists all
	CommunityReports(ctx context.Context) ([]CommunityReport, error)

	// Graph traversal, ignoring edge direction.
	Neighbors(ctx context.Context, title string, maxDepth int) ([]Path, error)

	// Stats.
	Stats(ctx context.Context) (*Stats, error)
}
