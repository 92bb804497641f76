package graph

// --- Models ---
//
// The JSON layout matches the GraphRAG index output files, so an index built
// by either side can be read by the other.

// Entity is a named node extracted from the source documents. Entities are
// keyed by Title; relationships refer to them by title.
type Entity struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Type        string   `json:"type"`
	Description string   `json:"description"`
	Degree      int      `json:"degree"`
	TextUnitIDs []string `json:"text_unit_ids"`
}

// Relationship links two entities by title.
type Relationship struct {
	ID          string   `json:"id"`
	Source      string   `json:"source"`
	Target      string   `json:"target"`
	Description string   `json:"description"`
	Weight      float64  `json:"weight"`
	TextUnitIDs []string `json:"text_unit_ids"`
}

// TextUnit is a chunk of a source document.
type TextUnit struct {
	ID         string   `json:"id"`
	Text       string   `json:"text"`
	DocumentID string   `json:"document_id"`
	EntityIDs  []string `json:"entity_ids"`
}

// CommunityReport summarizes a community of related entities.
type CommunityReport struct {
	ID        string   `json:"id"`
	Community int      `json:"community"`
	Title     string   `json:"title"`
	Summary   string   `json:"summary"`
	Rank      float64  `json:"rank"`
	Entities  []string `json:"entities"`
}

// Community is a connected group of entities.
type Community struct {
	ID       int      `json:"id"`
	Members  []string `json:"members"` // entity titles, sorted
	Cohesion float64  `json:"cohesion"`
}

// Path is an ordered walk through the graph starting at its first node.
type Path struct {
	Nodes []string `json:"nodes"`
	Depth int      `json:"depth"`
}

// Stats summarizes a graph index.
type Stats struct {
	EntityCount       int `json:"entityCount"`
	RelationshipCount int `json:"relationshipCount"`
	TextUnitCount     int `json:"textUnitCount"`
	ReportCount       int `json:"reportCount"`
}
