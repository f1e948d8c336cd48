package memory

import (
	"context"
	"time"
)

// Kind identifies a memory category.
type Kind string

const (
	// KindProfile holds persistent facts about the owner (name,
	// preferences, goals).
	KindProfile Kind = "profile"

	// KindSemantic holds general factual knowledge the owner shared.
	KindSemantic Kind = "semantic"

	// KindEpisodic holds summaries of specific past interactions.
	KindEpisodic Kind = "episodic"

	// KindProcedural holds learned behavioral patterns.
	KindProcedural Kind = "procedural"
)

// AllKinds lists every memory kind in canonical order.
func AllKinds() []Kind {
	return []Kind{KindProfile, KindSemantic, KindEpisodic, KindProcedural}
}

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	switch k {
	case KindProfile, KindSemantic, KindEpisodic, KindProcedural:
		return true
	}
	return false
}

// DefaultReliability is used whenever a record carries no reliability.
const DefaultReliability = 0.5

// Memory is one stored record about one owner. Kind-specific fields are
// populated only for the matching Kind; the rest stay zero. All
// strategies consume the same fixed field set, so absent values carry
// explicit defaults instead of being resolved downstream.
type Memory struct {
	ID          string
	Owner       string
	Kind        Kind
	Content     string
	Keywords    []string
	Reliability float64 // [0,1], trust in this record
	AccessCount int
	CreatedAt   time.Time
	UpdatedAt   time.Time

	// Entity identifiers this memory references, used by the graph
	// strategy.
	RelatedEntities []string

	// Profile fields.
	Category  string
	Attribute string
	Value     string

	// Semantic fields.
	Topic string
	Fact  string

	// Episodic fields.
	ConversationID string
	EventType      string
	Summary        string

	// Procedural fields.
	ProcedureName string
	Trigger       string
	Steps         []string

	Embedding []float32
}

// Entity is a node in the owner's knowledge graph.
type Entity struct {
	ID           string
	Owner        string
	Name         string
	Type         string
	Description  string
	MentionCount int
	CreatedAt    time.Time
}

// Order selects the sort applied by Store.Find.
type Order int

const (
	// OrderNone leaves ordering to the backend.
	OrderNone Order = iota

	// OrderReliability sorts by reliability, highest first.
	OrderReliability

	// OrderRecency sorts by creation time, newest first.
	OrderRecency
)

// FindQuery narrows a Store.Find call. The owner is passed separately
// and is always mandatory.
type FindQuery struct {
	Kinds []Kind
	Order Order
	Limit int
}

// Store is the persistence collaborator. Implementations must apply the
// owner filter inside every backend query.
type Store interface {
	// Find returns the owner's memories matching q.
	Find(ctx context.Context, owner string, q FindQuery) ([]Memory, error)

	// GetByID returns one memory, or nil if the owner has no such record.
	GetByID(ctx context.Context, owner string, id string) (*Memory, error)

	// FindEntities returns entities whose name fuzzily matches any of
	// the given names, at most limit per name.
	FindEntities(ctx context.Context, owner string, names []string, limit int) ([]Entity, error)

	// FindByEntities returns memories referencing any of the entity IDs.
	FindByEntities(ctx context.Context, owner string, entityIDs []string, limit int) ([]Memory, error)

	// TouchAccess increments access counts for the given memory IDs.
	// Best-effort; used after a retrieval served the records.
	TouchAccess(ctx context.Context, owner string, ids []string) error

	// Close releases resources.
	Close() error
}

// VectorHit is one similarity-search result.
type VectorHit struct {
	Memory Memory
	// Score is the backend's raw similarity (cosine for the local SDK).
	Score float32
}

// VectorIndex is the similarity-search collaborator. Search must apply
// the owner filter at the index level, not as a post-filter.
type VectorIndex interface {
	// Index stores a memory with its embedding. The embedding must be
	// set before calling Index.
	Index(ctx context.Context, mem Memory) error

	// Search returns the owner's nearest memories, highest similarity
	// first. An empty kinds slice means all kinds.
	Search(ctx context.Context, owner string, vector []float32, kinds []Kind, limit int, scoreThreshold float32) ([]VectorHit, error)

	// Close releases resources.
	Close() error
}

// Embedder converts text to vector embeddings. Implementations must
// return a zero vector for empty or whitespace-only input rather than
// erroring.
type Embedder interface {
	// Embed converts a single text to an embedding vector.
	Embed(ctx context.Context, text string) ([]float32, error)

	// Dimensions returns the embedding vector size.
	Dimensions() int
}
