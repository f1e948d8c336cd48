// Package chromem implements the vector index on chromem-go, a pure Go
// embedded vector database.
//
// Each owner gets a dedicated collection, so similarity search never
// ranges over another owner's vectors; the owner filter is additionally
// applied as a metadata where-clause inside the query.
package chromem

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"sync"

	chromem "github.com/philippgille/chromem-go"

	"github.com/becomeliminal/recall-go-sdk/memory"
)

// Index implements memory.VectorIndex using chromem-go.
type Index struct {
	db          *chromem.DB
	collections map[string]*chromem.Collection
	mu          sync.RWMutex
}

var _ memory.VectorIndex = (*Index)(nil)

// New creates an in-memory chromem index.
func New() (*Index, error) {
	return &Index{
		db:          chromem.NewDB(),
		collections: make(map[string]*chromem.Collection),
	}, nil
}

// getOrCreateCollection returns the owner's collection, creating it on
// first use.
func (s *Index) getOrCreateCollection(owner string) (*chromem.Collection, error) {
	s.mu.RLock()
	col, exists := s.collections[owner]
	s.mu.RUnlock()
	if exists {
		return col, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Double-check after acquiring write lock
	if col, exists := s.collections[owner]; exists {
		return col, nil
	}

	col, err := s.db.CreateCollection(
		fmt.Sprintf("owner_%s", owner),
		nil, // embeddings are provided by the caller
		nil, // default cosine distance
	)
	if err != nil {
		return nil, fmt.Errorf("create collection: %w", err)
	}

	s.collections[owner] = col
	return col, nil
}

// Index stores a memory with its embedding.
func (s *Index) Index(ctx context.Context, mem memory.Memory) error {
	if mem.Owner == "" {
		return fmt.Errorf("index memory: owner required")
	}
	if len(mem.Embedding) == 0 {
		return fmt.Errorf("index memory %s: embedding required", mem.ID)
	}

	col, err := s.getOrCreateCollection(mem.Owner)
	if err != nil {
		return err
	}

	content, err := json.Marshal(mem)
	if err != nil {
		return fmt.Errorf("serialize memory: %w", err)
	}

	doc := chromem.Document{
		ID:        mem.ID,
		Content:   string(content),
		Embedding: mem.Embedding,
		Metadata: map[string]string{
			"owner": mem.Owner,
			"kind":  string(mem.Kind),
		},
	}
	if err := col.AddDocument(ctx, doc); err != nil {
		return fmt.Errorf("add document: %w", err)
	}
	return nil
}

// Search returns the owner's nearest memories above the score
// threshold, highest similarity first.
func (s *Index) Search(ctx context.Context, owner string, vector []float32, kinds []memory.Kind, limit int, scoreThreshold float32) ([]memory.VectorHit, error) {
	if limit <= 0 {
		return nil, nil
	}

	col, err := s.getOrCreateCollection(owner)
	if err != nil {
		return nil, err
	}

	kindSet := make(map[memory.Kind]struct{}, len(kinds))
	for _, k := range kinds {
		kindSet[k] = struct{}{}
	}

	// Kind filtering happens post-query (chromem's where-clause matches
	// a single value), so over-fetch when a kind filter is active.
	fetch := limit
	if len(kindSet) > 0 && len(kindSet) < len(memory.AllKinds()) {
		fetch = limit * 4
	}

	where := map[string]string{"owner": owner}

	// chromem requires nResults <= collection size; shrink until it
	// fits.
	var results []chromem.Result
	for n := fetch; n >= 1; n-- {
		results, err = col.QueryEmbedding(ctx, vector, n, where, nil)
		if err == nil {
			break
		}
		if isInsufficientDocsError(err) {
			if n == 1 {
				return nil, nil
			}
			continue
		}
		return nil, fmt.Errorf("chromem query: %w", err)
	}

	var hits []memory.VectorHit
	for i, result := range results {
		if result.Similarity < scoreThreshold {
			continue
		}
		if len(kindSet) > 0 {
			if _, ok := kindSet[memory.Kind(result.Metadata["kind"])]; !ok {
				continue
			}
		}

		var mem memory.Memory
		if err := json.Unmarshal([]byte(result.Content), &mem); err != nil {
			log.Printf("[CHROMEM] skipping result #%d: %v", i+1, err)
			continue
		}
		mem.Embedding = result.Embedding

		hits = append(hits, memory.VectorHit{Memory: mem, Score: result.Similarity})
		if len(hits) == limit {
			break
		}
	}
	return hits, nil
}

// Close releases resources. chromem keeps everything in memory, so
// there is nothing to release.
func (s *Index) Close() error {
	return nil
}

// isInsufficientDocsError reports whether the query failed because it
// asked for more results than the collection holds.
func isInsufficientDocsError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "nResults must be") || strings.Contains(msg, "number of documents")
}
