package retrieval

import (
	"context"
	"fmt"

	"github.com/becomeliminal/recall-go-sdk/memory"
)

const (
	// entityNameLimit bounds fuzzy name matches per query.
	entityNameLimit = 5

	// entityMatchScore is the flat raw score for graph hits: entity
	// linkage marks relevance but carries no similarity gradient.
	entityMatchScore = 0.8
)

// EntityStrategy retrieves memories linked to entities mentioned in the
// query, resolved through fuzzy name matching against the owner's
// knowledge graph.
type EntityStrategy struct {
	store memory.Store
}

// NewEntityStrategy creates the graph strategy.
func NewEntityStrategy(store memory.Store) *EntityStrategy {
	return &EntityStrategy{store: store}
}

func (s *EntityStrategy) Name() string { return MatchEntity }

// Retrieve resolves the detected entity mentions and returns memories
// referencing them.
func (s *EntityStrategy) Retrieve(ctx context.Context, owner string, q Query, limit int) ([]Result, error) {
	if len(q.Entities) == 0 {
		return nil, nil
	}

	entities, err := s.store.FindEntities(ctx, owner, q.Entities, entityNameLimit)
	if err != nil {
		return nil, fmt.Errorf("resolve entities: %w", err)
	}
	if len(entities) == 0 {
		return nil, nil
	}

	ids := make([]string, 0, len(entities))
	for _, e := range entities {
		ids = append(ids, e.ID)
	}

	mems, err := s.store.FindByEntities(ctx, owner, ids, limit)
	if err != nil {
		return nil, fmt.Errorf("find by entities: %w", err)
	}

	results := make([]Result, 0, len(mems))
	for _, m := range mems {
		results = append(results, Result{
			Memory:    m,
			RawScore:  entityMatchScore,
			MatchType: MatchEntity,
		})
	}
	return results, nil
}
