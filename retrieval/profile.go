package retrieval

import (
	"context"
	"fmt"

	"github.com/becomeliminal/recall-go-sdk/memory"
)

// profileLimit caps how many profile facts one retrieval pulls,
// independent of the per-strategy limit: profile context is cheap and
// always wanted.
const profileLimit = 20

// ProfileStrategy always returns the owner's profile facts, most
// reliable first. It ignores the query content entirely.
type ProfileStrategy struct {
	store memory.Store
}

// NewProfileStrategy creates the profile strategy.
func NewProfileStrategy(store memory.Store) *ProfileStrategy {
	return &ProfileStrategy{store: store}
}

func (s *ProfileStrategy) Name() string { return MatchProfile }

// Retrieve returns the owner's profile memories regardless of the
// query.
func (s *ProfileStrategy) Retrieve(ctx context.Context, owner string, q Query, limit int) ([]Result, error) {
	mems, err := s.store.Find(ctx, owner, memory.FindQuery{
		Kinds: []memory.Kind{memory.KindProfile},
		Order: memory.OrderReliability,
		Limit: profileLimit,
	})
	if err != nil {
		return nil, fmt.Errorf("load profile: %w", err)
	}

	results := make([]Result, 0, len(mems))
	for _, m := range mems {
		results = append(results, Result{
			Memory:    m,
			RawScore:  m.Reliability,
			MatchType: MatchProfile,
		})
	}
	return results, nil
}
