package retrieval

import (
	"context"
	"fmt"
	"time"

	"github.com/becomeliminal/recall-go-sdk/memory"
)

// recentWindowDays is the linear decay horizon: an episodic memory this
// old or older contributes zero recency.
const recentWindowDays = 30

// RecentStrategy returns the owner's newest episodic memories, scored
// by linear age decay weighted by reliability.
type RecentStrategy struct {
	store memory.Store
}

// NewRecentStrategy creates the recency strategy.
func NewRecentStrategy(store memory.Store) *RecentStrategy {
	return &RecentStrategy{store: store}
}

func (s *RecentStrategy) Name() string { return MatchRecent }

// Retrieve returns recent episodic memories regardless of the query.
func (s *RecentStrategy) Retrieve(ctx context.Context, owner string, q Query, limit int) ([]Result, error) {
	mems, err := s.store.Find(ctx, owner, memory.FindQuery{
		Kinds: []memory.Kind{memory.KindEpisodic},
		Order: memory.OrderRecency,
		Limit: limit,
	})
	if err != nil {
		return nil, fmt.Errorf("load recent: %w", err)
	}

	now := time.Now()
	results := make([]Result, 0, len(mems))
	for _, m := range mems {
		recency := 0.0
		if !m.CreatedAt.IsZero() {
			ageDays := now.Sub(m.CreatedAt).Hours() / 24
			recency = 1 - ageDays/recentWindowDays
			if recency < 0 {
				recency = 0
			}
		}
		results = append(results, Result{
			Memory:       m,
			RecencyScore: recency,
			RawScore:     recency * m.Reliability,
			MatchType:    MatchRecent,
		})
	}
	return results, nil
}
