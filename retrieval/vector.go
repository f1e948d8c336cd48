package retrieval

import (
	"context"
	"fmt"

	"github.com/becomeliminal/recall-go-sdk/cache"
	"github.com/becomeliminal/recall-go-sdk/memory"
)

// VectorStrategy retrieves by embedding similarity. The query embedding
// is cached per (owner, text) so repeated queries skip the embedder.
type VectorStrategy struct {
	index      memory.VectorIndex
	embedder   memory.Embedder
	embeddings *cache.Embeddings
	threshold  float32
}

// NewVectorStrategy creates the similarity strategy. The cache may be
// nil to disable embedding reuse. Hits below threshold are dropped by
// the index.
func NewVectorStrategy(index memory.VectorIndex, embedder memory.Embedder, embeddings *cache.Embeddings, threshold float32) *VectorStrategy {
	return &VectorStrategy{
		index:      index,
		embedder:   embedder,
		embeddings: embeddings,
		threshold:  threshold,
	}
}

func (s *VectorStrategy) Name() string { return MatchVector }

// Retrieve embeds the query text and searches the owner's index.
func (s *VectorStrategy) Retrieve(ctx context.Context, owner string, q Query, limit int) ([]Result, error) {
	vec, ok := s.embeddings.Get(owner, q.Text)
	if !ok {
		var err error
		vec, err = s.embedder.Embed(ctx, q.Text)
		if err != nil {
			return nil, fmt.Errorf("embed query: %w", err)
		}
		s.embeddings.Put(owner, q.Text, vec)
	}

	hits, err := s.index.Search(ctx, owner, vec, q.Kinds, limit, s.threshold)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}

	results := make([]Result, 0, len(hits))
	for _, hit := range hits {
		results = append(results, Result{
			Memory:      hit.Memory,
			VectorScore: float64(hit.Score),
			RawScore:    float64(hit.Score),
			MatchType:   MatchVector,
		})
	}
	return results, nil
}
