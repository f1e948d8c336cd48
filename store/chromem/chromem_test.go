package chromem_test

import (
	"context"
	"testing"

	"github.com/becomeliminal/recall-go-sdk/memory"
	"github.com/becomeliminal/recall-go-sdk/store/chromem"
)

// unit returns a unit vector pointing along one axis, for predictable
// similarities.
func unit(dims, axis int) []float32 {
	v := make([]float32, dims)
	v[axis] = 1
	return v
}

func index(t *testing.T, mems ...memory.Memory) *chromem.Index {
	t.Helper()
	idx, err := chromem.New()
	if err != nil {
		t.Fatalf("new index: %v", err)
	}
	t.Cleanup(func() { idx.Close() })

	for _, m := range mems {
		if err := idx.Index(context.Background(), m); err != nil {
			t.Fatalf("index %s: %v", m.ID, err)
		}
	}
	return idx
}

func TestSearch_ReturnsNearest(t *testing.T) {
	idx := index(t,
		memory.Memory{ID: "near", Owner: "u1", Kind: memory.KindSemantic, Content: "near", Embedding: unit(8, 0)},
		memory.Memory{ID: "far", Owner: "u1", Kind: memory.KindSemantic, Content: "far", Embedding: unit(8, 1)},
	)

	hits, err := idx.Search(context.Background(), "u1", unit(8, 0), nil, 2, 0)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) == 0 || hits[0].Memory.ID != "near" {
		t.Fatalf("hits = %+v, want near first", hits)
	}
	if hits[0].Score < 0.99 {
		t.Errorf("identical vector similarity = %f, want ~1", hits[0].Score)
	}
}

func TestSearch_OwnerIsolation(t *testing.T) {
	idx := index(t,
		memory.Memory{ID: "mine", Owner: "u1", Kind: memory.KindSemantic, Content: "mine", Embedding: unit(8, 0)},
		memory.Memory{ID: "theirs", Owner: "u2", Kind: memory.KindSemantic, Content: "theirs", Embedding: unit(8, 0)},
	)

	hits, err := idx.Search(context.Background(), "u1", unit(8, 0), nil, 10, 0)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	for _, h := range hits {
		if h.Memory.Owner != "u1" {
			t.Errorf("foreign memory leaked: %s", h.Memory.ID)
		}
	}
	if len(hits) != 1 {
		t.Errorf("len(hits) = %d, want 1", len(hits))
	}
}

func TestSearch_KindFilter(t *testing.T) {
	idx := index(t,
		memory.Memory{ID: "sem", Owner: "u1", Kind: memory.KindSemantic, Content: "a", Embedding: unit(8, 0)},
		memory.Memory{ID: "epi", Owner: "u1", Kind: memory.KindEpisodic, Content: "b", Embedding: unit(8, 0)},
	)

	hits, err := idx.Search(context.Background(), "u1", unit(8, 0),
		[]memory.Kind{memory.KindEpisodic}, 10, 0)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) != 1 || hits[0].Memory.ID != "epi" {
		t.Errorf("hits = %+v, want only the episodic memory", hits)
	}
}

func TestSearch_ScoreThreshold(t *testing.T) {
	idx := index(t,
		memory.Memory{ID: "aligned", Owner: "u1", Kind: memory.KindSemantic, Content: "a", Embedding: unit(8, 0)},
		memory.Memory{ID: "orthogonal", Owner: "u1", Kind: memory.KindSemantic, Content: "b", Embedding: unit(8, 1)},
	)

	hits, err := idx.Search(context.Background(), "u1", unit(8, 0), nil, 10, 0.5)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) != 1 || hits[0].Memory.ID != "aligned" {
		t.Errorf("hits = %+v, want only the aligned memory", hits)
	}
}

func TestSearch_EmptyCollection(t *testing.T) {
	idx := index(t)

	hits, err := idx.Search(context.Background(), "nobody", unit(8, 0), nil, 5, 0)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) != 0 {
		t.Errorf("hits = %+v, want none", hits)
	}
}

func TestIndex_RequiresEmbedding(t *testing.T) {
	idx := index(t)

	err := idx.Index(context.Background(), memory.Memory{ID: "x", Owner: "u1", Kind: memory.KindSemantic})
	if err == nil {
		t.Error("Index without embedding should fail")
	}
}

func TestSearch_RoundTripsFields(t *testing.T) {
	m := memory.Memory{
		ID: "m1", Owner: "u1", Kind: memory.KindProfile,
		Content: "likes coffee", Category: "food", Attribute: "drink", Value: "coffee",
		Keywords: []string{"coffee"}, Reliability: 0.9,
		Embedding: unit(8, 0),
	}
	idx := index(t, m)

	hits, err := idx.Search(context.Background(), "u1", unit(8, 0), nil, 1, 0)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) != 1 {
		t.Fatalf("len(hits) = %d, want 1", len(hits))
	}
	got := hits[0].Memory
	if got.Category != "food" || got.Value != "coffee" || got.Reliability != 0.9 {
		t.Errorf("round trip lost fields: %+v", got)
	}
	if len(got.Keywords) != 1 || got.Keywords[0] != "coffee" {
		t.Errorf("Keywords = %v, want [coffee]", got.Keywords)
	}
}
