package retrieval_test

import (
	"context"
	"errors"
	"sort"
	"testing"
	"time"

	"github.com/becomeliminal/recall-go-sdk/analyzer"
	"github.com/becomeliminal/recall-go-sdk/memory"
	"github.com/becomeliminal/recall-go-sdk/retrieval"
)

// fakeStore is an in-memory Store for strategy tests.
type fakeStore struct {
	memories []memory.Memory
	entities []memory.Entity
	links    map[string][]string // entity ID -> memory IDs
	findErr  error
}

func (s *fakeStore) Find(ctx context.Context, owner string, q memory.FindQuery) ([]memory.Memory, error) {
	if s.findErr != nil {
		return nil, s.findErr
	}

	kinds := make(map[memory.Kind]struct{}, len(q.Kinds))
	for _, k := range q.Kinds {
		kinds[k] = struct{}{}
	}

	var out []memory.Memory
	for _, m := range s.memories {
		if m.Owner != owner {
			continue
		}
		if len(kinds) > 0 {
			if _, ok := kinds[m.Kind]; !ok {
				continue
			}
		}
		out = append(out, m)
	}

	switch q.Order {
	case memory.OrderReliability:
		sort.SliceStable(out, func(i, j int) bool { return out[i].Reliability > out[j].Reliability })
	case memory.OrderRecency:
		sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	}

	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

func (s *fakeStore) GetByID(ctx context.Context, owner string, id string) (*memory.Memory, error) {
	for _, m := range s.memories {
		if m.Owner == owner && m.ID == id {
			return &m, nil
		}
	}
	return nil, nil
}

func (s *fakeStore) FindEntities(ctx context.Context, owner string, names []string, limit int) ([]memory.Entity, error) {
	var out []memory.Entity
	for _, e := range s.entities {
		if e.Owner != owner {
			continue
		}
		for _, name := range names {
			if e.Name == name {
				out = append(out, e)
				break
			}
		}
	}
	return out, nil
}

func (s *fakeStore) FindByEntities(ctx context.Context, owner string, entityIDs []string, limit int) ([]memory.Memory, error) {
	seen := make(map[string]struct{})
	var out []memory.Memory
	for _, eid := range entityIDs {
		for _, mid := range s.links[eid] {
			if _, dup := seen[mid]; dup {
				continue
			}
			for _, m := range s.memories {
				if m.Owner == owner && m.ID == mid {
					seen[mid] = struct{}{}
					out = append(out, m)
				}
			}
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *fakeStore) TouchAccess(ctx context.Context, owner string, ids []string) error { return nil }
func (s *fakeStore) Close() error                                                      { return nil }

func seedStore() *fakeStore {
	now := time.Now()
	return &fakeStore{
		memories: []memory.Memory{
			{ID: "p1", Owner: "u1", Kind: memory.KindProfile, Content: "likes strong coffee", Reliability: 0.9, CreatedAt: now.AddDate(0, -1, 0)},
			{ID: "p2", Owner: "u1", Kind: memory.KindProfile, Content: "lives in Lisbon", Reliability: 0.6, CreatedAt: now.AddDate(0, -1, 0)},
			{ID: "s1", Owner: "u1", Kind: memory.KindSemantic, Content: "espresso beans from Ethiopia taste fruity", Keywords: []string{"espresso", "beans"}, Reliability: 0.7, CreatedAt: now.AddDate(0, 0, -5)},
			{ID: "e1", Owner: "u1", Kind: memory.KindEpisodic, Content: "talked about a new grinder", Reliability: 0.8, CreatedAt: now.Add(-2 * time.Hour)},
			{ID: "e2", Owner: "u1", Kind: memory.KindEpisodic, Content: "asked about tea kettles", Reliability: 0.8, CreatedAt: now.AddDate(0, 0, -60)},
			{ID: "x1", Owner: "u2", Kind: memory.KindProfile, Content: "someone else's secret", Reliability: 0.9, CreatedAt: now},
		},
		entities: []memory.Entity{
			{ID: "ent1", Owner: "u1", Name: "Gaggia Classic", Type: "product"},
		},
		links: map[string][]string{
			"ent1": {"e1"},
		},
	}
}

func TestProfileStrategy_AlwaysReturnsProfile(t *testing.T) {
	s := retrieval.NewProfileStrategy(seedStore())

	results, err := s.Retrieve(context.Background(), "u1", retrieval.Query{}, 10)
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("len(results) = %d, want 2", len(results))
	}
	// Ordered by reliability.
	if results[0].Memory.ID != "p1" {
		t.Errorf("first profile = %s, want p1", results[0].Memory.ID)
	}
	if results[0].RawScore != 0.9 {
		t.Errorf("RawScore = %f, want reliability 0.9", results[0].RawScore)
	}
	for _, r := range results {
		if r.Memory.Owner != "u1" {
			t.Errorf("foreign memory leaked: %s", r.Memory.ID)
		}
	}
}

func TestRecentStrategy_DecayAndOrder(t *testing.T) {
	s := retrieval.NewRecentStrategy(seedStore())

	results, err := s.Retrieve(context.Background(), "u1", retrieval.Query{}, 10)
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("len(results) = %d, want 2", len(results))
	}

	if results[0].Memory.ID != "e1" {
		t.Errorf("newest first, got %s", results[0].Memory.ID)
	}
	if results[0].RecencyScore <= 0.9 {
		t.Errorf("fresh memory recency = %f, want near 1", results[0].RecencyScore)
	}
	// 60 days old is outside the 30-day window.
	if results[1].RecencyScore != 0 {
		t.Errorf("stale memory recency = %f, want 0", results[1].RecencyScore)
	}
	if results[1].RawScore != 0 {
		t.Errorf("stale memory raw score = %f, want 0", results[1].RawScore)
	}
}

func TestEntityStrategy(t *testing.T) {
	s := retrieval.NewEntityStrategy(seedStore())

	results, err := s.Retrieve(context.Background(), "u1",
		retrieval.Query{Entities: []string{"Gaggia Classic"}}, 10)
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if len(results) != 1 || results[0].Memory.ID != "e1" {
		t.Fatalf("results = %+v, want just e1", results)
	}
	if results[0].RawScore != 0.8 {
		t.Errorf("RawScore = %f, want flat 0.8", results[0].RawScore)
	}
	if results[0].MatchType != retrieval.MatchEntity {
		t.Errorf("MatchType = %q, want entity", results[0].MatchType)
	}
}

func TestEntityStrategy_NoMentionsShortCircuits(t *testing.T) {
	s := retrieval.NewEntityStrategy(seedStore())

	results, err := s.Retrieve(context.Background(), "u1", retrieval.Query{}, 10)
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("len(results) = %d, want 0", len(results))
	}
}

func TestKeywordStrategy(t *testing.T) {
	s := retrieval.NewKeywordStrategy(seedStore(), nil)

	results, err := s.Retrieve(context.Background(), "u1",
		retrieval.Query{Keywords: []string{"espresso", "beans"}}, 10)
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if len(results) == 0 {
		t.Fatal("no results for matching keywords")
	}
	if results[0].Memory.ID != "s1" {
		t.Errorf("top result = %s, want s1", results[0].Memory.ID)
	}
	if results[0].KeywordScore <= 0 {
		t.Errorf("KeywordScore = %f, want > 0", results[0].KeywordScore)
	}
	for _, r := range results {
		if r.KeywordScore <= 0 {
			t.Errorf("zero-score result leaked: %s", r.Memory.ID)
		}
	}
}

func TestKeywordStrategy_NoKeywords(t *testing.T) {
	s := retrieval.NewKeywordStrategy(seedStore(), nil)

	results, err := s.Retrieve(context.Background(), "u1", retrieval.Query{}, 10)
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if results != nil {
		t.Errorf("results = %v, want nil", results)
	}
}

// failingStrategy always errors, for orchestrator isolation tests.
type failingStrategy struct{}

func (failingStrategy) Name() string { return "failing" }
func (failingStrategy) Retrieve(ctx context.Context, owner string, q retrieval.Query, limit int) ([]retrieval.Result, error) {
	return nil, errors.New("backend down")
}

func TestOrchestrator_FailureIsolation(t *testing.T) {
	store := seedStore()
	strategies := []retrieval.Strategy{
		failingStrategy{},
		retrieval.NewProfileStrategy(store),
	}
	orch := retrieval.NewOrchestrator(strategies)

	a := analyzer.New().Analyze("what do you know about me?")
	results := orch.Retrieve(context.Background(), "u1", a, 10)

	if len(results) == 0 {
		t.Fatal("healthy strategy's results lost to a failing sibling")
	}
	for _, r := range results {
		if r.MatchType != retrieval.MatchProfile {
			t.Errorf("unexpected result from failing strategy: %+v", r)
		}
	}
}

func TestOrchestrator_ConcatOrder(t *testing.T) {
	store := seedStore()
	strategies := []retrieval.Strategy{
		retrieval.NewProfileStrategy(store),
		retrieval.NewRecentStrategy(store),
	}
	orch := retrieval.NewOrchestrator(strategies)

	a := analyzer.New().Analyze("do you remember my coffee preferences?")
	results := orch.Retrieve(context.Background(), "u1", a, 10)

	// All profile results must come before all recent results.
	lastProfile, firstRecent := -1, len(results)
	for i, r := range results {
		switch r.MatchType {
		case retrieval.MatchProfile:
			lastProfile = i
		case retrieval.MatchRecent:
			if i < firstRecent {
				firstRecent = i
			}
		}
	}
	if lastProfile > firstRecent {
		t.Errorf("strategy order not preserved: profile at %d after recent at %d", lastProfile, firstRecent)
	}
}

func TestOrchestrator_AllFailingYieldsEmpty(t *testing.T) {
	orch := retrieval.NewOrchestrator([]retrieval.Strategy{failingStrategy{}})

	a := analyzer.New().Analyze("anything")
	results := orch.Retrieve(context.Background(), "u1", a, 10)
	if len(results) != 0 {
		t.Errorf("results = %v, want empty", results)
	}
}
