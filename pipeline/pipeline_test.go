package pipeline_test

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/becomeliminal/recall-go-sdk/analytics"
	"github.com/becomeliminal/recall-go-sdk/embedder/mock"
	"github.com/becomeliminal/recall-go-sdk/memory"
	"github.com/becomeliminal/recall-go-sdk/pipeline"
	"github.com/becomeliminal/recall-go-sdk/store/chromem"
	"github.com/becomeliminal/recall-go-sdk/store/sqlite"
)

func newPipeline(t *testing.T, opts ...pipeline.Option) (*pipeline.Pipeline, *sqlite.Store, *chromem.Index) {
	t.Helper()

	store, err := sqlite.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	index, err := chromem.New()
	if err != nil {
		t.Fatalf("open index: %v", err)
	}
	t.Cleanup(func() { index.Close() })

	p, err := pipeline.New(store, index, mock.New(), opts...)
	if err != nil {
		t.Fatalf("new pipeline: %v", err)
	}
	return p, store, index
}

func seed(t *testing.T, store *sqlite.Store, index *chromem.Index, mems []memory.Memory) {
	t.Helper()
	ctx := context.Background()
	embedder := mock.New()

	for i := range mems {
		if err := store.Put(ctx, &mems[i]); err != nil {
			t.Fatalf("put: %v", err)
		}
		vec, err := embedder.Embed(ctx, mems[i].Content)
		if err != nil {
			t.Fatalf("embed: %v", err)
		}
		mems[i].Embedding = vec
		if err := index.Index(ctx, mems[i]); err != nil {
			t.Fatalf("index: %v", err)
		}
	}
}

func coffeeMemories(owner string) []memory.Memory {
	now := time.Now()
	return []memory.Memory{
		{
			Owner: owner, Kind: memory.KindProfile,
			Content:  "prefers oat milk flat whites",
			Category: "food", Attribute: "coffee_order", Value: "oat milk flat white",
			Keywords: []string{"coffee", "oat", "milk"}, Reliability: 0.9,
			CreatedAt: now.AddDate(0, -1, 0),
		},
		{
			Owner: owner, Kind: memory.KindSemantic,
			Content: "favorite espresso beans are Ethiopian light roast",
			Topic:   "coffee", Fact: "favorite beans are Ethiopian light roast",
			Keywords: []string{"coffee", "espresso", "beans"}, Reliability: 0.7,
			CreatedAt: now.AddDate(0, 0, -5),
		},
		{
			Owner: owner, Kind: memory.KindEpisodic,
			Content: "asked for help dialing in a new espresso machine",
			Summary: "dialed in the espresso machine",
			Keywords: []string{"espresso", "machine"}, Reliability: 0.6,
			CreatedAt: now.Add(-3 * time.Hour),
		},
	}
}

func TestProcessQuery_Validation(t *testing.T) {
	p, _, _ := newPipeline(t)

	if _, err := p.ProcessQuery(context.Background(), "", "query", nil); !errors.Is(err, pipeline.ErrMissingOwner) {
		t.Errorf("err = %v, want ErrMissingOwner", err)
	}
	if _, err := p.ProcessQuery(context.Background(), "u1", "   ", nil); !errors.Is(err, pipeline.ErrEmptyQuery) {
		t.Errorf("err = %v, want ErrEmptyQuery", err)
	}
}

func TestProcessQuery_EndToEnd(t *testing.T) {
	p, store, index := newPipeline(t)
	seed(t, store, index, coffeeMemories("u1"))

	resp, err := p.ProcessQuery(context.Background(), "u1",
		"what did I tell you about my coffee preferences?", nil)
	if err != nil {
		t.Fatalf("ProcessQuery: %v", err)
	}

	if len(resp.Ranked) == 0 {
		t.Fatal("no candidates ranked")
	}
	// Profile facts are always retrieved.
	if len(resp.Context.Profile) == 0 {
		t.Error("profile section empty")
	}
	if !strings.Contains(resp.Prompt, "## User Profile") {
		t.Errorf("prompt missing profile section:\n%s", resp.Prompt)
	}
	if !strings.Contains(resp.Prompt, "oat milk flat white") {
		t.Errorf("prompt missing profile value:\n%s", resp.Prompt)
	}
	if resp.Context.TotalTokens <= 0 {
		t.Errorf("TotalTokens = %d, want > 0", resp.Context.TotalTokens)
	}
}

func TestProcessQuery_OwnerIsolation(t *testing.T) {
	p, store, index := newPipeline(t)
	seed(t, store, index, coffeeMemories("u1"))

	resp, err := p.ProcessQuery(context.Background(), "u2",
		"what did I tell you about my coffee preferences?", nil)
	if err != nil {
		t.Fatalf("ProcessQuery: %v", err)
	}
	if len(resp.Ranked) != 0 {
		t.Errorf("owner u2 saw %d of u1's memories", len(resp.Ranked))
	}
	if resp.Prompt != "" {
		t.Errorf("prompt for empty owner = %q, want empty", resp.Prompt)
	}
}

func TestProcessQuery_TouchesAccessCounts(t *testing.T) {
	p, store, index := newPipeline(t)
	mems := coffeeMemories("u1")
	seed(t, store, index, mems)

	if _, err := p.ProcessQuery(context.Background(), "u1",
		"remember my coffee order?", nil); err != nil {
		t.Fatalf("ProcessQuery: %v", err)
	}

	got, err := store.GetByID(context.Background(), "u1", mems[0].ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.AccessCount != 1 {
		t.Errorf("AccessCount = %d, want 1 after retrieval", got.AccessCount)
	}
}

func TestProcessQuery_Deterministic(t *testing.T) {
	p, store, index := newPipeline(t)
	seed(t, store, index, coffeeMemories("u1"))

	const q = "what do you remember about my espresso setup?"
	first, err := p.ProcessQuery(context.Background(), "u1", q, nil)
	if err != nil {
		t.Fatalf("ProcessQuery: %v", err)
	}
	second, err := p.ProcessQuery(context.Background(), "u1", q, nil)
	if err != nil {
		t.Fatalf("ProcessQuery: %v", err)
	}

	if len(first.Ranked) != len(second.Ranked) {
		t.Fatalf("candidate counts differ: %d vs %d", len(first.Ranked), len(second.Ranked))
	}
	for i := range first.Ranked {
		if first.Ranked[i].Memory.ID != second.Ranked[i].Memory.ID {
			t.Errorf("order differs at %d: %s vs %s",
				i, first.Ranked[i].Memory.ID, second.Ranked[i].Memory.ID)
		}
	}
}

func TestProcessQuery_CollectsAnalytics(t *testing.T) {
	collector := analytics.NewCollector()
	p, store, index := newPipeline(t, pipeline.WithCollector(collector))
	seed(t, store, index, coffeeMemories("u1"))

	if _, err := p.ProcessQuery(context.Background(), "u1",
		"what's my usual coffee?", nil); err != nil {
		t.Fatalf("ProcessQuery: %v", err)
	}

	spans := collector.Spans()
	if len(spans) == 0 {
		t.Fatal("no spans collected")
	}
	names := make(map[string]bool)
	for _, s := range spans {
		names[s.Name] = true
	}
	for _, want := range []string{"analyze", "retrieval", "rank", "build_context"} {
		if !names[want] {
			t.Errorf("span %q missing; got %v", want, names)
		}
	}

	if len(collector.Retrievals()) == 0 {
		t.Error("no per-strategy retrieval metrics recorded")
	}
}
