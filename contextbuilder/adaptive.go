package contextbuilder

import (
	"github.com/becomeliminal/recall-go-sdk/memory"
	"github.com/becomeliminal/recall-go-sdk/ranking"
	"github.com/becomeliminal/recall-go-sdk/tokens"
)

// AdaptiveBuilder redistributes unused budget from sparse memory kinds
// to kinds holding more content than their base budget. The entity
// budget is fixed; only the four kind sections participate.
//
// The pooled surplus is split evenly among oversubscribed kinds, so one
// kind can receive more than it needs while another still truncates.
// Unlike the fixed Builder, TotalTokens reports the true included
// total, which can exceed the max budget when surplus was
// redistributed.
type AdaptiveBuilder struct {
	budgets Budgets
	counter *tokens.Counter
}

// NewAdaptiveBuilder creates an adaptive builder. A nil counter selects
// the estimating token counter.
func NewAdaptiveBuilder(budgets Budgets, counter *tokens.Counter) *AdaptiveBuilder {
	if counter == nil {
		counter = tokens.NewCounter(nil)
	}
	return &AdaptiveBuilder{budgets: budgets, counter: counter}
}

// Build packs with reallocated budgets.
func (b *AdaptiveBuilder) Build(ranked []ranking.Ranked, entityContext string) Context {
	byKind := categorize(ranked)

	sizes := make(map[memory.Kind]int, len(byKind))
	for kind, mems := range byKind {
		total := 0
		for _, m := range mems {
			total += b.counter.Count(m.Content)
		}
		sizes[kind] = total
	}

	budgets := b.reallocate(sizes)
	inner := Builder{budgets: budgets, counter: b.counter}

	ctx := Context{
		Profile:    inner.pack(byKind[memory.KindProfile], budgets.Profile),
		Semantic:   inner.pack(byKind[memory.KindSemantic], budgets.Semantic),
		Episodic:   inner.pack(byKind[memory.KindEpisodic], budgets.Episodic),
		Procedural: inner.pack(byKind[memory.KindProcedural], budgets.Procedural),
	}
	if entityContext != "" {
		ctx.EntityContext = inner.truncateWords(entityContext, budgets.Entity)
	}

	ctx.TotalTokens = inner.totalTokens(ctx)
	ctx.Truncated = ctx.TotalTokens > b.budgets.Max
	return ctx
}

// PackHistory behaves as on the fixed builder; the history budget does
// not participate in reallocation.
func (b *AdaptiveBuilder) PackHistory(history []string) []string {
	inner := Builder{budgets: b.budgets, counter: b.counter}
	return inner.PackHistory(history)
}

// reallocate pools budget unused by undersubscribed kinds and splits it
// evenly among oversubscribed ones.
func (b *AdaptiveBuilder) reallocate(sizes map[memory.Kind]int) Budgets {
	out := b.budgets

	base := map[memory.Kind]int{
		memory.KindProfile:    b.budgets.Profile,
		memory.KindSemantic:   b.budgets.Semantic,
		memory.KindEpisodic:   b.budgets.Episodic,
		memory.KindProcedural: b.budgets.Procedural,
	}

	unused := 0
	var needMore []memory.Kind
	for _, kind := range memory.AllKinds() {
		switch size := sizes[kind]; {
		case size < base[kind]:
			unused += base[kind] - size
		case size > base[kind]:
			needMore = append(needMore, kind)
		}
	}

	if unused == 0 || len(needMore) == 0 {
		return out
	}

	extra := unused / len(needMore)
	for _, kind := range needMore {
		switch kind {
		case memory.KindProfile:
			out.Profile += extra
		case memory.KindSemantic:
			out.Semantic += extra
		case memory.KindEpisodic:
			out.Episodic += extra
		case memory.KindProcedural:
			out.Procedural += extra
		}
	}
	return out
}
