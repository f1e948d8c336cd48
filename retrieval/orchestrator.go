package retrieval

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/becomeliminal/recall-go-sdk/analytics"
	"github.com/becomeliminal/recall-go-sdk/analyzer"
	"github.com/becomeliminal/recall-go-sdk/cache"
	"github.com/becomeliminal/recall-go-sdk/memory"
)

// DefaultStrategyTimeout bounds each strategy's execution within one
// retrieval.
const DefaultStrategyTimeout = 2 * time.Second

// Orchestrator fans a query out to every strategy concurrently and
// concatenates their contributions. A failed or timed-out strategy is
// logged and contributes nothing; retrieval as a whole never fails.
type Orchestrator struct {
	strategies []Strategy
	timeout    time.Duration
	collector  *analytics.Collector
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithTimeout overrides the per-strategy timeout.
func WithTimeout(d time.Duration) Option {
	return func(o *Orchestrator) {
		if d > 0 {
			o.timeout = d
		}
	}
}

// WithCollector attaches an analytics collector.
func WithCollector(c *analytics.Collector) Option {
	return func(o *Orchestrator) { o.collector = c }
}

// NewOrchestrator creates an orchestrator over the given strategies,
// preserving their order in the concatenated output.
func NewOrchestrator(strategies []Strategy, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		strategies: strategies,
		timeout:    DefaultStrategyTimeout,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// DefaultStrategies builds the standard five strategies in canonical
// order: vector, keyword, entity, profile, recent. That order is also
// the concatenation order, which fixes how the stable ranking sort
// breaks score ties.
func DefaultStrategies(store memory.Store, index memory.VectorIndex, embedder memory.Embedder, embeddings *cache.Embeddings, indexes *cache.Indexes, scoreThreshold float32) []Strategy {
	return []Strategy{
		NewVectorStrategy(index, embedder, embeddings, scoreThreshold),
		NewKeywordStrategy(store, indexes),
		NewEntityStrategy(store),
		NewProfileStrategy(store),
		NewRecentStrategy(store),
	}
}

// Retrieve runs every strategy concurrently and returns all
// contributions in strategy order. limit applies per strategy, not to
// the total.
func (o *Orchestrator) Retrieve(ctx context.Context, owner string, a analyzer.Analysis, limit int) []Result {
	q := Query{
		Text:     a.OriginalQuery,
		Keywords: a.Keywords,
		Entities: a.Entities,
		Kinds:    a.MemoryKinds,
	}
	if len(q.Kinds) == 0 {
		q.Kinds = defaultKinds(a.Intent)
	}

	tracker := analytics.NewParallelTracker(o.collector, "retrieval")

	perStrategy := make([][]Result, len(o.strategies))
	var wg sync.WaitGroup
	for i, s := range o.strategies {
		wg.Add(1)
		go func(i int, s Strategy) {
			defer wg.Done()

			sctx, cancel := context.WithTimeout(ctx, o.timeout)
			defer cancel()

			start := time.Now()
			results, err := s.Retrieve(sctx, owner, q, limit)
			tracker.Record(s.Name(), start, err)
			if err != nil {
				log.Printf("[RETRIEVAL] strategy %s failed: %v", s.Name(), err)
				return
			}
			perStrategy[i] = results

			scores := make([]float64, len(results))
			for j, r := range results {
				scores[j] = r.RawScore
			}
			tracker.RecordResults(s.Name(), scores)
		}(i, s)
	}
	wg.Wait()
	tracker.Finalize()

	var all []Result
	for _, results := range perStrategy {
		all = append(all, results...)
	}
	return all
}

// defaultKinds maps an intent to the kinds to search when the analysis
// carries no recommendation.
func defaultKinds(intent analyzer.Intent) []memory.Kind {
	switch intent {
	case analyzer.IntentRecall:
		return memory.AllKinds()
	case analyzer.IntentQuestion:
		return []memory.Kind{memory.KindSemantic, memory.KindProfile}
	case analyzer.IntentCommand:
		return []memory.Kind{memory.KindProcedural, memory.KindProfile}
	default:
		return []memory.Kind{memory.KindEpisodic, memory.KindSemantic}
	}
}
