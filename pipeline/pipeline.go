// Package pipeline wires the full retrieval flow: analyze the query,
// fan out the retrieval strategies, rank and rerank the candidates,
// and pack the winners into a token-budgeted context.
//
// The pipeline owns no storage; it composes the Store, VectorIndex,
// and Embedder collaborators it is given. One Pipeline serves many
// owners concurrently.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/becomeliminal/recall-go-sdk/analytics"
	"github.com/becomeliminal/recall-go-sdk/analyzer"
	"github.com/becomeliminal/recall-go-sdk/cache"
	"github.com/becomeliminal/recall-go-sdk/contextbuilder"
	"github.com/becomeliminal/recall-go-sdk/memory"
	"github.com/becomeliminal/recall-go-sdk/ranking"
	"github.com/becomeliminal/recall-go-sdk/retrieval"
	"github.com/becomeliminal/recall-go-sdk/tokens"
)

var (
	// ErrMissingOwner is returned when no owner is given.
	ErrMissingOwner = errors.New("owner is required")

	// ErrEmptyQuery is returned when the query is empty or whitespace.
	ErrEmptyQuery = errors.New("query is required")
)

// Config tunes the pipeline. The zero value is not usable; start from
// DefaultConfig.
type Config struct {
	// LimitPerStrategy caps each strategy's contribution.
	LimitPerStrategy int

	// ScoreThreshold drops vector hits below this similarity.
	ScoreThreshold float32

	// StrategyTimeout bounds each strategy within one retrieval.
	StrategyTimeout time.Duration

	// Weights blends the ranking axes when IntentWeights is off.
	Weights ranking.Weights

	// IntentWeights selects per-intent weight presets instead of the
	// fixed Weights.
	IntentWeights bool

	// Budgets are the context packing budgets.
	Budgets contextbuilder.Budgets

	// Adaptive redistributes unused section budgets to full sections.
	Adaptive bool

	// EmbeddingCacheSize and IndexCacheSize bound the shared caches, in
	// entries.
	EmbeddingCacheSize int64
	IndexCacheSize     int64
}

// DefaultConfig returns the standard tuning.
func DefaultConfig() Config {
	return Config{
		LimitPerStrategy:   10,
		ScoreThreshold:     0.3,
		StrategyTimeout:    retrieval.DefaultStrategyTimeout,
		Weights:            ranking.DefaultWeights(),
		IntentWeights:      true,
		Budgets:            contextbuilder.DefaultBudgets(),
		Adaptive:           false,
		EmbeddingCacheSize: 100,
		IndexCacheSize:     100,
	}
}

// builder abstracts the fixed and adaptive context builders.
type builder interface {
	Build(ranked []ranking.Ranked, entityContext string) contextbuilder.Context
	PackHistory(history []string) []string
}

// Pipeline is the retrieval engine.
type Pipeline struct {
	cfg       Config
	store     memory.Store
	analyzer  *analyzer.Analyzer
	orch      *retrieval.Orchestrator
	builder   builder
	counter   *tokens.Counter
	collector *analytics.Collector
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithConfig replaces the default config.
func WithConfig(cfg Config) Option {
	return func(p *Pipeline) { p.cfg = cfg }
}

// WithCollector attaches an analytics collector.
func WithCollector(c *analytics.Collector) Option {
	return func(p *Pipeline) { p.collector = c }
}

// WithTokenEncoder plugs in an exact tokenizer for budget accounting.
func WithTokenEncoder(enc tokens.Encoder) Option {
	return func(p *Pipeline) { p.counter = tokens.NewCounter(enc) }
}

// New creates a pipeline over the given collaborators.
func New(store memory.Store, index memory.VectorIndex, embedder memory.Embedder, opts ...Option) (*Pipeline, error) {
	if store == nil {
		return nil, fmt.Errorf("new pipeline: store is required")
	}
	if index == nil {
		return nil, fmt.Errorf("new pipeline: vector index is required")
	}
	if embedder == nil {
		return nil, fmt.Errorf("new pipeline: embedder is required")
	}

	p := &Pipeline{
		cfg:      DefaultConfig(),
		store:    store,
		analyzer: analyzer.New(),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.counter == nil {
		p.counter = tokens.NewCounter(nil)
	}

	embeddings, err := cache.NewEmbeddings(p.cfg.EmbeddingCacheSize)
	if err != nil {
		return nil, fmt.Errorf("new pipeline: %w", err)
	}
	indexes, err := cache.NewIndexes(p.cfg.IndexCacheSize)
	if err != nil {
		return nil, fmt.Errorf("new pipeline: %w", err)
	}

	strategies := retrieval.DefaultStrategies(store, index, embedder, embeddings, indexes, p.cfg.ScoreThreshold)
	p.orch = retrieval.NewOrchestrator(strategies,
		retrieval.WithTimeout(p.cfg.StrategyTimeout),
		retrieval.WithCollector(p.collector),
	)

	if p.cfg.Adaptive {
		p.builder = contextbuilder.NewAdaptiveBuilder(p.cfg.Budgets, p.counter)
	} else {
		p.builder = contextbuilder.NewBuilder(p.cfg.Budgets, p.counter)
	}

	return p, nil
}

// Response is everything one query produced.
type Response struct {
	// Analysis is the query classification driving retrieval.
	Analysis analyzer.Analysis

	// Ranked holds every deduplicated candidate in final order,
	// including those the context had no room for.
	Ranked []ranking.Ranked

	// Context is the packed, budgeted result.
	Context contextbuilder.Context

	// Prompt is the context formatted for system-prompt injection.
	Prompt string
}

// ProcessQuery runs the full flow for one owner query. history carries
// recent conversation lines, newest last; it may be nil.
func (p *Pipeline) ProcessQuery(ctx context.Context, owner, query string, history []string) (*Response, error) {
	if owner == "" {
		return nil, ErrMissingOwner
	}
	if strings.TrimSpace(query) == "" {
		return nil, ErrEmptyQuery
	}

	p.collector.StartSpan("analyze")
	analysis := p.analyzer.Analyze(query)
	p.collector.EndSpan(map[string]interface{}{
		"intent":   string(analysis.Intent),
		"keywords": len(analysis.Keywords),
		"entities": len(analysis.Entities),
	})

	log.Printf("[PIPELINE] owner=%s intent=%s keywords=%d entities=%d",
		owner, analysis.Intent, len(analysis.Keywords), len(analysis.Entities))

	results := p.orch.Retrieve(ctx, owner, analysis, p.cfg.LimitPerStrategy)

	p.collector.StartSpan("rank")
	weights := p.cfg.Weights
	if p.cfg.IntentWeights {
		weights = ranking.WeightsForIntent(analysis.Intent)
	}
	ranker := ranking.NewRanker(weights)
	ranked := ranker.Rank(results)

	topics, entities := p.contextHints(analysis, history)
	ranked = ranker.RerankWithContext(ranked, topics, entities)
	p.collector.EndSpan(map[string]interface{}{"candidates": len(ranked)})

	p.collector.StartSpan("build_context")
	entityContext := p.entityContext(ctx, owner, analysis.Entities)
	built := p.builder.Build(ranked, entityContext)
	prompt := contextbuilder.FormatForPrompt(built)
	p.collector.EndSpan(map[string]interface{}{
		"total_tokens": built.TotalTokens,
		"truncated":    built.Truncated,
	})

	p.touchAccess(ctx, owner, built)

	return &Response{
		Analysis: analysis,
		Ranked:   ranked,
		Context:  built,
		Prompt:   prompt,
	}, nil
}

// PackHistory trims conversation history to the history token budget.
func (p *Pipeline) PackHistory(history []string) []string {
	return p.builder.PackHistory(history)
}

// contextHints extracts rerank hints: the query's own topics and
// entities plus whatever the recent history mentions.
func (p *Pipeline) contextHints(analysis analyzer.Analysis, history []string) (topics, entities []string) {
	topics = append(topics, analysis.Topics...)
	entities = append(entities, analysis.Entities...)

	recent := history
	if len(recent) > 3 {
		recent = recent[len(recent)-3:]
	}
	if len(recent) > 0 {
		ha := p.analyzer.Analyze(strings.Join(recent, "\n"))
		topics = append(topics, ha.Topics...)
		entities = append(entities, ha.Entities...)
	}
	return topics, entities
}

// entityContext assembles the entity description block for the
// detected mentions. Best-effort: lookup failures degrade to no
// entity context.
func (p *Pipeline) entityContext(ctx context.Context, owner string, mentions []string) string {
	if len(mentions) == 0 {
		return ""
	}

	ents, err := p.store.FindEntities(ctx, owner, mentions, 5)
	if err != nil {
		log.Printf("[PIPELINE] entity context failed: %v", err)
		return ""
	}

	var lines []string
	for _, e := range ents {
		line := e.Name
		if e.Type != "" {
			line += " (" + e.Type + ")"
		}
		if e.Description != "" {
			line += ": " + e.Description
		}
		lines = append(lines, "- "+line)
	}
	return strings.Join(lines, "\n")
}

// touchAccess bumps access counts for every memory that made it into
// the context. Best-effort; failures are logged and ignored.
func (p *Pipeline) touchAccess(ctx context.Context, owner string, built contextbuilder.Context) {
	var ids []string
	for _, section := range [][]memory.Memory{built.Profile, built.Semantic, built.Episodic, built.Procedural} {
		for _, m := range section {
			ids = append(ids, m.ID)
		}
	}
	if len(ids) == 0 {
		return
	}
	if err := p.store.TouchAccess(ctx, owner, ids); err != nil {
		log.Printf("[PIPELINE] touch access failed: %v", err)
	}
}
