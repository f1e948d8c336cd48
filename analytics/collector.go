// Package analytics records per-phase timings for the retrieval
// pipeline.
//
// Instrumentation is optional and shapes nothing but observability: a
// nil Collector is valid everywhere and every method on it is a no-op,
// so the uninstrumented path carries no overhead. Concurrent phases are
// tracked through ParallelTracker so each strategy in a fan-out is
// individually timeable.
package analytics

import (
	"sync"
	"time"
)

// Status marks how a span ended.
type Status string

const (
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Span is one timed phase.
type Span struct {
	Name       string
	StartedAt  time.Time
	DurationMS float64
	Status     Status
	Err        string
	Metadata   map[string]interface{}
	Children   []*Span
}

// RetrievalMetrics summarizes one strategy's contribution.
type RetrievalMetrics struct {
	Strategy    string
	ResultCount int
	ScoreMin    float64
	ScoreMax    float64
	ScoreAvg    float64
	DurationMS  float64
}

// Collector accumulates spans for a single request. Safe for use from
// multiple goroutines.
type Collector struct {
	mu         sync.Mutex
	roots      []*Span
	stack      []*Span
	retrievals []RetrievalMetrics
}

// NewCollector creates an empty collector.
func NewCollector() *Collector {
	return &Collector{}
}

// StartSpan opens a span nested under the currently open span, if any.
func (c *Collector) StartSpan(name string) *Span {
	if c == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	span := &Span{Name: name, StartedAt: time.Now()}
	if n := len(c.stack); n > 0 {
		c.stack[n-1].Children = append(c.stack[n-1].Children, span)
	} else {
		c.roots = append(c.roots, span)
	}
	c.stack = append(c.stack, span)
	return span
}

// EndSpan completes the innermost open span, merging metadata into it.
func (c *Collector) EndSpan(metadata map[string]interface{}) {
	c.closeSpan(StatusCompleted, "", metadata)
}

// FailSpan completes the innermost open span as failed.
func (c *Collector) FailSpan(errMsg string) {
	c.closeSpan(StatusFailed, errMsg, nil)
}

func (c *Collector) closeSpan(status Status, errMsg string, metadata map[string]interface{}) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	n := len(c.stack)
	if n == 0 {
		return
	}
	span := c.stack[n-1]
	c.stack = c.stack[:n-1]

	span.DurationMS = float64(time.Since(span.StartedAt)) / float64(time.Millisecond)
	span.Status = status
	span.Err = errMsg
	if metadata != nil {
		if span.Metadata == nil {
			span.Metadata = make(map[string]interface{}, len(metadata))
		}
		for k, v := range metadata {
			span.Metadata[k] = v
		}
	}
}

// RecordRetrieval stores one strategy's metrics.
func (c *Collector) RecordRetrieval(m RetrievalMetrics) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.retrievals = append(c.retrievals, m)
}

// Spans returns the completed top-level spans.
func (c *Collector) Spans() []*Span {
	if c == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*Span, len(c.roots))
	copy(out, c.roots)
	return out
}

// Retrievals returns the recorded per-strategy metrics.
func (c *Collector) Retrievals() []RetrievalMetrics {
	if c == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]RetrievalMetrics, len(c.retrievals))
	copy(out, c.retrievals)
	return out
}

// ParallelTracker times operations that run concurrently under one
// parent span, such as the retrieval fan-out. Each child operation
// reports its own duration; the parent records the max as the wall-time
// cost of the parallel phase.
type ParallelTracker struct {
	c      *Collector
	parent *Span
	mu     sync.Mutex
	spans  map[string]*Span
}

// NewParallelTracker opens the parent span. Valid on a nil collector.
func NewParallelTracker(c *Collector, name string) *ParallelTracker {
	t := &ParallelTracker{c: c, spans: make(map[string]*Span)}
	if c != nil {
		t.parent = c.StartSpan(name)
	}
	return t
}

// Record registers one child operation's outcome.
func (t *ParallelTracker) Record(name string, start time.Time, err error) {
	if t == nil || t.c == nil {
		return
	}
	span := &Span{
		Name:       name,
		StartedAt:  start,
		DurationMS: float64(time.Since(start)) / float64(time.Millisecond),
		Status:     StatusCompleted,
	}
	if err != nil {
		span.Status = StatusFailed
		span.Err = err.Error()
	}
	t.mu.Lock()
	t.spans[name] = span
	t.mu.Unlock()
}

// RecordResults registers one strategy's result metrics.
func (t *ParallelTracker) RecordResults(strategy string, scores []float64) {
	if t == nil || t.c == nil {
		return
	}
	m := RetrievalMetrics{Strategy: strategy, ResultCount: len(scores)}
	for i, s := range scores {
		if i == 0 || s < m.ScoreMin {
			m.ScoreMin = s
		}
		if s > m.ScoreMax {
			m.ScoreMax = s
		}
		m.ScoreAvg += s
	}
	if len(scores) > 0 {
		m.ScoreAvg /= float64(len(scores))
	}
	t.mu.Lock()
	if span, ok := t.spans[strategy]; ok {
		m.DurationMS = span.DurationMS
	}
	t.mu.Unlock()
	t.c.RecordRetrieval(m)
}

// Finalize attaches the child spans and closes the parent span.
func (t *ParallelTracker) Finalize() {
	if t == nil || t.c == nil || t.parent == nil {
		return
	}
	t.mu.Lock()
	var maxMS float64
	timings := make(map[string]interface{}, len(t.spans))
	for name, span := range t.spans {
		t.parent.Children = append(t.parent.Children, span)
		timings[name] = span.DurationMS
		if span.DurationMS > maxMS {
			maxMS = span.DurationMS
		}
	}
	t.mu.Unlock()

	t.c.EndSpan(map[string]interface{}{
		"child_timings":            timings,
		"parallel_max_duration_ms": maxMS,
	})
}
