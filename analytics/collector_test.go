package analytics_test

import (
	"errors"
	"testing"
	"time"

	"github.com/becomeliminal/recall-go-sdk/analytics"
)

func TestCollector_SpanNesting(t *testing.T) {
	c := analytics.NewCollector()

	c.StartSpan("outer")
	c.StartSpan("inner")
	c.EndSpan(nil)
	c.EndSpan(map[string]interface{}{"k": "v"})

	spans := c.Spans()
	if len(spans) != 1 {
		t.Fatalf("roots = %d, want 1", len(spans))
	}
	outer := spans[0]
	if outer.Name != "outer" || outer.Status != analytics.StatusCompleted {
		t.Errorf("outer = %+v", outer)
	}
	if outer.Metadata["k"] != "v" {
		t.Errorf("metadata not merged: %v", outer.Metadata)
	}
	if len(outer.Children) != 1 || outer.Children[0].Name != "inner" {
		t.Errorf("children = %+v, want [inner]", outer.Children)
	}
}

func TestCollector_FailSpan(t *testing.T) {
	c := analytics.NewCollector()

	c.StartSpan("op")
	c.FailSpan("boom")

	spans := c.Spans()
	if spans[0].Status != analytics.StatusFailed || spans[0].Err != "boom" {
		t.Errorf("span = %+v, want failed/boom", spans[0])
	}
}

func TestCollector_NilSafe(t *testing.T) {
	var c *analytics.Collector

	c.StartSpan("op")
	c.EndSpan(nil)
	c.FailSpan("x")
	c.RecordRetrieval(analytics.RetrievalMetrics{})
	if c.Spans() != nil || c.Retrievals() != nil {
		t.Error("nil collector returned data")
	}
}

func TestParallelTracker(t *testing.T) {
	c := analytics.NewCollector()
	tracker := analytics.NewParallelTracker(c, "fanout")

	start := time.Now()
	tracker.Record("ok", start, nil)
	tracker.Record("bad", start, errors.New("down"))
	tracker.RecordResults("ok", []float64{0.2, 0.8})
	tracker.Finalize()

	spans := c.Spans()
	if len(spans) != 1 || spans[0].Name != "fanout" {
		t.Fatalf("roots = %+v, want [fanout]", spans)
	}
	if len(spans[0].Children) != 2 {
		t.Fatalf("children = %d, want 2", len(spans[0].Children))
	}

	var failed bool
	for _, child := range spans[0].Children {
		if child.Name == "bad" && child.Status == analytics.StatusFailed {
			failed = true
		}
	}
	if !failed {
		t.Error("failed child not marked")
	}

	retrievals := c.Retrievals()
	if len(retrievals) != 1 {
		t.Fatalf("retrievals = %d, want 1", len(retrievals))
	}
	m := retrievals[0]
	if m.Strategy != "ok" || m.ResultCount != 2 || m.ScoreMin != 0.2 || m.ScoreMax != 0.8 {
		t.Errorf("metrics = %+v", m)
	}
	if m.ScoreAvg != 0.5 {
		t.Errorf("ScoreAvg = %f, want 0.5", m.ScoreAvg)
	}
}

func TestParallelTracker_NilCollector(t *testing.T) {
	tracker := analytics.NewParallelTracker(nil, "fanout")

	tracker.Record("s", time.Now(), nil)
	tracker.RecordResults("s", []float64{1})
	tracker.Finalize()
	// Nothing to assert beyond not panicking.
}
