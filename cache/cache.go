// Package cache provides the bounded, concurrency-safe caches shared
// across requests: query embeddings and keyword-index snapshots.
//
// Caches are injected dependencies, never package singletons. Entries
// are immutable once written; eviction replaces them wholesale, so the
// worst observable outcome of any race is a miss forcing recomputation.
package cache

import (
	"fmt"

	"github.com/dgraph-io/ristretto"
)

// Embeddings caches query embeddings keyed by (owner, text). Identical
// queries from the same owner reuse the cached vector across requests.
type Embeddings struct {
	c *ristretto.Cache
}

// NewEmbeddings creates an embedding cache holding at most maxEntries
// vectors.
func NewEmbeddings(maxEntries int64) (*Embeddings, error) {
	if maxEntries <= 0 {
		maxEntries = 100
	}
	c, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: maxEntries * 10,
		MaxCost:     maxEntries,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("embedding cache: %w", err)
	}
	return &Embeddings{c: c}, nil
}

// Get returns the cached vector for (owner, text), if present. Safe on
// a nil receiver.
func (e *Embeddings) Get(owner, text string) ([]float32, bool) {
	if e == nil {
		return nil, false
	}
	v, ok := e.c.Get(key(owner, text))
	if !ok {
		return nil, false
	}
	vec, ok := v.([]float32)
	return vec, ok
}

// Put stores a vector for (owner, text). Safe on a nil receiver.
func (e *Embeddings) Put(owner, text string, vec []float32) {
	if e == nil || vec == nil {
		return
	}
	e.c.Set(key(owner, text), vec, 1)
}

// Wait blocks until pending writes are applied. Intended for tests.
func (e *Embeddings) Wait() {
	if e != nil {
		e.c.Wait()
	}
}

// Indexes caches opaque per-document-set artifacts (the BM25 index for
// a stable snapshot of an owner's memories).
type Indexes struct {
	c *ristretto.Cache
}

// NewIndexes creates an index cache holding at most maxEntries values.
func NewIndexes(maxEntries int64) (*Indexes, error) {
	if maxEntries <= 0 {
		maxEntries = 100
	}
	c, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: maxEntries * 10,
		MaxCost:     maxEntries,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("index cache: %w", err)
	}
	return &Indexes{c: c}, nil
}

// Get returns the cached value for key, if present. Safe on a nil
// receiver.
func (x *Indexes) Get(k string) (interface{}, bool) {
	if x == nil {
		return nil, false
	}
	return x.c.Get(k)
}

// Put stores a value. Safe on a nil receiver.
func (x *Indexes) Put(k string, v interface{}) {
	if x == nil {
		return
	}
	x.c.Set(k, v, 1)
}

// Wait blocks until pending writes are applied. Intended for tests.
func (x *Indexes) Wait() {
	if x != nil {
		x.c.Wait()
	}
}

func key(owner, text string) string {
	return owner + "\x00" + text
}
