package cache_test

import (
	"testing"

	"github.com/becomeliminal/recall-go-sdk/cache"
)

func TestEmbeddings_PutGet(t *testing.T) {
	c, err := cache.NewEmbeddings(10)
	if err != nil {
		t.Fatalf("NewEmbeddings: %v", err)
	}

	vec := []float32{1, 2, 3}
	c.Put("u1", "query", vec)
	c.Wait()

	got, ok := c.Get("u1", "query")
	if !ok {
		t.Fatal("cached vector not found")
	}
	if len(got) != 3 || got[0] != 1 {
		t.Errorf("got %v, want %v", got, vec)
	}
}

func TestEmbeddings_OwnerScoped(t *testing.T) {
	c, err := cache.NewEmbeddings(10)
	if err != nil {
		t.Fatalf("NewEmbeddings: %v", err)
	}

	c.Put("u1", "query", []float32{1})
	c.Wait()

	if _, ok := c.Get("u2", "query"); ok {
		t.Error("cache entry leaked across owners")
	}
}

func TestEmbeddings_NilSafe(t *testing.T) {
	var c *cache.Embeddings

	c.Put("u1", "q", []float32{1})
	c.Wait()
	if _, ok := c.Get("u1", "q"); ok {
		t.Error("nil cache returned a hit")
	}
}

func TestIndexes_PutGet(t *testing.T) {
	c, err := cache.NewIndexes(10)
	if err != nil {
		t.Fatalf("NewIndexes: %v", err)
	}

	type snapshot struct{ n int }
	c.Put("k", &snapshot{n: 7})
	c.Wait()

	v, ok := c.Get("k")
	if !ok {
		t.Fatal("cached value not found")
	}
	if v.(*snapshot).n != 7 {
		t.Errorf("got %+v, want n=7", v)
	}
}

func TestIndexes_NilSafe(t *testing.T) {
	var c *cache.Indexes

	c.Put("k", 1)
	c.Wait()
	if _, ok := c.Get("k"); ok {
		t.Error("nil cache returned a hit")
	}
}
