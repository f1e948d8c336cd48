package retrieval

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/becomeliminal/recall-go-sdk/cache"
	"github.com/becomeliminal/recall-go-sdk/memory"
)

const (
	// keywordCorpusLimit bounds how many memories are loaded for
	// in-process indexing.
	keywordCorpusLimit = 1000

	// keywordCacheMinDocs is the corpus size below which rebuilding the
	// index is cheaper than caching it.
	keywordCacheMinDocs = 50
)

// KeywordStrategy retrieves by BM25 over the owner's memory text. The
// corpus is loaded from the store per query and indexed in process;
// indexes for larger corpora are cached against a snapshot fingerprint.
type KeywordStrategy struct {
	store   memory.Store
	indexes *cache.Indexes
}

// cachedIndex pairs a BM25 index with the document positions it was
// built over, since empty documents are skipped during indexing.
type cachedIndex struct {
	idx    *bm25Index
	docPos []int
}

// NewKeywordStrategy creates the BM25 strategy. The index cache may be
// nil to rebuild on every query.
func NewKeywordStrategy(store memory.Store, indexes *cache.Indexes) *KeywordStrategy {
	return &KeywordStrategy{store: store, indexes: indexes}
}

func (s *KeywordStrategy) Name() string { return MatchKeyword }

// Retrieve scores the owner's memories against the extracted keywords
// and returns the top positive-scoring candidates.
func (s *KeywordStrategy) Retrieve(ctx context.Context, owner string, q Query, limit int) ([]Result, error) {
	if len(q.Keywords) == 0 {
		return nil, nil
	}

	docs, err := s.store.Find(ctx, owner, memory.FindQuery{
		Kinds: q.Kinds,
		Limit: keywordCorpusLimit,
	})
	if err != nil {
		return nil, fmt.Errorf("load keyword corpus: %w", err)
	}
	if len(docs) == 0 {
		return nil, nil
	}

	ci := s.index(owner, docs)
	if ci == nil {
		return nil, nil
	}

	scores := ci.idx.scores(tokenize(strings.Join(q.Keywords, " ")))

	results := make([]Result, 0, len(scores))
	for i, score := range scores {
		if score <= 0 {
			continue
		}
		results = append(results, Result{
			Memory:       docs[ci.docPos[i]],
			KeywordScore: score,
			RawScore:     score,
			MatchType:    MatchKeyword,
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].RawScore > results[j].RawScore
	})
	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// index returns the BM25 index for the corpus, cached when the corpus
// is large enough to make reuse worthwhile.
func (s *KeywordStrategy) index(owner string, docs []memory.Memory) *cachedIndex {
	useCache := len(docs) >= keywordCacheMinDocs

	var key string
	if useCache {
		key = fingerprint(owner, docs)
		if v, ok := s.indexes.Get(key); ok {
			if ci, ok := v.(*cachedIndex); ok {
				return ci
			}
		}
	}

	var tokenized [][]string
	var docPos []int
	for i, doc := range docs {
		tokens := tokenize(doc.Content + " " + strings.Join(doc.Keywords, " "))
		if len(tokens) == 0 {
			continue
		}
		tokenized = append(tokenized, tokens)
		docPos = append(docPos, i)
	}
	if len(tokenized) == 0 {
		return nil
	}

	ci := &cachedIndex{idx: newBM25Index(tokenized), docPos: docPos}
	if useCache {
		s.indexes.Put(key, ci)
	}
	return ci
}

// fingerprint identifies a corpus snapshot: the owner, the corpus size,
// and the leading document IDs in store order. Any insert, delete, or
// reorder within the prefix invalidates the key.
func fingerprint(owner string, docs []memory.Memory) string {
	var b strings.Builder
	b.WriteString(owner)
	fmt.Fprintf(&b, ":%d", len(docs))
	for i, doc := range docs {
		if i == 20 {
			break
		}
		b.WriteByte(':')
		b.WriteString(doc.ID)
	}
	return b.String()
}
