package retrieval

import (
	"math"
	"regexp"
	"sort"
	"strings"
)

// Okapi BM25 parameters. k1 controls term-frequency saturation, b the
// strength of document-length normalization.
const (
	bm25K1 = 1.5
	bm25B  = 0.75
)

var bm25TokenPattern = regexp.MustCompile(`\w+`)

// bm25Stopwords is the indexing stoplist. Narrower than the analyzer's
// (no greeting words): those are query noise, not document noise.
var bm25Stopwords = map[string]struct{}{}

func init() {
	for _, w := range strings.Fields(
		"a an and are as at be by for from has he in is it its of on that the " +
			"to was were will with this they their what when where which while " +
			"who whom why would could should have had been being can do does " +
			"did done i me my myself we our ours you your yours him his she her " +
			"hers them theirs") {
		bm25Stopwords[w] = struct{}{}
	}
}

// tokenize lowercases, splits on word characters, and drops stopwords
// and tokens of one or two characters.
func tokenize(text string) []string {
	words := bm25TokenPattern.FindAllString(strings.ToLower(text), -1)
	tokens := words[:0]
	for _, w := range words {
		if len(w) <= 2 {
			continue
		}
		if _, stop := bm25Stopwords[w]; stop {
			continue
		}
		tokens = append(tokens, w)
	}
	return tokens
}

// ExtractKeywords picks the up-to-max most frequent index terms of the
// text, ties broken by first occurrence. Useful for populating
// Memory.Keywords when the caller has only free text.
func ExtractKeywords(text string, max int) []string {
	tokens := tokenize(text)
	if len(tokens) == 0 || max <= 0 {
		return nil
	}

	freq := make(map[string]int, len(tokens))
	order := make([]string, 0, len(tokens))
	for _, t := range tokens {
		if freq[t] == 0 {
			order = append(order, t)
		}
		freq[t]++
	}

	sort.SliceStable(order, func(i, j int) bool {
		return freq[order[i]] > freq[order[j]]
	})
	if len(order) > max {
		order = order[:max]
	}
	return order
}

// bm25Index is an in-process Okapi BM25 index over one owner's memory
// snapshot. Immutable after construction, so cached copies are safe to
// share across goroutines.
type bm25Index struct {
	termFreq []map[string]int
	docFreq  map[string]int
	docLen   []int
	avgLen   float64
}

// newBM25Index builds an index over the tokenized documents.
func newBM25Index(docs [][]string) *bm25Index {
	idx := &bm25Index{
		termFreq: make([]map[string]int, len(docs)),
		docFreq:  make(map[string]int),
		docLen:   make([]int, len(docs)),
	}

	var total int
	for i, doc := range docs {
		tf := make(map[string]int, len(doc))
		for _, t := range doc {
			tf[t]++
		}
		idx.termFreq[i] = tf
		idx.docLen[i] = len(doc)
		total += len(doc)
		for t := range tf {
			idx.docFreq[t]++
		}
	}
	if len(docs) > 0 {
		idx.avgLen = float64(total) / float64(len(docs))
	}
	return idx
}

// scores computes the BM25 score of every document against the query
// tokens. The idf uses the +1 variant so scores are never negative.
func (idx *bm25Index) scores(query []string) []float64 {
	n := float64(len(idx.termFreq))
	out := make([]float64, len(idx.termFreq))
	if n == 0 || idx.avgLen == 0 {
		return out
	}

	for _, term := range query {
		df, ok := idx.docFreq[term]
		if !ok {
			continue
		}
		idf := math.Log(1 + (n-float64(df)+0.5)/(float64(df)+0.5))
		for i, tf := range idx.termFreq {
			f := float64(tf[term])
			if f == 0 {
				continue
			}
			norm := 1 - bm25B + bm25B*float64(idx.docLen[i])/idx.avgLen
			out[i] += idf * f * (bm25K1 + 1) / (f + bm25K1*norm)
		}
	}
	return out
}
