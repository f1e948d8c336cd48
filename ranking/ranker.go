// Package ranking deduplicates, scores, and orders retrieval
// candidates.
//
// Each candidate is scored on five normalized axes (keyword, vector,
// reliability, recency, frequency), blended with configurable weights
// into a final score in [0,1]. Candidates reached through several
// strategies are merged first, keeping the best score per axis, so
// multi-strategy hits rank at least as high as any single path found
// them.
package ranking

import (
	"log"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/becomeliminal/recall-go-sdk/analyzer"
	"github.com/becomeliminal/recall-go-sdk/retrieval"
)

// Weights blends the five scoring axes. They should sum to 1 so final
// scores stay comparable across configurations.
type Weights struct {
	Keyword     float64
	Vector      float64
	Reliability float64
	Recency     float64
	Frequency   float64
}

// Sum returns the total of all axis weights.
func (w Weights) Sum() float64 {
	return w.Keyword + w.Vector + w.Reliability + w.Recency + w.Frequency
}

// DefaultWeights returns the general-purpose blend.
func DefaultWeights() Weights {
	return Weights{
		Keyword:     0.35,
		Vector:      0.25,
		Reliability: 0.20,
		Recency:     0.15,
		Frequency:   0.05,
	}
}

// WeightsForIntent returns an intent-tuned blend. Recall queries lean
// on exact terms and recency; questions lean on semantic similarity
// and reliability. Unknown intents get the default blend.
func WeightsForIntent(intent analyzer.Intent) Weights {
	switch intent {
	case analyzer.IntentRecall:
		return Weights{Keyword: 0.40, Vector: 0.15, Reliability: 0.15, Recency: 0.25, Frequency: 0.05}
	case analyzer.IntentQuestion:
		return Weights{Keyword: 0.20, Vector: 0.35, Reliability: 0.30, Recency: 0.10, Frequency: 0.05}
	case analyzer.IntentConversation:
		return Weights{Keyword: 0.30, Vector: 0.25, Reliability: 0.20, Recency: 0.20, Frequency: 0.05}
	default:
		return DefaultWeights()
	}
}

// Ranked is a deduplicated candidate with its normalized axis scores
// and final blended score.
type Ranked struct {
	retrieval.Result

	// Normalized axis scores, each in [0,1].
	Keyword     float64
	Vector      float64
	Reliability float64
	Recency     float64
	Frequency   float64

	// Score is the weighted blend, in [0,1].
	Score float64
}

const (
	// recencyHalfLifeDays: a memory's recency axis halves every 30 days.
	recencyHalfLifeDays = 30

	// frequencySaturation: access counts at or above 1000 score 1.0.
	frequencySaturation = 1000

	// keywordSquash scales raw BM25 before tanh squashing into [0,1].
	keywordSquash = 0.2
)

// Ranker scores and orders retrieval candidates.
type Ranker struct {
	weights Weights
}

// NewRanker creates a ranker. Weights that do not sum to 1 are used as
// given but logged, since they skew final scores off the [0,1] scale.
func NewRanker(w Weights) *Ranker {
	if math.Abs(w.Sum()-1) > 0.01 {
		log.Printf("[RANKING] weights sum to %.3f, expected 1.0", w.Sum())
	}
	return &Ranker{weights: w}
}

// Rank deduplicates candidates by memory ID, scores each on the five
// axes, and returns them ordered by final score, highest first. The
// sort is stable, so equal scores keep their strategy concatenation
// order. Rank is idempotent: ranking its own output changes nothing.
func (r *Ranker) Rank(results []retrieval.Result) []Ranked {
	merged := dedupe(results)

	now := time.Now()
	ranked := make([]Ranked, 0, len(merged))
	for _, res := range merged {
		rk := Ranked{
			Result:      res,
			Keyword:     normKeyword(res.KeywordScore),
			Vector:      normVector(res.VectorScore),
			Reliability: normReliability(res.Memory.Reliability),
			Recency:     normRecency(res.Memory.CreatedAt, now),
			Frequency:   normFrequency(res.Memory.AccessCount),
		}
		rk.Score = clamp01(r.weights.Keyword*rk.Keyword +
			r.weights.Vector*rk.Vector +
			r.weights.Reliability*rk.Reliability +
			r.weights.Recency*rk.Recency +
			r.weights.Frequency*rk.Frequency)
		ranked = append(ranked, rk)
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Score > ranked[j].Score
	})
	return ranked
}

// rerankBoostCap bounds the total contextual boost per memory.
const rerankBoostCap = 0.3

// RerankWithContext boosts already-ranked memories that match the
// conversation's topics or entities, then re-sorts. Topic hits against
// a memory's keywords add 0.1 each, entity mentions in its content add
// 0.05 each, capped at 0.3 total; boosted scores stay within [0,1].
func (r *Ranker) RerankWithContext(ranked []Ranked, topics, entities []string) []Ranked {
	if len(topics) == 0 && len(entities) == 0 {
		return ranked
	}

	out := make([]Ranked, len(ranked))
	copy(out, ranked)

	for i := range out {
		keywords := make(map[string]struct{}, len(out[i].Memory.Keywords))
		for _, k := range out[i].Memory.Keywords {
			keywords[strings.ToLower(k)] = struct{}{}
		}
		content := strings.ToLower(out[i].Memory.Content)

		boost := 0.0
		for _, t := range topics {
			if _, ok := keywords[strings.ToLower(t)]; ok {
				boost += 0.1
			}
		}
		for _, e := range entities {
			if e != "" && strings.Contains(content, strings.ToLower(e)) {
				boost += 0.05
			}
		}
		if boost > rerankBoostCap {
			boost = rerankBoostCap
		}
		out[i].Score = clamp01(out[i].Score + boost)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Score > out[j].Score
	})
	return out
}

// dedupe merges results sharing a memory ID, preserving first-occurrence
// order. Score axes merge element-wise max; match types merge into a
// sorted, comma-joined set.
func dedupe(results []retrieval.Result) []retrieval.Result {
	byID := make(map[string]int, len(results))
	matchTypes := make(map[string]map[string]struct{}, len(results))

	var merged []retrieval.Result
	for _, res := range results {
		id := res.Memory.ID
		i, seen := byID[id]
		if !seen {
			byID[id] = len(merged)
			merged = append(merged, res)
			set := make(map[string]struct{})
			for _, mt := range strings.Split(res.MatchType, ",") {
				if mt != "" {
					set[mt] = struct{}{}
				}
			}
			matchTypes[id] = set
			continue
		}

		m := &merged[i]
		m.KeywordScore = math.Max(m.KeywordScore, res.KeywordScore)
		m.VectorScore = math.Max(m.VectorScore, res.VectorScore)
		m.RecencyScore = math.Max(m.RecencyScore, res.RecencyScore)
		m.RawScore = math.Max(m.RawScore, res.RawScore)
		for _, mt := range strings.Split(res.MatchType, ",") {
			if mt != "" {
				matchTypes[id][mt] = struct{}{}
			}
		}
	}

	for i := range merged {
		set := matchTypes[merged[i].Memory.ID]
		types := make([]string, 0, len(set))
		for mt := range set {
			types = append(types, mt)
		}
		sort.Strings(types)
		merged[i].MatchType = strings.Join(types, ",")
	}
	return merged
}

// normKeyword squashes an unbounded BM25 score into [0,1].
func normKeyword(bm25 float64) float64 {
	if bm25 <= 0 {
		return 0
	}
	return clamp01(math.Tanh(bm25 * keywordSquash))
}

// normVector maps raw cosine similarity [-1,1] to [0,1].
func normVector(cos float64) float64 {
	return clamp01((cos + 1) / 2)
}

func normReliability(rel float64) float64 {
	return clamp01(rel)
}

// normRecency applies exponential half-life decay over age. Memories
// without a timestamp score the neutral 0.5.
func normRecency(createdAt, now time.Time) float64 {
	if createdAt.IsZero() {
		return 0.5
	}
	ageDays := now.Sub(createdAt).Hours() / 24
	if ageDays < 0 {
		ageDays = 0
	}
	return clamp01(math.Exp(-math.Ln2 / recencyHalfLifeDays * ageDays))
}

// normFrequency maps access count to [0,1] on a log scale saturating at
// frequencySaturation accesses.
func normFrequency(count int) float64 {
	if count <= 0 {
		return 0
	}
	return clamp01(math.Log(1+float64(count)) / math.Log(1+frequencySaturation))
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
