package retrieval

import (
	"github.com/becomeliminal/recall-go-sdk/memory"
)

// Match type labels. Deduplicated results that matched through several
// strategies carry the sorted, comma-joined union ("keyword,vector").
const (
	MatchVector  = "vector"
	MatchKeyword = "keyword"
	MatchEntity  = "entity"
	MatchProfile = "profile"
	MatchRecent  = "recent"
)

// Result is one candidate produced by a strategy: the full stored
// memory plus the strategy's raw scores on their native scales. Only
// the axes the producing strategy computed are set.
type Result struct {
	Memory memory.Memory

	// KeywordScore is the raw BM25 score, unbounded above.
	KeywordScore float64

	// VectorScore is the backend's raw cosine similarity in [-1,1].
	VectorScore float64

	// RecencyScore is the linear age decay in [0,1], set only by the
	// recent strategy.
	RecencyScore float64

	// RawScore is the strategy's own ordering score.
	RawScore float64

	// MatchType names the strategy (or strategies) that produced this
	// result.
	MatchType string
}
