package retrieval

import (
	"context"

	"github.com/becomeliminal/recall-go-sdk/memory"
)

// Query is the analyzed input every strategy receives. Strategies use
// the parts relevant to them and ignore the rest.
type Query struct {
	// Text is the original query text.
	Text string

	// Keywords are the extracted search terms, lowercased.
	Keywords []string

	// Entities are detected entity mentions, in original casing.
	Entities []string

	// Kinds restricts which memory kinds to search. Empty means all.
	Kinds []memory.Kind
}

// Strategy is one retrieval method. Implementations return raw-scored
// candidates; a strategy with nothing to contribute returns an empty
// slice, not an error.
type Strategy interface {
	// Name identifies the strategy in match types, logs, and metrics.
	Name() string

	// Retrieve returns up to limit candidates for the owner's query.
	Retrieve(ctx context.Context, owner string, q Query, limit int) ([]Result, error)
}
