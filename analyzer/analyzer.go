// Package analyzer classifies a raw query into intent, keywords,
// topics, entities, and a memory-type recommendation.
//
// This is deliberate regex heuristics, not NER; false positives and
// negatives on entity detection are acceptable. Analysis is pure over
// the query text, with no I/O and no failure mode: malformed input
// degrades to a low-confidence conversation analysis.
package analyzer

import (
	"regexp"
	"strings"

	"github.com/becomeliminal/recall-go-sdk/memory"
)

// Intent is the detected purpose of a query.
type Intent string

const (
	IntentRecall       Intent = "recall"
	IntentQuestion     Intent = "question"
	IntentCommand      Intent = "command"
	IntentConversation Intent = "conversation"
)

// Analysis is the per-request result of analyzing one query.
type Analysis struct {
	OriginalQuery string
	Intent        Intent
	Keywords      []string // deduped, first-occurrence order, max 15
	Topics        []string // max 10
	Entities      []string // max 10
	TimeReference string   // "" when the query carries no time reference
	RequiresMemory bool
	MemoryKinds   []memory.Kind
	Confidence    float64 // [0,1]
}

const (
	maxKeywords = 15
	maxTopics   = 10
	maxEntities = 10
)

// Pattern groups are tested in order: recall, then command, then
// question. A query matching both recall and question patterns is
// classified recall.
var (
	recallPatterns = compileAll(
		`(?i)\b(remember|recall|told|said|mentioned|discussed|talked about)\b`,
		`(?i)\b(last time|before|previously|earlier|when did)\b`,
		`(?i)\b(what was|what were|what did)\b`,
		`(?i)\b(my|our) (favorite|preference|choice)\b`,
	)

	commandPatterns = compileAll(
		`(?i)^(create|make|build|write|generate|add|update|delete|remove)\b`,
		`(?i)^(set|configure|change|modify|fix|solve|help)\b`,
		`(?i)^(please|can you|could you|would you)\s+(create|make|write|help)\b`,
	)

	questionPatterns = compileAll(
		`(?i)^(what|who|where|when|why|how|which|can|could|would|should|is|are|do|does)\b`,
		`\?$`,
		`(?i)\b(explain|describe|tell me about|define)\b`,
	)

	entityPatterns = compileAll(
		`\b([A-Z][a-z]+ [A-Z][a-z]+)\b`,          // proper names (First Last)
		`\b([A-Z][a-z]+'s)\b`,                    // possessives
		`\b(Mr\.|Mrs\.|Ms\.|Dr\.) ([A-Z][a-z]+)\b`, // title + name
		`\B(@\w+)\b`,                             // handles
		`\b([A-Z][A-Z]+)\b`,                      // acronyms
	)

	wordPattern      = regexp.MustCompile(`\w+`)
	quotedPattern    = regexp.MustCompile(`"([^"]+)"`)
	aboutPattern     = regexp.MustCompile(`(?i)\babout\s+(\w+(?:\s+\w+)?)\b`)
	regardingPattern = regexp.MustCompile(`(?i)\bregarding\s+(\w+(?:\s+\w+)?)\b`)
)

// timePatterns is ordered; the first match wins.
var timePatterns = []struct {
	re    *regexp.Regexp
	label string
}{
	{regexp.MustCompile(`(?i)\b(today|now|currently)\b`), "present"},
	{regexp.MustCompile(`(?i)\b(yesterday|last night)\b`), "recent"},
	{regexp.MustCompile(`(?i)\b(last week|past week)\b`), "week"},
	{regexp.MustCompile(`(?i)\b(last month|past month)\b`), "month"},
	{regexp.MustCompile(`(?i)\b(last year|past year)\b`), "year"},
	{regexp.MustCompile(`\b(\d{1,2}[/-]\d{1,2}[/-]\d{2,4})\b`), "specific_date"},
	{regexp.MustCompile(`(?i)\b(january|february|march|april|may|june|july|august|september|october|november|december)\b`), "month_name"},
}

var stopwords = map[string]struct{}{}

func init() {
	for _, w := range strings.Fields(
		"a an and are as at be by for from has he in is it its of on that the " +
			"to was were will with this they their what when where which while " +
			"who whom why would could should have had been being can do does " +
			"did done i me my myself we our ours you your yours him his she her " +
			"hers them theirs please thanks thank hello hi hey") {
		stopwords[w] = struct{}{}
	}
}

func compileAll(patterns ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		out = append(out, regexp.MustCompile(p))
	}
	return out
}

// Analyzer performs lightweight NLP over query text to decide what the
// retrieval layer should search for.
type Analyzer struct{}

// New creates a query analyzer.
func New() *Analyzer {
	return &Analyzer{}
}

// Analyze classifies a query. Pure function; never fails.
func (a *Analyzer) Analyze(query string) Analysis {
	lower := strings.ToLower(strings.TrimSpace(query))

	intent := detectIntent(lower)
	keywords := extractKeywords(query)
	topics := extractTopics(query)
	entities := detectEntities(query)

	return Analysis{
		OriginalQuery:  query,
		Intent:         intent,
		Keywords:       keywords,
		Topics:         topics,
		Entities:       entities,
		TimeReference:  detectTimeReference(lower),
		RequiresMemory: requiresMemory(intent, lower),
		MemoryKinds:    memoryKinds(intent, lower),
		Confidence:     confidence(intent, keywords, lower),
	}
}

func detectIntent(lower string) Intent {
	for _, re := range recallPatterns {
		if re.MatchString(lower) {
			return IntentRecall
		}
	}
	for _, re := range commandPatterns {
		if re.MatchString(lower) {
			return IntentCommand
		}
	}
	for _, re := range questionPatterns {
		if re.MatchString(lower) {
			return IntentQuestion
		}
	}
	return IntentConversation
}

func extractKeywords(query string) []string {
	words := wordPattern.FindAllString(strings.ToLower(query), -1)

	seen := make(map[string]struct{}, len(words))
	var keywords []string
	for _, w := range words {
		if len(w) <= 2 {
			continue
		}
		if _, stop := stopwords[w]; stop {
			continue
		}
		if _, dup := seen[w]; dup {
			continue
		}
		seen[w] = struct{}{}
		keywords = append(keywords, w)
		if len(keywords) == maxKeywords {
			break
		}
	}
	return keywords
}

func extractTopics(query string) []string {
	var raw []string
	for _, m := range quotedPattern.FindAllStringSubmatch(query, -1) {
		raw = append(raw, m[1])
	}
	for _, m := range aboutPattern.FindAllStringSubmatch(query, -1) {
		raw = append(raw, m[1])
	}
	for _, m := range regardingPattern.FindAllStringSubmatch(query, -1) {
		raw = append(raw, m[1])
	}

	seen := make(map[string]struct{}, len(raw))
	var topics []string
	for _, t := range raw {
		t = strings.ToLower(strings.TrimSpace(t))
		if len(t) <= 2 {
			continue
		}
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		topics = append(topics, t)
		if len(topics) == maxTopics {
			break
		}
	}
	return topics
}

func detectEntities(query string) []string {
	seen := make(map[string]struct{})
	var entities []string
	for _, re := range entityPatterns {
		for _, m := range re.FindAllStringSubmatch(query, -1) {
			entity := strings.TrimSpace(strings.Join(m[1:], " "))
			if len(entity) <= 1 {
				continue
			}
			if _, dup := seen[entity]; dup {
				continue
			}
			seen[entity] = struct{}{}
			entities = append(entities, entity)
			if len(entities) == maxEntities {
				return entities
			}
		}
	}
	return entities
}

func detectTimeReference(lower string) string {
	for _, tp := range timePatterns {
		if tp.re.MatchString(lower) {
			return tp.label
		}
	}
	return ""
}

func requiresMemory(intent Intent, lower string) bool {
	switch intent {
	case IntentRecall:
		return true
	case IntentCommand:
		// Commands only need memory when personalized.
		for _, hint := range []string{"my", "prefer", "usual", "always", "like"} {
			if strings.Contains(lower, hint) {
				return true
			}
		}
		return false
	case IntentQuestion:
		// Factual questions about the user need memory.
		for _, tok := range strings.Fields(lower) {
			switch tok {
			case "my", "i", "me", "we", "our":
				return true
			}
		}
		return false
	default:
		// Conversation benefits from memory for personalization.
		return true
	}
}

func memoryKinds(intent Intent, lower string) []memory.Kind {
	switch intent {
	case IntentRecall:
		return memory.AllKinds()
	case IntentQuestion:
		kinds := []memory.Kind{memory.KindSemantic, memory.KindProfile}
		if strings.Contains(lower, "how") || strings.Contains(lower, "process") || strings.Contains(lower, "step") {
			kinds = append(kinds, memory.KindProcedural)
		}
		return kinds
	case IntentCommand:
		return []memory.Kind{memory.KindProcedural, memory.KindProfile}
	default:
		return []memory.Kind{memory.KindEpisodic, memory.KindSemantic, memory.KindProfile}
	}
}

func confidence(intent Intent, keywords []string, lower string) float64 {
	c := 0.5

	if len(keywords) >= 3 {
		c += 0.1
	}
	if len(keywords) >= 5 {
		c += 0.1
	}

	switch intent {
	case IntentRecall:
		c += 0.2
	case IntentQuestion:
		c += 0.15
	case IntentCommand:
		c += 0.15
	}

	words := len(strings.Fields(lower))
	if words >= 5 && words <= 30 {
		c += 0.1
	} else if words > 30 {
		c -= 0.1
	}

	if c > 1 {
		c = 1
	}
	if c < 0 {
		c = 0
	}
	return c
}
