// Package contextbuilder assembles ranked memories into a
// token-budgeted context block for prompt injection.
//
// Each memory kind gets its own budget. Packing is prefix-greedy in
// rank order: the first memory that would overflow its section's budget
// closes that section, so a section never skips a high-ranked memory to
// squeeze in a lower-ranked smaller one. Budgets are soft caps on
// selection, not a guarantee that the total fits; TotalTokens and
// Truncated report what actually happened.
package contextbuilder

import (
	"fmt"
	"strings"

	"github.com/becomeliminal/recall-go-sdk/memory"
	"github.com/becomeliminal/recall-go-sdk/ranking"
	"github.com/becomeliminal/recall-go-sdk/tokens"
)

// Budgets are per-section token caps.
type Budgets struct {
	// Max caps the reported total; exceeding it sets Truncated.
	Max int

	Profile    int
	Semantic   int
	Episodic   int
	Procedural int

	// Entity caps the entity-context string.
	Entity int

	// History caps packed conversation history (see PackHistory).
	History int
}

// DefaultBudgets returns the standard allocation, 5000 tokens total.
func DefaultBudgets() Budgets {
	return Budgets{
		Max:        5000,
		Profile:    600,
		Semantic:   1500,
		Episodic:   1500,
		Procedural: 400,
		Entity:     300,
		History:    300,
	}
}

// Context is the packed, categorized result. Sections hold full
// memories in rank order so formatting can use kind-specific fields.
type Context struct {
	Profile    []memory.Memory
	Semantic   []memory.Memory
	Episodic   []memory.Memory
	Procedural []memory.Memory

	// EntityContext is the (possibly truncated) entity description
	// block.
	EntityContext string

	// TotalTokens is the token count of everything included, capped at
	// the max budget.
	TotalTokens int

	// Truncated reports whether the included content exceeded the max
	// budget.
	Truncated bool
}

// Builder packs ranked memories into a Context using fixed per-section
// budgets.
type Builder struct {
	budgets Budgets
	counter *tokens.Counter
}

// NewBuilder creates a builder. A nil counter selects the estimating
// token counter.
func NewBuilder(budgets Budgets, counter *tokens.Counter) *Builder {
	if counter == nil {
		counter = tokens.NewCounter(nil)
	}
	return &Builder{budgets: budgets, counter: counter}
}

// Build packs the ranked memories and entity context into a Context.
func (b *Builder) Build(ranked []ranking.Ranked, entityContext string) Context {
	byKind := categorize(ranked)

	ctx := Context{
		Profile:    b.pack(byKind[memory.KindProfile], b.budgets.Profile),
		Semantic:   b.pack(byKind[memory.KindSemantic], b.budgets.Semantic),
		Episodic:   b.pack(byKind[memory.KindEpisodic], b.budgets.Episodic),
		Procedural: b.pack(byKind[memory.KindProcedural], b.budgets.Procedural),
	}
	if entityContext != "" {
		ctx.EntityContext = b.truncateWords(entityContext, b.budgets.Entity)
	}

	total := b.totalTokens(ctx)
	ctx.Truncated = total > b.budgets.Max
	if total > b.budgets.Max {
		total = b.budgets.Max
	}
	ctx.TotalTokens = total
	return ctx
}

// PackHistory returns the newest history lines fitting the history
// budget, in their original (oldest-first) order.
func (b *Builder) PackHistory(history []string) []string {
	used := 0
	start := len(history)
	for i := len(history) - 1; i >= 0; i-- {
		n := b.counter.Count(history[i])
		if used+n > b.budgets.History {
			break
		}
		used += n
		start = i
	}
	return history[start:]
}

// categorize splits ranked memories by kind, preserving rank order.
// Unknown kinds are treated as semantic.
func categorize(ranked []ranking.Ranked) map[memory.Kind][]memory.Memory {
	byKind := make(map[memory.Kind][]memory.Memory, 4)
	for _, r := range ranked {
		k := r.Memory.Kind
		if !k.Valid() {
			k = memory.KindSemantic
		}
		byKind[k] = append(byKind[k], r.Memory)
	}
	return byKind
}

// pack fills one section: memories are taken in order until the first
// one that would overflow the budget.
func (b *Builder) pack(mems []memory.Memory, budget int) []memory.Memory {
	var out []memory.Memory
	used := 0
	for _, m := range mems {
		n := b.counter.Count(m.Content)
		if used+n > budget {
			break
		}
		out = append(out, m)
		used += n
	}
	return out
}

// truncateWords cuts text at a word boundary so it fits maxTokens,
// binary-searching the longest fitting prefix and appending "...".
func (b *Builder) truncateWords(text string, maxTokens int) string {
	if b.counter.Count(text) <= maxTokens {
		return text
	}

	words := strings.Fields(text)
	low, high := 0, len(words)
	for low < high {
		mid := (low + high + 1) / 2
		if b.counter.Count(strings.Join(words[:mid], " ")) <= maxTokens {
			low = mid
		} else {
			high = mid - 1
		}
	}
	return strings.Join(words[:low], " ") + "..."
}

func (b *Builder) totalTokens(ctx Context) int {
	total := 0
	for _, section := range [][]memory.Memory{ctx.Profile, ctx.Semantic, ctx.Episodic, ctx.Procedural} {
		for _, m := range section {
			total += b.counter.Count(m.Content)
		}
	}
	if ctx.EntityContext != "" {
		total += b.counter.Count(ctx.EntityContext)
	}
	return total
}

// FormatForPrompt renders a Context as markdown sections for injection
// into a system prompt. Empty sections are omitted.
func FormatForPrompt(ctx Context) string {
	var sections []string

	if len(ctx.Profile) > 0 {
		lines := []string{"## User Profile"}
		for _, m := range ctx.Profile {
			category := defaultStr(m.Category, "general")
			attribute := defaultStr(m.Attribute, "info")
			value := defaultStr(m.Value, m.Content)
			lines = append(lines, fmt.Sprintf("- %s/%s: %s", category, attribute, value))
		}
		sections = append(sections, strings.Join(lines, "\n"))
	}

	if len(ctx.Semantic) > 0 {
		lines := []string{"## Known Facts"}
		for _, m := range ctx.Semantic {
			topic := defaultStr(m.Topic, "general")
			fact := defaultStr(m.Fact, m.Content)
			lines = append(lines, fmt.Sprintf("- [%s] %s", topic, fact))
		}
		sections = append(sections, strings.Join(lines, "\n"))
	}

	if len(ctx.Episodic) > 0 {
		lines := []string{"## Recent Interactions"}
		for _, m := range ctx.Episodic {
			date := "recently"
			if !m.CreatedAt.IsZero() {
				date = m.CreatedAt.Format("2006-01-02")
			}
			summary := defaultStr(m.Summary, clip(m.Content, 200))
			lines = append(lines, fmt.Sprintf("- %s: %s", date, summary))
		}
		sections = append(sections, strings.Join(lines, "\n"))
	}

	if len(ctx.Procedural) > 0 {
		lines := []string{"## Learned Procedures"}
		for _, m := range ctx.Procedural {
			name := defaultStr(m.ProcedureName, "unnamed")
			trigger := defaultStr(m.Trigger, "user request")
			lines = append(lines, fmt.Sprintf("- %s: %s", name, trigger))
		}
		sections = append(sections, strings.Join(lines, "\n"))
	}

	if ctx.EntityContext != "" {
		sections = append(sections, "## Entity Context\n"+ctx.EntityContext)
	}

	return strings.Join(sections, "\n\n")
}

func defaultStr(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}

func clip(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
