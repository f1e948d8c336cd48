package tokens_test

import (
	"strings"
	"testing"

	"github.com/becomeliminal/recall-go-sdk/tokens"
)

// wordEncoder is an exact tokenizer for tests: one token per
// space-separated word.
type wordEncoder struct {
	words []string
}

func (e *wordEncoder) Encode(text string) []int {
	e.words = strings.Fields(text)
	ids := make([]int, len(e.words))
	for i := range ids {
		ids[i] = i
	}
	return ids
}

func (e *wordEncoder) Decode(ids []int) string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = e.words[id]
	}
	return strings.Join(out, " ")
}

func TestCount_Fallback(t *testing.T) {
	c := tokens.NewCounter(nil)

	if got := c.Count(""); got != 0 {
		t.Errorf("Count(\"\") = %d, want 0", got)
	}
	if got := c.Count("abcdefgh"); got != 2 {
		t.Errorf("Count(8 chars) = %d, want 2", got)
	}
}

func TestCount_Encoder(t *testing.T) {
	c := tokens.NewCounter(&wordEncoder{})

	if got := c.Count("one two three"); got != 3 {
		t.Errorf("Count = %d, want 3", got)
	}
}

func TestTruncate_NoopWhenShort(t *testing.T) {
	c := tokens.NewCounter(nil)

	text := "short text"
	if got := c.Truncate(text, 100, true); got != text {
		t.Errorf("Truncate = %q, want unchanged", got)
	}
}

func TestTruncate_FallbackWordBoundary(t *testing.T) {
	c := tokens.NewCounter(nil)

	text := strings.Repeat("word ", 50)
	got := c.Truncate(text, 5, true)

	if !strings.HasSuffix(got, "...") {
		t.Errorf("Truncate = %q, want ellipsis suffix", got)
	}
	if c.Count(strings.TrimSuffix(got, "...")) > 5 {
		t.Errorf("truncated text still exceeds budget: %q", got)
	}
	if strings.Contains(strings.TrimSuffix(got, "..."), "wor ") {
		t.Errorf("truncation split a word: %q", got)
	}
}

func TestTruncate_ZeroBudget(t *testing.T) {
	c := tokens.NewCounter(nil)

	if got := c.Truncate("anything", 0, true); got != "..." {
		t.Errorf("Truncate(0, ellipsis) = %q, want \"...\"", got)
	}
	if got := c.Truncate("anything", 0, false); got != "" {
		t.Errorf("Truncate(0) = %q, want \"\"", got)
	}
}

func TestSplit_ShortTextSingleChunk(t *testing.T) {
	c := tokens.NewCounter(nil)

	chunks := c.Split("tiny", 100, 10)
	if len(chunks) != 1 || chunks[0] != "tiny" {
		t.Errorf("Split = %v, want [tiny]", chunks)
	}
}

func TestSplit_EncoderOverlap(t *testing.T) {
	c := tokens.NewCounter(&wordEncoder{})

	words := make([]string, 10)
	for i := range words {
		words[i] = string(rune('a' + i))
	}
	chunks := c.Split(strings.Join(words, " "), 4, 1)

	if len(chunks) < 3 {
		t.Fatalf("Split produced %d chunks, want >= 3: %v", len(chunks), chunks)
	}
	// Consecutive chunks share their boundary word.
	first := strings.Fields(chunks[0])
	second := strings.Fields(chunks[1])
	if first[len(first)-1] != second[0] {
		t.Errorf("chunks do not overlap: %v then %v", chunks[0], chunks[1])
	}
}

func TestSplit_FallbackSentences(t *testing.T) {
	c := tokens.NewCounter(nil)

	text := strings.Repeat("This is a full sentence with several words in it. ", 20)
	chunks := c.Split(text, 20, 0)

	if len(chunks) < 2 {
		t.Fatalf("Split produced %d chunks, want >= 2", len(chunks))
	}
	for _, chunk := range chunks {
		if chunk == "" {
			t.Error("Split produced an empty chunk")
		}
	}
}
