// Package tokens counts, truncates, and splits text by token count.
//
// An exact tokenizer can be plugged in through the Encoder interface;
// without one the counter falls back to a deterministic character-based
// estimate (len/4), so callers are never blocked by tokenizer
// availability.
package tokens

import "strings"

// Encoder is an optional exact tokenizer.
type Encoder interface {
	// Encode converts text to token IDs.
	Encode(text string) []int

	// Decode converts token IDs back to text.
	Decode(ids []int) string
}

// Counter counts tokens using an exact encoder when available and a
// character estimate otherwise.
type Counter struct {
	enc Encoder
}

// NewCounter creates a counter. A nil encoder selects the estimate
// fallback.
func NewCounter(enc Encoder) *Counter {
	return &Counter{enc: enc}
}

// estimatedCharsPerToken is the fallback ratio (4 chars per token on
// average for English text).
const estimatedCharsPerToken = 4

// Count returns the token count of text.
func (c *Counter) Count(text string) int {
	if text == "" {
		return 0
	}
	if c.enc != nil {
		return len(c.enc.Encode(text))
	}
	return len(text) / estimatedCharsPerToken
}

// Truncate cuts text to at most maxTokens tokens, appending "..." when
// ellipsis is set and anything was removed. The exact path cuts at a
// token boundary; the fallback path cuts at a word boundary.
func (c *Counter) Truncate(text string, maxTokens int, ellipsis bool) string {
	if text == "" {
		return ""
	}
	if maxTokens <= 0 {
		if ellipsis {
			return "..."
		}
		return ""
	}
	if c.Count(text) <= maxTokens {
		return text
	}

	if c.enc != nil {
		ids := c.enc.Encode(text)
		keep := maxTokens
		if ellipsis {
			keep-- // reserve one token for the marker
		}
		if keep < 0 {
			keep = 0
		}
		truncated := c.enc.Decode(ids[:keep])
		if ellipsis {
			truncated += "..."
		}
		return truncated
	}

	maxChars := maxTokens * estimatedCharsPerToken
	if ellipsis {
		maxChars -= 3
	}
	if maxChars < 0 {
		maxChars = 0
	}
	truncated := text
	if len(truncated) > maxChars {
		truncated = truncated[:maxChars]
	}
	// Break at the last word boundary.
	if i := strings.LastIndex(truncated, " "); i > 0 {
		truncated = truncated[:i]
	}
	if ellipsis {
		truncated += "..."
	}
	return truncated
}

// Split divides text into chunks of roughly chunkSize tokens, with
// overlap tokens shared between consecutive chunks on the exact path.
// The fallback path splits on sentence boundaries without overlap.
func (c *Counter) Split(text string, chunkSize, overlap int) []string {
	if text == "" {
		return nil
	}
	if chunkSize <= 0 {
		return []string{text}
	}
	if c.Count(text) <= chunkSize {
		return []string{text}
	}

	if c.enc != nil {
		if overlap >= chunkSize {
			overlap = chunkSize - 1
		}
		if overlap < 0 {
			overlap = 0
		}
		ids := c.enc.Encode(text)
		var chunks []string
		for start := 0; start < len(ids); {
			end := start + chunkSize
			if end > len(ids) {
				end = len(ids)
			}
			chunks = append(chunks, c.enc.Decode(ids[start:end]))
			if end == len(ids) {
				break
			}
			start = end - overlap
		}
		return chunks
	}

	var chunks []string
	var current strings.Builder
	currentTokens := 0
	for _, sentence := range splitSentences(text) {
		n := c.Count(sentence)
		if currentTokens+n > chunkSize && current.Len() > 0 {
			chunks = append(chunks, strings.TrimSpace(current.String()))
			current.Reset()
			currentTokens = 0
		}
		current.WriteString(sentence)
		current.WriteString(" ")
		currentTokens += n
	}
	if s := strings.TrimSpace(current.String()); s != "" {
		chunks = append(chunks, s)
	}
	return chunks
}

func splitSentences(text string) []string {
	r := strings.NewReplacer("! ", "!\x00", "? ", "?\x00", ". ", ".\x00")
	return strings.Split(r.Replace(text), "\x00")
}
