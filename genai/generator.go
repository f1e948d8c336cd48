// Package genai turns a packed memory context into personalized Claude
// responses. It is a thin consumer of the pipeline's output: the
// retrieval layers know nothing about generation.
package genai

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// DefaultSystemPrompt frames how the model should use injected
// memories.
const DefaultSystemPrompt = `You are a helpful assistant with access to memories about the user.
Use the memory sections below to personalize your responses. Refer to
remembered facts naturally; never claim to remember something that is
not in the sections.`

// Generator calls the Anthropic API with a memory-enriched system
// prompt.
type Generator struct {
	client       anthropic.Client
	model        string
	maxTokens    int64
	systemPrompt string
}

// Option configures a Generator.
type Option func(*Generator)

// WithModel overrides the Claude model.
func WithModel(model string) Option {
	return func(g *Generator) { g.model = model }
}

// WithMaxTokens overrides the response token limit.
func WithMaxTokens(n int64) Option {
	return func(g *Generator) { g.maxTokens = n }
}

// WithSystemPrompt replaces the base system prompt. The memory context
// is still appended to it.
func WithSystemPrompt(prompt string) Option {
	return func(g *Generator) { g.systemPrompt = prompt }
}

// New creates a generator using the given API key.
func New(apiKey string, opts ...Option) *Generator {
	g := &Generator{
		client:       anthropic.NewClient(option.WithAPIKey(apiKey)),
		model:        "claude-sonnet-4-20250514",
		maxTokens:    4096,
		systemPrompt: DefaultSystemPrompt,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// buildParams assembles the request: the system prompt carries the
// memory context, the message list carries the trimmed history and the
// user message.
func (g *Generator) buildParams(memoryContext string, history []string, userMessage string) anthropic.MessageNewParams {
	system := g.systemPrompt
	if memoryContext != "" {
		system += "\n\n" + memoryContext
	}
	if len(history) > 0 {
		system += "\n\n## Recent Conversation\n" + strings.Join(history, "\n")
	}

	return anthropic.MessageNewParams{
		Model:     anthropic.Model(g.model),
		MaxTokens: g.maxTokens,
		System: []anthropic.TextBlockParam{
			{Text: system},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(userMessage)),
		},
	}
}

// Generate returns the complete response text.
func (g *Generator) Generate(ctx context.Context, memoryContext string, history []string, userMessage string) (string, error) {
	params := g.buildParams(memoryContext, history, userMessage)

	resp, err := g.client.Messages.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("create message: %w", err)
	}

	var out strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			out.WriteString(block.Text)
		}
	}
	return out.String(), nil
}

// GenerateStreaming streams the response, invoking onChunk for each
// text delta and once more with done=true at the end. It returns the
// accumulated full text.
func (g *Generator) GenerateStreaming(ctx context.Context, memoryContext string, history []string, userMessage string, onChunk func(text string, done bool)) (string, error) {
	params := g.buildParams(memoryContext, history, userMessage)

	stream := g.client.Messages.NewStreaming(ctx, params)
	defer stream.Close()

	message := anthropic.Message{}
	var out strings.Builder

	for stream.Next() {
		event := stream.Current()
		// Accumulation errors are non-fatal; deltas still arrive.
		_ = message.Accumulate(event)

		switch evt := event.AsAny().(type) {
		case anthropic.ContentBlockDeltaEvent:
			switch delta := evt.Delta.AsAny().(type) {
			case anthropic.TextDelta:
				out.WriteString(delta.Text)
				if onChunk != nil {
					onChunk(delta.Text, false)
				}
			}
		}
	}
	if err := stream.Err(); err != nil {
		return "", fmt.Errorf("stream message: %w", err)
	}

	if onChunk != nil {
		onChunk("", true)
	}
	return out.String(), nil
}
