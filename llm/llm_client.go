// Package llm adapts model providers to the bounded message lists produced
// by the memory layer.
package llm

import (
	"context"
	"time"

	"github.com/SaiNageswarS/agent-memory/schema"
)

// ModelClient sends an already compressed history to a model. Failures are
// returned to the caller unchanged.
type ModelClient interface {
	Invoke(ctx context.Context, messages []schema.Message, opts ...LLMOption) (*Reply, error)

	GetModel() string
}

type UsageMetadata struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
	Latency          time.Duration
	Model            string
}

// Attributes renders the usage as message metadata attributes.
func (u UsageMetadata) Attributes() map[string]any {
	return map[string]any{
		"model":             u.Model,
		"prompt_tokens":     u.PromptTokens,
		"completion_tokens": u.CompletionTokens,
		"total_tokens":      u.TotalTokens,
		"latency_ms":        u.Latency.Milliseconds(),
	}
}

type Reply struct {
	Content string
	Usage   UsageMetadata
}

type LLMSettings struct {
	model       string  // model name
	temperature float64 // randomness (0.0 to 1.0)
	maxTokens   int     // maximum tokens to generate
	system      string  // system prompt
}

type LLMOption func(*LLMSettings)

func newSettings(model string, opts []LLMOption) LLMSettings {
	settings := LLMSettings{
		model:       model,
		temperature: 0.7,
		maxTokens:   4096,
	}
	for _, opt := range opts {
		opt(&settings)
	}
	return settings
}

// Common options for all LLM providers
func WithModel(model string) LLMOption {
	return func(s *LLMSettings) { s.model = model }
}

func WithTemperature(temp float64) LLMOption {
	return func(s *LLMSettings) { s.temperature = temp }
}

func WithMaxTokens(tokens int) LLMOption {
	return func(s *LLMSettings) { s.maxTokens = tokens }
}

// WithSystemPrompt prepends a system message to the request. Histories that
// already carry their system prompt do not need it.
func WithSystemPrompt(prompt string) LLMOption {
	return func(s *LLMSettings) { s.system = prompt }
}
