// Package llm defines the message model and the Model interface used to
// converse with a large-language-model endpoint.
package llm

import (
	"context"

	"github.com/driftwood-ai/convoy/schema"
)

// Stop reasons reported by a Model. The orchestrator branches on these: a
// turn either finished, requested tool use, or ended for some other reason.
const (
	StopReasonEndTurn   = "end_turn"
	StopReasonToolUse   = "tool_use"
	StopReasonMaxTokens = "max_tokens"
)

// Model generates responses to conversations. Transport, auth, and retries
// are the implementation's concern.
type Model interface {
	// Name returns the default model identifier used by this client.
	Name() string

	// Generate a response from the model by passing the message history.
	Generate(ctx context.Context, messages []*Message, opts ...GenerateOption) (*Response, error)
}

// Tool describes a callable tool to the model.
type Tool interface {
	Name() string
	Description() string
	Schema() schema.Schema
}

// GenerateOption configures one generation request.
type GenerateOption func(*GenerateConfig)

// GenerateConfig holds configuration parameters for a generation.
type GenerateConfig struct {
	Model        string
	SystemPrompt string
	MaxTokens    *int
	Temperature  *float64
	Tools        []Tool
}

// Apply invokes the given options against the config.
func (c *GenerateConfig) Apply(opts []GenerateOption) {
	for _, opt := range opts {
		opt(c)
	}
}

// WithModel sets the model identifier for the generation.
func WithModel(model string) GenerateOption {
	return func(config *GenerateConfig) {
		config.Model = model
	}
}

// WithSystemPrompt sets the system prompt.
func WithSystemPrompt(systemPrompt string) GenerateOption {
	return func(config *GenerateConfig) {
		config.SystemPrompt = systemPrompt
	}
}

// WithMaxTokens sets the max tokens.
func WithMaxTokens(maxTokens int) GenerateOption {
	return func(config *GenerateConfig) {
		config.MaxTokens = &maxTokens
	}
}

// WithTemperature sets the temperature.
func WithTemperature(temperature float64) GenerateOption {
	return func(config *GenerateConfig) {
		config.Temperature = &temperature
	}
}

// WithTools sets the tools available for the interaction.
func WithTools(tools ...Tool) GenerateOption {
	return func(config *GenerateConfig) {
		config.Tools = tools
	}
}
