// Package config loads scenario configurations and builds validated tool
// sets from a statically registered handler mapping.
package config

// Scenario is one runnable scenario configuration: the model to use, its
// prompts, the iteration bound, and the tools available to the conversation.
type Scenario struct {
	Name          string       `yaml:"Name" json:"Name"`
	Description   string       `yaml:"Description,omitempty" json:"Description,omitempty"`
	Model         string       `yaml:"Model,omitempty" json:"Model,omitempty"`
	SystemPrompt  string       `yaml:"SystemPrompt,omitempty" json:"SystemPrompt,omitempty"`
	MaxIterations int          `yaml:"MaxIterations,omitempty" json:"MaxIterations,omitempty"`
	Tools         []ToolConfig `yaml:"Tools,omitempty" json:"Tools,omitempty"`
}

// ToolConfig declares one tool within a scenario. A tool with a Handler is
// executable; one without is detection-only: its schema is published to the
// model but it is never dispatched locally.
type ToolConfig struct {
	Name        string         `yaml:"Name" json:"Name"`
	Description string         `yaml:"Description,omitempty" json:"Description,omitempty"`
	Handler     string         `yaml:"Handler,omitempty" json:"Handler,omitempty"`
	Parameters  map[string]any `yaml:"Parameters,omitempty" json:"Parameters,omitempty"`
	Config      map[string]any `yaml:"Config,omitempty" json:"Config,omitempty"`
}
