package config

import (
	"context"
	"fmt"

	"github.com/driftwood-ai/convoy"
	"github.com/driftwood-ai/convoy/schema"
)

// Validate checks that the scenario is well formed.
func (s *Scenario) Validate() error {
	if s.Name == "" {
		return fmt.Errorf("scenario name is required")
	}
	if s.MaxIterations < 0 {
		return fmt.Errorf("scenario %q has a negative max iterations", s.Name)
	}
	for _, tool := range s.Tools {
		if tool.Name == "" {
			return fmt.Errorf("scenario %q contains a tool with no name", s.Name)
		}
		if tool.Handler == "" && tool.Parameters == nil {
			return fmt.Errorf("detection-only tool %q must declare parameters", tool.Name)
		}
	}
	return nil
}

// BuildToolSet resolves the scenario's tools against the handler registry
// and returns a validated tool set. The tool set id carries the "-tools"
// suffix so the scenario id can be derived from it.
func BuildToolSet(scenario *Scenario, registry *HandlerRegistry) (*convoy.ToolSet, error) {
	if err := scenario.Validate(); err != nil {
		return nil, err
	}
	entries := make([]*convoy.ToolEntry, 0, len(scenario.Tools))
	for _, toolConfig := range scenario.Tools {
		if toolConfig.Handler == "" {
			tool, err := newDeclaredTool(toolConfig)
			if err != nil {
				return nil, err
			}
			entries = append(entries, &convoy.ToolEntry{Tool: tool, DetectionOnly: true})
			continue
		}
		initializer, ok := registry.Resolve(toolConfig.Handler)
		if !ok {
			return nil, fmt.Errorf("unknown handler %q for tool %q", toolConfig.Handler, toolConfig.Name)
		}
		tool, err := initializer(toolConfig.Config)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize tool %q: %w", toolConfig.Name, err)
		}
		if tool.Name() != toolConfig.Name {
			return nil, fmt.Errorf("handler %q builds tool %q, but the scenario names it %q",
				toolConfig.Handler, tool.Name(), toolConfig.Name)
		}
		entries = append(entries, &convoy.ToolEntry{Tool: tool})
	}
	return convoy.NewToolSet(scenario.Name+"-tools", entries)
}

// declaredTool is a detection-only tool: its name and schema are published
// to the model, but it has no local handler. The dispatcher refuses to
// execute it before Call could ever run.
type declaredTool struct {
	name        string
	description string
	schema      schema.Schema
}

func newDeclaredTool(toolConfig ToolConfig) (*declaredTool, error) {
	var toolSchema schema.Schema
	if err := convertToolConfig(toolConfig.Parameters, &toolSchema); err != nil {
		return nil, fmt.Errorf("invalid parameters for tool %q: %w", toolConfig.Name, err)
	}
	return &declaredTool{
		name:        toolConfig.Name,
		description: toolConfig.Description,
		schema:      toolSchema,
	}, nil
}

func (t *declaredTool) Name() string                        { return t.name }
func (t *declaredTool) Description() string                 { return t.description }
func (t *declaredTool) Schema() schema.Schema               { return t.schema }
func (t *declaredTool) Annotations() convoy.ToolAnnotations { return convoy.ToolAnnotations{} }

func (t *declaredTool) Call(ctx context.Context, input any) (*convoy.ToolResult, error) {
	return convoy.NewToolResultError(fmt.Sprintf("tool %s has no handler", t.name)), nil
}
