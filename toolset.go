package convoy

import (
	"fmt"
	"strings"
)

// ToolEntry is one tool in a ToolSet. An entry is either executable (backed
// by a Tool implementation) or detection-only: its schema is published to the
// model but it is never dispatched locally. The distinction is made once, at
// configuration load, not on every dispatch.
type ToolEntry struct {
	Tool          Tool
	DetectionOnly bool
}

// ToolSet is an ordered, validated set of tools configured for a scenario.
type ToolSet struct {
	id      string
	entries []*ToolEntry
	byName  map[string]*ToolEntry
}

// NewToolSet creates a ToolSet with the given identifier and entries. Tool
// names must be unique within the set.
func NewToolSet(id string, entries []*ToolEntry) (*ToolSet, error) {
	if id == "" {
		return nil, fmt.Errorf("tool set id is required")
	}
	byName := make(map[string]*ToolEntry, len(entries))
	for _, entry := range entries {
		if entry.Tool == nil {
			return nil, fmt.Errorf("tool set %q contains a nil tool", id)
		}
		name := entry.Tool.Name()
		if name == "" {
			return nil, fmt.Errorf("tool set %q contains a tool with no name", id)
		}
		if _, exists := byName[name]; exists {
			return nil, fmt.Errorf("duplicate tool name %q in tool set %q", name, id)
		}
		byName[name] = entry
	}
	return &ToolSet{id: id, entries: entries, byName: byName}, nil
}

// ID returns the tool set identifier.
func (ts *ToolSet) ID() string {
	return ts.id
}

// ScenarioID derives the scenario identifier from the tool set identifier by
// trimming the conventional "-tools" suffix.
func (ts *ToolSet) ScenarioID() string {
	return strings.TrimSuffix(ts.id, "-tools")
}

// Tools returns the tools in configuration order.
func (ts *ToolSet) Tools() []Tool {
	tools := make([]Tool, len(ts.entries))
	for i, entry := range ts.entries {
		tools[i] = entry.Tool
	}
	return tools
}

// Len returns the number of tools in the set.
func (ts *ToolSet) Len() int {
	return len(ts.entries)
}

// Resolve looks up a tool entry by name.
func (ts *ToolSet) Resolve(name string) (*ToolEntry, bool) {
	entry, ok := ts.byName[name]
	return entry, ok
}
