package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/driftwood-ai/convoy"
	"github.com/driftwood-ai/convoy/llm"
	"github.com/driftwood-ai/convoy/schema"
	"github.com/stretchr/testify/require"
)

type funcTool struct {
	name        string
	description string
	schema      schema.Schema
	fn          func(ctx context.Context, input any) (*convoy.ToolResult, error)
}

func (t *funcTool) Name() string                          { return t.name }
func (t *funcTool) Description() string                   { return t.description }
func (t *funcTool) Schema() schema.Schema                 { return t.schema }
func (t *funcTool) Annotations() convoy.ToolAnnotations   { return convoy.ToolAnnotations{} }
func (t *funcTool) Call(ctx context.Context, input any) (*convoy.ToolResult, error) {
	return t.fn(ctx, input)
}

func lookupSchema() schema.Schema {
	return schema.Schema{
		Type:     "object",
		Required: []string{"account_id"},
		Properties: map[string]*schema.Property{
			"account_id": {
				Type:    "string",
				Pattern: "^acct-[0-9]+$",
			},
			"risk_level": {
				Type: "string",
				Enum: []string{"low", "medium", "high"},
			},
		},
	}
}

func newLookupTool(fn func(ctx context.Context, input any) (*convoy.ToolResult, error)) *funcTool {
	return &funcTool{
		name:        "account_lookup",
		description: "Looks up an account",
		schema:      lookupSchema(),
		fn:          fn,
	}
}

func newTestToolSet(t *testing.T, entries ...*convoy.ToolEntry) *convoy.ToolSet {
	t.Helper()
	toolset, err := convoy.NewToolSet("fraud-tools", entries)
	require.NoError(t, err)
	return toolset
}

func TestDispatcherSuccess(t *testing.T) {
	tool := newLookupTool(func(ctx context.Context, input any) (*convoy.ToolResult, error) {
		return convoy.NewToolResultText(`{"risk": "low"}`), nil
	})
	toolset := newTestToolSet(t, &convoy.ToolEntry{Tool: tool})
	dispatcher := NewDispatcher(nil)

	result := dispatcher.Execute(context.Background(), &llm.ToolCall{
		ID:    "toolu_1",
		Name:  "account_lookup",
		Input: json.RawMessage(`{"account_id": "acct-42"}`),
	}, toolset)

	require.True(t, result.Success)
	require.Equal(t, `{"risk": "low"}`, result.Result)
	require.Equal(t, "toolu_1", result.ToolUseID)
	require.Equal(t, "account_lookup", result.ToolName)
	require.Equal(t, "acct-42", result.Parameters["account_id"])
	require.Empty(t, result.Error)
}

func TestDispatcherToolNotFound(t *testing.T) {
	toolset := newTestToolSet(t)
	dispatcher := NewDispatcher(nil)

	result := dispatcher.Execute(context.Background(), &llm.ToolCall{
		ID: "toolu_1", Name: "unknown_tool", Input: json.RawMessage(`{}`),
	}, toolset)

	require.False(t, result.Success)
	require.Contains(t, result.Error, "tool not found")
}

func TestDispatcherDetectionOnly(t *testing.T) {
	tool := newLookupTool(func(ctx context.Context, input any) (*convoy.ToolResult, error) {
		t.Fatal("detection-only tool must not be executed")
		return nil, nil
	})
	toolset := newTestToolSet(t, &convoy.ToolEntry{Tool: tool, DetectionOnly: true})
	dispatcher := NewDispatcher(nil)

	result := dispatcher.Execute(context.Background(), &llm.ToolCall{
		ID: "toolu_1", Name: "account_lookup",
		Input: json.RawMessage(`{"account_id": "acct-42"}`),
	}, toolset)

	require.False(t, result.Success)
	require.Contains(t, result.Error, "detection-only")
}

func TestDispatcherValidationAggregatesViolations(t *testing.T) {
	executed := false
	tool := newLookupTool(func(ctx context.Context, input any) (*convoy.ToolResult, error) {
		executed = true
		return convoy.NewToolResultText("ok"), nil
	})
	toolset := newTestToolSet(t, &convoy.ToolEntry{Tool: tool})
	dispatcher := NewDispatcher(nil)

	result := dispatcher.Execute(context.Background(), &llm.ToolCall{
		ID: "toolu_1", Name: "account_lookup",
		Input: json.RawMessage(`{"risk_level": "extreme"}`),
	}, toolset)

	require.False(t, result.Success)
	require.False(t, executed)
	require.Contains(t, result.Error, `missing required field "account_id"`)
	require.Contains(t, result.Error, `must be one of`)
}

func TestDispatcherHandlerError(t *testing.T) {
	tool := newLookupTool(func(ctx context.Context, input any) (*convoy.ToolResult, error) {
		return nil, errors.New("boom")
	})
	toolset := newTestToolSet(t, &convoy.ToolEntry{Tool: tool})
	dispatcher := NewDispatcher(nil)

	result := dispatcher.Execute(context.Background(), &llm.ToolCall{
		ID: "toolu_1", Name: "account_lookup",
		Input: json.RawMessage(`{"account_id": "acct-42"}`),
	}, toolset)

	require.False(t, result.Success)
	require.Contains(t, result.Error, "boom")
}

func TestDispatcherErrorResult(t *testing.T) {
	tool := newLookupTool(func(ctx context.Context, input any) (*convoy.ToolResult, error) {
		return convoy.NewToolResultError("account is locked"), nil
	})
	toolset := newTestToolSet(t, &convoy.ToolEntry{Tool: tool})
	dispatcher := NewDispatcher(nil)

	result := dispatcher.Execute(context.Background(), &llm.ToolCall{
		ID: "toolu_1", Name: "account_lookup",
		Input: json.RawMessage(`{"account_id": "acct-42"}`),
	}, toolset)

	require.False(t, result.Success)
	require.Equal(t, "account is locked", result.Error)
}

func TestDispatcherHandlerPanic(t *testing.T) {
	tool := newLookupTool(func(ctx context.Context, input any) (*convoy.ToolResult, error) {
		panic("handler bug")
	})
	toolset := newTestToolSet(t, &convoy.ToolEntry{Tool: tool})
	dispatcher := NewDispatcher(nil)

	result := dispatcher.Execute(context.Background(), &llm.ToolCall{
		ID: "toolu_1", Name: "account_lookup",
		Input: json.RawMessage(`{"account_id": "acct-42"}`),
	}, toolset)

	require.False(t, result.Success)
	require.Contains(t, result.Error, "handler bug")
}

func TestDispatcherScenarioResolution(t *testing.T) {
	var seenScenario string
	tool := newLookupTool(func(ctx context.Context, input any) (*convoy.ToolResult, error) {
		if ec, ok := convoy.ExecutionContextFrom(ctx); ok {
			seenScenario = ec.ScenarioID
		}
		return convoy.NewToolResultText("ok"), nil
	})
	toolset := newTestToolSet(t, &convoy.ToolEntry{Tool: tool})
	dispatcher := NewDispatcher(nil)

	// Explicit scenario on the execution context wins
	ctx := convoy.WithExecutionContext(context.Background(), &convoy.ExecutionContext{
		ExecutionID: "exec_1",
		ScenarioID:  "fraud",
	})
	result := dispatcher.Execute(ctx, &llm.ToolCall{
		ID: "toolu_1", Name: "account_lookup",
		Input: json.RawMessage(`{"account_id": "acct-42"}`),
	}, toolset)
	require.True(t, result.Success)
	require.Equal(t, "fraud", seenScenario)

	// An unresolvable scenario is a dispatch failure
	unresolvable, err := convoy.NewToolSet("-tools", []*convoy.ToolEntry{{Tool: tool}})
	require.NoError(t, err)
	result = dispatcher.Execute(context.Background(), &llm.ToolCall{
		ID: "toolu_2", Name: "account_lookup",
		Input: json.RawMessage(`{"account_id": "acct-42"}`),
	}, unresolvable)
	require.False(t, result.Success)
	require.Contains(t, result.Error, "unable to resolve scenario")
}
