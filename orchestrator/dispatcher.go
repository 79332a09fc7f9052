package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/driftwood-ai/convoy"
	"github.com/driftwood-ai/convoy/llm"
	"github.com/driftwood-ai/convoy/slogger"
)

// Dispatcher validates and executes tool invocations requested by the model.
// It is stateless per call; every failure is captured in the returned result
// so nothing propagates into the conversation loop.
type Dispatcher struct {
	logger slogger.Logger
}

// NewDispatcher creates a Dispatcher.
func NewDispatcher(logger slogger.Logger) *Dispatcher {
	if logger == nil {
		logger = slogger.DefaultLogger
	}
	return &Dispatcher{logger: logger}
}

// Execute resolves, validates, and runs one tool call. It never returns an
// error across the boundary; the result's Success and Error fields carry the
// outcome.
func (d *Dispatcher) Execute(ctx context.Context, call *llm.ToolCall, toolset *convoy.ToolSet) *ToolExecutionResult {
	result := &ToolExecutionResult{
		ToolUseID: call.ID,
		ToolName:  call.Name,
		Timestamp: time.Now(),
	}

	if toolset == nil {
		result.Error = fmt.Sprintf("tool not found: %s", call.Name)
		return result
	}
	entry, ok := toolset.Resolve(call.Name)
	if !ok {
		result.Error = fmt.Sprintf("tool not found: %s", call.Name)
		return result
	}
	if entry.DetectionOnly {
		result.Error = fmt.Sprintf("tool %s is detection-only and has no handler", call.Name)
		return result
	}

	scenarioID := toolset.ScenarioID()
	ec, hasEC := convoy.ExecutionContextFrom(ctx)
	if hasEC && ec.ScenarioID != "" {
		scenarioID = ec.ScenarioID
	}
	if scenarioID == "" {
		result.Error = fmt.Sprintf("unable to resolve scenario for tool %s", call.Name)
		return result
	}
	if hasEC && ec.ScenarioID == "" {
		// Handlers see the derived scenario, not an empty field.
		resolved := *ec
		resolved.ScenarioID = scenarioID
		ctx = convoy.WithExecutionContext(ctx, &resolved)
	}

	params := map[string]any{}
	if len(call.Input) > 0 {
		if err := json.Unmarshal(call.Input, &params); err != nil {
			result.Error = fmt.Sprintf("invalid tool input: %v", err)
			return result
		}
	}
	result.Parameters = params

	toolSchema := entry.Tool.Schema()
	if err := toolSchema.Validate(params); err != nil {
		result.Error = err.Error()
		return result
	}

	output, err := d.callTool(ctx, entry.Tool, call.Input)
	if err != nil {
		result.Error = err.Error()
		return result
	}
	if output.IsError {
		result.Error = output.Text()
		return result
	}
	result.Result = output.Text()
	result.Success = true
	return result
}

// callTool runs the handler behind a panic boundary.
func (d *Dispatcher) callTool(ctx context.Context, tool convoy.Tool, input json.RawMessage) (output *convoy.ToolResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("tool handler panicked", "tool", tool.Name(), "panic", r)
			output = nil
			err = fmt.Errorf("tool %s panicked: %v", tool.Name(), r)
		}
	}()
	output, err = tool.Call(ctx, input)
	if err != nil {
		return nil, err
	}
	if output == nil {
		return nil, fmt.Errorf("tool %s returned no result", tool.Name())
	}
	return output, nil
}
