package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/driftwood-ai/convoy"
	"github.com/driftwood-ai/convoy/llm"
	"github.com/driftwood-ai/convoy/workflow"
	"github.com/stretchr/testify/require"
)

// stubModel replays canned responses, repeating the last one, and records
// every request it receives.
type stubModel struct {
	responses []*llm.Response
	err       error
	calls     int
	histories [][]*llm.Message
	configs   []llm.GenerateConfig
}

func (m *stubModel) Name() string { return "stub-model" }

func (m *stubModel) Generate(ctx context.Context, messages []*llm.Message, opts ...llm.GenerateOption) (*llm.Response, error) {
	config := &llm.GenerateConfig{}
	config.Apply(opts)
	m.configs = append(m.configs, *config)

	history := make([]*llm.Message, len(messages))
	copy(history, messages)
	m.histories = append(m.histories, history)

	if m.err != nil {
		return nil, m.err
	}
	index := m.calls
	if index >= len(m.responses) {
		index = len(m.responses) - 1
	}
	m.calls++
	return m.responses[index], nil
}

func newResponse(stopReason string, content ...*llm.Content) *llm.Response {
	return llm.NewResponse(llm.ResponseOptions{
		ID:         "resp_1",
		Model:      "stub-model",
		StopReason: stopReason,
		Message:    llm.NewMessage(llm.Assistant, content),
		Usage:      llm.Usage{InputTokens: 10, OutputTokens: 5},
	})
}

func textBlock(text string) *llm.Content {
	return &llm.Content{Type: llm.ContentTypeText, Text: text}
}

func toolUseBlock(id, name, input string) *llm.Content {
	return &llm.Content{
		Type:  llm.ContentTypeToolUse,
		ID:    id,
		Name:  name,
		Input: json.RawMessage(input),
	}
}

func newTestOrchestrator(t *testing.T, model llm.Model) (*Orchestrator, *workflow.MemoryStore) {
	t.Helper()
	store := workflow.NewMemoryStore()
	tracker, err := workflow.NewTracker(workflow.TrackerOptions{Store: store})
	require.NoError(t, err)
	orchestrator, err := New(Options{Model: model, Tracker: tracker})
	require.NoError(t, err)
	return orchestrator, store
}

func stepTypes(record *workflow.Record) []workflow.StepType {
	types := make([]workflow.StepType, len(record.Steps))
	for i, step := range record.Steps {
		types[i] = step.Type
	}
	return types
}

func TestEndTurnOnFirstCall(t *testing.T) {
	model := &stubModel{responses: []*llm.Response{
		newResponse(llm.StopReasonEndTurn, textBlock("OK")),
	}}
	orchestrator, store := newTestOrchestrator(t, model)

	execution, err := orchestrator.StartExecution(context.Background(), StartOptions{
		ModelID:      "stub-model",
		SystemPrompt: "You analyze transactions.",
		UserPrompt:   "Is this suspicious?",
	})
	require.NoError(t, err)
	require.Equal(t, "OK", execution.FinalResponse())

	snapshot, err := orchestrator.GetStatus(execution.ID())
	require.NoError(t, err)
	require.Equal(t, workflow.StatusCompleted, snapshot.Status)
	require.Equal(t, 1, snapshot.CurrentIteration)
	require.Zero(t, snapshot.TotalToolCalls)
	require.False(t, snapshot.EndTime.Before(snapshot.StartTime))

	record, err := store.GetRecord(context.Background(), execution.ID())
	require.NoError(t, err)
	require.Equal(t, []workflow.StepType{
		workflow.StepIterationStart,
		workflow.StepModelRequest,
		workflow.StepLLMResponse,
		workflow.StepCompletion,
	}, stepTypes(record))
	require.Equal(t, "OK", record.FinalResponse)
}

func TestContextPayloadAppendedToFirstTurn(t *testing.T) {
	model := &stubModel{responses: []*llm.Response{
		newResponse(llm.StopReasonEndTurn, textBlock("done")),
	}}
	orchestrator, _ := newTestOrchestrator(t, model)

	_, err := orchestrator.StartExecution(context.Background(), StartOptions{
		UserPrompt:     "Review this order.",
		ContextPayload: `{"order_id": 7}`,
	})
	require.NoError(t, err)

	require.Len(t, model.histories, 1)
	first := model.histories[0][0]
	require.Equal(t, llm.User, first.Role)
	require.Equal(t, "Review this order.\n\nData to analyze:\n{\"order_id\": 7}", first.Text())
}

func TestIterationLimitReached(t *testing.T) {
	tool := newLookupTool(func(ctx context.Context, input any) (*convoy.ToolResult, error) {
		return convoy.NewToolResultText("looked up"), nil
	})
	toolset := newTestToolSet(t, &convoy.ToolEntry{Tool: tool})

	model := &stubModel{responses: []*llm.Response{
		newResponse(llm.StopReasonToolUse,
			toolUseBlock("toolu_1", "account_lookup", `{"account_id": "acct-1"}`)),
	}}
	orchestrator, store := newTestOrchestrator(t, model)

	execution, err := orchestrator.StartExecution(context.Background(), StartOptions{
		UserPrompt:    "Check this account.",
		ToolSet:       toolset,
		MaxIterations: 2,
	})
	require.NoError(t, err)

	snapshot, err := orchestrator.GetStatus(execution.ID())
	require.NoError(t, err)
	require.Equal(t, 2, snapshot.CurrentIteration)
	require.Equal(t, workflow.StatusCompleted, snapshot.Status)
	require.Empty(t, execution.FinalResponse())

	record, err := store.GetRecord(context.Background(), execution.ID())
	require.NoError(t, err)
	require.Contains(t, stepTypes(record), workflow.StepIterationLimitReached)
}

func TestIterationLimitRecoversPartialResponse(t *testing.T) {
	tool := newLookupTool(func(ctx context.Context, input any) (*convoy.ToolResult, error) {
		return convoy.NewToolResultText("looked up"), nil
	})
	toolset := newTestToolSet(t, &convoy.ToolEntry{Tool: tool})

	model := &stubModel{responses: []*llm.Response{
		newResponse(llm.StopReasonToolUse,
			textBlock("Partial analysis so far."),
			toolUseBlock("toolu_1", "account_lookup", `{"account_id": "acct-1"}`)),
	}}
	orchestrator, _ := newTestOrchestrator(t, model)

	execution, err := orchestrator.StartExecution(context.Background(), StartOptions{
		UserPrompt:    "Check this account.",
		ToolSet:       toolset,
		MaxIterations: 1,
	})
	require.NoError(t, err)
	require.Equal(t, "Partial analysis so far."+TruncationMarker, execution.FinalResponse())
}

func TestToolErrorFedBackToModel(t *testing.T) {
	tool := newLookupTool(func(ctx context.Context, input any) (*convoy.ToolResult, error) {
		return nil, errors.New("boom")
	})
	toolset := newTestToolSet(t, &convoy.ToolEntry{Tool: tool})

	model := &stubModel{responses: []*llm.Response{
		newResponse(llm.StopReasonToolUse,
			toolUseBlock("toolu_1", "account_lookup", `{"account_id": "acct-1"}`)),
		newResponse(llm.StopReasonEndTurn, textBlock("Could not verify.")),
	}}
	orchestrator, _ := newTestOrchestrator(t, model)

	execution, err := orchestrator.StartExecution(context.Background(), StartOptions{
		UserPrompt: "Check this account.",
		ToolSet:    toolset,
	})
	require.NoError(t, err)

	results := execution.ToolExecutions()
	require.Len(t, results, 1)
	require.False(t, results[0].Success)
	require.Contains(t, results[0].Error, "boom")

	// The second model call sees a tool_result block with error status
	require.Len(t, model.histories, 2)
	second := model.histories[1]
	last := second[len(second)-1]
	require.Equal(t, llm.User, last.Role)
	require.Len(t, last.Content, 1)
	require.Equal(t, llm.ContentTypeToolResult, last.Content[0].Type)
	require.True(t, last.Content[0].IsError)
	require.Equal(t, "Error: boom", last.Content[0].Text)
}

func TestTwoToolUseBlocksPreserveOrder(t *testing.T) {
	tool := newLookupTool(func(ctx context.Context, input any) (*convoy.ToolResult, error) {
		return convoy.NewToolResultText("ok"), nil
	})
	toolset := newTestToolSet(t, &convoy.ToolEntry{Tool: tool})

	model := &stubModel{responses: []*llm.Response{
		newResponse(llm.StopReasonToolUse,
			toolUseBlock("toolu_1", "account_lookup", `{"account_id": "acct-1"}`),
			toolUseBlock("toolu_2", "account_lookup", `{"account_id": "acct-2"}`)),
		newResponse(llm.StopReasonEndTurn, textBlock("done")),
	}}
	orchestrator, _ := newTestOrchestrator(t, model)

	execution, err := orchestrator.StartExecution(context.Background(), StartOptions{
		UserPrompt: "Check both accounts.",
		ToolSet:    toolset,
	})
	require.NoError(t, err)

	results := execution.ToolExecutions()
	require.Len(t, results, 2)
	require.Equal(t, "toolu_1", results[0].ToolUseID)
	require.Equal(t, "toolu_2", results[1].ToolUseID)

	second := model.histories[1]
	last := second[len(second)-1]
	require.Len(t, last.Content, 2)
	require.Equal(t, "toolu_1", last.Content[0].ToolUseID)
	require.Equal(t, "toolu_2", last.Content[1].ToolUseID)

	snapshot, err := orchestrator.GetStatus(execution.ID())
	require.NoError(t, err)
	require.Equal(t, 2, snapshot.TotalToolCalls)
}

func TestUnexpectedStopReasonStopsWithoutGuessing(t *testing.T) {
	model := &stubModel{responses: []*llm.Response{
		newResponse(llm.StopReasonMaxTokens, textBlock("truncated mid-")),
	}}
	orchestrator, store := newTestOrchestrator(t, model)

	execution, err := orchestrator.StartExecution(context.Background(), StartOptions{
		UserPrompt: "Analyze.",
	})
	require.NoError(t, err)
	require.Empty(t, execution.FinalResponse())
	require.Equal(t, 1, model.calls)

	snapshot, err := orchestrator.GetStatus(execution.ID())
	require.NoError(t, err)
	require.Equal(t, workflow.StatusError, snapshot.Status)
	require.Len(t, snapshot.Errors, 1)
	require.Equal(t, "unexpected_stop_reason", snapshot.Errors[0].Kind)

	record, err := store.GetRecord(context.Background(), execution.ID())
	require.NoError(t, err)
	require.Contains(t, stepTypes(record), workflow.StepError)
}

func TestModelErrorIsFatalButPersisted(t *testing.T) {
	model := &stubModel{err: errors.New("connection refused")}
	orchestrator, store := newTestOrchestrator(t, model)

	execution, err := orchestrator.StartExecution(context.Background(), StartOptions{
		UserPrompt: "Analyze.",
	})
	require.Error(t, err)
	require.Contains(t, err.Error(), "connection refused")

	snapshot, getErr := orchestrator.GetStatus(execution.ID())
	require.NoError(t, getErr)
	require.Equal(t, workflow.StatusError, snapshot.Status)

	record, getErr := store.GetRecord(context.Background(), execution.ID())
	require.NoError(t, getErr)
	require.Equal(t, workflow.StatusError, record.Status)
	require.Contains(t, record.Error, "connection refused")
}

func TestCancellationTakesEffectAtLoopBoundary(t *testing.T) {
	tool := newLookupTool(func(ctx context.Context, input any) (*convoy.ToolResult, error) {
		return convoy.NewToolResultText("ok"), nil
	})
	toolset := newTestToolSet(t, &convoy.ToolEntry{Tool: tool})

	model := &stubModel{responses: []*llm.Response{
		newResponse(llm.StopReasonToolUse,
			toolUseBlock("toolu_1", "account_lookup", `{"account_id": "acct-1"}`)),
	}}
	orchestrator, store := newTestOrchestrator(t, model)

	onStream := func(ctx context.Context, event *StreamEvent) error {
		if event.Type == StreamToolResult {
			require.NoError(t, orchestrator.CancelExecution(event.ExecutionID))
		}
		return nil
	}

	execution, err := orchestrator.StartExecution(context.Background(), StartOptions{
		UserPrompt:    "Check this account.",
		ToolSet:       toolset,
		MaxIterations: 10,
		OnStream:      onStream,
	})
	require.NoError(t, err)
	require.Equal(t, 1, model.calls)

	snapshot, err := orchestrator.GetStatus(execution.ID())
	require.NoError(t, err)
	require.Equal(t, workflow.StatusCancelled, snapshot.Status)

	record, err := store.GetRecord(context.Background(), execution.ID())
	require.NoError(t, err)
	types := stepTypes(record)
	require.Contains(t, types, workflow.StepCancellation)
	for i, stepType := range types {
		if stepType == workflow.StepCancellation {
			for _, after := range types[i+1:] {
				require.NotEqual(t, workflow.StepModelRequest, after)
			}
		}
	}
}

func TestStreamEventSequence(t *testing.T) {
	tool := newLookupTool(func(ctx context.Context, input any) (*convoy.ToolResult, error) {
		return convoy.NewToolResultText("ok"), nil
	})
	toolset := newTestToolSet(t, &convoy.ToolEntry{Tool: tool})

	model := &stubModel{responses: []*llm.Response{
		newResponse(llm.StopReasonToolUse,
			toolUseBlock("toolu_1", "account_lookup", `{"account_id": "acct-1"}`)),
		newResponse(llm.StopReasonEndTurn, textBlock("done")),
	}}
	orchestrator, _ := newTestOrchestrator(t, model)

	var events []StreamEventType
	onStream := func(ctx context.Context, event *StreamEvent) error {
		events = append(events, event.Type)
		return nil
	}

	_, err := orchestrator.StartExecution(context.Background(), StartOptions{
		UserPrompt: "Check this account.",
		ToolSet:    toolset,
		OnStream:   onStream,
	})
	require.NoError(t, err)
	require.Equal(t, []StreamEventType{
		StreamIterationStart,
		StreamModelRequest,
		StreamToolRequests,
		StreamToolExecution,
		StreamToolResult,
		StreamIterationStart,
		StreamModelRequest,
		StreamCompletion,
	}, events)
}

func TestToolUseWithoutBlocksIsAnError(t *testing.T) {
	model := &stubModel{responses: []*llm.Response{
		newResponse(llm.StopReasonToolUse, textBlock("no tools here")),
	}}
	orchestrator, _ := newTestOrchestrator(t, model)

	execution, err := orchestrator.StartExecution(context.Background(), StartOptions{
		UserPrompt: "Analyze.",
	})
	require.Error(t, err)

	snapshot, getErr := orchestrator.GetStatus(execution.ID())
	require.NoError(t, getErr)
	require.Equal(t, workflow.StatusError, snapshot.Status)
}

func TestGetStatusUnknownExecution(t *testing.T) {
	model := &stubModel{responses: []*llm.Response{
		newResponse(llm.StopReasonEndTurn, textBlock("done")),
	}}
	orchestrator, _ := newTestOrchestrator(t, model)

	_, err := orchestrator.GetStatus("exec_missing")
	require.ErrorIs(t, err, ErrExecutionNotFound)
}

func TestConcurrentStatusPollingDuringRun(t *testing.T) {
	tool := newLookupTool(func(ctx context.Context, input any) (*convoy.ToolResult, error) {
		return convoy.NewToolResultText("ok"), nil
	})
	toolset := newTestToolSet(t, &convoy.ToolEntry{Tool: tool})

	model := &stubModel{responses: []*llm.Response{
		newResponse(llm.StopReasonToolUse,
			toolUseBlock("toolu_1", "account_lookup", `{"account_id": "acct-1"}`)),
	}}
	orchestrator, _ := newTestOrchestrator(t, model)

	var runErr error
	done := make(chan struct{})
	go func() {
		defer close(done)
		_, runErr = orchestrator.StartExecution(context.Background(), StartOptions{
			UserPrompt:    "Check this account.",
			ToolSet:       toolset,
			MaxIterations: 50,
		})
	}()

	// Poll snapshots while the run loop is advancing the iteration counter.
	for polling := true; polling; {
		select {
		case <-done:
			polling = false
		default:
			for _, snapshot := range orchestrator.GetActiveExecutions() {
				require.GreaterOrEqual(t, snapshot.CurrentIteration, 0)
				require.LessOrEqual(t, snapshot.CurrentIteration, 50)
				require.Equal(t, workflow.StatusExecuting, snapshot.Status)
			}
		}
	}
	require.NoError(t, runErr)
	require.Equal(t, 50, model.calls)
}

func TestUsageAccumulatedAcrossIterations(t *testing.T) {
	tool := newLookupTool(func(ctx context.Context, input any) (*convoy.ToolResult, error) {
		return convoy.NewToolResultText("ok"), nil
	})
	toolset := newTestToolSet(t, &convoy.ToolEntry{Tool: tool})

	model := &stubModel{responses: []*llm.Response{
		newResponse(llm.StopReasonToolUse,
			toolUseBlock("toolu_1", "account_lookup", `{"account_id": "acct-1"}`)),
		newResponse(llm.StopReasonEndTurn, textBlock("done")),
	}}
	orchestrator, _ := newTestOrchestrator(t, model)

	execution, err := orchestrator.StartExecution(context.Background(), StartOptions{
		UserPrompt: "Check this account.",
		ToolSet:    toolset,
	})
	require.NoError(t, err)

	// Each stub response reports 10 input and 5 output tokens.
	snapshot, err := orchestrator.GetStatus(execution.ID())
	require.NoError(t, err)
	require.Equal(t, 20, snapshot.Usage.InputTokens)
	require.Equal(t, 10, snapshot.Usage.OutputTokens)
}

func TestCancellationDuringFinalIterationWinsOverLimit(t *testing.T) {
	tool := newLookupTool(func(ctx context.Context, input any) (*convoy.ToolResult, error) {
		return convoy.NewToolResultText("ok"), nil
	})
	toolset := newTestToolSet(t, &convoy.ToolEntry{Tool: tool})

	model := &stubModel{responses: []*llm.Response{
		newResponse(llm.StopReasonToolUse,
			toolUseBlock("toolu_1", "account_lookup", `{"account_id": "acct-1"}`)),
	}}
	orchestrator, store := newTestOrchestrator(t, model)

	onStream := func(ctx context.Context, event *StreamEvent) error {
		if event.Type == StreamToolResult {
			require.NoError(t, orchestrator.CancelExecution(event.ExecutionID))
		}
		return nil
	}

	execution, err := orchestrator.StartExecution(context.Background(), StartOptions{
		UserPrompt:    "Check this account.",
		ToolSet:       toolset,
		MaxIterations: 1,
		OnStream:      onStream,
	})
	require.NoError(t, err)

	snapshot, err := orchestrator.GetStatus(execution.ID())
	require.NoError(t, err)
	require.Equal(t, workflow.StatusCancelled, snapshot.Status)

	record, err := store.GetRecord(context.Background(), execution.ID())
	require.NoError(t, err)
	types := stepTypes(record)
	require.Contains(t, types, workflow.StepCancellation)
	require.NotContains(t, types, workflow.StepIterationLimitReached)
}

func TestToolsPassedToModel(t *testing.T) {
	tool := newLookupTool(func(ctx context.Context, input any) (*convoy.ToolResult, error) {
		return convoy.NewToolResultText("ok"), nil
	})
	toolset := newTestToolSet(t, &convoy.ToolEntry{Tool: tool})

	model := &stubModel{responses: []*llm.Response{
		newResponse(llm.StopReasonEndTurn, textBlock("done")),
	}}
	orchestrator, _ := newTestOrchestrator(t, model)

	_, err := orchestrator.StartExecution(context.Background(), StartOptions{
		ModelID:      "stub-model",
		SystemPrompt: "system",
		UserPrompt:   "Analyze.",
		ToolSet:      toolset,
	})
	require.NoError(t, err)

	require.Len(t, model.configs, 1)
	config := model.configs[0]
	require.Equal(t, "stub-model", config.Model)
	require.Equal(t, "system", config.SystemPrompt)
	require.Len(t, config.Tools, 1)
	require.Equal(t, "account_lookup", config.Tools[0].Name())
}
