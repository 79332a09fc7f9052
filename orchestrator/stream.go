package orchestrator

import (
	"context"
	"time"
)

// StreamEventType identifies the kind of streaming update.
type StreamEventType string

const (
	StreamIterationStart StreamEventType = "iteration_start"
	StreamModelRequest   StreamEventType = "model_request"
	StreamToolRequests   StreamEventType = "tool_requests"
	StreamToolExecution  StreamEventType = "tool_execution"
	StreamToolResult     StreamEventType = "tool_result"
	StreamToolError      StreamEventType = "tool_error"
	StreamCompletion     StreamEventType = "completion"
)

// StreamEvent is a milestone update delivered to the caller while an
// execution runs.
type StreamEvent struct {
	Type        StreamEventType `json:"type"`
	ExecutionID string          `json:"execution_id"`
	Iteration   int             `json:"iteration"`
	Timestamp   time.Time       `json:"timestamp"`

	// Summary is a human-readable description of the event.
	Summary string `json:"summary"`

	// ToolName and ToolUseID are set for per-tool events.
	ToolName  string `json:"tool_name,omitempty"`
	ToolUseID string `json:"tool_use_id,omitempty"`

	// ToolNames lists every requested tool for a tool_requests event.
	ToolNames []string `json:"tool_names,omitempty"`

	// Text carries the final response for a completion event.
	Text string `json:"text,omitempty"`
}

// EventCallback receives stream events synchronously, in iteration order. A
// callback error is logged and does not affect the execution.
type EventCallback func(ctx context.Context, event *StreamEvent) error
