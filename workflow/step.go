// Package workflow records the observable steps of an execution, notifies
// subscribers, and persists finished records for history browsing.
package workflow

import (
	"time"

	"github.com/driftwood-ai/convoy"
)

// StepType identifies the kind of event a step records.
type StepType string

const (
	StepIterationStart        StepType = "iteration_start"
	StepModelRequest          StepType = "model_request"
	StepLLMResponse           StepType = "llm_response"
	StepToolCall              StepType = "tool_call"
	StepToolResult            StepType = "tool_result"
	StepCompletion            StepType = "completion"
	StepIterationLimitReached StepType = "iteration_limit_reached"
	StepCancellation          StepType = "cancellation"
	StepError                 StepType = "error"
)

// Step is one recorded, timestamped event within an execution. Steps are
// append-only; after creation only UpdateStep may patch one by identifier.
type Step struct {
	ID          string         `json:"id"`
	ExecutionID string         `json:"execution_id"`
	Type        StepType       `json:"type"`
	Iteration   int            `json:"iteration"`
	Timestamp   time.Time      `json:"timestamp"`
	Content     map[string]any `json:"content,omitempty"`
	Status      string         `json:"status,omitempty"`
}

// NewStepID creates a new step identifier.
func NewStepID() string {
	return convoy.NewID("step")
}

// Copy returns a deep copy of the step.
func (s *Step) Copy() *Step {
	dup := *s
	if s.Content != nil {
		dup.Content = make(map[string]any, len(s.Content))
		for k, v := range s.Content {
			dup.Content[k] = v
		}
	}
	return &dup
}

// StepPatch carries fields to merge into an existing step.
type StepPatch struct {
	Status  string
	Content map[string]any
}
