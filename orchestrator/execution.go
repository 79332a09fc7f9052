// Package orchestrator drives multi-turn tool-use conversations: it calls
// the model, dispatches requested tools, feeds results back, and enforces
// iteration and cancellation limits.
package orchestrator

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/driftwood-ai/convoy"
	"github.com/driftwood-ai/convoy/llm"
	"github.com/driftwood-ai/convoy/workflow"
)

// ToolExecutionResult is the outcome of one tool invocation. Exactly one
// result exists per tool-use block issued by the model in a given turn.
type ToolExecutionResult struct {
	ToolUseID  string         `json:"tool_use_id"`
	ToolName   string         `json:"tool_name"`
	Parameters map[string]any `json:"parameters,omitempty"`
	Result     string         `json:"result,omitempty"`
	Success    bool           `json:"success"`
	Error      string         `json:"error,omitempty"`
	Timestamp  time.Time      `json:"timestamp"`
}

// ExecutionError is one recorded failure within an execution.
type ExecutionError struct {
	Kind      string    `json:"kind"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// Execution is one end-to-end run. It is mutated only by the orchestrator
// goroutine driving it; other goroutines observe it through Snapshot and
// request cancellation through Cancel.
type Execution struct {
	mu sync.Mutex

	id             string
	modelID        string
	systemPrompt   string
	userPrompt     string
	contextPayload string
	toolset        *convoy.ToolSet

	status           string
	currentIteration int
	maxIterations    int
	messages         []*llm.Message
	finalResponse    string
	toolExecutions   []*ToolExecutionResult
	totalToolCalls   int
	errors           []ExecutionError
	usage            llm.Usage

	cancelled atomic.Bool
	startTime time.Time
	endTime   time.Time
	duration  time.Duration
}

// ID returns the execution identifier.
func (e *Execution) ID() string {
	return e.id
}

// Cancel sets the cooperative cancellation flag. The execution finalizes with
// a cancelled status at its next loop-iteration check.
func (e *Execution) Cancel() {
	e.cancelled.Store(true)
}

// IsCancelled reports whether cancellation has been requested.
func (e *Execution) IsCancelled() bool {
	return e.cancelled.Load()
}

// FinalResponse returns the final text answer, empty until the execution
// completes with one.
func (e *Execution) FinalResponse() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.finalResponse
}

// beginIteration advances the iteration counter and returns the new value.
// The counter is read concurrently by Snapshot, so the write takes the lock.
func (e *Execution) beginIteration() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.currentIteration++
	return e.currentIteration
}

func (e *Execution) iteration() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.currentIteration
}

func (e *Execution) addUsage(usage *llm.Usage) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.usage.Add(usage)
}

// ToolExecutions returns the accumulated tool results in dispatch order.
func (e *Execution) ToolExecutions() []*ToolExecutionResult {
	e.mu.Lock()
	defer e.mu.Unlock()
	results := make([]*ToolExecutionResult, len(e.toolExecutions))
	copy(results, e.toolExecutions)
	return results
}

// Snapshot is a point-in-time view of an execution's progress.
type Snapshot struct {
	ExecutionID      string           `json:"execution_id"`
	ScenarioID       string           `json:"scenario_id,omitempty"`
	ModelID          string           `json:"model_id"`
	Status           string           `json:"status"`
	CurrentIteration int              `json:"current_iteration"`
	MaxIterations    int              `json:"max_iterations"`
	TotalToolCalls   int              `json:"total_tool_calls"`
	Usage            llm.Usage        `json:"usage"`
	FinalResponse    string           `json:"final_response,omitempty"`
	Errors           []ExecutionError `json:"errors,omitempty"`
	StartTime        time.Time        `json:"start_time"`
	EndTime          time.Time        `json:"end_time,omitempty"`
	Duration         time.Duration    `json:"duration,omitempty"`
}

// Snapshot returns a copy of the execution's observable state.
func (e *Execution) Snapshot() *Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	snapshot := &Snapshot{
		ExecutionID:      e.id,
		ModelID:          e.modelID,
		Status:           e.status,
		CurrentIteration: e.currentIteration,
		MaxIterations:    e.maxIterations,
		TotalToolCalls:   e.totalToolCalls,
		Usage:            e.usage,
		FinalResponse:    e.finalResponse,
		StartTime:        e.startTime,
		EndTime:          e.endTime,
		Duration:         e.duration,
	}
	if e.toolset != nil {
		snapshot.ScenarioID = e.toolset.ScenarioID()
	}
	if len(e.errors) > 0 {
		snapshot.Errors = make([]ExecutionError, len(e.errors))
		copy(snapshot.Errors, e.errors)
	}
	return snapshot
}

func (e *Execution) recordError(kind, message string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.errors = append(e.errors, ExecutionError{
		Kind:      kind,
		Message:   message,
		Timestamp: time.Now(),
	})
}

func (e *Execution) finalize(status string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.status = status
	e.endTime = time.Now()
	e.duration = e.endTime.Sub(e.startTime)
}

func newExecution(opts StartOptions) *Execution {
	return &Execution{
		id:             convoy.NewID("exec"),
		modelID:        opts.ModelID,
		systemPrompt:   opts.SystemPrompt,
		userPrompt:     opts.UserPrompt,
		contextPayload: opts.ContextPayload,
		toolset:        opts.ToolSet,
		status:         workflow.StatusExecuting,
		maxIterations:  opts.MaxIterations,
		startTime:      time.Now(),
	}
}
