package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/driftwood-ai/convoy"
	"github.com/driftwood-ai/convoy/llm"
	"github.com/driftwood-ai/convoy/slogger"
	"github.com/driftwood-ai/convoy/workflow"
)

// DefaultMaxIterations bounds the conversation loop when the caller does not
// specify a limit.
const DefaultMaxIterations = 10

// TruncationMarker is appended to a partial response recovered after the
// iteration limit is reached.
const TruncationMarker = "\n\n[Response truncated: iteration limit reached]"

// Options configures an Orchestrator.
type Options struct {
	Model      llm.Model
	Tracker    *workflow.Tracker
	Registry   *ExecutionRegistry
	Dispatcher *Dispatcher
	Logger     slogger.Logger
}

// Orchestrator drives executions: the iteration state machine that calls the
// model, dispatches tools, and records every step.
type Orchestrator struct {
	model      llm.Model
	tracker    *workflow.Tracker
	registry   *ExecutionRegistry
	dispatcher *Dispatcher
	logger     slogger.Logger
}

// New creates an Orchestrator. Model and Tracker are required; Registry,
// Dispatcher, and Logger are defaulted when nil.
func New(opts Options) (*Orchestrator, error) {
	if opts.Model == nil {
		return nil, fmt.Errorf("model is required")
	}
	if opts.Tracker == nil {
		return nil, fmt.Errorf("workflow tracker is required")
	}
	if opts.Logger == nil {
		opts.Logger = slogger.DefaultLogger
	}
	if opts.Registry == nil {
		opts.Registry = NewExecutionRegistry(DefaultMaxHistory)
	}
	if opts.Dispatcher == nil {
		opts.Dispatcher = NewDispatcher(opts.Logger)
	}
	return &Orchestrator{
		model:      opts.Model,
		tracker:    opts.Tracker,
		registry:   opts.Registry,
		dispatcher: opts.Dispatcher,
		logger:     opts.Logger,
	}, nil
}

// StartOptions are the inputs to one execution.
type StartOptions struct {
	ModelID        string
	SystemPrompt   string
	UserPrompt     string
	ContextPayload string
	ToolSet        *convoy.ToolSet
	MaxIterations  int
	OnStream       EventCallback
	Dataset        any
}

// StartExecution runs one conversation to a terminal status and returns the
// execution. A returned error means the run ended with an error status; the
// execution record is finalized and persisted in every case.
func (o *Orchestrator) StartExecution(ctx context.Context, opts StartOptions) (*Execution, error) {
	if opts.UserPrompt == "" {
		return nil, fmt.Errorf("user prompt is required")
	}
	if opts.MaxIterations <= 0 {
		opts.MaxIterations = DefaultMaxIterations
	}
	execution := newExecution(opts)

	var scenarioID string
	if opts.ToolSet != nil {
		scenarioID = opts.ToolSet.ScenarioID()
	}
	if err := o.registry.Register(execution); err != nil {
		return nil, err
	}
	if err := o.tracker.CreateExecution(execution.id, workflow.Metadata{
		ScenarioID: scenarioID,
		ModelID:    opts.ModelID,
	}); err != nil {
		return nil, err
	}
	ctx = convoy.WithExecutionContext(ctx, &convoy.ExecutionContext{
		ExecutionID: execution.id,
		ScenarioID:  scenarioID,
		Dataset:     opts.Dataset,
	})

	prompt := opts.UserPrompt
	if opts.ContextPayload != "" {
		prompt += "\n\nData to analyze:\n" + opts.ContextPayload
	}
	execution.messages = []*llm.Message{llm.NewUserMessage(prompt)}

	o.logger.Info("execution started",
		"execution_id", execution.id,
		"model_id", opts.ModelID,
		"scenario_id", scenarioID,
		"max_iterations", opts.MaxIterations)

	return o.run(ctx, execution, opts.OnStream)
}

// run is the iteration loop. One logical task per execution; each iteration
// depends on the conversation state produced by the previous one.
func (o *Orchestrator) run(ctx context.Context, execution *Execution, onStream EventCallback) (*Execution, error) {
	for execution.iteration() < execution.maxIterations {
		if execution.IsCancelled() || ctx.Err() != nil {
			return o.cancel(ctx, execution)
		}

		iteration := execution.beginIteration()
		o.addStep(execution.id, &workflow.Step{
			Type:      workflow.StepIterationStart,
			Iteration: iteration,
			Content:   map[string]any{"iteration": iteration},
		})
		o.emit(ctx, onStream, &StreamEvent{
			Type:        StreamIterationStart,
			ExecutionID: execution.id,
			Iteration:   iteration,
			Timestamp:   time.Now(),
			Summary:     fmt.Sprintf("Iteration %d of %d", iteration, execution.maxIterations),
		})

		response, err := o.callModel(ctx, execution, onStream)
		if err != nil {
			execution.recordError("model_call_error", err.Error())
			o.addStep(execution.id, &workflow.Step{
				Type:      workflow.StepError,
				Iteration: iteration,
				Content:   map[string]any{"message": err.Error()},
				Status:    workflow.StatusError,
			})
			o.complete(ctx, execution, workflow.StatusError, "", err.Error())
			return execution, fmt.Errorf("model call failed: %w", err)
		}

		message := response.Message()
		execution.messages = append(execution.messages, message)

		switch response.StopReason() {
		case llm.StopReasonEndTurn:
			finalResponse := message.CompleteText()
			o.addStep(execution.id, &workflow.Step{
				Type:      workflow.StepCompletion,
				Iteration: iteration,
				Content:   map[string]any{"final_response": finalResponse},
				Status:    "success",
			})
			o.emit(ctx, onStream, &StreamEvent{
				Type:        StreamCompletion,
				ExecutionID: execution.id,
				Iteration:   iteration,
				Timestamp:   time.Now(),
				Summary:     "Execution completed",
				Text:        finalResponse,
			})
			o.complete(ctx, execution, workflow.StatusCompleted, finalResponse, "")
			return execution, nil

		case llm.StopReasonToolUse:
			if err := o.handleToolUse(ctx, execution, response, onStream); err != nil {
				execution.recordError("tool_turn_error", err.Error())
				o.addStep(execution.id, &workflow.Step{
					Type:      workflow.StepError,
					Iteration: iteration,
					Content:   map[string]any{"message": err.Error()},
					Status:    workflow.StatusError,
				})
				o.complete(ctx, execution, workflow.StatusError, "", err.Error())
				return execution, err
			}

		default:
			// Unrecognized stop reasons end the run without a final
			// response. Stop, don't guess.
			reason := fmt.Sprintf("unexpected stop reason: %s", response.StopReason())
			execution.recordError("unexpected_stop_reason", reason)
			o.addStep(execution.id, &workflow.Step{
				Type:      workflow.StepError,
				Iteration: iteration,
				Content:   map[string]any{"message": reason},
				Status:    workflow.StatusError,
			})
			o.complete(ctx, execution, workflow.StatusError, "", reason)
			return execution, nil
		}
	}

	return o.iterationLimitReached(ctx, execution, onStream)
}

// callModel records the request and response steps around one model call.
func (o *Orchestrator) callModel(ctx context.Context, execution *Execution, onStream EventCallback) (*llm.Response, error) {
	iteration := execution.iteration()
	o.addStep(execution.id, &workflow.Step{
		Type:      workflow.StepModelRequest,
		Iteration: iteration,
		Content: map[string]any{
			"model_id":      execution.modelID,
			"message_count": len(execution.messages),
		},
	})
	o.emit(ctx, onStream, &StreamEvent{
		Type:        StreamModelRequest,
		ExecutionID: execution.id,
		Iteration:   iteration,
		Timestamp:   time.Now(),
		Summary:     fmt.Sprintf("Calling model %s", execution.modelID),
	})

	generateOpts := []llm.GenerateOption{
		llm.WithSystemPrompt(execution.systemPrompt),
	}
	if execution.modelID != "" {
		generateOpts = append(generateOpts, llm.WithModel(execution.modelID))
	}
	if execution.toolset != nil && execution.toolset.Len() > 0 {
		tools := make([]llm.Tool, 0, execution.toolset.Len())
		for _, tool := range execution.toolset.Tools() {
			tools = append(tools, tool)
		}
		generateOpts = append(generateOpts, llm.WithTools(tools...))
	}

	response, err := o.model.Generate(ctx, execution.messages, generateOpts...)
	if err != nil {
		return nil, err
	}
	usage := response.Usage()
	execution.addUsage(&usage)
	o.addStep(execution.id, &workflow.Step{
		Type:      workflow.StepLLMResponse,
		Iteration: iteration,
		Content: map[string]any{
			"stop_reason":   response.StopReason(),
			"input_tokens":  usage.InputTokens,
			"output_tokens": usage.OutputTokens,
		},
	})
	return response, nil
}

// handleToolUse dispatches every tool-use block in order and appends one
// synthetic user turn containing the ordered tool-result blocks.
func (o *Orchestrator) handleToolUse(ctx context.Context, execution *Execution, response *llm.Response, onStream EventCallback) error {
	toolCalls := response.ToolCalls()
	if len(toolCalls) == 0 {
		return fmt.Errorf("tool_use stop reason with no tool_use blocks")
	}
	iteration := execution.iteration()

	toolNames := make([]string, len(toolCalls))
	for i, call := range toolCalls {
		toolNames[i] = call.Name
	}
	o.emit(ctx, onStream, &StreamEvent{
		Type:        StreamToolRequests,
		ExecutionID: execution.id,
		Iteration:   iteration,
		Timestamp:   time.Now(),
		Summary:     fmt.Sprintf("Model requested %d tool(s)", len(toolCalls)),
		ToolNames:   toolNames,
	})

	outputs := make([]*llm.ToolOutput, 0, len(toolCalls))
	for _, call := range toolCalls {
		stepID := o.addStep(execution.id, &workflow.Step{
			Type:      workflow.StepToolCall,
			Iteration: iteration,
			Content: map[string]any{
				"tool_name":   call.Name,
				"tool_use_id": call.ID,
			},
		})
		o.emit(ctx, onStream, &StreamEvent{
			Type:        StreamToolExecution,
			ExecutionID: execution.id,
			Iteration:   iteration,
			Timestamp:   time.Now(),
			Summary:     fmt.Sprintf("Executing tool %s", call.Name),
			ToolName:    call.Name,
			ToolUseID:   call.ID,
		})

		started := time.Now()
		result := o.dispatcher.Execute(ctx, call, execution.toolset)
		status := "success"
		if !result.Success {
			status = workflow.StatusError
		}
		if stepID != "" {
			if err := o.tracker.UpdateStep(execution.id, stepID, workflow.StepPatch{
				Status:  status,
				Content: map[string]any{"duration_ms": time.Since(started).Milliseconds()},
			}); err != nil {
				o.logger.Warn("failed to update tool call step",
					"execution_id", execution.id, "step_id", stepID, "error", err)
			}
		}

		var output *llm.ToolOutput
		if result.Success {
			o.addStep(execution.id, &workflow.Step{
				Type:      workflow.StepToolResult,
				Iteration: iteration,
				Content: map[string]any{
					"tool_name":   call.Name,
					"tool_use_id": call.ID,
					"result":      result.Result,
				},
				Status: "success",
			})
			o.emit(ctx, onStream, &StreamEvent{
				Type:        StreamToolResult,
				ExecutionID: execution.id,
				Iteration:   iteration,
				Timestamp:   time.Now(),
				Summary:     fmt.Sprintf("Tool %s succeeded", call.Name),
				ToolName:    call.Name,
				ToolUseID:   call.ID,
			})
			output = &llm.ToolOutput{ID: call.ID, Name: call.Name, Output: result.Result}
		} else {
			o.addStep(execution.id, &workflow.Step{
				Type:      workflow.StepToolResult,
				Iteration: iteration,
				Content: map[string]any{
					"tool_name":   call.Name,
					"tool_use_id": call.ID,
					"error":       result.Error,
				},
				Status: workflow.StatusError,
			})
			o.emit(ctx, onStream, &StreamEvent{
				Type:        StreamToolError,
				ExecutionID: execution.id,
				Iteration:   iteration,
				Timestamp:   time.Now(),
				Summary:     fmt.Sprintf("Tool %s failed: %s", call.Name, result.Error),
				ToolName:    call.Name,
				ToolUseID:   call.ID,
			})
			output = &llm.ToolOutput{
				ID:      call.ID,
				Name:    call.Name,
				Output:  fmt.Sprintf("Error: %s", result.Error),
				IsError: true,
			}
		}
		outputs = append(outputs, output)

		execution.mu.Lock()
		execution.toolExecutions = append(execution.toolExecutions, result)
		execution.totalToolCalls++
		execution.mu.Unlock()
	}

	execution.messages = append(execution.messages, llm.NewToolOutputMessage(outputs))
	return nil
}

// iterationLimitReached finalizes a run that exhausted its iteration budget
// while the model still wanted to continue. A partial response is recovered
// from the last assistant turn when one carries text.
func (o *Orchestrator) iterationLimitReached(ctx context.Context, execution *Execution, onStream EventCallback) (*Execution, error) {
	// A cancellation requested during the final iteration wins over the
	// limit, so the terminal status is deterministic in that overlap.
	if execution.IsCancelled() || ctx.Err() != nil {
		return o.cancel(ctx, execution)
	}

	iteration := execution.iteration()
	o.addStep(execution.id, &workflow.Step{
		Type:      workflow.StepIterationLimitReached,
		Iteration: iteration,
		Content:   map[string]any{"iterations": iteration},
	})

	var finalResponse string
	for i := len(execution.messages) - 1; i >= 0; i-- {
		message := execution.messages[i]
		if message.Role != llm.Assistant {
			continue
		}
		if text := message.CompleteText(); text != "" {
			finalResponse = text + TruncationMarker
		}
		break
	}

	o.emit(ctx, onStream, &StreamEvent{
		Type:        StreamCompletion,
		ExecutionID: execution.id,
		Iteration:   iteration,
		Timestamp:   time.Now(),
		Summary:     "Iteration limit reached",
		Text:        finalResponse,
	})
	o.complete(ctx, execution, workflow.StatusCompleted, finalResponse, "")
	return execution, nil
}

// cancel finalizes a cancelled execution. The cancellation step is recorded
// here, at the loop boundary where cancellation takes effect.
func (o *Orchestrator) cancel(ctx context.Context, execution *Execution) (*Execution, error) {
	reason := "cancellation requested"
	if err := ctx.Err(); err != nil && !execution.IsCancelled() {
		reason = err.Error()
	}
	execution.mu.Lock()
	execution.status = workflow.StatusCancelled
	execution.endTime = time.Now()
	execution.duration = execution.endTime.Sub(execution.startTime)
	execution.mu.Unlock()

	// The tracker needs a live context even when the caller's was cancelled.
	if _, err := o.tracker.CancelExecution(context.WithoutCancel(ctx), execution.id, reason); err != nil {
		o.logger.Error("failed to record cancellation",
			"execution_id", execution.id, "error", err)
	}
	o.registry.Complete(execution.id)
	o.logger.Info("execution cancelled", "execution_id", execution.id, "reason", reason)
	return execution, nil
}

// complete finalizes an execution with a terminal status and persists the
// workflow record. Persistence failures are logged by the tracker; they never
// change the conversation outcome.
func (o *Orchestrator) complete(ctx context.Context, execution *Execution, status, finalResponse, errMessage string) {
	execution.mu.Lock()
	execution.finalResponse = finalResponse
	execution.status = status
	execution.endTime = time.Now()
	execution.duration = execution.endTime.Sub(execution.startTime)
	iterations := execution.currentIteration
	totalToolCalls := execution.totalToolCalls
	execution.mu.Unlock()

	if _, err := o.tracker.CompleteExecution(context.WithoutCancel(ctx), execution.id, workflow.CompletionData{
		Status:         status,
		FinalResponse:  finalResponse,
		Error:          errMessage,
		Iterations:     iterations,
		TotalToolCalls: totalToolCalls,
	}); err != nil {
		o.logger.Error("failed to complete workflow record",
			"execution_id", execution.id, "error", err)
	}
	o.registry.Complete(execution.id)
	o.logger.Info("execution finished",
		"execution_id", execution.id,
		"status", status,
		"iterations", iterations,
		"tool_calls", totalToolCalls)
}

// CancelExecution requests cooperative cancellation of an active execution.
// It takes effect at the next loop-iteration check; an in-flight model call
// or tool dispatch is not preempted.
func (o *Orchestrator) CancelExecution(executionID string) error {
	execution, err := o.registry.Get(executionID)
	if err != nil {
		return err
	}
	execution.Cancel()
	return nil
}

// GetStatus returns a snapshot of an active or completed execution.
func (o *Orchestrator) GetStatus(executionID string) (*Snapshot, error) {
	execution, err := o.registry.Get(executionID)
	if err != nil {
		return nil, err
	}
	return execution.Snapshot(), nil
}

// GetActiveExecutions returns snapshots of every in-flight execution.
func (o *Orchestrator) GetActiveExecutions() []*Snapshot {
	active := o.registry.Active()
	snapshots := make([]*Snapshot, len(active))
	for i, execution := range active {
		snapshots[i] = execution.Snapshot()
	}
	return snapshots
}

// CleanupHistory removes completed executions older than maxAge from the
// in-memory registry and from durable storage. It returns the number of
// durable records deleted.
func (o *Orchestrator) CleanupHistory(ctx context.Context, maxAge time.Duration) (int, error) {
	o.registry.CleanupHistory(maxAge)
	deleted, _, err := o.tracker.CleanupWorkflows(ctx, maxAge, 0)
	return deleted, err
}

// addStep appends a workflow step, logging rather than failing on error.
func (o *Orchestrator) addStep(executionID string, step *workflow.Step) string {
	stepID, err := o.tracker.AddStep(executionID, step)
	if err != nil {
		o.logger.Error("failed to record workflow step",
			"execution_id", executionID, "step_type", string(step.Type), "error", err)
		return ""
	}
	return stepID
}

// emit delivers a stream event to the caller's callback, if any.
func (o *Orchestrator) emit(ctx context.Context, onStream EventCallback, event *StreamEvent) {
	if onStream == nil {
		return
	}
	if err := onStream(ctx, event); err != nil {
		o.logger.Warn("stream callback failed",
			"execution_id", event.ExecutionID, "event_type", string(event.Type), "error", err)
	}
}
