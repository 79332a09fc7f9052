package workflow

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/driftwood-ai/convoy"
	"github.com/driftwood-ai/convoy/slogger"
)

// ListenerChannelAll subscribes a listener to every execution.
const ListenerChannelAll = "all"

// EventType identifies the kind of tracker notification.
type EventType string

const (
	EventStepAdded          EventType = "step_added"
	EventExecutionCompleted EventType = "execution_completed"
)

// Event is delivered to tracker listeners.
type Event struct {
	Type        EventType
	ExecutionID string
	Step        *Step   // set for EventStepAdded
	Record      *Record // set for EventExecutionCompleted
}

// ListenerFunc receives tracker events. A panicking listener is logged and
// skipped; it never interrupts delivery to other listeners.
type ListenerFunc func(event *Event)

type listener struct {
	id string
	fn ListenerFunc
}

// CompletionData finalizes an execution record.
type CompletionData struct {
	Status         string
	FinalResponse  string
	Error          string
	Iterations     int
	TotalToolCalls int
}

// Metadata describes an execution at creation time.
type Metadata struct {
	ScenarioID string
	ModelID    string
	Extra      map[string]any
}

// TrackerOptions configures a Tracker.
type TrackerOptions struct {
	Store  Store
	Logger slogger.Logger
}

// Tracker keeps the append-only step log for every active execution, fans
// out step notifications to subscribers, and persists finished records.
type Tracker struct {
	mu        sync.RWMutex
	active    map[string]*Record
	listeners map[string][]*listener
	store     Store
	logger    slogger.Logger
}

// NewTracker creates a Tracker backed by the given store.
func NewTracker(opts TrackerOptions) (*Tracker, error) {
	if opts.Store == nil {
		return nil, fmt.Errorf("workflow store is required")
	}
	if opts.Logger == nil {
		opts.Logger = slogger.DefaultLogger
	}
	return &Tracker{
		active:    make(map[string]*Record),
		listeners: make(map[string][]*listener),
		store:     opts.Store,
		logger:    opts.Logger,
	}, nil
}

// CreateExecution opens an in-memory record for a new execution. Creating
// twice for the same id is a caller error.
func (t *Tracker) CreateExecution(executionID string, meta Metadata) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, exists := t.active[executionID]; exists {
		return fmt.Errorf("execution %q already exists", executionID)
	}
	t.active[executionID] = &Record{
		ExecutionID: executionID,
		ScenarioID:  meta.ScenarioID,
		ModelID:     meta.ModelID,
		Status:      StatusExecuting,
		StartTime:   time.Now(),
		Metadata:    meta.Extra,
	}
	return nil
}

// AddStep appends a step to the execution's sequence and notifies
// subscribers, returning the step id.
func (t *Tracker) AddStep(executionID string, step *Step) (string, error) {
	t.mu.Lock()
	record, ok := t.active[executionID]
	if !ok {
		t.mu.Unlock()
		return "", fmt.Errorf("%w: %s", ErrExecutionNotFound, executionID)
	}
	if step.ID == "" {
		step.ID = NewStepID()
	}
	step.ExecutionID = executionID
	if step.Timestamp.IsZero() {
		step.Timestamp = time.Now()
	}
	record.Steps = append(record.Steps, step)
	notified := t.listenersFor(executionID)
	t.mu.Unlock()

	t.notify(notified, &Event{
		Type:        EventStepAdded,
		ExecutionID: executionID,
		Step:        step.Copy(),
	})
	return step.ID, nil
}

// UpdateStep merges the patch into an existing step.
func (t *Tracker) UpdateStep(executionID, stepID string, patch StepPatch) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	record, ok := t.active[executionID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrExecutionNotFound, executionID)
	}
	for _, step := range record.Steps {
		if step.ID != stepID {
			continue
		}
		if patch.Status != "" {
			step.Status = patch.Status
		}
		if len(patch.Content) > 0 {
			if step.Content == nil {
				step.Content = make(map[string]any, len(patch.Content))
			}
			for k, v := range patch.Content {
				step.Content[k] = v
			}
		}
		return nil
	}
	return fmt.Errorf("%w: %s", ErrStepNotFound, stepID)
}

// CompleteExecution finalizes the record, persists it, removes the execution
// from the active set, and notifies subscribers. A persistence failure is
// logged; it does not change the conversation outcome.
func (t *Tracker) CompleteExecution(ctx context.Context, executionID string, final CompletionData) (*Record, error) {
	t.mu.Lock()
	record, ok := t.active[executionID]
	if !ok {
		t.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrExecutionNotFound, executionID)
	}
	record.Status = final.Status
	record.FinalResponse = final.FinalResponse
	record.Error = final.Error
	record.Iterations = final.Iterations
	record.TotalToolCalls = final.TotalToolCalls
	record.EndTime = time.Now()
	record.Duration = record.EndTime.Sub(record.StartTime)
	delete(t.active, executionID)
	notified := t.listenersFor(executionID)
	t.mu.Unlock()

	if err := t.store.SaveRecord(ctx, record); err != nil {
		t.logger.Error("failed to persist workflow record",
			"execution_id", executionID, "error", err)
	}

	t.notify(notified, &Event{
		Type:        EventExecutionCompleted,
		ExecutionID: executionID,
		Record:      record.Copy(),
	})
	return record.Copy(), nil
}

// CancelExecution records a cancellation step then completes the execution
// with a cancelled status.
func (t *Tracker) CancelExecution(ctx context.Context, executionID, reason string) (*Record, error) {
	if _, err := t.AddStep(executionID, &Step{
		Type:    StepCancellation,
		Content: map[string]any{"reason": reason},
		Status:  StatusCancelled,
	}); err != nil {
		return nil, err
	}
	return t.CompleteExecution(ctx, executionID, CompletionData{Status: StatusCancelled})
}

// GetWorkflow returns a copy of an active execution's record. It does not
// fall back to durable storage; use LoadWorkflow for history.
func (t *Tracker) GetWorkflow(executionID string) (*Record, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	record, ok := t.active[executionID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrExecutionNotFound, executionID)
	}
	return record.Copy(), nil
}

// GetWorkflowSteps returns copies of an active execution's steps.
func (t *Tracker) GetWorkflowSteps(executionID string) ([]*Step, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	record, ok := t.active[executionID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrExecutionNotFound, executionID)
	}
	steps := make([]*Step, len(record.Steps))
	for i, step := range record.Steps {
		steps[i] = step.Copy()
	}
	return steps, nil
}

// LoadWorkflow reads a finished record from durable storage, with steps
// sorted by timestamp.
func (t *Tracker) LoadWorkflow(ctx context.Context, executionID string) (*Record, error) {
	record, err := t.store.GetRecord(ctx, executionID)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(record.Steps, func(i, j int) bool {
		return record.Steps[i].Timestamp.Before(record.Steps[j].Timestamp)
	})
	return record, nil
}

// GetWorkflowHistory returns finished records matching the filter.
func (t *Tracker) GetWorkflowHistory(ctx context.Context, filter Filter) ([]*Record, error) {
	return t.store.ListRecords(ctx, filter)
}

// GetWorkflowStatistics aggregates statistics over finished records matching
// the filter. Limit and offset are ignored.
func (t *Tracker) GetWorkflowStatistics(ctx context.Context, filter Filter) (*Statistics, error) {
	filter.Limit = 0
	filter.Offset = 0
	records, err := t.store.ListRecords(ctx, filter)
	if err != nil {
		return nil, err
	}
	stats := &Statistics{
		TotalExecutions: len(records),
		ByStatus:        make(map[string]int),
		ByModel:         make(map[string]int),
	}
	if len(records) == 0 {
		return stats, nil
	}
	var totalDuration time.Duration
	var totalIterations int
	for _, record := range records {
		stats.ByStatus[record.Status]++
		if record.ModelID != "" {
			stats.ByModel[record.ModelID]++
		}
		totalDuration += record.Duration
		totalIterations += record.Iterations
	}
	stats.AverageDuration = totalDuration / time.Duration(len(records))
	stats.AverageIterations = float64(totalIterations) / float64(len(records))
	return stats, nil
}

// CleanupWorkflows removes finished records older than maxAge and, beyond
// that, the oldest records past maxCount. It returns the number of deleted
// and remaining records.
func (t *Tracker) CleanupWorkflows(ctx context.Context, maxAge time.Duration, maxCount int) (deleted, remaining int, err error) {
	records, err := t.store.ListRecords(ctx, Filter{})
	if err != nil {
		return 0, 0, err
	}

	cutoff := time.Now().Add(-maxAge)
	doomed := make(map[string]bool)
	if maxAge > 0 {
		for _, record := range records {
			if record.StartTime.Before(cutoff) {
				doomed[record.ExecutionID] = true
			}
		}
	}
	if maxCount > 0 && len(records) > maxCount {
		// Records are newest first; everything past maxCount is excess.
		for _, record := range records[maxCount:] {
			doomed[record.ExecutionID] = true
		}
	}

	for executionID := range doomed {
		if err := t.store.DeleteRecord(ctx, executionID); err != nil {
			return deleted, len(records) - deleted, err
		}
		deleted++
	}
	return deleted, len(records) - deleted, nil
}

// AddListener subscribes to events for one execution id, or for every
// execution with ListenerChannelAll. It returns a listener id.
func (t *Tracker) AddListener(executionID string, fn ListenerFunc) string {
	t.mu.Lock()
	defer t.mu.Unlock()
	id := convoy.NewID("lsnr")
	t.listeners[executionID] = append(t.listeners[executionID], &listener{id: id, fn: fn})
	return id
}

// RemoveListener removes a previously registered listener.
func (t *Tracker) RemoveListener(executionID, listenerID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	registered := t.listeners[executionID]
	for i, l := range registered {
		if l.id == listenerID {
			t.listeners[executionID] = append(registered[:i], registered[i+1:]...)
			return
		}
	}
}

// listenersFor returns the listeners to notify for an execution: the
// execution's own channel first, then the wildcard channel, each in
// registration order. Callers must hold the mutex.
func (t *Tracker) listenersFor(executionID string) []*listener {
	var notified []*listener
	notified = append(notified, t.listeners[executionID]...)
	notified = append(notified, t.listeners[ListenerChannelAll]...)
	return notified
}

// notify delivers an event to listeners with per-subscriber isolation.
func (t *Tracker) notify(listeners []*listener, event *Event) {
	for _, l := range listeners {
		func() {
			defer func() {
				if r := recover(); r != nil {
					t.logger.Error("workflow listener panicked",
						"listener_id", l.id, "execution_id", event.ExecutionID, "panic", r)
				}
			}()
			l.fn(event)
		}()
	}
}
