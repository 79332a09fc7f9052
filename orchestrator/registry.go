package orchestrator

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"
)

// ErrExecutionNotFound is returned when an execution id is unknown to the
// registry.
var ErrExecutionNotFound = errors.New("execution not found")

// DefaultMaxHistory bounds how many completed executions the registry keeps
// in memory.
const DefaultMaxHistory = 100

// ExecutionRegistry is the process-wide map of in-flight and completed
// executions, keyed by execution id. Completed executions move to a bounded
// in-memory history; durable history lives in the workflow store.
type ExecutionRegistry struct {
	mu         sync.RWMutex
	active     map[string]*Execution
	history    map[string]*Execution
	maxHistory int
}

// NewExecutionRegistry creates a registry. A maxHistory of zero or less uses
// DefaultMaxHistory.
func NewExecutionRegistry(maxHistory int) *ExecutionRegistry {
	if maxHistory <= 0 {
		maxHistory = DefaultMaxHistory
	}
	return &ExecutionRegistry{
		active:     make(map[string]*Execution),
		history:    make(map[string]*Execution),
		maxHistory: maxHistory,
	}
}

// Register adds a new active execution. Registering the same id twice is a
// caller error.
func (r *ExecutionRegistry) Register(execution *Execution) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	id := execution.ID()
	if _, exists := r.active[id]; exists {
		return fmt.Errorf("execution %q already registered", id)
	}
	if _, exists := r.history[id]; exists {
		return fmt.Errorf("execution %q already completed", id)
	}
	r.active[id] = execution
	return nil
}

// Get returns an execution from the active set or history.
func (r *ExecutionRegistry) Get(executionID string) (*Execution, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if execution, ok := r.active[executionID]; ok {
		return execution, nil
	}
	if execution, ok := r.history[executionID]; ok {
		return execution, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrExecutionNotFound, executionID)
}

// Complete moves an execution from the active set to history, evicting the
// oldest completed executions past the history bound.
func (r *ExecutionRegistry) Complete(executionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	execution, ok := r.active[executionID]
	if !ok {
		return
	}
	delete(r.active, executionID)
	r.history[executionID] = execution
	r.evictLocked()
}

// Active returns the in-flight executions.
func (r *ExecutionRegistry) Active() []*Execution {
	r.mu.RLock()
	defer r.mu.RUnlock()
	executions := make([]*Execution, 0, len(r.active))
	for _, execution := range r.active {
		executions = append(executions, execution)
	}
	sort.Slice(executions, func(i, j int) bool {
		return executions[i].startTime.Before(executions[j].startTime)
	})
	return executions
}

// CleanupHistory removes completed executions that ended before the cutoff
// and returns how many were removed.
func (r *ExecutionRegistry) CleanupHistory(maxAge time.Duration) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	cutoff := time.Now().Add(-maxAge)
	removed := 0
	for id, execution := range r.history {
		if execution.endTime.Before(cutoff) {
			delete(r.history, id)
			removed++
		}
	}
	return removed
}

// evictLocked drops the oldest completed executions beyond maxHistory.
// Callers must hold the mutex.
func (r *ExecutionRegistry) evictLocked() {
	if len(r.history) <= r.maxHistory {
		return
	}
	completed := make([]*Execution, 0, len(r.history))
	for _, execution := range r.history {
		completed = append(completed, execution)
	}
	sort.Slice(completed, func(i, j int) bool {
		return completed[i].endTime.Before(completed[j].endTime)
	})
	for _, execution := range completed[:len(r.history)-r.maxHistory] {
		delete(r.history, execution.ID())
	}
}
