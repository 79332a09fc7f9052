package orchestrator

import (
	"fmt"
	"testing"
	"time"

	"github.com/driftwood-ai/convoy"
	"github.com/driftwood-ai/convoy/workflow"
	"github.com/stretchr/testify/require"
)

func newRegisteredExecution() *Execution {
	return &Execution{
		id:        convoy.NewID("exec"),
		status:    workflow.StatusExecuting,
		startTime: time.Now(),
	}
}

func TestRegistryRegisterAndGet(t *testing.T) {
	registry := NewExecutionRegistry(10)
	execution := newRegisteredExecution()

	require.NoError(t, registry.Register(execution))
	require.Error(t, registry.Register(execution))

	got, err := registry.Get(execution.ID())
	require.NoError(t, err)
	require.Same(t, execution, got)

	_, err = registry.Get("exec_missing")
	require.ErrorIs(t, err, ErrExecutionNotFound)
}

func TestRegistryCompleteMovesToHistory(t *testing.T) {
	registry := NewExecutionRegistry(10)
	execution := newRegisteredExecution()
	require.NoError(t, registry.Register(execution))

	execution.finalize(workflow.StatusCompleted)
	registry.Complete(execution.ID())

	require.Empty(t, registry.Active())

	got, err := registry.Get(execution.ID())
	require.NoError(t, err)
	require.Same(t, execution, got)
}

func TestRegistryHistoryBound(t *testing.T) {
	registry := NewExecutionRegistry(2)
	var executions []*Execution
	for i := 0; i < 4; i++ {
		execution := newRegisteredExecution()
		require.NoError(t, registry.Register(execution))
		execution.mu.Lock()
		execution.endTime = time.Now().Add(time.Duration(i) * time.Second)
		execution.mu.Unlock()
		registry.Complete(execution.ID())
		executions = append(executions, execution)
	}

	// Oldest two were evicted
	for _, execution := range executions[:2] {
		_, err := registry.Get(execution.ID())
		require.ErrorIs(t, err, ErrExecutionNotFound)
	}
	for _, execution := range executions[2:] {
		_, err := registry.Get(execution.ID())
		require.NoError(t, err)
	}
}

func TestRegistryCleanupHistory(t *testing.T) {
	registry := NewExecutionRegistry(10)

	stale := newRegisteredExecution()
	require.NoError(t, registry.Register(stale))
	stale.mu.Lock()
	stale.endTime = time.Now().Add(-2 * time.Hour)
	stale.mu.Unlock()
	registry.Complete(stale.ID())

	fresh := newRegisteredExecution()
	require.NoError(t, registry.Register(fresh))
	fresh.mu.Lock()
	fresh.endTime = time.Now()
	fresh.mu.Unlock()
	registry.Complete(fresh.ID())

	removed := registry.CleanupHistory(time.Hour)
	require.Equal(t, 1, removed)

	_, err := registry.Get(stale.ID())
	require.ErrorIs(t, err, ErrExecutionNotFound)
	_, err = registry.Get(fresh.ID())
	require.NoError(t, err)
}

func TestRegistryActiveSortedByStartTime(t *testing.T) {
	registry := NewExecutionRegistry(10)
	now := time.Now()
	for i := 3; i > 0; i-- {
		execution := newRegisteredExecution()
		execution.startTime = now.Add(time.Duration(i) * time.Second)
		execution.id = fmt.Sprintf("exec_%d", i)
		require.NoError(t, registry.Register(execution))
	}
	active := registry.Active()
	require.Len(t, active, 3)
	require.Equal(t, "exec_1", active[0].ID())
	require.Equal(t, "exec_3", active[2].ID())
}
