// Package convoy orchestrates multi-turn tool-use conversations with a
// large-language-model endpoint. The orchestrator repeatedly calls the model,
// executes any tools it requests, feeds results back into the conversation,
// and records every step for auditability.
package convoy

import (
	"context"
	"log"

	"go.jetify.com/typeid"
)

// NewID creates a new type-prefixed identifier, e.g. "exec_01h455vb4pex5vsknk084sn02q".
func NewID(prefix string) string {
	value, err := typeid.WithPrefix(prefix)
	if err != nil {
		log.Fatalf("error creating new id: %v", err)
	}
	return value.String()
}

// ExecutionContext carries per-execution information to tool handlers. It is
// passed on the context rather than widening every handler signature.
type ExecutionContext struct {
	// ExecutionID identifies the execution this tool call belongs to.
	ExecutionID string

	// ScenarioID identifies the scenario configuration in effect. May be
	// empty, in which case the dispatcher derives it from the tool set.
	ScenarioID string

	// Dataset is an opaque payload supplied by the caller at start time.
	Dataset any
}

type contextKey string

const executionContextKey contextKey = "convoy.execution_context"

// WithExecutionContext returns a new context carrying the given ExecutionContext.
func WithExecutionContext(ctx context.Context, ec *ExecutionContext) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, executionContextKey, ec)
}

// ExecutionContextFrom returns the ExecutionContext carried by the context,
// if any.
func ExecutionContextFrom(ctx context.Context) (*ExecutionContext, bool) {
	if ctx == nil {
		return nil, false
	}
	ec, ok := ctx.Value(executionContextKey).(*ExecutionContext)
	return ec, ok
}
