package workflow

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrRecordNotFound is returned when a record is missing from durable storage.
	ErrRecordNotFound = errors.New("workflow record not found")

	// ErrExecutionNotFound is returned when an execution is not in the active set.
	ErrExecutionNotFound = errors.New("execution not found")

	// ErrStepNotFound is returned when a step id does not exist.
	ErrStepNotFound = errors.New("step not found")
)

// Filter specifies criteria for querying durable workflow records.
type Filter struct {
	Status  string    `json:"status,omitempty"`
	ModelID string    `json:"model_id,omitempty"`
	Since   time.Time `json:"since,omitempty"`
	Until   time.Time `json:"until,omitempty"`
	Limit   int       `json:"limit,omitempty"`
	Offset  int       `json:"offset,omitempty"`
}

// Store persists finished workflow records. Implementations must support
// concurrent access keyed by execution id.
type Store interface {
	// SaveRecord writes a record, replacing any previous version.
	SaveRecord(ctx context.Context, record *Record) error

	// GetRecord reads one record; ErrRecordNotFound if missing.
	GetRecord(ctx context.Context, executionID string) (*Record, error)

	// ListRecords returns records matching the filter, newest first.
	ListRecords(ctx context.Context, filter Filter) ([]*Record, error)

	// DeleteRecord removes one record. Deleting a missing record is not an error.
	DeleteRecord(ctx context.Context, executionID string) error
}

// Statistics summarizes durable workflow records.
type Statistics struct {
	TotalExecutions   int            `json:"total_executions"`
	ByStatus          map[string]int `json:"by_status"`
	ByModel           map[string]int `json:"by_model"`
	AverageDuration   time.Duration  `json:"average_duration"`
	AverageIterations float64        `json:"average_iterations"`
}
