package workflow

import "time"

// Execution statuses. Every execution reaches exactly one terminal status:
// completed, error, or cancelled.
const (
	StatusExecuting = "executing"
	StatusCompleted = "completed"
	StatusError     = "error"
	StatusCancelled = "cancelled"
)

// Record is the full bookkeeping record of one execution: metadata plus the
// ordered step sequence.
type Record struct {
	ExecutionID    string         `json:"execution_id"`
	ScenarioID     string         `json:"scenario_id,omitempty"`
	ModelID        string         `json:"model_id,omitempty"`
	Status         string         `json:"status"`
	StartTime      time.Time      `json:"start_time"`
	EndTime        time.Time      `json:"end_time,omitempty"`
	Duration       time.Duration  `json:"duration,omitempty"`
	Iterations     int            `json:"iterations"`
	TotalToolCalls int            `json:"total_tool_calls"`
	FinalResponse  string         `json:"final_response,omitempty"`
	Error          string         `json:"error,omitempty"`
	Metadata       map[string]any `json:"metadata,omitempty"`
	Steps          []*Step        `json:"steps,omitempty"`
}

// Copy returns a deep copy of the record, including its steps.
func (r *Record) Copy() *Record {
	dup := *r
	if r.Metadata != nil {
		dup.Metadata = make(map[string]any, len(r.Metadata))
		for k, v := range r.Metadata {
			dup.Metadata[k] = v
		}
	}
	if r.Steps != nil {
		dup.Steps = make([]*Step, len(r.Steps))
		for i, step := range r.Steps {
			dup.Steps[i] = step.Copy()
		}
	}
	return &dup
}
