package models

import "time"

// ExecutionStatus is the state of one contact's progress through a workflow.
type ExecutionStatus string

const (
	ExecutionStatusRunning   ExecutionStatus = "running"
	ExecutionStatusPaused    ExecutionStatus = "paused"
	ExecutionStatusCompleted ExecutionStatus = "completed"
	ExecutionStatusFailed    ExecutionStatus = "failed"
)

// IsTerminal reports whether the status can never be advanced again.
func (s ExecutionStatus) IsTerminal() bool {
	return s == ExecutionStatusCompleted || s == ExecutionStatusFailed
}

// WorkflowExecution is the durable position of one contact in one workflow.
// NextRunAt is only meaningful while Status is running. ClaimedUntil marks an
// in-flight claim held by a batch worker.
type WorkflowExecution struct {
	ID            string          `json:"id"`
	WorkflowID    string          `json:"workflow_id"`
	ContactID     string          `json:"contact_id"`
	Status        ExecutionStatus `json:"status"`
	CurrentNodeID *string         `json:"current_node_id,omitempty"`
	NextRunAt     time.Time       `json:"next_run_at"`
	RetryCount    int             `json:"retry_count"`
	ErrorMessage  string          `json:"error_message,omitempty"`
	ClaimedUntil  *time.Time      `json:"claimed_until,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
	CompletedAt   *time.Time      `json:"completed_at,omitempty"`
}

// IsDue reports whether the execution should be picked up by a batch at now.
func (e *WorkflowExecution) IsDue(now time.Time) bool {
	return e.Status == ExecutionStatusRunning && !e.NextRunAt.After(now)
}

// Clone returns a deep copy of the execution.
func (e *WorkflowExecution) Clone() *WorkflowExecution {
	clone := *e

	if e.CurrentNodeID != nil {
		id := *e.CurrentNodeID
		clone.CurrentNodeID = &id
	}

	if e.ClaimedUntil != nil {
		until := *e.ClaimedUntil
		clone.ClaimedUntil = &until
	}

	if e.CompletedAt != nil {
		at := *e.CompletedAt
		clone.CompletedAt = &at
	}

	return &clone
}

// ExecutionFilter narrows the executions selected by a batch.
type ExecutionFilter struct {
	WorkflowID string
}
