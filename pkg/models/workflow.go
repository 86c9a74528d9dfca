// Package models defines the core domain models for contact-level workflow automation.
package models

import "time"

// WorkflowStatus represents the lifecycle state of a workflow.
type WorkflowStatus string

const (
	WorkflowStatusDraft  WorkflowStatus = "draft"  // Editable, not executable
	WorkflowStatusActive WorkflowStatus = "active" // Executions advance
	WorkflowStatusPaused WorkflowStatus = "paused" // Executions are parked as paused
)

// TriggerType describes how contacts enter a workflow.
type TriggerType string

const (
	TriggerTypeManual    TriggerType = "manual"
	TriggerTypeListAdded TriggerType = "list_added"
	TriggerTypeWebhook   TriggerType = "webhook"
)

// Trigger describes the enrollment source of a workflow.
type Trigger struct {
	Type   TriggerType `json:"type"              validate:"required,oneof=manual list_added webhook"`
	ListID *string     `json:"list_id,omitempty"`
}

// Workflow is an automation whose graph of nodes each enrolled contact walks through.
// Nodes are stored separately and referenced by WorkflowID.
type Workflow struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"       validate:"required,min=3"`
	Status    WorkflowStatus `json:"status"     validate:"required,oneof=draft active paused"`
	Trigger   Trigger        `json:"trigger"`
	Schedule  *Schedule      `json:"schedule,omitempty"`
	Owner     string         `json:"owner"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// IsActive reports whether executions of the workflow may advance.
func (w *Workflow) IsActive() bool {
	return w.Status == WorkflowStatusActive
}

// EffectiveSchedule returns the configured schedule or the defaults.
func (w *Workflow) EffectiveSchedule() Schedule {
	if w.Schedule == nil {
		return DefaultSchedule()
	}

	return w.Schedule.WithDefaults()
}
