// Package persistence provides the storage abstraction for workflows, executions and their audit trail.
package persistence

import (
	"context"
	"time"

	"github.com/dukex/cadence/pkg/models"
)

// WorkflowRepository reads and writes workflow definitions.
type WorkflowRepository interface {
	WorkflowByID(ctx context.Context, id string) (*models.Workflow, error)
	SaveWorkflow(ctx context.Context, workflow *models.Workflow) error
}

// NodeRepository reads and writes workflow graph nodes.
type NodeRepository interface {
	NodeByID(ctx context.Context, workflowID, nodeID string) (*models.WorkflowNode, error)
	NodesByWorkflow(ctx context.Context, workflowID string) ([]*models.WorkflowNode, error)
	SaveNodes(ctx context.Context, workflowID string, nodes []*models.WorkflowNode) error
}

// ExecutionRepository owns workflow execution rows.
type ExecutionRepository interface {
	// DueExecutions returns running executions whose next run is at or before now,
	// oldest first, bounded by limit.
	DueExecutions(ctx context.Context, now time.Time, filter models.ExecutionFilter, limit int) ([]*models.WorkflowExecution, error)
	// ClaimExecution marks a due running execution in-flight until the given instant.
	// It returns false when the execution is no longer due or another claim is live.
	ClaimExecution(ctx context.Context, id string, now, until time.Time) (bool, error)
	// SaveExecution writes the execution and releases its claim.
	SaveExecution(ctx context.Context, execution *models.WorkflowExecution) error
	ExecutionByID(ctx context.Context, id string) (*models.WorkflowExecution, error)
	// CreateExecution inserts a new execution. It returns false when the
	// contact is already enrolled in the workflow.
	CreateExecution(ctx context.Context, execution *models.WorkflowExecution) (bool, error)
	// ResumeExecutions flips paused executions of a workflow back to running.
	ResumeExecutions(ctx context.Context, workflowID string, now time.Time) (int, error)
}

// LogRepository appends audit entries.
type LogRepository interface {
	AppendLog(ctx context.Context, entry *models.ExecutionLogEntry) error
}

// EventRepository stores interaction history.
type EventRepository interface {
	RecordEvent(ctx context.Context, event *models.InteractionEvent) error
	Events(ctx context.Context, query models.EventQuery) ([]*models.InteractionEvent, error)
}

// ContactRepository reads contact snapshots.
type ContactRepository interface {
	ContactByID(ctx context.Context, id string) (*models.Contact, error)
	SaveContact(ctx context.Context, contact *models.Contact) error
	SetContactNetworkID(ctx context.Context, contactID, networkID string) error
}

// ListRepository mutates list membership.
type ListRepository interface {
	AddToList(ctx context.Context, listID string, contact models.Contact) error
	RemoveFromList(ctx context.Context, listID, contactID string) error
	ListMembers(ctx context.Context, listID string) ([]string, error)
}

// SuppressionRepository tracks addresses that must not be emailed.
type SuppressionRepository interface {
	IsSuppressed(ctx context.Context, email string) (bool, error)
	Suppress(ctx context.Context, email, reason string) error
}

// ChannelRepository exposes the sending accounts of each channel.
type ChannelRepository interface {
	// ChannelConnection returns nil when the channel was never configured.
	ChannelConnection(ctx context.Context, channel models.Channel) (*models.ChannelConnection, error)
	SaveChannelConnection(ctx context.Context, connection *models.ChannelConnection) error
}

// CampaignRepository owns campaigns and their dispatch queue.
type CampaignRepository interface {
	ActiveCampaigns(ctx context.Context, campaignID string) ([]*models.Campaign, error)
	CampaignByID(ctx context.Context, id string) (*models.Campaign, error)
	SaveCampaign(ctx context.Context, campaign *models.Campaign) error
	// ResetDailyCounter zeroes sent_today when the stored counter date differs from day.
	ResetDailyCounter(ctx context.Context, campaignID, day string) error
	// IncrementCampaignCounters atomically adds to the sent and failed counters.
	IncrementCampaignCounters(ctx context.Context, campaignID string, sent, failed int) error
	EnqueueContacts(ctx context.Context, campaignID string, contactIDs []string, at time.Time) (int, error)
	// ClaimQueueItems moves up to limit due pending items, and in-flight items
	// whose claim expired before now, to in-flight until until and returns them.
	ClaimQueueItems(ctx context.Context, campaignID string, now, until time.Time, limit int) ([]*models.CampaignQueueItem, error)
	SaveQueueItem(ctx context.Context, item *models.CampaignQueueItem) error
}

// Persistence is the complete storage surface used by the binaries.
type Persistence interface {
	WorkflowRepository
	NodeRepository
	ExecutionRepository
	LogRepository
	EventRepository
	ContactRepository
	ListRepository
	SuppressionRepository
	ChannelRepository
	CampaignRepository

	HealthCheck(ctx context.Context) error
	Close(ctx context.Context) error
}
