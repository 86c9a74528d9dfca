package workflow

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/dukex/cadence/pkg/eventbus"
	"github.com/dukex/cadence/pkg/events"
	"github.com/dukex/cadence/pkg/models"
	"github.com/dukex/cadence/pkg/persistence"
	"github.com/google/uuid"
)

// Enroller puts contacts into workflows and resumes paused executions.
type Enroller struct {
	store     Store
	publisher eventbus.EventPublisher
	config    Config
	logger    *slog.Logger
}

func NewEnroller(store Store, publisher eventbus.EventPublisher, config Config, logger *slog.Logger) *Enroller {
	if publisher == nil {
		publisher = eventbus.Discard{}
	}

	return &Enroller{
		store:     store,
		publisher: publisher,
		config:    config.withDefaults(),
		logger:    logger.With("module", "workflow_enroller"),
	}
}

// Enroll creates a running execution on the start node for each contact,
// due immediately. Contacts already in the workflow and unknown contacts
// are left out. It returns the number of executions created.
func (e *Enroller) Enroll(ctx context.Context, workflowID string, contactIDs []string) (int, error) {
	workflow, err := e.activeWorkflow(ctx, workflowID)
	if err != nil {
		return 0, err
	}

	start, err := e.startNode(ctx, workflow.ID)
	if err != nil {
		return 0, err
	}

	logger := e.logger.With("workflow_id", workflow.ID)
	now := e.config.Now()
	enrolled := 0
	seen := make(map[string]struct{}, len(contactIDs))

	for _, contactID := range contactIDs {
		if _, dup := seen[contactID]; dup {
			continue
		}

		seen[contactID] = struct{}{}

		_, err := e.store.ContactByID(ctx, contactID)
		if err != nil {
			if persistence.IsContactNotFound(err) {
				logger.WarnContext(ctx, "skipping unknown contact", "contact_id", contactID)

				continue
			}

			return enrolled, fmt.Errorf("failed to load contact %s: %w", contactID, err)
		}

		execution := &models.WorkflowExecution{
			ID:            uuid.Must(uuid.NewV7()).String(),
			WorkflowID:    workflow.ID,
			ContactID:     contactID,
			Status:        models.ExecutionStatusRunning,
			CurrentNodeID: models.NodeID(start.ID),
			NextRunAt:     now,
			CreatedAt:     now,
			UpdatedAt:     now,
		}

		created, err := e.store.CreateExecution(ctx, execution)
		if err != nil {
			return enrolled, fmt.Errorf("failed to enroll contact %s: %w", contactID, err)
		}

		if !created {
			continue
		}

		enrolled++

		err = e.store.AppendLog(ctx, &models.ExecutionLogEntry{
			ExecutionID: execution.ID,
			NodeID:      start.ID,
			Action:      models.LogActionEnrolled,
			Detail:      map[string]any{"trigger": workflow.Trigger.Type},
			CreatedAt:   now,
		})
		if err != nil {
			logger.WarnContext(ctx, "failed to append enrollment log", "execution_id", execution.ID, "error", err)
		}

		publishErr := e.publisher.Publish(ctx, workflow.ID, events.ExecutionEnrolled{
			BaseEvent:   events.NewBaseEvent(uuid.NewString(), events.ExecutionEnrolledEvent, workflow.ID, now),
			ExecutionID: execution.ID,
			ContactID:   contactID,
		})
		if publishErr != nil {
			logger.WarnContext(ctx, "failed to publish enrollment", "execution_id", execution.ID, "error", publishErr)
		}
	}

	logger.InfoContext(ctx, "contacts enrolled", "requested", len(contactIDs), "enrolled", enrolled)

	return enrolled, nil
}

// EnrollFromList enrolls every member of the workflow's trigger list.
func (e *Enroller) EnrollFromList(ctx context.Context, workflowID string) (int, error) {
	workflow, err := e.activeWorkflow(ctx, workflowID)
	if err != nil {
		return 0, err
	}

	if workflow.Trigger.ListID == nil || *workflow.Trigger.ListID == "" {
		return 0, fmt.Errorf("workflow %s: %w", workflowID, ErrNoSourceList)
	}

	members, err := e.store.ListMembers(ctx, *workflow.Trigger.ListID)
	if err != nil {
		return 0, fmt.Errorf("failed to list members of %s: %w", *workflow.Trigger.ListID, err)
	}

	return e.Enroll(ctx, workflowID, members)
}

// Resume flips the paused executions of an active workflow back to running, due now.
func (e *Enroller) Resume(ctx context.Context, workflowID string) (int, error) {
	workflow, err := e.activeWorkflow(ctx, workflowID)
	if err != nil {
		return 0, err
	}

	now := e.config.Now()

	resumed, err := e.store.ResumeExecutions(ctx, workflow.ID, now)
	if err != nil {
		return 0, fmt.Errorf("failed to resume executions of %s: %w", workflow.ID, err)
	}

	e.logger.InfoContext(ctx, "executions resumed", "workflow_id", workflow.ID, "resumed", resumed)

	if resumed > 0 {
		publishErr := e.publisher.Publish(ctx, workflow.ID, events.ExecutionResumed{
			BaseEvent: events.NewBaseEvent(uuid.NewString(), events.ExecutionResumedEvent, workflow.ID, now),
			Resumed:   resumed,
		})
		if publishErr != nil {
			e.logger.WarnContext(ctx, "failed to publish resume", "workflow_id", workflow.ID, "error", publishErr)
		}
	}

	return resumed, nil
}

func (e *Enroller) activeWorkflow(ctx context.Context, workflowID string) (*models.Workflow, error) {
	workflow, err := e.store.WorkflowByID(ctx, workflowID)
	if err != nil {
		return nil, err
	}

	if !workflow.IsActive() {
		return nil, fmt.Errorf("workflow %s is %s: %w", workflowID, workflow.Status, ErrWorkflowInactive)
	}

	return workflow, nil
}

func (e *Enroller) startNode(ctx context.Context, workflowID string) (*models.WorkflowNode, error) {
	graph, err := e.store.NodesByWorkflow(ctx, workflowID)
	if err != nil {
		return nil, fmt.Errorf("failed to load nodes of %s: %w", workflowID, err)
	}

	for _, node := range graph {
		if node.Kind == models.NodeKindStart {
			return node, nil
		}
	}

	return nil, fmt.Errorf("workflow %s: %w", workflowID, models.ErrMissingStartNode)
}
