package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dukex/cadence/pkg/models"
)

// LifecycleService toggles workflows between active and paused.
type LifecycleService struct {
	store    Store
	enroller *Enroller
	config   Config
	logger   *slog.Logger
}

func NewLifecycleService(store Store, enroller *Enroller, config Config, logger *slog.Logger) *LifecycleService {
	return &LifecycleService{
		store:    store,
		enroller: enroller,
		config:   config.withDefaults(),
		logger:   logger.With("module", "workflow_lifecycle"),
	}
}

// Activate validates the workflow graph, marks the workflow active and
// resumes the executions that were parked while it was not. It returns the
// number of resumed executions.
func (s *LifecycleService) Activate(ctx context.Context, workflowID string) (*models.Workflow, int, error) {
	workflow, err := s.store.WorkflowByID(ctx, workflowID)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to get workflow for activation: %w", err)
	}

	graph, err := s.store.NodesByWorkflow(ctx, workflowID)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to get nodes for activation: %w", err)
	}

	err = validateForActivation(workflow, graph)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %w", ErrInvalidWorkflow, err)
	}

	workflow.Status = models.WorkflowStatusActive
	workflow.UpdatedAt = s.config.Now()

	err = s.store.SaveWorkflow(ctx, workflow)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to save activated workflow: %w", err)
	}

	resumed, err := s.enroller.Resume(ctx, workflowID)
	if err != nil {
		return workflow, 0, err
	}

	s.logger.InfoContext(ctx, "workflow activated", "workflow_id", workflowID, "resumed", resumed)

	return workflow, resumed, nil
}

// Pause marks the workflow paused. Its running executions are parked by the
// runner on their next tick.
func (s *LifecycleService) Pause(ctx context.Context, workflowID string) (*models.Workflow, error) {
	workflow, err := s.store.WorkflowByID(ctx, workflowID)
	if err != nil {
		return nil, fmt.Errorf("failed to get workflow: %w", err)
	}

	workflow.Status = models.WorkflowStatusPaused
	workflow.UpdatedAt = s.config.Now()

	err = s.store.SaveWorkflow(ctx, workflow)
	if err != nil {
		return nil, fmt.Errorf("failed to save paused workflow: %w", err)
	}

	s.logger.InfoContext(ctx, "workflow paused", "workflow_id", workflowID)

	return workflow, nil
}

// validateForActivation checks if a workflow is ready to run.
func validateForActivation(workflow *models.Workflow, graph []*models.WorkflowNode) error {
	if len(graph) == 0 {
		return errors.New("cannot activate workflow with no nodes")
	}

	for _, node := range graph {
		if node.ID == "" {
			return errors.New("found node with empty ID")
		}

		if node.Kind == "" {
			return fmt.Errorf("node %s has no kind specified", node.ID)
		}
	}

	err := models.ValidateGraph(graph)
	if err != nil {
		return err
	}

	if workflow.Trigger.Type == models.TriggerTypeListAdded &&
		(workflow.Trigger.ListID == nil || *workflow.Trigger.ListID == "") {
		return ErrNoSourceList
	}

	return nil
}
