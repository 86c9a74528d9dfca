package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dukex/cadence/pkg/eventbus"
	"github.com/dukex/cadence/pkg/events"
	"github.com/dukex/cadence/pkg/models"
	"github.com/dukex/cadence/pkg/nodes"
	"github.com/dukex/cadence/pkg/otelhelper"
	"github.com/dukex/cadence/pkg/persistence"
	"github.com/dukex/cadence/pkg/schedule"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Outcome is how one execution counted in a batch.
type Outcome string

const (
	OutcomeProcessed Outcome = "processed"
	OutcomeSkipped   Outcome = "skipped"
	OutcomeFailed    Outcome = "failed"
)

// Advancer moves one execution by one node.
type Advancer struct {
	store     Store
	processor NodeProcessor
	publisher eventbus.EventPublisher
	metrics   *otelhelper.Metrics
	tracer    trace.Tracer
	config    Config
	logger    *slog.Logger
}

func NewAdvancer(store Store, processor NodeProcessor, publisher eventbus.EventPublisher, config Config, logger *slog.Logger) *Advancer {
	if publisher == nil {
		publisher = eventbus.Discard{}
	}

	return &Advancer{
		store:     store,
		processor: processor,
		publisher: publisher,
		metrics:   otelhelper.NewMetrics(),
		tracer:    otelhelper.Tracer(),
		config:    config.withDefaults(),
		logger:    logger.With("module", "workflow_advancer"),
	}
}

// Advance runs the current node of a claimed execution and persists the
// result. Faults of the node are handled here; the returned error only
// reports that the execution row itself could not be written.
func (a *Advancer) Advance(ctx context.Context, execution *models.WorkflowExecution) (Outcome, error) {
	now := a.config.Now()

	ctx, span := otelhelper.StartSpan(ctx, a.tracer, "workflow.advance",
		attribute.String(otelhelper.ExecutionIDKey, execution.ID),
		attribute.String(otelhelper.WorkflowIDKey, execution.WorkflowID),
		attribute.String(otelhelper.ContactIDKey, execution.ContactID),
	)
	defer span.End()

	outcome, err := a.advance(ctx, execution, now)
	span.SetAttributes(attribute.String(otelhelper.OutcomeKey, string(outcome)))

	if err != nil {
		otelhelper.SetError(span, err)
	}

	return outcome, err
}

func (a *Advancer) advance(ctx context.Context, execution *models.WorkflowExecution, now time.Time) (Outcome, error) {
	logger := a.logger.With(
		"execution_id", execution.ID,
		"workflow_id", execution.WorkflowID,
		"contact_id", execution.ContactID,
	)

	nodeID := ""
	if execution.CurrentNodeID != nil {
		nodeID = *execution.CurrentNodeID
	}

	workflow, err := a.store.WorkflowByID(ctx, execution.WorkflowID)
	if err != nil {
		if persistence.IsWorkflowNotFound(err) {
			return a.fail(ctx, logger, execution, nodeID, models.LogActionWorkflowMissing, err, now)
		}

		return a.retry(ctx, logger, execution, nodeID, fmt.Errorf("failed to load workflow: %w", err), now)
	}

	if !workflow.IsActive() {
		return a.pause(ctx, logger, execution, nodeID, workflow.Status, now)
	}

	allowed, err := schedule.AllowedForWorkflow(workflow, now)
	if err != nil {
		return a.retry(ctx, logger, execution, nodeID, err, now)
	}

	if !allowed {
		logger.DebugContext(ctx, "outside schedule window, leaving execution due")

		err = a.store.SaveExecution(ctx, execution)
		if err != nil {
			return OutcomeFailed, fmt.Errorf("failed to release execution %s: %w", execution.ID, err)
		}

		return OutcomeSkipped, nil
	}

	if nodeID == "" {
		return a.fail(ctx, logger, execution, nodeID, models.LogActionNodeNotFound, persistence.ErrNodeNotFound, now)
	}

	node, err := a.store.NodeByID(ctx, workflow.ID, nodeID)
	if err != nil {
		if persistence.IsNodeNotFound(err) {
			return a.fail(ctx, logger, execution, nodeID, models.LogActionNodeNotFound, err, now)
		}

		return a.retry(ctx, logger, execution, nodeID, fmt.Errorf("failed to load node: %w", err), now)
	}

	contact, err := a.store.ContactByID(ctx, execution.ContactID)
	if err != nil {
		if persistence.IsContactNotFound(err) {
			return a.fail(ctx, logger, execution, nodeID, models.LogActionContactNotFound, err, now)
		}

		return a.retry(ctx, logger, execution, nodeID, fmt.Errorf("failed to load contact: %w", err), now)
	}

	result, err := a.processor.Process(ctx, nodes.Input{
		Execution: execution,
		Node:      node,
		Contact:   contact,
		Workflow:  workflow,
		Now:       now,
	})
	if err != nil {
		return a.retry(ctx, logger, execution, nodeID, err, now)
	}

	if result.Channel != "" {
		a.metrics.MessageHandled(ctx, string(result.Channel), string(result.Outcome))
	}

	return a.apply(ctx, logger, execution, node, result, now)
}

func (a *Advancer) apply(
	ctx context.Context,
	logger *slog.Logger,
	execution *models.WorkflowExecution,
	node *models.WorkflowNode,
	result nodes.Result,
	now time.Time,
) (Outcome, error) {
	execution.RetryCount = 0
	execution.ErrorMessage = ""
	next := models.Edge(result.Next)

	switch {
	case result.Outcome == nodes.OutcomeEnded:
		execution.Status = models.ExecutionStatusCompleted
		execution.CurrentNodeID = models.NodeID(node.ID)
		execution.CompletedAt = &now
	case next == nil:
		execution.Status = models.ExecutionStatusCompleted
		execution.CurrentNodeID = nil
		execution.CompletedAt = &now
	default:
		execution.CurrentNodeID = models.NodeID(*next)
		execution.NextRunAt = now.Add(result.Delay)
	}

	err := a.store.SaveExecution(ctx, execution)
	if err != nil {
		return OutcomeFailed, fmt.Errorf("failed to save execution %s: %w", execution.ID, err)
	}

	logger.DebugContext(ctx, "node processed",
		"node_id", node.ID,
		"kind", node.Kind,
		"outcome", result.Outcome,
		"status", execution.Status,
		"delay", result.Delay,
	)

	if result.Outcome == nodes.OutcomeSent {
		a.publish(ctx, logger, execution.WorkflowID, events.MessageSent{
			BaseEvent:   a.baseEvent(events.MessageSentEvent, execution.WorkflowID, now),
			Channel:     result.Channel,
			ContactID:   execution.ContactID,
			ExecutionID: execution.ID,
			NodeID:      node.ID,
		})
	}

	if execution.Status == models.ExecutionStatusCompleted {
		logger.InfoContext(ctx, "execution completed", "node_id", node.ID)

		a.publish(ctx, logger, execution.WorkflowID, events.ExecutionCompleted{
			BaseEvent:   a.baseEvent(events.ExecutionCompletedEvent, execution.WorkflowID, now),
			ExecutionID: execution.ID,
			ContactID:   execution.ContactID,
			LastNodeID:  node.ID,
		})
	}

	return OutcomeProcessed, nil
}

// retry puts the execution back on the same node after a transient fault, or
// fails it once the retries are exhausted.
func (a *Advancer) retry(
	ctx context.Context,
	logger *slog.Logger,
	execution *models.WorkflowExecution,
	nodeID string,
	cause error,
	now time.Time,
) (Outcome, error) {
	attempt := execution.RetryCount + 1
	execution.RetryCount = attempt
	execution.ErrorMessage = cause.Error()

	if attempt > a.config.MaxRetries {
		return a.fail(ctx, logger, execution, nodeID, models.LogActionMaxRetries, cause, now)
	}

	delay := a.config.Backoff.Delay(attempt)
	execution.NextRunAt = now.Add(delay)

	logger.WarnContext(ctx, "node fault, retrying",
		"node_id", nodeID,
		"retry_count", attempt,
		"delay", delay,
		"error", cause,
	)

	a.appendLog(ctx, logger, execution.ID, nodeID, models.LogActionRetry, map[string]any{
		"retry_count": attempt,
		"delay_ms":    delay.Milliseconds(),
		"error":       cause.Error(),
	}, now)

	err := a.store.SaveExecution(ctx, execution)
	if err != nil {
		return OutcomeFailed, fmt.Errorf("failed to save execution %s: %w", execution.ID, err)
	}

	return OutcomeFailed, nil
}

// fail ends the execution for good.
func (a *Advancer) fail(
	ctx context.Context,
	logger *slog.Logger,
	execution *models.WorkflowExecution,
	nodeID string,
	action models.LogAction,
	cause error,
	now time.Time,
) (Outcome, error) {
	execution.Status = models.ExecutionStatusFailed
	execution.ErrorMessage = failureMessage(cause)

	logger.ErrorContext(ctx, "execution failed",
		"node_id", nodeID,
		"reason", action,
		"retry_count", execution.RetryCount,
		"error", cause,
	)

	a.appendLog(ctx, logger, execution.ID, nodeID, action, map[string]any{
		"retry_count": execution.RetryCount,
		"error":       execution.ErrorMessage,
	}, now)

	err := a.store.SaveExecution(ctx, execution)
	if err != nil {
		return OutcomeFailed, fmt.Errorf("failed to save execution %s: %w", execution.ID, err)
	}

	a.publish(ctx, logger, execution.WorkflowID, events.ExecutionFailed{
		BaseEvent:   a.baseEvent(events.ExecutionFailedEvent, execution.WorkflowID, now),
		ExecutionID: execution.ID,
		ContactID:   execution.ContactID,
		NodeID:      nodeID,
		Error:       execution.ErrorMessage,
		RetryCount:  execution.RetryCount,
	})

	return OutcomeFailed, nil
}

func (a *Advancer) pause(
	ctx context.Context,
	logger *slog.Logger,
	execution *models.WorkflowExecution,
	nodeID string,
	workflowStatus models.WorkflowStatus,
	now time.Time,
) (Outcome, error) {
	execution.Status = models.ExecutionStatusPaused

	a.appendLog(ctx, logger, execution.ID, nodeID, models.LogActionWorkflowPaused, map[string]any{
		"workflow_status": workflowStatus,
	}, now)

	err := a.store.SaveExecution(ctx, execution)
	if err != nil {
		return OutcomeFailed, fmt.Errorf("failed to save execution %s: %w", execution.ID, err)
	}

	logger.InfoContext(ctx, "workflow not active, execution paused", "workflow_status", workflowStatus)

	a.publish(ctx, logger, execution.WorkflowID, events.ExecutionPaused{
		BaseEvent:   a.baseEvent(events.ExecutionPausedEvent, execution.WorkflowID, now),
		ExecutionID: execution.ID,
		ContactID:   execution.ContactID,
	})

	return OutcomeSkipped, nil
}

// appendLog never fails the step: by the time it runs the execution's fate is decided.
func (a *Advancer) appendLog(
	ctx context.Context,
	logger *slog.Logger,
	executionID, nodeID string,
	action models.LogAction,
	detail map[string]any,
	now time.Time,
) {
	err := a.store.AppendLog(ctx, &models.ExecutionLogEntry{
		ExecutionID: executionID,
		NodeID:      nodeID,
		Action:      action,
		Detail:      detail,
		CreatedAt:   now,
	})
	if err != nil {
		logger.WarnContext(ctx, "failed to append execution log", "action", action, "error", err)
	}
}

func (a *Advancer) publish(ctx context.Context, logger *slog.Logger, key string, event eventbus.Event) {
	err := a.publisher.Publish(ctx, key, event)
	if err != nil {
		logger.WarnContext(ctx, "failed to publish event", "event_type", event.GetType(), "error", err)
	}
}

func (a *Advancer) baseEvent(eventType events.EventType, workflowID string, now time.Time) events.BaseEvent {
	return events.NewBaseEvent(uuid.NewString(), eventType, workflowID, now)
}

func failureMessage(err error) string {
	switch {
	case errors.Is(err, persistence.ErrNodeNotFound):
		return persistence.ErrNodeNotFound.Error()
	case errors.Is(err, persistence.ErrContactNotFound):
		return persistence.ErrContactNotFound.Error()
	case errors.Is(err, persistence.ErrWorkflowNotFound):
		return persistence.ErrWorkflowNotFound.Error()
	default:
		return err.Error()
	}
}
