package main

import (
	"context"
	"log/slog"

	"github.com/dukex/cadence/pkg/eventbus"
	"github.com/dukex/cadence/pkg/events"
)

// subscribeFailures logs every failed execution seen on the bus, including
// those published by other workers sharing a kafka topic.
func subscribeFailures(ctx context.Context, bus eventbus.EventSubscriber, logger *slog.Logger) error {
	err := bus.Handle(events.ExecutionFailedEvent, func(ctx context.Context, event any) error {
		failed, ok := event.(*events.ExecutionFailed)
		if !ok {
			return nil
		}

		logger.WarnContext(ctx, "Execution failed",
			"execution_id", failed.ExecutionID,
			"workflow_id", failed.WorkflowID,
			"contact_id", failed.ContactID,
			"node_id", failed.NodeID,
			"retry_count", failed.RetryCount,
			"error", failed.Error,
		)

		return nil
	})
	if err != nil {
		return err
	}

	return bus.Subscribe(ctx)
}
