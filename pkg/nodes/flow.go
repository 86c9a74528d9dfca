package nodes

import (
	"context"
	"fmt"
	"time"

	"github.com/dukex/cadence/pkg/condition"
	"github.com/dukex/cadence/pkg/models"
)

func (p *Processors) start(ctx context.Context, in Input) (Result, error) {
	err := p.appendLog(ctx, in, models.LogActionWorkflowStart, map[string]any{
		"workflow_id": in.Execution.WorkflowID,
		"contact_id":  in.Execution.ContactID,
	})
	if err != nil {
		return Result{}, err
	}

	return Result{Next: in.Node.Next, Outcome: OutcomeAdvanced}, nil
}

func (p *Processors) end(ctx context.Context, in Input) (Result, error) {
	err := p.appendLog(ctx, in, models.LogActionWorkflowEnd, nil)
	if err != nil {
		return Result{}, err
	}

	return Result{Outcome: OutcomeEnded}, nil
}

// WaitDelay converts a wait node's configuration into its delay.
func WaitDelay(config models.WaitConfig) time.Duration {
	seconds := int64(config.Days)*86400 + int64(config.Hours)*3600

	return time.Duration(seconds) * time.Second
}

func (p *Processors) wait(ctx context.Context, in Input, config models.WaitConfig) (Result, error) {
	delay := WaitDelay(config)

	err := p.appendLog(ctx, in, models.LogActionWait, map[string]any{
		"days":     config.Days,
		"hours":    config.Hours,
		"delay_ms": delay.Milliseconds(),
	})
	if err != nil {
		return Result{}, err
	}

	return Result{Next: in.Node.Next, Delay: delay, Outcome: OutcomeAdvanced}, nil
}

func (p *Processors) branch(ctx context.Context, in Input, config models.ConditionConfig) (Result, error) {
	satisfied, err := p.deps.Conditions.Evaluate(ctx, condition.Subject{
		ExecutionID: in.Execution.ID,
		WorkflowID:  in.Execution.WorkflowID,
		NodeID:      in.Node.ID,
		ContactID:   in.Execution.ContactID,
	}, config, in.Now)
	if err != nil {
		return Result{}, fmt.Errorf("failed to evaluate condition: %w", err)
	}

	next := in.Node.OnFalse
	if satisfied {
		next = in.Node.OnTrue
	}

	return Result{Next: next, Outcome: OutcomeAdvanced}, nil
}

func (p *Processors) listAction(ctx context.Context, in Input, config models.ListActionConfig) (Result, error) {
	detail := map[string]any{"list_id": config.ListID, "action": config.Action}

	switch config.Action {
	case models.ListActionAdd:
		err := p.deps.Lists.AddToList(ctx, config.ListID, *in.Contact)
		if err != nil {
			return Result{}, fmt.Errorf("failed to add contact to list %s: %w", config.ListID, err)
		}

		err = p.appendLog(ctx, in, models.LogActionListAdd, detail)
		if err != nil {
			return Result{}, err
		}
	case models.ListActionRemove:
		err := p.deps.Lists.RemoveFromList(ctx, config.ListID, in.Contact.ID)
		if err != nil {
			return Result{}, fmt.Errorf("failed to remove contact from list %s: %w", config.ListID, err)
		}

		err = p.appendLog(ctx, in, models.LogActionListRemove, detail)
		if err != nil {
			return Result{}, err
		}
	default:
		err := p.appendLog(ctx, in, models.LogActionListUnknown, detail)
		if err != nil {
			return Result{}, err
		}
	}

	return Result{Next: in.Node.Next, Outcome: OutcomeAdvanced}, nil
}

func (p *Processors) unknown(ctx context.Context, in Input, config models.UnknownConfig) (Result, error) {
	p.logger.WarnContext(ctx, "unknown node kind, passing through",
		"execution_id", in.Execution.ID,
		"node_id", in.Node.ID,
		"kind", config.Kind(),
	)

	err := p.appendLog(ctx, in, models.LogActionUnknownNode, map[string]any{"kind": config.Kind()})
	if err != nil {
		return Result{}, err
	}

	return Result{Next: in.Node.Next, Outcome: OutcomeAdvanced}, nil
}
