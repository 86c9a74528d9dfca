// Package nodes implements one processor per workflow node kind.
//
// A processor consumes the current execution, its node and the contact
// snapshot, performs the node's side effects and tells the engine where to go
// next and after how long. A returned error is an unexpected fault and sends
// the execution down the retry path; missing contact data and failed sends
// are outcomes, not errors.
package nodes

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/dukex/cadence/pkg/backoff"
	"github.com/dukex/cadence/pkg/condition"
	"github.com/dukex/cadence/pkg/models"
	"github.com/dukex/cadence/pkg/senders"
)

// Outcome classifies what a processor did.
type Outcome string

const (
	OutcomeAdvanced   Outcome = "advanced"
	OutcomeSent       Outcome = "sent"
	OutcomeSkipped    Outcome = "skipped"
	OutcomeSendFailed Outcome = "send_failed"
	OutcomeEnded      Outcome = "ended"
)

// Input is everything a processor may look at.
type Input struct {
	Execution *models.WorkflowExecution
	Node      *models.WorkflowNode
	Contact   *models.Contact
	Workflow  *models.Workflow
	Now       time.Time
}

// Result tells the engine how to move the execution. A nil Next ends it.
type Result struct {
	Next    *string
	Delay   time.Duration
	Outcome Outcome
	// Channel is set for send nodes.
	Channel models.Channel
}

type LogWriter interface {
	AppendLog(ctx context.Context, entry *models.ExecutionLogEntry) error
}

type EventRecorder interface {
	RecordEvent(ctx context.Context, event *models.InteractionEvent) error
}

type ChannelChecker interface {
	ChannelConnection(ctx context.Context, channel models.Channel) (*models.ChannelConnection, error)
}

type SuppressionChecker interface {
	IsSuppressed(ctx context.Context, email string) (bool, error)
}

type ContactWriter interface {
	SetContactNetworkID(ctx context.Context, contactID, networkID string) error
}

type ListWriter interface {
	AddToList(ctx context.Context, listID string, contact models.Contact) error
	RemoveFromList(ctx context.Context, listID, contactID string) error
}

type ConditionEvaluator interface {
	Evaluate(ctx context.Context, subject condition.Subject, config models.ConditionConfig, now time.Time) (bool, error)
}

// Deps are the collaborators of the processors.
type Deps struct {
	Logs        LogWriter
	Events      EventRecorder
	Channels    ChannelChecker
	Suppression SuppressionChecker
	Contacts    ContactWriter
	Lists       ListWriter
	Conditions  ConditionEvaluator
	Sender      senders.Sender
	Resolver    senders.NetworkResolver
	// Pacing is the randomized delay applied after a successful send.
	Pacing backoff.Window
	Logger *slog.Logger
}

// Processors dispatches a node to the processor of its kind.
type Processors struct {
	deps   Deps
	logger *slog.Logger
}

func NewProcessors(deps Deps) *Processors {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Processors{deps: deps, logger: logger.With("module", "nodes")}
}

// Process runs the node of in. Node kinds this build does not know pass
// through to the node's own next edge.
func (p *Processors) Process(ctx context.Context, in Input) (Result, error) {
	config := in.Node.Config
	if config == nil {
		decoded, err := models.DecodeNodeConfig(in.Node.Kind, nil)
		if err != nil {
			return Result{}, fmt.Errorf("node %s: %w", in.Node.ID, err)
		}

		config = decoded
	}

	switch config := config.(type) {
	case models.StartConfig:
		return p.start(ctx, in)
	case models.SendEmailConfig:
		return p.sendEmail(ctx, in, config)
	case models.SendNetworkConfig:
		return p.sendNetwork(ctx, in, config)
	case models.SendChatConfig:
		return p.sendChat(ctx, in, config)
	case models.WaitConfig:
		return p.wait(ctx, in, config)
	case models.ConditionConfig:
		return p.branch(ctx, in, config)
	case models.ListActionConfig:
		return p.listAction(ctx, in, config)
	case models.EndConfig:
		return p.end(ctx, in)
	case models.UnknownConfig:
		return p.unknown(ctx, in, config)
	default:
		return p.unknown(ctx, in, models.UnknownConfig{NodeKind: in.Node.Kind})
	}
}

func (p *Processors) appendLog(ctx context.Context, in Input, action models.LogAction, detail map[string]any) error {
	err := p.deps.Logs.AppendLog(ctx, &models.ExecutionLogEntry{
		ExecutionID: in.Execution.ID,
		NodeID:      in.Node.ID,
		Action:      action,
		Detail:      detail,
		CreatedAt:   in.Now,
	})
	if err != nil {
		return fmt.Errorf("failed to append %s log: %w", action, err)
	}

	return nil
}

// appendLogBestEffort is used once a message has left: a retry would send it twice.
func (p *Processors) appendLogBestEffort(ctx context.Context, in Input, action models.LogAction, detail map[string]any) {
	err := p.appendLog(ctx, in, action, detail)
	if err != nil {
		p.logger.WarnContext(ctx, "audit log write failed after send",
			"execution_id", in.Execution.ID,
			"node_id", in.Node.ID,
			"action", action,
			"error", err,
		)
	}
}
