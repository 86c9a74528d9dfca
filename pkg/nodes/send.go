package nodes

import (
	"context"
	"errors"
	"fmt"

	"github.com/dukex/cadence/pkg/models"
	"github.com/dukex/cadence/pkg/senders"
	"github.com/dukex/cadence/pkg/template"
)

// Skip reasons written to the audit log.
const (
	SkipMissingEmail          = "missing_email"
	SkipMissingPhone          = "missing_phone"
	SkipMissingNetworkProfile = "missing_network_profile"
	SkipChannelNotConnected   = "channel_not_connected"
	SkipSuppressed            = "suppressed"
)

type sendActions struct {
	ok, failed, skip models.LogAction
}

var (
	emailActions   = sendActions{models.LogActionSendEmailOK, models.LogActionSendEmailFailed, models.LogActionSendEmailSkip}
	networkActions = sendActions{models.LogActionSendNetworkOK, models.LogActionSendNetworkFail, models.LogActionSendNetworkSkip}
	chatActions    = sendActions{models.LogActionSendChatOK, models.LogActionSendChatFailed, models.LogActionSendChatSkip}
)

func (p *Processors) sendEmail(ctx context.Context, in Input, config models.SendEmailConfig) (Result, error) {
	contact := *in.Contact
	if !contact.HasEmail() {
		return p.skip(ctx, in, models.ChannelEmail, emailActions, SkipMissingEmail)
	}

	connection, connected, err := p.connection(ctx, models.ChannelEmail)
	if err != nil {
		return Result{}, err
	}

	if !connected {
		return p.skip(ctx, in, models.ChannelEmail, emailActions, SkipChannelNotConnected)
	}

	suppressed, err := p.deps.Suppression.IsSuppressed(ctx, contact.Email)
	if err != nil {
		return Result{}, fmt.Errorf("failed to check suppression list: %w", err)
	}

	if suppressed {
		return p.skip(ctx, in, models.ChannelEmail, emailActions, SkipSuppressed)
	}

	return p.deliver(ctx, in, emailActions, senders.Message{
		Channel:    models.ChannelEmail,
		Contact:    contact,
		Subject:    template.Render(config.Subject, contact),
		Body:       template.Render(config.Body, contact),
		Connection: connection,
	})
}

func (p *Processors) sendNetwork(ctx context.Context, in Input, config models.SendNetworkConfig) (Result, error) {
	contact := *in.Contact
	if !contact.HasNetworkProfile() {
		return p.skip(ctx, in, models.ChannelNetwork, networkActions, SkipMissingNetworkProfile)
	}

	connection, connected, err := p.connection(ctx, models.ChannelNetwork)
	if err != nil {
		return Result{}, err
	}

	if !connected {
		return p.skip(ctx, in, models.ChannelNetwork, networkActions, SkipChannelNotConnected)
	}

	if contact.NetworkID == "" {
		networkID, err := p.deps.Resolver.ResolveNetworkID(ctx, contact.NetworkURL)
		if err != nil {
			return p.sendFailed(ctx, in, models.ChannelNetwork, networkActions, fmt.Errorf("failed to resolve network profile: %w", err)), nil
		}

		contact.NetworkID = networkID

		err = p.deps.Contacts.SetContactNetworkID(ctx, contact.ID, networkID)
		if err != nil {
			p.logger.WarnContext(ctx, "failed to persist resolved network id",
				"execution_id", in.Execution.ID,
				"contact_id", contact.ID,
				"error", err,
			)
		}
	}

	return p.deliver(ctx, in, networkActions, senders.Message{
		Channel:       models.ChannelNetwork,
		Contact:       contact,
		Body:          template.Render(config.Message, contact),
		NetworkAction: config.Action,
		Connection:    connection,
	})
}

func (p *Processors) sendChat(ctx context.Context, in Input, config models.SendChatConfig) (Result, error) {
	contact := *in.Contact
	if !contact.HasPhone() {
		return p.skip(ctx, in, models.ChannelChat, chatActions, SkipMissingPhone)
	}

	connection, connected, err := p.connection(ctx, models.ChannelChat)
	if err != nil {
		return Result{}, err
	}

	if !connected {
		return p.skip(ctx, in, models.ChannelChat, chatActions, SkipChannelNotConnected)
	}

	return p.deliver(ctx, in, chatActions, senders.Message{
		Channel:    models.ChannelChat,
		Contact:    contact,
		Body:       template.Render(config.Message, contact),
		Connection: connection,
	})
}

func (p *Processors) connection(ctx context.Context, channel models.Channel) (*models.ChannelConnection, bool, error) {
	connection, err := p.deps.Channels.ChannelConnection(ctx, channel)
	if err != nil {
		return nil, false, fmt.Errorf("failed to load %s channel connection: %w", channel, err)
	}

	return connection, connection != nil && connection.Connected, nil
}

func (p *Processors) skip(ctx context.Context, in Input, channel models.Channel, actions sendActions, reason string) (Result, error) {
	err := p.appendLog(ctx, in, actions.skip, map[string]any{"reason": reason})
	if err != nil {
		return Result{}, err
	}

	return Result{Next: in.Node.Next, Outcome: OutcomeSkipped, Channel: channel}, nil
}

func (p *Processors) deliver(ctx context.Context, in Input, actions sendActions, message senders.Message) (Result, error) {
	receipt, err := p.deps.Sender.Send(ctx, message)
	if err != nil {
		return p.sendFailed(ctx, in, message.Channel, actions, err), nil
	}

	p.recordEvent(ctx, in, message.Channel, models.EventTypeSent, map[string]any{
		"node_id":             in.Node.ID,
		"provider_message_id": receipt.ProviderMessageID,
	})

	p.appendLogBestEffort(ctx, in, actions.ok, map[string]any{
		"provider_message_id": receipt.ProviderMessageID,
		"subject":             message.Subject,
	})

	return Result{
		Next:    in.Node.Next,
		Delay:   p.deps.Pacing.Next(),
		Outcome: OutcomeSent,
		Channel: message.Channel,
	}, nil
}

func (p *Processors) sendFailed(ctx context.Context, in Input, channel models.Channel, actions sendActions, sendErr error) Result {
	detail := map[string]any{"error": sendErr.Error()}

	var providerErr *senders.ProviderError
	if errors.As(sendErr, &providerErr) {
		detail["provider_code"] = providerErr.Code
	}

	p.logger.InfoContext(ctx, "send failed, advancing",
		"execution_id", in.Execution.ID,
		"node_id", in.Node.ID,
		"channel", channel,
		"error", sendErr,
	)

	p.appendLogBestEffort(ctx, in, actions.failed, detail)
	p.recordEvent(ctx, in, channel, models.EventTypeFailed, map[string]any{
		"node_id": in.Node.ID,
		"error":   sendErr.Error(),
	})

	return Result{Next: in.Node.Next, Outcome: OutcomeSendFailed, Channel: channel}
}

func (p *Processors) recordEvent(ctx context.Context, in Input, channel models.Channel, eventType models.EventType, metadata map[string]any) {
	err := p.deps.Events.RecordEvent(ctx, &models.InteractionEvent{
		ContactID:  in.Execution.ContactID,
		WorkflowID: in.Execution.WorkflowID,
		Channel:    channel,
		EventType:  eventType,
		Metadata:   metadata,
		CreatedAt:  in.Now,
	})
	if err != nil {
		p.logger.WarnContext(ctx, "failed to record interaction event",
			"execution_id", in.Execution.ID,
			"event_type", eventType,
			"error", err,
		)
	}
}
