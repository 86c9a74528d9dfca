// Package dispatch drains campaign queues within each campaign's daily quota.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dukex/cadence/pkg/eventbus"
	"github.com/dukex/cadence/pkg/events"
	"github.com/dukex/cadence/pkg/lock"
	"github.com/dukex/cadence/pkg/models"
	"github.com/dukex/cadence/pkg/otelhelper"
	"github.com/dukex/cadence/pkg/persistence"
	"github.com/dukex/cadence/pkg/senders"
	"github.com/dukex/cadence/pkg/template"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Skip reasons stored on queue items.
const (
	SkipContactNotFound = "contact_not_found"
	SkipMissingEmail    = "missing_email"
	SkipMissingPhone    = "missing_phone"
	SkipMissingProfile  = "missing_network_profile"
	SkipSuppressed      = "suppressed"
)

// Store is the storage surface the dispatcher needs.
type Store interface {
	persistence.CampaignRepository
	persistence.ContactRepository
	persistence.SuppressionRepository
	persistence.ChannelRepository
	persistence.EventRepository
}

type Config struct {
	// LockTTL bounds how long one replica may hold a campaign.
	LockTTL  time.Duration
	// ClaimTTL is how long a claimed queue item stays in flight before
	// another run may claim it again.
	ClaimTTL time.Duration
	Now      func() time.Time
}

func DefaultConfig() Config {
	return Config{
		LockTTL:  10 * time.Minute,
		ClaimTTL: 15 * time.Minute,
		Now:      func() time.Time { return time.Now().UTC() },
	}
}

func (c Config) withDefaults() Config {
	defaults := DefaultConfig()

	if c.LockTTL <= 0 {
		c.LockTTL = defaults.LockTTL
	}

	if c.ClaimTTL <= 0 {
		c.ClaimTTL = defaults.ClaimTTL
	}

	if c.Now == nil {
		c.Now = defaults.Now
	}

	return c
}

// CampaignResult is what one campaign did in a dispatch run.
type CampaignResult struct {
	CampaignID string   `json:"campaign_id"`
	Sent       int      `json:"sent"`
	Failed     int      `json:"failed"`
	Skipped    int      `json:"skipped"`
	Errors     []string `json:"errors"`
}

// Summary is the result of one dispatch run. Processed counts queue items.
type Summary struct {
	Processed int              `json:"processed"`
	Results   []CampaignResult `json:"results"`
}

// Dispatcher sends pending campaign queue items.
type Dispatcher struct {
	store     Store
	sender    senders.Sender
	resolver  senders.NetworkResolver
	publisher eventbus.EventPublisher
	locker    lock.Locker
	metrics   *otelhelper.Metrics
	tracer    trace.Tracer
	config    Config
	logger    *slog.Logger
}

func NewDispatcher(store Store, sender senders.Sender, publisher eventbus.EventPublisher, config Config, logger *slog.Logger) *Dispatcher {
	if publisher == nil {
		publisher = eventbus.Discard{}
	}

	return &Dispatcher{
		store:     store,
		sender:    sender,
		publisher: publisher,
		locker:    lock.NewLocal(),
		metrics:   otelhelper.NewMetrics(),
		tracer:    otelhelper.Tracer(),
		config:    config.withDefaults(),
		logger:    logger.With("module", "campaign_dispatcher"),
	}
}

// WithLocker replaces the in-process campaign lock.
func (d *Dispatcher) WithLocker(locker lock.Locker) *Dispatcher {
	d.locker = locker

	return d
}

// WithResolver enables network campaigns to contacts whose profile id is not known yet.
func (d *Dispatcher) WithResolver(resolver senders.NetworkResolver) *Dispatcher {
	d.resolver = resolver

	return d
}

// Process dispatches every active campaign, or only campaignID when set.
// Campaign level problems end up in the result's errors; the returned error
// reports that campaigns could not be listed.
func (d *Dispatcher) Process(ctx context.Context, campaignID string) (Summary, error) {
	started := time.Now()

	campaigns, err := d.store.ActiveCampaigns(ctx, campaignID)
	if err != nil {
		return Summary{}, fmt.Errorf("failed to query active campaigns: %w", err)
	}

	summary := Summary{Results: make([]CampaignResult, 0, len(campaigns))}

	for _, campaign := range campaigns {
		result, processed := d.dispatch(ctx, campaign)

		summary.Processed += processed
		summary.Results = append(summary.Results, result)
	}

	d.metrics.BatchFinished(ctx, "dispatch", time.Since(started).Seconds())
	d.logger.InfoContext(ctx, "dispatch finished", "campaigns", len(campaigns), "processed", summary.Processed)

	return summary, nil
}

func (d *Dispatcher) dispatch(ctx context.Context, campaign *models.Campaign) (CampaignResult, int) {
	result := CampaignResult{CampaignID: campaign.ID, Errors: []string{}}
	logger := d.logger.With("campaign_id", campaign.ID, "channel", campaign.Channel)

	ctx, span := otelhelper.StartSpan(ctx, d.tracer, "campaign.dispatch",
		attribute.String(otelhelper.CampaignIDKey, campaign.ID),
		attribute.String(otelhelper.ChannelKey, string(campaign.Channel)),
	)
	defer span.End()

	release, ok, err := d.locker.TryLock(ctx, "campaign:"+campaign.ID, d.config.LockTTL)
	if err != nil {
		otelhelper.SetError(span, err)
		result.Errors = append(result.Errors, fmt.Sprintf("failed to lock campaign: %v", err))

		return result, 0
	}

	if !ok {
		logger.DebugContext(ctx, "campaign locked elsewhere")

		return result, 0
	}

	defer func() {
		releaseErr := release(context.WithoutCancel(ctx))
		if releaseErr != nil {
			logger.WarnContext(ctx, "failed to release campaign lock", "error", releaseErr)
		}
	}()

	connection, err := d.store.ChannelConnection(ctx, campaign.Channel)
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("failed to load %s channel connection: %v", campaign.Channel, err))

		return result, 0
	}

	if connection == nil || !connection.Connected {
		logger.WarnContext(ctx, "channel not connected, skipping campaign")
		result.Errors = append(result.Errors, fmt.Sprintf("%s channel not connected", campaign.Channel))

		return result, 0
	}

	now := d.config.Now()
	day := models.DayKey(now)

	err = d.store.ResetDailyCounter(ctx, campaign.ID, day)
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("failed to reset daily counter: %v", err))

		return result, 0
	}

	remaining := campaign.Remaining(day)
	if remaining == 0 {
		logger.DebugContext(ctx, "daily limit reached", "daily_limit", campaign.DailyLimit)

		return result, 0
	}

	items, err := d.store.ClaimQueueItems(ctx, campaign.ID, now, now.Add(d.config.ClaimTTL), remaining)
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("failed to claim queue items: %v", err))

		return result, 0
	}

	for _, item := range items {
		d.handle(ctx, logger, campaign, connection, item, now, &result)
	}

	logger.InfoContext(ctx, "campaign dispatched",
		"sent", result.Sent,
		"failed", result.Failed,
		"skipped", result.Skipped,
		"remaining", remaining-result.Sent,
	)

	d.publish(ctx, logger, campaign.ID, events.CampaignDispatched{
		BaseEvent:  events.NewBaseEvent(uuid.NewString(), events.CampaignDispatchedEvent, "", now),
		CampaignID: campaign.ID,
		Sent:       result.Sent,
		Failed:     result.Failed,
		Errors:     result.Errors,
	})

	return result, len(items)
}

func (d *Dispatcher) handle(
	ctx context.Context,
	logger *slog.Logger,
	campaign *models.Campaign,
	connection *models.ChannelConnection,
	item *models.CampaignQueueItem,
	now time.Time,
	result *CampaignResult,
) {
	logger = logger.With("contact_id", item.ContactID, "item_id", item.ID)

	contact, err := d.store.ContactByID(ctx, item.ContactID)
	if err != nil {
		if persistence.IsContactNotFound(err) {
			d.skip(ctx, logger, item, SkipContactNotFound, result)

			return
		}

		d.fail(ctx, logger, campaign, item, fmt.Errorf("failed to load contact: %w", err), now, result)

		return
	}

	reason, err := d.prerequisite(ctx, campaign.Channel, contact)
	if err != nil {
		d.fail(ctx, logger, campaign, item, err, now, result)

		return
	}

	if reason != "" {
		d.skip(ctx, logger, item, reason, result)

		return
	}

	message := senders.Message{
		Channel:    campaign.Channel,
		Contact:    *contact,
		Subject:    template.Render(campaign.Subject, *contact),
		Body:       template.Render(campaign.Body, *contact),
		Connection: connection,
	}

	if campaign.Channel == models.ChannelNetwork {
		message.NetworkAction = models.NetworkActionInvite

		if contact.NetworkID == "" {
			err = d.resolveNetworkID(ctx, logger, &message.Contact)
			if err != nil {
				d.fail(ctx, logger, campaign, item, err, now, result)

				return
			}
		}
	}

	receipt, err := d.sender.Send(ctx, message)
	if err != nil {
		d.fail(ctx, logger, campaign, item, err, now, result)

		return
	}

	item.Status = models.QueueItemSent
	item.SentAt = &now
	item.ErrorMessage = ""

	d.save(ctx, logger, item, result)

	err = d.store.IncrementCampaignCounters(ctx, campaign.ID, 1, 0)
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("failed to count send to %s: %v", item.ContactID, err))
	}

	d.record(ctx, logger, campaign, item.ContactID, models.EventTypeSent, map[string]any{
		"provider_message_id": receipt.ProviderMessageID,
	}, now)

	d.publish(ctx, logger, campaign.ID, events.MessageSent{
		BaseEvent:  events.NewBaseEvent(uuid.NewString(), events.MessageSentEvent, "", now),
		Channel:    campaign.Channel,
		ContactID:  item.ContactID,
		CampaignID: campaign.ID,
	})

	d.metrics.MessageHandled(ctx, string(campaign.Channel), "sent")
	result.Sent++
}

// prerequisite returns a skip reason when the contact cannot receive on channel.
func (d *Dispatcher) prerequisite(ctx context.Context, channel models.Channel, contact *models.Contact) (string, error) {
	switch channel {
	case models.ChannelEmail:
		if !contact.HasEmail() {
			return SkipMissingEmail, nil
		}

		suppressed, err := d.store.IsSuppressed(ctx, contact.Email)
		if err != nil {
			return "", fmt.Errorf("failed to check suppression list: %w", err)
		}

		if suppressed {
			return SkipSuppressed, nil
		}
	case models.ChannelChat:
		if !contact.HasPhone() {
			return SkipMissingPhone, nil
		}
	case models.ChannelNetwork:
		if !contact.HasNetworkProfile() {
			return SkipMissingProfile, nil
		}
	}

	return "", nil
}

func (d *Dispatcher) resolveNetworkID(ctx context.Context, logger *slog.Logger, contact *models.Contact) error {
	if d.resolver == nil {
		return errors.New("network profile id unknown and no resolver configured")
	}

	networkID, err := d.resolver.ResolveNetworkID(ctx, contact.NetworkURL)
	if err != nil {
		return fmt.Errorf("failed to resolve network profile: %w", err)
	}

	contact.NetworkID = networkID

	err = d.store.SetContactNetworkID(ctx, contact.ID, networkID)
	if err != nil {
		logger.WarnContext(ctx, "failed to persist resolved network id", "error", err)
	}

	return nil
}

func (d *Dispatcher) skip(ctx context.Context, logger *slog.Logger, item *models.CampaignQueueItem, reason string, result *CampaignResult) {
	logger.DebugContext(ctx, "queue item skipped", "reason", reason)

	item.Status = models.QueueItemSkipped
	item.ErrorMessage = reason

	d.save(ctx, logger, item, result)
	result.Skipped++
}

func (d *Dispatcher) fail(
	ctx context.Context,
	logger *slog.Logger,
	campaign *models.Campaign,
	item *models.CampaignQueueItem,
	cause error,
	now time.Time,
	result *CampaignResult,
) {
	logger.InfoContext(ctx, "campaign send failed", "error", cause)

	item.Status = models.QueueItemFailed
	item.ErrorMessage = cause.Error()

	d.save(ctx, logger, item, result)

	err := d.store.IncrementCampaignCounters(ctx, campaign.ID, 0, 1)
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("failed to count failure of %s: %v", item.ContactID, err))
	}

	detail := map[string]any{"error": cause.Error()}

	var providerErr *senders.ProviderError
	if errors.As(cause, &providerErr) {
		detail["provider_code"] = providerErr.Code
	}

	d.record(ctx, logger, campaign, item.ContactID, models.EventTypeFailed, detail, now)
	d.metrics.MessageHandled(ctx, string(campaign.Channel), "failed")

	result.Failed++
	result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", item.ContactID, cause))
}

func (d *Dispatcher) save(ctx context.Context, logger *slog.Logger, item *models.CampaignQueueItem, result *CampaignResult) {
	err := d.store.SaveQueueItem(ctx, item)
	if err != nil {
		logger.ErrorContext(ctx, "failed to save queue item", "status", item.Status, "error", err)
		result.Errors = append(result.Errors, fmt.Sprintf("failed to save queue item %s: %v", item.ID, err))
	}
}

func (d *Dispatcher) record(
	ctx context.Context,
	logger *slog.Logger,
	campaign *models.Campaign,
	contactID string,
	eventType models.EventType,
	metadata map[string]any,
	now time.Time,
) {
	err := d.store.RecordEvent(ctx, &models.InteractionEvent{
		ContactID:  contactID,
		CampaignID: campaign.ID,
		Channel:    campaign.Channel,
		EventType:  eventType,
		Metadata:   metadata,
		CreatedAt:  now,
	})
	if err != nil {
		logger.WarnContext(ctx, "failed to record interaction event", "event_type", eventType, "error", err)
	}
}

func (d *Dispatcher) publish(ctx context.Context, logger *slog.Logger, key string, event eventbus.Event) {
	err := d.publisher.Publish(ctx, key, event)
	if err != nil {
		logger.WarnContext(ctx, "failed to publish event", "event_type", event.GetType(), "error", err)
	}
}
