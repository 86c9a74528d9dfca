package postgresql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dukex/cadence/pkg/models"
	"github.com/dukex/cadence/pkg/persistence"
	"github.com/lib/pq"
)

// CampaignRepository handles campaigns and their dispatch queue.
type CampaignRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewCampaignRepository creates a new campaign repository.
func NewCampaignRepository(db *sql.DB, logger *slog.Logger) *CampaignRepository {
	return &CampaignRepository{db: db, logger: logger}
}

const campaignColumns = `
	id
  , name
  , status
  , channel
  , subject
  , body
  , daily_limit
  , sent_today
  , sent_total
  , failed_total
  , counter_date
  , created_at
  , updated_at
`

func scanCampaign(row rowScanner) (*models.Campaign, error) {
	var campaign models.Campaign

	err := row.Scan(
		&campaign.ID,
		&campaign.Name,
		&campaign.Status,
		&campaign.Channel,
		&campaign.Subject,
		&campaign.Body,
		&campaign.DailyLimit,
		&campaign.SentToday,
		&campaign.SentTotal,
		&campaign.FailedTotal,
		&campaign.CounterDate,
		&campaign.CreatedAt,
		&campaign.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	return &campaign, nil
}

// ActiveCampaigns returns active campaigns, optionally narrowed to one id.
func (r *CampaignRepository) ActiveCampaigns(ctx context.Context, campaignID string) ([]*models.Campaign, error) {
	query := `
		SELECT ` + campaignColumns + `
		FROM campaigns
		WHERE status = 'active'
		  AND ($1::text = '' OR id = $1)
		ORDER BY id
	`

	rows, err := r.db.QueryContext(ctx, query, campaignID)
	if err != nil {
		return nil, fmt.Errorf("failed to query campaigns: %w", err)
	}

	defer closeRows(ctx, r.logger, rows)

	campaigns := make([]*models.Campaign, 0)

	for rows.Next() {
		campaign, err := scanCampaign(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan campaign: %w", err)
		}

		campaigns = append(campaigns, campaign)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating campaigns: %w", err)
	}

	return campaigns, nil
}

// CampaignByID returns a campaign by its ID.
func (r *CampaignRepository) CampaignByID(ctx context.Context, id string) (*models.Campaign, error) {
	query := `SELECT ` + campaignColumns + ` FROM campaigns WHERE id = $1`

	campaign, err := scanCampaign(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("campaign %s: %w", id, persistence.ErrCampaignNotFound)
		}

		return nil, fmt.Errorf("failed to scan campaign: %w", err)
	}

	return campaign, nil
}

// SaveCampaign upserts the definition of a campaign. Counters are only
// written on insert; afterwards they move through IncrementCampaignCounters.
func (r *CampaignRepository) SaveCampaign(ctx context.Context, campaign *models.Campaign) error {
	now := time.Now().UTC()

	if campaign.ID == "" {
		id, err := newID()
		if err != nil {
			return err
		}

		campaign.ID = id
	}

	if campaign.CreatedAt.IsZero() {
		campaign.CreatedAt = now
	}

	campaign.UpdatedAt = now

	query := `
		INSERT INTO campaigns (` + campaignColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			status = EXCLUDED.status,
			channel = EXCLUDED.channel,
			subject = EXCLUDED.subject,
			body = EXCLUDED.body,
			daily_limit = EXCLUDED.daily_limit,
			updated_at = EXCLUDED.updated_at
	`

	_, err := r.db.ExecContext(ctx, query,
		campaign.ID,
		campaign.Name,
		campaign.Status,
		campaign.Channel,
		campaign.Subject,
		campaign.Body,
		campaign.DailyLimit,
		campaign.SentToday,
		campaign.SentTotal,
		campaign.FailedTotal,
		campaign.CounterDate,
		campaign.CreatedAt,
		campaign.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save campaign: %w", err)
	}

	return nil
}

// ResetDailyCounter zeroes sent_today when the stored counter date is not day.
func (r *CampaignRepository) ResetDailyCounter(ctx context.Context, campaignID, day string) error {
	query := `
		UPDATE campaigns
		SET sent_today = 0, counter_date = $2
		WHERE id = $1 AND counter_date <> $2
	`

	_, err := r.db.ExecContext(ctx, query, campaignID, day)
	if err != nil {
		return fmt.Errorf("failed to reset daily counter: %w", err)
	}

	return nil
}

// IncrementCampaignCounters adds to the counters in a single statement.
func (r *CampaignRepository) IncrementCampaignCounters(ctx context.Context, campaignID string, sent, failed int) error {
	query := `
		UPDATE campaigns SET
			sent_today = sent_today + $2,
			sent_total = sent_total + $2,
			failed_total = failed_total + $3,
			updated_at = NOW()
		WHERE id = $1
	`

	result, err := r.db.ExecContext(ctx, query, campaignID, sent, failed)
	if err != nil {
		return fmt.Errorf("failed to increment campaign counters: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return fmt.Errorf("campaign %s: %w", campaignID, persistence.ErrCampaignNotFound)
	}

	return nil
}

// EnqueueContacts adds pending queue items; contacts already queued for the campaign are skipped.
func (r *CampaignRepository) EnqueueContacts(ctx context.Context, campaignID string, contactIDs []string, at time.Time) (int, error) {
	added := 0

	for _, contactID := range contactIDs {
		id, err := newID()
		if err != nil {
			return added, err
		}

		result, err := r.db.ExecContext(ctx, `
			INSERT INTO campaign_queue (id, campaign_id, contact_id, status, scheduled_at)
			VALUES ($1, $2, $3, 'pending', $4)
			ON CONFLICT (campaign_id, contact_id) DO NOTHING
		`, id, campaignID, contactID, at)
		if err != nil {
			return added, fmt.Errorf("failed to enqueue contact %s: %w", contactID, err)
		}

		rowsAffected, err := result.RowsAffected()
		if err != nil {
			return added, fmt.Errorf("failed to get rows affected: %w", err)
		}

		added += int(rowsAffected)
	}

	return added, nil
}

// ClaimQueueItems moves due pending items, and in-flight items whose claim
// expired, to in-flight. SKIP LOCKED keeps concurrent dispatchers from
// claiming the same rows.
func (r *CampaignRepository) ClaimQueueItems(
	ctx context.Context,
	campaignID string,
	now, until time.Time,
	limit int,
) ([]*models.CampaignQueueItem, error) {
	query := `
		UPDATE campaign_queue SET
			status = 'in_flight',
			attempts = attempts + 1,
			claimed_until = $4
		WHERE id IN (
			SELECT id FROM campaign_queue
			WHERE campaign_id = $1 AND (
				(status = 'pending' AND scheduled_at <= $2)
				OR (status = 'in_flight' AND (claimed_until IS NULL OR claimed_until < $2))
			)
			ORDER BY scheduled_at, id
			LIMIT $3
			FOR UPDATE SKIP LOCKED
		)
		RETURNING id, campaign_id, contact_id, status, scheduled_at, attempts, error_message, sent_at, claimed_until
	`

	rows, err := r.db.QueryContext(ctx, query, campaignID, now, limit, until)
	if err != nil {
		return nil, fmt.Errorf("failed to claim queue items: %w", err)
	}

	defer closeRows(ctx, r.logger, rows)

	items := make([]*models.CampaignQueueItem, 0)

	for rows.Next() {
		var (
			item         models.CampaignQueueItem
			errorMessage sql.NullString
			sentAt       pq.NullTime
			claimedUntil pq.NullTime
		)

		err := rows.Scan(
			&item.ID,
			&item.CampaignID,
			&item.ContactID,
			&item.Status,
			&item.ScheduledAt,
			&item.Attempts,
			&errorMessage,
			&sentAt,
			&claimedUntil,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan queue item: %w", err)
		}

		if claimedUntil.Valid {
			item.ClaimedUntil = &claimedUntil.Time
		}

		item.ErrorMessage = errorMessage.String

		if sentAt.Valid {
			item.SentAt = &sentAt.Time
		}

		items = append(items, &item)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating queue items: %w", err)
	}

	return items, nil
}

// SaveQueueItem writes the outcome of a queue item; leaving in-flight drops the claim.
func (r *CampaignRepository) SaveQueueItem(ctx context.Context, item *models.CampaignQueueItem) error {
	query := `
		UPDATE campaign_queue SET
			status = $2,
			attempts = $3,
			error_message = $4,
			sent_at = $5,
			claimed_until = CASE WHEN $2 = 'in_flight' THEN claimed_until END
		WHERE id = $1
	`

	_, err := r.db.ExecContext(ctx, query,
		item.ID,
		item.Status,
		item.Attempts,
		nullString(item.ErrorMessage),
		item.SentAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save queue item: %w", err)
	}

	return nil
}
