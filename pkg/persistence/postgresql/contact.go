package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/dukex/cadence/pkg/models"
	"github.com/dukex/cadence/pkg/persistence"
)

// ContactRepository handles contacts, lists, suppression, channel state and interaction events.
type ContactRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewContactRepository creates a new contact repository.
func NewContactRepository(db *sql.DB, logger *slog.Logger) *ContactRepository {
	return &ContactRepository{db: db, logger: logger}
}

// ContactByID returns a contact snapshot.
func (r *ContactRepository) ContactByID(ctx context.Context, id string) (*models.Contact, error) {
	query := `
		SELECT
			id
		  , first_name
		  , last_name
		  , email
		  , phone
		  , company
		  , title
		  , network_url
		  , network_id
		  , custom
		FROM contacts
		WHERE id = $1
	`

	var (
		contact                                             models.Contact
		email, phone, company, title, networkURL, networkID sql.NullString
		customJSON                                          []byte
	)

	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&contact.ID,
		&contact.FirstName,
		&contact.LastName,
		&email,
		&phone,
		&company,
		&title,
		&networkURL,
		&networkID,
		&customJSON,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("contact %s: %w", id, persistence.ErrContactNotFound)
		}

		return nil, fmt.Errorf("failed to scan contact: %w", err)
	}

	contact.Email = email.String
	contact.Phone = phone.String
	contact.Company = company.String
	contact.Title = title.String
	contact.NetworkURL = networkURL.String
	contact.NetworkID = networkID.String

	if len(customJSON) > 0 {
		err = json.Unmarshal(customJSON, &contact.Custom)
		if err != nil {
			return nil, fmt.Errorf("failed to unmarshal contact custom fields: %w", err)
		}
	}

	return &contact, nil
}

// SaveContact upserts a contact.
func (r *ContactRepository) SaveContact(ctx context.Context, contact *models.Contact) error {
	if contact.ID == "" {
		id, err := newID()
		if err != nil {
			return err
		}

		contact.ID = id
	}

	custom := contact.Custom
	if custom == nil {
		custom = map[string]string{}
	}

	customJSON, err := json.Marshal(custom)
	if err != nil {
		return fmt.Errorf("failed to marshal contact custom fields: %w", err)
	}

	query := `
		INSERT INTO contacts (id, first_name, last_name, email, phone, company, title, network_url, network_id, custom)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO UPDATE SET
			first_name = EXCLUDED.first_name,
			last_name = EXCLUDED.last_name,
			email = EXCLUDED.email,
			phone = EXCLUDED.phone,
			company = EXCLUDED.company,
			title = EXCLUDED.title,
			network_url = EXCLUDED.network_url,
			network_id = EXCLUDED.network_id,
			custom = EXCLUDED.custom
	`

	_, err = r.db.ExecContext(ctx, query,
		contact.ID,
		contact.FirstName,
		contact.LastName,
		nullString(contact.Email),
		nullString(contact.Phone),
		nullString(contact.Company),
		nullString(contact.Title),
		nullString(contact.NetworkURL),
		nullString(contact.NetworkID),
		customJSON,
	)
	if err != nil {
		return fmt.Errorf("failed to save contact: %w", err)
	}

	return nil
}

// SetContactNetworkID stores the resolved professional-network identifier of a contact.
func (r *ContactRepository) SetContactNetworkID(ctx context.Context, contactID, networkID string) error {
	result, err := r.db.ExecContext(ctx, "UPDATE contacts SET network_id = $2 WHERE id = $1", contactID, networkID)
	if err != nil {
		return fmt.Errorf("failed to update contact network id: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return fmt.Errorf("contact %s: %w", contactID, persistence.ErrContactNotFound)
	}

	return nil
}

// AddToList inserts the contact into a list; adding an existing member is a no-op.
func (r *ContactRepository) AddToList(ctx context.Context, listID string, contact models.Contact) error {
	snapshot, err := json.Marshal(contact)
	if err != nil {
		return fmt.Errorf("failed to marshal contact snapshot: %w", err)
	}

	query := `
		INSERT INTO list_contacts (list_id, contact_id, snapshot)
		VALUES ($1, $2, $3)
		ON CONFLICT (list_id, contact_id) DO NOTHING
	`

	_, err = r.db.ExecContext(ctx, query, listID, contact.ID, snapshot)
	if err != nil {
		return fmt.Errorf("failed to add contact to list: %w", err)
	}

	return nil
}

// RemoveFromList deletes a list membership; removing a non-member is a no-op.
func (r *ContactRepository) RemoveFromList(ctx context.Context, listID, contactID string) error {
	_, err := r.db.ExecContext(ctx, "DELETE FROM list_contacts WHERE list_id = $1 AND contact_id = $2", listID, contactID)
	if err != nil {
		return fmt.Errorf("failed to remove contact from list: %w", err)
	}

	return nil
}

// ListMembers returns the contact ids of a list.
func (r *ContactRepository) ListMembers(ctx context.Context, listID string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT contact_id FROM list_contacts WHERE list_id = $1 ORDER BY contact_id", listID)
	if err != nil {
		return nil, fmt.Errorf("failed to query list members: %w", err)
	}

	defer closeRows(ctx, r.logger, rows)

	members := make([]string, 0)

	for rows.Next() {
		var contactID string

		err := rows.Scan(&contactID)
		if err != nil {
			return nil, fmt.Errorf("failed to scan list member: %w", err)
		}

		members = append(members, contactID)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating list members: %w", err)
	}

	return members, nil
}

// IsSuppressed reports whether an address is on the suppression list.
func (r *ContactRepository) IsSuppressed(ctx context.Context, email string) (bool, error) {
	var exists bool

	err := r.db.QueryRowContext(ctx,
		"SELECT EXISTS (SELECT 1 FROM suppression_list WHERE email = $1)",
		strings.ToLower(email),
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check suppression list: %w", err)
	}

	return exists, nil
}

// Suppress adds an address to the suppression list.
func (r *ContactRepository) Suppress(ctx context.Context, email, reason string) error {
	query := `
		INSERT INTO suppression_list (email, reason)
		VALUES ($1, $2)
		ON CONFLICT (email) DO UPDATE SET reason = EXCLUDED.reason
	`

	_, err := r.db.ExecContext(ctx, query, strings.ToLower(email), reason)
	if err != nil {
		return fmt.Errorf("failed to suppress address: %w", err)
	}

	return nil
}

// ChannelConnection returns the configured account of a channel, or nil.
func (r *ContactRepository) ChannelConnection(ctx context.Context, channel models.Channel) (*models.ChannelConnection, error) {
	var (
		connection models.ChannelConnection
		configJSON []byte
	)

	err := r.db.QueryRowContext(ctx,
		"SELECT channel, connected, config FROM channel_connections WHERE channel = $1",
		channel,
	).Scan(&connection.Channel, &connection.Connected, &configJSON)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}

		return nil, fmt.Errorf("failed to scan channel connection: %w", err)
	}

	if len(configJSON) > 0 {
		err = json.Unmarshal(configJSON, &connection.Config)
		if err != nil {
			return nil, fmt.Errorf("failed to unmarshal channel config: %w", err)
		}
	}

	return &connection, nil
}

// SaveChannelConnection upserts the account of a channel.
func (r *ContactRepository) SaveChannelConnection(ctx context.Context, connection *models.ChannelConnection) error {
	config := connection.Config
	if config == nil {
		config = map[string]string{}
	}

	configJSON, err := json.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal channel config: %w", err)
	}

	query := `
		INSERT INTO channel_connections (channel, connected, config)
		VALUES ($1, $2, $3)
		ON CONFLICT (channel) DO UPDATE SET
			connected = EXCLUDED.connected,
			config = EXCLUDED.config
	`

	_, err = r.db.ExecContext(ctx, query, connection.Channel, connection.Connected, configJSON)
	if err != nil {
		return fmt.Errorf("failed to save channel connection: %w", err)
	}

	return nil
}

// RecordEvent inserts an interaction event.
func (r *ContactRepository) RecordEvent(ctx context.Context, event *models.InteractionEvent) error {
	if event.ID == "" {
		id, err := newID()
		if err != nil {
			return err
		}

		event.ID = id
	}

	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}

	metadata := event.Metadata
	if metadata == nil {
		metadata = map[string]any{}
	}

	metadataJSON, err := json.Marshal(metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal event metadata: %w", err)
	}

	query := `
		INSERT INTO events (id, contact_id, workflow_id, campaign_id, channel, event_type, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err = r.db.ExecContext(ctx, query,
		event.ID,
		event.ContactID,
		nullString(event.WorkflowID),
		nullString(event.CampaignID),
		event.Channel,
		event.EventType,
		metadataJSON,
		event.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to record event: %w", err)
	}

	return nil
}

// Events returns the events of a contact on a channel since query.Since, oldest first.
func (r *ContactRepository) Events(ctx context.Context, query models.EventQuery) ([]*models.InteractionEvent, error) {
	sqlQuery := `
		SELECT id, contact_id, workflow_id, campaign_id, channel, event_type, metadata, created_at
		FROM events
		WHERE contact_id = $1
		  AND channel = $2
		  AND ($3::text = '' OR event_type = $3)
		  AND created_at >= $4
		ORDER BY created_at
	`

	rows, err := r.db.QueryContext(ctx, sqlQuery, query.ContactID, query.Channel, query.EventType, query.Since)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}

	defer closeRows(ctx, r.logger, rows)

	events := make([]*models.InteractionEvent, 0)

	for rows.Next() {
		var (
			event                  models.InteractionEvent
			workflowID, campaignID sql.NullString
			metadataJSON           []byte
		)

		err := rows.Scan(
			&event.ID,
			&event.ContactID,
			&workflowID,
			&campaignID,
			&event.Channel,
			&event.EventType,
			&metadataJSON,
			&event.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}

		event.WorkflowID = workflowID.String
		event.CampaignID = campaignID.String

		if len(metadataJSON) > 0 {
			err = json.Unmarshal(metadataJSON, &event.Metadata)
			if err != nil {
				return nil, fmt.Errorf("failed to unmarshal event metadata: %w", err)
			}
		}

		events = append(events, &event)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating events: %w", err)
	}

	return events, nil
}
