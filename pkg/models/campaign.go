package models

import "time"

// CampaignStatus is the lifecycle of a campaign.
type CampaignStatus string

const (
	CampaignStatusDraft     CampaignStatus = "draft"
	CampaignStatusActive    CampaignStatus = "active"
	CampaignStatusPaused    CampaignStatus = "paused"
	CampaignStatusCompleted CampaignStatus = "completed"
)

// Campaign is a single-step broadcast on one channel, throttled by a daily quota.
// SentToday belongs to the UTC day in CounterDate.
type Campaign struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"         validate:"required"`
	Status      CampaignStatus `json:"status"`
	Channel     Channel        `json:"channel"      validate:"required,oneof=email network chat"`
	Subject     string         `json:"subject,omitempty"`
	Body        string         `json:"body"         validate:"required"`
	DailyLimit  int            `json:"daily_limit"  validate:"gte=0"`
	SentToday   int            `json:"sent_today"`
	SentTotal   int            `json:"sent_total"`
	FailedTotal int            `json:"failed_total"`
	CounterDate string         `json:"counter_date"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// Remaining returns how many sends the quota still allows on day.
func (c *Campaign) Remaining(day string) int {
	sent := c.SentToday
	if c.CounterDate != day {
		sent = 0
	}

	if remaining := c.DailyLimit - sent; remaining > 0 {
		return remaining
	}

	return 0
}

// QueueItemStatus is the state of one queued campaign send.
type QueueItemStatus string

const (
	QueueItemPending  QueueItemStatus = "pending"
	QueueItemInFlight QueueItemStatus = "in_flight"
	QueueItemSent     QueueItemStatus = "sent"
	QueueItemFailed   QueueItemStatus = "failed"
	QueueItemSkipped  QueueItemStatus = "skipped"
)

// CampaignQueueItem is one contact waiting to receive a campaign message.
// An in-flight item whose ClaimedUntil has passed is claimable again.
type CampaignQueueItem struct {
	ID           string          `json:"id"`
	CampaignID   string          `json:"campaign_id"`
	ContactID    string          `json:"contact_id"`
	Status       QueueItemStatus `json:"status"`
	ScheduledAt  time.Time       `json:"scheduled_at"`
	Attempts     int             `json:"attempts"`
	ErrorMessage string          `json:"error_message,omitempty"`
	SentAt       *time.Time      `json:"sent_at,omitempty"`
	ClaimedUntil *time.Time      `json:"claimed_until,omitempty"`
}

// DayKey formats t as the UTC day used for daily quotas.
func DayKey(t time.Time) string {
	return t.UTC().Format(time.DateOnly)
}
