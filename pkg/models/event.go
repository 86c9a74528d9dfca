package models

import "time"

// Channel is the medium an interaction happened on.
type Channel string

const (
	ChannelEmail   Channel = "email"
	ChannelNetwork Channel = "network"
	ChannelChat    Channel = "chat"
	ChannelSite    Channel = "site"
)

// EventType is the kind of interaction recorded for a contact.
type EventType string

const (
	EventTypeSent      EventType = "sent"
	EventTypeFailed    EventType = "failed"
	EventTypeDelivered EventType = "delivered"
	EventTypeOpened    EventType = "opened"
	EventTypeReplied   EventType = "replied"
	EventTypeAccepted  EventType = "accepted"
	EventTypePageVisit EventType = "page_visit"
	EventTypeScroll    EventType = "scroll_depth"
	EventTypeCTAClick  EventType = "cta_click"
)

// Metadata keys written by the site tracker.
const (
	MetadataURL         = "url"
	MetadataScrollDepth = "scroll_percentage"
	MetadataCTAID       = "cta_id"
)

// InteractionEvent is one historical interaction of a contact. WorkflowID is
// empty for events not caused by a workflow.
type InteractionEvent struct {
	ID         string         `json:"id"`
	ContactID  string         `json:"contact_id"`
	WorkflowID string         `json:"workflow_id,omitempty"`
	CampaignID string         `json:"campaign_id,omitempty"`
	Channel    Channel        `json:"channel"`
	EventType  EventType      `json:"event_type"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
}

// EventQuery selects events of a contact on a channel since a point in time.
// An empty EventType matches every type.
type EventQuery struct {
	ContactID string
	Channel   Channel
	EventType EventType
	Since     time.Time
}
