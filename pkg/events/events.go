// Package events defines the lifecycle notifications published by the engine.
package events

import (
	"time"

	"github.com/dukex/cadence/pkg/models"
)

type EventType string

// Topic is the watermill topic every notification is published on.
const Topic = "cadence.events"

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	// Execution lifecycle.
	ExecutionEnrolledEvent  EventType = "execution.enrolled"
	ExecutionCompletedEvent EventType = "execution.completed"
	ExecutionFailedEvent    EventType = "execution.failed"
	ExecutionPausedEvent    EventType = "execution.paused"
	ExecutionResumedEvent   EventType = "execution.resumed"

	// Outbound messages.
	MessageSentEvent EventType = "message.sent"

	// Campaigns.
	CampaignDispatchedEvent EventType = "campaign.dispatched"
)

type BaseEvent struct {
	ID         string         `json:"id"`
	Type       EventType      `json:"type"`
	Timestamp  time.Time      `json:"timestamp"`
	WorkflowID string         `json:"workflow_id,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// NewBaseEvent stamps a base event with its type and time.
func NewBaseEvent(id string, eventType EventType, workflowID string, at time.Time) BaseEvent {
	return BaseEvent{
		ID:         id,
		Type:       eventType,
		Timestamp:  at,
		WorkflowID: workflowID,
	}
}

type ExecutionEnrolled struct {
	BaseEvent

	ExecutionID string `json:"execution_id"`
	ContactID   string `json:"contact_id"`
}

func (e ExecutionEnrolled) GetType() EventType {
	return ExecutionEnrolledEvent
}

type ExecutionCompleted struct {
	BaseEvent

	ExecutionID string `json:"execution_id"`
	ContactID   string `json:"contact_id"`
	LastNodeID  string `json:"last_node_id,omitempty"`
}

func (e ExecutionCompleted) GetType() EventType {
	return ExecutionCompletedEvent
}

type ExecutionFailed struct {
	BaseEvent

	ExecutionID string `json:"execution_id"`
	ContactID   string `json:"contact_id"`
	NodeID      string `json:"node_id,omitempty"`
	Error       string `json:"error"`
	RetryCount  int    `json:"retry_count"`
}

func (e ExecutionFailed) GetType() EventType {
	return ExecutionFailedEvent
}

type ExecutionPaused struct {
	BaseEvent

	ExecutionID string `json:"execution_id"`
	ContactID   string `json:"contact_id"`
}

func (e ExecutionPaused) GetType() EventType {
	return ExecutionPausedEvent
}

type ExecutionResumed struct {
	BaseEvent

	Resumed int `json:"resumed"`
}

func (e ExecutionResumed) GetType() EventType {
	return ExecutionResumedEvent
}

// MessageSent is published after a provider accepted a message, from a
// workflow node or a campaign.
type MessageSent struct {
	BaseEvent

	Channel     models.Channel `json:"channel"`
	ContactID   string         `json:"contact_id"`
	ExecutionID string         `json:"execution_id,omitempty"`
	NodeID      string         `json:"node_id,omitempty"`
	CampaignID  string         `json:"campaign_id,omitempty"`
}

func (e MessageSent) GetType() EventType {
	return MessageSentEvent
}

type CampaignDispatched struct {
	BaseEvent

	CampaignID string   `json:"campaign_id"`
	Sent       int      `json:"sent"`
	Failed     int      `json:"failed"`
	Errors     []string `json:"errors,omitempty"`
}

func (e CampaignDispatched) GetType() EventType {
	return CampaignDispatchedEvent
}
