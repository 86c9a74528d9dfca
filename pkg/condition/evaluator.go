// Package condition evaluates branch predicates over a contact's interaction history.
package condition

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/dukex/cadence/pkg/models"
)

const (
	DefaultMinCount  = 1
	DefaultMinScroll = 50.0
)

// EventReader is the slice of the event store the evaluator needs.
type EventReader interface {
	Events(ctx context.Context, query models.EventQuery) ([]*models.InteractionEvent, error)
}

// LogWriter appends audit entries.
type LogWriter interface {
	AppendLog(ctx context.Context, entry *models.ExecutionLogEntry) error
}

// Subject identifies whose history is evaluated and where the audit entry belongs.
type Subject struct {
	ExecutionID string
	WorkflowID  string
	NodeID      string
	ContactID   string
}

// Evaluator answers condition nodes. It never mutates events.
type Evaluator struct {
	events EventReader
	logs   LogWriter
	logger *slog.Logger
}

func NewEvaluator(events EventReader, logs LogWriter, logger *slog.Logger) *Evaluator {
	return &Evaluator{
		events: events,
		logs:   logs,
		logger: logger.With("module", "condition"),
	}
}

// Evaluate reports whether the contact's history in the lookback window
// satisfies config, and records the outcome in the audit log.
func (e *Evaluator) Evaluate(ctx context.Context, subject Subject, config models.ConditionConfig, now time.Time) (bool, error) {
	since := now.Add(-time.Duration(config.LookbackHours * float64(time.Hour)))

	events, err := e.events.Events(ctx, models.EventQuery{
		ContactID: subject.ContactID,
		Channel:   config.Channel,
		EventType: config.EventType,
		Since:     since,
	})
	if err != nil {
		return false, fmt.Errorf("failed to query events: %w", err)
	}

	result := Match(config, events)

	e.logger.DebugContext(ctx, "condition evaluated",
		"execution_id", subject.ExecutionID,
		"workflow_id", subject.WorkflowID,
		"node_id", subject.NodeID,
		"channel", config.Channel,
		"event_type", config.EventType,
		"events", len(events),
		"result", result,
	)

	err = e.logs.AppendLog(ctx, &models.ExecutionLogEntry{
		ExecutionID: subject.ExecutionID,
		NodeID:      subject.NodeID,
		Action:      models.LogActionConditionEval,
		Detail: map[string]any{
			"channel":        config.Channel,
			"event_type":     config.EventType,
			"lookback_hours": config.LookbackHours,
			"result":         result,
		},
		CreatedAt: now,
	})
	if err != nil {
		return false, fmt.Errorf("failed to write condition log: %w", err)
	}

	return result, nil
}

// Match applies config to events already filtered by contact, channel, type and window.
func Match(config models.ConditionConfig, events []*models.InteractionEvent) bool {
	if config.Channel != models.ChannelSite {
		return len(events) > 0
	}

	switch config.EventType {
	case models.EventTypePageVisit:
		minCount := config.MinCount
		if minCount <= 0 {
			minCount = DefaultMinCount
		}

		count := 0

		for _, event := range events {
			if strings.Contains(metadataString(event, models.MetadataURL), config.URLContains) {
				count++
			}
		}

		return count >= minCount
	case models.EventTypeScroll:
		minScroll := config.MinScroll
		if minScroll <= 0 {
			minScroll = DefaultMinScroll
		}

		for _, event := range events {
			if depth, ok := metadataNumber(event, models.MetadataScrollDepth); ok && depth >= minScroll {
				return true
			}
		}

		return false
	case models.EventTypeCTAClick:
		for _, event := range events {
			if config.CTAID == "" || metadataString(event, models.MetadataCTAID) == config.CTAID {
				return true
			}
		}

		return false
	default:
		return len(events) > 0
	}
}

func metadataString(event *models.InteractionEvent, key string) string {
	value, ok := event.Metadata[key]
	if !ok || value == nil {
		return ""
	}

	if s, ok := value.(string); ok {
		return s
	}

	return fmt.Sprint(value)
}

func metadataNumber(event *models.InteractionEvent, key string) (float64, bool) {
	switch value := event.Metadata[key].(type) {
	case float64:
		return value, true
	case float32:
		return float64(value), true
	case int:
		return float64(value), true
	case int64:
		return float64(value), true
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSuffix(value, "%"), 64)

		return parsed, err == nil
	default:
		return 0, false
	}
}
