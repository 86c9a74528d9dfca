package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"
)

// ErrInvalidNodeConfig indicates a node configuration that does not match its kind's schema.
var ErrInvalidNodeConfig = errors.New("invalid node config")

// NodeConfig is the kind-specific configuration of a node. The set of
// implementations is closed: one variant per NodeKind plus UnknownConfig.
type NodeConfig interface {
	Kind() NodeKind
	isNodeConfig()
}

type StartConfig struct{}

// SendEmailConfig carries the templates of an outbound email.
type SendEmailConfig struct {
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// NetworkAction selects between a connection invite and a direct message.
type NetworkAction string

const (
	NetworkActionInvite  NetworkAction = "invite"
	NetworkActionMessage NetworkAction = "message"
)

// SendNetworkConfig carries a professional-network message. Invites may carry an optional note.
type SendNetworkConfig struct {
	Action  NetworkAction `json:"action"`
	Message string        `json:"message"`
}

type SendChatConfig struct {
	Message string `json:"message"`
}

// WaitConfig delays the next step by Days and Hours.
type WaitConfig struct {
	Days  int `json:"days"`
	Hours int `json:"hours"`
}

// ConditionConfig is a predicate over the contact's interaction history.
// URLContains, MinCount, MinScroll and CTAID only apply to the site channel.
type ConditionConfig struct {
	Channel       Channel   `json:"channel"`
	EventType     EventType `json:"event_type"`
	LookbackHours float64   `json:"lookback_hours"`
	URLContains   string    `json:"url_contains,omitempty"`
	MinCount      int       `json:"min_count,omitempty"`
	MinScroll     float64   `json:"min_scroll,omitempty"`
	CTAID         string    `json:"cta_id,omitempty"`
}

// ListAction mutates list membership.
type ListAction string

const (
	ListActionAdd    ListAction = "add_to_list"
	ListActionRemove ListAction = "remove_from_list"
)

type ListActionConfig struct {
	Action ListAction `json:"action"`
	ListID string     `json:"list_id"`
}

type EndConfig struct{}

// UnknownConfig keeps the raw payload of a node kind this build does not know.
type UnknownConfig struct {
	NodeKind NodeKind
	Raw      json.RawMessage
}

func (StartConfig) Kind() NodeKind { return NodeKindStart }
func (SendEmailConfig) Kind() NodeKind { return NodeKindSendEmail }
func (SendNetworkConfig) Kind() NodeKind { return NodeKindSendNetworkMessage }
func (SendChatConfig) Kind() NodeKind { return NodeKindSendChatMessage }
func (WaitConfig) Kind() NodeKind { return NodeKindWait }
func (ConditionConfig) Kind() NodeKind { return NodeKindCondition }
func (ListActionConfig) Kind() NodeKind { return NodeKindListAction }
func (EndConfig) Kind() NodeKind { return NodeKindEnd }
func (u UnknownConfig) Kind() NodeKind { return u.NodeKind }

func (StartConfig) isNodeConfig() {}
func (SendEmailConfig) isNodeConfig() {}
func (SendNetworkConfig) isNodeConfig() {}
func (SendChatConfig) isNodeConfig() {}
func (WaitConfig) isNodeConfig() {}
func (ConditionConfig) isNodeConfig() {}
func (ListActionConfig) isNodeConfig() {}
func (EndConfig) isNodeConfig() {}
func (UnknownConfig) isNodeConfig() {}

// NodeConfigSchemas returns the JSON schema each node kind's configuration must satisfy.
func NodeConfigSchemas() map[NodeKind]map[string]any {
	return map[NodeKind]map[string]any{
		NodeKindStart: {"type": "object"},
		NodeKindEnd:   {"type": "object"},
		NodeKindSendEmail: {
			"type": "object",
			"properties": map[string]any{
				"subject": map[string]any{"type": "string"},
				"body":    map[string]any{"type": "string", "minLength": 1},
			},
			"required": []string{"body"},
		},
		NodeKindSendNetworkMessage: {
			"type": "object",
			"properties": map[string]any{
				"action":  map[string]any{"type": "string", "enum": []string{"invite", "message"}},
				"message": map[string]any{"type": "string"},
			},
			"required": []string{"action"},
		},
		NodeKindSendChatMessage: {
			"type": "object",
			"properties": map[string]any{
				"message": map[string]any{"type": "string", "minLength": 1},
			},
			"required": []string{"message"},
		},
		NodeKindWait: {
			"type": "object",
			"properties": map[string]any{
				"days":  map[string]any{"type": "integer", "minimum": 0},
				"hours": map[string]any{"type": "integer", "minimum": 0},
			},
		},
		NodeKindCondition: {
			"type": "object",
			"properties": map[string]any{
				"channel":        map[string]any{"type": "string", "enum": []string{"email", "network", "chat", "site"}},
				"event_type":     map[string]any{"type": "string", "minLength": 1},
				"lookback_hours": map[string]any{"type": "number", "minimum": 0},
				"url_contains":   map[string]any{"type": "string"},
				"min_count":      map[string]any{"type": "integer", "minimum": 0},
				"min_scroll":     map[string]any{"type": "number", "minimum": 0, "maximum": 100},
				"cta_id":         map[string]any{"type": "string"},
			},
			"required": []string{"channel", "event_type", "lookback_hours"},
		},
		NodeKindListAction: {
			"type": "object",
			"properties": map[string]any{
				"action":  map[string]any{"type": "string"},
				"list_id": map[string]any{"type": "string", "minLength": 1},
			},
			"required": []string{"action", "list_id"},
		},
	}
}

var (
	compiledSchemasOnce sync.Once
	compiledSchemas     map[NodeKind]*gojsonschema.Schema
	compiledSchemasErr  error
)

func nodeConfigSchema(kind NodeKind) (*gojsonschema.Schema, error) {
	compiledSchemasOnce.Do(func() {
		compiledSchemas = make(map[NodeKind]*gojsonschema.Schema)

		for k, schema := range NodeConfigSchemas() {
			compiled, err := gojsonschema.NewSchema(gojsonschema.NewGoLoader(schema))
			if err != nil {
				compiledSchemasErr = fmt.Errorf("failed to compile schema for %s: %w", k, err)

				return
			}

			compiledSchemas[k] = compiled
		}
	})

	if compiledSchemasErr != nil {
		return nil, compiledSchemasErr
	}

	return compiledSchemas[kind], nil
}

// DecodeNodeConfig validates raw against the kind's schema and decodes it into its variant.
// Unknown kinds decode to UnknownConfig without validation.
func DecodeNodeConfig(kind NodeKind, raw json.RawMessage) (NodeConfig, error) {
	if len(raw) == 0 || string(raw) == "null" {
		raw = json.RawMessage("{}")
	}

	schema, err := nodeConfigSchema(kind)
	if err != nil {
		return nil, err
	}

	if schema == nil {
		return UnknownConfig{NodeKind: kind, Raw: raw}, nil
	}

	result, err := schema.Validate(gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrInvalidNodeConfig, kind, err)
	}

	if !result.Valid() {
		messages := make([]string, 0, len(result.Errors()))
		for _, resultErr := range result.Errors() {
			messages = append(messages, resultErr.String())
		}

		return nil, fmt.Errorf("%w: %s: %s", ErrInvalidNodeConfig, kind, strings.Join(messages, "; "))
	}

	switch kind {
	case NodeKindStart:
		return StartConfig{}, nil
	case NodeKindEnd:
		return EndConfig{}, nil
	case NodeKindSendEmail:
		return decodeInto[SendEmailConfig](kind, raw)
	case NodeKindSendNetworkMessage:
		return decodeInto[SendNetworkConfig](kind, raw)
	case NodeKindSendChatMessage:
		return decodeInto[SendChatConfig](kind, raw)
	case NodeKindWait:
		return decodeInto[WaitConfig](kind, raw)
	case NodeKindCondition:
		return decodeInto[ConditionConfig](kind, raw)
	case NodeKindListAction:
		return decodeInto[ListActionConfig](kind, raw)
	default:
		return UnknownConfig{NodeKind: kind, Raw: raw}, nil
	}
}

func decodeInto[T NodeConfig](kind NodeKind, raw json.RawMessage) (NodeConfig, error) {
	var config T

	err := json.Unmarshal(raw, &config)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrInvalidNodeConfig, kind, err)
	}

	return config, nil
}

// EncodeNodeConfig serializes a configuration variant to its JSON payload.
func EncodeNodeConfig(config NodeConfig) ([]byte, error) {
	if unknown, ok := config.(UnknownConfig); ok {
		if len(unknown.Raw) == 0 {
			return []byte("{}"), nil
		}

		return unknown.Raw, nil
	}

	return json.Marshal(config)
}
