// Package models defines core node-based workflow models for graph execution
package models

import (
	"encoding/json"
	"fmt"
)

// NodeKind identifies the behaviour of a workflow node.
type NodeKind string

const (
	NodeKindStart              NodeKind = "start"
	NodeKindSendEmail          NodeKind = "send_email"
	NodeKindSendNetworkMessage NodeKind = "send_network_message"
	NodeKindSendChatMessage    NodeKind = "send_chat_message"
	NodeKindWait               NodeKind = "wait"
	NodeKindCondition          NodeKind = "condition"
	NodeKindListAction         NodeKind = "list_action"
	NodeKindEnd                NodeKind = "end"
)

// KnownNodeKinds lists every node kind the engine can process.
var KnownNodeKinds = []NodeKind{
	NodeKindStart,
	NodeKindSendEmail,
	NodeKindSendNetworkMessage,
	NodeKindSendChatMessage,
	NodeKindWait,
	NodeKindCondition,
	NodeKindListAction,
	NodeKindEnd,
}

// WorkflowNode is one typed step of a workflow graph. Edges are optional node
// ids; a nil edge ends the path. OnTrue and OnFalse are only used by condition nodes.
type WorkflowNode struct {
	ID         string     `json:"id"          validate:"required"`
	WorkflowID string     `json:"workflow_id" validate:"required"`
	Kind       NodeKind   `json:"kind"        validate:"required"`
	Name       string     `json:"name"`
	Config     NodeConfig `json:"-"`
	Next       *string    `json:"next,omitempty"`
	OnTrue     *string    `json:"on_true,omitempty"`
	OnFalse    *string    `json:"on_false,omitempty"`
}

type workflowNodeJSON struct {
	ID         string          `json:"id"`
	WorkflowID string          `json:"workflow_id"`
	Kind       NodeKind        `json:"kind"`
	Name       string          `json:"name"`
	Config     json.RawMessage `json:"config,omitempty"`
	Next       *string         `json:"next,omitempty"`
	OnTrue     *string         `json:"on_true,omitempty"`
	OnFalse    *string         `json:"on_false,omitempty"`
}

// MarshalJSON encodes the node with its kind-specific configuration.
func (n WorkflowNode) MarshalJSON() ([]byte, error) {
	var (
		config []byte
		err    error
	)

	if n.Config != nil {
		config, err = EncodeNodeConfig(n.Config)
		if err != nil {
			return nil, err
		}
	}

	return json.Marshal(workflowNodeJSON{
		ID:         n.ID,
		WorkflowID: n.WorkflowID,
		Kind:       n.Kind,
		Name:       n.Name,
		Config:     config,
		Next:       n.Next,
		OnTrue:     n.OnTrue,
		OnFalse:    n.OnFalse,
	})
}

// UnmarshalJSON decodes the node and validates its configuration against the kind's schema.
func (n *WorkflowNode) UnmarshalJSON(data []byte) error {
	var raw workflowNodeJSON

	err := json.Unmarshal(data, &raw)
	if err != nil {
		return err
	}

	config, err := DecodeNodeConfig(raw.Kind, raw.Config)
	if err != nil {
		return fmt.Errorf("node %s: %w", raw.ID, err)
	}

	*n = WorkflowNode{
		ID:         raw.ID,
		WorkflowID: raw.WorkflowID,
		Kind:       raw.Kind,
		Name:       raw.Name,
		Config:     config,
		Next:       Edge(raw.Next),
		OnTrue:     Edge(raw.OnTrue),
		OnFalse:    Edge(raw.OnFalse),
	}

	return nil
}

// Edges returns every outgoing node id of the node.
func (n *WorkflowNode) Edges() []string {
	edges := make([]string, 0, 3)

	for _, edge := range []*string{n.Next, n.OnTrue, n.OnFalse} {
		if edge = Edge(edge); edge != nil {
			edges = append(edges, *edge)
		}
	}

	return edges
}

// Edge normalizes an optional edge: an empty id ends the path like nil does.
func Edge(id *string) *string {
	if id == nil || *id == "" {
		return nil
	}

	return id
}

// NodeID is a convenience for building optional edges.
func NodeID(id string) *string {
	return &id
}
