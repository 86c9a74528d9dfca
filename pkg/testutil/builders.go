// Package testutil provides test data builders and utilities for testing.
package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/dukex/cadence/pkg/models"
	"github.com/dukex/cadence/pkg/persistence"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

// Monday10 is a Monday at 10:00 in the default business timezone, inside the default schedule window.
var Monday10 = time.Date(2026, 3, 2, 13, 0, 0, 0, time.UTC)

// CreateTestWorkflow creates an active workflow with default values that can be overridden.
func CreateTestWorkflow(overrides ...func(*models.Workflow)) *models.Workflow {
	workflow := &models.Workflow{
		ID:        uuid.New().String(),
		Name:      "Test Workflow",
		Status:    models.WorkflowStatusActive,
		Trigger:   models.Trigger{Type: models.TriggerTypeManual},
		Owner:     "test-user",
		CreatedAt: Monday10,
		UpdatedAt: Monday10,
	}

	for _, override := range overrides {
		override(workflow)
	}

	return workflow
}

// WithStatus sets the workflow status.
func WithStatus(status models.WorkflowStatus) func(*models.Workflow) {
	return func(w *models.Workflow) {
		w.Status = status
	}
}

// WithSchedule sets the workflow schedule.
func WithSchedule(schedule models.Schedule) func(*models.Workflow) {
	return func(w *models.Workflow) {
		w.Schedule = &schedule
	}
}

// WithSourceList makes the workflow enroll members of listID.
func WithSourceList(listID string) func(*models.Workflow) {
	return func(w *models.Workflow) {
		w.Trigger = models.Trigger{Type: models.TriggerTypeListAdded, ListID: &listID}
	}
}

// CreateTestNode creates a node of the given configuration. The kind follows the configuration.
func CreateTestNode(workflowID, id string, config models.NodeConfig, overrides ...func(*models.WorkflowNode)) *models.WorkflowNode {
	node := &models.WorkflowNode{
		ID:         id,
		WorkflowID: workflowID,
		Kind:       config.Kind(),
		Name:       id,
		Config:     config,
	}

	for _, override := range overrides {
		override(node)
	}

	return node
}

// WithNext sets the unconditional edge.
func WithNext(id string) func(*models.WorkflowNode) {
	return func(n *models.WorkflowNode) {
		n.Next = models.NodeID(id)
	}
}

// WithBranches sets the condition edges. Empty ids leave the edge unset.
func WithBranches(onTrue, onFalse string) func(*models.WorkflowNode) {
	return func(n *models.WorkflowNode) {
		if onTrue != "" {
			n.OnTrue = models.NodeID(onTrue)
		}

		if onFalse != "" {
			n.OnFalse = models.NodeID(onFalse)
		}
	}
}

// CreateTestContact creates a contact reachable on every channel.
func CreateTestContact(overrides ...func(*models.Contact)) *models.Contact {
	contact := &models.Contact{
		ID:         uuid.New().String(),
		FirstName:  "Ana",
		LastName:   "Souza",
		Email:      "ana@example.com",
		Phone:      "+5511999990000",
		Company:    "Acme",
		Title:      "CTO",
		NetworkURL: "https://network.example.com/in/ana",
	}

	for _, override := range overrides {
		override(contact)
	}

	return contact
}

// CreateTestExecution creates a running execution due at Monday10.
func CreateTestExecution(workflowID, contactID, nodeID string, overrides ...func(*models.WorkflowExecution)) *models.WorkflowExecution {
	execution := &models.WorkflowExecution{
		ID:            uuid.New().String(),
		WorkflowID:    workflowID,
		ContactID:     contactID,
		Status:        models.ExecutionStatusRunning,
		CurrentNodeID: models.NodeID(nodeID),
		NextRunAt:     Monday10,
		CreatedAt:     Monday10,
		UpdatedAt:     Monday10,
	}

	for _, override := range overrides {
		override(execution)
	}

	return execution
}

// ConnectAllChannels marks every sending channel as connected.
func ConnectAllChannels(t *testing.T, store persistence.ChannelRepository) {
	t.Helper()

	for _, channel := range []models.Channel{models.ChannelEmail, models.ChannelNetwork, models.ChannelChat} {
		require.NoError(t, store.SaveChannelConnection(context.Background(), &models.ChannelConnection{
			Channel:   channel,
			Connected: true,
		}))
	}
}

// SeedWorkflow stores a workflow with its nodes.
func SeedWorkflow(t *testing.T, store persistence.Persistence, workflow *models.Workflow, nodes ...*models.WorkflowNode) {
	t.Helper()

	ctx := context.Background()

	require.NoError(t, store.SaveWorkflow(ctx, workflow))
	require.NoError(t, store.SaveNodes(ctx, workflow.ID, nodes))
}

// SeedExecution stores a new execution.
func SeedExecution(t *testing.T, store persistence.Persistence, execution *models.WorkflowExecution) {
	t.Helper()

	created, err := store.CreateExecution(context.Background(), execution)
	require.NoError(t, err)
	require.True(t, created)
}
