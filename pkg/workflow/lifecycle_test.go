package workflow

import (
	"context"
	"log/slog"
	"testing"

	"github.com/dukex/cadence/pkg/models"
	"github.com/dukex/cadence/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (h *harness) lifecycle() *LifecycleService {
	return NewLifecycleService(h.store, h.enroller(), h.config(), slog.Default())
}

func TestLifecycleService_ActivateResumesParkedExecutions(t *testing.T) {
	h := newHarness(t)
	seedStartEnd(h)

	_, err := h.enroller().Enroll(context.Background(), "wf-1", saveContacts(h, 2))
	require.NoError(t, err)

	paused, err := h.lifecycle().Pause(context.Background(), "wf-1")
	require.NoError(t, err)
	assert.Equal(t, models.WorkflowStatusPaused, paused.Status)

	assert.Equal(t, Summary{Skipped: 2, Total: 2}, h.run())

	workflow, resumed, err := h.lifecycle().Activate(context.Background(), "wf-1")
	require.NoError(t, err)
	assert.Equal(t, models.WorkflowStatusActive, workflow.Status)
	assert.Equal(t, 2, resumed)

	assert.Equal(t, Summary{Processed: 2, Total: 2}, h.run())
}

func TestLifecycleService_ActivateValidatesGraph(t *testing.T) {
	tests := []struct {
		name     string
		workflow func(*models.Workflow)
		nodes    []*models.WorkflowNode
		contains string
	}{
		{
			name:     "no nodes",
			contains: "no nodes",
		},
		{
			name: "no start",
			nodes: []*models.WorkflowNode{
				testutil.CreateTestNode("wf-1", "end", models.EndConfig{}),
			},
			contains: models.ErrMissingStartNode.Error(),
		},
		{
			name: "dangling edge",
			nodes: []*models.WorkflowNode{
				testutil.CreateTestNode("wf-1", "start", models.StartConfig{}, testutil.WithNext("ghost")),
			},
			contains: models.ErrDanglingEdge.Error(),
		},
		{
			name:     "list trigger without list",
			workflow: func(w *models.Workflow) { w.Trigger = models.Trigger{Type: models.TriggerTypeListAdded} },
			nodes: []*models.WorkflowNode{
				testutil.CreateTestNode("wf-1", "start", models.StartConfig{}),
			},
			contains: ErrNoSourceList.Error(),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)

			workflow := testutil.CreateTestWorkflow(func(w *models.Workflow) {
				w.ID = "wf-1"
				w.Status = models.WorkflowStatusDraft
			})
			if tt.workflow != nil {
				tt.workflow(workflow)
			}

			testutil.SeedWorkflow(t, h.store, workflow, tt.nodes...)

			_, _, err := h.lifecycle().Activate(context.Background(), "wf-1")
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.contains)

			stored, err := h.store.WorkflowByID(context.Background(), "wf-1")
			require.NoError(t, err)
			assert.Equal(t, models.WorkflowStatusDraft, stored.Status)
		})
	}
}
