package workflow

import (
	"context"
	"testing"
	"time"

	"github.com/dukex/cadence/pkg/events"
	"github.com/dukex/cadence/pkg/models"
	"github.com/dukex/cadence/pkg/persistence"
	"github.com/dukex/cadence/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedStartEnd(h *harness, overrides ...func(*models.Workflow)) *models.Workflow {
	h.t.Helper()

	workflow := testutil.CreateTestWorkflow(append([]func(*models.Workflow){func(w *models.Workflow) { w.ID = "wf-1" }}, overrides...)...)
	testutil.SeedWorkflow(h.t, h.store, workflow,
		testutil.CreateTestNode("wf-1", "start", models.StartConfig{}, testutil.WithNext("end")),
		testutil.CreateTestNode("wf-1", "end", models.EndConfig{}))

	return workflow
}

func saveContacts(h *harness, n int) []string {
	h.t.Helper()

	ids := make([]string, 0, n)

	for range n {
		contact := testutil.CreateTestContact()
		require.NoError(h.t, h.store.SaveContact(context.Background(), contact))
		ids = append(ids, contact.ID)
	}

	return ids
}

func TestEnroller_Enroll(t *testing.T) {
	h := newHarness(t)
	seedStartEnd(h)
	ids := saveContacts(h, 2)

	enrolled, err := h.enroller().Enroll(context.Background(), "wf-1", []string{ids[0], ids[1], ids[0], "unknown"})
	require.NoError(t, err)
	assert.Equal(t, 2, enrolled)

	executions := h.store.Executions()
	require.Len(t, executions, 2)

	for _, execution := range executions {
		assert.Equal(t, models.ExecutionStatusRunning, execution.Status)
		assert.Equal(t, "start", *execution.CurrentNodeID)
		assert.True(t, execution.NextRunAt.Equal(h.now))
		assert.Zero(t, execution.RetryCount)
		assert.Equal(t, []models.LogAction{models.LogActionEnrolled}, h.actions(execution.ID))
	}

	assert.Equal(t, []events.EventType{events.ExecutionEnrolledEvent, events.ExecutionEnrolledEvent}, h.published.types())

	again, err := h.enroller().Enroll(context.Background(), "wf-1", ids)
	require.NoError(t, err)
	assert.Zero(t, again, "a contact is enrolled at most once per workflow")

	assert.Equal(t, Summary{Processed: 2, Total: 2}, h.run(), "enrolled executions are due immediately")
}

func TestEnroller_RejectsInactiveOrBrokenWorkflows(t *testing.T) {
	t.Run("inactive", func(t *testing.T) {
		h := newHarness(t)
		seedStartEnd(h, testutil.WithStatus(models.WorkflowStatusDraft))

		_, err := h.enroller().Enroll(context.Background(), "wf-1", saveContacts(h, 1))
		assert.ErrorIs(t, err, ErrWorkflowInactive)
		assert.Empty(t, h.store.Executions())
	})

	t.Run("missing workflow", func(t *testing.T) {
		h := newHarness(t)

		_, err := h.enroller().Enroll(context.Background(), "nope", nil)
		assert.True(t, persistence.IsWorkflowNotFound(err))
	})

	t.Run("no start node", func(t *testing.T) {
		h := newHarness(t)
		testutil.SeedWorkflow(t, h.store, testutil.CreateTestWorkflow(func(w *models.Workflow) { w.ID = "wf-1" }),
			testutil.CreateTestNode("wf-1", "end", models.EndConfig{}))

		_, err := h.enroller().Enroll(context.Background(), "wf-1", saveContacts(h, 1))
		assert.ErrorIs(t, err, models.ErrMissingStartNode)
	})
}

func TestEnroller_EnrollFromList(t *testing.T) {
	h := newHarness(t)
	seedStartEnd(h, testutil.WithSourceList("webinar"))

	ids := saveContacts(h, 3)
	for _, id := range ids {
		require.NoError(t, h.store.AddToList(context.Background(), "webinar", models.Contact{ID: id}))
	}

	enrolled, err := h.enroller().EnrollFromList(context.Background(), "wf-1")
	require.NoError(t, err)
	assert.Equal(t, 3, enrolled)

	manual := newHarness(t)
	seedStartEnd(manual)

	_, err = manual.enroller().EnrollFromList(context.Background(), "wf-1")
	assert.ErrorIs(t, err, ErrNoSourceList)
}

func TestEnroller_Resume(t *testing.T) {
	h := newHarness(t)
	seedStartEnd(h)
	ids := saveContacts(h, 1)

	_, err := h.enroller().Enroll(context.Background(), "wf-1", ids)
	require.NoError(t, err)

	h.setWorkflowStatus(models.WorkflowStatusPaused)
	assert.Equal(t, Summary{Skipped: 1, Total: 1}, h.run())

	resumed, err := h.enroller().Resume(context.Background(), "wf-1")
	assert.ErrorIs(t, err, ErrWorkflowInactive)
	assert.Zero(t, resumed)

	h.setWorkflowStatus(models.WorkflowStatusActive)
	h.now = h.now.Add(time.Hour)

	resumed, err = h.enroller().Resume(context.Background(), "wf-1")
	require.NoError(t, err)
	assert.Equal(t, 1, resumed)

	execution := h.store.Executions()[0]
	assert.Equal(t, models.ExecutionStatusRunning, execution.Status)
	assert.True(t, execution.NextRunAt.Equal(h.now))
	assert.Contains(t, h.published.types(), events.ExecutionResumedEvent)

	resumed, err = h.enroller().Resume(context.Background(), "wf-1")
	require.NoError(t, err)
	assert.Zero(t, resumed)
}
