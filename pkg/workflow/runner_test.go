package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/dukex/cadence/pkg/events"
	"github.com/dukex/cadence/pkg/lock"
	"github.com/dukex/cadence/pkg/models"
	"github.com/dukex/cadence/pkg/nodes"
	"github.com/dukex/cadence/pkg/persistence/memory"
	"github.com/dukex/cadence/pkg/senders"
	"github.com/dukex/cadence/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestRunner_NothingDueIsNoop(t *testing.T) {
	h := newHarness(t)
	contact := testutil.CreateTestContact()
	execution := h.seed(contact, "start", testutil.CreateTestNode("wf-1", "start", models.StartConfig{}))

	h.now = h.now.Add(-time.Minute)

	summary := h.run()
	assert.Equal(t, Summary{}, summary)

	stored := h.execution(execution.ID)
	assert.Equal(t, "start", *stored.CurrentNodeID)
	assert.Nil(t, stored.ClaimedUntil)
	assert.Empty(t, h.store.Logs(execution.ID))
	assert.Empty(t, h.published.types())
}

func TestRunner_IgnoresExecutionsThatAreNotRunning(t *testing.T) {
	h := newHarness(t)
	testutil.SeedWorkflow(t, h.store, testutil.CreateTestWorkflow(func(w *models.Workflow) { w.ID = "wf-1" }),
		testutil.CreateTestNode("wf-1", "start", models.StartConfig{}))

	for i, status := range []models.ExecutionStatus{
		models.ExecutionStatusPaused,
		models.ExecutionStatusCompleted,
		models.ExecutionStatusFailed,
	} {
		testutil.SeedExecution(t, h.store, testutil.CreateTestExecution("wf-1", string(rune('a'+i)), "start", func(e *models.WorkflowExecution) {
			e.Status = status
			e.NextRunAt = h.now.Add(-time.Hour)
		}))
	}

	assert.Equal(t, Summary{}, h.run())
}

func TestRunner_InactiveWorkflowPausesWithoutProcessing(t *testing.T) {
	for _, status := range []models.WorkflowStatus{models.WorkflowStatusPaused, models.WorkflowStatusDraft} {
		t.Run(string(status), func(t *testing.T) {
			h := newHarness(t)
			h.processor = processorFunc(func(context.Context, nodes.Input) (nodes.Result, error) {
				assert.Fail(t, "no node may run for an inactive workflow")

				return nodes.Result{}, nil
			})

			execution := h.seed(testutil.CreateTestContact(), "start",
				testutil.CreateTestNode("wf-1", "start", models.StartConfig{}, testutil.WithNext("end")),
				testutil.CreateTestNode("wf-1", "end", models.EndConfig{}))
			h.setWorkflowStatus(status)

			summary := h.run()
			assert.Equal(t, Summary{Skipped: 1, Total: 1}, summary)

			stored := h.execution(execution.ID)
			assert.Equal(t, models.ExecutionStatusPaused, stored.Status)
			assert.Equal(t, "start", *stored.CurrentNodeID)
			assert.Equal(t, []models.LogAction{models.LogActionWorkflowPaused}, h.actions(execution.ID))
			assert.Equal(t, []events.EventType{events.ExecutionPausedEvent}, h.published.types())

			assert.Equal(t, Summary{}, h.run(), "paused executions are not selected again")
		})
	}
}

func TestRunner_SendEmailWithoutAddressSkipsAndAdvances(t *testing.T) {
	h := newHarness(t)
	contact := testutil.CreateTestContact(func(c *models.Contact) { c.Email = "" })

	execution := h.seed(contact, "email",
		testutil.CreateTestNode("wf-1", "email", models.SendEmailConfig{Subject: "Hi", Body: "Hello"}, testutil.WithNext("wait")),
		testutil.CreateTestNode("wf-1", "wait", models.WaitConfig{Days: 1}, testutil.WithNext("end")),
		testutil.CreateTestNode("wf-1", "end", models.EndConfig{}))

	summary := h.run()
	assert.Equal(t, Summary{Processed: 1, Total: 1}, summary)

	stored := h.execution(execution.ID)
	assert.Equal(t, models.ExecutionStatusRunning, stored.Status)
	assert.Equal(t, "wait", *stored.CurrentNodeID)
	assert.True(t, stored.NextRunAt.Equal(h.now), "skip advances with zero delay")
	assert.Zero(t, stored.RetryCount)
	assert.Equal(t, []models.LogAction{models.LogActionSendEmailSkip}, h.actions(execution.ID))
}

func TestRunner_EndNodeCompletesExecution(t *testing.T) {
	h := newHarness(t)
	execution := h.seed(testutil.CreateTestContact(), "end", testutil.CreateTestNode("wf-1", "end", models.EndConfig{}))

	assert.Equal(t, Summary{Processed: 1, Total: 1}, h.run())

	stored := h.execution(execution.ID)
	assert.Equal(t, models.ExecutionStatusCompleted, stored.Status)
	assert.Equal(t, "end", *stored.CurrentNodeID)
	require.NotNil(t, stored.CompletedAt)
	assert.Equal(t, []events.EventType{events.ExecutionCompletedEvent}, h.published.types())

	h.now = h.now.Add(24 * time.Hour)
	assert.Equal(t, Summary{}, h.run(), "completed executions are never selected again")
}

func TestRunner_NilNextCompletesWithoutCurrentNode(t *testing.T) {
	h := newHarness(t)
	execution := h.seed(testutil.CreateTestContact(), "wait", testutil.CreateTestNode("wf-1", "wait", models.WaitConfig{Hours: 2}))

	assert.Equal(t, Summary{Processed: 1, Total: 1}, h.run())

	stored := h.execution(execution.ID)
	assert.Equal(t, models.ExecutionStatusCompleted, stored.Status)
	assert.Nil(t, stored.CurrentNodeID)
}

func TestRunner_EmptyNextCompletesExecution(t *testing.T) {
	var decoded models.WorkflowNode
	require.NoError(t, json.Unmarshal([]byte(`{"id":"start","workflow_id":"wf-1","kind":"start","next":""}`), &decoded))
	require.NoError(t, models.ValidateGraph([]*models.WorkflowNode{&decoded}))

	testCases := []struct {
		name string
		node *models.WorkflowNode
	}{
		{"decoded from json", &decoded},
		{"built with an empty edge", testutil.CreateTestNode("wf-1", "start", models.StartConfig{}, testutil.WithNext(""))},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness(t)
			execution := h.seed(testutil.CreateTestContact(), "start", tc.node)

			assert.Equal(t, Summary{Processed: 1, Total: 1}, h.run())

			stored := h.execution(execution.ID)
			assert.Equal(t, models.ExecutionStatusCompleted, stored.Status)
			assert.Nil(t, stored.CurrentNodeID)
			assert.Empty(t, stored.ErrorMessage)

			h.now = h.now.Add(time.Hour)
			assert.Equal(t, Summary{}, h.run())
			assert.Equal(t, models.ExecutionStatusCompleted, h.execution(execution.ID).Status)
		})
	}
}

func TestRunner_TransientFaultsRetryWithBackoffThenFail(t *testing.T) {
	h := newHarness(t, func(deps *nodes.Deps) {
		deps.Channels = failingChannels{deps.Channels.(*memory.Store)}
	})

	execution := h.seed(testutil.CreateTestContact(), "email",
		testutil.CreateTestNode("wf-1", "email", models.SendEmailConfig{Body: "Hello"}, testutil.WithNext("end")),
		testutil.CreateTestNode("wf-1", "end", models.EndConfig{}))

	expectedDelays := []time.Duration{time.Minute, 4 * time.Minute, 9 * time.Minute}

	for attempt, delay := range expectedDelays {
		summary := h.run()
		assert.Equal(t, Summary{Failed: 1, Total: 1}, summary)

		stored := h.execution(execution.ID)
		assert.Equal(t, models.ExecutionStatusRunning, stored.Status)
		assert.Equal(t, attempt+1, stored.RetryCount)
		assert.Equal(t, "email", *stored.CurrentNodeID, "a retry stays on the same node")
		assert.True(t, stored.NextRunAt.Equal(h.now.Add(delay)), "attempt %d", attempt+1)
		assert.Contains(t, stored.ErrorMessage, "connection reset by peer")

		h.now = stored.NextRunAt
	}

	summary := h.run()
	assert.Equal(t, Summary{Failed: 1, Total: 1}, summary)

	stored := h.execution(execution.ID)
	assert.Equal(t, models.ExecutionStatusFailed, stored.Status)
	assert.Contains(t, stored.ErrorMessage, "connection reset by peer")

	assert.Equal(t, []models.LogAction{
		models.LogActionRetry,
		models.LogActionRetry,
		models.LogActionRetry,
		models.LogActionMaxRetries,
	}, h.actions(execution.ID))

	var delays []any
	for _, entry := range h.store.Logs(execution.ID)[:3] {
		delays = append(delays, entry.Detail["delay_ms"])
	}

	assert.Equal(t, []any{int64(60000), int64(240000), int64(540000)}, delays)
	assert.Equal(t, []events.EventType{events.ExecutionFailedEvent}, h.published.types())

	h.now = h.now.Add(time.Hour)
	assert.Equal(t, Summary{}, h.run())
}

func TestRunner_SuccessfulStepResetsRetryCount(t *testing.T) {
	h := newHarness(t)
	execution := h.seed(testutil.CreateTestContact(), "start",
		testutil.CreateTestNode("wf-1", "start", models.StartConfig{}, testutil.WithNext("end")),
		testutil.CreateTestNode("wf-1", "end", models.EndConfig{}))

	stored := h.execution(execution.ID)
	stored.RetryCount = 2
	stored.ErrorMessage = "earlier fault"
	require.NoError(t, h.store.SaveExecution(context.Background(), stored))

	h.run()

	stored = h.execution(execution.ID)
	assert.Zero(t, stored.RetryCount)
	assert.Empty(t, stored.ErrorMessage)
	assert.Equal(t, "end", *stored.CurrentNodeID)
}

func TestRunner_StructuralFaultsFailImmediately(t *testing.T) {
	t.Run("node not found", func(t *testing.T) {
		h := newHarness(t)
		execution := h.seed(testutil.CreateTestContact(), "ghost", testutil.CreateTestNode("wf-1", "start", models.StartConfig{}))

		assert.Equal(t, Summary{Failed: 1, Total: 1}, h.run())

		stored := h.execution(execution.ID)
		assert.Equal(t, models.ExecutionStatusFailed, stored.Status)
		assert.Equal(t, "node not found", stored.ErrorMessage)
		assert.Zero(t, stored.RetryCount)
		assert.Equal(t, []models.LogAction{models.LogActionNodeNotFound}, h.actions(execution.ID))
	})

	t.Run("contact not found", func(t *testing.T) {
		h := newHarness(t)
		execution := h.seed(testutil.CreateTestContact(), "start", testutil.CreateTestNode("wf-1", "start", models.StartConfig{}))

		orphan := testutil.CreateTestExecution("wf-1", "deleted-contact", "start", func(e *models.WorkflowExecution) {
			e.NextRunAt = h.now
		})
		testutil.SeedExecution(t, h.store, orphan)

		summary := h.run()
		assert.Equal(t, Summary{Processed: 1, Failed: 1, Total: 2}, summary)

		stored := h.execution(orphan.ID)
		assert.Equal(t, models.ExecutionStatusFailed, stored.Status)
		assert.Equal(t, "contact not found", stored.ErrorMessage)
		assert.Equal(t, []models.LogAction{models.LogActionContactNotFound}, h.actions(orphan.ID))

		assert.Equal(t, models.ExecutionStatusCompleted, h.execution(execution.ID).Status, "one fault never aborts the batch")
	})
}

func TestRunner_ClosedScheduleWindowLeavesExecutionDue(t *testing.T) {
	h := newHarness(t)
	execution := h.seed(testutil.CreateTestContact(), "start",
		testutil.CreateTestNode("wf-1", "start", models.StartConfig{}, testutil.WithNext("end")),
		testutil.CreateTestNode("wf-1", "end", models.EndConfig{}))

	saturday := h.now.Add(5 * 24 * time.Hour)
	h.now = saturday

	assert.Equal(t, Summary{Skipped: 1, Total: 1}, h.run())

	stored := h.execution(execution.ID)
	assert.Equal(t, models.ExecutionStatusRunning, stored.Status)
	assert.Equal(t, "start", *stored.CurrentNodeID)
	assert.True(t, stored.NextRunAt.Equal(testutil.Monday10))
	assert.Nil(t, stored.ClaimedUntil)
	assert.Empty(t, h.store.Logs(execution.ID))

	h.now = saturday.Add(48 * time.Hour)
	assert.Equal(t, Summary{Processed: 1, Total: 1}, h.run(), "picked up once the window opens")
}

func TestRunner_LiveClaimIsSkipped(t *testing.T) {
	h := newHarness(t)
	execution := h.seed(testutil.CreateTestContact(), "start", testutil.CreateTestNode("wf-1", "start", models.StartConfig{}))

	claimed, err := h.store.ClaimExecution(context.Background(), execution.ID, h.now, h.now.Add(time.Minute))
	require.NoError(t, err)
	require.True(t, claimed)

	assert.Equal(t, Summary{Skipped: 1, Total: 1}, h.run())
}

func TestRunner_HeldLockIsSkipped(t *testing.T) {
	h := newHarness(t)
	execution := h.seed(testutil.CreateTestContact(), "start", testutil.CreateTestNode("wf-1", "start", models.StartConfig{}))

	locker := lock.NewLocal()
	_, ok, err := locker.TryLock(context.Background(), "execution:"+execution.ID, time.Hour)
	require.NoError(t, err)
	require.True(t, ok)

	summary, err := h.runner().WithLocker(locker).Run(context.Background(), models.ExecutionFilter{})
	require.NoError(t, err)
	assert.Equal(t, Summary{Skipped: 1, Total: 1}, summary)
}

type brokenStore struct {
	*memory.Store
}

func (brokenStore) DueExecutions(context.Context, time.Time, models.ExecutionFilter, int) ([]*models.WorkflowExecution, error) {
	return nil, errors.New("database is down")
}

func TestRunner_QueryFailureIsTopLevelError(t *testing.T) {
	h := newHarness(t)
	store := brokenStore{h.store}

	advancer := NewAdvancer(store, h.processor, h.published, h.config(), slog.Default())
	_, err := NewRunner(store, advancer, h.config(), slog.Default()).Run(context.Background(), models.ExecutionFilter{})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "database is down")
}

func TestRunner_FilterAndBatchSize(t *testing.T) {
	h := newHarness(t)
	h.seed(testutil.CreateTestContact(), "start", testutil.CreateTestNode("wf-1", "start", models.StartConfig{}))

	other := testutil.CreateTestWorkflow(func(w *models.Workflow) { w.ID = "wf-2" })
	testutil.SeedWorkflow(t, h.store, other, testutil.CreateTestNode("wf-2", "start", models.StartConfig{}))

	for range 3 {
		contact := testutil.CreateTestContact()
		require.NoError(t, h.store.SaveContact(context.Background(), contact))
		testutil.SeedExecution(t, h.store, testutil.CreateTestExecution("wf-2", contact.ID, "start", func(e *models.WorkflowExecution) {
			e.NextRunAt = h.now
		}))
	}

	config := h.config()
	config.BatchSize = 2
	config.Concurrency = 2

	advancer := NewAdvancer(h.store, h.processor, h.published, config, slog.Default())
	runner := NewRunner(h.store, advancer, config, slog.Default())

	summary, err := runner.Run(context.Background(), models.ExecutionFilter{WorkflowID: "wf-1"})
	require.NoError(t, err)
	assert.Equal(t, Summary{Processed: 1, Total: 1}, summary)

	summary, err = runner.Run(context.Background(), models.ExecutionFilter{WorkflowID: "wf-2"})
	require.NoError(t, err)
	assert.Equal(t, Summary{Processed: 2, Total: 2}, summary)
}

func TestRunner_FullSequence(t *testing.T) {
	h := newHarness(t)
	contact := testutil.CreateTestContact()

	execution := h.seed(contact, "start",
		testutil.CreateTestNode("wf-1", "start", models.StartConfig{}, testutil.WithNext("email")),
		testutil.CreateTestNode("wf-1", "email", models.SendEmailConfig{
			Subject: "Quick question, {{first_name}}",
			Body:    "Hi {{first_name}}",
		}, testutil.WithNext("wait")),
		testutil.CreateTestNode("wf-1", "wait", models.WaitConfig{Days: 1}, testutil.WithNext("replied?")),
		testutil.CreateTestNode("wf-1", "replied?", models.ConditionConfig{
			Channel:       models.ChannelEmail,
			EventType:     models.EventTypeReplied,
			LookbackHours: 48,
		}, testutil.WithBranches("end", "nurture")),
		testutil.CreateTestNode("wf-1", "nurture", models.ListActionConfig{Action: models.ListActionAdd, ListID: "nurture"}, testutil.WithNext("end")),
		testutil.CreateTestNode("wf-1", "end", models.EndConfig{}))

	h.sender.On("Send", mock.Anything, mock.MatchedBy(func(message senders.Message) bool {
		return message.Subject == "Quick question, Ana"
	})).Return(senders.Receipt{ProviderMessageID: "m-1"}, nil).Once()

	// start, email
	h.run()
	h.run()

	stored := h.execution(execution.ID)
	assert.Equal(t, "wait", *stored.CurrentNodeID)

	// wait schedules the condition one day later
	h.run()

	stored = h.execution(execution.ID)
	assert.Equal(t, "replied?", *stored.CurrentNodeID)
	assert.True(t, stored.NextRunAt.Equal(h.now.Add(24*time.Hour)))

	assert.Equal(t, Summary{}, h.run(), "not due before the wait elapses")

	h.now = stored.NextRunAt

	// no reply: condition routes to nurture, then nurture, then end
	h.run()
	h.run()
	h.run()

	stored = h.execution(execution.ID)
	assert.Equal(t, models.ExecutionStatusCompleted, stored.Status)
	assert.Equal(t, "end", *stored.CurrentNodeID)

	members, err := h.store.ListMembers(context.Background(), "nurture")
	require.NoError(t, err)
	assert.Equal(t, []string{contact.ID}, members)

	assert.Equal(t, []models.LogAction{
		models.LogActionWorkflowStart,
		models.LogActionSendEmailOK,
		models.LogActionWait,
		models.LogActionConditionEval,
		models.LogActionListAdd,
		models.LogActionWorkflowEnd,
	}, h.actions(execution.ID))

	assert.Equal(t, []events.EventType{events.MessageSentEvent, events.ExecutionCompletedEvent}, h.published.types())
}
