package workflow

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/dukex/cadence/pkg/backoff"
	"github.com/dukex/cadence/pkg/condition"
	"github.com/dukex/cadence/pkg/eventbus"
	"github.com/dukex/cadence/pkg/events"
	"github.com/dukex/cadence/pkg/mocks"
	"github.com/dukex/cadence/pkg/models"
	"github.com/dukex/cadence/pkg/nodes"
	"github.com/dukex/cadence/pkg/persistence/memory"
	"github.com/dukex/cadence/pkg/testutil"
	"github.com/stretchr/testify/require"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []eventbus.Event
}

func (p *recordingPublisher) Publish(_ context.Context, _ string, event eventbus.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.events = append(p.events, event)

	return nil
}

func (p *recordingPublisher) types() []events.EventType {
	p.mu.Lock()
	defer p.mu.Unlock()

	types := make([]events.EventType, 0, len(p.events))
	for _, event := range p.events {
		types = append(types, event.GetType())
	}

	return types
}

type processorFunc func(ctx context.Context, in nodes.Input) (nodes.Result, error)

func (f processorFunc) Process(ctx context.Context, in nodes.Input) (nodes.Result, error) {
	return f(ctx, in)
}

// failingChannels makes every channel lookup fail like an unreachable database.
type failingChannels struct {
	*memory.Store
}

func (failingChannels) ChannelConnection(context.Context, models.Channel) (*models.ChannelConnection, error) {
	return nil, errors.New("connection reset by peer")
}

type harness struct {
	t         *testing.T
	now       time.Time
	store     *memory.Store
	sender    *mocks.MockSender
	resolver  *mocks.MockNetworkResolver
	published *recordingPublisher
	processor NodeProcessor
}

func newHarness(t *testing.T, customize ...func(*nodes.Deps)) *harness {
	t.Helper()

	store := memory.New()
	h := &harness{
		t:         t,
		now:       testutil.Monday10,
		store:     store,
		sender:    &mocks.MockSender{},
		resolver:  &mocks.MockNetworkResolver{},
		published: &recordingPublisher{},
	}

	t.Cleanup(func() {
		h.sender.AssertExpectations(t)
		h.resolver.AssertExpectations(t)
	})

	deps := nodes.Deps{
		Logs:        store,
		Events:      store,
		Channels:    store,
		Suppression: store,
		Contacts:    store,
		Lists:       store,
		Conditions:  condition.NewEvaluator(store, store, slog.Default()),
		Sender:      h.sender,
		Resolver:    h.resolver,
		Pacing:      backoff.Window{},
	}

	for _, fn := range customize {
		fn(&deps)
	}

	h.processor = nodes.NewProcessors(deps)
	testutil.ConnectAllChannels(t, store)

	return h
}

func (h *harness) config() Config {
	config := DefaultConfig()
	config.Now = func() time.Time { return h.now }

	return config
}

func (h *harness) runner() *Runner {
	advancer := NewAdvancer(h.store, h.processor, h.published, h.config(), slog.Default())

	return NewRunner(h.store, advancer, h.config(), slog.Default())
}

func (h *harness) enroller() *Enroller {
	return NewEnroller(h.store, h.published, h.config(), slog.Default())
}

func (h *harness) run() Summary {
	h.t.Helper()

	summary, err := h.runner().Run(context.Background(), models.ExecutionFilter{})
	require.NoError(h.t, err)

	return summary
}

// seed stores an active workflow with graph, a contact and an execution
// positioned on nodeID.
func (h *harness) seed(contact *models.Contact, nodeID string, graph ...*models.WorkflowNode) *models.WorkflowExecution {
	h.t.Helper()

	workflow := testutil.CreateTestWorkflow(func(w *models.Workflow) { w.ID = "wf-1" })
	testutil.SeedWorkflow(h.t, h.store, workflow, graph...)

	require.NoError(h.t, h.store.SaveContact(context.Background(), contact))

	execution := testutil.CreateTestExecution(workflow.ID, contact.ID, nodeID, func(e *models.WorkflowExecution) {
		e.NextRunAt = h.now
	})
	testutil.SeedExecution(h.t, h.store, execution)

	return execution
}

func (h *harness) execution(id string) *models.WorkflowExecution {
	h.t.Helper()

	execution, err := h.store.ExecutionByID(context.Background(), id)
	require.NoError(h.t, err)

	return execution
}

func (h *harness) actions(executionID string) []models.LogAction {
	entries := h.store.Logs(executionID)

	actions := make([]models.LogAction, 0, len(entries))
	for _, entry := range entries {
		actions = append(actions, entry.Action)
	}

	return actions
}

func (h *harness) setWorkflowStatus(status models.WorkflowStatus) {
	h.t.Helper()

	workflow, err := h.store.WorkflowByID(context.Background(), "wf-1")
	require.NoError(h.t, err)

	workflow.Status = status
	require.NoError(h.t, h.store.SaveWorkflow(context.Background(), workflow))
}
