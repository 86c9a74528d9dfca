package main

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/dukex/cadence/pkg/channels/gochannel"
	"github.com/dukex/cadence/pkg/eventbus"
	"github.com/dukex/cadence/pkg/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.buf.String()
}

func TestSubscribeFailures_LogsFailedExecutions(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pub, sub, err := gochannel.CreateChannel(watermill.NopLogger{})
	require.NoError(t, err)

	bus := eventbus.NewWatermillEventBus(pub, sub)

	defer func() {
		assert.NoError(t, bus.Close())
	}()

	var out lockedBuffer
	logger := slog.New(slog.NewJSONHandler(&out, nil))

	require.NoError(t, subscribeFailures(ctx, bus, logger))

	require.NoError(t, bus.Publish(ctx, "contact-1", events.MessageSent{
		BaseEvent: events.NewBaseEvent(bus.GenerateID(), events.MessageSentEvent, "wf-1", time.Now()),
		ContactID: "contact-1",
	}))
	require.NoError(t, bus.Publish(ctx, "contact-1", events.ExecutionFailed{
		BaseEvent:   events.NewBaseEvent(bus.GenerateID(), events.ExecutionFailedEvent, "wf-1", time.Now()),
		ExecutionID: "exec-1",
		ContactID:   "contact-1",
		NodeID:      "email-1",
		Error:       "provider unavailable",
		RetryCount:  4,
	}))

	require.Eventually(t, func() bool {
		return strings.Contains(out.String(), `"msg":"Execution failed"`)
	}, 2*time.Second, 10*time.Millisecond)

	logged := out.String()
	assert.Contains(t, logged, `"execution_id":"exec-1"`)
	assert.Contains(t, logged, `"workflow_id":"wf-1"`)
	assert.Contains(t, logged, `"retry_count":4`)
	assert.Contains(t, logged, `"error":"provider unavailable"`)
	assert.Equal(t, 1, strings.Count(logged, "\n"), "only the failure is logged")
}
