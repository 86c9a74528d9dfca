//go:build integration

package kafka_test

import (
	"context"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/dukex/cadence/pkg/channels/kafka"
	"github.com/dukex/cadence/pkg/eventbus"
	"github.com/dukex/cadence/pkg/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tckafka "github.com/testcontainers/testcontainers-go/modules/kafka"
)

func setupBrokers(t *testing.T) []string {
	t.Helper()

	ctx := context.Background()

	container, err := tckafka.Run(ctx, "confluentinc/confluent-local:7.5.0", tckafka.WithClusterID("test-cluster"))
	testcontainers.CleanupContainer(t, container)
	require.NoError(t, err)

	brokers, err := container.Brokers(ctx)
	require.NoError(t, err)

	return brokers
}

func TestCreateChannel_DeliversThroughEventBus(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	pub, sub, err := kafka.CreateChannel(watermill.NopLogger{}, setupBrokers(t), "integration")
	require.NoError(t, err)

	bus := eventbus.NewWatermillEventBus(pub, sub)

	defer func() {
		assert.NoError(t, bus.Close())
	}()

	received := make(chan *events.CampaignDispatched, 1)

	require.NoError(t, bus.Handle(events.CampaignDispatchedEvent, func(_ context.Context, event any) error {
		received <- event.(*events.CampaignDispatched)

		return nil
	}))

	err = bus.Publish(ctx, "camp-1", events.CampaignDispatched{
		BaseEvent:  events.NewBaseEvent(bus.GenerateID(), events.CampaignDispatchedEvent, "", time.Now()),
		CampaignID: "camp-1",
		Sent:       3,
	})
	require.NoError(t, err)

	require.NoError(t, bus.Subscribe(ctx))

	select {
	case event := <-received:
		assert.Equal(t, "camp-1", event.CampaignID)
		assert.Equal(t, 3, event.Sent)
	case <-ctx.Done():
		t.Fatal("event was not delivered")
	}
}
