package cmd

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/dukex/cadence/pkg/channels/kafka"
	"github.com/dukex/cadence/pkg/lock"
	"github.com/dukex/cadence/pkg/models"
	"github.com/dukex/cadence/pkg/persistence/memory"
	"github.com/dukex/cadence/pkg/senders"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	cli "github.com/urfave/cli/v3"
)

func TestNewPersistence(t *testing.T) {
	store, err := NewPersistence(context.Background(), slog.Default(), "memory://")
	require.NoError(t, err)
	assert.IsType(t, &memory.Store{}, store)

	for _, url := range []string{"mysql://localhost/db", "./data", ""} {
		_, err := NewPersistence(context.Background(), slog.Default(), url)
		assert.Error(t, err, url)
	}
}

func TestNewEventBus(t *testing.T) {
	bus, err := NewEventBus("gochannel", "", "cadence-test", slog.Default())
	require.NoError(t, err)
	require.NoError(t, bus.Close())

	_, err = NewEventBus("kafka", " , ", "cadence-test", slog.Default())
	assert.ErrorIs(t, err, kafka.ErrNoBrokers)

	_, err = NewEventBus("rabbitmq", "", "cadence-test", slog.Default())
	assert.ErrorContains(t, err, "unsupported event bus provider")
}

func TestNewLocker(t *testing.T) {
	locker, closeLocker, err := NewLocker(context.Background(), "")
	require.NoError(t, err)
	assert.IsType(t, &lock.Local{}, locker)
	require.NoError(t, closeLocker())

	server := miniredis.RunT(t)

	locker, closeLocker, err = NewLocker(context.Background(), "redis://"+server.Addr())
	require.NoError(t, err)
	assert.IsType(t, &lock.Redis{}, locker)

	_, ok, err := locker.TryLock(context.Background(), "campaign:c-1", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.True(t, server.Exists("cadence:lock:campaign:c-1"))
	require.NoError(t, closeLocker())
}

func TestNewSenders_UnconfiguredChannelsFail(t *testing.T) {
	sender, resolver := NewSenders(SenderConfig{})

	_, err := sender.Send(context.Background(), senders.Message{Channel: models.ChannelEmail})
	assert.ErrorIs(t, err, senders.ErrChannelNotSupported)

	_, err = resolver.ResolveNetworkID(context.Background(), "https://network.example.com/in/ana")
	assert.ErrorIs(t, err, senders.ErrChannelNotSupported)

	_, resolver = NewSenders(SenderConfig{NetworkAPIURL: "http://127.0.0.1:1"})
	assert.IsType(t, &senders.NetworkSender{}, resolver)
}

func TestEngineConfigFromCommand(t *testing.T) {
	var config EngineConfig

	command := &cli.Command{
		Name:  "test",
		Flags: EngineFlags(),
		Action: func(_ context.Context, command *cli.Command) error {
			config = EngineConfigFromCommand(command, "cadence-test")

			return nil
		},
	}

	err := command.Run(context.Background(), []string{
		"test",
		"--database-url", "memory://",
		"--batch-size", "7",
		"--send-delay-max", "30s",
		"--smtp-host", "smtp.example.com",
	})
	require.NoError(t, err)

	assert.Equal(t, "memory://", config.DatabaseURL)
	assert.Equal(t, "gochannel", config.EventBus)
	assert.Equal(t, 7, config.Workflow.BatchSize)
	assert.Equal(t, 4, config.Workflow.Concurrency)
	assert.Equal(t, 3, config.Workflow.MaxRetries)
	assert.Equal(t, 10*time.Second, config.SendDelayMin)
	assert.Equal(t, 30*time.Second, config.SendDelayMax)
	assert.Equal(t, "smtp.example.com", config.Senders.SMTP.Host)
	assert.Equal(t, 587, config.Senders.SMTP.Port)
	assert.InDelta(t, 5.0, config.Senders.SendRate, 0.001)
}

func TestNewEngine(t *testing.T) {
	ctx := context.Background()

	engine, err := NewEngine(ctx, EngineConfig{
		ServiceName: "cadence-test",
		DatabaseURL: "memory://",
		EventBus:    "gochannel",
	}, slog.Default())
	require.NoError(t, err)

	summary, err := engine.Runner.Run(ctx, models.ExecutionFilter{})
	require.NoError(t, err)
	assert.Zero(t, summary.Total)

	dispatched, err := engine.Dispatcher.Process(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, dispatched.Results)

	require.NoError(t, engine.Close(ctx))
	require.NoError(t, engine.Close(ctx), "closing twice is harmless")

	_, err = NewEngine(ctx, EngineConfig{DatabaseURL: "memory://", EventBus: "nats"}, slog.Default())
	assert.Error(t, err)
}
