// Package cmd provides the constructors shared by the command-line binaries.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dukex/cadence/pkg/backoff"
	"github.com/dukex/cadence/pkg/condition"
	"github.com/dukex/cadence/pkg/dispatch"
	"github.com/dukex/cadence/pkg/eventbus"
	"github.com/dukex/cadence/pkg/nodes"
	"github.com/dukex/cadence/pkg/otelhelper"
	"github.com/dukex/cadence/pkg/persistence"
	"github.com/dukex/cadence/pkg/workflow"
)

type EngineConfig struct {
	ServiceName  string
	DatabaseURL  string
	RedisURL     string
	EventBus     string
	KafkaBrokers string
	Workflow     workflow.Config
	SendDelayMin time.Duration
	SendDelayMax time.Duration
	Senders      SenderConfig
	Tracing      bool
}

// Engine is the fully wired engine and campaign dispatcher.
type Engine struct {
	Store      persistence.Persistence
	Bus        eventbus.EventBus
	Runner     *workflow.Runner
	Enroller   *workflow.Enroller
	Lifecycle  *workflow.LifecycleService
	Dispatcher *dispatch.Dispatcher

	closers []func(ctx context.Context) error
}

func NewEngine(ctx context.Context, config EngineConfig, logger *slog.Logger) (*Engine, error) {
	engine := &Engine{}

	if config.Tracing {
		shutdown, err := otelhelper.SetupTracing(ctx, config.ServiceName)
		if err != nil {
			return nil, fmt.Errorf("failed to set up tracing: %w", err)
		}

		engine.closers = append(engine.closers, shutdown)
	}

	store, err := NewPersistence(ctx, logger, config.DatabaseURL)
	if err != nil {
		return nil, errors.Join(err, engine.Close(ctx))
	}

	engine.Store = store
	engine.closers = append(engine.closers, store.Close)

	bus, err := NewEventBus(config.EventBus, config.KafkaBrokers, config.ServiceName, logger)
	if err != nil {
		return nil, errors.Join(err, engine.Close(ctx))
	}

	engine.Bus = bus
	engine.closers = append(engine.closers, func(context.Context) error { return bus.Close() })

	locker, closeLocker, err := NewLocker(ctx, config.RedisURL)
	if err != nil {
		return nil, errors.Join(err, engine.Close(ctx))
	}

	engine.closers = append(engine.closers, func(context.Context) error { return closeLocker() })

	sender, resolver := NewSenders(config.Senders)

	processors := nodes.NewProcessors(nodes.Deps{
		Logs:        store,
		Events:      store,
		Channels:    store,
		Suppression: store,
		Contacts:    store,
		Lists:       store,
		Conditions:  condition.NewEvaluator(store, store, logger),
		Sender:      sender,
		Resolver:    resolver,
		Pacing:      backoff.NewWindow(config.SendDelayMin, config.SendDelayMax),
		Logger:      logger,
	})

	advancer := workflow.NewAdvancer(store, processors, bus, config.Workflow, logger)
	engine.Runner = workflow.NewRunner(store, advancer, config.Workflow, logger)
	engine.Enroller = workflow.NewEnroller(store, bus, config.Workflow, logger)
	engine.Lifecycle = workflow.NewLifecycleService(store, engine.Enroller, config.Workflow, logger)

	dispatchConfig := dispatch.DefaultConfig()
	dispatchConfig.Now = config.Workflow.Now

	engine.Dispatcher = dispatch.NewDispatcher(store, sender, bus, dispatchConfig, logger).
		WithResolver(resolver).
		WithLocker(locker)

	if config.RedisURL != "" {
		engine.Runner.WithLocker(locker)
	}

	return engine, nil
}

// Close releases everything in reverse order of creation.
func (e *Engine) Close(ctx context.Context) error {
	var errs []error

	for i := len(e.closers) - 1; i >= 0; i-- {
		errs = append(errs, e.closers[i](ctx))
	}

	e.closers = nil

	return errors.Join(errs...)
}
