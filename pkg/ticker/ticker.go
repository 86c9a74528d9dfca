// Package ticker runs the periodic jobs of the worker on cron specs.
package ticker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// Job is one periodic task. Spec accepts standard five-field expressions and
// descriptors such as "@every 1m".
type Job struct {
	Name string
	Spec string
	Run  func(ctx context.Context) error
}

// Ticker schedules jobs; a job never overlaps with its own previous run.
type Ticker struct {
	logger *slog.Logger
	cron   *cron.Cron
	jobs   map[string]cron.EntryID
	mutex  sync.Mutex
	ctx    context.Context
	cancel context.CancelFunc
}

func New(logger *slog.Logger) *Ticker {
	logger = logger.With("module", "ticker")
	adapter := cronLogger{logger: logger}

	return &Ticker{
		logger: logger,
		cron: cron.New(
			cron.WithLogger(adapter),
			cron.WithChain(
				cron.SkipIfStillRunning(adapter),
				cron.Recover(adapter),
			),
		),
		jobs: make(map[string]cron.EntryID),
	}
}

// Add registers job. It must be called before Start.
func (t *Ticker) Add(job Job) error {
	if job.Name == "" {
		return errors.New("job name is required")
	}

	if job.Run == nil {
		return fmt.Errorf("job %s has no function", job.Name)
	}

	if _, err := cron.ParseStandard(job.Spec); err != nil {
		return fmt.Errorf("invalid schedule '%s' for job %s: %w", job.Spec, job.Name, err)
	}

	t.mutex.Lock()
	defer t.mutex.Unlock()

	if _, exists := t.jobs[job.Name]; exists {
		return fmt.Errorf("job %s already registered", job.Name)
	}

	entryID, err := t.cron.AddFunc(job.Spec, func() { t.run(job) })
	if err != nil {
		return fmt.Errorf("failed to add job %s: %w", job.Name, err)
	}

	t.jobs[job.Name] = entryID
	t.logger.Info("Added job", "job", job.Name, "schedule", job.Spec, "entry_id", entryID)

	return nil
}

func (t *Ticker) Start(ctx context.Context) {
	t.ctx, t.cancel = context.WithCancel(ctx)
	t.cron.Start()

	t.logger.InfoContext(ctx, "Ticker started", "jobs", len(t.jobs))
}

// Stop prevents new runs and waits for running jobs until ctx is done.
func (t *Ticker) Stop(ctx context.Context) {
	done := t.cron.Stop()

	if t.cancel != nil {
		defer t.cancel()
	}

	select {
	case <-done.Done():
		t.logger.InfoContext(ctx, "Ticker stopped")
	case <-ctx.Done():
		t.logger.WarnContext(ctx, "Ticker stopped before running jobs finished")
	}
}

func (t *Ticker) run(job Job) {
	ctx := t.ctx
	if ctx == nil {
		ctx = context.Background()
	}

	started := time.Now()

	err := job.Run(ctx)
	if err != nil {
		t.logger.ErrorContext(ctx, "Job failed", "job", job.Name, "error", err)

		return
	}

	t.logger.DebugContext(ctx, "Job finished", "job", job.Name, "duration", time.Since(started))
}

// cronLogger routes cron's own messages to slog.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error(msg, append(keysAndValues, "error", err)...)
}
