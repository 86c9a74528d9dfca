package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dukex/cadence/pkg/lock"
	"github.com/dukex/cadence/pkg/models"
	"github.com/dukex/cadence/pkg/otelhelper"
	"golang.org/x/sync/errgroup"
)

// Summary is the result of one batch.
type Summary struct {
	Processed int `json:"processed"`
	Skipped   int `json:"skipped"`
	Failed    int `json:"failed"`
	Total     int `json:"total"`
}

func (s *Summary) add(outcome Outcome) {
	switch outcome {
	case OutcomeProcessed:
		s.Processed++
	case OutcomeSkipped:
		s.Skipped++
	case OutcomeFailed:
		s.Failed++
	}
}

// Runner is the batch entry point of the engine.
type Runner struct {
	store    Store
	advancer *Advancer
	locker   lock.Locker
	metrics  *otelhelper.Metrics
	config   Config
	logger   *slog.Logger
}

func NewRunner(store Store, advancer *Advancer, config Config, logger *slog.Logger) *Runner {
	return &Runner{
		store:    store,
		advancer: advancer,
		metrics:  otelhelper.NewMetrics(),
		config:   config.withDefaults(),
		logger:   logger.With("module", "workflow_runner"),
	}
}

// WithLocker adds a per-execution lock taken before the store claim, for
// deployments where replicas share a lock server.
func (r *Runner) WithLocker(locker lock.Locker) *Runner {
	r.locker = locker

	return r
}

// Run advances every due execution matching filter, up to the batch size.
// Per-execution faults are counted, never returned; the error reports that
// the batch could not run at all.
func (r *Runner) Run(ctx context.Context, filter models.ExecutionFilter) (Summary, error) {
	started := time.Now()
	now := r.config.Now()

	due, err := r.store.DueExecutions(ctx, now, filter, r.config.BatchSize)
	if err != nil {
		return Summary{}, fmt.Errorf("failed to query due executions: %w", err)
	}

	summary := Summary{Total: len(due)}
	if len(due) == 0 {
		return summary, nil
	}

	var mu sync.Mutex

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(r.config.Concurrency)

	for _, execution := range due {
		group.Go(func() error {
			outcome := r.handle(groupCtx, execution.ID, now)
			r.metrics.ExecutionHandled(groupCtx, string(outcome))

			mu.Lock()
			summary.add(outcome)
			mu.Unlock()

			return nil
		})
	}

	_ = group.Wait()

	r.metrics.BatchFinished(ctx, "workflow", time.Since(started).Seconds())
	r.logger.InfoContext(ctx, "batch finished",
		"workflow_id", filter.WorkflowID,
		"processed", summary.Processed,
		"skipped", summary.Skipped,
		"failed", summary.Failed,
		"total", summary.Total,
	)

	return summary, nil
}

func (r *Runner) handle(ctx context.Context, executionID string, now time.Time) Outcome {
	logger := r.logger.With("execution_id", executionID)

	if r.locker != nil {
		release, ok, err := r.locker.TryLock(ctx, "execution:"+executionID, r.config.ClaimTTL)
		if err != nil {
			logger.ErrorContext(ctx, "failed to lock execution", "error", err)

			return OutcomeFailed
		}

		if !ok {
			return OutcomeSkipped
		}

		defer func() {
			releaseErr := release(context.WithoutCancel(ctx))
			if releaseErr != nil {
				logger.WarnContext(ctx, "failed to release execution lock", "error", releaseErr)
			}
		}()
	}

	claimed, err := r.store.ClaimExecution(ctx, executionID, now, now.Add(r.config.ClaimTTL))
	if err != nil {
		logger.ErrorContext(ctx, "failed to claim execution", "error", err)

		return OutcomeFailed
	}

	if !claimed {
		logger.DebugContext(ctx, "execution claimed elsewhere")

		return OutcomeSkipped
	}

	execution, err := r.store.ExecutionByID(ctx, executionID)
	if err != nil {
		logger.ErrorContext(ctx, "failed to reload claimed execution", "error", err)

		return OutcomeFailed
	}

	outcome, err := r.advancer.Advance(ctx, execution)
	if err != nil {
		logger.ErrorContext(ctx, "failed to advance execution", "error", err)

		return OutcomeFailed
	}

	return outcome
}
