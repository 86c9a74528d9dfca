// Package workflow advances contacts through workflow graphs.
//
// The Runner selects due executions in bounded batches, claims each one and
// hands it to the Advancer, which runs exactly one node and persists where the
// execution goes next. The Enroller creates executions and resumes paused ones.
package workflow

import (
	"context"
	"errors"
	"time"

	"github.com/dukex/cadence/pkg/backoff"
	"github.com/dukex/cadence/pkg/nodes"
	"github.com/dukex/cadence/pkg/persistence"
)

var (
	ErrWorkflowInactive = errors.New("workflow is not active")
	ErrNoSourceList     = errors.New("workflow trigger has no source list")
	ErrInvalidWorkflow  = errors.New("workflow cannot be activated")
)

// Store is the persistence surface of the engine.
type Store interface {
	persistence.WorkflowRepository
	persistence.NodeRepository
	persistence.ExecutionRepository
	persistence.LogRepository
	persistence.ContactRepository
	persistence.ListRepository
}

// NodeProcessor runs one node. nodes.Processors is the production implementation.
type NodeProcessor interface {
	Process(ctx context.Context, in nodes.Input) (nodes.Result, error)
}

// Config holds the engine tunables.
type Config struct {
	// BatchSize caps the executions selected per run.
	BatchSize int
	// Concurrency is the number of executions advanced in parallel.
	Concurrency int
	// ClaimTTL bounds how long a crashed worker can hold an execution.
	ClaimTTL time.Duration
	// MaxRetries is the number of retries after a transient fault before the
	// execution is failed.
	MaxRetries int
	Backoff    backoff.Strategy
	Now        func() time.Time
}

func DefaultConfig() Config {
	return Config{
		BatchSize:   100,
		Concurrency: 4,
		ClaimTTL:    5 * time.Minute,
		MaxRetries:  3,
		Backoff:     backoff.DefaultStrategy(),
		Now:         func() time.Time { return time.Now().UTC() },
	}
}

func (c Config) withDefaults() Config {
	defaults := DefaultConfig()

	if c.BatchSize <= 0 {
		c.BatchSize = defaults.BatchSize
	}

	if c.Concurrency <= 0 {
		c.Concurrency = defaults.Concurrency
	}

	if c.ClaimTTL <= 0 {
		c.ClaimTTL = defaults.ClaimTTL
	}

	if c.MaxRetries <= 0 {
		c.MaxRetries = defaults.MaxRetries
	}

	if c.Backoff == nil {
		c.Backoff = defaults.Backoff
	}

	if c.Now == nil {
		c.Now = defaults.Now
	}

	return c
}
