package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/dukex/cadence/pkg/persistence"
	"github.com/dukex/cadence/pkg/persistence/memory"
	"github.com/dukex/cadence/pkg/persistence/postgresql"
)

// NewPersistence opens the store named by databaseURL: memory:// keeps
// everything in process, postgres:// and postgresql:// use PostgreSQL.
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) (persistence.Persistence, error) {
	switch parsePersistenceProvider(databaseURL) {
	case "memory":
		logger.WarnContext(ctx, "Using in-memory persistence; state is lost on exit")

		return memory.New(), nil
	case "postgres", "postgresql":
		store, err := postgresql.NewPersistence(ctx, logger, databaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to open postgres persistence: %w", err)
		}

		return store, nil
	default:
		return nil, fmt.Errorf("unsupported persistence provider in %q", databaseURL)
	}
}

func parsePersistenceProvider(databaseURL string) string {
	provider, _, found := strings.Cut(databaseURL, "://")
	if !found {
		return ""
	}

	return provider
}
