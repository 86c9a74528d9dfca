package cmd

import (
	"context"
	"fmt"

	"github.com/dukex/cadence/pkg/lock"
)

// NewLocker returns a Redis lock shared by every replica when redisURL is
// set, and an in-process lock otherwise. close releases the connection.
func NewLocker(ctx context.Context, redisURL string) (lock.Locker, func() error, error) {
	if redisURL == "" {
		return lock.NewLocal(), func() error { return nil }, nil
	}

	locker, err := lock.NewRedisFromURL(ctx, redisURL, "cadence:lock:")
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect lock server: %w", err)
	}

	return locker, locker.Close, nil
}
