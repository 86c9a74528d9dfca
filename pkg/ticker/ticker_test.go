package ticker

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noop(context.Context) error { return nil }

func TestTicker_AddValidates(t *testing.T) {
	ticker := New(slog.Default())

	tests := []struct {
		name string
		job  Job
		err  string
	}{
		{"missing name", Job{Spec: "@every 1m", Run: noop}, "name is required"},
		{"missing function", Job{Name: "batch", Spec: "@every 1m"}, "has no function"},
		{"bad spec", Job{Name: "batch", Spec: "every minute", Run: noop}, "invalid schedule"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ticker.Add(tt.job)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.err)
		})
	}

	require.NoError(t, ticker.Add(Job{Name: "batch", Spec: "*/5 * * * *", Run: noop}))

	err := ticker.Add(Job{Name: "batch", Spec: "@every 1m", Run: noop})
	assert.ErrorContains(t, err, "already registered")
}

func TestTicker_RunsJobs(t *testing.T) {
	ticker := New(slog.Default())

	var runs, failures atomic.Int32

	require.NoError(t, ticker.Add(Job{Name: "batch", Spec: "@every 1s", Run: func(context.Context) error {
		runs.Add(1)

		return nil
	}}))
	require.NoError(t, ticker.Add(Job{Name: "dispatch", Spec: "@every 1s", Run: func(context.Context) error {
		failures.Add(1)

		return errors.New("provider down")
	}}))

	ticker.Start(context.Background())

	assert.Eventually(t, func() bool { return runs.Load() > 0 && failures.Load() > 0 }, 3*time.Second, 50*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	ticker.Stop(ctx)
}
