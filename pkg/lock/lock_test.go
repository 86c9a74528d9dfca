package lock

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func exerciseLocker(t *testing.T, locker Locker, expire func(time.Duration)) {
	t.Helper()

	ctx := context.Background()

	release, ok, err := locker.TryLock(ctx, "campaign:1", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	_, ok, err = locker.TryLock(ctx, "campaign:1", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok, "held lock must not be acquired twice")

	_, ok, err = locker.TryLock(ctx, "campaign:2", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok, "locks are per key")

	require.NoError(t, release(ctx))

	releaseAgain, ok, err := locker.TryLock(ctx, "campaign:1", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	expire(2 * time.Minute)

	_, ok, err = locker.TryLock(ctx, "campaign:1", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok, "expired lock can be taken over")

	// The stale owner must not release the new owner's lock.
	require.NoError(t, releaseAgain(ctx))

	_, ok, err = locker.TryLock(ctx, "campaign:1", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestLocal(t *testing.T) {
	locker := NewLocal()
	current := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	locker.now = func() time.Time { return current }

	exerciseLocker(t, locker, func(d time.Duration) { current = current.Add(d) })
}

func TestRedis(t *testing.T) {
	server := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	locker := NewRedis(client, "cadence:lock:")

	exerciseLocker(t, locker, server.FastForward)

	assert.True(t, server.Exists("cadence:lock:campaign:1"))
}

func TestNewRedisFromURL(t *testing.T) {
	server := miniredis.RunT(t)

	locker, err := NewRedisFromURL(context.Background(), "redis://"+server.Addr(), "test:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = locker.Close() })

	_, ok, err := locker.TryLock(context.Background(), "k", time.Second)
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = NewRedisFromURL(context.Background(), "not a url", "test:")
	assert.Error(t, err)
}
