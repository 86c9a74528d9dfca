package lock

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// releaseScript deletes the key only while it still holds the caller's token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Redis is a Locker shared by every process connected to the same server.
type Redis struct {
	client redis.UniversalClient
	prefix string
}

func NewRedis(client redis.UniversalClient, prefix string) *Redis {
	return &Redis{client: client, prefix: prefix}
}

// NewRedisFromURL connects to a redis:// URL.
func NewRedisFromURL(ctx context.Context, url, prefix string) (*Redis, error) {
	options, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}

	client := redis.NewClient(options)

	err = client.Ping(ctx).Err()
	if err != nil {
		_ = client.Close()

		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	return NewRedis(client, prefix), nil
}

func (r *Redis) TryLock(ctx context.Context, key string, ttl time.Duration) (func(context.Context) error, bool, error) {
	fullKey := r.prefix + key
	token := uuid.NewString()

	ok, err := r.client.SetNX(ctx, fullKey, token, ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("failed to acquire lock %s: %w", key, err)
	}

	if !ok {
		return nil, false, nil
	}

	return func(ctx context.Context) error {
		err := releaseScript.Run(ctx, r.client, []string{fullKey}, token).Err()
		if err != nil {
			return fmt.Errorf("failed to release lock %s: %w", key, err)
		}

		return nil
	}, true, nil
}

func (r *Redis) Close() error {
	return r.client.Close()
}
