// Package lock provides short-lived, owner-scoped locks keyed by string.
//
// The batch runner locks executions and the dispatcher locks campaigns so that
// overlapping invocations, in one process or across replicas, never work on
// the same key at the same time.
package lock

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Locker acquires and releases keyed locks. A lock expires after its TTL even
// if its owner never releases it.
type Locker interface {
	// TryLock returns a release function when the lock was acquired, and
	// ok=false when another owner holds it.
	TryLock(ctx context.Context, key string, ttl time.Duration) (release func(context.Context) error, ok bool, err error)
}

type held struct {
	owner string
	until time.Time
}

// Local is an in-process Locker.
type Local struct {
	mu    sync.Mutex
	locks map[string]held
	now   func() time.Time
}

func NewLocal() *Local {
	return &Local{locks: make(map[string]held), now: time.Now}
}

func (l *Local) TryLock(_ context.Context, key string, ttl time.Duration) (func(context.Context) error, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if current, ok := l.locks[key]; ok && current.until.After(now) {
		return nil, false, nil
	}

	owner := uuid.NewString()
	l.locks[key] = held{owner: owner, until: now.Add(ttl)}

	return func(context.Context) error {
		l.mu.Lock()
		defer l.mu.Unlock()

		if current, ok := l.locks[key]; ok && current.owner == owner {
			delete(l.locks, key)
		}

		return nil
	}, true, nil
}
