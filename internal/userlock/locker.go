// Package userlock serializes event processing per user. Concurrent
// deliveries for the same user would interleave group-rule application and
// break last-rule-wins ordering, so the orchestrator can hold a per-user
// lock for the duration of one event's pipeline.
package userlock

import (
	"context"
	"sync"
	"time"
)

// UnlockFunc releases a held lock.
type UnlockFunc func()

type Locker interface {
	// Lock blocks until the key's lock is acquired or ctx is done.
	Lock(ctx context.Context, key string, ttl time.Duration) (UnlockFunc, error)
}

// NoopLocker disables per-user serialization.
type NoopLocker struct{}

func (NoopLocker) Lock(ctx context.Context, key string, ttl time.Duration) (UnlockFunc, error) {
	return func() {}, nil
}

// MutexLocker serializes within a single process using reference-counted
// per-key mutexes.
type MutexLocker struct {
	mu    sync.Mutex
	locks map[string]*refLock
}

type refLock struct {
	mu   chan struct{}
	refs int
}

func NewMutexLocker() *MutexLocker {
	return &MutexLocker{locks: map[string]*refLock{}}
}

func (l *MutexLocker) Lock(ctx context.Context, key string, ttl time.Duration) (UnlockFunc, error) {
	l.mu.Lock()
	entry, ok := l.locks[key]
	if !ok {
		entry = &refLock{mu: make(chan struct{}, 1)}
		l.locks[key] = entry
	}
	entry.refs++
	l.mu.Unlock()

	select {
	case entry.mu <- struct{}{}:
	case <-ctx.Done():
		l.release(key, entry, false)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			l.release(key, entry, true)
		})
	}, nil
}

func (l *MutexLocker) release(key string, entry *refLock, held bool) {
	if held {
		<-entry.mu
	}
	l.mu.Lock()
	entry.refs--
	if entry.refs == 0 {
		delete(l.locks, key)
	}
	l.mu.Unlock()
}
