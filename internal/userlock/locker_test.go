package userlock

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestMutexLockerSerializesSameKey(t *testing.T) {
	locker := NewMutexLocker()

	var mu sync.Mutex
	var active, maxActive int

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock, err := locker.Lock(context.Background(), "user-1", time.Second)
			require.NoError(t, err)
			defer unlock()

			mu.Lock()
			active++
			if active > maxActive {
				maxActive = active
			}
			mu.Unlock()

			time.Sleep(time.Millisecond)

			mu.Lock()
			active--
			mu.Unlock()
		}()
	}
	wg.Wait()

	require.Equal(t, 1, maxActive, "only one holder per key at a time")
	require.Empty(t, locker.locks, "entries are reclaimed once released")
}

func TestMutexLockerDistinctKeysDoNotBlock(t *testing.T) {
	locker := NewMutexLocker()

	unlockA, err := locker.Lock(context.Background(), "user-a", time.Second)
	require.NoError(t, err)
	defer unlockA()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	unlockB, err := locker.Lock(ctx, "user-b", time.Second)
	require.NoError(t, err)
	unlockB()
}

func TestMutexLockerRespectsContext(t *testing.T) {
	locker := NewMutexLocker()

	unlock, err := locker.Lock(context.Background(), "user-1", time.Second)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = locker.Lock(ctx, "user-1", time.Second)
	require.ErrorIs(t, err, context.DeadlineExceeded)

	unlock()
	require.Empty(t, locker.locks)
}

func TestMutexLockerUnlockIsReentrantSafe(t *testing.T) {
	locker := NewMutexLocker()

	unlock, err := locker.Lock(context.Background(), "user-1", time.Second)
	require.NoError(t, err)
	unlock()
	unlock() // second call is a no-op

	next, err := locker.Lock(context.Background(), "user-1", time.Second)
	require.NoError(t, err)
	next()
}

func TestNoopLocker(t *testing.T) {
	unlock, err := NoopLocker{}.Lock(context.Background(), "user-1", time.Second)
	require.NoError(t, err)
	unlock()
}
