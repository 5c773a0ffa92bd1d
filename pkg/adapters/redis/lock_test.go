package redis_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	backend "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lattice-run/lattice/pkg/adapters/redis"
)

func TestLocker_LockUnlock(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	client := backend.NewClient(&backend.Options{Addr: mr.Addr()})
	locker := redis.NewLocker(client, "test:")
	ctx := context.Background()

	unlock, err := locker.Lock(ctx, "sess-1", 5*time.Second)
	require.NoError(t, err)
	require.NotNil(t, unlock)
	assert.True(t, mr.Exists("test:lock:sess-1"))

	require.NoError(t, unlock(ctx))
	assert.False(t, mr.Exists("test:lock:sess-1"))
}

func TestLocker_ContendedLockTimesOut(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	client := backend.NewClient(&backend.Options{Addr: mr.Addr()})
	locker := redis.NewLocker(client, "test:")

	unlock, err := locker.Lock(context.Background(), "sess-1", 5*time.Second)
	require.NoError(t, err)
	defer unlock(context.Background())

	// A second holder cannot acquire the same key before the deadline.
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	_, err = locker.Lock(ctx, "sess-1", 5*time.Second)
	assert.ErrorIs(t, err, redis.ErrLockAcquire)
}

func TestLocker_UnlockOnlyRemovesOwnLock(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	client := backend.NewClient(&backend.Options{Addr: mr.Addr()})
	locker := redis.NewLocker(client, "test:")
	ctx := context.Background()

	unlock, err := locker.Lock(ctx, "sess-1", 50*time.Millisecond)
	require.NoError(t, err)

	// The lock expires and another holder takes it over.
	mr.FastForward(100 * time.Millisecond)
	unlock2, err := locker.Lock(ctx, "sess-1", 5*time.Second)
	require.NoError(t, err)

	// The stale holder's unlock is a no-op on the new holder's lock.
	require.NoError(t, unlock(ctx))
	assert.True(t, mr.Exists("test:lock:sess-1"))

	require.NoError(t, unlock2(ctx))
	assert.False(t, mr.Exists("test:lock:sess-1"))
}
