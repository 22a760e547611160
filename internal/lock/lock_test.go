// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package lock

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupMiniRedis(t *testing.T, ttl time.Duration) (*miniredis.Miniredis, *RedisLocker) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, newRedisLocker(client, ttl, zerolog.Nop())
}

func TestKeyedMutex(t *testing.T) {
	k := NewKeyedMutex()
	ctx := context.Background()

	lease, err := k.TryLock(ctx, "Dune-m1")
	require.NoError(t, err)
	assert.NoError(t, lease.Err())

	_, err = k.TryLock(ctx, "Dune-m1")
	assert.ErrorIs(t, err, ErrHeld)

	other, err := k.TryLock(ctx, "Dune-m2")
	require.NoError(t, err)
	other.Release()

	lease.Release()
	lease.Release() // idempotent
	assert.NoError(t, lease.Err(), "a released lease is not lost")

	again, err := k.TryLock(ctx, "Dune-m1")
	require.NoError(t, err)
	again.Release()
}

func TestKeyedMutex_ExactlyOneWinner(t *testing.T) {
	k := NewKeyedMutex()
	var winners atomic.Int32
	var wg sync.WaitGroup
	start := make(chan struct{})
	leases := make(chan *Lease, 16)

	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			if lease, err := k.TryLock(context.Background(), "same"); err == nil {
				winners.Add(1)
				leases <- lease
			}
		}()
	}
	close(start)
	wg.Wait()
	close(leases)

	assert.Equal(t, int32(1), winners.Load())
	for lease := range leases {
		lease.Release()
	}
}

func TestRedisLocker_TryLock(t *testing.T) {
	mr, l := setupMiniRedis(t, 30*time.Second)
	ctx := context.Background()

	lease, err := l.TryLock(ctx, "Dune-m1")
	require.NoError(t, err)
	assert.True(t, mr.Exists(keyPrefix+"Dune-m1"))

	_, err = l.TryLock(ctx, "Dune-m1")
	assert.ErrorIs(t, err, ErrHeld)

	lease.Release()
	assert.False(t, mr.Exists(keyPrefix+"Dune-m1"))

	again, err := l.TryLock(ctx, "Dune-m1")
	require.NoError(t, err)
	again.Release()
}

func TestRedisLocker_ReleaseDoesNotDeleteForeignLease(t *testing.T) {
	mr, l := setupMiniRedis(t, 30*time.Second)

	lease, err := l.TryLock(context.Background(), "Dune-m1")
	require.NoError(t, err)

	// Another holder took over after our lease expired.
	require.NoError(t, mr.Set(keyPrefix+"Dune-m1", "someone-else"))
	lease.Release()

	got, err := mr.Get(keyPrefix + "Dune-m1")
	require.NoError(t, err)
	assert.Equal(t, "someone-else", got)
}

func TestRedisLocker_ExpiredLeaseCanBeRetaken(t *testing.T) {
	mr, l := setupMiniRedis(t, time.Minute)

	lease, err := l.TryLock(context.Background(), "Dune-m1")
	require.NoError(t, err)
	defer lease.Release()

	mr.FastForward(2 * time.Minute)

	other, err := l.TryLock(context.Background(), "Dune-m1")
	require.NoError(t, err)
	other.Release()
}

func TestRedisLocker_ServerDown(t *testing.T) {
	mr, l := setupMiniRedis(t, time.Second)
	mr.Close()

	_, err := l.TryLock(context.Background(), "Dune-m1")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrHeld)
}

func TestRedisLocker_LeaseLostWhenKeyTakenOver(t *testing.T) {
	mr, l := setupMiniRedis(t, 300*time.Millisecond)

	lease, err := l.TryLock(context.Background(), "Dune-m1")
	require.NoError(t, err)
	defer lease.Release()
	require.NoError(t, lease.Err())

	require.NoError(t, mr.Set(keyPrefix+"Dune-m1", "someone-else"))

	select {
	case <-lease.Lost():
	case <-time.After(3 * time.Second):
		t.Fatal("lease was not marked lost")
	}
	assert.ErrorIs(t, lease.Err(), ErrLost)
}

func TestRedisLocker_LeaseKeptWhileRefreshed(t *testing.T) {
	mr, l := setupMiniRedis(t, 150*time.Millisecond)

	lease, err := l.TryLock(context.Background(), "Dune-m1")
	require.NoError(t, err)

	time.Sleep(400 * time.Millisecond)
	assert.NoError(t, lease.Err())
	assert.True(t, mr.Exists(keyPrefix+"Dune-m1"))

	lease.Release()
	assert.NoError(t, lease.Err())
}
