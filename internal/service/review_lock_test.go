package service

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func TestLocalReviewLockerExcludesSameBounty(t *testing.T) {
	locker := NewLocalReviewLocker()
	ctx := context.Background()

	release, ok, err := locker.TryLock(ctx, "b-1")
	require.NoError(t, err)
	require.True(t, ok)

	_, ok, err = locker.TryLock(ctx, "b-1")
	require.NoError(t, err)
	require.False(t, ok)

	otherRelease, ok, err := locker.TryLock(ctx, "b-2")
	require.NoError(t, err)
	require.True(t, ok)
	otherRelease()

	release()
	release()

	release, ok, err = locker.TryLock(ctx, "b-1")
	require.NoError(t, err)
	require.True(t, ok)
	release()
}

func TestRedisReviewLockerSharesLockAcrossInstances(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	first := NewRedisReviewLocker(client, time.Minute)
	second := NewRedisReviewLocker(client, time.Minute)
	ctx := context.Background()

	release, ok, err := first.TryLock(ctx, "b-1")
	require.NoError(t, err)
	require.True(t, ok)
	require.True(t, mr.Exists("monquest:review-lock:b-1"))

	_, ok, err = second.TryLock(ctx, "b-1")
	require.NoError(t, err)
	require.False(t, ok)

	release()
	require.False(t, mr.Exists("monquest:review-lock:b-1"))

	release, ok, err = second.TryLock(ctx, "b-1")
	require.NoError(t, err)
	require.True(t, ok)
	release()
}

func TestRedisReviewLockerExpiresAndKeepsNewOwner(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	locker := NewRedisReviewLocker(client, time.Second)
	ctx := context.Background()

	staleRelease, ok, err := locker.TryLock(ctx, "b-1")
	require.NoError(t, err)
	require.True(t, ok)

	mr.FastForward(2 * time.Second)

	release, ok, err := locker.TryLock(ctx, "b-1")
	require.NoError(t, err)
	require.True(t, ok)

	// The expired holder must not delete the new owner's key.
	staleRelease()
	require.True(t, mr.Exists("monquest:review-lock:b-1"))
	release()
}

func TestRedisReviewLockerReportsBackendErrors(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	mr.Close()

	_, ok, err := NewRedisReviewLocker(client, time.Minute).TryLock(context.Background(), "b-1")
	require.Error(t, err)
	require.False(t, ok)
}
