package shared

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newTestLocker(t *testing.T) (*StockLocker, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewStockLocker(client, time.Minute), mr
}

func TestStockKeyString(t *testing.T) {
	key := StockKey{TenantID: 1, ProductID: 42, LocationID: 7}
	require.Equal(t, "stock:1:42:7", key.String())
}

func TestLockAllAcquireAndRelease(t *testing.T) {
	locker, mr := newTestLocker(t)
	ctx := context.Background()

	keys := []StockKey{
		{TenantID: 1, ProductID: 1, LocationID: 10},
		{TenantID: 1, ProductID: 2, LocationID: 10},
	}
	release, err := locker.LockAll(ctx, keys)
	require.NoError(t, err)
	require.True(t, mr.Exists("stock:1:1:10"))
	require.True(t, mr.Exists("stock:1:2:10"))

	release()
	require.False(t, mr.Exists("stock:1:1:10"))
	require.False(t, mr.Exists("stock:1:2:10"))

	// Released keys can be locked again.
	release2, err := locker.LockAll(ctx, keys)
	require.NoError(t, err)
	release2()
}

func TestLockAllDeduplicatesKeys(t *testing.T) {
	locker, _ := newTestLocker(t)

	// Same key twice must not self-deadlock.
	keys := []StockKey{
		{TenantID: 1, ProductID: 1, LocationID: 10},
		{TenantID: 1, ProductID: 1, LocationID: 10},
	}
	release, err := locker.LockAll(context.Background(), keys)
	require.NoError(t, err)
	release()
}

func TestLockAllEmptyKeys(t *testing.T) {
	locker, _ := newTestLocker(t)

	release, err := locker.LockAll(context.Background(), nil)
	require.NoError(t, err)
	require.NotNil(t, release)
	release()
}

func TestLockAllContended(t *testing.T) {
	locker, mr := newTestLocker(t)

	// Simulate a lock held by another process.
	require.NoError(t, mr.Set("stock:1:1:10", "someone-else"))

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	_, err := locker.LockAll(ctx, []StockKey{{TenantID: 1, ProductID: 1, LocationID: 10}})
	require.Error(t, err)
	require.True(t, mr.Exists("stock:1:1:10"))
}

func TestLockAllReleasesHeldOnFailure(t *testing.T) {
	locker, mr := newTestLocker(t)

	// The second key in sorted order is already taken, so the first must
	// be released on the way out.
	require.NoError(t, mr.Set("stock:1:2:10", "someone-else"))

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	_, err := locker.LockAll(ctx, []StockKey{
		{TenantID: 1, ProductID: 1, LocationID: 10},
		{TenantID: 1, ProductID: 2, LocationID: 10},
	})
	require.Error(t, err)
	require.False(t, mr.Exists("stock:1:1:10"))
}

func TestNilLockerIsNoop(t *testing.T) {
	var locker *StockLocker
	release, err := locker.LockAll(context.Background(), []StockKey{{TenantID: 1, ProductID: 1, LocationID: 10}})
	require.NoError(t, err)
	release()
}
