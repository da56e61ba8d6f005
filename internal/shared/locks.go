package shared

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"
)

// ErrLockNotObtained indicates a stock key could not be locked in time.
var ErrLockNotObtained = errors.New("stock lock not obtained")

// StockKey identifies the ledger slice a check-then-write sequence touches.
type StockKey struct {
	TenantID   int64
	ProductID  int64
	LocationID int64
}

func (k StockKey) String() string {
	return fmt.Sprintf("stock:%d:%d:%d", k.TenantID, k.ProductID, k.LocationID)
}

// StockLocker serialises availability checks and ledger writes per
// (tenant, product, location). Keys are always acquired in sorted order
// so two overlapping documents cannot deadlock each other.
type StockLocker struct {
	locker *redislock.Client
	ttl    time.Duration
}

// NewStockLocker constructs a StockLocker on top of redis.
func NewStockLocker(client redis.UniversalClient, ttl time.Duration) *StockLocker {
	if ttl <= 0 {
		ttl = 15 * time.Second
	}
	return &StockLocker{locker: redislock.New(client), ttl: ttl}
}

// LockAll obtains every key and returns a release function. On any
// failure the already-held locks are released before returning.
func (l *StockLocker) LockAll(ctx context.Context, keys []StockKey) (func(), error) {
	if l == nil || len(keys) == 0 {
		return func() {}, nil
	}

	names := make([]string, 0, len(keys))
	seen := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		name := k.String()
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		names = append(names, name)
	}
	sort.Strings(names)

	opts := &redislock.Options{
		RetryStrategy: redislock.LimitRetry(redislock.LinearBackoff(50*time.Millisecond), 100),
	}

	held := make([]*redislock.Lock, 0, len(names))
	release := func() {
		for i := len(held) - 1; i >= 0; i-- {
			_ = held[i].Release(context.WithoutCancel(ctx))
		}
	}

	for _, name := range names {
		lock, err := l.locker.Obtain(ctx, name, l.ttl, opts)
		if err != nil {
			release()
			if errors.Is(err, redislock.ErrNotObtained) {
				return nil, fmt.Errorf("%w: %s", ErrLockNotObtained, name)
			}
			return nil, err
		}
		held = append(held, lock)
	}

	return release, nil
}
