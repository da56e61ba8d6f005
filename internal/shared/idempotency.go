package shared

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// IdempotencyStore caches results of completed requests keyed by
// (tenant, action, key) so client retries replay the original outcome
// instead of re-running the operation.
type IdempotencyStore struct {
	pool *pgxpool.Pool
}

// NewIdempotencyStore constructs the store.
func NewIdempotencyStore(pool *pgxpool.Pool) *IdempotencyStore {
	return &IdempotencyStore{pool: pool}
}

// Get returns the cached result for the key, if present.
func (s *IdempotencyStore) Get(ctx context.Context, tenantID int64, action, key string) ([]byte, bool, error) {
	if s == nil {
		return nil, false, errors.New("idempotency store not initialised")
	}
	if key == "" {
		return nil, false, nil
	}
	var result []byte
	err := s.pool.QueryRow(ctx, `SELECT result FROM idempotency_keys WHERE tenant_id=$1 AND action=$2 AND key=$3`,
		tenantID, action, key).Scan(&result)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return result, true, nil
}

// Put stores the result for the key. A concurrent duplicate insert wins
// silently; the first stored result is authoritative.
func (s *IdempotencyStore) Put(ctx context.Context, tenantID int64, action, key string, result []byte) error {
	if s == nil {
		return errors.New("idempotency store not initialised")
	}
	if key == "" {
		return nil
	}
	_, err := s.pool.Exec(ctx, `INSERT INTO idempotency_keys (tenant_id, action, key, result, created_at)
VALUES ($1, $2, $3, $4, $5)`, tenantID, action, key, result, time.Now())
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil
		}
		return err
	}
	return nil
}

// Cleanup removes entries older than retention.
func (s *IdempotencyStore) Cleanup(ctx context.Context, olderThan time.Duration) error {
	if s == nil {
		return nil
	}
	cutoff := time.Now().Add(-olderThan)
	_, err := s.pool.Exec(ctx, `DELETE FROM idempotency_keys WHERE created_at < $1`, cutoff)
	return err
}
