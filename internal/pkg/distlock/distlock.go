// Package distlock provides per-key mutual exclusion across processes.
// The segmentation engine takes one lock per segment so that two
// concurrent refreshes of the same segment can never interleave their
// delete-all/insert-all membership passes.
package distlock

import (
	"context"
	"database/sql"
	"hash/fnv"
	"time"

	"github.com/redis/go-redis/v9"
)

// Lock is a single-use, single-goroutine lock handle.
type Lock interface {
	// TryAcquire attempts to take the lock without blocking.
	// Returns false when another holder has it.
	TryAcquire(ctx context.Context) (bool, error)
	// Release gives the lock up if this handle still owns it.
	Release(ctx context.Context) error
}

// New returns a lock for key using the best available backend: Redis when
// a client is configured (works across hosts), otherwise a PostgreSQL
// advisory lock on the shared database.
func New(rdb *redis.Client, db *sql.DB, key string, ttl time.Duration) Lock {
	if rdb != nil {
		return newRedisLock(rdb, key, ttl)
	}
	return newAdvisoryLock(db, key)
}

// advisoryLock is the Postgres fallback. Advisory locks are session
// scoped, so a dropped connection releases the lock — comparable crash
// safety to the Redis TTL path.
type advisoryLock struct {
	db *sql.DB
	id int64
}

func newAdvisoryLock(db *sql.DB, key string) *advisoryLock {
	h := fnv.New64a()
	h.Write([]byte(key))
	return &advisoryLock{db: db, id: int64(h.Sum64())}
}

func (l *advisoryLock) TryAcquire(ctx context.Context) (bool, error) {
	var ok bool
	err := l.db.QueryRowContext(ctx, "SELECT pg_try_advisory_lock($1)", l.id).Scan(&ok)
	return ok, err
}

func (l *advisoryLock) Release(ctx context.Context) error {
	_, err := l.db.ExecContext(ctx, "SELECT pg_advisory_unlock($1)", l.id)
	return err
}
