// Package distlock serializes operations that must not run concurrently
// across service instances. The batch import pipeline uses it: two imports
// racing each other both pass the client-side duplicate check, so only one
// may run at a time.
package distlock

import (
	"context"
	"database/sql"
	"hash/fnv"
	"time"
)

// Lock is a non-blocking mutual exclusion primitive. A Lock instance is
// owned by one goroutine for one acquire/release cycle.
type Lock interface {
	// TryAcquire attempts to take the lock without blocking and reports
	// whether it succeeded.
	TryAcquire(ctx context.Context) (bool, error)
	// Release gives the lock back. Releasing a lock held by someone else
	// is a no-op.
	Release(ctx context.Context) error
}

// New picks the best available backend: Redis when a client is provided,
// otherwise a Postgres advisory lock on the primary database.
func New(rdb RedisScripter, db *sql.DB, name string, ttl time.Duration) Lock {
	if rdb != nil {
		return newRedisLock(rdb, name, ttl)
	}
	return newAdvisoryLock(db, name)
}

// advisoryLock holds a Postgres session-scoped advisory lock. The lock
// drops automatically when the session dies, which covers crashes the same
// way a Redis TTL would.
type advisoryLock struct {
	db  *sql.DB
	key int64
}

func newAdvisoryLock(db *sql.DB, name string) *advisoryLock {
	h := fnv.New64a()
	h.Write([]byte(name))
	return &advisoryLock{db: db, key: int64(h.Sum64())}
}

func (l *advisoryLock) TryAcquire(ctx context.Context) (bool, error) {
	var ok bool
	err := l.db.QueryRowContext(ctx, "SELECT pg_try_advisory_lock($1)", l.key).Scan(&ok)
	return ok, err
}

func (l *advisoryLock) Release(ctx context.Context) error {
	_, err := l.db.ExecContext(ctx, "SELECT pg_advisory_unlock($1)", l.key)
	return err
}
