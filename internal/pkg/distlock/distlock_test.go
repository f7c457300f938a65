package distlock

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func TestRedisLockMutualExclusion(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	ctx := context.Background()
	a := New(rdb, nil, "leads:import", time.Minute)
	b := New(rdb, nil, "leads:import", time.Minute)

	ok, err := a.TryAcquire(ctx)
	if err != nil || !ok {
		t.Fatalf("first acquire: ok=%v err=%v", ok, err)
	}

	ok, err = b.TryAcquire(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatal("second holder acquired a held lock")
	}

	if err := a.Release(ctx); err != nil {
		t.Fatal(err)
	}
	ok, err = b.TryAcquire(ctx)
	if err != nil || !ok {
		t.Fatalf("acquire after release: ok=%v err=%v", ok, err)
	}
}

// Releasing a lock you no longer own must not free the current holder.
func TestRedisLockReleaseIsOwnershipChecked(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	ctx := context.Background()
	a := New(rdb, nil, "leads:import", 50*time.Millisecond)
	b := New(rdb, nil, "leads:import", time.Minute)

	if ok, _ := a.TryAcquire(ctx); !ok {
		t.Fatal("first acquire failed")
	}

	// Let a's TTL lapse, then let b take over.
	mr.FastForward(100 * time.Millisecond)
	if ok, _ := b.TryAcquire(ctx); !ok {
		t.Fatal("acquire after expiry failed")
	}

	// a's stale release must be a no-op.
	if err := a.Release(ctx); err != nil {
		t.Fatal(err)
	}
	c := New(rdb, nil, "leads:import", time.Minute)
	if ok, _ := c.TryAcquire(ctx); ok {
		t.Fatal("stale release freed a lock held by another owner")
	}
}

func TestLockNamesAreIndependent(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	ctx := context.Background()
	if ok, _ := New(rdb, nil, "leads:import", time.Minute).TryAcquire(ctx); !ok {
		t.Fatal("acquire failed")
	}
	if ok, _ := New(rdb, nil, "retention:sweep", time.Minute).TryAcquire(ctx); !ok {
		t.Fatal("unrelated lock name blocked")
	}
}
