package distlock

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisScripter is the slice of the go-redis client the Redis lock needs.
type RedisScripter interface {
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
	redis.Scripter
}

// redisLock is SET NX with a TTL and a random ownership token. Release is
// a compare-and-delete Lua script so an expired lock reacquired by another
// instance is never deleted by the original holder.
type redisLock struct {
	rdb   RedisScripter
	key   string
	token string
	ttl   time.Duration
}

var releaseScript = redis.NewScript(`
	if redis.call("get", KEYS[1]) == ARGV[1] then
		return redis.call("del", KEYS[1])
	end
	return 0
`)

func newRedisLock(rdb RedisScripter, name string, ttl time.Duration) *redisLock {
	b := make([]byte, 16)
	rand.Read(b)
	return &redisLock{
		rdb:   rdb,
		key:   fmt.Sprintf("lock:%s", name),
		token: hex.EncodeToString(b),
		ttl:   ttl,
	}
}

func (l *redisLock) TryAcquire(ctx context.Context) (bool, error) {
	ok, err := l.rdb.SetNX(ctx, l.key, l.token, l.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("acquire %s: %w", l.key, err)
	}
	return ok, nil
}

func (l *redisLock) Release(ctx context.Context) error {
	_, err := releaseScript.Run(ctx, l.rdb, []string{l.key}, l.token).Result()
	return err
}
