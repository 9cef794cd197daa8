// pkg/lock/redis_lock.go

package lock

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// unlockScript deletes the lock key only if it still holds this
// holder's token, the same compare-and-delete shape as the fencing
// checks in AveFS's Setlk/Flock (pkg/meta/redis_lock.go): read-modify-
// write must happen server-side or two holders can race past the check.
const unlockScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`

// extendScript refreshes a lock's TTL only while this holder still owns it.
const extendScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`

// RedisLock is a cooperative mutual-exclusion lock over a shared MapCore
// region: multiple processes can attach to one region, but serializing
// their writers is left to the caller. One process holding this lock is
// free to Set/Del/Erase; others should wait or refuse.
type RedisLock struct {
	rdb   *redis.Client
	key   string
	token string
	ttl   time.Duration
}

// NewRedisLock returns a lock bound to name; multiple RedisLock values
// constructed with the same name and rdb contend for the same key.
func NewRedisLock(rdb *redis.Client, name string, ttl time.Duration) *RedisLock {
	return &RedisLock{rdb: rdb, key: "memkv:lock:" + name, token: uuid.NewString(), ttl: ttl}
}

// TryLock attempts to acquire the lock once, without blocking.
func (l *RedisLock) TryLock(ctx context.Context) (bool, error) {
	ok, err := l.rdb.SetNX(ctx, l.key, l.token, l.ttl).Result()
	if err != nil {
		return false, err
	}
	return ok, nil
}

// Lock blocks, retrying at the given interval, until it acquires the
// lock or ctx is done.
func (l *RedisLock) Lock(ctx context.Context, retry time.Duration) error {
	for {
		ok, err := l.TryLock(ctx)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(retry):
		}
	}
}

// Unlock releases the lock, but only if this holder still owns it (a
// stolen lock, past its TTL, must not be deleted out from under its new
// owner).
func (l *RedisLock) Unlock(ctx context.Context) error {
	return l.rdb.Eval(ctx, unlockScript, []string{l.key}, l.token).Err()
}

// Extend refreshes the lock's TTL, for a holder doing a longer sweep
// (Erase/Sync/Backup) than the original TTL was sized for.
func (l *RedisLock) Extend(ctx context.Context, ttl time.Duration) error {
	return l.rdb.Eval(ctx, extendScript, []string{l.key}, l.token, ttl.Milliseconds()).Err()
}
