package cache

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// releaseScript deletes the lock key only while we still hold it, so an
// expired lock that another holder re-acquired is never clobbered.
var releaseScript = redis.NewScript(`
    if redis.call("get", KEYS[1]) == ARGV[1] then
        return redis.call("del", KEYS[1])
    else
        return 0
    end
`)

// Mutex is a best-effort distributed lock over a single Redis key.
// TryLock either acquires the lock or reports it as held; there is no
// blocking acquire.
type Mutex struct {
	rdb *redis.Client
	key string
	ttl time.Duration

	value string
}

func NewMutex(rdb *redis.Client, key string, ttl time.Duration) *Mutex {
	return &Mutex{rdb: rdb, key: key, ttl: ttl}
}

func (m *Mutex) TryLock(ctx context.Context) (bool, error) {
	value := uuid.NewString()
	ok, err := m.rdb.SetNX(ctx, m.key, value, m.ttl).Result()
	if err != nil {
		return false, err
	}
	if ok {
		m.value = value
	}
	return ok, nil
}

// Unlock releases the lock if it is still ours. Returns false when the key
// already expired or was taken over.
func (m *Mutex) Unlock(ctx context.Context) (bool, error) {
	if m.value == "" {
		return false, nil
	}
	deleted, err := releaseScript.Run(ctx, m.rdb, []string{m.key}, m.value).Result()
	m.value = ""
	if err != nil {
		return false, err
	}
	n, _ := deleted.(int64)
	return n == 1, nil
}
