package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Locker hands out expiring, owner-tagged locks stored in Redis. A lock is
// only released by the Locker that acquired it.
type Locker struct {
	client *redis.Client
	prefix string
	owner  string
	ttl    time.Duration
}

func NewLocker(client *redis.Client, prefix string, ttl time.Duration) *Locker {
	return &Locker{
		client: client,
		prefix: prefix,
		owner:  uuid.NewString(),
		ttl:    ttl,
	}
}

// Owner is the token this Locker stores as the lock value.
func (l *Locker) Owner() string { return l.owner }

// Acquire sets the lock key if it is free. It reports false when another
// owner holds it.
func (l *Locker) Acquire(ctx context.Context, key string) (bool, error) {
	ok, err := l.client.SetNX(ctx, l.prefix+key, l.owner, l.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("acquire lock %s: %w", key, err)
	}
	return ok, nil
}

// Release deletes the lock if this Locker still owns it. It reports whether
// a key was deleted.
func (l *Locker) Release(ctx context.Context, key string) (bool, error) {
	n, err := releaseScript.Run(ctx, l.client, []string{l.prefix + key}, l.owner).Int()
	if err != nil {
		return false, fmt.Errorf("release lock %s: %w", key, err)
	}
	return n == 1, nil
}
