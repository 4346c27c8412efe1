package lock

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

const DefaultTTL = 30 * time.Second

// releaseScript deletes the key only while it still holds the caller's token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

// Locker hands out short-lived Redis locks keyed by resource.
type Locker struct {
	Client *redis.Client
	TTL    time.Duration
}

func NewLocker(client *redis.Client, ttl time.Duration) *Locker {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Locker{Client: client, TTL: ttl}
}

func key(resource string) string {
	return "payment_lock:" + resource
}

// Acquire reports whether owner now holds the lock on resource.
func (l *Locker) Acquire(ctx context.Context, resource, owner string) (bool, error) {
	ok, err := l.Client.SetNX(ctx, key(resource), owner, l.TTL).Result()
	if err != nil {
		return false, fmt.Errorf("acquire lock %s: %w", resource, err)
	}
	return ok, nil
}

// Release frees the lock if owner still holds it; an expired or foreign lock is left alone.
func (l *Locker) Release(ctx context.Context, resource, owner string) error {
	if err := releaseScript.Run(ctx, l.Client, []string{key(resource)}, owner).Err(); err != nil && err != redis.Nil {
		return fmt.Errorf("release lock %s: %w", resource, err)
	}
	return nil
}
