package redisclient

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var (
	ErrLockNotAcquired = errors.New("scheduling lock not acquired")
)

// Locker guards the conflict-check-and-commit critical section across every
// resource a booking touches (dentist, patient, clinic).
type Locker interface {
	WithLock(ctx context.Context, keys []string, fn func(ctx context.Context) error) error
}

type redisResourceLocker struct {
	client *redis.Client
	ttl    time.Duration
}

// NewResourceLocker creates a locker that takes one Redis key per resource.
func NewResourceLocker(client *redis.Client, ttl time.Duration) Locker {
	return &redisResourceLocker{
		client: client,
		ttl:    ttl,
	}
}

// WithLock acquires every key (in sorted order, so concurrent callers with
// overlapping key sets cannot deadlock) before running fn. If any key is
// already held the acquired ones are released and ErrLockNotAcquired is
// returned; callers retry rather than wait.
func (l *redisResourceLocker) WithLock(ctx context.Context, keys []string, fn func(ctx context.Context) error) error {
	ordered := append([]string(nil), keys...)
	sort.Strings(ordered)

	token := uuid.NewString()
	acquired := make([]string, 0, len(ordered))

	release := func() {
		for i := len(acquired) - 1; i >= 0; i-- {
			_ = l.release(ctx, acquired[i], token)
		}
	}

	for _, key := range ordered {
		ok, err := l.client.SetNX(ctx, "lock:"+key, token, l.ttl).Result()
		if err != nil {
			release()
			return fmt.Errorf("acquire lock %s: %w", key, err)
		}
		if !ok {
			release()
			return ErrLockNotAcquired
		}
		acquired = append(acquired, "lock:"+key)
	}

	defer release()

	ctxWithTimeout, cancel := context.WithTimeout(ctx, l.ttl)
	defer cancel()

	return fn(ctxWithTimeout)
}

var unlockScript = redis.NewScript(`
local val = redis.call("GET", KEYS[1])
if val == ARGV[1] then
  return redis.call("DEL", KEYS[1])
else
  return 0
end
`)

func (l *redisResourceLocker) release(ctx context.Context, key, token string) error {
	_, err := unlockScript.Run(ctx, l.client, []string{key}, token).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("release lock %s: %w", key, err)
	}
	return nil
}
