package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"
	"github.com/warp/leave-engine/core"
)

// RedisLocker takes distributed locks with bsm/redislock. The TTL bounds how
// long a crashed holder can block a key; it must exceed the slowest
// transition.
type RedisLocker struct {
	client  *redislock.Client
	prefix  string
	ttl     time.Duration
	backoff time.Duration
	retries int
}

type RedisOption func(*RedisLocker)

func WithPrefix(prefix string) RedisOption {
	return func(r *RedisLocker) { r.prefix = prefix }
}

func WithTTL(ttl time.Duration) RedisOption {
	return func(r *RedisLocker) { r.ttl = ttl }
}

// WithRetry sets the linear backoff between attempts and the attempt limit.
func WithRetry(backoff time.Duration, retries int) RedisOption {
	return func(r *RedisLocker) {
		r.backoff = backoff
		r.retries = retries
	}
}

func NewRedisLocker(rdb redis.UniversalClient, opts ...RedisOption) *RedisLocker {
	r := &RedisLocker{
		client:  redislock.New(rdb),
		prefix:  "leave-engine:",
		ttl:     10 * time.Second,
		backoff: 50 * time.Millisecond,
		retries: 40,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *RedisLocker) Acquire(ctx context.Context, key string) (Lease, error) {
	l, err := r.client.Obtain(ctx, r.prefix+key, r.ttl, &redislock.Options{
		RetryStrategy: redislock.LimitRetry(redislock.LinearBackoff(r.backoff), r.retries),
	})
	if errors.Is(err, redislock.ErrNotObtained) {
		return nil, fmt.Errorf("%w: lock %s not obtained", core.ErrConcurrentModification, key)
	}
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%w: lock %s: %v", core.ErrConcurrentModification, key, err)
		}
		return nil, fmt.Errorf("failed to obtain lock %s: %w", key, err)
	}
	return redisLease{lock: l}, nil
}

type redisLease struct {
	lock *redislock.Lock
}

func (rl redisLease) Release(ctx context.Context) error {
	err := rl.lock.Release(ctx)
	if errors.Is(err, redislock.ErrLockNotHeld) {
		// TTL expired before release; nothing to undo.
		return nil
	}
	return err
}
