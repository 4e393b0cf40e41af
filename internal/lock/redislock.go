package lock

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrNotConfigured is returned when the locker has no Redis client.
var ErrNotConfigured = errors.New("lock: redis client not configured")

// ErrLeaseExpired wraps the error of an fn cut off by the lock's TTL.
var ErrLeaseExpired = errors.New("lock: lease expired before the critical section finished")

// Locker provides a Redis-backed distributed lock.
type Locker struct {
	R            *redis.Client
	RetryBackoff time.Duration
	// TTL bounds how long a crashed holder can block others. The lease is not
	// renewed: fn runs under a deadline of TTL, so TTL must cover the slowest
	// expected critical section.
	TTL    time.Duration
	Prefix string
}

// LockOrder serialises fn against other holders of the same order id.
func (l Locker) LockOrder(ctx context.Context, orderID string, fn func(context.Context) error) error {
	key := "refund-lock:order:" + orderID
	if p := strings.TrimSpace(l.Prefix); p != "" {
		key = p + ":" + key
	}
	return l.WithLock(ctx, key, l.TTL, fn)
}

// WithLock executes fn while holding a lock for the provided key. The lock is
// released even if fn returns an error. When the lock cannot be acquired
// before the context is cancelled the context error is returned. fn's context
// expires together with the lease; a failure caused by that is wrapped in
// ErrLeaseExpired.
func (l Locker) WithLock(ctx context.Context, key string, ttl time.Duration, fn func(context.Context) error) error {
	if l.R == nil {
		return ErrNotConfigured
	}
	if fn == nil {
		return errors.New("lock: callback not provided")
	}
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	token := uuid.NewString()
	retry := l.RetryBackoff
	if retry <= 0 {
		retry = 50 * time.Millisecond
	}

	for {
		ok, err := l.R.SetNX(ctx, key, token, ttl).Result()
		if err != nil {
			return err
		}
		if ok {
			defer l.release(context.WithoutCancel(ctx), key, token)
			return runLeased(ctx, ttl, fn)
		}
		timer := time.NewTimer(retry)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

func runLeased(ctx context.Context, ttl time.Duration, fn func(context.Context) error) error {
	leaseCtx, cancel := context.WithTimeout(ctx, ttl)
	defer cancel()
	err := fn(leaseCtx)
	if err != nil && ctx.Err() == nil && errors.Is(leaseCtx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", ErrLeaseExpired, err)
	}
	return err
}

func (l Locker) release(ctx context.Context, key, token string) {
	const script = `if redis.call("get", KEYS[1]) == ARGV[1] then
  return redis.call("del", KEYS[1])
else
  return 0
end`
	if err := l.R.Eval(ctx, script, []string{key}, token).Err(); err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "unknown command") {
			_ = l.R.Del(ctx, key).Err()
		}
	}
}
