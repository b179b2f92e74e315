package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	domainErrors "github.com/bitcoinote/commerce-gateway/internal/domain/errors"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Lua script for safe lock release (only owner can release)
var releaseLockScript = redis.NewScript(`
	if redis.call("get", KEYS[1]) == ARGV[1] then
		return redis.call("del", KEYS[1])
	else
		return 0
	end
`)

// DistributedLock is a Redis SET NX lock.
type DistributedLock struct {
	client   *redis.Client
	key      string
	value    string
	ttl      time.Duration
	acquired bool
}

// NewDistributedLock creates a new distributed lock
func NewDistributedLock(client *redis.Client, key string, ttl time.Duration) *DistributedLock {
	return &DistributedLock{
		client: client,
		key:    fmt.Sprintf("lock:%s", key),
		value:  uuid.New().String(),
		ttl:    ttl,
	}
}

// Acquire attempts to acquire the lock
func (l *DistributedLock) Acquire(ctx context.Context) (bool, error) {
	success, err := l.client.SetNX(ctx, l.key, l.value, l.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to acquire lock: %w", err)
	}

	l.acquired = success
	return success, nil
}

// AcquireWithRetry attempts to acquire the lock with retries
func (l *DistributedLock) AcquireWithRetry(ctx context.Context, maxRetries int, retryDelay time.Duration) error {
	for i := 0; i < maxRetries; i++ {
		acquired, err := l.Acquire(ctx)
		if err != nil {
			return err
		}
		if acquired {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(retryDelay):
			continue
		}
	}

	return domainErrors.ErrLockAcquisitionFailed
}

// Release releases the lock
func (l *DistributedLock) Release(ctx context.Context) error {
	if !l.acquired {
		return nil
	}

	result, err := releaseLockScript.Run(ctx, l.client, []string{l.key}, l.value).Result()
	if err != nil {
		return fmt.Errorf("failed to release lock: %w", err)
	}

	val, ok := result.(int64)
	if !ok || val == 0 {
		return errors.New("lock not held or already released")
	}

	l.acquired = false
	return nil
}

// OrderLocker serializes reconciliation work per order. Webhook delivery and
// the customer revisit path can race on the same order; the conditional
// status update keeps the race harmless, the lock keeps it quiet.
type OrderLocker struct {
	client *redis.Client
	ttl    time.Duration
}

// NewOrderLocker creates a new OrderLocker.
func NewOrderLocker(client *redis.Client, ttl time.Duration) *OrderLocker {
	return &OrderLocker{client: client, ttl: ttl}
}

// WithLock runs fn while holding the per-order lock.
func (ol *OrderLocker) WithLock(ctx context.Context, orderID string, fn func(ctx context.Context) error) error {
	lock := NewDistributedLock(ol.client, "order:"+orderID, ol.ttl)
	if err := lock.AcquireWithRetry(ctx, 5, 200*time.Millisecond); err != nil {
		return err
	}
	defer lock.Release(ctx)

	return fn(ctx)
}
