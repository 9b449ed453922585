package lookupd

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// DistributedLock serializes operations across service instances using
// Redis SET NX. Reindexing takes one so two instances never rebuild the
// same index concurrently.
type DistributedLock struct {
	redis      redis.UniversalClient
	keyPrefix  string
	defaultTTL time.Duration
}

func NewDistributedLock(client redis.UniversalClient, keyPrefix string) *DistributedLock {
	return &DistributedLock{
		redis:      client,
		keyPrefix:  keyPrefix,
		defaultTTL: 30 * time.Second,
	}
}

// Lock acquires the named lock. Returns ErrLockHeld if another holder has
// it, otherwise a release function that MUST be called.
func (l *DistributedLock) Lock(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	if ttl == 0 {
		ttl = l.defaultTTL
	}

	lockKey := fmt.Sprintf("%s:lock:%s", l.keyPrefix, key)
	lockValue := fmt.Sprintf("%d", time.Now().UnixNano())

	success, err := l.redis.SetNX(ctx, lockKey, lockValue, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to acquire lock: %w", err)
	}
	if !success {
		return nil, WithContext(ErrLockHeld, map[string]interface{}{
			"key": key,
			"ttl": ttl,
		})
	}

	release := func() {
		// Background context so release works even after the caller's
		// context is cancelled. Only delete if we still own the lock.
		script := `
			if redis.call("get", KEYS[1]) == ARGV[1] then
				return redis.call("del", KEYS[1])
			else
				return 0
			end
		`
		l.redis.Eval(context.Background(), script, []string{lockKey}, lockValue).Result()
	}
	return release, nil
}

// TryLockWithRetry attempts to acquire the lock with exponential backoff,
// for riding out short contention.
func (l *DistributedLock) TryLockWithRetry(ctx context.Context, key string, ttl time.Duration, maxRetries int) (func(), error) {
	const initialBackoff = 50 * time.Millisecond

	var lastErr error
	for i := 0; i < maxRetries; i++ {
		release, err := l.Lock(ctx, key, ttl)
		if err == nil {
			return release, nil
		}
		lastErr = err

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		if i < maxRetries-1 {
			time.Sleep(initialBackoff * time.Duration(int64(1)<<uint(i)))
		}
	}
	return nil, fmt.Errorf("failed to acquire lock after %d retries: %w", maxRetries, lastErr)
}
