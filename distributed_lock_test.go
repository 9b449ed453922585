package lookupd

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestLock(t *testing.T) *DistributedLock {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewDistributedLock(client, "lookupd")
}

func TestDistributedLock(t *testing.T) {
	ctx := context.Background()
	lock := newTestLock(t)

	release, err := lock.Lock(ctx, "reindex", time.Minute)
	if err != nil {
		t.Fatalf("Lock failed: %v", err)
	}

	// A second acquisition while held must be refused.
	if _, err := lock.Lock(ctx, "reindex", time.Minute); !errors.Is(err, ErrLockHeld) {
		t.Errorf("expected ErrLockHeld, got %v", err)
	}

	// A different key is independent.
	otherRelease, err := lock.Lock(ctx, "cleanup", time.Minute)
	if err != nil {
		t.Errorf("unrelated lock blocked: %v", err)
	} else {
		otherRelease()
	}

	release()
	release2, err := lock.Lock(ctx, "reindex", time.Minute)
	if err != nil {
		t.Fatalf("Lock after release failed: %v", err)
	}
	release2()
}

func TestDistributedLockDefaultTTL(t *testing.T) {
	ctx := context.Background()
	lock := newTestLock(t)

	release, err := lock.Lock(ctx, "reindex", 0)
	if err != nil {
		t.Fatalf("Lock with zero TTL failed: %v", err)
	}
	defer release()

	if _, err := lock.Lock(ctx, "reindex", 0); !errors.Is(err, ErrLockHeld) {
		t.Errorf("expected ErrLockHeld, got %v", err)
	}
}

func TestTryLockWithRetry(t *testing.T) {
	ctx := context.Background()
	lock := newTestLock(t)

	t.Run("acquires free lock immediately", func(t *testing.T) {
		release, err := lock.TryLockWithRetry(ctx, "reindex", time.Minute, 3)
		if err != nil {
			t.Fatalf("TryLockWithRetry failed: %v", err)
		}
		release()
	})

	t.Run("gives up on persistent contention", func(t *testing.T) {
		release, err := lock.Lock(ctx, "reindex", time.Minute)
		if err != nil {
			t.Fatalf("Lock failed: %v", err)
		}
		defer release()

		if _, err := lock.TryLockWithRetry(ctx, "reindex", time.Minute, 2); !errors.Is(err, ErrLockHeld) {
			t.Errorf("expected wrapped ErrLockHeld, got %v", err)
		}
	})
}
