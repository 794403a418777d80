package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"estatelink/marketplace/internal/logging"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// DefaultLockTTL bounds how long a crashed holder can block other writers.
const DefaultLockTTL = 30 * time.Second

// ErrLocked is returned when another writer holds the lock.
var ErrLocked = errors.New("resource is locked by another writer")

// Locker serializes work on a single key across processes.
type Locker interface {
	WithLock(ctx context.Context, key string, fn func(ctx context.Context) error) error
}

type redisLocker struct {
	client *redislock.Client
	ttl    time.Duration
	retry  redislock.RetryStrategy
}

// NewRedisLocker builds a Locker backed by redislock. Obtaining a held lock is
// retried for a short while before giving up with ErrLocked.
func NewRedisLocker(rdb redis.UniversalClient, ttl time.Duration) Locker {
	if ttl <= 0 {
		ttl = DefaultLockTTL
	}
	return &redisLocker{
		client: redislock.New(rdb),
		ttl:    ttl,
		retry:  redislock.LimitRetry(redislock.LinearBackoff(100*time.Millisecond), 20),
	}
}

func (l *redisLocker) WithLock(ctx context.Context, key string, fn func(ctx context.Context) error) error {
	lock, err := l.client.Obtain(ctx, "lock:"+key, l.ttl, &redislock.Options{RetryStrategy: l.retry})
	if errors.Is(err, redislock.ErrNotObtained) {
		return fmt.Errorf("%s: %w", key, ErrLocked)
	}
	if err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("failed to obtain lock %s: %w", key, err)
		}
		// Redis is unreachable. Writers under this lock are guarded by their
		// update filters, so the work runs uncoordinated.
		logging.GetLogger().WithFields(logrus.Fields{"key": key, "error": err}).Warn("lock unavailable, running unlocked")
		return fn(ctx)
	}
	defer func() {
		// Release uses its own context so a cancelled request still frees the key.
		releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := lock.Release(releaseCtx); err != nil && !errors.Is(err, redislock.ErrLockNotHeld) {
			logging.GetLogger().WithFields(logrus.Fields{"key": key, "error": err}).Warn("failed to release lock")
		}
	}()
	return fn(ctx)
}

type noopLocker struct{}

// NewNoopLocker returns a Locker that runs fn without coordination. Used when
// Redis is not configured and in tests.
func NewNoopLocker() Locker {
	return noopLocker{}
}

func (noopLocker) WithLock(ctx context.Context, _ string, fn func(ctx context.Context) error) error {
	return fn(ctx)
}
