package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"crm-bridge/core/syncerr"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Locker guards a sync cycle across processes.
type Locker interface {
	// Acquire obtains the lock or returns an error matching syncerr.ErrCycleInProgress
	// when another holder has it. The returned func releases the lock.
	Acquire(ctx context.Context) (func(context.Context) error, error)
}

// Nop is a Locker that always succeeds, used for single-node deployments.
type Nop struct{}

// Acquire implements Locker.
func (Nop) Acquire(context.Context) (func(context.Context) error, error) {
	return func(context.Context) error { return nil }, nil
}

// Obtainer is the part of *redislock.Client used by RedisLocker.
type Obtainer interface {
	Obtain(ctx context.Context, key string, ttl time.Duration, opt *redislock.Options) (*redislock.Lock, error)
}

// RedisLocker holds a redis lock for the duration of a cycle.
type RedisLocker struct {
	client Obtainer
	key    string
	ttl    time.Duration
	logger *zap.Logger
}

// NewRedis creates a RedisLocker over an open redis client.
func NewRedis(rdb redis.UniversalClient, key string, ttl time.Duration, logger *zap.Logger) *RedisLocker {
	return NewWithObtainer(redislock.New(rdb), key, ttl, logger)
}

// NewWithObtainer creates a RedisLocker over any Obtainer.
func NewWithObtainer(client Obtainer, key string, ttl time.Duration, logger *zap.Logger) *RedisLocker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisLocker{client: client, key: key, ttl: ttl, logger: logger}
}

// Acquire implements Locker. The lock is not retried; a held lock means
// another instance is running a cycle.
func (l *RedisLocker) Acquire(ctx context.Context) (func(context.Context) error, error) {
	lk, err := l.client.Obtain(ctx, l.key, l.ttl, nil)
	if errors.Is(err, redislock.ErrNotObtained) {
		return nil, fmt.Errorf("lock %s held elsewhere: %w", l.key, syncerr.ErrCycleInProgress)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to obtain lock %s: %w", l.key, err)
	}

	l.logger.Debug("Cycle lock obtained", zap.String("key", l.key), zap.Duration("ttl", l.ttl))
	return func(ctx context.Context) error {
		if err := lk.Release(ctx); err != nil && !errors.Is(err, redislock.ErrLockNotHeld) {
			return fmt.Errorf("failed to release lock %s: %w", l.key, err)
		}
		return nil
	}, nil
}
