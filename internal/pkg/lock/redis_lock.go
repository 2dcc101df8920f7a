// internal/pkg/lock/redis_lock.go
package lock

import (
	"context"
	"fmt"
	"sync"
	"time"

	xerrors "erp-sync-service/internal/pkg/errors"

	"github.com/oklog/ulid/v2"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const keyPrefix = "erp-sync:lock:"

// releaseScript deletes the key only while it still holds our token, so a
// lock that expired and was taken by another run is left alone.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// renewScript pushes the expiry out only while the key still holds our token.
var renewScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`)

// RedisLocker hands out named, TTL-bounded locks shared by every replica.
// A held lock is renewed every ttl/3 until released, so runs longer than
// the TTL keep their exclusion.
type RedisLocker struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

func NewRedisLocker(client *redis.Client, ttl time.Duration, logger *zap.Logger) *RedisLocker {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisLocker{client: client, ttl: ttl, logger: logger}
}

// Acquire takes the named lock or returns xerrors.ErrSyncInProgress when
// someone else holds it. The returned func releases it.
func (l *RedisLocker) Acquire(ctx context.Context, name string) (func(context.Context) error, error) {
	key := keyPrefix + name
	token := ulid.Make().String()

	ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to acquire lock %s: %w", name, err)
	}
	if !ok {
		return nil, xerrors.ErrSyncInProgress
	}

	renew := func(ctx context.Context) (bool, error) {
		n, err := renewScript.Run(ctx, l.client, []string{key}, token, l.ttl.Milliseconds()).Int64()
		if err != nil && err != redis.Nil {
			return false, err
		}
		return n == 1, nil
	}
	interval := l.ttl / 3
	if interval <= 0 {
		interval = l.ttl
	}
	stop := keepAlive(interval, renew, func(err error) {
		if err != nil {
			l.logger.Warn("failed to renew lock", zap.String("lock", name), zap.Error(err))
			return
		}
		l.logger.Error("lock lost before release", zap.String("lock", name))
	})

	release := func(ctx context.Context) error {
		stop()
		if err := releaseScript.Run(ctx, l.client, []string{key}, token).Err(); err != nil && err != redis.Nil {
			return fmt.Errorf("failed to release lock %s: %w", name, err)
		}
		return nil
	}
	return release, nil
}

// keepAlive calls renew every interval until the returned stop func runs or
// renew reports the lock is gone. Transport errors are reported through
// onTrouble and retried on the next tick; a lost lock is reported with a nil
// error and ends the loop. stop waits for the loop and is safe to call twice.
func keepAlive(interval time.Duration, renew func(context.Context) (bool, error), onTrouble func(error)) func() {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		defer close(done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				held, err := renew(ctx)
				if ctx.Err() != nil {
					return
				}
				if err != nil {
					onTrouble(err)
					continue
				}
				if !held {
					onTrouble(nil)
					return
				}
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			cancel()
			<-done
		})
	}
}
