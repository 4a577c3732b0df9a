package lock

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var (
	ErrNotAcquired = errors.New("lock not acquired")
	ErrLockLost    = errors.New("lock lost")
)

const retryInterval = 50 * time.Millisecond

// releaseScript deletes the key only if it still holds our token, so an
// expired lock taken over by another process is left alone.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// renewScript extends the TTL only while the key still holds our token.
var renewScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`)

// RedisLocker serialises schedule changes for one post across processes.
type RedisLocker struct {
	rc  redis.Cmdable
	ttl time.Duration
}

func NewRedisLocker(rc redis.Cmdable, ttl time.Duration) *RedisLocker {
	return &RedisLocker{rc: rc, ttl: ttl}
}

func postKey(postID int64) string {
	return fmt.Sprintf("postflow:lock:post:%d", postID)
}

// WithPostLock runs fn while holding the lock for postID. It waits up to
// the lock TTL for a holder to finish before giving up with ErrNotAcquired.
// The lock is renewed every ttl/3 while fn runs; if a renewal fails, fn's
// context is cancelled and ErrLockLost is returned.
func (l *RedisLocker) WithPostLock(ctx context.Context, postID int64, fn func(ctx context.Context) error) error {
	key := postKey(postID)
	token := uuid.NewString()

	if err := l.acquire(ctx, key, token); err != nil {
		return err
	}
	defer func() {
		// release even if ctx was cancelled by the caller
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Second)
		defer cancel()
		if err := releaseScript.Run(releaseCtx, l.rc, []string{key}, token).Err(); err != nil {
			slog.Warn("failed to release post lock", "post_id", postID, "error", err)
		}
	}()

	fnCtx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		l.keepAlive(fnCtx, done, cancel, key, token, postID)
	}()

	err := fn(fnCtx)
	close(done)
	wg.Wait()

	if cause := context.Cause(fnCtx); errors.Is(cause, ErrLockLost) {
		return errors.Join(cause, err)
	}
	return err
}

func (l *RedisLocker) keepAlive(ctx context.Context, done <-chan struct{}, cancel context.CancelCauseFunc, key, token string, postID int64) {
	interval := max(l.ttl/3, time.Millisecond)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			renewed, err := renewScript.Run(ctx, l.rc, []string{key}, token, l.ttl.Milliseconds()).Int()
			if err == nil && renewed == 1 {
				continue
			}
			select {
			case <-done:
				return
			default:
			}
			slog.Error("post lock lost while held", "post_id", postID, "error", err)
			cancel(fmt.Errorf("%w: %s", ErrLockLost, key))
			return
		}
	}
}

func (l *RedisLocker) acquire(ctx context.Context, key, token string) error {
	deadline := time.Now().Add(l.ttl)
	for {
		ok, err := l.rc.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil {
			return fmt.Errorf("acquire %s: %w", key, err)
		}
		if ok {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("%w: %s", ErrNotAcquired, key)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(retryInterval):
		}
	}
}
