package lock

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"
)

var (
	// ErrHeld is returned by TryWithLock when another holder owns the key.
	ErrHeld = errors.New("lock: held by another worker")

	errNoClient = errors.New("lock: redis client not configured")
)

// releaseScript deletes the key only if it still carries our token.
var releaseScript = redis.NewScript(`if redis.call("get", KEYS[1]) == ARGV[1] then
  return redis.call("del", KEYS[1])
end
return 0`)

// Locker serialises recalculations of the same document across workers.
type Locker struct {
	R            *redis.Client
	RetryBackoff time.Duration
}

// WithLock waits until key is free, then runs fn while holding it. Waiting
// stops when ctx is cancelled.
func (l Locker) WithLock(ctx context.Context, key string, ttl time.Duration, fn func(context.Context) error) error {
	if l.R == nil {
		return errNoClient
	}
	token := uuid.NewString()
	for {
		ok, err := l.acquire(ctx, key, token, ttl)
		if err != nil {
			return err
		}
		if ok {
			defer l.release(key, token)
			return fn(ctx)
		}
		timer := time.NewTimer(l.backoff())
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// TryWithLock runs fn only if key can be taken immediately, otherwise it
// returns ErrHeld.
func (l Locker) TryWithLock(ctx context.Context, key string, ttl time.Duration, fn func(context.Context) error) error {
	if l.R == nil {
		return errNoClient
	}
	token := uuid.NewString()
	ok, err := l.acquire(ctx, key, token, ttl)
	if err != nil {
		return err
	}
	if !ok {
		return ErrHeld
	}
	defer l.release(key, token)
	return fn(ctx)
}

func (l Locker) acquire(ctx context.Context, key, token string, ttl time.Duration) (bool, error) {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return l.R.SetNX(ctx, key, token, ttl).Result()
}

func (l Locker) backoff() time.Duration {
	if l.RetryBackoff <= 0 {
		return 50 * time.Millisecond
	}
	return l.RetryBackoff
}

func (l Locker) release(key, token string) {
	_ = releaseScript.Run(context.Background(), l.R, []string{key}, token).Err()
}
