package ratelimit

import (
	"time"

	redis "github.com/redis/go-redis/v9"
	limiter "github.com/ulule/limiter/v3"
	limiterredis "github.com/ulule/limiter/v3/drivers/store/redis"
)

// NewRedisStore keeps fixed-window counters in Redis so every API replica
// shares the same budget.
func NewRedisStore(client *redis.Client, prefix string) (limiter.Store, error) {
	if prefix == "" {
		prefix = "ratelimit"
	}
	return limiterredis.NewStoreWithOptions(client, limiter.StoreOptions{
		Prefix:          prefix,
		CleanUpInterval: time.Minute,
	})
}

// PerMinute builds a limiter allowing n requests per key per minute. A
// non-positive n disables limiting.
func PerMinute(store limiter.Store, n int64) *limiter.Limiter {
	if n <= 0 {
		return nil
	}
	return limiter.New(store, limiter.Rate{Period: time.Minute, Limit: n})
}
