package ratelimit

import (
	"context"
	"time"

	redis "github.com/redis/go-redis/v9"
	limiter "github.com/ulule/limiter/v3"
	limiterredis "github.com/ulule/limiter/v3/drivers/store/redis"
)

// Limiter is the subset of rate limiting behavior the middleware needs.
type Limiter interface {
	Allow(ctx context.Context, key string, window time.Duration, max int) (allowed bool, remaining int, reset time.Time, err error)
}

// RedisLimiter enforces limits through ulule/limiter's Redis store.
type RedisLimiter struct {
	Store limiter.Store
}

// NewRedisLimiter builds a limiter store on the given Redis client.
func NewRedisLimiter(client *redis.Client, prefix string) (RedisLimiter, error) {
	store, err := limiterredis.NewStoreWithOptions(client, limiter.StoreOptions{Prefix: prefix})
	if err != nil {
		return RedisLimiter{}, err
	}
	return RedisLimiter{Store: store}, nil
}

// Allow implements Limiter.
func (l RedisLimiter) Allow(ctx context.Context, key string, window time.Duration, max int) (bool, int, time.Time, error) {
	if l.Store == nil || max <= 0 || window <= 0 {
		return true, max, time.Now().Add(window), nil
	}
	inst := limiter.New(l.Store, limiter.Rate{Period: window, Limit: int64(max)})
	res, err := inst.Get(ctx, key)
	if err != nil {
		return false, 0, time.Now().Add(window), err
	}
	return !res.Reached, int(res.Remaining), time.Unix(res.Reset, 0), nil
}
