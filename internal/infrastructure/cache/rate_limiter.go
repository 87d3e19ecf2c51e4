package cache

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// RateLimiter is the admission check applied per client at the API edge.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// redisRateLimiter implements sliding-window rate limiting on Redis
// sorted sets, so limits hold across multiple API instances.
type redisRateLimiter struct {
	client *redis.Client
	logger *zap.Logger
}

// NewRedisRateLimiter creates a Redis-backed sliding-window limiter.
func NewRedisRateLimiter(client *redis.Client, logger *zap.Logger) RateLimiter {
	return &redisRateLimiter{client: client, logger: logger}
}

func (r *redisRateLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	now := time.Now()
	windowStart := now.Add(-window)
	rateLimitKey := rateLimitKeyPrefix + key

	pipe := r.client.Pipeline()
	pipe.ZRemRangeByScore(ctx, rateLimitKey, "-inf", strconv.FormatInt(windowStart.UnixNano(), 10))
	countCmd := pipe.ZCard(ctx, rateLimitKey)
	requestID := fmt.Sprintf("%d-%d", now.UnixNano(), now.Nanosecond()%1000)
	pipe.ZAdd(ctx, rateLimitKey, redis.Z{
		Score:  float64(now.UnixNano()),
		Member: requestID,
	})
	pipe.Expire(ctx, rateLimitKey, window+time.Minute)

	if _, err := pipe.Exec(ctx); err != nil {
		r.logger.Error("rate limiter pipeline failed",
			zap.String("key", key),
			zap.Error(err))
		return false, fmt.Errorf("rate limiter pipeline failed: %w", err)
	}

	if countCmd.Val() >= int64(limit) {
		r.client.ZRem(ctx, rateLimitKey, requestID)
		return false, nil
	}
	return true, nil
}

// localRateLimiter is the single-instance fallback when Redis is not
// configured, built on token buckets keyed per client.
type localRateLimiter struct {
	limiters sync.Map
	rps      rate.Limit
	burst    int
}

// NewLocalRateLimiter creates an in-process limiter. limit and window
// are converted to a steady token-bucket rate.
func NewLocalRateLimiter(requestsPerSecond, burst int) RateLimiter {
	return &localRateLimiter{
		rps:   rate.Limit(requestsPerSecond),
		burst: burst,
	}
}

func (l *localRateLimiter) Allow(_ context.Context, key string, _ int, _ time.Duration) (bool, error) {
	limiter, _ := l.limiters.LoadOrStore(key, rate.NewLimiter(l.rps, l.burst))
	return limiter.(*rate.Limiter).Allow(), nil
}
