package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/atlaspay/fraud-risk-engine/internal/infrastructure/config"
)

// Key prefixes shared by the cache components.
const (
	profileKeyPrefix   = "fraud:profile:"
	rateLimitKeyPrefix = "fraud:ratelimit:"
)

// NewRedisClient connects and verifies a Redis client from config.
func NewRedisClient(cfg *config.RedisConfig, logger *zap.Logger) (*redis.Client, error) {
	if cfg == nil {
		return nil, fmt.Errorf("redis config is required")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.URL,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}

	logger.Info("redis client initialized",
		zap.String("addr", cfg.URL),
		zap.Int("db", cfg.DB))

	return client, nil
}
