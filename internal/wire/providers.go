package wire

import (
	"context"

	"z-novel-chapter-gen/internal/config"
	"z-novel-chapter-gen/internal/infrastructure/persistence/redis"
	"z-novel-chapter-gen/internal/interfaces/http/middleware"
	"z-novel-chapter-gen/pkg/logger"
)

// ProvideRedisClient 提供 Redis 客户端；未启用时返回 nil，连接失败时报错
func ProvideRedisClient(ctx context.Context, cfg *config.Config) (*redis.Client, func(), error) {
	if !cfg.Cache.Redis.Enabled {
		if cfg.Security.RateLimit.Enabled {
			logger.Warn(ctx, "rate limit enabled but redis is disabled, rate limiting is off")
		}
		return nil, func() {}, nil
	}
	client, err := redis.NewClient(&cfg.Cache.Redis)
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() {
		_ = client.Close()
	}
	return client, cleanup, nil
}

// ProvideRateLimiter 提供限流器，没有 Redis 时返回 nil 接口
func ProvideRateLimiter(client *redis.Client) middleware.RateLimiter {
	if client == nil {
		return nil
	}
	return redis.NewRateLimiter(client)
}
