// Package middleware 提供 HTTP 中间件
package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"z-novel-chapter-gen/internal/infrastructure/persistence/redis"
	"z-novel-chapter-gen/pkg/logger"
)

// RateLimitConfig 限流配置
type RateLimitConfig struct {
	// Enabled 是否启用限流
	Enabled bool
	// RequestsPerSecond 每个客户端每秒请求数
	RequestsPerSecond int
	// GenerationsPerMinute 每个会话每分钟章节生成次数
	GenerationsPerMinute int
}

// RateLimiter 限流器接口
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// RateLimit 按客户端 IP 的全局限流中间件
func RateLimit(cfg RateLimitConfig, limiter RateLimiter) gin.HandlerFunc {
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = 20
	}
	return limit(cfg.Enabled, limiter, cfg.RequestsPerSecond, time.Second, func(c *gin.Context) string {
		return redis.BuildClientRateLimitKey(c.ClientIP())
	})
}

// GenerationRateLimit 按会话的章节生成限流中间件
func GenerationRateLimit(cfg RateLimitConfig, limiter RateLimiter) gin.HandlerFunc {
	if cfg.GenerationsPerMinute <= 0 {
		cfg.GenerationsPerMinute = 6
	}
	return limit(cfg.Enabled, limiter, cfg.GenerationsPerMinute, time.Minute, func(c *gin.Context) string {
		return redis.BuildGenerationRateLimitKey(c.Param("sid"))
	})
}

func limit(enabled bool, limiter RateLimiter, n int, window time.Duration, keyFn func(*gin.Context) string) gin.HandlerFunc {
	if !enabled || limiter == nil {
		return func(c *gin.Context) {
			c.Next()
		}
	}

	return func(c *gin.Context) {
		ctx := c.Request.Context()
		allowed, err := limiter.Allow(ctx, keyFn(c), n, window)
		if err != nil {
			// 限流器故障时放行，避免影响业务
			logger.Warn(ctx, "rate limiter unavailable", "error", err.Error())
			c.Next()
			return
		}

		if !allowed {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"code":     http.StatusTooManyRequests,
				"message":  "rate limit exceeded",
				"trace_id": c.GetString("trace_id"),
			})
			return
		}

		c.Next()
	}
}
