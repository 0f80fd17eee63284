// Package router 提供 HTTP 路由配置
package router

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"z-novel-chapter-gen/internal/config"
	"z-novel-chapter-gen/internal/interfaces/http/handler"
	"z-novel-chapter-gen/internal/interfaces/http/middleware"
)

// Router HTTP 路由器
type Router struct {
	engine   *gin.Engine
	cfg      *config.Config
	handlers *RouterHandlers
	limiter  middleware.RateLimiter
}

// RouterHandlers 路由依赖的处理器集合
type RouterHandlers struct {
	Health  *handler.HealthHandler
	Session *handler.SessionHandler
	Story   *handler.StoryHandler
	Chapter *handler.ChapterHandler
}

// NewWithDeps 创建路由器，limiter 为 nil 时不限流
func NewWithDeps(cfg *config.Config, handlers *RouterHandlers, limiter middleware.RateLimiter) *Router {
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := &Router{
		engine:   gin.New(),
		cfg:      cfg,
		handlers: handlers,
		limiter:  limiter,
	}

	r.setupMiddleware()
	r.setupRoutes()

	return r
}

// Engine 返回 Gin Engine
func (r *Router) Engine() *gin.Engine {
	return r.engine
}

// setupMiddleware 配置中间件
func (r *Router) setupMiddleware() {
	// 基础中间件
	r.engine.Use(middleware.Recovery())
	r.engine.Use(middleware.RequestID())

	// CORS 中间件
	r.engine.Use(middleware.CORS(middleware.CORSConfig{
		AllowedOrigins: r.cfg.Security.CORS.AllowedOrigins,
		AllowedMethods: r.cfg.Security.CORS.AllowedMethods,
		AllowedHeaders: r.cfg.Security.CORS.AllowedHeaders,
	}))

	// 追踪中间件
	if r.cfg.Observability.Tracing.Enabled {
		r.engine.Use(middleware.Trace(r.cfg.App.Name))
		r.engine.Use(middleware.TraceContext())
	}

	// 指标中间件
	if r.cfg.Observability.Metrics.Enabled {
		r.engine.Use(middleware.Metrics())
	}

	r.engine.Use(middleware.Audit(middleware.AuditConfig{
		Enabled:   true,
		SkipPaths: middleware.DefaultAuditSkipPaths,
	}))
}

// setupRoutes 配置路由
func (r *Router) setupRoutes() {
	h := r.handlers

	// 系统端点
	r.engine.GET("/health", h.Health.Health)
	r.engine.GET("/ready", h.Health.Ready)
	r.engine.GET("/live", h.Health.Live)

	// Prometheus 指标端点
	if r.cfg.Observability.Metrics.Enabled {
		r.engine.GET(r.cfg.Observability.Metrics.Path, gin.WrapH(promhttp.Handler()))
	}

	rl := r.rateLimitConfig()
	v1 := r.engine.Group("/v1")
	v1.Use(middleware.RateLimit(rl, r.limiter))

	RegisterV1Routes(v1, h, middleware.GenerationRateLimit(rl, r.limiter))
}

func (r *Router) rateLimitConfig() middleware.RateLimitConfig {
	return middleware.RateLimitConfig{
		Enabled:              r.cfg.Security.RateLimit.Enabled,
		RequestsPerSecond:    r.cfg.Security.RateLimit.RequestsPerSecond,
		GenerationsPerMinute: r.cfg.Security.RateLimit.GenerationsPerMinute,
	}
}
