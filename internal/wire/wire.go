//go:build wireinject
// +build wireinject

// Package wire 提供依赖注入配置
package wire

import (
	"context"

	"github.com/google/wire"

	storychapter "z-novel-chapter-gen/internal/application/story/chapter"
	"z-novel-chapter-gen/internal/application/story/session"
	"z-novel-chapter-gen/internal/config"
	"z-novel-chapter-gen/internal/domain/repository"
	"z-novel-chapter-gen/internal/infrastructure/llm"
	"z-novel-chapter-gen/internal/infrastructure/persistence/docx"
	"z-novel-chapter-gen/internal/infrastructure/persistence/redis"
	"z-novel-chapter-gen/internal/interfaces/http/handler"
	"z-novel-chapter-gen/internal/interfaces/http/router"
	workflowchain "z-novel-chapter-gen/internal/workflow/chain"
	workflowport "z-novel-chapter-gen/internal/workflow/port"
	workflowprompt "z-novel-chapter-gen/internal/workflow/prompt"
)

// InitializeApp 初始化 HTTP 应用（带路由器）
func InitializeApp(ctx context.Context, cfg *config.Config) (*router.Router, func(), error) {
	wire.Build(
		RedisSet,
		ChapterSet,
		RouterSet,
	)
	return nil, nil, nil
}

// InitializeChapterService 初始化章节生成服务（CLI 使用，不依赖 Redis）
func InitializeChapterService(ctx context.Context, cfg *config.Config) (*storychapter.Service, error) {
	wire.Build(ChapterSet)
	return nil, nil
}

// RedisSet Redis 提供者集合（未启用时提供 nil）
var RedisSet = wire.NewSet(
	ProvideRedisClient,
	ProvideRateLimiter,
)

// LLMSet 模型与提示词提供者集合
var LLMSet = wire.NewSet(
	llm.NewEinoFactory,
	wire.Bind(new(workflowport.ChatModelFactory), new(*llm.EinoFactory)),
	workflowprompt.NewRegistry,
)

// ChapterSet 章节生成提供者集合
var ChapterSet = wire.NewSet(
	LLMSet,
	docx.NewChapterRepository,
	wire.Bind(new(repository.ChapterRepository), new(*docx.ChapterRepository)),
	workflowchain.NewChapterPromptBuilder,
	wire.Bind(new(storychapter.PromptBuilder), new(*workflowchain.ChapterPromptBuilder)),
	storychapter.NewGenerator,
	wire.Bind(new(storychapter.TextGenerator), new(*storychapter.Generator)),
	storychapter.NewChecker,
	wire.Bind(new(storychapter.ValidityChecker), new(*storychapter.Checker)),
	storychapter.ControllerConfigFrom,
	storychapter.NewController,
	storychapter.NewService,
)

// RouterSet 路由器提供者集合
var RouterSet = wire.NewSet(
	session.NewManager,
	wire.Bind(new(handler.ChapterService), new(*storychapter.Service)),
	handler.NewHealthHandler,
	handler.NewSessionHandler,
	handler.NewStoryHandler,
	handler.NewChapterHandler,
	wire.Struct(new(router.RouterHandlers), "*"),
	router.NewWithDeps,
)
