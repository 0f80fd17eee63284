// Package llm 提供 LLM ChatModel 客户端管理
package llm

import (
	"context"
	"fmt"
	"sync"

	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"

	"z-novel-chapter-gen/internal/config"
)

// EinoFactory 管理多个 Eino ChatModel 客户端实例
type EinoFactory struct {
	config *config.LLMConfig
	models map[string]model.BaseChatModel
	mu     sync.RWMutex

	// newModel 便于测试替换底层模型构造
	newModel func(ctx context.Context, p config.ProviderConfig) (model.BaseChatModel, error)
}

// NewEinoFactory 创建 Eino LLM 工厂
func NewEinoFactory(cfg *config.Config) *EinoFactory {
	return &EinoFactory{
		config:   &cfg.LLM,
		models:   make(map[string]model.BaseChatModel),
		newModel: newOpenAIChatModel,
	}
}

// Get 获取指定名称的 ChatModel，未指定时返回生成用 provider
func (f *EinoFactory) Get(ctx context.Context, name string) (model.BaseChatModel, error) {
	if name == "" {
		name = f.config.GenerationProvider
	}

	f.mu.RLock()
	m, ok := f.models[name]
	f.mu.RUnlock()
	if ok {
		return m, nil
	}

	// 惰性加载
	f.mu.Lock()
	defer f.mu.Unlock()

	// 再次检查防止竞态
	if m, ok = f.models[name]; ok {
		return m, nil
	}

	providerCfg, ok := f.config.Provider(name)
	if !ok {
		return nil, fmt.Errorf("provider %s not found in LLM config", name)
	}

	chatModel, err := f.newModel(ctx, providerCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create eino chat model for %s: %w", name, err)
	}

	// 按 provider 配额节流，避免把配额错误留给重试控制器消耗尝试次数
	chatModel = withPacing(chatModel, providerCfg.RequestsPerMinute)

	f.models[name] = chatModel
	return chatModel, nil
}

// Default 返回生成用 ChatModel
func (f *EinoFactory) Default(ctx context.Context) (model.BaseChatModel, error) {
	return f.Get(ctx, "")
}

// newOpenAIChatModel 使用 Eino 的 OpenAI 兼容适配器（Gemini 通过 base_url 接入）
func newOpenAIChatModel(ctx context.Context, p config.ProviderConfig) (model.BaseChatModel, error) {
	cfg := &openai.ChatModelConfig{
		APIKey:      p.APIKey,
		BaseURL:     p.BaseURL,
		Model:       p.Model,
		Temperature: ptrFloat32(float32(p.Temperature)),
		Timeout:     p.Timeout,
	}
	if p.MaxTokens > 0 {
		maxTokens := p.MaxTokens
		cfg.MaxTokens = &maxTokens
	}
	return openai.NewChatModel(ctx, cfg)
}

func ptrFloat32(f float32) *float32 {
	return &f
}
