package model

import "time"

// LLMUsageMeta 单次调用的用量信息
type LLMUsageMeta struct {
	Provider         string
	Model            string
	PromptTokens     int
	CompletionTokens int
	GeneratedAt      time.Time
}

// ModelParams 调用参数，零值表示使用 provider 默认配置
type ModelParams struct {
	Provider    string
	Model       string
	Temperature *float32
	MaxTokens   *int
	// Timeout 单次调用超时，<= 0 表示不额外限制
	Timeout time.Duration
}
