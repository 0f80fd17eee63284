// Package config 提供配置加载和管理功能
package config

import (
	"time"
)

// Config 应用配置根结构
type Config struct {
	App           AppConfig           `yaml:"app" mapstructure:"app"`
	Server        ServerConfig        `yaml:"server" mapstructure:"server"`
	Cache         CacheConfig         `yaml:"cache" mapstructure:"cache"`
	Storage       StorageConfig       `yaml:"storage" mapstructure:"storage"`
	LLM           LLMConfig           `yaml:"llm" mapstructure:"llm"`
	Generation    GenerationConfig    `yaml:"generation" mapstructure:"generation"`
	Observability ObservabilityConfig `yaml:"observability" mapstructure:"observability"`
	Security      SecurityConfig      `yaml:"security" mapstructure:"security"`
	Features      FeaturesConfig      `yaml:"features" mapstructure:"features"`
}

// AppConfig 应用基础配置
type AppConfig struct {
	Name    string `yaml:"name" mapstructure:"name"`
	Version string `yaml:"version" mapstructure:"version"`
	Env     string `yaml:"env" mapstructure:"env"`
}

// ServerConfig 服务器配置
type ServerConfig struct {
	HTTP HTTPServerConfig `yaml:"http" mapstructure:"http"`
}

// HTTPServerConfig HTTP 服务器配置
type HTTPServerConfig struct {
	Host         string        `yaml:"host" mapstructure:"host"`
	Port         int           `yaml:"port" mapstructure:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout" mapstructure:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout" mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `yaml:"idle_timeout" mapstructure:"idle_timeout"`
}

// CacheConfig 缓存配置
type CacheConfig struct {
	Redis RedisConfig `yaml:"redis" mapstructure:"redis"`
}

// RedisConfig Redis 配置（仅用于 HTTP 限流，可关闭）
type RedisConfig struct {
	Enabled      bool          `yaml:"enabled" mapstructure:"enabled"`
	Host         string        `yaml:"host" mapstructure:"host"`
	Port         int           `yaml:"port" mapstructure:"port"`
	Password     string        `yaml:"password" mapstructure:"password"`
	DB           int           `yaml:"db" mapstructure:"db"`
	PoolSize     int           `yaml:"pool_size" mapstructure:"pool_size"`
	MinIdleConns int           `yaml:"min_idle_conns" mapstructure:"min_idle_conns"`
	DialTimeout  time.Duration `yaml:"dial_timeout" mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `yaml:"read_timeout" mapstructure:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout" mapstructure:"write_timeout"`
}

// StorageConfig 章节文件存储配置
type StorageConfig struct {
	// OutputRoot 非空时，所有输出目录都必须位于该目录下
	OutputRoot string `yaml:"output_root" mapstructure:"output_root"`
	// DefaultOutputPath 新会话的默认输出目录
	DefaultOutputPath string `yaml:"default_output_path" mapstructure:"default_output_path"`
}

// LLMConfig LLM 配置
type LLMConfig struct {
	// GenerationProvider 章节生成使用的 provider
	GenerationProvider string `yaml:"generation_provider" mapstructure:"generation_provider"`
	// CheckProvider 质量校验使用的 provider，为空时与生成相同
	CheckProvider string                    `yaml:"check_provider" mapstructure:"check_provider"`
	Providers     map[string]ProviderConfig `yaml:"providers" mapstructure:"providers"`
	// CallTimeout 单次模型调用超时
	CallTimeout time.Duration `yaml:"call_timeout" mapstructure:"call_timeout"`
	// HistoryWordBudget 前文章节的词数上限，0 表示不限制
	HistoryWordBudget int `yaml:"history_word_budget" mapstructure:"history_word_budget"`
}

// ProviderConfig LLM 提供商配置
type ProviderConfig struct {
	APIKey            string        `yaml:"api_key" mapstructure:"api_key"`
	BaseURL           string        `yaml:"base_url" mapstructure:"base_url"`
	Model             string        `yaml:"model" mapstructure:"model"`
	MaxTokens         int           `yaml:"max_tokens" mapstructure:"max_tokens"`
	Temperature       float64       `yaml:"temperature" mapstructure:"temperature"`
	Timeout           time.Duration `yaml:"timeout" mapstructure:"timeout"`
	RequestsPerMinute int           `yaml:"requests_per_minute" mapstructure:"requests_per_minute"`
}

// GenerationConfig 重试控制配置
type GenerationConfig struct {
	MaxAttempts         int           `yaml:"max_attempts" mapstructure:"max_attempts"`
	DefaultMinWordCount int           `yaml:"default_min_word_count" mapstructure:"default_min_word_count"`
	RetryBackoff        BackoffConfig `yaml:"retry_backoff" mapstructure:"retry_backoff"`
}

// BackoffConfig 退避配置
type BackoffConfig struct {
	Initial    time.Duration `yaml:"initial" mapstructure:"initial"`
	Max        time.Duration `yaml:"max" mapstructure:"max"`
	Multiplier float64       `yaml:"multiplier" mapstructure:"multiplier"`
}

// ObservabilityConfig 可观测性配置
type ObservabilityConfig struct {
	Logging LoggingConfig `yaml:"logging" mapstructure:"logging"`
	Tracing TracingConfig `yaml:"tracing" mapstructure:"tracing"`
	Metrics MetricsConfig `yaml:"metrics" mapstructure:"metrics"`
}

// LoggingConfig 日志配置
type LoggingConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// TracingConfig 追踪配置
type TracingConfig struct {
	Enabled    bool    `yaml:"enabled" mapstructure:"enabled"`
	Endpoint   string  `yaml:"endpoint" mapstructure:"endpoint"`
	SampleRate float64 `yaml:"sample_rate" mapstructure:"sample_rate"`
}

// MetricsConfig 指标配置
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" mapstructure:"enabled"`
	Path    string `yaml:"path" mapstructure:"path"`
}

// SecurityConfig 安全配置
type SecurityConfig struct {
	RateLimit RateLimitConfig `yaml:"rate_limit" mapstructure:"rate_limit"`
	CORS      CORSConfig      `yaml:"cors" mapstructure:"cors"`
}

// RateLimitConfig 限流配置
type RateLimitConfig struct {
	Enabled           bool `yaml:"enabled" mapstructure:"enabled"`
	RequestsPerSecond int  `yaml:"requests_per_second" mapstructure:"requests_per_second"`
	// GenerationsPerMinute 每个会话每分钟允许的章节生成次数
	GenerationsPerMinute int `yaml:"generations_per_minute" mapstructure:"generations_per_minute"`
}

// CORSConfig CORS 配置
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
	AllowedMethods []string `yaml:"allowed_methods" mapstructure:"allowed_methods"`
	AllowedHeaders []string `yaml:"allowed_headers" mapstructure:"allowed_headers"`
}

// FeaturesConfig 功能开关配置
type FeaturesConfig struct {
	Validation ValidationFeature `yaml:"validation" mapstructure:"validation"`
	Report     ReportFeature     `yaml:"report" mapstructure:"report"`
}

// ValidationFeature 校验功能开关
type ValidationFeature struct {
	Enabled bool `yaml:"enabled" mapstructure:"enabled"`
	// DefaultPassOnFailure 校验调用本身失败时是否视为通过
	DefaultPassOnFailure bool `yaml:"default_pass_on_failure" mapstructure:"default_pass_on_failure"`
}

// ReportFeature 校验报告文档开关
type ReportFeature struct {
	Enabled bool `yaml:"enabled" mapstructure:"enabled"`
}

// Provider 返回指定 provider 的配置
func (c *LLMConfig) Provider(name string) (ProviderConfig, bool) {
	if c == nil {
		return ProviderConfig{}, false
	}
	p, ok := c.Providers[name]
	return p, ok
}

// ResolvedCheckProvider 返回校验 provider，未配置时回落到生成 provider
func (c *LLMConfig) ResolvedCheckProvider() string {
	if c == nil {
		return ""
	}
	if c.CheckProvider != "" {
		return c.CheckProvider
	}
	return c.GenerationProvider
}
