// Package llm provides LLM provider configuration options.
package llm

import (
	"fmt"
	"time"

	"github.com/spf13/pflag"

	"github.com/kart-io/quizmind/pkg/options"
)

var (
	_ options.IOptions = (*EmbeddingOptions)(nil)
	_ options.IOptions = (*ChatOptions)(nil)
)

// ProviderOptions 定义 LLM 供应商配置。
type ProviderOptions struct {
	// Provider 供应商名称（ollama, openai）。
	Provider string `json:"provider" mapstructure:"provider"`

	// BaseURL API 基础地址。
	BaseURL string `json:"base-url" mapstructure:"base-url"`

	// APIKey API 密钥（OpenAI 等需要）。
	APIKey string `json:"-" mapstructure:"api-key"`

	// Model 使用的模型名称。
	Model string `json:"model" mapstructure:"model"`

	// Timeout 单次请求超时时间。
	Timeout time.Duration `json:"timeout" mapstructure:"timeout"`

	// MaxRetries 传输层最大重试次数。
	MaxRetries int `json:"max-retries" mapstructure:"max-retries"`

	// Organization 组织 ID（OpenAI 可选）。
	Organization string `json:"organization" mapstructure:"organization"`
}

func newProviderOptions() ProviderOptions {
	return ProviderOptions{
		Provider:   "ollama",
		BaseURL:    "http://localhost:11434",
		Timeout:    30 * time.Second,
		MaxRetries: 0,
	}
}

func (o *ProviderOptions) addFlags(fs *pflag.FlagSet, p string) {
	fs.StringVar(&o.Provider, p+"provider", o.Provider, "Provider name (ollama, openai).")
	fs.StringVar(&o.BaseURL, p+"base-url", o.BaseURL, "Provider API base URL.")
	fs.StringVar(&o.APIKey, p+"api-key", o.APIKey, "Provider API key.")
	fs.StringVar(&o.Model, p+"model", o.Model, "Model name.")
	fs.DurationVar(&o.Timeout, p+"timeout", o.Timeout, "Per-call timeout.")
	fs.IntVar(&o.MaxRetries, p+"max-retries", o.MaxRetries, "Transport-level retries for 5xx and network errors.")
	fs.StringVar(&o.Organization, p+"organization", o.Organization, "Organization ID (optional).")
}

func (o *ProviderOptions) validate(section string) []error {
	var errs []error
	if o.Provider == "" {
		errs = append(errs, fmt.Errorf("%s.provider is required", section))
	}
	if o.BaseURL == "" {
		errs = append(errs, fmt.Errorf("%s.base-url is required", section))
	}
	if o.Model == "" {
		errs = append(errs, fmt.Errorf("%s.model is required", section))
	}
	if o.Provider == "openai" && o.APIKey == "" {
		errs = append(errs, fmt.Errorf("%s.api-key is required for openai provider", section))
	}
	if o.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("%s.timeout must be positive", section))
	}
	if o.MaxRetries < 0 {
		errs = append(errs, fmt.Errorf("%s.max-retries must not be negative", section))
	}
	return errs
}

func (o *ProviderOptions) configMap() map[string]any {
	return map[string]any{
		"base_url":     o.BaseURL,
		"api_key":      o.APIKey,
		"timeout":      o.Timeout,
		"max_retries":  o.MaxRetries,
		"organization": o.Organization,
	}
}

// EmbeddingOptions 嵌入供应商与嵌入管理器配置。
type EmbeddingOptions struct {
	ProviderOptions `mapstructure:",squash"`

	// Dimension 向量维度，0 表示使用供应商默认值。
	Dimension int `json:"dimension" mapstructure:"dimension"`

	// MaxInputChars 单个输入的最大字符数，0 表示使用供应商默认值。
	MaxInputChars int `json:"max-input-chars" mapstructure:"max-input-chars"`

	// BatchSize 单次供应商调用的最大文本数（上限 10）。
	BatchSize int `json:"batch-size" mapstructure:"batch-size"`

	// CacheSize 进程内嵌入缓存容量。
	CacheSize int `json:"cache-size" mapstructure:"cache-size"`
}

// NewEmbeddingOptions 创建默认 Embedding 配置。
func NewEmbeddingOptions() *EmbeddingOptions {
	opts := &EmbeddingOptions{
		ProviderOptions: newProviderOptions(),
		BatchSize:       10,
		CacheSize:       10000,
	}
	opts.Model = "nomic-embed-text"
	return opts
}

// AddFlags adds the embedding.* flags.
func (o *EmbeddingOptions) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	p := options.Join(prefixes...) + "embedding."
	o.addFlags(fs, p)
	fs.IntVar(&o.Dimension, p+"dimension", o.Dimension, "Embedding dimension (0 uses the provider default).")
	fs.IntVar(&o.MaxInputChars, p+"max-input-chars", o.MaxInputChars, "Maximum characters per input (0 uses the provider default).")
	fs.IntVar(&o.BatchSize, p+"batch-size", o.BatchSize, "Maximum texts per provider call (at most 10).")
	fs.IntVar(&o.CacheSize, p+"cache-size", o.CacheSize, "In-process embedding cache capacity.")
}

// Validate validates the embedding options.
func (o *EmbeddingOptions) Validate() []error {
	if o == nil {
		return nil
	}

	errs := o.validate("embedding")
	if o.Dimension < 0 {
		errs = append(errs, fmt.Errorf("embedding.dimension must not be negative"))
	}
	if o.BatchSize <= 0 || o.BatchSize > 10 {
		errs = append(errs, fmt.Errorf("embedding.batch-size must be in [1, 10]"))
	}
	if o.CacheSize <= 0 {
		errs = append(errs, fmt.Errorf("embedding.cache-size must be positive"))
	}
	return errs
}

// ToConfigMap 转换为供应商工厂使用的配置 map。
func (o *EmbeddingOptions) ToConfigMap() map[string]any {
	m := o.configMap()
	m["embed_model"] = o.Model
	if o.Dimension > 0 {
		m["dimension"] = o.Dimension
	}
	if o.MaxInputChars > 0 {
		m["max_input_chars"] = o.MaxInputChars
	}
	return m
}

// ChatOptions 标注用对话模型配置。
type ChatOptions struct {
	ProviderOptions `mapstructure:",squash"`

	// Enabled 关闭时直接使用降级名称，不调用模型。
	Enabled bool `json:"enabled" mapstructure:"enabled"`

	// Temperature 采样温度。
	Temperature float64 `json:"temperature" mapstructure:"temperature"`

	// MaxTokens 回复最大 token 数。
	MaxTokens int `json:"max-tokens" mapstructure:"max-tokens"`
}

// NewChatOptions 创建默认 Chat 配置。
func NewChatOptions() *ChatOptions {
	opts := &ChatOptions{
		ProviderOptions: newProviderOptions(),
		Enabled:         true,
		Temperature:     0.2,
		MaxTokens:       1024,
	}
	opts.Model = "qwen2.5:7b"
	opts.Timeout = 60 * time.Second
	return opts
}

// AddFlags adds the chat.* flags.
func (o *ChatOptions) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	p := options.Join(prefixes...) + "chat."
	o.addFlags(fs, p)
	fs.BoolVar(&o.Enabled, p+"enabled", o.Enabled, "Label subjects with the chat model.")
	fs.Float64Var(&o.Temperature, p+"temperature", o.Temperature, "Sampling temperature.")
	fs.IntVar(&o.MaxTokens, p+"max-tokens", o.MaxTokens, "Maximum reply tokens.")
}

// Validate validates the chat options.
func (o *ChatOptions) Validate() []error {
	if o == nil || !o.Enabled {
		return nil
	}

	errs := o.validate("chat")
	if o.Temperature < 0 || o.Temperature > 2 {
		errs = append(errs, fmt.Errorf("chat.temperature must be in [0, 2]"))
	}
	return errs
}

// ToConfigMap 转换为供应商工厂使用的配置 map。
func (o *ChatOptions) ToConfigMap() map[string]any {
	m := o.configMap()
	m["chat_model"] = o.Model
	m["temperature"] = o.Temperature
	m["max_tokens"] = o.MaxTokens
	return m
}
