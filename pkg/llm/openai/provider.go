// Package openai 提供 OpenAI 兼容的 LLM 供应商实现。
// 同时支持 OpenAI API 和兼容 OpenAI API 的服务（如 Azure OpenAI、LocalAI、vLLM 等）。
//
// 基本用法示例：
//
//	import _ "github.com/kart-io/quizmind/pkg/llm/openai"
//
//	embedder, err := llm.NewEmbeddingProvider("openai", map[string]any{
//	    "api_key": "your-api-key",
//	})
//	vectors, err := embedder.Embed(ctx, []string{"文本1", "文本2"})
package openai

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/kart-io/quizmind/pkg/llm"
	"github.com/kart-io/quizmind/pkg/utils/httpclient"
)

// ProviderName 是 OpenAI 供应商的名称标识符
const ProviderName = "openai"

func init() {
	llm.RegisterProvider(ProviderName, NewProvider)
}

// Config OpenAI 供应商配置。
type Config struct {
	// BaseURL API 基础地址，可设置为兼容 API 地址。
	BaseURL string `json:"base_url" mapstructure:"base_url"`

	// APIKey API 密钥。
	APIKey string `json:"api_key" mapstructure:"api_key"`

	// EmbedModel 用于生成嵌入的模型。
	EmbedModel string `json:"embed_model" mapstructure:"embed_model"`

	// ChatModel 用于对话的模型。
	ChatModel string `json:"chat_model" mapstructure:"chat_model"`

	// Dimension 嵌入向量维度，与 EmbedModel 对应。
	Dimension int `json:"dimension" mapstructure:"dimension"`

	// MaxInputChars 单个输入最大字符数。
	MaxInputChars int `json:"max_input_chars" mapstructure:"max_input_chars"`

	// Timeout 请求超时时间。
	Timeout time.Duration `json:"timeout" mapstructure:"timeout"`

	// MaxRetries HTTP 层最大重试次数。
	MaxRetries int `json:"max_retries" mapstructure:"max_retries"`

	// Organization 组织 ID（可选）。
	Organization string `json:"organization" mapstructure:"organization"`

	// Temperature 控制生成文本的随机性，0 表示使用 API 默认值。
	Temperature float64 `json:"temperature" mapstructure:"temperature"`

	// MaxTokens 最大生成 token 数，0 表示使用 API 默认值。
	MaxTokens int `json:"max_tokens" mapstructure:"max_tokens"`
}

// DefaultConfig 返回默认配置。
func DefaultConfig() *Config {
	return &Config{
		BaseURL:       "https://api.openai.com/v1",
		EmbedModel:    "text-embedding-3-small",
		ChatModel:     "gpt-4o-mini",
		Dimension:     1536,
		MaxInputChars: 8000,
		Timeout:       120 * time.Second,
		MaxRetries:    3,
	}
}

// Provider OpenAI 供应商实现。
type Provider struct {
	config *Config
	client *httpclient.Client
}

// NewProvider 从配置 map 创建 OpenAI 供应商。
func NewProvider(configMap map[string]any) (llm.Provider, error) {
	cfg := DefaultConfig()

	if v, ok := configMap["base_url"].(string); ok && v != "" {
		cfg.BaseURL = v
	}
	if v, ok := configMap["api_key"].(string); ok && v != "" {
		cfg.APIKey = v
	}
	if v, ok := configMap["embed_model"].(string); ok && v != "" {
		cfg.EmbedModel = v
	}
	if v, ok := configMap["chat_model"].(string); ok && v != "" {
		cfg.ChatModel = v
	}
	if v, ok := configMap["dimension"].(int); ok && v > 0 {
		cfg.Dimension = v
	}
	if v, ok := configMap["max_input_chars"].(int); ok && v > 0 {
		cfg.MaxInputChars = v
	}
	if v, ok := configMap["timeout"].(time.Duration); ok && v > 0 {
		cfg.Timeout = v
	}
	if v, ok := configMap["max_retries"].(int); ok && v >= 0 {
		cfg.MaxRetries = v
	}
	if v, ok := configMap["organization"].(string); ok && v != "" {
		cfg.Organization = v
	}
	if v, ok := configMap["temperature"].(float64); ok {
		cfg.Temperature = v
	}
	if v, ok := configMap["max_tokens"].(int); ok {
		cfg.MaxTokens = v
	}

	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai: api_key 是必需的")
	}

	return NewProviderWithConfig(cfg), nil
}

// NewProviderWithConfig 使用结构化配置创建 OpenAI 供应商。
func NewProviderWithConfig(cfg *Config) *Provider {
	return &Provider{
		config: cfg,
		client: httpclient.NewClient(cfg.Timeout, cfg.MaxRetries),
	}
}

// Name 返回供应商名称。
func (p *Provider) Name() string {
	return ProviderName
}

// Dimension 返回向量维度。
func (p *Provider) Dimension() int {
	return p.config.Dimension
}

// MaxInputChars 返回单个输入最大字符数。
func (p *Provider) MaxInputChars() int {
	return p.config.MaxInputChars
}

type embeddingRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embeddingResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
	Model string `json:"model"`
}

// Embed 为多个文本生成向量嵌入。
func (p *Provider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	var resp embeddingResponse
	err := p.client.PostJSON(ctx, p.config.BaseURL+"/embeddings", p.headers(),
		embeddingRequest{Model: p.config.EmbedModel, Input: texts}, &resp)
	if err != nil {
		return nil, fmt.Errorf("openai embed: %w", err)
	}

	// 按 index 排序确保顺序正确
	embeddings := make([][]float32, len(texts))
	for _, data := range resp.Data {
		if data.Index >= 0 && data.Index < len(embeddings) {
			embeddings[data.Index] = data.Embedding
		}
	}
	for i, e := range embeddings {
		if e == nil {
			return nil, fmt.Errorf("openai embed: missing embedding for input %d", i)
		}
	}

	return embeddings, nil
}

// EmbedSingle 为单个文本生成向量嵌入。
func (p *Provider) EmbedSingle(ctx context.Context, text string) ([]float32, error) {
	embeddings, err := p.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(embeddings) == 0 {
		return nil, fmt.Errorf("未返回向量嵌入")
	}
	return embeddings[0], nil
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Stream      bool          `json:"stream"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature float64       `json:"temperature,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message      chatMessage `json:"message"`
		FinishReason string      `json:"finish_reason"`
	} `json:"choices"`
}

// Chat 进行多轮对话。
func (p *Provider) Chat(ctx context.Context, messages []llm.Message) (string, error) {
	chatMessages := make([]chatMessage, len(messages))
	for i, msg := range messages {
		chatMessages[i] = chatMessage{Role: string(msg.Role), Content: msg.Content}
	}

	reqBody := chatRequest{
		Model:       p.config.ChatModel,
		Messages:    chatMessages,
		MaxTokens:   p.config.MaxTokens,
		Temperature: p.config.Temperature,
	}

	var resp chatResponse
	if err := p.client.PostJSON(ctx, p.config.BaseURL+"/chat/completions", p.headers(), reqBody, &resp); err != nil {
		return "", fmt.Errorf("openai chat: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("未返回响应内容")
	}
	return resp.Choices[0].Message.Content, nil
}

// Generate 根据提示生成文本。
func (p *Provider) Generate(ctx context.Context, prompt string, systemPrompt string) (string, error) {
	messages := make([]llm.Message, 0, 2)
	if systemPrompt != "" {
		messages = append(messages, llm.Message{Role: llm.RoleSystem, Content: systemPrompt})
	}
	messages = append(messages, llm.Message{Role: llm.RoleUser, Content: prompt})
	return p.Chat(ctx, messages)
}

func (p *Provider) headers() http.Header {
	h := http.Header{}
	h.Set("Authorization", "Bearer "+p.config.APIKey)
	if p.config.Organization != "" {
		h.Set("OpenAI-Organization", p.config.Organization)
	}
	return h
}
