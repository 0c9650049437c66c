// Package ollama 提供 Ollama LLM 供应商实现。
package ollama

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/kart-io/quizmind/pkg/llm"
	"github.com/kart-io/quizmind/pkg/utils/httpclient"
)

const ProviderName = "ollama"

func init() {
	llm.RegisterProvider(ProviderName, NewProvider)
}

// Config Ollama 供应商配置。
type Config struct {
	BaseURL       string        `json:"base_url" mapstructure:"base_url"`
	EmbedModel    string        `json:"embed_model" mapstructure:"embed_model"`
	ChatModel     string        `json:"chat_model" mapstructure:"chat_model"`
	Dimension     int           `json:"dimension" mapstructure:"dimension"`
	MaxInputChars int           `json:"max_input_chars" mapstructure:"max_input_chars"`
	Timeout       time.Duration `json:"timeout" mapstructure:"timeout"`
	MaxRetries    int           `json:"max_retries" mapstructure:"max_retries"`
}

// DefaultConfig 返回默认配置。
func DefaultConfig() *Config {
	return &Config{
		BaseURL:       "http://localhost:11434",
		EmbedModel:    "nomic-embed-text",
		ChatModel:     "qwen2.5:7b",
		Dimension:     768,
		MaxInputChars: 8000,
		Timeout:       120 * time.Second,
		MaxRetries:    3,
	}
}

// Provider Ollama 供应商实现。
type Provider struct {
	config *Config
	client *httpclient.Client
}

// NewProvider 从配置 map 创建 Ollama 供应商。
func NewProvider(configMap map[string]any) (llm.Provider, error) {
	cfg := DefaultConfig()

	if v, ok := configMap["base_url"].(string); ok && v != "" {
		cfg.BaseURL = v
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

	return NewProviderWithConfig(cfg), nil
}

// NewProviderWithConfig 使用结构化配置创建 Ollama 供应商。
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

type embedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embedResponse struct {
	Model      string      `json:"model"`
	Embeddings [][]float32 `json:"embeddings"`
}

// Embed 为多个文本生成向量嵌入。
func (p *Provider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	var resp embedResponse
	err := p.client.PostJSON(ctx, p.config.BaseURL+"/api/embed", nil,
		embedRequest{Model: p.config.EmbedModel, Input: texts}, &resp)
	if err != nil {
		return nil, fmt.Errorf("ollama embed: %w", err)
	}
	if len(resp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("ollama embed: expected %d embeddings, got %d", len(texts), len(resp.Embeddings))
	}
	return resp.Embeddings, nil
}

// EmbedSingle 为单个文本生成向量嵌入。
func (p *Provider) EmbedSingle(ctx context.Context, text string) ([]float32, error) {
	embeddings, err := p.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return embeddings[0], nil
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
	Stream   bool          `json:"stream"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Model   string      `json:"model"`
	Message chatMessage `json:"message"`
	Done    bool        `json:"done"`
}

// Chat 进行多轮对话。
func (p *Provider) Chat(ctx context.Context, messages []llm.Message) (string, error) {
	chatMessages := make([]chatMessage, len(messages))
	for i, msg := range messages {
		chatMessages[i] = chatMessage{Role: string(msg.Role), Content: msg.Content}
	}

	var resp chatResponse
	err := p.client.PostJSON(ctx, p.config.BaseURL+"/api/chat", nil,
		chatRequest{Model: p.config.ChatModel, Messages: chatMessages}, &resp)
	if err != nil {
		return "", fmt.Errorf("ollama chat: %w", err)
	}
	return resp.Message.Content, nil
}

type generateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
	System string `json:"system,omitempty"`
}

type generateResponse struct {
	Model    string `json:"model"`
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

// Generate 根据提示生成文本。
func (p *Provider) Generate(ctx context.Context, prompt string, systemPrompt string) (string, error) {
	var resp generateResponse
	err := p.client.PostJSON(ctx, p.config.BaseURL+"/api/generate", nil,
		generateRequest{Model: p.config.ChatModel, Prompt: prompt, System: systemPrompt}, &resp)
	if err != nil {
		return "", fmt.Errorf("ollama generate: %w", err)
	}
	return resp.Response, nil
}

// Ping 检查 Ollama 服务是否可用。
func (p *Provider) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.config.BaseURL+"/api/tags", nil)
	if err != nil {
		return fmt.Errorf("创建请求失败: %w", err)
	}
	if err := p.client.DoJSON(req, nil); err != nil {
		return fmt.Errorf("服务不可用: %w", err)
	}
	return nil
}
