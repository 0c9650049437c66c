// Package llm 提供统一的 LLM 供应商抽象层。
// Embedding 和 Chat 可以使用不同供应商的模型，供应商通过名称在注册表中选择。
package llm

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// EmbeddingProvider 定义 Embedding 供应商接口。
// 同一模型的向量维度固定，调用方需按 MaxInputChars 截断输入。
type EmbeddingProvider interface {
	// Embed 为多个文本生成向量嵌入，结果顺序与输入一致。
	Embed(ctx context.Context, texts []string) ([][]float32, error)

	// EmbedSingle 为单个文本生成向量嵌入。
	EmbedSingle(ctx context.Context, text string) ([]float32, error)

	// Dimension 返回向量维度。
	Dimension() int

	// MaxInputChars 返回单个输入允许的最大字符数。
	MaxInputChars() int

	// Name 返回供应商名称。
	Name() string
}

// ChatProvider 定义 Chat 供应商接口。
type ChatProvider interface {
	// Chat 进行多轮对话。
	Chat(ctx context.Context, messages []Message) (string, error)

	// Generate 根据提示生成文本（单轮）。
	Generate(ctx context.Context, prompt string, systemPrompt string) (string, error)

	// Name 返回供应商名称。
	Name() string
}

// Message 表示对话中的一条消息。
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Role 定义消息角色。
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Provider 同时支持 Embedding 和 Chat 的完整供应商。
type Provider interface {
	EmbeddingProvider
	ChatProvider
}

// ProviderFactory 供应商工厂函数类型。
type ProviderFactory func(config map[string]any) (Provider, error)

// registry 供应商注册表。
var registry = &providerRegistry{
	providers: make(map[string]ProviderFactory),
}

type providerRegistry struct {
	mu        sync.RWMutex
	providers map[string]ProviderFactory
}

// RegisterProvider 注册供应商工厂，重复注册会覆盖。
func RegisterProvider(name string, factory ProviderFactory) {
	registry.mu.Lock()
	defer registry.mu.Unlock()
	registry.providers[name] = factory
}

// NewProvider 根据名称创建供应商实例。
func NewProvider(name string, config map[string]any) (Provider, error) {
	registry.mu.RLock()
	factory, ok := registry.providers[name]
	registry.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("unknown provider: %s", name)
	}

	return factory(config)
}

// NewEmbeddingProvider 根据名称创建 Embedding 供应商实例。
func NewEmbeddingProvider(name string, config map[string]any) (EmbeddingProvider, error) {
	p, err := NewProvider(name, config)
	if err != nil {
		return nil, fmt.Errorf("embedding provider: %w", err)
	}
	return p, nil
}

// NewChatProvider 根据名称创建 Chat 供应商实例。
func NewChatProvider(name string, config map[string]any) (ChatProvider, error) {
	p, err := NewProvider(name, config)
	if err != nil {
		return nil, fmt.Errorf("chat provider: %w", err)
	}
	return p, nil
}

// ListProviders 列出所有已注册的供应商名称（已排序）。
func ListProviders() []string {
	registry.mu.RLock()
	defer registry.mu.RUnlock()

	names := make([]string, 0, len(registry.providers))
	for name := range registry.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
