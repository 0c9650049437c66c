package llm

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
)

// mockProvider 模拟供应商实现，用于测试。
type mockProvider struct {
	name     string
	dim      int
	maxChars int

	mu     sync.Mutex
	inputs [][]string
	calls  atomic.Int32
	// failFirst 前 N 次调用返回错误。
	failFirst int32
}

func (m *mockProvider) Name() string {
	return m.name
}

func (m *mockProvider) Dimension() int {
	if m.dim == 0 {
		return 3
	}
	return m.dim
}

func (m *mockProvider) MaxInputChars() int {
	return m.maxChars
}

func (m *mockProvider) Embed(_ context.Context, texts []string) ([][]float32, error) {
	n := m.calls.Add(1)
	m.mu.Lock()
	m.inputs = append(m.inputs, append([]string(nil), texts...))
	m.mu.Unlock()

	if n <= m.failFirst {
		return nil, errMock
	}

	result := make([][]float32, len(texts))
	for i, text := range texts {
		vec := make([]float32, m.Dimension())
		vec[0] = float32(len([]rune(text)))
		vec[len(vec)-1] = 1
		result[i] = vec
	}
	return result, nil
}

func (m *mockProvider) EmbedSingle(ctx context.Context, text string) ([]float32, error) {
	vectors, err := m.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

func (m *mockProvider) Chat(_ context.Context, _ []Message) (string, error) {
	return "mock response", nil
}

func (m *mockProvider) Generate(_ context.Context, _ string, _ string) (string, error) {
	return "mock generated text", nil
}

type mockError string

func (e mockError) Error() string { return string(e) }

const errMock = mockError("mock provider failure")

func TestRegisterAndNewProvider(t *testing.T) {
	RegisterProvider("test-provider", func(config map[string]any) (Provider, error) {
		name := "test-provider"
		if n, ok := config["name"].(string); ok {
			name = n
		}
		return &mockProvider{name: name}, nil
	})

	provider, err := NewProvider("test-provider", map[string]any{"name": "custom-name"})
	if err != nil {
		t.Fatalf("NewProvider failed: %v", err)
	}

	if provider.Name() != "custom-name" {
		t.Errorf("expected name 'custom-name', got '%s'", provider.Name())
	}
}

func TestNewProviderUnknown(t *testing.T) {
	_, err := NewProvider("unknown-provider", nil)
	if err == nil {
		t.Fatal("expected error for unknown provider")
	}

	_, err = NewEmbeddingProvider("unknown-provider", nil)
	if err == nil || !strings.Contains(err.Error(), "embedding provider: unknown provider") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestNewProviderFactoryError(t *testing.T) {
	RegisterProvider("broken", func(map[string]any) (Provider, error) {
		return nil, errMock
	})

	_, err := NewChatProvider("broken", nil)
	if err == nil || !strings.Contains(err.Error(), errMock.Error()) {
		t.Errorf("expected factory error to be wrapped, got %v", err)
	}
}

func TestListProviders(t *testing.T) {
	RegisterProvider("zz-provider", func(map[string]any) (Provider, error) {
		return &mockProvider{name: "zz"}, nil
	})
	RegisterProvider("aa-provider", func(map[string]any) (Provider, error) {
		return &mockProvider{name: "aa"}, nil
	})

	names := ListProviders()
	aa, zz := -1, -1
	for i, n := range names {
		switch n {
		case "aa-provider":
			aa = i
		case "zz-provider":
			zz = i
		}
	}
	if aa < 0 || zz < 0 || aa > zz {
		t.Errorf("expected sorted provider list, got %v", names)
	}
}

func TestMessageRoles(t *testing.T) {
	msgs := []Message{
		{Role: RoleSystem, Content: "system"},
		{Role: RoleUser, Content: "user"},
		{Role: RoleAssistant, Content: "assistant"},
	}
	want := []string{"system", "user", "assistant"}
	for i, m := range msgs {
		if string(m.Role) != want[i] {
			t.Errorf("role %d: expected %s, got %s", i, want[i], m.Role)
		}
	}
}
