package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/kart-io/quizmind/pkg/llm"
)

const testAPIKey = "test-key"

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.BaseURL != "https://api.openai.com/v1" {
		t.Errorf("expected BaseURL https://api.openai.com/v1, got %s", cfg.BaseURL)
	}
	if cfg.EmbedModel != "text-embedding-3-small" {
		t.Errorf("expected EmbedModel text-embedding-3-small, got %s", cfg.EmbedModel)
	}
	if cfg.Dimension != 1536 {
		t.Errorf("expected Dimension 1536, got %d", cfg.Dimension)
	}
	if cfg.MaxInputChars != 8000 {
		t.Errorf("expected MaxInputChars 8000, got %d", cfg.MaxInputChars)
	}
	if cfg.Timeout != 120*time.Second {
		t.Errorf("expected Timeout 120s, got %v", cfg.Timeout)
	}
}

func TestNewProvider(t *testing.T) {
	tests := []struct {
		name      string
		config    map[string]any
		wantDim   int
		wantError bool
	}{
		{
			name:    "valid config",
			config:  map[string]any{"api_key": testAPIKey},
			wantDim: 1536,
		},
		{
			name: "custom config",
			config: map[string]any{
				"api_key":         testAPIKey,
				"embed_model":     "text-embedding-3-large",
				"dimension":       3072,
				"max_input_chars": 4000,
				"organization":    "org-123",
			},
			wantDim: 3072,
		},
		{
			name:      "missing api_key",
			config:    map[string]any{},
			wantError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider, err := NewProvider(tt.config)
			if tt.wantError {
				if err == nil {
					t.Error("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if provider.Name() != ProviderName {
				t.Errorf("expected provider name %s, got %s", ProviderName, provider.Name())
			}
			if provider.Dimension() != tt.wantDim {
				t.Errorf("expected dimension %d, got %d", tt.wantDim, provider.Dimension())
			}
		})
	}
}

func newTestProvider(t *testing.T, handler http.HandlerFunc) *Provider {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	cfg := DefaultConfig()
	cfg.BaseURL = server.URL
	cfg.APIKey = testAPIKey
	cfg.MaxRetries = 0
	return NewProviderWithConfig(cfg)
}

func writeEmbeddings(w http.ResponseWriter, vectors map[int][]float32) {
	type item struct {
		Embedding []float32 `json:"embedding"`
		Index     int       `json:"index"`
	}
	data := make([]item, 0, len(vectors))
	for idx, v := range vectors {
		data = append(data, item{Embedding: v, Index: idx})
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"object": "list", "data": data})
}

func TestProviderEmbed(t *testing.T) {
	provider := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/embeddings" {
			t.Errorf("expected path /embeddings, got %s", r.URL.Path)
		}
		if r.Header.Get("Content-Type") != "application/json" {
			t.Error("expected Content-Type application/json")
		}
		if r.Header.Get("Authorization") != "Bearer test-key" {
			t.Error("expected Authorization Bearer test-key")
		}

		var req embeddingRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("failed to decode request: %v", err)
		}
		if len(req.Input) != 2 {
			t.Errorf("expected 2 inputs, got %d", len(req.Input))
		}

		// 乱序返回，由 index 还原
		writeEmbeddings(w, map[int][]float32{1: {0.4, 0.5, 0.6}, 0: {0.1, 0.2, 0.3}})
	})

	embeddings, err := provider.Embed(context.Background(), []string{"text1", "text2"})
	if err != nil {
		t.Fatalf("Embed failed: %v", err)
	}
	if len(embeddings) != 2 {
		t.Fatalf("expected 2 embeddings, got %d", len(embeddings))
	}
	if embeddings[0][0] != 0.1 || embeddings[1][0] != 0.4 {
		t.Errorf("embeddings out of order: %v", embeddings)
	}
}

func TestProviderEmbedMissingIndex(t *testing.T) {
	provider := newTestProvider(t, func(w http.ResponseWriter, _ *http.Request) {
		writeEmbeddings(w, map[int][]float32{0: {0.1}})
	})

	if _, err := provider.Embed(context.Background(), []string{"a", "b"}); err == nil {
		t.Error("expected error for missing embedding")
	}
}

func TestProviderEmbedEmpty(t *testing.T) {
	cfg := DefaultConfig()
	cfg.APIKey = testAPIKey
	provider := NewProviderWithConfig(cfg)

	embeddings, err := provider.Embed(context.Background(), []string{})
	if err != nil {
		t.Fatalf("Embed with empty texts failed: %v", err)
	}
	if embeddings != nil {
		t.Error("expected nil embeddings for empty input")
	}
}

func TestProviderGenerate(t *testing.T) {
	var received chatRequest
	provider := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("expected path /chat/completions, got %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Errorf("failed to decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]string{"role": "assistant", "content": "生成的文本"}, "finish_reason": "stop"},
			},
		})
	})
	provider.config.Temperature = 0.2

	response, err := provider.Generate(context.Background(), "生成一段文本", "你是一个助手")
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if response != "生成的文本" {
		t.Errorf("expected response '生成的文本', got '%s'", response)
	}
	if len(received.Messages) != 2 || received.Messages[0].Role != string(llm.RoleSystem) {
		t.Errorf("expected system + user messages, got %+v", received.Messages)
	}
	if received.Temperature != 0.2 {
		t.Errorf("expected temperature 0.2, got %f", received.Temperature)
	}
}

func TestProviderChatNoChoices(t *testing.T) {
	provider := newTestProvider(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[]}`))
	})

	_, err := provider.Chat(context.Background(), []llm.Message{{Role: llm.RoleUser, Content: "你好"}})
	if err == nil {
		t.Error("expected error for empty choices")
	}
}

func TestOrganizationHeader(t *testing.T) {
	provider := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("OpenAI-Organization") != "org-123" {
			t.Error("expected OpenAI-Organization header org-123")
		}
		writeEmbeddings(w, map[int][]float32{0: {0.1, 0.2, 0.3}})
	})
	provider.config.Organization = "org-123"

	if _, err := provider.EmbedSingle(context.Background(), "test"); err != nil {
		t.Fatalf("EmbedSingle failed: %v", err)
	}
}
