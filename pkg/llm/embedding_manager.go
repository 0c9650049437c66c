package llm

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/kart-io/logger"

	"github.com/kart-io/quizmind/pkg/errors"
)

const (
	// MaxProviderBatchSize 单次发送给供应商的最大文本数。
	MaxProviderBatchSize = 10
	// DefaultEmbedTimeout 单次供应商调用超时。
	DefaultEmbedTimeout = 30 * time.Second
)

// ManagerOptions EmbeddingManager 配置。
type ManagerOptions struct {
	// CacheSize 内存缓存容量。
	CacheSize int
	// BatchSize 子批次大小，超过 MaxProviderBatchSize 时取上限。
	BatchSize int
	// Timeout 单次供应商调用超时。
	Timeout time.Duration
	// Remote 可选的二级缓存。
	Remote RemoteEmbeddingStore
}

// EmbeddingStats 缓存与调用统计。
type EmbeddingStats struct {
	Hits          int64 `json:"hits"`
	Misses        int64 `json:"misses"`
	ProviderCalls int64 `json:"provider_calls"`
	CacheEntries  int   `json:"cache_entries"`
}

// EmbeddingManager 负责截断、缓存、分批调用 Embedding 供应商。
// 实例由调用方显式构造并注入，可被多个 goroutine 共享。
type EmbeddingManager struct {
	provider  EmbeddingProvider
	cache     *EmbeddingCache
	remote    RemoteEmbeddingStore
	batchSize int
	timeout   time.Duration

	hits   atomic.Int64
	misses atomic.Int64
	calls  atomic.Int64
}

// NewEmbeddingManager 创建 EmbeddingManager。
func NewEmbeddingManager(provider EmbeddingProvider, opts ManagerOptions) *EmbeddingManager {
	batchSize := opts.BatchSize
	if batchSize <= 0 || batchSize > MaxProviderBatchSize {
		batchSize = MaxProviderBatchSize
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultEmbedTimeout
	}

	return &EmbeddingManager{
		provider:  provider,
		cache:     NewEmbeddingCache(opts.CacheSize),
		remote:    opts.Remote,
		batchSize: batchSize,
		timeout:   timeout,
	}
}

// Embed 为单个文本生成向量。
func (m *EmbeddingManager) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := m.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedBatch 为多个文本生成向量，结果与输入顺序一致。
// 部分子批次失败时，返回的切片仍与输入等长，失败位置为 nil，同时返回 ErrRAGProviderFailure。
func (m *EmbeddingManager) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	results := make([][]float32, len(texts))
	if len(texts) == 0 {
		return results, nil
	}

	maxChars := m.provider.MaxInputChars()

	// 同一批次内相同内容只请求一次。
	pending := make(map[string][]int)
	var missKeys []string
	var missTexts []string

	for i, text := range texts {
		input := truncateRunes(text, maxChars)
		key := embeddingKey(m.provider.Name(), input)

		if v, ok := m.lookup(ctx, key); ok {
			m.hits.Add(1)
			results[i] = v
			continue
		}
		m.misses.Add(1)

		if _, seen := pending[key]; !seen {
			missKeys = append(missKeys, key)
			missTexts = append(missTexts, input)
		}
		pending[key] = append(pending[key], i)
	}

	var firstErr error
	failed := 0
	for start := 0; start < len(missTexts); start += m.batchSize {
		end := min(start+m.batchSize, len(missTexts))

		vectors, err := m.callWithRetry(ctx, missTexts[start:end])
		if err != nil {
			failed += end - start
			if firstErr == nil {
				firstErr = err
			}
			continue
		}

		for j, vec := range vectors {
			key := missKeys[start+j]
			m.cache.Put(key, vec)
			if m.remote != nil {
				m.remote.Set(ctx, key, vec)
			}
			for _, idx := range pending[key] {
				results[idx] = vec
			}
		}
	}

	if firstErr != nil {
		logger.Warnw("embedding batch partially failed",
			"provider", m.provider.Name(),
			"failed", failed,
			"total", len(missTexts),
			"error", firstErr.Error(),
		)
		return results, errors.ErrRAGProviderFailure.WithCause(firstErr)
	}
	return results, nil
}

// Dimension 返回供应商向量维度。
func (m *EmbeddingManager) Dimension() int {
	return m.provider.Dimension()
}

// ProviderName 返回供应商名称。
func (m *EmbeddingManager) ProviderName() string {
	return m.provider.Name()
}

// Stats 返回统计快照。
func (m *EmbeddingManager) Stats() EmbeddingStats {
	return EmbeddingStats{
		Hits:          m.hits.Load(),
		Misses:        m.misses.Load(),
		ProviderCalls: m.calls.Load(),
		CacheEntries:  m.cache.Len(),
	}
}

func (m *EmbeddingManager) lookup(ctx context.Context, key string) ([]float32, bool) {
	if v, ok := m.cache.Get(key); ok {
		return v, true
	}
	if m.remote == nil {
		return nil, false
	}
	v, ok := m.remote.Get(ctx, key)
	if ok {
		m.cache.Put(key, v)
	}
	return v, ok
}

// callWithRetry 调用供应商，失败后立即重试一次。
func (m *EmbeddingManager) callWithRetry(ctx context.Context, batch []string) ([][]float32, error) {
	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		vectors, err := m.call(ctx, batch)
		if err == nil {
			return vectors, nil
		}
		lastErr = err
		logger.Warnw("embedding provider call failed",
			"provider", m.provider.Name(),
			"attempt", attempt+1,
			"batch_size", len(batch),
			"error", err.Error(),
		)
	}
	return nil, lastErr
}

func (m *EmbeddingManager) call(ctx context.Context, batch []string) ([][]float32, error) {
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	m.calls.Add(1)
	vectors, err := m.provider.Embed(ctx, batch)
	if err != nil {
		return nil, err
	}
	if len(vectors) != len(batch) {
		return nil, fmt.Errorf("provider returned %d vectors for %d inputs", len(vectors), len(batch))
	}

	dim := m.provider.Dimension()
	for i, v := range vectors {
		if len(v) == 0 || (dim > 0 && len(v) != dim) {
			return nil, fmt.Errorf("provider returned vector %d with dimension %d, expected %d", i, len(v), dim)
		}
	}
	return vectors, nil
}

// embeddingKey 以供应商名和截断后文本计算缓存键。
func embeddingKey(provider, text string) string {
	h := sha256.New()
	h.Write([]byte(provider))
	h.Write([]byte{0})
	h.Write([]byte(text))
	return hex.EncodeToString(h.Sum(nil))
}

func truncateRunes(s string, maxRunes int) string {
	if maxRunes <= 0 || len(s) <= maxRunes {
		return s
	}
	runes := []rune(s)
	if len(runes) <= maxRunes {
		return s
	}
	return string(runes[:maxRunes])
}
