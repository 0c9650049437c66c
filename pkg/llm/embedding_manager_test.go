package llm

import (
	"context"
	stderrors "errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/quizmind/pkg/errors"
)

type memoryRemote struct {
	mu   sync.Mutex
	data map[string][]float32
}

func (r *memoryRemote) Get(_ context.Context, key string) ([]float32, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.data[key]
	return v, ok
}

func (r *memoryRemote) Set(_ context.Context, key string, embedding []float32) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.data == nil {
		r.data = make(map[string][]float32)
	}
	r.data[key] = embedding
}

func TestEmbeddingManager_CacheHit(t *testing.T) {
	p := &mockProvider{name: "mock"}
	m := NewEmbeddingManager(p, ManagerOptions{})

	first, err := m.Embed(context.Background(), "hello")
	require.NoError(t, err)
	second, err := m.Embed(context.Background(), "hello")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, int32(1), p.calls.Load())

	stats := m.Stats()
	assert.Equal(t, int64(1), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)
	assert.Equal(t, int64(1), stats.ProviderCalls)
	assert.Equal(t, 1, stats.CacheEntries)
}

func TestEmbeddingManager_SubBatching(t *testing.T) {
	tests := []struct {
		name      string
		batchSize int
		inputs    int
		wantCalls int32
	}{
		{"默认批次上限", 0, 25, 3},
		{"超过上限取上限", 50, 25, 3},
		{"自定义批次", 4, 9, 3},
		{"单批", 10, 10, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &mockProvider{name: "mock"}
			m := NewEmbeddingManager(p, ManagerOptions{BatchSize: tt.batchSize})

			texts := make([]string, tt.inputs)
			for i := range texts {
				texts[i] = fmt.Sprintf("text-%03d", i)
			}

			vectors, err := m.EmbedBatch(context.Background(), texts)
			require.NoError(t, err)
			require.Len(t, vectors, tt.inputs)
			assert.Equal(t, tt.wantCalls, p.calls.Load())

			for _, batch := range p.inputs {
				assert.LessOrEqual(t, len(batch), MaxProviderBatchSize)
			}
		})
	}
}

func TestEmbeddingManager_PreservesOrderAndDedupes(t *testing.T) {
	p := &mockProvider{name: "mock"}
	m := NewEmbeddingManager(p, ManagerOptions{})

	vectors, err := m.EmbedBatch(context.Background(), []string{"a", "bbb", "a", "cc"})
	require.NoError(t, err)

	assert.Equal(t, float32(1), vectors[0][0])
	assert.Equal(t, float32(3), vectors[1][0])
	assert.Equal(t, float32(1), vectors[2][0])
	assert.Equal(t, float32(2), vectors[3][0])

	require.Len(t, p.inputs, 1)
	assert.Equal(t, []string{"a", "bbb", "cc"}, p.inputs[0])
}

func TestEmbeddingManager_Truncation(t *testing.T) {
	p := &mockProvider{name: "mock", maxChars: 5}
	m := NewEmbeddingManager(p, ManagerOptions{})

	_, err := m.Embed(context.Background(), "你好世界和平万岁")
	require.NoError(t, err)
	require.Len(t, p.inputs, 1)
	assert.Equal(t, "你好世界和", p.inputs[0][0])

	// 截断后内容相同，命中缓存
	_, err = m.Embed(context.Background(), "你好世界和平")
	require.NoError(t, err)
	assert.Equal(t, int32(1), p.calls.Load())
}

func TestEmbeddingManager_RetryOnce(t *testing.T) {
	t.Run("第二次成功", func(t *testing.T) {
		p := &mockProvider{name: "mock", failFirst: 1}
		m := NewEmbeddingManager(p, ManagerOptions{})

		v, err := m.Embed(context.Background(), "retry")
		require.NoError(t, err)
		assert.NotEmpty(t, v)
		assert.Equal(t, int32(2), p.calls.Load())
	})

	t.Run("两次失败", func(t *testing.T) {
		p := &mockProvider{name: "mock", failFirst: 2}
		m := NewEmbeddingManager(p, ManagerOptions{})

		_, err := m.Embed(context.Background(), "retry")
		require.Error(t, err)
		assert.True(t, stderrors.Is(err, errors.ErrRAGProviderFailure))
		assert.True(t, stderrors.Is(err, errMock))
		assert.Equal(t, int32(2), p.calls.Load())
	})
}

func TestEmbeddingManager_PartialFailure(t *testing.T) {
	// 第一批两次调用均失败，第二批成功
	p := &mockProvider{name: "mock", failFirst: 2}
	m := NewEmbeddingManager(p, ManagerOptions{BatchSize: 2})

	vectors, err := m.EmbedBatch(context.Background(), []string{"a", "b", "c"})
	require.Error(t, err)
	require.Len(t, vectors, 3)
	assert.Nil(t, vectors[0])
	assert.Nil(t, vectors[1])
	assert.NotNil(t, vectors[2])
}

func TestEmbeddingManager_RemoteStore(t *testing.T) {
	remote := &memoryRemote{}
	p := &mockProvider{name: "mock"}

	m1 := NewEmbeddingManager(p, ManagerOptions{Remote: remote})
	_, err := m1.Embed(context.Background(), "shared")
	require.NoError(t, err)

	// 新实例内存缓存为空，从二级缓存读取
	m2 := NewEmbeddingManager(p, ManagerOptions{Remote: remote})
	_, err = m2.Embed(context.Background(), "shared")
	require.NoError(t, err)

	assert.Equal(t, int32(1), p.calls.Load())
	assert.Equal(t, int64(1), m2.Stats().Hits)
}

func TestEmbeddingManager_Concurrent(t *testing.T) {
	p := &mockProvider{name: "mock"}
	m := NewEmbeddingManager(p, ManagerOptions{CacheSize: 16})

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				_, err := m.Embed(context.Background(), fmt.Sprintf("text-%d-%d", g%4, i%20))
				assert.NoError(t, err)
			}
		}(g)
	}
	wg.Wait()

	assert.LessOrEqual(t, m.Stats().CacheEntries, 16)
}

func TestEmbeddingCache_FIFOEviction(t *testing.T) {
	c := NewEmbeddingCache(2)
	c.Put("a", []float32{1})
	c.Put("b", []float32{2})

	// 重复写入不改变插入顺序
	c.Put("a", []float32{3})
	c.Put("c", []float32{4})

	_, ok := c.Get("a")
	assert.False(t, ok)
	v, ok := c.Get("b")
	assert.True(t, ok)
	assert.Equal(t, []float32{2}, v)
	_, ok = c.Get("c")
	assert.True(t, ok)
	assert.Equal(t, 2, c.Len())
}

func TestEmbeddingManager_CanceledContext(t *testing.T) {
	p := &mockProvider{name: "mock"}
	m := NewEmbeddingManager(p, ManagerOptions{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := m.Embed(ctx, "x")
	require.Error(t, err)
	assert.True(t, stderrors.Is(err, context.Canceled))
	assert.Equal(t, int32(0), p.calls.Load())
}
