package llm

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/kart-io/logger"
	goredis "github.com/redis/go-redis/v9"

	"github.com/kart-io/quizmind/pkg/utils/json"
)

// DefaultEmbeddingCacheSize 默认内存缓存条目数。
const DefaultEmbeddingCacheSize = 10000

// EmbeddingCache 是容量受限的内存向量缓存，按插入顺序淘汰（FIFO）。
// 读操作持有读锁，插入与淘汰持有写锁；并发未命中可能导致重复调用供应商。
type EmbeddingCache struct {
	mu       sync.RWMutex
	capacity int
	entries  map[string][]float32
	// order 是环形队列，head 指向最早插入的键。
	order []string
	head  int
}

// NewEmbeddingCache 创建内存缓存，capacity <= 0 时使用默认容量。
func NewEmbeddingCache(capacity int) *EmbeddingCache {
	if capacity <= 0 {
		capacity = DefaultEmbeddingCacheSize
	}
	return &EmbeddingCache{
		capacity: capacity,
		entries:  make(map[string][]float32, capacity),
		order:    make([]string, 0, capacity),
	}
}

// Get 返回缓存的向量。
func (c *EmbeddingCache) Get(key string) ([]float32, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.entries[key]
	return v, ok
}

// Put 写入向量，容量已满时淘汰最早插入的条目。已存在的键不改变插入顺序。
func (c *EmbeddingCache) Put(key string, embedding []float32) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.entries[key]; ok {
		c.entries[key] = embedding
		return
	}

	if len(c.order) < c.capacity {
		c.order = append(c.order, key)
	} else {
		delete(c.entries, c.order[c.head])
		c.order[c.head] = key
		c.head = (c.head + 1) % c.capacity
	}
	c.entries[key] = embedding
}

// Len 返回当前条目数。
func (c *EmbeddingCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// RemoteEmbeddingStore 是内存缓存之后的二级缓存。
// 实现需自行吞掉后端错误，未命中与失败都返回 false。
type RemoteEmbeddingStore interface {
	Get(ctx context.Context, key string) ([]float32, bool)
	Set(ctx context.Context, key string, embedding []float32)
}

// RedisStoreConfig Redis 二级缓存配置。
type RedisStoreConfig struct {
	// TTL 缓存过期时间。
	TTL time.Duration
	// KeyPrefix 缓存键前缀。
	KeyPrefix string
}

// DefaultRedisStoreConfig 返回默认配置。
func DefaultRedisStoreConfig() RedisStoreConfig {
	return RedisStoreConfig{
		TTL:       24 * time.Hour, // Embedding 结果相对稳定，可以缓存更长时间
		KeyPrefix: "emb:",
	}
}

// RedisEmbeddingStore 基于 Redis 的二级向量缓存。
type RedisEmbeddingStore struct {
	client goredis.UniversalClient
	config RedisStoreConfig
}

// NewRedisEmbeddingStore 创建 Redis 二级缓存。
func NewRedisEmbeddingStore(client goredis.UniversalClient, config RedisStoreConfig) *RedisEmbeddingStore {
	if config.KeyPrefix == "" {
		config.KeyPrefix = DefaultRedisStoreConfig().KeyPrefix
	}
	return &RedisEmbeddingStore{client: client, config: config}
}

// Get 读取缓存，反序列化失败的条目会被删除。
func (s *RedisEmbeddingStore) Get(ctx context.Context, key string) ([]float32, bool) {
	if s == nil || s.client == nil {
		return nil, false
	}

	fullKey := s.config.KeyPrefix + key
	data, err := s.client.Get(ctx, fullKey).Bytes()
	if err != nil {
		if !errors.Is(err, goredis.Nil) {
			logger.Warnw("redis get error, falling back to provider", "error", err.Error())
		}
		return nil, false
	}

	var embedding []float32
	if err := json.Unmarshal(data, &embedding); err != nil {
		logger.Warnw("failed to unmarshal cached embedding, deleting", "error", err.Error(), "key", fullKey)
		_ = s.client.Del(ctx, fullKey).Err()
		return nil, false
	}
	return embedding, true
}

// Set 写入缓存，失败只记录日志。
func (s *RedisEmbeddingStore) Set(ctx context.Context, key string, embedding []float32) {
	if s == nil || s.client == nil {
		return
	}

	data, err := json.Marshal(embedding)
	if err != nil {
		logger.Warnw("failed to marshal embedding for caching", "error", err.Error())
		return
	}

	fullKey := s.config.KeyPrefix + key
	if err := s.client.Set(ctx, fullKey, data, s.config.TTL).Err(); err != nil {
		logger.Warnw("failed to cache embedding", "error", err.Error(), "key", fullKey)
	}
}

// Clear 删除所有带前缀的缓存键。
func (s *RedisEmbeddingStore) Clear(ctx context.Context) (int, error) {
	if s == nil || s.client == nil {
		return 0, nil
	}

	iter := s.client.Scan(ctx, 0, s.config.KeyPrefix+"*", 0).Iterator()
	deleted := 0
	for iter.Next(ctx) {
		if err := s.client.Del(ctx, iter.Val()).Err(); err != nil {
			logger.Warnw("failed to delete cache key", "error", err.Error(), "key", iter.Val())
			continue
		}
		deleted++
	}
	if err := iter.Err(); err != nil {
		return deleted, err
	}

	logger.Infow("cleared embedding cache", "deleted_count", deleted)
	return deleted, nil
}

var _ RemoteEmbeddingStore = (*RedisEmbeddingStore)(nil)
