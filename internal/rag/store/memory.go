package store

import (
	"context"
	"sort"
	"sync"

	"github.com/kart-io/quizmind/internal/model"
	"github.com/kart-io/quizmind/internal/pkg/rag/textutil"
	"github.com/kart-io/quizmind/pkg/cache"
)

const documentIndex = "document_id"

// MemoryChunkStore 进程内文档块存储，用于本地运行与测试。按文档块 ID 存放，
// document_id 作为二级索引。
type MemoryChunkStore struct {
	mu        sync.RWMutex
	dimension int
	chunks    *cache.MemoryCache[string, *model.Chunk]
}

// NewMemoryChunkStore 创建进程内存储。
func NewMemoryChunkStore() *MemoryChunkStore {
	chunks := cache.NewMemoryCache[string, *model.Chunk]()
	chunks.AddIndex(documentIndex, func(c *model.Chunk) any { return c.DocumentID })
	return &MemoryChunkStore{chunks: chunks}
}

// EnsureCollection 记录向量维度。
func (s *MemoryChunkStore) EnsureCollection(_ context.Context, dimension int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dimension = dimension
	return nil
}

// Insert 写入文档块副本，相同 ID 覆盖。
func (s *MemoryChunkStore) Insert(_ context.Context, chunks []*model.Chunk) error {
	copies := make([]*model.Chunk, len(chunks))
	for i, c := range chunks {
		cp := *c
		copies[i] = &cp
	}
	s.chunks.SetMany(copies, func(c *model.Chunk) string { return c.ID })
	return nil
}

// Search 暴力计算余弦相似度。
func (s *MemoryChunkStore) Search(_ context.Context, vector []float32, filter *Filter, topK int) ([]*SearchHit, error) {
	matched := s.chunks.Filter(func(c *model.Chunk) bool {
		return c.HasEmbedding() && filter.Match(c)
	})

	hits := make([]*SearchHit, 0, len(matched))
	for _, c := range matched {
		cp := *c
		hits = append(hits, &SearchHit{
			Chunk: &cp,
			Score: float32(textutil.CosineSimilarity(vector, c.Embedding)),
		})
	}

	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].Chunk.ID < hits[j].Chunk.ID
	})
	if topK > 0 && len(hits) > topK {
		hits = hits[:topK]
	}
	return hits, nil
}

// ListByDocuments 返回范围内的文档块。
func (s *MemoryChunkStore) ListByDocuments(_ context.Context, filter *Filter) ([]*model.Chunk, error) {
	matched := s.chunks.Filter(filter.Match)
	out := make([]*model.Chunk, len(matched))
	for i, c := range matched {
		cp := *c
		out[i] = &cp
	}
	sortChunks(out)
	return out, nil
}

// DeleteByDocument 删除文档的全部文档块。
func (s *MemoryChunkStore) DeleteByDocument(_ context.Context, documentID string) error {
	_, err := s.chunks.DelByIndex(documentIndex, documentID)
	return err
}

// Count 返回文档块总数。
func (s *MemoryChunkStore) Count(_ context.Context) (int64, error) {
	return int64(s.chunks.Len()), nil
}

func sortChunks(chunks []*model.Chunk) {
	sort.SliceStable(chunks, func(i, j int) bool {
		if chunks[i].DocumentID != chunks[j].DocumentID {
			return chunks[i].DocumentID < chunks[j].DocumentID
		}
		return chunks[i].Index < chunks[j].Index
	})
}

var _ ChunkStore = (*MemoryChunkStore)(nil)
