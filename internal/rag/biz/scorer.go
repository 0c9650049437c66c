package biz

import (
	"context"
	"fmt"
	"sort"
	"unicode/utf8"

	"github.com/kart-io/logger"

	"github.com/kart-io/quizmind/internal/model"
	"github.com/kart-io/quizmind/internal/pkg/rag/textutil"
	"github.com/kart-io/quizmind/internal/rag/store"
	"github.com/kart-io/quizmind/pkg/errors"
)

const (
	// rawChunkSize 原文回退时的临时分块大小。
	rawChunkSize = 1800
	// rawChunkOverlap 原文回退时的临时分块重叠。
	rawChunkOverlap = 300
	// DefaultCandidateLimit 向量检索的候选数量。
	DefaultCandidateLimit = 1000
)

// Embedder 查询与文档块的向量化能力，由 llm.EmbeddingManager 实现。
type Embedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimension() int
}

// RelevanceScorer 按向量或词法策略为文档块评分。
type RelevanceScorer struct {
	embedder       Embedder
	chunks         store.ChunkStore
	meta           store.MetadataStore
	candidateLimit int
}

// NewRelevanceScorer 创建评分器。candidateLimit <= 0 时使用默认值。
func NewRelevanceScorer(embedder Embedder, chunks store.ChunkStore, meta store.MetadataStore, candidateLimit int) *RelevanceScorer {
	if candidateLimit <= 0 {
		candidateLimit = DefaultCandidateLimit
	}
	return &RelevanceScorer{
		embedder:       embedder,
		chunks:         chunks,
		meta:           meta,
		candidateLimit: candidateLimit,
	}
}

// Score 返回按分数降序、截断到 min(2×Count, 40) 的文档块。
// 两种策略均无结果时返回 ErrRAGNoRelevantContent。
func (s *RelevanceScorer) Score(ctx context.Context, q *RelevanceQuery) ([]*ScoredChunk, error) {
	return s.score(ctx, q, q.ResultCap())
}

func (s *RelevanceScorer) score(ctx context.Context, q *RelevanceQuery, limit int) ([]*ScoredChunk, error) {
	filter := &store.Filter{DocumentIDs: q.DocumentIDs, WorkspaceID: q.WorkspaceID}
	lex := NewLexicalScorer(q)

	var scored []*ScoredChunk
	vectors, err := s.embedQuery(ctx, q)
	if err != nil {
		logger.Warnw("query embedding failed, using lexical scoring",
			"documents", len(q.DocumentIDs),
			"error", err.Error(),
		)
		scored = s.scoreStoredLexically(ctx, filter, lex)
	} else {
		scored = s.scoreVector(ctx, filter, vectors, lex)
	}

	if len(scored) == 0 {
		scored, err = s.scoreContentLexically(ctx, q, lex)
		if err != nil {
			return nil, err
		}
	}
	if len(scored) == 0 {
		return nil, errors.ErrRAGNoRelevantContent
	}

	rankScored(scored)
	if limit > 0 && len(scored) > limit {
		scored = scored[:limit]
	}
	return scored, nil
}

// scoreScoped 仅以向量策略在全部文档范围内评分，结果按分数降序。
// 查询嵌入失败时返回空，由调用方逐文档回退。
func (s *RelevanceScorer) scoreScoped(ctx context.Context, q *RelevanceQuery) []*ScoredChunk {
	vectors, err := s.embedQuery(ctx, q)
	if err != nil {
		logger.Warnw("query embedding failed, skipping scoped vector search",
			"documents", len(q.DocumentIDs),
			"error", err.Error(),
		)
		return nil
	}

	filter := &store.Filter{DocumentIDs: q.DocumentIDs, WorkspaceID: q.WorkspaceID}
	scored := s.scoreVector(ctx, filter, vectors, NewLexicalScorer(q))
	rankScored(scored)
	return scored
}

type queryVectors struct {
	topic        []float32
	instructions []float32
	subjects     [][]float32
}

// anchor 返回用于近邻检索的向量。
func (v *queryVectors) anchor() []float32 {
	switch {
	case len(v.topic) > 0:
		return v.topic
	case len(v.instructions) > 0:
		return v.instructions
	case len(v.subjects) > 0:
		return v.subjects[0]
	}
	return nil
}

// embedQuery 通过一次 EmbedBatch 嵌入主题、说明与知识点。
func (s *RelevanceScorer) embedQuery(ctx context.Context, q *RelevanceQuery) (*queryVectors, error) {
	var texts []string
	topicIdx, instrIdx := -1, -1
	if q.Topic != "" {
		topicIdx = len(texts)
		texts = append(texts, q.Topic)
	}
	if q.Instructions != "" {
		instrIdx = len(texts)
		texts = append(texts, q.Instructions)
	}
	subjectStart := len(texts)
	texts = append(texts, q.Subjects...)

	embeddings, err := s.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, err
	}

	v := &queryVectors{}
	if topicIdx >= 0 {
		v.topic = embeddings[topicIdx]
	}
	if instrIdx >= 0 {
		v.instructions = embeddings[instrIdx]
	}
	v.subjects = embeddings[subjectStart:]
	if v.anchor() == nil {
		return nil, fmt.Errorf("no query vector produced")
	}
	return v, nil
}

// scoreVector 对近邻候选按 0.7·主题 + 0.3·知识点 评分，向量不可比较的文档块改用词法评分。
func (s *RelevanceScorer) scoreVector(ctx context.Context, filter *store.Filter, v *queryVectors, lex *LexicalScorer) []*ScoredChunk {
	hits, err := s.chunks.Search(ctx, v.anchor(), filter, s.candidateLimit)
	if err != nil {
		logger.Warnw("vector search failed, using lexical scoring on document content",
			"filter", filter.Expr(),
			"error", err.Error(),
		)
		return nil
	}

	hasTopic := len(v.topic) > 0 || len(v.instructions) > 0
	hasSubjects := len(v.subjects) > 0

	var scored []*ScoredChunk
	for _, hit := range hits {
		c := hit.Chunk
		if !textutil.Comparable(c.Embedding, v.anchor()) {
			if score := lex.Score(c.Content); score > 0 {
				scored = append(scored, &ScoredChunk{Chunk: c, Score: score, Strategy: StrategyLexical})
			}
			continue
		}

		topic := max(similarity(c.Embedding, v.topic), similarity(c.Embedding, v.instructions))
		var subject float64
		for _, sv := range v.subjects {
			subject = max(subject, similarity(c.Embedding, sv))
		}

		score := combineScores(topic, subject, hasTopic, hasSubjects)
		if score <= 0 {
			continue
		}
		scored = append(scored, &ScoredChunk{Chunk: c, Score: score, Strategy: StrategyVector})
	}
	return scored
}

// scoreStoredLexically 对已持久化的文档块做词法评分。
func (s *RelevanceScorer) scoreStoredLexically(ctx context.Context, filter *store.Filter, lex *LexicalScorer) []*ScoredChunk {
	chunks, err := s.chunks.ListByDocuments(ctx, filter)
	if err != nil {
		logger.Warnw("list chunks failed", "filter", filter.Expr(), "error", err.Error())
		return nil
	}
	return scoreLexically(chunks, lex)
}

// scoreContentLexically 将文档原文临时分块后做词法评分。
func (s *RelevanceScorer) scoreContentLexically(ctx context.Context, q *RelevanceQuery, lex *LexicalScorer) ([]*ScoredChunk, error) {
	docs, err := s.meta.ListDocuments(ctx, q.DocumentIDs)
	if err != nil {
		return nil, err
	}

	var chunks []*model.Chunk
	for _, doc := range docs {
		if q.WorkspaceID != "" && doc.WorkspaceID != q.WorkspaceID {
			continue
		}
		chunks = append(chunks, rawChunks(doc)...)
	}
	return scoreLexically(chunks, lex), nil
}

func scoreLexically(chunks []*model.Chunk, lex *LexicalScorer) []*ScoredChunk {
	var scored []*ScoredChunk
	for _, c := range chunks {
		if score := lex.Score(c.Content); score > 0 {
			scored = append(scored, &ScoredChunk{Chunk: c, Score: score, Strategy: StrategyLexical})
		}
	}
	return scored
}

// rawChunks 按固定窗口切分文档原文。
func rawChunks(doc *model.Document) []*model.Chunk {
	pieces := textutil.SplitIntoChunks(doc.Content, rawChunkSize, rawChunkOverlap)
	chunks := make([]*model.Chunk, 0, len(pieces))
	for i, text := range pieces {
		start := i * (rawChunkSize - rawChunkOverlap)
		end := start + utf8.RuneCountInString(text)
		chunks = append(chunks, &model.Chunk{
			ID:          fmt.Sprintf("%s-raw-%d", doc.ID, i),
			DocumentID:  doc.ID,
			WorkspaceID: doc.WorkspaceID,
			Index:       i,
			Content:     text,
			StartChar:   start,
			EndChar:     end,
			Metadata: model.ChunkMetadata{
				StartChar:   start,
				EndChar:     end,
				ChunkIndex:  i,
				TotalChunks: len(pieces),
			},
		})
	}
	return chunks
}

func similarity(a, b []float32) float64 {
	if !textutil.Comparable(a, b) {
		return 0
	}
	return textutil.ClampScore(textutil.CosineSimilarity(a, b))
}

// rankScored 按分数降序稳定排序，同分按文档与序号排列。
func rankScored(scored []*ScoredChunk) {
	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].Score != scored[j].Score {
			return scored[i].Score > scored[j].Score
		}
		a, b := scored[i].Chunk, scored[j].Chunk
		if a.DocumentID != b.DocumentID {
			return a.DocumentID < b.DocumentID
		}
		return a.Index < b.Index
	})
}
