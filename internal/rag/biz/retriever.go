package biz

import (
	"context"
	stderrors "errors"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/kart-io/quizmind/internal/rag/metrics"
	"github.com/kart-io/quizmind/pkg/errors"
	infralog "github.com/kart-io/quizmind/pkg/infra/logger"
	"github.com/kart-io/quizmind/pkg/infra/pool"
	"github.com/kart-io/quizmind/pkg/infra/tracing"
)

const tracerName = "quizmind/rag"

// DefaultMaxContextChars 上下文组装的默认字符预算。
const DefaultMaxContextChars = 12000

// RetrieverConfig 检索器配置。
type RetrieverConfig struct {
	// MaxContextChars 上下文字符预算。
	MaxContextChars int
}

// Retriever 负责多文档检索。
type Retriever struct {
	scorer  *RelevanceScorer
	pools   *pool.Manager
	metrics *metrics.RAGMetrics
	config  RetrieverConfig
}

// NewRetriever 创建检索器实例。pools 为 nil 时逐文档检索串行执行。
func NewRetriever(scorer *RelevanceScorer, pools *pool.Manager, m *metrics.RAGMetrics, config RetrieverConfig) *Retriever {
	if config.MaxContextChars <= 0 {
		config.MaxContextChars = DefaultMaxContextChars
	}
	return &Retriever{
		scorer:  scorer,
		pools:   pools,
		metrics: m,
		config:  config,
	}
}

// Retrieve 先以向量策略在全部文档范围内检索，结果不足上限时按配额逐文档走完整策略链补充，
// 最后全局重排截断。
func (r *Retriever) Retrieve(ctx context.Context, q *RelevanceQuery) (*RetrievalResult, error) {
	ctx, span := tracing.StartSpan(ctx, tracerName, "Retriever.Retrieve")
	defer span.End()
	start := time.Now()

	if err := q.Validate(); err != nil {
		r.metrics.RecordRetrieval(time.Since(start), err)
		return nil, err
	}
	ctx = infralog.WithFields(ctx, infralog.KeyWorkspaceID, q.WorkspaceID)
	span.SetAttributes(
		tracing.Int("rag.documents", len(q.DocumentIDs)),
		tracing.Int("rag.count", q.Count),
	)

	result, err := r.retrieve(ctx, q)
	if err != nil {
		tracing.RecordError(ctx, err)
		r.metrics.RecordRetrieval(time.Since(start), err)
		return nil, err
	}

	r.metrics.RecordRetrieval(time.Since(start), nil)
	for _, sc := range result.Chunks {
		r.metrics.RecordStrategy(sc.Strategy)
	}
	if len(result.Chunks) > 0 {
		span.SetAttributes(tracing.String(tracing.Strategy, result.Chunks[0].Strategy))
	}
	return result, nil
}

func (r *Retriever) retrieve(ctx context.Context, q *RelevanceQuery) (*RetrievalResult, error) {
	limit := q.ResultCap()

	scored := r.scorer.scoreScoped(ctx, q)
	perDocument := len(scored) < limit
	if perDocument {
		infralog.GetLogger(ctx).Infow("scoped retrieval below cap, retrying per document",
			"documents", len(q.DocumentIDs),
			"scoped", len(scored),
			"limit", limit,
		)
		extra, err := r.perDocument(ctx, q)
		if err != nil {
			if len(scored) == 0 {
				return nil, err
			}
			infralog.GetLogger(ctx).Warnw("per-document retrieval failed, keeping scoped results",
				"error", err.Error(),
			)
		}
		scored = mergeScored(scored, extra)
	}

	rankScored(scored)
	if len(scored) > limit {
		scored = scored[:limit]
	}
	if len(scored) == 0 {
		return nil, errors.ErrRAGNoRelevantContent
	}

	return &RetrievalResult{
		Chunks:      scored,
		Context:     AssembleContext(scored, r.config.MaxContextChars),
		PerDocument: perDocument,
	}, nil
}

// mergeScored 合并两组结果，同一文档块保留较高的分数。
func mergeScored(a, b []*ScoredChunk) []*ScoredChunk {
	index := make(map[string]int, len(a)+len(b))
	merged := make([]*ScoredChunk, 0, len(a)+len(b))
	for _, group := range [][]*ScoredChunk{a, b} {
		for _, sc := range group {
			if k, ok := index[sc.Chunk.ID]; ok {
				if sc.Score > merged[k].Score {
					merged[k] = sc
				}
				continue
			}
			index[sc.Chunk.ID] = len(merged)
			merged = append(merged, sc)
		}
	}
	return merged
}

// perDocument 以 ceil(Count/文档数) 为配额并发检索各文档，单个文档无结果不视为失败。
func (r *Retriever) perDocument(ctx context.Context, q *RelevanceQuery) ([]*ScoredChunk, error) {
	quota := int(math.Ceil(float64(q.Count) / float64(len(q.DocumentIDs))))

	var (
		mu       sync.Mutex
		wg       sync.WaitGroup
		all      []*ScoredChunk
		firstErr error
	)

	for _, docID := range q.DocumentIDs {
		sub := *q
		sub.DocumentIDs = []string{docID}
		sub.Count = quota

		task := func() {
			defer wg.Done()
			scored, err := r.scorer.score(ctx, &sub, sub.ResultCap())

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				all = append(all, scored...)
			case stderrors.Is(err, errors.ErrRAGNoRelevantContent):
				infralog.GetLogger(ctx).Debugw("no relevant content in document", infralog.KeyDocumentID, sub.DocumentIDs[0])
			case firstErr == nil:
				firstErr = err
			}
		}

		wg.Add(1)
		if r.pools == nil {
			task()
			continue
		}
		if err := r.pools.SubmitWithContext(ctx, pool.RetrievalPool, task); err != nil {
			infralog.GetLogger(ctx).Warnw("retrieval pool unavailable, running inline",
				infralog.KeyDocumentID, docID,
				"error", err.Error(),
			)
			task()
		}
	}
	wg.Wait()

	if len(all) == 0 && firstErr != nil {
		return nil, firstErr
	}
	return all, nil
}

// AssembleContext 按顺序拼接文档块，每块带 [文档 / 页码] 标题，总长度不超过 maxChars 个字符。
// 第一个文档块超出预算时截断，之后遇到超出预算的文档块即停止。
func AssembleContext(chunks []*ScoredChunk, maxChars int) string {
	var sb strings.Builder
	used := 0
	for _, sc := range chunks {
		c := sc.Chunk
		header := fmt.Sprintf("[%s / page %d]\n", c.DocumentID, max(c.PageNumber, 1))
		block := header + strings.TrimSpace(c.Content) + "\n\n"
		n := utf8.RuneCountInString(block)

		if maxChars > 0 && used+n > maxChars {
			if used == 0 {
				sb.WriteString(string([]rune(block)[:maxChars]))
			}
			break
		}
		sb.WriteString(block)
		used += n
	}
	return strings.TrimSpace(sb.String())
}
