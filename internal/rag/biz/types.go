package biz

import (
	"strings"

	"github.com/kart-io/quizmind/internal/model"
	"github.com/kart-io/quizmind/pkg/errors"
	"github.com/kart-io/quizmind/pkg/validator"
)

// 检索策略。
const (
	StrategyVector  = "vector"
	StrategyLexical = "lexical"
)

const (
	// MaxResultCap 单次检索返回的文档块上限。
	MaxResultCap = 40
	// MaxRequestCount 单次请求允许的题目数量上限。
	MaxRequestCount = 100
)

// Cluster 一次聚类运行产生的簇，不持久化。
type Cluster struct {
	// Centroid 种子文档块的向量。
	Centroid []float32
	// Members 成员文档块，第一个为种子。
	Members []*model.Chunk
	// Importance 成员数量。
	Importance int
	// Fallback 是否由顺序窗口分组产生。
	Fallback bool
}

// MeanIndex 返回成员序号的平均值。
func (c *Cluster) MeanIndex() float64 {
	if len(c.Members) == 0 {
		return 0
	}
	var sum int
	for _, m := range c.Members {
		sum += m.Index
	}
	return float64(sum) / float64(len(c.Members))
}

// RelevanceQuery 相关性检索请求。
type RelevanceQuery struct {
	Topic        string   `json:"topic" validate:"max=500"`
	Subjects     []string `json:"subjects" validate:"max=50,dive,max=200"`
	Instructions string   `json:"instructions" validate:"max=2000"`
	DocumentIDs  []string `json:"document_ids" validate:"required,min=1,max=100,dive,required,identifier"`
	WorkspaceID  string   `json:"workspace_id" validate:"omitempty,identifier"`
	Count        int      `json:"count" validate:"min=1,max=100"`
}

// Normalize 去除首尾空白、空主题词与重复文档 ID。
func (q *RelevanceQuery) Normalize() {
	q.Topic = strings.TrimSpace(q.Topic)
	q.Instructions = strings.TrimSpace(q.Instructions)
	q.WorkspaceID = strings.TrimSpace(q.WorkspaceID)

	subjects := q.Subjects[:0]
	for _, s := range q.Subjects {
		if s = strings.TrimSpace(s); s != "" {
			subjects = append(subjects, s)
		}
	}
	q.Subjects = subjects

	seen := make(map[string]struct{}, len(q.DocumentIDs))
	ids := q.DocumentIDs[:0]
	for _, id := range q.DocumentIDs {
		id = strings.TrimSpace(id)
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	q.DocumentIDs = ids
}

// Validate 规范化并校验请求，失败返回 ErrRAGInvalidRequest。
func (q *RelevanceQuery) Validate() error {
	if err := q.ValidateScope(); err != nil {
		return err
	}
	if q.Topic == "" && len(q.Subjects) == 0 {
		return errors.ErrRAGInvalidRequest.WithMessage("topic or subjects is required")
	}
	return nil
}

// ValidateScope 规范化查询并校验字段约束，不要求主题或知识点。
func (q *RelevanceQuery) ValidateScope() error {
	if q == nil {
		return errors.ErrRAGInvalidRequest.WithMessage("query is required")
	}
	q.Normalize()

	if verrs := validator.StructWithLang(q, validator.LangEN); verrs != nil && verrs.HasErrors() {
		return errors.ErrRAGInvalidRequest.WithMessage(verrs.First())
	}
	return nil
}

// ResultCap 返回 min(2×Count, 40)。
func (q *RelevanceQuery) ResultCap() int {
	return min(2*q.Count, MaxResultCap)
}

// ScoredChunk 带相关性分数的文档块。
type ScoredChunk struct {
	Chunk    *model.Chunk `json:"chunk"`
	Score    float64      `json:"score"`
	Strategy string       `json:"strategy"`
}

// RetrievalResult 检索结果。
type RetrievalResult struct {
	Chunks []*ScoredChunk `json:"chunks"`
	// Context 按字符预算组装的上下文。
	Context string `json:"context"`
	// PerDocument 是否使用了逐文档回退。
	PerDocument bool `json:"per_document"`
}
