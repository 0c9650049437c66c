package store

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/kart-io/quizmind/internal/model"
)

// Filter 限定检索范围。
type Filter struct {
	// DocumentIDs 文档 ID 列表，为空表示不限定。
	DocumentIDs []string
	// WorkspaceID 工作区 ID，为空表示不限定。
	WorkspaceID string
}

// Expr 生成 Milvus 布尔过滤表达式。
func (f *Filter) Expr() string {
	if f == nil {
		return ""
	}

	var parts []string
	if len(f.DocumentIDs) > 0 {
		quoted := make([]string, len(f.DocumentIDs))
		for i, id := range f.DocumentIDs {
			quoted[i] = strconv.Quote(id)
		}
		parts = append(parts, fmt.Sprintf("document_id in [%s]", strings.Join(quoted, ", ")))
	}
	if f.WorkspaceID != "" {
		parts = append(parts, "workspace_id == "+strconv.Quote(f.WorkspaceID))
	}
	return strings.Join(parts, " && ")
}

// Match 判断文档块是否在过滤范围内。
func (f *Filter) Match(c *model.Chunk) bool {
	if f == nil {
		return true
	}
	if f.WorkspaceID != "" && c.WorkspaceID != f.WorkspaceID {
		return false
	}
	if len(f.DocumentIDs) == 0 {
		return true
	}
	for _, id := range f.DocumentIDs {
		if c.DocumentID == id {
			return true
		}
	}
	return false
}

// SearchHit 向量检索命中的文档块，Chunk.Embedding 为存储的向量。
type SearchHit struct {
	Chunk *model.Chunk
	Score float32
}

// ChunkStore 定义文档块向量存储接口。
type ChunkStore interface {
	// EnsureCollection 确保集合存在且维度一致。
	EnsureCollection(ctx context.Context, dimension int) error

	// Insert 批量写入带向量的文档块。
	Insert(ctx context.Context, chunks []*model.Chunk) error

	// Search 在过滤范围内进行向量相似度检索，结果携带存储的向量。
	Search(ctx context.Context, vector []float32, filter *Filter, topK int) ([]*SearchHit, error)

	// ListByDocuments 返回过滤范围内的全部文档块，按文档与序号排序。
	ListByDocuments(ctx context.Context, filter *Filter) ([]*model.Chunk, error)

	// DeleteByDocument 删除文档的全部文档块。
	DeleteByDocument(ctx context.Context, documentID string) error

	// Count 返回文档块总数。
	Count(ctx context.Context) (int64, error)
}

// MetadataStore 定义文档与知识点元数据存储接口。
type MetadataStore interface {
	CreateDocument(ctx context.Context, doc *model.Document) error
	GetDocument(ctx context.Context, id string) (*model.Document, error)
	ListDocuments(ctx context.Context, ids []string) ([]*model.Document, error)

	// MarkProcessing 将文档置为 processing，文档已在处理中时返回 false。
	MarkProcessing(ctx context.Context, id string) (bool, error)
	// UpdateStatus 更新文档状态与说明。
	UpdateStatus(ctx context.Context, id, status, message string) error
	// SaveContent 保存提取后的文本与检测结果。
	SaveContent(ctx context.Context, doc *model.Document) error

	// ReplaceSubjects 原子地替换文档的知识点。
	ReplaceSubjects(ctx context.Context, documentID string, subjects []*model.Subject) error
	ListSubjects(ctx context.Context, documentID string) ([]*model.Subject, error)
	GetSubjects(ctx context.Context, ids []string) ([]*model.Subject, error)
}
