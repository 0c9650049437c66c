package biz

import (
	"context"
	"strings"

	"github.com/kart-io/logger"

	"github.com/kart-io/quizmind/internal/model"
	"github.com/kart-io/quizmind/internal/rag/metrics"
	"github.com/kart-io/quizmind/internal/rag/store"
	"github.com/kart-io/quizmind/pkg/errors"
	"github.com/kart-io/quizmind/pkg/id"
	"github.com/kart-io/quizmind/pkg/infra/pool"
	"github.com/kart-io/quizmind/pkg/llm"
	"github.com/kart-io/quizmind/pkg/validator"
)

// CreateDocumentRequest 登记文档请求，Content 非空时立即调度摄取。
type CreateDocumentRequest struct {
	ID          string `json:"id" validate:"omitempty,identifier"`
	WorkspaceID string `json:"workspace_id" validate:"required,identifier"`
	Filename    string `json:"filename" validate:"required,notblank,max=255"`
	MimeType    string `json:"mime_type" validate:"required,mimetype,max=128"`
	Language    string `json:"language" validate:"omitempty,max=16"`
	// Content 文档内容，JSON 中为 base64。
	Content   []byte `json:"content"`
	AuthToken string `json:"-"`
}

// RetrieveRequest 检索请求，SubjectIDs 通过元数据解析为知识点名称。
type RetrieveRequest struct {
	Topic        string   `json:"topic"`
	SubjectIDs   []string `json:"subject_ids" validate:"max=50,dive,identifier"`
	Subjects     []string `json:"subjects"`
	Instructions string   `json:"instructions"`
	DocumentIDs  []string `json:"document_ids"`
	WorkspaceID  string   `json:"workspace_id"`
	Count        int      `json:"count"`
}

// ServiceConfig 服务配置。
type ServiceConfig struct {
	Indexer         IndexerConfig
	MaxContextChars int
	CandidateLimit  int
}

// ServiceDeps 服务依赖。
type ServiceDeps struct {
	Embeddings *llm.EmbeddingManager
	Chunks     store.ChunkStore
	Meta       store.MetadataStore
	Extractor  Extractor
	Files      FileSource
	Labeler    Labeler
	Pools      *pool.Manager
	Metrics    *metrics.RAGMetrics
}

// Service 组合 Indexer 与 Retriever 提供统一的服务接口。
type Service struct {
	deps      ServiceDeps
	indexer   *Indexer
	retriever *Retriever
}

// NewService 创建服务实例。
func NewService(deps ServiceDeps, config ServiceConfig) *Service {
	scorer := NewRelevanceScorer(deps.Embeddings, deps.Chunks, deps.Meta, config.CandidateLimit)
	return &Service{
		deps: deps,
		indexer: NewIndexer(IndexerDeps{
			Embedder:  deps.Embeddings,
			Chunks:    deps.Chunks,
			Meta:      deps.Meta,
			Extractor: deps.Extractor,
			Files:     deps.Files,
			Labeler:   deps.Labeler,
			Pools:     deps.Pools,
			Metrics:   deps.Metrics,
		}, config.Indexer),
		retriever: NewRetriever(scorer, deps.Pools, deps.Metrics, RetrieverConfig{
			MaxContextChars: config.MaxContextChars,
		}),
	}
}

// Prepare 确保向量集合存在且维度匹配。
func (s *Service) Prepare(ctx context.Context) error {
	return s.deps.Chunks.EnsureCollection(ctx, s.deps.Embeddings.Dimension())
}

// CreateDocument 登记文档，附带内容时调度摄取。
func (s *Service) CreateDocument(ctx context.Context, req *CreateDocumentRequest) (*model.Document, error) {
	if verrs := validator.StructWithLang(req, validator.LangEN); verrs != nil && verrs.HasErrors() {
		return nil, errors.ErrRAGInvalidRequest.WithMessage(verrs.First())
	}

	doc := &model.Document{
		ID:          strings.TrimSpace(req.ID),
		WorkspaceID: req.WorkspaceID,
		Filename:    req.Filename,
		MimeType:    req.MimeType,
		Language:    req.Language,
		Status:      model.DocumentStatusPending,
	}
	if doc.ID == "" {
		doc.ID = id.NewULID()
	}
	if err := s.deps.Meta.CreateDocument(ctx, doc); err != nil {
		return nil, err
	}
	logger.Infow("document registered", "document_id", doc.ID, "workspace_id", doc.WorkspaceID)

	if len(req.Content) == 0 {
		return doc, nil
	}
	if err := s.indexer.Schedule(ctx, &IngestRequest{DocumentID: doc.ID, AuthToken: req.AuthToken, Data: req.Content}); err != nil {
		return nil, err
	}
	doc.Status = model.DocumentStatusProcessing
	return doc, nil
}

// Ingest 调度已登记文档的摄取，内容通过文件源获取。
func (s *Service) Ingest(ctx context.Context, documentID, authToken string) error {
	return s.indexer.Schedule(ctx, &IngestRequest{DocumentID: documentID, AuthToken: authToken})
}

// GetDocument 返回文档状态。
func (s *Service) GetDocument(ctx context.Context, documentID string) (*model.Document, error) {
	return s.deps.Meta.GetDocument(ctx, documentID)
}

// ListSubjects 返回文档的知识点。
func (s *Service) ListSubjects(ctx context.Context, documentID string) ([]*model.Subject, error) {
	if _, err := s.deps.Meta.GetDocument(ctx, documentID); err != nil {
		return nil, err
	}
	return s.deps.Meta.ListSubjects(ctx, documentID)
}

// Retrieve 解析知识点 ID 后执行检索。
func (s *Service) Retrieve(ctx context.Context, req *RetrieveRequest) (*RetrievalResult, error) {
	if verrs := validator.StructWithLang(req, validator.LangEN); verrs != nil && verrs.HasErrors() {
		return nil, errors.ErrRAGInvalidRequest.WithMessage(verrs.First())
	}

	q := &RelevanceQuery{
		Topic:        req.Topic,
		Subjects:     append([]string(nil), req.Subjects...),
		Instructions: req.Instructions,
		DocumentIDs:  req.DocumentIDs,
		WorkspaceID:  req.WorkspaceID,
		Count:        req.Count,
	}

	if err := q.ValidateScope(); err != nil {
		return nil, err
	}
	if q.Topic == "" && len(q.Subjects) == 0 && len(req.SubjectIDs) == 0 {
		return nil, errors.ErrRAGInvalidRequest.WithMessage("topic or subjects is required")
	}

	if len(req.SubjectIDs) > 0 {
		subjects, err := s.deps.Meta.GetSubjects(ctx, req.SubjectIDs)
		if err != nil {
			return nil, err
		}
		n := 0
		for _, subject := range subjects {
			if q.WorkspaceID != "" && subject.WorkspaceID != q.WorkspaceID {
				continue
			}
			q.Subjects = append(q.Subjects, subject.Name)
			n++
		}
		if n == 0 {
			return nil, errors.ErrRAGInvalidScope.WithMessage("none of the subject ids exist in the workspace")
		}
	}
	return s.retriever.Retrieve(ctx, q)
}

// Stats 返回业务指标、缓存与池统计。
func (s *Service) Stats(ctx context.Context) map[string]any {
	stats := s.deps.Metrics.Stats()
	if s.deps.Embeddings != nil {
		stats["embedding"] = s.deps.Embeddings.Stats()
	}
	if s.deps.Pools != nil {
		stats["pools"] = s.deps.Pools.Stats()
	}
	if l, ok := s.deps.Labeler.(*LLMLabeler); ok {
		stats["labeler"] = l.Stats()
	}
	if n, err := s.deps.Chunks.Count(ctx); err == nil {
		stats["chunks"] = n
	} else {
		logger.Warnw("count chunks failed", "error", err.Error())
	}
	return stats
}
