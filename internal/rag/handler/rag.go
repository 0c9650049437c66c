// Package handler provides HTTP handlers for RAG service.
package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/kart-io/quizmind/internal/model"
	"github.com/kart-io/quizmind/internal/pkg/httputils"
	"github.com/kart-io/quizmind/internal/rag/biz"
	"github.com/kart-io/quizmind/pkg/component/storage"
	"github.com/kart-io/quizmind/pkg/errors"
)

// Service 处理器依赖的业务接口，由 *biz.Service 实现。
type Service interface {
	CreateDocument(ctx context.Context, req *biz.CreateDocumentRequest) (*model.Document, error)
	Ingest(ctx context.Context, documentID, authToken string) error
	GetDocument(ctx context.Context, documentID string) (*model.Document, error)
	ListSubjects(ctx context.Context, documentID string) ([]*model.Subject, error)
	Retrieve(ctx context.Context, req *biz.RetrieveRequest) (*biz.RetrievalResult, error)
	Stats(ctx context.Context) map[string]any
}

// MetricsExporter 以文本格式导出指标。
type MetricsExporter interface {
	Export() string
}

// HealthChecker 检查后端存储的连通性。
type HealthChecker interface {
	HealthCheckAll(ctx context.Context) []storage.HealthStatus
}

// RAGHandler handles RAG HTTP requests.
type RAGHandler struct {
	service Service
	metrics MetricsExporter
	health  HealthChecker
}

// NewRAGHandler creates a new RAGHandler. health may be nil.
func NewRAGHandler(service Service, metrics MetricsExporter, health HealthChecker) *RAGHandler {
	return &RAGHandler{service: service, metrics: metrics, health: health}
}

// CreateDocument 登记文档，请求带内容时同时调度摄取。
func (h *RAGHandler) CreateDocument(c *gin.Context) {
	var req biz.CreateDocumentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputils.WriteResponse(c, errors.ErrBadRequest.WithMessage(err.Error()), nil)
		return
	}
	req.AuthToken = bearerToken(c)

	doc, err := h.service.CreateDocument(c.Request.Context(), &req)
	status := http.StatusCreated
	if doc != nil && doc.Status == model.DocumentStatusProcessing {
		status = http.StatusAccepted
	}
	httputils.WriteResponseWithStatus(c, status, err, doc)
}

// IngestDocument 调度已登记文档的摄取。
func (h *RAGHandler) IngestDocument(c *gin.Context) {
	documentID := c.Param("id")
	if err := h.service.Ingest(c.Request.Context(), documentID, bearerToken(c)); err != nil {
		httputils.WriteResponse(c, err, nil)
		return
	}
	httputils.WriteResponseWithStatus(c, http.StatusAccepted, nil, gin.H{
		"document_id": documentID,
		"status":      model.DocumentStatusProcessing,
	})
}

// GetDocument 返回文档状态。
func (h *RAGHandler) GetDocument(c *gin.Context) {
	doc, err := h.service.GetDocument(c.Request.Context(), c.Param("id"))
	httputils.WriteResponse(c, err, doc)
}

// ListSubjects 返回文档的知识点列表。
func (h *RAGHandler) ListSubjects(c *gin.Context) {
	subjects, err := h.service.ListSubjects(c.Request.Context(), c.Param("id"))
	if subjects == nil {
		subjects = []*model.Subject{}
	}
	httputils.WriteResponse(c, err, gin.H{"subjects": subjects})
}

// Retrieve 执行多文档检索。
func (h *RAGHandler) Retrieve(c *gin.Context) {
	var req biz.RetrieveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputils.WriteResponse(c, errors.ErrBadRequest.WithMessage(err.Error()), nil)
		return
	}

	result, err := h.service.Retrieve(c.Request.Context(), &req)
	httputils.WriteResponse(c, err, result)
}

// Stats 返回服务统计。
func (h *RAGHandler) Stats(c *gin.Context) {
	httputils.WriteResponse(c, nil, h.service.Stats(c.Request.Context()))
}

// Health 存活检查。
func (h *RAGHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Ready 就绪检查，任一后端存储不可达时返回 503。
func (h *RAGHandler) Ready(c *gin.Context) {
	var statuses []storage.HealthStatus
	if h.health != nil {
		statuses = h.health.HealthCheckAll(c.Request.Context())
	}

	status, state := http.StatusOK, "ready"
	for _, s := range statuses {
		if !s.Healthy {
			status, state = http.StatusServiceUnavailable, "unavailable"
			break
		}
	}
	c.JSON(status, gin.H{"status": state, "components": statuses})
}

// Metrics 以文本格式输出指标。
func (h *RAGHandler) Metrics(c *gin.Context) {
	c.String(http.StatusOK, h.metrics.Export())
}

func bearerToken(c *gin.Context) string {
	auth := c.GetHeader("Authorization")
	if len(auth) > 7 && strings.EqualFold(auth[:7], "bearer ") {
		return strings.TrimSpace(auth[7:])
	}
	return ""
}
