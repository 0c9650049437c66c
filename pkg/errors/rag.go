package errors

import (
	"net/http"

	"google.golang.org/grpc/codes"
)

// RAG 服务代码: 20 (业务服务范围 20-79)
// 错误码格式: AABBCCC
// - AA: 20 (RAG 服务)
// - BB: 类别代码
// - CCC: 序号

var (
	// 请求参数错误 (类别 01)
	ErrRAGInvalidRequest = Register(New(MakeCode(ServiceRAG, CategoryRequest, 1), http.StatusBadRequest, codes.InvalidArgument, "Invalid request parameters", "请求参数无效"))
	ErrRAGInvalidScope   = Register(New(MakeCode(ServiceRAG, CategoryRequest, 2), http.StatusBadRequest, codes.InvalidArgument, "Invalid document scope", "文档范围无效"))

	// 内容提取错误 (类别 01, 由文档内容导致)
	ErrRAGExtractionFailed = Register(New(MakeCode(ServiceRAG, CategoryRequest, 3), http.StatusUnprocessableEntity, codes.FailedPrecondition, "Document content could not be extracted", "文档内容无法提取"))

	// 资源错误 (类别 04)
	ErrRAGDocumentNotFound  = Register(New(MakeCode(ServiceRAG, CategoryResource, 1), http.StatusNotFound, codes.NotFound, "Document not found", "文档不存在"))
	ErrRAGNoRelevantContent = Register(New(MakeCode(ServiceRAG, CategoryResource, 2), http.StatusNotFound, codes.NotFound, "No relevant content found, try broadening the topic or subjects", "未找到相关内容，请尝试放宽主题或知识点"))

	// 冲突错误 (类别 05)
	ErrRAGIngestInProgress = Register(New(MakeCode(ServiceRAG, CategoryConflict, 1), http.StatusConflict, codes.AlreadyExists, "Document ingestion already in progress", "文档正在处理中"))

	// 内部错误 (类别 07)
	ErrRAGIndexFailed = Register(New(MakeCode(ServiceRAG, CategoryInternal, 1), http.StatusInternalServerError, codes.Internal, "Document indexing failed", "文档索引失败"))
	ErrRAGStoreFailed = Register(New(MakeCode(ServiceRAG, CategoryInternal, 2), http.StatusInternalServerError, codes.Internal, "Vector store operation failed", "向量存储操作失败"))

	// 外部服务错误 (类别 10)
	ErrRAGProviderFailure    = Register(New(MakeCode(ServiceRAG, CategoryNetwork, 1), http.StatusBadGateway, codes.Unavailable, "Embedding or labeling provider failed", "嵌入或标注服务调用失败"))
	ErrRAGServiceUnavailable = Register(New(MakeCode(ServiceRAG, CategoryNetwork, 2), http.StatusServiceUnavailable, codes.Unavailable, "RAG service unavailable", "RAG 服务不可用"))
)
