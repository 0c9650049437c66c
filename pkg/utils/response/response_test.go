package response

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/kart-io/quizmind/pkg/errors"
)

func TestSuccess(t *testing.T) {
	r := Success(map[string]string{"id": "d1"})
	assert.True(t, r.IsSuccess())
	assert.Equal(t, http.StatusOK, r.HTTPStatus())

	accepted := SuccessWithStatus(http.StatusAccepted, nil)
	assert.Equal(t, http.StatusAccepted, accepted.HTTPStatus())
}

func TestErrWithLang(t *testing.T) {
	tests := []struct {
		name    string
		err     *errors.Errno
		lang    string
		message string
		status  int
	}{
		{"英文消息", errors.ErrRAGDocumentNotFound, "en", "Document not found", http.StatusNotFound},
		{"中文消息", errors.ErrRAGDocumentNotFound, "zh", "文档不存在", http.StatusNotFound},
		{"自定义消息优先", errors.ErrRAGInvalidRequest.WithMessage("topic or subjects required"), "zh", "topic or subjects required", http.StatusBadRequest},
		{"冲突", errors.ErrRAGIngestInProgress, "en", "Document ingestion already in progress", http.StatusConflict},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := ErrWithLang(tt.err, tt.lang)
			assert.False(t, r.IsSuccess())
			assert.Equal(t, tt.err.Code, r.Code)
			assert.Equal(t, tt.message, r.Message)
			assert.Equal(t, tt.status, r.HTTPStatus())
		})
	}
}

func TestHTTPStatus_Fallback(t *testing.T) {
	tests := []struct {
		name   string
		code   int
		status int
	}{
		{"已注册", errors.ErrRAGNoRelevantContent.Code, http.StatusNotFound},
		{"请求类", errors.MakeCode(99, errors.CategoryRequest, 999), http.StatusBadRequest},
		{"网络类", errors.MakeCode(99, errors.CategoryNetwork, 999), http.StatusServiceUnavailable},
		{"未知类别", errors.MakeCode(99, errors.CategoryInternal, 999), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := &Response{Code: tt.code}
			assert.Equal(t, tt.status, r.HTTPStatus())
		})
	}
}
