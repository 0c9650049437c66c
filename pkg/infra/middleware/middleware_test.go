package middleware

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/kart-io/quizmind/pkg/errors"
	"github.com/kart-io/quizmind/pkg/utils/response"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func decode(t *testing.T, w *httptest.ResponseRecorder) response.Response {
	t.Helper()
	var r response.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &r))
	return r
}

func TestRequestID(t *testing.T) {
	engine := gin.New()
	engine.Use(RequestID())
	engine.GET("/ping", func(c *gin.Context) {
		c.String(http.StatusOK, response.RequestID(c.Request.Context()))
	})

	tests := []struct {
		name   string
		header string
		reuse  bool
	}{
		{"沿用客户端请求ID", "req-123", true},
		{"缺失时生成", "", false},
		{"超长时重新生成", strings.Repeat("x", 200), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/ping", nil)
			if tt.header != "" {
				req.Header.Set(response.HeaderXRequestID, tt.header)
			}
			w := httptest.NewRecorder()
			engine.ServeHTTP(w, req)

			got := w.Header().Get(response.HeaderXRequestID)
			assert.NotEmpty(t, got)
			assert.Equal(t, got, w.Body.String())
			if tt.reuse {
				assert.Equal(t, tt.header, got)
			} else {
				assert.Len(t, got, 26)
			}
		})
	}
}

func TestRecovery(t *testing.T) {
	engine := gin.New()
	engine.Use(RequestID(), Recovery())
	engine.GET("/panic", func(*gin.Context) { panic("boom") })

	req := httptest.NewRequest(http.MethodGet, "/panic", nil)
	req.Header.Set("Accept-Language", "zh-CN")
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	r := decode(t, w)
	assert.Equal(t, errors.ErrPanic.Code, r.Code)
	assert.Equal(t, errors.ErrPanic.MessageZH, r.Message)
	assert.NotEmpty(t, r.RequestID)
	assert.NotContains(t, w.Body.String(), "boom")
}

func TestBodyLimit(t *testing.T) {
	engine := gin.New()
	engine.Use(BodyLimit(16))
	engine.POST("/echo", func(c *gin.Context) {
		body, err := io.ReadAll(c.Request.Body)
		if err != nil {
			c.Status(http.StatusBadRequest)
			return
		}
		c.String(http.StatusOK, string(body))
	})

	t.Run("未超限", func(t *testing.T) {
		w := httptest.NewRecorder()
		engine.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/echo", strings.NewReader("hello")))
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "hello", w.Body.String())
	})

	t.Run("声明长度超限", func(t *testing.T) {
		w := httptest.NewRecorder()
		engine.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/echo", strings.NewReader(strings.Repeat("a", 64))))
		assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
		assert.Equal(t, errors.ErrRequestTooLarge.Code, decode(t, w).Code)
	})

	t.Run("未声明长度时截断读取", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/echo", strings.NewReader(strings.Repeat("a", 64)))
		req.ContentLength = -1
		w := httptest.NewRecorder()
		engine.ServeHTTP(w, req)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestLogger(t *testing.T) {
	engine := gin.New()
	engine.Use(Logger("/health"))
	engine.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })
	engine.GET("/missing", func(c *gin.Context) { c.Status(http.StatusNotFound) })

	for _, path := range []string{"/health", "/missing"} {
		w := httptest.NewRecorder()
		engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		assert.NotEqual(t, 0, w.Code)
	}
}

func TestTracing(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		otel.SetTracerProvider(prev)
		_ = tp.Shutdown(context.Background())
	})

	engine := gin.New()
	engine.Use(Tracing("/health"))
	engine.GET("/v1/rag/documents/:id", func(c *gin.Context) { c.Status(http.StatusOK) })
	engine.GET("/fail", func(c *gin.Context) { c.Status(http.StatusServiceUnavailable) })
	engine.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })

	for _, path := range []string{"/v1/rag/documents/d1", "/fail", "/health"} {
		engine.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	spans := recorder.Ended()
	require.Len(t, spans, 2)
	assert.Equal(t, "GET /v1/rag/documents/:id", spans[0].Name())
	assert.Equal(t, "GET /fail", spans[1].Name())
	assert.Len(t, spans[1].Events(), 1)
}
