package biz

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/quizmind/pkg/errors"
)

func TestPlainTextExtractor_Supports(t *testing.T) {
	tests := []struct {
		mimeType string
		want     bool
	}{
		{"text/plain", true},
		{"text/plain; charset=utf-8", true},
		{"Text/Markdown", true},
		{"text/x-markdown", true},
		{"application/pdf", false},
		{"", false},
	}

	var e PlainTextExtractor
	for _, tt := range tests {
		t.Run(tt.mimeType, func(t *testing.T) {
			assert.Equal(t, tt.want, e.Supports(tt.mimeType))
		})
	}
}

func TestPlainTextExtractor_Extract(t *testing.T) {
	var e PlainTextExtractor

	text, err := e.Extract(context.Background(), &ExtractRequest{Data: []byte("\uFEFFhello 世界")})
	require.NoError(t, err)
	assert.Equal(t, "hello 世界", text)

	_, err = e.Extract(context.Background(), &ExtractRequest{Data: []byte{0xff, 0xfe, 0x00}})
	assert.ErrorIs(t, err, errors.ErrRAGExtractionFailed)
}

func TestHTTPExtractor_Extract(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "Bearer token-1", r.Header.Get("Authorization"))

		var req extractRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, []byte("%PDF-1.7"), req.Content)
		assert.Equal(t, "application/pdf", req.MimeType)
		assert.True(t, req.AddPageMarkers)

		_ = json.NewEncoder(w).Encode(extractResponse{Text: "Page 1\nhello"})
	}))
	t.Cleanup(server.Close)

	e := NewHTTPExtractor(server.URL, time.Second, 0)
	text, err := e.Extract(context.Background(), &ExtractRequest{
		Data:           []byte("%PDF-1.7"),
		MimeType:       "application/pdf",
		Filename:       "a.pdf",
		AddPageMarkers: true,
		AuthToken:      "token-1",
	})
	require.NoError(t, err)
	assert.Equal(t, "Page 1\nhello", text)
}

func TestHTTPExtractor_Failures(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"服务端错误", func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}},
		{"空文本", func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`{"text": "  "}`))
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(tt.handler)
			t.Cleanup(server.Close)

			_, err := NewHTTPExtractor(server.URL, time.Second, 0).Extract(context.Background(), &ExtractRequest{Data: []byte("x")})
			assert.ErrorIs(t, err, errors.ErrRAGExtractionFailed)
		})
	}
}

type recordingExtractor struct {
	called bool
}

func (e *recordingExtractor) Extract(context.Context, *ExtractRequest) (string, error) {
	e.called = true
	return "from fallback", nil
}

func TestMultiExtractor(t *testing.T) {
	fallback := &recordingExtractor{}
	m := &MultiExtractor{Fallback: fallback}

	text, err := m.Extract(context.Background(), &ExtractRequest{Data: []byte("plain"), MimeType: "text/plain"})
	require.NoError(t, err)
	assert.Equal(t, "plain", text)
	assert.False(t, fallback.called)

	text, err = m.Extract(context.Background(), &ExtractRequest{Data: []byte("%PDF"), MimeType: "application/pdf"})
	require.NoError(t, err)
	assert.Equal(t, "from fallback", text)

	_, err = (&MultiExtractor{}).Extract(context.Background(), &ExtractRequest{MimeType: "application/pdf"})
	assert.ErrorIs(t, err, errors.ErrRAGExtractionFailed)
}

func TestHTTPFileSource_Fetch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.EscapedPath() != "/files/doc%201" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		assert.Equal(t, "Bearer t", r.Header.Get("Authorization"))
		_, _ = w.Write([]byte("file body"))
	}))
	t.Cleanup(server.Close)

	src := NewHTTPFileSource(server.URL+"/", time.Second, 0)

	data, err := src.Fetch(context.Background(), "doc 1", "t")
	require.NoError(t, err)
	assert.Equal(t, []byte("file body"), data)

	_, err = src.Fetch(context.Background(), "missing", "t")
	assert.ErrorIs(t, err, errors.ErrRAGExtractionFailed)

	src.maxBytes = 4
	_, err = src.Fetch(context.Background(), "doc 1", "t")
	assert.ErrorIs(t, err, errors.ErrRAGExtractionFailed)
}
