package biz

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/kart-io/quizmind/pkg/errors"
	"github.com/kart-io/quizmind/pkg/utils/httpclient"
)

// DefaultMaxFileBytes 下载文件的大小上限。
const DefaultMaxFileBytes = 64 << 20

// ExtractRequest 文本提取请求。
type ExtractRequest struct {
	Data     []byte
	MimeType string
	Filename string
	// Language 语言提示，可为空。
	Language string
	// AddPageMarkers 要求在每页前输出 "Page N" 行。
	AddPageMarkers bool
	AuthToken      string
}

// Extractor 将文档字节转换为文本。
type Extractor interface {
	Extract(ctx context.Context, req *ExtractRequest) (string, error)
}

// FileSource 按文档 ID 获取文件内容。
type FileSource interface {
	Fetch(ctx context.Context, documentID, authToken string) ([]byte, error)
}

// baseMimeType 去掉 mime 参数并转为小写。
func baseMimeType(mimeType string) string {
	if mt, _, err := mime.ParseMediaType(mimeType); err == nil {
		return mt
	}
	return strings.ToLower(strings.TrimSpace(mimeType))
}

// PlainTextExtractor 直接返回 UTF-8 文本，不输出分页标记。
type PlainTextExtractor struct{}

// Supports 判断是否为纯文本类型。
func (PlainTextExtractor) Supports(mimeType string) bool {
	switch baseMimeType(mimeType) {
	case "text/plain", "text/markdown", "text/x-markdown":
		return true
	}
	return false
}

// Extract 校验编码并返回文本。
func (PlainTextExtractor) Extract(_ context.Context, req *ExtractRequest) (string, error) {
	if !utf8.Valid(req.Data) {
		return "", errors.ErrRAGExtractionFailed.WithMessage("document is not valid UTF-8 text")
	}
	return strings.TrimPrefix(string(req.Data), "\uFEFF"), nil
}

// HTTPExtractor 调用外部提取服务。
type HTTPExtractor struct {
	client *httpclient.Client
	url    string
}

// NewHTTPExtractor 创建 HTTP 提取器。
func NewHTTPExtractor(endpoint string, timeout time.Duration, maxRetries int) *HTTPExtractor {
	return &HTTPExtractor{
		client: httpclient.NewClient(timeout, maxRetries),
		url:    endpoint,
	}
}

type extractRequest struct {
	Content        []byte `json:"content"`
	MimeType       string `json:"mime_type"`
	Filename       string `json:"filename"`
	Language       string `json:"language,omitempty"`
	AddPageMarkers bool   `json:"add_page_markers"`
}

type extractResponse struct {
	Text string `json:"text"`
}

// Extract 发送文档并返回提取出的文本，任何失败都归类为 ErrRAGExtractionFailed。
func (e *HTTPExtractor) Extract(ctx context.Context, req *ExtractRequest) (string, error) {
	headers := http.Header{}
	if req.AuthToken != "" {
		headers.Set("Authorization", "Bearer "+req.AuthToken)
	}

	var resp extractResponse
	err := e.client.PostJSON(ctx, e.url, headers, extractRequest{
		Content:        req.Data,
		MimeType:       req.MimeType,
		Filename:       req.Filename,
		Language:       req.Language,
		AddPageMarkers: req.AddPageMarkers,
	}, &resp)
	if err != nil {
		return "", errors.ErrRAGExtractionFailed.WithCause(err)
	}
	if strings.TrimSpace(resp.Text) == "" {
		return "", errors.ErrRAGExtractionFailed.WithMessage("extraction returned no text")
	}
	return resp.Text, nil
}

// MultiExtractor 纯文本本地处理，其他类型交给 Fallback。
type MultiExtractor struct {
	Plain    PlainTextExtractor
	Fallback Extractor
}

// Extract 按 mime 类型分发。
func (m *MultiExtractor) Extract(ctx context.Context, req *ExtractRequest) (string, error) {
	if m.Plain.Supports(req.MimeType) {
		return m.Plain.Extract(ctx, req)
	}
	if m.Fallback == nil {
		return "", errors.ErrRAGExtractionFailed.WithMessagef("unsupported mime type %q", req.MimeType)
	}
	return m.Fallback.Extract(ctx, req)
}

// HTTPFileSource 从文件服务 GET {base}/files/{id}。
type HTTPFileSource struct {
	client   *httpclient.Client
	baseURL  string
	maxBytes int64
}

// NewHTTPFileSource 创建文件源。
func NewHTTPFileSource(baseURL string, timeout time.Duration, maxRetries int) *HTTPFileSource {
	return &HTTPFileSource{
		client:   httpclient.NewClient(timeout, maxRetries),
		baseURL:  strings.TrimRight(baseURL, "/"),
		maxBytes: DefaultMaxFileBytes,
	}
}

// Fetch 下载文件内容。
func (s *HTTPFileSource) Fetch(ctx context.Context, documentID, authToken string) ([]byte, error) {
	endpoint := fmt.Sprintf("%s/files/%s", s.baseURL, url.PathEscape(documentID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, errors.ErrRAGExtractionFailed.WithCause(err)
	}
	if authToken != "" {
		req.Header.Set("Authorization", "Bearer "+authToken)
	}

	resp, err := s.client.DoRequest(req)
	if err != nil {
		return nil, errors.ErrRAGExtractionFailed.WithCause(err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, errors.ErrRAGExtractionFailed.WithCause(&httpclient.StatusError{StatusCode: resp.StatusCode, Body: string(body)})
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, s.maxBytes+1))
	if err != nil {
		return nil, errors.ErrRAGExtractionFailed.WithCause(err)
	}
	if int64(len(data)) > s.maxBytes {
		return nil, errors.ErrRAGExtractionFailed.WithMessagef("file exceeds %d bytes", s.maxBytes)
	}
	return data, nil
}

var (
	_ Extractor  = PlainTextExtractor{}
	_ Extractor  = (*HTTPExtractor)(nil)
	_ Extractor  = (*MultiExtractor)(nil)
	_ FileSource = (*HTTPFileSource)(nil)
)
