// Package httpclient provides a reusable HTTP client with retry logic and
// W3C trace context propagation.
package httpclient

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"github.com/kart-io/quizmind/pkg/utils/json"
)

// DefaultBackoff is the base delay between retries. The n-th retry waits
// n*backoff.
const DefaultBackoff = 500 * time.Millisecond

// StatusError is returned when the server answers with a status >= 400.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("request failed with status code %d: %s", e.StatusCode, e.Body)
}

// Client is a wrapper around http.Client with additional functionality.
type Client struct {
	httpClient *http.Client
	maxRetries int
	backoff    time.Duration
}

// Option configures a Client.
type Option func(*Client)

// WithBackoff sets the base retry delay. Zero retries immediately.
func WithBackoff(d time.Duration) Option {
	return func(c *Client) {
		if d >= 0 {
			c.backoff = d
		}
	}
}

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// NewClient creates a new HTTP client wrapper.
func NewClient(timeout time.Duration, maxRetries int, opts ...Option) *Client {
	if maxRetries < 0 {
		maxRetries = 0
	}
	c := &Client{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		maxRetries: maxRetries,
		backoff:    DefaultBackoff,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// DoRequest executes an HTTP request, retrying transport errors and 5xx
// responses up to maxRetries times. The request body is buffered so it can
// be replayed.
func (c *Client) DoRequest(req *http.Request) (*http.Response, error) {
	c.injectTraceContext(req)

	var bodyBytes []byte
	if req.Body != nil {
		var err error
		bodyBytes, err = io.ReadAll(req.Body)
		if err != nil {
			return nil, fmt.Errorf("failed to read request body: %w", err)
		}
		_ = req.Body.Close()
	}

	var lastErr error
	for i := 0; i <= c.maxRetries; i++ {
		if bodyBytes != nil {
			req.Body = io.NopCloser(bytes.NewReader(bodyBytes))
		}

		resp, err := c.httpClient.Do(req)
		if err == nil {
			if resp.StatusCode < 500 {
				return resp, nil
			}
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
			_ = resp.Body.Close()
			lastErr = &StatusError{StatusCode: resp.StatusCode, Body: string(body)}
		} else {
			lastErr = err
		}

		if i < c.maxRetries {
			select {
			case <-req.Context().Done():
				return nil, req.Context().Err()
			case <-time.After(time.Duration(i+1) * c.backoff):
			}
		}
	}
	return nil, lastErr
}

// DoJSON executes a request, decodes the JSON response into v, and ensures
// the body is closed.
func (c *Client) DoJSON(req *http.Request, v interface{}) error {
	resp, err := c.DoRequest(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 400 {
		bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &StatusError{StatusCode: resp.StatusCode, Body: string(bodyBytes)}
	}

	if v != nil {
		if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}

// PostJSON marshals in, posts it to url with the given headers and decodes
// the response into out.
func (c *Client) PostJSON(ctx context.Context, url string, headers http.Header, in, out interface{}) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	for k, vs := range headers {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	req.Header.Set("Content-Type", "application/json")

	return c.DoJSON(req, out)
}

// injectTraceContext 将 W3C Trace Context 头注入到 HTTP 请求中。
// 请求为 nil、未设置全局传播器或 Context 中无活跃 Span 时不注入。
func (c *Client) injectTraceContext(req *http.Request) {
	if req == nil || req.Context() == nil {
		return
	}

	propagator := otel.GetTextMapPropagator()
	if propagator == nil {
		return
	}

	propagator.Inject(req.Context(), propagation.HeaderCarrier(req.Header))
}
