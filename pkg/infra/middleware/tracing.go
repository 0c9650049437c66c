package middleware

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"

	infralog "github.com/kart-io/quizmind/pkg/infra/logger"
	"github.com/kart-io/quizmind/pkg/infra/tracing"
	"github.com/kart-io/quizmind/pkg/utils/response"
)

// TracerName is the tracer used for server spans.
const TracerName = "github.com/kart-io/quizmind/pkg/infra/middleware"

// Tracing starts a server span per request, continuing any W3C trace context
// sent by the caller. Spans are named "METHOD /route/:param".
func Tracing(skipPaths ...string) gin.HandlerFunc {
	skip := make(map[string]struct{}, len(skipPaths))
	for _, p := range skipPaths {
		skip[p] = struct{}{}
	}

	return func(c *gin.Context) {
		req := c.Request
		if _, ok := skip[req.URL.Path]; ok {
			c.Next()
			return
		}

		route := c.FullPath()
		if route == "" {
			route = req.URL.Path
		}

		ctx := tracing.GetGlobalTextMapPropagator().Extract(req.Context(), propagation.HeaderCarrier(req.Header))
		ctx, span := tracing.StartSpanWithKind(ctx, TracerName, req.Method+" "+route, trace.SpanKindServer)
		defer span.End()

		span.SetAttributes(
			semconv.HTTPMethod(req.Method),
			semconv.HTTPRoute(route),
			semconv.HTTPTarget(req.URL.Path),
			semconv.ServerAddress(req.Host),
			tracing.String(tracing.HTTPClientIP, c.ClientIP()),
		)
		if requestID := response.RequestID(ctx); requestID != "" {
			span.SetAttributes(tracing.String(tracing.HTTPRequestID, requestID))
		}

		c.Request = req.WithContext(infralog.ExtractOpenTelemetryFields(ctx))
		c.Next()

		status := c.Writer.Status()
		span.SetAttributes(semconv.HTTPStatusCode(status))
		switch {
		case status >= 500:
			span.RecordError(fmt.Errorf("HTTP %d: %s", status, http.StatusText(status)))
			span.SetStatus(codes.Error, http.StatusText(status))
		case status >= 400:
			span.SetStatus(codes.Error, http.StatusText(status))
		default:
			span.SetStatus(codes.Ok, "")
		}
	}
}
