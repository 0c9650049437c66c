package tracing

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// StartSpan starts a span on the global tracer provider.
func StartSpan(ctx context.Context, tracerName, spanName string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, spanName, opts...)
}

// StartSpanWithKind starts a span of the given kind.
func StartSpanWithKind(ctx context.Context, tracerName, spanName string, kind trace.SpanKind, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	opts = append(opts, trace.WithSpanKind(kind))
	return StartSpan(ctx, tracerName, spanName, opts...)
}

// AddSpanEvent adds an event to the span in the context.
func AddSpanEvent(ctx context.Context, name string, attrs ...attribute.KeyValue) {
	trace.SpanFromContext(ctx).AddEvent(name, trace.WithAttributes(attrs...))
}

// RecordError records err on the span in the context and marks it failed.
// A nil err is ignored.
func RecordError(ctx context.Context, err error) {
	if err == nil {
		return
	}
	span := trace.SpanFromContext(ctx)
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

// TraceIDFromContext returns the active trace ID, or "" without a trace.
func TraceIDFromContext(ctx context.Context) string {
	sc := trace.SpanFromContext(ctx).SpanContext()
	if !sc.IsValid() {
		return ""
	}
	return sc.TraceID().String()
}

// String creates a string attribute.
func String(key, value string) attribute.KeyValue {
	return attribute.String(key, value)
}

// Int creates an int attribute.
func Int(key string, value int) attribute.KeyValue {
	return attribute.Int(key, value)
}

// Bool creates a bool attribute.
func Bool(key string, value bool) attribute.KeyValue {
	return attribute.Bool(key, value)
}

// Attribute keys shared by the HTTP middleware and the RAG spans.
const (
	HTTPClientIP  = "http.client_ip"
	HTTPRequestID = "http.request_id"

	DocumentID  = "rag.document_id"
	WorkspaceID = "rag.workspace_id"
	Strategy    = "rag.strategy"
)
