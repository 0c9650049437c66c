// Package logger carries request-scoped log fields (request, document and
// trace identifiers) through a context.Context.
package logger

import (
	"context"
	"sort"

	"go.opentelemetry.io/otel/trace"

	"github.com/kart-io/logger"
	"github.com/kart-io/logger/core"
)

// Field keys.
const (
	KeyRequestID   = "request_id"
	KeyDocumentID  = "document_id"
	KeyWorkspaceID = "workspace_id"
	KeyTraceID     = "trace_id"
	KeySpanID      = "span_id"
)

type contextKey struct{}

// fields is immutable once stored in a context; every With* call copies it.
type fields map[string]interface{}

func fromContext(ctx context.Context) fields {
	if f, ok := ctx.Value(contextKey{}).(fields); ok {
		return f
	}
	return nil
}

func withField(ctx context.Context, key string, value interface{}) context.Context {
	parent := fromContext(ctx)
	f := make(fields, len(parent)+1)
	for k, v := range parent {
		f[k] = v
	}
	f[key] = value
	return context.WithValue(ctx, contextKey{}, f)
}

// WithRequestID adds request_id to the context log fields.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	if requestID == "" {
		return ctx
	}
	return withField(ctx, KeyRequestID, requestID)
}

// WithDocument adds document_id and workspace_id to the context log fields.
func WithDocument(ctx context.Context, documentID, workspaceID string) context.Context {
	if documentID != "" {
		ctx = withField(ctx, KeyDocumentID, documentID)
	}
	if workspaceID != "" {
		ctx = withField(ctx, KeyWorkspaceID, workspaceID)
	}
	return ctx
}

// WithFields adds key-value pairs. A trailing key without value and
// non-string keys are dropped.
func WithFields(ctx context.Context, keysAndValues ...interface{}) context.Context {
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		if key, ok := keysAndValues[i].(string); ok {
			ctx = withField(ctx, key, keysAndValues[i+1])
		}
	}
	return ctx
}

// ExtractOpenTelemetryFields copies trace_id and span_id of the active span
// into the log fields. Contexts without a valid span are returned unchanged.
func ExtractOpenTelemetryFields(ctx context.Context) context.Context {
	sc := trace.SpanFromContext(ctx).SpanContext()
	if !sc.IsValid() {
		return ctx
	}
	ctx = withField(ctx, KeyTraceID, sc.TraceID().String())
	return withField(ctx, KeySpanID, sc.SpanID().String())
}

// Fields returns the context log fields as key-value pairs sorted by key.
func Fields(ctx context.Context) []interface{} {
	f := fromContext(ctx)
	if len(f) == 0 {
		return nil
	}

	keys := make([]string, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	kv := make([]interface{}, 0, len(f)*2)
	for _, k := range keys {
		kv = append(kv, k, f[k])
	}
	return kv
}

// GetLogger returns the global logger enriched with the context log fields.
func GetLogger(ctx context.Context) core.Logger {
	base := logger.Global()
	if kv := Fields(ctx); len(kv) > 0 {
		return base.With(kv...)
	}
	return base
}
