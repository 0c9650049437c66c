package logger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

func TestFields(t *testing.T) {
	tests := []struct {
		name string
		ctx  func() context.Context
		want []interface{}
	}{
		{"空上下文", context.Background, nil},
		{"请求ID", func() context.Context {
			return WithRequestID(context.Background(), "req-1")
		}, []interface{}{KeyRequestID, "req-1"}},
		{"空值忽略", func() context.Context {
			return WithDocument(WithRequestID(context.Background(), ""), "", "")
		}, nil},
		{"按键排序", func() context.Context {
			ctx := WithRequestID(context.Background(), "req-1")
			return WithDocument(ctx, "doc-1", "ws-1")
		}, []interface{}{KeyDocumentID, "doc-1", KeyRequestID, "req-1", KeyWorkspaceID, "ws-1"}},
		{"奇数参数丢弃末尾", func() context.Context {
			return WithFields(context.Background(), "strategy", "vector", "dangling")
		}, []interface{}{"strategy", "vector"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Fields(tt.ctx()))
		})
	}
}

func TestWithField_DoesNotMutateParent(t *testing.T) {
	parent := WithRequestID(context.Background(), "req-1")
	child := WithDocument(parent, "doc-1", "")

	assert.Len(t, Fields(parent), 2)
	assert.Len(t, Fields(child), 4)
}

func TestExtractOpenTelemetryFields(t *testing.T) {
	assert.Nil(t, Fields(ExtractOpenTelemetryFields(context.Background())))

	tp := sdktrace.NewTracerProvider()
	ctx, span := tp.Tracer("test").Start(context.Background(), "op")
	defer span.End()

	kv := Fields(ExtractOpenTelemetryFields(ctx))
	assert.Equal(t, []interface{}{
		KeySpanID, span.SpanContext().SpanID().String(),
		KeyTraceID, span.SpanContext().TraceID().String(),
	}, kv)
}

func TestGetLogger(t *testing.T) {
	assert.NotNil(t, GetLogger(context.Background()))
	assert.NotNil(t, GetLogger(WithRequestID(context.Background(), "req-1")))
}
