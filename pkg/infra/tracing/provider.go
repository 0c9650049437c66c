// Package tracing wires OpenTelemetry: a tracer provider built from options
// and small helpers for starting spans and recording errors.
package tracing

import (
	"context"
	"fmt"
	"os"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc/credentials/insecure"
	utilerrors "k8s.io/apimachinery/pkg/util/errors"

	options "github.com/kart-io/quizmind/pkg/options/tracing"
)

// Options is re-exported from pkg/options/tracing.
type Options = options.Options

// NewOptions is re-exported from pkg/options/tracing.
var NewOptions = options.NewOptions

type exporterFactory func(ctx context.Context, opts *Options) (sdktrace.SpanExporter, error)

var exporters = map[options.ExporterType]exporterFactory{
	options.ExporterOTLPGRPC: newOTLPGRPCExporter,
	options.ExporterOTLPHTTP: newOTLPHTTPExporter,
	options.ExporterStdout: func(context.Context, *Options) (sdktrace.SpanExporter, error) {
		return stdouttrace.New(stdouttrace.WithPrettyPrint(), stdouttrace.WithWriter(os.Stdout))
	},
	options.ExporterNoop: func(context.Context, *Options) (sdktrace.SpanExporter, error) {
		return noopExporter{}, nil
	},
}

// Provider owns the SDK tracer provider for the lifetime of the process.
type Provider struct {
	tracerProvider *sdktrace.TracerProvider
	opts           *Options
}

// NewProvider builds a tracer provider from opts and installs it, together
// with the W3C trace-context propagator, as the otel global. nil opts use
// defaults. When tracing is disabled the global provider is left untouched
// but the propagator is still installed so inbound trace ids reach the logs.
func NewProvider(ctx context.Context, opts *Options) (*Provider, error) {
	if opts == nil {
		opts = NewOptions()
	}
	opts.Complete()
	if errs := opts.Validate(); len(errs) > 0 {
		return nil, fmt.Errorf("invalid tracing options: %w", utilerrors.NewAggregate(errs))
	}

	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	if !opts.Enabled {
		return &Provider{tracerProvider: sdktrace.NewTracerProvider(), opts: opts}, nil
	}

	res, err := newResource(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	factory, ok := exporters[opts.ExporterType]
	if !ok {
		return nil, fmt.Errorf("unsupported exporter type: %s", opts.ExporterType)
	}
	exporter, err := factory(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s exporter: %w", opts.ExporterType, err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithSampler(newSampler(opts)),
		sdktrace.WithBatcher(exporter,
			sdktrace.WithBatchTimeout(opts.BatchTimeout),
			sdktrace.WithMaxExportBatchSize(opts.BatchMaxSize),
			sdktrace.WithExportTimeout(opts.ExportTimeout),
			sdktrace.WithMaxQueueSize(opts.MaxQueueSize),
		),
	)
	otel.SetTracerProvider(tp)

	return &Provider{tracerProvider: tp, opts: opts}, nil
}

// Tracer returns a tracer with the given name.
func (p *Provider) Tracer(name string, opts ...trace.TracerOption) trace.Tracer {
	return p.tracerProvider.Tracer(name, opts...)
}

// Enabled reports whether spans are exported.
func (p *Provider) Enabled() bool {
	return p.opts.Enabled
}

// Shutdown flushes pending spans and stops the exporter.
func (p *Provider) Shutdown(ctx context.Context) error {
	return p.tracerProvider.Shutdown(ctx)
}

// ForceFlush exports pending spans without shutting down.
func (p *Provider) ForceFlush(ctx context.Context) error {
	return p.tracerProvider.ForceFlush(ctx)
}

func newResource(ctx context.Context, opts *Options) (*resource.Resource, error) {
	attrs := []attribute.KeyValue{
		semconv.ServiceName(opts.ServiceName),
		semconv.ServiceVersion(opts.ServiceVersion),
	}
	if opts.ServiceNamespace != "" {
		attrs = append(attrs, semconv.ServiceNamespace(opts.ServiceNamespace))
	}
	if opts.Environment != "" {
		attrs = append(attrs, semconv.DeploymentEnvironment(opts.Environment))
	}
	for k, v := range opts.ResourceAttributes {
		attrs = append(attrs, attribute.String(k, v))
	}

	return resource.New(ctx,
		resource.WithAttributes(attrs...),
		resource.WithFromEnv(),
		resource.WithTelemetrySDK(),
		resource.WithHost(),
		resource.WithProcess(),
	)
}

func newOTLPGRPCExporter(ctx context.Context, opts *Options) (sdktrace.SpanExporter, error) {
	grpcOpts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(opts.Endpoint)}
	if opts.Insecure {
		grpcOpts = append(grpcOpts, otlptracegrpc.WithTLSCredentials(insecure.NewCredentials()))
	}
	if len(opts.Headers) > 0 {
		grpcOpts = append(grpcOpts, otlptracegrpc.WithHeaders(opts.Headers))
	}
	return otlptrace.New(ctx, otlptracegrpc.NewClient(grpcOpts...))
}

func newOTLPHTTPExporter(ctx context.Context, opts *Options) (sdktrace.SpanExporter, error) {
	httpOpts := []otlptracehttp.Option{otlptracehttp.WithEndpoint(opts.Endpoint)}
	if opts.Insecure {
		httpOpts = append(httpOpts, otlptracehttp.WithInsecure())
	}
	if len(opts.Headers) > 0 {
		httpOpts = append(httpOpts, otlptracehttp.WithHeaders(opts.Headers))
	}
	return otlptrace.New(ctx, otlptracehttp.NewClient(httpOpts...))
}

// noopExporter drops spans. Sampling and context propagation still run.
type noopExporter struct{}

func (noopExporter) ExportSpans(context.Context, []sdktrace.ReadOnlySpan) error { return nil }
func (noopExporter) Shutdown(context.Context) error                             { return nil }

func newSampler(opts *Options) sdktrace.Sampler {
	switch opts.SamplerType {
	case options.SamplerAlwaysOn:
		return sdktrace.AlwaysSample()
	case options.SamplerAlwaysOff:
		return sdktrace.NeverSample()
	case options.SamplerRatio:
		return sdktrace.TraceIDRatioBased(opts.SamplerRatio)
	default:
		return sdktrace.ParentBased(sdktrace.TraceIDRatioBased(opts.SamplerRatio))
	}
}

// GetGlobalTextMapPropagator returns the global text map propagator.
func GetGlobalTextMapPropagator() propagation.TextMapPropagator {
	return otel.GetTextMapPropagator()
}
