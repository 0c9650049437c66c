// Package tracing provides OpenTelemetry tracing options.
package tracing

import (
	"fmt"
	"time"

	"github.com/spf13/pflag"

	"github.com/kart-io/quizmind/pkg/options"
)

var _ options.IOptions = (*Options)(nil)

// SamplerType defines the type of sampler to use.
type SamplerType string

const (
	// SamplerAlwaysOn samples all traces.
	SamplerAlwaysOn SamplerType = "always_on"
	// SamplerAlwaysOff never samples traces.
	SamplerAlwaysOff SamplerType = "always_off"
	// SamplerRatio samples traces based on a ratio.
	SamplerRatio SamplerType = "ratio"
	// SamplerParentBased uses the parent span's sampling decision.
	SamplerParentBased SamplerType = "parent_based"
)

// ExporterType defines the type of exporter to use.
type ExporterType string

const (
	// ExporterOTLPGRPC exports spans via OTLP over gRPC.
	ExporterOTLPGRPC ExporterType = "otlp_grpc"
	// ExporterOTLPHTTP exports spans via OTLP over HTTP.
	ExporterOTLPHTTP ExporterType = "otlp_http"
	// ExporterStdout exports spans to stdout.
	ExporterStdout ExporterType = "stdout"
	// ExporterNoop does not export spans.
	ExporterNoop ExporterType = "noop"
)

// Options defines configuration for OpenTelemetry tracing.
type Options struct {
	Enabled          bool   `json:"enabled" mapstructure:"enabled"`
	ServiceName      string `json:"service-name" mapstructure:"service-name"`
	ServiceVersion   string `json:"service-version" mapstructure:"service-version"`
	ServiceNamespace string `json:"service-namespace" mapstructure:"service-namespace"`
	Environment      string `json:"environment" mapstructure:"environment"`

	ExporterType ExporterType `json:"exporter-type" mapstructure:"exporter-type"`
	// Endpoint is "host:4317" for gRPC or "host:4318" for HTTP.
	Endpoint string            `json:"endpoint" mapstructure:"endpoint"`
	Insecure bool              `json:"insecure" mapstructure:"insecure"`
	Headers  map[string]string `json:"headers" mapstructure:"headers"`

	SamplerType  SamplerType `json:"sampler-type" mapstructure:"sampler-type"`
	SamplerRatio float64     `json:"sampler-ratio" mapstructure:"sampler-ratio"`

	BatchTimeout  time.Duration `json:"batch-timeout" mapstructure:"batch-timeout"`
	BatchMaxSize  int           `json:"batch-max-size" mapstructure:"batch-max-size"`
	ExportTimeout time.Duration `json:"export-timeout" mapstructure:"export-timeout"`
	MaxQueueSize  int           `json:"max-queue-size" mapstructure:"max-queue-size"`

	ResourceAttributes map[string]string `json:"resource-attributes" mapstructure:"resource-attributes"`
}

// NewOptions creates default tracing options. Tracing is disabled by default.
func NewOptions() *Options {
	return &Options{
		Enabled:            false,
		ServiceName:        "quizmind-rag",
		ServiceVersion:     "1.0.0",
		Environment:        "development",
		ExporterType:       ExporterOTLPGRPC,
		Endpoint:           "localhost:4317",
		Insecure:           true,
		Headers:            make(map[string]string),
		SamplerType:        SamplerParentBased,
		SamplerRatio:       1.0,
		BatchTimeout:       5 * time.Second,
		BatchMaxSize:       512,
		ExportTimeout:      30 * time.Second,
		MaxQueueSize:       2048,
		ResourceAttributes: make(map[string]string),
	}
}

// AddFlags adds flags for tracing options to the specified FlagSet.
func (o *Options) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	p := options.Join(prefixes...) + "tracing."
	fs.BoolVar(&o.Enabled, p+"enabled", o.Enabled, "Enable OpenTelemetry tracing.")
	fs.StringVar(&o.ServiceName, p+"service-name", o.ServiceName, "Service name reported on spans.")
	fs.StringVar(&o.ServiceVersion, p+"service-version", o.ServiceVersion, "Service version reported on spans.")
	fs.StringVar(&o.ServiceNamespace, p+"service-namespace", o.ServiceNamespace, "Service namespace reported on spans.")
	fs.StringVar(&o.Environment, p+"environment", o.Environment, "Deployment environment.")
	fs.StringVar((*string)(&o.ExporterType), p+"exporter-type", string(o.ExporterType), "Exporter type (otlp_grpc, otlp_http, stdout, noop).")
	fs.StringVar(&o.Endpoint, p+"endpoint", o.Endpoint, "OTLP exporter endpoint.")
	fs.BoolVar(&o.Insecure, p+"insecure", o.Insecure, "Disable TLS for the OTLP connection.")
	fs.StringVar((*string)(&o.SamplerType), p+"sampler-type", string(o.SamplerType), "Sampler type (always_on, always_off, ratio, parent_based).")
	fs.Float64Var(&o.SamplerRatio, p+"sampler-ratio", o.SamplerRatio, "Sampling ratio (0.0 to 1.0).")
	fs.DurationVar(&o.BatchTimeout, p+"batch-timeout", o.BatchTimeout, "Maximum time to wait before exporting a batch.")
	fs.IntVar(&o.BatchMaxSize, p+"batch-max-size", o.BatchMaxSize, "Maximum number of spans per export batch.")
	fs.DurationVar(&o.ExportTimeout, p+"export-timeout", o.ExportTimeout, "Maximum time allowed for one export.")
	fs.IntVar(&o.MaxQueueSize, p+"max-queue-size", o.MaxQueueSize, "Maximum number of spans queued for export.")
}

// Validate validates the tracing options.
func (o *Options) Validate() []error {
	if o == nil || !o.Enabled {
		return nil
	}

	var errs []error
	if o.ServiceName == "" {
		errs = append(errs, fmt.Errorf("tracing.service-name is required when tracing is enabled"))
	}

	switch o.ExporterType {
	case ExporterOTLPGRPC, ExporterOTLPHTTP:
		if o.Endpoint == "" {
			errs = append(errs, fmt.Errorf("tracing.endpoint is required for exporter %s", o.ExporterType))
		}
	case ExporterStdout, ExporterNoop:
	default:
		errs = append(errs, fmt.Errorf("tracing.exporter-type %q is not supported", o.ExporterType))
	}

	switch o.SamplerType {
	case SamplerAlwaysOn, SamplerAlwaysOff, SamplerRatio, SamplerParentBased:
	default:
		errs = append(errs, fmt.Errorf("tracing.sampler-type %q is not supported", o.SamplerType))
	}
	if o.SamplerRatio < 0 || o.SamplerRatio > 1 {
		errs = append(errs, fmt.Errorf("tracing.sampler-ratio must be between 0.0 and 1.0, got %g", o.SamplerRatio))
	}

	if o.BatchTimeout <= 0 {
		errs = append(errs, fmt.Errorf("tracing.batch-timeout must be positive"))
	}
	if o.BatchMaxSize <= 0 {
		errs = append(errs, fmt.Errorf("tracing.batch-max-size must be positive"))
	}
	if o.ExportTimeout <= 0 {
		errs = append(errs, fmt.Errorf("tracing.export-timeout must be positive"))
	}
	if o.MaxQueueSize <= 0 {
		errs = append(errs, fmt.Errorf("tracing.max-queue-size must be positive"))
	}
	return errs
}

// Complete fills in nil maps.
func (o *Options) Complete() {
	if o.Headers == nil {
		o.Headers = make(map[string]string)
	}
	if o.ResourceAttributes == nil {
		o.ResourceAttributes = make(map[string]string)
	}
}
