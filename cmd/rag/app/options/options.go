// Package options contains flags and options for initializing the RAG server.
package options

import (
	"fmt"

	utilerrors "k8s.io/apimachinery/pkg/util/errors"

	ragsvc "github.com/kart-io/quizmind/internal/rag"
	"github.com/kart-io/quizmind/pkg/infra/app"
	genericoptions "github.com/kart-io/quizmind/pkg/options"
	dbopts "github.com/kart-io/quizmind/pkg/options/database"
	httpopts "github.com/kart-io/quizmind/pkg/options/http"
	llmopts "github.com/kart-io/quizmind/pkg/options/llm"
	logopts "github.com/kart-io/quizmind/pkg/options/logger"
	milvusopts "github.com/kart-io/quizmind/pkg/options/milvus"
	poolopts "github.com/kart-io/quizmind/pkg/options/pool"
	ragopts "github.com/kart-io/quizmind/pkg/options/rag"
	redisopts "github.com/kart-io/quizmind/pkg/options/redis"
	tracingopts "github.com/kart-io/quizmind/pkg/options/tracing"
)

var _ app.CliOptions = (*ServerOptions)(nil)

// ServerOptions contains the configuration options for the server.
type ServerOptions struct {
	// HTTPOptions contains HTTP server configuration.
	HTTPOptions *httpopts.Options `json:"http" mapstructure:"http"`

	// LogOptions contains logger configuration.
	LogOptions *logopts.Options `json:"log" mapstructure:"log"`

	// TracingOptions contains OpenTelemetry configuration.
	TracingOptions *tracingopts.Options `json:"tracing" mapstructure:"tracing"`

	// DatabaseOptions contains the metadata database configuration.
	DatabaseOptions *dbopts.Options `json:"database" mapstructure:"database"`

	// MilvusOptions contains Milvus database configuration.
	MilvusOptions *milvusopts.Options `json:"milvus" mapstructure:"milvus"`

	// RedisOptions contains the embedding cache configuration.
	RedisOptions *redisopts.Options `json:"redis" mapstructure:"redis"`

	// EmbeddingOptions contains embedding provider configuration.
	EmbeddingOptions *llmopts.EmbeddingOptions `json:"embedding" mapstructure:"embedding"`

	// ChatOptions contains chat provider configuration.
	ChatOptions *llmopts.ChatOptions `json:"chat" mapstructure:"chat"`

	// RAGOptions contains chunking, clustering and retrieval configuration.
	RAGOptions *ragopts.Options `json:"rag" mapstructure:"rag"`

	// ExtractorOptions contains text extraction and file source configuration.
	ExtractorOptions *ragopts.ExtractorOptions `json:"extractor" mapstructure:"extractor"`

	// PoolOptions contains worker pool configuration.
	PoolOptions *poolopts.Options `json:"pool" mapstructure:"pool"`
}

// NewServerOptions creates a ServerOptions instance with default values.
func NewServerOptions() *ServerOptions {
	return &ServerOptions{
		HTTPOptions:      httpopts.NewOptions(),
		LogOptions:       logopts.NewOptions(),
		TracingOptions:   tracingopts.NewOptions(),
		DatabaseOptions:  dbopts.NewOptions(),
		MilvusOptions:    milvusopts.NewOptions(),
		RedisOptions:     redisopts.NewOptions(),
		EmbeddingOptions: llmopts.NewEmbeddingOptions(),
		ChatOptions:      llmopts.NewChatOptions(),
		RAGOptions:       ragopts.NewOptions(),
		ExtractorOptions: ragopts.NewExtractorOptions(),
		PoolOptions:      poolopts.NewOptions(),
	}
}

// sections lists the option groups in flag and config order.
func (o *ServerOptions) sections() []genericoptions.Section {
	return []genericoptions.Section{
		{Name: "http", Options: o.HTTPOptions},
		{Name: "log", Options: o.LogOptions},
		{Name: "tracing", Options: o.TracingOptions},
		{Name: "database", Options: o.DatabaseOptions},
		{Name: "milvus", Options: o.MilvusOptions},
		{Name: "redis", Options: o.RedisOptions},
		{Name: "embedding", Options: o.EmbeddingOptions},
		{Name: "chat", Options: o.ChatOptions},
		{Name: "rag", Options: o.RAGOptions},
		{Name: "extractor", Options: o.ExtractorOptions},
		{Name: "pool", Options: o.PoolOptions},
	}
}

// Flags returns flags for a specific server by section name.
func (o *ServerOptions) Flags() (fss app.NamedFlagSets) {
	for _, s := range o.sections() {
		s.Options.AddFlags(fss.FlagSet(s.Name))
	}
	return fss
}

// Complete completes all the required options.
func (o *ServerOptions) Complete() error {
	o.TracingOptions.Complete()
	if o.TracingOptions.ServiceName == "" {
		o.TracingOptions.ServiceName = ragsvc.Name
	}
	if err := o.RedisOptions.Complete(); err != nil {
		return fmt.Errorf("redis: %w", err)
	}
	return nil
}

// Validate checks whether the options in ServerOptions are valid.
func (o *ServerOptions) Validate() error {
	return utilerrors.NewAggregate(genericoptions.ValidateSections(o.sections()))
}

// Config builds a ragsvc.Config based on ServerOptions.
func (o *ServerOptions) Config() (*ragsvc.Config, error) {
	return &ragsvc.Config{
		HTTPOptions:      o.HTTPOptions,
		LogOptions:       o.LogOptions,
		TracingOptions:   o.TracingOptions,
		DatabaseOptions:  o.DatabaseOptions,
		MilvusOptions:    o.MilvusOptions,
		RedisOptions:     o.RedisOptions,
		EmbeddingOptions: o.EmbeddingOptions,
		ChatOptions:      o.ChatOptions,
		RAGOptions:       o.RAGOptions,
		ExtractorOptions: o.ExtractorOptions,
		PoolOptions:      o.PoolOptions,
	}, nil
}
