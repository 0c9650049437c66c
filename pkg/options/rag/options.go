// Package rag provides configuration options for document ingestion and retrieval.
package rag

import (
	"fmt"
	"time"

	"github.com/spf13/pflag"

	"github.com/kart-io/quizmind/pkg/options"
)

var (
	_ options.IOptions = (*Options)(nil)
	_ options.IOptions = (*ExtractorOptions)(nil)
)

// Options contains ingestion and retrieval configuration.
type Options struct {
	// ChunkSize is the target chunk length in characters.
	ChunkSize int `json:"chunk-size" mapstructure:"chunk-size"`

	// ChunkOverlap is the overlap between consecutive chunks.
	ChunkOverlap int `json:"chunk-overlap" mapstructure:"chunk-overlap"`

	// MaxChunks bounds the chunks produced for one document.
	MaxChunks int `json:"max-chunks" mapstructure:"max-chunks"`

	// Collection is the name of the vector collection.
	Collection string `json:"collection" mapstructure:"collection"`

	// MaxContextChars bounds the assembled retrieval context.
	MaxContextChars int `json:"max-context-chars" mapstructure:"max-context-chars"`

	// CandidateLimit is the number of nearest neighbours fetched per vector search.
	CandidateLimit int `json:"candidate-limit" mapstructure:"candidate-limit"`

	// Cluster configures subject clustering.
	Cluster *ClusterOptions `json:"cluster" mapstructure:"cluster"`
}

// ClusterOptions 聚类配置。
type ClusterOptions struct {
	Threshold      float64 `json:"threshold" mapstructure:"threshold"`
	TargetClusters int     `json:"target-clusters" mapstructure:"target-clusters"`
	MinWindow      int     `json:"min-window" mapstructure:"min-window"`
	MaxSelected    int     `json:"max-selected" mapstructure:"max-selected"`
	KeepTop        int     `json:"keep-top" mapstructure:"keep-top"`
}

// NewOptions creates new Options with defaults.
func NewOptions() *Options {
	return &Options{
		ChunkSize:       1000,
		ChunkOverlap:    200,
		MaxChunks:       500,
		Collection:      "quizmind_chunks",
		MaxContextChars: 12000,
		CandidateLimit:  1000,
		Cluster: &ClusterOptions{
			Threshold:      0.60,
			TargetClusters: 8,
			MinWindow:      5,
			MaxSelected:    10,
			KeepTop:        3,
		},
	}
}

// AddFlags adds flags for RAG options to the specified FlagSet.
func (o *Options) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	p := options.Join(prefixes...) + "rag."
	fs.IntVar(&o.ChunkSize, p+"chunk-size", o.ChunkSize, "Target chunk size in characters.")
	fs.IntVar(&o.ChunkOverlap, p+"chunk-overlap", o.ChunkOverlap, "Overlap between chunks in characters.")
	fs.IntVar(&o.MaxChunks, p+"max-chunks", o.MaxChunks, "Maximum chunks per document.")
	fs.StringVar(&o.Collection, p+"collection", o.Collection, "Vector collection name.")
	fs.IntVar(&o.MaxContextChars, p+"max-context-chars", o.MaxContextChars, "Character budget of the assembled context.")
	fs.IntVar(&o.CandidateLimit, p+"candidate-limit", o.CandidateLimit, "Nearest neighbours fetched per vector search.")

	if o.Cluster == nil {
		o.Cluster = NewOptions().Cluster
	}
	fs.Float64Var(&o.Cluster.Threshold, p+"cluster.threshold", o.Cluster.Threshold, "Cosine similarity a chunk must exceed to join a cluster.")
	fs.IntVar(&o.Cluster.TargetClusters, p+"cluster.target-clusters", o.Cluster.TargetClusters, "Target group count for the sequential fallback.")
	fs.IntVar(&o.Cluster.MinWindow, p+"cluster.min-window", o.Cluster.MinWindow, "Minimum window of the sequential fallback.")
	fs.IntVar(&o.Cluster.MaxSelected, p+"cluster.max-selected", o.Cluster.MaxSelected, "Maximum clusters turned into subjects.")
	fs.IntVar(&o.Cluster.KeepTop, p+"cluster.keep-top", o.Cluster.KeepTop, "Clusters always kept by importance before diverse sampling.")
}

// Validate validates the RAG options.
func (o *Options) Validate() []error {
	if o == nil {
		return nil
	}

	var errs []error
	if o.ChunkSize <= 0 {
		errs = append(errs, fmt.Errorf("rag.chunk-size must be positive"))
	}
	if o.ChunkOverlap < 0 || o.ChunkOverlap >= o.ChunkSize {
		errs = append(errs, fmt.Errorf("rag.chunk-overlap must be in [0, chunk-size)"))
	}
	if o.MaxChunks <= 0 {
		errs = append(errs, fmt.Errorf("rag.max-chunks must be positive"))
	}
	if o.Collection == "" {
		errs = append(errs, fmt.Errorf("rag.collection is required"))
	}
	if o.MaxContextChars <= 0 {
		errs = append(errs, fmt.Errorf("rag.max-context-chars must be positive"))
	}
	if o.CandidateLimit <= 0 {
		errs = append(errs, fmt.Errorf("rag.candidate-limit must be positive"))
	}
	if c := o.Cluster; c != nil {
		if c.Threshold <= 0 || c.Threshold >= 1 {
			errs = append(errs, fmt.Errorf("rag.cluster.threshold must be in (0, 1)"))
		}
		if c.TargetClusters <= 0 || c.MinWindow <= 0 {
			errs = append(errs, fmt.Errorf("rag.cluster.target-clusters and min-window must be positive"))
		}
		if c.KeepTop < 0 || c.KeepTop >= c.MaxSelected {
			errs = append(errs, fmt.Errorf("rag.cluster.keep-top must be in [0, max-selected)"))
		}
	}
	return errs
}

// ExtractorOptions 文本提取与文件获取服务配置。
type ExtractorOptions struct {
	// URL of the text extraction service. Empty keeps only the plain-text extractor.
	URL string `json:"url" mapstructure:"url"`

	// FileSourceURL is the base URL documents are fetched from on ingest.
	FileSourceURL string `json:"file-source-url" mapstructure:"file-source-url"`

	// Timeout bounds one extraction or fetch call.
	Timeout time.Duration `json:"timeout" mapstructure:"timeout"`

	// MaxRetries is the transport-level retry count.
	MaxRetries int `json:"max-retries" mapstructure:"max-retries"`
}

// NewExtractorOptions creates ExtractorOptions with defaults.
func NewExtractorOptions() *ExtractorOptions {
	return &ExtractorOptions{
		Timeout:    120 * time.Second,
		MaxRetries: 1,
	}
}

// AddFlags adds flags for extractor options to the specified FlagSet.
func (o *ExtractorOptions) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	p := options.Join(prefixes...) + "extractor."
	fs.StringVar(&o.URL, p+"url", o.URL, "Text extraction service URL.")
	fs.StringVar(&o.FileSourceURL, p+"file-source-url", o.FileSourceURL, "Base URL of the document file service.")
	fs.DurationVar(&o.Timeout, p+"timeout", o.Timeout, "Extraction and fetch timeout.")
	fs.IntVar(&o.MaxRetries, p+"max-retries", o.MaxRetries, "Transport-level retries.")
}

// Validate validates the extractor options.
func (o *ExtractorOptions) Validate() []error {
	if o == nil {
		return nil
	}
	if o.Timeout <= 0 {
		return []error{fmt.Errorf("extractor.timeout must be positive")}
	}
	return nil
}
