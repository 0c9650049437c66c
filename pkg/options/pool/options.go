// Package pool provides worker pool options.
package pool

import (
	"fmt"

	"github.com/spf13/pflag"

	"github.com/kart-io/quizmind/pkg/infra/pool"
	"github.com/kart-io/quizmind/pkg/options"
)

var _ options.IOptions = (*Options)(nil)

// Options sizes the ingestion and retrieval pools.
type Options struct {
	IngestCapacity    int `json:"ingest-capacity" mapstructure:"ingest-capacity"`
	RetrievalCapacity int `json:"retrieval-capacity" mapstructure:"retrieval-capacity"`
}

// NewOptions creates Options from the pool defaults.
func NewOptions() *Options {
	return &Options{
		IngestCapacity:    pool.IngestPoolConfig().Capacity,
		RetrievalCapacity: pool.RetrievalPoolConfig().Capacity,
	}
}

// AddFlags adds flags for pool options to the specified FlagSet.
func (o *Options) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	p := options.Join(prefixes...) + "pool."
	fs.IntVar(&o.IngestCapacity, p+"ingest-capacity", o.IngestCapacity, "Maximum concurrent document ingestions.")
	fs.IntVar(&o.RetrievalCapacity, p+"retrieval-capacity", o.RetrievalCapacity, "Maximum concurrent per-document retrieval tasks.")
}

// Validate validates the pool options.
func (o *Options) Validate() []error {
	if o == nil {
		return nil
	}

	var errs []error
	if o.IngestCapacity <= 0 {
		errs = append(errs, fmt.Errorf("pool.ingest-capacity must be positive"))
	}
	if o.RetrievalCapacity <= 0 {
		errs = append(errs, fmt.Errorf("pool.retrieval-capacity must be positive"))
	}
	return errs
}

// NewManager builds a pool manager with the ingestion and retrieval pools registered.
func (o *Options) NewManager() (*pool.Manager, error) {
	m := pool.NewManager()

	ingest := pool.IngestPoolConfig()
	ingest.Capacity = o.IngestCapacity
	if err := m.Register(pool.IngestPool, ingest); err != nil {
		return nil, err
	}

	retrieval := pool.RetrievalPoolConfig()
	retrieval.Capacity = o.RetrievalCapacity
	if err := m.Register(pool.RetrievalPool, retrieval); err != nil {
		_ = m.Close()
		return nil, err
	}
	return m, nil
}
