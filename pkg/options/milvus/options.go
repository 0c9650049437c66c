// Package milvusopts provides options for Milvus client configuration.
package milvusopts

import (
	"fmt"
	"time"

	"github.com/kart-io/quizmind/pkg/options"
	"github.com/spf13/pflag"
)

var _ options.IOptions = (*Options)(nil)

// Options contains Milvus client configuration.
type Options struct {
	// Address is the Milvus server address (host:port).
	Address string `json:"address" mapstructure:"address"`

	// Database is the database name to use.
	Database string `json:"database" mapstructure:"database"`

	// Username for authentication.
	Username string `json:"username" mapstructure:"username"`

	// Password for authentication.
	Password string `json:"password" mapstructure:"password"`

	// Timeout for connection and operations.
	Timeout time.Duration `json:"timeout" mapstructure:"timeout"`

	// Enabled selects the Milvus chunk store. When false an in-process store is used.
	Enabled bool `json:"enabled" mapstructure:"enabled"`

	// NList is the IVF_FLAT cluster count used when the collection index is created.
	NList int `json:"nlist" mapstructure:"nlist"`

	// NProbe is the number of IVF clusters scanned per search.
	NProbe int `json:"nprobe" mapstructure:"nprobe"`
}

// NewOptions creates new Options with defaults.
func NewOptions() *Options {
	return &Options{
		Address:  "localhost:19530",
		Database: "default",
		Timeout:  30 * time.Second,
		Enabled:  true,
		NList:    128,
		NProbe:   16,
	}
}

// AddFlags adds flags to the flagset.
func (o *Options) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	fs.StringVar(&o.Address, options.Join(prefixes...)+"milvus.address", o.Address, "Milvus server address (host:port).")
	fs.StringVar(&o.Database, options.Join(prefixes...)+"milvus.database", o.Database, "Milvus database name.")
	fs.StringVar(&o.Username, options.Join(prefixes...)+"milvus.username", o.Username, "Milvus username for authentication.")
	fs.StringVar(&o.Password, options.Join(prefixes...)+"milvus.password", o.Password, "Milvus password for authentication.")
	fs.DurationVar(&o.Timeout, options.Join(prefixes...)+"milvus.timeout", o.Timeout, "Connection and operation timeout.")
	fs.BoolVar(&o.Enabled, options.Join(prefixes...)+"milvus.enabled", o.Enabled, "Store chunk vectors in Milvus. Disable to keep them in memory.")
	fs.IntVar(&o.NList, options.Join(prefixes...)+"milvus.nlist", o.NList, "IVF_FLAT nlist used when creating the collection index.")
	fs.IntVar(&o.NProbe, options.Join(prefixes...)+"milvus.nprobe", o.NProbe, "Number of IVF clusters probed per search.")
}

// Validate validates the options.
func (o *Options) Validate() []error {
	if o == nil {
		return nil
	}

	if !o.Enabled {
		return nil
	}

	var errs []error
	if o.Address == "" {
		errs = append(errs, fmt.Errorf("milvus address is required"))
	}
	if o.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("milvus timeout must be positive"))
	}
	if o.NList <= 0 || o.NProbe <= 0 || o.NProbe > o.NList {
		errs = append(errs, fmt.Errorf("milvus nprobe must be in [1, nlist]"))
	}
	return errs
}
