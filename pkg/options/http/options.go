// Package http provides HTTP server configuration options.
package http

import (
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/pflag"

	"github.com/kart-io/quizmind/pkg/options"
)

var _ options.IOptions = (*Options)(nil)

// Options contains HTTP server configuration.
type Options struct {
	// Addr is the address to listen on.
	Addr string `json:"addr" mapstructure:"addr"`
	// Mode is the gin mode (debug, release, test).
	Mode string `json:"mode" mapstructure:"mode"`
	// ReadTimeout is the maximum duration for reading the entire request.
	ReadTimeout time.Duration `json:"read-timeout" mapstructure:"read-timeout"`
	// WriteTimeout is the maximum duration before timing out writes of the response.
	WriteTimeout time.Duration `json:"write-timeout" mapstructure:"write-timeout"`
	// IdleTimeout is the maximum amount of time to wait for the next request.
	IdleTimeout time.Duration `json:"idle-timeout" mapstructure:"idle-timeout"`
	// ShutdownTimeout bounds graceful shutdown, including in-flight ingestion.
	ShutdownTimeout time.Duration `json:"shutdown-timeout" mapstructure:"shutdown-timeout"`
	// MaxBodyBytes limits request bodies (inline documents are base64 encoded).
	MaxBodyBytes int64 `json:"max-body-bytes" mapstructure:"max-body-bytes"`
}

// NewOptions creates a new Options with default values.
func NewOptions() *Options {
	return &Options{
		Addr:            ":8082",
		Mode:            gin.ReleaseMode,
		ReadTimeout:     30 * time.Second,
		WriteTimeout:    60 * time.Second,
		IdleTimeout:     60 * time.Second,
		ShutdownTimeout: 30 * time.Second,
		MaxBodyBytes:    64 << 20,
	}
}

// AddFlags adds flags for HTTP options to the specified FlagSet.
func (o *Options) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	p := options.Join(prefixes...) + "http."
	fs.StringVar(&o.Addr, p+"addr", o.Addr, "HTTP server listen address")
	fs.StringVar(&o.Mode, p+"mode", o.Mode, "Gin mode (debug|release|test)")
	fs.DurationVar(&o.ReadTimeout, p+"read-timeout", o.ReadTimeout, "HTTP server read timeout")
	fs.DurationVar(&o.WriteTimeout, p+"write-timeout", o.WriteTimeout, "HTTP server write timeout")
	fs.DurationVar(&o.IdleTimeout, p+"idle-timeout", o.IdleTimeout, "HTTP server idle timeout")
	fs.DurationVar(&o.ShutdownTimeout, p+"shutdown-timeout", o.ShutdownTimeout, "Graceful shutdown timeout")
	fs.Int64Var(&o.MaxBodyBytes, p+"max-body-bytes", o.MaxBodyBytes, "Maximum request body size in bytes")
}

// Validate validates the HTTP options.
func (o *Options) Validate() []error {
	if o == nil {
		return nil
	}

	var errs []error
	if o.Addr == "" {
		errs = append(errs, fmt.Errorf("http.addr cannot be empty"))
	}
	if o.ReadTimeout <= 0 {
		errs = append(errs, fmt.Errorf("http.read-timeout must be positive"))
	}
	if o.WriteTimeout <= 0 {
		errs = append(errs, fmt.Errorf("http.write-timeout must be positive"))
	}
	switch o.Mode {
	case gin.DebugMode, gin.ReleaseMode, gin.TestMode:
	default:
		errs = append(errs, fmt.Errorf("http.mode must be one of debug, release, test"))
	}
	if o.MaxBodyBytes <= 0 {
		errs = append(errs, fmt.Errorf("http.max-body-bytes must be positive"))
	}
	return errs
}
