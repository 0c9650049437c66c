// Package redis provides Redis client configuration options.
package redis

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/spf13/pflag"

	"github.com/kart-io/quizmind/pkg/options"
	"github.com/kart-io/quizmind/pkg/utils/json"
)

var _ options.IOptions = (*Options)(nil)

// redactedPassword is the placeholder used when serializing passwords.
const redactedPassword = "[REDACTED]"

// Options defines configuration options for Redis.
type Options struct {
	Enabled      bool          `json:"enabled" mapstructure:"enabled"`
	Host         string        `json:"host" mapstructure:"host"`
	Port         int           `json:"port" mapstructure:"port"`
	Password     string        `json:"-" mapstructure:"password"`
	Database     int           `json:"database" mapstructure:"database"`
	MaxRetries   int           `json:"max-retries" mapstructure:"max-retries"`
	PoolSize     int           `json:"pool-size" mapstructure:"pool-size"`
	MinIdleConns int           `json:"min-idle-conns" mapstructure:"min-idle-conns"`
	DialTimeout  time.Duration `json:"dial-timeout" mapstructure:"dial-timeout"`
	ReadTimeout  time.Duration `json:"read-timeout" mapstructure:"read-timeout"`
	WriteTimeout time.Duration `json:"write-timeout" mapstructure:"write-timeout"`
	PoolTimeout  time.Duration `json:"pool-timeout" mapstructure:"pool-timeout"`
	// EmbeddingTTL is how long cached embeddings live in Redis.
	EmbeddingTTL time.Duration `json:"embedding-ttl" mapstructure:"embedding-ttl"`
}

// optionsForJSON is used for JSON marshaling with password redacted.
type optionsForJSON struct {
	Enabled      bool          `json:"enabled"`
	Host         string        `json:"host"`
	Port         int           `json:"port"`
	Password     string        `json:"password"`
	Database     int           `json:"database"`
	PoolSize     int           `json:"pool-size"`
	EmbeddingTTL time.Duration `json:"embedding-ttl"`
}

// MarshalJSON implements json.Marshaler with password redaction.
func (o *Options) MarshalJSON() ([]byte, error) {
	password := redactedPassword
	if o.Password == "" {
		password = ""
	}

	return json.Marshal(optionsForJSON{
		Enabled:      o.Enabled,
		Host:         o.Host,
		Port:         o.Port,
		Password:     password,
		Database:     o.Database,
		PoolSize:     o.PoolSize,
		EmbeddingTTL: o.EmbeddingTTL,
	})
}

// String returns a string representation with password redacted.
func (o *Options) String() string {
	password := redactedPassword
	if o.Password == "" {
		password = ""
	}
	return fmt.Sprintf("Redis{host=%s, port=%d, password=%s, database=%d}",
		o.Host, o.Port, password, o.Database)
}

// Addr returns host:port.
func (o *Options) Addr() string {
	return net.JoinHostPort(o.Host, strconv.Itoa(o.Port))
}

// NewOptions creates a new Options object with default values.
// Redis is optional for the RAG service and disabled by default.
func NewOptions() *Options {
	return &Options{
		Enabled:      false,
		Host:         "127.0.0.1",
		Port:         6379,
		MaxRetries:   3,
		PoolSize:     10,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolTimeout:  4 * time.Second,
		EmbeddingTTL: 24 * time.Hour,
	}
}

// Complete reads the password from REDIS_PASSWORD when no flag value is given.
func (o *Options) Complete() error {
	if o.Password == "" {
		o.Password = os.Getenv("REDIS_PASSWORD")
	}
	return nil
}

// Validate checks if the options are valid.
func (o *Options) Validate() []error {
	if o == nil || !o.Enabled {
		return nil
	}

	var errs []error
	if o.Host == "" {
		errs = append(errs, fmt.Errorf("redis host is required"))
	}
	if o.Port <= 0 || o.Port > 65535 {
		errs = append(errs, fmt.Errorf("redis port %d is out of range", o.Port))
	}
	if o.EmbeddingTTL <= 0 {
		errs = append(errs, fmt.Errorf("redis embedding-ttl must be positive"))
	}
	return errs
}

// AddFlags adds flags for Redis options to the specified FlagSet.
func (o *Options) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	p := options.Join(prefixes...) + "redis."
	fs.BoolVar(&o.Enabled, p+"enabled", o.Enabled, "Enable the Redis second-level embedding cache")
	fs.StringVar(&o.Host, p+"host", o.Host, "Redis host")
	fs.IntVar(&o.Port, p+"port", o.Port, "Redis port")
	fs.StringVar(&o.Password, p+"password", o.Password, "Redis password (prefer the REDIS_PASSWORD env var)")
	fs.IntVar(&o.Database, p+"database", o.Database, "Redis database")
	fs.IntVar(&o.MaxRetries, p+"max-retries", o.MaxRetries, "Redis max retries")
	fs.IntVar(&o.PoolSize, p+"pool-size", o.PoolSize, "Redis pool size")
	fs.IntVar(&o.MinIdleConns, p+"min-idle-conns", o.MinIdleConns, "Redis min idle connections")
	fs.DurationVar(&o.DialTimeout, p+"dial-timeout", o.DialTimeout, "Redis dial timeout")
	fs.DurationVar(&o.ReadTimeout, p+"read-timeout", o.ReadTimeout, "Redis read timeout")
	fs.DurationVar(&o.WriteTimeout, p+"write-timeout", o.WriteTimeout, "Redis write timeout")
	fs.DurationVar(&o.PoolTimeout, p+"pool-timeout", o.PoolTimeout, "Redis pool timeout")
	fs.DurationVar(&o.EmbeddingTTL, p+"embedding-ttl", o.EmbeddingTTL, "TTL of cached embeddings")
}
