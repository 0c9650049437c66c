// Package database provides relational database options for the metadata store.
package database

import (
	"fmt"
	"time"

	"github.com/spf13/pflag"

	"github.com/kart-io/quizmind/pkg/options"
)

var _ options.IOptions = (*Options)(nil)

// Supported drivers.
const (
	DriverPostgres = "postgres"
	DriverMySQL    = "mysql"
	DriverSQLite   = "sqlite"
)

// Options defines configuration options for the metadata database.
type Options struct {
	Driver                string        `json:"driver" mapstructure:"driver"`
	Host                  string        `json:"host" mapstructure:"host"`
	Port                  int           `json:"port" mapstructure:"port"`
	Username              string        `json:"username" mapstructure:"username"`
	Password              string        `json:"-" mapstructure:"password"`
	Database              string        `json:"database" mapstructure:"database"`
	SSLMode               string        `json:"ssl-mode" mapstructure:"ssl-mode"`
	Path                  string        `json:"path" mapstructure:"path"`
	MaxIdleConnections    int           `json:"max-idle-connections" mapstructure:"max-idle-connections"`
	MaxOpenConnections    int           `json:"max-open-connections" mapstructure:"max-open-connections"`
	MaxConnectionLifeTime time.Duration `json:"max-connection-life-time" mapstructure:"max-connection-life-time"`
	LogLevel              int           `json:"log-level" mapstructure:"log-level"`
	AutoMigrate           bool          `json:"auto-migrate" mapstructure:"auto-migrate"`
}

// NewOptions creates a new Options object with default values.
func NewOptions() *Options {
	return &Options{
		Driver:                DriverSQLite,
		Host:                  "127.0.0.1",
		Port:                  5432,
		Username:              "postgres",
		SSLMode:               "disable",
		Path:                  "_output/quizmind-rag.db",
		MaxIdleConnections:    10,
		MaxOpenConnections:    100,
		MaxConnectionLifeTime: 10 * time.Second,
		LogLevel:              1, // Silent
		AutoMigrate:           true,
	}
}

// Validate checks if the options are valid.
func (o *Options) Validate() []error {
	if o == nil {
		return nil
	}

	var errs []error
	switch o.Driver {
	case DriverPostgres, DriverMySQL:
		if o.Host == "" {
			errs = append(errs, fmt.Errorf("database host is required for %s", o.Driver))
		}
		if o.Database == "" {
			errs = append(errs, fmt.Errorf("database name is required for %s", o.Driver))
		}
	case DriverSQLite:
		if o.Path == "" {
			errs = append(errs, fmt.Errorf("database path is required for sqlite"))
		}
	default:
		errs = append(errs, fmt.Errorf("unsupported database driver %q", o.Driver))
	}
	if o.MaxOpenConnections < o.MaxIdleConnections {
		errs = append(errs, fmt.Errorf("database max-open-connections must be >= max-idle-connections"))
	}
	return errs
}

// AddFlags adds flags for database options to the specified FlagSet.
func (o *Options) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	p := options.Join(prefixes...) + "database."
	fs.StringVar(&o.Driver, p+"driver", o.Driver, "Database driver (postgres|mysql|sqlite)")
	fs.StringVar(&o.Host, p+"host", o.Host, "Database host")
	fs.IntVar(&o.Port, p+"port", o.Port, "Database port")
	fs.StringVar(&o.Username, p+"username", o.Username, "Database username")
	fs.StringVar(&o.Password, p+"password", o.Password, "Database password")
	fs.StringVar(&o.Database, p+"database", o.Database, "Database name")
	fs.StringVar(&o.SSLMode, p+"ssl-mode", o.SSLMode, "PostgreSQL SSL mode")
	fs.StringVar(&o.Path, p+"path", o.Path, "SQLite database file")
	fs.IntVar(&o.MaxIdleConnections, p+"max-idle-connections", o.MaxIdleConnections, "Max idle connections")
	fs.IntVar(&o.MaxOpenConnections, p+"max-open-connections", o.MaxOpenConnections, "Max open connections")
	fs.DurationVar(&o.MaxConnectionLifeTime, p+"max-connection-life-time", o.MaxConnectionLifeTime, "Max connection life time")
	fs.IntVar(&o.LogLevel, p+"log-level", o.LogLevel, "GORM log level (1 silent, 2 error, 3 warn, 4 info)")
	fs.BoolVar(&o.AutoMigrate, p+"auto-migrate", o.AutoMigrate, "Create or update metadata tables on startup")
}
