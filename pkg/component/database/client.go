// Package database provides the GORM client component for the metadata store.
// It supports PostgreSQL, MySQL and SQLite.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/glebarez/sqlite"
	mysqldriver "gorm.io/driver/mysql"
	postgresdriver "gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/kart-io/quizmind/pkg/component/storage"
	options "github.com/kart-io/quizmind/pkg/options/database"
)

// Client wraps gorm.DB.
type Client struct {
	db   *gorm.DB
	opts *options.Options
}

// Compile-time check that Client implements storage.Client.
var _ storage.Client = (*Client)(nil)

// NewWithContext opens the database, configures the connection pool and pings it.
func NewWithContext(ctx context.Context, opts *options.Options) (*Client, error) {
	if opts == nil {
		return nil, fmt.Errorf("database options cannot be nil")
	}

	dialector, err := dialectorFor(opts)
	if err != nil {
		return nil, err
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormLogLevel(opts.LogLevel)),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", opts.Driver, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}

	if opts.Driver == options.DriverSQLite {
		// SQLite serialises writers; a single connection avoids "database is locked".
		sqlDB.SetMaxOpenConns(1)
	} else {
		sqlDB.SetMaxIdleConns(opts.MaxIdleConnections)
		sqlDB.SetMaxOpenConns(opts.MaxOpenConnections)
		sqlDB.SetConnMaxLifetime(opts.MaxConnectionLifeTime)
	}

	client := &Client{db: db, opts: opts}
	if err := client.Ping(ctx); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to ping %s: %w", opts.Driver, err)
	}
	return client, nil
}

// NewWithDB wraps an already opened gorm.DB.
func NewWithDB(db *gorm.DB) *Client {
	return &Client{db: db, opts: options.NewOptions()}
}

func dialectorFor(opts *options.Options) (gorm.Dialector, error) {
	dsn := BuildDSN(opts)
	switch opts.Driver {
	case options.DriverPostgres:
		return postgresdriver.Open(dsn), nil
	case options.DriverMySQL:
		return mysqldriver.Open(dsn), nil
	case options.DriverSQLite:
		if dsn != ":memory:" {
			if err := os.MkdirAll(filepath.Dir(dsn), 0o755); err != nil {
				return nil, fmt.Errorf("failed to create sqlite directory: %w", err)
			}
		}
		return sqlite.Open(dsn), nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", opts.Driver)
	}
}

func gormLogLevel(level int) gormlogger.LogLevel {
	switch level {
	case 2:
		return gormlogger.Error
	case 3:
		return gormlogger.Warn
	case 4:
		return gormlogger.Info
	default:
		return gormlogger.Silent
	}
}

// DB returns the underlying gorm.DB instance.
func (c *Client) DB() *gorm.DB {
	return c.db
}

// SqlDB returns the underlying sql.DB instance.
func (c *Client) SqlDB() (*sql.DB, error) {
	if c.db == nil {
		return nil, fmt.Errorf("gorm.DB is nil")
	}
	return c.db.DB()
}

// Name returns the name of the storage client.
func (c *Client) Name() string {
	return "database"
}

// Ping verifies the connection to the database.
func (c *Client) Ping(ctx context.Context) error {
	sqlDB, err := c.SqlDB()
	if err != nil {
		return err
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return sqlDB.PingContext(pingCtx)
}

// Close closes the database connection pool.
func (c *Client) Close() error {
	sqlDB, err := c.SqlDB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
