// Package redis provides the Redis client component.
package redis

import (
	"context"
	"fmt"

	goredis "github.com/redis/go-redis/v9"

	"github.com/kart-io/quizmind/pkg/component/storage"
	options "github.com/kart-io/quizmind/pkg/options/redis"
)

// Client wraps a go-redis client.
type Client struct {
	client *goredis.Client
	opts   *options.Options
}

var _ storage.Client = (*Client)(nil)

// NewWithContext creates a Redis client and verifies it with a ping.
func NewWithContext(ctx context.Context, opts *options.Options) (*Client, error) {
	if opts == nil {
		return nil, fmt.Errorf("redis options cannot be nil")
	}

	rdb := goredis.NewClient(&goredis.Options{
		Addr:         opts.Addr(),
		Password:     opts.Password,
		DB:           opts.Database,
		MaxRetries:   opts.MaxRetries,
		PoolSize:     opts.PoolSize,
		MinIdleConns: opts.MinIdleConns,
		DialTimeout:  opts.DialTimeout,
		ReadTimeout:  opts.ReadTimeout,
		WriteTimeout: opts.WriteTimeout,
		PoolTimeout:  opts.PoolTimeout,
	})

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to ping redis at %s: %w", opts.Addr(), err)
	}

	return &Client{client: rdb, opts: opts}, nil
}

// Name returns the name of the storage client.
func (c *Client) Name() string {
	return "redis"
}

// Ping checks the connection.
func (c *Client) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Close closes the connection pool.
func (c *Client) Close() error {
	return c.client.Close()
}

// Client returns the underlying go-redis client.
func (c *Client) Client() *goredis.Client {
	return c.client
}

// Options returns the options the client was built from.
func (c *Client) Options() *options.Options {
	return c.opts
}
