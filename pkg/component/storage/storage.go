// Package storage defines the common contract of backing-store clients
// (Milvus, Redis, the metadata database) and a manager that health checks
// and closes them together.
package storage

import (
	"context"
	"time"
)

// Client is implemented by every backing-store component.
type Client interface {
	// Name returns a short identifier such as "milvus" or "redis".
	Name() string
	// Ping verifies that the backend is reachable.
	Ping(ctx context.Context) error
	// Close releases the client's connections.
	Close() error
}

// HealthStatus is the outcome of one health check.
type HealthStatus struct {
	Name    string        `json:"name"`
	Healthy bool          `json:"healthy"`
	Latency time.Duration `json:"latency"`
	Error   string        `json:"error,omitempty"`
}
