package storage

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"
)

// ErrClientExists is returned when a name is registered twice.
var ErrClientExists = errors.New("storage client already registered")

// Manager keeps the registered clients in registration order.
// It is safe for concurrent use.
//
// Example usage:
//
//	mgr := storage.NewManager()
//	mgr.Register(milvusClient)
//	mgr.Register(redisClient)
//
//	statuses := mgr.HealthCheckAll(ctx)
//	defer mgr.CloseAll()
type Manager struct {
	mu      sync.RWMutex
	order   []string
	clients map[string]Client
	timeout time.Duration
}

// NewManager creates a new storage manager instance.
func NewManager() *Manager {
	return &Manager{
		clients: make(map[string]Client),
		timeout: 3 * time.Second,
	}
}

// Register registers a storage client under its Name().
func (m *Manager) Register(client Client) error {
	if client == nil {
		return fmt.Errorf("storage client cannot be nil")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	name := client.Name()
	if _, exists := m.clients[name]; exists {
		return fmt.Errorf("%w: %s", ErrClientExists, name)
	}
	m.clients[name] = client
	m.order = append(m.order, name)
	return nil
}

// Names returns the registered client names in registration order.
func (m *Manager) Names() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]string(nil), m.order...)
}

// HealthCheckAll pings all registered clients concurrently.
// Results are sorted by name.
func (m *Manager) HealthCheckAll(ctx context.Context) []HealthStatus {
	m.mu.RLock()
	clients := make([]Client, 0, len(m.order))
	for _, name := range m.order {
		clients = append(clients, m.clients[name])
	}
	m.mu.RUnlock()

	statuses := make([]HealthStatus, len(clients))
	var wg sync.WaitGroup
	for i, c := range clients {
		wg.Add(1)
		go func(i int, c Client) {
			defer wg.Done()

			pingCtx, cancel := context.WithTimeout(ctx, m.timeout)
			defer cancel()

			start := time.Now()
			err := c.Ping(pingCtx)
			status := HealthStatus{Name: c.Name(), Healthy: err == nil, Latency: time.Since(start)}
			if err != nil {
				status.Error = err.Error()
			}
			statuses[i] = status
		}(i, c)
	}
	wg.Wait()

	sort.Slice(statuses, func(i, j int) bool { return statuses[i].Name < statuses[j].Name })
	return statuses
}

// AllHealthy reports whether every registered client answered its ping.
func (m *Manager) AllHealthy(ctx context.Context) bool {
	for _, status := range m.HealthCheckAll(ctx) {
		if !status.Healthy {
			return false
		}
	}
	return true
}

// CloseAll closes clients in reverse registration order and returns the
// first error. All clients are closed even if some fail.
func (m *Manager) CloseAll() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var firstErr error
	for i := len(m.order) - 1; i >= 0; i-- {
		name := m.order[i]
		if err := m.clients[name].Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("failed to close client '%s': %w", name, err)
		}
	}
	m.clients = make(map[string]Client)
	m.order = nil
	return firstErr
}
