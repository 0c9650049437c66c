package pool

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// Manager 池管理器，管理多个命名池
type Manager struct {
	mu     sync.RWMutex
	pools  map[string]*Pool
	closed atomic.Bool
}

// NewManager 创建新的池管理器
func NewManager() *Manager {
	return &Manager{
		pools: make(map[string]*Pool),
	}
}

// Register 注册新池
func (m *Manager) Register(typ Type, config *Config) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed.Load() {
		return ErrPoolClosed
	}

	name := string(typ)
	if _, exists := m.pools[name]; exists {
		return fmt.Errorf("%w: %s", ErrPoolAlreadyExists, name)
	}

	p, err := NewPool(name, config)
	if err != nil {
		return err
	}
	m.pools[name] = p
	return nil
}

// Get 获取指定类型的池
func (m *Manager) Get(typ Type) (*Pool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed.Load() {
		return nil, ErrPoolClosed
	}

	p, exists := m.pools[string(typ)]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrPoolNotFound, typ)
	}
	return p, nil
}

// Submit 提交任务到指定池
func (m *Manager) Submit(typ Type, task func()) error {
	p, err := m.Get(typ)
	if err != nil {
		return err
	}
	return p.Submit(task)
}

// SubmitWithContext 提交带上下文的任务到指定池
func (m *Manager) SubmitWithContext(ctx context.Context, typ Type, task func()) error {
	p, err := m.Get(typ)
	if err != nil {
		return err
	}
	return p.SubmitWithContext(ctx, task)
}

// Stats 返回所有池的统计信息，按名称排序
func (m *Manager) Stats() []Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stats := make([]Stats, 0, len(m.pools))
	for _, p := range m.pools {
		stats = append(stats, p.Stats())
	}
	sort.Slice(stats, func(i, j int) bool { return stats[i].Name < stats[j].Name })
	return stats
}

// ReleaseAllTimeout 带超时释放所有池
func (m *Manager) ReleaseAllTimeout(timeout time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closed.Store(true)
	var firstErr error
	for name, p := range m.pools {
		if err := p.ReleaseTimeout(timeout); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("释放池 '%s' 超时: %w", name, err)
		}
	}
	m.pools = make(map[string]*Pool)
	return firstErr
}

// Close 关闭管理器
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closed.Store(true)
	for _, p := range m.pools {
		p.Release()
	}
	m.pools = make(map[string]*Pool)
	return nil
}
