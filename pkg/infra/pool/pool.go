package pool

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kart-io/logger"
	"github.com/panjf2000/ants/v2"
)

// Type defines the type of worker pool.
type Type string

const (
	// IngestPool 文档入库池（后台任务）
	IngestPool Type = "ingest"
	// RetrievalPool 多文档检索并发池
	RetrievalPool Type = "retrieval"
)

// Config defines the configuration for the worker pool.
type Config struct {
	// Capacity 池容量（最大并发 goroutine 数）
	Capacity int
	// ExpiryDuration goroutine 空闲过期时间
	ExpiryDuration time.Duration
	// PreAlloc 是否预分配内存
	PreAlloc bool
	// Nonblocking 提交任务是否非阻塞（若池满则返回错误）
	Nonblocking bool
	// MaxBlockingTasks 当 Nonblocking=false 时，最大等待任务数（0 表示无限制）
	MaxBlockingTasks int
	// PanicHandler 恐慌处理函数
	PanicHandler func(interface{})
}

// IngestPoolConfig 返回入库池配置。入库是长任务，池满时直接拒绝。
func IngestPoolConfig() *Config {
	return &Config{
		Capacity:       8,
		ExpiryDuration: 60 * time.Second,
		Nonblocking:    true,
	}
}

// RetrievalPoolConfig 返回检索池配置
func RetrievalPoolConfig() *Config {
	return &Config{
		Capacity:         64,
		ExpiryDuration:   10 * time.Second,
		MaxBlockingTasks: 1000,
	}
}

// Pool represents a worker pool.
type Pool struct {
	name     string
	pool     *ants.Pool
	config   *Config
	stats    statsCounter
	closed   atomic.Bool
	closedMu sync.Mutex
}

type statsCounter struct {
	submitted atomic.Int64
	completed atomic.Int64
	rejected  atomic.Int64
	panics    atomic.Int64
}

// Stats contains statistics about the worker pool.
type Stats struct {
	Name      string `json:"name"`
	Capacity  int    `json:"capacity"`
	Running   int    `json:"running"`
	Waiting   int    `json:"waiting"`
	Submitted int64  `json:"submitted"`
	Completed int64  `json:"completed"`
	Rejected  int64  `json:"rejected"`
	Panics    int64  `json:"panics"`
}

// NewPool creates a new worker pool with the given configuration.
func NewPool(name string, config *Config) (*Pool, error) {
	if config == nil {
		config = RetrievalPoolConfig()
	}
	if config.Capacity <= 0 {
		return nil, fmt.Errorf("pool %s: capacity must be positive", name)
	}

	p := &Pool{name: name, config: config}

	pool, err := ants.NewPool(config.Capacity, buildAntsOptions(name, config)...)
	if err != nil {
		return nil, fmt.Errorf("创建 ants 池失败: %w", err)
	}
	p.pool = pool

	logger.Infow("Worker pool created",
		"name", name,
		"capacity", config.Capacity,
		"nonblocking", config.Nonblocking,
	)
	return p, nil
}

func buildAntsOptions(name string, config *Config) []ants.Option {
	opts := []ants.Option{
		ants.WithExpiryDuration(config.ExpiryDuration),
		ants.WithPreAlloc(config.PreAlloc),
		ants.WithNonblocking(config.Nonblocking),
		ants.WithMaxBlockingTasks(config.MaxBlockingTasks),
	}

	if config.PanicHandler != nil {
		opts = append(opts, ants.WithPanicHandler(config.PanicHandler))
	} else {
		opts = append(opts, ants.WithPanicHandler(func(p interface{}) {
			logger.Errorw("Worker panic recovered", "pool", name, "panic", p)
		}))
	}
	return opts
}

// Name 返回池名称
func (p *Pool) Name() string {
	return p.name
}

// Cap 返回池容量
func (p *Pool) Cap() int {
	return p.pool.Cap()
}

// Running 返回正在运行的 goroutine 数量
func (p *Pool) Running() int {
	return p.pool.Running()
}

// Submit 提交任务到池中执行
func (p *Pool) Submit(task func()) error {
	if p.closed.Load() {
		return ErrPoolClosed
	}

	err := p.pool.Submit(func() {
		defer func() {
			if r := recover(); r != nil {
				p.stats.panics.Add(1)
				panic(r)
			}
			p.stats.completed.Add(1)
		}()
		task()
	})
	if err != nil {
		if errors.Is(err, ants.ErrPoolOverload) {
			p.stats.rejected.Add(1)
			return ErrPoolOverload
		}
		if errors.Is(err, ants.ErrPoolClosed) {
			return ErrPoolClosed
		}
		return err
	}
	p.stats.submitted.Add(1)
	return nil
}

// SubmitWithContext 提交带上下文的任务，任务开始前上下文已取消则跳过。
func (p *Pool) SubmitWithContext(ctx context.Context, task func()) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return p.Submit(func() {
		if ctx.Err() != nil {
			return
		}
		task()
	})
}

// Release 关闭池并释放资源
func (p *Pool) Release() {
	p.closedMu.Lock()
	defer p.closedMu.Unlock()

	if p.closed.Swap(true) {
		return
	}
	p.pool.Release()
	logger.Infow("Worker pool released", "name", p.name)
}

// ReleaseTimeout 等待运行中的任务完成，直到超时
func (p *Pool) ReleaseTimeout(timeout time.Duration) error {
	p.closedMu.Lock()
	defer p.closedMu.Unlock()

	if p.closed.Swap(true) {
		return nil
	}
	return p.pool.ReleaseTimeout(timeout)
}

// Stats 返回池统计信息快照
func (p *Pool) Stats() Stats {
	return Stats{
		Name:      p.name,
		Capacity:  p.pool.Cap(),
		Running:   p.pool.Running(),
		Waiting:   p.pool.Waiting(),
		Submitted: p.stats.submitted.Load(),
		Completed: p.stats.completed.Load(),
		Rejected:  p.stats.rejected.Load(),
		Panics:    p.stats.panics.Load(),
	}
}
