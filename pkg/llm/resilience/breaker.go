// Package resilience 提供外部模型调用的熔断保护。
//
// 标注等可降级的调用在连续失败后直接走降级路径，避免每个文档都等待超时。
package resilience

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/kart-io/logger"
)

// BreakerConfig 熔断器配置。
type BreakerConfig struct {
	// Name 用于日志标识。
	Name string
	// MaxFailures 触发熔断的连续失败次数。
	MaxFailures int
	// OpenTimeout 熔断器打开后进入半开前的等待时间。
	OpenTimeout time.Duration
	// HalfOpenMaxCalls 半开状态允许的探测调用数。
	HalfOpenMaxCalls int
}

// DefaultBreakerConfig 返回默认配置。
func DefaultBreakerConfig(name string) BreakerConfig {
	return BreakerConfig{
		Name:             name,
		MaxFailures:      5,
		OpenTimeout:      60 * time.Second,
		HalfOpenMaxCalls: 1,
	}
}

// State 熔断器状态。
type State int

const (
	// StateClosed 熔断器关闭，正常工作。
	StateClosed State = iota
	// StateOpen 熔断器打开，拒绝所有请求。
	StateOpen
	// StateHalfOpen 熔断器半开，允许部分请求探测。
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// ErrOpen 熔断器打开时返回。
var ErrOpen = errors.New("circuit breaker is open")

// Stats 熔断器统计。
type Stats struct {
	State    string `json:"state"`
	Failures int    `json:"failures"`
	Rejected int64  `json:"rejected"`
}

// Breaker 熔断器。
type Breaker struct {
	config BreakerConfig
	now    func() time.Time

	mu                sync.Mutex
	state             State
	failures          int
	openedAt          time.Time
	halfOpenCalls     int
	halfOpenSuccesses int
	rejected          int64
}

// NewBreaker 创建熔断器。
func NewBreaker(config BreakerConfig) *Breaker {
	def := DefaultBreakerConfig(config.Name)
	if config.MaxFailures <= 0 {
		config.MaxFailures = def.MaxFailures
	}
	if config.OpenTimeout <= 0 {
		config.OpenTimeout = def.OpenTimeout
	}
	if config.HalfOpenMaxCalls <= 0 {
		config.HalfOpenMaxCalls = def.HalfOpenMaxCalls
	}
	return &Breaker{config: config, now: time.Now}
}

// Do 通过熔断器执行 fn。ctx 已取消时不计为失败。
func (b *Breaker) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := b.before(); err != nil {
		return err
	}

	err := fn(ctx)
	if err != nil && ctx.Err() != nil {
		b.release()
		return err
	}
	b.after(err)
	return err
}

func (b *Breaker) before() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed:
		return nil
	case StateOpen:
		if b.now().Sub(b.openedAt) < b.config.OpenTimeout {
			b.rejected++
			return ErrOpen
		}
		logger.Infow("circuit breaker transitioning to half-open", "breaker", b.config.Name)
		b.state = StateHalfOpen
		b.halfOpenCalls = 0
		b.halfOpenSuccesses = 0
		fallthrough
	case StateHalfOpen:
		if b.halfOpenCalls >= b.config.HalfOpenMaxCalls {
			b.rejected++
			return ErrOpen
		}
		b.halfOpenCalls++
		return nil
	}
	return ErrOpen
}

// release 归还半开状态下被取消的探测名额。
func (b *Breaker) release() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == StateHalfOpen && b.halfOpenCalls > 0 {
		b.halfOpenCalls--
	}
}

func (b *Breaker) after(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err == nil {
		switch b.state {
		case StateClosed:
			b.failures = 0
		case StateHalfOpen:
			b.halfOpenSuccesses++
			if b.halfOpenSuccesses >= b.halfOpenCalls {
				logger.Infow("circuit breaker transitioning to closed", "breaker", b.config.Name)
				b.state = StateClosed
				b.failures = 0
			}
		}
		return
	}

	b.failures++
	switch b.state {
	case StateClosed:
		if b.failures >= b.config.MaxFailures {
			logger.Warnw("circuit breaker opening",
				"breaker", b.config.Name,
				"failures", b.failures,
				"max_failures", b.config.MaxFailures,
			)
			b.state = StateOpen
			b.openedAt = b.now()
		}
	case StateHalfOpen:
		logger.Warnw("circuit breaker re-opening after half-open failure", "breaker", b.config.Name)
		b.state = StateOpen
		b.openedAt = b.now()
	}
}

// State 返回当前状态。
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Stats 返回统计快照。
func (b *Breaker) Stats() Stats {
	b.mu.Lock()
	defer b.mu.Unlock()
	return Stats{State: b.state.String(), Failures: b.failures, Rejected: b.rejected}
}
