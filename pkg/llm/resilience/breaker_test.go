package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errTest = errors.New("test error")

func fail(context.Context) error    { return errTest }
func succeed(context.Context) error { return nil }

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestBreaker(maxFailures int) (*Breaker, *fakeClock) {
	clock := &fakeClock{t: time.Unix(1000, 0)}
	b := NewBreaker(BreakerConfig{Name: "test", MaxFailures: maxFailures, OpenTimeout: time.Minute})
	b.now = clock.now
	return b, clock
}

func TestBreaker_ClosedState(t *testing.T) {
	b, _ := newTestBreaker(3)
	require.NoError(t, b.Do(context.Background(), succeed))
	assert.Equal(t, StateClosed, b.State())
}

func TestBreaker_OpenOnMaxFailures(t *testing.T) {
	b, _ := newTestBreaker(3)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		assert.ErrorIs(t, b.Do(ctx, fail), errTest)
	}
	assert.Equal(t, StateOpen, b.State())

	called := false
	err := b.Do(ctx, func(context.Context) error { called = true; return nil })
	assert.ErrorIs(t, err, ErrOpen)
	assert.False(t, called)
	assert.Equal(t, int64(1), b.Stats().Rejected)
}

func TestBreaker_SuccessResetsFailures(t *testing.T) {
	b, _ := newTestBreaker(2)
	ctx := context.Background()

	_ = b.Do(ctx, fail)
	require.NoError(t, b.Do(ctx, succeed))
	_ = b.Do(ctx, fail)
	assert.Equal(t, StateClosed, b.State())
}

func TestBreaker_HalfOpen(t *testing.T) {
	tests := []struct {
		name  string
		probe func(context.Context) error
		want  State
	}{
		{"探测成功关闭熔断器", succeed, StateClosed},
		{"探测失败重新打开", fail, StateOpen},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, clock := newTestBreaker(2)
			ctx := context.Background()
			_ = b.Do(ctx, fail)
			_ = b.Do(ctx, fail)
			require.Equal(t, StateOpen, b.State())

			clock.advance(2 * time.Minute)
			_ = b.Do(ctx, tt.probe)
			assert.Equal(t, tt.want, b.State())
		})
	}
}

func TestBreaker_CanceledNotCounted(t *testing.T) {
	b, _ := newTestBreaker(1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := b.Do(ctx, func(ctx context.Context) error { return ctx.Err() })
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, StateClosed, b.State())
}

func TestNewBreaker_Defaults(t *testing.T) {
	b := NewBreaker(BreakerConfig{Name: "labeler"})
	assert.Equal(t, 5, b.config.MaxFailures)
	assert.Equal(t, 60*time.Second, b.config.OpenTimeout)
	assert.Equal(t, 1, b.config.HalfOpenMaxCalls)
}
