package redis

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	options "github.com/kart-io/quizmind/pkg/options/redis"
)

func TestNewWithContext_NilOptions(t *testing.T) {
	_, err := NewWithContext(context.Background(), nil)
	assert.Error(t, err)
}

func TestNewWithContext_Unreachable(t *testing.T) {
	opts := options.NewOptions()
	opts.Host = "127.0.0.1"
	opts.Port = 1
	opts.MaxRetries = 0
	opts.DialTimeout = 200 * time.Millisecond

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, err := NewWithContext(ctx, opts)
	assert.ErrorContains(t, err, "127.0.0.1:1")
}
