package options

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewServerOptions_Valid(t *testing.T) {
	opts := NewServerOptions()
	require.NoError(t, opts.Complete())
	assert.NoError(t, opts.Validate())
	assert.Equal(t, "quizmind-rag", opts.TracingOptions.ServiceName)
}

func TestServerOptions_Flags(t *testing.T) {
	opts := NewServerOptions()
	fss := opts.Flags()

	assert.Equal(t, []string{
		"http", "log", "tracing", "database", "milvus", "redis",
		"embedding", "chat", "rag", "extractor", "pool",
	}, fss.Order)

	fs := fss.FlagSet("rag")
	require.NoError(t, fs.Parse([]string{"--rag.chunk-size=600"}))
	assert.Equal(t, 600, opts.RAGOptions.ChunkSize)
}

func TestServerOptions_ValidateAggregates(t *testing.T) {
	opts := NewServerOptions()
	opts.HTTPOptions.Addr = ""
	opts.RAGOptions.ChunkSize = 0

	err := opts.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "http.addr")
	assert.Contains(t, err.Error(), "rag.chunk-size")
}

func TestServerOptions_Config(t *testing.T) {
	opts := NewServerOptions()
	cfg, err := opts.Config()
	require.NoError(t, err)
	assert.Same(t, opts.RAGOptions, cfg.RAGOptions)
	assert.Same(t, opts.PoolOptions, cfg.PoolOptions)
}
