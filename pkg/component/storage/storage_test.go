package storage

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockClient struct {
	name     string
	pingErr  error
	closeErr error
	closed   *[]string
}

func (m *mockClient) Name() string               { return m.name }
func (m *mockClient) Ping(context.Context) error { return m.pingErr }
func (m *mockClient) Close() error {
	if m.closed != nil {
		*m.closed = append(*m.closed, m.name)
	}
	return m.closeErr
}

func TestManager_Register(t *testing.T) {
	m := NewManager()
	require.NoError(t, m.Register(&mockClient{name: "milvus"}))
	require.NoError(t, m.Register(&mockClient{name: "redis"}))

	err := m.Register(&mockClient{name: "redis"})
	assert.ErrorIs(t, err, ErrClientExists)
	assert.Error(t, m.Register(nil))
	assert.Equal(t, []string{"milvus", "redis"}, m.Names())
}

func TestManager_HealthCheckAll(t *testing.T) {
	tests := []struct {
		name        string
		clients     []*mockClient
		wantHealthy bool
	}{
		{
			name:        "全部健康",
			clients:     []*mockClient{{name: "redis"}, {name: "database"}},
			wantHealthy: true,
		},
		{
			name:        "部分不健康",
			clients:     []*mockClient{{name: "redis", pingErr: errors.New("connection refused")}, {name: "database"}},
			wantHealthy: false,
		},
		{
			name:        "无客户端",
			wantHealthy: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewManager()
			for _, c := range tt.clients {
				require.NoError(t, m.Register(c))
			}

			statuses := m.HealthCheckAll(context.Background())
			assert.Len(t, statuses, len(tt.clients))
			for i := 1; i < len(statuses); i++ {
				assert.Less(t, statuses[i-1].Name, statuses[i].Name)
			}
			assert.Equal(t, tt.wantHealthy, m.AllHealthy(context.Background()))
		})
	}
}

func TestManager_CloseAllReverseOrder(t *testing.T) {
	var closed []string
	m := NewManager()
	require.NoError(t, m.Register(&mockClient{name: "database", closed: &closed}))
	require.NoError(t, m.Register(&mockClient{name: "milvus", closed: &closed, closeErr: errors.New("boom")}))
	require.NoError(t, m.Register(&mockClient{name: "redis", closed: &closed}))

	err := m.CloseAll()
	assert.ErrorContains(t, err, "milvus")
	assert.Equal(t, []string{"redis", "milvus", "database"}, closed)
	assert.Empty(t, m.Names())
}
