package biz

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/quizmind/internal/model"
	"github.com/kart-io/quizmind/internal/pkg/rag/textutil"
)

func TestNewClusterEngine_Defaults(t *testing.T) {
	tests := []struct {
		name string
		in   ClusterConfig
		want ClusterConfig
	}{
		{"零值使用默认配置", ClusterConfig{}, DefaultClusterConfig()},
		{
			"阈值超过 1 使用默认值",
			ClusterConfig{Threshold: 1.5, TargetClusters: 4, MinWindow: 2, MaxSelected: 6, KeepTop: 2},
			ClusterConfig{Threshold: 0.60, TargetClusters: 4, MinWindow: 2, MaxSelected: 6, KeepTop: 2},
		},
		{
			"KeepTop 不小于 MaxSelected 时收缩",
			ClusterConfig{Threshold: 0.8, TargetClusters: 4, MinWindow: 2, MaxSelected: 2, KeepTop: 5},
			ClusterConfig{Threshold: 0.8, TargetClusters: 4, MinWindow: 2, MaxSelected: 2, KeepTop: 1},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NewClusterEngine(tt.in).Config())
		})
	}
}

func TestClusterEngine_Partition(t *testing.T) {
	chunks := []*model.Chunk{
		vecChunk(0, 1, 0.1),
		vecChunk(1, 0.1, 1),
		vecChunk(2, 0.9, 0.2),
		vecChunk(3, 0.2, 0.9),
		vecChunk(4, 1, 0),
		vecChunk(5, 0, 1),
	}

	engine := NewClusterEngine(DefaultClusterConfig())
	clusters := engine.Cluster(chunks)
	require.Len(t, clusters, 2)

	seen := make(map[string]int)
	for _, c := range clusters {
		assert.False(t, c.Fallback)
		assert.Equal(t, len(c.Members), c.Importance)
		seed := c.Members[0]
		assert.Equal(t, seed.Embedding, c.Centroid)
		for _, m := range c.Members {
			seen[m.ID]++
			if m != seed {
				assert.Greater(t, textutil.CosineSimilarity(seed.Embedding, m.Embedding), engine.Config().Threshold)
			}
		}
	}

	// 每个文档块恰好属于一个簇
	assert.Len(t, seen, len(chunks))
	for id, n := range seen {
		assert.Equal(t, 1, n, id)
	}
}

func TestClusterEngine_IdenticalVectors(t *testing.T) {
	engine := NewClusterEngine(ClusterConfig{Threshold: 1.0})
	clusters := engine.Cluster([]*model.Chunk{
		vecChunk(0, 0.3, 0.4),
		vecChunk(1, 0.3, 0.4),
		vecChunk(2, 0.6, 0.8),
	})

	require.Len(t, clusters, 1)
	assert.Equal(t, 3, clusters[0].Importance)
	assert.False(t, clusters[0].Fallback)
}

func TestClusterEngine_DegenerateFallback(t *testing.T) {
	// 12 个两两正交的向量，自然簇数等于输入数
	chunks := make([]*model.Chunk, 12)
	for i := range chunks {
		v := make([]float32, 12)
		v[i] = 1
		chunks[len(chunks)-1-i] = vecChunk(i, v...)
	}

	clusters := NewClusterEngine(DefaultClusterConfig()).Cluster(chunks)

	// 窗口大小 max(5, ceil(12/8)) = 5
	require.Len(t, clusters, 3)
	assert.Equal(t, []int{5, 5, 2}, []int{clusters[0].Importance, clusters[1].Importance, clusters[2].Importance})

	next := 0
	for _, c := range clusters {
		assert.True(t, c.Fallback)
		for _, m := range c.Members {
			assert.Equal(t, next, m.Index, "窗口内按原始序号排列")
			next++
		}
	}
}

func TestClusterEngine_EdgeCases(t *testing.T) {
	engine := NewClusterEngine(DefaultClusterConfig())

	t.Run("空输入", func(t *testing.T) {
		assert.Nil(t, engine.Cluster(nil))
	})

	t.Run("单个文档块不触发回退", func(t *testing.T) {
		clusters := engine.Cluster([]*model.Chunk{vecChunk(0, 1, 0)})
		require.Len(t, clusters, 1)
		assert.False(t, clusters[0].Fallback)
	})

	t.Run("维度不同的向量不合并", func(t *testing.T) {
		clusters := engine.Cluster([]*model.Chunk{
			vecChunk(0, 1, 0),
			vecChunk(1, 1, 0, 0),
			vecChunk(2, 1, 0.01),
		})
		require.Len(t, clusters, 2)
		assert.Equal(t, 2, clusters[0].Importance)
	})
}

func TestClusterEngine_SelectDiverse(t *testing.T) {
	engine := NewClusterEngine(DefaultClusterConfig())

	build := func(n int) []*Cluster {
		clusters := make([]*Cluster, n)
		for i := range clusters {
			clusters[i] = &Cluster{
				Members:    []*model.Chunk{{ID: "c", Index: i * 10}},
				Importance: n - i,
			}
		}
		return clusters
	}

	t.Run("未超过上限原样返回", func(t *testing.T) {
		clusters := build(10)
		assert.Equal(t, clusters, engine.SelectDiverse(clusters))
	})

	t.Run("超过上限时保留最重要的簇并覆盖全文", func(t *testing.T) {
		clusters := build(30)
		selected := engine.SelectDiverse(clusters)
		require.Len(t, selected, 10)

		for i := 0; i < 3; i++ {
			assert.Same(t, clusters[i], selected[i])
		}
		for i := 1; i < len(selected); i++ {
			assert.GreaterOrEqual(t, selected[i-1].Importance, selected[i].Importance)
		}

		// 其余 7 个按位置等步长采样，最后一个来自文档后部
		last := selected[len(selected)-1]
		assert.Greater(t, last.MeanIndex(), 200.0)
	})

	t.Run("零值配置同样保留前 3 个簇", func(t *testing.T) {
		clusters := build(15)
		selected := NewClusterEngine(ClusterConfig{}).SelectDiverse(clusters)
		require.Len(t, selected, 10)

		importances := make([]int, len(selected))
		for i, c := range selected {
			importances[i] = c.Importance
		}
		assert.Equal(t, []int{15, 14, 13}, importances[:3])
	})
}

func TestCluster_MeanIndex(t *testing.T) {
	c := &Cluster{Members: []*model.Chunk{{Index: 1}, {Index: 2}, {Index: 6}}}
	assert.Equal(t, 3.0, c.MeanIndex())
	assert.Equal(t, 0.0, (&Cluster{}).MeanIndex())
}
