package biz

import (
	"math"
	"sort"

	"github.com/kart-io/logger"

	"github.com/kart-io/quizmind/internal/model"
	"github.com/kart-io/quizmind/internal/pkg/rag/textutil"
)

// identicalSimilarity 视为同一向量的相似度下限，阈值为 1.0 时仍保证合并。
const identicalSimilarity = 1 - 1e-6

// ClusterConfig 聚类配置。
type ClusterConfig struct {
	// Threshold 合并所需的余弦相似度下限（严格大于）。
	Threshold float64
	// TargetClusters 退化回退时的目标簇数。
	TargetClusters int
	// MinWindow 退化回退时的最小窗口大小。
	MinWindow int
	// MaxSelected 多样化选择的簇数上限。
	MaxSelected int
	// KeepTop 无条件保留的最重要簇数。
	KeepTop int
}

// DefaultClusterConfig 返回默认聚类配置。
func DefaultClusterConfig() ClusterConfig {
	return ClusterConfig{
		Threshold:      0.60,
		TargetClusters: 8,
		MinWindow:      5,
		MaxSelected:    10,
		KeepTop:        3,
	}
}

// ClusterEngine 贪心单链接聚类器。
type ClusterEngine struct {
	config ClusterConfig
}

// NewClusterEngine 创建聚类器，非法字段使用默认值。
func NewClusterEngine(config ClusterConfig) *ClusterEngine {
	def := DefaultClusterConfig()
	if config.Threshold <= 0 || config.Threshold > 1 {
		config.Threshold = def.Threshold
	}
	if config.TargetClusters <= 0 {
		config.TargetClusters = def.TargetClusters
	}
	if config.MinWindow <= 0 {
		config.MinWindow = def.MinWindow
	}
	if config.MaxSelected <= 0 {
		config.MaxSelected = def.MaxSelected
	}
	if config.KeepTop <= 0 || config.KeepTop >= config.MaxSelected {
		config.KeepTop = min(def.KeepTop, config.MaxSelected-1)
	}
	return &ClusterEngine{config: config}
}

// Config 返回生效的配置。
func (e *ClusterEngine) Config() ClusterConfig {
	return e.config
}

// Cluster 对已嵌入的文档块聚类，结果按重要度降序。
// 自然簇数等于输入数（且输入多于一个）时改用顺序窗口分组。
func (e *ClusterEngine) Cluster(chunks []*model.Chunk) []*Cluster {
	n := len(chunks)
	if n == 0 {
		return nil
	}

	visited := make([]bool, n)
	var clusters []*Cluster
	for i := 0; i < n; i++ {
		if visited[i] {
			continue
		}
		visited[i] = true

		seed := chunks[i]
		c := &Cluster{Centroid: seed.Embedding, Members: []*model.Chunk{seed}}
		for j := i + 1; j < n; j++ {
			if visited[j] {
				continue
			}
			if e.similar(seed.Embedding, chunks[j].Embedding) {
				visited[j] = true
				c.Members = append(c.Members, chunks[j])
			}
		}
		c.Importance = len(c.Members)
		clusters = append(clusters, c)
	}

	if n > 1 && len(clusters) == n {
		logger.Infow("clustering degenerate, grouping chunks by sequential windows",
			"chunks", n,
			"threshold", e.config.Threshold,
		)
		clusters = e.windows(chunks)
	}

	sortByImportance(clusters)
	return clusters
}

func (e *ClusterEngine) similar(a, b []float32) bool {
	if !textutil.Comparable(a, b) {
		return false
	}
	sim := textutil.CosineSimilarity(a, b)
	return sim > e.config.Threshold || sim >= identicalSimilarity
}

// windows 按原始序号分组，窗口大小 max(MinWindow, ceil(n/TargetClusters))。
func (e *ClusterEngine) windows(chunks []*model.Chunk) []*Cluster {
	ordered := make([]*model.Chunk, len(chunks))
	copy(ordered, chunks)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Index < ordered[j].Index
	})

	size := max(e.config.MinWindow, int(math.Ceil(float64(len(ordered))/float64(e.config.TargetClusters))))

	var clusters []*Cluster
	for start := 0; start < len(ordered); start += size {
		end := min(start+size, len(ordered))
		members := ordered[start:end:end]
		clusters = append(clusters, &Cluster{
			Centroid:   members[0].Embedding,
			Members:    members,
			Importance: len(members),
			Fallback:   true,
		})
	}
	return clusters
}

// SelectDiverse 在簇数超过 MaxSelected 时选出覆盖全文的子集。
// 保留最重要的 KeepTop 个，其余按成员平均序号排序后等步长采样，最后恢复重要度顺序。
func (e *ClusterEngine) SelectDiverse(clusters []*Cluster) []*Cluster {
	if len(clusters) <= e.config.MaxSelected {
		return clusters
	}

	ranked := make([]*Cluster, len(clusters))
	copy(ranked, clusters)
	sortByImportance(ranked)

	selected := make([]*Cluster, 0, e.config.MaxSelected)
	selected = append(selected, ranked[:e.config.KeepTop]...)

	rest := make([]*Cluster, len(ranked)-e.config.KeepTop)
	copy(rest, ranked[e.config.KeepTop:])
	sort.SliceStable(rest, func(i, j int) bool {
		return rest[i].MeanIndex() < rest[j].MeanIndex()
	})

	want := e.config.MaxSelected - e.config.KeepTop
	stride := float64(len(rest)) / float64(want)
	for k := 0; k < want; k++ {
		selected = append(selected, rest[int(float64(k)*stride)])
	}

	order := make(map[*Cluster]int, len(ranked))
	for i, c := range ranked {
		order[c] = i
	}
	sort.SliceStable(selected, func(i, j int) bool {
		return order[selected[i]] < order[selected[j]]
	})
	return selected
}

func sortByImportance(clusters []*Cluster) {
	sort.SliceStable(clusters, func(i, j int) bool {
		return clusters[i].Importance > clusters[j].Importance
	})
}
