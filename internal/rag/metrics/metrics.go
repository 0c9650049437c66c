// Package metrics 提供 RAG 服务的业务指标收集。
package metrics

import (
	"time"

	"github.com/kart-io/quizmind/pkg/observability/metrics"
)

const namespace = "quizmind_rag"

// RAGMetrics RAG 服务业务指标。所有方法对 nil 接收者安全。
type RAGMetrics struct {
	registry *metrics.Registry

	retrievals        metrics.CounterVec // result=ok|error
	retrievalDuration metrics.Histogram
	strategies        metrics.CounterVec // strategy=vector|lexical

	ingests          metrics.CounterVec // status=ready|failed
	ingestsInFlight  metrics.Gauge
	ingestDuration   metrics.Histogram
	chunksIndexed    metrics.Counter
	clusterFallbacks metrics.Counter
	labelFallbacks   metrics.Counter

	startTime time.Time
}

// New 创建指标集合并注册到独立的 Registry。
func New() *RAGMetrics {
	m := &RAGMetrics{
		registry:          metrics.NewRegistry(),
		retrievals:        metrics.NewCounterVec(namespace+"_retrievals_total", "Number of retrieval requests."),
		retrievalDuration: metrics.NewHistogram(namespace+"_retrieval_duration_seconds", "Retrieval latency.", nil),
		strategies:        metrics.NewCounterVec(namespace+"_scored_chunks_total", "Returned chunks by scoring strategy."),
		ingests:           metrics.NewCounterVec(namespace+"_ingests_total", "Ingestion runs by final status."),
		ingestsInFlight:   metrics.NewGauge(namespace+"_ingests_in_flight", "Ingestion runs currently executing."),
		ingestDuration:    metrics.NewHistogram(namespace+"_ingest_duration_seconds", "Ingestion run latency.", []float64{0.5, 1, 5, 15, 30, 60, 120, 300}),
		chunksIndexed:     metrics.NewCounter(namespace+"_chunks_indexed_total", "Chunks persisted to the vector store."),
		clusterFallbacks:  metrics.NewCounter(namespace+"_cluster_fallbacks_total", "Clustering runs that used sequential windows."),
		labelFallbacks:    metrics.NewCounter(namespace+"_label_fallbacks_total", "Labeling calls replaced by fallback names."),
		startTime:         time.Now(),
	}

	m.registry.MustRegister(
		m.retrievals, m.retrievalDuration, m.strategies,
		m.ingests, m.ingestsInFlight, m.ingestDuration, m.chunksIndexed,
		m.clusterFallbacks, m.labelFallbacks,
	)
	return m
}

// RecordRetrieval 记录检索请求。
func (m *RAGMetrics) RecordRetrieval(duration time.Duration, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.retrievals.With(map[string]string{"result": result}).Inc()
	m.retrievalDuration.Observe(duration.Seconds())
}

// RecordStrategy 记录返回的文档块使用的评分策略。
func (m *RAGMetrics) RecordStrategy(strategy string) {
	if m == nil {
		return
	}
	m.strategies.With(map[string]string{"strategy": strategy}).Inc()
}

// IngestStarted 标记一次摄取开始，须与 RecordIngest 成对调用。
func (m *RAGMetrics) IngestStarted() {
	if m == nil {
		return
	}
	m.ingestsInFlight.Inc()
}

// RecordIngest 记录一次摄取运行结束。
func (m *RAGMetrics) RecordIngest(duration time.Duration, chunks int, err error) {
	if m == nil {
		return
	}
	m.ingestsInFlight.Dec()
	status := "ready"
	if err != nil {
		status = "failed"
	}
	m.ingests.With(map[string]string{"status": status}).Inc()
	m.ingestDuration.Observe(duration.Seconds())
	if err == nil && chunks > 0 {
		m.chunksIndexed.Add(float64(chunks))
	}
}

// RecordClusterFallback 记录聚类退化回退。
func (m *RAGMetrics) RecordClusterFallback() {
	if m == nil {
		return
	}
	m.clusterFallbacks.Inc()
}

// RecordLabelFallback 记录标注降级。
func (m *RAGMetrics) RecordLabelFallback() {
	if m == nil {
		return
	}
	m.labelFallbacks.Inc()
}

// Stats 返回指标快照。
func (m *RAGMetrics) Stats() map[string]any {
	if m == nil {
		return map[string]any{}
	}

	count := func(v metrics.CounterVec, key, value string) uint64 {
		return uint64(v.With(map[string]string{key: value}).Get())
	}

	return map[string]any{
		"retrieval": map[string]any{
			"ok":     count(m.retrievals, "result", "ok"),
			"errors": count(m.retrievals, "result", "error"),
			"strategies": map[string]any{
				"vector":  count(m.strategies, "strategy", "vector"),
				"lexical": count(m.strategies, "strategy", "lexical"),
			},
		},
		"indexing": map[string]any{
			"in_flight":         int(m.ingestsInFlight.Get()),
			"ready":             count(m.ingests, "status", "ready"),
			"failed":            count(m.ingests, "status", "failed"),
			"chunks_indexed":    uint64(m.chunksIndexed.Get()),
			"cluster_fallbacks": uint64(m.clusterFallbacks.Get()),
			"label_fallbacks":   uint64(m.labelFallbacks.Get()),
		},
		"uptime_seconds": time.Since(m.startTime).Seconds(),
	}
}

// Export 导出 Prometheus 文本格式指标。
func (m *RAGMetrics) Export() string {
	if m == nil {
		return ""
	}
	return m.registry.Export()
}
