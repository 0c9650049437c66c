// Package metrics is a small in-process metrics library that renders the
// Prometheus text exposition format.
package metrics

// MetricType represents the type of metric.
type MetricType string

// Metric type constants define the supported metric types.
const (
	TypeCounter   MetricType = "counter"
	TypeGauge     MetricType = "gauge"
	TypeHistogram MetricType = "histogram"
)

// Metric is the base interface for all metrics.
type Metric interface {
	Name() string
	Help() string
	Type() MetricType
	// Describe returns the metric in Prometheus text format.
	Describe() string
}

// Counter only goes up.
type Counter interface {
	Metric
	Inc()
	Add(float64)
	Get() float64
}

// Gauge can go up and down.
type Gauge interface {
	Metric
	Set(float64)
	Inc()
	Dec()
	Add(float64)
	Get() float64
}

// Histogram counts observations in cumulative buckets.
type Histogram interface {
	Metric
	Observe(float64)
	Count() uint64
	Sum() float64
}

// CounterVec is a family of counters sharing a name and differing by labels.
type CounterVec interface {
	Metric
	// With returns the counter for the label set, creating it on first use.
	With(labels map[string]string) Counter
}
