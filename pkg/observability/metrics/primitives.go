package metrics

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
)

// DefBuckets are latency buckets in seconds.
var DefBuckets = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10}

type baseMetric struct {
	name string
	help string
	typ  MetricType
}

func (m *baseMetric) Name() string     { return m.name }
func (m *baseMetric) Help() string     { return m.help }
func (m *baseMetric) Type() MetricType { return m.typ }

func (m *baseMetric) writeHeader(sb *strings.Builder) {
	fmt.Fprintf(sb, "# HELP %s %s\n", m.name, m.help)
	fmt.Fprintf(sb, "# TYPE %s %s\n", m.name, m.typ)
}

// atomicFloat stores float64 bits in a uint64.
type atomicFloat struct {
	bits atomic.Uint64
}

func (f *atomicFloat) add(v float64) {
	for {
		old := f.bits.Load()
		next := math.Float64bits(math.Float64frombits(old) + v)
		if f.bits.CompareAndSwap(old, next) {
			return
		}
	}
}

func (f *atomicFloat) set(v float64) { f.bits.Store(math.Float64bits(v)) }
func (f *atomicFloat) get() float64  { return math.Float64frombits(f.bits.Load()) }

func formatValue(v float64) string {
	return strconv.FormatFloat(v, 'f', 6, 64)
}

// formatLabels renders {k="v",...} sorted by key; empty labels render as "".
func formatLabels(labels map[string]string) string {
	if len(labels) == 0 {
		return ""
	}
	pairs := make([]string, 0, len(labels))
	for k, v := range labels {
		pairs = append(pairs, fmt.Sprintf("%s=%q", k, v))
	}
	sort.Strings(pairs)
	return "{" + strings.Join(pairs, ",") + "}"
}

// --- Counter ---

type counter struct {
	baseMetric
	labels string
	val    atomicFloat
}

// NewCounter creates a new Counter metric with the given name and help text.
func NewCounter(name, help string) Counter {
	return &counter{baseMetric: baseMetric{name: name, help: help, typ: TypeCounter}}
}

func (c *counter) Inc() { c.Add(1) }

// Add ignores negative values.
func (c *counter) Add(v float64) {
	if v < 0 {
		return
	}
	c.val.add(v)
}

func (c *counter) Get() float64 { return c.val.get() }

func (c *counter) sample() string {
	return c.name + c.labels + " " + formatValue(c.Get()) + "\n"
}

func (c *counter) Describe() string {
	var sb strings.Builder
	c.writeHeader(&sb)
	sb.WriteString(c.sample())
	return sb.String()
}

// --- Gauge ---

type gauge struct {
	baseMetric
	val atomicFloat
}

// NewGauge creates a new Gauge metric with the given name and help text.
func NewGauge(name, help string) Gauge {
	return &gauge{baseMetric: baseMetric{name: name, help: help, typ: TypeGauge}}
}

func (g *gauge) Set(v float64) { g.val.set(v) }
func (g *gauge) Inc()          { g.val.add(1) }
func (g *gauge) Dec()          { g.val.add(-1) }
func (g *gauge) Add(v float64) { g.val.add(v) }
func (g *gauge) Get() float64  { return g.val.get() }

func (g *gauge) Describe() string {
	var sb strings.Builder
	g.writeHeader(&sb)
	sb.WriteString(g.name + " " + formatValue(g.Get()) + "\n")
	return sb.String()
}

// --- Histogram ---

type histogram struct {
	baseMetric
	buckets []float64

	mu     sync.RWMutex
	counts []uint64
	count  uint64
	sum    float64
}

// NewHistogram creates a histogram. nil buckets mean DefBuckets; the slice is
// copied and sorted.
func NewHistogram(name, help string, buckets []float64) Histogram {
	if len(buckets) == 0 {
		buckets = DefBuckets
	}
	sorted := append([]float64(nil), buckets...)
	sort.Float64s(sorted)
	return &histogram{
		baseMetric: baseMetric{name: name, help: help, typ: TypeHistogram},
		buckets:    sorted,
		counts:     make([]uint64, len(sorted)),
	}
}

func (h *histogram) Observe(v float64) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.count++
	h.sum += v
	for i, bound := range h.buckets {
		if v <= bound {
			h.counts[i]++
		}
	}
}

func (h *histogram) Count() uint64 {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.count
}

func (h *histogram) Sum() float64 {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.sum
}

func (h *histogram) Describe() string {
	var sb strings.Builder
	h.writeHeader(&sb)

	h.mu.RLock()
	defer h.mu.RUnlock()

	for i, bound := range h.buckets {
		fmt.Fprintf(&sb, "%s_bucket{le=\"%s\"} %d\n", h.name, strconv.FormatFloat(bound, 'g', 6, 64), h.counts[i])
	}
	fmt.Fprintf(&sb, "%s_bucket{le=\"+Inf\"} %d\n", h.name, h.count)
	fmt.Fprintf(&sb, "%s_sum %s\n", h.name, formatValue(h.sum))
	fmt.Fprintf(&sb, "%s_count %d\n", h.name, h.count)
	return sb.String()
}

// --- CounterVec ---

type counterVec struct {
	baseMetric
	counters sync.Map // rendered label set -> *counter
}

// NewCounterVec creates a new CounterVec metric with the given name and help text.
func NewCounterVec(name, help string) CounterVec {
	return &counterVec{baseMetric: baseMetric{name: name, help: help, typ: TypeCounter}}
}

func (v *counterVec) With(labels map[string]string) Counter {
	key := formatLabels(labels)
	if c, ok := v.counters.Load(key); ok {
		return c.(*counter)
	}
	c := &counter{baseMetric: v.baseMetric, labels: key}
	actual, _ := v.counters.LoadOrStore(key, c)
	return actual.(*counter)
}

func (v *counterVec) Describe() string {
	var sb strings.Builder
	v.writeHeader(&sb)

	var keys []string
	v.counters.Range(func(key, _ any) bool {
		keys = append(keys, key.(string))
		return true
	})
	sort.Strings(keys)

	for _, key := range keys {
		if c, ok := v.counters.Load(key); ok {
			sb.WriteString(c.(*counter).sample())
		}
	}
	return sb.String()
}
