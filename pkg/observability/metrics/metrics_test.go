package metrics

import (
	"errors"
	"strings"
	"sync"
	"testing"
)

func TestCounter(t *testing.T) {
	c := NewCounter("test_counter", "Test counter")

	if c.Name() != "test_counter" {
		t.Errorf("expected name test_counter, got %s", c.Name())
	}
	if c.Type() != TypeCounter {
		t.Errorf("expected type counter, got %s", c.Type())
	}

	c.Inc()
	c.Add(5)
	c.Add(-3)
	if c.Get() != 6 {
		t.Errorf("expected value 6, got %.0f", c.Get())
	}
	if !strings.Contains(c.Describe(), "test_counter 6.000000") {
		t.Errorf("unexpected describe output: %s", c.Describe())
	}
}

func TestGauge(t *testing.T) {
	g := NewGauge("test_gauge", "Test gauge")

	g.Set(10)
	g.Inc()
	g.Dec()
	g.Dec()
	g.Add(-4)
	if g.Get() != 5 {
		t.Errorf("expected value 5, got %.0f", g.Get())
	}
	if !strings.Contains(g.Describe(), "# TYPE test_gauge gauge") {
		t.Errorf("expected gauge type line")
	}
}

func TestHistogram(t *testing.T) {
	buckets := []float64{10, 1, 5}
	h := NewHistogram("test_histogram", "Test histogram", buckets)

	h.Observe(2)
	h.Observe(7)
	h.Observe(12)

	desc := h.Describe()
	for _, want := range []string{
		`test_histogram_bucket{le="1"} 0`,
		`test_histogram_bucket{le="5"} 1`,
		`test_histogram_bucket{le="10"} 2`,
		`test_histogram_bucket{le="+Inf"} 3`,
		"test_histogram_sum 21.000000",
		"test_histogram_count 3",
	} {
		if !strings.Contains(desc, want) {
			t.Errorf("expected %q in output:\n%s", want, desc)
		}
	}
	if h.Count() != 3 || h.Sum() != 21 {
		t.Errorf("Count/Sum = %d/%.0f, want 3/21", h.Count(), h.Sum())
	}
	if buckets[0] != 10 {
		t.Errorf("caller's bucket slice was reordered: %v", buckets)
	}
}

func TestHistogram_DefaultBuckets(t *testing.T) {
	h := NewHistogram("latency", "help", nil)
	h.Observe(0.2)
	if !strings.Contains(h.Describe(), `latency_bucket{le="0.25"} 1`) {
		t.Errorf("expected default buckets in output:\n%s", h.Describe())
	}
}

func TestCounterVec(t *testing.T) {
	cv := NewCounterVec("http_requests", "HTTP Requests")

	cv.With(map[string]string{"method": "GET"}).Inc()
	cv.With(map[string]string{"method": "POST", "code": "200"}).Add(2)
	cv.With(map[string]string{"method": "GET"}).Inc()

	out := cv.Describe()
	if !strings.Contains(out, `http_requests{method="GET"} 2.000000`) {
		t.Errorf("expected GET count 2:\n%s", out)
	}
	if !strings.Contains(out, `http_requests{code="200",method="POST"} 2.000000`) {
		t.Errorf("expected sorted labels for POST:\n%s", out)
	}
	if strings.Count(out, "# HELP") != 1 {
		t.Errorf("expected a single HELP line:\n%s", out)
	}
	if got := cv.With(map[string]string{"method": "GET"}).Get(); got != 2 {
		t.Errorf("With(GET).Get() = %.0f, want 2", got)
	}
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	a := NewCounter("b_counter", "help b")
	b := NewGauge("a_gauge", "help a")
	r.MustRegister(a, b)

	a.Inc()

	out := r.Export()
	if !strings.Contains(out, "# HELP b_counter help b") {
		t.Errorf("expected help text in output")
	}
	if strings.Index(out, "a_gauge") > strings.Index(out, "b_counter") {
		t.Errorf("expected metrics ordered by name:\n%s", out)
	}

	if err := r.Register(NewCounter("b_counter", "again")); !errors.Is(err, ErrDuplicateMetric) {
		t.Errorf("Register duplicate error = %v, want ErrDuplicateMetric", err)
	}

	r.Unregister("a_gauge")
	if strings.Contains(r.Export(), "a_gauge") {
		t.Errorf("expected a_gauge to be removed")
	}

	r.Reset()
	if r.Export() != "" {
		t.Errorf("expected empty output after reset")
	}
}

func TestConcurrentUpdates(t *testing.T) {
	c := NewCounter("c", "c")
	h := NewHistogram("h", "h", []float64{1})
	cv := NewCounterVec("v", "v")

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				c.Inc()
				h.Observe(0.5)
				cv.With(map[string]string{"k": "x"}).Inc()
			}
		}()
	}
	wg.Wait()

	if c.Get() != 800 || h.Count() != 800 || cv.With(map[string]string{"k": "x"}).Get() != 800 {
		t.Errorf("lost updates: counter=%.0f histogram=%d vec=%.0f",
			c.Get(), h.Count(), cv.With(map[string]string{"k": "x"}).Get())
	}
}
