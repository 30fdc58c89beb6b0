// Package metrics is a small Prometheus-text metrics collector. One Collector
// is built by the host and handed to the components that record into it.
package metrics

import (
	"fmt"
	"math"
	"net/http"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// Collector aggregates counters, gauges and histograms. A nil *Collector is
// valid and records nothing.
type Collector struct {
	namespace  string
	counters   sync.Map // key -> *Counter
	gauges     sync.Map // key -> *Gauge
	histograms sync.Map // key -> *Histogram
	startTime  time.Time
}

// New creates a collector whose metric names are prefixed with namespace.
func New(namespace string) *Collector {
	return &Collector{namespace: namespace, startTime: time.Now()}
}

// Uptime returns how long the collector has been running.
func (c *Collector) Uptime() time.Duration {
	return time.Since(c.startTime)
}

// Counter is a monotonically increasing counter.
type Counter struct {
	name   string
	help   string
	labels string
	value  atomic.Int64
}

func (c *Counter) Inc()         { c.value.Add(1) }
func (c *Counter) Add(n int64)  { c.value.Add(n) }
func (c *Counter) Value() int64 { return c.value.Load() }

// Gauge is a value that can go up and down.
type Gauge struct {
	name   string
	help   string
	labels string
	value  atomic.Int64
}

func (g *Gauge) Set(v int64)  { g.value.Store(v) }
func (g *Gauge) Inc()         { g.value.Add(1) }
func (g *Gauge) Dec()         { g.value.Add(-1) }
func (g *Gauge) Value() int64 { return g.value.Load() }

// Histogram tracks the distribution of values.
type Histogram struct {
	name    string
	help    string
	labels  string
	mu      sync.Mutex
	count   int64
	sum     float64
	buckets []histBucket
}

type histBucket struct {
	le    float64
	count int64
}

// Observe records a value in the histogram.
func (h *Histogram) Observe(v float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.count++
	h.sum += v
	for i := range h.buckets {
		if v <= h.buckets[i].le {
			h.buckets[i].count++
		}
	}
}

// Count returns the number of observations.
func (h *Histogram) Count() int64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.count
}

// --- Registration helpers ---

func (c *Collector) fullName(name string) string {
	if c.namespace == "" {
		return name
	}
	return c.namespace + "_" + name
}

// Counter returns or creates a counter.
func (c *Collector) Counter(name, help, labels string) *Counter {
	name = c.fullName(name)
	key := name + "{" + labels + "}"
	if v, ok := c.counters.Load(key); ok {
		return v.(*Counter)
	}
	actual, _ := c.counters.LoadOrStore(key, &Counter{name: name, help: help, labels: labels})
	return actual.(*Counter)
}

// Gauge returns or creates a gauge.
func (c *Collector) Gauge(name, help, labels string) *Gauge {
	name = c.fullName(name)
	key := name + "{" + labels + "}"
	if v, ok := c.gauges.Load(key); ok {
		return v.(*Gauge)
	}
	actual, _ := c.gauges.LoadOrStore(key, &Gauge{name: name, help: help, labels: labels})
	return actual.(*Gauge)
}

// Histogram returns or creates a histogram.
func (c *Collector) Histogram(name, help, labels string, buckets []float64) *Histogram {
	name = c.fullName(name)
	key := name + "{" + labels + "}"
	if v, ok := c.histograms.Load(key); ok {
		return v.(*Histogram)
	}
	b := append([]float64(nil), buckets...)
	sort.Float64s(b)
	hb := make([]histBucket, len(b))
	for i, le := range b {
		hb[i] = histBucket{le: le}
	}
	actual, _ := c.histograms.LoadOrStore(key, &Histogram{name: name, help: help, labels: labels, buckets: hb})
	return actual.(*Histogram)
}

// --- Prometheus text rendering ---

func sortedValues[T any](m *sync.Map) []T {
	var keys []string
	vals := map[string]T{}
	m.Range(func(k, v any) bool {
		keys = append(keys, k.(string))
		vals[k.(string)] = v.(T)
		return true
	})
	sort.Strings(keys)
	out := make([]T, len(keys))
	for i, k := range keys {
		out[i] = vals[k]
	}
	return out
}

func writeSample(sb *strings.Builder, name, labels string, value any) {
	if labels != "" {
		fmt.Fprintf(sb, "%s{%s} %v\n", name, labels, value)
	} else {
		fmt.Fprintf(sb, "%s %v\n", name, value)
	}
}

// Render returns the metrics in Prometheus text format.
func (c *Collector) Render() string {
	var sb strings.Builder
	uptime := c.fullName("uptime_seconds")
	fmt.Fprintf(&sb, "# HELP %s Time since start in seconds\n", uptime)
	fmt.Fprintf(&sb, "# TYPE %s gauge\n", uptime)
	fmt.Fprintf(&sb, "%s %d\n\n", uptime, int64(c.Uptime().Seconds()))

	helpWritten := make(map[string]bool)
	for _, ctr := range sortedValues[*Counter](&c.counters) {
		if !helpWritten[ctr.name] {
			fmt.Fprintf(&sb, "# HELP %s %s\n# TYPE %s counter\n", ctr.name, ctr.help, ctr.name)
			helpWritten[ctr.name] = true
		}
		writeSample(&sb, ctr.name, ctr.labels, ctr.Value())
	}
	for _, g := range sortedValues[*Gauge](&c.gauges) {
		if !helpWritten[g.name] {
			fmt.Fprintf(&sb, "# HELP %s %s\n# TYPE %s gauge\n", g.name, g.help, g.name)
			helpWritten[g.name] = true
		}
		writeSample(&sb, g.name, g.labels, g.Value())
	}
	for _, h := range sortedValues[*Histogram](&c.histograms) {
		h.mu.Lock()
		if !helpWritten[h.name] {
			fmt.Fprintf(&sb, "# HELP %s %s\n# TYPE %s histogram\n", h.name, h.help, h.name)
			helpWritten[h.name] = true
		}
		prefix := h.name + "_bucket{"
		if h.labels != "" {
			prefix += h.labels + ","
		}
		for _, b := range h.buckets {
			le := fmt.Sprintf("%g", b.le)
			if math.IsInf(b.le, 1) {
				le = "+Inf"
			}
			fmt.Fprintf(&sb, "%sle=\"%s\"} %d\n", prefix, le, b.count)
		}
		writeSample(&sb, h.name+"_count", h.labels, h.count)
		writeSample(&sb, h.name+"_sum", h.labels, fmt.Sprintf("%f", h.sum))
		h.mu.Unlock()
	}
	return sb.String()
}

// Handler serves Render over HTTP.
func (c *Collector) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
		fmt.Fprint(w, c.Render())
	}
}
