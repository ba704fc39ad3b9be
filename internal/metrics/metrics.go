// Package metrics provides in-process counters, gauges, and histograms
// for the rxoverlay daemon.
//
// The hook callback and the UI thread both record into these types, so
// counters and gauges are atomics and histograms take a short mutex.
// The registry renders a flat snapshot for the control channel and the
// shutdown log; there is no scrape endpoint.
package metrics

import (
	"slices"
	"sync"
	"sync/atomic"
	"time"
)

// desc carries the identity shared by every metric kind.
type desc struct {
	name string
	help string
}

// Name returns the full metric name, prefix included.
func (d desc) Name() string { return d.name }

// metric is what the registry stores: anything that can publish itself
// into a snapshot and zero itself.
type metric interface {
	collect(into map[string]any)
	reset()
}

// Counter is an event count that only moves up.
type Counter struct {
	desc
	v atomic.Uint64
}

// Inc adds 1 to the counter.
func (c *Counter) Inc() { c.v.Add(1) }

// Add adds n to the counter.
func (c *Counter) Add(n uint64) { c.v.Add(n) }

// Value returns the current count.
func (c *Counter) Value() uint64 { return c.v.Load() }

func (c *Counter) collect(into map[string]any) { into[c.name] = c.v.Load() }
func (c *Counter) reset()                      { c.v.Store(0) }

// Gauge is a value that can move in both directions.
type Gauge struct {
	desc
	v atomic.Int64
}

// Set sets the gauge to n.
func (g *Gauge) Set(n int64) { g.v.Store(n) }

// Inc raises the gauge by 1.
func (g *Gauge) Inc() { g.v.Add(1) }

// Dec lowers the gauge by 1.
func (g *Gauge) Dec() { g.v.Add(-1) }

// Value returns the current reading.
func (g *Gauge) Value() int64 { return g.v.Load() }

func (g *Gauge) collect(into map[string]any) { into[g.name] = g.v.Load() }
func (g *Gauge) reset()                      { g.v.Store(0) }

// UIBuckets cover the latencies of focus handoffs and injection calls,
// in seconds.
var UIBuckets = []float64{0.001, 0.002, 0.005, 0.01, 0.02, 0.05, 0.1, 0.25, 0.5, 1}

// Histogram tracks a distribution of values against fixed upper bounds.
// obs[i] holds observations in (bounds[i-1], bounds[i]]; the final slot
// is the +Inf bucket.
type Histogram struct {
	desc
	bounds []float64

	mu  sync.Mutex
	obs []uint64
	sum float64
	n   uint64
}

func newHistogram(name, help string, bounds []float64) *Histogram {
	if bounds == nil {
		bounds = UIBuckets
	}
	sorted := slices.Clone(bounds)
	slices.Sort(sorted)

	return &Histogram{
		desc:   desc{name: name, help: help},
		bounds: sorted,
		obs:    make([]uint64, len(sorted)+1),
	}
}

// Observe adds one sample to the distribution.
func (h *Histogram) Observe(v float64) {
	idx, _ := slices.BinarySearch(h.bounds, v)

	h.mu.Lock()
	h.sum += v
	h.n++
	h.obs[idx]++
	h.mu.Unlock()
}

// ObserveDuration records d, converted to seconds.
func (h *Histogram) ObserveDuration(d time.Duration) {
	h.Observe(d.Seconds())
}

// Timer returns a timer that records the elapsed duration when stopped.
func (h *Histogram) Timer() *HistogramTimer {
	return &HistogramTimer{h: h, begin: time.Now()}
}

func (h *Histogram) stats() (n uint64, sum float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.n, h.sum
}

// Count returns the number of observations.
func (h *Histogram) Count() uint64 {
	n, _ := h.stats()
	return n
}

// Sum returns the sum of observed values.
func (h *Histogram) Sum() float64 {
	_, sum := h.stats()
	return sum
}

// Mean returns the mean of observed values, or 0 with no observations.
func (h *Histogram) Mean() float64 {
	n, sum := h.stats()
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

func (h *Histogram) collect(into map[string]any) {
	n, sum := h.stats()
	mean := 0.0
	if n > 0 {
		mean = sum / float64(n)
	}
	into[h.name+"_count"] = n
	into[h.name+"_sum"] = sum
	into[h.name+"_mean"] = mean
}

func (h *Histogram) reset() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.sum, h.n = 0, 0
	clear(h.obs)
}

// HistogramTimer records a duration into its histogram when stopped.
type HistogramTimer struct {
	h     *Histogram
	begin time.Time
}

// Stop stops the timer and records the elapsed duration.
func (t *HistogramTimer) Stop() time.Duration {
	d := time.Since(t.begin)
	t.h.ObserveDuration(d)
	return d
}

// Registry holds registered metrics under a common name prefix.
// Registration is idempotent: re-registering a name returns the
// existing metric.
type Registry struct {
	prefix string

	mu     sync.RWMutex
	byName map[string]metric
}

// NewRegistry creates an empty Registry. prefix, when non-empty, is
// prepended to every metric name with an underscore.
func NewRegistry(prefix string) *Registry {
	return &Registry{
		prefix: prefix,
		byName: make(map[string]metric),
	}
}

func (r *Registry) qualified(name string) string {
	if r.prefix == "" {
		return name
	}
	return r.prefix + "_" + name
}

// register returns the metric stored under name, creating it with mk
// when absent or held by a different kind.
func register[M metric](r *Registry, name string, mk func(full string) M) M {
	r.mu.Lock()
	defer r.mu.Unlock()

	full := r.qualified(name)
	if got, ok := r.byName[full].(M); ok {
		return got
	}
	m := mk(full)
	r.byName[full] = m
	return m
}

// RegisterCounter registers a counter under name.
func (r *Registry) RegisterCounter(name, help string) *Counter {
	return register(r, name, func(full string) *Counter {
		return &Counter{desc: desc{name: full, help: help}}
	})
}

// RegisterGauge registers a gauge under name.
func (r *Registry) RegisterGauge(name, help string) *Gauge {
	return register(r, name, func(full string) *Gauge {
		return &Gauge{desc: desc{name: full, help: help}}
	})
}

// RegisterHistogram registers a histogram under name. A nil bounds
// slice selects UIBuckets.
func (r *Registry) RegisterHistogram(name, help string, bounds []float64) *Histogram {
	return register(r, name, func(full string) *Histogram {
		return newHistogram(full, help, bounds)
	})
}

// Snapshot returns a flat name-to-value view of all metrics.
// Histograms contribute _count, _sum, and _mean entries.
func (r *Registry) Snapshot() map[string]any {
	r.mu.RLock()
	defer r.mu.RUnlock()

	snap := make(map[string]any, len(r.byName))
	for _, m := range r.byName {
		m.collect(snap)
	}
	return snap
}

// Reset zeroes all registered metrics. Intended for tests.
func (r *Registry) Reset() {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, m := range r.byName {
		m.reset()
	}
}

var defaultRegistry atomic.Pointer[Registry]

// Default returns the process-wide registry, creating it on first use.
func Default() *Registry {
	if r := defaultRegistry.Load(); r != nil {
		return r
	}
	r := NewRegistry("rxoverlay")
	if defaultRegistry.CompareAndSwap(nil, r) {
		return r
	}
	return defaultRegistry.Load()
}

// SetDefault replaces the process-wide registry.
func SetDefault(r *Registry) {
	defaultRegistry.Store(r)
}
