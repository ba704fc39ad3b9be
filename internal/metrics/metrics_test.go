package metrics

import (
	"testing"
	"time"
)

func TestRegistryPrefixesNames(t *testing.T) {
	r := NewRegistry("app")
	c := r.RegisterCounter("events_total", "test counter")
	if c.Name() != "app_events_total" {
		t.Errorf("Name() = %q, want app_events_total", c.Name())
	}

	bare := NewRegistry("")
	if got := bare.RegisterCounter("events_total", "").Name(); got != "events_total" {
		t.Errorf("unprefixed Name() = %q, want events_total", got)
	}
}

func TestRegisterIsIdempotent(t *testing.T) {
	r := NewRegistry("app")
	a := r.RegisterCounter("hits_total", "first")
	b := r.RegisterCounter("hits_total", "second")
	if a != b {
		t.Fatal("re-registering the same name returned a different counter")
	}

	a.Inc()
	if b.Value() != 1 {
		t.Errorf("shared counter value = %d, want 1", b.Value())
	}

	h1 := r.RegisterHistogram("latency_seconds", "", nil)
	h2 := r.RegisterHistogram("latency_seconds", "", nil)
	if h1 != h2 {
		t.Error("re-registering the same histogram returned a different one")
	}
}

func TestCounterAccumulates(t *testing.T) {
	r := NewRegistry("")
	c := r.RegisterCounter("n", "")
	c.Inc()
	c.Add(4)
	if c.Value() != 5 {
		t.Errorf("Value() = %d, want 5", c.Value())
	}
}

func TestGaugeMovesBothWays(t *testing.T) {
	r := NewRegistry("")
	g := r.RegisterGauge("depth", "")
	g.Set(3)
	g.Inc()
	g.Dec()
	g.Dec()
	if g.Value() != 2 {
		t.Errorf("Value() = %d, want 2", g.Value())
	}
}

func TestHistogramStats(t *testing.T) {
	r := NewRegistry("")
	h := r.RegisterHistogram("d", "", []float64{0.01, 0.1, 1})

	for _, v := range []float64{0.005, 0.05, 0.5, 5} {
		h.Observe(v)
	}

	if h.Count() != 4 {
		t.Errorf("Count() = %d, want 4", h.Count())
	}
	if got := h.Sum(); got != 5.555 {
		t.Errorf("Sum() = %g, want 5.555", got)
	}
	if got := h.Mean(); got != 5.555/4 {
		t.Errorf("Mean() = %g, want %g", got, 5.555/4)
	}
}

func TestHistogramTimer(t *testing.T) {
	r := NewRegistry("")
	h := r.RegisterHistogram("op_seconds", "", nil)

	timer := h.Timer()
	time.Sleep(time.Millisecond)
	if d := timer.Stop(); d <= 0 {
		t.Errorf("Stop() = %v, want > 0", d)
	}
	if h.Count() != 1 {
		t.Errorf("Count() = %d after one timed run, want 1", h.Count())
	}
}

func TestSnapshotFlattensAllKinds(t *testing.T) {
	r := NewRegistry("app")
	r.RegisterCounter("sent_total", "").Add(7)
	r.RegisterGauge("depth", "").Set(-2)
	r.RegisterHistogram("lat_seconds", "", nil).Observe(0.25)

	snap := r.Snapshot()
	if got := snap["app_sent_total"]; got != uint64(7) {
		t.Errorf("snapshot counter = %v, want 7", got)
	}
	if got := snap["app_depth"]; got != int64(-2) {
		t.Errorf("snapshot gauge = %v, want -2", got)
	}
	if got := snap["app_lat_seconds_count"]; got != uint64(1) {
		t.Errorf("snapshot histogram count = %v, want 1", got)
	}
	if got := snap["app_lat_seconds_sum"]; got != 0.25 {
		t.Errorf("snapshot histogram sum = %v, want 0.25", got)
	}
	if got := snap["app_lat_seconds_mean"]; got != 0.25 {
		t.Errorf("snapshot histogram mean = %v, want 0.25", got)
	}
}

func TestResetZeroesEverything(t *testing.T) {
	r := NewRegistry("")
	c := r.RegisterCounter("c", "")
	g := r.RegisterGauge("g", "")
	h := r.RegisterHistogram("h", "", nil)
	c.Add(3)
	g.Set(9)
	h.Observe(1)

	r.Reset()

	if c.Value() != 0 || g.Value() != 0 || h.Count() != 0 {
		t.Errorf("after Reset: counter=%d gauge=%d histogram=%d, want all 0",
			c.Value(), g.Value(), h.Count())
	}
}

func TestDefaultRegistryIsStable(t *testing.T) {
	old := Default()
	defer SetDefault(old)

	if Default() != old {
		t.Fatal("Default() returned different registries on repeated calls")
	}

	repl := NewRegistry("other")
	SetDefault(repl)
	if Default() != repl {
		t.Error("SetDefault did not take effect")
	}
}

func TestOverlayMetricsSnapshotKeys(t *testing.T) {
	m := NewOverlayMetrics(NewRegistry("rxoverlay"))

	m.RecordHookEvent(true)
	m.RecordHookEvent(false)
	m.RecordEnqueued()
	m.RecordDropped()
	m.RecordInjection(false)
	m.RecordInjection(true)
	m.RecordHandoffFailure()
	m.SetQueueDepth(2)

	snap := m.Snapshot()
	check := func(name string, want any) {
		t.Helper()
		if got := snap[name]; got != want {
			t.Errorf("snapshot[%q] = %v, want %v", name, got, want)
		}
	}
	check("rxoverlay_hook_events_total", uint64(2))
	check("rxoverlay_hook_consumed_total", uint64(1))
	check("rxoverlay_actions_enqueued_total", uint64(1))
	check("rxoverlay_actions_dropped_total", uint64(1))
	check("rxoverlay_injections_ok_total", uint64(1))
	check("rxoverlay_injections_partial_total", uint64(1))
	check("rxoverlay_handoff_failures_total", uint64(1))
	check("rxoverlay_queue_depth", int64(2))

	if _, ok := snap["rxoverlay_last_action_timestamp"]; !ok {
		t.Error("snapshot missing last-action timestamp gauge")
	}
}
