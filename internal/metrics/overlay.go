package metrics

import (
	"time"
)

// OverlayMetrics holds the daemon's metric set.
type OverlayMetrics struct {
	registry *Registry

	// Counters
	HookEvents        *Counter
	HookConsumed      *Counter
	ActionsEnqueued   *Counter
	ActionsDropped    *Counter
	InjectionsOK      *Counter
	InjectionsPartial *Counter
	HandoffFailures   *Counter
	ForegroundPolls   *Counter

	// Gauges
	QueueDepth     *Gauge
	UptimeSeconds  *Gauge
	LastActionUnix *Gauge

	// Histograms
	HandoffDuration *Histogram
}

// startTime records when metrics were initialized.
var startTime = time.Now()

// NewOverlayMetrics creates and registers the daemon metric set. A nil
// registry selects the default registry.
func NewOverlayMetrics(registry *Registry) *OverlayMetrics {
	if registry == nil {
		registry = Default()
	}

	return &OverlayMetrics{
		registry: registry,

		HookEvents: registry.RegisterCounter(
			"hook_events_total",
			"Keyboard events delivered to hook listeners",
		),
		HookConsumed: registry.RegisterCounter(
			"hook_consumed_total",
			"Keyboard events consumed by a hotkey binding",
		),
		ActionsEnqueued: registry.RegisterCounter(
			"actions_enqueued_total",
			"Actions handed from the hook thread to the UI thread",
		),
		ActionsDropped: registry.RegisterCounter(
			"actions_dropped_total",
			"Actions dropped because the queue was full or an injection was in flight",
		),
		InjectionsOK: registry.RegisterCounter(
			"injections_ok_total",
			"Injections where every input event was accepted",
		),
		InjectionsPartial: registry.RegisterCounter(
			"injections_partial_total",
			"Injections where SendInput accepted fewer events than submitted",
		),
		HandoffFailures: registry.RegisterCounter(
			"handoff_failures_total",
			"Injections aborted because the target window refused foreground",
		),
		ForegroundPolls: registry.RegisterCounter(
			"foreground_polls_total",
			"Foreground window polls",
		),

		QueueDepth: registry.RegisterGauge(
			"queue_depth",
			"Actions waiting in the queue after the last drain",
		),
		UptimeSeconds: registry.RegisterGauge(
			"uptime_seconds",
			"Seconds the daemon has been running",
		),
		LastActionUnix: registry.RegisterGauge(
			"last_action_timestamp",
			"Unix timestamp of the last completed injection",
		),

		HandoffDuration: registry.RegisterHistogram(
			"handoff_duration_seconds",
			"Duration of the hide, focus, and inject sequence",
			UIBuckets,
		),
	}
}

// RecordHookEvent records one dispatched hook event.
func (m *OverlayMetrics) RecordHookEvent(consumed bool) {
	m.HookEvents.Inc()
	if consumed {
		m.HookConsumed.Inc()
	}
}

// RecordEnqueued records an action accepted into the queue.
func (m *OverlayMetrics) RecordEnqueued() {
	m.ActionsEnqueued.Inc()
}

// RecordDropped records an action dropped before the queue.
func (m *OverlayMetrics) RecordDropped() {
	m.ActionsDropped.Inc()
}

// RecordInjection records a completed injection.
func (m *OverlayMetrics) RecordInjection(partial bool) {
	if partial {
		m.InjectionsPartial.Inc()
	} else {
		m.InjectionsOK.Inc()
	}
	m.LastActionUnix.Set(time.Now().Unix())
}

// RecordHandoffFailure records an injection aborted at the focus step.
func (m *OverlayMetrics) RecordHandoffFailure() {
	m.HandoffFailures.Inc()
}

// RecordPoll records one foreground poll.
func (m *OverlayMetrics) RecordPoll() {
	m.ForegroundPolls.Inc()
}

// SetQueueDepth sets the queued-action gauge.
func (m *OverlayMetrics) SetQueueDepth(n int64) {
	m.QueueDepth.Set(n)
}

// StartHandoffTimer returns a timer for the injection sequence.
func (m *OverlayMetrics) StartHandoffTimer() *HistogramTimer {
	return m.HandoffDuration.Timer()
}

// UpdateUptime refreshes the uptime gauge.
func (m *OverlayMetrics) UpdateUptime() {
	m.UptimeSeconds.Set(int64(time.Since(startTime).Seconds()))
}

// Snapshot refreshes derived gauges and returns the registry snapshot.
func (m *OverlayMetrics) Snapshot() map[string]any {
	m.UpdateUptime()
	return m.registry.Snapshot()
}
