package overlay

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"

	"rxoverlay/internal/focus"
	"rxoverlay/internal/hotkey"
	"rxoverlay/internal/metrics"
)

// eventLog is shared by the fakes so tests can assert the order of
// surface, focus, and injection calls across collaborators.
type eventLog struct {
	entries []string
}

func (l *eventLog) add(format string, args ...any) {
	l.entries = append(l.entries, fmt.Sprintf(format, args...))
}

type fakeSurface struct {
	log     *eventLog
	visible bool
	enabled bool
	own     map[focus.Handle]bool
}

func (s *fakeSurface) Show()     { s.visible = true; s.log.add("show") }
func (s *fakeSurface) Hide()     { s.visible = false; s.log.add("hide") }
func (s *fakeSurface) Minimize() { s.visible = false; s.log.add("minimize") }
func (s *fakeSurface) Restore()  { s.visible = true; s.log.add("restore") }

func (s *fakeSurface) Visible() bool { return s.visible }

func (s *fakeSurface) IsOwnWindow(h focus.Handle) bool { return s.own[h] }

func (s *fakeSurface) SetEnabled(v bool) {
	s.enabled = v
	s.log.add("setEnabled(%t)", v)
}

type fakeFocuser struct {
	log     *eventLog
	fg      focus.Handle
	visible map[focus.Handle]bool
	refuse  bool
}

func (f *fakeFocuser) Foreground() focus.Handle      { return f.fg }
func (f *fakeFocuser) IsVisible(h focus.Handle) bool { return f.visible[h] }
func (f *fakeFocuser) Title(h focus.Handle) string   { return fmt.Sprintf("window-%d", h) }

func (f *fakeFocuser) SetForeground(h focus.Handle) bool {
	f.log.add("focus(%d)", h)
	if f.refuse {
		return false
	}
	f.fg = h
	return true
}

type fakeInjector struct {
	log     *eventLog
	partial bool
}

func (i *fakeInjector) SendText(s string) (int, int) {
	i.log.add("inject(%s)", s)
	submitted := 2 * len(s)
	if i.partial {
		return submitted - 1, submitted
	}
	return submitted, submitted
}

type savedState struct {
	enabled   bool
	minimized bool
}

type fakeSaver struct {
	saves []savedState
	err   error
}

func (s *fakeSaver) SaveState(enabled, minimized bool) error {
	s.saves = append(s.saves, savedState{enabled, minimized})
	return s.err
}

type actionRecord struct {
	action  string
	target  string
	outcome string
	detail  string
}

type fakeRecorder struct {
	records []actionRecord
}

func (r *fakeRecorder) RecordAction(action, target, outcome, detail string) {
	r.records = append(r.records, actionRecord{action, target, outcome, detail})
}

type harness struct {
	log      *eventLog
	surface  *fakeSurface
	focuser  *fakeFocuser
	injector *fakeInjector
	saver    *fakeSaver
	recorder *fakeRecorder
	metrics  *metrics.OverlayMetrics
	exited   bool
	coord    *Coordinator
}

func newHarness(enabled, minimized bool) *harness {
	log := &eventLog{}
	h := &harness{
		log:      log,
		surface:  &fakeSurface{log: log, own: map[focus.Handle]bool{}},
		focuser:  &fakeFocuser{log: log, visible: map[focus.Handle]bool{}},
		injector: &fakeInjector{log: log},
		saver:    &fakeSaver{},
		recorder: &fakeRecorder{},
		metrics:  metrics.NewOverlayMetrics(metrics.NewRegistry("test")),
	}
	h.coord = NewCoordinator(CoordinatorConfig{
		Surface:   h.surface,
		Focuser:   h.focuser,
		Injector:  h.injector,
		Saver:     h.saver,
		Recorder:  h.recorder,
		Metrics:   h.metrics,
		Logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		OnExit:    func() { h.exited = true },
		Enabled:   enabled,
		Minimized: minimized,
	})
	h.coord.settle = 0
	return h
}

// external registers a visible non-overlay window and makes it the
// foreground window.
func (h *harness) external(hw focus.Handle) {
	h.focuser.visible[hw] = true
	h.focuser.fg = hw
}

// ownForeground makes the overlay's own window the foreground window.
func (h *harness) ownForeground(hw focus.Handle) {
	h.surface.own[hw] = true
	h.focuser.visible[hw] = true
	h.focuser.fg = hw
}

func wantEvents(t *testing.T, log *eventLog, want ...string) {
	t.Helper()
	if len(log.entries) != len(want) {
		t.Fatalf("got events %v, want %v", log.entries, want)
	}
	for i := range want {
		if log.entries[i] != want[i] {
			t.Fatalf("event %d: got %q, want %q (full: %v)", i, log.entries[i], want[i], log.entries)
		}
	}
}

func lastRecord(t *testing.T, r *fakeRecorder) actionRecord {
	t.Helper()
	if len(r.records) == 0 {
		t.Fatal("no action records")
	}
	return r.records[len(r.records)-1]
}

func TestSendHidesFocusesInjectsRestores(t *testing.T) {
	h := newHarness(true, false)
	h.external(5)
	h.surface.visible = true

	h.coord.SendPrimary()

	wantEvents(t, h.log, "hide", "focus(5)", "inject(r)", "show")
	rec := lastRecord(t, h.recorder)
	if rec.action != "send_primary" || rec.outcome != OutcomeOK {
		t.Errorf("got record %+v, want send_primary/ok", rec)
	}
	if rec.target != "window-5" {
		t.Errorf("got target %q, want window-5", rec.target)
	}
	if got := h.metrics.InjectionsOK.Value(); got != 1 {
		t.Errorf("injections_ok = %d, want 1", got)
	}
}

func TestSendWhileHiddenSkipsHideShow(t *testing.T) {
	h := newHarness(true, false)
	h.external(5)

	h.coord.SendSecondary()

	wantEvents(t, h.log, "focus(5)", "inject(x)")
}

func TestSendOwnForegroundFallsBackToLastTarget(t *testing.T) {
	h := newHarness(true, false)

	// Poll while an external window is foreground, then move focus to
	// the overlay itself.
	h.external(5)
	h.coord.PollForeground()
	h.ownForeground(9)

	h.coord.SendPrimary()

	wantEvents(t, h.log, "focus(5)", "inject(r)")
}

func TestSendNoTargetAborts(t *testing.T) {
	h := newHarness(true, false)
	h.ownForeground(9)
	h.surface.visible = true

	h.coord.SendPrimary()

	// No hide, no focus, no injection: the overlay stays put.
	wantEvents(t, h.log)
	rec := lastRecord(t, h.recorder)
	if rec.outcome != OutcomeNoTarget {
		t.Errorf("got outcome %q, want %q", rec.outcome, OutcomeNoTarget)
	}
}

func TestSendFocusRefusedRestoresOverlay(t *testing.T) {
	h := newHarness(true, false)
	h.external(5)
	h.surface.visible = true
	h.focuser.refuse = true

	h.coord.SendPrimary()

	wantEvents(t, h.log, "hide", "focus(5)", "show")
	rec := lastRecord(t, h.recorder)
	if rec.outcome != OutcomeFocusFailed {
		t.Errorf("got outcome %q, want %q", rec.outcome, OutcomeFocusFailed)
	}
	if got := h.metrics.HandoffFailures.Value(); got != 1 {
		t.Errorf("handoff_failures = %d, want 1", got)
	}
	if !h.surface.visible {
		t.Error("overlay not visible again after refused handoff")
	}
}

func TestSendPartialInjectionRecorded(t *testing.T) {
	h := newHarness(true, false)
	h.external(5)
	h.injector.partial = true

	h.coord.SendPrimary()

	rec := lastRecord(t, h.recorder)
	if rec.outcome != OutcomePartial {
		t.Errorf("got outcome %q, want %q", rec.outcome, OutcomePartial)
	}
	if rec.detail != "accepted 1 of 2 input events" {
		t.Errorf("got detail %q", rec.detail)
	}
	if got := h.metrics.InjectionsPartial.Value(); got != 1 {
		t.Errorf("injections_partial = %d, want 1", got)
	}
}

func TestSendWhileDisabledDoesNothing(t *testing.T) {
	h := newHarness(false, false)
	h.external(5)

	h.coord.SendPrimary()

	wantEvents(t, h.log)
	if len(h.recorder.records) != 0 {
		t.Errorf("unexpected records: %v", h.recorder.records)
	}
}

func TestToggleInvolution(t *testing.T) {
	h := newHarness(true, false)

	h.coord.Toggle()
	if h.coord.Enabled() {
		t.Fatal("still enabled after first toggle")
	}
	h.coord.Toggle()
	if !h.coord.Enabled() {
		t.Fatal("not enabled after second toggle")
	}

	wantEvents(t, h.log, "setEnabled(false)", "hide", "setEnabled(true)", "show")
	want := []savedState{{false, false}, {true, false}}
	if len(h.saver.saves) != len(want) {
		t.Fatalf("got saves %v, want %v", h.saver.saves, want)
	}
	for i := range want {
		if h.saver.saves[i] != want[i] {
			t.Errorf("save %d: got %+v, want %+v", i, h.saver.saves[i], want[i])
		}
	}
}

func TestDisableNormalizesMinimized(t *testing.T) {
	h := newHarness(true, true)

	h.coord.ToggleEnabled()

	if h.coord.Enabled() || h.coord.Minimized() {
		t.Errorf("got enabled=%t minimized=%t, want false/false",
			h.coord.Enabled(), h.coord.Minimized())
	}
	wantEvents(t, h.log, "setEnabled(false)", "hide")
	if got := h.saver.saves[len(h.saver.saves)-1]; got != (savedState{false, false}) {
		t.Errorf("last save %+v, want {false false}", got)
	}
}

func TestEnableRestoresMinimizedShape(t *testing.T) {
	// A state file can carry enabled=false with minimized=true; the
	// next enable must come back as the widget, not the full window.
	h := newHarness(false, true)

	h.coord.ToggleEnabled()

	if !h.coord.Enabled() || !h.coord.Minimized() {
		t.Errorf("got enabled=%t minimized=%t, want true/true",
			h.coord.Enabled(), h.coord.Minimized())
	}
	wantEvents(t, h.log, "setEnabled(true)", "minimize")
}

func TestToggleWhileMinimizedRestores(t *testing.T) {
	h := newHarness(true, true)

	h.coord.Toggle()

	if !h.coord.Enabled() {
		t.Error("enabled state changed by restore")
	}
	if h.coord.Minimized() {
		t.Error("still minimized after toggle")
	}
	wantEvents(t, h.log, "restore")
}

func TestMinimizeRequiresEnabled(t *testing.T) {
	h := newHarness(false, false)

	h.coord.Minimize()

	wantEvents(t, h.log)
	if len(h.saver.saves) != 0 {
		t.Errorf("unexpected saves: %v", h.saver.saves)
	}
}

func TestMinimizeRestoreRoundTrip(t *testing.T) {
	h := newHarness(true, false)

	h.coord.Minimize()
	if !h.coord.Minimized() {
		t.Fatal("not minimized")
	}
	h.coord.Restore()
	if h.coord.Minimized() {
		t.Fatal("still minimized")
	}

	wantEvents(t, h.log, "minimize", "restore")
	want := []savedState{{true, true}, {true, false}}
	for i := range want {
		if h.saver.saves[i] != want[i] {
			t.Errorf("save %d: got %+v, want %+v", i, h.saver.saves[i], want[i])
		}
	}
}

func TestShowHide(t *testing.T) {
	h := newHarness(true, false)

	h.coord.Show()
	h.coord.Hide()
	wantEvents(t, h.log, "show", "hide")

	// Show while minimized restores instead.
	h2 := newHarness(true, true)
	h2.coord.Show()
	wantEvents(t, h2.log, "restore")

	// Hide while minimized keeps the widget.
	h3 := newHarness(true, true)
	h3.coord.Hide()
	wantEvents(t, h3.log)

	// Show while disabled is ignored.
	h4 := newHarness(false, false)
	h4.coord.Show()
	wantEvents(t, h4.log)
}

func TestPollForegroundFilters(t *testing.T) {
	h := newHarness(true, false)

	// Own window: not recorded.
	h.ownForeground(9)
	h.coord.PollForeground()
	if h.coord.TargetKnown() {
		t.Error("own window recorded as target")
	}

	// Invisible window: not recorded.
	h.focuser.fg = 7
	h.coord.PollForeground()
	if h.coord.TargetKnown() {
		t.Error("invisible window recorded as target")
	}

	// No foreground window: not recorded.
	h.focuser.fg = 0
	h.coord.PollForeground()
	if h.coord.TargetKnown() {
		t.Error("null foreground recorded as target")
	}

	// Visible external window: recorded.
	h.external(5)
	h.coord.PollForeground()
	if !h.coord.TargetKnown() {
		t.Error("visible external window not recorded")
	}
	if got := h.metrics.ForegroundPolls.Value(); got != 4 {
		t.Errorf("foreground_polls = %d, want 4", got)
	}
}

func TestProcessActionsDrainsInOrder(t *testing.T) {
	h := newHarness(true, false)
	h.external(5)

	h.coord.Enqueue(hotkey.ActionSendPrimary)
	h.coord.Enqueue(hotkey.ActionSendSecondary)
	h.coord.ProcessActions()

	wantEvents(t, h.log, "focus(5)", "inject(r)", "focus(5)", "inject(x)")
	if got := h.metrics.ActionsEnqueued.Value(); got != 2 {
		t.Errorf("actions_enqueued = %d, want 2", got)
	}
}

func TestProcessActionsExitStopsDraining(t *testing.T) {
	h := newHarness(true, false)
	h.external(5)

	h.coord.Enqueue(hotkey.ActionExit)
	h.coord.Enqueue(hotkey.ActionSendPrimary)
	h.coord.ProcessActions()

	if !h.exited {
		t.Fatal("exit callback not invoked")
	}
	wantEvents(t, h.log)
}

func TestEnqueueDropsSendsWhileBusy(t *testing.T) {
	h := newHarness(true, false)
	h.coord.busy.Store(true)

	h.coord.Enqueue(hotkey.ActionSendPrimary)
	if h.coord.queue.depth() != 0 {
		t.Error("send queued while busy")
	}

	h.coord.Enqueue(hotkey.ActionToggle)
	if h.coord.queue.depth() != 1 {
		t.Error("toggle not queued while busy")
	}
	if got := h.metrics.ActionsDropped.Value(); got != 1 {
		t.Errorf("actions_dropped = %d, want 1", got)
	}
}

func TestEnqueueDropsWhenFull(t *testing.T) {
	h := newHarness(true, false)

	for i := 0; i < queueCapacity; i++ {
		h.coord.Enqueue(hotkey.ActionToggle)
	}
	h.coord.Enqueue(hotkey.ActionToggle)

	if got := h.coord.queue.depth(); got != queueCapacity {
		t.Errorf("queue depth = %d, want %d", got, queueCapacity)
	}
	if got := h.metrics.ActionsDropped.Value(); got != 1 {
		t.Errorf("actions_dropped = %d, want 1", got)
	}
}

func TestApplyStartupState(t *testing.T) {
	tests := []struct {
		name      string
		enabled   bool
		minimized bool
		show      bool
		want      []string
	}{
		{"enabled shown", true, false, true, []string{"setEnabled(true)", "show"}},
		{"enabled minimized", true, true, true, []string{"setEnabled(true)", "minimize"}},
		{"enabled start hidden", true, false, false, []string{"setEnabled(true)"}},
		{"disabled", false, false, true, []string{"setEnabled(false)"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(tt.enabled, tt.minimized)
			h.coord.ApplyStartupState(tt.show)
			wantEvents(t, h.log, tt.want...)
		})
	}
}

func TestSaveFailureDoesNotAbort(t *testing.T) {
	h := newHarness(true, false)
	h.saver.err = errors.New("disk full")

	h.coord.Toggle()

	if h.coord.Enabled() {
		t.Error("toggle did not apply despite save failure")
	}
}
