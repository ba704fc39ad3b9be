package overlay

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"rxoverlay/internal/focus"
	"rxoverlay/internal/hotkey"
	"rxoverlay/internal/metrics"
)

// CoordinatorConfig wires the coordinator's collaborators and seeds
// its runtime state.
type CoordinatorConfig struct {
	Surface  Surface
	Focuser  Focuser
	Injector Injector
	Saver    StateSaver

	// Recorder is optional; nil disables history recording.
	Recorder Recorder

	// Metrics is optional; nil registers against the default registry.
	Metrics *metrics.OverlayMetrics

	// Logger is optional; nil uses slog.Default.
	Logger *slog.Logger

	// OnExit runs on the UI thread when an exit action is processed.
	OnExit func()

	// Enabled and Minimized seed the runtime state, normally from the
	// persisted state file.
	Enabled   bool
	Minimized bool
}

// Coordinator owns the overlay's runtime state and executes actions
// on the UI thread.
type Coordinator struct {
	surface  Surface
	focuser  Focuser
	injector Injector
	saver    StateSaver
	recorder Recorder
	metrics  *metrics.OverlayMetrics
	onExit   func()
	logger   *slog.Logger

	queue  *actionQueue
	busy   atomic.Bool // an injection handoff is in flight
	settle time.Duration

	mu         sync.Mutex
	enabled    bool
	minimized  bool
	lastTarget focus.Handle
}

// NewCoordinator creates a Coordinator. The surface, focuser,
// injector, and saver must be non-nil.
func NewCoordinator(cfg CoordinatorConfig) *Coordinator {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	m := cfg.Metrics
	if m == nil {
		m = metrics.NewOverlayMetrics(nil)
	}

	return &Coordinator{
		surface:   cfg.Surface,
		focuser:   cfg.Focuser,
		injector:  cfg.Injector,
		saver:     cfg.Saver,
		recorder:  cfg.Recorder,
		metrics:   m,
		onExit:    cfg.OnExit,
		logger:    logger.With("component", "overlay"),
		queue:     newActionQueue(queueCapacity),
		settle:    settleDelay,
		enabled:   cfg.Enabled,
		minimized: cfg.Minimized,
	}
}

// Enqueue hands an action to the UI thread. It is safe from any
// goroutine, including the hook thread. Send actions are dropped while
// an injection is in flight; everything is dropped when the queue is
// full.
func (c *Coordinator) Enqueue(a hotkey.Action) {
	if c.busy.Load() && (a == hotkey.ActionSendPrimary || a == hotkey.ActionSendSecondary) {
		c.metrics.RecordDropped()
		c.logger.Debug("send dropped, injection in flight", "action", a.String())
		return
	}
	if !c.queue.enqueue(a) {
		c.metrics.RecordDropped()
		c.logger.Warn("action dropped, queue full", "action", a.String())
		return
	}
	c.metrics.RecordEnqueued()
	c.metrics.SetQueueDepth(int64(c.queue.depth()))
}

// ProcessActions drains the queue. The window layer calls it on the
// drain tick. Processing stops at an exit action; anything queued
// behind it is discarded.
func (c *Coordinator) ProcessActions() {
	for {
		a, ok := c.queue.tryDequeue()
		if !ok {
			break
		}
		switch a {
		case hotkey.ActionToggle:
			c.Toggle()
		case hotkey.ActionExit:
			c.Exit()
			return
		case hotkey.ActionSendPrimary:
			c.send(primaryText, "send_primary")
		case hotkey.ActionSendSecondary:
			c.send(secondaryText, "send_secondary")
		}
	}
	c.metrics.SetQueueDepth(int64(c.queue.depth()))
}

// PollForeground samples the foreground window and remembers it as
// the fallback injection target when it is a visible window that is
// not the overlay. The window layer calls it on the poll tick.
func (c *Coordinator) PollForeground() {
	c.metrics.RecordPoll()

	h := c.focuser.Foreground()
	if h == 0 || c.surface.IsOwnWindow(h) || !c.focuser.IsVisible(h) {
		return
	}
	c.mu.Lock()
	c.lastTarget = h
	c.mu.Unlock()
}

// Toggle is the toggle action: a minimized overlay is restored,
// anything else flips the enabled state.
func (c *Coordinator) Toggle() {
	if c.Minimized() {
		c.Restore()
		return
	}
	c.ToggleEnabled()
}

// ToggleEnabled flips the enabled state. Disabling always hides the
// overlay and clears the minimized flag so the next enable starts
// from a clean slate.
func (c *Coordinator) ToggleEnabled() {
	c.mu.Lock()
	c.enabled = !c.enabled
	enabled := c.enabled
	if !enabled {
		c.minimized = false
	}
	minimized := c.minimized
	c.mu.Unlock()

	c.surface.SetEnabled(enabled)
	if !enabled {
		c.surface.Hide()
	} else if minimized {
		c.surface.Minimize()
	} else {
		c.surface.Show()
	}
	c.saveState()
	c.record("toggle", "", OutcomeOK, fmt.Sprintf("enabled=%t", enabled))
	c.logger.Info("hotkey actions toggled", "enabled", enabled)
}

// Minimize collapses the overlay to its restore widget. It does
// nothing while disabled or already minimized.
func (c *Coordinator) Minimize() {
	c.mu.Lock()
	if !c.enabled || c.minimized {
		c.mu.Unlock()
		return
	}
	c.minimized = true
	c.mu.Unlock()

	c.saveState()
	c.surface.Minimize()
	c.logger.Debug("overlay minimized")
}

// Restore brings the overlay back from its restore widget.
func (c *Coordinator) Restore() {
	c.mu.Lock()
	if !c.minimized {
		c.mu.Unlock()
		return
	}
	c.minimized = false
	c.mu.Unlock()

	c.saveState()
	c.surface.Restore()
	c.logger.Debug("overlay restored")
}

// Show makes an enabled overlay visible, restoring it first when
// minimized. It does nothing while disabled.
func (c *Coordinator) Show() {
	if !c.Enabled() {
		c.logger.Debug("show ignored while disabled")
		return
	}
	if c.Minimized() {
		c.Restore()
		return
	}
	c.surface.Show()
}

// Hide hides a visible overlay without touching the enabled state. A
// minimized overlay keeps its restore widget.
func (c *Coordinator) Hide() {
	if c.Minimized() {
		return
	}
	c.surface.Hide()
}

// SendPrimary injects the primary character into the target window.
func (c *Coordinator) SendPrimary() {
	c.send(primaryText, "send_primary")
}

// SendSecondary injects the secondary character into the target
// window.
func (c *Coordinator) SendSecondary() {
	c.send(secondaryText, "send_secondary")
}

// Exit records the exit request and invokes the shutdown callback.
func (c *Coordinator) Exit() {
	c.logger.Info("exit requested")
	c.record("exit", "", OutcomeOK, "")
	if c.onExit != nil {
		c.onExit()
	}
}

// ApplyStartupState pushes the seeded state onto the surface once the
// window exists. showOverlay gates initial visibility; the enabled
// indicator is applied regardless.
func (c *Coordinator) ApplyStartupState(showOverlay bool) {
	c.mu.Lock()
	enabled := c.enabled
	minimized := c.minimized
	c.mu.Unlock()

	c.surface.SetEnabled(enabled)
	if !enabled || !showOverlay {
		return
	}
	if minimized {
		c.surface.Minimize()
	} else {
		c.surface.Show()
	}
}

// Enabled reports whether hotkey actions are armed.
func (c *Coordinator) Enabled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.enabled
}

// Minimized reports whether the overlay is collapsed to its widget.
func (c *Coordinator) Minimized() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.minimized
}

// TargetKnown reports whether a usable injection target has been seen.
func (c *Coordinator) TargetKnown() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastTarget != 0
}

// Visible reports whether the overlay window is currently shown.
func (c *Coordinator) Visible() bool {
	return c.surface.Visible()
}

// send runs the injection sequence on the UI thread: resolve the
// target, hide the overlay, hand focus to the target, synthesize the
// text, and bring the overlay back.
func (c *Coordinator) send(text, action string) {
	if !c.Enabled() {
		return
	}

	target := c.pickTarget()
	if target == 0 {
		c.logger.Warn("no target window, click into another application first", "action", action)
		c.record(action, "", OutcomeNoTarget, "no usable target window")
		return
	}
	title := c.focuser.Title(target)

	c.busy.Store(true)
	defer c.busy.Store(false)
	timer := c.metrics.StartHandoffTimer()
	defer timer.Stop()

	// Hiding first keeps the window manager from bouncing focus back
	// to the overlay mid-injection.
	wasVisible := c.surface.Visible()
	if wasVisible {
		c.surface.Hide()
		time.Sleep(c.settle)
	}

	if !c.focuser.SetForeground(target) {
		c.metrics.RecordHandoffFailure()
		c.logger.Debug("target refused foreground, injection aborted",
			"action", action, "target", title)
		if wasVisible {
			c.surface.Show()
		}
		c.record(action, title, OutcomeFocusFailed, "target window refused foreground")
		return
	}

	accepted, submitted := c.injector.SendText(text)
	if wasVisible {
		c.surface.Show()
	}

	partial := accepted < submitted
	c.metrics.RecordInjection(partial)
	if partial {
		c.record(action, title, OutcomePartial,
			fmt.Sprintf("accepted %d of %d input events", accepted, submitted))
		return
	}
	c.record(action, title, OutcomeOK, "")
	c.logger.Debug("text injected", "action", action, "target", title)
}

// pickTarget resolves the injection target: the current foreground
// window unless it is the overlay itself, else the last foreground
// window recorded by the poll.
func (c *Coordinator) pickTarget() focus.Handle {
	c.mu.Lock()
	last := c.lastTarget
	c.mu.Unlock()

	current := c.focuser.Foreground()
	if current != 0 && c.surface.IsOwnWindow(current) {
		return last
	}
	if current != 0 {
		return current
	}
	return last
}

func (c *Coordinator) saveState() {
	if c.saver == nil {
		return
	}
	c.mu.Lock()
	enabled, minimized := c.enabled, c.minimized
	c.mu.Unlock()

	if err := c.saver.SaveState(enabled, minimized); err != nil {
		c.logger.Warn("state save failed", "error", err)
	}
}

func (c *Coordinator) record(action, target, outcome, detail string) {
	if c.recorder == nil {
		return
	}
	c.recorder.RecordAction(action, target, outcome, detail)
}
