// Package overlay coordinates the floating send surface: it drains
// hotkey actions on the UI thread, tracks the last usable target
// window, and drives the hide, focus, inject, restore sequence that
// places characters into whatever application the user was working in.
//
// The Coordinator is passive. The window layer owns the timers and
// calls ProcessActions and PollForeground on its ticks, and the
// surface controls (buttons, tray menu) call the action methods
// directly. Every method runs on the UI thread except Enqueue and the
// status accessors, which are safe from any goroutine.
package overlay

import (
	"time"

	"rxoverlay/internal/focus"
)

// Texts placed by the send actions.
const (
	primaryText   = "r"
	secondaryText = "x"
)

const (
	// settleDelay is the pause after hiding the overlay before the
	// focus handoff, giving the window manager time to move focus off
	// the overlay.
	settleDelay = 20 * time.Millisecond

	// DrainInterval is the UI tick that empties the action queue.
	DrainInterval = 25 * time.Millisecond

	// PollInterval is the UI tick that samples the foreground window.
	PollInterval = 100 * time.Millisecond

	// queueCapacity bounds the hook-to-UI action queue.
	queueCapacity = 16
)

// Outcomes recorded for actions in the history log.
const (
	OutcomeOK          = "ok"
	OutcomeNoTarget    = "no-target"
	OutcomeFocusFailed = "focus-failed"
	OutcomePartial     = "partial"
)

// Surface is the on-screen overlay the coordinator drives. Calls
// arrive on the UI thread.
type Surface interface {
	// Show makes the overlay visible without taking keyboard focus.
	Show()

	// Hide removes the overlay from screen.
	Hide()

	// Minimize collapses the overlay to its restore widget.
	Minimize()

	// Restore brings the full overlay back from the widget.
	Restore()

	// Visible reports whether the overlay window is on screen.
	Visible() bool

	// IsOwnWindow reports whether h is the overlay or its widget.
	IsOwnWindow(h focus.Handle) bool

	// SetEnabled updates the armed indicator on the surface controls.
	SetEnabled(enabled bool)
}

// Focuser resolves and activates target windows.
type Focuser interface {
	Foreground() focus.Handle
	IsVisible(h focus.Handle) bool
	SetForeground(h focus.Handle) bool
	Title(h focus.Handle) string
}

// Injector synthesizes text into the focused window. SendText reports
// how many input events the OS accepted versus how many were
// submitted.
type Injector interface {
	SendText(s string) (accepted, submitted int)
}

// StateSaver persists the enabled/minimized snapshot after every
// transition.
type StateSaver interface {
	SaveState(enabled, minimized bool) error
}

// Recorder receives one record per processed action for the history
// log. Implementations log their own failures; the coordinator never
// blocks or aborts on recording.
type Recorder interface {
	RecordAction(action, target, outcome, detail string)
}
