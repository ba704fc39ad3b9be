// Package tray puts the rxoverlay icon in the notification area.
//
// The icon hangs off a hidden window created on the daemon's UI
// thread and dispatched by the same message loop as the overlay, so
// every callback here already runs on the UI thread and may drive the
// coordinator directly.
package tray

import "log/slog"

// Config wires the tray to the daemon. State probes are read each
// time the menu opens; callbacks run on the UI thread.
type Config struct {
	Tooltip string

	// Enabled and Visible label the menu: the checkmark on the
	// enabled item and the Show/Hide wording.
	Enabled func() bool
	Visible func() bool

	// OnShowHide fires on a left click and on the Show/Hide item.
	OnShowHide      func()
	OnToggleEnabled func()
	OnOpenSettings  func()
	OnExit          func()

	Logger *slog.Logger
}
