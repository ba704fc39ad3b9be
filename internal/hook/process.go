package hook

import (
	"log/slog"
	"runtime/debug"
)

// process applies one decoded key transition to the engine's modifier
// state and offers it to each listener in registration order.
//
// Injected events are dropped here: they still flow through to the OS
// (the caller passes them on), but they never touch the modifier state
// and are never delivered to listeners, so the process's own synthetic
// keystrokes cannot re-trigger hotkeys.
//
// The modifier update happens before dispatch, so a modifier key used
// as a trigger sees its own flag already set in the snapshot.
func process(ev KeyEvent, mods *ModifierState, listeners []Listener, logger *slog.Logger) bool {
	if ev.Injected {
		return false
	}

	mods.update(ev.VirtualKey, ev.Down)
	snapshot := *mods

	for _, l := range listeners {
		if dispatchOne(l, ev, snapshot, logger) {
			return true
		}
	}
	return false
}

// dispatchOne invokes a single listener, recovering any panic so a
// broken listener can never tear down the hook thread's message loop.
// A panicking listener does not consume the event.
//
// Recovery logs through slog only. Crash-dump writing is too slow for
// this path: the OS silently removes low-level hooks whose callbacks
// overrun its timeout.
func dispatchOne(l Listener, ev KeyEvent, mods ModifierState, logger *slog.Logger) (consumed bool) {
	defer func() {
		if r := recover(); r != nil {
			consumed = false
			if logger != nil {
				logger.Error("keyboard listener panicked",
					"panic", r,
					"stack", string(debug.Stack()),
				)
			}
		}
	}()
	return l.HandleKeyEvent(ev, mods)
}
