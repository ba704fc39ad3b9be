package hotkey

import "rxoverlay/internal/hook"

// Matcher evaluates key events against a fixed set of bindings.
//
// It owns the pressed-set debounce: an action fires at most once per
// physical press-and-hold. The matcher is confined to the hook thread
// and is not safe for concurrent use.
type Matcher struct {
	// bindings indexed by Action; index order is priority order.
	bindings [4]Binding
	pressed  map[uint32]struct{}
}

// NewMatcher creates a matcher for the given bindings.
func NewMatcher(b Bindings) *Matcher {
	return &Matcher{
		bindings: [4]Binding{b.Toggle, b.Exit, b.SendPrimary, b.SendSecondary},
		pressed:  make(map[uint32]struct{}),
	}
}

// HandleKeyEvent consumes one key transition and reports the matched
// action, if any.
//
// Keyups clear the scan code from the pressed set and never fire. A
// keydown whose scan code is already pressed never fires (held-key
// repeats). Otherwise the scan code is recorded and bindings are
// evaluated in priority order (toggle, exit, send_primary,
// send_secondary); the first match wins.
func (m *Matcher) HandleKeyEvent(ev hook.KeyEvent, mods hook.ModifierState) (Action, bool) {
	if !ev.Down {
		delete(m.pressed, ev.ScanCode)
		return 0, false
	}

	if _, held := m.pressed[ev.ScanCode]; held {
		return 0, false
	}
	m.pressed[ev.ScanCode] = struct{}{}

	current := FromState(mods)
	for a := ActionToggle; a <= ActionSendSecondary; a++ {
		if Matches(ev.ScanCode, current, m.bindings[a]) {
			return a, true
		}
	}
	return 0, false
}

// Reset clears the pressed set. Call only while the hook is stopped.
func (m *Matcher) Reset() {
	clear(m.pressed)
}
