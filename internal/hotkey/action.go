// Package hotkey turns raw key events into abstract actions.
//
// A Matcher evaluates configured bindings against (scan code, modifier
// set) pairs with exact-set matching and a per-scan-code debounce; a
// Manager plugs the matcher into the keyboard hook and forwards
// matched actions to a callback. Matching runs on the hook thread, so
// everything on that path is allocation-free and non-blocking.
package hotkey

// Action is the abstract output of the matcher, independent of the
// key that produced it. Declaration order is the fixed priority order
// used when several bindings share a chord.
type Action int

const (
	ActionToggle Action = iota
	ActionExit
	ActionSendPrimary
	ActionSendSecondary
)

// String returns the action's configuration name.
func (a Action) String() string {
	switch a {
	case ActionToggle:
		return "toggle"
	case ActionExit:
		return "exit"
	case ActionSendPrimary:
		return "send_primary"
	case ActionSendSecondary:
		return "send_secondary"
	default:
		return "unknown"
	}
}
