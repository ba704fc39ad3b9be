// Package hook owns the system-wide low-level keyboard observer.
//
// The engine installs the hook on a dedicated OS-locked thread running
// its own message loop and decodes every raw key transition into a
// KeyEvent. Registered listeners are invoked synchronously on that
// thread; they decide whether the event is consumed (swallowed before
// other applications see it) or passed through. Events injected by
// software, including this process's own synthetic keystrokes, are
// passed through untouched and never reach listeners.
package hook

// KeyEvent is one raw key transition observed by the hook.
//
// Immutable once produced; every registered listener sees the same
// value for a given hardware transition.
type KeyEvent struct {
	// VirtualKey is the OS-layer logical key identifier (layout-dependent).
	VirtualKey uint32

	// ScanCode is the hardware-layer key identifier (layout-independent).
	ScanCode uint32

	// Flags carries the raw event flags as reported by the OS.
	Flags uint32

	// Down is true for keydown transitions, false for keyup.
	Down bool

	// Injected is true for events generated by software rather than
	// physical hardware.
	Injected bool
}

// Listener receives key events synchronously on the hook thread.
//
// Implementations must return quickly and must never block or call
// into GUI code; long work has to be handed off through a queue. The
// OS removes low-level hooks that stall its input pipeline.
type Listener interface {
	// HandleKeyEvent is called once per hardware key transition with an
	// immutable snapshot of the modifier state. Returning true consumes
	// the event: it is not delivered to other applications.
	HandleKeyEvent(ev KeyEvent, mods ModifierState) (consumed bool)
}

// ListenerFunc adapts a plain function to the Listener interface.
type ListenerFunc func(ev KeyEvent, mods ModifierState) bool

// HandleKeyEvent calls f.
func (f ListenerFunc) HandleKeyEvent(ev KeyEvent, mods ModifierState) bool {
	return f(ev, mods)
}
