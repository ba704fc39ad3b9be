package hook

import (
	"io"
	"log/slog"
	"testing"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestModifierStateUpdate(t *testing.T) {
	tests := []struct {
		name string
		vk   uint32
		want ModifierState
	}{
		{"generic ctrl", VK_CONTROL, ModifierState{Ctrl: true}},
		{"left ctrl", VK_LCONTROL, ModifierState{Ctrl: true}},
		{"right ctrl", VK_RCONTROL, ModifierState{Ctrl: true}},
		{"generic alt", VK_MENU, ModifierState{Alt: true}},
		{"left alt", VK_LMENU, ModifierState{Alt: true}},
		{"right alt", VK_RMENU, ModifierState{Alt: true}},
		{"generic shift", VK_SHIFT, ModifierState{Shift: true}},
		{"left shift", VK_LSHIFT, ModifierState{Shift: true}},
		{"right shift", VK_RSHIFT, ModifierState{Shift: true}},
		{"left win", VK_LWIN, ModifierState{Meta: true}},
		{"right win", VK_RWIN, ModifierState{Meta: true}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var m ModifierState
			m.update(tt.vk, true)
			if m != tt.want {
				t.Errorf("after down: got %+v, want %+v", m, tt.want)
			}
			m.update(tt.vk, false)
			if m != (ModifierState{}) {
				t.Errorf("after up: got %+v, want cleared", m)
			}
		})
	}
}

func TestModifierStateIgnoresNonModifiers(t *testing.T) {
	var m ModifierState
	m.update('R', true)
	m.update(0x1B, true) // Escape
	if m != (ModifierState{}) {
		t.Errorf("non-modifier keys changed state: %+v", m)
	}
}

func TestModifierStateString(t *testing.T) {
	if got := (ModifierState{}).String(); got != "none" {
		t.Errorf("empty state String() = %q, want %q", got, "none")
	}
	m := ModifierState{Ctrl: true, Alt: true}
	if got := m.String(); got != "ctrl+alt" {
		t.Errorf("String() = %q, want %q", got, "ctrl+alt")
	}
	all := ModifierState{Ctrl: true, Alt: true, Shift: true, Meta: true}
	if got := all.String(); got != "ctrl+alt+shift+meta" {
		t.Errorf("String() = %q, want %q", got, "ctrl+alt+shift+meta")
	}
}

func TestProcessInjectedEventsIgnored(t *testing.T) {
	var mods ModifierState
	called := false
	listeners := []Listener{
		ListenerFunc(func(ev KeyEvent, m ModifierState) bool {
			called = true
			return true
		}),
	}

	// An injected ctrl keydown must neither reach listeners nor touch
	// the modifier state.
	ev := KeyEvent{VirtualKey: VK_LCONTROL, ScanCode: 29, Down: true, Injected: true}
	if consumed := process(ev, &mods, listeners, testLogger()); consumed {
		t.Error("injected event was consumed")
	}
	if called {
		t.Error("injected event reached a listener")
	}
	if mods != (ModifierState{}) {
		t.Errorf("injected event changed modifier state: %+v", mods)
	}
}

func TestProcessDispatchOrderAndConsume(t *testing.T) {
	var order []int
	mk := func(id int, consume bool) Listener {
		return ListenerFunc(func(ev KeyEvent, m ModifierState) bool {
			order = append(order, id)
			return consume
		})
	}

	var mods ModifierState
	listeners := []Listener{mk(1, false), mk(2, true), mk(3, false)}
	ev := KeyEvent{VirtualKey: 'R', ScanCode: 19, Down: true}

	if consumed := process(ev, &mods, listeners, testLogger()); !consumed {
		t.Fatal("event was not consumed")
	}
	if len(order) != 2 || order[0] != 1 || order[1] != 2 {
		t.Errorf("dispatch order = %v, want [1 2]", order)
	}
}

func TestProcessListenerPanicRecovered(t *testing.T) {
	var mods ModifierState
	reached := false
	listeners := []Listener{
		ListenerFunc(func(ev KeyEvent, m ModifierState) bool {
			panic("listener blew up")
		}),
		ListenerFunc(func(ev KeyEvent, m ModifierState) bool {
			reached = true
			return true
		}),
	}

	ev := KeyEvent{VirtualKey: 'R', ScanCode: 19, Down: true}
	consumed := process(ev, &mods, listeners, testLogger())
	if !reached {
		t.Error("panic aborted dispatch to later listeners")
	}
	if !consumed {
		t.Error("second listener's consume was lost")
	}
}

func TestProcessPanickingListenerDoesNotConsume(t *testing.T) {
	var mods ModifierState
	listeners := []Listener{
		ListenerFunc(func(ev KeyEvent, m ModifierState) bool {
			panic("listener blew up")
		}),
	}

	ev := KeyEvent{VirtualKey: 'R', ScanCode: 19, Down: true}
	if consumed := process(ev, &mods, listeners, testLogger()); consumed {
		t.Error("panicking listener consumed the event")
	}
}

func TestProcessModifierUpdateBeforeDispatch(t *testing.T) {
	// A modifier key used as a trigger sees its own flag already set in
	// the snapshot it is dispatched with.
	var mods ModifierState
	var seen ModifierState
	listeners := []Listener{
		ListenerFunc(func(ev KeyEvent, m ModifierState) bool {
			seen = m
			return false
		}),
	}

	ev := KeyEvent{VirtualKey: VK_LSHIFT, ScanCode: 42, Down: true}
	process(ev, &mods, listeners, testLogger())
	if !seen.Shift {
		t.Error("shift keydown dispatched without its own flag set")
	}

	ev.Down = false
	process(ev, &mods, listeners, testLogger())
	if seen.Shift {
		t.Error("shift keyup dispatched with the flag still set")
	}
}

func TestProcessSnapshotIsolation(t *testing.T) {
	// Listeners get a value copy; mutating it must not leak into the
	// engine's state.
	var mods ModifierState
	listeners := []Listener{
		ListenerFunc(func(ev KeyEvent, m ModifierState) bool {
			m.Ctrl = true
			return false
		}),
	}

	ev := KeyEvent{VirtualKey: 'R', ScanCode: 19, Down: true}
	process(ev, &mods, listeners, testLogger())
	if mods.Ctrl {
		t.Error("listener mutation leaked into engine modifier state")
	}
}

func TestStateString(t *testing.T) {
	states := map[State]string{
		StateNotStarted: "not_started",
		StateStarting:   "starting",
		StateRunning:    "running",
		StateStopping:   "stopping",
		StateStopped:    "stopped",
		State(99):       "unknown",
	}
	for s, want := range states {
		if got := s.String(); got != want {
			t.Errorf("State(%d).String() = %q, want %q", int(s), got, want)
		}
	}
}
