package hotkey

import (
	"testing"

	"rxoverlay/internal/hook"
)

func testBindings() Bindings {
	return Bindings{
		Toggle:        Binding{Mods: ModCtrl | ModAlt, ScanCode: 42},
		Exit:          Binding{Mods: ModCtrl | ModAlt, ScanCode: 41},
		SendPrimary:   Binding{ScanCode: 19},
		SendSecondary: Binding{ScanCode: 45},
	}
}

func down(scan uint32) hook.KeyEvent {
	return hook.KeyEvent{ScanCode: scan, Down: true}
}

func up(scan uint32) hook.KeyEvent {
	return hook.KeyEvent{ScanCode: scan, Down: false}
}

func TestMatcherFiresOncePerPress(t *testing.T) {
	// Holding a key repeats its keydown; the action must fire exactly
	// once until the key is released.
	m := NewMatcher(testBindings())

	events := []hook.KeyEvent{down(19), down(19), up(19)}
	fired := 0
	for _, ev := range events {
		if action, ok := m.HandleKeyEvent(ev, hook.ModifierState{}); ok {
			if action != ActionSendPrimary {
				t.Fatalf("matched %v, want %v", action, ActionSendPrimary)
			}
			fired++
		}
	}
	if fired != 1 {
		t.Errorf("action fired %d times, want 1", fired)
	}
}

func TestMatcherRefiresAfterRelease(t *testing.T) {
	m := NewMatcher(testBindings())

	fired := 0
	for _, ev := range []hook.KeyEvent{down(19), up(19), down(19), up(19)} {
		if _, ok := m.HandleKeyEvent(ev, hook.ModifierState{}); ok {
			fired++
		}
	}
	if fired != 2 {
		t.Errorf("two presses fired %d actions, want 2", fired)
	}
}

func TestMatcherKeyupNeverFires(t *testing.T) {
	m := NewMatcher(testBindings())

	// A keyup for a scan code never seen as keydown is a no-op.
	if _, ok := m.HandleKeyEvent(up(19), hook.ModifierState{}); ok {
		t.Error("keyup fired an action")
	}
	// And it must not have poisoned the pressed set.
	if _, ok := m.HandleKeyEvent(down(19), hook.ModifierState{}); !ok {
		t.Error("keydown after stray keyup did not fire")
	}
}

func TestMatcherModifierMismatch(t *testing.T) {
	m := NewMatcher(testBindings())

	// send_primary requires no modifiers; held ctrl must block it.
	if _, ok := m.HandleKeyEvent(down(19), hook.ModifierState{Ctrl: true}); ok {
		t.Error("matched with an extra modifier held")
	}
}

func TestMatcherPriorityOrder(t *testing.T) {
	// Two bindings sharing one chord: the higher-priority action wins.
	b := testBindings()
	b.Exit = b.Toggle
	m := NewMatcher(b)

	action, ok := m.HandleKeyEvent(down(42), hook.ModifierState{Ctrl: true, Alt: true})
	if !ok {
		t.Fatal("duplicate chord did not match at all")
	}
	if action != ActionToggle {
		t.Errorf("matched %v, want %v (toggle outranks exit)", action, ActionToggle)
	}
}

func TestMatcherOneActionPerKeydown(t *testing.T) {
	// Even with several bindings, a single keydown yields at most one
	// action.
	b := Bindings{
		Toggle:      Binding{ScanCode: 19},
		SendPrimary: Binding{ScanCode: 19},
	}
	m := NewMatcher(b)

	matched := 0
	if _, ok := m.HandleKeyEvent(down(19), hook.ModifierState{}); ok {
		matched++
	}
	if matched != 1 {
		t.Fatalf("keydown matched %d actions, want 1", matched)
	}
}

func TestMatcherModifierTriggerChord(t *testing.T) {
	// A modifier key can be the trigger when its own flag is part of
	// the required set: shift alone fires a {SHIFT, sc42} binding
	// because the hook updates state before dispatch.
	b := Bindings{
		Toggle: Binding{Mods: ModShift, ScanCode: 42},
	}
	m := NewMatcher(b)

	action, ok := m.HandleKeyEvent(down(42), hook.ModifierState{Shift: true})
	if !ok || action != ActionToggle {
		t.Errorf("shift-as-trigger chord did not match: action=%v ok=%v", action, ok)
	}
}

func TestMatcherUnsetBindingsNeverFire(t *testing.T) {
	m := NewMatcher(Bindings{})

	for scan := uint32(0); scan < 64; scan++ {
		if _, ok := m.HandleKeyEvent(down(scan), hook.ModifierState{}); ok {
			t.Fatalf("unset bindings matched scan code %d", scan)
		}
	}
}

func TestMatcherReset(t *testing.T) {
	m := NewMatcher(testBindings())

	if _, ok := m.HandleKeyEvent(down(19), hook.ModifierState{}); !ok {
		t.Fatal("setup keydown did not fire")
	}
	m.Reset()
	// After a reset the held key is forgotten; the next keydown fires
	// again.
	if _, ok := m.HandleKeyEvent(down(19), hook.ModifierState{}); !ok {
		t.Error("keydown after Reset did not fire")
	}
}
