package hotkey

import (
	"context"
	"testing"

	"rxoverlay/internal/hook"
)

// fakeHook records listeners and lifecycle calls without any OS hook.
type fakeHook struct {
	listeners []hook.Listener
	started   int
	stopped   int
	startErr  error
}

func (f *fakeHook) AddListener(l hook.Listener) { f.listeners = append(f.listeners, l) }
func (f *fakeHook) Start(ctx context.Context) error {
	if f.startErr != nil {
		return f.startErr
	}
	f.started++
	return nil
}
func (f *fakeHook) Stop() error {
	f.stopped++
	return nil
}

// feed pushes an event through every registered listener the way the
// hook thread would, stopping at the first consumer.
func (f *fakeHook) feed(ev hook.KeyEvent, mods hook.ModifierState) bool {
	for _, l := range f.listeners {
		if l.HandleKeyEvent(ev, mods) {
			return true
		}
	}
	return false
}

func TestManagerEmitsMatchedActions(t *testing.T) {
	fh := &fakeHook{}
	var got []Action
	m := NewManager(fh, testBindings(), func(a Action) { got = append(got, a) })

	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if len(fh.listeners) != 1 {
		t.Fatalf("registered %d listeners, want 1", len(fh.listeners))
	}

	if !fh.feed(down(19), hook.ModifierState{}) {
		t.Error("matched keydown was not consumed")
	}
	if fh.feed(down(19), hook.ModifierState{}) {
		t.Error("held-key repeat was consumed")
	}
	if fh.feed(up(19), hook.ModifierState{}) {
		t.Error("keyup was consumed")
	}

	if len(got) != 1 || got[0] != ActionSendPrimary {
		t.Errorf("emitted %v, want [send_primary]", got)
	}
}

func TestManagerUnmatchedEventsPassThrough(t *testing.T) {
	fh := &fakeHook{}
	m := NewManager(fh, testBindings(), func(Action) { t.Error("unexpected emit") })
	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	if fh.feed(down(7), hook.ModifierState{}) {
		t.Error("unbound scan code was consumed")
	}
}

func TestManagerStartStopIdempotent(t *testing.T) {
	fh := &fakeHook{}
	m := NewManager(fh, testBindings(), nil)

	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("second Start: %v", err)
	}
	if fh.started != 1 {
		t.Errorf("hook started %d times, want 1", fh.started)
	}
	if len(fh.listeners) != 1 {
		t.Errorf("listener registered %d times, want 1", len(fh.listeners))
	}

	if err := m.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if err := m.Stop(); err != nil {
		t.Fatalf("second Stop: %v", err)
	}
	if fh.stopped != 1 {
		t.Errorf("hook stopped %d times, want 1", fh.stopped)
	}
}

func TestManagerStartErrorPassesThrough(t *testing.T) {
	fh := &fakeHook{startErr: hook.ErrHookInstall}
	m := NewManager(fh, testBindings(), nil)

	if err := m.Start(context.Background()); err != hook.ErrHookInstall {
		t.Errorf("Start error = %v, want ErrHookInstall", err)
	}
}

func TestManagerRestartDoesNotDuplicateListeners(t *testing.T) {
	fh := &fakeHook{}
	fired := 0
	m := NewManager(fh, testBindings(), func(Action) { fired++ })

	ctx := context.Background()
	if err := m.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := m.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if err := m.Start(ctx); err != nil {
		t.Fatalf("restart: %v", err)
	}

	fh.feed(down(19), hook.ModifierState{})
	if fired != 1 {
		t.Errorf("one keydown fired %d emits after restart, want 1", fired)
	}
}

func TestManagerObserverSeesEveryEvent(t *testing.T) {
	fh := &fakeHook{}
	m := NewManager(fh, testBindings(), nil)

	var seen, consumed int
	m.Observe(func(ok bool) {
		seen++
		if ok {
			consumed++
		}
	})
	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	fh.feed(down(19), hook.ModifierState{}) // matched
	fh.feed(down(7), hook.ModifierState{})  // unbound
	fh.feed(up(19), hook.ModifierState{})   // keyup, never consumed

	if seen != 3 {
		t.Errorf("observer saw %d events, want 3", seen)
	}
	if consumed != 1 {
		t.Errorf("observer counted %d consumed, want 1", consumed)
	}
}

func TestManagerSetBindings(t *testing.T) {
	fh := &fakeHook{}
	var got []Action
	m := NewManager(fh, testBindings(), func(a Action) { got = append(got, a) })
	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	m.SetBindings(Bindings{SendPrimary: Binding{ScanCode: 30}})

	if fh.feed(down(19), hook.ModifierState{}) {
		t.Error("old binding still consumed after rebind")
	}
	if !fh.feed(down(30), hook.ModifierState{}) {
		t.Error("new binding not consumed after rebind")
	}
	if len(got) != 1 || got[0] != ActionSendPrimary {
		t.Errorf("emitted %v, want [send_primary]", got)
	}
}
