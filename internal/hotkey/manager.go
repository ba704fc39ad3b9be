package hotkey

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"rxoverlay/internal/hook"
)

// Hook is the part of the hook engine the manager drives. *hook.Engine
// satisfies it.
type Hook interface {
	AddListener(hook.Listener)
	Start(ctx context.Context) error
	Stop() error
}

// Manager glues the keyboard hook to the matcher. It registers itself
// as a hook listener, consumes matched keydowns, and hands the
// resulting Action to an emit callback.
//
// The emit callback runs on the hook thread: it must only enqueue and
// return, never block or touch GUI state.
type Manager struct {
	hk      Hook
	matcher atomic.Pointer[Matcher]
	emit    func(Action)
	observe func(consumed bool)
	logger  *slog.Logger

	mu         sync.Mutex
	running    bool
	registered bool
}

// NewManager creates a manager over the given hook and bindings.
func NewManager(hk Hook, b Bindings, emit func(Action)) *Manager {
	m := &Manager{
		hk:     hk,
		emit:   emit,
		logger: slog.Default().With("component", "hotkey"),
	}
	m.matcher.Store(NewMatcher(b))
	return m
}

// Observe registers a callback invoked for every key event the manager
// sees, with whether a binding consumed it. It runs on the hook thread
// and must only count and return. Set before Start.
func (m *Manager) Observe(fn func(consumed bool)) {
	m.observe = fn
}

// Start registers the manager with the hook (once) and starts the
// hook. Errors from hook startup pass through unchanged so callers can
// test for hook.ErrHookInstall and hook.ErrHookInitTimeout.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return nil
	}

	if !m.registered {
		m.hk.AddListener(hook.ListenerFunc(m.handleKeyEvent))
		m.registered = true
	}

	if err := m.hk.Start(ctx); err != nil {
		return err
	}

	m.running = true
	m.logger.Info("hotkey manager started")
	return nil
}

// Stop stops the hook and clears the debounce state.
func (m *Manager) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.running {
		return nil
	}

	err := m.hk.Stop()
	// The hook thread is joined; no callback can be in flight.
	m.matcher.Load().Reset()
	m.running = false
	m.logger.Info("hotkey manager stopped")
	return err
}

// SetBindings swaps in a new binding set, e.g. after a config reload.
// The debounce state starts fresh; safe to call while running.
func (m *Manager) SetBindings(b Bindings) {
	m.matcher.Store(NewMatcher(b))
	m.logger.Info("hotkey bindings updated",
		"toggle", b.Toggle.String(),
		"exit", b.Exit.String(),
		"send_primary", b.SendPrimary.String(),
		"send_secondary", b.SendSecondary.String(),
	)
}

// handleKeyEvent is the hook listener. It runs on the hook thread.
func (m *Manager) handleKeyEvent(ev hook.KeyEvent, mods hook.ModifierState) bool {
	action, ok := m.matcher.Load().HandleKeyEvent(ev, mods)
	if m.observe != nil {
		m.observe(ok)
	}
	if !ok {
		return false
	}

	m.logger.Debug("hotkey matched",
		"action", action.String(),
		"scan_code", ev.ScanCode,
		"mods", mods.String(),
	)

	if m.emit != nil {
		m.emit(action)
	}
	return true
}
