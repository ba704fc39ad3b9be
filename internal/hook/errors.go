package hook

import "errors"

// Sentinel errors surfaced by Engine.Start. ErrHookInstall and
// ErrHookInitTimeout both mean global hotkeys are unavailable for this
// session; callers should degrade and keep running, never crash.
var (
	// ErrHookInstall means the OS rejected the hook installation call.
	ErrHookInstall = errors.New("keyboard hook installation failed")

	// ErrHookInitTimeout means the hook thread did not signal readiness
	// within the startup deadline.
	ErrHookInitTimeout = errors.New("keyboard hook thread did not initialize in time")

	// ErrAlreadyRunning means a hook is already installed by this
	// process. At most one installation exists at a time.
	ErrAlreadyRunning = errors.New("keyboard hook already running")
)
