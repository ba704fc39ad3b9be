//go:build windows

// Package hook Windows keyboard hook implementation.
//
// Installs a WH_KEYBOARD_LL hook from a dedicated OS-locked thread
// running a GetMessageW loop. Low-level hook callbacks are delivered
// through that loop, so the thread must keep pumping messages; the
// only supported way to unblock it from outside is to post WM_QUIT at
// its captured thread id.
package hook

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"sync/atomic"
	"syscall"
	"time"
	"unsafe"

	"golang.org/x/sys/windows"
)

var (
	user32   = windows.NewLazySystemDLL("user32.dll")
	kernel32 = windows.NewLazySystemDLL("kernel32.dll")

	procSetWindowsHookExW   = user32.NewProc("SetWindowsHookExW")
	procUnhookWindowsHookEx = user32.NewProc("UnhookWindowsHookEx")
	procCallNextHookEx      = user32.NewProc("CallNextHookEx")
	procGetMessageW         = user32.NewProc("GetMessageW")
	procTranslateMessage    = user32.NewProc("TranslateMessage")
	procDispatchMessageW    = user32.NewProc("DispatchMessageW")
	procPostThreadMessageW  = user32.NewProc("PostThreadMessageW")
	procGetModuleHandleW    = kernel32.NewProc("GetModuleHandleW")
	procGetCurrentThreadId  = kernel32.NewProc("GetCurrentThreadId")
)

const (
	WH_KEYBOARD_LL = 13
	HC_ACTION      = 0

	WM_KEYDOWN    = 0x0100
	WM_KEYUP      = 0x0101
	WM_SYSKEYDOWN = 0x0104
	WM_SYSKEYUP   = 0x0105
	WM_QUIT       = 0x0012

	LLKHF_LOWER_IL_INJECTED = 0x00000002
	LLKHF_INJECTED          = 0x00000010
)

// KBDLLHOOKSTRUCT is the event payload delivered to WH_KEYBOARD_LL hooks.
type KBDLLHOOKSTRUCT struct {
	VkCode      uint32
	ScanCode    uint32
	Flags       uint32
	Time        uint32
	DwExtraInfo uintptr
}

// POINT is the Win32 POINT struct.
type POINT struct {
	X, Y int32
}

// MSG is the Win32 message struct used by the hook thread's loop.
type MSG struct {
	Hwnd    uintptr
	Message uint32
	WParam  uintptr
	LParam  uintptr
	Time    uint32
	Pt      POINT
}

const (
	// initTimeout bounds how long Start waits for the hook thread's
	// readiness signal.
	initTimeout = 2 * time.Second

	// stopTimeout bounds how long Stop waits for the hook thread to
	// exit after posting WM_QUIT.
	stopTimeout = 5 * time.Second
)

var (
	// activeEngine is the engine bound to the installed hook, nil when
	// none is installed. At most one installation exists per process at
	// a time.
	activeEngine atomic.Pointer[Engine]

	// The callback trampoline is created once and reused across engine
	// restarts; syscall.NewCallback allocations are never released.
	callbackOnce sync.Once
	callbackAddr uintptr
)

func hookCallback() uintptr {
	callbackOnce.Do(func() {
		callbackAddr = syscall.NewCallback(lowLevelKeyboardProc)
	})
	return callbackAddr
}

// Engine owns the low-level keyboard hook and its message-loop thread.
type Engine struct {
	mu        sync.RWMutex
	state     State
	listeners []Listener
	threadID  uint32
	ready     chan error
	done      chan struct{}

	logger *slog.Logger

	// Hook-thread-confined: only the message-loop thread and the hook
	// callback, which runs on that thread, touch these.
	hookHandle uintptr
	mods       ModifierState
}

// NewEngine creates a hook engine. Nothing is installed until Start.
func NewEngine() *Engine {
	return &Engine{
		logger: slog.Default().With("component", "hook"),
	}
}

// AddListener registers a listener. Listeners run synchronously on the
// hook thread in registration order; the first one to consume an event
// wins.
func (e *Engine) AddListener(l Listener) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.listeners = append(e.listeners, l)
}

// State returns the engine's lifecycle state.
func (e *Engine) State() State {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.state
}

// Start spawns the hook thread, installs the hook there, and blocks
// until the thread signals readiness or the startup deadline passes.
// It fails with ErrHookInstall when the OS rejects the installation,
// ErrHookInitTimeout when readiness never arrives, and
// ErrAlreadyRunning when this or another engine already holds the
// hook. ctx only bounds the readiness wait.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	switch e.state {
	case StateStarting, StateRunning, StateStopping:
		e.mu.Unlock()
		return ErrAlreadyRunning
	}
	if !activeEngine.CompareAndSwap(nil, e) {
		e.mu.Unlock()
		return ErrAlreadyRunning
	}
	e.state = StateStarting
	e.threadID = 0
	e.mods = ModifierState{}
	e.ready = make(chan error, 1)
	e.done = make(chan struct{})
	ready, done := e.ready, e.done
	e.mu.Unlock()

	go e.run()

	timer := time.NewTimer(initTimeout)
	defer timer.Stop()

	select {
	case err := <-ready:
		if err != nil {
			<-done
			e.mu.Lock()
			e.state = StateStopped
			e.mu.Unlock()
			activeEngine.CompareAndSwap(e, nil)
			return err
		}
		e.mu.Lock()
		e.state = StateRunning
		e.mu.Unlock()
		return nil
	case <-timer.C:
		e.abortStart()
		return ErrHookInitTimeout
	case <-ctx.Done():
		e.abortStart()
		return ctx.Err()
	}
}

// abortStart is the failure path for a start that never became ready:
// best-effort wake the thread, mark the engine stopped, and release
// the process-wide hook slot. A thread that is still alive exits on
// its first message retrieval.
func (e *Engine) abortStart() {
	e.mu.Lock()
	tid := e.threadID
	e.state = StateStopped
	e.mu.Unlock()

	if tid != 0 {
		procPostThreadMessageW.Call(uintptr(tid), WM_QUIT, 0, 0)
	}
	activeEngine.CompareAndSwap(e, nil)
}

// Stop posts WM_QUIT at the hook thread, waits bounded for it to
// finish (the thread unhooks on its way out), and releases the hook
// slot. No-op unless the engine is running.
func (e *Engine) Stop() error {
	e.mu.Lock()
	if e.state != StateRunning {
		e.mu.Unlock()
		return nil
	}
	e.state = StateStopping
	tid := e.threadID
	done := e.done
	e.mu.Unlock()

	if tid != 0 {
		// The only supported way to unblock GetMessageW from another
		// thread.
		procPostThreadMessageW.Call(uintptr(tid), WM_QUIT, 0, 0)
	}

	var err error
	select {
	case <-done:
	case <-time.After(stopTimeout):
		err = fmt.Errorf("hook thread did not exit within %s", stopTimeout)
		e.logger.Warn("hook thread join timed out", "timeout", stopTimeout)
	}

	e.mu.Lock()
	e.state = StateStopped
	e.threadID = 0
	e.mu.Unlock()
	activeEngine.CompareAndSwap(e, nil)

	e.logger.Info("keyboard hook stopped")
	return err
}

// run is the hook thread's main. The hook and its message loop must
// live on a single OS thread.
func (e *Engine) run() {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	defer close(e.done)

	tid, _, _ := procGetCurrentThreadId.Call()
	e.mu.Lock()
	e.threadID = uint32(tid)
	e.mu.Unlock()

	hmod, _, _ := procGetModuleHandleW.Call(0)

	hhook, _, callErr := procSetWindowsHookExW.Call(
		WH_KEYBOARD_LL,
		hookCallback(),
		hmod,
		0, // all threads
	)
	if hhook == 0 {
		e.ready <- fmt.Errorf("%w: SetWindowsHookExW: %v", ErrHookInstall, callErr)
		return
	}
	e.hookHandle = hhook
	defer func() {
		procUnhookWindowsHookEx.Call(hhook)
		e.hookHandle = 0
		e.logger.Debug("keyboard hook removed")
	}()

	e.logger.Info("keyboard hook installed", "thread_id", uint32(tid))
	e.ready <- nil

	var msg MSG
	for {
		ret, _, callErr := procGetMessageW.Call(uintptr(unsafe.Pointer(&msg)), 0, 0, 0)
		switch int32(ret) {
		case 0: // WM_QUIT
			return
		case -1:
			e.logger.Error("hook message loop error", "error", callErr)
			return
		}
		procTranslateMessage.Call(uintptr(unsafe.Pointer(&msg)))
		procDispatchMessageW.Call(uintptr(unsafe.Pointer(&msg)))
	}
}

// handleEvent runs on the hook thread for every decoded key transition.
func (e *Engine) handleEvent(ev KeyEvent) bool {
	e.mu.RLock()
	listeners := e.listeners
	e.mu.RUnlock()
	return process(ev, &e.mods, listeners, e.logger)
}

// lowLevelKeyboardProc is the WH_KEYBOARD_LL callback. It runs on the
// hook thread inside the OS input pipeline: decode, dispatch, get out.
// Returning 1 swallows the event; everything else must come from
// CallNextHookEx.
func lowLevelKeyboardProc(nCode int, wParam, lParam uintptr) uintptr {
	e := activeEngine.Load()
	if e != nil && int32(nCode) == HC_ACTION {
		switch wParam {
		case WM_KEYDOWN, WM_SYSKEYDOWN, WM_KEYUP, WM_SYSKEYUP:
			kb := (*KBDLLHOOKSTRUCT)(unsafe.Pointer(lParam))
			ev := KeyEvent{
				VirtualKey: kb.VkCode,
				ScanCode:   kb.ScanCode,
				Flags:      kb.Flags,
				Down:       wParam == WM_KEYDOWN || wParam == WM_SYSKEYDOWN,
				Injected:   kb.Flags&(LLKHF_INJECTED|LLKHF_LOWER_IL_INJECTED) != 0,
			}
			if e.handleEvent(ev) {
				return 1
			}
		}
	}

	var hhook uintptr
	if e != nil {
		hhook = e.hookHandle
	}
	ret, _, _ := procCallNextHookEx.Call(hhook, uintptr(nCode), wParam, lParam)
	return ret
}
