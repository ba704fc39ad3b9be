//go:build windows

// Package focus Windows implementation.
//
// Uses GetForegroundWindow/SetForegroundWindow with the
// AttachThreadInput fallback: attach our input queue to the foreground
// and target threads, retry the activation, detach no matter what.
package focus

import (
	"unsafe"

	"golang.org/x/sys/windows"
)

var (
	user32   = windows.NewLazySystemDLL("user32.dll")
	kernel32 = windows.NewLazySystemDLL("kernel32.dll")

	procGetForegroundWindow      = user32.NewProc("GetForegroundWindow")
	procSetForegroundWindow      = user32.NewProc("SetForegroundWindow")
	procIsWindow                 = user32.NewProc("IsWindow")
	procIsWindowVisible          = user32.NewProc("IsWindowVisible")
	procGetWindowThreadProcessId = user32.NewProc("GetWindowThreadProcessId")
	procAttachThreadInput        = user32.NewProc("AttachThreadInput")
	procBringWindowToTop         = user32.NewProc("BringWindowToTop")
	procSetActiveWindow          = user32.NewProc("SetActiveWindow")
	procGetWindowTextW           = user32.NewProc("GetWindowTextW")
	procGetWindowTextLengthW     = user32.NewProc("GetWindowTextLengthW")
	procGetCurrentThreadId       = kernel32.NewProc("GetCurrentThreadId")
)

// Desktop implements the focus operations against the live desktop.
type Desktop struct{}

func (Desktop) Foreground() Handle          { return Foreground() }
func (Desktop) IsVisible(h Handle) bool     { return IsVisible(h) }
func (Desktop) SetForeground(h Handle) bool { return SetForeground(h) }
func (Desktop) Title(h Handle) string       { return Title(h) }

// Foreground returns the current foreground window, 0 when none (the
// OS reports none during desktop transitions).
func Foreground() Handle {
	hwnd, _, _ := procGetForegroundWindow.Call()
	return Handle(hwnd)
}

// IsWindow reports whether h identifies an existing window.
func IsWindow(h Handle) bool {
	if h == 0 {
		return false
	}
	r, _, _ := procIsWindow.Call(uintptr(h))
	return r != 0
}

// IsVisible reports whether h is a visible window.
func IsVisible(h Handle) bool {
	if h == 0 {
		return false
	}
	r, _, _ := procIsWindowVisible.Call(uintptr(h))
	return r != 0
}

// SetForeground makes h the foreground window, best-effort. When the
// direct call does not take (the OS refuses focus changes depending on
// timing and foreground-lock rules), it attaches the calling thread's
// input processing to the foreground and target threads, retries, then
// detaches. Returns true only if the foreground window afterwards
// equals h.
func SetForeground(h Handle) bool {
	if !IsWindow(h) {
		return false
	}
	if Foreground() == h {
		return true
	}
	if r, _, _ := procSetForegroundWindow.Call(uintptr(h)); r != 0 && Foreground() == h {
		return true
	}

	fg := Foreground()
	thisTID, _, _ := procGetCurrentThreadId.Call()
	fgTID := windowThreadID(fg)
	targetTID := windowThreadID(h)

	tids := []uintptr{fgTID}
	if targetTID != fgTID {
		tids = append(tids, targetTID)
	}

	attached := make([]uintptr, 0, 2)
	for _, tid := range tids {
		if tid == 0 || tid == thisTID {
			continue
		}
		if r, _, _ := procAttachThreadInput.Call(thisTID, tid, 1); r != 0 {
			attached = append(attached, tid)
		}
	}

	if r, _, _ := procSetForegroundWindow.Call(uintptr(h)); r != 0 {
		procBringWindowToTop.Call(uintptr(h))
		procSetActiveWindow.Call(uintptr(h))
	}

	// Attach and detach stay paired even when the retry fails.
	for _, tid := range attached {
		procAttachThreadInput.Call(thisTID, tid, 0)
	}

	return Foreground() == h
}

// Title returns the caption of h, empty when the window is gone or
// untitled.
func Title(h Handle) string {
	if h == 0 {
		return ""
	}
	length, _, _ := procGetWindowTextLengthW.Call(uintptr(h))
	if length == 0 {
		return ""
	}
	buf := make([]uint16, length+1)
	n, _, _ := procGetWindowTextW.Call(uintptr(h), uintptr(unsafe.Pointer(&buf[0])), length+1)
	if n == 0 {
		return ""
	}
	return windows.UTF16ToString(buf[:n])
}

// windowThreadID returns the id of the thread that created h.
func windowThreadID(h Handle) uintptr {
	if h == 0 {
		return 0
	}
	var pid uint32
	tid, _, _ := procGetWindowThreadProcessId.Call(uintptr(h), uintptr(unsafe.Pointer(&pid)))
	return tid
}
