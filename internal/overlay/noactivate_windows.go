//go:build windows

package overlay

import (
	"sync"
	"syscall"

	"golang.org/x/sys/windows"
)

// Non-activating window support. The overlay must be clickable without
// ever becoming the foreground window, or every button press would
// move keyboard focus away from the application the user is typing in.
//
// Uses WS_EX_NOACTIVATE plus a window-procedure subclass that answers
// WM_MOUSEACTIVATE with MA_NOACTIVATE, the combination that keeps both
// programmatic activation and click activation away.

var (
	user32 = windows.NewLazySystemDLL("user32.dll")

	procGetWindowLongPtrW = user32.NewProc("GetWindowLongPtrW")
	procSetWindowLongPtrW = user32.NewProc("SetWindowLongPtrW")
	procCallWindowProcW   = user32.NewProc("CallWindowProcW")
	procDefWindowProcW    = user32.NewProc("DefWindowProcW")
	procShowWindow        = user32.NewProc("ShowWindow")
	procSetWindowPos      = user32.NewProc("SetWindowPos")
	procReleaseCapture    = user32.NewProc("ReleaseCapture")
	procSendMessageW      = user32.NewProc("SendMessageW")
)

const (
	GWL_EXSTYLE  = -20
	GWLP_WNDPROC = -4

	WS_EX_NOACTIVATE = 0x08000000

	WM_MOUSEACTIVATE = 0x0021
	MA_NOACTIVATE    = 3

	WM_NCLBUTTONDOWN = 0x00A1
	HTCAPTION        = 2

	SW_HIDE           = 0
	SW_SHOWNOACTIVATE = 4
	SWP_NOSIZE        = 0x0001
	SWP_NOMOVE        = 0x0002
	SWP_NOZORDER      = 0x0004
	SWP_NOACTIVATE    = 0x0010
	SWP_FRAMECHANGED  = 0x0020
	SWP_SHOWWINDOW    = 0x0040

	HWND_TOPMOST   = ^uintptr(0)     // (HWND)-1
	HWND_NOTOPMOST = ^uintptr(0) - 1 // (HWND)-2
)

var (
	subclassMu   sync.Mutex
	subclassOrig = make(map[uintptr]uintptr) // hwnd -> original wndproc

	subclassOnce sync.Once
	subclassAddr uintptr
)

func subclassCallback() uintptr {
	subclassOnce.Do(func() {
		subclassAddr = syscall.NewCallback(noActivateProc)
	})
	return subclassAddr
}

// noActivateProc short-circuits WM_MOUSEACTIVATE and chains everything
// else to the window's original procedure.
func noActivateProc(hwnd uintptr, msg uint32, wParam, lParam uintptr) uintptr {
	if msg == WM_MOUSEACTIVATE {
		return MA_NOACTIVATE
	}

	subclassMu.Lock()
	orig := subclassOrig[hwnd]
	subclassMu.Unlock()

	if orig == 0 {
		ret, _, _ := procDefWindowProcW.Call(hwnd, uintptr(msg), wParam, lParam)
		return ret
	}
	ret, _, _ := procCallWindowProcW.Call(orig, hwnd, uintptr(msg), wParam, lParam)
	return ret
}

// MakeNonActivating marks hwnd as a window that never takes keyboard
// focus: it adds WS_EX_NOACTIVATE, refreshes the frame, and subclasses
// the window procedure so mouse clicks answer MA_NOACTIVATE. Calling
// it again for the same window is a no-op.
func MakeNonActivating(hwnd uintptr) {
	if hwnd == 0 {
		return
	}

	ex, _, _ := procGetWindowLongPtrW.Call(hwnd, gwlIndex(GWL_EXSTYLE))
	procSetWindowLongPtrW.Call(hwnd, gwlIndex(GWL_EXSTYLE), ex|WS_EX_NOACTIVATE)
	procSetWindowPos.Call(hwnd, 0, 0, 0, 0, 0,
		SWP_NOMOVE|SWP_NOSIZE|SWP_NOZORDER|SWP_NOACTIVATE|SWP_FRAMECHANGED)

	subclassMu.Lock()
	defer subclassMu.Unlock()
	if _, ok := subclassOrig[hwnd]; ok {
		return
	}
	orig, _, _ := procSetWindowLongPtrW.Call(hwnd, gwlIndex(GWLP_WNDPROC), subclassCallback())
	subclassOrig[hwnd] = orig
}

// restoreWndProc undoes the subclass. It must run before the window is
// destroyed so a recycled handle value never picks up a stale entry.
func restoreWndProc(hwnd uintptr) {
	subclassMu.Lock()
	defer subclassMu.Unlock()

	orig, ok := subclassOrig[hwnd]
	if !ok {
		return
	}
	procSetWindowLongPtrW.Call(hwnd, gwlIndex(GWLP_WNDPROC), orig)
	delete(subclassOrig, hwnd)
}

// ShowNoActivate shows hwnd without activating it and pins it into (or
// releases it from) the topmost band.
func ShowNoActivate(hwnd uintptr, topmost bool) {
	procShowWindow.Call(hwnd, SW_SHOWNOACTIVATE)

	insertAfter := HWND_NOTOPMOST
	if topmost {
		insertAfter = HWND_TOPMOST
	}
	procSetWindowPos.Call(hwnd, insertAfter, 0, 0, 0, 0,
		SWP_NOMOVE|SWP_NOSIZE|SWP_NOACTIVATE|SWP_SHOWWINDOW)
}

// BeginSystemMove starts the OS-managed move loop for hwnd, as if the
// user grabbed a title bar. The call returns after the drag finishes.
func BeginSystemMove(hwnd uintptr) {
	procReleaseCapture.Call()
	procSendMessageW.Call(hwnd, WM_NCLBUTTONDOWN, HTCAPTION, 0)
}

// gwlIndex converts a negative Get/SetWindowLongPtr index to the
// uintptr the raw call expects.
func gwlIndex(i int32) uintptr {
	return uintptr(int64(i))
}
