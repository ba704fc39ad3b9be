//go:build windows

package overlay

import (
	"unsafe"

	"golang.org/x/sys/windows"
)

// The restore widget is a small always-topmost chip left behind when
// the overlay is minimized. Clicking anywhere on it brings the full
// overlay back. It is created fresh on every minimize and destroyed on
// restore, so a stale handle can never shadow a recycled window.

// createWidget places the restore widget at the overlay's corner and
// shows it without activation.
func (w *Window) createWidget() {
	if w.widget != 0 {
		ShowNoActivate(w.widget, true)
		return
	}

	x, y := w.Position()

	cls, err := windows.UTF16PtrFromString(widgetClassName)
	if err != nil {
		w.logger.Warn("restore widget class name", "error", err)
		return
	}

	hwnd, _, callErr := procCreateWindowExW.Call(
		WS_EX_TOOLWINDOW|WS_EX_LAYERED,
		uintptr(unsafe.Pointer(cls)),
		0,
		WS_POPUP,
		uintptr(x), uintptr(y),
		widgetWidth, widgetHeight,
		0, 0, classHInst, 0,
	)
	if hwnd == 0 {
		w.logger.Warn("restore widget creation failed", "error", callErr)
		return
	}

	w.widget = hwnd
	registerWindow(hwnd, w)
	MakeNonActivating(hwnd)
	procSetLayeredWindowAttributes.Call(hwnd, 0, widgetAlpha, LWA_ALPHA)
	ShowNoActivate(hwnd, true)
}

func (w *Window) destroyWidget() {
	if w.widget == 0 {
		return
	}
	restoreWndProc(w.widget)
	unregisterWindow(w.widget)
	procDestroyWindow.Call(w.widget)
	w.widget = 0
}

func (w *Window) widgetProc(hwnd uintptr, msg uint32, wParam, lParam uintptr) uintptr {
	switch msg {
	case WM_PAINT:
		w.paintWidget(hwnd)
		return 0
	case WM_ERASEBKGND:
		return 1
	case WM_LBUTTONUP:
		if cb := w.cfg.OnRestore; cb != nil {
			cb()
		}
		return 0
	}
	ret, _, _ := procDefWindowProcW.Call(hwnd, uintptr(msg), wParam, lParam)
	return ret
}

func (w *Window) paintWidget(hwnd uintptr) {
	var ps PAINTSTRUCT
	hdc, _, _ := procBeginPaint.Call(hwnd, uintptr(unsafe.Pointer(&ps)))
	if hdc == 0 {
		return
	}
	defer procEndPaint.Call(hwnd, uintptr(unsafe.Pointer(&ps)))

	var rc RECT
	procGetClientRect.Call(hwnd, uintptr(unsafe.Pointer(&rc)))

	fillRect(hdc, &rc, w.theme.button)
	frameRect(hdc, &rc, w.theme.stroke)

	procSetBkMode.Call(hdc, TRANSPARENT)
	oldFont, _, _ := procSelectObject.Call(hdc, w.font)
	procSetTextColor.Call(hdc, uintptr(w.theme.text))
	drawCenteredText(hdc, "˄", &rc)
	procSelectObject.Call(hdc, oldFont)
}
