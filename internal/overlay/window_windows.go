//go:build windows

// Package overlay Windows surface implementation.
//
// One layered popup draws the whole control strip itself: the buttons
// are hit-tested rectangles, not child controls, because the standard
// BUTTON class grabs keyboard focus on click and would defeat
// WS_EX_NOACTIVATE.
//
// Uses CreateWindowExW and SetLayeredWindowAttributes for the popup,
// SetTimer for the drain and poll ticks, and DwmSetWindowAttribute
// for best-effort rounded corners and dark mode.
package overlay

import (
	"fmt"
	"log/slog"
	"sync"
	"syscall"
	"time"
	"unicode/utf16"
	"unsafe"

	"golang.org/x/sys/windows"

	"rxoverlay/internal/focus"
)

var (
	gdi32    = windows.NewLazySystemDLL("gdi32.dll")
	dwmapi   = windows.NewLazySystemDLL("dwmapi.dll")
	kernel32 = windows.NewLazySystemDLL("kernel32.dll")

	procRegisterClassExW           = user32.NewProc("RegisterClassExW")
	procCreateWindowExW            = user32.NewProc("CreateWindowExW")
	procDestroyWindow              = user32.NewProc("DestroyWindow")
	procGetMessageW                = user32.NewProc("GetMessageW")
	procTranslateMessage           = user32.NewProc("TranslateMessage")
	procDispatchMessageW           = user32.NewProc("DispatchMessageW")
	procPostMessageW               = user32.NewProc("PostMessageW")
	procPostThreadMessageW         = user32.NewProc("PostThreadMessageW")
	procPostQuitMessage            = user32.NewProc("PostQuitMessage")
	procSetLayeredWindowAttributes = user32.NewProc("SetLayeredWindowAttributes")
	procGetWindowRect              = user32.NewProc("GetWindowRect")
	procGetClientRect              = user32.NewProc("GetClientRect")
	procIsWindowVisible            = user32.NewProc("IsWindowVisible")
	procSetTimer                   = user32.NewProc("SetTimer")
	procKillTimer                  = user32.NewProc("KillTimer")
	procLoadCursorW                = user32.NewProc("LoadCursorW")
	procGetSystemMetrics           = user32.NewProc("GetSystemMetrics")
	procSetCapture                 = user32.NewProc("SetCapture")
	procTrackMouseEvent            = user32.NewProc("TrackMouseEvent")
	procInvalidateRect             = user32.NewProc("InvalidateRect")
	procBeginPaint                 = user32.NewProc("BeginPaint")
	procEndPaint                   = user32.NewProc("EndPaint")
	procFillRect                   = user32.NewProc("FillRect")
	procFrameRect                  = user32.NewProc("FrameRect")
	procDrawTextW                  = user32.NewProc("DrawTextW")

	procCreateSolidBrush = gdi32.NewProc("CreateSolidBrush")
	procCreatePen        = gdi32.NewProc("CreatePen")
	procDeleteObject     = gdi32.NewProc("DeleteObject")
	procSelectObject     = gdi32.NewProc("SelectObject")
	procSetBkMode        = gdi32.NewProc("SetBkMode")
	procSetTextColor     = gdi32.NewProc("SetTextColor")
	procRoundRect        = gdi32.NewProc("RoundRect")
	procCreateFontW      = gdi32.NewProc("CreateFontW")

	procDwmSetWindowAttribute = dwmapi.NewProc("DwmSetWindowAttribute")

	procGetModuleHandleW   = kernel32.NewProc("GetModuleHandleW")
	procGetCurrentThreadId = kernel32.NewProc("GetCurrentThreadId")
)

const (
	WS_POPUP = 0x80000000

	WS_EX_TOPMOST    = 0x00000008
	WS_EX_TOOLWINDOW = 0x00000080
	WS_EX_LAYERED    = 0x00080000

	LWA_ALPHA = 0x0002

	WM_DESTROY        = 0x0002
	WM_PAINT          = 0x000F
	WM_QUIT           = 0x0012
	WM_ERASEBKGND     = 0x0014
	WM_TIMER          = 0x0113
	WM_MOUSEMOVE      = 0x0200
	WM_LBUTTONDOWN    = 0x0201
	WM_LBUTTONUP      = 0x0202
	WM_CAPTURECHANGED = 0x0215
	WM_MOUSELEAVE     = 0x02A3
	WM_EXITSIZEMOVE   = 0x0232
	WM_APP            = 0x8000

	TME_LEAVE = 0x00000002

	DT_CENTER     = 0x0001
	DT_VCENTER    = 0x0004
	DT_SINGLELINE = 0x0020

	TRANSPARENT = 1
	PS_SOLID    = 0

	FW_SEMIBOLD       = 600
	DEFAULT_CHARSET   = 1
	CLEARTYPE_QUALITY = 5

	SM_CXSCREEN = 0
	SM_CYSCREEN = 1

	IDC_ARROW = 32512

	DWMWA_USE_IMMERSIVE_DARK_MODE  = 20
	DWMWA_WINDOW_CORNER_PREFERENCE = 33
	DWMWA_SYSTEMBACKDROP_TYPE      = 38

	DWMWCP_ROUND           = 2
	DWMSBT_TRANSIENTWINDOW = 3
)

// wmRunFuncs asks the UI thread to drain functions queued via RunOnUI.
const wmRunFuncs = WM_APP + 1

// UI timer ids.
const (
	timerDrain    = 1
	timerPoll     = 2
	timerAutoHide = 3
	timerSavePos  = 4
)

// Layout, in pixels. The strip is three buttons on a padded row.
const (
	overlayWidth    = 140
	overlayHeight   = 50
	buttonTop       = 8
	buttonHeight    = 34
	sendButtonWidth = 44
	minButtonWidth  = 24
	buttonPad       = 8
	buttonGap       = 6
	cornerRadius    = 8

	widgetWidth  = 50
	widgetHeight = 24
	widgetAlpha  = 217 // 0.85 opacity

	savePosDebounceMs = 500
)

// Button indices into Window.buttons.
const (
	btnPrimary = iota
	btnSecondary
	btnMinimize
)

type POINT struct {
	X int32
	Y int32
}

type RECT struct {
	Left   int32
	Top    int32
	Right  int32
	Bottom int32
}

type MSG struct {
	Hwnd    uintptr
	Message uint32
	WParam  uintptr
	LParam  uintptr
	Time    uint32
	Pt      POINT
}

type WNDCLASSEXW struct {
	CbSize        uint32
	Style         uint32
	LpfnWndProc   uintptr
	CbClsExtra    int32
	CbWndExtra    int32
	HInstance     uintptr
	HIcon         uintptr
	HCursor       uintptr
	HbrBackground uintptr
	LpszMenuName  *uint16
	LpszClassName *uint16
	HIconSm       uintptr
}

type PAINTSTRUCT struct {
	Hdc         uintptr
	FErase      int32
	RcPaint     RECT
	FRestore    int32
	FIncUpdate  int32
	RgbReserved [32]byte
}

type TRACKMOUSEEVENT struct {
	CbSize      uint32
	DwFlags     uint32
	HwndTrack   uintptr
	DwHoverTime uint32
}

const (
	overlayClassName = "RxOverlayWindow"
	widgetClassName  = "RxOverlayRestore"
)

var (
	classOnce   sync.Once
	classErr    error
	classHInst  uintptr
	wndProcAddr uintptr

	windowMu  sync.Mutex
	windowMap = make(map[uintptr]*Window)
)

// WindowConfig configures the overlay window. The callbacks run on
// the UI thread.
type WindowConfig struct {
	X, Y    int
	Opacity float64
	Topmost bool
	Theme   string

	// AutoHideAfterAction hides the overlay this long after a send
	// button click. Zero disables auto-hide.
	AutoHideAfterAction time.Duration

	OnPrimary        func()
	OnSecondary      func()
	OnMinimize       func()
	OnRestore        func()
	OnDrainTick      func()
	OnPollTick       func()
	OnPositionChange func(x, y int)

	Logger *slog.Logger
}

// Window is the on-screen overlay: a layered, non-activating popup
// with three self-drawn buttons, plus the restore widget it collapses
// to. It implements Surface.
//
// NewWindow and Run must be called from the same locked OS thread;
// that thread becomes the UI thread, and all Surface calls belong to
// it. Visible, Quit, and RunOnUI are safe from any goroutine.
type Window struct {
	cfg    WindowConfig
	logger *slog.Logger
	theme  theme

	hwnd     uintptr
	widget   uintptr
	font     uintptr
	threadID uint32
	topmost  bool
	autoHide time.Duration

	buttons  [3]buttonRect
	hover    int
	pressed  int
	tracking bool
	enabled  bool

	funcMu sync.Mutex
	funcs  []func()
}

type buttonRect struct {
	rect  RECT
	glyph string
}

// NewWindow creates the overlay window, hidden. The caller shows it
// through the Surface methods once the coordinator applies its
// startup state.
func NewWindow(cfg WindowConfig) (*Window, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	if err := registerClasses(); err != nil {
		return nil, err
	}

	w := &Window{
		cfg:      cfg,
		logger:   logger.With("component", "window"),
		theme:    themeByName(cfg.Theme),
		topmost:  cfg.Topmost,
		autoHide: cfg.AutoHideAfterAction,
		hover:    -1,
		pressed:  -1,
		enabled:  true,
	}

	left := int32(buttonPad)
	widths := [3]int32{sendButtonWidth, sendButtonWidth, minButtonWidth}
	glyphs := [3]string{"r", "x", "˅"}
	for i := range w.buttons {
		w.buttons[i] = buttonRect{
			rect:  RECT{left, buttonTop, left + widths[i], buttonTop + buttonHeight},
			glyph: glyphs[i],
		}
		left += widths[i] + buttonGap
	}

	tid, _, _ := procGetCurrentThreadId.Call()
	w.threadID = uint32(tid)

	x, y := clampToScreen(cfg.X, cfg.Y)

	cls, err := windows.UTF16PtrFromString(overlayClassName)
	if err != nil {
		return nil, err
	}
	title, err := windows.UTF16PtrFromString("rxoverlay")
	if err != nil {
		return nil, err
	}

	hwnd, _, callErr := procCreateWindowExW.Call(
		WS_EX_TOOLWINDOW|WS_EX_LAYERED,
		uintptr(unsafe.Pointer(cls)),
		uintptr(unsafe.Pointer(title)),
		WS_POPUP,
		uintptr(x), uintptr(y),
		overlayWidth, overlayHeight,
		0, 0, classHInst, 0,
	)
	if hwnd == 0 {
		return nil, fmt.Errorf("CreateWindowExW: %w", callErr)
	}
	w.hwnd = hwnd
	registerWindow(hwnd, w)

	MakeNonActivating(hwnd)
	procSetLayeredWindowAttributes.Call(hwnd, 0, uintptr(opacityAlpha(cfg.Opacity)), LWA_ALPHA)
	w.applyDwmChrome(hwnd)

	// Negative height selects character height in logical units.
	w.font, _, _ = procCreateFontW.Call(
		^uintptr(14), 0, 0, 0,
		FW_SEMIBOLD, 0, 0, 0,
		DEFAULT_CHARSET, 0, 0,
		CLEARTYPE_QUALITY, 0,
		uintptr(unsafe.Pointer(mustUTF16("Segoe UI"))),
	)

	procSetTimer.Call(hwnd, timerDrain, uintptr(DrainInterval/time.Millisecond), 0)
	procSetTimer.Call(hwnd, timerPoll, uintptr(PollInterval/time.Millisecond), 0)

	w.logger.Info("overlay window created", "x", x, "y", y, "theme", cfg.Theme)
	return w, nil
}

// Run pumps the UI thread's message loop until Quit or until the
// window is destroyed externally. It must run on the thread that
// created the window.
func (w *Window) Run() {
	var msg MSG
	for {
		ret, _, _ := procGetMessageW.Call(uintptr(unsafe.Pointer(&msg)), 0, 0, 0)
		switch int32(ret) {
		case 0:
			return
		case -1:
			w.logger.Error("GetMessageW failed")
			return
		}
		procTranslateMessage.Call(uintptr(unsafe.Pointer(&msg)))
		procDispatchMessageW.Call(uintptr(unsafe.Pointer(&msg)))
	}
}

// Quit posts WM_QUIT to the UI thread, unwinding Run. Safe from any
// goroutine.
func (w *Window) Quit() {
	procPostThreadMessageW.Call(uintptr(w.threadID), WM_QUIT, 0, 0)
}

// RunOnUI schedules fn on the UI thread. Safe from any goroutine.
func (w *Window) RunOnUI(fn func()) {
	w.funcMu.Lock()
	w.funcs = append(w.funcs, fn)
	w.funcMu.Unlock()
	procPostMessageW.Call(w.hwnd, wmRunFuncs, 0, 0)
}

func (w *Window) drainFuncs() {
	w.funcMu.Lock()
	fns := w.funcs
	w.funcs = nil
	w.funcMu.Unlock()

	for _, fn := range fns {
		fn()
	}
}

// Show makes the overlay visible without activating it.
func (w *Window) Show() {
	ShowNoActivate(w.hwnd, w.topmost)
}

// Hide removes the overlay from screen.
func (w *Window) Hide() {
	procShowWindow.Call(w.hwnd, SW_HIDE)
}

// Minimize swaps the overlay for the restore widget.
func (w *Window) Minimize() {
	w.createWidget()
	procShowWindow.Call(w.hwnd, SW_HIDE)
}

// Restore swaps the restore widget back for the overlay.
func (w *Window) Restore() {
	w.destroyWidget()
	w.Show()
}

// Visible reports whether the overlay window is on screen. Safe from
// any goroutine.
func (w *Window) Visible() bool {
	r, _, _ := procIsWindowVisible.Call(w.hwnd)
	return r != 0
}

// IsOwnWindow reports whether h is the overlay or its restore widget.
func (w *Window) IsOwnWindow(h focus.Handle) bool {
	u := uintptr(h)
	return u != 0 && (u == w.hwnd || u == w.widget)
}

// SetEnabled redraws the buttons in their armed or disarmed palette.
func (w *Window) SetEnabled(enabled bool) {
	w.enabled = enabled
	procInvalidateRect.Call(w.hwnd, 0, 1)
}

// Destroy tears down the overlay and widget. UI thread only; call
// after Run returns.
func (w *Window) Destroy() {
	w.destroyWidget()
	if w.hwnd != 0 {
		restoreWndProc(w.hwnd)
		unregisterWindow(w.hwnd)
		procDestroyWindow.Call(w.hwnd)
		w.hwnd = 0
	}
	if w.font != 0 {
		procDeleteObject.Call(w.font)
		w.font = 0
	}
}

// Position returns the overlay's current top-left corner.
func (w *Window) Position() (x, y int) {
	var rc RECT
	procGetWindowRect.Call(w.hwnd, uintptr(unsafe.Pointer(&rc)))
	return int(rc.Left), int(rc.Top)
}

func (w *Window) mainProc(hwnd uintptr, msg uint32, wParam, lParam uintptr) uintptr {
	switch msg {
	case WM_PAINT:
		w.paintMain(hwnd)
		return 0
	case WM_ERASEBKGND:
		return 1
	case WM_TIMER:
		w.onTimer(wParam)
		return 0
	case WM_MOUSEMOVE:
		w.onMouseMove(lParam)
		return 0
	case WM_MOUSELEAVE:
		w.tracking = false
		w.setHover(-1)
		return 0
	case WM_LBUTTONDOWN:
		w.onLButtonDown(lParam)
		return 0
	case WM_LBUTTONUP:
		w.onLButtonUp(lParam)
		return 0
	case WM_CAPTURECHANGED:
		w.setPressed(-1)
		return 0
	case WM_EXITSIZEMOVE:
		// Position saves are debounced behind the drag.
		procSetTimer.Call(hwnd, timerSavePos, savePosDebounceMs, 0)
		return 0
	case wmRunFuncs:
		w.drainFuncs()
		return 0
	case WM_DESTROY:
		procPostQuitMessage.Call(0)
		return 0
	}
	ret, _, _ := procDefWindowProcW.Call(hwnd, uintptr(msg), wParam, lParam)
	return ret
}

func (w *Window) onTimer(id uintptr) {
	switch id {
	case timerDrain:
		if cb := w.cfg.OnDrainTick; cb != nil {
			cb()
		}
	case timerPoll:
		if cb := w.cfg.OnPollTick; cb != nil {
			cb()
		}
	case timerAutoHide:
		procKillTimer.Call(w.hwnd, timerAutoHide)
		w.Hide()
	case timerSavePos:
		procKillTimer.Call(w.hwnd, timerSavePos)
		if cb := w.cfg.OnPositionChange; cb != nil {
			x, y := w.Position()
			cb(x, y)
		}
	}
}

func (w *Window) onMouseMove(lParam uintptr) {
	x, y := pointFromLParam(lParam)
	w.setHover(w.hitTest(x, y))

	if !w.tracking {
		tme := TRACKMOUSEEVENT{
			CbSize:    uint32(unsafe.Sizeof(TRACKMOUSEEVENT{})),
			DwFlags:   TME_LEAVE,
			HwndTrack: w.hwnd,
		}
		procTrackMouseEvent.Call(uintptr(unsafe.Pointer(&tme)))
		w.tracking = true
	}
}

func (w *Window) onLButtonDown(lParam uintptr) {
	x, y := pointFromLParam(lParam)
	idx := w.hitTest(x, y)
	if idx < 0 {
		// Anywhere outside the buttons drags the window.
		BeginSystemMove(w.hwnd)
		return
	}
	w.setPressed(idx)
	procSetCapture.Call(w.hwnd)
}

func (w *Window) onLButtonUp(lParam uintptr) {
	if w.pressed < 0 {
		return
	}
	idx := w.pressed
	w.setPressed(-1)
	procReleaseCapture.Call()

	x, y := pointFromLParam(lParam)
	if w.hitTest(x, y) == idx {
		w.onButtonClick(idx)
	}
}

func (w *Window) onButtonClick(idx int) {
	if !w.enabled {
		return
	}
	switch idx {
	case btnPrimary:
		if cb := w.cfg.OnPrimary; cb != nil {
			cb()
		}
		w.scheduleAutoHide()
	case btnSecondary:
		if cb := w.cfg.OnSecondary; cb != nil {
			cb()
		}
		w.scheduleAutoHide()
	case btnMinimize:
		if cb := w.cfg.OnMinimize; cb != nil {
			cb()
		}
	}
}

// scheduleAutoHide arms the one-shot auto-hide timer after a send
// button click. Another click rearms it.
func (w *Window) scheduleAutoHide() {
	if w.autoHide <= 0 {
		return
	}
	procSetTimer.Call(w.hwnd, timerAutoHide, uintptr(w.autoHide/time.Millisecond), 0)
}

func (w *Window) hitTest(x, y int32) int {
	for i := range w.buttons {
		r := w.buttons[i].rect
		if x >= r.Left && x < r.Right && y >= r.Top && y < r.Bottom {
			return i
		}
	}
	return -1
}

func (w *Window) setHover(idx int) {
	if w.hover == idx {
		return
	}
	w.hover = idx
	procInvalidateRect.Call(w.hwnd, 0, 1)
}

func (w *Window) setPressed(idx int) {
	if w.pressed == idx {
		return
	}
	w.pressed = idx
	procInvalidateRect.Call(w.hwnd, 0, 1)
}

func (w *Window) paintMain(hwnd uintptr) {
	var ps PAINTSTRUCT
	hdc, _, _ := procBeginPaint.Call(hwnd, uintptr(unsafe.Pointer(&ps)))
	if hdc == 0 {
		return
	}
	defer procEndPaint.Call(hwnd, uintptr(unsafe.Pointer(&ps)))

	var rc RECT
	procGetClientRect.Call(hwnd, uintptr(unsafe.Pointer(&rc)))

	fillRect(hdc, &rc, w.theme.surface)
	frameRect(hdc, &rc, w.theme.stroke)

	procSetBkMode.Call(hdc, TRANSPARENT)
	oldFont, _, _ := procSelectObject.Call(hdc, w.font)

	for i := range w.buttons {
		w.paintButton(hdc, i)
	}

	procSelectObject.Call(hdc, oldFont)
}

func (w *Window) paintButton(hdc uintptr, idx int) {
	b := w.buttons[idx]

	fill := w.theme.button
	if w.enabled {
		switch idx {
		case w.pressed:
			fill = w.theme.pressed
		case w.hover:
			fill = w.theme.hover
		}
	}

	brush, _, _ := procCreateSolidBrush.Call(uintptr(fill))
	pen, _, _ := procCreatePen.Call(PS_SOLID, 1, uintptr(w.theme.stroke))
	oldBrush, _, _ := procSelectObject.Call(hdc, brush)
	oldPen, _, _ := procSelectObject.Call(hdc, pen)

	r := b.rect
	procRoundRect.Call(hdc,
		uintptr(r.Left), uintptr(r.Top), uintptr(r.Right), uintptr(r.Bottom),
		cornerRadius, cornerRadius)

	procSelectObject.Call(hdc, oldBrush)
	procSelectObject.Call(hdc, oldPen)
	procDeleteObject.Call(brush)
	procDeleteObject.Call(pen)

	color := w.theme.text
	if !w.enabled {
		color = w.theme.disabled
	}
	procSetTextColor.Call(hdc, uintptr(color))
	drawCenteredText(hdc, b.glyph, &r)
}

// applyDwmChrome asks DWM for rounded corners, a transient backdrop,
// and dark titlebar handling. All best-effort: the calls silently do
// nothing on systems without them.
func (w *Window) applyDwmChrome(hwnd uintptr) {
	corner := uint32(DWMWCP_ROUND)
	procDwmSetWindowAttribute.Call(hwnd, DWMWA_WINDOW_CORNER_PREFERENCE,
		uintptr(unsafe.Pointer(&corner)), unsafe.Sizeof(corner))

	backdrop := uint32(DWMSBT_TRANSIENTWINDOW)
	procDwmSetWindowAttribute.Call(hwnd, DWMWA_SYSTEMBACKDROP_TYPE,
		uintptr(unsafe.Pointer(&backdrop)), unsafe.Sizeof(backdrop))

	if w.cfg.Theme == "dark" {
		dark := int32(1)
		procDwmSetWindowAttribute.Call(hwnd, DWMWA_USE_IMMERSIVE_DARK_MODE,
			uintptr(unsafe.Pointer(&dark)), unsafe.Sizeof(dark))
	}
}

func fillRect(hdc uintptr, rc *RECT, color colorRef) {
	brush, _, _ := procCreateSolidBrush.Call(uintptr(color))
	procFillRect.Call(hdc, uintptr(unsafe.Pointer(rc)), brush)
	procDeleteObject.Call(brush)
}

func frameRect(hdc uintptr, rc *RECT, color colorRef) {
	brush, _, _ := procCreateSolidBrush.Call(uintptr(color))
	procFrameRect.Call(hdc, uintptr(unsafe.Pointer(rc)), brush)
	procDeleteObject.Call(brush)
}

func drawCenteredText(hdc uintptr, s string, rc *RECT) {
	units := utf16.Encode([]rune(s))
	if len(units) == 0 {
		return
	}
	procDrawTextW.Call(hdc,
		uintptr(unsafe.Pointer(&units[0])), uintptr(len(units)),
		uintptr(unsafe.Pointer(rc)),
		DT_CENTER|DT_VCENTER|DT_SINGLELINE)
}

func registerClasses() error {
	classOnce.Do(func() {
		wndProcAddr = syscall.NewCallback(windowProc)
		classHInst, _, _ = procGetModuleHandleW.Call(0)
		cursor, _, _ := procLoadCursorW.Call(0, IDC_ARROW)

		for _, name := range []string{overlayClassName, widgetClassName} {
			cls, err := windows.UTF16PtrFromString(name)
			if err != nil {
				classErr = err
				return
			}
			wc := WNDCLASSEXW{
				CbSize:        uint32(unsafe.Sizeof(WNDCLASSEXW{})),
				LpfnWndProc:   wndProcAddr,
				HInstance:     classHInst,
				HCursor:       cursor,
				LpszClassName: cls,
			}
			if r, _, callErr := procRegisterClassExW.Call(uintptr(unsafe.Pointer(&wc))); r == 0 {
				classErr = fmt.Errorf("RegisterClassExW %s: %w", name, callErr)
				return
			}
		}
	})
	return classErr
}

// windowProc dispatches to the owning Window. Messages that arrive
// before registration (WM_NCCREATE and friends) fall through to
// DefWindowProcW.
func windowProc(hwnd uintptr, msg uint32, wParam, lParam uintptr) uintptr {
	w := lookupWindow(hwnd)
	if w == nil {
		ret, _, _ := procDefWindowProcW.Call(hwnd, uintptr(msg), wParam, lParam)
		return ret
	}
	if hwnd == w.widget {
		return w.widgetProc(hwnd, msg, wParam, lParam)
	}
	return w.mainProc(hwnd, msg, wParam, lParam)
}

func registerWindow(hwnd uintptr, w *Window) {
	windowMu.Lock()
	windowMap[hwnd] = w
	windowMu.Unlock()
}

func unregisterWindow(hwnd uintptr) {
	windowMu.Lock()
	delete(windowMap, hwnd)
	windowMu.Unlock()
}

func lookupWindow(hwnd uintptr) *Window {
	windowMu.Lock()
	defer windowMu.Unlock()
	return windowMap[hwnd]
}

func pointFromLParam(lParam uintptr) (int32, int32) {
	x := int32(int16(lParam & 0xFFFF))
	y := int32(int16((lParam >> 16) & 0xFFFF))
	return x, y
}

// opacityAlpha converts a 0..1 opacity to the LWA_ALPHA byte, clamped
// to stay faintly visible.
func opacityAlpha(opacity float64) byte {
	if opacity < 0.05 {
		opacity = 0.05
	}
	if opacity > 1 {
		opacity = 1
	}
	return byte(opacity * 255)
}

func clampToScreen(x, y int) (int, int) {
	sw, _, _ := procGetSystemMetrics.Call(SM_CXSCREEN)
	sh, _, _ := procGetSystemMetrics.Call(SM_CYSCREEN)

	maxX := int(sw) - overlayWidth
	maxY := int(sh) - overlayHeight
	if maxX > 0 {
		x = min(max(x, 0), maxX)
	}
	if maxY > 0 {
		y = min(max(y, 0), maxY)
	}
	return x, y
}

func mustUTF16(s string) *uint16 {
	p, err := windows.UTF16PtrFromString(s)
	if err != nil {
		panic(err)
	}
	return p
}
