//go:build windows

package tray

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"syscall"
	"unsafe"

	"golang.org/x/sys/windows"
)

var (
	user32   = windows.NewLazySystemDLL("user32.dll")
	kernel32 = windows.NewLazySystemDLL("kernel32.dll")
	shell32  = windows.NewLazySystemDLL("shell32.dll")

	procRegisterClassExW       = user32.NewProc("RegisterClassExW")
	procCreateWindowExW        = user32.NewProc("CreateWindowExW")
	procDestroyWindow          = user32.NewProc("DestroyWindow")
	procDefWindowProcW         = user32.NewProc("DefWindowProcW")
	procRegisterWindowMessageW = user32.NewProc("RegisterWindowMessageW")
	procLoadImageW             = user32.NewProc("LoadImageW")
	procLoadIconW              = user32.NewProc("LoadIconW")
	procDestroyIcon            = user32.NewProc("DestroyIcon")
	procCreatePopupMenu        = user32.NewProc("CreatePopupMenu")
	procDestroyMenu            = user32.NewProc("DestroyMenu")
	procAppendMenuW            = user32.NewProc("AppendMenuW")
	procTrackPopupMenu         = user32.NewProc("TrackPopupMenu")
	procGetCursorPos           = user32.NewProc("GetCursorPos")
	procSetForegroundWindow    = user32.NewProc("SetForegroundWindow")
	procPostMessageW           = user32.NewProc("PostMessageW")

	procGetModuleHandleW = kernel32.NewProc("GetModuleHandleW")

	procShellNotifyIconW = shell32.NewProc("Shell_NotifyIconW")
)

const (
	WM_DESTROY     = 0x0002
	WM_COMMAND     = 0x0111
	WM_LBUTTONUP   = 0x0202
	WM_RBUTTONUP   = 0x0205
	WM_CONTEXTMENU = 0x007B
	WM_APP         = 0x8000

	NIM_ADD    = 0x00000000
	NIM_MODIFY = 0x00000001
	NIM_DELETE = 0x00000002

	NIF_MESSAGE = 0x00000001
	NIF_ICON    = 0x00000002
	NIF_TIP     = 0x00000004
	NIF_INFO    = 0x00000010

	NIIF_INFO    = 0x00000001
	NIIF_WARNING = 0x00000002

	IMAGE_ICON      = 1
	LR_LOADFROMFILE = 0x00000010
	LR_DEFAULTSIZE  = 0x00000040

	IDI_APPLICATION = 32512

	MF_STRING    = 0x00000000
	MF_SEPARATOR = 0x00000800
	MF_CHECKED   = 0x00000008

	TPM_LEFTALIGN   = 0x0000
	TPM_BOTTOMALIGN = 0x0020
)

// wmTrayCallback is the icon's callback message; lParam carries the
// mouse message.
const wmTrayCallback = WM_APP + 2

// Menu command ids.
const (
	cmdShowHide = 2001 + iota
	cmdToggleEnabled
	cmdOpenSettings
	cmdExit
)

const trayClassName = "RxOverlayTray"

type wndClassExW struct {
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

type notifyIconData struct {
	CbSize           uint32
	HWnd             uintptr
	UID              uint32
	UFlags           uint32
	UCallbackMessage uint32
	HIcon            uintptr
	SzTip            [128]uint16
	DwState          uint32
	DwStateMask      uint32
	SzInfo           [256]uint16
	UVersion         uint32
	SzInfoTitle      [64]uint16
	DwInfoFlags      uint32
	GuidItem         windows.GUID
	HBalloonIcon     uintptr
}

type point struct {
	X int32
	Y int32
}

var (
	classOnce   sync.Once
	classErr    error
	classHInst  uintptr
	wndProcAddr uintptr

	// The explorer broadcast that asks live icons to re-register.
	taskbarCreatedMsg uint32

	trayMu  sync.Mutex
	trayMap = make(map[uintptr]*Tray)
)

// Tray is the notification-area icon plus its hidden host window.
// Create and destroy it on the UI thread.
type Tray struct {
	cfg    Config
	logger *slog.Logger

	hwnd    uintptr
	icon    uintptr
	ownIcon bool
	nid     notifyIconData
}

// New registers the icon. The host window joins the calling thread's
// message loop, so the thread must already pump messages.
func New(cfg Config) (*Tray, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	if err := registerClass(); err != nil {
		return nil, err
	}

	t := &Tray{
		cfg:    cfg,
		logger: logger.With("component", "tray"),
	}

	cls, err := windows.UTF16PtrFromString(trayClassName)
	if err != nil {
		return nil, err
	}
	title, err := windows.UTF16PtrFromString("rxoverlay tray")
	if err != nil {
		return nil, err
	}

	hwnd, _, callErr := procCreateWindowExW.Call(
		0,
		uintptr(unsafe.Pointer(cls)),
		uintptr(unsafe.Pointer(title)),
		0, 0, 0, 0, 0,
		0, 0, classHInst, 0,
	)
	if hwnd == 0 {
		return nil, fmt.Errorf("CreateWindowExW: %w", callErr)
	}
	t.hwnd = hwnd
	registerTray(hwnd, t)

	t.icon, t.ownIcon = loadTrayIcon()

	t.nid = notifyIconData{
		CbSize:           uint32(unsafe.Sizeof(notifyIconData{})),
		HWnd:             hwnd,
		UID:              1,
		UFlags:           NIF_MESSAGE | NIF_ICON | NIF_TIP,
		UCallbackMessage: wmTrayCallback,
		HIcon:            t.icon,
	}
	copyUTF16(t.nid.SzTip[:], cfg.Tooltip)

	if !t.addIcon() {
		t.teardownWindow()
		return nil, fmt.Errorf("Shell_NotifyIconW: add failed")
	}

	t.logger.Info("tray icon added")
	return t, nil
}

// SetTooltip updates the hover text. UI thread only.
func (t *Tray) SetTooltip(tip string) {
	copyUTF16(t.nid.SzTip[:], tip)
	procShellNotifyIconW.Call(NIM_MODIFY, uintptr(unsafe.Pointer(&t.nid)))
}

// Notify shows an informational balloon. UI thread only.
func (t *Tray) Notify(title, body string) {
	t.balloon(title, body, NIIF_INFO)
}

// Warn shows a warning balloon. The daemon uses it to announce
// degraded mode when the keyboard hook cannot start.
func (t *Tray) Warn(title, body string) {
	t.balloon(title, body, NIIF_WARNING)
}

func (t *Tray) balloon(title, body string, infoFlags uint32) {
	nid := t.nid
	nid.UFlags |= NIF_INFO
	nid.DwInfoFlags = infoFlags
	copyUTF16(nid.SzInfoTitle[:], title)
	copyUTF16(nid.SzInfo[:], body)
	procShellNotifyIconW.Call(NIM_MODIFY, uintptr(unsafe.Pointer(&nid)))
}

// Destroy removes the icon and its host window. UI thread only.
func (t *Tray) Destroy() {
	if t.hwnd == 0 {
		return
	}
	procShellNotifyIconW.Call(NIM_DELETE, uintptr(unsafe.Pointer(&t.nid)))
	t.teardownWindow()
	t.logger.Info("tray icon removed")
}

func (t *Tray) teardownWindow() {
	if t.ownIcon && t.icon != 0 {
		procDestroyIcon.Call(t.icon)
	}
	t.icon = 0
	unregisterTray(t.hwnd)
	procDestroyWindow.Call(t.hwnd)
	t.hwnd = 0
}

func (t *Tray) addIcon() bool {
	r, _, _ := procShellNotifyIconW.Call(NIM_ADD, uintptr(unsafe.Pointer(&t.nid)))
	return r != 0
}

func (t *Tray) wndProc(hwnd uintptr, msg uint32, wParam, lParam uintptr) uintptr {
	switch msg {
	case wmTrayCallback:
		switch lParam {
		case WM_LBUTTONUP:
			call(t.cfg.OnShowHide)
		case WM_RBUTTONUP, WM_CONTEXTMENU:
			t.showMenu()
		}
		return 0

	case WM_COMMAND:
		switch wParam & 0xFFFF {
		case cmdShowHide:
			call(t.cfg.OnShowHide)
		case cmdToggleEnabled:
			call(t.cfg.OnToggleEnabled)
		case cmdOpenSettings:
			call(t.cfg.OnOpenSettings)
		case cmdExit:
			call(t.cfg.OnExit)
		}
		return 0

	case WM_DESTROY:
		return 0
	}

	if taskbarCreatedMsg != 0 && msg == taskbarCreatedMsg {
		// Explorer restarted; the icon is gone until re-added.
		if t.addIcon() {
			t.logger.Debug("tray icon re-added after explorer restart")
		}
		return 0
	}

	ret, _, _ := procDefWindowProcW.Call(hwnd, uintptr(msg), wParam, lParam)
	return ret
}

func (t *Tray) showMenu() {
	menu, _, _ := procCreatePopupMenu.Call()
	if menu == 0 {
		return
	}
	defer procDestroyMenu.Call(menu)

	showHide := "Show overlay"
	if probe(t.cfg.Visible) {
		showHide = "Hide overlay"
	}
	appendItem(menu, MF_STRING, cmdShowHide, showHide)

	enabledFlags := uintptr(MF_STRING)
	if probe(t.cfg.Enabled) {
		enabledFlags |= MF_CHECKED
	}
	appendItem(menu, enabledFlags, cmdToggleEnabled, "Enabled")

	procAppendMenuW.Call(menu, MF_SEPARATOR, 0, 0)
	appendItem(menu, MF_STRING, cmdOpenSettings, "Open settings")
	procAppendMenuW.Call(menu, MF_SEPARATOR, 0, 0)
	appendItem(menu, MF_STRING, cmdExit, "Exit")

	var pt point
	procGetCursorPos.Call(uintptr(unsafe.Pointer(&pt)))

	// Without foreground status the menu never dismisses on an
	// outside click.
	procSetForegroundWindow.Call(t.hwnd)
	procTrackPopupMenu.Call(menu,
		TPM_LEFTALIGN|TPM_BOTTOMALIGN,
		uintptr(pt.X), uintptr(pt.Y),
		0, t.hwnd, 0)
	// WM_NULL nudges the menu's modal loop shut after reactivation.
	procPostMessageW.Call(t.hwnd, 0, 0, 0)
}

func appendItem(menu uintptr, flags uintptr, id uintptr, label string) {
	p, err := windows.UTF16PtrFromString(label)
	if err != nil {
		return
	}
	procAppendMenuW.Call(menu, flags, id, uintptr(unsafe.Pointer(p)))
}

func call(fn func()) {
	if fn != nil {
		fn()
	}
}

func probe(fn func() bool) bool {
	return fn != nil && fn()
}

// loadTrayIcon prefers rxoverlay.ico beside the executable and falls
// back to the stock application icon, which must not be destroyed.
func loadTrayIcon() (icon uintptr, owned bool) {
	if exe, err := os.Executable(); err == nil {
		path := filepath.Join(filepath.Dir(exe), "rxoverlay.ico")
		if p, err := windows.UTF16PtrFromString(path); err == nil {
			h, _, _ := procLoadImageW.Call(0,
				uintptr(unsafe.Pointer(p)),
				IMAGE_ICON, 0, 0,
				LR_LOADFROMFILE|LR_DEFAULTSIZE)
			if h != 0 {
				return h, true
			}
		}
	}
	h, _, _ := procLoadIconW.Call(0, IDI_APPLICATION)
	return h, false
}

func registerClass() error {
	classOnce.Do(func() {
		wndProcAddr = syscall.NewCallback(trayWndProc)
		classHInst, _, _ = procGetModuleHandleW.Call(0)

		if name, err := windows.UTF16PtrFromString("TaskbarCreated"); err == nil {
			m, _, _ := procRegisterWindowMessageW.Call(uintptr(unsafe.Pointer(name)))
			taskbarCreatedMsg = uint32(m)
		}

		cls, err := windows.UTF16PtrFromString(trayClassName)
		if err != nil {
			classErr = err
			return
		}
		wc := wndClassExW{
			CbSize:        uint32(unsafe.Sizeof(wndClassExW{})),
			LpfnWndProc:   wndProcAddr,
			HInstance:     classHInst,
			LpszClassName: cls,
		}
		if r, _, callErr := procRegisterClassExW.Call(uintptr(unsafe.Pointer(&wc))); r == 0 {
			classErr = fmt.Errorf("RegisterClassExW %s: %w", trayClassName, callErr)
		}
	})
	return classErr
}

func trayWndProc(hwnd uintptr, msg uint32, wParam, lParam uintptr) uintptr {
	t := lookupTray(hwnd)
	if t == nil {
		ret, _, _ := procDefWindowProcW.Call(hwnd, uintptr(msg), wParam, lParam)
		return ret
	}
	return t.wndProc(hwnd, msg, wParam, lParam)
}

func registerTray(hwnd uintptr, t *Tray) {
	trayMu.Lock()
	trayMap[hwnd] = t
	trayMu.Unlock()
}

func unregisterTray(hwnd uintptr) {
	trayMu.Lock()
	delete(trayMap, hwnd)
	trayMu.Unlock()
}

func lookupTray(hwnd uintptr) *Tray {
	trayMu.Lock()
	defer trayMu.Unlock()
	return trayMap[hwnd]
}

// copyUTF16 fills a fixed-size UTF-16 buffer, always NUL-terminated.
func copyUTF16(dst []uint16, s string) {
	for i := range dst {
		dst[i] = 0
	}
	u, err := windows.UTF16FromString(s)
	if err != nil {
		return
	}
	n := copy(dst, u)
	if n == len(dst) {
		dst[len(dst)-1] = 0
	}
}
