//go:build windows

// hookprobe installs the low-level keyboard hook for a few seconds and
// prints every key transition it sees: scan code, virtual key, held
// modifiers, and whether the event was injected by software. Use it to
// find the scan codes to put in the hotkey config.
//
// Usage:
//
//	go run ./tools/hookprobe
//	go run ./tools/hookprobe -duration 30
//	go run ./tools/hookprobe -downs-only
//
// Events are printed but never consumed, so typing keeps working while
// the probe runs.
package main

import (
	"flag"
	"fmt"
	"os"
	"runtime"
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
	procPostThreadMessageW  = user32.NewProc("PostThreadMessageW")
	procGetModuleHandleW    = kernel32.NewProc("GetModuleHandleW")
	procGetCurrentThreadId  = kernel32.NewProc("GetCurrentThreadId")
)

const (
	whKeyboardLL = 13
	hcAction     = 0

	wmKeydown    = 0x0100
	wmKeyup      = 0x0101
	wmSyskeydown = 0x0104
	wmSyskeyup   = 0x0105
	wmQuit       = 0x0012

	llkhfLowerILInjected = 0x00000002
	llkhfInjected        = 0x00000010
)

type kbdllhookstruct struct {
	VkCode      uint32
	ScanCode    uint32
	Flags       uint32
	Time        uint32
	DwExtraInfo uintptr
}

type point struct {
	X, Y int32
}

type msg struct {
	Hwnd    uintptr
	Message uint32
	WParam  uintptr
	LParam  uintptr
	Time    uint32
	Pt      point
}

// mods tracks held modifiers from the raw transitions. Generic, left,
// and right virtual-key variants map to the same flag.
type mods struct {
	ctrl, alt, shift, meta bool
}

func (m *mods) update(vk uint32, down bool) {
	switch vk {
	case 0x11, 0xA2, 0xA3: // VK_CONTROL, VK_LCONTROL, VK_RCONTROL
		m.ctrl = down
	case 0x12, 0xA4, 0xA5: // VK_MENU, VK_LMENU, VK_RMENU
		m.alt = down
	case 0x10, 0xA0, 0xA1: // VK_SHIFT, VK_LSHIFT, VK_RSHIFT
		m.shift = down
	case 0x5B, 0x5C: // VK_LWIN, VK_RWIN
		m.meta = down
	}
}

func (m mods) String() string {
	s := ""
	if m.ctrl {
		s += "CTRL+"
	}
	if m.alt {
		s += "ALT+"
	}
	if m.shift {
		s += "SHIFT+"
	}
	if m.meta {
		s += "WIN+"
	}
	if s == "" {
		return "-"
	}
	return s[:len(s)-1]
}

var (
	hookHandle uintptr
	held       mods
	started    time.Time
	downsOnly  bool

	totalCount    int
	injectedCount int
)

func keyboardProc(nCode int, wParam, lParam uintptr) uintptr {
	if int32(nCode) == hcAction {
		switch wParam {
		case wmKeydown, wmSyskeydown, wmKeyup, wmSyskeyup:
			kb := (*kbdllhookstruct)(unsafe.Pointer(lParam))
			down := wParam == wmKeydown || wParam == wmSyskeydown
			injected := kb.Flags&(llkhfInjected|llkhfLowerILInjected) != 0

			if !injected {
				held.update(kb.VkCode, down)
			}

			if down || !downsOnly {
				event := "UP"
				if down {
					event = "DOWN"
				}
				flag := ""
				if injected {
					flag = "injected"
				}
				fmt.Printf("%8.0f  %-5s sc%-5d vk=0x%02X  %-20s %s\n",
					time.Since(started).Seconds()*1000, event, kb.ScanCode, kb.VkCode, held, flag)
			}

			totalCount++
			if injected {
				injectedCount++
			}
		}
	}

	ret, _, _ := procCallNextHookEx.Call(hookHandle, uintptr(nCode), wParam, lParam)
	return ret
}

func main() {
	duration := flag.Int("duration", 10, "How long to listen, in seconds")
	flag.BoolVar(&downsOnly, "downs-only", false, "Print only keydown transitions")
	flag.Parse()

	// The hook and its message loop must live on one OS thread.
	runtime.LockOSThread()

	tid, _, _ := procGetCurrentThreadId.Call()
	hmod, _, _ := procGetModuleHandleW.Call(0)

	hhook, _, callErr := procSetWindowsHookExW.Call(
		whKeyboardLL,
		syscall.NewCallback(keyboardProc),
		hmod,
		0, // all threads
	)
	if hhook == 0 {
		fmt.Fprintf(os.Stderr, "SetWindowsHookExW failed: %v\n", callErr)
		os.Exit(1)
	}
	hookHandle = hhook
	defer procUnhookWindowsHookEx.Call(hhook)

	started = time.Now()
	fmt.Printf("Listening for %ds. Press keys to see their scan codes.\n\n", *duration)
	fmt.Printf("%8s  %-5s %-7s %-8s %-20s %s\n", "+ms", "event", "scan", "vk", "mods", "")

	// GetMessageW only unblocks from another thread via a posted WM_QUIT.
	timer := time.AfterFunc(time.Duration(*duration)*time.Second, func() {
		procPostThreadMessageW.Call(tid, wmQuit, 0, 0)
	})
	defer timer.Stop()

	var m msg
	for {
		ret, _, _ := procGetMessageW.Call(uintptr(unsafe.Pointer(&m)), 0, 0, 0)
		if int32(ret) <= 0 {
			break
		}
	}

	fmt.Printf("\nObserved %d transitions (%d injected).\n", totalCount, injectedCount)
	fmt.Println("Put the scan code (the sc number) in the hotkey config, with the mods you held.")
}
