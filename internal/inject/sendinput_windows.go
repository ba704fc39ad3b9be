//go:build windows

// Package inject Windows implementation over SendInput.
package inject

import (
	"log/slog"
	"unsafe"

	"golang.org/x/sys/windows"
)

var (
	user32        = windows.NewLazySystemDLL("user32.dll")
	procSendInput = user32.NewProc("SendInput")
)

const (
	INPUT_KEYBOARD = 1

	KEYEVENTF_KEYUP   = 0x0002
	KEYEVENTF_UNICODE = 0x0004
)

// KEYBDINPUT is the keyboard member of the Win32 INPUT union.
type KEYBDINPUT struct {
	WVk         uint16
	WScan       uint16
	DwFlags     uint32
	Time        uint32
	DwExtraInfo uintptr
}

// INPUT is the Win32 INPUT struct with the union flattened to its
// keyboard member. The padding matches the 64-bit layout: the union is
// 8-aligned and sized for its largest (mouse) member.
type INPUT struct {
	Type uint32
	_    uint32
	Ki   KEYBDINPUT
	_    uint64
}

// SendText types s into the currently focused application. Each UTF-16
// code unit becomes one KEYEVENTF_UNICODE down+up pair, submitted in a
// single SendInput call. Returns how many events the OS accepted and
// how many were submitted.
//
// Partial injection is logged and never retried: duplicated output is
// worse than a dropped character.
func SendText(s string) (accepted, submitted int) {
	units := utf16Units(s)
	if len(units) == 0 {
		return 0, 0
	}

	seq := expand(units)
	inputs := make([]INPUT, len(seq))
	for i, k := range seq {
		flags := uint32(KEYEVENTF_UNICODE)
		if k.up {
			flags |= KEYEVENTF_KEYUP
		}
		inputs[i] = INPUT{
			Type: INPUT_KEYBOARD,
			Ki: KEYBDINPUT{
				WScan:   k.unit,
				DwFlags: flags,
			},
		}
	}

	n, _, callErr := procSendInput.Call(
		uintptr(len(inputs)),
		uintptr(unsafe.Pointer(&inputs[0])),
		unsafe.Sizeof(inputs[0]),
	)

	accepted, submitted = int(n), len(inputs)
	if accepted != submitted {
		slog.Default().Error("SendInput accepted fewer events than submitted",
			"component", "inject",
			"accepted", accepted,
			"submitted", submitted,
			"error", callErr,
		)
	}
	return accepted, submitted
}

// Sender implements text injection via SendInput.
type Sender struct{}

func (Sender) SendText(s string) (accepted, submitted int) {
	return SendText(s)
}
