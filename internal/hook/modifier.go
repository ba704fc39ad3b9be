package hook

import "strings"

// Virtual-key codes for modifier keys. The generic codes (VK_SHIFT,
// VK_CONTROL, VK_MENU) are what applications usually see; the low-level
// hook reports the left/right variants.
const (
	VK_SHIFT    = 0x10
	VK_CONTROL  = 0x11
	VK_MENU     = 0x12 // Alt
	VK_LWIN     = 0x5B
	VK_RWIN     = 0x5C
	VK_LSHIFT   = 0xA0
	VK_RSHIFT   = 0xA1
	VK_LCONTROL = 0xA2
	VK_RCONTROL = 0xA3
	VK_LMENU    = 0xA4
	VK_RMENU    = 0xA5
)

// ModifierState is a snapshot of which modifier keys are held.
//
// The mutable instance is owned by the hook engine and only ever
// touched on the hook thread; listeners receive value copies.
type ModifierState struct {
	Ctrl  bool
	Alt   bool
	Shift bool
	Meta  bool
}

// update tracks one modifier transition. Generic, left, and right
// virtual-key variants all map to the same flag. Non-modifier keys are
// ignored.
func (m *ModifierState) update(vk uint32, down bool) {
	switch vk {
	case VK_CONTROL, VK_LCONTROL, VK_RCONTROL:
		m.Ctrl = down
	case VK_MENU, VK_LMENU, VK_RMENU:
		m.Alt = down
	case VK_SHIFT, VK_LSHIFT, VK_RSHIFT:
		m.Shift = down
	case VK_LWIN, VK_RWIN:
		m.Meta = down
	}
}

// String returns the held modifiers as "ctrl+alt+shift+meta", or
// "none" when nothing is held. Intended for logs.
func (m ModifierState) String() string {
	parts := make([]string, 0, 4)
	if m.Ctrl {
		parts = append(parts, "ctrl")
	}
	if m.Alt {
		parts = append(parts, "alt")
	}
	if m.Shift {
		parts = append(parts, "shift")
	}
	if m.Meta {
		parts = append(parts, "meta")
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, "+")
}
