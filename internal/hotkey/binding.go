package hotkey

import (
	"fmt"
	"strings"

	"rxoverlay/internal/hook"
)

// Modifier is a bitmask of modifier keys. Exact-set matching is plain
// equality between two masks.
type Modifier uint8

const (
	ModCtrl Modifier = 1 << iota
	ModAlt
	ModShift
	ModMeta
)

// modifierNames maps configuration names to bits, in display order.
var modifierNames = []struct {
	name string
	bit  Modifier
}{
	{"CTRL", ModCtrl},
	{"ALT", ModAlt},
	{"SHIFT", ModShift},
	{"WIN", ModMeta},
}

// ParseModifiers converts configuration modifier names to a bitmask.
// Recognized names are CTRL, ALT, SHIFT, and WIN, case-insensitive.
func ParseModifiers(names []string) (Modifier, error) {
	var mods Modifier
	for _, raw := range names {
		name := strings.ToUpper(strings.TrimSpace(raw))
		found := false
		for _, m := range modifierNames {
			if m.name == name {
				mods |= m.bit
				found = true
				break
			}
		}
		if !found {
			return 0, fmt.Errorf("unknown modifier %q", raw)
		}
	}
	return mods, nil
}

// FromState converts a hook modifier snapshot to a bitmask.
func FromState(m hook.ModifierState) Modifier {
	var mods Modifier
	if m.Ctrl {
		mods |= ModCtrl
	}
	if m.Alt {
		mods |= ModAlt
	}
	if m.Shift {
		mods |= ModShift
	}
	if m.Meta {
		mods |= ModMeta
	}
	return mods
}

// String returns the configuration names joined with "+", or "none".
func (m Modifier) String() string {
	if m == 0 {
		return "none"
	}
	parts := make([]string, 0, 4)
	for _, n := range modifierNames {
		if m&n.bit != 0 {
			parts = append(parts, n.name)
		}
	}
	return strings.Join(parts, "+")
}

// Binding is one configured hotkey: a trigger scan code plus the exact
// modifier set that must be held when it goes down. The zero Binding
// is unset and never matches.
type Binding struct {
	Mods     Modifier
	ScanCode uint32
}

// ParseBinding builds a Binding from configuration values.
func ParseBinding(names []string, scanCode uint16) (Binding, error) {
	mods, err := ParseModifiers(names)
	if err != nil {
		return Binding{}, err
	}
	return Binding{Mods: mods, ScanCode: uint32(scanCode)}, nil
}

// String formats a binding for logs, e.g. "CTRL+ALT+sc42".
func (b Binding) String() string {
	if b.ScanCode == 0 {
		return "unset"
	}
	if b.Mods == 0 {
		return fmt.Sprintf("sc%d", b.ScanCode)
	}
	return fmt.Sprintf("%s+sc%d", b.Mods, b.ScanCode)
}

// Bindings holds one binding per action.
type Bindings struct {
	Toggle        Binding
	Exit          Binding
	SendPrimary   Binding
	SendSecondary Binding
}

// Matches reports whether a key press satisfies a binding: scan-code
// equality plus exact modifier-set equality. Extra held modifiers
// beyond the required set make a non-match, as does a missing one.
func Matches(scanCode uint32, held Modifier, b Binding) bool {
	return b.ScanCode != 0 && b.ScanCode == scanCode && b.Mods == held
}
