// Package inject synthesizes keystrokes indistinguishable from
// hardware input.
//
// Text is encoded as UTF-16 code units and emitted as Unicode-tagged
// input events, so the characters do not need to exist on the active
// keyboard layout.
package inject

import "unicode/utf16"

// keyUnit is one synthetic keyboard transition for a UTF-16 code unit.
type keyUnit struct {
	unit uint16
	up   bool
}

// utf16Units encodes s into native 16-bit code units.
func utf16Units(s string) []uint16 {
	return utf16.Encode([]rune(s))
}

// expand returns the down+up transition sequence for the given code
// units, in injection order: both transitions of a unit are emitted
// before the next unit begins.
func expand(units []uint16) []keyUnit {
	seq := make([]keyUnit, 0, len(units)*2)
	for _, u := range units {
		seq = append(seq, keyUnit{unit: u}, keyUnit{unit: u, up: true})
	}
	return seq
}
