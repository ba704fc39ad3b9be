package theme

import (
	"image/color"

	"gioui.org/unit"
	"gioui.org/widget/material"
)

// nrgb builds an opaque color from its channel bytes.
func nrgb(r, g, b byte) color.NRGBA {
	return color.NRGBA{R: r, G: g, B: b, A: 0xFF}
}

// Layout metrics shared by the settings panels.
const (
	CornerRadius = unit.Dp(4)
	Padding      = unit.Dp(16)
	FontTitle    = unit.Sp(20)
	FontBody     = unit.Sp(14)
)

// Palette carries the settings window colors. The light and dark
// variants reuse the overlay window's tones so the two surfaces look
// related.
type Palette struct {
	Background color.NRGBA
	Surface    color.NRGBA
	Primary    color.NRGBA
	Text       color.NRGBA
	TextMuted  color.NRGBA
	Success    color.NRGBA
	Warning    color.NRGBA
	Error      color.NRGBA
}

var palettes = map[string]Palette{
	"light": {
		Background: nrgb(0xF2, 0xF2, 0xF7),
		Surface:    nrgb(0xFF, 0xFF, 0xFF),
		Primary:    nrgb(0x00, 0x78, 0xD4),
		Text:       nrgb(0x1C, 0x1C, 0x1E),
		TextMuted:  nrgb(0x8E, 0x8E, 0x93),
		Success:    nrgb(0x34, 0x8A, 0x2E),
		Warning:    nrgb(0xB8, 0x6A, 0x00),
		Error:      nrgb(0xE8, 0x11, 0x23),
	},
	"dark": {
		Background: nrgb(0x1C, 0x1C, 0x1E),
		Surface:    nrgb(0x2C, 0x2C, 0x2E),
		Primary:    nrgb(0x00, 0x78, 0xD4),
		Text:       nrgb(0xFF, 0xFF, 0xFF),
		TextMuted:  nrgb(0x8E, 0x8E, 0x93),
		Success:    nrgb(0x6B, 0xBC, 0x0F),
		Warning:    nrgb(0xFF, 0xB9, 0x00),
		Error:      nrgb(0xFF, 0x45, 0x3A),
	},
}

// Theme couples the material theme with the active palette.
type Theme struct {
	*material.Theme
	Palette Palette
}

// NewTheme wraps mtheme in the given mode ("light" or "dark").
func NewTheme(mtheme *material.Theme, mode string) *Theme {
	t := &Theme{Theme: mtheme}
	t.Apply(mode)
	return t
}

// Apply switches the palette in place. Unknown modes fall back to
// light, matching the overlay's behavior.
func (t *Theme) Apply(mode string) {
	p, ok := palettes[mode]
	if !ok {
		p = palettes["light"]
	}
	t.Palette = p

	// Material widgets draw from the embedded theme's palette.
	t.Theme.Palette.Bg = p.Background
	t.Theme.Palette.Fg = p.Text
	t.Theme.Palette.ContrastBg = p.Primary
	t.Theme.Palette.ContrastFg = nrgb(0xFF, 0xFF, 0xFF)
}
