package overlay

// colorRef is a Win32 COLORREF laid out as 0x00BBGGRR.
type colorRef uint32

func rgb(r, g, b byte) colorRef {
	return colorRef(uint32(r) | uint32(g)<<8 | uint32(b)<<16)
}

// theme is the palette for the overlay surface and its buttons.
type theme struct {
	surface  colorRef
	stroke   colorRef
	button   colorRef
	hover    colorRef
	pressed  colorRef
	text     colorRef
	disabled colorRef
}

var lightTheme = theme{
	surface:  rgb(0xF2, 0xF2, 0xF7),
	stroke:   rgb(0xD1, 0xD1, 0xD6),
	button:   rgb(0xFF, 0xFF, 0xFF),
	hover:    rgb(0xF5, 0xF5, 0xF7),
	pressed:  rgb(0xE5, 0xE5, 0xEA),
	text:     rgb(0x1C, 0x1C, 0x1E),
	disabled: rgb(0x8E, 0x8E, 0x93),
}

var darkTheme = theme{
	surface:  rgb(0x1C, 0x1C, 0x1E),
	stroke:   rgb(0x2C, 0x2C, 0x2E),
	button:   rgb(0x2C, 0x2C, 0x2E),
	hover:    rgb(0x3A, 0x3A, 0x3C),
	pressed:  rgb(0x24, 0x24, 0x26),
	text:     rgb(0xFF, 0xFF, 0xFF),
	disabled: rgb(0x8E, 0x8E, 0x93),
}

// themeByName returns the named palette. Unknown names fall back to
// light.
func themeByName(name string) theme {
	if name == "dark" {
		return darkTheme
	}
	return lightTheme
}
