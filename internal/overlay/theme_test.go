package overlay

import "testing"

func TestThemeByName(t *testing.T) {
	if got := themeByName("dark"); got != darkTheme {
		t.Error("dark did not select the dark palette")
	}
	if got := themeByName("light"); got != lightTheme {
		t.Error("light did not select the light palette")
	}
	if got := themeByName("solarized"); got != lightTheme {
		t.Error("unknown theme did not fall back to light")
	}
}

func TestColorRefLayout(t *testing.T) {
	// COLORREF is 0x00BBGGRR.
	if got := rgb(0x11, 0x22, 0x33); got != 0x332211 {
		t.Errorf("rgb(0x11,0x22,0x33) = %#x, want 0x332211", got)
	}
}
