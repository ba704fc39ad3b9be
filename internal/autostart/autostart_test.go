package autostart

import "testing"

func TestQuoteCommand(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{`C:\tools\rxoverlay.exe`, `C:\tools\rxoverlay.exe`},
		{`C:\Program Files\rxoverlay\rxoverlay.exe`, `"C:\Program Files\rxoverlay\rxoverlay.exe"`},
		{`"C:\Program Files\rxoverlay\rxoverlay.exe"`, `"C:\Program Files\rxoverlay\rxoverlay.exe"`},
		{"", ""},
	}
	for _, tt := range tests {
		if got := quoteCommand(tt.input); got != tt.want {
			t.Errorf("quoteCommand(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}
