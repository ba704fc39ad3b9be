package hotkey

import (
	"testing"

	"rxoverlay/internal/hook"
)

func TestParseModifiers(t *testing.T) {
	tests := []struct {
		name    string
		in      []string
		want    Modifier
		wantErr bool
	}{
		{"empty", nil, 0, false},
		{"single", []string{"CTRL"}, ModCtrl, false},
		{"pair", []string{"CTRL", "ALT"}, ModCtrl | ModAlt, false},
		{"lowercase", []string{"ctrl", "shift"}, ModCtrl | ModShift, false},
		{"padded", []string{" WIN "}, ModMeta, false},
		{"all", []string{"CTRL", "ALT", "SHIFT", "WIN"}, ModCtrl | ModAlt | ModShift | ModMeta, false},
		{"duplicate names collapse", []string{"CTRL", "ctrl"}, ModCtrl, false},
		{"unknown", []string{"HYPER"}, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseModifiers(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseModifiers(%v) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("ParseModifiers(%v) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestFromState(t *testing.T) {
	tests := []struct {
		state hook.ModifierState
		want  Modifier
	}{
		{hook.ModifierState{}, 0},
		{hook.ModifierState{Ctrl: true}, ModCtrl},
		{hook.ModifierState{Ctrl: true, Alt: true}, ModCtrl | ModAlt},
		{hook.ModifierState{Shift: true, Meta: true}, ModShift | ModMeta},
	}
	for _, tt := range tests {
		if got := FromState(tt.state); got != tt.want {
			t.Errorf("FromState(%+v) = %v, want %v", tt.state, got, tt.want)
		}
	}
}

func TestMatchesExactSetEquality(t *testing.T) {
	b := Binding{Mods: ModCtrl | ModAlt, ScanCode: 42}

	tests := []struct {
		name string
		scan uint32
		held Modifier
		want bool
	}{
		{"exact match", 42, ModCtrl | ModAlt, true},
		{"wrong scan code", 41, ModCtrl | ModAlt, false},
		{"subset held", 42, ModCtrl, false},
		{"nothing held", 42, 0, false},
		{"superset held", 42, ModCtrl | ModAlt | ModShift, false},
		{"disjoint held", 42, ModShift, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Matches(tt.scan, tt.held, b); got != tt.want {
				t.Errorf("Matches(%d, %v, %v) = %v, want %v", tt.scan, tt.held, b, got, tt.want)
			}
		})
	}
}

func TestMatchesNoModifierBinding(t *testing.T) {
	b := Binding{Mods: 0, ScanCode: 19}

	if !Matches(19, 0, b) {
		t.Error("bare scan code with nothing held should match")
	}
	// Any held modifier disqualifies a no-modifier binding.
	if Matches(19, ModShift, b) {
		t.Error("held shift must not match a no-modifier binding")
	}
}

func TestMatchesUnsetBinding(t *testing.T) {
	if Matches(0, 0, Binding{}) {
		t.Error("the zero binding must never match")
	}
}

func TestParseBinding(t *testing.T) {
	b, err := ParseBinding([]string{"CTRL", "ALT"}, 42)
	if err != nil {
		t.Fatalf("ParseBinding: %v", err)
	}
	if b.Mods != ModCtrl|ModAlt || b.ScanCode != 42 {
		t.Errorf("ParseBinding = %+v", b)
	}

	if _, err := ParseBinding([]string{"NOPE"}, 42); err == nil {
		t.Error("expected error for unknown modifier")
	}
}

func TestBindingString(t *testing.T) {
	tests := []struct {
		b    Binding
		want string
	}{
		{Binding{}, "unset"},
		{Binding{ScanCode: 19}, "sc19"},
		{Binding{Mods: ModCtrl | ModAlt, ScanCode: 42}, "CTRL+ALT+sc42"},
	}
	for _, tt := range tests {
		if got := tt.b.String(); got != tt.want {
			t.Errorf("%+v String() = %q, want %q", tt.b, got, tt.want)
		}
	}
}

func TestActionString(t *testing.T) {
	want := map[Action]string{
		ActionToggle:        "toggle",
		ActionExit:          "exit",
		ActionSendPrimary:   "send_primary",
		ActionSendSecondary: "send_secondary",
		Action(42):          "unknown",
	}
	for a, s := range want {
		if got := a.String(); got != s {
			t.Errorf("Action(%d).String() = %q, want %q", int(a), got, s)
		}
	}
}
