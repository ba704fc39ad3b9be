//go:build windows

package autostart

import "testing"

// The round-trip test uses its own value name so it never touches a
// real rxoverlay install on the machine running the tests.
const testValueName = "rxoverlay-autostart-test"

func TestRunEntryRoundTrip(t *testing.T) {
	t.Cleanup(func() {
		if err := disableValue(testValueName); err != nil {
			t.Errorf("cleanup disable failed: %v", err)
		}
	})

	if valueExists(testValueName) {
		t.Fatal("test value already present before the test")
	}

	if err := enableValue(testValueName, `C:\tools\rxoverlay.exe`); err != nil {
		t.Fatalf("enable failed: %v", err)
	}
	if !valueExists(testValueName) {
		t.Fatal("value missing after enable")
	}

	// Overwriting repairs a moved install.
	if err := enableValue(testValueName, `C:\Program Files\rxoverlay\rxoverlay.exe`); err != nil {
		t.Fatalf("re-enable failed: %v", err)
	}

	if err := disableValue(testValueName); err != nil {
		t.Fatalf("disable failed: %v", err)
	}
	if valueExists(testValueName) {
		t.Fatal("value still present after disable")
	}

	// A second disable is a no-op.
	if err := disableValue(testValueName); err != nil {
		t.Fatalf("disable of absent value should succeed, got: %v", err)
	}
}

func TestEnableRequiresCommand(t *testing.T) {
	if err := enableValue(testValueName, ""); err == nil {
		t.Fatal("enable with empty command should fail")
	}
}
