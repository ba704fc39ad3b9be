// Package autostart registers the daemon in the per-user Run key so
// it launches at login. Driven by the startup.run_at_login config
// switch and the settings GUI.
package autostart

import (
	"errors"
	"strings"
)

// ErrUnsupported is returned off Windows, where login items are not
// managed here.
var ErrUnsupported = errors.New("autostart requires windows")

// quoteCommand wraps a path containing spaces in quotes so the Run
// entry survives the command-line split.
func quoteCommand(cmd string) string {
	if cmd == "" || strings.HasPrefix(cmd, `"`) || !strings.Contains(cmd, " ") {
		return cmd
	}
	return `"` + cmd + `"`
}
