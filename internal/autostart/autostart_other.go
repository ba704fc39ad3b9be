//go:build !windows

package autostart

// Enable is unsupported off Windows.
func Enable(_ string) error { return ErrUnsupported }

// Disable is unsupported off Windows.
func Disable() error { return ErrUnsupported }

// IsEnabled always reports false off Windows.
func IsEnabled() bool { return false }
