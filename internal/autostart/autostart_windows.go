//go:build windows

package autostart

import (
	"errors"
	"fmt"

	"golang.org/x/sys/windows/registry"
)

const (
	runKeyPath = `Software\Microsoft\Windows\CurrentVersion\Run`
	valueName  = "rxoverlay"
)

// Enable registers command to run at login. Re-enabling overwrites
// the entry, which also repairs a stale path after the executable
// moved.
func Enable(command string) error {
	return enableValue(valueName, command)
}

// Disable removes the Run entry. Removing an absent entry is not an
// error.
func Disable() error {
	return disableValue(valueName)
}

// IsEnabled reports whether a Run entry exists for the daemon.
func IsEnabled() bool {
	return valueExists(valueName)
}

func enableValue(name, command string) error {
	if command == "" {
		return errors.New("autostart command is required")
	}
	key, err := registry.OpenKey(registry.CURRENT_USER, runKeyPath, registry.SET_VALUE)
	if err != nil {
		return fmt.Errorf("open run key: %w", err)
	}
	defer key.Close()

	if err := key.SetStringValue(name, quoteCommand(command)); err != nil {
		return fmt.Errorf("set run entry: %w", err)
	}
	return nil
}

func disableValue(name string) error {
	key, err := registry.OpenKey(registry.CURRENT_USER, runKeyPath, registry.SET_VALUE)
	if err != nil {
		if errors.Is(err, registry.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("open run key: %w", err)
	}
	defer key.Close()

	if err := key.DeleteValue(name); err != nil && !errors.Is(err, registry.ErrNotExist) {
		return fmt.Errorf("delete run entry: %w", err)
	}
	return nil
}

func valueExists(name string) bool {
	key, err := registry.OpenKey(registry.CURRENT_USER, runKeyPath, registry.QUERY_VALUE)
	if err != nil {
		return false
	}
	defer key.Close()

	_, _, err = key.GetStringValue(name)
	return err == nil
}
