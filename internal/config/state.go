package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// State is the persisted runtime state, kept separate from the
// configuration so user edits to config files never race with the
// app's own writes.
type State struct {
	// Enabled is whether hotkey actions are currently armed.
	Enabled bool `json:"enabled"`

	// Minimized is whether the overlay is collapsed to its restore widget.
	Minimized bool `json:"minimized"`
}

// DefaultState returns the state used on first launch.
func DefaultState() *State {
	return &State{
		Enabled:   true,
		Minimized: false,
	}
}

// LoadState reads the runtime state from path. A missing file yields
// defaults with no error. A corrupt file yields defaults plus the
// parse error so the caller can log it; fields absent from the file
// keep their default values.
func LoadState(path string) (*State, error) {
	if path == "" {
		path = StatePath()
	}

	st := DefaultState()

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return st, nil
		}
		return st, fmt.Errorf("read state file: %w", err)
	}

	if err := json.Unmarshal(data, st); err != nil {
		return DefaultState(), fmt.Errorf("decode state file: %w", err)
	}

	return st, nil
}

// SaveState writes the runtime state to path atomically. State is
// saved on every enable/minimize transition, so a crash mid-write
// must never leave a truncated file behind.
func SaveState(st *State, path string) error {
	if path == "" {
		path = StatePath()
	}

	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("create state directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".state-*.json")
	if err != nil {
		return fmt.Errorf("create temp state file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write state: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp state file: %w", err)
	}

	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace state file: %w", err)
	}

	return nil
}
