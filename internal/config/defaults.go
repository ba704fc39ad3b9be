package config

import (
	"os"
	"path/filepath"
	"runtime"
)

// appFolder names the directory rxoverlay claims under each platform
// root.
const appFolder = "rxoverlay"

// PlatformDataDir returns where runtime state and the action history
// live:
//
//   - Windows: %LOCALAPPDATA%\rxoverlay
//   - macOS:   ~/Library/Application Support/rxoverlay
//   - Linux:   $XDG_DATA_HOME/rxoverlay or ~/.local/share/rxoverlay
//
// Everything here is machine-local by nature (overlay position, state,
// history), which is why Windows uses LOCALAPPDATA rather than the
// roaming profile.
func PlatformDataDir() string {
	switch runtime.GOOS {
	case "windows":
		return filepath.Join(windowsLocalRoot(), appFolder)
	case "darwin":
		return filepath.Join(homeDir(), "Library", "Application Support", appFolder)
	case "linux":
		return filepath.Join(xdgDir("XDG_DATA_HOME", ".local", "share"), appFolder)
	default:
		return filepath.Join(homeDir(), "."+appFolder)
	}
}

// PlatformConfigDir returns where config.toml lives. Only Linux
// separates config from data (XDG); Windows and macOS keep them
// together.
func PlatformConfigDir() string {
	if runtime.GOOS == "linux" {
		return filepath.Join(xdgDir("XDG_CONFIG_HOME", ".config"), appFolder)
	}
	return PlatformDataDir()
}

// PlatformLogDir returns where logs live: a logs subdirectory of the
// data dir, except on macOS which has a dedicated location.
func PlatformLogDir() string {
	if runtime.GOOS == "darwin" {
		return filepath.Join(homeDir(), "Library", "Logs", appFolder)
	}
	return filepath.Join(PlatformDataDir(), "logs")
}

// DefaultPipeName returns the per-user control pipe name. Scoping by
// username keeps two sessions on the same machine from fighting over
// one pipe.
func DefaultPipeName() string {
	for _, env := range []string{"USERNAME", "USER"} {
		if u := os.Getenv(env); u != "" {
			return `\\.\pipe\rxoverlay-` + u
		}
	}
	return `\\.\pipe\rxoverlay-default`
}

func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}

// windowsLocalRoot resolves %LOCALAPPDATA%, reconstructing it from the
// home directory when the environment is stripped.
func windowsLocalRoot() string {
	if v := os.Getenv("LOCALAPPDATA"); v != "" {
		return v
	}
	return filepath.Join(homeDir(), "AppData", "Local")
}

// xdgDir resolves an XDG base directory variable with its conventional
// home-relative fallback.
func xdgDir(envVar string, fallback ...string) string {
	if v := os.Getenv(envVar); v != "" {
		return v
	}
	parts := append([]string{homeDir()}, fallback...)
	return filepath.Join(parts...)
}
