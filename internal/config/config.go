// Package config handles configuration loading, validation, and management for rxoverlay.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"sync"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Version is the schema version written into new config files.
//
// Version 1 was the original flat JSON layout with hotkeys named
// send_r/send_x. Version 2 renamed them to send_primary/send_secondary
// and split runtime state into its own file.
const Version = 2

// Config holds the complete application configuration.
type Config struct {
	// Version tells the migration code which schema wrote the file.
	Version int `toml:"version" json:"version" yaml:"version"`

	// Overlay configuration for the floating window.
	Overlay OverlayConfig `toml:"overlay" json:"overlay" yaml:"overlay"`

	// Hotkeys configuration for global key bindings.
	Hotkeys HotkeysConfig `toml:"hotkeys" json:"hotkeys" yaml:"hotkeys"`

	// Injection configuration for synthetic keystrokes.
	Injection InjectionConfig `toml:"injection" json:"injection" yaml:"injection"`

	// Logging configuration.
	Logging LoggingConfig `toml:"logging" json:"logging" yaml:"logging"`

	// IPC configuration for the control pipe.
	IPC IPCConfig `toml:"ipc" json:"ipc" yaml:"ipc"`

	// History configuration for the action log database.
	History HistoryConfig `toml:"history" json:"history" yaml:"history"`

	// Startup configuration.
	Startup StartupConfig `toml:"startup" json:"startup" yaml:"startup"`

	// mu guards reads against a concurrent ApplyEnvOverrides or Clone.
	mu sync.RWMutex `toml:"-" json:"-" yaml:"-"`
}

// OverlayConfig holds the floating window configuration.
type OverlayConfig struct {
	// PositionX is the last saved window X coordinate in screen pixels.
	PositionX int `toml:"position_x" json:"position_x" yaml:"position_x"`

	// PositionY is the last saved window Y coordinate in screen pixels.
	PositionY int `toml:"position_y" json:"position_y" yaml:"position_y"`

	// AlwaysOnTop keeps the overlay above normal windows.
	AlwaysOnTop bool `toml:"always_on_top" json:"always_on_top" yaml:"always_on_top"`

	// Opacity is the window opacity from 0.05 (nearly invisible) to 1.0.
	Opacity float64 `toml:"opacity" json:"opacity" yaml:"opacity"`

	// Theme selects the widget palette: "light" or "dark".
	Theme string `toml:"theme" json:"theme" yaml:"theme"`

	// AutoHideAfterActionMs hides the overlay this long after a send
	// action completes. 0 disables auto-hide.
	AutoHideAfterActionMs int `toml:"auto_hide_after_action_ms" json:"auto_hide_after_action_ms" yaml:"auto_hide_after_action_ms"`
}

// Binding describes one global hotkey: a hardware scan code plus the
// exact set of modifiers that must be held.
type Binding struct {
	// Mods is the required modifier set: any of "CTRL", "ALT",
	// "SHIFT", "WIN". The match is exact; extra held modifiers
	// prevent the binding from firing.
	Mods []string `toml:"mods" json:"mods" yaml:"mods"`

	// ScanCode is the hardware scan code of the trigger key.
	ScanCode uint16 `toml:"scancode" json:"scancode" yaml:"scancode"`
}

// HotkeysConfig holds the global key bindings.
type HotkeysConfig struct {
	// Toggle enables or disables hotkey actions.
	Toggle Binding `toml:"toggle" json:"toggle" yaml:"toggle"`

	// Exit quits the application.
	Exit Binding `toml:"exit" json:"exit" yaml:"exit"`

	// SendPrimary injects the primary text into the focused app.
	SendPrimary Binding `toml:"send_primary" json:"send_primary" yaml:"send_primary"`

	// SendSecondary injects the secondary text into the focused app.
	SendSecondary Binding `toml:"send_secondary" json:"send_secondary" yaml:"send_secondary"`
}

// InjectionConfig holds synthetic keystroke configuration.
type InjectionConfig struct {
	// Method selects the injection backend. Only "sendinput" is
	// currently supported.
	Method string `toml:"method" json:"method" yaml:"method"`

	// UseKeyUp emits a key-up event after each key-down.
	UseKeyUp bool `toml:"use_keyup" json:"use_keyup" yaml:"use_keyup"`

	// InterKeyDelayMs is the pause between injected characters.
	InterKeyDelayMs int `toml:"inter_key_delay_ms" json:"inter_key_delay_ms" yaml:"inter_key_delay_ms"`

	// HideOverlayBeforeSend hides a visible overlay before handing
	// focus to the target window.
	HideOverlayBeforeSend bool `toml:"hide_overlay_before_send" json:"hide_overlay_before_send" yaml:"hide_overlay_before_send"`
}

// LoggingConfig controls where the daemon logs and how much.
type LoggingConfig struct {
	// Level is the minimum level that gets through: debug, info,
	// warn, error.
	Level string `toml:"level" json:"level" yaml:"level"`

	// Format selects the entry encoding, text or json.
	Format string `toml:"format" json:"format" yaml:"format"`

	// Output routes entries: stdout, stderr, file, or both.
	Output string `toml:"output" json:"output" yaml:"output"`

	// FilePath locates the log file when output includes one.
	FilePath string `toml:"file_path" json:"file_path" yaml:"file_path"`

	// MaxSizeMB caps the live file size before it rolls over.
	MaxSizeMB int `toml:"max_size_mb" json:"max_size_mb" yaml:"max_size_mb"`

	// MaxBackups is how many rolled files survive pruning.
	MaxBackups int `toml:"max_backups" json:"max_backups" yaml:"max_backups"`

	// MaxAgeDays expires rolled files by age.
	MaxAgeDays int `toml:"max_age_days" json:"max_age_days" yaml:"max_age_days"`
}

// IPCConfig holds control pipe configuration.
type IPCConfig struct {
	// Enabled determines whether the control pipe is served.
	Enabled bool `toml:"enabled" json:"enabled" yaml:"enabled"`

	// PipeName is the full named pipe path, e.g. \\.\pipe\rxoverlay-alice.
	PipeName string `toml:"pipe_name" json:"pipe_name" yaml:"pipe_name"`

	// MaxConnections is the maximum number of concurrent clients.
	MaxConnections int `toml:"max_connections" json:"max_connections" yaml:"max_connections"`

	// TimeoutSec is the per-request read/write timeout.
	TimeoutSec int `toml:"timeout_sec" json:"timeout_sec" yaml:"timeout_sec"`
}

// HistoryConfig holds the action history database configuration.
type HistoryConfig struct {
	// Enabled determines whether actions are recorded.
	Enabled bool `toml:"enabled" json:"enabled" yaml:"enabled"`

	// Path is the SQLite database file.
	Path string `toml:"path" json:"path" yaml:"path"`

	// RetentionDays is how long to keep recorded actions.
	RetentionDays int `toml:"retention_days" json:"retention_days" yaml:"retention_days"`

	// BusyTimeoutMs is the SQLite busy timeout in milliseconds.
	BusyTimeoutMs int `toml:"busy_timeout_ms" json:"busy_timeout_ms" yaml:"busy_timeout_ms"`
}

// StartupConfig holds startup behavior configuration.
type StartupConfig struct {
	// EnabledOnStartup arms hotkey actions when the app launches.
	// The persisted runtime state takes precedence once it exists.
	EnabledOnStartup bool `toml:"enabled_on_startup" json:"enabled_on_startup" yaml:"enabled_on_startup"`

	// RunAtLogin registers the app to start at user login.
	RunAtLogin bool `toml:"run_at_login" json:"run_at_login" yaml:"run_at_login"`
}

// DefaultConfig returns the configuration a fresh install starts from.
func DefaultConfig() *Config {
	dir := AppDir()

	return &Config{
		Version: Version,
		Overlay: OverlayConfig{
			PositionX:             100,
			PositionY:             100,
			AlwaysOnTop:           true,
			Opacity:               0.9,
			Theme:                 "light",
			AutoHideAfterActionMs: 0, // Disabled by default
		},
		Hotkeys: HotkeysConfig{
			Toggle:        Binding{Mods: []string{"CTRL", "ALT"}, ScanCode: 42}, // Left Shift
			Exit:          Binding{Mods: []string{"CTRL", "ALT"}, ScanCode: 41}, // Grave/Tilde
			SendPrimary:   Binding{Mods: []string{}, ScanCode: 19},              // R key
			SendSecondary: Binding{Mods: []string{}, ScanCode: 45},              // X key
		},
		Injection: InjectionConfig{
			Method:                "sendinput",
			UseKeyUp:              true,
			InterKeyDelayMs:       10,
			HideOverlayBeforeSend: true,
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "text",
			Output:     "both",
			FilePath:   filepath.Join(PlatformLogDir(), "rxoverlay.log"),
			MaxSizeMB:  10,
			MaxBackups: 3,
			MaxAgeDays: 14,
		},
		IPC: IPCConfig{
			Enabled:        true,
			PipeName:       DefaultPipeName(),
			MaxConnections: 4,
			TimeoutSec:     10,
		},
		History: HistoryConfig{
			Enabled:       true,
			Path:          filepath.Join(dir, "history.db"),
			RetentionDays: 30,
			BusyTimeoutMs: 5000,
		},
		Startup: StartupConfig{
			EnabledOnStartup: true,
			RunAtLogin:       false,
		},
	}
}

// ConfigPath returns the default configuration file path. The
// RXOVERLAY_CONFIG environment variable overrides it; an explicit
// -config flag wins over both.
func ConfigPath() string {
	if envPath := os.Getenv("RXOVERLAY_CONFIG"); envPath != "" {
		return envPath
	}
	return filepath.Join(PlatformConfigDir(), "config.toml")
}

// StatePath returns the default runtime state file path.
func StatePath() string {
	return filepath.Join(AppDir(), "state.json")
}

// AppDir returns the base rxoverlay directory.
// Uses platform-specific paths or the RXOVERLAY_DATA_DIR environment override.
func AppDir() string {
	if envDir := os.Getenv("RXOVERLAY_DATA_DIR"); envDir != "" {
		return envDir
	}
	return PlatformDataDir()
}

// Load reads the configuration at path, or the default path when path
// is empty. A missing file yields the defaults. The file extension
// picks the format; anything unrecognized is treated as TOML.
func Load(path string) (*Config, error) {
	if path == "" {
		path = ConfigPath()
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return DefaultConfig(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	ext := filepath.Ext(path)
	cfg := DefaultConfig()
	if err := decodeInto(cfg, data, ext); err != nil {
		return nil, err
	}

	// Version 1 files were JSON with a different key layout. Re-read
	// the raw document so the renamed keys survive migration.
	if ext == ".json" && cfg.Version < Version {
		var raw map[string]interface{}
		if err := json.Unmarshal(data, &raw); err == nil {
			cfg = MigrateLegacyConfig(raw)
		}
	}

	cfg.ApplyEnvOverrides()
	return cfg, nil
}

func decodeInto(cfg *Config, data []byte, ext string) error {
	switch ext {
	case ".json":
		if err := json.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("decode JSON: %w", err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("decode YAML: %w", err)
		}
	default:
		if _, err := toml.Decode(string(data), cfg); err != nil {
			return fmt.Errorf("decode TOML: %w", err)
		}
	}
	return nil
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	return ValidateConfig(c)
}

// EnsureDirectories creates all directories the application writes to.
func (c *Config) EnsureDirectories() error {
	dirs := []string{
		AppDir(),
		filepath.Dir(c.Logging.FilePath),
		filepath.Dir(c.History.Path),
	}

	for _, dir := range dirs {
		if dir == "" || dir == "." {
			continue
		}
		if err := os.MkdirAll(dir, 0700); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}

	return nil
}

// ApplyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables are prefixed with RXOVERLAY_ and use underscores.
func (c *Config) ApplyEnvOverrides() {
	c.mu.Lock()
	defer c.mu.Unlock()

	// Logging overrides
	if v := os.Getenv("RXOVERLAY_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("RXOVERLAY_LOG_PATH"); v != "" {
		c.Logging.FilePath = v
	}

	// IPC overrides
	if v := os.Getenv("RXOVERLAY_PIPE_NAME"); v != "" {
		c.IPC.PipeName = v
	}

	// History overrides
	if v := os.Getenv("RXOVERLAY_HISTORY_PATH"); v != "" {
		c.History.Path = v
	}
}

// Clone returns a deep copy of the configuration.
func (c *Config) Clone() *Config {
	c.mu.RLock()
	defer c.mu.RUnlock()

	clone := &Config{
		Version:   c.Version,
		Overlay:   c.Overlay,
		Hotkeys:   c.Hotkeys,
		Injection: c.Injection,
		Logging:   c.Logging,
		IPC:       c.IPC,
		History:   c.History,
		Startup:   c.Startup,
	}

	// The struct copy above shares the modifier slices; unshare them.
	clone.Hotkeys.Toggle.Mods = slices.Clone(c.Hotkeys.Toggle.Mods)
	clone.Hotkeys.Exit.Mods = slices.Clone(c.Hotkeys.Exit.Mods)
	clone.Hotkeys.SendPrimary.Mods = slices.Clone(c.Hotkeys.SendPrimary.Mods)
	clone.Hotkeys.SendSecondary.Mods = slices.Clone(c.Hotkeys.SendSecondary.Mods)

	return clone
}

// Bindings returns the configured hotkeys as an ordered list. The
// order is the priority order used when one keystroke matches more
// than one binding: toggle, exit, send-primary, send-secondary.
func (c *Config) Bindings() []NamedBinding {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return []NamedBinding{
		{Name: "toggle", Binding: c.Hotkeys.Toggle},
		{Name: "exit", Binding: c.Hotkeys.Exit},
		{Name: "send_primary", Binding: c.Hotkeys.SendPrimary},
		{Name: "send_secondary", Binding: c.Hotkeys.SendSecondary},
	}
}

// NamedBinding pairs a binding with its configured role.
type NamedBinding struct {
	Name    string
	Binding Binding
}
