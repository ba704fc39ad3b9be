package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// MigrationResult records what a schema upgrade did to a config file.
type MigrationResult struct {
	FromVersion int
	ToVersion   int
	Backup      string
	Changes     []string
	Warnings    []string
}

// changeLog collects the change and warning notes a migration emits.
type changeLog struct {
	changes  []string
	warnings []string
}

func (cl *changeLog) changed(msg string) {
	cl.changes = append(cl.changes, msg)
}

func (cl *changeLog) changedf(format string, args ...any) {
	cl.changes = append(cl.changes, fmt.Sprintf(format, args...))
}

func (cl *changeLog) warnf(format string, args ...any) {
	cl.warnings = append(cl.warnings, fmt.Sprintf(format, args...))
}

// MigrateConfig upgrades cfg in place to the current schema version,
// snapshotting the on-disk file first. It returns nil when cfg is
// already current.
func MigrateConfig(cfg *Config, configPath string) (*MigrationResult, error) {
	if cfg.Version >= Version {
		return nil, nil
	}

	result := &MigrationResult{FromVersion: cfg.Version, ToVersion: Version}
	log := &changeLog{}

	if configPath != "" {
		backup, err := snapshotFile(configPath)
		if err != nil {
			log.warnf("could not create backup: %v", err)
		}
		result.Backup = backup
	}

	// Files that never carried a version are treated as version 1.
	if cfg.Version < 1 {
		cfg.Version = 1
	}

	for cfg.Version < Version {
		step := migrationFrom(cfg.Version)
		if step == nil {
			return result, fmt.Errorf("migration from v%d to v%d failed: unknown version %d",
				cfg.Version, cfg.Version+1, cfg.Version)
		}
		step(cfg, log)
		cfg.Version++
	}

	result.Changes = log.changes
	result.Warnings = log.warnings
	return result, nil
}

// migrationFrom returns the step that upgrades a config from version v
// to v+1, or nil when v is not a known version.
func migrationFrom(v int) func(*Config, *changeLog) {
	switch v {
	case 1:
		return migrateV1
	}
	return nil
}

// migrateV1 fills in what a version 1 file could not carry. V1 was the
// original JSON layout with send_r/send_x hotkey names and no control
// pipe or history sections; the renamed keys themselves are recovered
// by MigrateLegacyConfig at decode time.
func migrateV1(cfg *Config, log *changeLog) {
	def := DefaultConfig()

	hotkeys := []struct {
		name string
		dst  *Binding
		def  Binding
	}{
		{"toggle", &cfg.Hotkeys.Toggle, def.Hotkeys.Toggle},
		{"exit", &cfg.Hotkeys.Exit, def.Hotkeys.Exit},
		{"send_primary", &cfg.Hotkeys.SendPrimary, def.Hotkeys.SendPrimary},
		{"send_secondary", &cfg.Hotkeys.SendSecondary, def.Hotkeys.SendSecondary},
	}
	for _, hk := range hotkeys {
		if hk.dst.ScanCode == 0 {
			*hk.dst = hk.def
			log.changedf("set default %s hotkey", hk.name)
		}
	}

	if cfg.Injection.Method == "" {
		cfg.Injection.Method = "sendinput"
		log.changed("set injection method to sendinput")
	}

	// V1 had no format/output split; it always logged text to a file.
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "text"
		log.changed("set log format to text")
	}
	if cfg.Logging.Output == "" {
		cfg.Logging.Output = "both"
		log.changed("set log output to both")
	}
	if cfg.Logging.MaxSizeMB == 0 {
		cfg.Logging.MaxSizeMB = def.Logging.MaxSizeMB
		cfg.Logging.MaxBackups = def.Logging.MaxBackups
		cfg.Logging.MaxAgeDays = def.Logging.MaxAgeDays
		log.changed("added log rotation settings")
	}

	if cfg.IPC.PipeName == "" {
		cfg.IPC = def.IPC
		log.changed("added control pipe configuration")
	}

	if cfg.History.Path == "" {
		cfg.History = def.History
		log.changed("added action history configuration")
	}
}

// snapshotFile copies path aside before a migration rewrites it. A
// missing file is not an error; there is simply nothing to keep.
func snapshotFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read config: %w", err)
	}

	backup := fmt.Sprintf("%s.backup-%s", path, time.Now().Format("20060102-150405"))
	if err := os.WriteFile(backup, data, 0600); err != nil {
		return "", fmt.Errorf("write backup: %w", err)
	}
	return backup, nil
}

// MigrateLegacyConfig converts a version 1 configuration document to
// the current layout. V1 was always JSON, with nested position
// coordinates and hotkeys keyed toggle_enabled/exit/send_r/send_x.
// Anything the document does not mention keeps its default.
func MigrateLegacyConfig(data map[string]interface{}) *Config {
	cfg := DefaultConfig()

	cfg.Version = 1
	if v, ok := data["version"].(float64); ok {
		cfg.Version = int(v)
	}

	// V1 kept the startup arm flag at the top level.
	readBool(data, "enabled_on_startup", &cfg.Startup.EnabledOnStartup)

	overlay := section(data, "overlay")
	pos := section(overlay, "position")
	readInt(pos, "x", &cfg.Overlay.PositionX)
	readInt(pos, "y", &cfg.Overlay.PositionY)
	readBool(overlay, "always_on_top", &cfg.Overlay.AlwaysOnTop)
	readFloat(overlay, "opacity", &cfg.Overlay.Opacity)
	readString(overlay, "theme", &cfg.Overlay.Theme)
	readInt(overlay, "auto_hide_after_action_ms", &cfg.Overlay.AutoHideAfterActionMs)

	hotkeys := section(data, "hotkeys")
	readBinding(hotkeys, "toggle_enabled", &cfg.Hotkeys.Toggle)
	readBinding(hotkeys, "exit", &cfg.Hotkeys.Exit)
	// send_r and send_x became send_primary and send_secondary.
	readBinding(hotkeys, "send_r", &cfg.Hotkeys.SendPrimary)
	readBinding(hotkeys, "send_x", &cfg.Hotkeys.SendSecondary)

	injection := section(data, "injection")
	readString(injection, "method", &cfg.Injection.Method)
	readBool(injection, "use_keyup", &cfg.Injection.UseKeyUp)
	readInt(injection, "inter_key_delay_ms", &cfg.Injection.InterKeyDelayMs)
	// fallback_hide_overlay_before_send became hide_overlay_before_send.
	readBool(injection, "fallback_hide_overlay_before_send", &cfg.Injection.HideOverlayBeforeSend)

	logging := section(data, "logging")
	if v, ok := logging["level"].(string); ok {
		cfg.Logging.Level = strings.ToLower(v)
	}
	// V1 stored a bare file name relative to the app directory.
	if v, ok := logging["file"].(string); ok && v != "" {
		cfg.Logging.FilePath = v
		if !filepath.IsAbs(v) {
			cfg.Logging.FilePath = filepath.Join(PlatformLogDir(), v)
		}
	}

	return cfg
}

// section returns the nested object under key. Reading fields from the
// nil map it returns for a missing section is safe and yields nothing.
func section(data map[string]interface{}, key string) map[string]interface{} {
	m, _ := data[key].(map[string]interface{})
	return m
}

func readString(m map[string]interface{}, key string, dst *string) {
	if v, ok := m[key].(string); ok {
		*dst = v
	}
}

func readBool(m map[string]interface{}, key string, dst *bool) {
	if v, ok := m[key].(bool); ok {
		*dst = v
	}
}

// readInt reads a JSON number, which arrives as float64.
func readInt(m map[string]interface{}, key string, dst *int) {
	if v, ok := m[key].(float64); ok {
		*dst = int(v)
	}
}

func readFloat(m map[string]interface{}, key string, dst *float64) {
	if v, ok := m[key].(float64); ok {
		*dst = v
	}
}

// readBinding decodes a v1 hotkey object {"mods": [...], "scancode": n}.
// A missing object or zero scan code leaves dst untouched.
func readBinding(m map[string]interface{}, key string, dst *Binding) {
	obj := section(m, key)
	if obj == nil {
		return
	}

	b := Binding{Mods: []string{}}
	if mods, ok := obj["mods"].([]interface{}); ok {
		for _, mod := range mods {
			if s, ok := mod.(string); ok {
				b.Mods = append(b.Mods, s)
			}
		}
	}
	if sc, ok := obj["scancode"].(float64); ok {
		b.ScanCode = uint16(sc)
	}

	if b.ScanCode != 0 {
		*dst = b
	}
}

// SaveConfig writes cfg to path, picking the encoding from the file
// extension. TOML is the default.
func SaveConfig(cfg *Config, path string) error {
	var (
		data []byte
		err  error
	)
	switch filepath.Ext(path) {
	case ".json":
		data, err = json.MarshalIndent(cfg, "", "  ")
	case ".yaml", ".yml":
		data, err = yaml.Marshal(cfg)
	default:
		data, err = renderTOML(cfg)
	}
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}

	// The file may hold a custom pipe name or history path; keep it
	// readable by the owning user only.
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// renderTOML encodes cfg with a short header comment. Section order
// follows the struct layout, so rewrites keep a stable shape.
func renderTOML(cfg *Config) ([]byte, error) {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "# rxoverlay configuration\n# Version %d\n\n", Version)

	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func migrationHistoryPath() string {
	return filepath.Join(AppDir(), "migration_history.json")
}

// GetMigrationHistory returns past migrations recorded in the app
// directory, oldest first.
func GetMigrationHistory() ([]MigrationResult, error) {
	data, err := os.ReadFile(migrationHistoryPath())
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read migration history: %w", err)
	}

	var history []MigrationResult
	if err := json.Unmarshal(data, &history); err != nil {
		return nil, fmt.Errorf("parse migration history: %w", err)
	}
	return history, nil
}

// SaveMigrationHistory appends result to the history file. An
// unreadable history starts over rather than blocking the migration.
func SaveMigrationHistory(result *MigrationResult) error {
	history, _ := GetMigrationHistory()
	history = append(history, *result)

	data, err := json.MarshalIndent(history, "", "  ")
	if err != nil {
		return fmt.Errorf("encode migration history: %w", err)
	}

	path := migrationHistoryPath()
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("write migration history: %w", err)
	}
	return nil
}
