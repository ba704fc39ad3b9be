package config

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

// ErrInvalidConfig is the sentinel wrapped into load errors when a config
// fails validation with at least one fatal finding.
var ErrInvalidConfig = errors.New("invalid configuration")

// ValidationError is a single validation finding, tied to the config field
// that produced it.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Field, e.Message)
}

// IsWarning reports whether the finding is advisory rather than fatal.
// Duplicate chord reports are the only advisory class: the config still
// loads, but only the higher-priority action ever fires.
func (e *ValidationError) IsWarning() bool {
	return strings.HasPrefix(e.Field, "hotkeys.duplicate")
}

// ValidationErrors is the full set of findings from one validation pass.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	parts := make([]string, len(e))
	for i := range e {
		parts[i] = e[i].Error()
	}
	return strings.Join(parts, "; ")
}

// Errors returns only the fatal findings.
func (e ValidationErrors) Errors() ValidationErrors {
	return e.filter(false)
}

// Warnings returns only the advisory findings.
func (e ValidationErrors) Warnings() ValidationErrors {
	return e.filter(true)
}

// HasErrors reports whether any finding is fatal.
func (e ValidationErrors) HasErrors() bool {
	return len(e.filter(false)) > 0
}

func (e ValidationErrors) filter(warnings bool) ValidationErrors {
	var out ValidationErrors
	for _, f := range e {
		if f.IsWarning() == warnings {
			out = append(out, f)
		}
	}
	return out
}

// maxScanCode bounds set-1 make codes, including the extended 0xE0xx range.
const maxScanCode = 0x1FF

var modifierNames = []string{"CTRL", "ALT", "SHIFT", "WIN"}

// ValidateConfig checks every section of c and returns the combined
// findings as ValidationErrors, or nil when the config is clean.
func ValidateConfig(c *Config) error {
	ck := &checker{}

	if c.Version < 1 || c.Version > Version {
		ck.failf("version", "unsupported version %d (current: %d)", c.Version, Version)
	}
	ck.overlay(&c.Overlay)
	ck.hotkeys(&c.Hotkeys)
	ck.injection(&c.Injection)
	ck.logging(&c.Logging)
	ck.ipc(&c.IPC)
	ck.history(&c.History)

	if len(ck.found) == 0 {
		return nil
	}
	return ck.found
}

// checker accumulates findings across sections so a single pass reports
// everything wrong with a file instead of stopping at the first hit.
type checker struct {
	found ValidationErrors
}

func (ck *checker) fail(field, msg string) {
	ck.found = append(ck.found, ValidationError{Field: field, Message: msg})
}

func (ck *checker) failf(field, format string, args ...any) {
	ck.fail(field, fmt.Sprintf(format, args...))
}

// oneOf records a finding unless got is one of allowed, and reports
// whether it was.
func (ck *checker) oneOf(field, label, got string, allowed ...string) bool {
	if slices.Contains(allowed, got) {
		return true
	}
	ck.failf(field, "invalid %s: %s (valid: %s)", label, got, strings.Join(allowed, ", "))
	return false
}

func (ck *checker) overlay(o *OverlayConfig) {
	if o.Opacity < 0.05 || o.Opacity > 1.0 {
		ck.failf("overlay.opacity", "opacity must be between 0.05 and 1.0, got %g", o.Opacity)
	}
	ck.oneOf("overlay.theme", "theme", o.Theme, "light", "dark")
	if o.AutoHideAfterActionMs < 0 {
		ck.fail("overlay.auto_hide_after_action_ms", "auto-hide delay cannot be negative")
	}
}

func (ck *checker) hotkeys(h *HotkeysConfig) {
	named := []struct {
		field string
		b     *Binding
	}{
		{"hotkeys.toggle", &h.Toggle},
		{"hotkeys.exit", &h.Exit},
		{"hotkeys.send_primary", &h.SendPrimary},
		{"hotkeys.send_secondary", &h.SendSecondary},
	}
	for _, n := range named {
		ck.binding(n.field, n.b)
	}

	// Identical chords are legal but surprising: dispatch stops at the
	// first match, so the lower-priority action never fires.
	owner := make(map[string]string)
	for _, n := range named {
		id := chordID(n.b)
		first, taken := owner[id]
		if taken {
			ck.failf("hotkeys.duplicate",
				"%s and %s share the same key combination; only %s will fire", first, n.field, first)
			continue
		}
		owner[id] = n.field
	}
}

func (ck *checker) binding(field string, b *Binding) {
	if b.ScanCode == 0 {
		ck.fail(field+".scancode", "scan code is required")
	} else if b.ScanCode > maxScanCode {
		ck.failf(field+".scancode", "scan code %d out of range (max %d)", b.ScanCode, maxScanCode)
	}

	seen := make(map[string]bool)
	for i, raw := range b.Mods {
		mod := strings.ToUpper(strings.TrimSpace(raw))
		switch {
		case !slices.Contains(modifierNames, mod):
			ck.failf(fmt.Sprintf("%s.mods[%d]", field, i),
				"unknown modifier: %s (valid: %s)", raw, strings.Join(modifierNames, ", "))
		case seen[mod]:
			ck.failf(fmt.Sprintf("%s.mods[%d]", field, i), "duplicate modifier: %s", raw)
		default:
			seen[mod] = true
		}
	}
}

// chordID builds an order-insensitive identity for a binding so that
// CTRL+ALT and ALT+CTRL compare equal.
func chordID(b *Binding) string {
	mods := make([]string, len(b.Mods))
	for i, m := range b.Mods {
		mods[i] = strings.ToUpper(strings.TrimSpace(m))
	}
	slices.Sort(mods)
	return fmt.Sprintf("%s+%d", strings.Join(mods, "+"), b.ScanCode)
}

func (ck *checker) injection(inj *InjectionConfig) {
	ck.oneOf("injection.method", "injection method", inj.Method, "sendinput")
	if inj.InterKeyDelayMs < 0 {
		ck.fail("injection.inter_key_delay_ms", "inter-key delay cannot be negative")
	}
	if inj.InterKeyDelayMs > 1000 {
		ck.fail("injection.inter_key_delay_ms", "inter-key delay cannot exceed 1000ms")
	}
}

func (ck *checker) logging(l *LoggingConfig) {
	ck.oneOf("logging.level", "log level", l.Level, "debug", "info", "warn", "error")
	ck.oneOf("logging.format", "log format", l.Format, "text", "json")
	if ck.oneOf("logging.output", "log output", l.Output, "stdout", "stderr", "file", "both") {
		toFile := l.Output == "file" || l.Output == "both"
		if toFile && l.FilePath == "" {
			ck.failf("logging.file_path", "file path is required when output is %q", l.Output)
		}
	}

	if l.MaxSizeMB < 1 {
		ck.fail("logging.max_size_mb", "max size must be at least 1 MB")
	}
	if l.MaxBackups < 0 {
		ck.fail("logging.max_backups", "max backups cannot be negative")
	}
	if l.MaxAgeDays < 0 {
		ck.fail("logging.max_age_days", "max age cannot be negative")
	}
}

func (ck *checker) ipc(i *IPCConfig) {
	if !i.Enabled {
		return
	}

	switch {
	case i.PipeName == "":
		ck.fail("ipc.pipe_name", "pipe name is required when IPC is enabled")
	case !strings.HasPrefix(i.PipeName, `\\.\pipe\`):
		ck.failf("ipc.pipe_name", `pipe name must start with \\.\pipe\, got %s`, i.PipeName)
	}

	if i.MaxConnections < 1 {
		ck.fail("ipc.max_connections", "max connections must be at least 1")
	}
	if i.TimeoutSec < 1 {
		ck.fail("ipc.timeout_sec", "timeout must be at least 1 second")
	}
}

func (ck *checker) history(h *HistoryConfig) {
	if !h.Enabled {
		return
	}

	if h.Path == "" {
		ck.fail("history.path", "database path is required when history is enabled")
	}
	if h.RetentionDays < 1 {
		ck.fail("history.retention_days", "retention must be at least 1 day")
	}
	if h.BusyTimeoutMs < 0 {
		ck.fail("history.busy_timeout_ms", "busy timeout cannot be negative")
	}
}
