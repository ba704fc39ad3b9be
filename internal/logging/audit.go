package logging

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"
)

// AuditEventType classifies a security-relevant event.
type AuditEventType string

// The audited vocabulary. A process that installs a global keyboard
// hook and synthesizes input into other applications keeps a separate
// record of those capabilities being exercised.
const (
	AuditEventStartup          AuditEventType = "startup"
	AuditEventShutdown         AuditEventType = "shutdown"
	AuditEventHookInstalled    AuditEventType = "hook_installed"
	AuditEventHookRemoved      AuditEventType = "hook_removed"
	AuditEventHookDegraded     AuditEventType = "hook_degraded"
	AuditEventInjection        AuditEventType = "injection"
	AuditEventConfigChange     AuditEventType = "config_change"
	AuditEventInstanceConflict AuditEventType = "instance_conflict"
)

// AuditEvent is one line of the audit trail.
type AuditEvent struct {
	Timestamp time.Time      `json:"timestamp"`
	Type      AuditEventType `json:"event_type"`
	Component string         `json:"component"`
	Action    string         `json:"action"`
	Resource  string         `json:"resource,omitempty"`
	Result    string         `json:"result"` // "success", "failure", "denied"
	Details   map[string]any `json:"details,omitempty"`
	Error     string         `json:"error,omitempty"`
}

// AuditLoggerConfig holds the audit trail's file and retention policy.
type AuditLoggerConfig struct {
	FilePath   string
	MaxSize    int64 // megabytes
	MaxAge     int   // days
	MaxBackups int
	Component  string
}

// DefaultAuditConfig puts audit.log next to the main log, retained
// longer than the operational trail.
func DefaultAuditConfig() *AuditLoggerConfig {
	return &AuditLoggerConfig{
		FilePath:   filepath.Join(filepath.Dir(defaultLogPath()), "audit.log"),
		MaxSize:    10,
		MaxAge:     90,
		MaxBackups: 5,
		Component:  "rxoverlay",
	}
}

// AuditLogger appends JSON-per-line audit events to a rolled file.
// When the file cannot be opened it degrades to the operational log
// rather than dropping events.
type AuditLogger struct {
	cfg *AuditLoggerConfig

	mu   sync.Mutex
	file *rollingFile // nil in degraded mode
}

// NewAuditLogger opens the audit trail described by cfg. A nil cfg
// gets DefaultAuditConfig.
func NewAuditLogger(cfg *AuditLoggerConfig) (*AuditLogger, error) {
	if cfg == nil {
		cfg = DefaultAuditConfig()
	}

	f, err := openRollingFile(cfg.FilePath, rollPolicy{
		maxBytes: cfg.MaxSize * 1024 * 1024,
		keep:     cfg.MaxBackups,
		maxAge:   time.Duration(cfg.MaxAge) * 24 * time.Hour,
	})
	if err != nil {
		return nil, fmt.Errorf("open audit trail: %w", err)
	}
	return &AuditLogger{cfg: cfg, file: f}, nil
}

// Log appends one event, stamping timestamp and component when the
// caller left them empty.
func (a *AuditLogger) Log(event AuditEvent) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	if event.Component == "" {
		event.Component = a.cfg.Component
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.file == nil {
		slog.Default().Info("audit",
			"event_type", string(event.Type),
			"action", event.Action,
			"resource", event.Resource,
			"result", event.Result,
		)
		return nil
	}

	line, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode audit event: %w", err)
	}
	if _, err := a.file.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("append audit event: %w", err)
	}
	return nil
}

// LogStartup records a daemon start.
func (a *AuditLogger) LogStartup(version string, details map[string]any) error {
	if details == nil {
		details = make(map[string]any)
	}
	details["version"] = version
	return a.Log(AuditEvent{
		Type:    AuditEventStartup,
		Action:  "daemon_started",
		Result:  "success",
		Details: details,
	})
}

// LogShutdown records a daemon stop and why.
func (a *AuditLogger) LogShutdown(reason string) error {
	return a.Log(AuditEvent{
		Type:    AuditEventShutdown,
		Action:  "daemon_stopped",
		Result:  "success",
		Details: map[string]any{"reason": reason},
	})
}

// LogHookInstalled records the global keyboard hook going live.
func (a *AuditLogger) LogHookInstalled() error {
	return a.Log(AuditEvent{
		Type:   AuditEventHookInstalled,
		Action: "keyboard_hook_installed",
		Result: "success",
	})
}

// LogHookRemoved records the global keyboard hook coming down.
func (a *AuditLogger) LogHookRemoved() error {
	return a.Log(AuditEvent{
		Type:   AuditEventHookRemoved,
		Action: "keyboard_hook_removed",
		Result: "success",
	})
}

// LogHookDegraded records a hook installation failure: the process
// wanted the capability and did not get it.
func (a *AuditLogger) LogHookDegraded(err error) error {
	return a.Log(AuditEvent{
		Type:   AuditEventHookDegraded,
		Action: "keyboard_hook_install",
		Result: "failure",
		Error:  err.Error(),
	})
}

// LogInjection records one synthetic-input attempt against another
// application's window.
func (a *AuditLogger) LogInjection(action, targetTitle, outcome string) error {
	return a.Log(AuditEvent{
		Type:     AuditEventInjection,
		Action:   action,
		Resource: targetTitle,
		Result:   outcome,
	})
}

// LogConfigChange records a configuration apply and where it came from.
func (a *AuditLogger) LogConfigChange(path, source string) error {
	return a.Log(AuditEvent{
		Type:     AuditEventConfigChange,
		Action:   "config_applied",
		Resource: path,
		Result:   "success",
		Details:  map[string]any{"source": source},
	})
}

// LogInstanceConflict records a second launch hitting the instance
// lock.
func (a *AuditLogger) LogInstanceConflict() error {
	return a.Log(AuditEvent{
		Type:   AuditEventInstanceConflict,
		Action: "duplicate_launch",
		Result: "denied",
	})
}

// Sync flushes the trail to disk.
func (a *AuditLogger) Sync() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.file == nil {
		return nil
	}
	return a.file.Sync()
}

// Close closes the trail. Further events fall back to the operational
// log.
func (a *AuditLogger) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.file == nil {
		return nil
	}
	err := a.file.Close()
	a.file = nil
	return err
}

// process-wide audit trail
var defaultAudit atomic.Pointer[AuditLogger]

// DefaultAuditLogger returns the process default audit trail, opening
// it on first use. When the file cannot be opened, events degrade to
// the operational log.
func DefaultAuditLogger() *AuditLogger {
	if a := defaultAudit.Load(); a != nil {
		return a
	}
	a, err := NewAuditLogger(nil)
	if err != nil {
		a = &AuditLogger{cfg: DefaultAuditConfig()}
	}
	if !defaultAudit.CompareAndSwap(nil, a) {
		a.Close()
		return defaultAudit.Load()
	}
	return a
}
