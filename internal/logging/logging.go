// Package logging is the rxoverlay logging front end.
//
// Three trails come out of it: the operational log (slog, text or
// JSON, optionally rotated to disk), the security audit trail (one
// JSON object per line, always on disk, longer retention), and crash
// dumps written by the panic handler. The daemon configures all three
// once at startup; everything else just uses slog.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync/atomic"
	"time"
)

// Level aliases slog.Level so callers don't import both packages.
type Level = slog.Level

const (
	LevelDebug = slog.LevelDebug
	LevelInfo  = slog.LevelInfo
	LevelWarn  = slog.LevelWarn
	LevelError = slog.LevelError
)

// Format selects the log entry encoding.
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
)

// levelNames maps the accepted config spellings onto levels.
var levelNames = map[string]Level{
	"debug":   LevelDebug,
	"info":    LevelInfo,
	"warn":    LevelWarn,
	"warning": LevelWarn,
	"error":   LevelError,
}

// ParseLevel maps a config string onto a Level. Unknown strings return
// LevelInfo and an error so callers can fall back without branching.
func ParseLevel(s string) (Level, error) {
	if lvl, ok := levelNames[strings.ToLower(s)]; ok {
		return lvl, nil
	}
	return LevelInfo, fmt.Errorf("unknown log level: %s", s)
}

// LevelString is the inverse of ParseLevel, normalizing "warning" to
// "warn". Out-of-range levels report as "info".
func LevelString(level Level) string {
	switch level {
	case LevelDebug:
		return "debug"
	case LevelWarn:
		return "warn"
	case LevelError:
		return "error"
	default:
		return "info"
	}
}

// Config describes one operational logger.
type Config struct {
	// Output routes entries: "stdout", "stderr", "file", or "both"
	// (stderr plus file). Anything else falls back to stderr.
	Output string

	// FilePath is the log file location when Output includes a file.
	FilePath string

	Level  Level
	Format Format

	// Rotation policy for the file sink. MaxSize is in megabytes,
	// MaxAge in days.
	MaxSize    int64
	MaxAge     int
	MaxBackups int

	// AddSource stamps entries with the emitting file and line.
	AddSource bool

	// Component is attached to every entry as a "component" attr.
	Component string
}

// DefaultConfig returns the daemon's stock logging setup: human
// readable on stderr, mirrored to a rotated file.
func DefaultConfig() *Config {
	return &Config{
		Output:     "both",
		FilePath:   defaultLogPath(),
		Level:      LevelInfo,
		Format:     FormatText,
		MaxSize:    10,
		MaxAge:     14,
		MaxBackups: 3,
		Component:  "rxoverlay",
	}
}

// defaultLogPath picks the conventional log location for the platform.
func defaultLogPath() string {
	switch runtime.GOOS {
	case "windows":
		root := os.Getenv("LOCALAPPDATA")
		if root == "" {
			root = os.Getenv("APPDATA")
		}
		return filepath.Join(root, "rxoverlay", "logs", "rxoverlay.log")
	case "darwin":
		home, _ := os.UserHomeDir()
		return filepath.Join(home, "Library", "Logs", "rxoverlay", "rxoverlay.log")
	default:
		root := os.Getenv("XDG_STATE_HOME")
		if root == "" {
			home, _ := os.UserHomeDir()
			root = filepath.Join(home, ".local", "state")
		}
		return filepath.Join(root, "rxoverlay", "rxoverlay.log")
	}
}

// Logger is a configured slog.Logger plus ownership of its file sink.
type Logger struct {
	*slog.Logger
	cfg  *Config
	file *rollingFile // nil when no file sink is configured
}

// New builds a Logger from cfg. A nil cfg gets DefaultConfig.
func New(cfg *Config) (*Logger, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	sink, file, err := openSink(cfg)
	if err != nil {
		return nil, fmt.Errorf("open log sink: %w", err)
	}

	opts := &slog.HandlerOptions{Level: cfg.Level, AddSource: cfg.AddSource}
	var h slog.Handler
	if cfg.Format == FormatJSON {
		h = slog.NewJSONHandler(sink, opts)
	} else {
		h = slog.NewTextHandler(sink, opts)
	}
	if cfg.Component != "" {
		h = h.WithAttrs([]slog.Attr{slog.String("component", cfg.Component)})
	}

	return &Logger{Logger: slog.New(h), cfg: cfg, file: file}, nil
}

// openSink resolves the configured output route to a writer, plus the
// rolling file when one is involved.
func openSink(cfg *Config) (io.Writer, *rollingFile, error) {
	needFile := false
	var console io.Writer

	switch strings.ToLower(cfg.Output) {
	case "stdout":
		console = os.Stdout
	case "file":
		needFile = true
	case "both":
		console = os.Stderr
		needFile = true
	default: // "stderr" and anything unrecognized
		console = os.Stderr
	}

	if !needFile {
		return console, nil, nil
	}

	f, err := openRollingFile(cfg.FilePath, rollPolicy{
		maxBytes: cfg.MaxSize * 1024 * 1024,
		keep:     cfg.MaxBackups,
		maxAge:   time.Duration(cfg.MaxAge) * 24 * time.Hour,
	})
	if err != nil {
		return nil, nil, err
	}
	if console == nil {
		return f, f, nil
	}
	return io.MultiWriter(console, f), f, nil
}

// WithComponent derives a logger whose entries carry a different
// component attr. The file sink stays shared with the parent.
func (l *Logger) WithComponent(name string) *Logger {
	return &Logger{
		Logger: l.Logger.With(slog.String("component", name)),
		cfg:    l.cfg,
		file:   l.file,
	}
}

// Sync flushes the file sink, if any.
func (l *Logger) Sync() error {
	if l.file == nil {
		return nil
	}
	return l.file.Sync()
}

// Close releases the file sink. Console output keeps working through
// slog; only file writes stop.
func (l *Logger) Close() error {
	if l.file == nil {
		return nil
	}
	return l.file.Close()
}

// process-wide default, swapped in by the daemon after config load
var defaultLogger atomic.Pointer[Logger]

// Default returns the process default logger, building a stock one on
// first use if SetDefault was never called.
func Default() *Logger {
	if l := defaultLogger.Load(); l != nil {
		return l
	}
	l, err := New(nil)
	if err != nil {
		l = &Logger{Logger: slog.Default(), cfg: DefaultConfig()}
	}
	if !defaultLogger.CompareAndSwap(nil, l) {
		l.Close()
		return defaultLogger.Load()
	}
	return l
}

// SetDefault installs l as the process default and routes slog's
// package-level functions through it.
func SetDefault(l *Logger) {
	defaultLogger.Store(l)
	slog.SetDefault(l.Logger)
}
