package logging

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"runtime/debug"
	"sort"
	"sync/atomic"
	"time"
)

// CrashReport is the on-disk record of one recovered panic.
type CrashReport struct {
	Timestamp  time.Time      `json:"timestamp"`
	Version    string         `json:"version,omitempty"`
	Component  string         `json:"component,omitempty"`
	Platform   string         `json:"platform"` // "goos/goarch"
	Goroutines int            `json:"goroutines"`
	PanicValue string         `json:"panic_value"`
	Stack      string         `json:"stack"`
	Context    map[string]any `json:"context,omitempty"`
}

// CrashHandlerConfig configures crash reporting.
type CrashHandlerConfig struct {
	// CrashDir receives the JSON dumps; empty selects DefaultCrashDir.
	CrashDir string

	// Version and Component are stamped on every report.
	Version   string
	Component string

	// OnCrash, when set, observes each report after it is written.
	OnCrash func(CrashReport)
}

// CrashHandler turns recovered panics into crash dumps on disk. A
// process that holds a global keyboard hook must not die silently, so
// every goroutine entry point defers one of the Recover helpers.
type CrashHandler struct {
	dir       string
	version   string
	component string
	onCrash   func(CrashReport)
}

// DefaultCrashDir is a "crashes" directory next to the default log.
func DefaultCrashDir() string {
	return filepath.Join(filepath.Dir(defaultLogPath()), "crashes")
}

// NewCrashHandler creates a CrashHandler and makes sure its directory
// exists.
func NewCrashHandler(cfg *CrashHandlerConfig) *CrashHandler {
	if cfg == nil {
		cfg = &CrashHandlerConfig{}
	}
	dir := cfg.CrashDir
	if dir == "" {
		dir = DefaultCrashDir()
	}
	os.MkdirAll(dir, 0750)

	return &CrashHandler{
		dir:       dir,
		version:   cfg.Version,
		component: cfg.Component,
		onCrash:   cfg.OnCrash,
	}
}

// HandlePanic records one panic: dump to disk, notify the observer,
// and echo a banner to stderr so the failure is visible even when the
// log file is the thing that broke.
func (h *CrashHandler) HandlePanic(value any, context map[string]any) {
	report := CrashReport{
		Timestamp:  time.Now().UTC(),
		Version:    h.version,
		Component:  h.component,
		Platform:   runtime.GOOS + "/" + runtime.GOARCH,
		Goroutines: runtime.NumGoroutine(),
		PanicValue: fmt.Sprint(value),
		Stack:      string(debug.Stack()),
		Context:    context,
	}

	path, err := h.dump(report)
	if err != nil {
		path = fmt.Sprintf("(dump failed: %v)", err)
	}
	if h.onCrash != nil {
		h.onCrash(report)
	}

	fmt.Fprintf(os.Stderr,
		"\n=== PANIC %s ===\n%s\n%s\nreport: %s\n",
		report.Timestamp.Format(time.RFC3339), report.PanicValue, report.Stack, path)
}

// dump writes the report under a timestamped name and returns its path.
func (h *CrashHandler) dump(report CrashReport) (string, error) {
	name := fmt.Sprintf("crash-%s-%s.json",
		report.Timestamp.Format("20060102-150405"), h.component)
	path := filepath.Join(h.dir, name)

	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(path, data, 0640); err != nil {
		return "", err
	}
	return path, nil
}

// Recover runs fn, converting a panic into a crash report instead of
// an unwound stack.
func (h *CrashHandler) Recover(fn func()) {
	defer func() {
		if v := recover(); v != nil {
			h.HandlePanic(v, nil)
		}
	}()
	fn()
}

// RecoverGoroutine is deferred at the top of long-lived goroutines:
//
//	go func() { defer handler.RecoverGoroutine(); ... }()
func (h *CrashHandler) RecoverGoroutine() {
	if v := recover(); v != nil {
		h.HandlePanic(v, map[string]any{"origin": "goroutine"})
	}
}

// GetCrashReports loads the stored reports, newest first. Unreadable
// files are skipped.
func (h *CrashHandler) GetCrashReports() ([]CrashReport, error) {
	paths, err := filepath.Glob(filepath.Join(h.dir, "crash-*.json"))
	if err != nil {
		return nil, err
	}

	reports := make([]CrashReport, 0, len(paths))
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			continue
		}
		var r CrashReport
		if err := json.Unmarshal(data, &r); err != nil {
			continue
		}
		reports = append(reports, r)
	}
	sort.Slice(reports, func(i, j int) bool {
		return reports[i].Timestamp.After(reports[j].Timestamp)
	})
	return reports, nil
}

// CleanupOldCrashReports deletes reports older than maxAge.
func (h *CrashHandler) CleanupOldCrashReports(maxAge time.Duration) error {
	paths, err := filepath.Glob(filepath.Join(h.dir, "crash-*.json"))
	if err != nil {
		return err
	}
	cutoff := time.Now().Add(-maxAge)
	for _, p := range paths {
		if st, err := os.Stat(p); err == nil && st.ModTime().Before(cutoff) {
			os.Remove(p)
		}
	}
	return nil
}

// ClearCrashReports deletes every stored report.
func (h *CrashHandler) ClearCrashReports() error {
	paths, err := filepath.Glob(filepath.Join(h.dir, "crash-*.json"))
	if err != nil {
		return err
	}
	for _, p := range paths {
		os.Remove(p)
	}
	return nil
}

// process-wide handler used by RecoverPanic
var defaultCrashHandler atomic.Pointer[CrashHandler]

// DefaultCrashHandler returns the process default crash handler,
// creating a bare one on first use.
func DefaultCrashHandler() *CrashHandler {
	if h := defaultCrashHandler.Load(); h != nil {
		return h
	}
	h := NewCrashHandler(&CrashHandlerConfig{Component: "rxoverlay"})
	if !defaultCrashHandler.CompareAndSwap(nil, h) {
		return defaultCrashHandler.Load()
	}
	return h
}

// SetDefaultCrashHandler installs the process default crash handler.
func SetDefaultCrashHandler(h *CrashHandler) {
	defaultCrashHandler.Store(h)
}

// RecoverPanic is deferred in main: any panic that escapes this far
// still leaves a report behind.
func RecoverPanic() {
	if v := recover(); v != nil {
		DefaultCrashHandler().HandlePanic(v, nil)
	}
}
