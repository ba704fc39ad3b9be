package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// reloadDebounce coalesces the burst of filesystem events an editor
// save produces into one reload.
const reloadDebounce = 100 * time.Millisecond

// Loader owns the configuration lifecycle: initial load, validation,
// and hot reload when the file changes on disk.
type Loader struct {
	path string

	mu       sync.RWMutex
	config   *Config
	warnings ValidationErrors
	onChange []func(*Config)

	watcher   *fsnotify.Watcher
	errs      chan error
	done      chan struct{}
	closeOnce sync.Once
}

// NewLoader creates a loader for the config file at path.
func NewLoader(path string) *Loader {
	return &Loader{
		path: path,
		errs: make(chan error, 1),
		done: make(chan struct{}),
	}
}

// Load reads, validates, and (when the file predates the current
// format) migrates the configuration.
func (l *Loader) Load() (*Config, error) {
	cfg, warnings, err := readValidated(l.path)
	if err != nil {
		return nil, err
	}

	if cfg.Version < Version {
		result, err := MigrateConfig(cfg, l.path)
		if err != nil {
			return nil, fmt.Errorf("migration failed: %w", err)
		}
		if result != nil {
			_ = SaveMigrationHistory(result)
		}
	}

	l.mu.Lock()
	l.config = cfg
	l.warnings = warnings
	l.mu.Unlock()
	return cfg, nil
}

// readValidated loads path and validates the result. Warnings ride
// along; only hard errors fail the load.
func readValidated(path string) (*Config, ValidationErrors, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, nil, err
	}

	verr := cfg.Validate()
	if verr == nil {
		return cfg, nil, nil
	}

	var findings ValidationErrors
	if !errors.As(verr, &findings) {
		return nil, nil, fmt.Errorf("%w: %w", ErrInvalidConfig, verr)
	}
	if findings.HasErrors() {
		return nil, nil, fmt.Errorf("%w: %w", ErrInvalidConfig, findings.Errors())
	}
	return cfg, findings.Warnings(), nil
}

// Config returns the most recently loaded configuration.
func (l *Loader) Config() *Config {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.config
}

// Warnings returns non-fatal validation findings from the last load.
func (l *Loader) Warnings() ValidationErrors {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.warnings
}

// OnChange registers a callback for successful hot reloads. Callbacks
// run on the watch goroutine; keep them quick.
func (l *Loader) OnChange(cb func(*Config)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.onChange = append(l.onChange, cb)
}

// Errors exposes watch and reload failures. The channel holds one
// entry; further failures before it is drained are dropped.
func (l *Loader) Errors() <-chan error {
	return l.errs
}

// Watch begins observing the config file for changes. The watch
// covers the parent directory because editors typically replace the
// file on save, which would orphan a watch on the file itself.
func (l *Loader) Watch() error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	if err := w.Add(filepath.Dir(l.path)); err != nil {
		w.Close()
		return fmt.Errorf("watch config directory: %w", err)
	}

	l.watcher = w
	go l.watchLoop(w)
	return nil
}

// watchLoop turns raw filesystem events into debounced reloads. The
// timer starts disarmed; every relevant event re-arms it, and reload
// runs when it finally fires.
func (l *Loader) watchLoop(w *fsnotify.Watcher) {
	debounce := time.NewTimer(time.Hour)
	if !debounce.Stop() {
		<-debounce.C
	}
	defer debounce.Stop()

	for {
		select {
		case <-l.done:
			return

		case ev, ok := <-w.Events:
			if !ok {
				return
			}
			if filepath.Base(ev.Name) != filepath.Base(l.path) {
				continue
			}
			if !ev.Op.Has(fsnotify.Write) && !ev.Op.Has(fsnotify.Create) {
				continue
			}
			debounce.Reset(reloadDebounce)

		case <-debounce.C:
			l.reload()

		case err, ok := <-w.Errors:
			if !ok {
				return
			}
			l.report(err)
		}
	}
}

// reload re-reads the file. A broken file reports an error and keeps
// the previous configuration active.
func (l *Loader) reload() {
	cfg, warnings, err := readValidated(l.path)
	if err != nil {
		l.report(fmt.Errorf("reload config: %w", err))
		return
	}

	l.mu.Lock()
	l.config = cfg
	l.warnings = warnings
	callbacks := l.onChange
	l.mu.Unlock()

	for _, cb := range callbacks {
		cb(cfg)
	}
}

// report delivers an error without ever blocking the watch loop.
func (l *Loader) report(err error) {
	select {
	case l.errs <- err:
	default:
	}
}

// Close stops watching. Safe to call more than once.
func (l *Loader) Close() error {
	var err error
	l.closeOnce.Do(func() {
		close(l.done)
		if l.watcher != nil {
			err = l.watcher.Close()
		}
	})
	return err
}

// LoadFromEnv builds a configuration from defaults plus environment
// overrides, ignoring any file.
func LoadFromEnv() *Config {
	cfg := DefaultConfig()
	cfg.ApplyEnvOverrides()
	return cfg
}

// LoadOrCreate loads path, writing a fresh default file first when
// none exists. The boolean reports whether the file was created.
func LoadOrCreate(path string) (*Config, bool, error) {
	if path == "" {
		path = ConfigPath()
	}

	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		cfg := DefaultConfig()
		if err := SaveConfig(cfg, path); err != nil {
			return nil, false, fmt.Errorf("create default config: %w", err)
		}
		return cfg, true, nil
	}

	cfg, err := NewLoader(path).Load()
	if err != nil {
		return nil, false, err
	}
	return cfg, false, nil
}
