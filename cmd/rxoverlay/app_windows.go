//go:build windows

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"rxoverlay/internal/autostart"
	"rxoverlay/internal/config"
	"rxoverlay/internal/focus"
	"rxoverlay/internal/hook"
	"rxoverlay/internal/hotkey"
	"rxoverlay/internal/inject"
	"rxoverlay/internal/ipc"
	"rxoverlay/internal/logging"
	"rxoverlay/internal/metrics"
	"rxoverlay/internal/overlay"
	"rxoverlay/internal/singleinstance"
	"rxoverlay/internal/store"
	"rxoverlay/internal/tray"
)

// app holds everything the running daemon owns.
type app struct {
	mu      sync.Mutex
	cfg     *config.Config
	cfgPath string

	loader  *config.Loader
	logger  *logging.Logger
	audit   *logging.AuditLogger
	history *store.Store
	om      *metrics.OverlayMetrics

	window  *overlay.Window
	coord   *overlay.Coordinator
	engine  *hook.Engine
	hotkeys *hotkey.Manager
	tray    *tray.Tray
	server  *ipc.Server

	hookMu       sync.Mutex
	hookDegraded bool
	hookReason   string

	statePath string
	done      chan struct{}
}

func run() error {
	path := *configPath
	if path == "" {
		path = config.ConfigPath()
	}

	loader := config.NewLoader(path)
	cfg, err := loader.Load()
	if err != nil {
		return fmt.Errorf("load config %s: %w", path, err)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return fmt.Errorf("create data directories: %w", err)
	}
	// Materialize the default file on first run so there is something
	// to edit and something for the watcher to pick up.
	if _, statErr := os.Stat(path); os.IsNotExist(statErr) {
		if serr := config.SaveConfig(cfg, path); serr != nil {
			fmt.Fprintf(os.Stderr, "rxoverlay: could not write default config: %v\n", serr)
		}
	}

	logCfg, err := buildLogConfig(cfg, *logLevel)
	if err != nil {
		return err
	}
	logger, err := logging.New(logCfg)
	if err != nil {
		return fmt.Errorf("init logging: %w", err)
	}
	defer logger.Close()
	logging.SetDefault(logger)

	crash := logging.NewCrashHandler(&logging.CrashHandlerConfig{
		Version:   Version,
		Component: "daemon",
	})
	logging.SetDefaultCrashHandler(crash)
	defer logging.RecoverPanic()

	// Hook installation and input synthesis get their own trail,
	// separate from the operational log.
	audit := logging.DefaultAuditLogger()
	defer audit.Close()

	for _, w := range loader.Warnings() {
		logger.Warn("config warning", "field", w.Field, "message", w.Message)
	}

	lock, err := singleinstance.TryLock(singleinstance.DefaultMutexName())
	if errors.Is(err, singleinstance.ErrAlreadyRunning) {
		logger.Info("rxoverlay is already running, forwarding show request")
		audit.LogInstanceConflict()
		forwardShow(cfg, logger.Logger)
		return nil
	}
	if err != nil {
		return fmt.Errorf("single instance check: %w", err)
	}
	defer lock.Release()

	// The state file wins over enabled_on_startup once it exists.
	statePath := config.StatePath()
	enabled := cfg.Startup.EnabledOnStartup
	minimized := false
	if _, statErr := os.Stat(statePath); statErr == nil {
		st, lerr := config.LoadState(statePath)
		if lerr != nil {
			logger.Warn("state file unreadable, starting from defaults",
				"path", statePath, "error", lerr)
		}
		enabled = st.Enabled
		minimized = st.Minimized
	}

	var history *store.Store
	if cfg.History.Enabled {
		history, err = store.Open(cfg.History.Path, cfg.History.BusyTimeoutMs)
		if err != nil {
			logger.Error("history database unavailable, continuing without history",
				"path", cfg.History.Path, "error", err)
			history = nil
		} else if cfg.History.RetentionDays > 0 {
			cutoff := time.Now().AddDate(0, 0, -cfg.History.RetentionDays).UnixNano()
			if n, perr := history.PruneOlderThan(cutoff); perr != nil {
				logger.Warn("history prune failed", "error", perr)
			} else if n > 0 {
				logger.Info("history pruned",
					"removed", n, "retention_days", cfg.History.RetentionDays)
			}
		}
	}

	om := metrics.NewOverlayMetrics(nil)

	a := &app{
		cfg:       cfg,
		cfgPath:   path,
		loader:    loader,
		logger:    logger,
		audit:     audit,
		history:   history,
		om:        om,
		statePath: statePath,
		done:      make(chan struct{}),
	}

	// The window callbacks close over a.coord, which does not exist
	// until after the window does. They only fire from the message
	// loop, long after both are wired.
	win, err := overlay.NewWindow(overlay.WindowConfig{
		X:                   cfg.Overlay.PositionX,
		Y:                   cfg.Overlay.PositionY,
		Opacity:             cfg.Overlay.Opacity,
		Topmost:             cfg.Overlay.AlwaysOnTop,
		Theme:               cfg.Overlay.Theme,
		AutoHideAfterAction: time.Duration(cfg.Overlay.AutoHideAfterActionMs) * time.Millisecond,
		OnPrimary:           func() { a.coord.SendPrimary() },
		OnSecondary:         func() { a.coord.SendSecondary() },
		OnMinimize:          func() { a.coord.Minimize() },
		OnRestore:           func() { a.coord.Restore() },
		OnDrainTick:         func() { a.coord.ProcessActions() },
		OnPollTick:          func() { a.coord.PollForeground() },
		OnPositionChange:    a.savePosition,
		Logger:              logger.Logger,
	})
	if err != nil {
		return fmt.Errorf("create overlay window: %w", err)
	}
	a.window = win

	// Sends are audited even when history is off; the database write is
	// skipped when the store never opened.
	recorder := &actionRecorder{store: history, audit: audit, logger: logger.Logger}

	a.coord = overlay.NewCoordinator(overlay.CoordinatorConfig{
		Surface:   win,
		Focuser:   focus.Desktop{},
		Injector:  inject.Sender{},
		Saver:     stateSaver{path: statePath},
		Recorder:  recorder,
		Metrics:   om,
		Logger:    logger.Logger,
		OnExit:    win.Quit,
		Enabled:   enabled,
		Minimized: minimized,
	})

	bindings, err := bindingsFromConfig(cfg)
	if err != nil {
		return fmt.Errorf("hotkey bindings: %w", err)
	}
	a.engine = hook.NewEngine()
	a.hotkeys = hotkey.NewManager(a.engine, bindings, a.coord.Enqueue)
	a.hotkeys.Observe(om.RecordHookEvent)
	if herr := a.hotkeys.Start(context.Background()); herr != nil {
		a.setHookDegraded(herr)
		audit.LogHookDegraded(herr)
		logger.Error("keyboard hook unavailable, running degraded: overlay buttons work, global hotkeys do not",
			"error", herr)
	} else {
		audit.LogHookInstalled()
	}

	if !*noTray {
		t, terr := tray.New(tray.Config{
			Tooltip:         "rxoverlay " + Version,
			Enabled:         a.coord.Enabled,
			Visible:         a.coord.Visible,
			OnShowHide:      a.toggleOverlayVisible,
			OnToggleEnabled: a.coord.ToggleEnabled,
			OnOpenSettings:  a.openSettings,
			OnExit:          a.coord.Exit,
			Logger:          logger.Logger,
		})
		if terr != nil {
			logger.Warn("tray icon unavailable", "error", terr)
		} else {
			a.tray = t
			if degraded, reason := a.hookState(); degraded {
				t.Warn("Global hotkeys unavailable",
					"The keyboard hook could not be installed: "+reason)
			}
		}
	}

	if cfg.IPC.Enabled {
		a.startIPC(cfg)
	}

	loader.OnChange(a.applyConfig)
	if werr := loader.Watch(); werr != nil {
		logger.Warn("config watcher unavailable, edits require a reload command", "error", werr)
	} else {
		go a.watchConfigErrors()
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		defer crash.RecoverGoroutine()
		select {
		case s := <-sigCh:
			logger.Info("signal received, shutting down", "signal", s.String())
			win.Quit()
		case <-a.done:
		}
	}()

	a.syncAutostart(cfg)
	a.coord.ApplyStartupState(true)

	logger.Info("rxoverlay started",
		"version", Version,
		"config", path,
		"enabled", enabled,
		"minimized", minimized,
		"history", history != nil,
		"tray", a.tray != nil,
	)
	audit.LogStartup(Version, map[string]interface{}{"config": path})

	win.Run()

	return a.shutdown()
}

// shutdown tears the daemon down in dependency order: hook first so no
// new actions arrive, then the control pipe, the watcher, the history
// database, and finally the state flush and the UI resources.
func (a *app) shutdown() error {
	a.logger.Info("shutting down")

	if err := a.hotkeys.Stop(); err != nil {
		a.logger.Warn("hook stop failed", "error", err)
	} else if degraded, _ := a.hookState(); !degraded {
		a.audit.LogHookRemoved()
	}
	if a.server != nil {
		if err := a.server.Stop(); err != nil {
			a.logger.Warn("control pipe stop failed", "error", err)
		}
	}
	if err := a.loader.Close(); err != nil {
		a.logger.Warn("config watcher close failed", "error", err)
	}
	close(a.done)

	if a.history != nil {
		if err := a.history.Close(); err != nil {
			a.logger.Warn("history close failed", "error", err)
		}
	}

	st := &config.State{Enabled: a.coord.Enabled(), Minimized: a.coord.Minimized()}
	if err := config.SaveState(st, a.statePath); err != nil {
		a.logger.Warn("state flush failed", "error", err)
	}

	// Run has returned but this is still the UI thread, so the tray
	// and window teardown are safe here.
	if a.tray != nil {
		a.tray.Destroy()
	}
	a.window.Destroy()

	a.audit.LogShutdown("window loop exited")
	a.logger.Info("rxoverlay stopped", "metrics", a.om.Snapshot())
	return nil
}

// startIPC brings up the control pipe. Failures are logged, not fatal:
// the overlay works without its control surface.
func (a *app) startIPC(cfg *config.Config) {
	var reader ipc.HistoryReader
	if a.history != nil {
		reader = a.history
	}

	handler := ipc.NewDaemonHandler(ipc.DaemonHandlerConfig{
		Version:   Version,
		Control:   a.coord,
		RunOnUI:   a.window.RunOnUI,
		HookState: a.hookStatus,
		History:   reader,
		Metrics:   a.om,
		Reload:    a.reloadConfig,
		Logger:    a.logger.Logger,
	})

	listener, err := ipc.Listen(cfg.IPC.PipeName)
	if err != nil {
		a.logger.Error("control pipe unavailable", "pipe", cfg.IPC.PipeName, "error", err)
		return
	}

	srv := ipc.NewServer(ipc.ServerConfig{
		MaxConnections: cfg.IPC.MaxConnections,
		ReadTimeout:    time.Duration(cfg.IPC.TimeoutSec) * time.Second,
		WriteTimeout:   time.Duration(cfg.IPC.TimeoutSec) * time.Second,
		Logger:         a.logger.Logger,
	}, handler)
	if err := srv.Start(listener); err != nil {
		a.logger.Error("control pipe start failed", "error", err)
		listener.Close()
		return
	}
	a.server = srv
}

// applyConfig applies a freshly loaded configuration. It runs off the
// UI thread (watcher or IPC goroutine), so it touches only
// thread-safe surfaces: hotkey bindings, the run key, and the config
// pointer itself. Window appearance changes take effect on the next
// start.
func (a *app) applyConfig(cfg *config.Config) {
	a.mu.Lock()
	a.cfg = cfg
	a.mu.Unlock()

	if b, err := bindingsFromConfig(cfg); err != nil {
		a.logger.Warn("hotkey bindings invalid after reload, keeping previous set", "error", err)
	} else {
		a.hotkeys.SetBindings(b)
	}
	a.syncAutostart(cfg)

	a.audit.LogConfigChange(a.cfgPath, "reload")
	a.logger.Info("configuration applied", "path", a.cfgPath)
}

// reloadConfig backs the ReloadConfig control request.
func (a *app) reloadConfig() error {
	cfg, err := a.loader.Load()
	if err != nil {
		return err
	}
	a.applyConfig(cfg)
	return nil
}

// watchConfigErrors surfaces background reload failures in the log.
func (a *app) watchConfigErrors() {
	defer logging.DefaultCrashHandler().RecoverGoroutine()
	for {
		select {
		case err := <-a.loader.Errors():
			a.logger.Warn("config reload failed, keeping previous config", "error", err)
		case <-a.done:
			return
		}
	}
}

// toggleOverlayVisible backs the tray's left click and Show/Hide item.
func (a *app) toggleOverlayVisible() {
	if a.coord.Visible() {
		a.coord.Hide()
		return
	}
	a.coord.Show()
}

// openSettings launches the settings GUI sitting beside the daemon
// binary.
func (a *app) openSettings() {
	exe, err := os.Executable()
	if err != nil {
		a.logger.Warn("settings launch failed", "error", err)
		return
	}
	gui := filepath.Join(filepath.Dir(exe), "rxoverlay-gui.exe")
	if err := exec.Command(gui).Start(); err != nil {
		a.logger.Warn("settings launch failed", "path", gui, "error", err)
	}
}

// savePosition persists a dragged overlay position so the window comes
// back where the user left it. It fires on the UI thread at drag end.
func (a *app) savePosition(x, y int) {
	a.mu.Lock()
	cfg := a.cfg
	cfg.Overlay.PositionX = x
	cfg.Overlay.PositionY = y
	a.mu.Unlock()

	if err := config.SaveConfig(cfg, a.cfgPath); err != nil {
		a.logger.Warn("position save failed", "error", err)
		return
	}
	a.logger.Debug("overlay position saved", "x", x, "y", y)
}

// syncAutostart makes the Run-key entry match run_at_login.
func (a *app) syncAutostart(cfg *config.Config) {
	exe, err := os.Executable()
	if err != nil {
		a.logger.Warn("autostart sync failed", "error", err)
		return
	}
	if cfg.Startup.RunAtLogin {
		if err := autostart.Enable(exe); err != nil {
			a.logger.Warn("autostart enable failed", "error", err)
		}
		return
	}
	if autostart.IsEnabled() {
		if err := autostart.Disable(); err != nil {
			a.logger.Warn("autostart disable failed", "error", err)
		}
	}
}

func (a *app) setHookDegraded(err error) {
	a.hookMu.Lock()
	defer a.hookMu.Unlock()
	a.hookDegraded = true
	a.hookReason = err.Error()
}

func (a *app) hookState() (degraded bool, reason string) {
	a.hookMu.Lock()
	defer a.hookMu.Unlock()
	return a.hookDegraded, a.hookReason
}

// hookStatus feeds status responses.
func (a *app) hookStatus() ipc.HookStatus {
	if degraded, reason := a.hookState(); degraded {
		return ipc.HookStatus{Degraded: true, Reason: reason}
	}
	return ipc.HookStatus{Running: a.engine.State() == hook.StateRunning}
}

// forwardShow asks the running instance to show its overlay, so a
// second launch acts as a bring-it-back gesture.
func forwardShow(cfg *config.Config, logger *slog.Logger) {
	if !cfg.IPC.Enabled {
		return
	}
	client := ipc.NewClient(ipc.DefaultClientConfig(cfg.IPC.PipeName))
	if err := client.Connect(); err != nil {
		logger.Warn("could not reach the running instance", "error", err)
		return
	}
	defer client.Close()
	if err := client.Show(); err != nil {
		logger.Warn("show request failed", "error", err)
	}
}

// bindingsFromConfig parses the configured hotkeys. Validation has
// already vetted the modifier names, so errors here are unexpected.
func bindingsFromConfig(cfg *config.Config) (hotkey.Bindings, error) {
	var b hotkey.Bindings
	for _, nb := range cfg.Bindings() {
		parsed, err := hotkey.ParseBinding(nb.Binding.Mods, nb.Binding.ScanCode)
		if err != nil {
			return hotkey.Bindings{}, fmt.Errorf("%s: %w", nb.Name, err)
		}
		switch nb.Name {
		case "toggle":
			b.Toggle = parsed
		case "exit":
			b.Exit = parsed
		case "send_primary":
			b.SendPrimary = parsed
		case "send_secondary":
			b.SendSecondary = parsed
		}
	}
	return b, nil
}

// buildLogConfig maps the file configuration onto the logging package,
// honoring a -log-level override.
func buildLogConfig(cfg *config.Config, override string) (*logging.Config, error) {
	levelStr := cfg.Logging.Level
	if override != "" {
		levelStr = override
	}
	level, err := logging.ParseLevel(levelStr)
	if err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}

	format := logging.FormatText
	if cfg.Logging.Format == "json" {
		format = logging.FormatJSON
	}

	return &logging.Config{
		Level:      level,
		Format:     format,
		Output:     cfg.Logging.Output,
		FilePath:   cfg.Logging.FilePath,
		MaxSize:    int64(cfg.Logging.MaxSizeMB),
		MaxAge:     cfg.Logging.MaxAgeDays,
		MaxBackups: cfg.Logging.MaxBackups,
		Component:  "daemon",
	}, nil
}

// actionRecorder fans coordinator outcomes out to the audit trail and,
// when the database is open, the action history. Failures are logged
// and swallowed: recording must never break an injection.
type actionRecorder struct {
	store  *store.Store
	audit  *logging.AuditLogger
	logger *slog.Logger
}

func (r *actionRecorder) RecordAction(action, target, outcome, detail string) {
	if strings.HasPrefix(action, "send_") {
		r.audit.LogInjection(action, target, outcome)
	}
	if r.store == nil {
		return
	}
	_, err := r.store.InsertAction(&store.ActionRecord{
		AtNs:        time.Now().UnixNano(),
		Action:      action,
		TargetTitle: target,
		Outcome:     outcome,
		Detail:      detail,
	})
	if err != nil {
		r.logger.Warn("action record failed", "action", action, "error", err)
	}
}

// stateSaver persists the runtime state file for the coordinator.
type stateSaver struct {
	path string
}

func (s stateSaver) SaveState(enabled, minimized bool) error {
	return config.SaveState(&config.State{Enabled: enabled, Minimized: minimized}, s.path)
}
