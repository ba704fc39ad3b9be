//go:build windows

// rxoverlay is the overlay daemon: a small always-on-top window that
// injects "r" or "x" into whatever application has focus, driven by
// global hotkeys or by clicking the overlay itself. The keyboard hook,
// the tray icon, and the control pipe all live in this process.
//
// Usage:
//
//	rxoverlay [-config path] [-log-level level] [-no-tray] [-version]
package main

import (
	"flag"
	"fmt"
	"os"
	"runtime"
)

// Version is reported in status responses and the tray tooltip.
// Release builds stamp it with -ldflags "-X main.Version=...".
var Version = "0.3.0"

var (
	configPath = flag.String("config", "", "path to config file (default: per-user location)")
	logLevel   = flag.String("log-level", "", "override the configured log level (debug, info, warn, error)")
	noTray     = flag.Bool("no-tray", false, "run without a notification area icon")
	showVer    = flag.Bool("version", false, "print version and exit")
)

// The overlay window, its message loop, and every UI-thread call must
// stay on the main OS thread.
func init() {
	runtime.LockOSThread()
}

func main() {
	flag.Parse()

	if *showVer {
		fmt.Printf("rxoverlay %s (%s/%s, %s)\n", Version, runtime.GOOS, runtime.GOARCH, runtime.Version())
		return
	}

	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "rxoverlay: %v\n", err)
		os.Exit(1)
	}
}
