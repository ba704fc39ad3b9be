// rxoverlayctl is the control CLI for the rxoverlay daemon.
package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"rxoverlay/internal/config"
	"rxoverlay/internal/ipc"
)

var (
	configPath  = flag.String("config", "", "path to config file")
	historyN    = flag.Int("n", 20, "number of history entries to show")
	withMetrics = flag.Bool("metrics", false, "include metrics counters in status output")
)

type command struct {
	name string
	run  func()
	help string
}

var commands = []command{
	{"status", cmdStatus, "Show daemon status"},
	{"toggle", cmdToggle, "Toggle hotkey actions on or off"},
	{"show", cmdShow, "Show the overlay"},
	{"hide", cmdHide, "Hide the overlay"},
	{"exit", cmdExit, "Shut the daemon down"},
	{"history", cmdHistory, "Print recent injected actions"},
	{"reload", cmdReload, "Reload the configuration file"},
	{"ping", cmdPing, "Check whether the daemon responds"},
}

func main() {
	flag.Usage = usage
	flag.Parse()

	name := flag.Arg(0)
	switch name {
	case "":
		usage()
		os.Exit(1)
	case "help":
		usage()
		return
	}

	for _, c := range commands {
		if c.name == name {
			c.run()
			return
		}
	}
	fmt.Fprintf(os.Stderr, "Unknown command: %s\n", name)
	usage()
	os.Exit(1)
}

func usage() {
	fmt.Fprintln(os.Stderr, "rxoverlayctl - Control utility for rxoverlay")
	fmt.Fprintln(os.Stderr, "\nUsage: rxoverlayctl [options] <command>")
	fmt.Fprintln(os.Stderr, "\nCommands:")
	for _, c := range commands {
		fmt.Fprintf(os.Stderr, "  %-15s %s\n", c.name, c.help)
	}
	fmt.Fprintf(os.Stderr, "  %-15s %s\n", "help", "Show this help message")
	fmt.Fprintln(os.Stderr, "\nOptions:")
	flag.PrintDefaults()
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}

// connect dials the daemon's control pipe or exits with a message.
func connect() *ipc.Client {
	cfg, err := config.Load(*configPath)
	if err != nil {
		fatalf("Error loading config: %v", err)
	}

	client := ipc.NewClient(ipc.DefaultClientConfig(cfg.IPC.PipeName))
	if err := client.Connect(); err != nil {
		if errors.Is(err, ipc.ErrNotRunning) {
			fatalf("rxoverlay is not running.")
		}
		fatalf("Cannot connect to rxoverlay: %v", err)
	}
	return client
}

// simple covers the commands whose response is just an acknowledgement.
func simple(verb string, call func(*ipc.Client) error, done string) {
	client := connect()
	defer client.Close()

	if err := call(client); err != nil {
		fatalf("Error %s: %v", verb, err)
	}
	fmt.Println(done)
}

func cmdShow() { simple("showing overlay", (*ipc.Client).Show, "Overlay shown.") }

func cmdHide() { simple("hiding overlay", (*ipc.Client).Hide, "Overlay hidden.") }

func cmdExit() { simple("stopping daemon", (*ipc.Client).Exit, "rxoverlay is shutting down.") }

func cmdReload() { simple("reloading config", (*ipc.Client).ReloadConfig, "Configuration reloaded.") }

func cmdStatus() {
	client := connect()
	defer client.Close()

	status, err := client.Status(*withMetrics)
	if err != nil {
		fatalf("Error getting status: %v", err)
	}

	fmt.Println("=== rxoverlay Status ===")
	fmt.Println()
	fmt.Printf("Version:  %s\n", status.Version)
	fmt.Printf("Started:  %s\n", status.StartedAt.Format(time.RFC3339))
	fmt.Printf("Uptime:   %s\n", status.Uptime.Round(time.Second))
	fmt.Printf("Enabled:  %s\n", yesNo(status.Enabled))
	fmt.Printf("Overlay:  %s\n", overlayState(status))
	fmt.Printf("Target:   %s\n", targetState(status.TargetKnown))
	fmt.Printf("Hook:     %s\n", hookState(status.Hook))

	fmt.Println()
	if status.History.Enabled {
		fmt.Printf("History:  enabled, %d actions recorded\n", status.History.Total)
	} else {
		fmt.Println("History:  disabled")
	}

	if len(status.Metrics) > 0 {
		fmt.Println()
		fmt.Println("Metrics:")
		names := make([]string, 0, len(status.Metrics))
		for name := range status.Metrics {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			fmt.Printf("  %-42s %v\n", name, status.Metrics[name])
		}
	}
}

func overlayState(status *ipc.StatusResponse) string {
	switch {
	case status.Minimized:
		return "minimized"
	case status.Visible:
		return "visible"
	default:
		return "hidden"
	}
}

func targetState(known bool) string {
	if known {
		return "known"
	}
	return "none seen yet"
}

func hookState(h ipc.HookStatus) string {
	if h.Degraded {
		if h.Reason != "" {
			return fmt.Sprintf("DEGRADED (%s)", h.Reason)
		}
		return "DEGRADED"
	}
	if h.Running {
		return "running"
	}
	return "stopped"
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func cmdToggle() {
	client := connect()
	defer client.Close()

	resp, err := client.Toggle()
	if err != nil {
		fatalf("Error toggling: %v", err)
	}
	if resp.Enabled {
		fmt.Println("Hotkey actions enabled.")
	} else {
		fmt.Println("Hotkey actions disabled.")
	}
}

func cmdHistory() {
	client := connect()
	defer client.Close()

	resp, err := client.History(*historyN)
	if err != nil {
		fatalf("Error getting history: %v", err)
	}

	if len(resp.Actions) == 0 {
		fmt.Println("No actions recorded.")
		return
	}

	fmt.Println("=== Action History ===")
	fmt.Printf("%d of %d recorded actions, newest first\n\n", len(resp.Actions), resp.Total)
	fmt.Printf("%-20s %-15s %-13s %s\n", "Time", "Action", "Outcome", "Target")
	fmt.Println(strings.Repeat("-", 70))

	for _, a := range resp.Actions {
		fmt.Printf("%-20s %-15s %-13s %s\n",
			a.At.Format("2006-01-02 15:04:05"),
			a.Action,
			a.Outcome,
			a.TargetTitle,
		)
		if a.Detail != "" {
			fmt.Printf("%-20s %s\n", "", a.Detail)
		}
	}
}

func cmdPing() {
	client := connect()
	defer client.Close()

	start := time.Now()
	if err := client.Ping(); err != nil {
		fatalf("rxoverlay is not responding: %v", err)
	}
	fmt.Printf("rxoverlay is running (latency %s).\n", time.Since(start).Round(time.Microsecond))
}
