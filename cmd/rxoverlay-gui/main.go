// rxoverlay-gui is the settings window for rxoverlay. It edits the
// shared TOML config and asks a running daemon to reload it.
package main

import (
	"flag"
	"log"
	"os"

	"gioui.org/app"
	"gioui.org/op"
	"gioui.org/unit"
	"gioui.org/widget/material"

	"rxoverlay/cmd/rxoverlay-gui/internal/theme"
	"rxoverlay/cmd/rxoverlay-gui/internal/ui"
	"rxoverlay/internal/config"
)

var configPath = flag.String("config", "", "path to config file (default: platform config dir)")

func main() {
	flag.Parse()

	path := *configPath
	if path == "" {
		path = config.ConfigPath()
	}
	cfg, _, err := config.LoadOrCreate(path)
	if err != nil {
		log.Fatalf("load config %s: %v", path, err)
	}

	go func() {
		w := new(app.Window)
		w.Option(
			app.Title("rxoverlay Settings"),
			app.Size(unit.Dp(520), unit.Dp(640)),
		)
		if err := run(w, cfg, path); err != nil {
			log.Fatal(err)
		}
		os.Exit(0)
	}()
	app.Main()
}

// run drives the frame loop until the window is destroyed.
func run(w *app.Window, cfg *config.Config, path string) error {
	t := theme.NewTheme(material.NewTheme(), cfg.Overlay.Theme)
	settings := ui.NewSettings(t, cfg, path)

	var ops op.Ops
	for {
		switch e := w.Event().(type) {
		case app.DestroyEvent:
			return e.Err
		case app.FrameEvent:
			gtx := app.NewContext(&ops, e)
			settings.Layout(gtx)
			e.Frame(gtx.Ops)
		}
	}
}
