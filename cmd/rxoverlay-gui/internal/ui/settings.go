package ui

import (
	"errors"
	"fmt"
	"image"
	"strconv"
	"strings"

	"gioui.org/layout"
	"gioui.org/op/clip"
	"gioui.org/op/paint"
	"gioui.org/unit"
	"gioui.org/widget"
	"gioui.org/widget/material"

	"rxoverlay/cmd/rxoverlay-gui/internal/theme"
	"rxoverlay/internal/config"
	"rxoverlay/internal/hotkey"
	"rxoverlay/internal/ipc"
)

type statusKind int

const (
	statusNone statusKind = iota
	statusOK
	statusError
)

// Settings is the one-page settings form.
type Settings struct {
	theme *theme.Theme
	cfg   *config.Config
	path  string

	form     widget.List
	opacity  widget.Float
	topmost  widget.Bool
	runLogin widget.Bool
	startsOn widget.Bool
	themeSel widget.Enum
	autoHide widget.Editor
	save     widget.Clickable

	status     string
	statusKind statusKind
	warnings   []string
}

// NewSettings builds the form, seeded from the loaded configuration.
func NewSettings(t *theme.Theme, cfg *config.Config, path string) *Settings {
	s := &Settings{
		theme: t,
		cfg:   cfg,
		path:  path,
		form: widget.List{
			List: layout.List{
				Axis: layout.Vertical,
			},
		},
	}

	s.opacity.Value = float32(cfg.Overlay.Opacity)
	s.topmost.Value = cfg.Overlay.AlwaysOnTop
	s.runLogin.Value = cfg.Startup.RunAtLogin
	s.startsOn.Value = cfg.Startup.EnabledOnStartup
	s.themeSel.Value = cfg.Overlay.Theme
	s.autoHide.SingleLine = true
	s.autoHide.Filter = "0123456789"
	s.autoHide.SetText(strconv.Itoa(cfg.Overlay.AutoHideAfterActionMs))
	s.warnings = validationWarnings(cfg)

	return s
}

// Layout renders the form and processes its events.
func (s *Settings) Layout(gtx layout.Context) layout.Dimensions {
	paint.Fill(gtx.Ops, s.theme.Palette.Background)

	if s.themeSel.Update(gtx) {
		// Live preview; nothing is written until Save.
		s.theme.Apply(s.themeSel.Value)
	}
	if s.save.Clicked(gtx) {
		s.applyAndSave()
	}

	rows := s.rows()
	return layout.UniformInset(theme.Padding).Layout(gtx, func(gtx layout.Context) layout.Dimensions {
		return material.List(s.theme.Theme, &s.form).Layout(gtx, len(rows), func(gtx layout.Context, i int) layout.Dimensions {
			return rows[i](gtx)
		})
	})
}

// rows assembles the form top to bottom.
func (s *Settings) rows() []layout.Widget {
	t := s.theme

	rows := []layout.Widget{
		func(gtx layout.Context) layout.Dimensions {
			title := material.H5(t.Theme, "rxoverlay Settings")
			title.Color = t.Palette.Text
			return title.Layout(gtx)
		},
		func(gtx layout.Context) layout.Dimensions {
			sub := material.Caption(t.Theme, s.path)
			sub.Color = t.Palette.TextMuted
			return sub.Layout(gtx)
		},
		s.spacer(16),

		s.section("Overlay"),
		s.sliderRow("Opacity", &s.opacity),
		s.switchRow("Always on top", &s.topmost),
		s.themeRow(),
		s.editorRow("Auto-hide after send (ms, 0 disables)", &s.autoHide),
		s.spacer(12),

		s.section("Startup"),
		s.switchRow("Run at login", &s.runLogin),
		s.switchRow("Hotkeys enabled on startup", &s.startsOn),
		s.spacer(12),

		s.section("Hotkeys"),
	}

	for _, nb := range s.cfg.Bindings() {
		rows = append(rows, s.bindingRow(nb))
	}
	rows = append(rows, func(gtx layout.Context) layout.Dimensions {
		hint := material.Caption(t.Theme, "Hotkeys are edited in the config file; the daemon reloads them automatically.")
		hint.Color = t.Palette.TextMuted
		return hint.Layout(gtx)
	})

	for _, w := range s.warnings {
		warning := w
		rows = append(rows, func(gtx layout.Context) layout.Dimensions {
			msg := material.Caption(t.Theme, "Warning: "+warning)
			msg.Color = t.Palette.Warning
			return msg.Layout(gtx)
		})
	}

	rows = append(rows,
		s.spacer(20),
		func(gtx layout.Context) layout.Dimensions {
			return layout.Flex{Axis: layout.Horizontal, Alignment: layout.Middle}.Layout(gtx,
				layout.Rigid(func(gtx layout.Context) layout.Dimensions {
					btn := material.Button(t.Theme, &s.save, "Save")
					btn.Background = t.Palette.Primary
					return btn.Layout(gtx)
				}),
				layout.Rigid(layout.Spacer{Width: unit.Dp(12)}.Layout),
				layout.Flexed(1, func(gtx layout.Context) layout.Dimensions {
					if s.statusKind == statusNone {
						return layout.Dimensions{}
					}
					msg := material.Body2(t.Theme, s.status)
					if s.statusKind == statusError {
						msg.Color = t.Palette.Error
					} else {
						msg.Color = t.Palette.Success
					}
					return msg.Layout(gtx)
				}),
			)
		},
	)

	return rows
}

func (s *Settings) spacer(dp int) layout.Widget {
	return layout.Spacer{Height: unit.Dp(dp)}.Layout
}

func (s *Settings) section(name string) layout.Widget {
	t := s.theme
	return func(gtx layout.Context) layout.Dimensions {
		return layout.Inset{Top: unit.Dp(4), Bottom: unit.Dp(8)}.Layout(gtx, func(gtx layout.Context) layout.Dimensions {
			h := material.H6(t.Theme, name)
			h.Color = t.Palette.Primary
			h.TextSize = theme.FontTitle
			return h.Layout(gtx)
		})
	}
}

func (s *Settings) label(text string) layout.Widget {
	t := s.theme
	return func(gtx layout.Context) layout.Dimensions {
		l := material.Body1(t.Theme, text)
		l.Color = t.Palette.Text
		l.TextSize = theme.FontBody
		return l.Layout(gtx)
	}
}

func (s *Settings) sliderRow(name string, f *widget.Float) layout.Widget {
	t := s.theme
	return func(gtx layout.Context) layout.Dimensions {
		return s.row(gtx,
			layout.Rigid(s.label(name)),
			layout.Rigid(layout.Spacer{Width: unit.Dp(16)}.Layout),
			layout.Flexed(1, material.Slider(t.Theme, f).Layout),
			layout.Rigid(layout.Spacer{Width: unit.Dp(8)}.Layout),
			layout.Rigid(func(gtx layout.Context) layout.Dimensions {
				pct := material.Caption(t.Theme, fmt.Sprintf("%3d%%", int(f.Value*100+0.5)))
				pct.Color = t.Palette.TextMuted
				return pct.Layout(gtx)
			}),
		)
	}
}

func (s *Settings) switchRow(name string, b *widget.Bool) layout.Widget {
	t := s.theme
	return func(gtx layout.Context) layout.Dimensions {
		return s.row(gtx,
			layout.Flexed(1, s.label(name)),
			layout.Rigid(material.Switch(t.Theme, b, name).Layout),
		)
	}
}

func (s *Settings) themeRow() layout.Widget {
	t := s.theme
	return func(gtx layout.Context) layout.Dimensions {
		return s.row(gtx,
			layout.Flexed(1, s.label("Theme")),
			layout.Rigid(material.RadioButton(t.Theme, &s.themeSel, "light", "Light").Layout),
			layout.Rigid(layout.Spacer{Width: unit.Dp(8)}.Layout),
			layout.Rigid(material.RadioButton(t.Theme, &s.themeSel, "dark", "Dark").Layout),
		)
	}
}

func (s *Settings) editorRow(name string, ed *widget.Editor) layout.Widget {
	t := s.theme
	return func(gtx layout.Context) layout.Dimensions {
		return s.row(gtx,
			layout.Flexed(1, s.label(name)),
			layout.Rigid(func(gtx layout.Context) layout.Dimensions {
				return s.fieldBox(gtx, func(gtx layout.Context) layout.Dimensions {
					e := material.Editor(t.Theme, ed, "0")
					e.Color = t.Palette.Text
					e.HintColor = t.Palette.TextMuted
					return e.Layout(gtx)
				})
			}),
		)
	}
}

func (s *Settings) bindingRow(nb config.NamedBinding) layout.Widget {
	t := s.theme
	return func(gtx layout.Context) layout.Dimensions {
		return s.row(gtx,
			layout.Flexed(1, s.label(bindingLabel(nb.Name))),
			layout.Rigid(func(gtx layout.Context) layout.Dimensions {
				chord := material.Body2(t.Theme, formatBinding(nb.Binding))
				chord.Color = t.Palette.TextMuted
				return chord.Layout(gtx)
			}),
		)
	}
}

// row is one settings line with consistent vertical rhythm.
func (s *Settings) row(gtx layout.Context, children ...layout.FlexChild) layout.Dimensions {
	return layout.Inset{Top: unit.Dp(6), Bottom: unit.Dp(6)}.Layout(gtx, func(gtx layout.Context) layout.Dimensions {
		return layout.Flex{Axis: layout.Horizontal, Alignment: layout.Middle}.Layout(gtx, children...)
	})
}

// fieldBox draws a fixed-size panel and lays the editor out on top of it.
func (s *Settings) fieldBox(gtx layout.Context, w layout.Widget) layout.Dimensions {
	t := s.theme
	size := image.Pt(gtx.Dp(72), gtx.Dp(28))
	rect := clip.UniformRRect(image.Rect(0, 0, size.X, size.Y), gtx.Dp(theme.CornerRadius)).Op(gtx.Ops)
	paint.FillShape(gtx.Ops, t.Palette.Surface, rect)

	gtx.Constraints = layout.Exact(size)
	layout.UniformInset(unit.Dp(6)).Layout(gtx, w)
	return layout.Dimensions{Size: size}
}

// applyAndSave validates the staged values, writes the file, and pokes
// the daemon. Validation errors leave the file untouched.
func (s *Settings) applyAndSave() {
	cfg := s.cfg.Clone()

	op := float64(s.opacity.Value)
	if op < 0.05 {
		op = 0.05
	}
	if op > 1 {
		op = 1
	}
	cfg.Overlay.Opacity = op
	cfg.Overlay.AlwaysOnTop = s.topmost.Value
	cfg.Overlay.Theme = s.themeSel.Value
	cfg.Startup.RunAtLogin = s.runLogin.Value
	cfg.Startup.EnabledOnStartup = s.startsOn.Value

	text := strings.TrimSpace(s.autoHide.Text())
	if text == "" {
		cfg.Overlay.AutoHideAfterActionMs = 0
	} else {
		ms, err := strconv.Atoi(text)
		if err != nil {
			s.setStatus("Auto-hide must be a number of milliseconds.", statusError)
			return
		}
		cfg.Overlay.AutoHideAfterActionMs = ms
	}

	if verr := cfg.Validate(); verr != nil {
		var verrs config.ValidationErrors
		if errors.As(verr, &verrs) && verrs.HasErrors() {
			s.setStatus(verrs.Errors()[0].Error(), statusError)
			return
		}
	}

	if err := config.SaveConfig(cfg, s.path); err != nil {
		s.setStatus(fmt.Sprintf("Save failed: %v", err), statusError)
		return
	}
	s.cfg = cfg
	s.warnings = validationWarnings(cfg)

	if pokeDaemon(cfg) {
		s.setStatus("Saved. The running daemon picked up the changes.", statusOK)
	} else {
		s.setStatus("Saved. Changes apply when the daemon starts.", statusOK)
	}
}

func (s *Settings) setStatus(msg string, kind statusKind) {
	s.status = msg
	s.statusKind = kind
}

// pokeDaemon asks a running daemon to reload the file just written.
// Not running is a normal outcome, not an error.
func pokeDaemon(cfg *config.Config) bool {
	if !cfg.IPC.Enabled {
		return false
	}
	client := ipc.NewClient(ipc.DefaultClientConfig(cfg.IPC.PipeName))
	if err := client.Connect(); err != nil {
		return false
	}
	defer client.Close()
	return client.ReloadConfig() == nil
}

func validationWarnings(cfg *config.Config) []string {
	verr := cfg.Validate()
	if verr == nil {
		return nil
	}
	var verrs config.ValidationErrors
	if !errors.As(verr, &verrs) {
		return nil
	}
	var out []string
	for _, w := range verrs.Warnings() {
		out = append(out, w.Message)
	}
	return out
}

func bindingLabel(name string) string {
	switch name {
	case "toggle":
		return "Toggle enabled"
	case "exit":
		return "Exit"
	case "send_primary":
		return `Send "r"`
	case "send_secondary":
		return `Send "x"`
	default:
		return name
	}
}

func formatBinding(b config.Binding) string {
	parsed, err := hotkey.ParseBinding(b.Mods, b.ScanCode)
	if err != nil {
		return "invalid"
	}
	return parsed.String()
}
