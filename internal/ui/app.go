// Package ui hosts the Gio desktop app for channel transient simulation:
// pick a Touchstone export and its port metadata, tune the driver and
// termination settings, preview pruning, and run the solver with live
// progress.
package ui

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"strconv"
	"strings"
	"sync"

	"gioui.org/app"
	"gioui.org/font/gofont"
	"gioui.org/layout"
	"gioui.org/op"
	"gioui.org/op/clip"
	"gioui.org/op/paint"
	"gioui.org/text"
	"gioui.org/unit"
	"gioui.org/widget"
	"gioui.org/widget/material"

	"github.com/signalpathlab/cct/internal/config"
	"github.com/signalpathlab/cct/pkg/aedt"
	"github.com/signalpathlab/cct/pkg/cct"
	"github.com/signalpathlab/cct/pkg/ports"
)

// App hosts the channel simulation window.
type App struct {
	window *app.Window
	theme  *material.Theme
	state  *AppState

	ops op.Ops

	touchstonePath widget.Editor
	metadataPath   widget.Editor
	outputPath     widget.Editor

	vhigh        widget.Editor
	trise        widget.Editor
	unitInterval widget.Editor
	resTx        widget.Editor
	capTx        widget.Editor
	resRx        widget.Editor
	capRx        widget.Editor
	tstep        widget.Editor
	tstop        widget.Editor
	threshold    widget.Editor
	version      widget.Editor

	pruneCheck    widget.Bool
	simulateCheck widget.Bool

	loadBtn   widget.Clickable
	saveBtn   widget.Clickable
	preRunBtn widget.Clickable
	runBtn    widget.Clickable
	stopBtn   widget.Clickable

	leftPanel   layout.List
	linksList   layout.List
	summaryList layout.List
	resultsList layout.List
	logList     layout.List

	// mu guards pipeline and cancel: the worker goroutines write them
	// while the frame loop reads.
	mu       sync.Mutex
	pipeline *cct.Pipeline
	cancel   context.CancelFunc
}

func (a *App) setPipeline(p *cct.Pipeline) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.pipeline = p
}

func (a *App) getPipeline() *cct.Pipeline {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.pipeline
}

func (a *App) setCancel(c context.CancelFunc) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.cancel = c
}

// NewApp wires the supplied Gio window to the simulation workspace and
// seeds the editors from the persisted settings.
func NewApp(win *app.Window, state *AppState) *App {
	th := material.NewTheme()
	th.Shaper = text.NewShaper(text.WithCollection(gofont.Collection()))

	if state == nil {
		state = NewState()
	}
	a := &App{
		window:      win,
		theme:       th,
		state:       state,
		leftPanel:   layout.List{Axis: layout.Vertical},
		linksList:   layout.List{Axis: layout.Vertical},
		summaryList: layout.List{Axis: layout.Vertical},
		resultsList: layout.List{Axis: layout.Vertical},
		logList:     layout.List{Axis: layout.Vertical},
	}

	for _, ed := range []*widget.Editor{
		&a.touchstonePath, &a.metadataPath, &a.outputPath,
		&a.vhigh, &a.trise, &a.unitInterval, &a.resTx, &a.capTx,
		&a.resRx, &a.capRx, &a.tstep, &a.tstop, &a.threshold, &a.version,
	} {
		ed.SingleLine = true
	}

	settings, err := config.Load()
	if err != nil {
		state.AppendLog(fmt.Sprintf("Settings load failed: %v", err))
	}
	a.applySettings(settings)

	if win != nil {
		win.Option(app.Title("Channel Transient Simulation"), app.Size(unit.Dp(1280), unit.Dp(860)))
	}
	return a
}

// applySettings copies a settings document into the editors.
func (a *App) applySettings(s config.Settings) {
	a.vhigh.SetText(s.Tx.VHigh)
	a.trise.SetText(s.Tx.TRise)
	a.unitInterval.SetText(s.Tx.UI)
	a.resTx.SetText(s.Tx.Res)
	a.capTx.SetText(s.Tx.Cap)
	a.resRx.SetText(s.Rx.Res)
	a.capRx.SetText(s.Rx.Cap)
	a.tstep.SetText(s.Transient.TStep)
	a.tstop.SetText(s.Transient.TStop)
	a.threshold.SetText(strconv.FormatFloat(s.Options.ThresholdDB, 'g', -1, 64))
	a.version.SetText(s.Options.Version)
	a.pruneCheck.Value = s.Options.Prune
	a.simulateCheck.Value = s.Options.Simulate
	a.touchstonePath.SetText(s.Paths.Touchstone)
	a.metadataPath.SetText(s.Paths.Metadata)
	a.outputPath.SetText(s.Paths.Output)
}

// collectSettings reads the editors back into a settings document.
func (a *App) collectSettings() (config.Settings, error) {
	s := config.Defaults()
	s.Tx.VHigh = strings.TrimSpace(a.vhigh.Text())
	s.Tx.TRise = strings.TrimSpace(a.trise.Text())
	s.Tx.UI = strings.TrimSpace(a.unitInterval.Text())
	s.Tx.Res = strings.TrimSpace(a.resTx.Text())
	s.Tx.Cap = strings.TrimSpace(a.capTx.Text())
	s.Rx.Res = strings.TrimSpace(a.resRx.Text())
	s.Rx.Cap = strings.TrimSpace(a.capRx.Text())
	s.Transient.TStep = strings.TrimSpace(a.tstep.Text())
	s.Transient.TStop = strings.TrimSpace(a.tstop.Text())
	s.Options.Version = strings.TrimSpace(a.version.Text())
	s.Options.Prune = a.pruneCheck.Value
	s.Options.Simulate = a.simulateCheck.Value
	s.Paths.Touchstone = strings.TrimSpace(a.touchstonePath.Text())
	s.Paths.Metadata = strings.TrimSpace(a.metadataPath.Text())
	s.Paths.Output = strings.TrimSpace(a.outputPath.Text())

	th, err := strconv.ParseFloat(strings.TrimSpace(a.threshold.Text()), 64)
	if err != nil {
		return s, fmt.Errorf("threshold %q is not a number", a.threshold.Text())
	}
	s.Options.ThresholdDB = th
	return s, nil
}

// Run spins Gio's event loop until the window closes.
func (a *App) Run() error {
	for {
		e := a.window.Event()
		switch ev := e.(type) {
		case app.DestroyEvent:
			return ev.Err
		case app.FrameEvent:
			gtx := app.NewContext(&a.ops, ev)
			a.layout(gtx)
			ev.Frame(gtx.Ops)
		}
	}
}

func (a *App) layout(gtx layout.Context) layout.Dimensions {
	snap := a.state.Snapshot()
	return layout.Flex{Axis: layout.Horizontal}.Layout(gtx,
		layout.Flexed(0.36, func(gtx layout.Context) layout.Dimensions {
			return a.layoutLeftPanel(gtx, snap)
		}),
		layout.Flexed(0.64, func(gtx layout.Context) layout.Dimensions {
			return a.layoutRightPanel(gtx, snap)
		}),
	)
}

func (a *App) layoutLeftPanel(gtx layout.Context, snap StateSnapshot) layout.Dimensions {
	cards := []layout.Widget{
		func(gtx layout.Context) layout.Dimensions {
			return a.layoutCard(gtx, "Input Files", func(gtx layout.Context) layout.Dimensions {
				return layout.Flex{Axis: layout.Vertical}.Layout(gtx,
					layout.Rigid(a.field("Touchstone (.sNp)", &a.touchstonePath, "board.s16p")),
					layout.Rigid(a.field("Port metadata (JSON)", &a.metadataPath, "board_ports.json")),
					layout.Rigid(a.field("Results CSV", &a.outputPath, "default: <metadata>_cct.csv")),
					layout.Rigid(layout.Spacer{Height: unit.Dp(10)}.Layout),
					layout.Rigid(func(gtx layout.Context) layout.Dimensions {
						return layout.Flex{Axis: layout.Horizontal, Spacing: layout.SpaceBetween}.Layout(gtx,
							layout.Rigid(func(gtx layout.Context) layout.Dimensions {
								return a.button(gtx, &a.loadBtn, "Load", snap.Busy, func() {
									go a.load()
								})
							}),
							layout.Rigid(func(gtx layout.Context) layout.Dimensions {
								return a.button(gtx, &a.saveBtn, "Save Settings", false, func() {
									a.saveSettings()
								})
							}),
						)
					}),
				)
			})
		},
		func(gtx layout.Context) layout.Dimensions {
			return a.layoutCard(gtx, "Transmit Driver", func(gtx layout.Context) layout.Dimensions {
				return layout.Flex{Axis: layout.Vertical}.Layout(gtx,
					layout.Rigid(a.field("High level", &a.vhigh, "0.8V")),
					layout.Rigid(a.field("Rise time", &a.trise, "30ps")),
					layout.Rigid(a.field("Unit interval", &a.unitInterval, "133ps")),
					layout.Rigid(a.field("Series resistance", &a.resTx, "40ohm")),
					layout.Rigid(a.field("Shunt capacitance", &a.capTx, "1pF")),
				)
			})
		},
		func(gtx layout.Context) layout.Dimensions {
			return a.layoutCard(gtx, "Receive Termination", func(gtx layout.Context) layout.Dimensions {
				return layout.Flex{Axis: layout.Vertical}.Layout(gtx,
					layout.Rigid(a.field("Resistance", &a.resRx, "30ohm")),
					layout.Rigid(a.field("Capacitance", &a.capRx, "1.8pF")),
				)
			})
		},
		func(gtx layout.Context) layout.Dimensions {
			return a.layoutCard(gtx, "Transient Analysis", func(gtx layout.Context) layout.Dimensions {
				return layout.Flex{Axis: layout.Vertical}.Layout(gtx,
					layout.Rigid(a.field("Time step", &a.tstep, "100ps")),
					layout.Rigid(a.field("Stop time", &a.tstop, "3ns")),
				)
			})
		},
		func(gtx layout.Context) layout.Dimensions {
			return a.layoutCard(gtx, "Options", func(gtx layout.Context) layout.Dimensions {
				return layout.Flex{Axis: layout.Vertical}.Layout(gtx,
					layout.Rigid(material.CheckBox(a.theme, &a.pruneCheck, "Prune weakly coupled ports").Layout),
					layout.Rigid(a.field("Threshold (dB)", &a.threshold, "-60")),
					layout.Rigid(a.field("AEDT release", &a.version, aedt.DefaultVersion)),
					layout.Rigid(material.CheckBox(a.theme, &a.simulateCheck, "Synthetic solver (no license)").Layout),
				)
			})
		},
	}

	return layout.Inset{Top: unit.Dp(16), Bottom: unit.Dp(16), Left: unit.Dp(16), Right: unit.Dp(8)}.Layout(gtx, func(gtx layout.Context) layout.Dimensions {
		return a.leftPanel.Layout(gtx, len(cards), func(gtx layout.Context, idx int) layout.Dimensions {
			return layout.Flex{Axis: layout.Vertical}.Layout(gtx,
				layout.Rigid(cards[idx]),
				layout.Rigid(layout.Spacer{Height: unit.Dp(12)}.Layout),
			)
		})
	})
}

func (a *App) layoutRightPanel(gtx layout.Context, snap StateSnapshot) layout.Dimensions {
	noPipeline := a.getPipeline() == nil
	return layout.Inset{Top: unit.Dp(16), Bottom: unit.Dp(16), Right: unit.Dp(16)}.Layout(gtx, func(gtx layout.Context) layout.Dimensions {
		return layout.Flex{Axis: layout.Vertical}.Layout(gtx,
			layout.Flexed(0.32, func(gtx layout.Context) layout.Dimensions {
				return a.layoutCard(gtx, "Links", func(gtx layout.Context) layout.Dimensions {
					return a.linksList.Layout(gtx, len(snap.Links), func(gtx layout.Context, idx int) layout.Dimensions {
						if idx >= len(snap.Links) {
							return layout.Dimensions{}
						}
						l := snap.Links[idx]
						status := ""
						if !l.Complete() {
							status = " (half-open, skipped)"
						}
						return layout.UniformInset(unit.Dp(3)).Layout(gtx, func(gtx layout.Context) layout.Dimensions {
							return layout.Flex{Axis: layout.Vertical}.Layout(gtx,
								layout.Rigid(material.Body1(a.theme, fmt.Sprintf("%s %s%s", l.Type, l.Label, status)).Layout),
								layout.Rigid(material.Caption(a.theme, fmt.Sprintf("%s -> %s", l.TxDisplay(), l.RxDisplay())).Layout),
							)
						})
					})
				})
			}),
			layout.Rigid(layout.Spacer{Height: unit.Dp(12)}.Layout),
			layout.Rigid(func(gtx layout.Context) layout.Dimensions {
				return a.layoutCard(gtx, "Simulation", func(gtx layout.Context) layout.Dimensions {
					return layout.Flex{Axis: layout.Vertical}.Layout(gtx,
						layout.Rigid(func(gtx layout.Context) layout.Dimensions {
							bar := material.ProgressBar(a.theme, snap.Progress)
							bar.Color = color.NRGBA{R: 110, G: 140, B: 255, A: 255}
							return bar.Layout(gtx)
						}),
						layout.Rigid(layout.Spacer{Height: unit.Dp(6)}.Layout),
						layout.Rigid(material.Body2(a.theme, snap.Status).Layout),
						layout.Rigid(material.Caption(a.theme, snap.CurrentLink).Layout),
						layout.Rigid(layout.Spacer{Height: unit.Dp(8)}.Layout),
						layout.Rigid(func(gtx layout.Context) layout.Dimensions {
							return layout.Flex{Axis: layout.Horizontal, Spacing: layout.SpaceBetween}.Layout(gtx,
								layout.Rigid(func(gtx layout.Context) layout.Dimensions {
									return a.button(gtx, &a.preRunBtn, "Pre-run", noPipeline || snap.Busy, func() {
										go a.preRun()
									})
								}),
								layout.Rigid(func(gtx layout.Context) layout.Dimensions {
									return a.button(gtx, &a.runBtn, "Run + Calculate", noPipeline || snap.Busy, func() {
										go a.run()
									})
								}),
								layout.Rigid(func(gtx layout.Context) layout.Dimensions {
									return a.iconButton(gtx, &a.stopBtn, iconStop, "Stop", !snap.Busy, func() {
										a.stop()
									})
								}),
							)
						}),
					)
				})
			}),
			layout.Rigid(layout.Spacer{Height: unit.Dp(12)}.Layout),
			layout.Flexed(0.34, func(gtx layout.Context) layout.Dimensions {
				return a.layoutCard(gtx, "Results", func(gtx layout.Context) layout.Dimensions {
					if len(snap.Results) == 0 {
						return a.layoutSummaries(gtx, snap)
					}
					return a.resultsList.Layout(gtx, len(snap.Results), func(gtx layout.Context, idx int) layout.Dimensions {
						if idx >= len(snap.Results) {
							return layout.Dimensions{}
						}
						r := snap.Results[idx]
						return layout.UniformInset(unit.Dp(3)).Layout(gtx, func(gtx layout.Context) layout.Dimensions {
							return layout.Flex{Axis: layout.Vertical}.Layout(gtx,
								layout.Rigid(material.Body1(a.theme, fmt.Sprintf("%s (%s)", r.Label, r.Type)).Layout),
								layout.Rigid(material.Caption(a.theme, fmt.Sprintf(
									"peak %.4g V, settled %.4g V, integral %.4g V*s, ISI %.3f",
									r.PeakV, r.SettledV, r.IntegralVs, r.ISIRatio)).Layout),
							)
						})
					})
				})
			}),
			layout.Rigid(layout.Spacer{Height: unit.Dp(12)}.Layout),
			layout.Flexed(0.34, func(gtx layout.Context) layout.Dimensions {
				return a.layoutCard(gtx, "Log", func(gtx layout.Context) layout.Dimensions {
					return a.logList.Layout(gtx, len(snap.Logs), func(gtx layout.Context, idx int) layout.Dimensions {
						if idx >= len(snap.Logs) {
							return layout.Dimensions{}
						}
						return layout.UniformInset(unit.Dp(2)).Layout(gtx, func(gtx layout.Context) layout.Dimensions {
							return material.Caption(a.theme, snap.Logs[idx]).Layout(gtx)
						})
					})
				})
			}),
		)
	})
}

func (a *App) layoutSummaries(gtx layout.Context, snap StateSnapshot) layout.Dimensions {
	if len(snap.Summaries) == 0 {
		return material.Caption(a.theme, "Run a pre-run or a full run to see results here.").Layout(gtx)
	}
	return a.summaryList.Layout(gtx, len(snap.Summaries), func(gtx layout.Context, idx int) layout.Dimensions {
		if idx >= len(snap.Summaries) {
			return layout.Dimensions{}
		}
		s := snap.Summaries[idx]
		return layout.UniformInset(unit.Dp(3)).Layout(gtx, func(gtx layout.Context) layout.Dimensions {
			return layout.Flex{Axis: layout.Vertical}.Layout(gtx,
				layout.Rigid(material.Body1(a.theme, fmt.Sprintf("%s: kept %d of %d ports", s.TxLabel, s.KeptPortCount, s.TotalPortCount)).Layout),
				layout.Rigid(material.Caption(a.theme, strings.Join(s.KeptPorts, ", ")).Layout),
			)
		})
	})
}

func (a *App) layoutCard(gtx layout.Context, title string, body layout.Widget) layout.Dimensions {
	return layout.UniformInset(unit.Dp(4)).Layout(gtx, func(gtx layout.Context) layout.Dimensions {
		return layout.Flex{Axis: layout.Vertical}.Layout(gtx,
			layout.Rigid(material.H6(a.theme, title).Layout),
			layout.Rigid(layout.Spacer{Height: unit.Dp(4)}.Layout),
			layout.Rigid(func(gtx layout.Context) layout.Dimensions {
				thickness := gtx.Dp(unit.Dp(1))
				paint.FillShape(gtx.Ops, color.NRGBA{A: 40}, clip.Rect{Max: image.Pt(gtx.Constraints.Max.X, thickness)}.Op())
				return layout.Dimensions{Size: image.Pt(gtx.Constraints.Max.X, thickness)}
			}),
			layout.Rigid(layout.Spacer{Height: unit.Dp(6)}.Layout),
			layout.Rigid(body),
		)
	})
}

func (a *App) field(label string, ed *widget.Editor, hint string) layout.Widget {
	return func(gtx layout.Context) layout.Dimensions {
		return layout.Flex{Axis: layout.Vertical}.Layout(gtx,
			layout.Rigid(material.Body2(a.theme, label).Layout),
			layout.Rigid(func(gtx layout.Context) layout.Dimensions {
				return material.Editor(a.theme, ed, hint).Layout(gtx)
			}),
			layout.Rigid(layout.Spacer{Height: unit.Dp(6)}.Layout),
		)
	}
}

func (a *App) button(gtx layout.Context, clk *widget.Clickable, label string, disabled bool, action func()) layout.Dimensions {
	btn := material.Button(a.theme, clk, label)
	if disabled {
		btn.Background = color.NRGBA{R: 70, G: 70, B: 90, A: 180}
	}
	dims := btn.Layout(gtx)
	if !disabled {
		for clk.Clicked(gtx) {
			action()
		}
	} else {
		clk.Clicked(gtx)
	}
	return dims
}

func (a *App) iconButton(gtx layout.Context, clk *widget.Clickable, icon *widget.Icon, desc string, disabled bool, action func()) layout.Dimensions {
	btn := material.IconButton(a.theme, clk, icon, desc)
	if disabled {
		btn.Background = color.NRGBA{R: 70, G: 70, B: 90, A: 180}
	}
	dims := btn.Layout(gtx)
	if !disabled {
		for clk.Clicked(gtx) {
			action()
		}
	} else {
		clk.Clicked(gtx)
	}
	return dims
}

func (a *App) load() {
	a.state.SetStatus("Loading channel...")
	a.invalidate()

	settings, err := a.collectSettings()
	if err != nil {
		a.fail(err)
		return
	}
	tsPath, mdPath := settings.Paths.Touchstone, settings.Paths.Metadata
	if tsPath == "" || mdPath == "" {
		a.fail(fmt.Errorf("both a Touchstone file and a metadata file are required"))
		return
	}

	opts := cct.Options{
		TouchstonePath: tsPath,
		MetadataPath:   mdPath,
		Version:        settings.Options.Version,
		Prune:          settings.Options.Prune,
		ThresholdDB:    settings.Options.ThresholdDB,
	}
	if settings.Options.Simulate {
		opts.Simulator = &aedt.SimSimulator{}
	}
	p, err := cct.New(opts)
	if err != nil {
		a.fail(err)
		return
	}
	p.SetTx(settings.TxSettings())
	p.SetRx(settings.RxSettings())
	a.setPipeline(p)

	// Show every link from the metadata, half-open ones included.
	md, err := ports.Load(mdPath)
	if err != nil {
		a.fail(err)
		return
	}
	links := ports.BuildLinks(md.Ports)
	a.state.SetLinks(links)
	a.state.SetSummaries(nil)
	a.state.SetResults(nil)
	a.state.SetError(nil)
	a.state.SetStatus(fmt.Sprintf("Loaded %d links (%d simulatable)", len(links), len(p.Links())))
	a.state.AppendLog(fmt.Sprintf("Loaded %s + %s", tsPath, mdPath))
	a.invalidate()
}

func (a *App) preRun() {
	p := a.getPipeline()
	if p == nil {
		return
	}
	a.state.SetBusy(true)
	a.state.SetStatus("Pruning channel...")
	a.invalidate()

	ctx, cancel := context.WithCancel(context.Background())
	a.setCancel(cancel)
	defer cancel()

	summaries, err := p.PreRun(ctx)
	if err != nil {
		a.fail(err)
		a.state.SetBusy(false)
		a.invalidate()
		return
	}
	a.state.SetSummaries(summaries)
	for _, s := range summaries {
		a.state.AppendLog(fmt.Sprintf("link %s: kept %d of %d ports", s.TxLabel, s.KeptPortCount, s.TotalPortCount))
	}
	a.state.SetStatus("Pre-run complete")
	a.state.SetBusy(false)
	a.invalidate()
}

func (a *App) run() {
	p := a.getPipeline()
	if p == nil {
		return
	}
	settings, err := a.collectSettings()
	if err != nil {
		a.fail(err)
		return
	}

	a.state.SetBusy(true)
	a.state.ResetProgress()
	a.state.SetResults(nil)
	a.state.SetStatus("Simulating...")
	a.invalidate()

	ctx, cancel := context.WithCancel(context.Background())
	a.setCancel(cancel)
	defer cancel()

	progress := make(chan cct.Progress, 8)
	go func() {
		for pr := range progress {
			a.state.SetProgress(pr.Step, pr.Total, fmt.Sprintf("Solving %s (%d/%d)", pr.Label, pr.Step, pr.Total))
			a.invalidate()
		}
	}()

	if err := p.Run(ctx, settings.TransientSettings(), progress); err != nil {
		if ctx.Err() != nil {
			a.state.SetStatus("Run cancelled")
		} else {
			a.fail(err)
		}
		a.state.SetBusy(false)
		a.invalidate()
		return
	}

	out := settings.Paths.Output
	if out == "" {
		out = cct.DefaultOutputPath(settings.Paths.Metadata)
	}
	results, err := p.Calculate(out)
	if err != nil {
		a.fail(err)
		a.state.SetBusy(false)
		a.invalidate()
		return
	}
	a.state.SetResults(results)
	a.state.AppendLog(fmt.Sprintf("results written to %s", out))
	a.state.SetStatus(fmt.Sprintf("Done: %d links", len(results)))
	a.state.SetBusy(false)
	a.invalidate()

	if err := config.Save(settings); err != nil {
		a.state.AppendLog(fmt.Sprintf("settings save failed: %v", err))
	}
}

func (a *App) stop() {
	a.mu.Lock()
	c := a.cancel
	a.mu.Unlock()
	if c != nil {
		c()
	}
}

func (a *App) saveSettings() {
	settings, err := a.collectSettings()
	if err != nil {
		a.fail(err)
		return
	}
	if err := config.Save(settings); err != nil {
		a.fail(err)
		return
	}
	a.state.SetStatus("Settings saved")
	a.state.AppendLog("settings saved")
	a.invalidate()
}

func (a *App) fail(err error) {
	a.state.SetError(err)
	a.state.SetStatus(err.Error())
	a.state.AppendLog(err.Error())
	a.invalidate()
}

func (a *App) invalidate() {
	if a.window != nil {
		a.window.Invalidate()
	}
}
