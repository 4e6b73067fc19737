package main

import (
	"context"
	"fmt"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/itohio/rcthermo/pkg/gpio"
	"github.com/itohio/rcthermo/pkg/panel"
	"github.com/itohio/rcthermo/pkg/thermistor"
)

func newViewCmd() *cobra.Command {
	var (
		interval time.Duration
		history  time.Duration
	)

	cmd := &cobra.Command{
		Use:   "view",
		Short: "Run the loop with an on-screen mirror of the LEDs",
		Long: `view runs the sampling loop on the simulated board (unless --backend is
given) and shows the bar graph, the status LED and a temperature history in a
window. The simulated temperature and the occupancy button are controlled
from the toolbar.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if backend == "" {
				cfg.Hardware.Backend = gpio.BackendSim
			}
			if cfg.Hardware.Backend == gpio.BackendSim {
				cfg.Occupancy.Enabled = true
			}
			if interval > 0 {
				cfg.Loop.SampleInterval = interval
			}
			return runView(history)
		},
	}

	cmd.Flags().DurationVar(&interval, "interval", 2*time.Second, "sample interval override")
	cmd.Flags().DurationVar(&history, "history", 30*time.Minute, "history window")
	return cmd
}

// viewState holds the window state.
type viewState struct {
	window  fyne.Window
	panel   *panel.Panel
	rig     *rig
	session *session
	cancel  context.CancelFunc
	done    chan error
}

func runView(history time.Duration) error {
	r, err := openRig(cfg)
	if err != nil {
		return err
	}
	defer r.Close()

	s, err := newSession(cfg, r)
	if err != nil {
		return err
	}

	application := app.NewWithID("com.itohio.rcthermo")
	window := application.NewWindow("RC Thermometer")
	window.Resize(fyne.NewSize(800, 480))
	window.CenterOnScreen()

	state := &viewState{
		window:  window,
		panel:   panel.New(cfg.Display, history),
		rig:     r,
		session: s,
	}
	s.bar.AddSink(state.panel)
	s.status.AddSink(state.panel)
	s.loop.OnSample(state.panel.AddSample)
	s.loop.OnSample(func(smp thermistor.Sample) {
		log.WithField("temp_c", smp.Temperature).Debug("view sample")
	})

	window.SetContent(container.NewBorder(createToolbar(state), nil, nil, nil, state.panel))
	window.SetOnClosed(state.stop)

	state.start()
	window.ShowAndRun()
	state.stop()
	return <-state.done
}

func (v *viewState) start() {
	ctx, cancel := context.WithCancel(context.Background())
	v.cancel = cancel
	v.done = make(chan error, 1)
	go func() {
		err := v.session.run(ctx)
		if err != nil {
			fyne.Do(func() {
				dialog.ShowError(errors.Wrap(err, "sampling stopped"), v.window)
			})
		}
		v.done <- err
	}()
}

func (v *viewState) stop() {
	if v.cancel != nil {
		v.cancel()
	}
}

// createToolbar creates the settings button and, on the simulated board, the
// temperature slider and the occupancy button.
func createToolbar(v *viewState) fyne.CanvasObject {
	settingsBtn := widget.NewButtonWithIcon("", theme.SettingsIcon(), func() {
		showSettingsDialog(v)
	})
	left := container.NewHBox(settingsBtn)

	if v.rig.board == nil {
		return container.NewBorder(nil, nil, left, nil, nil)
	}

	tempLabel := widget.NewLabel("")
	setLabel := func(c float64) {
		tempLabel.SetText(fmt.Sprintf("sim %.1f °C", c))
	}
	setLabel(v.rig.therm.Temperature())

	slider := widget.NewSlider(-10, 45)
	slider.Step = 0.5
	slider.SetValue(v.rig.therm.Temperature())
	slider.OnChanged = func(c float64) {
		v.rig.therm.SetTemperature(c)
		setLabel(c)
	}

	button := gpio.Line(cfg.Occupancy.Button)
	pressBtn := widget.NewButtonWithIcon("Occupancy", theme.AccountIcon(), func() {
		v.rig.board.Press(button, gpio.Low)
		time.AfterFunc(3*cfg.Occupancy.Debounce, func() {
			v.rig.board.Release(button)
		})
	})

	return container.NewBorder(
		nil,
		nil,
		left,
		container.NewHBox(pressBtn),
		container.NewBorder(nil, nil, tempLabel, nil, slider),
	)
}
