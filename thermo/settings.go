package main

import (
	"fmt"
	"strconv"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/widget"
	"github.com/pkg/errors"

	"github.com/itohio/rcthermo/pkg/config"
)

// showSettingsDialog displays the editable configuration. Changes are saved to
// the config file and take effect on the next start.
func showSettingsDialog(v *viewState) {
	tabs := container.NewAppTabs(
		createCalibrationTab(v),
		createEstimatorTab(v),
		createDisplayTab(v),
	)

	content := container.NewBorder(nil, widget.NewLabel("Saved values apply on the next start."), nil, nil, tabs)
	d := dialog.NewCustom("Settings", "Close", content, v.window)
	d.Resize(fyne.NewSize(520, 420))
	d.Show()
}

func floatEntry(v float64) *widget.Entry {
	e := widget.NewEntry()
	e.SetText(strconv.FormatFloat(v, 'f', -1, 64))
	return e
}

func parseInto(dst *float64, e *widget.Entry) {
	if f, err := strconv.ParseFloat(e.Text, 64); err == nil {
		*dst = f
	}
}

func save(v *viewState, edit func(*config.Config)) {
	if err := updateConfig(configPath, edit); err != nil {
		dialog.ShowError(errors.Wrap(err, "failed to save config"), v.window)
	}
}

// createCalibrationTab creates the conversion constants tab.
func createCalibrationTab(v *viewState) *container.TabItem {
	adj := floatEntry(cfg.Calibration.Adjustment)
	beta := floatEntry(cfg.Calibration.Beta)
	r0 := floatEntry(cfg.Calibration.ReferenceResistance)
	slope := floatEntry(cfg.Calibration.FitSlope)
	intercept := floatEntry(cfg.Calibration.FitIntercept)

	form := &widget.Form{
		Items: []*widget.FormItem{
			{Text: "Adjustment", Widget: adj},
			{Text: "Beta (K)", Widget: beta},
			{Text: "R0 at 25 °C (Ω)", Widget: r0},
			{Text: "Fit slope (Ω/µs)", Widget: slope},
			{Text: "Fit intercept (Ω)", Widget: intercept},
		},
		OnSubmit: func() {
			save(v, func(c *config.Config) {
				parseInto(&c.Calibration.Adjustment, adj)
				parseInto(&c.Calibration.Beta, beta)
				parseInto(&c.Calibration.ReferenceResistance, r0)
				parseInto(&c.Calibration.FitSlope, slope)
				parseInto(&c.Calibration.FitIntercept, intercept)
			})
		},
	}

	return container.NewTabItem("Calibration", form)
}

// createEstimatorTab creates the charge timing tab.
func createEstimatorTab(v *viewState) *container.TabItem {
	trials := widget.NewEntry()
	trials.SetText(strconv.Itoa(cfg.Estimator.Trials))

	delay := widget.NewEntry()
	delay.SetText(cfg.Estimator.DischargeDelay.String())

	timeout := widget.NewEntry()
	timeout.SetText(cfg.Estimator.ChargeTimeout.String())

	form := &widget.Form{
		Items: []*widget.FormItem{
			{Text: "Trials", Widget: trials},
			{Text: "Discharge delay", Widget: delay},
			{Text: "Charge timeout", Widget: timeout},
		},
		OnSubmit: func() {
			save(v, func(c *config.Config) {
				if n, err := strconv.Atoi(trials.Text); err == nil {
					c.Estimator.Trials = n
				}
				if d, err := time.ParseDuration(delay.Text); err == nil {
					c.Estimator.DischargeDelay = d
				}
				if d, err := time.ParseDuration(timeout.Text); err == nil {
					c.Estimator.ChargeTimeout = d
				}
			})
		},
	}

	return container.NewTabItem("Estimator", form)
}

// createDisplayTab creates the bar graph range tab.
func createDisplayTab(v *viewState) *container.TabItem {
	low := floatEntry(cfg.Display.TempLow)
	high := floatEntry(cfg.Display.TempHigh)

	form := &widget.Form{
		Items: []*widget.FormItem{
			{Text: "Lowest (°C)", Widget: low},
			{Text: "Highest (°C)", Widget: high},
			{Text: "LEDs", Widget: widget.NewLabel(fmt.Sprint(cfg.Display.LEDs))},
		},
		OnSubmit: func() {
			save(v, func(c *config.Config) {
				parseInto(&c.Display.TempLow, low)
				parseInto(&c.Display.TempHigh, high)
			})
		},
	}

	return container.NewTabItem("Display", form)
}
