// Package panel is an on-screen mirror of the LED bar graph and status LED
// with a temperature history plot.
package panel

import (
	"image/color"
	"sync"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/widget"

	"github.com/itohio/rcthermo/pkg/config"
	"github.com/itohio/rcthermo/pkg/display"
	"github.com/itohio/rcthermo/pkg/thermistor"
)

const maxDisplayPoints = 500

// Panel is a custom Fyne widget. It implements display.Sink so it can be
// attached to the hardware drivers.
type Panel struct {
	widget.BaseWidget

	cfg     config.DisplayConfig
	history *History

	mu       sync.RWMutex
	lit      int
	total    int
	status   display.Color
	last     thermistor.Sample
	haveLast bool
	points   []thermistor.Sample
}

var _ display.Sink = (*Panel)(nil)

// New creates a panel keeping window of history.
func New(cfg config.DisplayConfig, window time.Duration) *Panel {
	p := &Panel{
		cfg:     cfg,
		history: NewHistory(window),
		total:   len(cfg.LEDs),
		points:  make([]thermistor.Sample, 0, maxDisplayPoints),
	}
	p.ExtendBaseWidget(p)
	return p
}

// ShowBar mirrors the bar graph.
func (p *Panel) ShowBar(lit, total int, _ float64) {
	p.mu.Lock()
	p.lit, p.total = lit, total
	p.mu.Unlock()
	p.refresh()
}

// ShowStatus mirrors the status LED.
func (p *Panel) ShowStatus(c display.Color) {
	p.mu.Lock()
	p.status = c
	p.mu.Unlock()
	p.refresh()
}

// AddSample appends s to the history plot.
func (p *Panel) AddSample(s thermistor.Sample) {
	p.history.Add(s)

	p.mu.Lock()
	p.last, p.haveLast = s, true
	p.points = Downsample(p.points, p.history.Samples(), maxDisplayPoints)
	p.mu.Unlock()
	p.refresh()
}

// refresh may be called from any goroutine.
func (p *Panel) refresh() {
	fyne.Do(p.Refresh)
}

// CreateRenderer creates the widget renderer.
func (p *Panel) CreateRenderer() fyne.WidgetRenderer {
	bg := canvas.NewRectangle(color.RGBA{R: 20, G: 20, B: 20, A: 255})
	return &panelRenderer{
		panel:   p,
		bg:      bg,
		objects: []fyne.CanvasObject{bg},
	}
}
