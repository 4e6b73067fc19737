package panel

import (
	"fmt"
	"image/color"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"

	"github.com/itohio/rcthermo/pkg/display"
	"github.com/itohio/rcthermo/pkg/thermistor"
)

var (
	ledOn     = color.RGBA{R: 255, G: 165, B: 0, A: 255}
	ledOff    = color.RGBA{R: 60, G: 45, B: 20, A: 255}
	gridColor = color.RGBA{R: 40, G: 40, B: 40, A: 255}
	textColor = color.RGBA{R: 150, G: 150, B: 150, A: 255}
	plotColor = color.RGBA{R: 100, G: 200, B: 255, A: 255}
)

type panelRenderer struct {
	panel   *Panel
	bg      *canvas.Rectangle
	objects []fyne.CanvasObject
}

func (r *panelRenderer) MinSize() fyne.Size {
	return fyne.NewSize(480, 320)
}

func (r *panelRenderer) Layout(size fyne.Size) {
	r.bg.Resize(size)
}

func (r *panelRenderer) Refresh() {
	p := r.panel
	p.mu.RLock()
	lit, total := p.lit, p.total
	status := p.status
	last, haveLast := p.last, p.haveLast
	samples := append([]thermistor.Sample(nil), p.points...)
	p.mu.RUnlock()

	size := p.Size()
	if size.Width == 0 || size.Height == 0 {
		return
	}

	r.objects = []fyne.CanvasObject{r.bg}

	const (
		margin = float32(20)
		ledH   = float32(24)
	)

	// LED bar along the top, status LED on the right.
	ledW := (size.Width - 3*margin - ledH) / float32(max(total, 1))
	for i := 0; i < total; i++ {
		c := ledOff
		if i < lit {
			c = ledOn
		}
		led := canvas.NewRectangle(c)
		led.CornerRadius = 4
		led.Move(fyne.NewPos(margin+float32(i)*ledW+2, margin))
		led.Resize(fyne.NewSize(ledW-4, ledH))
		r.objects = append(r.objects, led)
	}

	dot := canvas.NewCircle(statusColor(status))
	dot.Move(fyne.NewPos(size.Width-margin-ledH, margin))
	dot.Resize(fyne.NewSize(ledH, ledH))
	r.objects = append(r.objects, dot)

	label := "no reading"
	if haveLast {
		label = fmt.Sprintf("%.2f °C  %.0f Ω  %s", last.Temperature, last.Resistance, last.Timestamp.Format("15:04:05"))
	}
	text := canvas.NewText(label, color.White)
	text.TextSize = 16
	text.Move(fyne.NewPos(margin, margin+ledH+8))
	r.objects = append(r.objects, text)

	plotY := margin + ledH + 40
	r.drawPlot(margin+40, plotY, size.Width-2*margin-40, size.Height-plotY-margin, samples)
}

func (r *panelRenderer) drawPlot(x, y, w, h float32, samples []thermistor.Sample) {
	if w <= 0 || h <= 0 {
		return
	}
	lo, hi := bounds(samples, 2)

	const hLines = 4
	for i := 0; i <= hLines; i++ {
		ly := y + float32(i)*h/hLines
		line := canvas.NewLine(gridColor)
		line.Position1 = fyne.NewPos(x, ly)
		line.Position2 = fyne.NewPos(x+w, ly)
		r.objects = append(r.objects, line)

		v := hi - float64(i)*(hi-lo)/hLines
		t := canvas.NewText(fmt.Sprintf("%.1f", v), textColor)
		t.TextSize = 10
		t.Alignment = fyne.TextAlignTrailing
		t.Move(fyne.NewPos(x-5, ly-6))
		r.objects = append(r.objects, t)
	}

	if len(samples) < 2 {
		return
	}
	t0 := samples[0].Timestamp
	span := samples[len(samples)-1].Timestamp.Sub(t0).Seconds()
	if span <= 0 {
		return
	}

	pos := func(s thermistor.Sample) fyne.Position {
		px := x + float32(s.Timestamp.Sub(t0).Seconds()/span)*w
		py := y + h - float32((s.Temperature-lo)/(hi-lo))*h
		return fyne.NewPos(px, py)
	}
	prev := pos(samples[0])
	for _, s := range samples[1:] {
		cur := pos(s)
		line := canvas.NewLine(plotColor)
		line.Position1, line.Position2 = prev, cur
		line.StrokeWidth = 2
		r.objects = append(r.objects, line)
		prev = cur
	}
}

func (r *panelRenderer) Objects() []fyne.CanvasObject {
	return r.objects
}

func (r *panelRenderer) Destroy() {}

func statusColor(c display.Color) color.Color {
	switch c {
	case display.Red:
		return color.RGBA{R: 220, G: 40, B: 40, A: 255}
	case display.Green:
		return color.RGBA{R: 40, G: 200, B: 60, A: 255}
	case display.Blue:
		return color.RGBA{R: 40, G: 80, B: 230, A: 255}
	default:
		return ledOff
	}
}
