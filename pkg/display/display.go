// Package display renders temperatures on an LED bar graph and shows the
// occupancy state on a tri-color LED.
package display

import (
	"math"
	"sync"

	"github.com/pkg/errors"

	"github.com/itohio/rcthermo/pkg/config"
	"github.com/itohio/rcthermo/pkg/gpio"
)

// Color is a state of the tri-color status LED.
type Color int

const (
	Off Color = iota
	Red
	Green
	Blue
)

func (c Color) String() string {
	switch c {
	case Red:
		return "red"
	case Green:
		return "green"
	case Blue:
		return "blue"
	default:
		return "off"
	}
}

// Sink receives what the hardware shows. An on-screen panel implements it to
// mirror the LEDs.
type Sink interface {
	ShowBar(lit, total int, temperature float64)
	ShowStatus(c Color)
}

// LitCount returns how many of n LEDs represent t on the [low, high] scale.
// t is clamped to the scale before rounding.
func LitCount(t, low, high float64, n int) int {
	if n <= 0 || high <= low || math.IsNaN(t) {
		return 0
	}
	if t < low {
		t = low
	}
	if t > high {
		t = high
	}
	return int(math.Round((t - low) / (high - low) * float64(n)))
}

// BarGraph drives a bank of LEDs, lowest temperature first.
type BarGraph struct {
	mu    sync.Mutex
	io    gpio.DigitalIO
	leds  []gpio.Line
	low   float64
	high  float64
	lit   int
	sinks []Sink
}

// NewBarGraph configures the LED lines as outputs and turns them off.
func NewBarGraph(io gpio.DigitalIO, cfg config.DisplayConfig) (*BarGraph, error) {
	leds := make([]gpio.Line, len(cfg.LEDs))
	for i, l := range cfg.LEDs {
		leds[i] = gpio.Line(l)
	}
	if err := gpio.AllOff(io, leds...); err != nil {
		return nil, errors.Wrap(err, "failed to initialise bar graph")
	}
	return &BarGraph{
		io:   io,
		leds: leds,
		low:  cfg.TempLow,
		high: cfg.TempHigh,
	}, nil
}

// AddSink registers a mirror of the bar graph.
func (b *BarGraph) AddSink(s Sink) {
	b.mu.Lock()
	b.sinks = append(b.sinks, s)
	b.mu.Unlock()
}

// Show lights the LEDs for t.
func (b *BarGraph) Show(t float64) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	n := LitCount(t, b.low, b.high, len(b.leds))
	for i, l := range b.leds {
		if err := b.io.Write(l, gpio.Level(i < n)); err != nil {
			return errors.Wrapf(err, "failed to drive bar LED %d", i)
		}
	}
	b.lit = n

	for _, s := range b.sinks {
		s.ShowBar(n, len(b.leds), t)
	}
	return nil
}

// Lit returns how many LEDs the last Show lit.
func (b *BarGraph) Lit() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.lit
}

// Clear turns all LEDs off.
func (b *BarGraph) Clear() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.lit = 0
	return gpio.AllOff(b.io, b.leds...)
}

// StatusLED drives a common-cathode RGB LED with one line per channel.
type StatusLED struct {
	mu      sync.Mutex
	io      gpio.DigitalIO
	r, g, b gpio.Line
	color   Color
	sinks   []Sink
}

// NewStatusLED configures the channels as outputs and turns them off.
func NewStatusLED(io gpio.DigitalIO, cfg config.DisplayConfig) (*StatusLED, error) {
	s := &StatusLED{
		io: io,
		r:  gpio.Line(cfg.Red),
		g:  gpio.Line(cfg.Green),
		b:  gpio.Line(cfg.Blue),
	}
	if err := gpio.AllOff(io, s.r, s.g, s.b); err != nil {
		return nil, errors.Wrap(err, "failed to initialise status LED")
	}
	return s, nil
}

// AddSink registers a mirror of the status LED.
func (s *StatusLED) AddSink(sink Sink) {
	s.mu.Lock()
	s.sinks = append(s.sinks, sink)
	s.mu.Unlock()
}

// Set shows c. Exactly one channel is on for Red, Green and Blue.
func (s *StatusLED) Set(c Color) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	levels := [3]gpio.Level{c == Red, c == Green, c == Blue}
	for i, l := range []gpio.Line{s.r, s.g, s.b} {
		if err := s.io.Write(l, levels[i]); err != nil {
			return errors.Wrapf(err, "failed to drive status LED %s", l)
		}
	}
	s.color = c

	for _, sink := range s.sinks {
		sink.ShowStatus(c)
	}
	return nil
}

// Color returns the color last set.
func (s *StatusLED) Color() Color {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.color
}
