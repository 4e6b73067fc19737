package display

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/itohio/rcthermo/pkg/config"
	"github.com/itohio/rcthermo/pkg/gpio"
	"github.com/itohio/rcthermo/pkg/gpio/sim"
)

func TestLitCount(t *testing.T) {
	tests := []struct {
		name string
		t    float64
		want int
	}{
		{name: "below scale", t: 10, want: 0},
		{name: "at low", t: 15, want: 0},
		{name: "one step", t: 16, want: 1},
		{name: "rounds half up", t: 15.5, want: 1},
		{name: "rounds down", t: 15.4, want: 0},
		{name: "middle", t: 19, want: 4},
		{name: "at high", t: 23, want: 8},
		{name: "above scale", t: 40, want: 8},
		{name: "nan", t: math.NaN(), want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, LitCount(tt.t, 15, 23, 8))
		})
	}

	assert.Equal(t, 0, LitCount(20, 23, 15, 8), "inverted scale")
	assert.Equal(t, 0, LitCount(20, 15, 23, 0), "no LEDs")
}

type recordingSink struct {
	lit, total int
	temp       float64
	color      Color
}

func (r *recordingSink) ShowBar(lit, total int, t float64) {
	r.lit, r.total, r.temp = lit, total, t
}

func (r *recordingSink) ShowStatus(c Color) { r.color = c }

func TestBarGraph_Show(t *testing.T) {
	cfg := config.Default().Display
	board := sim.NewBoard(nil, nil)

	bar, err := NewBarGraph(board, cfg)
	require.NoError(t, err)
	sink := &recordingSink{}
	bar.AddSink(sink)

	require.NoError(t, bar.Show(20))
	assert.Equal(t, 5, bar.Lit())
	for i, l := range cfg.LEDs {
		assert.Equal(t, gpio.Level(i < 5), board.Level(gpio.Line(l)), "led %d", i)
	}
	assert.Equal(t, 5, sink.lit)
	assert.Equal(t, 8, sink.total)
	assert.Equal(t, 20.0, sink.temp)

	require.NoError(t, bar.Show(16))
	for i, l := range cfg.LEDs {
		assert.Equal(t, gpio.Level(i < 1), board.Level(gpio.Line(l)), "led %d", i)
	}

	require.NoError(t, bar.Clear())
	for _, l := range cfg.LEDs {
		assert.Equal(t, gpio.Low, board.Level(gpio.Line(l)))
	}
}

func TestBarGraph_InitFailure(t *testing.T) {
	cfg := config.Default().Display
	board := sim.NewBoard(nil, nil)
	board.Fail(gpio.Line(cfg.LEDs[3]), errors.New("busy"))

	_, err := NewBarGraph(board, cfg)
	assert.Error(t, err)
}

func TestStatusLED_Set(t *testing.T) {
	cfg := config.Default().Display
	board := sim.NewBoard(nil, nil)

	led, err := NewStatusLED(board, cfg)
	require.NoError(t, err)
	sink := &recordingSink{}
	led.AddSink(sink)

	tests := []struct {
		color   Color
		r, g, b gpio.Level
	}{
		{Red, gpio.High, gpio.Low, gpio.Low},
		{Green, gpio.Low, gpio.High, gpio.Low},
		{Blue, gpio.Low, gpio.Low, gpio.High},
		{Off, gpio.Low, gpio.Low, gpio.Low},
	}

	for _, tt := range tests {
		t.Run(tt.color.String(), func(t *testing.T) {
			require.NoError(t, led.Set(tt.color))
			assert.Equal(t, tt.r, board.Level(gpio.Line(cfg.Red)))
			assert.Equal(t, tt.g, board.Level(gpio.Line(cfg.Green)))
			assert.Equal(t, tt.b, board.Level(gpio.Line(cfg.Blue)))
			assert.Equal(t, tt.color, led.Color())
			assert.Equal(t, tt.color, sink.color)
		})
	}
}
