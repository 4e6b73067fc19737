package gpio_test

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/itohio/rcthermo/pkg/gpio"
	"github.com/itohio/rcthermo/pkg/gpio/sim"
)

func TestAllOff(t *testing.T) {
	board := sim.NewBoard(nil, nil)
	require.NoError(t, board.Write(5, gpio.High))

	require.NoError(t, gpio.AllOff(board, 5, 6, 13))
	for _, l := range []gpio.Line{5, 6, 13} {
		assert.Equal(t, gpio.Output, board.Direction(l))
		assert.Equal(t, gpio.Low, board.Level(l))
	}

	board.Fail(6, errors.New("busy"))
	assert.Error(t, gpio.AllOff(board, 5, 6))
}

func TestOpen_UnknownBackend(t *testing.T) {
	_, err := gpio.Open("wiringpi", "")
	assert.ErrorIs(t, err, gpio.ErrUnknownBackend)
}

func TestSynchronized(t *testing.T) {
	board := sim.NewBoard(nil, nil)
	io := gpio.Synchronized(board)
	assert.Same(t, io, gpio.Synchronized(io), "wrapping twice is a no-op")

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(l gpio.Line) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				_ = io.SetDirection(l, gpio.Output)
				_ = io.Write(l, gpio.Level(j%2 == 0))
				_, _ = io.Read(l)
			}
		}(gpio.Line(i))
	}
	wg.Wait()

	for i := 0; i < 8; i++ {
		assert.Equal(t, gpio.Low, board.Level(gpio.Line(i)))
	}
}

func TestStrings(t *testing.T) {
	assert.Equal(t, "GPIO22", gpio.Line(22).String())
	assert.Equal(t, "in-pullup", gpio.InputPullUp.String())
	assert.Equal(t, "high", gpio.High.String())
}
