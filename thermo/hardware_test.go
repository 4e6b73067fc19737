package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/itohio/rcthermo/pkg/config"
	"github.com/itohio/rcthermo/pkg/gpio"
	"github.com/itohio/rcthermo/pkg/thermistor"
)

func simConfig(t *testing.T) *config.Config {
	t.Helper()
	c := config.Default()
	c.Hardware.Backend = gpio.BackendSim
	c.Hardware.LockFile = filepath.Join(t.TempDir(), "rcthermo.lock")
	c.Estimator.Trials = 2
	c.Estimator.DischargeDelay = time.Millisecond
	c.Sim.Jitter = 0
	c.Sim.TemperatureC = 20
	c.Record.Path = filepath.Join(t.TempDir(), "record.csv")
	c.Loop.SampleInterval = 20 * time.Millisecond
	return c
}

func TestOpenRig_Sim(t *testing.T) {
	c := simConfig(t)
	r, err := openRig(c)
	require.NoError(t, err)
	defer r.Close()

	require.NotNil(t, r.board)
	s, err := r.reader.Read(context.Background())
	require.NoError(t, err)
	assert.InDelta(t, 20*c.Calibration.Adjustment, s.Temperature, 1.0)
}

func TestOpenRig_UnknownTimer(t *testing.T) {
	c := simConfig(t)
	c.Hardware.Timer = "spi"
	_, err := openRig(c)
	assert.Error(t, err)
}

func TestSession_RunClearsLEDs(t *testing.T) {
	c := simConfig(t)
	c.Occupancy.Enabled = true

	r, err := openRig(c)
	require.NoError(t, err)
	defer r.Close()

	s, err := newSession(c, r)
	require.NoError(t, err)

	samples := make(chan thermistor.Sample, 100)
	s.loop.OnSample(func(smp thermistor.Sample) { samples <- smp })

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.run(ctx) }()

	select {
	case <-samples:
	case <-time.After(5 * time.Second):
		t.Fatal("no sample from the simulated board")
	}
	assert.Equal(t, gpio.High, r.board.Level(gpio.Line(c.Display.Green)), "occupied shows green")

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("session did not stop")
	}

	for _, l := range c.Display.LEDs {
		assert.Equal(t, gpio.Low, r.board.Level(gpio.Line(l)))
	}
	assert.Equal(t, gpio.Low, r.board.Level(gpio.Line(c.Display.Green)))
}

func TestLock(t *testing.T) {
	path := filepath.Join(t.TempDir(), "thermo.lock")
	unlock, err := lock(path)
	require.NoError(t, err)

	_, err = os.Stat(path)
	require.NoError(t, err)

	unlock()
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}
