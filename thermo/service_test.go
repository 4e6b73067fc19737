package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/itohio/rcthermo/pkg/config"
)

func TestServiceWrapper_StartReportsSetupFailure(t *testing.T) {
	c := simConfig(t)
	c.Hardware.Timer = "spi"

	sw := &serviceWrapper{cfg: c}
	require.Error(t, sw.Start(nil))

	_, err := os.Stat(c.Hardware.LockFile)
	assert.True(t, os.IsNotExist(err), "lock is released after a failed start")
	assert.NoError(t, sw.Stop(nil))
}

func TestServiceWrapper_StartStop(t *testing.T) {
	exited := make(chan int, 1)
	exit = func(code int) { exited <- code }
	defer func() { exit = os.Exit }()

	c := simConfig(t)
	sw := &serviceWrapper{cfg: c}
	require.NoError(t, sw.Start(nil))

	_, err := os.Stat(c.Hardware.LockFile)
	require.NoError(t, err, "lock is held while running")

	assert.NoError(t, sw.Stop(nil))
	select {
	case code := <-exited:
		t.Fatalf("stopped service exited with %d", code)
	default:
	}

	_, err = os.Stat(c.Hardware.LockFile)
	assert.True(t, os.IsNotExist(err))
}

func TestSaveAdjustment_KeepsFileValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	onDisk := simConfig(t)
	onDisk.Hardware.Backend = "gpiod"
	onDisk.Log.Level = "info"
	require.NoError(t, onDisk.Save(path))

	// flag overrides live only in memory
	prev := cfg
	cfg = simConfig(t)
	cfg.Log.Level = "debug"
	defer func() { cfg = prev }()

	require.NoError(t, saveAdjustment(path, 1.042))

	saved, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, 1.042, saved.Calibration.Adjustment)
	assert.Equal(t, "gpiod", saved.Hardware.Backend)
	assert.Equal(t, "info", saved.Log.Level)
	assert.Equal(t, 1.042, cfg.Calibration.Adjustment, "in-memory config follows the saved value")
	assert.Equal(t, "sim", cfg.Hardware.Backend)
}
