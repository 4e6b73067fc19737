package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.NotNil(t, cfg)
	assert.Equal(t, "periph", cfg.Hardware.Backend)
	assert.Equal(t, 23, cfg.Estimator.LineA)
	assert.Equal(t, 22, cfg.Estimator.LineB)
	assert.Equal(t, 99, cfg.Estimator.Trials)
	assert.Equal(t, 10*time.Millisecond, cfg.Estimator.DischargeDelay)
	assert.Equal(t, 0.70, cfg.Calibration.Adjustment)
	assert.Equal(t, 3000.0, cfg.Calibration.Beta)
	assert.Equal(t, 100000.0, cfg.Calibration.ReferenceResistance)
	assert.Equal(t, 6.05, cfg.Calibration.FitSlope)
	assert.Equal(t, -939.0, cfg.Calibration.FitIntercept)
	assert.Equal(t, []int{5, 6, 13, 16, 19, 26, 20, 21}, cfg.Display.LEDs)
	assert.Equal(t, 15*time.Second, cfg.Loop.SampleInterval)
	assert.Equal(t, time.Hour, cfg.Weather.Refresh)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_FileNotExists(t *testing.T) {
	cfg, err := Load("nonexistent.yaml")
	require.NoError(t, err)
	assert.NotNil(t, cfg)
	assert.Equal(t, "periph", cfg.Hardware.Backend)
}

func TestLoad_ValidYAML(t *testing.T) {
	tmpfile, err := os.CreateTemp("", "test_config_*.yaml")
	require.NoError(t, err)
	defer os.Remove(tmpfile.Name())

	yamlContent := `
hardware:
  backend: sim

estimator:
  line_a: 24
  line_b: 25
  trials: 50
  discharge_delay: 5ms
  charge_timeout: 250ms

calibration:
  adjustment: 0.95
  beta: 3950
  reference_resistance: 10000
  fit_slope: 5.5
  fit_intercept: -800

display:
  leds: [1, 2, 3, 4]
  temp_low: 18
  temp_high: 23

occupancy:
  enabled: true
  initial: Unoccupied

loop:
  sample_interval: 1s
`

	_, err = tmpfile.WriteString(yamlContent)
	require.NoError(t, err)
	require.NoError(t, tmpfile.Close())

	cfg, err := Load(tmpfile.Name())
	require.NoError(t, err)
	assert.NotNil(t, cfg)

	assert.Equal(t, "sim", cfg.Hardware.Backend)
	assert.Equal(t, 24, cfg.Estimator.LineA)
	assert.Equal(t, 25, cfg.Estimator.LineB)
	assert.Equal(t, 50, cfg.Estimator.Trials)
	assert.Equal(t, 5*time.Millisecond, cfg.Estimator.DischargeDelay)
	assert.Equal(t, 250*time.Millisecond, cfg.Estimator.ChargeTimeout)
	assert.Equal(t, 0.95, cfg.Calibration.Adjustment)
	assert.Equal(t, 3950.0, cfg.Calibration.Beta)
	assert.Equal(t, 10000.0, cfg.Calibration.ReferenceResistance)
	assert.Equal(t, 5.5, cfg.Calibration.FitSlope)
	assert.Equal(t, -800.0, cfg.Calibration.FitIntercept)
	assert.Equal(t, []int{1, 2, 3, 4}, cfg.Display.LEDs)
	assert.Equal(t, 18.0, cfg.Display.TempLow)
	assert.True(t, cfg.Occupancy.Enabled)
	assert.Equal(t, "unoccupied", cfg.Occupancy.Initial)
	assert.Equal(t, time.Second, cfg.Loop.SampleInterval)
}

func TestLoad_ValidTOML(t *testing.T) {
	tmpfile, err := os.CreateTemp("", "test_config_*.toml")
	require.NoError(t, err)
	defer os.Remove(tmpfile.Name())

	tomlContent := `
[hardware]
backend = "gpiod"
chip = "gpiochip4"

[estimator]
trials = 20
discharge_delay = "20ms"

[calibration]
adjustment = 1.1
`

	_, err = tmpfile.WriteString(tomlContent)
	require.NoError(t, err)
	require.NoError(t, tmpfile.Close())

	cfg, err := Load(tmpfile.Name())
	require.NoError(t, err)

	assert.Equal(t, "gpiod", cfg.Hardware.Backend)
	assert.Equal(t, "gpiochip4", cfg.Hardware.Chip)
	assert.Equal(t, 20, cfg.Estimator.Trials)
	assert.Equal(t, 20*time.Millisecond, cfg.Estimator.DischargeDelay)
	assert.Equal(t, 1.1, cfg.Calibration.Adjustment)
	assert.Equal(t, 3000.0, cfg.Calibration.Beta) // default
}

func TestLoad_InvalidYAML(t *testing.T) {
	tmpfile, err := os.CreateTemp("", "test_config_*.yaml")
	require.NoError(t, err)
	defer os.Remove(tmpfile.Name())

	_, err = tmpfile.WriteString("invalid: yaml: content: [")
	require.NoError(t, err)
	require.NoError(t, tmpfile.Close())

	cfg, err := Load(tmpfile.Name())
	assert.Error(t, err)
	assert.Nil(t, cfg)
}

func TestLoad_PartialYAML(t *testing.T) {
	tmpfile, err := os.CreateTemp("", "test_config_*.yaml")
	require.NoError(t, err)
	defer os.Remove(tmpfile.Name())

	yamlContent := `
serial:
  port: "/dev/ttyUSB1"
`

	_, err = tmpfile.WriteString(yamlContent)
	require.NoError(t, err)
	require.NoError(t, tmpfile.Close())

	cfg, err := Load(tmpfile.Name())
	require.NoError(t, err)
	assert.NotNil(t, cfg)

	// Should use defaults for missing fields
	assert.Equal(t, "/dev/ttyUSB1", cfg.Serial.Port)
	assert.Equal(t, 99, cfg.Estimator.Trials)         // default
	assert.Equal(t, 0.70, cfg.Calibration.Adjustment) // default
}

func TestLoad_RejectsInvalidCalibration(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{name: "negative adjustment", content: "calibration:\n  adjustment: -1\n"},
		{name: "negative beta", content: "calibration:\n  beta: -3000\n"},
		{name: "negative reference", content: "calibration:\n  reference_resistance: -1\n"},
		{name: "negative trials", content: "estimator:\n  trials: -5\n"},
		{name: "same lines", content: "estimator:\n  line_a: 4\n  line_b: 4\n"},
		{name: "inverted display range", content: "display:\n  temp_low: 30\n  temp_high: 20\n"},
		{name: "bad occupancy state", content: "occupancy:\n  initial: maybe\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tmpfile, err := os.CreateTemp("", "test_config_*.yaml")
			require.NoError(t, err)
			defer os.Remove(tmpfile.Name())

			_, err = tmpfile.WriteString(tt.content)
			require.NoError(t, err)
			require.NoError(t, tmpfile.Close())

			cfg, err := Load(tmpfile.Name())
			assert.Error(t, err)
			assert.Nil(t, cfg)
		})
	}
}

func TestSave(t *testing.T) {
	for _, ext := range []string{"yaml", "toml"} {
		t.Run(ext, func(t *testing.T) {
			cfg := Default()
			cfg.Serial.Port = "/dev/ttyUSB0"
			cfg.Calibration.Adjustment = 0.82
			cfg.Estimator.DischargeDelay = 15 * time.Millisecond

			tmpfile, err := os.CreateTemp("", "test_save_*."+ext)
			require.NoError(t, err)
			require.NoError(t, tmpfile.Close())
			defer os.Remove(tmpfile.Name())

			err = cfg.Save(tmpfile.Name())
			require.NoError(t, err)

			// Load it back and verify
			loaded, err := Load(tmpfile.Name())
			require.NoError(t, err)
			assert.Equal(t, "/dev/ttyUSB0", loaded.Serial.Port)
			assert.Equal(t, 0.82, loaded.Calibration.Adjustment)
			assert.Equal(t, 15*time.Millisecond, loaded.Estimator.DischargeDelay)
		})
	}
}
