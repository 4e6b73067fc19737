package thermistor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/itohio/rcthermo/pkg/config"
	"github.com/itohio/rcthermo/pkg/gpio/sim"
)

func TestReader_SimulatedThermistor(t *testing.T) {
	cfg := config.Default()
	clock := sim.NewManualClock(time.Unix(1700000000, 0))

	for _, tempC := range []float64{5, 18, 25, 31} {
		therm := sim.NewThermistor(cfg.Calibration, tempC, 0, 1)
		board := sim.NewBoard(clock, &sim.RC{
			LineA:  23,
			LineB:  22,
			Charge: therm.Source(),
		})

		r := New(board, cfg, WithClock(clock))
		s, err := r.Read(context.Background())
		require.NoError(t, err)

		// Charge times are truncated to whole nanoseconds.
		assert.InDelta(t, therm.Resistance(), s.Resistance, 0.01, "temp %v", tempC)
		assert.InDelta(t, tempC*cfg.Calibration.Adjustment, s.Temperature, 1e-3, "temp %v", tempC)
		assert.Equal(t, clock.Now(), s.Timestamp)
		assert.Greater(t, s.ChargeTime, time.Duration(0))
	}
}

func TestReader_NonPositiveResistance(t *testing.T) {
	cfg := config.Default()
	clock := sim.NewManualClock(time.Unix(0, 0))

	// 100 µs * 6.05 - 939 < 0
	board := sim.NewBoard(clock, &sim.RC{LineA: 23, LineB: 22, Charge: sim.Fixed(100 * time.Microsecond)})

	r := New(board, cfg, WithClock(clock))
	_, err := r.Read(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidMeasurement))
	assert.True(t, Recoverable(err))
}

func TestReader_PropagatesTimeout(t *testing.T) {
	cfg := config.Default()
	clock := sim.NewManualClock(time.Unix(0, 0))
	board := sim.NewBoard(clock, &sim.RC{LineA: 23, LineB: 22, Charge: sim.Stuck()})

	r := New(board, cfg, WithClock(clock))
	_, err := r.Read(context.Background())
	assert.True(t, errors.Is(err, ErrSensorTimeout))
}
