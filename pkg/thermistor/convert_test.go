package thermistor

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/itohio/rcthermo/pkg/config"
)

func referenceCalibration() config.Calibration {
	return config.Calibration{
		Adjustment:          0.70,
		Beta:                3000.0,
		ReferenceResistance: 100000.0,
		FitSlope:            6.05,
		FitIntercept:        -939,
	}
}

func TestConvert_ReferencePoint(t *testing.T) {
	got, err := Convert(100000.0, referenceCalibration())
	require.NoError(t, err)
	assert.InDelta(t, 17.5, got, 1e-6)
}

func TestConvert_UnitAdjustmentIsCelsius(t *testing.T) {
	cal := referenceCalibration()
	cal.Adjustment = 1.0

	got, err := Convert(cal.ReferenceResistance, cal)
	require.NoError(t, err)
	assert.InDelta(t, 25.0, got, 1e-9)
}

func TestConvert_Deterministic(t *testing.T) {
	cal := referenceCalibration()
	first, err := Convert(54321.0, cal)
	require.NoError(t, err)

	for i := 0; i < 100; i++ {
		got, err := Convert(54321.0, cal)
		require.NoError(t, err)
		assert.Equal(t, first, got)
	}
}

func TestConvert_StrictlyDecreasingInResistance(t *testing.T) {
	cal := referenceCalibration()

	prev := math.Inf(1)
	for r := 1000.0; r <= 1e6; r *= 1.25 {
		got, err := Convert(r, cal)
		require.NoError(t, err)
		assert.Less(t, got, prev, "resistance %v", r)
		prev = got
	}
}

func TestConvert_DomainGuard(t *testing.T) {
	tests := []struct {
		name       string
		resistance float64
	}{
		{name: "zero", resistance: 0},
		{name: "negative", resistance: -1},
		{name: "large negative", resistance: -1e9},
		{name: "nan", resistance: math.NaN()},
		{name: "infinite", resistance: math.Inf(1)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Convert(tt.resistance, referenceCalibration())
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidMeasurement))
			assert.True(t, Recoverable(err))
			assert.Zero(t, got)
		})
	}
}

func TestConvert_NonPhysicalResult(t *testing.T) {
	// ln(R/R0) = -2B/T25 puts 1/T below zero.
	cal := referenceCalibration()
	r := cal.ReferenceResistance * math.Exp(-2*cal.Beta/T25)

	_, err := Convert(r, cal)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidMeasurement))
}

func TestFit(t *testing.T) {
	cal := referenceCalibration()
	assert.Equal(t, 271.0, Fit(200.0, cal))
	assert.Equal(t, -939.0, Fit(0, cal))
}

func TestCalibrate(t *testing.T) {
	cal := referenceCalibration()

	// Raw 25 °C read as 17.5 against a 20 °C reference.
	adj, err := Calibrate(17.5, 20.0, cal)
	require.NoError(t, err)
	assert.InDelta(t, 0.8, adj, 1e-12)

	cal.Adjustment = adj
	got, err := Convert(cal.ReferenceResistance, cal)
	require.NoError(t, err)
	assert.InDelta(t, 20.0, got, 1e-9)

	_, err = Calibrate(0, 20.0, cal)
	assert.True(t, errors.Is(err, ErrInvalidMeasurement))

	_, err = Calibrate(17.5, -3, cal)
	assert.Error(t, err)
}
