package thermistor

import (
	"math"

	"github.com/pkg/errors"

	"github.com/itohio/rcthermo/pkg/config"
)

const (
	// ZeroCelsius is 0 °C in kelvin.
	ZeroCelsius = 273.15
	// T25 is the reference temperature of R0, 25 °C in kelvin.
	T25 = ZeroCelsius + 25.0
)

// Convert maps a thermistor resistance (ohm) to a calibrated temperature using
// the B-parameter form of the Steinhart-Hart equation:
//
//	1/T = 1/T25 + (1/B) * ln(R/R0)
//
// The adjustment is applied to the Celsius value, so the result is "calibrated
// Celsius", not Fahrenheit.
func Convert(resistance float64, cal config.Calibration) (float64, error) {
	if !(resistance > 0) || math.IsInf(resistance, 0) {
		return 0, errors.Wrapf(ErrInvalidMeasurement, "resistance %v ohm outside the logarithm domain", resistance)
	}

	invT := 1/T25 + (1/cal.Beta)*math.Log(resistance/cal.ReferenceResistance)
	if !(invT > 0) {
		return 0, errors.Wrapf(ErrInvalidMeasurement, "resistance %v ohm is below absolute zero for B=%v", resistance, cal.Beta)
	}
	celsius := 1/invT - ZeroCelsius
	t := celsius * cal.Adjustment

	if math.IsNaN(t) || math.IsInf(t, 0) {
		return 0, errors.Wrapf(ErrInvalidMeasurement, "resistance %v ohm converts to non-finite temperature", resistance)
	}
	return t, nil
}

// Fit maps a mean charge time in microseconds to a resistance with the
// circuit's linear fit.
func Fit(meanMicros float64, cal config.Calibration) float64 {
	return meanMicros*cal.FitSlope + cal.FitIntercept
}

// Calibrate returns the adjustment that makes a reading taken with cal agree
// with a reference thermometer.
func Calibrate(reading, reference float64, cal config.Calibration) (float64, error) {
	if cal.Adjustment <= 0 {
		return 0, errors.Errorf("current adjustment must be positive, got %v", cal.Adjustment)
	}
	raw := reading / cal.Adjustment
	if raw == 0 || math.IsNaN(raw) || math.IsInf(raw, 0) {
		return 0, errors.Wrapf(ErrInvalidMeasurement, "cannot calibrate against a raw reading of %v", raw)
	}
	adj := reference / raw
	if adj <= 0 {
		return 0, errors.Errorf("reference %v and raw reading %v have opposite signs", reference, raw)
	}
	return adj, nil
}
