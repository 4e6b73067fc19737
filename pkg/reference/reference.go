// Package reference reads a trusted thermometer and derives the adjustment
// that makes thermistor readings agree with it.
package reference

import (
	"context"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/devices/v3/bmxx80"
	"periph.io/x/host/v3"

	"github.com/itohio/rcthermo/pkg/config"
	"github.com/itohio/rcthermo/pkg/thermistor"
)

// Thermometer returns a temperature in Celsius.
type Thermometer interface {
	Celsius(ctx context.Context) (float64, error)
}

// Fixed is a reference typed in by the operator.
type Fixed float64

// Celsius returns f.
func (f Fixed) Celsius(context.Context) (float64, error) {
	return float64(f), nil
}

// DefaultBME280Address is the address with SDO tied low.
const DefaultBME280Address = 0x76

// BME280 is a Bosch BME280/BMP280 on an I²C bus.
type BME280 struct {
	bus i2c.BusCloser
	dev *bmxx80.Dev
}

var _ Thermometer = (*BME280)(nil)

// OpenBME280 opens the sensor on bus (empty for the first bus found) at addr.
func OpenBME280(bus string, addr uint16) (*BME280, error) {
	if _, err := host.Init(); err != nil {
		return nil, errors.Wrap(err, "failed to initialise periph host")
	}
	b, err := i2creg.Open(bus)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open I2C bus %q", bus)
	}
	dev, err := bmxx80.NewI2C(b, addr, &bmxx80.DefaultOpts)
	if err != nil {
		b.Close()
		return nil, errors.Wrapf(err, "no BMx280 at 0x%02x", addr)
	}
	return &BME280{bus: b, dev: dev}, nil
}

// Celsius takes one forced measurement.
func (b *BME280) Celsius(ctx context.Context) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	var e physic.Env
	if err := b.dev.Sense(&e); err != nil {
		return 0, errors.Wrap(err, "BMx280 sense failed")
	}
	return float64(e.Temperature-physic.ZeroCelsius) / float64(physic.Celsius), nil
}

// Close halts the sensor and releases the bus.
func (b *BME280) Close() error {
	if err := b.dev.Halt(); err != nil {
		b.bus.Close()
		return err
	}
	return b.bus.Close()
}

// Sampler takes one thermistor sample.
type Sampler interface {
	Read(ctx context.Context) (thermistor.Sample, error)
}

// Result is the outcome of a calibration run.
type Result struct {
	Reading    float64 // mean thermistor temperature with the old adjustment
	Reference  float64 // mean reference temperature
	Adjustment float64 // new adjustment
	Samples    int
}

// Calibrate pairs n thermistor samples with n reference readings and returns
// the adjustment that maps the mean reading onto the mean reference. Samples
// that fail recoverably are retried up to n extra times.
func Calibrate(ctx context.Context, s Sampler, ref Thermometer, cal config.Calibration, n int) (Result, error) {
	if n < 1 {
		n = 1
	}

	var (
		readSum, refSum float64
		got, failed     int
	)
	for got < n {
		sample, err := s.Read(ctx)
		if err != nil {
			if !thermistor.Recoverable(err) || failed >= n {
				return Result{}, errors.Wrap(err, "thermistor sample failed")
			}
			failed++
			log.WithError(err).Warn("calibration sample skipped")
			continue
		}
		r, err := ref.Celsius(ctx)
		if err != nil {
			return Result{}, errors.Wrap(err, "reference reading failed")
		}
		readSum += sample.Temperature
		refSum += r
		got++
	}

	res := Result{
		Reading:   readSum / float64(n),
		Reference: refSum / float64(n),
		Samples:   n,
	}
	adj, err := thermistor.Calibrate(res.Reading, res.Reference, cal)
	if err != nil {
		return Result{}, err
	}
	res.Adjustment = adj
	return res, nil
}
