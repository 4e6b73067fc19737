package thermistor

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/itohio/rcthermo/pkg/config"
	"github.com/itohio/rcthermo/pkg/gpio"
)

// Sample is one pipeline result. It is created per Read and carries no
// identity beyond its values.
type Sample struct {
	Timestamp   time.Time
	ChargeTime  time.Duration // mean over all trials
	Resistance  float64       // ohm
	Temperature float64       // calibrated Celsius
}

// Reader chains the Estimator and Convert.
type Reader struct {
	est   *Estimator
	cal   config.Calibration
	clock Clock
}

// NewReader creates a reader over an estimator.
func NewReader(est *Estimator, cal config.Calibration, opts ...Option) *Reader {
	o := buildOptions(opts)
	return &Reader{est: est, cal: cal, clock: o.clock}
}

// New wires the default pipeline: an RCTimer on io, averaged and converted with
// the configured calibration.
func New(io gpio.DigitalIO, cfg *config.Config, opts ...Option) *Reader {
	timer := NewRCTimer(io, cfg.Estimator, opts...)
	return NewWithTimer(timer, cfg, opts...)
}

// NewWithTimer wires the pipeline over any charge timer, such as the serial
// bridge.
func NewWithTimer(timer ChargeTimer, cfg *config.Config, opts ...Option) *Reader {
	est := NewEstimator(timer, cfg.Estimator.Trials, cfg.Calibration)
	return NewReader(est, cfg.Calibration, opts...)
}

// Read takes one sample.
func (r *Reader) Read(ctx context.Context) (Sample, error) {
	mean, err := r.est.MeanChargeTime(ctx)
	if err != nil {
		return Sample{}, err
	}

	res := Fit(mean, r.cal)
	t, err := Convert(res, r.cal)
	if err != nil {
		return Sample{}, err
	}

	s := Sample{
		Timestamp:   r.clock.Now(),
		ChargeTime:  time.Duration(mean * float64(time.Microsecond)),
		Resistance:  res,
		Temperature: t,
	}
	log.WithFields(log.Fields{
		"charge_us":  mean,
		"resistance": res,
		"temp_c":     t,
	}).Debug("thermistor sample")
	return s, nil
}
