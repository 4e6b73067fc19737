package thermistor

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/itohio/rcthermo/pkg/config"
	"github.com/itohio/rcthermo/pkg/gpio"
)

// Clock abstracts time so tests can replay exact charge times.
type Clock interface {
	Now() time.Time
	Sleep(ctx context.Context, d time.Duration) error
}

type wallClock struct{}

// WallClock returns the system clock.
func WallClock() Clock { return wallClock{} }

func (wallClock) Now() time.Time { return time.Now() }

func (wallClock) Sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Option configures the pipeline.
type Option func(*options)

type options struct {
	clock Clock
}

// WithClock replaces the wall clock.
func WithClock(c Clock) Option {
	return func(o *options) {
		if c != nil {
			o.clock = c
		}
	}
}

func buildOptions(opts []Option) options {
	o := options{clock: wallClock{}}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// ChargeTimer performs a single discharge/charge trial and returns how long
// the capacitor took to reach the logic threshold.
type ChargeTimer interface {
	ChargeTime(ctx context.Context) (time.Duration, error)
}

// RCTimer times the charge of the coupling capacitor through the thermistor
// using two digital lines. LineA feeds the thermistor; LineB sits on the
// capacitor, discharging it as a low output and sensing it as an input.
type RCTimer struct {
	io      gpio.DigitalIO
	lineA   gpio.Line
	lineB   gpio.Line
	delay   time.Duration
	timeout time.Duration
	clock   Clock
}

var _ ChargeTimer = (*RCTimer)(nil)

// NewRCTimer creates a timer on the lines named in cfg.
func NewRCTimer(io gpio.DigitalIO, cfg config.EstimatorConfig, opts ...Option) *RCTimer {
	o := buildOptions(opts)
	return &RCTimer{
		io:      io,
		lineA:   gpio.Line(cfg.LineA),
		lineB:   gpio.Line(cfg.LineB),
		delay:   cfg.DischargeDelay,
		timeout: cfg.ChargeTimeout,
		clock:   o.clock,
	}
}

// ChargeTime runs one trial. It leaves LineA driven high and LineB as an
// input. The busy-poll is bounded by the charge timeout and ctx.
func (t *RCTimer) ChargeTime(ctx context.Context) (time.Duration, error) {
	// Discharge through LineB while LineA floats.
	if err := t.io.SetDirection(t.lineA, gpio.Input); err != nil {
		return 0, hardwareFault(err, "set %s to input", t.lineA)
	}
	if err := t.io.SetDirection(t.lineB, gpio.Output); err != nil {
		return 0, hardwareFault(err, "set %s to output", t.lineB)
	}
	if err := t.io.Write(t.lineB, gpio.Low); err != nil {
		return 0, hardwareFault(err, "drive %s low", t.lineB)
	}
	if err := t.clock.Sleep(ctx, t.delay); err != nil {
		return 0, err
	}

	// Charge through the thermistor.
	if err := t.io.SetDirection(t.lineB, gpio.Input); err != nil {
		return 0, hardwareFault(err, "set %s to input", t.lineB)
	}
	if err := t.io.SetDirection(t.lineA, gpio.Output); err != nil {
		return 0, hardwareFault(err, "set %s to output", t.lineA)
	}
	if err := t.io.Write(t.lineA, gpio.High); err != nil {
		return 0, hardwareFault(err, "drive %s high", t.lineA)
	}

	start := t.clock.Now()
	for {
		lvl, err := t.io.Read(t.lineB)
		if err != nil {
			return 0, hardwareFault(err, "read %s", t.lineB)
		}
		elapsed := t.clock.Now().Sub(start)
		if lvl == gpio.High {
			return elapsed, nil
		}
		if elapsed > t.timeout {
			return 0, errors.Wrapf(ErrSensorTimeout, "%s did not read high within %v", t.lineB, t.timeout)
		}
		if err := ctx.Err(); err != nil {
			return 0, err
		}
	}
}

// Estimator averages charge times over many trials to suppress timing jitter
// and converts the mean to a resistance. Calls are serialised because the
// lines are reconfigured on every trial.
type Estimator struct {
	mu     sync.Mutex
	timer  ChargeTimer
	trials int
	cal    config.Calibration
}

// NewEstimator creates an estimator. trials below one are treated as one.
func NewEstimator(timer ChargeTimer, trials int, cal config.Calibration) *Estimator {
	if trials < 1 {
		trials = 1
	}
	return &Estimator{
		timer:  timer,
		trials: trials,
		cal:    cal,
	}
}

// MeanChargeTime returns the mean charge time in microseconds. The first
// failing trial aborts the estimate.
func (e *Estimator) MeanChargeTime(ctx context.Context) (float64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	var total float64
	for i := 0; i < e.trials; i++ {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		d, err := e.timer.ChargeTime(ctx)
		if err != nil {
			return 0, errors.WithMessagef(err, "trial %d/%d", i+1, e.trials)
		}
		total += float64(d) / float64(time.Microsecond)
	}
	return total / float64(e.trials), nil
}

// Resistance returns the estimated thermistor resistance in ohms.
func (e *Estimator) Resistance(ctx context.Context) (float64, error) {
	mean, err := e.MeanChargeTime(ctx)
	if err != nil {
		return 0, err
	}
	return Fit(mean, e.cal), nil
}

// Trials returns the number of trials averaged per estimate.
func (e *Estimator) Trials() int {
	return e.trials
}
