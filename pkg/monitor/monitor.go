// Package monitor runs the sampling loop: read the thermistor, update the
// displays and log one aggregated row per minute.
package monitor

import (
	"context"
	stderrors "errors"
	"sync"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/itohio/rcthermo/pkg/config"
	"github.com/itohio/rcthermo/pkg/display"
	"github.com/itohio/rcthermo/pkg/occupancy"
	"github.com/itohio/rcthermo/pkg/record"
	"github.com/itohio/rcthermo/pkg/thermistor"
	"github.com/itohio/rcthermo/pkg/weather"
)

// Sampler takes one temperature sample.
type Sampler interface {
	Read(ctx context.Context) (thermistor.Sample, error)
}

// Bar shows a temperature.
type Bar interface {
	Show(t float64) error
}

// Status shows the occupancy color.
type Status interface {
	Set(c display.Color) error
}

// Occupancy reports the current room state.
type Occupancy interface {
	State() occupancy.State
}

// Weather returns the current outside conditions.
type Weather interface {
	Get(ctx context.Context) (weather.Snapshot, bool)
}

// Recorder persists a minute row.
type Recorder interface {
	Write(r record.Row) error
}

var (
	_ Sampler   = (*thermistor.Reader)(nil)
	_ Bar       = (*display.BarGraph)(nil)
	_ Status    = (*display.StatusLED)(nil)
	_ Occupancy = (*occupancy.Tracker)(nil)
	_ Weather   = (*weather.Cache)(nil)
	_ Recorder  = (*record.CSVWriter)(nil)
)

// Option configures a Loop.
type Option func(*Loop)

// WithDisplay shows every sample on bar and the occupancy on status. Either
// may be nil.
func WithDisplay(bar Bar, status Status) Option {
	return func(l *Loop) {
		l.bar, l.status = bar, status
	}
}

// WithOccupancy records the room state next to every sample.
func WithOccupancy(o Occupancy) Option {
	return func(l *Loop) { l.occupancy = o }
}

// WithWeather attaches outside conditions to every row.
func WithWeather(w Weather) Option {
	return func(l *Loop) { l.weather = w }
}

// WithRecorder enables per-minute rows.
func WithRecorder(r Recorder) Option {
	return func(l *Loop) { l.recorder = r }
}

// WithClock replaces the wall clock.
func WithClock(c thermistor.Clock) Option {
	return func(l *Loop) {
		if c != nil {
			l.clock = c
		}
	}
}

// Loop is the control loop. Only the sampler is required.
type Loop struct {
	sampler   Sampler
	bar       Bar
	status    Status
	occupancy Occupancy
	weather   Weather
	recorder  Recorder
	clock     thermistor.Clock

	interval    time.Duration
	maxFailures int

	agg      record.Aggregator
	minute   time.Time
	failures int

	cbMu      sync.RWMutex
	callbacks []func(thermistor.Sample)
}

// New creates a loop.
func New(sampler Sampler, cfg config.LoopConfig, opts ...Option) *Loop {
	l := &Loop{
		sampler:     sampler,
		clock:       thermistor.WallClock(),
		interval:    cfg.SampleInterval,
		maxFailures: cfg.MaxConsecutiveFailures,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// OnSample registers a callback invoked after every successful sample. The
// callback runs on the loop goroutine and should return quickly.
func (l *Loop) OnSample(cb func(thermistor.Sample)) {
	l.cbMu.Lock()
	defer l.cbMu.Unlock()
	l.callbacks = append(l.callbacks, cb)
}

// Failures returns the number of consecutive recoverable failures.
func (l *Loop) Failures() int {
	return l.failures
}

// Run samples every interval until ctx is done. It returns nil on
// cancellation and the error of any non-recoverable fault. A partial minute
// is discarded on shutdown.
func (l *Loop) Run(ctx context.Context) error {
	log.WithField("interval", l.interval).Info("monitor started")
	defer log.Info("monitor stopped")

	for {
		if err := l.Step(ctx); err != nil {
			return err
		}
		if err := l.clock.Sleep(ctx, l.interval); err != nil {
			return nil
		}
	}
}

// Step runs one cycle.
func (l *Loop) Step(ctx context.Context) error {
	l.rollover(ctx, l.clock.Now())

	s, err := l.sampler.Read(ctx)
	if err != nil {
		if ctx.Err() != nil && (stderrors.Is(err, context.Canceled) || stderrors.Is(err, context.DeadlineExceeded)) {
			return nil
		}
		if !thermistor.Recoverable(err) {
			return errors.Wrap(err, "sampling failed")
		}
		l.failures++
		entry := log.WithError(err).WithField("failures", l.failures)
		if l.maxFailures > 0 && l.failures >= l.maxFailures {
			entry.Error("sensor failing repeatedly, check wiring")
		} else {
			entry.Warn("sample skipped")
		}
		return nil
	}
	l.failures = 0

	if l.bar != nil {
		if err := l.bar.Show(s.Temperature); err != nil {
			return errors.Wrap(err, "failed to update bar graph")
		}
	}
	if l.occupancy != nil {
		state := l.occupancy.State()
		l.agg.AddOccupancy(bool(state))
		if l.status != nil {
			if err := l.status.Set(StateColor(state)); err != nil {
				return errors.Wrap(err, "failed to update status LED")
			}
		}
	}
	l.agg.Add(s)

	log.WithField("temp_c", s.Temperature).Info("sample")
	l.notify(s)
	return nil
}

// rollover writes the previous minute's row once the clock enters a new
// minute.
func (l *Loop) rollover(ctx context.Context, now time.Time) {
	m := now.Truncate(time.Minute)
	if l.minute.IsZero() {
		l.minute = m
		return
	}
	if !m.After(l.minute) {
		return
	}
	l.minute = m

	var w *weather.Snapshot
	if l.weather != nil {
		if snap, ok := l.weather.Get(ctx); ok {
			w = &snap
		}
	}
	row, ok := l.agg.Flush(now, w)
	if !ok || l.recorder == nil {
		return
	}
	if err := l.recorder.Write(row); err != nil {
		log.WithError(err).Error("failed to record row")
		return
	}
	log.WithFields(log.Fields{
		"temp_c":    row.Temp,
		"occupancy": row.Occupancy,
	}).Info("recorded")
}

func (l *Loop) notify(s thermistor.Sample) {
	l.cbMu.RLock()
	callbacks := make([]func(thermistor.Sample), len(l.callbacks))
	copy(callbacks, l.callbacks)
	l.cbMu.RUnlock()

	for _, cb := range callbacks {
		if cb != nil {
			cb(s)
		}
	}
}

// StateColor maps occupancy to the status LED: green when occupied, red
// otherwise.
func StateColor(s occupancy.State) display.Color {
	if s == occupancy.Occupied {
		return display.Green
	}
	return display.Red
}
