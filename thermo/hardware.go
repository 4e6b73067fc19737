package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/itohio/rcthermo/pkg/bridge"
	"github.com/itohio/rcthermo/pkg/config"
	"github.com/itohio/rcthermo/pkg/display"
	"github.com/itohio/rcthermo/pkg/gpio"
	"github.com/itohio/rcthermo/pkg/gpio/sim"
	"github.com/itohio/rcthermo/pkg/monitor"
	"github.com/itohio/rcthermo/pkg/occupancy"
	"github.com/itohio/rcthermo/pkg/record"
	"github.com/itohio/rcthermo/pkg/thermistor"
	"github.com/itohio/rcthermo/pkg/weather"
)

// rig is the opened hardware: the GPIO header, an optional serial bridge and
// the thermistor reader on top of them.
type rig struct {
	host   gpio.Host
	io     gpio.DigitalIO
	bridge *bridge.Serial
	reader *thermistor.Reader
	board  *sim.Board
	therm  *sim.Thermistor
}

func openRig(cfg *config.Config) (*rig, error) {
	r := &rig{}

	if cfg.Hardware.Backend == gpio.BackendSim {
		r.therm = sim.NewThermistor(cfg.Calibration, cfg.Sim.TemperatureC, cfg.Sim.Jitter, time.Now().UnixNano())
		r.board = sim.NewBoard(nil, &sim.RC{
			LineA:  gpio.Line(cfg.Estimator.LineA),
			LineB:  gpio.Line(cfg.Estimator.LineB),
			Charge: r.therm.Source(),
		})
		r.host = r.board
	} else {
		h, err := gpio.Open(cfg.Hardware.Backend, cfg.Hardware.Chip)
		if err != nil {
			return nil, err
		}
		r.host = h
	}
	r.io = gpio.Synchronized(r.host)

	switch cfg.Hardware.Timer {
	case "serial":
		r.bridge = bridge.New(cfg.Serial.Port, cfg.Serial.BaudRate, bridge.DefaultTimeout)
		if err := r.bridge.Connect(); err != nil {
			r.host.Close()
			return nil, err
		}
		r.reader = thermistor.NewWithTimer(r.bridge, cfg)
	case "gpio", "":
		r.reader = thermistor.New(r.io, cfg)
	default:
		r.host.Close()
		return nil, errors.Errorf("unknown timer %q (gpio or serial)", cfg.Hardware.Timer)
	}

	log.WithFields(log.Fields{
		"backend": cfg.Hardware.Backend,
		"timer":   cfg.Hardware.Timer,
		"line_a":  cfg.Estimator.LineA,
		"line_b":  cfg.Estimator.LineB,
	}).Debug("hardware opened")
	return r, nil
}

func (r *rig) Close() error {
	if r.bridge != nil {
		r.bridge.Close()
	}
	return r.host.Close()
}

// session is everything the control loop drives.
type session struct {
	rig     *rig
	loop    *monitor.Loop
	bar     *display.BarGraph
	status  *display.StatusLED
	tracker *occupancy.Tracker
}

func newSession(cfg *config.Config, r *rig) (*session, error) {
	bar, err := display.NewBarGraph(r.io, cfg.Display)
	if err != nil {
		return nil, err
	}
	status, err := display.NewStatusLED(r.io, cfg.Display)
	if err != nil {
		return nil, err
	}

	provider, err := weather.New(cfg.Weather)
	if err != nil {
		return nil, err
	}

	s := &session{rig: r, bar: bar, status: status}
	opts := []monitor.Option{
		monitor.WithDisplay(bar, status),
		monitor.WithWeather(weather.NewCache(provider, cfg.Weather.Refresh)),
		monitor.WithRecorder(record.NewCSVWriter(cfg.Record.Path)),
	}

	if cfg.Occupancy.Enabled {
		s.tracker, err = occupancy.NewTracker(r.io, cfg.Occupancy, nil)
		if err != nil {
			return nil, err
		}
		s.tracker.OnToggle(func(st occupancy.State) {
			if err := status.Set(monitor.StateColor(st)); err != nil {
				log.WithError(err).Warn("failed to update status LED")
			}
		})
		if err := status.Set(monitor.StateColor(s.tracker.State())); err != nil {
			return nil, err
		}
		opts = append(opts, monitor.WithOccupancy(s.tracker))
	}

	s.loop = monitor.New(r.reader, cfg.Loop, opts...)
	return s, nil
}

// run blocks until ctx is done or the loop fails, then turns the LEDs off.
func (s *session) run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	trackerDone := make(chan error, 1)
	if s.tracker != nil {
		go func() {
			err := s.tracker.Run(ctx)
			if err != nil {
				log.WithError(err).Error("occupancy button failed")
				cancel()
			}
			trackerDone <- err
		}()
	} else {
		close(trackerDone)
	}

	err := s.loop.Run(ctx)
	cancel()
	if terr := <-trackerDone; terr != nil && err == nil {
		err = terr
	}

	if cerr := s.bar.Clear(); cerr != nil {
		log.WithError(cerr).Warn("failed to clear bar graph")
	}
	if cerr := s.status.Set(display.Off); cerr != nil {
		log.WithError(cerr).Warn("failed to clear status LED")
	}
	return err
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}
