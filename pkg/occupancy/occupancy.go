// Package occupancy tracks whether the room is occupied from a push-button
// that toggles the state on every press.
package occupancy

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/itohio/rcthermo/pkg/config"
	"github.com/itohio/rcthermo/pkg/gpio"
)

// State is the occupancy of the room.
type State bool

const (
	Unoccupied State = false
	Occupied   State = true
)

func (s State) String() string {
	if s {
		return "occupied"
	}
	return "unoccupied"
}

// ParseState parses "occupied" or "unoccupied".
func ParseState(s string) (State, error) {
	switch s {
	case "occupied":
		return Occupied, nil
	case "unoccupied":
		return Unoccupied, nil
	}
	return Unoccupied, errors.Errorf("unknown occupancy state %q", s)
}

// Clock is the time source of the poll loop.
type Clock interface {
	Now() time.Time
	Sleep(ctx context.Context, d time.Duration) error
}

type wallClock struct{}

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

// Tracker polls a pull-up button. A press pulls the line low; once the low
// level has been stable for the debounce interval the state toggles.
type Tracker struct {
	io       gpio.DigitalIO
	line     gpio.Line
	debounce time.Duration
	interval time.Duration
	clock    Clock

	mu        sync.Mutex
	state     State
	stable    gpio.Level
	candidate gpio.Level
	since     time.Time
	callbacks []func(State)
}

// NewTracker configures the button line and samples its idle level. A nil
// clock uses the wall clock.
func NewTracker(io gpio.DigitalIO, cfg config.OccupancyConfig, clock Clock) (*Tracker, error) {
	if clock == nil {
		clock = wallClock{}
	}
	initial, err := ParseState(cfg.Initial)
	if err != nil {
		return nil, err
	}

	t := &Tracker{
		io:       io,
		line:     gpio.Line(cfg.Button),
		debounce: cfg.Debounce,
		interval: cfg.PollInterval,
		clock:    clock,
		state:    initial,
	}
	if err := io.SetDirection(t.line, gpio.InputPullUp); err != nil {
		return nil, errors.Wrapf(err, "failed to configure button %s", t.line)
	}
	lvl, err := io.Read(t.line)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read button %s", t.line)
	}
	t.stable, t.candidate, t.since = lvl, lvl, clock.Now()
	return t, nil
}

// State returns the current occupancy.
func (t *Tracker) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// OnToggle registers a callback invoked with the new state after each toggle.
func (t *Tracker) OnToggle(cb func(State)) {
	t.mu.Lock()
	t.callbacks = append(t.callbacks, cb)
	t.mu.Unlock()
}

// Poll samples the button once and applies the debounce.
func (t *Tracker) Poll() error {
	lvl, err := t.io.Read(t.line)
	if err != nil {
		return errors.Wrapf(err, "failed to read button %s", t.line)
	}
	now := t.clock.Now()

	t.mu.Lock()
	if lvl != t.candidate {
		t.candidate, t.since = lvl, now
	}
	if t.candidate == t.stable || now.Sub(t.since) < t.debounce {
		t.mu.Unlock()
		return nil
	}
	t.stable = t.candidate
	if t.stable == gpio.High {
		t.mu.Unlock()
		return nil
	}
	t.state = !t.state
	state := t.state
	callbacks := make([]func(State), len(t.callbacks))
	copy(callbacks, t.callbacks)
	t.mu.Unlock()

	log.WithField("state", state).Info("occupancy toggled")
	for _, cb := range callbacks {
		cb(state)
	}
	return nil
}

// Run polls until ctx is done. It returns nil on cancellation and the read
// error otherwise.
func (t *Tracker) Run(ctx context.Context) error {
	for {
		if err := t.clock.Sleep(ctx, t.interval); err != nil {
			return nil
		}
		if err := t.Poll(); err != nil {
			return err
		}
	}
}
