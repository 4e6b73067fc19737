// Package sim provides an in-memory GPIO board for tests and desktop runs. It
// models the RC charge-timing network, LED outputs and a push-button.
package sim

import (
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/itohio/rcthermo/pkg/gpio"
)

// PollStep is how far a ManualClock advances on a read of a line that has not
// crossed the threshold yet and never will. It keeps bounded polls finite.
const PollStep = 10 * time.Microsecond

// ErrClosed is returned by every operation after Close.
var ErrClosed = errors.New("board closed")

// Board simulates a GPIO header.
type Board struct {
	mu     sync.Mutex
	clock  Clock
	rc     *RC
	dirs   map[gpio.Line]gpio.Direction
	levels map[gpio.Line]gpio.Level // driven output levels
	inputs map[gpio.Line]gpio.Level // externally forced input levels
	faults map[gpio.Line]error
	closed bool

	charging    bool
	chargeStart time.Time
	chargeTime  time.Duration
	trials      int
}

var _ gpio.Host = (*Board)(nil)

// NewBoard creates a board. rc may be nil when no sensor is wired.
func NewBoard(clock Clock, rc *RC) *Board {
	if clock == nil {
		clock = RealClock{}
	}
	return &Board{
		clock:  clock,
		rc:     rc,
		dirs:   make(map[gpio.Line]gpio.Direction),
		levels: make(map[gpio.Line]gpio.Level),
		inputs: make(map[gpio.Line]gpio.Level),
		faults: make(map[gpio.Line]error),
	}
}

// SetDirection configures a line.
func (b *Board) SetDirection(line gpio.Line, dir gpio.Direction) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.check(line); err != nil {
		return err
	}
	b.dirs[line] = dir
	b.updateRC()
	return nil
}

// Write drives an output line.
func (b *Board) Write(line gpio.Line, level gpio.Level) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.check(line); err != nil {
		return err
	}
	b.levels[line] = level
	b.updateRC()
	return nil
}

// Read samples a line.
func (b *Board) Read(line gpio.Line) (gpio.Level, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.check(line); err != nil {
		return gpio.Low, err
	}

	dir := b.dirs[line]
	if dir == gpio.Output {
		return b.levels[line], nil
	}

	if b.rc != nil && line == b.rc.LineB {
		return b.senseRC(), nil
	}

	if lvl, ok := b.inputs[line]; ok {
		return lvl, nil
	}
	return gpio.Level(dir == gpio.InputPullUp), nil
}

// Close marks the board closed.
func (b *Board) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	b.charging = false
	return nil
}

// senseRC reports whether the capacitor voltage is above the threshold. On a
// ManualClock a low reading jumps time to the crossing, so the next read sees
// the exact charge time.
func (b *Board) senseRC() gpio.Level {
	if !b.charging {
		return gpio.Low
	}

	mc, manual := b.clock.(*ManualClock)
	if b.chargeTime < 0 {
		if manual {
			mc.Advance(PollStep)
		}
		return gpio.Low
	}

	crossing := b.chargeStart.Add(b.chargeTime)
	if !b.clock.Now().Before(crossing) {
		return gpio.High
	}
	if manual {
		mc.AdvanceTo(crossing)
	}
	return gpio.Low
}

// updateRC starts a charge cycle when LineA drives high into an undriven
// LineB and cancels it on any other configuration.
func (b *Board) updateRC() {
	if b.rc == nil {
		return
	}
	a, bl := b.rc.LineA, b.rc.LineB
	driving := b.dirs[a] == gpio.Output && b.levels[a] == gpio.High && b.dirs[bl] != gpio.Output
	switch {
	case driving && !b.charging:
		b.charging = true
		b.chargeStart = b.clock.Now()
		b.chargeTime = Never
		if b.rc.Charge != nil {
			b.chargeTime = b.rc.Charge()
		}
		b.trials++
	case !driving:
		b.charging = false
	}
}

func (b *Board) check(line gpio.Line) error {
	if b.closed {
		return ErrClosed
	}
	return b.faults[line]
}

// Press forces an input line to level, e.g. Low for a pressed pull-up button.
func (b *Board) Press(line gpio.Line, level gpio.Level) {
	b.mu.Lock()
	b.inputs[line] = level
	b.mu.Unlock()
}

// Release removes a forced input level.
func (b *Board) Release(line gpio.Line) {
	b.mu.Lock()
	delete(b.inputs, line)
	b.mu.Unlock()
}

// Fail makes every operation on line return err. A nil err clears the fault.
func (b *Board) Fail(line gpio.Line, err error) {
	b.mu.Lock()
	if err == nil {
		delete(b.faults, line)
	} else {
		b.faults[line] = err
	}
	b.mu.Unlock()
}

// Level returns the level last driven on line.
func (b *Board) Level(line gpio.Line) gpio.Level {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.levels[line]
}

// Direction returns the configured direction of line.
func (b *Board) Direction(line gpio.Line) gpio.Direction {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.dirs[line]
}

// Trials returns how many charge cycles have been started.
func (b *Board) Trials() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.trials
}

// Clock returns the board's time source.
func (b *Board) Clock() Clock {
	return b.clock
}
