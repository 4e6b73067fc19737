package gpio

import (
	"sync"

	"github.com/pkg/errors"
	pgpio "periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"
)

// Periph drives lines through periph.io. Pins are looked up lazily by their
// BCM name ("GPIO22").
type Periph struct {
	mu     sync.Mutex
	pins   map[Line]pgpio.PinIO
	levels map[Line]Level
}

var _ Host = (*Periph)(nil)

// OpenPeriph initialises the periph host drivers. host.Init can safely be
// called more than once.
func OpenPeriph() (*Periph, error) {
	if _, err := host.Init(); err != nil {
		return nil, errors.Wrap(err, "failed to initialise periph host")
	}
	return &Periph{
		pins:   make(map[Line]pgpio.PinIO),
		levels: make(map[Line]Level),
	}, nil
}

func (p *Periph) pin(line Line) (pgpio.PinIO, error) {
	if pin, ok := p.pins[line]; ok {
		return pin, nil
	}
	pin := gpioreg.ByName(line.String())
	if pin == nil {
		return nil, errors.Errorf("no GPIO pin named %s", line)
	}
	p.pins[line] = pin
	return pin, nil
}

// SetDirection configures the line. Outputs resume the last level written to
// the line so that a direction change does not glitch it.
func (p *Periph) SetDirection(line Line, dir Direction) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	pin, err := p.pin(line)
	if err != nil {
		return err
	}

	switch dir {
	case Input:
		err = pin.In(pgpio.Float, pgpio.NoEdge)
	case InputPullUp:
		err = pin.In(pgpio.PullUp, pgpio.NoEdge)
	case Output:
		err = pin.Out(pgpio.Level(p.levels[line]))
	default:
		err = errors.Errorf("unsupported direction %v", dir)
	}
	return errors.Wrapf(err, "failed to set %s to %v", line, dir)
}

// Write drives an output line.
func (p *Periph) Write(line Line, level Level) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	pin, err := p.pin(line)
	if err != nil {
		return err
	}
	p.levels[line] = level
	return errors.Wrapf(pin.Out(pgpio.Level(level)), "failed to write %s", line)
}

// Read samples a line.
func (p *Periph) Read(line Line) (Level, error) {
	p.mu.Lock()
	pin, err := p.pin(line)
	p.mu.Unlock()
	if err != nil {
		return Low, err
	}
	return Level(pin.Read()), nil
}

// Close releases the pins by returning them to floating inputs.
func (p *Periph) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var first error
	for line, pin := range p.pins {
		if err := pin.Halt(); err != nil && first == nil {
			first = errors.Wrapf(err, "failed to halt %s", line)
		}
		if err := pin.In(pgpio.Float, pgpio.NoEdge); err != nil && first == nil {
			first = errors.Wrapf(err, "failed to release %s", line)
		}
	}
	p.pins = make(map[Line]pgpio.PinIO)
	return first
}
