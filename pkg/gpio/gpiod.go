//go:build linux

package gpio

import (
	"sync"

	"github.com/pkg/errors"
	"github.com/warthog618/gpiod"
)

// GPIOD drives lines through the Linux GPIO character device.
type GPIOD struct {
	mu     sync.Mutex
	chip   *gpiod.Chip
	lines  map[Line]*gpiod.Line
	levels map[Line]int
}

var _ Host = (*GPIOD)(nil)

// OpenGPIOD opens the named chip, e.g. "gpiochip0".
func OpenGPIOD(chip string) (*GPIOD, error) {
	c, err := gpiod.NewChip(chip, gpiod.WithConsumer("rcthermo"))
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open %s", chip)
	}
	return &GPIOD{
		chip:   c,
		lines:  make(map[Line]*gpiod.Line),
		levels: make(map[Line]int),
	}, nil
}

// SetDirection requests the line on first use and reconfigures it afterwards.
func (g *GPIOD) SetDirection(line Line, dir Direction) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	var (
		req []gpiod.LineReqOption
		cfg []gpiod.LineConfigOption
	)
	switch dir {
	case Input:
		req = []gpiod.LineReqOption{gpiod.AsInput}
		cfg = []gpiod.LineConfigOption{gpiod.AsInput}
	case InputPullUp:
		req = []gpiod.LineReqOption{gpiod.AsInput, gpiod.WithPullUp}
		cfg = []gpiod.LineConfigOption{gpiod.AsInput, gpiod.WithPullUp}
	case Output:
		v := g.levels[line]
		req = []gpiod.LineReqOption{gpiod.AsOutput(v)}
		cfg = []gpiod.LineConfigOption{gpiod.AsOutput(v)}
	default:
		return errors.Errorf("unsupported direction %v", dir)
	}

	if l, ok := g.lines[line]; ok {
		return errors.Wrapf(l.Reconfigure(cfg...), "failed to set %s to %v", line, dir)
	}

	l, err := g.chip.RequestLine(int(line), req...)
	if err != nil {
		return errors.Wrapf(err, "failed to request %s", line)
	}
	g.lines[line] = l
	return nil
}

// Write drives an output line.
func (g *GPIOD) Write(line Line, level Level) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	v := 0
	if level {
		v = 1
	}
	g.levels[line] = v

	l, ok := g.lines[line]
	if !ok {
		return errors.Errorf("%s was not configured", line)
	}
	return errors.Wrapf(l.SetValue(v), "failed to write %s", line)
}

// Read samples a line.
func (g *GPIOD) Read(line Line) (Level, error) {
	g.mu.Lock()
	l, ok := g.lines[line]
	g.mu.Unlock()
	if !ok {
		return Low, errors.Errorf("%s was not configured", line)
	}

	v, err := l.Value()
	if err != nil {
		return Low, errors.Wrapf(err, "failed to read %s", line)
	}
	return v != 0, nil
}

// Close releases all requested lines and the chip.
func (g *GPIOD) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	var first error
	for line, l := range g.lines {
		if err := l.Close(); err != nil && first == nil {
			first = errors.Wrapf(err, "failed to release %s", line)
		}
	}
	g.lines = make(map[Line]*gpiod.Line)
	if err := g.chip.Close(); err != nil && first == nil {
		first = err
	}
	return first
}
