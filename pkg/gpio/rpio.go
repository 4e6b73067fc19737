//go:build linux

package gpio

import (
	"sync"

	"github.com/pkg/errors"
	"github.com/stianeikeland/go-rpio/v4"
)

// RPIO drives lines through the memory-mapped BCM283x registers. It needs
// /dev/gpiomem (or root for /dev/mem).
type RPIO struct {
	mu   sync.Mutex
	used map[Line]struct{}
}

var _ Host = (*RPIO)(nil)

// OpenRPIO maps the GPIO registers.
func OpenRPIO() (*RPIO, error) {
	if err := rpio.Open(); err != nil {
		return nil, errors.Wrap(err, "failed to map gpio memory")
	}
	return &RPIO{used: make(map[Line]struct{})}, nil
}

// SetDirection configures the line.
func (r *RPIO) SetDirection(line Line, dir Direction) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	pin := rpio.Pin(line)
	switch dir {
	case Input:
		pin.Input()
		pin.PullOff()
	case InputPullUp:
		pin.Input()
		pin.PullUp()
	case Output:
		pin.Output()
	default:
		return errors.Errorf("unsupported direction %v", dir)
	}
	r.used[line] = struct{}{}
	return nil
}

// Write drives an output line.
func (r *RPIO) Write(line Line, level Level) error {
	pin := rpio.Pin(line)
	if level {
		pin.High()
	} else {
		pin.Low()
	}
	return nil
}

// Read samples a line.
func (r *RPIO) Read(line Line) (Level, error) {
	return rpio.Pin(line).Read() == rpio.High, nil
}

// Close returns used lines to inputs and unmaps the registers.
func (r *RPIO) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for line := range r.used {
		rpio.Pin(line).Input()
	}
	r.used = make(map[Line]struct{})
	return errors.Wrap(rpio.Close(), "failed to unmap gpio memory")
}
