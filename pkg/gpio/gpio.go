// Package gpio defines the digital I/O capability the sensor pipeline and the
// display collaborators drive, and opens the concrete host backends.
package gpio

import (
	"fmt"
	"strings"
	"sync"

	"github.com/pkg/errors"
)

// Line identifies a GPIO line by its BCM number.
type Line int

func (l Line) String() string {
	return fmt.Sprintf("GPIO%d", int(l))
}

// Direction is the configured direction of a line.
type Direction int

const (
	// Input is a floating (high impedance) input.
	Input Direction = iota
	// InputPullUp is an input with the internal pull-up enabled.
	InputPullUp
	// Output is a push-pull output.
	Output
)

func (d Direction) String() string {
	switch d {
	case Input:
		return "in"
	case InputPullUp:
		return "in-pullup"
	case Output:
		return "out"
	default:
		return fmt.Sprintf("Direction(%d)", int(d))
	}
}

// Level is a logical line level.
type Level bool

const (
	Low  Level = false
	High Level = true
)

func (l Level) String() string {
	if l {
		return "high"
	}
	return "low"
}

// DigitalIO is the capability to configure, drive and sample digital lines.
// Implementations are not required to be safe for concurrent use.
type DigitalIO interface {
	SetDirection(line Line, dir Direction) error
	Write(line Line, level Level) error
	Read(line Line) (Level, error)
}

// Host is a DigitalIO backed by real (or simulated) hardware that holds
// resources until closed.
type Host interface {
	DigitalIO
	Close() error
}

// Backend names accepted by Open.
const (
	BackendPeriph = "periph"
	BackendGPIOD  = "gpiod"
	BackendRPIO   = "rpio"
	BackendSim    = "sim"
)

// ErrUnknownBackend is returned by Open for an unsupported backend name.
var ErrUnknownBackend = errors.New("unknown gpio backend")

// Open opens a hardware backend by name. The simulated board lives in the sim
// package and is constructed by the caller since it needs simulation
// parameters.
func Open(backend, chip string) (Host, error) {
	var (
		h   Host
		err error
	)
	switch strings.ToLower(backend) {
	case BackendPeriph, "":
		h, err = OpenPeriph()
	case BackendGPIOD:
		h, err = OpenGPIOD(chip)
	case BackendRPIO:
		h, err = OpenRPIO()
	default:
		return nil, errors.Wrapf(ErrUnknownBackend, "%q", backend)
	}
	if err != nil {
		return nil, err
	}
	return h, nil
}

// AllOff configures lines as outputs driven low. Used to reset LED banks on
// start-up and shutdown.
func AllOff(io DigitalIO, lines ...Line) error {
	for _, l := range lines {
		if err := io.SetDirection(l, Output); err != nil {
			return err
		}
		if err := io.Write(l, Low); err != nil {
			return err
		}
	}
	return nil
}

// Synchronized serialises every call on io. The estimator and the button
// poller share one header from different goroutines, and not every backend
// guards its register access.
func Synchronized(io DigitalIO) DigitalIO {
	if s, ok := io.(*syncIO); ok {
		return s
	}
	return &syncIO{io: io}
}

type syncIO struct {
	mu sync.Mutex
	io DigitalIO
}

func (s *syncIO) SetDirection(line Line, dir Direction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.io.SetDirection(line, dir)
}

func (s *syncIO) Write(line Line, level Level) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.io.Write(line, level)
}

func (s *syncIO) Read(line Line) (Level, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.io.Read(line)
}
