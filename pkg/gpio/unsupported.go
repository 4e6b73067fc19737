//go:build !linux

package gpio

import "github.com/pkg/errors"

// ErrUnsupportedPlatform is returned by backends that only exist on Linux.
var ErrUnsupportedPlatform = errors.New("gpio backend requires linux")

// OpenGPIOD is only available on Linux.
func OpenGPIOD(chip string) (Host, error) {
	return nil, errors.Wrapf(ErrUnsupportedPlatform, "gpiod %s", chip)
}

// OpenRPIO is only available on Linux.
func OpenRPIO() (Host, error) {
	return nil, errors.Wrap(ErrUnsupportedPlatform, "rpio")
}
