package thermistor

import (
	stderrors "errors"
	"fmt"

	"github.com/pkg/errors"
)

// Fault kinds. Concrete errors wrap one of these, so callers classify with
// errors.Is.
var (
	// ErrSensorTimeout means the sense line never crossed the threshold within
	// the charge timeout: disconnected sensor, miswiring or a dead part.
	ErrSensorTimeout = errors.New("sensor timeout")
	// ErrInvalidMeasurement means the pipeline produced a non-positive
	// resistance or a non-finite temperature.
	ErrInvalidMeasurement = errors.New("invalid measurement")
	// ErrHardwareFault means the digital I/O capability failed to configure,
	// drive or sample a line.
	ErrHardwareFault = errors.New("hardware fault")
)

// Recoverable reports whether err only costs the current sample. Sensor
// timeouts and invalid measurements are recoverable; hardware faults and
// anything unclassified are not.
func Recoverable(err error) bool {
	return stderrors.Is(err, ErrSensorTimeout) || stderrors.Is(err, ErrInvalidMeasurement)
}

// fault attaches a kind to a cause while keeping both reachable by errors.Is.
type fault struct {
	kind  error
	cause error
	msg   string
}

func (f *fault) Error() string {
	s := f.kind.Error() + ": " + f.msg
	if f.cause != nil {
		s += ": " + f.cause.Error()
	}
	return s
}

func (f *fault) Is(target error) bool { return target == f.kind }

func (f *fault) Unwrap() error { return f.cause }

func hardwareFault(cause error, format string, args ...interface{}) error {
	return errors.WithStack(&fault{kind: ErrHardwareFault, cause: cause, msg: fmt.Sprintf(format, args...)})
}
