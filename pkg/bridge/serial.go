package bridge

import (
	"bufio"
	"context"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"go.bug.st/serial"

	"github.com/itohio/rcthermo/pkg/thermistor"
)

const (
	// DefaultBaudRate matches the firmware UART configuration.
	DefaultBaudRate = 115200
	// DefaultTimeout bounds a single trial including the discharge delay on
	// the MCU side.
	DefaultTimeout = 500 * time.Millisecond

	replyBuffer = 4
)

// ErrNotConnected is returned when a trial is requested on a closed bridge.
var ErrNotConnected = errors.New("bridge not connected")

// Port represents a serial port.
type Port struct {
	Name        string
	Description string
}

type reply struct {
	elapsed time.Duration
	err     error
}

// Serial is a charge timer that delegates the discharge/charge trial to an
// MCU running the firmware in this repository. The MCU times the charge with
// its own hardware timer, which avoids host scheduling jitter.
//
// Protocol, one line per message:
//
//	host -> mcu: T
//	mcu -> host: C,<elapsed_us> | E,<reason>
type Serial struct {
	port     string
	baudRate int
	timeout  time.Duration

	mu        sync.Mutex // one trial in flight
	connMu    sync.RWMutex
	conn      io.ReadWriteCloser
	replies   chan reply
	ctx       context.Context
	cancel    context.CancelFunc
	connected bool
}

var _ thermistor.ChargeTimer = (*Serial)(nil)

// New creates a bridge for the given port.
func New(port string, baudRate int, timeout time.Duration) *Serial {
	if baudRate == 0 {
		baudRate = DefaultBaudRate
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	return &Serial{
		port:     port,
		baudRate: baudRate,
		timeout:  timeout,
	}
}

// Ports returns a list of available serial ports.
func Ports() ([]Port, error) {
	ports, err := serial.GetPortsList()
	if err != nil {
		return nil, errors.Wrap(err, "failed to list serial ports")
	}

	result := make([]Port, 0, len(ports))
	for _, name := range ports {
		result = append(result, Port{Name: name, Description: name})
	}
	return result, nil
}

// Connect opens the serial port and starts reading replies.
func (d *Serial) Connect() error {
	port, err := serial.Open(d.port, &serial.Mode{BaudRate: d.baudRate})
	if err != nil {
		return errors.Wrapf(err, "failed to open serial port %s", d.port)
	}
	if err := d.attach(port); err != nil {
		port.Close()
		return err
	}
	return nil
}

// attach starts the bridge on an already open connection.
func (d *Serial) attach(conn io.ReadWriteCloser) error {
	d.connMu.Lock()
	defer d.connMu.Unlock()

	if d.connected {
		return errors.New("already connected")
	}

	d.ctx, d.cancel = context.WithCancel(context.Background())
	d.conn = conn
	d.replies = make(chan reply, replyBuffer)
	d.connected = true

	go d.readReplies(d.ctx, conn, d.replies)
	return nil
}

// Close closes the connection and stops reading replies.
func (d *Serial) Close() error {
	d.connMu.Lock()
	defer d.connMu.Unlock()

	if !d.connected {
		return nil
	}

	d.cancel()
	d.connected = false

	if err := d.conn.Close(); err != nil {
		return errors.Wrap(err, "failed to close serial port")
	}
	return nil
}

// IsConnected returns whether the bridge is currently connected.
func (d *Serial) IsConnected() bool {
	d.connMu.RLock()
	defer d.connMu.RUnlock()
	return d.connected
}

// ChargeTime asks the MCU for one trial.
func (d *Serial) ChargeTime(ctx context.Context) (time.Duration, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.connMu.RLock()
	conn, replies, connected := d.conn, d.replies, d.connected
	d.connMu.RUnlock()
	if !connected {
		return 0, errors.Wrap(thermistor.ErrHardwareFault, ErrNotConnected.Error())
	}

	// Drop replies to trials that already timed out.
	for drained := false; !drained; {
		select {
		case _, ok := <-replies:
			drained = !ok
		default:
			drained = true
		}
	}

	if _, err := io.WriteString(conn, "T\n"); err != nil {
		return 0, errors.Wrapf(thermistor.ErrHardwareFault, "failed to send trial command: %v", err)
	}

	timer := time.NewTimer(d.timeout)
	defer timer.Stop()

	select {
	case r, ok := <-replies:
		if !ok {
			return 0, errors.Wrap(thermistor.ErrHardwareFault, "bridge connection lost")
		}
		return r.elapsed, r.err
	case <-timer.C:
		return 0, errors.Wrapf(thermistor.ErrSensorTimeout, "no reply from %s within %v", d.port, d.timeout)
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

// readReplies reads lines from the serial port and parses them into replies.
func (d *Serial) readReplies(ctx context.Context, conn io.Reader, out chan<- reply) {
	defer close(out)
	defer func() {
		if r := recover(); r != nil {
			log.Errorf("Panic in readReplies: %v", r)
		}
	}()

	scanner := bufio.NewScanner(conn)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		elapsed, err := parseLine(line)
		if err != nil && !errors.Is(err, thermistor.ErrSensorTimeout) {
			log.WithError(err).Warnf("Failed to parse bridge line %q", line)
			continue
		}

		select {
		case out <- reply{elapsed: elapsed, err: err}:
		case <-ctx.Done():
			return
		default:
			log.Warn("Bridge reply channel full, dropping reply")
		}
	}

	if err := scanner.Err(); err != nil && ctx.Err() == nil {
		log.WithError(err).Error("Error reading from serial port")
	}
}

// parseLine parses a reply from the MCU.
// Format: C,<elapsed_us> or E,<reason>
// Example: C,16842
func parseLine(line string) (time.Duration, error) {
	parts := strings.SplitN(line, ",", 2)
	if len(parts) != 2 {
		return 0, errors.Errorf("invalid line format: expected 2 comma-separated values, got %d", len(parts))
	}

	switch parts[0] {
	case "C":
		us, err := strconv.ParseUint(parts[1], 10, 32)
		if err != nil {
			return 0, errors.Wrap(err, "invalid elapsed time")
		}
		return time.Duration(us) * time.Microsecond, nil
	case "E":
		return 0, errors.Wrapf(thermistor.ErrSensorTimeout, "mcu reported %q", parts[1])
	default:
		return 0, errors.Errorf("unknown reply type %q", parts[0])
	}
}
