package sim

import (
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/itohio/rcthermo/pkg/config"
	"github.com/itohio/rcthermo/pkg/gpio"
)

// Never is returned by a ChargeSource when the capacitor should never reach
// the logic threshold (open thermistor, broken wiring).
const Never time.Duration = -1

// ChargeSource yields the charge time of the next trial.
type ChargeSource func() time.Duration

// RC wires a simulated thermistor/capacitor network between two lines:
// LineA charges the capacitor through the thermistor, LineB discharges it and
// senses the threshold crossing.
type RC struct {
	LineA  gpio.Line
	LineB  gpio.Line
	Charge ChargeSource
}

// Fixed returns the same charge time for every trial.
func Fixed(d time.Duration) ChargeSource {
	return func() time.Duration { return d }
}

// Sequence replays ds in order and then repeats the last value.
func Sequence(ds ...time.Duration) ChargeSource {
	var (
		mu sync.Mutex
		i  int
	)
	return func() time.Duration {
		mu.Lock()
		defer mu.Unlock()
		if len(ds) == 0 {
			return Never
		}
		d := ds[i]
		if i < len(ds)-1 {
			i++
		}
		return d
	}
}

// Stuck models a sensor that never charges.
func Stuck() ChargeSource {
	return Fixed(Never)
}

// Thermistor is a ChargeSource that inverts the calibration: it computes the
// resistance an NTC thermistor has at the given temperature and the mean charge
// time the linear fit maps to that resistance. Jitter adds relative gaussian
// noise per trial.
type Thermistor struct {
	mu     sync.Mutex
	cal    config.Calibration
	tempC  float64
	jitter float64
	rng    *rand.Rand
}

// NewThermistor creates a thermistor at tempC.
func NewThermistor(cal config.Calibration, tempC, jitter float64, seed int64) *Thermistor {
	return &Thermistor{
		cal:    cal,
		tempC:  tempC,
		jitter: jitter,
		rng:    rand.New(rand.NewSource(seed)),
	}
}

// SetTemperature changes the simulated temperature.
func (t *Thermistor) SetTemperature(c float64) {
	t.mu.Lock()
	t.tempC = c
	t.mu.Unlock()
}

// Temperature returns the simulated temperature.
func (t *Thermistor) Temperature() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.tempC
}

// Resistance returns R = R0 * exp(B * (1/T - 1/T25)).
func (t *Thermistor) Resistance() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.resistance()
}

func (t *Thermistor) resistance() float64 {
	const t25 = 273.15 + 25.0
	k := t.tempC + 273.15
	return t.cal.ReferenceResistance * math.Exp(t.cal.Beta*(1/k-1/t25))
}

// Source returns the ChargeSource for an RC wiring.
func (t *Thermistor) Source() ChargeSource {
	return func() time.Duration {
		t.mu.Lock()
		defer t.mu.Unlock()

		us := (t.resistance() - t.cal.FitIntercept) / t.cal.FitSlope
		if t.jitter > 0 {
			us *= 1 + t.rng.NormFloat64()*t.jitter
		}
		if us <= 0 {
			return 0
		}
		return time.Duration(us * float64(time.Microsecond))
	}
}
