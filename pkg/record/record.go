// Package record aggregates samples per minute and appends them to a CSV log.
package record

import (
	"encoding/csv"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/itohio/rcthermo/pkg/thermistor"
	"github.com/itohio/rcthermo/pkg/weather"
)

// TimeLayout is the layout of the Time column. The zone offset keeps rows
// unambiguous across DST changes.
const TimeLayout = "2006-01-02 15:04:05-07:00"

// Header is the first line of every log file.
var Header = []string{
	"Time", "Temp", "Occupancy", "Weather",
	"Outside_temp", "Wind_speed", "Wind_direction", "Wind_chill",
}

// Row is one minute of data.
type Row struct {
	Time      time.Time
	Temp      float64 // mean calibrated Celsius
	Occupancy float64 // fraction of samples taken while occupied
	Weather   weather.Snapshot

	HasOccupancy bool // false when no occupancy was observed this minute
	HasWeather   bool // false when no weather snapshot was available
}

// Fields renders r in Header order. Unknown occupancy and weather are left
// empty rather than written as zeros.
func (r Row) Fields() []string {
	f := func(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }
	fields := []string{
		r.Time.Format(TimeLayout),
		f(r.Temp),
		"",
		"", "", "", "", "",
	}
	if r.HasOccupancy {
		fields[2] = f(r.Occupancy)
	}
	if r.HasWeather {
		fields[3] = r.Weather.Description
		fields[4] = f(r.Weather.OutsideTempC)
		fields[5] = f(r.Weather.WindSpeedMS)
		fields[6] = f(r.Weather.WindDirection)
		fields[7] = f(r.Weather.WindChill)
	}
	return fields
}

// Aggregator accumulates temperature and occupancy observations between
// flushes.
type Aggregator struct {
	mu       sync.Mutex
	tempSum  float64
	tempN    int
	occupied int
	occN     int
}

// Add records a sample's temperature.
func (a *Aggregator) Add(s thermistor.Sample) {
	a.mu.Lock()
	a.tempSum += s.Temperature
	a.tempN++
	a.mu.Unlock()
}

// AddOccupancy records the occupancy state at a sample.
func (a *Aggregator) AddOccupancy(occupied bool) {
	a.mu.Lock()
	if occupied {
		a.occupied++
	}
	a.occN++
	a.mu.Unlock()
}

// Len returns how many temperatures are pending.
func (a *Aggregator) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.tempN
}

// Flush returns the means since the last flush and resets the aggregator. A
// nil w marks the row's weather as unknown. It returns false when no
// temperature was added.
func (a *Aggregator) Flush(t time.Time, w *weather.Snapshot) (Row, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.tempN == 0 {
		a.occupied, a.occN = 0, 0
		return Row{}, false
	}

	r := Row{
		Time: t,
		Temp: a.tempSum / float64(a.tempN),
	}
	if w != nil {
		r.Weather, r.HasWeather = *w, true
	}
	if a.occN > 0 {
		r.Occupancy = float64(a.occupied) / float64(a.occN)
		r.HasOccupancy = true
	}
	a.tempSum, a.tempN = 0, 0
	a.occupied, a.occN = 0, 0
	return r, true
}

// CSVWriter appends rows to a CSV file, writing the header when the file is
// new or empty.
type CSVWriter struct {
	mu   sync.Mutex
	path string
}

// NewCSVWriter creates a writer for path. The file is opened per write so it
// can be rotated or copied off while the loop runs.
func NewCSVWriter(path string) *CSVWriter {
	return &CSVWriter{path: path}
}

// Path returns the target file.
func (w *CSVWriter) Path() string {
	return w.path
}

// Write appends r.
func (w *CSVWriter) Write(r Row) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	f, err := os.OpenFile(w.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return errors.Wrapf(err, "failed to open %s", w.path)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return errors.Wrapf(err, "failed to stat %s", w.path)
	}

	cw := csv.NewWriter(f)
	if info.Size() == 0 {
		if err := cw.Write(Header); err != nil {
			return errors.Wrap(err, "failed to write header")
		}
	}
	if err := cw.Write(r.Fields()); err != nil {
		return errors.Wrap(err, "failed to write row")
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return errors.Wrapf(err, "failed to flush %s", w.path)
	}
	return f.Close()
}
