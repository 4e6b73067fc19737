package config

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Config represents the application configuration.
type Config struct {
	Hardware    HardwareConfig  `yaml:"hardware" toml:"hardware"`
	Estimator   EstimatorConfig `yaml:"estimator" toml:"estimator"`
	Calibration Calibration     `yaml:"calibration" toml:"calibration"`
	Display     DisplayConfig   `yaml:"display" toml:"display"`
	Occupancy   OccupancyConfig `yaml:"occupancy" toml:"occupancy"`
	Weather     WeatherConfig   `yaml:"weather" toml:"weather"`
	Record      RecordConfig    `yaml:"record" toml:"record"`
	Loop        LoopConfig      `yaml:"loop" toml:"loop"`
	Serial      SerialConfig    `yaml:"serial" toml:"serial"`
	Sim         SimConfig       `yaml:"sim" toml:"sim"`
	Log         LogConfig       `yaml:"log" toml:"log"`
}

// HardwareConfig selects the digital I/O backend.
type HardwareConfig struct {
	Backend  string `yaml:"backend" toml:"backend"` // periph, gpiod, rpio or sim
	Chip     string `yaml:"chip" toml:"chip"`       // gpiod character device
	Timer    string `yaml:"timer" toml:"timer"`     // gpio or serial
	LockFile string `yaml:"lock_file" toml:"lock_file"`
}

// EstimatorConfig contains the charge-timing parameters. They are tuned to one
// capacitor/thermistor combination and must be re-derived with the circuit.
type EstimatorConfig struct {
	LineA          int           `yaml:"line_a" toml:"line_a"`
	LineB          int           `yaml:"line_b" toml:"line_b"`
	Trials         int           `yaml:"trials" toml:"trials"`
	DischargeDelay time.Duration `yaml:"discharge_delay" toml:"discharge_delay"`
	ChargeTimeout  time.Duration `yaml:"charge_timeout" toml:"charge_timeout"` // bound on a single busy-poll
}

// Calibration holds the read-only constants of the resistance and temperature
// conversion.
type Calibration struct {
	Adjustment          float64 `yaml:"adjustment" toml:"adjustment"`                     // multiplier on the computed Celsius value
	Beta                float64 `yaml:"beta" toml:"beta"`                                 // thermistor B constant (K)
	ReferenceResistance float64 `yaml:"reference_resistance" toml:"reference_resistance"` // R0 at 25 °C (ohm)
	FitSlope            float64 `yaml:"fit_slope" toml:"fit_slope"`                       // ohm per µs of mean charge time
	FitIntercept        float64 `yaml:"fit_intercept" toml:"fit_intercept"`               // ohm
}

// DisplayConfig contains the LED bar graph and status LED wiring.
type DisplayConfig struct {
	LEDs     []int   `yaml:"leds" toml:"leds"`
	TempLow  float64 `yaml:"temp_low" toml:"temp_low"`
	TempHigh float64 `yaml:"temp_high" toml:"temp_high"`
	Red      int     `yaml:"red" toml:"red"`
	Green    int     `yaml:"green" toml:"green"`
	Blue     int     `yaml:"blue" toml:"blue"`
}

// OccupancyConfig contains the occupancy button settings.
type OccupancyConfig struct {
	Enabled      bool          `yaml:"enabled" toml:"enabled"`
	Button       int           `yaml:"button" toml:"button"`
	Debounce     time.Duration `yaml:"debounce" toml:"debounce"`
	PollInterval time.Duration `yaml:"poll_interval" toml:"poll_interval"`
	Initial      string        `yaml:"initial" toml:"initial"` // occupied or unoccupied
}

// WeatherConfig contains the weather provider settings.
type WeatherConfig struct {
	Provider string        `yaml:"provider" toml:"provider"` // openweathermap, static or none
	URL      string        `yaml:"url" toml:"url"`
	APIKey   string        `yaml:"api_key" toml:"api_key"`
	Lat      float64       `yaml:"lat" toml:"lat"`
	Lon      float64       `yaml:"lon" toml:"lon"`
	Refresh  time.Duration `yaml:"refresh" toml:"refresh"`
	Timeout  time.Duration `yaml:"timeout" toml:"timeout"`
}

// RecordConfig contains the CSV log settings.
type RecordConfig struct {
	Path string `yaml:"path" toml:"path"`
}

// LoopConfig contains the control loop timing.
type LoopConfig struct {
	SampleInterval         time.Duration `yaml:"sample_interval" toml:"sample_interval"`
	MaxConsecutiveFailures int           `yaml:"max_consecutive_failures" toml:"max_consecutive_failures"`
}

// SerialConfig contains the serial charge-timer bridge configuration.
type SerialConfig struct {
	Port     string `yaml:"port" toml:"port"`
	BaudRate int    `yaml:"baud_rate" toml:"baud_rate"`
}

// SimConfig contains the simulated board parameters.
type SimConfig struct {
	TemperatureC float64 `yaml:"temperature_c" toml:"temperature_c"` // thermistor temperature before adjustment
	Jitter       float64 `yaml:"jitter" toml:"jitter"`               // relative charge-time noise
}

// LogConfig contains logging configuration.
type LogConfig struct {
	Level string `yaml:"level" toml:"level"`
	File  string `yaml:"file" toml:"file"`
}

// Default returns a default configuration with the values of the reference
// circuit (330 nF capacitor, 100k NTC thermistor, 3.3 V logic).
func Default() *Config {
	return &Config{
		Hardware: HardwareConfig{
			Backend:  "periph",
			Chip:     "gpiochip0",
			Timer:    "gpio",
			LockFile: filepath.Join(os.TempDir(), "rcthermo.lock"),
		},
		Estimator: EstimatorConfig{
			LineA:          23,
			LineB:          22,
			Trials:         99,
			DischargeDelay: 10 * time.Millisecond,
			ChargeTimeout:  100 * time.Millisecond,
		},
		Calibration: Calibration{
			Adjustment:          0.70,
			Beta:                3000.0,
			ReferenceResistance: 100000.0,
			FitSlope:            6.05,
			FitIntercept:        -939,
		},
		Display: DisplayConfig{
			LEDs:     []int{5, 6, 13, 16, 19, 26, 20, 21},
			TempLow:  15,
			TempHigh: 23,
			Red:      4,
			Green:    17,
			Blue:     27,
		},
		Occupancy: OccupancyConfig{
			Enabled:      false,
			Button:       18,
			Debounce:     50 * time.Millisecond,
			PollInterval: 10 * time.Millisecond,
			Initial:      "occupied",
		},
		Weather: WeatherConfig{
			Provider: "none",
			URL:      "https://api.openweathermap.org/data/2.5/weather",
			Refresh:  time.Hour,
			Timeout:  10 * time.Second,
		},
		Record: RecordConfig{
			Path: "./data_record.csv",
		},
		Loop: LoopConfig{
			SampleInterval:         15 * time.Second,
			MaxConsecutiveFailures: 5,
		},
		Serial: SerialConfig{
			Port:     "/dev/ttyACM0",
			BaudRate: 115200,
		},
		Sim: SimConfig{
			TemperatureC: 28.0,
			Jitter:       0.01,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load loads configuration from a YAML or TOML file, chosen by extension. If the
// file doesn't exist or fields are missing, it uses default values.
func Load(filename string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(filename)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, errors.Wrap(err, "failed to read config file")
	}

	if isTOML(filename) {
		err = toml.Unmarshal(data, cfg)
	} else {
		err = yaml.Unmarshal(data, cfg)
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse config file")
	}

	cfg.ensureDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Save saves the configuration to a YAML or TOML file, chosen by extension.
func (c *Config) Save(filename string) error {
	var data []byte
	if isTOML(filename) {
		var buf bytes.Buffer
		if err := toml.NewEncoder(&buf).Encode(c); err != nil {
			return errors.Wrap(err, "failed to marshal config")
		}
		data = buf.Bytes()
	} else {
		var err error
		data, err = yaml.Marshal(c)
		if err != nil {
			return errors.Wrap(err, "failed to marshal config")
		}
	}

	if err := os.WriteFile(filename, data, 0644); err != nil {
		return errors.Wrap(err, "failed to write config file")
	}

	return nil
}

// Validate checks the invariants the conversion pipeline relies on.
func (c *Config) Validate() error {
	cal := c.Calibration
	switch {
	case cal.Adjustment <= 0:
		return errors.Errorf("calibration.adjustment must be positive, got %v", cal.Adjustment)
	case cal.Beta <= 0:
		return errors.Errorf("calibration.beta must be positive, got %v", cal.Beta)
	case cal.ReferenceResistance <= 0:
		return errors.Errorf("calibration.reference_resistance must be positive, got %v", cal.ReferenceResistance)
	}

	est := c.Estimator
	switch {
	case est.Trials <= 0:
		return errors.Errorf("estimator.trials must be positive, got %d", est.Trials)
	case est.DischargeDelay <= 0:
		return errors.Errorf("estimator.discharge_delay must be positive, got %v", est.DischargeDelay)
	case est.ChargeTimeout <= 0:
		return errors.Errorf("estimator.charge_timeout must be positive, got %v", est.ChargeTimeout)
	case est.LineA == est.LineB:
		return errors.Errorf("estimator.line_a and line_b must differ, both are %d", est.LineA)
	}

	if c.Display.TempHigh <= c.Display.TempLow {
		return errors.Errorf("display.temp_high (%v) must be above temp_low (%v)", c.Display.TempHigh, c.Display.TempLow)
	}

	switch c.Occupancy.Initial {
	case "occupied", "unoccupied":
	default:
		return errors.Errorf("occupancy.initial must be occupied or unoccupied, got %q", c.Occupancy.Initial)
	}

	return nil
}

// ensureDefaults ensures that all required fields have default values if missing.
func (c *Config) ensureDefaults() {
	def := Default()

	if c.Hardware.Backend == "" {
		c.Hardware.Backend = def.Hardware.Backend
	}
	if c.Hardware.Chip == "" {
		c.Hardware.Chip = def.Hardware.Chip
	}
	if c.Hardware.Timer == "" {
		c.Hardware.Timer = def.Hardware.Timer
	}
	if c.Hardware.LockFile == "" {
		c.Hardware.LockFile = def.Hardware.LockFile
	}

	if c.Estimator.Trials == 0 {
		c.Estimator.Trials = def.Estimator.Trials
	}
	if c.Estimator.DischargeDelay == 0 {
		c.Estimator.DischargeDelay = def.Estimator.DischargeDelay
	}
	if c.Estimator.ChargeTimeout == 0 {
		c.Estimator.ChargeTimeout = def.Estimator.ChargeTimeout
	}
	if c.Estimator.LineA == 0 && c.Estimator.LineB == 0 {
		c.Estimator.LineA = def.Estimator.LineA
		c.Estimator.LineB = def.Estimator.LineB
	}

	// A zero slope would make every reading the intercept, so treat it as unset.
	if c.Calibration.FitSlope == 0 {
		c.Calibration.FitSlope = def.Calibration.FitSlope
		if c.Calibration.FitIntercept == 0 {
			c.Calibration.FitIntercept = def.Calibration.FitIntercept
		}
	}
	if c.Calibration.Adjustment == 0 {
		c.Calibration.Adjustment = def.Calibration.Adjustment
	}
	if c.Calibration.Beta == 0 {
		c.Calibration.Beta = def.Calibration.Beta
	}
	if c.Calibration.ReferenceResistance == 0 {
		c.Calibration.ReferenceResistance = def.Calibration.ReferenceResistance
	}

	if len(c.Display.LEDs) == 0 {
		c.Display.LEDs = def.Display.LEDs
	}
	if c.Display.TempLow == 0 && c.Display.TempHigh == 0 {
		c.Display.TempLow = def.Display.TempLow
		c.Display.TempHigh = def.Display.TempHigh
	}
	if c.Display.Red == 0 && c.Display.Green == 0 && c.Display.Blue == 0 {
		c.Display.Red = def.Display.Red
		c.Display.Green = def.Display.Green
		c.Display.Blue = def.Display.Blue
	}

	if c.Occupancy.Button == 0 {
		c.Occupancy.Button = def.Occupancy.Button
	}
	if c.Occupancy.Debounce == 0 {
		c.Occupancy.Debounce = def.Occupancy.Debounce
	}
	if c.Occupancy.PollInterval == 0 {
		c.Occupancy.PollInterval = def.Occupancy.PollInterval
	}
	c.Occupancy.Initial = strings.ToLower(c.Occupancy.Initial)
	if c.Occupancy.Initial == "" {
		c.Occupancy.Initial = def.Occupancy.Initial
	}

	if c.Weather.Provider == "" {
		c.Weather.Provider = def.Weather.Provider
	}
	if c.Weather.URL == "" {
		c.Weather.URL = def.Weather.URL
	}
	if c.Weather.Refresh == 0 {
		c.Weather.Refresh = def.Weather.Refresh
	}
	if c.Weather.Timeout == 0 {
		c.Weather.Timeout = def.Weather.Timeout
	}

	if c.Record.Path == "" {
		c.Record.Path = def.Record.Path
	}

	if c.Loop.SampleInterval == 0 {
		c.Loop.SampleInterval = def.Loop.SampleInterval
	}
	if c.Loop.MaxConsecutiveFailures == 0 {
		c.Loop.MaxConsecutiveFailures = def.Loop.MaxConsecutiveFailures
	}

	if c.Serial.Port == "" {
		c.Serial.Port = def.Serial.Port
	}
	if c.Serial.BaudRate == 0 {
		c.Serial.BaudRate = def.Serial.BaudRate
	}

	if c.Log.Level == "" {
		c.Log.Level = def.Log.Level
	}
}

func isTOML(filename string) bool {
	return strings.EqualFold(filepath.Ext(filename), ".toml")
}
