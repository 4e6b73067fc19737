// Command thermo reads an RC-timed thermistor on a single-board computer,
// shows the temperature on an LED bar graph and logs one row per minute.
package main

import (
	"io"
	"os"

	"github.com/fatih/color"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/itohio/rcthermo/pkg/config"
	"github.com/itohio/rcthermo/pkg/logging"
)

var (
	configPath string
	logLevel   string
	backend    string
	noColor    bool

	cfg       *config.Config
	logCloser io.Closer
)

var rootCmd = &cobra.Command{
	Use:   "thermo",
	Short: "RC thermistor thermometer with LED display and CSV logging",
	Long: `thermo measures temperature by timing how long a capacitor takes to charge
through an NTC thermistor on two GPIO lines.

Run 'thermo <command> --help' for details on each command.`,
	SilenceErrors: true,
	SilenceUsage:  true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if noColor {
			color.NoColor = true
		}

		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}
		if logLevel != "" {
			cfg.Log.Level = logLevel
		}
		if backend != "" {
			cfg.Hardware.Backend = backend
		}

		logCloser, err = logging.Configure(cfg.Log)
		return err
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logCloser != nil {
			logCloser.Close()
		}
	},
}

// updateConfig applies edit to the config file at path as loaded from disk, so
// flag overrides such as --backend never end up in the file. The in-memory
// config gets the same edit.
func updateConfig(path string, edit func(*config.Config)) error {
	onDisk, err := config.Load(path)
	if err != nil {
		return err
	}
	edit(onDisk)
	if err := onDisk.Validate(); err != nil {
		return err
	}
	if err := onDisk.Save(path); err != nil {
		return err
	}
	if cfg != nil {
		edit(cfg)
	}
	return nil
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "config.yaml", "configuration file (.yaml or .toml)")
	rootCmd.PersistentFlags().StringVarP(&logLevel, "log-level", "v", "", "log level override (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVarP(&backend, "backend", "b", "", "gpio backend override (periph, gpiod, rpio, sim)")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")

	rootCmd.AddCommand(
		newRunCmd(),
		newReadCmd(),
		newCalibrateCmd(),
		newViewCmd(),
		newServiceCmd(),
		newPortsCmd(),
	)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fail(err)
		log.WithError(err).Debug("exiting")
		os.Exit(1)
	}
}
