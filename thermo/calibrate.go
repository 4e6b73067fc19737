package main

import (
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/itohio/rcthermo/pkg/config"
	"github.com/itohio/rcthermo/pkg/reference"
)

func newCalibrateCmd() *cobra.Command {
	var (
		refC    float64
		bme280  bool
		i2cBus  string
		i2cAddr uint16
		samples int
		write   bool
	)

	cmd := &cobra.Command{
		Use:   "calibrate",
		Short: "Compute the adjustment that matches a reference thermometer",
		Long: `calibrate takes a few thermistor samples, compares their mean with a
reference temperature and prints the adjustment that makes them agree.
The reference is either typed in with --reference or read from a BME280.`,
		Example: `  thermo calibrate --reference 21.4
  thermo calibrate --bme280 --samples 5 --write`,
		RunE: func(cmd *cobra.Command, args []string) error {
			refSet := cmd.Flags().Changed("reference")
			if refSet == bme280 {
				return errors.New("exactly one of --reference or --bme280 is required")
			}

			ctx, cancel := signalContext()
			defer cancel()

			var ref reference.Thermometer = reference.Fixed(refC)
			if bme280 {
				dev, err := reference.OpenBME280(i2cBus, i2cAddr)
				if err != nil {
					return err
				}
				defer dev.Close()
				ref = dev
			}

			r, err := openRig(cfg)
			if err != nil {
				return err
			}
			defer r.Close()

			res, err := reference.Calibrate(ctx, r.reader, ref, cfg.Calibration, samples)
			if err != nil {
				return err
			}

			field("samples", "%d", res.Samples)
			field("thermistor", "%.2f °C", res.Reading)
			field("reference", "%.2f °C", res.Reference)
			field("adjustment", "%.4f (was %.4f)", res.Adjustment, cfg.Calibration.Adjustment)

			if !write {
				return nil
			}
			if err := saveAdjustment(configPath, res.Adjustment); err != nil {
				return err
			}
			success("saved adjustment to %s", configPath)
			return nil
		},
	}

	cmd.Flags().Float64Var(&refC, "reference", 0, "reference temperature in °C")
	cmd.Flags().BoolVar(&bme280, "bme280", false, "read the reference from a BME280 over I²C")
	cmd.Flags().StringVar(&i2cBus, "i2c-bus", "", "I²C bus name (default: first bus)")
	cmd.Flags().Uint16Var(&i2cAddr, "i2c-addr", reference.DefaultBME280Address, "BME280 I²C address")
	cmd.Flags().IntVarP(&samples, "samples", "n", 3, "number of paired samples")
	cmd.Flags().BoolVarP(&write, "write", "w", false, "write the new adjustment to the config file")
	return cmd
}

func saveAdjustment(path string, adj float64) error {
	return updateConfig(path, func(c *config.Config) {
		c.Calibration.Adjustment = adj
	})
}
