package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newReadCmd() *cobra.Command {
	var count int

	cmd := &cobra.Command{
		Use:   "read",
		Short: "Take temperature samples and print them",
		Example: `  thermo read
  thermo read -n 5 --backend sim`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext()
			defer cancel()

			r, err := openRig(cfg)
			if err != nil {
				return err
			}
			defer r.Close()

			for i := 0; i < count; i++ {
				s, err := r.reader.Read(ctx)
				if err != nil {
					return err
				}
				if count > 1 {
					colorMuted.Printf("sample %d/%d\n", i+1, count)
				}
				field("time", "%s", s.Timestamp.Format("2006-01-02 15:04:05"))
				field("charge time", "%.1f µs", float64(s.ChargeTime.Nanoseconds())/1000)
				field("resistance", "%.0f Ω", s.Resistance)
				field("temperature", "%.2f °C", s.Temperature)
				fmt.Println()
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&count, "count", "n", 1, "number of samples")
	return cmd
}
