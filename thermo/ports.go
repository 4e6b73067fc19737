package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/itohio/rcthermo/pkg/bridge"
)

func newPortsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ports",
		Short: "List serial ports for the charge-timer bridge",
		RunE: func(cmd *cobra.Command, args []string) error {
			ports, err := bridge.Ports()
			if err != nil {
				return err
			}
			if len(ports) == 0 {
				colorMuted.Println("no serial ports found")
				return nil
			}
			for _, p := range ports {
				marker := " "
				if p.Name == cfg.Serial.Port {
					marker = "*"
				}
				fmt.Printf("%s ", marker)
				colorValue.Println(p.Name)
			}
			return nil
		},
	}
}
