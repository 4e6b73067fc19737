package main

import (
	"context"
	"os"
	"path/filepath"

	"github.com/kardianos/service"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/itohio/rcthermo/pkg/config"
)

var svcConfig = &service.Config{
	Name:        "rcthermo",
	DisplayName: "RC Thermometer",
	Description: "Samples an RC-timed thermistor and logs the temperature",
}

// exit is replaced in tests.
var exit = os.Exit

// serviceWrapper runs the loop under the OS service manager.
type serviceWrapper struct {
	cfg    *config.Config
	cancel context.CancelFunc
	done   chan error
}

// Start takes the lock and opens the hardware before returning, so the service
// manager sees setup failures. A loop that fails later exits the process and
// leaves restarting to the manager.
func (sw *serviceWrapper) Start(s service.Service) error {
	sess, release, err := startLoop(sw.cfg)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	sw.cancel = cancel
	sw.done = make(chan error, 1)
	go func() {
		err := sess.run(ctx)
		release()
		if err != nil && ctx.Err() == nil {
			log.WithError(err).Error("loop failed")
			exit(1)
		}
		sw.done <- err
	}()
	return nil
}

func (sw *serviceWrapper) Stop(s service.Service) error {
	log.Info("stopping the service...")
	if sw.cancel == nil {
		return nil
	}
	sw.cancel()
	return <-sw.done
}

func newService() (service.Service, error) {
	abs, err := filepath.Abs(configPath)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to get absolute path to config at '%s'", configPath)
	}
	c := *svcConfig
	c.Arguments = []string{"--config", abs, "service", "run"}
	return service.New(&serviceWrapper{cfg: cfg}, &c)
}

func newServiceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "service",
		Short: "Manage the system service",
	}

	control := func(action string) *cobra.Command {
		return &cobra.Command{
			Use:   action,
			Short: action + " the " + service.ChosenSystem().String() + " service",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				s, err := newService()
				if err != nil {
					return err
				}
				if err := service.Control(s, action); err != nil {
					return err
				}
				success("service %s: %s", svcConfig.Name, action)
				return nil
			},
		}
	}

	cmd.AddCommand(
		control("install"),
		control("uninstall"),
		control("start"),
		control("stop"),
		&cobra.Command{
			Use:    "run",
			Short:  "Run under the service manager",
			Hidden: true,
			RunE: func(cmd *cobra.Command, args []string) error {
				s, err := newService()
				if err != nil {
					return err
				}
				return s.Run()
			},
		},
		&cobra.Command{
			Use:   "status",
			Short: "Show the service status",
			RunE: func(cmd *cobra.Command, args []string) error {
				s, err := newService()
				if err != nil {
					return err
				}
				st, err := s.Status()
				if err != nil {
					return err
				}
				switch st {
				case service.StatusRunning:
					field("status", "running")
				case service.StatusStopped:
					field("status", "stopped")
				default:
					field("status", "unknown")
				}
				return nil
			},
		},
	)
	return cmd
}
