package main

import (
	"context"
	"path/filepath"

	"github.com/nightlyone/lockfile"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/itohio/rcthermo/pkg/config"
)

func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the sampling loop until interrupted",
		Example: `  thermo run
  thermo run --backend gpiod -c /etc/rcthermo.yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext()
			defer cancel()
			return runLoop(ctx, cfg)
		},
	}
}

// lock takes the PID lock that guarantees exclusive use of the GPIO lines.
func lock(path string) (func(), error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid lock file %s", path)
	}
	lf, err := lockfile.New(abs)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create lock")
	}
	if err := lf.TryLock(); err != nil {
		if owner, oerr := lf.GetOwner(); oerr == nil {
			return nil, errors.Wrapf(err, "already running as pid %d", owner.Pid)
		}
		return nil, errors.Wrapf(err, "failed to lock %s", abs)
	}
	return func() { lf.Unlock() }, nil
}

// startLoop takes the PID lock and opens the hardware. The caller runs the
// returned session and calls release once it has stopped.
func startLoop(cfg *config.Config) (*session, func(), error) {
	unlock, err := lock(cfg.Hardware.LockFile)
	if err != nil {
		return nil, nil, err
	}

	r, err := openRig(cfg)
	if err != nil {
		unlock()
		return nil, nil, err
	}

	s, err := newSession(cfg, r)
	if err != nil {
		r.Close()
		unlock()
		return nil, nil, err
	}

	release := func() {
		r.Close()
		unlock()
	}
	return s, release, nil
}

func runLoop(ctx context.Context, cfg *config.Config) error {
	s, release, err := startLoop(cfg)
	if err != nil {
		return err
	}
	defer release()
	return s.run(ctx)
}
