package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/bitfsorg/deadswitch-go/ledger"
	"github.com/bitfsorg/deadswitch-go/watchdog"
)

func newWatchCommand() *cobra.Command {
	var (
		once  bool
		sweep bool
	)
	cmd := &cobra.Command{
		Use:   "watch [options]",
		Short: "Expires overdue switches and pays their beneficiaries",
		Long: `
Scans the store every scaninterval, expires every switch whose deadline has
passed and distributes its escrow. Runs until interrupted.

$ deadman watch
$ deadman watch --once --sweep

`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv()
			if err != nil {
				return err
			}
			defer e.Close()

			cfg := watchdog.DefaultConfig()
			cfg.Interval = e.cfg.ScanInterval
			cfg.MaxRetries = e.cfg.MaxRetries
			cfg.RatePerSecond = e.cfg.RateLimit
			cfg.Concurrency = e.cfg.Concurrency
			cfg.SweepExpired = sweep
			wd := watchdog.New(e.proc, e.store, ledger.SystemClock{}, cfg, e.log)

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if once {
				rep, err := wd.Scan(ctx)
				if err != nil {
					return err
				}
				color.Green("scanned %d switches: %d active, %d overdue, %d expired by us, %d payouts, %d failures",
					rep.Total, rep.Active, rep.Expired, rep.Triggered, rep.Payouts, rep.Failures)
				return nil
			}

			color.Blue("watching %s every %s", e.cfg.DataDir, cfg.Interval)
			if err := wd.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			color.Yellow("stopped")
			return nil
		},
	}
	cmd.Flags().BoolVar(&once, "once", false, "run a single scan and exit")
	cmd.Flags().BoolVar(&sweep, "sweep", false, "also pay out switches expired before this run")
	return cmd
}
