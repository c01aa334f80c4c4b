// Package watchdog scans stored switches, expires those whose heartbeat
// deadline has passed and pays out their beneficiaries. Expiry is
// permissionless, so any number of watchdogs may run against the same store.
package watchdog

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/inconshreveable/log15"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/bitfsorg/deadswitch-go/deadman"
	"github.com/bitfsorg/deadswitch-go/ledger"
	"github.com/bitfsorg/deadswitch-go/processor"
	"github.com/bitfsorg/deadswitch-go/store"
)

// Config controls scan cadence, retries and submission pacing.
type Config struct {
	Interval      time.Duration
	MaxRetries    int
	RetryBackoff  time.Duration // multiplied by the attempt number
	RatePerSecond float64       // <= 0 disables pacing
	Concurrency   int
	// SweepExpired also pays out switches that were already expired before
	// this scan, e.g. by another watchdog that stopped midway.
	SweepExpired bool
}

// DefaultConfig returns the settings used by the deadman watch command.
func DefaultConfig() Config {
	return Config{
		Interval:      time.Minute,
		MaxRetries:    3,
		RetryBackoff:  2 * time.Second,
		RatePerSecond: 10,
		Concurrency:   4,
	}
}

// Report summarizes one scan.
type Report struct {
	Total     int // records seen
	Active    int
	Expired   int // active switches past their deadline
	Triggered int // expiries this watchdog committed
	Payouts   int
	Failures  int
}

// Watchdog runs scans against a processor and store.
type Watchdog struct {
	proc    *processor.Processor
	store   store.SwitchStore
	clock   ledger.Clock
	cfg     Config
	limiter *rate.Limiter
	log     log15.Logger
}

// New creates a Watchdog. A nil logger discards output.
func New(proc *processor.Processor, st store.SwitchStore, clock ledger.Clock, cfg Config, logger log15.Logger) *Watchdog {
	if logger == nil {
		logger = log15.New()
		logger.SetHandler(log15.DiscardHandler())
	}
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultConfig().Interval
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 1
	}
	limiter := rate.NewLimiter(rate.Inf, 1)
	if cfg.RatePerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSecond), 1)
	}
	return &Watchdog{
		proc:    proc,
		store:   st,
		clock:   clock,
		cfg:     cfg,
		limiter: limiter,
		log:     logger.New("module", "watchdog"),
	}
}

// Run scans every Interval until ctx is canceled.
func (w *Watchdog) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.cfg.Interval)
	defer ticker.Stop()
	for {
		if _, err := w.Scan(ctx); err != nil && ctx.Err() == nil {
			w.log.Error("scan failed", "err", err)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Scan makes one pass over every stored switch.
func (w *Watchdog) Scan(ctx context.Context) (Report, error) {
	var rep Report
	switches, err := w.store.List()
	if err != nil {
		return rep, fmt.Errorf("watchdog: list switches: %w", err)
	}
	rep.Total = len(switches)
	now := w.clock.Now()

	for _, s := range switches {
		if err := ctx.Err(); err != nil {
			return rep, err
		}
		log := w.log.New("owner", s.Owner, "switch", s.SwitchID)

		switch s.Status {
		case deadman.StatusActive:
			rep.Active++
			if !deadman.CanExpire(s, now) {
				log.Debug("switch active", "remaining", s.HeartbeatDeadline-now)
				continue
			}
			rep.Expired++
			won, err := w.expire(ctx, s, log)
			if err != nil {
				rep.Failures++
				continue
			}
			if !won {
				continue
			}
			rep.Triggered++
		case deadman.StatusExpired:
			if !w.cfg.SweepExpired {
				continue
			}
		default:
			continue
		}

		ok, failed := w.payout(ctx, s, log)
		rep.Payouts += ok
		rep.Failures += failed
	}

	w.log.Info("scan complete", "total", rep.Total, "active", rep.Active, "expired", rep.Expired,
		"triggered", rep.Triggered, "payouts", rep.Payouts, "failures", rep.Failures)
	return rep, nil
}

// retryable reports whether err may succeed on resubmission. Errors raised by
// the switch rules are final.
func retryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	return deadman.Classify(err) == deadman.ClassUnknown
}

// submit paces and retries one operation.
func (w *Watchdog) submit(ctx context.Context, fn func() error) error {
	var err error
	for attempt := 1; attempt <= w.cfg.MaxRetries; attempt++ {
		if werr := w.limiter.Wait(ctx); werr != nil {
			return werr
		}
		if err = fn(); err == nil || !retryable(err) {
			return err
		}
		if attempt == w.cfg.MaxRetries {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(w.cfg.RetryBackoff * time.Duration(attempt)):
		}
	}
	return err
}

// expire triggers expiry and reports whether this call committed it.
func (w *Watchdog) expire(ctx context.Context, s *deadman.Switch, log log15.Logger) (bool, error) {
	err := w.submit(ctx, func() error {
		_, err := w.proc.Expire(ctx, s.Owner, s.SwitchID)
		return err
	})
	switch {
	case err == nil:
		log.Info("expiry triggered", "deadline", s.HeartbeatDeadline)
		s.Status = deadman.StatusExpired
		return true, nil
	case errors.Is(err, deadman.ErrSwitchNotActive):
		log.Debug("switch already left active state")
		return false, nil
	default:
		log.Error("failed to trigger expiry", "err", err)
		return false, err
	}
}

// payout distributes to every beneficiary concurrently and returns the number
// of payouts made and failed. A drained escrow is not a failure.
func (w *Watchdog) payout(ctx context.Context, s *deadman.Switch, log log15.Logger) (int, int) {
	var ok, failed atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(w.cfg.Concurrency)

	run := func(desc string, fn func() (*processor.Receipt, error)) {
		g.Go(func() error {
			var rc *processor.Receipt
			err := w.submit(gctx, func() error {
				var err error
				rc, err = fn()
				return err
			})
			switch {
			case err == nil:
				ok.Add(1)
				log.Info("payout sent", "to", rc.Recipient, "asset", rc.Asset, "amount", rc.Amount)
			case errors.Is(err, deadman.ErrInsufficientFunds):
				log.Debug("nothing to pay", "payout", desc)
			default:
				failed.Add(1)
				log.Error("payout failed", "payout", desc, "err", err)
			}
			return nil
		})
	}

	switch s.Model {
	case deadman.ModelProportional:
		for _, b := range s.Beneficiaries {
			run(b.Address.String(), func() (*processor.Receipt, error) {
				return w.proc.Distribute(gctx, s.Owner, s.SwitchID, b.Address, s.TokenType)
			})
		}
	case deadman.ModelAllocation:
		for _, po := range s.RemainingPayouts() {
			run(fmt.Sprintf("%s %s %d", po.Beneficiary, po.Asset, po.Amount), func() (*processor.Receipt, error) {
				return w.proc.DistributeAsset(gctx, s.Owner, s.SwitchID, po.Beneficiary, po.Asset, po.Amount)
			})
		}
	}
	_ = g.Wait()
	return int(ok.Load()), int(failed.Load())
}
