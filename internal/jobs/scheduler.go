// Package jobs runs periodic background work next to the HTTP server.
package jobs

import (
	"context" // Sweep deadline
	"time"    // Timeouts

	"digipiggy/internal/service" // Sweep result type

	"github.com/robfig/cron/v3"  // Cron scheduling
	"github.com/sirupsen/logrus" // Logging
)

// Sweeper reconciles every wallet against its ledger
type Sweeper interface {
	ReconcileAll(ctx context.Context) (*service.SweepResult, error)
}

// Scheduler runs the ledger sweep on a cron schedule. Overlapping runs are
// skipped and a panicking run does not stop the scheduler.
type Scheduler struct {
	cron    *cron.Cron
	sweeper Sweeper
	timeout time.Duration
}

// NewScheduler parses schedule ("@every 1h", "0 3 * * *") and registers the sweep
func NewScheduler(schedule string, sweeper Sweeper, timeout time.Duration) (*Scheduler, error) {
	logger := cron.PrintfLogger(logrus.StandardLogger())
	s := &Scheduler{
		cron: cron.New(cron.WithChain(
			cron.Recover(logger),
			cron.SkipIfStillRunning(logger),
		)),
		sweeper: sweeper,
		timeout: timeout,
	}
	if _, err := s.cron.AddFunc(schedule, s.RunOnce); err != nil {
		return nil, err
	}
	return s, nil
}

// Start begins running the schedule in its own goroutine
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop halts the schedule and waits for a running sweep to finish or ctx to end
func (s *Scheduler) Stop(ctx context.Context) {
	select {
	case <-s.cron.Stop().Done():
	case <-ctx.Done():
		logrus.Warn("Reconciliation sweep still running at shutdown")
	}
}

// RunOnce performs a single sweep and logs its outcome
func (s *Scheduler) RunOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	start := time.Now()
	result, err := s.sweeper.ReconcileAll(ctx)
	if err != nil {
		logrus.WithError(err).Error("Reconciliation sweep failed")
		return
	}
	entry := logrus.WithFields(logrus.Fields{
		"checked":      result.Checked,           // Wallets compared
		"inconsistent": len(result.Inconsistent), // Mismatches found
		"duration":     time.Since(start).String(),
	})
	if len(result.Inconsistent) > 0 {
		entry.WithField("user_ids", result.Inconsistent).Error("Reconciliation sweep found inconsistent wallets")
		return
	}
	entry.Info("Reconciliation sweep completed")
}
