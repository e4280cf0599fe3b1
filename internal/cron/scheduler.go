// Package cron schedules self-triggered batch runs. Scheduling is
// best-effort: single-flight protection lives in the claim run guard, so a
// tick that lands during an active run is a logged rejection, not an error.
package cron

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/flemzord/claimd/internal/claim"
	"github.com/robfig/cron/v3"
)

// Runner is the subset of the claim runner the scheduler needs.
type Runner interface {
	Trigger(ctx context.Context) error
}

// Scheduler fires the runner on a cron expression.
type Scheduler struct {
	cron   *cron.Cron
	logger *slog.Logger
}

// NewScheduler creates a scheduler that triggers runner per expr on every
// tick. ctx is the process-lifetime context handed to triggered runs.
func NewScheduler(ctx context.Context, runner Runner, expr string, logger *slog.Logger) (*Scheduler, error) {
	if logger == nil {
		logger = slog.Default()
	}

	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	c := cron.New(cron.WithParser(parser))

	_, err := c.AddFunc(expr, func() {
		switch err := runner.Trigger(ctx); {
		case errors.Is(err, claim.ErrAlreadyRunning):
			logger.Warn("cron: run still in flight, skipping tick")
		case err != nil:
			logger.Error("cron: trigger failed", "error", err)
		default:
			logger.Info("cron: run triggered")
		}
	})
	if err != nil {
		return nil, fmt.Errorf("cron: invalid schedule %q: %w", expr, err)
	}

	return &Scheduler{cron: c, logger: logger}, nil
}

// Start begins firing ticks.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info("cron: scheduler started")
}

// Stop shuts the scheduler down, waiting for an in-flight tick callback.
func (s *Scheduler) Stop(_ context.Context) error {
	<-s.cron.Stop().Done()
	s.logger.Info("cron: scheduler stopped")
	return nil
}
