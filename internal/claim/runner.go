package claim

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/flemzord/claimd/internal/store"
)

const (
	// DefaultCooldown is the minimum gap between successful claims per
	// account: once per day.
	DefaultCooldown = 24 * time.Hour

	// DefaultAccountDelay paces outbound load between accounts.
	DefaultAccountDelay = 10 * time.Second
)

// Runner iterates eligible sessions sequentially, one processor invocation
// at a time, with inter-account pacing. Triggered runs share a single
// Guard so batch executions never overlap.
type Runner struct {
	store    store.Store
	proc     *Processor
	guard    *Guard
	cooldown time.Duration
	delay    time.Duration
	metrics  *Metrics
	logger   *slog.Logger

	// Injectable for tests.
	now   func() time.Time
	sleep func(context.Context, time.Duration)
}

// NewRunner creates a Runner. Zero cooldown and delay fall back to the
// package defaults.
func NewRunner(st store.Store, proc *Processor, guard *Guard, cooldown, delay time.Duration, metrics *Metrics, logger *slog.Logger) *Runner {
	if cooldown <= 0 {
		cooldown = DefaultCooldown
	}
	if delay <= 0 {
		delay = DefaultAccountDelay
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		store:    st,
		proc:     proc,
		guard:    guard,
		cooldown: cooldown,
		delay:    delay,
		metrics:  metrics,
		logger:   logger,
		now:      time.Now,
		sleep:    sleepCtx,
	}
}

// Trigger requests a batch run. If no run is in flight the guard is taken,
// RunOnce starts asynchronously, and the guard is released when it settles
// regardless of outcome. Returns ErrAlreadyRunning when rejected.
//
// ctx must be the process-lifetime context, not a per-request one: the run
// outlives the trigger call.
func (r *Runner) Trigger(ctx context.Context) error {
	if !r.guard.TryAcquire() {
		return ErrAlreadyRunning
	}

	go func() {
		defer r.guard.Release()
		if err := r.RunOnce(ctx); err != nil {
			r.logger.Error("batch run failed", "error", err)
		}
	}()

	return nil
}

// RunOnce walks all active sessions in ascending ID order, processing each
// eligible one completely (outcome plus pacing delay) before the next.
// Failure to enumerate sessions aborts the whole run; per-account failures
// never do.
func (r *Runner) RunOnce(ctx context.Context) error {
	start := r.now()
	if r.metrics != nil {
		r.metrics.RunStarted()
		defer func() { r.metrics.RunFinished(time.Since(start)) }()
	}

	sessions, err := r.store.ListByStatus(ctx, store.StatusActive)
	if err != nil {
		return fmt.Errorf("claim: enumerate sessions: %w", err)
	}

	r.logger.Info("batch run started", "sessions", len(sessions))

	for _, sess := range sessions {
		if ctx.Err() != nil {
			r.logger.Info("batch run cancelled")
			return ctx.Err()
		}

		if !Eligible(sess.LastSuccessAt, r.now(), r.cooldown) {
			r.logger.Debug("session on cooldown, skipping", "session", sess.ID)
			continue
		}

		outcome := r.proc.Process(ctx, sess)
		r.logger.Info("session processed", "session", sess.ID, "outcome", string(outcome))

		// Fixed pacing regardless of outcome.
		r.sleep(ctx, r.delay)
	}

	r.logger.Info("batch run finished", "elapsed", time.Since(start).Truncate(time.Millisecond))
	return nil
}
