package claim

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/flemzord/claimd/internal/store"
)

const (
	// DefaultAccountTimeout bounds one account's remote interaction.
	DefaultAccountTimeout = 30 * time.Second

	// floodWaitMargin is added on top of the remote-specified wait.
	floodWaitMargin = 5 * time.Second
)

// Processor executes the claim for one session under a deadline and drives
// the resulting state transition. All per-account failures are contained
// here; Process never returns an error to the runner.
type Processor struct {
	store   store.Store
	claimer Claimer
	timeout time.Duration
	metrics *Metrics
	logger  *slog.Logger

	// Injectable for tests.
	now   func() time.Time
	sleep func(context.Context, time.Duration)
}

// NewProcessor creates a Processor. A zero timeout falls back to
// DefaultAccountTimeout.
func NewProcessor(st store.Store, claimer Claimer, timeout time.Duration, metrics *Metrics, logger *slog.Logger) *Processor {
	if timeout <= 0 {
		timeout = DefaultAccountTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Processor{
		store:   st,
		claimer: claimer,
		timeout: timeout,
		metrics: metrics,
		logger:  logger,
		now:     time.Now,
		sleep:   sleepCtx,
	}
}

// Process claims the bonus for one session and persists the outcome.
// Accounts are identified in logs by record ID only; the credential payload
// never appears in any attribute.
func (p *Processor) Process(ctx context.Context, sess store.Session) Outcome {
	p.markInProgress(ctx, sess.ID)

	cctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	// Deadline race: the claim work runs with the deadline context and is
	// also raced against it, so a remote session that ignores cancellation
	// cannot stall the batch. A timed-out account's remote call may still
	// finish in the background; idempotent retry covers it.
	done := make(chan error, 1)
	go func() {
		done <- p.claim(cctx, sess.Credential)
	}()

	var err error
	select {
	case err = <-done:
	case <-cctx.Done():
		err = cctx.Err()
	}

	outcome := p.settle(ctx, sess.ID, err)
	if p.metrics != nil {
		p.metrics.RecordOutcome(outcome)
	}
	return outcome
}

// claim establishes the remote session, performs the claim, and always
// tears the session down. Teardown failures never override the claim
// result.
func (p *Processor) claim(ctx context.Context, credential string) error {
	remote, err := p.claimer.Establish(ctx, credential)
	if err != nil {
		return err
	}
	defer func() { _ = remote.Close() }()

	return remote.Claim(ctx)
}

// settle classifies the claim error and applies the state transition.
// ctx here is the run context, not the expired per-account one, so the
// release update still goes through after a timeout.
func (p *Processor) settle(ctx context.Context, id string, err error) Outcome {
	// Settlement writes go on a detached context: releasing the record is
	// the last act for this account and must succeed even when the run
	// itself was just cancelled.
	sctx := context.WithoutCancel(ctx)

	switch {
	case err == nil:
		now := p.now().UTC()
		active := store.StatusActive
		p.update(sctx, id, store.Fields{
			Status:          &active,
			LastSuccessAt:   &now,
			ClearInProgress: true,
		})
		p.logger.Info("bonus claimed", "session", id)
		return OutcomeSuccess

	case errors.Is(err, ErrUnavailable):
		p.release(sctx, id)
		p.logger.Info("claim control unavailable, will retry next cycle", "session", id)
		return OutcomeUnavailable

	case errors.Is(err, context.DeadlineExceeded):
		p.release(sctx, id)
		p.logger.Warn("claim timed out", "session", id, "timeout", p.timeout)
		return OutcomeTimeout

	case errors.Is(err, context.Canceled):
		// Shutdown mid-claim is not an account failure. Release the session
		// so the next run picks it up again.
		p.release(sctx, id)
		p.logger.Info("run cancelled mid-claim, session released", "session", id)
		return OutcomeCanceled

	default:
		if wait, ok := AsFloodWait(err); ok {
			// Sleep out the remote-imposed wait before returning control:
			// the remote side is rate-limiting the whole credential pool,
			// so the next account must not fire into the same window.
			total := wait + floodWaitMargin
			p.logger.Warn("flood wait imposed", "session", id, "wait", total)
			p.sleep(ctx, total)
			p.release(sctx, id)
			return OutcomeFloodWait
		}

		reason := err.Error()
		errStatus := store.StatusError
		p.update(sctx, id, store.Fields{
			Status:          &errStatus,
			ErrorReason:     &reason,
			ClearInProgress: true,
		})
		p.logger.Error("claim failed", "session", id, "error", err)
		return OutcomeError
	}
}

// markInProgress claims the record before the remote interaction.
// Persisting this transition is best-effort: a failure only weakens crash
// recovery, not the correctness of this run.
func (p *Processor) markInProgress(ctx context.Context, id string) {
	now := p.now().UTC()
	inProgress := store.StatusInProgress
	if err := p.store.UpdateFields(ctx, id, store.Fields{
		Status:          &inProgress,
		InProgressSince: &now,
	}); err != nil {
		p.logger.Warn("failed to mark session in progress", "session", id, "error", err)
	}
}

// release returns the session to active with no last_success_at change.
func (p *Processor) release(ctx context.Context, id string) {
	active := store.StatusActive
	p.update(ctx, id, store.Fields{
		Status:          &active,
		ClearInProgress: true,
	})
}

func (p *Processor) update(ctx context.Context, id string, fields store.Fields) {
	if err := p.store.UpdateFields(ctx, id, fields); err != nil {
		p.logger.Error("failed to persist session state", "session", id, "error", err)
	}
}

// sleepCtx sleeps for d or until ctx is cancelled, whichever comes first.
func sleepCtx(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
