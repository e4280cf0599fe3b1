package claim

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/flemzord/claimd/internal/store"
)

// StaleThreshold is the age beyond which an in_progress record is presumed
// abandoned by a crashed process.
const StaleThreshold = time.Hour

// RecoverStale forces in_progress sessions whose claim is older than
// StaleThreshold back to active. Runs once at process start, before any
// trigger is served. Returns the number of recovered sessions.
func RecoverStale(ctx context.Context, st store.Store, now time.Time, logger *slog.Logger) (int, error) {
	if logger == nil {
		logger = slog.Default()
	}

	sessions, err := st.ListByStatus(ctx, store.StatusInProgress)
	if err != nil {
		return 0, fmt.Errorf("claim: list in-progress sessions: %w", err)
	}

	recovered := 0
	for _, sess := range sessions {
		// A nil in_progress_since on an in_progress record violates the
		// record invariant; treat it as abandoned too.
		if sess.InProgressSince != nil && now.Sub(*sess.InProgressSince) <= StaleThreshold {
			continue
		}

		active := store.StatusActive
		if err := st.UpdateFields(ctx, sess.ID, store.Fields{
			Status:          &active,
			ClearInProgress: true,
		}); err != nil {
			return recovered, fmt.Errorf("claim: recover session %s: %w", sess.ID, err)
		}

		logger.Warn("recovered stale in-progress session", "session", sess.ID)
		recovered++
	}

	return recovered, nil
}
