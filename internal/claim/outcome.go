// Package claim implements the session lifecycle engine: the eligibility
// gate, the per-account processor with its deadline race, the sequential
// batch runner, and the single-flight run guard.
package claim

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"time"
)

// Outcome classifies the result of processing one account.
type Outcome string

const (
	// OutcomeSuccess means the bonus was claimed; last_success_at advances.
	OutcomeSuccess Outcome = "success"

	// OutcomeUnavailable means the claim control was absent from the
	// remote reply. Soft result: the session stays retryable.
	OutcomeUnavailable Outcome = "unavailable"

	// OutcomeTimeout means the per-account deadline expired.
	OutcomeTimeout Outcome = "timeout"

	// OutcomeFloodWait means the remote side imposed a wait. The processor
	// sleeps it out before releasing the session.
	OutcomeFloodWait Outcome = "flood_wait"

	// OutcomeCanceled means the run was cancelled mid-claim, typically by a
	// shutdown signal. The session is released untouched.
	OutcomeCanceled Outcome = "canceled"

	// OutcomeError is terminal for the session until an external reset.
	OutcomeError Outcome = "error"
)

// Sentinel errors for claim operations.
var (
	// ErrUnavailable indicates the remote reply carried no claim control.
	ErrUnavailable = errors.New("claim: no claim control in reply")

	// ErrAlreadyRunning indicates a batch run is in flight and the trigger
	// was rejected. This is a defined outcome, not a failure.
	ErrAlreadyRunning = errors.New("claim: run already in progress")
)

// FloodWaitError carries a remote-imposed backoff duration.
type FloodWaitError struct {
	Wait time.Duration
}

func (e *FloodWaitError) Error() string {
	return fmt.Sprintf("claim: flood wait %s", e.Wait)
}

// floodPattern matches Telegram-style FLOOD_WAIT_n error descriptions.
var floodPattern = regexp.MustCompile(`FLOOD_WAIT_(\d+)`)

// ParseFloodWait extracts the wait duration from a FLOOD_WAIT_n message.
func ParseFloodWait(msg string) (time.Duration, bool) {
	m := floodPattern.FindStringSubmatch(msg)
	if m == nil {
		return 0, false
	}
	secs, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return time.Duration(secs) * time.Second, true
}

// AsFloodWait reports whether err is a flood wait, checking the typed error
// first and falling back to message parsing for errors that cross an
// untyped boundary.
func AsFloodWait(err error) (time.Duration, bool) {
	var fw *FloodWaitError
	if errors.As(err, &fw) {
		return fw.Wait, true
	}
	if err != nil {
		return ParseFloodWait(err.Error())
	}
	return 0, false
}
