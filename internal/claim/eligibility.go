package claim

import "time"

// Eligible reports whether a session may be processed now. A session that
// never succeeded is always eligible; otherwise the cooldown must have
// fully elapsed since the last success. Pure, no I/O.
func Eligible(lastSuccess *time.Time, now time.Time, cooldown time.Duration) bool {
	if lastSuccess == nil {
		return true
	}
	return now.Sub(*lastSuccess) >= cooldown
}
