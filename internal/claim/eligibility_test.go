package claim

import (
	"testing"
	"time"
)

func TestEligible_NeverRun(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	if !Eligible(nil, now, 24*time.Hour) {
		t.Fatal("session with no last success should always be eligible")
	}
	if !Eligible(nil, now.Add(-10*365*24*time.Hour), 24*time.Hour) {
		t.Fatal("eligibility of a never-run session must not depend on now")
	}
}

func TestEligible_Cooldown(t *testing.T) {
	t.Parallel()

	last := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	cooldown := 24 * time.Hour

	tests := []struct {
		name string
		now  time.Time
		want bool
	}{
		{"immediately after success", last.Add(time.Second), false},
		{"just before cooldown", last.Add(cooldown - time.Minute), false},
		{"exactly at cooldown", last.Add(cooldown), true},
		{"after cooldown", last.Add(cooldown + time.Hour), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Eligible(&last, tt.now, cooldown); got != tt.want {
				t.Fatalf("Eligible(%v) = %v, want %v", tt.now, got, tt.want)
			}
		})
	}
}

// Once eligible, a session stays eligible for every later now.
func TestEligible_MonotonicInTime(t *testing.T) {
	t.Parallel()

	last := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	cooldown := 90 * time.Minute

	eligibleAt := last.Add(cooldown)
	for i := 0; i < 48; i++ {
		now := eligibleAt.Add(time.Duration(i) * time.Hour)
		if !Eligible(&last, now, cooldown) {
			t.Fatalf("eligibility regressed at %v", now)
		}
	}
}
