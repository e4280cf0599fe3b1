package claim

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/flemzord/claimd/internal/store"
)

// eventClaimer records an interleaved event log of claims and pacing
// sleeps, to verify strict per-account sequencing.
type eventClaimer struct {
	mu     sync.Mutex
	events []string
}

func (e *eventClaimer) Establish(_ context.Context, credential string) (RemoteSession, error) {
	return &eventSession{log: e, credential: credential}, nil
}

func (e *eventClaimer) record(ev string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, ev)
}

func (e *eventClaimer) recorded() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.events...)
}

type eventSession struct {
	log        *eventClaimer
	credential string
}

func (s *eventSession) Claim(context.Context) error {
	s.log.record("claim:" + s.credential)
	return nil
}

func (s *eventSession) Close() error {
	s.log.record("close:" + s.credential)
	return nil
}

func newTestRunner(t *testing.T, st store.Store, claimer Claimer, cooldown time.Duration) (*Runner, *eventClaimer) {
	t.Helper()

	events, ok := claimer.(*eventClaimer)
	if !ok {
		events = &eventClaimer{}
	}

	proc := NewProcessor(st, claimer, time.Second, nil, slog.Default())
	proc.sleep = func(context.Context, time.Duration) {}

	r := NewRunner(st, proc, &Guard{}, cooldown, 10*time.Second, nil, slog.Default())
	r.sleep = func(_ context.Context, d time.Duration) {
		events.record("pace")
	}
	return r, events
}

// Account A (lower ID) is processed completely, pacing delay included,
// before any part of account B begins.
func TestRunner_SequentialAscendingOrder(t *testing.T) {
	t.Parallel()

	st := newMemStore(
		activeSession("b", nil),
		activeSession("a", nil),
	)
	claimer := &eventClaimer{}
	r, events := newTestRunner(t, st, claimer, 24*time.Hour)

	if err := r.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce: %v", err)
	}

	want := []string{"claim:a", "close:a", "pace", "claim:b", "close:b", "pace"}
	got := events.recorded()
	if len(got) != len(want) {
		t.Fatalf("events = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("events = %v, want %v", got, want)
		}
	}
}

func TestRunner_SkipsSessionsOnCooldown(t *testing.T) {
	t.Parallel()

	recent := time.Now().Add(-time.Hour)
	st := newMemStore(
		activeSession("cooling", timePtr(recent)),
		activeSession("ready", nil),
	)
	claimer := &eventClaimer{}
	r, events := newTestRunner(t, st, claimer, 24*time.Hour)

	if err := r.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce: %v", err)
	}

	for _, ev := range events.recorded() {
		if ev == "claim:cooling" {
			t.Fatal("session on cooldown was processed")
		}
	}
	found := false
	for _, ev := range events.recorded() {
		if ev == "claim:ready" {
			found = true
		}
	}
	if !found {
		t.Fatal("eligible session was not processed")
	}
}

// Failure to enumerate sessions aborts the whole run without touching any
// record.
func TestRunner_EnumerationFailureAbortsRun(t *testing.T) {
	t.Parallel()

	st := newMemStore(activeSession("a", nil))
	st.listErr = errors.New("disk gone")
	claimer := &eventClaimer{}
	r, events := newTestRunner(t, st, claimer, 24*time.Hour)

	if err := r.RunOnce(context.Background()); err == nil {
		t.Fatal("expected error when enumeration fails")
	}
	if len(events.recorded()) != 0 {
		t.Fatalf("accounts processed despite enumeration failure: %v", events.recorded())
	}
	if got := st.get("a"); got.Status != store.StatusActive {
		t.Errorf("record mutated on aborted run: %v", got.Status)
	}
}

// Per-account terminal failures never abort the iteration over remaining
// accounts.
func TestRunner_PerAccountFailureContained(t *testing.T) {
	t.Parallel()

	st := newMemStore(
		activeSession("a", nil),
		activeSession("b", nil),
	)
	claimer := &fakeClaimer{claimErr: errors.New("PEER_ID_INVALID")}

	proc := NewProcessor(st, claimer, time.Second, nil, slog.Default())
	proc.sleep = func(context.Context, time.Duration) {}
	r := NewRunner(st, proc, &Guard{}, 24*time.Hour, 10*time.Second, nil, slog.Default())
	r.sleep = func(context.Context, time.Duration) {}

	if err := r.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce: %v", err)
	}

	if got := claimer.claimed(); len(got) != 2 {
		t.Fatalf("claims = %v, want both accounts attempted", got)
	}
	if got := st.get("b"); got.Status != store.StatusError {
		t.Errorf("second account status = %v, want error", got.Status)
	}
}

// Two rapid triggers: exactly one accepted, one rejected; after the run
// settles a subsequent trigger is accepted again.
func TestRunner_TriggerSingleFlight(t *testing.T) {
	t.Parallel()

	st := newMemStore(activeSession("a", nil))
	block := make(chan struct{})
	claimer := &fakeClaimer{blockClaim: block}

	proc := NewProcessor(st, claimer, 10*time.Second, nil, slog.Default())
	proc.sleep = func(context.Context, time.Duration) {}
	guard := &Guard{}
	r := NewRunner(st, proc, guard, 24*time.Hour, 10*time.Second, nil, slog.Default())
	r.sleep = func(context.Context, time.Duration) {}

	if err := r.Trigger(context.Background()); err != nil {
		t.Fatalf("first trigger rejected: %v", err)
	}

	// Wait until the run is visibly inside the claim before re-triggering.
	deadline := time.After(2 * time.Second)
	for len(claimer.claimed()) == 0 {
		select {
		case <-deadline:
			t.Fatal("run never started")
		case <-time.After(5 * time.Millisecond):
		}
	}

	if err := r.Trigger(context.Background()); !errors.Is(err, ErrAlreadyRunning) {
		t.Fatalf("second trigger = %v, want ErrAlreadyRunning", err)
	}

	close(block)

	// The guard is released when the run settles.
	deadline = time.After(2 * time.Second)
	for {
		if guard.TryAcquire() {
			guard.Release()
			break
		}
		select {
		case <-deadline:
			t.Fatal("guard never released after run settled")
		case <-time.After(5 * time.Millisecond):
		}
	}

	if err := r.Trigger(context.Background()); err != nil {
		t.Fatalf("trigger after settle rejected: %v", err)
	}
}
