package claim

import (
	"context"
	"sync"
	"time"

	"github.com/flemzord/claimd/internal/store"
)

// memStore is an in-memory store.Store for engine tests.
type memStore struct {
	mu       sync.Mutex
	sessions map[string]store.Session
	listErr  error
}

var _ store.Store = (*memStore)(nil)

func newMemStore(sessions ...store.Session) *memStore {
	m := &memStore{sessions: make(map[string]store.Session)}
	for _, s := range sessions {
		m.sessions[s.ID] = s
	}
	return m
}

func (m *memStore) ListByStatus(_ context.Context, status store.Status) ([]store.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.listErr != nil {
		return nil, m.listErr
	}

	var out []store.Session
	for _, s := range m.sessions {
		if s.Status == status {
			out = append(out, s)
		}
	}
	// Ascending ID order, as the real backends guarantee.
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j].ID < out[j-1].ID; j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	return out, nil
}

func (m *memStore) Put(_ context.Context, s store.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.ID] = s
	return nil
}

func (m *memStore) UpdateFields(ctx context.Context, id string, fields store.Fields) error {
	// The real backends reject writes on cancelled contexts.
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[id]
	if !ok {
		return store.ErrNotFound
	}
	if fields.Status != nil {
		s.Status = *fields.Status
	}
	if fields.LastSuccessAt != nil {
		t := *fields.LastSuccessAt
		s.LastSuccessAt = &t
	}
	if fields.InProgressSince != nil {
		t := *fields.InProgressSince
		s.InProgressSince = &t
	}
	if fields.ClearInProgress {
		s.InProgressSince = nil
	}
	if fields.ErrorReason != nil {
		s.ErrorReason = *fields.ErrorReason
	}
	if fields.ClearError {
		s.ErrorReason = ""
	}
	m.sessions[id] = s
	return nil
}

func (m *memStore) CountByStatus(context.Context) (map[store.Status]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	counts := make(map[store.Status]int)
	for _, s := range m.sessions {
		counts[s.Status]++
	}
	return counts, nil
}

func (m *memStore) Close() error { return nil }

func (m *memStore) get(id string) store.Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sessions[id]
}

// fakeClaimer scripts remote behaviour per credential. The credential is
// used as the script key, so tests set Credential == ID.
type fakeClaimer struct {
	mu           sync.Mutex
	establishErr error
	claimErr     error
	closeErr     error
	blockClaim   chan struct{} // non-nil: Claim blocks until closed, ignoring ctx
	claims       []string
	closes       int
}

var _ Claimer = (*fakeClaimer)(nil)

func (f *fakeClaimer) Establish(_ context.Context, credential string) (RemoteSession, error) {
	if f.establishErr != nil {
		return nil, f.establishErr
	}
	return &fakeSession{claimer: f, credential: credential}, nil
}

type fakeSession struct {
	claimer    *fakeClaimer
	credential string
}

func (s *fakeSession) Claim(ctx context.Context) error {
	f := s.claimer

	f.mu.Lock()
	f.claims = append(f.claims, s.credential)
	block := f.blockClaim
	f.mu.Unlock()

	if block != nil {
		<-block // deliberately ignores ctx: simulates a stuck remote call
	}
	return f.claimErr
}

func (s *fakeSession) Close() error {
	s.claimer.mu.Lock()
	defer s.claimer.mu.Unlock()
	s.claimer.closes++
	return s.claimer.closeErr
}

func (f *fakeClaimer) claimed() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.claims...)
}

func (f *fakeClaimer) closeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closes
}

func activeSession(id string, lastSuccess *time.Time) store.Session {
	return store.Session{
		ID:            id,
		AccountID:     "acct-" + id,
		Credential:    id,
		Status:        store.StatusActive,
		LastSuccessAt: lastSuccess,
	}
}

func timePtr(t time.Time) *time.Time { return &t }
