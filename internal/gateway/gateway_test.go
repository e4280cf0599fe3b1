package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/flemzord/claimd/internal/claim"
	"github.com/flemzord/claimd/internal/config"
	"github.com/flemzord/claimd/internal/store"
)

// fakeRunner scripts trigger responses.
type fakeRunner struct {
	mu       sync.Mutex
	err      error
	triggers int
}

func (f *fakeRunner) Trigger(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.triggers++
	return f.err
}

func (f *fakeRunner) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.triggers
}

// memStore is a minimal store.Store for status counts.
type memStore struct {
	counts map[store.Status]int
	err    error
}

func (m *memStore) ListByStatus(context.Context, store.Status) ([]store.Session, error) {
	return nil, nil
}
func (m *memStore) Put(context.Context, store.Session) error { return nil }
func (m *memStore) UpdateFields(context.Context, string, store.Fields) error {
	return nil
}
func (m *memStore) CountByStatus(context.Context) (map[store.Status]int, error) {
	return m.counts, m.err
}
func (m *memStore) Close() error { return nil }

func newTestServer(t *testing.T, secret string, runner Runner) *httptest.Server {
	t.Helper()

	cfg := config.GatewayConfig{Bind: "127.0.0.1:0", Secret: secret}
	st := &memStore{counts: map[store.Status]int{store.StatusActive: 2, store.StatusError: 1}}
	g := New(cfg, runner, st, nil, slog.Default())
	g.runCtx = context.Background()
	g.startedAt = time.Now()

	srv := httptest.NewServer(g.buildRouter())
	t.Cleanup(srv.Close)
	return srv
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer func() { _ = resp.Body.Close() }()
	var v T
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return v
}

func TestHealth(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t, "s3cret", &fakeRunner{})

	resp, err := http.Get(srv.URL + "/health")
	if err != nil {
		t.Fatalf("GET /health: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	body := decode[HealthResponse](t, resp)
	if body.Status != "ok" {
		t.Errorf("status = %q", body.Status)
	}
	if body.Time.IsZero() {
		t.Error("health response carries no timestamp")
	}
}

func TestRun_NoCredentialAccepted(t *testing.T) {
	t.Parallel()

	runner := &fakeRunner{}
	srv := newTestServer(t, "s3cret", runner)

	// Keepalive pings carry no credential and must still start a run.
	resp, err := http.Post(srv.URL+"/run", "", nil)
	if err != nil {
		t.Fatalf("POST /run: %v", err)
	}
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("status = %d, want 202", resp.StatusCode)
	}
	if body := decode[RunResponse](t, resp); body.Status != "started" {
		t.Errorf("body status = %q, want started", body.Status)
	}
	if runner.count() != 1 {
		t.Errorf("triggers = %d, want 1", runner.count())
	}
}

func TestRun_WrongCredentialRejected(t *testing.T) {
	t.Parallel()

	runner := &fakeRunner{}
	srv := newTestServer(t, "s3cret", runner)

	req, _ := http.NewRequest(http.MethodPost, srv.URL+"/run", nil)
	req.Header.Set("Authorization", "Bearer wrong")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("POST /run: %v", err)
	}
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", resp.StatusCode)
	}
	_ = resp.Body.Close()
	if runner.count() != 0 {
		t.Error("run triggered despite wrong credential")
	}
}

func TestRun_CorrectCredential(t *testing.T) {
	t.Parallel()

	runner := &fakeRunner{}
	srv := newTestServer(t, "s3cret", runner)

	for _, target := range []string{
		srv.URL + "/run?token=s3cret",
	} {
		resp, err := http.Post(target, "", nil)
		if err != nil {
			t.Fatalf("POST: %v", err)
		}
		if resp.StatusCode != http.StatusAccepted {
			t.Fatalf("status = %d, want 202", resp.StatusCode)
		}
		_ = resp.Body.Close()
	}
}

func TestRun_AlreadyRunning(t *testing.T) {
	t.Parallel()

	runner := &fakeRunner{err: claim.ErrAlreadyRunning}
	srv := newTestServer(t, "", runner)

	resp, err := http.Post(srv.URL+"/run", "", nil)
	if err != nil {
		t.Fatalf("POST /run: %v", err)
	}
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("status = %d, want 409", resp.StatusCode)
	}
	if body := decode[RunResponse](t, resp); body.Status != "already_running" {
		t.Errorf("body status = %q, want already_running", body.Status)
	}
}

func TestStatus_RequiresAuth(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t, "s3cret", &fakeRunner{})

	resp, err := http.Get(srv.URL + "/status")
	if err != nil {
		t.Fatalf("GET /status: %v", err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401 without credential", resp.StatusCode)
	}

	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/status", nil)
	req.Header.Set("Authorization", "Bearer s3cret")
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET /status: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200 with credential", resp.StatusCode)
	}

	body := decode[StatusResponse](t, resp)
	if body.Sessions[store.StatusActive] != 2 || body.Sessions[store.StatusError] != 1 {
		t.Errorf("sessions = %v", body.Sessions)
	}
}

func TestStatus_NoSecretConfigured(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t, "", &fakeRunner{})

	resp, err := http.Get(srv.URL + "/status")
	if err != nil {
		t.Fatalf("GET /status: %v", err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200 when no secret is configured", resp.StatusCode)
	}
}

func TestStatus_StoreFailure(t *testing.T) {
	t.Parallel()

	cfg := config.GatewayConfig{Bind: "127.0.0.1:0"}
	st := &memStore{err: errors.New("disk gone")}
	g := New(cfg, &fakeRunner{}, st, nil, slog.Default())
	g.runCtx = context.Background()
	g.startedAt = time.Now()

	srv := httptest.NewServer(g.buildRouter())
	t.Cleanup(srv.Close)

	resp, err := http.Get(srv.URL + "/status")
	if err != nil {
		t.Fatalf("GET /status: %v", err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", resp.StatusCode)
	}
}
