package gateway

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/flemzord/claimd/internal/claim"
	"github.com/flemzord/claimd/internal/store"
)

// RunResponse is the JSON response for POST /run.
type RunResponse struct {
	Status string `json:"status"` // "started", "already_running", or "unauthorized"
}

// handleRun triggers a batch run through the run guard.
//
// Auth is deliberately asymmetric: a request with no credential is accepted
// (keepalive pings from uptime monitors), a request with a wrong credential
// is rejected.
func (g *Gateway) handleRun() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if token := requestToken(r); token != "" && g.cfg.Secret != "" && !constantTimeEqual(token, g.cfg.Secret) {
			writeJSON(w, http.StatusUnauthorized, RunResponse{Status: "unauthorized"})
			return
		}

		err := g.runner.Trigger(g.runCtx)
		switch {
		case errors.Is(err, claim.ErrAlreadyRunning):
			g.rejected.Add(1)
			writeJSON(w, http.StatusConflict, RunResponse{Status: "already_running"})
		case err != nil:
			g.logger.Error("trigger failed", "error", err)
			http.Error(w, "internal error", http.StatusInternalServerError)
		default:
			g.accepted.Add(1)
			g.lastRunAt.Store(time.Now().Unix())
			writeJSON(w, http.StatusAccepted, RunResponse{Status: "started"})
		}
	}
}

// HealthResponse is the JSON response for GET /health.
type HealthResponse struct {
	Status string    `json:"status"`
	Time   time.Time `json:"time"`
}

// handleHealth is the liveness check: current timestamp, no auth, no side
// effects.
func (g *Gateway) handleHealth() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, HealthResponse{
			Status: "ok",
			Time:   time.Now().UTC(),
		})
	}
}

// StatusResponse is the JSON response for GET /status.
type StatusResponse struct {
	Uptime       int64                `json:"uptime_seconds"`
	RunsAccepted int64                `json:"runs_accepted"`
	RunsRejected int64                `json:"runs_rejected"`
	LastRunAt    *time.Time           `json:"last_run_at,omitempty"`
	Sessions     map[store.Status]int `json:"sessions"`
}

// handleStatus reports run counters and session counts by status.
func (g *Gateway) handleStatus() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := StatusResponse{
			Uptime:       int64(time.Since(g.startedAt).Seconds()),
			RunsAccepted: g.accepted.Load(),
			RunsRejected: g.rejected.Load(),
		}

		if ts := g.lastRunAt.Load(); ts > 0 {
			t := time.Unix(ts, 0).UTC()
			resp.LastRunAt = &t
		}

		counts, err := g.store.CountByStatus(r.Context())
		if err != nil {
			g.logger.Error("status: count sessions failed", "error", err)
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		resp.Sessions = counts

		writeJSON(w, http.StatusOK, resp)
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
