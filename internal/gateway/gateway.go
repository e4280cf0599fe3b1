// Package gateway exposes claimd's HTTP trigger surface: run trigger,
// liveness, status, and prometheus metrics.
package gateway

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/flemzord/claimd/internal/config"
	"github.com/flemzord/claimd/internal/store"
	"github.com/prometheus/client_golang/prometheus"
)

// Runner is the subset of the claim runner the gateway needs. Defined here
// so tests can fake it.
type Runner interface {
	Trigger(ctx context.Context) error
}

// Gateway is the HTTP server. The run context passed to Start is handed to
// triggered runs, so they outlive individual HTTP requests but stop with
// the process.
type Gateway struct {
	cfg      config.GatewayConfig
	runner   Runner
	store    store.Store
	gatherer prometheus.Gatherer
	logger   *slog.Logger

	server    *http.Server
	runCtx    context.Context
	startedAt time.Time

	accepted  atomic.Int64
	rejected  atomic.Int64
	lastRunAt atomic.Int64 // unix seconds, 0 = never
}

// New creates a Gateway. gatherer may be nil to disable /metrics.
func New(cfg config.GatewayConfig, runner Runner, st store.Store, gatherer prometheus.Gatherer, logger *slog.Logger) *Gateway {
	if logger == nil {
		logger = slog.Default()
	}
	return &Gateway{
		cfg:      cfg,
		runner:   runner,
		store:    st,
		gatherer: gatherer,
		logger:   logger,
	}
}

// Start begins serving. ctx is the process-lifetime context used for
// triggered runs.
func (g *Gateway) Start(ctx context.Context) error {
	g.runCtx = ctx
	g.startedAt = time.Now()

	g.server = &http.Server{
		Addr:         g.cfg.Bind,
		Handler:      g.buildRouter(),
		ReadTimeout:  g.cfg.ReadTimeout,
		WriteTimeout: g.cfg.WriteTimeout,
	}

	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", g.cfg.Bind)
	if err != nil {
		return errors.New("gateway: listen failed: " + err.Error())
	}

	go func() {
		g.logger.Info("gateway listening", "addr", g.cfg.Bind)
		if err := g.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			g.logger.Error("gateway serve error", "error", err)
		}
	}()

	return nil
}

// Stop shuts the server down gracefully.
func (g *Gateway) Stop(ctx context.Context) error {
	if g.server == nil {
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, g.cfg.ShutdownTimeout)
	defer cancel()

	g.logger.Info("gateway shutting down")
	return g.server.Shutdown(shutdownCtx)
}
