package gateway

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// buildRouter constructs the chi mux with all routes wired.
func (g *Gateway) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Public: no auth, no side effects.
	r.Get("/health", g.handleHealth())

	// Trigger has keepalive-friendly auth: bare requests pass, wrong
	// credentials do not.
	r.Post("/run", g.handleRun())

	// Operational endpoints sit behind full auth when a secret is set.
	r.Group(func(r chi.Router) {
		if g.cfg.Secret != "" {
			r.Use(authMiddleware(g.cfg.Secret))
		}
		r.Get("/status", g.handleStatus())
		if g.gatherer != nil {
			r.Handle("/metrics", promhttp.HandlerFor(g.gatherer, promhttp.HandlerOpts{}))
		}
	})

	return r
}
