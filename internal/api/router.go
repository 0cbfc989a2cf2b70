// Package api exposes the reconciliation pipeline over HTTP. The handlers are
// thin plumbing: they accept two uploaded CSV files, run the
// parse -> reconcile -> detect -> report pipeline, and serialize the report.
// All HTTP concerns (status codes, CORS, multipart limits) live here; the core
// packages stay transport-free.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// NewRouter creates the chi router with all API routes mounted.
func NewRouter(h *Handlers) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(corsAllowAll)

	r.Route("/api", func(r chi.Router) {
		r.Post("/reconcile", h.Reconcile)
		r.Get("/health", h.Health)
	})

	return r
}

// corsAllowAll applies a permissive CORS policy: the service sits behind an
// internal ops dashboard, not the public internet.
func corsAllowAll(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "*")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}
