package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Handle("/metrics", promhttp.Handler())

		r.Route("/phones", func(r chi.Router) {
			r.Get("/", s.handleListPhones)
			r.Get("/{model}", s.handleGetPhone)
			r.Get("/{model}/compatible/{part}", s.handleCompatibleModels)
			r.With(s.adminMiddleware).Delete("/{model}", s.handleDeletePhone)
		})

		r.Get("/groups", s.handleListGroups)

		// Admin routes
		r.Group(func(r chi.Router) {
			r.Use(s.adminMiddleware)

			r.Post("/links", s.handleLinkParts)
			r.Get("/integrity", s.handleIntegrity)
			r.Get("/audit", s.handleListAuditLogs)
		})
	})

	return r
}

// handleHealth reports database and broker health.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := http.StatusOK
	body := map[string]any{
		"status":   "ok",
		"version":  s.version,
		"database": "ok",
	}

	if err := s.db.HealthCheck(r.Context()); err != nil {
		s.logger.Warn("database health check failed", "error", err)
		status = http.StatusServiceUnavailable
		body["status"] = "degraded"
		body["database"] = "unavailable"
	}

	if s.mqtt != nil {
		body["mqtt"] = "ok"
		if err := s.mqtt.HealthCheck(r.Context()); err != nil {
			body["mqtt"] = "disconnected"
		}
	}

	writeJSON(w, status, body)
}
