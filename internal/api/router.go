package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
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

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		// Health check (no auth required)
		r.Get("/health", s.handleHealth)

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(s.authMiddleware)

			r.Get("/stats", s.handleStats)

			// Device endpoints (read-only; registration is out of band)
			r.Route("/devices", func(r chi.Router) {
				r.Get("/", s.handleListDevices)

				r.Route("/{deviceId}", func(r chi.Router) {
					r.Get("/", s.handleGetDevice)
					r.Get("/latest", s.handleGetLatest)
					r.Get("/history", s.handleGetHistory)
					r.Get("/alarms", s.handleGetAlarms)
					r.Get("/presence", s.handleGetPresence)
					r.Post("/commands/{commandType}", s.handleSendCommand)
				})
			})

			// WebSocket telemetry stream
			r.Get("/ws", s.handleWebSocket)
		})
	})

	return r
}

// handleHealth returns the server health status.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"version": s.version,
	})
}

// handleStats returns registry and pipeline counters.
func (s *Server) handleStats(w http.ResponseWriter, _ *http.Request) {
	stats := map[string]any{
		"registry":   s.registry.GetStats(),
		"ws_clients": s.Hub().ClientCount(),
	}
	if s.pipeline != nil {
		stats["ingest"] = s.pipeline.GetStats()
	}
	writeJSON(w, http.StatusOK, stats)
}
