package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/gray-logic-tracker/internal/auth"
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

		// Event stream
		r.Get("/ws", s.handleWebSocket)

		r.With(s.authMiddleware, s.requirePermission(auth.PermAuditRead)).Get("/audit", s.handleListAudit)

		r.Route("/routers", func(r chi.Router) {
			r.Get("/", s.handleListRouters)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.handleGetRouter)
				r.Get("/devices", s.handleListDevices)
				r.Get("/devices/{mac}", s.handleGetDevice)
				r.Get("/devices/{mac}/history", s.handleDeviceHistory)

				// Protected routes
				r.Group(func(r chi.Router) {
					r.Use(s.authMiddleware)

					r.With(s.requirePermission(auth.PermRouterRefresh)).Post("/refresh", s.handleRefresh)
					r.With(s.requirePermission(auth.PermRouterControl)).Post("/reboot", s.handleReboot)
					r.With(s.requirePermission(auth.PermRouterControl)).Post("/reconnect", s.handleReconnect)
					r.With(s.requirePermission(auth.PermRouterControl)).Post("/firmware-update", s.handleFirmwareUpdate)
					r.With(s.requirePermission(auth.PermEntityCleanup)).Post("/cleanup", s.handleCleanup)
					r.With(s.requirePermission(auth.PermDeviceOperate)).Put("/devices/{mac}/internet-access", s.handleSetInternetAccess)
				})
			})
		})
	})

	return r
}

// handleHealth returns the server health status. The status is "degraded"
// while any configured router is not ready.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	status := "ok"
	routers := s.tracker.RouterStates()
	ready := 0
	for _, rs := range routers {
		if rs.Available {
			ready++
		}
	}
	if ready < len(routers) {
		status = "degraded"
	}

	body := map[string]any{
		"status":  status,
		"version": s.version,
		"routers": map[string]any{
			"configured": len(routers),
			"available":  ready,
			"pending":    s.tracker.Pending(),
		},
		"websocket_clients": s.hub.ClientCount(),
	}
	history := map[string]any{"enabled": s.history != nil}
	if wc, ok := s.history.(writeErrorCounter); ok {
		history["write_errors"] = wc.WriteErrors()
	}
	body["history"] = history

	writeJSON(w, http.StatusOK, body)
}

// writeErrorCounter is implemented by history backends that count failed
// writes, such as *influxdb.Client.
type writeErrorCounter interface {
	WriteErrors() uint64
}
