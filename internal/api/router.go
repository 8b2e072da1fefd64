package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// buildRouter creates the HTTP router with all routes and middleware.
// The route shape mirrors the Moonraker API that clients under test expect.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	r.Route("/server", func(r chi.Router) {
		r.Get("/info", s.handleServerInfo)
		r.Get("/files/list", s.handleFilesList)
		r.Post("/restart", s.handleServerRestart)
	})

	r.Route("/printer", func(r chi.Router) {
		r.Get("/info", s.handlePrinterInfo)
		r.Get("/objects/query", s.handleObjectsQuery)
		r.Get("/objects/list", s.handleObjectsList)
		r.Post("/print/start", s.handlePrintStart)
		r.Post("/print/cancel", s.handlePrintCancel)
		r.Post("/gcode/script", s.handleGcodeScript)
	})

	// Realtime channel
	r.Get("/websocket", s.handleWebSocket)

	// Unknown routes still answer with the JSON error envelope.
	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeNotFound(w, "not found")
	})

	return r
}
