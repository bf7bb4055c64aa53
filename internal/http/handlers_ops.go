package http

import (
	"context"
	"net/http"
	"time"

	"chronoly/internal/log"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	NewResponse().Text("ok").Write(w)
}

// handleReady reports 503 until the store answers and the templates have parsed.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.templates == nil {
		NewResponse().Status(http.StatusServiceUnavailable).Text("templates not loaded").Write(w)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := s.tracker.Store().Ping(ctx); err != nil {
		log.FromContext(r.Context()).WarnContext(r.Context(), "Readiness check failed", log.FieldError, err)
		NewResponse().Status(http.StatusServiceUnavailable).Text("store unavailable").Write(w)
		return
	}
	NewResponse().Text("ready").Write(w)
}
