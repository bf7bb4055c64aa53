package http

import (
	"fmt"
	"net/http"
	"sync/atomic"
	"time"
)

// appMetrics counts domain events. All fields are safe for concurrent use.
type appMetrics struct {
	started         time.Time
	projectsCreated atomic.Int64
	entriesCreated  atomic.Int64
	projectsDeleted atomic.Int64
	entriesDeleted  atomic.Int64
	loginFailures   atomic.Int64
	rateLimited     atomic.Int64
	serverErrors    atomic.Int64
}

func newAppMetrics() *appMetrics {
	return &appMetrics{started: time.Now()}
}

type metric struct {
	name, help, kind string
	value            any
}

// handleMetrics provides application and security metrics in plain text format
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	tm := s.tracer.GetMetrics()
	metrics := []metric{
		{"http_requests_total", "Total number of HTTP requests", "counter", tm.TotalRequests},
		{"http_server_errors_total", "Responses with a 5xx status", "counter", tm.ServerErrors},
		{"http_response_time_avg_ms", "Average response time in milliseconds", "gauge", tm.AverageResponseTime.Milliseconds()},
		{"projects_created_total", "Projects created", "counter", s.metrics.projectsCreated.Load()},
		{"projects_deleted_total", "Projects deleted", "counter", s.metrics.projectsDeleted.Load()},
		{"time_entries_created_total", "Time entries created", "counter", s.metrics.entriesCreated.Load()},
		{"time_entries_deleted_total", "Time entries deleted", "counter", s.metrics.entriesDeleted.Load()},
		{"handler_failures_total", "Requests that failed with a server-side error", "counter", s.metrics.serverErrors.Load()},
		{"login_failures_total", "Rejected login attempts", "counter", s.metrics.loginFailures.Load()},
		{"rate_limit_hits_total", "Requests refused by the rate limiter", "counter", s.limiter.Rejected()},
		{"active_rate_limit_clients", "Currently tracked rate limit clients", "gauge", s.limiter.ActiveClients()},
		{"suspicious_requests_total", "Suspicious requests detected", "counter", s.detector.SuspiciousRequests()},
		{"uptime_seconds", "Application uptime in seconds", "gauge", int64(time.Since(s.metrics.started).Seconds())},
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	for _, m := range metrics {
		fmt.Fprintf(w, "# HELP chronoly_%s %s\n", m.name, m.help)
		fmt.Fprintf(w, "# TYPE chronoly_%s %s\n", m.name, m.kind)
		fmt.Fprintf(w, "chronoly_%s %d\n\n", m.name, m.value)
	}
}
