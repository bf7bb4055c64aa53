// Package http serves the chronoly pages, the JSON API and the operational endpoints.
package http

import (
	"context"
	"io/fs"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"

	"chronoly/internal/auth"
	"chronoly/internal/core"
	"chronoly/internal/log"
	"chronoly/internal/middleware/ratelimit"
	"chronoly/internal/middleware/security"
	"chronoly/internal/middleware/trace"
	"chronoly/internal/services"
	appweb "chronoly/web"
)

// storeTimeout bounds every store round trip made on behalf of a request.
const storeTimeout = 7 * time.Second

// Deps are the collaborators the server needs.
type Deps struct {
	Tracker            *services.TrackerService
	Gate               *auth.Gate
	Location           *time.Location
	Logger             *log.Logger
	RateLimitPerMinute int
	LoginPerMinute     int
	TrustedProxies     []string
}

type Server struct {
	http.Server
	tracker   *services.TrackerService
	gate      *auth.Gate
	templates *templates
	loc       *time.Location
	logger    *log.Logger
	now       func() time.Time

	limiter  *ratelimit.Limiter
	detector *security.Detector
	tracer   *trace.Middleware
	metrics  *appMetrics

	shutdownOnce sync.Once
}

// NewServer configures routes and templates, returning a ready-to-run server.
func NewServer(addr string, deps Deps) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	loc := deps.Location
	if loc == nil {
		loc = time.Local
	}
	limits := ratelimit.Config{
		RequestsPerMinute: deps.RateLimitPerMinute,
		LoginPerMinute:    deps.LoginPerMinute,
		LoginPaths:        []string{"/login", "/api/auth"},
	}

	s := &Server{
		Server: http.Server{
			Addr:              addr,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       30 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       120 * time.Second,
		},
		tracker:  deps.Tracker,
		gate:     deps.Gate,
		loc:      loc,
		logger:   logger.WithComponent(log.ComponentHTTP),
		now:      time.Now,
		limiter:  ratelimit.NewLimiter(limits),
		detector: security.NewDetector(logger),
		metrics:  newAppMetrics(),
	}
	for _, p := range deps.TrustedProxies {
		if err := s.detector.AddTrustedProxy(p); err != nil {
			logger.Warn("Ignoring trusted proxy", log.FieldError, err)
		}
	}
	s.tracer = trace.NewMiddleware(logger, s.detector.ExtractClientIP)

	t, err := loadTemplates(appweb.TemplatesFS, loc)
	if err != nil {
		s.logger.Warn("Failed parsing templates", "error", err)
	}
	s.templates = t

	s.Handler = s.routes()
	return s
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(s.tracer.Middleware)
	r.Use(security.Headers(security.DefaultHeadersConfig()))
	r.Use(s.detector.Middleware)
	r.Use(s.limiter.Middleware(s.detector.ExtractClientIP, s.handleRateLimited))
	r.Use(s.gate.Middleware("/healthz", "/readyz", "/static/", "/api/auth"))

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)
	r.Get("/metrics", s.handleMetrics)

	if sub, err := fs.Sub(appweb.StaticFS, "static"); err == nil {
		static := http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
		r.Handle("/static/*", security.StaticAssetMiddleware(3600)(static))
	} else {
		s.logger.Warn("Failed to mount embedded static FS", "error", err)
	}

	r.Get("/login", s.handleLoginPage)
	r.Post("/login", s.handleLogin)
	r.Post("/logout", s.handleLogout)

	r.Get("/", s.handleDashboard)
	r.Get("/projects", s.handleProjects)
	r.Get("/projects/new", s.handleNewProject)
	r.Post("/projects", s.handleCreateProject)
	r.Post("/projects/{id}/delete", s.handleDeleteProject)
	r.Get("/entries", s.handleEntries)
	r.Get("/entries/new", s.handleNewEntry)
	r.Post("/entries", s.handleCreateEntry)
	r.Post("/entries/{id}/delete", s.handleDeleteEntry)

	r.Route("/api", func(r chi.Router) {
		r.Post("/auth", s.handleAPILogin)
		r.Delete("/auth", s.handleAPILogout)

		r.Get("/projects", s.handleAPIListProjects)
		r.Post("/projects", s.handleAPICreateProject)
		r.Delete("/projects", s.handleAPIDeleteProject)
		r.Delete("/projects/{id}", s.handleAPIDeleteProject)

		r.Get("/entries", s.handleAPIListEntries)
		r.Post("/entries", s.handleAPICreateEntry)
		r.Delete("/entries", s.handleAPIDeleteEntry)
		r.Delete("/entries/{id}", s.handleAPIDeleteEntry)

		r.Get("/totals", s.handleAPITotals)
	})

	r.NotFound(s.handleNotFound)
	return r
}

// Shutdown stops the rate limiter and gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		err = s.Server.Shutdown(ctx)
	})
	return err
}

// storeContext bounds a store call made for r.
func storeContext(r *http.Request) (context.Context, context.CancelFunc) {
	return context.WithTimeout(r.Context(), storeTimeout)
}

func (s *Server) handleRateLimited(w http.ResponseWriter, r *http.Request) {
	s.metrics.rateLimited.Add(1)
	log.FromContext(r.Context()).WarnContext(r.Context(), "Rate limit exceeded",
		log.FieldClientIP, s.detector.ExtractClientIP(r),
		log.FieldMethod, r.Method,
		log.FieldPath, r.URL.Path)
	if wantsJSON(r) {
		writeJSON(w, http.StatusTooManyRequests, apiError{Error: "Rate limit exceeded. Please try again later."})
		return
	}
	http.Error(w, "Rate limit exceeded. Please try again later.", http.StatusTooManyRequests)
}

func (s *Server) handleNotFound(w http.ResponseWriter, r *http.Request) {
	if wantsJSON(r) {
		writeJSON(w, http.StatusNotFound, apiError{Error: "Not found", Kind: string(core.KindNotFound)})
		return
	}
	s.renderError(w, r, http.StatusNotFound, "Page not found")
}
