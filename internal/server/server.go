package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/iplens/iplens/internal/core"
	"github.com/iplens/iplens/internal/core/admission"
	apperrors "github.com/iplens/iplens/internal/errors"
	"github.com/iplens/iplens/internal/metrics"
	"github.com/iplens/iplens/internal/observability"
	"github.com/iplens/iplens/internal/server/handlers"
	servermw "github.com/iplens/iplens/internal/server/middleware"
)

// Config holds listener settings.
type Config struct {
	Host              string
	Port              int
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	TrustProxyHeaders bool
}

// Dependencies are the domain components the routes serve.
type Dependencies struct {
	Admission *admission.Controller
	Checker   handlers.Checker
	Lists     []core.BlacklistDefinition

	// Limits maps an endpoint key to its per-window request limit.
	Limits map[string]int

	// Stats backs /stats; nil disables it.
	Stats   *admission.MemoryStats
	Version string
}

// Server represents the HTTP server
type Server struct {
	router *chi.Mux
	server *http.Server
	cfg    Config
	deps   Dependencies
	health *handlers.HealthManager
}

// New creates a new HTTP server instance
func New(cfg Config, deps Dependencies) *Server {
	if deps.Admission == nil {
		deps.Admission = admission.NewController()
	}

	r := chi.NewRouter()

	r.Use(middleware.StripSlashes)
	r.Use(servermw.RequestID)                       // correlation first
	r.Use(servermw.ClientID(cfg.TrustProxyHeaders)) // admission identity
	r.Use(servermw.RequestMetrics)                  // measure everything below
	r.Use(servermw.Recovery)                        // panics become 500s

	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		HandleError(w, req, apperrors.NewNotFoundError("The requested resource was not found"))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, req *http.Request) {
		HandleError(w, req, apperrors.NewMethodNotAllowedError("Method not allowed"))
	})

	s := &Server{
		router: r,
		cfg:    cfg,
		deps:   deps,
		health: handlers.NewHealthManager(deps.Version),
	}

	handlers.SetHTTPErrorResponder(HandleError)

	s.registerHealthChecks()
	s.registerRoutes()

	return s
}

// limit returns the configured limit for endpoint. A key that is present
// with a value <= 0 denies every request.
func (s *Server) limit(endpoint string, fallback int) int {
	if limit, ok := s.deps.Limits[endpoint]; ok {
		return limit
	}
	return fallback
}

func (s *Server) registerHealthChecks() {
	s.health.RegisterChecker("admission_sweeper", handlers.CheckerFunc(func(context.Context) error {
		if !s.deps.Admission.Running() {
			return errors.New("admission sweep is not running")
		}
		return nil
	}))
	s.health.RegisterChecker("dnsbl_lists", handlers.CheckerFunc(func(context.Context) error {
		if len(s.deps.Lists) == 0 {
			return errors.New("no blacklists configured")
		}
		return nil
	}))
}

// Start starts the HTTP server
func (s *Server) Start() error {
	addr := net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  orDefault(s.cfg.ReadTimeout, 30*time.Second),
		WriteTimeout: orDefault(s.cfg.WriteTimeout, 30*time.Second),
		IdleTimeout:  orDefault(s.cfg.IdleTimeout, 120*time.Second),
	}

	metrics.SetServerStartTime(time.Now().Unix())
	metrics.SetListsConfigured(len(s.deps.Lists))

	if observability.ServerLogger != nil {
		observability.ServerLogger.Info("Starting HTTP server",
			zap.String("host", s.cfg.Host),
			zap.Int("port", s.cfg.Port),
			zap.String("addr", addr),
			zap.Int("lists", len(s.deps.Lists)),
			zap.Bool("trust_proxy_headers", s.cfg.TrustProxyHeaders))
	}

	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the HTTP server
func (s *Server) Shutdown(ctx context.Context) error {
	if observability.ServerLogger != nil {
		observability.ServerLogger.Info("Shutting down HTTP server")
	}
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Handler exposes the underlying router for testing and instrumentation
func (s *Server) Handler() http.Handler {
	return s.router
}

// Port returns the server port for testing
func (s *Server) Port() int {
	return s.cfg.Port
}

func orDefault(d, fallback time.Duration) time.Duration {
	if d <= 0 {
		return fallback
	}
	return d
}
