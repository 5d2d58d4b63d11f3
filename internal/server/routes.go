package server

import (
	"github.com/iplens/iplens/internal/server/handlers"
)

// registerRoutes registers all HTTP routes
func (s *Server) registerRoutes() {
	gate := &handlers.AdmissionGate{
		Controller:        s.deps.Admission,
		TrustProxyHeaders: s.cfg.TrustProxyHeaders,
	}

	s.router.Method("GET", "/blacklist", &handlers.BlacklistHandler{
		Gate:    gate,
		Checker: s.deps.Checker,
		Lists:   s.deps.Lists,
		Limit:   s.limit(handlers.BlacklistEndpoint, handlers.DefaultBlacklistLimit),
	})

	s.router.Method("GET", "/stats", &handlers.StatsHandler{
		Controller: s.deps.Admission,
		Stats:      s.deps.Stats,
	})

	s.router.Get("/health", s.health.HealthHandler)
	s.router.Get("/health/live", s.health.LivenessHandler)
	s.router.Get("/health/ready", s.health.ReadinessHandler)
	s.router.Get("/health/startup", s.health.StartupHandler)

	s.router.Get("/version", handlers.VersionHandler)
	s.router.Get("/metrics", MetricsHandler)
}
