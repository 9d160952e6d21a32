// Package web provides the HTTP API: metered endpoint forwarding for
// speakers and the usage/quota surface for clients and admins.
package web

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/voxbridge/voxbridge/adapters/auth"
	"github.com/voxbridge/voxbridge/adapters/metrics"
	appsvc "github.com/voxbridge/voxbridge/app"
	"github.com/voxbridge/voxbridge/ports"
)

// Handler provides the HTTP endpoints.
type Handler struct {
	limiter  *appsvc.LimiterService
	meter    *appsvc.MeterService
	stats    *appsvc.StatsService
	accounts *appsvc.AccountService
	verifier ports.TokenVerifier
	tokens   *auth.TokenService
	users    ports.UserStore
	hasher   ports.Hasher
	upstream ports.Upstream
	clock    ports.Clock
	logger   zerolog.Logger
	metrics  *metrics.Collector // optional
}

// Deps contains dependencies for the web handler.
type Deps struct {
	Limiter  *appsvc.LimiterService
	Meter    *appsvc.MeterService
	Stats    *appsvc.StatsService
	Accounts *appsvc.AccountService
	Verifier ports.TokenVerifier
	Tokens   *auth.TokenService
	Users    ports.UserStore
	Hasher   ports.Hasher
	Upstream ports.Upstream
	Clock    ports.Clock
	Logger   zerolog.Logger
	Metrics  *metrics.Collector
}

// NewHandler creates the API handler.
func NewHandler(deps Deps) *Handler {
	return &Handler{
		limiter:  deps.Limiter,
		meter:    deps.Meter,
		stats:    deps.Stats,
		accounts: deps.Accounts,
		verifier: deps.Verifier,
		tokens:   deps.Tokens,
		users:    deps.Users,
		hasher:   deps.Hasher,
		upstream: deps.Upstream,
		clock:    deps.Clock,
		logger:   deps.Logger,
		metrics:  deps.Metrics,
	}
}

// RouterConfig tunes the assembled router.
type RouterConfig struct {
	MetricsEnabled bool
	MetricsPath    string
}

// Router assembles the full route tree.
func (h *Handler) Router(cfg RouterConfig) chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(NewLoggingMiddleware(h.logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	if h.metrics != nil {
		r.Use(NewMetricsMiddleware(h.metrics))
	}

	// Unauthenticated surface.
	r.Get("/health", h.Health)
	r.Get("/version", Version)
	r.Post("/auth/login", h.Login)
	if cfg.MetricsEnabled {
		path := cfg.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		r.Handle(path, promhttp.Handler())
	}

	// Metered API for authenticated speakers.
	r.Route("/api", func(r chi.Router) {
		r.Use(h.RequireAuth)
		r.Get("/usage", h.MyUsage)
		r.Get("/usage/{date}", h.MyUsageDay)
		r.Route("/{endpoint}", func(r chi.Router) {
			r.Get("/quota", h.Quota)
			r.With(h.RequireAccount).Post("/", h.Invoke)
		})
	})

	// Admin surface.
	r.Route("/admin", func(r chi.Router) {
		r.Use(h.RequireAuth)
		r.Use(h.RequireAdmin)
		r.Get("/stats", h.AdminStats)
		r.Get("/users/{id}/usage", h.AdminUserUsage)
	})

	return r
}

// Health reports liveness.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
