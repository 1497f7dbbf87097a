package api

import (
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/racharron/abd/internal/world"
)

// WorldInterface defines the world methods used by the API.
// This interface enables mocking for tests without spinning up the step loop.
type WorldInterface interface {
	// GetSnapshot returns the latest lock-free immutable snapshot
	GetSnapshot() *world.Snapshot
	// GetEventLogStats returns the contact event log counters
	GetEventLogStats() map[string]interface{}
	// Step advances the world once (control endpoint)
	Step() world.StepStats
}

// RendererInterface draws snapshots for the PNG endpoint.
type RendererInterface interface {
	EncodePNG(w io.Writer, snap *world.Snapshot) error
}

// DefaultCORSOrigins is used when RouterConfig.CORSOrigins is nil
var DefaultCORSOrigins = []string{
	"http://localhost:*",
	"http://127.0.0.1:*",
}

// RouterConfig contains all dependencies needed to construct the HTTP router.
//
// Example usage in tests:
//
//	cfg := api.RouterConfig{
//	    World: mockWorld,
//	    RateLimitConfig: &api.RateLimitConfig{
//	        RequestsPerSecond: 1000, // High limit for tests
//	        Burst:             1000,
//	    },
//	}
//	router := api.NewRouter(cfg)
//	ts := httptest.NewServer(router)
type RouterConfig struct {
	// World is the simulation (required)
	World WorldInterface

	// Renderer draws /api/snapshot.png. If nil, the endpoint returns 404.
	Renderer RendererInterface

	// RateLimiter is an optional pre-configured rate limiter.
	// If nil, a new one will be created using RateLimitConfig.
	RateLimiter *IPRateLimiter

	// RateLimitConfig is optional configuration for the rate limiter.
	// Only used if RateLimiter is nil. If both are nil, uses DefaultRateLimitConfig.
	RateLimitConfig *RateLimitConfig

	// CORSOrigins is an optional list of allowed CORS origins.
	// If nil, uses DefaultCORSOrigins.
	CORSOrigins []string

	// AdminToken guards control endpoints. Empty disables them.
	AdminToken string

	// DisableLogging disables the request logger middleware (useful for benchmarks).
	DisableLogging bool
}

// routerHandlers holds the handler functions for the router.
type routerHandlers struct {
	world    WorldInterface
	renderer RendererInterface
}

// NewRouter constructs the HTTP router with all middleware and routes.
//
// IMPORTANT: Apart from the rate limiter's cleanup ticker, this function has
// no side effects: no listeners are opened and no world steps are run.
// This makes it safe to use in tests with httptest.NewServer.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	// Middleware - Order matters!
	if !cfg.DisableLogging {
		r.Use(middleware.Logger)
	}
	r.Use(middleware.Recoverer)
	r.Use(metricsMiddleware)

	// Rate limiting (BEFORE CORS to reject early and save CPU)
	rateLimiter := cfg.RateLimiter
	if rateLimiter == nil {
		rateLimitCfg := DefaultRateLimitConfig
		if cfg.RateLimitConfig != nil {
			rateLimitCfg = *cfg.RateLimitConfig
		}
		rateLimiter = NewIPRateLimiter(rateLimitCfg)
	}
	r.Use(rateLimiter.Middleware)

	corsOrigins := cfg.CORSOrigins
	if corsOrigins == nil {
		corsOrigins = DefaultCORSOrigins
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: corsOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))

	h := &routerHandlers{
		world:    cfg.World,
		renderer: cfg.Renderer,
	}

	r.Route("/api", func(r chi.Router) {
		// World state
		r.Get("/state", h.handleGetState)
		r.Get("/islands", h.handleGetIslands)
		r.Get("/pairs", h.handleGetPairs)
		r.Get("/contacts", h.handleGetContacts)
		r.Get("/snapshot.png", h.handleSnapshotPNG)

		// Stateless narrow-phase query
		r.Post("/toi", h.handleTOI)

		// Control
		r.With(AdminAuth(cfg.AdminToken)).Post("/step", h.handleStep)
	})

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]string{"status": "ok"})
	})

	// Default route
	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/api/state", http.StatusFound)
	})

	return r
}

// metricsMiddleware records latency per route pattern, so labels stay bounded.
func metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		endpoint := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				endpoint = pattern
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		RecordRequest(r.Method, endpoint, status, time.Since(start))
	})
}
