package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/YashSaini213/virtual-conference-translator/internal/api/middleware"
	"github.com/YashSaini213/virtual-conference-translator/internal/auth"
	"github.com/YashSaini213/virtual-conference-translator/internal/handlers"
	"github.com/YashSaini213/virtual-conference-translator/internal/store"
)

// Deps carries everything the router needs.
type Deps struct {
	Logger         zerolog.Logger
	Handler        *handlers.Handler
	WSHandler      http.Handler
	Verifier       *auth.Verifier
	Redis          *store.RedisStore
	AllowedOrigins []string
	RateWhitelist  []string
}

// NewRouter creates and configures the HTTP router.
func NewRouter(d Deps) *chi.Mux {
	r := chi.NewRouter()

	// Metrics middleware (first to capture all requests)
	r.Use(middleware.Metrics)

	// Security middleware (order matters!)
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.MaxBodySize(64 * 1024))
	r.Use(middleware.ValidateRequest)

	// Standard middleware
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.Logger(d.Logger))
	r.Use(chimw.Recoverer)

	// Rate limiting when Redis is available
	if d.Redis != nil {
		limiter := middleware.NewRateLimiter(d.Redis.Client(), d.Verifier, d.Logger, middleware.RateLimiterConfig{
			Whitelist: d.RateWhitelist,
		})
		r.Use(limiter.Middleware)
	}

	allowedOrigins := d.AllowedOrigins
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset", "Retry-After"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	h := d.Handler

	// Metrics endpoint (for Prometheus scraping)
	r.Handle("/metrics", promhttp.Handler())

	// Public routes (no auth required)
	r.Get("/", h.Root)
	r.Get("/health", h.Health)
	r.Get("/stats", h.Stats)
	r.Get("/sessions", h.ListSessions)
	r.Get("/sessions/{sessionID}", h.GetSession)

	// WebSocket endpoint authenticates during its own handshake
	r.Handle("/ws", d.WSHandler)

	// Authenticated routes (require bearer token)
	r.Group(func(r chi.Router) {
		r.Use(middleware.Authenticate(d.Verifier))

		r.Post("/sessions", h.CreateSession)
		r.Post("/sessions/{sessionID}/end", h.EndSession)
		r.Post("/sessions/{sessionID}/summarize", h.Summarize)
		r.Get("/sessions/{sessionID}/transcript", h.GetTranscript)
		r.Get("/sessions/{sessionID}/captions", h.GetRecentCaptions)
		r.Get("/sessions/{sessionID}/summary", h.GetLatestSummary)
	})

	return r
}
