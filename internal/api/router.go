package api

import (
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/zenotheomni/fifth-dimension-3d-world-sub001/internal/api/middleware"
	"github.com/zenotheomni/fifth-dimension-3d-world-sub001/internal/handlers"
	"github.com/zenotheomni/fifth-dimension-3d-world-sub001/internal/identity"
	"github.com/zenotheomni/fifth-dimension-3d-world-sub001/internal/models"
)

// Deps carries everything the router wires together.
type Deps struct {
	Handler     *handlers.Handler
	Resolver    identity.Resolver
	RedisClient *redis.Client // nil disables rate limiting
	Whitelist   []string
}

// NewRouter creates and configures the HTTP router.
func NewRouter(logger zerolog.Logger, deps Deps) *chi.Mux {
	r := chi.NewRouter()

	// Metrics middleware (first to capture all requests)
	r.Use(middleware.Metrics)

	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.MaxBodySize(8 * 1024)) // 8KB max body
	r.Use(middleware.RequireJSON)

	// Standard middleware
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.Logger(logger))
	r.Use(chimw.Recoverer)

	limiter := middleware.NewRateLimiter(deps.RedisClient, logger, deps.Whitelist)
	r.Use(limiter.Middleware)

	// CORS - browser and Unity WebGL clients call from anywhere
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Retry-After"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	ident := middleware.NewIdentity(deps.Resolver)
	r.Use(ident.Resolve)

	h := deps.Handler

	// Metrics endpoint (for Prometheus scraping)
	r.Handle("/metrics", promhttp.Handler())

	r.Get("/", h.Root)
	r.Get("/health", h.Health)

	// Ticket lifecycle
	r.Post("/events/{id}/tickets", h.IssueTicket)
	r.Post("/events/{id}/tickets/{ticketID}/validate", h.ValidateTicket)
	r.Post("/events/{id}/tickets/{ticketID}/redeem", h.RedeemTicket)

	// Chat history; deleted-message visibility depends on the caller's
	// capabilities, resolved per request.
	r.Get("/events/{id}/messages", h.GetMessages)

	// Moderation requires moderator or admin capability
	r.Group(func(r chi.Router) {
		r.Use(ident.RequireCapability(models.CapModerator))
		r.Post("/events/{id}/messages/{messageID}/moderate", h.ModerateMessage)
	})

	// Realtime room entry
	r.Get("/ws/events/{id}", h.HandleSocket)

	return r
}
