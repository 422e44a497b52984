package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/capitalize-ai/scheduling-assistant/internal/middleware"
	"github.com/capitalize-ai/scheduling-assistant/pkg/logger"
)

// maxBodyBytes bounds JSON request bodies.
const maxBodyBytes = 64 * 1024

// RouterConfig collects the handlers and limits the router is built from.
type RouterConfig struct {
	Health        *HealthHandler
	Chat          *ChatHandler
	Conversations *ConversationHandler
	Bookings      *BookingHandler
	Logger        *logger.Logger

	RateLimitRequests int
	RateLimitWindow   time.Duration
}

// NewRouter builds the HTTP API.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logging(cfg.Logger))
	r.Use(middleware.SecurityHeaders)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS())

	r.Get("/health", cfg.Health.Health)
	r.Get("/ready", cfg.Health.Ready)
	r.Handle("/metrics", promhttp.Handler())

	limited := func(r chi.Router) {
		r.Use(middleware.MaxBodySize(maxBodyBytes))
		if cfg.RateLimitRequests > 0 {
			r.Use(middleware.RateLimit(cfg.RateLimitRequests, cfg.RateLimitWindow))
		}
	}

	r.Group(func(r chi.Router) {
		limited(r)
		r.Post("/chat", cfg.Chat.Chat)
	})

	r.Route("/api/v1", func(r chi.Router) {
		limited(r)

		r.Post("/chat", cfg.Chat.Chat)

		r.Get("/bookings", cfg.Bookings.List)
		r.Get("/availability", cfg.Bookings.Availability)

		r.Route("/conversations", func(r chi.Router) {
			r.Post("/", cfg.Conversations.Create)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", cfg.Conversations.Get)
				r.Delete("/", cfg.Conversations.Delete)
				r.Post("/messages", cfg.Conversations.Send)
			})
		})
	})

	return r
}
