package http

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robertarktes/concert-reservations/internal/observability"
	"github.com/robertarktes/concert-reservations/internal/queue"
	"github.com/robertarktes/concert-reservations/internal/rateLimit"
)

func SetupRouter(h *Handlers, tokens *queue.Service, logger observability.Logger, rl *rateLimit.RateLimiter) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(RequestIDMiddleware)
	r.Use(MetricsMiddleware)
	r.Use(LoggerMiddleware(logger))
	r.Use(TracingMiddleware)
	r.Use(RateLimitMiddleware(rl))

	r.Post("/v1/queue/tokens", h.CreateToken)
	r.Get("/v1/queue/tokens/status/{userID}", h.GetTokenStatus)
	r.Get("/v1/concerts", h.Concerts)
	r.Get("/v1/concerts/{concertID}/dates", h.AvailableDates)
	r.Get("/v1/concerts/options/{optionID}/seats", h.AvailableSeats)
	r.Get("/v1/points/{userID}", h.GetPoints)
	r.Post("/v1/points/charge", h.ChargePoints)

	// Booking endpoints sit behind the admission gate.
	r.Group(func(r chi.Router) {
		r.Use(TokenGateMiddleware(tokens))
		r.Use(IdempotencyKeyMiddleware)
		r.Post("/v1/reservations", h.CreateReservation)
		r.Post("/v1/payments", h.Pay)
	})

	r.Get("/v1/healthz", h.Healthz)
	r.Get("/v1/readyz", h.Readyz)
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	return r
}
