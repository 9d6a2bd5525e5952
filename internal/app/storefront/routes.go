package storefront

import (
	"log/slog"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-playground/validator"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"github.com/magabrotheeeer/storefront-bot/internal/http/handlers/events"
	"github.com/magabrotheeeer/storefront-bot/internal/http/handlers/health"
	"github.com/magabrotheeeer/storefront-bot/internal/http/handlers/identifiers"
	"github.com/magabrotheeeer/storefront-bot/internal/http/handlers/status"
	"github.com/magabrotheeeer/storefront-bot/internal/http/middlewarectx"
)

// RegisterRoutes регистрирует все маршруты приложения.
func RegisterRoutes(r chi.Router, logger *slog.Logger, dispatcher events.Dispatcher, stats status.Service, validate *validator.Validate, limiter *rate.Limiter, gatherer prometheus.Gatherer) {
	// Глобальные middleware
	r.Use(
		middleware.RequestID,
		middleware.Logger,
		middleware.Recoverer,
	)

	r.Get("/health", health.New(logger).ServeHTTP)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middlewarectx.RateLimitMiddleware(logger, limiter))
		r.Get("/status", status.New(logger, stats).ServeHTTP)
		r.Post("/events", events.New(logger, dispatcher).ServeHTTP)
		r.Post("/identifiers/validate", identifiers.New(logger, validate).ServeHTTP)
	})

	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
}
