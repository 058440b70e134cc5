package routes

import (
	"github.com/go-chi/chi/v5"
	"github.com/tablegate/tablegate/internal/handlers"
	"github.com/tablegate/tablegate/internal/middleware"
)

// RegisterRoutes registers all application routes
func RegisterRoutes(
	router chi.Router,
	authHandler *handlers.AuthHandler,
	gatewayHandler *handlers.GatewayHandler,
	healthHandler *handlers.HealthHandler,
) {
	// Outer per-IP limit on the credential routes. The login guard behind it
	// enforces the real per-identity policy.
	rateLimitConfig := middleware.DefaultAuthRateLimit()

	router.With(middleware.RateLimitByIP(rateLimitConfig)).Post("/auth/login", authHandler.Login)
	router.With(middleware.RateLimitByIP(rateLimitConfig)).Post("/auth/refresh", authHandler.Refresh)

	// Machine gateway: the pipeline does its own auth and rate limiting.
	router.Post("/gateway", gatewayHandler.Handle)

	router.Get("/health", healthHandler.Health)
}
