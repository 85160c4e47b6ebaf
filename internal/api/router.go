// Package api provides the HTTP API and dashboard for weatherboard.
package api

import (
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/weatherboard/weatherboard/internal/api/handler"
	"github.com/weatherboard/weatherboard/internal/api/middleware"
	"github.com/weatherboard/weatherboard/internal/auth"
	"github.com/weatherboard/weatherboard/internal/geolocation"
	"github.com/weatherboard/weatherboard/internal/provider/resilience"
	"github.com/weatherboard/weatherboard/internal/weather"
)

// RouterConfig holds configuration for the router.
type RouterConfig struct {
	Version     string
	BuildTime   string
	Logger      zerolog.Logger
	ServiceName string
	Metrics     *middleware.Metrics

	AuthService        *auth.Service
	WeatherService     *weather.Service
	GeolocationService *geolocation.Service

	// ProviderRegistry feeds provider health into the readiness check.
	ProviderRegistry *resilience.Registry

	// RequireTLS rejects requests a proxy reports as plain HTTP.
	RequireTLS bool
}

// NewRouter creates a new chi router with all API routes configured.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = "weatherboard-api"
	}

	// Global middleware - order matters
	r.Use(middleware.RequestID)            // Generate/propagate request ID first
	r.Use(middleware.Tracing(serviceName)) // Distributed tracing
	if cfg.Metrics != nil {
		r.Use(cfg.Metrics.Middleware()) // HTTP metrics
	}
	r.Use(middleware.Logger(cfg.Logger))         // Structured logging
	r.Use(middleware.Recovery(cfg.Logger))       // Panic recovery
	r.Use(chimiddleware.RealIP)                  // Real IP extraction
	r.Use(middleware.SecurityHeaders)            // Security headers (HSTS, CSP, etc.)
	r.Use(middleware.RequireTLS(cfg.RequireTLS)) // TLS enforcement behind a proxy
	r.Use(middleware.ContentTypeJSON)            // JSON content type

	opsHandler := handler.NewOpsHandler(cfg.Version, cfg.BuildTime, cfg.AuthService, cfg.ProviderRegistry)
	usersHandler := handler.NewUsersHandler(cfg.AuthService)
	weatherHandler := handler.NewWeatherHandler(cfg.WeatherService, cfg.GeolocationService, cfg.Logger)
	dashboardHandler := handler.NewDashboardHandler(cfg.WeatherService, cfg.GeolocationService, cfg.Logger)

	authMiddleware := middleware.Auth(cfg.AuthService)

	authRateLimit := middleware.RateLimitByIP(middleware.AuthRateLimit)           // 10 req/min
	expensiveRateLimit := middleware.RateLimitByIP(middleware.ExpensiveRateLimit) // 30 req/min
	standardRateLimit := middleware.RateLimitByIP(middleware.StandardRateLimit)   // 100 req/min

	// Dashboard renders two provider lookups per view
	r.With(expensiveRateLimit).Get("/", dashboardHandler.Dashboard)

	r.Route("/v1", func(r chi.Router) {
		// Ops endpoints (public)
		r.Route("/ops", func(r chi.Router) {
			r.Get("/health", opsHandler.HealthCheck)
			r.Get("/ready", opsHandler.ReadinessCheck)
		})

		// Account endpoints - strict rate limiting on credential handling
		r.With(authRateLimit, middleware.AllowContentTypes("application/json")).
			Post("/users", usersHandler.Register)
		r.With(authRateLimit, middleware.AllowContentTypes("application/json", "application/x-www-form-urlencoded")).
			Post("/login", usersHandler.Login)
		r.With(authMiddleware, middleware.RateLimitByUser(middleware.StandardRateLimit)).
			Get("/users/me", usersHandler.Me)

		// Weather endpoints (public) - standard rate limiting per IP
		r.Route("/weather", func(r chi.Router) {
			r.Use(standardRateLimit)
			r.Get("/current", weatherHandler.Current)
			r.Get("/here", weatherHandler.Here)
		})
		r.With(standardRateLimit).Get("/forecast/daily", weatherHandler.DailyForecast)
	})

	return r
}
