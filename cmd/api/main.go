// Package main provides the entrypoint for the weatherboard API server.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/weatherboard/weatherboard/internal/api"
	"github.com/weatherboard/weatherboard/internal/api/middleware"
	"github.com/weatherboard/weatherboard/internal/auth"
	"github.com/weatherboard/weatherboard/internal/config"
	"github.com/weatherboard/weatherboard/internal/database"
	"github.com/weatherboard/weatherboard/internal/geolocation"
	"github.com/weatherboard/weatherboard/internal/provider/resilience"
	"github.com/weatherboard/weatherboard/internal/telemetry"
	"github.com/weatherboard/weatherboard/internal/weather"
	"github.com/weatherboard/weatherboard/internal/weather/openweathermap"
)

// Version and BuildTime are set at compile time via ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	const serviceName = "weatherboard-api"

	// Setup structured logging
	log := zerolog.New(os.Stdout).
		With().
		Timestamp().
		Str("service", serviceName).
		Str("version", Version).
		Logger()

	log.Info().
		Str("build_time", BuildTime).
		Msg("starting weatherboard API")

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	// Initialize OpenTelemetry
	ctx := context.Background()
	tp, err := telemetry.Init(ctx, telemetry.FromAppConfig(cfg, serviceName, Version))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize telemetry")
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if shutdownErr := tp.Shutdown(shutdownCtx); shutdownErr != nil {
			log.Error().Err(shutdownErr).Msg("failed to shutdown telemetry")
		}
	}()

	if cfg.Telemetry.Enabled {
		log.Info().
			Str("otlp_endpoint", cfg.Telemetry.OTLPEndpoint).
			Msg("OpenTelemetry initialized")
	}

	// Initialize metrics
	metrics, err := middleware.NewMetrics()
	if err != nil {
		log.Error().Err(err).Msg("failed to initialize metrics")
		os.Exit(1) //nolint:gocritic // intentional exit, telemetry cleanup is best-effort
	}
	providerMetrics, err := middleware.NewProviderMetrics(openweathermap.ProviderName)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize provider metrics")
	}

	// Open the user store
	userRepo, closeStore, err := openUserStore(ctx, cfg.Store, log)
	if err != nil {
		log.Fatal().Err(err).Str("driver", cfg.Store.Driver).Msg("failed to open user store")
	}
	defer closeStore()

	signingKey := cfg.Auth.SigningKey
	if signingKey == "" {
		if !cfg.IsDevelopment() {
			log.Fatal().Msg("JWT_SIGNING_KEY is required outside development")
		}
		signingKey = "local-dev-signing-key-change-in-production"
		log.Warn().Msg("using default JWT signing key - not secure for production")
	}

	jwtService := auth.NewJWTService(auth.JWTConfig{
		SigningKey:     signingKey,
		Issuer:         cfg.Auth.Issuer,
		Audience:       cfg.Auth.Audience,
		AccessTokenTTL: cfg.Auth.AccessTokenTTL,
	})

	authService := auth.NewService(auth.ServiceConfig{
		JWTService: jwtService,
		UserRepo:   userRepo,
		Logger:     log,
	})
	log.Info().Msg("auth service initialized")

	// Weather provider and geolocation share the provider registry
	registry := resilience.GlobalRegistry

	if cfg.OpenWeather.APIKey == "" {
		log.Warn().Msg("OPENWEATHER_API_KEY not set - weather endpoints will fail")
	}
	weatherService := weather.NewService(weather.ServiceConfig{
		Provider: openweathermap.NewClientFromConfig(cfg.OpenWeather, registry, log),
		Logger:   log,
		Metrics:  providerMetrics,
		CacheTTL: cfg.OpenWeather.CacheTTL,
	})
	log.Info().Str("provider", weatherService.ProviderName()).Msg("weather service initialized")

	geoClientCfg := resilience.DefaultClientConfig(geolocation.IPAPIProviderName)
	geoClientCfg.Timeout = 3 * time.Second
	geoClientCfg.MaxRetries = 1
	geoClientCfg.Registry = registry
	geoClientCfg.CircuitBreaker.OnStateChange = resilience.LogStateChanges(log)
	geoService := geolocation.NewService(geolocation.ServiceConfig{
		Locator: geolocation.NewIPAPIClient(geolocation.IPAPIConfig{
			BaseURL:    cfg.Geo.URL,
			HTTPClient: resilience.NewClient(geoClientCfg),
			Logger:     log,
		}),
		Fallback: geolocation.Location{
			Lat:  cfg.Geo.DefaultLat,
			Lon:  cfg.Geo.DefaultLon,
			City: cfg.Geo.DefaultCity,
		},
		Logger: log,
	})

	// Create router with configuration
	router := api.NewRouter(api.RouterConfig{
		Version:            Version,
		BuildTime:          BuildTime,
		Logger:             log,
		ServiceName:        serviceName,
		Metrics:            metrics,
		AuthService:        authService,
		WeatherService:     weatherService,
		GeolocationService: geoService,
		ProviderRegistry:   registry,
		RequireTLS:         cfg.RequireTLS,
	})

	// Create HTTP server
	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Info().
			Str("addr", server.Addr).
			Msg("server listening")

		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
		os.Exit(1)
	}

	log.Info().Msg("server stopped")
}

// openUserStore returns the repository for the configured driver and a
// function that releases it.
func openUserStore(ctx context.Context, cfg config.StoreConfig, log zerolog.Logger) (auth.UserRepository, func(), error) {
	switch cfg.Driver {
	case config.DriverMemory:
		log.Warn().Msg("using in-memory user store - accounts are lost on restart")
		return auth.NewInMemoryUserRepository(), func() {}, nil

	case config.DriverSQLite:
		db, err := database.OpenSQLite(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		log.Info().Str("path", cfg.SQLitePath).Msg("sqlite user store opened")
		return auth.NewSQLiteUserRepository(db), func() { _ = db.Close() }, nil

	case config.DriverPostgres:
		pool, err := database.Connect(ctx, cfg.Postgres, log)
		if err != nil {
			return nil, nil, err
		}
		if err := database.MigratePostgres(ctx, pool); err != nil {
			pool.Close()
			return nil, nil, err
		}
		return auth.NewPostgresUserRepository(pool), pool.Close, nil
	}
	return nil, nil, fmt.Errorf("%w: DB_DRIVER: unknown driver %q", config.ErrInvalid, cfg.Driver)
}
