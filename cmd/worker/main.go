// Package main provides the entrypoint for the weatherboard refresh worker.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/weatherboard/weatherboard/internal/api/middleware"
	"github.com/weatherboard/weatherboard/internal/config"
	"github.com/weatherboard/weatherboard/internal/export/influx"
	"github.com/weatherboard/weatherboard/internal/provider/resilience"
	"github.com/weatherboard/weatherboard/internal/telemetry"
	"github.com/weatherboard/weatherboard/internal/weather"
	"github.com/weatherboard/weatherboard/internal/weather/openweathermap"
	"github.com/weatherboard/weatherboard/internal/worker"
)

// Version and BuildTime are set at compile time via ldflags
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	const serviceName = "weatherboard-worker"

	log := zerolog.New(os.Stdout).
		With().
		Timestamp().
		Str("service", serviceName).
		Str("version", Version).
		Logger()

	log.Info().Str("build_time", BuildTime).Msg("starting weatherboard worker")

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}
	if cfg.OpenWeather.APIKey == "" {
		log.Fatal().Msg("OPENWEATHER_API_KEY is required")
	}

	// Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tp, err := telemetry.Init(ctx, telemetry.FromAppConfig(cfg, serviceName, Version))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize telemetry")
	}
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := tp.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("failed to shutdown telemetry")
		}
	}()

	providerMetrics, err := middleware.NewProviderMetrics(openweathermap.ProviderName)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize provider metrics")
	}

	forecastMetrics, err := middleware.NewForecastMetrics()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize forecast metrics")
	}

	weatherService := weather.NewService(weather.ServiceConfig{
		Provider: openweathermap.NewClientFromConfig(cfg.OpenWeather, resilience.GlobalRegistry, log),
		Logger:   log,
		Metrics:  providerMetrics,
		CacheTTL: cfg.OpenWeather.CacheTTL,
	})

	// Optional InfluxDB export
	var sink worker.SummarySink
	if cfg.Influx.Addr != "" {
		w, err := influx.NewWriter(influx.Config{
			Addr:     cfg.Influx.Addr,
			Database: cfg.Influx.Database,
			Username: cfg.Influx.Username,
			Password: cfg.Influx.Password,
			Logger:   log,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("failed to create influx writer")
		}
		defer func() { _ = w.Close() }()
		if err := w.Ping(5 * time.Second); err != nil {
			log.Warn().Err(err).Msg("influx not reachable yet, writes will be retried on each run")
		}
		sink = w
		log.Info().Str("addr", cfg.Influx.Addr).Str("database", cfg.Influx.Database).Msg("influx export enabled")
	}

	refreshCfg := worker.DefaultRefreshConfig()
	if targets := worker.TargetsFromCities(cfg.Worker.Cities); len(targets) > 0 {
		refreshCfg.Targets = targets
	}

	job, err := worker.NewRefreshJob(worker.RefreshJobConfig{
		Config:    refreshCfg,
		Logger:    log,
		Forecasts: weatherService,
		Sink:      sink,
		Recorder:  forecastMetrics,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create refresh job")
	}

	scheduler := worker.NewScheduler(job, cfg.Worker.RefreshInterval, log)
	if err := scheduler.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to start scheduler")
	}
	defer scheduler.Stop()

	// Optional Pub/Sub trigger
	if cfg.Worker.PubSubProjectID != "" {
		handler, err := worker.NewPubSubHandler(ctx, worker.PubSubConfig{
			ProjectID:        cfg.Worker.PubSubProjectID,
			SubscriptionName: cfg.Worker.PubSubSubscription,
			RefreshJob:       job,
			Logger:           log,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("failed to create pubsub handler")
		}
		defer func() { _ = handler.Close() }()

		go func() {
			if err := handler.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error().Err(err).Msg("pubsub handler stopped")
			}
		}()
	}

	// Worker also exposes a health endpoint for Cloud Run
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"status":  "healthy",
			"version": Version,
			"metrics": job.MetricsSnapshot(),
		})
	})

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Info().Str("addr", server.Addr).Msg("health server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("health server error")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down worker")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("health server shutdown error")
	}

	log.Info().Msg("worker stopped")
}
