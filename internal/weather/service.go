package weather

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/weatherboard/weatherboard/internal/forecast"
)

// Provider defines the interface for weather data providers.
type Provider interface {
	// GetCurrentWeather fetches current weather for a location.
	GetCurrentWeather(ctx context.Context, lat, lon float64) (*Observation, error)

	// GetCurrentWeatherByCity fetches current weather for a named city.
	GetCurrentWeatherByCity(ctx context.Context, city string) (*Observation, error)

	// GetForecast fetches the 3-hour forecast for a location.
	GetForecast(ctx context.Context, lat, lon float64) (*Forecast, error)

	// GetForecastByCity fetches the 3-hour forecast for a named city.
	GetForecastByCity(ctx context.Context, city string) (*Forecast, error)

	// Name returns the provider name for logging.
	Name() string
}

// MetricsRecorder receives provider call and cache metrics.
type MetricsRecorder interface {
	RecordRequest(provider, operation string, duration time.Duration, err error)
	RecordCacheHit(provider, operation string)
	RecordCacheMiss(provider, operation string)
}

// ServiceConfig holds configuration for the weather service.
type ServiceConfig struct {
	// Provider is the weather data provider.
	Provider Provider

	// Logger for service operations.
	Logger zerolog.Logger

	// Metrics is optional.
	Metrics MetricsRecorder

	// CacheTTL is how long to cache weather data (default: 10 minutes).
	CacheTTL time.Duration

	// CacheGridSize is the size of cache grid cells in degrees (default: 0.1).
	// Points within the same grid cell share cached data.
	CacheGridSize float64

	// StaleIfErrorTTL allows serving stale data on provider errors (default: 1 hour).
	StaleIfErrorTTL time.Duration

	// Now is the clock used for cache expiry and the alert reference date.
	// Defaults to time.Now.
	Now func() time.Time
}

// Service provides weather data with caching.
type Service struct {
	provider      Provider
	logger        zerolog.Logger
	metrics       MetricsRecorder
	cacheGridSize float64
	now           func() time.Time

	observations *ttlCache[*Observation]
	forecasts    *ttlCache[*Forecast]

	cleanupMu       sync.Mutex
	lastCleanup     time.Time
	cleanupInterval time.Duration
}

const (
	opCurrent  = "current_weather"
	opForecast = "forecast"
)

// NewService creates a new weather service.
func NewService(cfg ServiceConfig) *Service {
	cacheTTL := cfg.CacheTTL
	if cacheTTL == 0 {
		cacheTTL = 10 * time.Minute
	}

	cacheGridSize := cfg.CacheGridSize
	if cacheGridSize == 0 {
		cacheGridSize = 0.1 // ~11km at equator
	}

	staleIfErrorTTL := cfg.StaleIfErrorTTL
	if staleIfErrorTTL == 0 {
		staleIfErrorTTL = 1 * time.Hour
	}

	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	return &Service{
		provider:        cfg.Provider,
		logger:          cfg.Logger,
		metrics:         cfg.Metrics,
		cacheGridSize:   cacheGridSize,
		now:             now,
		observations:    newTTLCache[*Observation](cacheTTL, staleIfErrorTTL),
		forecasts:       newTTLCache[*Forecast](cacheTTL, staleIfErrorTTL),
		cleanupInterval: 5 * time.Minute,
	}
}

// ProviderName returns the name of the underlying provider.
func (s *Service) ProviderName() string {
	return s.provider.Name()
}

// GetCurrentWeather returns current weather for a location.
// Uses cached data if available and not expired.
func (s *Service) GetCurrentWeather(ctx context.Context, lat, lon float64) (*Observation, error) {
	return s.Current(ctx, CoordinatesQuery(lat, lon))
}

// GetCurrentWeatherByCity returns current weather for a named city.
func (s *Service) GetCurrentWeatherByCity(ctx context.Context, city string) (*Observation, error) {
	return s.Current(ctx, CityQuery(city))
}

// GetForecast returns the 3-hour forecast for a location.
func (s *Service) GetForecast(ctx context.Context, lat, lon float64) (*Forecast, error) {
	return s.Forecast(ctx, CoordinatesQuery(lat, lon))
}

// GetForecastByCity returns the 3-hour forecast for a named city.
func (s *Service) GetForecastByCity(ctx context.Context, city string) (*Forecast, error) {
	return s.Forecast(ctx, CityQuery(city))
}

// Current returns current weather for a query.
func (s *Service) Current(ctx context.Context, q Query) (*Observation, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	return fetchCached(ctx, s, s.observations, opCurrent, q, func(ctx context.Context) (*Observation, error) {
		if q.HasCoordinates {
			return s.provider.GetCurrentWeather(ctx, q.Lat, q.Lon)
		}
		return s.provider.GetCurrentWeatherByCity(ctx, strings.TrimSpace(q.City))
	})
}

// Forecast returns the raw 3-hour forecast for a query.
func (s *Service) Forecast(ctx context.Context, q Query) (*Forecast, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	return fetchCached(ctx, s, s.forecasts, opForecast, q, func(ctx context.Context) (*Forecast, error) {
		if q.HasCoordinates {
			return s.provider.GetForecast(ctx, q.Lat, q.Lon)
		}
		return s.provider.GetForecastByCity(ctx, strings.TrimSpace(q.City))
	})
}

// GetDailyForecast fetches the forecast for a query, aggregates it per day and
// evaluates alerts against today's date in UTC.
func (s *Service) GetDailyForecast(ctx context.Context, q Query) (*DailyForecast, error) {
	fc, err := s.Forecast(ctx, q)
	if err != nil {
		return nil, err
	}

	days, err := forecast.Aggregate(fc.Samples)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidForecast, err)
	}

	return &DailyForecast{
		Location: Location{
			City:    fc.City,
			Country: fc.Country,
			Lat:     fc.Lat,
			Lon:     fc.Lon,
		},
		Days:      days,
		Alerts:    forecast.EvaluateAlerts(days, s.now().UTC()),
		FetchedAt: fc.FetchedAt,
	}, nil
}

// fetchCached serves fresh cache entries, otherwise calls fetch and stores the
// result. On provider failure an entry inside the stale window is served instead.
// The provider call runs without holding the cache lock.
func fetchCached[T any](ctx context.Context, s *Service, cache *ttlCache[T], op string, q Query, fetch func(context.Context) (T, error)) (T, error) {
	key := s.cacheKey(q)
	provider := s.provider.Name()

	if v, ok := cache.fresh(key, s.now()); ok {
		s.recordCacheHit(provider, op)
		return v, nil
	}
	s.recordCacheMiss(provider, op)

	s.logger.Debug().
		Str("query", q.String()).
		Str("operation", op).
		Str("provider", provider).
		Msg("fetching from provider")

	start := time.Now()
	v, err := fetch(ctx)
	s.recordRequest(provider, op, time.Since(start), err)

	if err != nil {
		var zero T
		s.logger.Error().Err(err).
			Str("query", q.String()).
			Str("operation", op).
			Msg("provider request failed")

		switch {
		case errors.Is(err, ErrLocationNotFound), errors.Is(err, ErrUnauthorized):
			return zero, err
		case errors.Is(err, forecast.ErrInvalidInput):
			return zero, fmt.Errorf("%w: %w", ErrInvalidForecast, err)
		}

		if stale, fetchedAt, ok := cache.stale(key, s.now()); ok {
			s.logger.Warn().
				Time("fetched_at", fetchedAt).
				Str("operation", op).
				Msg("serving stale data due to provider error")
			return stale, nil
		}

		return zero, fmt.Errorf("%w: %w", ErrProviderUnavailable, err)
	}

	cache.put(key, v, s.now())
	s.cleanupIfNeeded()

	return v, nil
}

// cacheKey groups nearby coordinates into grid cells; city names are
// case-folded.
func (s *Service) cacheKey(q Query) string {
	if !q.HasCoordinates {
		return "city:" + strings.ToLower(strings.TrimSpace(q.City))
	}
	gridLat := math.Floor(q.Lat/s.cacheGridSize) * s.cacheGridSize
	gridLon := math.Floor(q.Lon/s.cacheGridSize) * s.cacheGridSize
	return fmt.Sprintf("grid:%.2f:%.2f", gridLat, gridLon)
}

// cleanupIfNeeded removes expired entries if cleanup interval has passed.
func (s *Service) cleanupIfNeeded() {
	now := s.now()

	s.cleanupMu.Lock()
	if now.Sub(s.lastCleanup) < s.cleanupInterval {
		s.cleanupMu.Unlock()
		return
	}
	s.lastCleanup = now
	s.cleanupMu.Unlock()

	expired := s.observations.evict(now) + s.forecasts.evict(now)
	if expired > 0 {
		s.logger.Debug().
			Int("expired_entries", expired).
			Msg("cleaned up expired weather cache entries")
	}
}

// InvalidateCache clears all cached data.
func (s *Service) InvalidateCache() {
	s.observations.reset()
	s.forecasts.reset()
}

// CacheStats returns cache statistics.
func (s *Service) CacheStats() CacheStats {
	now := s.now()
	weatherTotal, weatherFresh := s.observations.counts(now)
	forecastTotal, forecastFresh := s.forecasts.counts(now)

	return CacheStats{
		WeatherEntries:       weatherTotal,
		WeatherFreshEntries:  weatherFresh,
		ForecastEntries:      forecastTotal,
		ForecastFreshEntries: forecastFresh,
		Provider:             s.provider.Name(),
	}
}

// CacheStats contains cache statistics.
type CacheStats struct {
	WeatherEntries       int
	WeatherFreshEntries  int
	ForecastEntries      int
	ForecastFreshEntries int
	Provider             string
}

func (s *Service) recordRequest(provider, op string, d time.Duration, err error) {
	if s.metrics != nil {
		s.metrics.RecordRequest(provider, op, d, err)
	}
}

func (s *Service) recordCacheHit(provider, op string) {
	if s.metrics != nil {
		s.metrics.RecordCacheHit(provider, op)
	}
}

func (s *Service) recordCacheMiss(provider, op string) {
	if s.metrics != nil {
		s.metrics.RecordCacheMiss(provider, op)
	}
}
