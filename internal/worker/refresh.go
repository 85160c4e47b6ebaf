package worker

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/weatherboard/weatherboard/internal/weather"
)

// ForecastSource produces the daily forecast for a query.
// *weather.Service satisfies it.
type ForecastSource interface {
	GetDailyForecast(ctx context.Context, q weather.Query) (*weather.DailyForecast, error)
}

// SummarySink receives the daily summaries of every refreshed city.
type SummarySink interface {
	WriteDailyForecast(ctx context.Context, city string, fc *weather.DailyForecast) error
}

// MetricsRecorder receives per-city refresh outcomes.
// *middleware.ForecastMetrics satisfies it.
type MetricsRecorder interface {
	RecordRefresh(ctx context.Context, city string, err error)
	RecordAlert(ctx context.Context, city, kind string)
}

// ErrNoForecastSource is returned by NewRefreshJob when no source is given.
var ErrNoForecastSource = errors.New("forecast source is required")

// RefreshJob refreshes daily forecasts for the configured cities.
type RefreshJob struct {
	config    RefreshConfig
	logger    zerolog.Logger
	forecasts ForecastSource
	sink      SummarySink
	recorder  MetricsRecorder
	now       func() time.Time

	metrics *RefreshMetrics
}

// RefreshMetrics tracks refresh job statistics.
type RefreshMetrics struct {
	mu sync.RWMutex

	// Counters
	TotalRefreshes    int64
	SuccessfulRefresh int64
	FailedRefreshes   int64
	RainAlerts        int64
	SnowAlerts        int64
	SinkFailures      int64

	// Timings
	LastRefreshAt       time.Time
	LastRefreshDuration time.Duration
	TotalDuration       time.Duration
}

// RefreshJobConfig holds configuration for creating a RefreshJob.
type RefreshJobConfig struct {
	Config    RefreshConfig
	Logger    zerolog.Logger
	Forecasts ForecastSource

	// Sink and Recorder are optional.
	Sink     SummarySink
	Recorder MetricsRecorder

	// Now overrides the clock used for result timestamps.
	Now func() time.Time
}

// NewRefreshJob creates a new refresh job processor.
func NewRefreshJob(cfg RefreshJobConfig) (*RefreshJob, error) {
	if cfg.Forecasts == nil {
		return nil, ErrNoForecastSource
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	return &RefreshJob{
		config:    cfg.Config.withDefaults(),
		logger:    cfg.Logger,
		forecasts: cfg.Forecasts,
		sink:      cfg.Sink,
		recorder:  cfg.Recorder,
		now:       now,
		metrics:   &RefreshMetrics{},
	}, nil
}

// Config returns the effective configuration.
func (j *RefreshJob) Config() RefreshConfig {
	return j.config
}

// RefreshResult contains the result of a refresh operation.
type RefreshResult struct {
	RunID      string
	StartTime  time.Time
	EndTime    time.Time
	Duration   time.Duration
	Targets    int
	Successful int
	Failed     int
	RainAlerts int
	SnowAlerts int
	Errors     []RefreshError
}

// RefreshError represents an error during refresh.
type RefreshError struct {
	City  string
	Stage string // "fetch" or "sink"
	Error string
}

// CityAlert describes an alert raised for one city during a run.
type CityAlert struct {
	City string
	Rain bool
	Snow bool
}

// Run executes the refresh job for all configured targets.
func (j *RefreshJob) Run(ctx context.Context) *RefreshResult {
	return j.run(ctx, j.config)
}

// RunCity refreshes a single city with the job's timeout.
func (j *RefreshJob) RunCity(ctx context.Context, city string) *RefreshResult {
	cfg := j.config
	cfg.Targets = []RefreshTarget{{City: city, Priority: 1}}
	cfg.Concurrency = 1
	return j.run(ctx, cfg)
}

func (j *RefreshJob) run(ctx context.Context, cfg RefreshConfig) *RefreshResult {
	startTime := j.now()
	targets := cfg.OrderedTargets()
	result := &RefreshResult{
		RunID:     uuid.NewString(),
		StartTime: startTime,
		Targets:   len(targets),
	}

	logger := j.logger.With().Str("run_id", result.RunID).Logger()
	logger.Info().
		Int("targets", result.Targets).
		Int("concurrency", cfg.Concurrency).
		Msg("starting forecast refresh job")

	targetsChan := make(chan RefreshTarget, len(targets))
	resultsChan := make(chan targetResult, len(targets))

	var wg sync.WaitGroup
	for i := 0; i < cfg.Concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			j.refreshWorker(ctx, cfg, logger, targetsChan, resultsChan)
		}()
	}

	for _, t := range targets {
		targetsChan <- t
	}
	close(targetsChan)

	go func() {
		wg.Wait()
		close(resultsChan)
	}()

	for tr := range resultsChan {
		if tr.success {
			result.Successful++
		} else {
			result.Failed++
		}
		if tr.alert.Rain {
			result.RainAlerts++
		}
		if tr.alert.Snow {
			result.SnowAlerts++
		}
		result.Errors = append(result.Errors, tr.errors...)
	}

	// Targets never picked up because the context ended count as failures.
	if skipped := result.Targets - result.Successful - result.Failed; skipped > 0 {
		result.Failed += skipped
	}

	result.EndTime = j.now()
	result.Duration = result.EndTime.Sub(startTime)

	j.updateMetrics(result)

	logger.Info().
		Dur("duration", result.Duration).
		Int("successful", result.Successful).
		Int("failed", result.Failed).
		Int("rain_alerts", result.RainAlerts).
		Int("snow_alerts", result.SnowAlerts).
		Msg("forecast refresh job completed")

	return result
}

type targetResult struct {
	success bool
	alert   CityAlert
	errors  []RefreshError
}

func (j *RefreshJob) refreshWorker(ctx context.Context, cfg RefreshConfig, logger zerolog.Logger, targets <-chan RefreshTarget, results chan<- targetResult) {
	for target := range targets {
		select {
		case <-ctx.Done():
			return
		default:
			results <- j.refreshTarget(ctx, cfg, logger, target)
		}
	}
}

func (j *RefreshJob) refreshTarget(ctx context.Context, cfg RefreshConfig, logger zerolog.Logger, target RefreshTarget) targetResult {
	result := targetResult{alert: CityAlert{City: target.City}}

	targetCtx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	fc, err := j.forecasts.GetDailyForecast(targetCtx, weather.CityQuery(target.City))
	if j.recorder != nil {
		j.recorder.RecordRefresh(ctx, target.City, err)
	}
	if err != nil {
		logger.Warn().Err(err).Str("city", target.City).Msg("forecast refresh failed")
		result.errors = append(result.errors, RefreshError{City: target.City, Stage: "fetch", Error: err.Error()})
		return result
	}
	result.success = true
	result.alert.Rain = fc.Alerts.RainExpected
	result.alert.Snow = fc.Alerts.SnowExpected

	if result.alert.Rain || result.alert.Snow {
		logger.Info().
			Str("city", target.City).
			Bool("rain", result.alert.Rain).
			Bool("snow", result.alert.Snow).
			Str("window_start", fc.Alerts.WindowStart.Format(time.DateOnly)).
			Str("window_end", fc.Alerts.WindowEnd.Format(time.DateOnly)).
			Msg("precipitation alert")
	}
	if j.recorder != nil {
		if result.alert.Rain {
			j.recorder.RecordAlert(ctx, target.City, "rain")
		}
		if result.alert.Snow {
			j.recorder.RecordAlert(ctx, target.City, "snow")
		}
	}

	if j.sink != nil {
		// A failed export does not fail the refresh; the cache is warm either way.
		if err := j.sink.WriteDailyForecast(targetCtx, target.City, fc); err != nil {
			logger.Error().Err(err).Str("city", target.City).Msg("writing summaries failed")
			result.errors = append(result.errors, RefreshError{City: target.City, Stage: "sink", Error: err.Error()})
		}
	}

	return result
}

func (j *RefreshJob) updateMetrics(result *RefreshResult) {
	j.metrics.mu.Lock()
	defer j.metrics.mu.Unlock()

	j.metrics.TotalRefreshes++
	j.metrics.SuccessfulRefresh += int64(result.Successful)
	j.metrics.FailedRefreshes += int64(result.Failed)
	j.metrics.RainAlerts += int64(result.RainAlerts)
	j.metrics.SnowAlerts += int64(result.SnowAlerts)
	for _, e := range result.Errors {
		if e.Stage == "sink" {
			j.metrics.SinkFailures++
		}
	}
	j.metrics.LastRefreshAt = result.EndTime
	j.metrics.LastRefreshDuration = result.Duration
	j.metrics.TotalDuration += result.Duration
}

// GetMetrics returns a copy of the current metrics.
func (j *RefreshJob) GetMetrics() RefreshMetrics {
	j.metrics.mu.RLock()
	defer j.metrics.mu.RUnlock()

	return RefreshMetrics{
		TotalRefreshes:      j.metrics.TotalRefreshes,
		SuccessfulRefresh:   j.metrics.SuccessfulRefresh,
		FailedRefreshes:     j.metrics.FailedRefreshes,
		RainAlerts:          j.metrics.RainAlerts,
		SnowAlerts:          j.metrics.SnowAlerts,
		SinkFailures:        j.metrics.SinkFailures,
		LastRefreshAt:       j.metrics.LastRefreshAt,
		LastRefreshDuration: j.metrics.LastRefreshDuration,
		TotalDuration:       j.metrics.TotalDuration,
	}
}

// MetricsSnapshot returns a snapshot of the current metrics as a map.
func (j *RefreshJob) MetricsSnapshot() map[string]interface{} {
	m := j.GetMetrics()
	return map[string]interface{}{
		"total_refreshes":       m.TotalRefreshes,
		"successful_refreshes":  m.SuccessfulRefresh,
		"failed_refreshes":      m.FailedRefreshes,
		"rain_alerts":           m.RainAlerts,
		"snow_alerts":           m.SnowAlerts,
		"sink_failures":         m.SinkFailures,
		"last_refresh_at":       m.LastRefreshAt,
		"last_refresh_duration": m.LastRefreshDuration.String(),
		"total_duration":        m.TotalDuration.String(),
	}
}
