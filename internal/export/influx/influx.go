// Package influx exports daily forecast summaries to InfluxDB 1.x.
package influx

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	client "github.com/influxdata/influxdb1-client/v2"
	"github.com/rs/zerolog"

	"github.com/weatherboard/weatherboard/internal/weather"
)

// Measurement is the measurement every daily summary is written to.
const Measurement = "daily_forecast"

// ErrNoAddress is returned by NewWriter when no address is configured.
var ErrNoAddress = errors.New("influx address is required")

// Config holds the connection settings.
type Config struct {
	Addr     string
	Database string
	Username string
	Password string

	// Timeout bounds each HTTP request. Default: 10 seconds
	Timeout time.Duration

	Logger zerolog.Logger
}

// Writer writes daily summaries as points.
type Writer struct {
	client   client.Client
	database string
	logger   zerolog.Logger
}

// NewWriter creates a Writer.
func NewWriter(cfg Config) (*Writer, error) {
	if strings.TrimSpace(cfg.Addr) == "" {
		return nil, ErrNoAddress
	}
	if cfg.Database == "" {
		cfg.Database = "weatherboard"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}

	c, err := client.NewHTTPClient(client.HTTPConfig{
		Addr:     cfg.Addr,
		Username: cfg.Username,
		Password: cfg.Password,
		Timeout:  cfg.Timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("creating influx client: %w", err)
	}

	return &Writer{client: c, database: cfg.Database, logger: cfg.Logger}, nil
}

// Ping checks that the server is reachable.
func (w *Writer) Ping(timeout time.Duration) error {
	if _, _, err := w.client.Ping(timeout); err != nil {
		return fmt.Errorf("pinging influx: %w", err)
	}
	return nil
}

// WriteDailyForecast writes one point per day of fc, tagged with city.
func (w *Writer) WriteDailyForecast(ctx context.Context, city string, fc *weather.DailyForecast) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if fc == nil || len(fc.Days) == 0 {
		return nil
	}

	bp, err := Points(w.database, city, fc)
	if err != nil {
		return err
	}
	if err := w.client.Write(bp); err != nil {
		return fmt.Errorf("writing %d points for %s: %w", len(fc.Days), city, err)
	}

	w.logger.Debug().Str("city", city).Int("points", len(fc.Days)).Msg("daily summaries exported")
	return nil
}

// Close releases client resources.
func (w *Writer) Close() error {
	return w.client.Close()
}

// Points builds the batch for fc.
func Points(database, city string, fc *weather.DailyForecast) (client.BatchPoints, error) {
	bp, err := client.NewBatchPoints(client.BatchPointsConfig{
		Database:  database,
		Precision: "s",
	})
	if err != nil {
		return nil, err
	}

	tags := map[string]string{"city": city}
	if fc.Location.Country != "" {
		tags["country"] = fc.Location.Country
	}

	for _, d := range fc.Days {
		fields := map[string]interface{}{
			"samples":       d.Samples,
			"temp_min":      d.TempMin,
			"temp_max":      d.TempMax,
			"temp_mean":     d.TempMean,
			"humidity_min":  d.HumidityMin,
			"humidity_max":  d.HumidityMax,
			"humidity_mean": d.HumidityMean,
			"wind_min":      d.WindMin,
			"wind_max":      d.WindMax,
			"wind_mean":     d.WindMean,
			"rain_total":    d.RainTotal,
			"rain_mean":     d.RainMean,
			"rain_peak":     d.RainPeak,
			"snow_total":    d.SnowTotal,
			"snow_mean":     d.SnowMean,
			"snow_peak":     d.SnowPeak,
		}
		p, err := client.NewPoint(Measurement, tags, fields, d.Date)
		if err != nil {
			return nil, fmt.Errorf("building point for %s: %w", d.Date.Format(time.DateOnly), err)
		}
		bp.AddPoint(p)
	}
	return bp, nil
}
