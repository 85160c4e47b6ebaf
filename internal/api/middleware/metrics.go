package middleware

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/weatherboard/weatherboard/internal/api/middleware"

// Metrics holds the OpenTelemetry metrics instruments.
type Metrics struct {
	requestDuration  metric.Float64Histogram
	requestTotal     metric.Int64Counter
	requestsInFlight metric.Int64UpDownCounter
	responseSize     metric.Int64Histogram
}

// NewMetrics creates a new Metrics instance with initialized instruments.
func NewMetrics() (*Metrics, error) {
	meter := otel.Meter(meterName)

	requestDuration, err := meter.Float64Histogram(
		"http.server.request.duration",
		metric.WithDescription("Duration of HTTP server requests in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	requestTotal, err := meter.Int64Counter(
		"http.server.request.total",
		metric.WithDescription("Total number of HTTP server requests"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, err
	}

	requestsInFlight, err := meter.Int64UpDownCounter(
		"http.server.requests_in_flight",
		metric.WithDescription("Number of HTTP requests currently being processed"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, err
	}

	responseSize, err := meter.Int64Histogram(
		"http.server.response.size",
		metric.WithDescription("Size of HTTP server responses in bytes"),
		metric.WithUnit("By"),
	)
	if err != nil {
		return nil, err
	}

	return &Metrics{
		requestDuration:  requestDuration,
		requestTotal:     requestTotal,
		requestsInFlight: requestsInFlight,
		responseSize:     responseSize,
	}, nil
}

// Middleware returns an HTTP middleware that records metrics for each request.
// Requests are labelled with the matched route pattern; requests that match
// no route share the "unmatched" label.
func (m *Metrics) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			method := attribute.String("http.request.method", r.Method)
			m.requestsInFlight.Add(r.Context(), 1, metric.WithAttributes(method))
			defer m.requestsInFlight.Add(r.Context(), -1, metric.WithAttributes(method))

			wrapped := newStatusRecorder(w)
			next.ServeHTTP(wrapped, r)

			route := routePattern(r)
			if route == "" {
				route = "unmatched"
			}
			attrs := []attribute.KeyValue{
				method,
				attribute.String("http.route", route),
				attribute.Int("http.response.status_code", wrapped.status),
			}
			if wrapped.status >= 400 {
				attrs = append(attrs, attribute.String("error.type", strconv.Itoa(wrapped.status)))
			}

			m.requestDuration.Record(r.Context(), time.Since(start).Seconds(), metric.WithAttributes(attrs...))
			m.requestTotal.Add(r.Context(), 1, metric.WithAttributes(attrs...))
			m.responseSize.Record(r.Context(), wrapped.written, metric.WithAttributes(attrs...))
		})
	}
}

// ProviderMetrics records calls made to an upstream weather or geolocation
// provider, including forecast cache hits and misses.
type ProviderMetrics struct {
	provider        string
	requestDuration metric.Float64Histogram
	requestTotal    metric.Int64Counter
	cacheHits       metric.Int64Counter
	cacheMisses     metric.Int64Counter
}

// NewProviderMetrics creates provider instruments. defaultProvider labels
// recordings that pass an empty provider name.
func NewProviderMetrics(defaultProvider string) (*ProviderMetrics, error) {
	meter := otel.Meter(meterName)

	requestDuration, err := meter.Float64Histogram(
		"provider.request.duration",
		metric.WithDescription("Duration of provider requests in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	requestTotal, err := meter.Int64Counter(
		"provider.request.total",
		metric.WithDescription("Total number of provider requests"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, err
	}

	cacheHits, err := meter.Int64Counter(
		"provider.cache.hit",
		metric.WithDescription("Forecast lookups served from cache"),
		metric.WithUnit("{hit}"),
	)
	if err != nil {
		return nil, err
	}

	cacheMisses, err := meter.Int64Counter(
		"provider.cache.miss",
		metric.WithDescription("Forecast lookups that went upstream"),
		metric.WithUnit("{miss}"),
	)
	if err != nil {
		return nil, err
	}

	return &ProviderMetrics{
		provider:        defaultProvider,
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		cacheHits:       cacheHits,
		cacheMisses:     cacheMisses,
	}, nil
}

func (m *ProviderMetrics) attrs(provider, operation string) []attribute.KeyValue {
	if provider == "" {
		provider = m.provider
	}
	return []attribute.KeyValue{
		attribute.String("provider.name", provider),
		attribute.String("provider.operation", operation),
	}
}

// RecordRequest records one upstream call and its outcome.
func (m *ProviderMetrics) RecordRequest(provider, operation string, duration time.Duration, err error) {
	attrs := m.attrs(provider, operation)
	if err != nil {
		attrs = append(attrs, attribute.Bool("error", true))
	}

	// Recorded after the request context may already be done.
	ctx := context.Background()
	m.requestDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
	m.requestTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordCacheHit records a forecast served from cache.
func (m *ProviderMetrics) RecordCacheHit(provider, operation string) {
	m.cacheHits.Add(context.Background(), 1, metric.WithAttributes(m.attrs(provider, operation)...))
}

// RecordCacheMiss records a forecast that had to be fetched.
func (m *ProviderMetrics) RecordCacheMiss(provider, operation string) {
	m.cacheMisses.Add(context.Background(), 1, metric.WithAttributes(m.attrs(provider, operation)...))
}

// ForecastMetrics counts background forecast refreshes and the precipitation
// alerts they raise.
type ForecastMetrics struct {
	refreshTotal metric.Int64Counter
	alertTotal   metric.Int64Counter
}

// NewForecastMetrics creates the refresh and alert counters.
func NewForecastMetrics() (*ForecastMetrics, error) {
	meter := otel.Meter(meterName)

	refreshTotal, err := meter.Int64Counter(
		"forecast.refresh.total",
		metric.WithDescription("Number of per-city daily forecast refreshes"),
		metric.WithUnit("{refresh}"),
	)
	if err != nil {
		return nil, err
	}

	alertTotal, err := meter.Int64Counter(
		"forecast.alert.total",
		metric.WithDescription("Number of precipitation alerts raised"),
		metric.WithUnit("{alert}"),
	)
	if err != nil {
		return nil, err
	}

	return &ForecastMetrics{refreshTotal: refreshTotal, alertTotal: alertTotal}, nil
}

// RecordRefresh records one city refresh and whether it failed.
func (m *ForecastMetrics) RecordRefresh(ctx context.Context, city string, err error) {
	attrs := []attribute.KeyValue{attribute.String("city", city)}
	if err != nil {
		attrs = append(attrs, attribute.Bool("error", true))
	}
	m.refreshTotal.Add(context.WithoutCancel(ctx), 1, metric.WithAttributes(attrs...))
}

// RecordAlert records an alert of kind ("rain" or "snow") for city.
func (m *ForecastMetrics) RecordAlert(ctx context.Context, city, kind string) {
	m.alertTotal.Add(context.WithoutCancel(ctx), 1, metric.WithAttributes(
		attribute.String("city", city),
		attribute.String("kind", kind),
	))
}
