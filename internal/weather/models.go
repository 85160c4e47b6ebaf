package weather

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/weatherboard/weatherboard/internal/forecast"
)

// Weather errors.
var (
	ErrProviderUnavailable = errors.New("weather provider unavailable")
	ErrLocationNotFound    = errors.New("location not found")
	ErrUnauthorized        = errors.New("weather provider rejected credentials")
	ErrInvalidCoordinates  = errors.New("invalid coordinates")
	ErrInvalidQuery        = errors.New("invalid weather query")
	ErrInvalidForecast     = errors.New("invalid forecast data")
)

// Observation represents current conditions at a location.
type Observation struct {
	// Location
	Lat     float64
	Lon     float64
	City    string
	Country string

	// Temperatures in Celsius
	Temperature float64
	FeelsLike   float64
	TempMin     float64
	TempMax     float64

	// Humidity percentage (0-100)
	Humidity int

	// Wind data
	WindSpeed     float64 // m/s
	WindDirection float64 // degrees (0-360, 0=N, 90=E, 180=S, 270=W)
	WindGust      float64 // m/s (optional, 0 if not available)

	// Atmospheric pressure in hPa
	Pressure float64

	// Weather condition
	Condition   Condition
	Description string
	Icon        string

	// Cloud cover percentage (0-100)
	CloudCover float64

	// Visibility in meters
	Visibility float64

	// Precipitation over the last hour in mm. Absent values are 0 with the
	// matching Has flag unset.
	Rain1h    float64
	Snow1h    float64
	HasRain1h bool
	HasSnow1h bool

	// Timestamps
	ObservedAt time.Time
	FetchedAt  time.Time
}

// Condition represents the general weather condition.
type Condition string

const (
	ConditionClear        Condition = "CLEAR"
	ConditionClouds       Condition = "CLOUDS"
	ConditionRain         Condition = "RAIN"
	ConditionDrizzle      Condition = "DRIZZLE"
	ConditionThunderstorm Condition = "THUNDERSTORM"
	ConditionSnow         Condition = "SNOW"
	ConditionMist         Condition = "MIST"
	ConditionFog          Condition = "FOG"
	ConditionHaze         Condition = "HAZE"
	ConditionUnknown      Condition = "UNKNOWN"
)

// WindCategory buckets wind speed for display.
type WindCategory string

const (
	WindCalm     WindCategory = "CALM"     // < 1 m/s
	WindLight    WindCategory = "LIGHT"    // 1-3 m/s
	WindModerate WindCategory = "MODERATE" // 3-8 m/s
	WindStrong   WindCategory = "STRONG"   // > 8 m/s
)

// CategorizeWind returns the category for a wind speed in m/s.
func CategorizeWind(speed float64) WindCategory {
	switch {
	case speed < 1:
		return WindCalm
	case speed < 3:
		return WindLight
	case speed < 8:
		return WindModerate
	default:
		return WindStrong
	}
}

// GetWindCategory returns the wind category for the observation.
func (o *Observation) GetWindCategory() WindCategory {
	return CategorizeWind(o.WindSpeed)
}

// Forecast is a 5-day forecast in 3-hour steps.
type Forecast struct {
	// Location as resolved by the provider
	City    string
	Country string
	Lat     float64
	Lon     float64

	// TimezoneOffset is the location's offset from UTC in seconds.
	TimezoneOffset int

	Samples []forecast.Sample

	// When the forecast was fetched
	FetchedAt time.Time
}

// Location names the place a daily forecast was produced for.
type Location struct {
	City    string
	Country string
	Lat     float64
	Lon     float64
}

// DailyForecast is the aggregated forecast with its alert evaluation.
type DailyForecast struct {
	Location  Location
	Days      []forecast.DailySummary
	Alerts    forecast.Alerts
	FetchedAt time.Time
}

// Query selects a location either by city name or by coordinates.
type Query struct {
	City string

	Lat            float64
	Lon            float64
	HasCoordinates bool
}

// CityQuery returns a query for a city name.
func CityQuery(city string) Query {
	return Query{City: city}
}

// CoordinatesQuery returns a query for a coordinate pair.
func CoordinatesQuery(lat, lon float64) Query {
	return Query{Lat: lat, Lon: lon, HasCoordinates: true}
}

// Validate checks that exactly one selector is set and coordinates are in range.
func (q Query) Validate() error {
	hasCity := strings.TrimSpace(q.City) != ""
	switch {
	case hasCity && q.HasCoordinates:
		return fmt.Errorf("%w: city and coordinates are mutually exclusive", ErrInvalidQuery)
	case !hasCity && !q.HasCoordinates:
		return fmt.Errorf("%w: city or coordinates required", ErrInvalidQuery)
	case q.HasCoordinates:
		return validateCoordinates(q.Lat, q.Lon)
	}
	return nil
}

// String renders the query for logs.
func (q Query) String() string {
	if q.HasCoordinates {
		return fmt.Sprintf("%.4f,%.4f", q.Lat, q.Lon)
	}
	return strings.TrimSpace(q.City)
}

// validateCoordinates checks if coordinates are valid.
func validateCoordinates(lat, lon float64) error {
	if lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		return ErrInvalidCoordinates
	}
	return nil
}
