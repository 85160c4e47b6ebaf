package models

import (
	"github.com/weatherboard/weatherboard/internal/geolocation"
	"github.com/weatherboard/weatherboard/internal/weather"
)

// CurrentWeather is the current conditions at a location.
type CurrentWeather struct {
	City    string  `json:"city"`
	Country string  `json:"country,omitempty"`
	Lat     float64 `json:"lat"`
	Lon     float64 `json:"lon"`

	Temperature float64 `json:"temperature"`
	FeelsLike   float64 `json:"feelsLike"`
	TempMin     float64 `json:"tempMin"`
	TempMax     float64 `json:"tempMax"`
	Humidity    int     `json:"humidity"`
	Pressure    float64 `json:"pressure"`

	WindSpeed     float64 `json:"windSpeed"`
	WindDirection float64 `json:"windDirection"`
	WindCategory  string  `json:"windCategory"`

	Condition   string  `json:"condition"`
	Description string  `json:"description"`
	Icon        string  `json:"icon,omitempty"`
	CloudCover  float64 `json:"cloudCover"`

	// Precipitation over the last hour in mm; omitted when the provider sent none.
	Rain1h *float64 `json:"rain1h,omitempty"`
	Snow1h *float64 `json:"snow1h,omitempty"`

	ObservedAt Timestamp `json:"observedAt"`
}

// NewCurrentWeather converts an observation to its API shape.
func NewCurrentWeather(o *weather.Observation) CurrentWeather {
	cw := CurrentWeather{
		City:          o.City,
		Country:       o.Country,
		Lat:           o.Lat,
		Lon:           o.Lon,
		Temperature:   o.Temperature,
		FeelsLike:     o.FeelsLike,
		TempMin:       o.TempMin,
		TempMax:       o.TempMax,
		Humidity:      o.Humidity,
		Pressure:      o.Pressure,
		WindSpeed:     o.WindSpeed,
		WindDirection: o.WindDirection,
		WindCategory:  string(o.GetWindCategory()),
		Condition:     string(o.Condition),
		Description:   o.Description,
		Icon:          o.Icon,
		CloudCover:    o.CloudCover,
		ObservedAt:    Timestamp(o.ObservedAt),
	}
	if o.HasRain1h {
		v := o.Rain1h
		cw.Rain1h = &v
	}
	if o.HasSnow1h {
		v := o.Snow1h
		cw.Snow1h = &v
	}
	return cw
}

// VisitorLocation is the location resolved from the caller's IP address.
type VisitorLocation struct {
	City     string  `json:"city"`
	Lat      float64 `json:"lat"`
	Lon      float64 `json:"lon"`
	Fallback bool    `json:"fallback"`
}

// NewVisitorLocation converts a geolocation result.
func NewVisitorLocation(l geolocation.Location) VisitorLocation {
	return VisitorLocation{City: l.City, Lat: l.Lat, Lon: l.Lon, Fallback: l.Fallback}
}

// LocalWeather is the response of the "weather here" endpoint.
type LocalWeather struct {
	Location VisitorLocation `json:"location"`
	Weather  CurrentWeather  `json:"weather"`
}
