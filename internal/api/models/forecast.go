package models

import (
	"github.com/weatherboard/weatherboard/internal/forecast"
	"github.com/weatherboard/weatherboard/internal/weather"
)

// ForecastLocation names the place a forecast was produced for.
type ForecastLocation struct {
	City    string  `json:"city"`
	Country string  `json:"country,omitempty"`
	Lat     float64 `json:"lat"`
	Lon     float64 `json:"lon"`
}

// DaySummary holds the statistics of one calendar day.
type DaySummary struct {
	Date    Date `json:"date"`
	Samples int  `json:"samples"`

	TempMin  float64 `json:"tempMin"`
	TempMax  float64 `json:"tempMax"`
	TempMean float64 `json:"tempMean"`

	HumidityMin  int     `json:"humidityMin"`
	HumidityMax  int     `json:"humidityMax"`
	HumidityMean float64 `json:"humidityMean"`

	WindMin  float64 `json:"windMin"`
	WindMax  float64 `json:"windMax"`
	WindMean float64 `json:"windMean"`

	RainTotal float64 `json:"rainTotal"`
	RainMean  float64 `json:"rainMean"`
	RainPeak  float64 `json:"rainPeak"`

	SnowTotal float64 `json:"snowTotal"`
	SnowMean  float64 `json:"snowMean"`
	SnowPeak  float64 `json:"snowPeak"`
}

// ForecastAlerts reports precipitation expected inside the alert window.
type ForecastAlerts struct {
	RainExpected bool `json:"rainExpected"`
	SnowExpected bool `json:"snowExpected"`
	WindowStart  Date `json:"windowStart"`
	WindowEnd    Date `json:"windowEnd"`
}

// DailyForecast is the aggregated forecast response.
type DailyForecast struct {
	Location  ForecastLocation `json:"location"`
	Days      []DaySummary     `json:"days"`
	Alerts    ForecastAlerts   `json:"alerts"`
	FetchedAt Timestamp        `json:"fetchedAt"`
}

// NewDaySummary converts a daily summary.
func NewDaySummary(d forecast.DailySummary) DaySummary {
	return DaySummary{
		Date:         Date(d.Date),
		Samples:      d.Samples,
		TempMin:      d.TempMin,
		TempMax:      d.TempMax,
		TempMean:     d.TempMean,
		HumidityMin:  d.HumidityMin,
		HumidityMax:  d.HumidityMax,
		HumidityMean: d.HumidityMean,
		WindMin:      d.WindMin,
		WindMax:      d.WindMax,
		WindMean:     d.WindMean,
		RainTotal:    d.RainTotal,
		RainMean:     d.RainMean,
		RainPeak:     d.RainPeak,
		SnowTotal:    d.SnowTotal,
		SnowMean:     d.SnowMean,
		SnowPeak:     d.SnowPeak,
	}
}

// NewDailyForecast converts the aggregated forecast to its API shape.
func NewDailyForecast(df *weather.DailyForecast) DailyForecast {
	days := make([]DaySummary, len(df.Days))
	for i, d := range df.Days {
		days[i] = NewDaySummary(d)
	}
	return DailyForecast{
		Location: ForecastLocation{
			City:    df.Location.City,
			Country: df.Location.Country,
			Lat:     df.Location.Lat,
			Lon:     df.Location.Lon,
		},
		Days: days,
		Alerts: ForecastAlerts{
			RainExpected: df.Alerts.RainExpected,
			SnowExpected: df.Alerts.SnowExpected,
			WindowStart:  Date(df.Alerts.WindowStart),
			WindowEnd:    Date(df.Alerts.WindowEnd),
		},
		FetchedAt: Timestamp(df.FetchedAt),
	}
}
