// Package forecast turns 3-hour forecast samples into per-day summaries and
// derives rain/snow alerts for the coming week.
//
// Everything in this package is pure: no I/O, no shared state. Fetching the
// provider payload is the caller's job; ParsePayload, Aggregate and
// EvaluateAlerts only transform data.
package forecast

import (
	"errors"
	"time"
)

// Forecast errors.
var (
	// ErrInvalidInput is returned when the payload signals failure, lacks the
	// sample list, or contains no samples at all.
	ErrInvalidInput = errors.New("invalid forecast input")

	// ErrMalformedSample is returned when a sample is missing a mandatory field
	// (timestamp, temperature, humidity, wind speed) or the field is not numeric.
	// A malformed sample rejects the whole batch; errors carrying it also match
	// ErrInvalidInput.
	ErrMalformedSample = errors.New("malformed forecast sample")
)

// AlertWindowDays is the number of days after the reference date that are
// still inside the alert window. The window is closed on both ends.
const AlertWindowDays = 7

// TimestampLayout is the layout of the provider's dt_txt field.
const TimestampLayout = "2006-01-02 15:04:05"

// Sample is one 3-hour forecast observation.
type Sample struct {
	// Time as written by the provider; no zone conversion is applied.
	Time time.Time

	// Temperature in Celsius
	Temperature float64

	// Humidity percentage (0-100)
	Humidity int

	// WindSpeed in m/s
	WindSpeed float64

	// Rain3h and Snow3h are the accumulated volume over the 3-hour slot in mm.
	// Absent values are stored as 0.
	Rain3h float64
	Snow3h float64
}

// DailySummary aggregates every sample that falls on one calendar date.
type DailySummary struct {
	Date    time.Time
	Samples int

	TempMin  float64
	TempMax  float64
	TempMean float64

	HumidityMin  int
	HumidityMax  int
	HumidityMean float64

	WindMin  float64
	WindMax  float64
	WindMean float64

	RainTotal float64
	RainMean  float64
	RainPeak  float64

	SnowTotal float64
	SnowMean  float64
	SnowPeak  float64
}

// Alerts holds the outcome of scanning the alert window.
type Alerts struct {
	RainExpected bool
	SnowExpected bool

	// WindowStart and WindowEnd are the inclusive calendar dates scanned.
	WindowStart time.Time
	WindowEnd   time.Time
}

// City is the location metadata the provider sends alongside the samples.
type City struct {
	Name     string
	Country  string
	Lat      float64
	Lon      float64
	Timezone int // offset from UTC in seconds
}

// Payload is a decoded provider forecast document.
type Payload struct {
	City    City
	Samples []Sample
}

// DateOf returns the calendar date of t as midnight UTC.
// The wall clock of t is used as-is.
func DateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
