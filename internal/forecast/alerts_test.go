package forecast_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/weatherboard/weatherboard/internal/forecast"
)

func TestEvaluateAlerts(t *testing.T) {
	today := time.Date(2025, 10, 26, 15, 42, 0, 0, time.UTC)
	day := func(offset int, rain, snow float64) forecast.DailySummary {
		return forecast.DailySummary{
			Date:      forecast.DateOf(today).AddDate(0, 0, offset),
			RainTotal: rain,
			SnowTotal: snow,
		}
	}

	tests := []struct {
		name     string
		days     []forecast.DailySummary
		wantRain bool
		wantSnow bool
	}{
		{
			name:     "rain three days out",
			days:     []forecast.DailySummary{day(3, 2.0, 0)},
			wantRain: true,
		},
		{
			name: "all dry",
			days: []forecast.DailySummary{day(0, 0, 0), day(1, 0, 0), day(2, 0, 0)},
		},
		{
			name:     "snow today",
			days:     []forecast.DailySummary{day(0, 0, 0.4)},
			wantSnow: true,
		},
		{
			name:     "rain and snow on different days",
			days:     []forecast.DailySummary{day(1, 0.1, 0), day(5, 0, 2)},
			wantRain: true,
			wantSnow: true,
		},
		{
			name:     "last day of window is inside",
			days:     []forecast.DailySummary{day(forecast.AlertWindowDays, 1, 1)},
			wantRain: true,
			wantSnow: true,
		},
		{
			name: "day after window is outside",
			days: []forecast.DailySummary{day(forecast.AlertWindowDays+1, 5, 5)},
		},
		{
			name: "past days are ignored",
			days: []forecast.DailySummary{day(-1, 5, 5)},
		},
		{
			name: "no rows",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			alerts := forecast.EvaluateAlerts(tt.days, today)
			assert.Equal(t, tt.wantRain, alerts.RainExpected)
			assert.Equal(t, tt.wantSnow, alerts.SnowExpected)
			assert.Equal(t, tt.wantRain || tt.wantSnow, alerts.Any())
		})
	}
}

func TestEvaluateAlerts_Window(t *testing.T) {
	today := time.Date(2025, 12, 28, 8, 0, 0, 0, time.UTC)

	alerts := forecast.EvaluateAlerts(nil, today)

	assert.Equal(t, time.Date(2025, 12, 28, 0, 0, 0, 0, time.UTC), alerts.WindowStart)
	assert.Equal(t, time.Date(2026, 1, 4, 0, 0, 0, 0, time.UTC), alerts.WindowEnd)
}
