package forecast

import "time"

// EvaluateAlerts reports whether rain or snow is expected on any date in the
// closed window [today, today+AlertWindowDays]. Rows outside the window are
// ignored; no rows in the window means no alerts.
func EvaluateAlerts(days []DailySummary, today time.Time) Alerts {
	start := DateOf(today)
	end := start.AddDate(0, 0, AlertWindowDays)

	alerts := Alerts{WindowStart: start, WindowEnd: end}
	for _, d := range days {
		date := DateOf(d.Date)
		if date.Before(start) || date.After(end) {
			continue
		}
		if d.RainTotal > 0 {
			alerts.RainExpected = true
		}
		if d.SnowTotal > 0 {
			alerts.SnowExpected = true
		}
	}
	return alerts
}

// Any reports whether at least one alert is raised.
func (a Alerts) Any() bool {
	return a.RainExpected || a.SnowExpected
}
