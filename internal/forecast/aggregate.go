package forecast

import (
	"fmt"
	"slices"
	"time"
)

// Aggregate groups samples by calendar date and computes the daily statistics.
//
// Only dates present in the input produce a row; gaps are not filled. Means are
// unweighted over every sample in the group, so a sample without rain still
// counts towards the rain mean denominator.
func Aggregate(samples []Sample) ([]DailySummary, error) {
	if len(samples) == 0 {
		return nil, fmt.Errorf("%w: no forecast samples", ErrInvalidInput)
	}

	index := make(map[time.Time]int)
	groups := make([]*dayAccumulator, 0, len(samples)/8+1)

	for _, s := range samples {
		date := DateOf(s.Time)
		i, ok := index[date]
		if !ok {
			i = len(groups)
			index[date] = i
			groups = append(groups, &dayAccumulator{date: date})
		}
		groups[i].add(s)
	}

	days := make([]DailySummary, 0, len(groups))
	for _, g := range groups {
		days = append(days, g.summary())
	}

	// Already chronological for ordered input; the stable sort keeps it that way
	// and fixes up out-of-order samples.
	slices.SortStableFunc(days, func(a, b DailySummary) int {
		return a.Date.Compare(b.Date)
	})

	return days, nil
}

// Summarize parses a provider payload and aggregates it in one step.
func Summarize(data []byte) ([]DailySummary, error) {
	samples, err := ParsePayload(data)
	if err != nil {
		return nil, err
	}
	return Aggregate(samples)
}

type dayAccumulator struct {
	date  time.Time
	count int

	tempMin, tempMax, tempSum float64
	humMin, humMax, humSum    int
	windMin, windMax, windSum float64
	rainSum, rainPeak         float64
	snowSum, snowPeak         float64
}

func (a *dayAccumulator) add(s Sample) {
	if a.count == 0 {
		a.tempMin, a.tempMax = s.Temperature, s.Temperature
		a.humMin, a.humMax = s.Humidity, s.Humidity
		a.windMin, a.windMax = s.WindSpeed, s.WindSpeed
		a.rainPeak = s.Rain3h
		a.snowPeak = s.Snow3h
	}
	a.count++

	a.tempMin = min(a.tempMin, s.Temperature)
	a.tempMax = max(a.tempMax, s.Temperature)
	a.tempSum += s.Temperature

	a.humMin = min(a.humMin, s.Humidity)
	a.humMax = max(a.humMax, s.Humidity)
	a.humSum += s.Humidity

	a.windMin = min(a.windMin, s.WindSpeed)
	a.windMax = max(a.windMax, s.WindSpeed)
	a.windSum += s.WindSpeed

	a.rainSum += s.Rain3h
	a.rainPeak = max(a.rainPeak, s.Rain3h)
	a.snowSum += s.Snow3h
	a.snowPeak = max(a.snowPeak, s.Snow3h)
}

func (a *dayAccumulator) summary() DailySummary {
	n := float64(a.count)
	return DailySummary{
		Date:         a.date,
		Samples:      a.count,
		TempMin:      a.tempMin,
		TempMax:      a.tempMax,
		TempMean:     a.tempSum / n,
		HumidityMin:  a.humMin,
		HumidityMax:  a.humMax,
		HumidityMean: float64(a.humSum) / n,
		WindMin:      a.windMin,
		WindMax:      a.windMax,
		WindMean:     a.windSum / n,
		RainTotal:    a.rainSum,
		RainMean:     a.rainSum / n,
		RainPeak:     a.rainPeak,
		SnowTotal:    a.snowSum,
		SnowMean:     a.snowSum / n,
		SnowPeak:     a.snowPeak,
	}
}
