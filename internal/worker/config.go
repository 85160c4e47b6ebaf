// Package worker refreshes daily forecasts in the background, raises
// precipitation alerts and exports the summaries.
package worker

import (
	"slices"
	"strings"
	"time"
)

// RefreshTarget is a city whose forecast is kept warm.
type RefreshTarget struct {
	// City is the name sent to the weather provider. Korean names of the
	// major cities are accepted.
	City string

	// Priority determines refresh order (lower = higher priority).
	Priority int
}

// RefreshConfig holds configuration for the forecast refresh job.
type RefreshConfig struct {
	// Targets are the cities to refresh.
	// If empty, uses DefaultRefreshTargets.
	Targets []RefreshTarget

	// Concurrency is the number of concurrent refresh operations.
	// Default: 3
	Concurrency int

	// Timeout is the timeout for each refresh operation.
	// Default: 30 seconds
	Timeout time.Duration
}

// DefaultRefreshConfig returns the default refresh configuration.
func DefaultRefreshConfig() RefreshConfig {
	return RefreshConfig{
		Targets:     DefaultRefreshTargets(),
		Concurrency: 3,
		Timeout:     30 * time.Second,
	}
}

// DefaultRefreshTargets returns the seven metropolitan cities of South Korea.
func DefaultRefreshTargets() []RefreshTarget {
	return []RefreshTarget{
		{City: "서울", Priority: 1},
		{City: "부산", Priority: 1},
		{City: "인천", Priority: 2},
		{City: "대구", Priority: 2},
		{City: "대전", Priority: 2},
		{City: "광주", Priority: 3},
		{City: "울산", Priority: 3},
	}
}

// TargetsFromCities builds equal-priority targets from a list of city
// names, dropping blanks and duplicates.
func TargetsFromCities(cities []string) []RefreshTarget {
	seen := make(map[string]bool, len(cities))
	targets := make([]RefreshTarget, 0, len(cities))
	for _, c := range cities {
		c = strings.TrimSpace(c)
		if c == "" || seen[c] {
			continue
		}
		seen[c] = true
		targets = append(targets, RefreshTarget{City: c, Priority: 1})
	}
	return targets
}

// withDefaults fills zero values.
func (c RefreshConfig) withDefaults() RefreshConfig {
	def := DefaultRefreshConfig()
	if len(c.Targets) == 0 {
		c.Targets = def.Targets
	}
	if c.Concurrency <= 0 {
		c.Concurrency = def.Concurrency
	}
	if c.Timeout <= 0 {
		c.Timeout = def.Timeout
	}
	return c
}

// OrderedTargets returns the targets sorted by priority; ties keep their
// configured order.
func (c RefreshConfig) OrderedTargets() []RefreshTarget {
	out := slices.Clone(c.Targets)
	slices.SortStableFunc(out, func(a, b RefreshTarget) int {
		return a.Priority - b.Priority
	})
	return out
}
