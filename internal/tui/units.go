package tui

import (
	"fmt"
	"math"

	"github.com/dustin/go-humanize"

	"fitbit-insights/internal/health"
)

// FormatValue formats a metric value with its unit
func FormatValue(metric health.Metric, v float64) string {
	switch metric {
	case health.MetricSteps, health.MetricCalories:
		return humanize.Comma(int64(math.Round(v)))
	case health.MetricSleepHours, health.MetricSedentaryHours:
		return FormatHours(v)
	case health.MetricDistance:
		return fmt.Sprintf("%.2f km", v)
	case health.MetricRestingHeartRate:
		return fmt.Sprintf("%.0f bpm", v)
	case health.MetricSpO2:
		return fmt.Sprintf("%.1f%%", v)
	case health.MetricWeight:
		return fmt.Sprintf("%.1f kg", v)
	case health.MetricActivitySummary, health.MetricActiveMinutes, health.MetricActiveZoneMinutes:
		return fmt.Sprintf("%.0f min", v)
	}
	return humanize.FormatFloat("#,###.##", v)
}

// FormatHours formats fractional hours as "7h 30m"
func FormatHours(h float64) string {
	total := int(math.Round(h * 60))
	if total < 60 {
		return fmt.Sprintf("%dm", total)
	}
	return fmt.Sprintf("%dh %02dm", total/60, total%60)
}

// FormatMinutes formats whole minutes as "1h 05m"
func FormatMinutes(m int) string {
	return FormatHours(float64(m) / 60)
}
