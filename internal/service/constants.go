package service

import "fitbit-insights/internal/health"

const (
	// Report windows in days
	DailyDays   = 1
	WeeklyDays  = 7
	MonthlyDays = 30

	// DefaultDays is the CLI window when --days is not given
	DefaultDays = 7

	// SmoothingSpan is the EMA span used for chart overlays
	SmoothingSpan = 7
)

// ReportMetrics are fetched for every report, in this order
var ReportMetrics = []health.Metric{
	health.MetricSteps,
	health.MetricCalories,
	health.MetricRestingHeartRate,
	health.MetricSleepHours,
	health.MetricActivitySummary,
}
