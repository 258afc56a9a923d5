package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"fitbit-insights/internal/alerts"
	"fitbit-insights/internal/analysis"
	"fitbit-insights/internal/health"
)

// Fetcher retrieves a metric series. *fitbit.Client implements it.
type Fetcher interface {
	GetMetric(ctx context.Context, metric health.Metric, r health.DateRange) (health.Series, error)
}

// ReportType selects the report window
type ReportType string

const (
	ReportDaily   ReportType = "daily"
	ReportWeekly  ReportType = "weekly"
	ReportMonthly ReportType = "monthly"
)

// ParseReportType parses daily, weekly or monthly
func ParseReportType(s string) (ReportType, error) {
	switch rt := ReportType(strings.ToLower(strings.TrimSpace(s))); rt {
	case ReportDaily, ReportWeekly, ReportMonthly:
		return rt, nil
	}
	return "", fmt.Errorf("unknown report type %q (want daily, weekly or monthly)", s)
}

// Days returns the report's default window
func (t ReportType) Days() int {
	switch t {
	case ReportDaily:
		return DailyDays
	case ReportMonthly:
		return MonthlyDays
	default:
		return WeeklyDays
	}
}

// Title is the heading shown above a rendered report
func (t ReportType) Title() string {
	switch t {
	case ReportDaily:
		return "Daily Report"
	case ReportMonthly:
		return "Monthly Report"
	default:
		return "Weekly Report"
	}
}

// Report is a fetched, analyzed and alert-checked window of data
type Report struct {
	Type        ReportType       `json:"type"`
	Range       health.DateRange `json:"range"`
	GeneratedAt time.Time        `json:"generated_at"`
	Series      []health.Series  `json:"series"`
	Summary     analysis.Summary `json:"summary"`
	Alerts      []alerts.Result  `json:"alerts"`
}

// Get returns the series for metric
func (r *Report) Get(metric health.Metric) (health.Series, bool) {
	for _, s := range r.Series {
		if s.Metric == metric {
			return s, true
		}
	}
	return health.Series{}, false
}

// Progress reports which metric is being fetched
type Progress struct {
	Metric    health.Metric
	Completed int
	Total     int
}

// ReportService orchestrates fetch, analysis and alerting
type ReportService struct {
	client  Fetcher
	weights analysis.SleepWeights
	engine  *alerts.Engine
	now     func() time.Time
	logger  *slog.Logger
}

// NewReportService creates a new report service
func NewReportService(client Fetcher, weights analysis.SleepWeights, engine *alerts.Engine) *ReportService {
	if engine == nil {
		engine = alerts.New(alerts.DefaultThresholds())
	}
	return &ReportService{
		client:  client,
		weights: weights,
		engine:  engine,
		now:     time.Now,
		logger:  slog.Default(),
	}
}

// SetClock overrides the time source used to anchor the report window
func (s *ReportService) SetClock(now func() time.Time) {
	s.now = now
}

// SetLogger sets the service's logger
func (s *ReportService) SetLogger(l *slog.Logger) {
	s.logger = l
}

// Window returns the trailing range ending today. days <= 0 falls back to
// the report type's window.
func (s *ReportService) Window(rt ReportType, days int) (health.DateRange, error) {
	if days <= 0 {
		days = rt.Days()
	}
	return health.TrailingDays(days, s.now())
}

// Build fetches every report metric sequentially, then analyzes and
// alert-checks them. progress, when non-nil, receives an update before
// each fetch and is closed when Build returns.
func (s *ReportService) Build(ctx context.Context, rt ReportType, days int, progress chan<- Progress) (*Report, error) {
	if progress != nil {
		defer close(progress)
	}

	r, err := s.Window(rt, days)
	if err != nil {
		return nil, err
	}

	var series []health.Series
	for i, metric := range ReportMetrics {
		if progress != nil {
			select {
			case progress <- Progress{Metric: metric, Completed: i, Total: len(ReportMetrics)}:
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		start := time.Now()
		fetched, err := s.client.GetMetric(ctx, metric, r)
		if err != nil {
			return nil, fmt.Errorf("fetching %s: %w", metric, err)
		}
		s.logger.Debug("fetched series", "metric", metric, "points", fetched.Len(), "took", time.Since(start))

		if metric == health.MetricActivitySummary {
			series = append(series, health.ActiveMinutes(fetched), health.SedentaryHours(fetched))
			continue
		}
		series = append(series, fetched)
	}

	analyzer := analysis.New(s.weights, series...)
	return &Report{
		Type:        rt,
		Range:       r,
		GeneratedAt: s.now(),
		Series:      series,
		Summary:     analyzer.Summarize(),
		Alerts:      s.engine.EvaluateAll(series...),
	}, nil
}

// Alerts fetches the metrics that have thresholds and evaluates them
func (s *ReportService) Alerts(ctx context.Context, r health.DateRange) ([]alerts.Result, error) {
	thresholds := s.engine.Thresholds()

	var series []health.Series
	var activity *health.Series
	for _, metric := range health.Metrics() {
		if _, ok := thresholds[metric]; !ok {
			continue
		}

		switch metric {
		case health.MetricActiveMinutes, health.MetricSedentaryHours:
			// Both derive from one activity summary fetch
			if activity == nil {
				fetched, err := s.client.GetMetric(ctx, health.MetricActivitySummary, r)
				if err != nil {
					return nil, fmt.Errorf("fetching %s: %w", health.MetricActivitySummary, err)
				}
				activity = &fetched
			}
			if metric == health.MetricActiveMinutes {
				series = append(series, health.ActiveMinutes(*activity))
			} else {
				series = append(series, health.SedentaryHours(*activity))
			}
		default:
			fetched, err := s.client.GetMetric(ctx, metric, r)
			if err != nil {
				return nil, fmt.Errorf("fetching %s: %w", metric, err)
			}
			series = append(series, fetched)
		}
	}

	return s.engine.EvaluateAll(series...), nil
}
