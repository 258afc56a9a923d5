package analysis

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"fitbit-insights/internal/health"
)

// ErrInsufficientData is returned when there are too few observations for a computation
var ErrInsufficientData = errors.New("insufficient data")

// DefaultFlatThreshold is the relative change below which a trend is flat
const DefaultFlatThreshold = 0.02

// MinCorrelationSamples is the fewest overlapping dates a correlation needs
const MinCorrelationSamples = 3

// Trend is the direction of a metric over the analyzed range
type Trend string

const (
	TrendIncreasing Trend = "increasing"
	TrendDecreasing Trend = "decreasing"
	TrendFlat       Trend = "flat"
)

// Arrow returns a one-character symbol for the trend
func (t Trend) Arrow() string {
	switch t {
	case TrendIncreasing:
		return "↑"
	case TrendDecreasing:
		return "↓"
	default:
		return "→"
	}
}

// Analyzer computes statistics over already-fetched series. It performs no I/O.
type Analyzer struct {
	series map[health.Metric]health.Series
	order  []health.Metric

	Weights SleepWeights
	// FlatThreshold is the relative first-half/second-half change below which Trend reports flat
	FlatThreshold float64
}

// New creates an Analyzer over the given series. A later series for the
// same metric replaces an earlier one.
func New(weights SleepWeights, series ...health.Series) *Analyzer {
	a := &Analyzer{
		series:        make(map[health.Metric]health.Series, len(series)),
		Weights:       weights,
		FlatThreshold: DefaultFlatThreshold,
	}
	for _, s := range series {
		a.Add(s)
	}
	return a
}

// Add registers a series
func (a *Analyzer) Add(s health.Series) {
	if _, ok := a.series[s.Metric]; !ok {
		a.order = append(a.order, s.Metric)
	}
	a.series[s.Metric] = s
}

// Series returns the series for metric
func (a *Analyzer) Series(metric health.Metric) (health.Series, bool) {
	s, ok := a.series[metric]
	return s, ok
}

// Metrics returns the analyzed metrics in the order they were added
func (a *Analyzer) Metrics() []health.Metric {
	return append([]health.Metric(nil), a.order...)
}

func (a *Analyzer) values(metric health.Metric) []float64 {
	return a.series[metric].Values()
}

// Average returns the mean over days with an observation
func (a *Analyzer) Average(metric health.Metric) (float64, error) {
	vals := a.values(metric)
	if len(vals) == 0 {
		return 0, fmt.Errorf("%w: no %s observations", ErrInsufficientData, metric)
	}
	return mean(vals), nil
}

// Trend compares the mean of the first half of the observations with the
// mean of the second half. With an odd count the middle observation is
// left out of both halves.
func (a *Analyzer) Trend(metric health.Metric) (Trend, error) {
	vals := a.values(metric)
	if len(vals) < 2 {
		return "", fmt.Errorf("%w: trend of %s needs at least 2 observations, have %d", ErrInsufficientData, metric, len(vals))
	}

	half := len(vals) / 2
	first := mean(vals[:half])
	second := mean(vals[len(vals)-half:])

	return classifyChange(first, second, a.FlatThreshold), nil
}

func classifyChange(first, second, threshold float64) Trend {
	diff := second - first
	if first == 0 {
		switch {
		case diff > 0:
			return TrendIncreasing
		case diff < 0:
			return TrendDecreasing
		default:
			return TrendFlat
		}
	}

	rel := diff / math.Abs(first)
	switch {
	case rel >= threshold:
		return TrendIncreasing
	case rel <= -threshold:
		return TrendDecreasing
	default:
		return TrendFlat
	}
}

// Correlation returns the Pearson coefficient of two metrics over the
// dates both observed.
func (a *Analyzer) Correlation(metricA, metricB health.Metric) (float64, int, error) {
	xs, ys := pairs(a.series[metricA], a.series[metricB])
	n := len(xs)
	if n < MinCorrelationSamples {
		return 0, n, fmt.Errorf("%w: %s and %s share %d days, need %d",
			ErrInsufficientData, metricA, metricB, n, MinCorrelationSamples)
	}

	mx, my := mean(xs), mean(ys)
	var cov, vx, vy float64
	for i := range xs {
		dx, dy := xs[i]-mx, ys[i]-my
		cov += dx * dy
		vx += dx * dx
		vy += dy * dy
	}
	if vx == 0 || vy == 0 {
		return 0, n, fmt.Errorf("%w: %s or %s does not vary", ErrInsufficientData, metricA, metricB)
	}

	r := cov / math.Sqrt(vx*vy)
	return math.Max(-1, math.Min(1, r)), n, nil
}

// pairs inner-joins two series on date, in date order
func pairs(a, b health.Series) (xs, ys []float64) {
	byDate := b.ByDate()
	for _, p := range a.Present() {
		if v, ok := byDate[p.Date]; ok {
			xs = append(xs, p.Val())
			ys = append(ys, v)
		}
	}
	return xs, ys
}

// MetricSummary holds the statistics for one metric
type MetricSummary struct {
	Metric  health.Metric `json:"metric"`
	Average float64       `json:"average"`
	Min     float64       `json:"min"`
	Max     float64       `json:"max"`
	Trend   Trend         `json:"trend,omitempty"`
	Samples int           `json:"samples"`
}

// Correlation is the relationship between two metrics
type Correlation struct {
	A           health.Metric `json:"a"`
	B           health.Metric `json:"b"`
	Coefficient float64       `json:"coefficient"`
	Samples     int           `json:"samples"`
}

// Strength describes the magnitude of the coefficient
func (c Correlation) Strength() string {
	r := math.Abs(c.Coefficient)
	switch {
	case r >= 0.7:
		return "strong"
	case r >= 0.4:
		return "moderate"
	case r >= 0.2:
		return "weak"
	default:
		return "none"
	}
}

// Summary is everything the analyzer can say about its series.
// Metrics and pairs without enough data are left out.
type Summary struct {
	Metrics      []MetricSummary    `json:"metrics"`
	Correlations []Correlation      `json:"correlations,omitempty"`
	SleepScores  map[string]float64 `json:"sleep_scores,omitempty"`
}

// Metric returns the summary for m
func (s Summary) Metric(m health.Metric) (MetricSummary, bool) {
	for _, ms := range s.Metrics {
		if ms.Metric == m {
			return ms, true
		}
	}
	return MetricSummary{}, false
}

// Summarize computes averages, trends, pairwise correlations and nightly sleep scores
func (a *Analyzer) Summarize() Summary {
	var sum Summary

	for _, m := range a.order {
		vals := a.values(m)
		if len(vals) == 0 {
			continue
		}
		ms := MetricSummary{
			Metric:  m,
			Average: mean(vals),
			Min:     vals[0],
			Max:     vals[0],
			Samples: len(vals),
		}
		for _, v := range vals[1:] {
			ms.Min = math.Min(ms.Min, v)
			ms.Max = math.Max(ms.Max, v)
		}
		if trend, err := a.Trend(m); err == nil {
			ms.Trend = trend
		}
		sum.Metrics = append(sum.Metrics, ms)
	}

	for i := 0; i < len(a.order); i++ {
		for j := i + 1; j < len(a.order); j++ {
			r, n, err := a.Correlation(a.order[i], a.order[j])
			if err != nil {
				continue
			}
			sum.Correlations = append(sum.Correlations, Correlation{
				A: a.order[i], B: a.order[j], Coefficient: r, Samples: n,
			})
		}
	}
	sort.SliceStable(sum.Correlations, func(i, j int) bool {
		return math.Abs(sum.Correlations[i].Coefficient) > math.Abs(sum.Correlations[j].Coefficient)
	})

	if sleep, ok := a.series[health.MetricSleepHours]; ok {
		for _, p := range sleep.Points {
			score, err := a.SleepScore(p.Date)
			if err != nil {
				continue
			}
			if sum.SleepScores == nil {
				sum.SleepScores = make(map[string]float64)
			}
			sum.SleepScores[health.FormatDate(p.Date)] = score
		}
	}

	return sum
}

func mean(vals []float64) float64 {
	var total float64
	for _, v := range vals {
		total += v
	}
	return total / float64(len(vals))
}

// dayOf normalizes a caller-supplied date to the series' date keys
func dayOf(t time.Time) time.Time {
	return health.Day(t)
}
