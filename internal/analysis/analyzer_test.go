package analysis

import (
	"errors"
	"math"
	"testing"
	"time"

	"fitbit-insights/internal/health"
)

var day0 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// makeSeries builds a series with one point per day starting at day0.
// NaN entries become days without an observation.
func makeSeries(metric health.Metric, vals ...float64) health.Series {
	points := make([]health.Point, 0, len(vals))
	for i, v := range vals {
		p := health.Point{Date: day0.AddDate(0, 0, i)}
		if !math.IsNaN(v) {
			p.Value = health.Float(v)
		}
		points = append(points, p)
	}
	return health.NewSeries(metric, points, nil)
}

func approx(a, b, delta float64) bool {
	return math.Abs(a-b) <= delta
}

func TestAverage(t *testing.T) {
	a := New(DefaultSleepWeights(), makeSeries(health.MetricSteps, 1000, math.NaN(), 3000, 0))

	avg, err := a.Average(health.MetricSteps)
	if err != nil {
		t.Fatalf("Average() error = %v", err)
	}
	// Zero is an observation, the missing day is not
	if !approx(avg, 4000.0/3, 1e-9) {
		t.Errorf("Average() = %v, want %v", avg, 4000.0/3)
	}

	empty := New(DefaultSleepWeights(), makeSeries(health.MetricCalories, math.NaN()))
	if _, err := empty.Average(health.MetricCalories); !errors.Is(err, ErrInsufficientData) {
		t.Errorf("Average() on empty series error = %v, want ErrInsufficientData", err)
	}
	if _, err := empty.Average(health.MetricWeight); !errors.Is(err, ErrInsufficientData) {
		t.Errorf("Average() on unknown metric error = %v, want ErrInsufficientData", err)
	}
}

func TestTrend(t *testing.T) {
	tests := []struct {
		name    string
		vals    []float64
		want    Trend
		wantErr bool
	}{
		{"strictly increasing", []float64{1, 2, 3, 4}, TrendIncreasing, false},
		{"strictly decreasing", []float64{9, 7, 5, 3, 1}, TrendDecreasing, false},
		{"constant", []float64{5, 5, 5, 5}, TrendFlat, false},
		{"within threshold", []float64{1000, 1005, 1010, 1015}, TrendFlat, false},
		{"noisy but rising", []float64{5000, 9000, 4000, 8000, 9000, 10000}, TrendIncreasing, false},
		{"from zero", []float64{0, 0, 1, 2}, TrendIncreasing, false},
		{"missing days ignored", []float64{1, math.NaN(), 2, math.NaN(), 3, 4}, TrendIncreasing, false},
		{"single observation", []float64{7}, "", true},
		{"no observations", []float64{math.NaN(), math.NaN()}, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := New(DefaultSleepWeights(), makeSeries(health.MetricSteps, tt.vals...))
			got, err := a.Trend(health.MetricSteps)
			if tt.wantErr {
				if !errors.Is(err, ErrInsufficientData) {
					t.Errorf("Trend() error = %v, want ErrInsufficientData", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Trend() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("Trend() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestTrendFlatThresholdOverride(t *testing.T) {
	a := New(DefaultSleepWeights(), makeSeries(health.MetricSteps, 1000, 1005, 1010, 1015))
	a.FlatThreshold = 0.001

	got, err := a.Trend(health.MetricSteps)
	if err != nil {
		t.Fatal(err)
	}
	if got != TrendIncreasing {
		t.Errorf("Trend() = %v, want increasing with a tighter threshold", got)
	}
}

func TestCorrelation(t *testing.T) {
	steps := makeSeries(health.MetricSteps, 4000, 6000, 8000, 10000, 12000)
	sleep := makeSeries(health.MetricSleepHours, 6, 6.5, 7, 7.5, 8)
	hr := makeSeries(health.MetricRestingHeartRate, 70, 68, 66, 64, 62)

	a := New(DefaultSleepWeights(), steps, sleep, hr)

	t.Run("self correlation", func(t *testing.T) {
		r, n, err := a.Correlation(health.MetricSteps, health.MetricSteps)
		if err != nil {
			t.Fatal(err)
		}
		if !approx(r, 1, 1e-9) || n != 5 {
			t.Errorf("Correlation(steps, steps) = %v over %d, want 1 over 5", r, n)
		}
	})

	t.Run("positive", func(t *testing.T) {
		r, _, err := a.Correlation(health.MetricSteps, health.MetricSleepHours)
		if err != nil {
			t.Fatal(err)
		}
		if !approx(r, 1, 1e-9) {
			t.Errorf("Correlation() = %v, want 1", r)
		}
	})

	t.Run("negative", func(t *testing.T) {
		r, _, err := a.Correlation(health.MetricSteps, health.MetricRestingHeartRate)
		if err != nil {
			t.Fatal(err)
		}
		if !approx(r, -1, 1e-9) {
			t.Errorf("Correlation() = %v, want -1", r)
		}
	})

	t.Run("inner join on dates", func(t *testing.T) {
		sparse := makeSeries(health.MetricCalories, math.NaN(), 2000, math.NaN(), 2400, 2600)
		b := New(DefaultSleepWeights(), steps, sparse)
		_, n, err := b.Correlation(health.MetricSteps, health.MetricCalories)
		if err != nil {
			t.Fatal(err)
		}
		if n != 3 {
			t.Errorf("samples = %d, want 3", n)
		}
	})

	t.Run("too few overlapping dates", func(t *testing.T) {
		short := makeSeries(health.MetricCalories, 2000, 2100)
		b := New(DefaultSleepWeights(), steps, short)
		if _, _, err := b.Correlation(health.MetricSteps, health.MetricCalories); !errors.Is(err, ErrInsufficientData) {
			t.Errorf("Correlation() error = %v, want ErrInsufficientData", err)
		}
	})

	t.Run("constant series", func(t *testing.T) {
		flat := makeSeries(health.MetricCalories, 2000, 2000, 2000, 2000, 2000)
		b := New(DefaultSleepWeights(), steps, flat)
		if _, _, err := b.Correlation(health.MetricSteps, health.MetricCalories); !errors.Is(err, ErrInsufficientData) {
			t.Errorf("Correlation() error = %v, want ErrInsufficientData", err)
		}
	})
}

func TestSummarize(t *testing.T) {
	steps := makeSeries(health.MetricSteps, 4000, 6000, math.NaN(), 10000, 12000)
	sleep := sleepSeries(
		health.SleepDetail{MinutesAsleep: 480, HasStages: true, DeepMinutes: 90, REMMinutes: 110, LightMinutes: 250, WakeMinutes: 30},
		health.SleepDetail{MinutesAsleep: 300},
	)
	empty := makeSeries(health.MetricWeight, math.NaN())

	sum := New(DefaultSleepWeights(), steps, sleep, empty).Summarize()

	ms, ok := sum.Metric(health.MetricSteps)
	if !ok {
		t.Fatal("steps missing from summary")
	}
	if ms.Average != 8000 || ms.Min != 4000 || ms.Max != 12000 || ms.Samples != 4 || ms.Trend != TrendIncreasing {
		t.Errorf("steps summary = %+v", ms)
	}
	if _, ok := sum.Metric(health.MetricWeight); ok {
		t.Error("metric without observations should be left out")
	}
	if len(sum.Correlations) != 0 {
		t.Errorf("correlations = %+v, want none (only 2 overlapping days)", sum.Correlations)
	}
	if len(sum.SleepScores) != 2 {
		t.Errorf("sleep scores = %v, want 2 nights", sum.SleepScores)
	}
	if sum.SleepScores["2024-01-01"] <= sum.SleepScores["2024-01-02"] {
		t.Errorf("a full staged night should outscore a short one: %v", sum.SleepScores)
	}
}

func TestCorrelationStrength(t *testing.T) {
	tests := []struct {
		r    float64
		want string
	}{
		{0.95, "strong"},
		{-0.75, "strong"},
		{0.5, "moderate"},
		{-0.25, "weak"},
		{0.05, "none"},
	}
	for _, tt := range tests {
		if got := (Correlation{Coefficient: tt.r}).Strength(); got != tt.want {
			t.Errorf("Strength(%v) = %q, want %q", tt.r, got, tt.want)
		}
	}
}

func TestExponentialAverage(t *testing.T) {
	s := makeSeries(health.MetricSteps, 10, math.NaN(), 20, 20)
	ema := ExponentialAverage(s, 3) // decay 0.5

	if ema.Len() != 3 {
		t.Fatalf("EMA has %d points, want 3", ema.Len())
	}
	want := []float64{10, 15, 17.5}
	for i, p := range ema.Points {
		if !approx(p.Val(), want[i], 1e-9) {
			t.Errorf("EMA[%d] = %v, want %v", i, p.Val(), want[i])
		}
	}
}
