package analysis

import (
	"errors"
	"testing"

	"fitbit-insights/internal/health"
)

func sleepSeries(nights ...health.SleepDetail) health.Series {
	points := make([]health.Point, 0, len(nights))
	for i, n := range nights {
		n := n
		points = append(points, health.Point{
			Date:  day0.AddDate(0, 0, i),
			Value: health.Float(n.Hours()),
			Sleep: &n,
		})
	}
	return health.NewSeries(health.MetricSleepHours, points, nil)
}

func TestScoreSleep(t *testing.T) {
	w := DefaultSleepWeights()

	tests := []struct {
		name  string
		night health.SleepDetail
		want  float64
	}{
		{
			name:  "ideal duration without stages",
			night: health.SleepDetail{MinutesAsleep: 8 * 60},
			want:  100,
		},
		{
			name:  "short night without stages",
			night: health.SleepDetail{MinutesAsleep: 210},
			want:  50, // 3.5h of a 7h minimum
		},
		{
			name:  "long night without stages",
			night: health.SleepDetail{MinutesAsleep: 630},
			want:  50, // 1.5h past the band, 3h span
		},
		{
			name:  "far too long",
			night: health.SleepDetail{MinutesAsleep: 13 * 60},
			want:  0,
		},
		{
			name: "ideal duration all deep and REM",
			night: health.SleepDetail{
				MinutesAsleep: 480, HasStages: true, DeepMinutes: 200, REMMinutes: 280,
			},
			want: 100,
		},
		{
			name: "ideal duration all light",
			night: health.SleepDetail{
				MinutesAsleep: 480, HasStages: true, LightMinutes: 480,
			},
			want: 80, // 0.6*1 + 0.4*0.5
		},
		{
			name: "ideal duration all wake",
			night: health.SleepDetail{
				MinutesAsleep: 480, HasStages: true, WakeMinutes: 480,
			},
			want: 60,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ScoreSleep(tt.night, w)
			if !approx(got, tt.want, 1e-9) {
				t.Errorf("ScoreSleep() = %v, want %v", got, tt.want)
			}
			if got < 0 || got > 100 {
				t.Errorf("score %v outside [0, 100]", got)
			}
		})
	}
}

func TestScoreSleepCustomWeights(t *testing.T) {
	night := health.SleepDetail{MinutesAsleep: 480, HasStages: true, LightMinutes: 480}

	w := DefaultSleepWeights()
	w.Duration, w.Stages = 0, 1
	if got := ScoreSleep(night, w); !approx(got, 50, 1e-9) {
		t.Errorf("stage-only score = %v, want 50", got)
	}

	w.Light = 1
	if got := ScoreSleep(night, w); !approx(got, 100, 1e-9) {
		t.Errorf("score with light weighted fully = %v, want 100", got)
	}
}

func TestAnalyzerSleepScore(t *testing.T) {
	a := New(DefaultSleepWeights(), sleepSeries(health.SleepDetail{MinutesAsleep: 480}))

	score, err := a.SleepScore(day0)
	if err != nil {
		t.Fatalf("SleepScore() error = %v", err)
	}
	if score != 100 {
		t.Errorf("SleepScore() = %v, want 100", score)
	}

	if _, err := a.SleepScore(day0.AddDate(0, 0, 5)); !errors.Is(err, ErrInsufficientData) {
		t.Errorf("SleepScore() for a night without data error = %v, want ErrInsufficientData", err)
	}

	noSleep := New(DefaultSleepWeights())
	if _, err := noSleep.SleepScore(day0); !errors.Is(err, ErrInsufficientData) {
		t.Errorf("SleepScore() without sleep series error = %v, want ErrInsufficientData", err)
	}
}
