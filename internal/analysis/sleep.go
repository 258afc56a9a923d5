package analysis

import (
	"fmt"
	"math"
	"time"

	"fitbit-insights/internal/health"
)

// SleepWeights configures the sleep score. The score blends a duration
// component and a stage-composition component by Duration:Stages; stage
// weights say how much a minute in each stage is worth.
type SleepWeights struct {
	Duration float64
	Stages   float64

	Deep  float64
	REM   float64
	Light float64
	Wake  float64

	IdealMinHours float64
	IdealMaxHours float64
}

// DefaultSleepWeights favors deep and REM sleep over light and wake
func DefaultSleepWeights() SleepWeights {
	return SleepWeights{
		Duration:      0.6,
		Stages:        0.4,
		Deep:          1.0,
		REM:           1.0,
		Light:         0.5,
		Wake:          0,
		IdealMinHours: 7,
		IdealMaxHours: 9,
	}
}

// oversleepSpan is how many hours past the ideal band drive the duration score to zero
const oversleepSpan = 3.0

// SleepScore rates the night of date from 0 to 100. Nights without
// stage data are scored on duration alone.
func (a *Analyzer) SleepScore(date time.Time) (float64, error) {
	sleep, ok := a.series[health.MetricSleepHours]
	if !ok {
		return 0, fmt.Errorf("%w: no sleep data", ErrInsufficientData)
	}
	p, ok := sleep.At(dayOf(date))
	if !ok || p.Sleep == nil || p.Sleep.MinutesAsleep == 0 {
		return 0, fmt.Errorf("%w: no sleep recorded for %s", ErrInsufficientData, health.FormatDate(date))
	}
	return ScoreSleep(*p.Sleep, a.Weights), nil
}

// ScoreSleep rates one night from 0 to 100
func ScoreSleep(d health.SleepDetail, w SleepWeights) float64 {
	dur := durationScore(d.Hours(), w.IdealMinHours, w.IdealMaxHours)

	stages, ok := stageScore(d, w)
	if !ok || w.Duration+w.Stages == 0 {
		return clamp(100 * dur)
	}
	return clamp(100 * (w.Duration*dur + w.Stages*stages) / (w.Duration + w.Stages))
}

func durationScore(hours, idealMin, idealMax float64) float64 {
	switch {
	case hours <= 0:
		return 0
	case hours < idealMin:
		return hours / idealMin
	case hours <= idealMax:
		return 1
	default:
		return math.Max(0, 1-(hours-idealMax)/oversleepSpan)
	}
}

// stageScore is the stage-share weighted sum, normalized by the largest
// stage weight so a night spent entirely in the best stage scores 1.
func stageScore(d health.SleepDetail, w SleepWeights) (float64, bool) {
	total := float64(d.StageMinutes())
	if !d.HasStages || total == 0 {
		return 0, false
	}
	best := math.Max(math.Max(w.Deep, w.REM), math.Max(w.Light, w.Wake))
	if best <= 0 {
		return 0, false
	}

	score := (w.Deep*float64(d.DeepMinutes) +
		w.REM*float64(d.REMMinutes) +
		w.Light*float64(d.LightMinutes) +
		w.Wake*float64(d.WakeMinutes)) / total
	return score / best, true
}

func clamp(score float64) float64 {
	return math.Max(0, math.Min(100, score))
}
