package alerts

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"fitbit-insights/internal/health"
)

// Thresholds maps a metric to its alert threshold. Metrics without an
// entry never alert.
type Thresholds map[health.Metric]float64

// DefaultThresholds returns the thresholds used when none are configured
func DefaultThresholds() Thresholds {
	return Thresholds{
		health.MetricSteps:            8000,
		health.MetricCalories:         1800,
		health.MetricSleepHours:       7,
		health.MetricRestingHeartRate: 80,
		health.MetricActiveMinutes:    30,
		health.MetricSedentaryHours:   10,
	}
}

// ThresholdsFromMap converts config keys to Thresholds, skipping unknown metrics
func ThresholdsFromMap(m map[string]float64) (Thresholds, []string) {
	t := make(Thresholds, len(m))
	var unknown []string
	for k, v := range m {
		metric := health.Metric(k)
		if !metric.Known() {
			unknown = append(unknown, k)
			continue
		}
		t[metric] = v
	}
	sort.Strings(unknown)
	return t, unknown
}

// Result is one day on which a metric crossed its threshold
type Result struct {
	Date      time.Time             `json:"date"`
	Metric    health.Metric         `json:"metric"`
	Observed  float64               `json:"observed"`
	Threshold float64               `json:"threshold"`
	Direction health.AlertDirection `json:"direction"`
}

// Message renders the result, e.g. "Low steps: 5,000 (< 8,000)"
func (r Result) Message() string {
	word, op := "Low", "<"
	if r.Direction == health.AlertHigh {
		word, op = "High", ">"
	}
	label := lowerFirst(r.Metric.Info().Label)
	return fmt.Sprintf("%s %s: %s (%s %s)", word, label, formatValue(r.Observed), op, formatValue(r.Threshold))
}

func formatValue(v float64) string {
	if v == math.Trunc(v) {
		return humanize.Comma(int64(v))
	}
	return humanize.CommafWithDigits(v, 1)
}

// lowerFirst lowercases a leading capital unless the first word is an
// acronym such as "SpO2"
func lowerFirst(s string) string {
	word, _, _ := strings.Cut(s, " ")
	if word == "" || strings.ToLower(word[:1])+word[1:] != strings.ToLower(word) {
		return s
	}
	return strings.ToLower(s[:1]) + s[1:]
}

// Engine checks series against thresholds
type Engine struct {
	thresholds Thresholds
}

// New creates an Engine. A nil map means no alerts.
func New(thresholds Thresholds) *Engine {
	t := make(Thresholds, len(thresholds))
	for k, v := range thresholds {
		t[k] = v
	}
	return &Engine{thresholds: t}
}

// Thresholds returns a copy of the configured thresholds
func (e *Engine) Thresholds() Thresholds {
	t := make(Thresholds, len(e.thresholds))
	for k, v := range e.thresholds {
		t[k] = v
	}
	return t
}

// FindLowDays returns the days on which the series fell below its threshold
func (e *Engine) FindLowDays(s health.Series) []Result {
	return e.find(s, health.AlertLow)
}

// FindHighDays returns the days on which the series rose above its threshold
func (e *Engine) FindHighDays(s health.Series) []Result {
	return e.find(s, health.AlertHigh)
}

// Evaluate checks the series in the direction its metric declares
func (e *Engine) Evaluate(s health.Series) []Result {
	return e.find(s, s.Metric.Info().Direction)
}

// EvaluateAll evaluates every series, ordered by date then metric
func (e *Engine) EvaluateAll(series ...health.Series) []Result {
	var out []Result
	for _, s := range series {
		out = append(out, e.Evaluate(s)...)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.Before(out[j].Date)
		}
		return out[i].Metric < out[j].Metric
	})
	return out
}

func (e *Engine) find(s health.Series, dir health.AlertDirection) []Result {
	threshold, ok := e.thresholds[s.Metric]
	if !ok {
		return []Result{}
	}

	out := []Result{}
	for _, p := range s.Present() {
		v := p.Val()
		breach := (dir == health.AlertLow && v < threshold) ||
			(dir == health.AlertHigh && v > threshold)
		if !breach {
			continue
		}
		out = append(out, Result{
			Date:      p.Date,
			Metric:    s.Metric,
			Observed:  v,
			Threshold: threshold,
			Direction: dir,
		})
	}
	return out
}
