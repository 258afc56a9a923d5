package health

// Metric names a daily health measurement
type Metric string

const (
	MetricSteps             Metric = "steps"
	MetricDistance          Metric = "distance"
	MetricCalories          Metric = "calories"
	MetricActivitySummary   Metric = "activity"
	MetricActiveMinutes     Metric = "active_minutes"
	MetricSedentaryHours    Metric = "sedentary_hours"
	MetricRestingHeartRate  Metric = "resting_hr"
	MetricSleepHours        Metric = "sleep_hours"
	MetricSpO2              Metric = "spo2"
	MetricWeight            Metric = "weight"
	MetricActiveZoneMinutes Metric = "active_zone_minutes"
)

// AlertDirection says which side of a threshold counts as a breach
type AlertDirection string

const (
	// AlertLow flags observations below the threshold (e.g. too few steps)
	AlertLow AlertDirection = "low"
	// AlertHigh flags observations above the threshold (e.g. elevated resting HR)
	AlertHigh AlertDirection = "high"
)

// MetricInfo describes a metric's unit and alert semantics
type MetricInfo struct {
	Name      Metric
	Label     string
	Unit      string
	Direction AlertDirection
}

var metricInfo = map[Metric]MetricInfo{
	MetricSteps:             {MetricSteps, "Steps", "steps", AlertLow},
	MetricDistance:          {MetricDistance, "Distance", "km", AlertLow},
	MetricCalories:          {MetricCalories, "Calories", "kcal", AlertLow},
	MetricActivitySummary:   {MetricActivitySummary, "Active minutes", "min", AlertLow},
	MetricActiveMinutes:     {MetricActiveMinutes, "Active minutes", "min", AlertLow},
	MetricSedentaryHours:    {MetricSedentaryHours, "Sedentary time", "h", AlertHigh},
	MetricRestingHeartRate:  {MetricRestingHeartRate, "Resting HR", "bpm", AlertHigh},
	MetricSleepHours:        {MetricSleepHours, "Sleep", "h", AlertLow},
	MetricSpO2:              {MetricSpO2, "SpO2", "%", AlertLow},
	MetricWeight:            {MetricWeight, "Weight", "kg", AlertHigh},
	MetricActiveZoneMinutes: {MetricActiveZoneMinutes, "Active Zone Minutes", "min", AlertLow},
}

// Info returns the descriptor for m. Unknown metrics get a low-direction
// descriptor labelled with the raw name.
func (m Metric) Info() MetricInfo {
	if info, ok := metricInfo[m]; ok {
		return info
	}
	return MetricInfo{Name: m, Label: string(m), Direction: AlertLow}
}

// Known reports whether m is a declared metric
func (m Metric) Known() bool {
	_, ok := metricInfo[m]
	return ok
}

// Metrics lists all declared metrics in a stable order
func Metrics() []Metric {
	return []Metric{
		MetricSteps,
		MetricDistance,
		MetricCalories,
		MetricActivitySummary,
		MetricActiveMinutes,
		MetricSedentaryHours,
		MetricRestingHeartRate,
		MetricSleepHours,
		MetricSpO2,
		MetricWeight,
		MetricActiveZoneMinutes,
	}
}
