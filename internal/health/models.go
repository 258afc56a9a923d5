package health

import "time"

// Point is one day's observation of a metric.
// A nil Value means the day is known but carries no observation.
type Point struct {
	Date   time.Time `json:"date"`
	Metric Metric    `json:"metric"`
	Value  *float64  `json:"value"`

	// Structured payloads, set only for the metrics that produce them
	Sleep    *SleepDetail    `json:"sleep,omitempty"`
	Heart    *HeartDetail    `json:"heart,omitempty"`
	Activity *ActivityDetail `json:"activity,omitempty"`
	Zones    *ZoneMinutes    `json:"zones,omitempty"`
	SpO2     *SpO2Detail     `json:"spo2,omitempty"`
}

// Has reports whether the point carries an observed value
func (p Point) Has() bool {
	return p.Value != nil
}

// Val returns the observed value, or 0 when missing
func (p Point) Val() float64 {
	if p.Value == nil {
		return 0
	}
	return *p.Value
}

// SleepDetail is the per-night sleep breakdown. Stage minutes are zero
// for classic (non-stage) sleep logs; HasStages tells them apart.
type SleepDetail struct {
	MinutesAsleep int  `json:"minutes_asleep"`
	MinutesAwake  int  `json:"minutes_awake"`
	TimeInBed     int  `json:"time_in_bed"`
	Efficiency    int  `json:"efficiency"`
	Records       int  `json:"records"`
	HasStages     bool `json:"has_stages"`
	DeepMinutes   int  `json:"deep_minutes"`
	LightMinutes  int  `json:"light_minutes"`
	REMMinutes    int  `json:"rem_minutes"`
	WakeMinutes   int  `json:"wake_minutes"`
}

// Hours returns time asleep in hours
func (s SleepDetail) Hours() float64 {
	return float64(s.MinutesAsleep) / 60
}

// StageMinutes returns the sum of all stage minutes
func (s SleepDetail) StageMinutes() int {
	return s.DeepMinutes + s.LightMinutes + s.REMMinutes + s.WakeMinutes
}

// HeartRateZone is time spent in one heart rate zone
type HeartRateZone struct {
	Name        string  `json:"name"`
	Min         int     `json:"min"`
	Max         int     `json:"max"`
	Minutes     int     `json:"minutes"`
	CaloriesOut float64 `json:"calories_out"`
}

// HeartDetail carries the zone breakdown for a day
type HeartDetail struct {
	RestingHeartRate *int            `json:"resting_heart_rate,omitempty"`
	Zones            []HeartRateZone `json:"zones,omitempty"`
}

// ActivityDetail is a day's minutes at each activity level
type ActivityDetail struct {
	SedentaryMinutes     int `json:"sedentary_minutes"`
	LightlyActiveMinutes int `json:"lightly_active_minutes"`
	FairlyActiveMinutes  int `json:"fairly_active_minutes"`
	VeryActiveMinutes    int `json:"very_active_minutes"`
}

// ActiveMinutes is fairly plus very active time
func (a ActivityDetail) ActiveMinutes() int {
	return a.FairlyActiveMinutes + a.VeryActiveMinutes
}

// ZoneMinutes is the Active Zone Minutes breakdown. Cardio and peak
// minutes earn double credit in the total.
type ZoneMinutes struct {
	Total   int `json:"total"`
	FatBurn int `json:"fat_burn"`
	Cardio  int `json:"cardio"`
	Peak    int `json:"peak"`
}

// SpO2Detail is the nightly blood oxygen summary
type SpO2Detail struct {
	Avg float64 `json:"avg"`
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// Float returns a pointer to v
func Float(v float64) *float64 {
	return &v
}
