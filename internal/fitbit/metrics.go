package fitbit

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"fitbit-insights/internal/health"
)

// Longest span, in days, each endpoint family accepts per request
const (
	MaxActivitySeriesDays = 31
	MaxHeartRateDays      = 31
	MaxSleepDays          = 100
	MaxSpO2Days           = 30
	MaxWeightDays         = 31
	MaxAZMDays            = 30
)

// GetSteps fetches daily step counts
func (c *Client) GetSteps(ctx context.Context, r health.DateRange) (health.Series, error) {
	return c.activitySeries(ctx, "steps", health.MetricSteps, r)
}

// GetDistance fetches daily distance in km
func (c *Client) GetDistance(ctx context.Context, r health.DateRange) (health.Series, error) {
	return c.activitySeries(ctx, "distance", health.MetricDistance, r)
}

// GetCalories fetches daily calories burned
func (c *Client) GetCalories(ctx context.Context, r health.DateRange) (health.Series, error) {
	return c.activitySeries(ctx, "calories", health.MetricCalories, r)
}

func (c *Client) activitySeries(ctx context.Context, resource string, metric health.Metric, r health.DateRange) (health.Series, error) {
	return c.fetchChunked(ctx, metric, r, MaxActivitySeriesDays, func(ctx context.Context, chunk health.DateRange) ([]health.Point, error) {
		var resp activityTimeSeries
		path := rangePath("/1/user/-/activities/"+resource+"/date/%s/%s.json", chunk)
		if err := c.getJSON(ctx, path, &resp); err != nil {
			return nil, err
		}
		return timeSeriesPoints(resp["activities-"+resource])
	})
}

func timeSeriesPoints(entries []timeSeriesEntry) ([]health.Point, error) {
	points := make([]health.Point, 0, len(entries))
	for _, e := range entries {
		date, err := parseDay(e.DateTime)
		if err != nil {
			return nil, err
		}
		p := health.Point{Date: date}
		if e.Value != "" {
			v, err := strconv.ParseFloat(e.Value, 64)
			if err != nil {
				return nil, fmt.Errorf("%w: unexpected value %q for %s", ErrUpstream, e.Value, e.DateTime)
			}
			p.Value = &v
		}
		points = append(points, p)
	}
	return points, nil
}

// activityMinuteSeries are the time series an activity summary is built from
var activityMinuteSeries = []string{
	"minutesSedentary",
	"minutesLightlyActive",
	"minutesFairlyActive",
	"minutesVeryActive",
}

// GetActivitySummary fetches daily minutes by activity level. The value of
// each point is fairly plus very active minutes. A day is missing unless
// every level reported a value for it.
func (c *Client) GetActivitySummary(ctx context.Context, r health.DateRange) (health.Series, error) {
	return c.fetchChunked(ctx, health.MetricActivitySummary, r, MaxActivitySeriesDays, func(ctx context.Context, chunk health.DateRange) ([]health.Point, error) {
		byLevel := make(map[string]map[time.Time]int, len(activityMinuteSeries))
		for _, resource := range activityMinuteSeries {
			var resp activityTimeSeries
			path := rangePath("/1/user/-/activities/"+resource+"/date/%s/%s.json", chunk)
			if err := c.getJSON(ctx, path, &resp); err != nil {
				return nil, err
			}
			pts, err := timeSeriesPoints(resp["activities-"+resource])
			if err != nil {
				return nil, err
			}
			minutes := make(map[time.Time]int, len(pts))
			for _, p := range pts {
				if p.Has() {
					minutes[health.Day(p.Date)] = int(p.Val())
				}
			}
			byLevel[resource] = minutes
		}

		points := make([]health.Point, 0, chunk.Days())
		for _, day := range chunk.Dates() {
			sedentary, ok1 := byLevel["minutesSedentary"][day]
			lightly, ok2 := byLevel["minutesLightlyActive"][day]
			fairly, ok3 := byLevel["minutesFairlyActive"][day]
			very, ok4 := byLevel["minutesVeryActive"][day]
			if !ok1 || !ok2 || !ok3 || !ok4 {
				points = append(points, health.Point{Date: day})
				continue
			}
			detail := &health.ActivityDetail{
				SedentaryMinutes:     sedentary,
				LightlyActiveMinutes: lightly,
				FairlyActiveMinutes:  fairly,
				VeryActiveMinutes:    very,
			}
			points = append(points, health.Point{
				Date:     day,
				Value:    health.Float(float64(detail.ActiveMinutes())),
				Activity: detail,
			})
		}
		return points, nil
	})
}

// GetHeartRate fetches resting heart rate and zone minutes. Days without
// a resting heart rate have no value.
func (c *Client) GetHeartRate(ctx context.Context, r health.DateRange) (health.Series, error) {
	return c.fetchChunked(ctx, health.MetricRestingHeartRate, r, MaxHeartRateDays, func(ctx context.Context, chunk health.DateRange) ([]health.Point, error) {
		var resp HeartRateResponse
		if err := c.getJSON(ctx, rangePath("/1/user/-/activities/heart/date/%s/%s.json", chunk), &resp); err != nil {
			return nil, err
		}

		points := make([]health.Point, 0, len(resp.ActivitiesHeart))
		for _, day := range resp.ActivitiesHeart {
			date, err := parseDay(day.DateTime)
			if err != nil {
				return nil, err
			}
			detail := &health.HeartDetail{RestingHeartRate: day.Value.RestingHeartRate}
			for _, z := range day.Value.HeartRateZones {
				detail.Zones = append(detail.Zones, health.HeartRateZone{
					Name:        z.Name,
					Min:         z.Min,
					Max:         z.Max,
					Minutes:     z.Minutes,
					CaloriesOut: z.CaloriesOut,
				})
			}
			p := health.Point{Date: date, Heart: detail}
			if rhr := day.Value.RestingHeartRate; rhr != nil {
				p.Value = health.Float(float64(*rhr))
			}
			points = append(points, p)
		}
		return points, nil
	})
}

// GetSleep fetches nightly sleep. Naps are merged into the night's
// totals; stage minutes come from stage-type records only.
func (c *Client) GetSleep(ctx context.Context, r health.DateRange) (health.Series, error) {
	return c.fetchChunked(ctx, health.MetricSleepHours, r, MaxSleepDays, func(ctx context.Context, chunk health.DateRange) ([]health.Point, error) {
		var resp SleepResponse
		if err := c.getJSON(ctx, rangePath("/1.2/user/-/sleep/date/%s/%s.json", chunk), &resp); err != nil {
			return nil, err
		}
		return sleepPoints(resp.Sleep)
	})
}

func sleepPoints(logs []SleepLog) ([]health.Point, error) {
	nights := make(map[string]*health.SleepDetail)
	var order []string

	for _, rec := range logs {
		d, ok := nights[rec.DateOfSleep]
		if !ok {
			d = &health.SleepDetail{}
			nights[rec.DateOfSleep] = d
			order = append(order, rec.DateOfSleep)
		}
		d.Records++
		d.MinutesAsleep += rec.MinutesAsleep
		d.MinutesAwake += rec.MinutesAwake
		d.TimeInBed += rec.TimeInBed
		if rec.IsMainSleep || d.Efficiency == 0 {
			d.Efficiency = rec.Efficiency
		}

		if rec.Type == "stages" {
			d.HasStages = true
			levels := rec.Levels.Summary
			d.DeepMinutes += stageMinutes(levels.Deep)
			d.LightMinutes += stageMinutes(levels.Light)
			d.REMMinutes += stageMinutes(levels.REM)
			d.WakeMinutes += stageMinutes(levels.Wake)
		}
	}

	points := make([]health.Point, 0, len(order))
	for _, key := range order {
		date, err := parseDay(key)
		if err != nil {
			return nil, err
		}
		d := nights[key]
		points = append(points, health.Point{
			Date:  date,
			Value: health.Float(d.Hours()),
			Sleep: d,
		})
	}
	return points, nil
}

func stageMinutes(s *sleepLevelSummary) int {
	if s == nil {
		return 0
	}
	return s.Minutes
}

// GetSpO2 fetches nightly average blood oxygen saturation
func (c *Client) GetSpO2(ctx context.Context, r health.DateRange) (health.Series, error) {
	return c.fetchChunked(ctx, health.MetricSpO2, r, MaxSpO2Days, func(ctx context.Context, chunk health.DateRange) ([]health.Point, error) {
		path := rangePath("/1/user/-/spo2/date/%s/%s.json", chunk)
		body, err := c.get(ctx, path)
		if err != nil {
			return nil, err
		}
		entries, err := decodeSpO2(body)
		if err != nil {
			return nil, fmt.Errorf("%w: decoding %s: %v", ErrUpstream, path, err)
		}

		points := make([]health.Point, 0, len(entries))
		for _, e := range entries {
			date, err := parseDay(e.DateTime)
			if err != nil {
				return nil, err
			}
			points = append(points, health.Point{
				Date:  date,
				Value: health.Float(e.Value.Avg),
				SpO2:  &health.SpO2Detail{Avg: e.Value.Avg, Min: e.Value.Min, Max: e.Value.Max},
			})
		}
		return points, nil
	})
}

// GetWeight fetches body weight. Days without a weigh-in are absent.
func (c *Client) GetWeight(ctx context.Context, r health.DateRange) (health.Series, error) {
	return c.fetchChunked(ctx, health.MetricWeight, r, MaxWeightDays, func(ctx context.Context, chunk health.DateRange) ([]health.Point, error) {
		var resp WeightResponse
		if err := c.getJSON(ctx, rangePath("/1/user/-/body/weight/date/%s/%s.json", chunk), &resp); err != nil {
			return nil, err
		}
		return timeSeriesPoints(resp.BodyWeight)
	})
}

// GetActiveZoneMinutes fetches daily Active Zone Minutes
func (c *Client) GetActiveZoneMinutes(ctx context.Context, r health.DateRange) (health.Series, error) {
	return c.fetchChunked(ctx, health.MetricActiveZoneMinutes, r, MaxAZMDays, func(ctx context.Context, chunk health.DateRange) ([]health.Point, error) {
		var resp AZMResponse
		if err := c.getJSON(ctx, rangePath("/1/user/-/activities/active-zone-minutes/date/%s/%s.json", chunk), &resp); err != nil {
			return nil, err
		}

		points := make([]health.Point, 0, len(resp.Entries))
		for _, e := range resp.Entries {
			date, err := parseDay(e.DateTime)
			if err != nil {
				return nil, err
			}
			v := e.Value
			points = append(points, health.Point{
				Date:  date,
				Value: health.Float(float64(v.ActiveZoneMinutes)),
				Zones: &health.ZoneMinutes{
					Total:   v.ActiveZoneMinutes,
					FatBurn: v.FatBurnActiveZoneMinutes,
					Cardio:  v.CardioActiveZoneMinutes,
					Peak:    v.PeakActiveZoneMinutes,
				},
			})
		}
		return points, nil
	})
}

// GetMetric fetches any declared metric by name
func (c *Client) GetMetric(ctx context.Context, metric health.Metric, r health.DateRange) (health.Series, error) {
	switch metric {
	case health.MetricSteps:
		return c.GetSteps(ctx, r)
	case health.MetricDistance:
		return c.GetDistance(ctx, r)
	case health.MetricCalories:
		return c.GetCalories(ctx, r)
	case health.MetricActivitySummary:
		return c.GetActivitySummary(ctx, r)
	case health.MetricActiveMinutes, health.MetricSedentaryHours:
		activity, err := c.GetActivitySummary(ctx, r)
		if err != nil {
			return health.Series{}, err
		}
		if metric == health.MetricActiveMinutes {
			return health.ActiveMinutes(activity), nil
		}
		return health.SedentaryHours(activity), nil
	case health.MetricRestingHeartRate:
		return c.GetHeartRate(ctx, r)
	case health.MetricSleepHours:
		return c.GetSleep(ctx, r)
	case health.MetricSpO2:
		return c.GetSpO2(ctx, r)
	case health.MetricWeight:
		return c.GetWeight(ctx, r)
	case health.MetricActiveZoneMinutes:
		return c.GetActiveZoneMinutes(ctx, r)
	}
	return health.Series{}, fmt.Errorf("unknown metric %q", metric)
}
