package health

import (
	"sort"
	"time"
)

// Series is a date-ordered sequence of points for one metric with at
// most one point per date. Dates absent from Points have no data.
type Series struct {
	Metric Metric  `json:"metric"`
	Points []Point `json:"points"`
}

// NewSeries sorts points by date and removes duplicates, keeping the
// last point seen for a date. When within is non-nil, points outside
// it are dropped.
func NewSeries(metric Metric, points []Point, within *DateRange) Series {
	byDate := make(map[time.Time]Point, len(points))
	for _, p := range points {
		p.Date = Day(p.Date)
		if within != nil && !within.Contains(p.Date) {
			continue
		}
		if p.Metric == "" {
			p.Metric = metric
		}
		byDate[p.Date] = p
	}

	out := make([]Point, 0, len(byDate))
	for _, p := range byDate {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Date.Before(out[j].Date)
	})

	return Series{Metric: metric, Points: out}
}

// Len returns the number of dated points, including ones without a value
func (s Series) Len() int {
	return len(s.Points)
}

// Present returns only points carrying a value, in date order
func (s Series) Present() []Point {
	var out []Point
	for _, p := range s.Points {
		if p.Has() {
			out = append(out, p)
		}
	}
	return out
}

// Values returns the observed values in date order, skipping missing days
func (s Series) Values() []float64 {
	var out []float64
	for _, p := range s.Points {
		if p.Has() {
			out = append(out, *p.Value)
		}
	}
	return out
}

// ByDate indexes present values by date
func (s Series) ByDate() map[time.Time]float64 {
	out := make(map[time.Time]float64, len(s.Points))
	for _, p := range s.Points {
		if p.Has() {
			out[Day(p.Date)] = *p.Value
		}
	}
	return out
}

// At returns the point for a date
func (s Series) At(date time.Time) (Point, bool) {
	d := Day(date)
	i := sort.Search(len(s.Points), func(i int) bool {
		return !s.Points[i].Date.Before(d)
	})
	if i < len(s.Points) && s.Points[i].Date.Equal(d) {
		return s.Points[i], true
	}
	return Point{}, false
}

// Derive builds a new series for another metric by mapping each point.
// Returning nil from fn records the day as missing.
func (s Series) Derive(metric Metric, fn func(Point) *float64) Series {
	points := make([]Point, 0, len(s.Points))
	for _, p := range s.Points {
		points = append(points, Point{
			Date:   p.Date,
			Metric: metric,
			Value:  fn(p),
		})
	}
	return Series{Metric: metric, Points: points}
}

// ActiveMinutes derives fairly+very active minutes from an activity summary series
func ActiveMinutes(activity Series) Series {
	return activity.Derive(MetricActiveMinutes, func(p Point) *float64 {
		if p.Activity == nil {
			return nil
		}
		return Float(float64(p.Activity.ActiveMinutes()))
	})
}

// SedentaryHours derives sedentary time in hours from an activity summary series
func SedentaryHours(activity Series) Series {
	return activity.Derive(MetricSedentaryHours, func(p Point) *float64 {
		if p.Activity == nil {
			return nil
		}
		return Float(float64(p.Activity.SedentaryMinutes) / 60)
	})
}
