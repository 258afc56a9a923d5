package analysis

import "fitbit-insights/internal/health"

// ExponentialAverage smooths a series with an EMA over its observed
// days. span sets the decay (2 / (span + 1)); days without an observation
// carry no point in the result.
func ExponentialAverage(s health.Series, span int) health.Series {
	if span < 1 {
		span = 1
	}
	decay := 2.0 / (float64(span) + 1.0)

	var (
		ema    float64
		seeded bool
		points []health.Point
	)
	for _, p := range s.Present() {
		if !seeded {
			ema = p.Val()
			seeded = true
		} else {
			ema = ema + decay*(p.Val()-ema)
		}
		points = append(points, health.Point{Date: p.Date, Metric: s.Metric, Value: health.Float(ema)})
	}
	return health.Series{Metric: s.Metric, Points: points}
}
