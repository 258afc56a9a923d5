package tui

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"github.com/guptarohit/asciigraph"

	"fitbit-insights/internal/alerts"
	"fitbit-insights/internal/analysis"
	"fitbit-insights/internal/health"
	"fitbit-insights/internal/service"
)

const (
	defaultChartWidth = 60
	chartHeight       = 8
	maxSleepNights    = 7
)

// chartedMetrics get a chart in the full report
var chartedMetrics = []health.Metric{
	health.MetricSteps,
	health.MetricSleepHours,
	health.MetricRestingHeartRate,
}

// RenderReport renders a full report. width is the terminal width, or 0 when unknown.
func RenderReport(r *service.Report, width int) string {
	sections := []string{
		titleBarStyle.Render(fmt.Sprintf("%s  %s", r.Type.Title(), r.Range)),
		renderSummaryCard(r.Summary),
	}

	for _, m := range chartedMetrics {
		if s, ok := r.Get(m); ok {
			sections = append(sections, renderChart(s, chartWidth(width)))
		}
	}

	if len(r.Summary.SleepScores) > 0 {
		sections = append(sections, renderSleepScores(r.Summary.SleepScores))
	}
	if len(r.Summary.Correlations) > 0 {
		sections = append(sections, renderCorrelations(r.Summary.Correlations))
	}
	sections = append(sections, RenderAlerts(r.Alerts))
	sections = append(sections, footerStyle.Render("Generated "+humanize.Time(r.GeneratedAt)))

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

// RenderSummary renders the analysis summary on its own
func RenderSummary(sum analysis.Summary, r health.DateRange) string {
	sections := []string{
		titleBarStyle.Render("Summary  " + r.String()),
		renderSummaryCard(sum),
	}
	if len(sum.SleepScores) > 0 {
		sections = append(sections, renderSleepScores(sum.SleepScores))
	}
	if len(sum.Correlations) > 0 {
		sections = append(sections, renderCorrelations(sum.Correlations))
	}
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func renderSummaryCard(sum analysis.Summary) string {
	title := panelTitleStyle.Render("Averages")
	if len(sum.Metrics) == 0 {
		return panelStyle.Render(lipgloss.JoinVertical(lipgloss.Left, title, "No data in this range"))
	}

	lines := []string{title}
	for _, ms := range sum.Metrics {
		value := FormatValue(ms.Metric, ms.Average)
		if ms.Samples > 1 {
			value += dimStyle.Render(fmt.Sprintf("  (%s – %s)", FormatValue(ms.Metric, ms.Min), FormatValue(ms.Metric, ms.Max)))
		}
		lines = append(lines, renderMetricLine(ms.Metric, value, ms.Trend))
	}
	return panelStyle.Render(lipgloss.JoinVertical(lipgloss.Left, lines...))
}

func renderChart(s health.Series, width int) string {
	info := s.Metric.Info()
	title := panelTitleStyle.Render(fmt.Sprintf("%s (%s)", info.Label, info.Unit))

	vals := s.Values()
	if len(vals) < 2 {
		return panelStyle.Render(lipgloss.JoinVertical(lipgloss.Left, title, "Not enough data to chart"))
	}

	smoothed := analysis.ExponentialAverage(s, service.SmoothingSpan).Values()
	graph := asciigraph.PlotMany([][]float64{vals, smoothed},
		asciigraph.Height(chartHeight),
		asciigraph.Width(width),
		asciigraph.Precision(chartPrecision(s.Metric)),
		asciigraph.SeriesColors(asciigraph.Default, asciigraph.DarkCyan),
	)
	legend := dimStyle.Render(fmt.Sprintf("daily  ·  %d-day average", service.SmoothingSpan))

	return panelStyle.Render(lipgloss.JoinVertical(lipgloss.Left, title, graph, legend))
}

func chartPrecision(m health.Metric) uint {
	switch m {
	case health.MetricSleepHours, health.MetricSedentaryHours, health.MetricDistance, health.MetricWeight, health.MetricSpO2:
		return 1
	}
	return 0
}

func chartWidth(termWidth int) int {
	if termWidth <= 0 {
		return defaultChartWidth
	}
	w := termWidth - 16 // axis labels and card border
	if w > defaultChartWidth {
		return defaultChartWidth
	}
	if w < 20 {
		return 20
	}
	return w
}

func renderSleepScores(scores map[string]float64) string {
	title := panelTitleStyle.Render("Sleep Score")

	dates := make([]string, 0, len(scores))
	for d := range scores {
		dates = append(dates, d)
	}
	sort.Strings(dates)
	if len(dates) > maxSleepNights {
		dates = dates[len(dates)-maxSleepNights:]
	}

	lines := []string{title}
	for _, d := range dates {
		score := scores[d]
		lines = append(lines, fmt.Sprintf("%s  %s %3.0f", d, renderGauge(score/100, 20), score))
	}
	return panelStyle.Render(lipgloss.JoinVertical(lipgloss.Left, lines...))
}

func renderCorrelations(cs []analysis.Correlation) string {
	title := panelTitleStyle.Render("Correlations")
	lines := []string{title}
	for _, c := range cs {
		style := neutralStyle
		switch c.Strength() {
		case "strong":
			style = strongStyle
		case "moderate":
			style = valueStyle
		}
		lines = append(lines, fmt.Sprintf("%-16s ~ %-16s %s  %s",
			c.A.Info().Label, c.B.Info().Label,
			style.Render(fmt.Sprintf("%+.2f", c.Coefficient)),
			dimStyle.Render(fmt.Sprintf("%s, %d days", c.Strength(), c.Samples))))
	}
	return panelStyle.Render(lipgloss.JoinVertical(lipgloss.Left, lines...))
}

// RenderAlerts lists threshold breaches by day
func RenderAlerts(results []alerts.Result) string {
	title := panelTitleStyle.Render("Alerts")
	if len(results) == 0 {
		return panelStyle.Render(lipgloss.JoinVertical(lipgloss.Left, title, okStyle.Render("All metrics within thresholds")))
	}

	lines := []string{title}
	for _, r := range results {
		lines = append(lines, fmt.Sprintf("%s  %s", health.FormatDate(r.Date), alertStyle.Render(r.Message())))
	}
	return panelStyle.Render(lipgloss.JoinVertical(lipgloss.Left, lines...))
}

// RenderSeries renders one metric as a day-by-day table with a chart
func RenderSeries(s health.Series, r health.DateRange, width int) string {
	info := s.Metric.Info()
	sections := []string{titleBarStyle.Render(fmt.Sprintf("%s  %s", info.Label, r))}

	rows := []string{columnHeaderStyle.Render(fmt.Sprintf("%-12s %12s  %s", "Date", info.Unit, "Detail"))}
	byDate := make(map[string]health.Point, s.Len())
	for _, p := range s.Points {
		byDate[health.FormatDate(p.Date)] = p
	}
	for _, d := range r.Dates() {
		key := health.FormatDate(d)
		p, ok := byDate[key]
		value := dimStyle.Render("—")
		if ok && p.Has() {
			value = FormatValue(s.Metric, p.Val())
		}
		rows = append(rows, fmt.Sprintf("%-12s %12s  %s", key, value, detail(p)))
	}
	sections = append(sections, panelStyle.Render(strings.Join(rows, "\n")))

	if s.Metric != health.MetricActivitySummary {
		sections = append(sections, renderChart(s, chartWidth(width)))
	}
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

// detail summarizes a point's structured payload
func detail(p health.Point) string {
	switch {
	case p.Sleep != nil:
		d := p.Sleep
		out := fmt.Sprintf("eff %d%%", d.Efficiency)
		if d.HasStages {
			out += fmt.Sprintf("  deep %s  rem %s  light %s  wake %s",
				FormatMinutes(d.DeepMinutes), FormatMinutes(d.REMMinutes),
				FormatMinutes(d.LightMinutes), FormatMinutes(d.WakeMinutes))
		}
		if d.Records > 1 {
			out += fmt.Sprintf("  (%d records)", d.Records)
		}
		return out
	case p.Heart != nil:
		var parts []string
		for _, z := range p.Heart.Zones {
			if z.Minutes > 0 {
				parts = append(parts, fmt.Sprintf("%s %dm", z.Name, z.Minutes))
			}
		}
		return strings.Join(parts, "  ")
	case p.Activity != nil:
		a := p.Activity
		return fmt.Sprintf("sedentary %s  light %s  fairly %s  very %s",
			FormatMinutes(a.SedentaryMinutes), FormatMinutes(a.LightlyActiveMinutes),
			FormatMinutes(a.FairlyActiveMinutes), FormatMinutes(a.VeryActiveMinutes))
	case p.Zones != nil:
		z := p.Zones
		return fmt.Sprintf("fat burn %d  cardio %d  peak %d", z.FatBurn, z.Cardio, z.Peak)
	case p.SpO2 != nil:
		return fmt.Sprintf("min %.1f  max %.1f", p.SpO2.Min, p.SpO2.Max)
	}
	return ""
}
