package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"fitbit-insights/internal/analysis"
	"fitbit-insights/internal/health"
)

// Palette
var (
	accentColor  = lipgloss.Color("#00B0B9") // Fitbit teal
	goodColor    = lipgloss.Color("#4CC38A")
	cautionColor = lipgloss.Color("#F2A93B")
	badColor     = lipgloss.Color("#E5484D")
	dimColor     = lipgloss.Color("#7C8594")
	brightColor  = lipgloss.Color("#F4F6F8")
)

var (
	titleBarStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(brightColor).
			Background(accentColor).
			Padding(0, 1).
			MarginBottom(1)

	panelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(accentColor).
			Padding(0, 1)

	panelTitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(accentColor)

	labelStyle = lipgloss.NewStyle().
			Foreground(dimColor).
			Width(20)

	valueStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(brightColor)

	strongStyle = valueStyle.Foreground(accentColor)

	columnHeaderStyle = lipgloss.NewStyle().
				Bold(true).
				Underline(true).
				Foreground(accentColor)

	// Trend coloring is relative to the metric's alert direction
	goodStyle    = lipgloss.NewStyle().Foreground(goodColor)
	badStyle     = lipgloss.NewStyle().Foreground(badColor)
	neutralStyle = lipgloss.NewStyle().Foreground(dimColor)

	footerStyle = lipgloss.NewStyle().
			Foreground(dimColor).
			Italic(true).
			MarginTop(1)

	okStyle    = lipgloss.NewStyle().Foreground(goodColor)
	alertStyle = lipgloss.NewStyle().Foreground(cautionColor)
	errorStyle = lipgloss.NewStyle().Foreground(badColor).Bold(true)

	keyStyle = lipgloss.NewStyle().Foreground(accentColor).Bold(true)
	dimStyle = lipgloss.NewStyle().Foreground(dimColor)

	gaugeFillStyle  = lipgloss.NewStyle().Foreground(goodColor)
	gaugeEmptyStyle = lipgloss.NewStyle().Foreground(dimColor)
)

// trendStyle colors a trend green when it moves away from the metric's
// alert side and red when it moves toward it
func trendStyle(metric health.Metric, t analysis.Trend) lipgloss.Style {
	if t == "" || t == analysis.TrendFlat {
		return neutralStyle
	}
	rising := t == analysis.TrendIncreasing
	if (metric.Info().Direction == health.AlertLow) == rising {
		return goodStyle
	}
	return badStyle
}

// renderMetricLine renders "label  value  ↑ increasing" for one metric
func renderMetricLine(metric health.Metric, value string, t analysis.Trend) string {
	trend := ""
	if t != "" {
		trend = " " + t.Arrow() + " " + string(t)
	}
	return lipgloss.JoinHorizontal(
		lipgloss.Left,
		labelStyle.Render(metric.Info().Label),
		valueStyle.Render(value),
		trendStyle(metric, t).Render(trend),
	)
}

// renderGauge renders a horizontal bar filled to fraction (0-1)
func renderGauge(fraction float64, width int) string {
	filled := int(fraction*float64(width) + 0.5)
	filled = max(0, min(filled, width))
	return gaugeFillStyle.Render(strings.Repeat("█", filled)) +
		gaugeEmptyStyle.Render(strings.Repeat("░", width-filled))
}

func keyHint(key, desc string) string {
	return keyStyle.Render(key) + " " + dimStyle.Render(desc)
}
