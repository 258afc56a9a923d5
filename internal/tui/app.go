package tui

import (
	"context"
	"fmt"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"fitbit-insights/internal/service"
)

// reportMsg carries a finished report build
type reportMsg struct {
	report *service.Report
	err    error
}

// progressMsg is sent for each metric fetch during a build
type progressMsg struct {
	progress service.Progress
	ch       <-chan service.Progress
}

// App is the interactive report pager
type App struct {
	ctx     context.Context
	service *service.ReportService

	reportType service.ReportType
	days       int

	spinner  spinner.Model
	viewport viewport.Model
	ready    bool

	loading  bool
	progress service.Progress
	report   *service.Report
	err      error

	// Window dimensions
	width  int
	height int
}

// NewApp creates the report pager. days <= 0 uses the report type's window.
func NewApp(ctx context.Context, svc *service.ReportService, rt service.ReportType, days int) *App {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(accentColor)

	return &App{
		ctx:        ctx,
		service:    svc,
		reportType: rt,
		days:       days,
		spinner:    s,
	}
}

// Err returns the error of the last build, if any
func (a *App) Err() error {
	return a.err
}

// Init starts the first build
func (a *App) Init() tea.Cmd {
	return a.load()
}

func (a *App) load() tea.Cmd {
	a.loading = true
	a.err = nil
	a.progress = service.Progress{Total: len(service.ReportMetrics)}

	ch := make(chan service.Progress, len(service.ReportMetrics))
	ctx, svc, rt, days := a.ctx, a.service, a.reportType, a.days

	build := func() tea.Msg {
		report, err := svc.Build(ctx, rt, days, ch)
		return reportMsg{report: report, err: err}
	}
	return tea.Batch(a.spinner.Tick, build, waitForProgress(ch))
}

func waitForProgress(ch <-chan service.Progress) tea.Cmd {
	return func() tea.Msg {
		p, ok := <-ch
		if !ok {
			return nil
		}
		return progressMsg{progress: p, ch: ch}
	}
}

// Update handles messages
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return a, tea.Quit
		}
		if a.loading {
			return a, nil
		}
		switch msg.String() {
		case "d":
			return a, a.switchTo(service.ReportDaily)
		case "w":
			return a, a.switchTo(service.ReportWeekly)
		case "m":
			return a, a.switchTo(service.ReportMonthly)
		case "r":
			return a, a.load()
		}

	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		if !a.ready {
			a.viewport = viewport.New(msg.Width, msg.Height-3) // Reserve space for footer
			a.ready = true
		} else {
			a.viewport.Width = msg.Width
			a.viewport.Height = msg.Height - 3
		}
		if a.report != nil {
			a.viewport.SetContent(RenderReport(a.report, a.width))
		}

	case progressMsg:
		a.progress = msg.progress
		return a, waitForProgress(msg.ch)

	case reportMsg:
		a.loading = false
		if msg.err != nil {
			a.err = msg.err
			return a, nil
		}
		a.report = msg.report
		a.viewport.SetContent(RenderReport(a.report, a.width))
		a.viewport.GotoTop()
		return a, nil

	case spinner.TickMsg:
		if !a.loading {
			return a, nil
		}
		var cmd tea.Cmd
		a.spinner, cmd = a.spinner.Update(msg)
		return a, cmd
	}

	// Handle viewport scrolling
	var cmd tea.Cmd
	a.viewport, cmd = a.viewport.Update(msg)
	return a, cmd
}

// switchTo rebuilds the report for another type at that type's own window
func (a *App) switchTo(rt service.ReportType) tea.Cmd {
	a.reportType = rt
	a.days = 0
	return a.load()
}

// View renders the app
func (a *App) View() string {
	if !a.ready {
		return a.spinner.View() + " Loading..."
	}

	var content string
	switch {
	case a.loading:
		content = a.renderLoading()
	case a.err != nil:
		content = errorStyle.Render(fmt.Sprintf("\n  Error: %v", a.err)) + "\n" +
			footerStyle.Render("  Press 'r' to retry")
	default:
		content = a.viewport.View()
	}

	return lipgloss.JoinVertical(lipgloss.Left, content, a.renderFooter())
}

func (a *App) renderLoading() string {
	label := a.reportType.Title()
	current := "starting"
	if a.progress.Metric != "" {
		current = a.progress.Metric.Info().Label
	}
	pct := 0.0
	if a.progress.Total > 0 {
		pct = float64(a.progress.Completed) / float64(a.progress.Total)
	}
	return fmt.Sprintf("\n  %s Building %s\n\n  %s  %s\n",
		a.spinner.View(), label, renderGauge(pct, 30), dimStyle.Render("fetching "+current))
}

func (a *App) renderFooter() string {
	keys := []string{
		keyHint("d", "daily"),
		keyHint("w", "weekly"),
		keyHint("m", "monthly"),
		keyHint("r", "refresh"),
		keyHint("↑/↓", "scroll"),
		keyHint("q", "quit"),
	}
	footer := ""
	for i, k := range keys {
		if i > 0 {
			footer += "  "
		}
		footer += k
	}
	return footerStyle.Render(footer)
}

// Run opens the interactive pager and blocks until the user quits
func Run(ctx context.Context, svc *service.ReportService, rt service.ReportType, days int) error {
	app := NewApp(ctx, svc, rt, days)
	p := tea.NewProgram(app, tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("running report viewer: %w", err)
	}
	return app.Err()
}
