package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/dustin/go-humanize"
	"golang.org/x/oauth2"

	"fitbit-insights/internal/alerts"
	"fitbit-insights/internal/analysis"
	"fitbit-insights/internal/auth"
	"fitbit-insights/internal/config"
	"fitbit-insights/internal/fitbit"
	"fitbit-insights/internal/health"
	"fitbit-insights/internal/service"
	"fitbit-insights/internal/store"
	"fitbit-insights/internal/tui"
)

// outputWidth is the render width for non-interactive output
const outputWidth = 80

type command func(ctx context.Context, env *environment) error

// metricCommands are the commands that print a single series
var metricCommands = map[string]health.Metric{
	"steps":            health.MetricSteps,
	"activity":         health.MetricSteps,
	"distance":         health.MetricDistance,
	"calories":         health.MetricCalories,
	"activity-summary": health.MetricActivitySummary,
	"heartrate":        health.MetricRestingHeartRate,
	"sleep":            health.MetricSleepHours,
	"spo2":             health.MetricSpO2,
	"weight":           health.MetricWeight,
	"azm":              health.MetricActiveZoneMinutes,
}

func lookupCommand(name string) (command, bool) {
	switch name {
	case "auth":
		return runAuth, true
	case "status":
		return runStatus, true
	case "summary":
		return runSummary, true
	case "alerts":
		return runAlerts, true
	case "report":
		return runReport, true
	}
	if metric, ok := metricCommands[name]; ok {
		return metricCommand(metric), true
	}
	return nil, false
}

// environment holds the loaded config and lazily opened dependencies of
// one invocation
type environment struct {
	cfg    *config.Config
	opts   options
	logger *slog.Logger
	stdout io.Writer
	now    func() time.Time

	backend store.Backend
	tokens  *auth.TokenStore
	session *auth.Session
	client  *fitbit.Client
}

func (e *environment) close() {
	if e.backend == nil {
		return
	}
	if err := e.backend.Close(); err != nil {
		e.logger.Warn("closing token store", "error", err)
	}
}

func (e *environment) openTokens() (*auth.TokenStore, error) {
	if e.tokens != nil {
		return e.tokens, nil
	}

	backend, err := store.Open(e.cfg.Tokens.Backend, e.cfg.Tokens.Path)
	if err != nil {
		return nil, fmt.Errorf("%w: opening token store: %v", auth.ErrConfig, err)
	}
	e.backend = backend
	e.tokens = auth.NewTokenStore(backend, seedCredentials(e.cfg))
	return e.tokens, nil
}

func (e *environment) oauthConfig() *oauth2.Config {
	c := auth.Config{
		ClientID:     e.cfg.Fitbit.ClientID,
		ClientSecret: e.cfg.Fitbit.ClientSecret,
		RedirectURL:  e.cfg.Fitbit.RedirectURL,
	}
	if e.cfg.Fitbit.BaseURL != "" {
		c.TokenURL = trimURL(e.cfg.Fitbit.BaseURL) + "/oauth2/token"
	}
	return auth.NewOAuthConfig(c)
}

func (e *environment) httpClient() *http.Client {
	return &http.Client{Timeout: e.cfg.HTTP.Timeout}
}

// connect loads stored credentials and builds the API client
func (e *environment) connect() (*fitbit.Client, error) {
	if e.client != nil {
		return e.client, nil
	}

	tokens, err := e.openTokens()
	if err != nil {
		return nil, err
	}
	if _, err := tokens.Load(); err != nil {
		return nil, err
	}

	e.session = auth.NewSession(tokens, e.oauthConfig(), e.httpClient(),
		auth.WithRefreshMargin(e.cfg.Tokens.RefreshMargin),
		auth.WithSessionLogger(e.logger),
	)

	limiter := fitbit.NewRateLimiter(e.cfg.HTTP.MinInterval)
	limiter.SetMaxWait(e.cfg.HTTP.MaxRateLimitWait)
	opts := []fitbit.Option{
		fitbit.WithLogger(e.logger),
		fitbit.WithRetrier(fitbit.NewRetrier(retryPolicy(e.cfg.HTTP), limiter, fitbit.WithRetryLogger(e.logger))),
	}
	if e.cfg.Fitbit.BaseURL != "" {
		opts = append(opts, fitbit.WithBaseURL(trimURL(e.cfg.Fitbit.BaseURL)))
	}
	e.client = fitbit.NewClient(e.session, opts...)
	return e.client, nil
}

func (e *environment) thresholds() alerts.Thresholds {
	t, unknown := alerts.ThresholdsFromMap(e.cfg.Alerts.Thresholds)
	for _, name := range unknown {
		e.logger.Warn("ignoring threshold for unknown metric", "metric", name)
	}
	for metric, v := range e.opts.overrides {
		t[metric] = v
	}
	return t
}

func (e *environment) reportService(client service.Fetcher) *service.ReportService {
	svc := service.NewReportService(client, sleepWeights(e.cfg.SleepScore), alerts.New(e.thresholds()))
	svc.SetClock(e.now)
	svc.SetLogger(e.logger)
	return svc
}

func (e *environment) window() (health.DateRange, error) {
	return health.TrailingDays(e.opts.days, e.now())
}

func (e *environment) printJSON(v any) error {
	enc := json.NewEncoder(e.stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encoding output: %w", err)
	}
	return nil
}

func metricCommand(metric health.Metric) command {
	return func(ctx context.Context, env *environment) error {
		r, err := env.window()
		if err != nil {
			return err
		}
		client, err := env.connect()
		if err != nil {
			return err
		}

		s, err := client.GetMetric(ctx, metric, r)
		if err != nil {
			return fmt.Errorf("fetching %s: %w", metric, err)
		}
		env.logger.Debug("fetched series", "metric", metric, "range", r.String(), "points", s.Len())

		if env.opts.json {
			return env.printJSON(s)
		}
		fmt.Fprintln(env.stdout, tui.RenderSeries(s, r, outputWidth))
		return nil
	}
}

func runAuth(ctx context.Context, env *environment) error {
	tokens, err := env.openTokens()
	if err != nil {
		return err
	}

	result, err := auth.Authenticate(ctx, env.oauthConfig(), env.httpClient(), env.stdout)
	if err != nil {
		return err
	}

	creds := auth.CredentialsFromToken(seedCredentials(env.cfg), result.Token, result.UserID)
	if err := tokens.Save(creds); err != nil {
		return fmt.Errorf("storing tokens: %w", err)
	}
	env.logger.Info("stored new tokens", "credentials", creds)

	fmt.Fprintln(env.stdout)
	fmt.Fprintf(env.stdout, "Successfully authenticated as user %s!\n", creds.UserID)
	return nil
}

// statusInfo is the status command's output
type statusInfo struct {
	UserID         string    `json:"user_id"`
	Backend        string    `json:"backend"`
	ExpiresAt      time.Time `json:"expires_at"`
	HasRefresh     bool      `json:"has_refresh_token"`
	RateRemaining  int       `json:"rate_limit_remaining"`
	RateLimit      int       `json:"rate_limit"`
	RateLimitReset time.Time `json:"rate_limit_reset"`
}

// runStatus validates the credentials with one cheap request and reports
// token and rate limit state
func runStatus(ctx context.Context, env *environment) error {
	client, err := env.connect()
	if err != nil {
		return err
	}

	today, err := health.TrailingDays(0, env.now())
	if err != nil {
		return err
	}
	if _, err := client.GetSteps(ctx, today); err != nil {
		return fmt.Errorf("checking credentials: %w", err)
	}

	creds := env.tokens.Current()
	info := statusInfo{
		UserID:     creds.UserID,
		Backend:    env.cfg.Tokens.Backend,
		ExpiresAt:  creds.ExpiresAt,
		HasRefresh: creds.RefreshToken != "",
	}
	info.RateRemaining, info.RateLimit, info.RateLimitReset = client.RateLimitStatus()

	if env.opts.json {
		return env.printJSON(info)
	}

	user := info.UserID
	if user == "" {
		user = "unknown"
	}
	expiry := "unknown"
	if !info.ExpiresAt.IsZero() {
		expiry = humanize.Time(info.ExpiresAt)
	}
	refresh := "not set"
	if info.HasRefresh {
		refresh = "set"
	}

	fmt.Fprintf(env.stdout, "User:          %s\n", user)
	fmt.Fprintf(env.stdout, "Token store:   %s\n", info.Backend)
	fmt.Fprintf(env.stdout, "Access token:  valid, expires %s\n", expiry)
	fmt.Fprintf(env.stdout, "Refresh token: %s\n", refresh)
	fmt.Fprintf(env.stdout, "Rate limit:    %s of %s requests left, resets %s\n",
		humanize.Comma(int64(info.RateRemaining)), humanize.Comma(int64(info.RateLimit)),
		humanize.Time(info.RateLimitReset))
	return nil
}

func runSummary(ctx context.Context, env *environment) error {
	if _, err := env.window(); err != nil {
		return err
	}
	client, err := env.connect()
	if err != nil {
		return err
	}

	report, err := env.reportService(client).Build(ctx, service.ReportWeekly, env.opts.days, nil)
	if err != nil {
		return err
	}
	if len(report.Summary.Metrics) == 0 {
		return fmt.Errorf("%w: no metric has data for %s", analysis.ErrInsufficientData, report.Range)
	}

	if env.opts.json {
		return env.printJSON(report.Summary)
	}
	fmt.Fprintln(env.stdout, tui.RenderSummary(report.Summary, report.Range))
	return nil
}

func runAlerts(ctx context.Context, env *environment) error {
	r, err := env.window()
	if err != nil {
		return err
	}
	client, err := env.connect()
	if err != nil {
		return err
	}

	results, err := env.reportService(client).Alerts(ctx, r)
	if err != nil {
		return err
	}
	env.logger.Debug("evaluated alerts", "range", r.String(), "alerts", len(results))

	if env.opts.json {
		return env.printJSON(results)
	}
	fmt.Fprintln(env.stdout, tui.RenderAlerts(results))
	return nil
}

func runReport(ctx context.Context, env *environment) error {
	rt, err := service.ParseReportType(env.opts.reportType)
	if err != nil {
		return fmt.Errorf("%w: %v", errUsage, err)
	}
	if env.opts.interactive && env.opts.json {
		return fmt.Errorf("%w: --interactive and --json cannot be combined", errUsage)
	}

	// Without --days the report type decides the window
	days := 0
	if env.opts.daysSet {
		if _, err := env.window(); err != nil {
			return err
		}
		days = env.opts.days
	}

	client, err := env.connect()
	if err != nil {
		return err
	}
	svc := env.reportService(client)

	if env.opts.interactive {
		return tui.Run(ctx, svc, rt, days)
	}

	report, err := svc.Build(ctx, rt, days, nil)
	if err != nil {
		return err
	}
	if env.opts.json {
		return env.printJSON(report)
	}
	fmt.Fprintln(env.stdout, tui.RenderReport(report, outputWidth))
	return nil
}

func seedCredentials(cfg *config.Config) auth.Credentials {
	return auth.Credentials{
		ClientID:     cfg.Fitbit.ClientID,
		ClientSecret: cfg.Fitbit.ClientSecret,
		AccessToken:  cfg.Fitbit.AccessToken,
		RefreshToken: cfg.Fitbit.RefreshToken,
	}
}

func retryPolicy(h config.HTTPConfig) fitbit.Policy {
	p := fitbit.DefaultPolicy()
	p.MaxAttempts = h.MaxAttempts
	p.Backoff = fitbit.ExponentialBackoff(h.BaseDelay, h.MaxDelay)
	p.MaxResetWait = h.MaxRateLimitWait
	return p
}

func sleepWeights(c config.SleepScoreConfig) analysis.SleepWeights {
	return analysis.SleepWeights{
		Duration:      c.Duration,
		Stages:        c.Stages,
		Deep:          c.Deep,
		REM:           c.REM,
		Light:         c.Light,
		Wake:          c.Wake,
		IdealMinHours: c.IdealMinHours,
		IdealMaxHours: c.IdealMaxHours,
	}
}
