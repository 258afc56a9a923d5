package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/joho/godotenv/autoload"

	"fitbit-insights/internal/analysis"
	"fitbit-insights/internal/auth"
	"fitbit-insights/internal/config"
	"fitbit-insights/internal/fitbit"
	"fitbit-insights/internal/health"
)

// errUsage marks command-line mistakes
var errUsage = errors.New("usage")

const usage = `Usage: fitbit-insights <command> [flags]

Commands:
  auth                 authorize with Fitbit and store tokens
  status               show token and rate limit state
  steps, activity      daily steps
  distance             daily distance
  calories             daily calories burned
  activity-summary     daily activity summary (active minutes)
  heartrate            daily resting heart rate
  sleep                nightly sleep
  spo2                 nightly SpO2
  weight               body weight
  azm                  Active Zone Minutes
  summary              averages, trends and correlations
  alerts               days that breach alert thresholds
  report               daily, weekly or monthly report

Flags:
  --days N             number of days before today to include (default 7)
  --config PATH        config file (default ~/.fitbit-insights/config.yaml)
  --json               print JSON instead of text
  --type TYPE          report type: daily, weekly or monthly
  --interactive        open the report in a pager
  --steps, --sleep, --resting-hr
                       alert threshold overrides
`

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()

	if err != nil {
		kind, code := classify(err)
		fmt.Fprintf(os.Stderr, "error (%s): %v\n", kind, err)
		os.Exit(code)
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	if len(args) == 0 {
		fmt.Fprint(stderr, usage)
		return fmt.Errorf("%w: no command given", errUsage)
	}

	name, rest := args[0], args[1:]
	switch name {
	case "help", "-h", "--help":
		fmt.Fprint(stdout, usage)
		return nil
	}

	cmd, ok := lookupCommand(name)
	if !ok {
		fmt.Fprint(stderr, usage)
		return fmt.Errorf("%w: unknown command %q", errUsage, name)
	}

	opts, err := parseFlags(name, rest, stderr)
	if errors.Is(err, errHelp) {
		return nil
	}
	if err != nil {
		return err
	}

	level := new(slog.LevelVar)
	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level})).
		With("run_id", uuid.NewString(), "command", name)

	cfg, err := loadConfig(opts.configPath, stdout)
	if err != nil {
		return err
	}
	if err := level.UnmarshalText([]byte(cfg.Log.Level)); err != nil {
		logger.Warn("unknown log level, using info", "level", cfg.Log.Level)
	}

	env := &environment{
		cfg:    cfg,
		opts:   opts,
		logger: logger,
		stdout: stdout,
		now:    time.Now,
	}
	defer env.close()

	return cmd(ctx, env)
}

// loadConfig loads and validates configuration. When no config exists
// yet an example file is written so the user has something to edit.
func loadConfig(path string, stdout io.Writer) (*config.Config, error) {
	cfg, err := config.Load(path)
	if errors.Is(err, config.ErrNoConfig) && path == "" {
		if err := config.CreateExample(); err != nil {
			return nil, fmt.Errorf("creating example config: %w", err)
		}
		configDir, _ := config.GetConfigDir()
		fmt.Fprintf(stdout, "No config file found. An example was written to:\n  %s/config.yaml\n\n", configDir)
		fmt.Fprintln(stdout, "Add your Fitbit app credentials from https://dev.fitbit.com/apps")
		fmt.Fprintln(stdout, "or set FITBIT_CLIENT_ID and FITBIT_CLIENT_SECRET.")
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// classify maps an error to the kind printed to the user and the
// process exit code
func classify(err error) (string, int) {
	switch {
	case errors.Is(err, auth.ErrConfig),
		errors.Is(err, config.ErrInvalid),
		errors.Is(err, config.ErrNoConfig):
		return "config", 2
	case errors.Is(err, auth.ErrAuth):
		return "auth", 3
	case errors.Is(err, health.ErrInvalidRange):
		return "invalid range", 4
	case errors.Is(err, fitbit.ErrRateLimited):
		return "rate limit", 5
	case errors.Is(err, fitbit.ErrUpstream):
		return "upstream", 6
	case errors.Is(err, fitbit.ErrRequest):
		return "request", 7
	case errors.Is(err, analysis.ErrInsufficientData):
		return "insufficient data", 8
	case errors.Is(err, errUsage):
		return "usage", 1
	case errors.Is(err, context.Canceled):
		return "interrupted", 1
	}
	return "error", 1
}

// trimURL strips trailing slashes so paths can be appended
func trimURL(u string) string {
	return strings.TrimRight(u, "/")
}
