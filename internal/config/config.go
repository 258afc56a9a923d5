package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	Fitbit     FitbitConfig     `mapstructure:"fitbit" yaml:"fitbit"`
	Tokens     TokensConfig     `mapstructure:"tokens" yaml:"tokens"`
	HTTP       HTTPConfig       `mapstructure:"http" yaml:"http"`
	Alerts     AlertsConfig     `mapstructure:"alerts" yaml:"alerts"`
	SleepScore SleepScoreConfig `mapstructure:"sleep_score" yaml:"sleep_score"`
	Log        LogConfig        `mapstructure:"log" yaml:"log"`
}

// FitbitConfig holds Fitbit API credentials and endpoints
type FitbitConfig struct {
	ClientID     string `mapstructure:"client_id" yaml:"client_id"`
	ClientSecret string `mapstructure:"client_secret" yaml:"client_secret"`
	RedirectURL  string `mapstructure:"redirect_url" yaml:"redirect_url"`
	BaseURL      string `mapstructure:"base_url" yaml:"base_url,omitempty"`

	// Seed tokens, used only when the token backend has nothing stored yet
	AccessToken  string `mapstructure:"access_token" yaml:"-"`
	RefreshToken string `mapstructure:"refresh_token" yaml:"-"`
}

// TokensConfig selects where OAuth tokens are persisted
type TokensConfig struct {
	Backend       string        `mapstructure:"backend" yaml:"backend"` // file | sqlite | bolt
	Path          string        `mapstructure:"path" yaml:"path,omitempty"`
	RefreshMargin time.Duration `mapstructure:"refresh_margin" yaml:"refresh_margin"`
}

// HTTPConfig controls timeouts, pacing and retries for upstream calls
type HTTPConfig struct {
	Timeout          time.Duration `mapstructure:"timeout" yaml:"timeout"`
	MaxAttempts      int           `mapstructure:"max_attempts" yaml:"max_attempts"`
	BaseDelay        time.Duration `mapstructure:"base_delay" yaml:"base_delay"`
	MaxDelay         time.Duration `mapstructure:"max_delay" yaml:"max_delay"`
	MaxRateLimitWait time.Duration `mapstructure:"max_rate_limit_wait" yaml:"max_rate_limit_wait"`
	MinInterval      time.Duration `mapstructure:"min_interval" yaml:"min_interval"`
}

// AlertsConfig holds per-metric alert thresholds
type AlertsConfig struct {
	Thresholds map[string]float64 `mapstructure:"thresholds" yaml:"thresholds"`
}

// SleepScoreConfig holds the sleep score weighting
type SleepScoreConfig struct {
	Duration      float64 `mapstructure:"duration" yaml:"duration"`
	Stages        float64 `mapstructure:"stages" yaml:"stages"`
	Deep          float64 `mapstructure:"deep" yaml:"deep"`
	REM           float64 `mapstructure:"rem" yaml:"rem"`
	Light         float64 `mapstructure:"light" yaml:"light"`
	Wake          float64 `mapstructure:"wake" yaml:"wake"`
	IdealMinHours float64 `mapstructure:"ideal_min_hours" yaml:"ideal_min_hours"`
	IdealMaxHours float64 `mapstructure:"ideal_max_hours" yaml:"ideal_max_hours"`
}

// LogConfig holds logging preferences
type LogConfig struct {
	Level string `mapstructure:"level" yaml:"level"`
}

// ErrNoConfig is returned when neither a config file nor credential
// environment variables are present
var ErrNoConfig = errors.New("config file not found")

// ErrInvalid marks configuration validation failures
var ErrInvalid = errors.New("invalid configuration")

// envBindings maps config keys to the environment variables that override them
var envBindings = map[string]string{
	"fitbit.client_id":     "FITBIT_CLIENT_ID",
	"fitbit.client_secret": "FITBIT_CLIENT_SECRET",
	"fitbit.redirect_url":  "FITBIT_REDIRECT_URL",
	"fitbit.base_url":      "FITBIT_BASE_URL",
	"fitbit.access_token":  "FITBIT_ACCESS_TOKEN",
	"fitbit.refresh_token": "FITBIT_REFRESH_TOKEN",
	"tokens.backend":       "FITBIT_TOKEN_BACKEND",
	"tokens.path":          "FITBIT_TOKEN_PATH",
	"log.level":            "FITBIT_LOG_LEVEL",
}

// DefaultConfig returns the default configuration
func DefaultConfig() Config {
	return Config{
		Fitbit: FitbitConfig{
			RedirectURL: "http://localhost:8089/callback",
		},
		Tokens: TokensConfig{
			Backend:       "file",
			RefreshMargin: 60 * time.Second,
		},
		HTTP: HTTPConfig{
			Timeout:          30 * time.Second,
			MaxAttempts:      3,
			BaseDelay:        time.Second,
			MaxDelay:         30 * time.Second,
			MaxRateLimitWait: 60 * time.Second,
			MinInterval:      200 * time.Millisecond,
		},
		Alerts: AlertsConfig{
			Thresholds: map[string]float64{
				"steps":           8000,
				"calories":        1800,
				"sleep_hours":     7,
				"resting_hr":      80,
				"active_minutes":  30,
				"sedentary_hours": 10,
			},
		},
		SleepScore: SleepScoreConfig{
			Duration:      0.6,
			Stages:        0.4,
			Deep:          1.0,
			REM:           1.0,
			Light:         0.5,
			Wake:          0,
			IdealMinHours: 7,
			IdealMaxHours: 9,
		},
		Log: LogConfig{
			Level: "warn",
		},
	}
}

// Load reads the configuration from path, or from
// ~/.fitbit-insights/config.yaml when path is empty. Environment variables
// override file values. A missing file is only an error when the
// environment does not supply credentials either.
func Load(path string) (*Config, error) {
	if path == "" {
		var err error
		path, err = getConfigPath()
		if err != nil {
			return nil, err
		}
	}

	v := viper.New()
	setDefaults(v)
	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("binding %s: %w", env, err)
		}
	}

	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		if !isNotExist(err) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if os.Getenv("FITBIT_CLIENT_ID") == "" {
			return nil, ErrNoConfig
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	// A thresholds section in the file replaces the defaults wholesale
	if v.InConfig("alerts.thresholds") {
		cfg.Alerts.Thresholds = toFloatMap(v.GetStringMap("alerts.thresholds"))
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	d := DefaultConfig()
	v.SetDefault("fitbit.redirect_url", d.Fitbit.RedirectURL)
	v.SetDefault("tokens.backend", d.Tokens.Backend)
	v.SetDefault("tokens.refresh_margin", d.Tokens.RefreshMargin)
	v.SetDefault("http.timeout", d.HTTP.Timeout)
	v.SetDefault("http.max_attempts", d.HTTP.MaxAttempts)
	v.SetDefault("http.base_delay", d.HTTP.BaseDelay)
	v.SetDefault("http.max_delay", d.HTTP.MaxDelay)
	v.SetDefault("http.max_rate_limit_wait", d.HTTP.MaxRateLimitWait)
	v.SetDefault("http.min_interval", d.HTTP.MinInterval)
	v.SetDefault("alerts.thresholds", d.Alerts.Thresholds)
	v.SetDefault("sleep_score.duration", d.SleepScore.Duration)
	v.SetDefault("sleep_score.stages", d.SleepScore.Stages)
	v.SetDefault("sleep_score.deep", d.SleepScore.Deep)
	v.SetDefault("sleep_score.rem", d.SleepScore.REM)
	v.SetDefault("sleep_score.light", d.SleepScore.Light)
	v.SetDefault("sleep_score.wake", d.SleepScore.Wake)
	v.SetDefault("sleep_score.ideal_min_hours", d.SleepScore.IdealMinHours)
	v.SetDefault("sleep_score.ideal_max_hours", d.SleepScore.IdealMaxHours)
	v.SetDefault("log.level", d.Log.Level)
}

// Save writes the configuration to ~/.fitbit-insights/config.yaml
func Save(cfg *Config) error {
	path, err := getConfigPath()
	if err != nil {
		return err
	}

	// Ensure directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	return nil
}

// CreateExample creates an example config file if none exists
func CreateExample() error {
	path, err := getConfigPath()
	if err != nil {
		return err
	}

	// Check if config already exists
	if _, err := os.Stat(path); err == nil {
		return nil // Config exists, don't overwrite
	}

	example := DefaultConfig()
	example.Fitbit.ClientID = "YOUR_CLIENT_ID"
	example.Fitbit.ClientSecret = "YOUR_CLIENT_SECRET"

	return Save(&example)
}

// Validate checks if the config has required fields
func (c *Config) Validate() error {
	if c.Fitbit.ClientID == "" || c.Fitbit.ClientID == "YOUR_CLIENT_ID" {
		return fmt.Errorf("%w: fitbit.client_id is required - get it from https://dev.fitbit.com/apps", ErrInvalid)
	}
	if c.Fitbit.ClientSecret == "" || c.Fitbit.ClientSecret == "YOUR_CLIENT_SECRET" {
		return fmt.Errorf("%w: fitbit.client_secret is required - get it from https://dev.fitbit.com/apps", ErrInvalid)
	}

	switch c.Tokens.Backend {
	case "", "file", "sqlite", "bolt":
	default:
		return fmt.Errorf("%w: tokens.backend must be \"file\", \"sqlite\" or \"bolt\", got %q", ErrInvalid, c.Tokens.Backend)
	}

	if c.HTTP.MaxAttempts < 1 {
		return fmt.Errorf("%w: http.max_attempts must be at least 1, got %d", ErrInvalid, c.HTTP.MaxAttempts)
	}
	if c.HTTP.Timeout <= 0 {
		return fmt.Errorf("%w: http.timeout must be positive", ErrInvalid)
	}

	s := c.SleepScore
	if s.Duration < 0 || s.Stages < 0 || s.Duration+s.Stages == 0 {
		return fmt.Errorf("%w: sleep_score.duration and sleep_score.stages must be non-negative and not both zero", ErrInvalid)
	}
	if s.IdealMinHours <= 0 || s.IdealMaxHours < s.IdealMinHours {
		return fmt.Errorf("%w: sleep_score ideal band [%v, %v] is not valid", ErrInvalid, s.IdealMinHours, s.IdealMaxHours)
	}

	return nil
}

// getConfigPath returns the path to the config file
func getConfigPath() (string, error) {
	dir, err := GetConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// GetConfigDir returns the path to the config directory
func GetConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("getting home directory: %w", err)
	}
	return filepath.Join(home, ".fitbit-insights"), nil
}

func isNotExist(err error) bool {
	var notFound viper.ConfigFileNotFoundError
	return errors.As(err, &notFound) || errors.Is(err, os.ErrNotExist)
}

func toFloatMap(in map[string]interface{}) map[string]float64 {
	out := make(map[string]float64, len(in))
	for k, raw := range in {
		switch v := raw.(type) {
		case float64:
			out[strings.ToLower(k)] = v
		case int:
			out[strings.ToLower(k)] = float64(v)
		case int64:
			out[strings.ToLower(k)] = float64(v)
		}
	}
	return out
}
