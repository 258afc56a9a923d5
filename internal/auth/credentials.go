package auth

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/oauth2"
)

// Credentials is the complete client and token state needed to call the API
type Credentials struct {
	ClientID     string
	ClientSecret string
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
	UserID       string
}

// Validate reports which required fields are missing
func (c Credentials) Validate() error {
	var missing []string
	if c.ClientID == "" {
		missing = append(missing, "client_id")
	}
	if c.ClientSecret == "" {
		missing = append(missing, "client_secret")
	}
	if c.AccessToken == "" && c.RefreshToken == "" {
		missing = append(missing, "access_token or refresh_token")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s not set (configure FITBIT_* variables or run `fitbit-insights auth`)", ErrConfig, strings.Join(missing, ", "))
	}
	return nil
}

// Expired reports whether the access token is absent or expires within margin.
// A token with unknown expiry is assumed valid until the API rejects it.
func (c Credentials) Expired(margin time.Duration, now time.Time) bool {
	if c.AccessToken == "" {
		return true
	}
	if c.ExpiresAt.IsZero() {
		return false
	}
	return !now.Add(margin).Before(c.ExpiresAt)
}

func (c Credentials) token() *oauth2.Token {
	return &oauth2.Token{
		AccessToken:  c.AccessToken,
		TokenType:    "Bearer",
		RefreshToken: c.RefreshToken,
		Expiry:       c.ExpiresAt,
	}
}

// String never prints secrets
func (c Credentials) String() string {
	return fmt.Sprintf("Credentials{client_id=%s access_token=%s refresh_token=%s expires_at=%s}",
		c.ClientID, redact(c.AccessToken), redact(c.RefreshToken), c.ExpiresAt.Format(time.RFC3339))
}

// LogValue implements slog.LogValuer so credentials are never logged in full
func (c Credentials) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("client_id", c.ClientID),
		slog.String("user_id", c.UserID),
		slog.String("access_token", redact(c.AccessToken)),
		slog.String("refresh_token", redact(c.RefreshToken)),
		slog.Time("expires_at", c.ExpiresAt),
	)
}

func redact(s string) string {
	switch {
	case s == "":
		return "not set"
	case len(s) <= 8:
		return "set"
	default:
		return s[:4] + "…"
	}
}
