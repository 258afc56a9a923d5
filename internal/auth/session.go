package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/oauth2"
)

// DefaultRefreshMargin is how early before expiry a token is refreshed
const DefaultRefreshMargin = 60 * time.Second

// Session performs authorized requests, refreshing and persisting tokens
// as needed. It is safe for concurrent use; at most one refresh runs at a time.
type Session struct {
	tokens     *TokenStore
	config     *oauth2.Config
	httpClient *http.Client
	margin     time.Duration
	now        func() time.Time
	logger     *slog.Logger

	refreshMu sync.Mutex
}

// SessionOption configures a Session
type SessionOption func(*Session)

// WithRefreshMargin sets how early before expiry tokens are refreshed
func WithRefreshMargin(d time.Duration) SessionOption {
	return func(s *Session) { s.margin = d }
}

// WithClock overrides the time source
func WithClock(now func() time.Time) SessionOption {
	return func(s *Session) { s.now = now }
}

// WithSessionLogger sets the logger used for refresh events
func WithSessionLogger(l *slog.Logger) SessionOption {
	return func(s *Session) { s.logger = l }
}

// NewSession creates a Session. The same httpClient is used for API calls
// and for the token endpoint.
func NewSession(tokens *TokenStore, cfg *oauth2.Config, httpClient *http.Client, opts ...SessionOption) *Session {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	s := &Session{
		tokens:     tokens,
		config:     cfg,
		httpClient: httpClient,
		margin:     DefaultRefreshMargin,
		now:        time.Now,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Credentials returns a currently valid credential set, refreshing first
// when the access token is missing or about to expire.
func (s *Session) Credentials(ctx context.Context) (Credentials, error) {
	creds := s.tokens.Current()
	if !creds.Expired(s.margin, s.now()) {
		return creds, nil
	}
	return s.refresh(ctx, creds.AccessToken)
}

// Do sends an authorized request. GET params go in the query string,
// anything else is form encoded. On 401 the token is refreshed once and
// the request retried; a second rejection returns ErrAuth.
// Non-401 responses are returned as-is for the caller to interpret.
func (s *Session) Do(ctx context.Context, method, rawURL string, params url.Values) (*http.Response, error) {
	creds := s.tokens.Current()
	refreshed := false
	if creds.Expired(s.margin, s.now()) {
		var err error
		if creds, err = s.refresh(ctx, creds.AccessToken); err != nil {
			return nil, err
		}
		refreshed = true
	}

	resp, err := s.send(ctx, method, rawURL, params, creds)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusUnauthorized {
		return resp, nil
	}
	drain(resp)

	if refreshed {
		return nil, fmt.Errorf("%w: access token rejected right after refresh", ErrAuth)
	}

	s.logger.Debug("access token rejected, refreshing", "url", rawURL)
	if creds, err = s.refresh(ctx, creds.AccessToken); err != nil {
		return nil, err
	}

	resp, err = s.send(ctx, method, rawURL, params, creds)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusUnauthorized {
		drain(resp)
		return nil, fmt.Errorf("%w: access token rejected after refresh", ErrAuth)
	}
	return resp, nil
}

// refresh exchanges the refresh token for a new token set and persists it.
// rejected is the access token that prompted the refresh; when another
// caller already replaced it, the newer token is reused.
func (s *Session) refresh(ctx context.Context, rejected string) (Credentials, error) {
	s.refreshMu.Lock()
	defer s.refreshMu.Unlock()

	cur := s.tokens.Current()
	if cur.AccessToken != rejected && !cur.Expired(s.margin, s.now()) {
		return cur, nil
	}
	if cur.RefreshToken == "" {
		return Credentials{}, fmt.Errorf("%w: no refresh token available", ErrReauthorize)
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, s.httpClient)
	// A token without an access token forces the source to refresh
	src := s.config.TokenSource(ctx, &oauth2.Token{RefreshToken: cur.RefreshToken})
	tok, err := src.Token()
	if err != nil {
		return Credentials{}, classifyRefreshError(ctx, err)
	}

	next := cur
	next.AccessToken = tok.AccessToken
	if tok.RefreshToken != "" {
		next.RefreshToken = tok.RefreshToken
	}
	next.ExpiresAt = tok.Expiry
	if id := ExtractUserID(tok); id != "" {
		next.UserID = id
	}

	if err := s.tokens.Save(next); err != nil {
		return Credentials{}, fmt.Errorf("%w: %v", ErrAuth, err)
	}

	s.logger.Info("refreshed access token", "credentials", next)
	return next, nil
}

// classifyRefreshError maps a failed refresh onto ErrAuth. Only the
// caller's own cancellation passes through unwrapped; a client timeout is
// a network failure like any other.
func classifyRefreshError(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return err
	}
	var re *oauth2.RetrieveError
	if errors.As(err, &re) {
		switch code := errorCode(re); code {
		case "invalid_grant", "invalid_token", "expired_token":
			return fmt.Errorf("%w (%s)", ErrReauthorize, code)
		}
		if re.Response != nil && re.Response.StatusCode == http.StatusUnauthorized {
			return fmt.Errorf("%w: token endpoint rejected client credentials", ErrAuth)
		}
		return fmt.Errorf("%w: refreshing token: %s", ErrAuth, re.Error())
	}
	return fmt.Errorf("%w: refreshing token: %v", ErrAuth, err)
}

// errorCode returns the OAuth error code, falling back to Fitbit's
// {"errors":[{"errorType":...}]} body when the standard field is absent.
func errorCode(re *oauth2.RetrieveError) string {
	if re.ErrorCode != "" {
		return re.ErrorCode
	}
	var body struct {
		Errors []struct {
			ErrorType string `json:"errorType"`
		} `json:"errors"`
	}
	if json.Unmarshal(re.Body, &body) == nil && len(body.Errors) > 0 {
		return body.Errors[0].ErrorType
	}
	return ""
}

func (s *Session) send(ctx context.Context, method, rawURL string, params url.Values, creds Credentials) (*http.Response, error) {
	var body io.Reader
	if len(params) > 0 {
		if method == http.MethodGet {
			sep := "?"
			if strings.Contains(rawURL, "?") {
				sep = "&"
			}
			rawURL += sep + params.Encode()
		} else {
			body = strings.NewReader(params.Encode())
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, rawURL, body)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	req.Header.Set("Accept", "application/json")
	creds.token().SetAuthHeader(req)

	return s.httpClient.Do(req)
}

func drain(resp *http.Response) {
	io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
	resp.Body.Close()
}
