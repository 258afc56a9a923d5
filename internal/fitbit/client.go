package fitbit

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"fitbit-insights/internal/health"
)

const BaseURL = "https://api.fitbit.com"

// Doer sends an authorized request. *auth.Session implements it.
type Doer interface {
	Do(ctx context.Context, method, rawURL string, params url.Values) (*http.Response, error)
}

// Client is a Fitbit Web API client
type Client struct {
	session Doer
	baseURL string
	retrier *Retrier
	logger  *slog.Logger
}

// Option configures a Client
type Option func(*Client)

// WithBaseURL points the client at another API host
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = u }
}

// WithRetrier replaces the default retry policy and rate limiter
func WithRetrier(r *Retrier) Option {
	return func(c *Client) { c.retrier = r }
}

// WithLogger sets the client's logger
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// NewClient creates a new Fitbit API client
func NewClient(session Doer, opts ...Option) *Client {
	c := &Client{
		session: session,
		baseURL: BaseURL,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.retrier == nil {
		c.retrier = NewRetrier(DefaultPolicy(), NewRateLimiter(DefaultMinInterval), WithRetryLogger(c.logger))
	}
	return c
}

// RateLimitStatus returns the remaining hourly budget as last reported by the API
func (c *Client) RateLimitStatus() (remaining, limit int, resetsAt time.Time) {
	if l := c.retrier.Limiter(); l != nil {
		return l.Status()
	}
	return 0, 0, time.Time{}
}

// get fetches path through the retrier and returns the response body
func (c *Client) get(ctx context.Context, path string) ([]byte, error) {
	reqURL := c.baseURL + path
	return c.retrier.Do(ctx, func(ctx context.Context) (*http.Response, error) {
		return c.session.Do(ctx, http.MethodGet, reqURL, nil)
	})
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	body, err := c.get(ctx, path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%w: decoding %s: %v", ErrUpstream, path, err)
	}
	return nil
}

// chunkFetcher fetches the points of one sub-range
type chunkFetcher func(ctx context.Context, chunk health.DateRange) ([]health.Point, error)

// fetchChunked splits r into spans the endpoint accepts, fetches them in
// order and merges the result. Any failed chunk fails the whole call.
func (c *Client) fetchChunked(ctx context.Context, metric health.Metric, r health.DateRange, maxDays int, fetch chunkFetcher) (health.Series, error) {
	if err := r.Validate(); err != nil {
		return health.Series{}, err
	}

	var points []health.Point
	for _, chunk := range r.Split(maxDays) {
		c.logger.Debug("fetching", "metric", metric, "range", chunk.String())
		pts, err := fetch(ctx, chunk)
		if err != nil {
			return health.Series{}, fmt.Errorf("fetching %s for %s: %w", metric, chunk, err)
		}
		points = append(points, pts...)
	}

	return health.NewSeries(metric, points, &r), nil
}

func parseDay(s string) (time.Time, error) {
	d, err := health.ParseDate(s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: unexpected date %q in response", ErrUpstream, s)
	}
	return d, nil
}

func rangePath(format string, chunk health.DateRange) string {
	return fmt.Sprintf(format, health.FormatDate(chunk.Start), health.FormatDate(chunk.End))
}
