package fitbit

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"fitbit-insights/internal/auth"
)

var (
	// ErrRateLimited is returned when the API kept answering 429
	ErrRateLimited = errors.New("rate limited")
	// ErrUpstream is returned for persistent 5xx, network and timeout failures
	ErrUpstream = errors.New("upstream unavailable")
	// ErrRequest is returned for non-retryable 4xx responses
	ErrRequest = errors.New("request rejected")
)

// BackoffFunc returns the delay before the next attempt. attempt is the
// 1-based number of the attempt that just failed.
type BackoffFunc func(attempt int) time.Duration

// ExponentialBackoff doubles base each attempt, capped at max
func ExponentialBackoff(base, max time.Duration) BackoffFunc {
	return func(attempt int) time.Duration {
		if attempt < 1 {
			attempt = 1
		}
		d := base
		for i := 1; i < attempt; i++ {
			d *= 2
			if d >= max {
				return max
			}
		}
		if d > max {
			return max
		}
		return d
	}
}

// Policy controls how failed calls are retried
type Policy struct {
	// MaxAttempts is the total number of attempts, including the first
	MaxAttempts int
	Backoff     BackoffFunc
	// Retryable reports whether a transport-level error may be retried
	Retryable func(error) bool
	// MaxResetWait caps how long a 429's reset hint is honored
	MaxResetWait time.Duration
}

// DefaultPolicy returns the retry policy used by the CLI
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:  3,
		Backoff:      ExponentialBackoff(time.Second, 30*time.Second),
		Retryable:    DefaultRetryable,
		MaxResetWait: DefaultMaxLimitWait,
	}
}

// DefaultRetryable retries every transport error except authentication
// and configuration failures. Caller cancellation is detected by Do from
// the context itself, so client timeouts stay retryable.
func DefaultRetryable(err error) bool {
	switch {
	case errors.Is(err, auth.ErrAuth),
		errors.Is(err, auth.ErrConfig):
		return false
	}
	return true
}

// CallFunc performs one attempt of a request
type CallFunc func(ctx context.Context) (*http.Response, error)

// Retrier runs calls under a Policy and a RateLimiter
type Retrier struct {
	policy  Policy
	limiter *RateLimiter
	sleep   func(ctx context.Context, d time.Duration) error
	logger  *slog.Logger
}

// RetrierOption configures a Retrier
type RetrierOption func(*Retrier)

// WithSleep replaces the function used to wait between attempts
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) RetrierOption {
	return func(r *Retrier) { r.sleep = sleep }
}

// WithRetryLogger sets the logger used for retry events
func WithRetryLogger(l *slog.Logger) RetrierOption {
	return func(r *Retrier) { r.logger = l }
}

// NewRetrier creates a Retrier. limiter may be nil.
func NewRetrier(policy Policy, limiter *RateLimiter, opts ...RetrierOption) *Retrier {
	if policy.MaxAttempts < 1 {
		policy.MaxAttempts = 1
	}
	if policy.Backoff == nil {
		policy.Backoff = ExponentialBackoff(time.Second, 30*time.Second)
	}
	if policy.Retryable == nil {
		policy.Retryable = DefaultRetryable
	}
	r := &Retrier{
		policy:  policy,
		limiter: limiter,
		sleep:   sleepContext,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Limiter returns the rate limiter, or nil
func (r *Retrier) Limiter() *RateLimiter {
	return r.limiter
}

// Do runs call until it returns a 2xx response or the policy gives up,
// and returns the response body.
func (r *Retrier) Do(ctx context.Context, call CallFunc) ([]byte, error) {
	for attempt := 1; ; attempt++ {
		if err := r.acquire(ctx, attempt); err != nil {
			return nil, err
		}

		var (
			lastErr error
			wait    time.Duration
		)

		resp, err := call(ctx)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			if !r.policy.Retryable(err) {
				if errors.Is(err, auth.ErrAuth) || errors.Is(err, auth.ErrConfig) {
					return nil, err
				}
				return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
			}
			lastErr = fmt.Errorf("%w: %v", ErrUpstream, err)
		} else {
			if r.limiter != nil {
				r.limiter.UpdateFromHeaders(resp.Header)
			}
			body, readErr := io.ReadAll(resp.Body)
			resp.Body.Close()

			switch status := resp.StatusCode; {
			case readErr != nil:
				if ctxErr := ctx.Err(); ctxErr != nil {
					return nil, ctxErr
				}
				lastErr = fmt.Errorf("%w: reading response: %v", ErrUpstream, readErr)
			case status >= 200 && status < 300:
				return body, nil
			case status == http.StatusTooManyRequests:
				lastErr = fmt.Errorf("%w: %s", ErrRateLimited, describe(resp, body))
				if d, ok := resetAfter(resp.Header); ok {
					wait = min(d, r.policy.MaxResetWait)
				}
			case status >= 500:
				lastErr = fmt.Errorf("%w: %s", ErrUpstream, describe(resp, body))
			default:
				return nil, fmt.Errorf("%w: %s", ErrRequest, describe(resp, body))
			}
		}

		if attempt >= r.policy.MaxAttempts {
			return nil, fmt.Errorf("giving up after %d attempts: %w", attempt, lastErr)
		}
		if wait <= 0 {
			wait = r.policy.Backoff(attempt)
		}

		r.logger.Debug("retrying request", "attempt", attempt, "wait", wait, "error", lastErr)
		if err := r.sleep(ctx, wait); err != nil {
			return nil, err
		}
	}
}

// acquire takes a slot from the rate limiter. The first attempt may be
// refused when the hourly budget is known to be spent; retries were
// already scheduled by the policy and are only paced.
func (r *Retrier) acquire(ctx context.Context, attempt int) error {
	if r.limiter == nil {
		return nil
	}
	if attempt == 1 {
		return r.limiter.Wait(ctx)
	}
	return r.limiter.Pace(ctx)
}

// describe renders the status and a truncated body for error messages
func describe(resp *http.Response, body []byte) string {
	const maxBody = 200
	msg := resp.Status
	if resp.Request != nil && resp.Request.URL != nil {
		msg = fmt.Sprintf("%s %s: %s", resp.Request.Method, resp.Request.URL.Path, resp.Status)
	}
	if len(body) > 0 {
		if len(body) > maxBody {
			body = append(body[:maxBody:maxBody], "..."...)
		}
		msg += ": " + string(body)
	}
	return msg
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
