package fitbit

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Fitbit rate limits:
// - 150 requests per hour per user, resetting at the top of the hour
// Every response reports the budget in Fitbit-Rate-Limit-* headers.

const (
	DefaultHourlyLimit  = 150
	DefaultMinInterval  = 200 * time.Millisecond
	DefaultMaxLimitWait = 60 * time.Second
)

// RateLimiter paces requests and tracks the hourly budget reported by the API
type RateLimiter struct {
	mu sync.Mutex

	limit     int
	remaining int
	resetsAt  time.Time

	// Longest we block for the budget to reset before giving up
	maxWait time.Duration

	pacer *rate.Limiter
	now   func() time.Time
}

// NewRateLimiter creates a rate limiter with Fitbit's hourly budget that
// spaces requests at least minInterval apart.
func NewRateLimiter(minInterval time.Duration) *RateLimiter {
	every := rate.Inf
	if minInterval > 0 {
		every = rate.Every(minInterval)
	}
	now := time.Now()
	return &RateLimiter{
		limit:     DefaultHourlyLimit,
		remaining: DefaultHourlyLimit,
		resetsAt:  now.Truncate(time.Hour).Add(time.Hour),
		maxWait:   DefaultMaxLimitWait,
		pacer:     rate.NewLimiter(every, 1),
		now:       time.Now,
	}
}

// SetMaxWait changes how long Wait may block for the hourly budget to reset
func (r *RateLimiter) SetMaxWait(d time.Duration) {
	r.mu.Lock()
	r.maxWait = d
	r.mu.Unlock()
}

// Wait blocks until a request can be made without exceeding rate limits.
// When the budget is spent and resets later than the wait cap it fails
// with ErrRateLimited instead of blocking.
func (r *RateLimiter) Wait(ctx context.Context) error {
	r.mu.Lock()
	now := r.now()
	r.rollover(now)

	if r.remaining <= 0 {
		waitTime := r.resetsAt.Sub(now)
		if waitTime > r.maxWait {
			r.mu.Unlock()
			return fmt.Errorf("%w: hourly budget of %d requests spent, resets in %s",
				ErrRateLimited, r.limit, waitTime.Round(time.Second))
		}
		r.mu.Unlock()
		select {
		case <-time.After(waitTime):
		case <-ctx.Done():
			return ctx.Err()
		}
		r.mu.Lock()
		r.remaining = r.limit
	}
	r.remaining--
	r.mu.Unlock()

	// Enforce minimum interval between requests
	return r.pacer.Wait(ctx)
}

// Pace spaces a request without consulting the hourly budget. It is used
// for retries whose wait the retry policy has already scheduled.
func (r *RateLimiter) Pace(ctx context.Context) error {
	r.mu.Lock()
	r.rollover(r.now())
	if r.remaining > 0 {
		r.remaining--
	}
	r.mu.Unlock()

	return r.pacer.Wait(ctx)
}

// rollover restores the budget once the reset time has passed. r.mu must be held.
func (r *RateLimiter) rollover(now time.Time) {
	if !now.Before(r.resetsAt) {
		r.remaining = r.limit
		r.resetsAt = now.Truncate(time.Hour).Add(time.Hour)
	}
}

// UpdateFromHeaders updates the budget from Fitbit response headers
func (r *RateLimiter) UpdateFromHeaders(h http.Header) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if v, err := strconv.Atoi(h.Get("Fitbit-Rate-Limit-Limit")); err == nil && v > 0 {
		r.limit = v
	}
	if v, err := strconv.Atoi(h.Get("Fitbit-Rate-Limit-Remaining")); err == nil && v >= 0 {
		r.remaining = v
	}
	if d, ok := resetAfter(h); ok {
		r.resetsAt = r.now().Add(d)
	}
}

// Status returns the remaining budget, the hourly limit and when it resets
func (r *RateLimiter) Status() (remaining, limit int, resetsAt time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.remaining, r.limit, r.resetsAt
}

// resetAfter reads how long until the budget resets, preferring Fitbit's
// header over a standard Retry-After.
func resetAfter(h http.Header) (time.Duration, bool) {
	for _, key := range []string{"Fitbit-Rate-Limit-Reset", "Retry-After"} {
		if secs, err := strconv.Atoi(h.Get(key)); err == nil && secs >= 0 {
			return time.Duration(secs) * time.Second, true
		}
	}
	return 0, false
}
