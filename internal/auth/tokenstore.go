package auth

import (
	"errors"
	"fmt"
	"sync"

	"fitbit-insights/internal/store"
)

// TokenStore owns the credential record: the in-memory copy used for
// requests and its persisted form in a store.Backend.
type TokenStore struct {
	mu      sync.RWMutex
	backend store.Backend
	seed    Credentials
	current Credentials
}

// NewTokenStore creates a TokenStore. seed supplies the client credentials
// and, optionally, tokens to fall back on when the backend is empty
// (e.g. FITBIT_ACCESS_TOKEN / FITBIT_REFRESH_TOKEN).
func NewTokenStore(backend store.Backend, seed Credentials) *TokenStore {
	return &TokenStore{
		backend: backend,
		seed:    seed,
		current: seed,
	}
}

// Load reads persisted tokens, falling back to the seed tokens, and
// validates the result.
func (ts *TokenStore) Load() (Credentials, error) {
	creds := ts.seed

	stored, err := ts.backend.GetAuth()
	switch {
	case errors.Is(err, store.ErrNoAuth):
		// Nothing persisted yet; seed tokens are all we have
	case err != nil:
		return Credentials{}, fmt.Errorf("%w: reading stored tokens: %v", ErrConfig, err)
	default:
		creds.AccessToken = stored.AccessToken
		creds.RefreshToken = stored.RefreshToken
		creds.ExpiresAt = stored.ExpiresAt
		creds.UserID = stored.UserID
	}

	if err := creds.Validate(); err != nil {
		return Credentials{}, err
	}

	ts.mu.Lock()
	ts.current = creds
	ts.mu.Unlock()
	return creds, nil
}

// Save persists a new token set and then makes it current. When the
// backend write fails the previous credentials stay in effect.
func (ts *TokenStore) Save(creds Credentials) error {
	err := ts.backend.SaveAuth(&store.Auth{
		UserID:       creds.UserID,
		AccessToken:  creds.AccessToken,
		RefreshToken: creds.RefreshToken,
		ExpiresAt:    creds.ExpiresAt,
	})
	if err != nil {
		return fmt.Errorf("saving tokens: %w", err)
	}

	ts.mu.Lock()
	ts.current = creds
	ts.mu.Unlock()
	return nil
}

// Current returns the in-memory credentials without touching the backend
func (ts *TokenStore) Current() Credentials {
	ts.mu.RLock()
	defer ts.mu.RUnlock()
	return ts.current
}
