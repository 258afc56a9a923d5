package auth

import (
	"errors"
	"fmt"
)

var (
	// ErrConfig is returned when credentials are missing or malformed
	ErrConfig = errors.New("missing credentials")

	// ErrAuth is returned when a token refresh fails or the API keeps
	// rejecting the access token
	ErrAuth = errors.New("authentication failed")

	// ErrReauthorize is returned when the refresh token itself was rejected
	// (expired, revoked or already rotated). Only a new authorization
	// flow can recover. It wraps ErrAuth.
	ErrReauthorize = fmt.Errorf("%w: refresh token rejected, run `fitbit-insights auth` to authorize again", ErrAuth)
)
