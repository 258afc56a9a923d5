package auth

import (
	"golang.org/x/oauth2"
)

const (
	// Fitbit OAuth endpoints
	AuthURL  = "https://www.fitbit.com/oauth2/authorize"
	TokenURL = "https://api.fitbit.com/oauth2/token"
)

// Scopes required for our app
var Scopes = []string{
	"activity",
	"heartrate",
	"sleep",
	"oxygen_saturation",
	"weight",
	"profile",
}

// Config holds the OAuth client credentials
type Config struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string // e.g., "http://localhost:8089/callback"
	TokenURL     string // overrides TokenURL when set
}

// NewOAuthConfig creates an oauth2.Config from our Config.
// Fitbit expects client credentials as HTTP Basic auth on the token endpoint.
func NewOAuthConfig(cfg Config) *oauth2.Config {
	tokenURL := cfg.TokenURL
	if tokenURL == "" {
		tokenURL = TokenURL
	}
	return &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		Endpoint: oauth2.Endpoint{
			AuthURL:   AuthURL,
			TokenURL:  tokenURL,
			AuthStyle: oauth2.AuthStyleInHeader,
		},
		RedirectURL: cfg.RedirectURL,
		Scopes:      Scopes,
	}
}

// AuthResult contains the token and user info from successful auth
type AuthResult struct {
	Token  *oauth2.Token
	UserID string
}

// ExtractUserID extracts the encoded user ID from the token extras.
// Fitbit includes it in every token response.
func ExtractUserID(token *oauth2.Token) string {
	if id, ok := token.Extra("user_id").(string); ok {
		return id
	}
	return ""
}
