package domain

import "time"

// Grant types accepted at the token endpoint.
const (
	GrantB2B               = "b2b"
	GrantRefreshToken      = "refresh_token"
	GrantClientCredentials = "client_credentials"
)

// ScopeUser is the only scope a token request may ask for.
const ScopeUser = "user"

// TokenPair is the result of a token grant. It is never persisted.
type TokenPair struct {
	AccessToken     string
	RefreshToken    string
	AccessLifetime  time.Duration
	RefreshLifetime time.Duration
}
