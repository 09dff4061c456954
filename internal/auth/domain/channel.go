package domain

import "time"

// ClientApplication owns one or more channels. Its secret authenticates the
// client_credentials grant.
type ClientApplication struct {
	ClientID   string
	Name       string
	SecretHash string // argon2id, see cryptox.HashSecret
	CreatedAt  time.Time
}

// Channel is a tenant bundle with its own trust level, email policy and
// token lifetimes.
type Channel struct {
	BundleID      string
	ClientID      string
	IsTrusted     bool
	EmailRequired bool

	// Lifetimes are configured in minutes. Zero means the service default.
	AccessTokenLifetimeMinutes  int
	RefreshTokenLifetimeMinutes int

	CreatedAt time.Time
}

// AccessTokenLifetime returns the configured access lifetime or def.
func (c Channel) AccessTokenLifetime(def time.Duration) time.Duration {
	if c.AccessTokenLifetimeMinutes <= 0 {
		return def
	}
	return time.Duration(c.AccessTokenLifetimeMinutes) * time.Minute
}

// RefreshTokenLifetime returns the configured refresh lifetime or def.
func (c Channel) RefreshTokenLifetime(def time.Duration) time.Duration {
	if c.RefreshTokenLifetimeMinutes <= 0 {
		return def
	}
	return time.Duration(c.RefreshTokenLifetimeMinutes) * time.Minute
}
