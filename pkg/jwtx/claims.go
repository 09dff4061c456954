package jwtx

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Default lifetimes when a channel does not configure its own.
const (
	DefaultAccessTokenTTL  = 600 * time.Second
	DefaultRefreshTokenTTL = 900 * time.Second
)

// Canonical claim names.
const (
	ClaimSubject          = "sub"
	ClaimChannel          = "channel"
	ClaimIssuedAt         = "iat"
	ClaimExpiresAt        = "exp"
	ClaimIsTester         = "is_tester"
	ClaimIsTrustedChannel = "is_trusted_channel"
	ClaimClientID         = "client_id"
	ClaimGrantType        = "grant_type"
	ClaimExternalID       = "external_id"
	ClaimEmail            = "email"
)

// RequiredClaims must be present on every first-party and refresh token.
var RequiredClaims = []string{ClaimSubject, ClaimIssuedAt, ClaimExpiresAt}

// ClaimSet is a verified token body. Values keep their JSON types, so
// numbers are float64.
type ClaimSet map[string]any

// Has reports whether name is present, even with a null or empty value.
func (c ClaimSet) Has(name string) bool {
	_, ok := c[name]
	return ok
}

// Get returns the raw value for name.
func (c ClaimSet) Get(name string) (any, bool) {
	v, ok := c[name]
	return v, ok
}

// String returns the claim as a string. Non-string values report false.
func (c ClaimSet) String(name string) (string, bool) {
	s, ok := c[name].(string)
	return s, ok
}

// Bool returns the claim as a bool. Non-bool values report false.
func (c ClaimSet) Bool(name string) (bool, bool) {
	b, ok := c[name].(bool)
	return b, ok
}

// Time returns a numeric date claim such as iat or exp.
func (c ClaimSet) Time(name string) (time.Time, bool) {
	switch v := c[name].(type) {
	case float64:
		return time.Unix(int64(v), 0).UTC(), true
	case int64:
		return time.Unix(v, 0).UTC(), true
	case int:
		return time.Unix(int64(v), 0).UTC(), true
	}
	return time.Time{}, false
}

// Require returns ErrMissingClaim for the first absent name.
func (c ClaimSet) Require(names ...string) error {
	for _, n := range names {
		if !c.Has(n) {
			return &MissingClaimError{Claim: n}
		}
	}
	return nil
}

// AccessClaims is the body of a first-party access token. It serialises to
// exactly six claims.
type AccessClaims struct {
	Subject          string
	Channel          string
	IsTester         bool
	IsTrustedChannel bool
	IssuedAt         time.Time
	ExpiresAt        time.Time
}

// NewAccessClaims stamps iat at now and exp at now+ttl.
func NewAccessClaims(sub, channel string, isTester, isTrusted bool, now time.Time, ttl time.Duration) AccessClaims {
	return AccessClaims{
		Subject:          sub,
		Channel:          channel,
		IsTester:         isTester,
		IsTrustedChannel: isTrusted,
		IssuedAt:         now,
		ExpiresAt:        now.Add(ttl),
	}
}

func (a AccessClaims) MapClaims() jwt.MapClaims {
	return jwt.MapClaims{
		ClaimSubject:          a.Subject,
		ClaimChannel:          a.Channel,
		ClaimIsTester:         a.IsTester,
		ClaimIsTrustedChannel: a.IsTrustedChannel,
		ClaimIssuedAt:         a.IssuedAt.Unix(),
		ClaimExpiresAt:        a.ExpiresAt.Unix(),
	}
}

// RefreshClaims is the body of a refresh token.
type RefreshClaims struct {
	Subject    string
	Channel    string
	ClientID   string
	GrantType  string
	ExternalID string
	IssuedAt   time.Time
	ExpiresAt  time.Time
}

func (r RefreshClaims) MapClaims() jwt.MapClaims {
	return jwt.MapClaims{
		ClaimSubject:    r.Subject,
		ClaimChannel:    r.Channel,
		ClaimClientID:   r.ClientID,
		ClaimGrantType:  r.GrantType,
		ClaimExternalID: r.ExternalID,
		ClaimIssuedAt:   r.IssuedAt.Unix(),
		ClaimExpiresAt:  r.ExpiresAt.Unix(),
	}
}
