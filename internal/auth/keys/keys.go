// Package keys resolves the signing and verification material used by the
// token endpoints: HS512 access secrets by kid, and B2B public keys bound to
// a channel.
package keys

import (
	"context"
	"crypto"
	"errors"
	"time"
)

var (
	// ErrNoKey means the kid is unknown, or the key has expired.
	ErrNoKey = errors.New("keys: no key for kid")

	// ErrNoCurrent is returned when no signing secret has been configured.
	ErrNoCurrent = errors.New("keys: no current signing secret")
)

// Secret is a shared HS512 secret.
type Secret struct {
	Kid    string
	Secret []byte
}

// B2BKey is a partner public key. Tokens verified with it belong to Channel
// regardless of what their own channel claim says.
type B2BKey struct {
	Kid       string
	Key       crypto.PublicKey
	Channel   string
	ExpiresAt time.Time
}

// Expired reports whether the key is past ExpiresAt. A zero ExpiresAt never
// expires.
func (k B2BKey) Expired(now time.Time) bool {
	return !k.ExpiresAt.IsZero() && !now.Before(k.ExpiresAt)
}

// Resolver owns key material. Lookups for unknown kids return ErrNoKey, any
// other error is a backend failure.
type Resolver interface {
	AccessSecret(ctx context.Context, kid string) (Secret, error)
	CurrentSecret(ctx context.Context) (Secret, error)
	B2BKey(ctx context.Context, kid string) (B2BKey, error)
}
