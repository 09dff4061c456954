// Package authn validates the Authorization header of inbound requests and
// exposes the verified claims to handlers.
//
// Each route is bound to one Authenticator when the router is built:
//
//   - NoAuth for health and metrics
//   - AccessToken for resource endpoints
//   - ClientToken and WalletClientToken for the token endpoints
//
// Resource endpoints report failures as *AuthError, token endpoints as
// *OAuthError.
package authn

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/aussiebroadwan/walletauth/pkg/jwtx"
)

// Request is the part of an HTTP request an Authenticator may inspect.
type Request struct {
	Authorization string
	Body          map[string]json.RawMessage
}

// Authenticator turns a Request into verified claims or a typed failure.
type Authenticator interface {
	Validate(ctx context.Context, r *Request) (*Verified, error)
}

// Verified holds the claims produced by an Authenticator.
type Verified struct {
	tokenType string
	claims    jwtx.ClaimSet
}

func newVerified(tokenType string, claims jwtx.ClaimSet) *Verified {
	if claims == nil {
		claims = jwtx.ClaimSet{}
	}
	return &Verified{tokenType: tokenType, claims: claims}
}

// Claims returns a copy of the verified claim set.
func (v *Verified) Claims() jwtx.ClaimSet {
	out := make(jwtx.ClaimSet, len(v.claims))
	for k, val := range v.claims {
		out[k] = val
	}
	return out
}

// Claim returns a claim for resource endpoints. A missing claim is a 401
// MISSING_CLAIM.
func (v *Verified) Claim(name string) (any, error) {
	val, ok := v.claims.Get(name)
	if !ok {
		return nil, authErr(MissingClaim, "%s has missing claim", v.tokenType)
	}
	return val, nil
}

// TokenClaim returns a claim for the token endpoints. A missing claim is
// invalid_grant.
func (v *Verified) TokenClaim(name string) (any, error) {
	val, ok := v.claims.Get(name)
	if !ok {
		return nil, oauthErr(InvalidGrant)
	}
	return val, nil
}

// NoAuth accepts every request.
type NoAuth struct{}

func (NoAuth) Validate(context.Context, *Request) (*Verified, error) {
	return newVerified("No Auth", nil), nil
}

// BearerHeader is an Authorization header split into scheme and payload.
// Scheme is lower-cased.
type BearerHeader struct {
	Scheme  string
	Payload string
}

// ParseBearerHeader requires exactly two whitespace separated parts.
func ParseBearerHeader(value, tokenType string) (BearerHeader, error) {
	if value == "" {
		return BearerHeader{}, authErr(NoAuthHeader, "No Authentication Header")
	}

	parts := strings.Fields(value)
	if len(parts) != 2 {
		return BearerHeader{}, authErr(InvalidToken, "%s must be in 2 parts separated by a space", tokenType)
	}
	return BearerHeader{Scheme: strings.ToLower(parts[0]), Payload: parts[1]}, nil
}
