package jwtx

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Leeway absorbs clock skew on exp and iat.
const Leeway = 5 * time.Second

// Algorithms accepted per token family.
var (
	FirstPartyAlgs = []string{jwt.SigningMethodHS512.Alg()}
	B2BAlgs        = []string{jwt.SigningMethodRS512.Alg(), jwt.SigningMethodEdDSA.Alg()}
)

var (
	ErrMalformed    = errors.New("jwtx: malformed token")
	ErrInvalidSig   = errors.New("jwtx: invalid signature")
	ErrExpired      = errors.New("jwtx: token expired")
	ErrNotYetValid  = errors.New("jwtx: token not yet valid")
	ErrMissingClaim = errors.New("jwtx: missing claim")
	ErrNoKey        = errors.New("jwtx: no verification key")
)

// MissingClaimError names the absent claim and matches ErrMissingClaim.
type MissingClaimError struct {
	Claim string
}

func (e *MissingClaimError) Error() string { return fmt.Sprintf("jwtx: missing claim %q", e.Claim) }
func (e *MissingClaimError) Is(target error) bool {
	return target == ErrMissingClaim
}

// Header is the unverified JOSE header. Only use it to pick key material.
type Header struct {
	Kid string
	Alg string
}

// ParseHeader decodes the header of token without checking the signature.
func ParseHeader(token string) (Header, error) {
	t, _, err := jwt.NewParser().ParseUnverified(token, jwt.MapClaims{})
	if err != nil {
		return Header{}, fmt.Errorf("%w: %w", ErrMalformed, err)
	}

	kid, _ := t.Header["kid"].(string)
	alg, _ := t.Header["alg"].(string)
	return Header{Kid: kid, Alg: alg}, nil
}

// Mapper is implemented by AccessClaims and RefreshClaims.
type Mapper interface {
	MapClaims() jwt.MapClaims
}

// SignHS512 signs claims with a shared secret and sets the kid header.
func SignHS512(kid string, secret []byte, claims Mapper) (string, error) {
	return Sign(jwt.SigningMethodHS512, kid, secret, claims.MapClaims())
}

// Sign signs arbitrary claims. key must match method: []byte for HMAC,
// *rsa.PrivateKey for RS512, ed25519.PrivateKey for EdDSA.
func Sign(method jwt.SigningMethod, kid string, key any, claims jwt.MapClaims) (string, error) {
	t := jwt.NewWithClaims(method, claims)
	if kid != "" {
		t.Header["kid"] = kid
	}
	s, err := t.SignedString(key)
	if err != nil {
		return "", fmt.Errorf("jwtx: sign: %w", err)
	}
	return s, nil
}

// Decode verifies token against key using one of algs and returns its claims.
// exp and iat are checked with Leeway. golang-jwt accepts a token whose exp
// equals now-Leeway exactly, one clock tick past the strict exp > now-Leeway
// bound; at nanosecond clock resolution the two are indistinguishable.
// An empty HMAC secret is treated as no key. Callers enforce required claims
// with ClaimSet.Require.
func Decode(token string, key any, algs []string) (ClaimSet, error) {
	if key == nil {
		return nil, ErrNoKey
	}
	if b, ok := key.([]byte); ok && len(b) == 0 {
		return nil, ErrNoKey
	}

	parser := jwt.NewParser(
		jwt.WithValidMethods(algs),
		jwt.WithLeeway(Leeway),
		jwt.WithIssuedAt(),
	)

	claims := jwt.MapClaims{}
	_, err := parser.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return key, nil
	})
	if err != nil {
		return nil, classify(err)
	}
	return ClaimSet(claims), nil
}

// DecodeRequired is Decode followed by the RequiredClaims check.
func DecodeRequired(token string, key any, algs []string) (ClaimSet, error) {
	claims, err := Decode(token, key, algs)
	if err != nil {
		return nil, err
	}
	if err := claims.Require(RequiredClaims...); err != nil {
		return nil, err
	}
	return claims, nil
}

// classify folds golang-jwt validation errors into the package sentinels
// while keeping the original in the chain.
func classify(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return fmt.Errorf("%w: %w", ErrExpired, err)
	case errors.Is(err, jwt.ErrTokenUsedBeforeIssued), errors.Is(err, jwt.ErrTokenNotValidYet):
		return fmt.Errorf("%w: %w", ErrNotYetValid, err)
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
		return fmt.Errorf("%w: %w", ErrInvalidSig, err)
	default:
		return fmt.Errorf("%w: %w", ErrMalformed, err)
	}
}
