package authn

import (
	"fmt"
	"net/http"

	"github.com/aussiebroadwan/walletauth/pkg/authsdk"
	"github.com/aussiebroadwan/walletauth/pkg/httpx"
)

// AuthErrorKind classifies resource endpoint failures.
type AuthErrorKind int

const (
	NoAuthHeader AuthErrorKind = iota
	InvalidToken
	MissingClaim
	ExpiredToken
	Forbidden
)

// Resource endpoint error slugs.
const (
	SlugInvalidToken = "INVALID_TOKEN"
	SlugMissingClaim = "MISSING_CLAIM"
	SlugExpiredToken = "EXPIRED_TOKEN"
	SlugUnauthorised = "UNAUTHORISED"
	SlugForbidden    = "FORBIDDEN"
)

// AuthError is a resource endpoint failure. It renders as
// {"error_message": Detail, "error_slug": SLUG}.
type AuthError struct {
	Kind   AuthErrorKind
	Detail string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("authn: %s: %s", e.Slug(), e.Detail)
}

func (e *AuthError) Slug() string {
	switch e.Kind {
	case InvalidToken:
		return SlugInvalidToken
	case MissingClaim:
		return SlugMissingClaim
	case ExpiredToken:
		return SlugExpiredToken
	case Forbidden:
		return SlugForbidden
	default:
		return SlugUnauthorised
	}
}

func (e *AuthError) StatusCode() int {
	if e.Kind == Forbidden {
		return http.StatusForbidden
	}
	return http.StatusUnauthorized
}

// WriteError writes the resource style error body.
func (e *AuthError) WriteError(w http.ResponseWriter) {
	httpx.WriteJSON(w, e.StatusCode(), map[string]string{
		"error_message": e.Detail,
		"error_slug":    e.Slug(),
	})
}

func authErr(kind AuthErrorKind, format string, args ...any) *AuthError {
	return &AuthError{Kind: kind, Detail: fmt.Sprintf(format, args...)}
}

// OAuthErrorKind classifies token endpoint failures.
type OAuthErrorKind int

const (
	InvalidRequest OAuthErrorKind = iota
	InvalidGrant
	UnauthorisedClient
	UnsupportedGrantType
	InvalidClient
	Conflict
	Internal
)

// OAuthError is a token endpoint failure. It renders as {"error": slug}.
type OAuthError struct {
	Kind OAuthErrorKind
}

func (e *OAuthError) Error() string { return "authn: " + e.Code() }

func (e *OAuthError) Code() string {
	switch e.Kind {
	case InvalidGrant:
		return authsdk.ErrorCodeInvalidGrant
	case UnauthorisedClient:
		return authsdk.ErrorCodeUnauthorizedClient
	case UnsupportedGrantType:
		return authsdk.ErrorCodeUnsupportedGrantType
	case InvalidClient:
		return authsdk.ErrorCodeInvalidClient
	case Conflict:
		return authsdk.ErrorCodeConflict
	case Internal:
		return authsdk.ErrorCodeServerError
	default:
		return authsdk.ErrorCodeInvalidRequest
	}
}

func (e *OAuthError) StatusCode() int {
	switch e.Kind {
	case InvalidClient:
		return http.StatusUnauthorized
	case Conflict:
		return http.StatusConflict
	case Internal:
		return http.StatusInternalServerError
	default:
		return http.StatusBadRequest
	}
}

// WriteError writes the token style error body.
func (e *OAuthError) WriteError(w http.ResponseWriter) {
	httpx.WriteJSON(w, e.StatusCode(), map[string]string{"error": e.Code()})
}

func oauthErr(kind OAuthErrorKind) *OAuthError { return &OAuthError{Kind: kind} }

// ErrorWriter is implemented by AuthError and OAuthError.
type ErrorWriter interface {
	error
	WriteError(w http.ResponseWriter)
}
