package authsdk

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// ============================================================================
// Token Endpoint Error Codes
// ============================================================================

const (
	// OAuth2 error codes per RFC 6749
	ErrorCodeInvalidRequest       = "invalid_request"
	ErrorCodeInvalidClient        = "invalid_client"
	ErrorCodeInvalidGrant         = "invalid_grant"
	ErrorCodeUnauthorizedClient   = "unauthorized_client"
	ErrorCodeUnsupportedGrantType = "unsupported_grant_type"
	ErrorCodeServerError          = "server_error"

	// ErrorCodeConflict is returned when an external identity maps to more
	// than one active user.
	ErrorCodeConflict = "conflict"
)

// Resource endpoint error slugs.
const (
	SlugInvalidToken = "INVALID_TOKEN"
	SlugMissingClaim = "MISSING_CLAIM"
	SlugExpiredToken = "EXPIRED_TOKEN"
	SlugUnauthorised = "UNAUTHORISED"
	SlugForbidden    = "FORBIDDEN"
)

// ============================================================================
// OAuth2Error - token endpoint failures
// ============================================================================

// OAuth2Error is a token endpoint failure as seen by the client.
type OAuth2Error struct {
	// StatusCode is the HTTP status code of the response
	StatusCode int `json:"-"`

	// Code is the error code (e.g., "invalid_request", "invalid_grant")
	Code string `json:"error"`
}

// Error implements the error interface.
func (e *OAuth2Error) Error() string {
	return fmt.Sprintf("%s (HTTP %d)", e.Code, e.StatusCode)
}

// Is matches another *OAuth2Error with the same code, so callers can write
// errors.Is(err, authsdk.ErrInvalidGrant).
func (e *OAuth2Error) Is(target error) bool {
	t, ok := target.(*OAuth2Error)
	return ok && t.Code == e.Code
}

// Predefined token endpoint errors, usable as errors.Is targets.
var (
	ErrInvalidRequest       = &OAuth2Error{StatusCode: http.StatusBadRequest, Code: ErrorCodeInvalidRequest}
	ErrInvalidClient        = &OAuth2Error{StatusCode: http.StatusUnauthorized, Code: ErrorCodeInvalidClient}
	ErrInvalidGrant         = &OAuth2Error{StatusCode: http.StatusBadRequest, Code: ErrorCodeInvalidGrant}
	ErrUnauthorizedClient   = &OAuth2Error{StatusCode: http.StatusBadRequest, Code: ErrorCodeUnauthorizedClient}
	ErrUnsupportedGrantType = &OAuth2Error{StatusCode: http.StatusBadRequest, Code: ErrorCodeUnsupportedGrantType}
	ErrConflict             = &OAuth2Error{StatusCode: http.StatusConflict, Code: ErrorCodeConflict}
	ErrServerError          = &OAuth2Error{StatusCode: http.StatusInternalServerError, Code: ErrorCodeServerError}
)

// ============================================================================
// ResourceError - resource endpoint failures
// ============================================================================

// ResourceError is a failure from an authenticated resource endpoint.
type ResourceError struct {
	StatusCode int    `json:"-"`
	Message    string `json:"error_message"`
	Slug       string `json:"error_slug"`
}

func (e *ResourceError) Error() string {
	return fmt.Sprintf("%s: %s (HTTP %d)", e.Slug, e.Message, e.StatusCode)
}

// ============================================================================
// Error Parsing Helpers
// ============================================================================

// parseErrorResponse turns a non-2xx response into *OAuth2Error or
// *ResourceError depending on the body shape.
func parseErrorResponse(resp *http.Response, body []byte) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	var errResp ErrorResponse
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error != "" {
		return &OAuth2Error{StatusCode: resp.StatusCode, Code: errResp.Error}
	}

	var resErr ResourceError
	if err := json.Unmarshal(body, &resErr); err == nil && resErr.Slug != "" {
		resErr.StatusCode = resp.StatusCode
		return &resErr
	}

	// Fallback: create generic error from status code
	return &OAuth2Error{
		StatusCode: resp.StatusCode,
		Code:       ErrorCodeServerError,
	}
}
