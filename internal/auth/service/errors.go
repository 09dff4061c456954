package service

import "errors"

// Token grant failures. The HTTP layer maps each of these to the matching
// token endpoint error code.
var (
	ErrInvalidRequest       = errors.New("invalid_request")
	ErrInvalidGrant         = errors.New("invalid_grant")
	ErrUnauthorizedClient   = errors.New("unauthorized_client")
	ErrUnsupportedGrantType = errors.New("unsupported_grant_type")
	ErrInvalidClient        = errors.New("invalid_client")
	ErrConflict             = errors.New("conflict")
	ErrInternal             = errors.New("server_error")
)

// Account errors for the resource endpoints.
var (
	ErrUserNotFound = errors.New("user not found")
	ErrInvalidEmail = errors.New("invalid email")
	ErrEmailTaken   = errors.New("email already in use")
)
