package authsdk

// ============================================================================
// Error Response Types
// ============================================================================

// ErrorResponse is the token endpoint error body.
type ErrorResponse struct {
	// Error is the error code (e.g., "invalid_request", "invalid_grant")
	Error string `json:"error"`
}

// ============================================================================
// Token Types
// ============================================================================

// TokenResponse is returned from POST /v2/token and /v2/wallet_token.
type TokenResponse struct {
	// AccessToken is the HS512 access token used to authenticate API requests
	AccessToken string `json:"access_token"`

	// TokenType is always "bearer"
	TokenType string `json:"token_type"`

	// ExpiresIn is the lifetime in seconds of the access token
	ExpiresIn int `json:"expires_in"`

	// RefreshToken is exchanged for a new pair with the refresh_token grant
	RefreshToken string `json:"refresh_token"`

	// Scope is always ["user"]
	Scope []string `json:"scope"`
}

// TokenRequest is the token endpoint body. Username is only sent with
// client_credentials.
type TokenRequest struct {
	GrantType string   `json:"grant_type"`
	Username  string   `json:"username,omitempty"`
	Scope     []string `json:"scope"`
}

// WalletTokenRequest nests a TokenRequest under "token" for /v2/wallet_token.
type WalletTokenRequest struct {
	Token TokenRequest `json:"token"`
}

// ============================================================================
// User Types
// ============================================================================

// MeResponse is returned from GET /v2/me.
type MeResponse struct {
	UserID           string `json:"user_id"`
	Channel          string `json:"channel"`
	Email            string `json:"email"`
	IsTester         bool   `json:"is_tester"`
	IsTrustedChannel bool   `json:"is_trusted_channel"`
}

// UpdateEmailRequest is the body of PUT /v2/me/email.
type UpdateEmailRequest struct {
	Email string `json:"email"`
}

// ============================================================================
// Health Check Types
// ============================================================================

// HealthResponse represents the response structure for health check endpoints.
// Used by both /livez and /readyz endpoints (readyz includes additional Checks field).
type HealthResponse struct {
	// Status indicates the overall health status (e.g., "ok")
	Status string `json:"status"`

	// Service names the responding service ("walletauth")
	Service string `json:"service,omitempty"`

	// StartedAt is the process start time in RFC 3339 (only for /livez)
	StartedAt string `json:"started_at,omitempty"`

	// Uptime is the service uptime duration as a string (e.g., "1h23m45s")
	Uptime string `json:"uptime,omitempty"`

	// Version is the service version string
	Version string `json:"version,omitempty"`

	// Checks contains readiness check results for critical dependencies (only for /readyz)
	Checks *HealthChecks `json:"checks,omitempty"`
}

// HealthChecks represents the status of critical service dependencies.
type HealthChecks struct {
	// Database indicates the database connection status
	Database string `json:"database"`

	// Keys indicates whether a current signing secret is available
	Keys string `json:"keys"`
}
