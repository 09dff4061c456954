package authsdk

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Grant types accepted by the token endpoints.
const (
	GrantB2B               = "b2b"
	GrantRefreshToken      = "refresh_token"
	GrantClientCredentials = "client_credentials"
)

// ScopeUser is the only scope the service issues.
const ScopeUser = "user"

// SDKClient is a client for the wallet authentication service.
type SDKClient struct {
	BaseURL    string
	HTTPClient *http.Client

	// Wallet sends token requests to /v2/wallet_token with the body nested
	// under "token" instead of /v2/token.
	Wallet bool
}

// NewSDKClient creates a new auth service client.
func NewSDKClient(baseURL string) *SDKClient {
	return &SDKClient{
		BaseURL: strings.TrimSuffix(baseURL, "/"),
		HTTPClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// ClientCredentials requests a token pair for username using the channel's
// client secret.
func (c *SDKClient) ClientCredentials(ctx context.Context, bundleID, secret, username string) (*TokenResponse, error) {
	auth := "basic " + base64.StdEncoding.EncodeToString([]byte(bundleID+":"+secret))
	return c.requestToken(ctx, auth, TokenRequest{
		GrantType: GrantClientCredentials,
		Username:  username,
		Scope:     []string{ScopeUser},
	})
}

// B2B exchanges a partner signed JWT for a token pair.
func (c *SDKClient) B2B(ctx context.Context, partnerToken string) (*TokenResponse, error) {
	return c.requestToken(ctx, "bearer "+partnerToken, TokenRequest{
		GrantType: GrantB2B,
		Scope:     []string{ScopeUser},
	})
}

// Refresh exchanges a refresh token for a new pair.
func (c *SDKClient) Refresh(ctx context.Context, refreshToken string) (*TokenResponse, error) {
	return c.requestToken(ctx, "bearer "+refreshToken, TokenRequest{
		GrantType: GrantRefreshToken,
		Scope:     []string{ScopeUser},
	})
}

func (c *SDKClient) requestToken(ctx context.Context, authorization string, body TokenRequest) (*TokenResponse, error) {
	path := "/v2/token"
	var payload any = body
	if c.Wallet {
		path = "/v2/wallet_token"
		payload = WalletTokenRequest{Token: body}
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}

	resp, err := c.doRequest(ctx, http.MethodPost, path, bytes.NewReader(raw), map[string]string{
		"Authorization": authorization,
		"Content-Type":  "application/json",
	})
	if err != nil {
		return nil, err
	}

	var tokenResp TokenResponse
	if err := decodeJSON(resp, &tokenResp, http.StatusOK); err != nil {
		return nil, err
	}
	return &tokenResp, nil
}

// Me returns the identity behind accessToken.
func (c *SDKClient) Me(ctx context.Context, accessToken string) (*MeResponse, error) {
	resp, err := c.doRequest(ctx, http.MethodGet, "/v2/me", nil, map[string]string{
		"Authorization": "bearer " + accessToken,
	})
	if err != nil {
		return nil, err
	}

	var me MeResponse
	if err := decodeJSON(resp, &me, http.StatusOK); err != nil {
		return nil, err
	}
	return &me, nil
}

// UpdateEmail changes the email of the user behind accessToken. Only
// trusted channels may call it.
func (c *SDKClient) UpdateEmail(ctx context.Context, accessToken, email string) (*MeResponse, error) {
	raw, err := json.Marshal(UpdateEmailRequest{Email: email})
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}

	resp, err := c.doRequest(ctx, http.MethodPut, "/v2/me/email", bytes.NewReader(raw), map[string]string{
		"Authorization": "bearer " + accessToken,
		"Content-Type":  "application/json",
	})
	if err != nil {
		return nil, err
	}

	var me MeResponse
	if err := decodeJSON(resp, &me, http.StatusOK); err != nil {
		return nil, err
	}
	return &me, nil
}

// GetLiveness calls GET /livez.
func (c *SDKClient) GetLiveness(ctx context.Context) (*HealthResponse, error) {
	return c.health(ctx, "/livez")
}

// GetReadiness calls GET /readyz. A degraded service returns an error with
// status 503.
func (c *SDKClient) GetReadiness(ctx context.Context) (*HealthResponse, error) {
	return c.health(ctx, "/readyz")
}

func (c *SDKClient) health(ctx context.Context, path string) (*HealthResponse, error) {
	resp, err := c.doRequest(ctx, http.MethodGet, path, nil, nil)
	if err != nil {
		return nil, err
	}

	var health HealthResponse
	if err := decodeJSON(resp, &health, http.StatusOK); err != nil {
		return nil, err
	}
	return &health, nil
}
