package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/aussiebroadwan/walletauth/internal/auth/authn"
	"github.com/aussiebroadwan/walletauth/internal/auth/domain"
	"github.com/aussiebroadwan/walletauth/internal/auth/service"
	"github.com/aussiebroadwan/walletauth/pkg/authsdk"
	"github.com/aussiebroadwan/walletauth/pkg/httpx"
	"github.com/aussiebroadwan/walletauth/pkg/slogx"
)

// TokenHandler serves POST /v2/token and POST /v2/wallet_token. The
// credential has already been verified by the client token gate.
type TokenHandler struct {
	TokenService *service.TokenService

	// BodyKey is "token" on the wallet route.
	BodyKey string
}

// ServeHTTP godoc
//
//	@Summary		Token Endpoint
//	@Description	Issues an access and refresh token pair. The Authorization header carries a partner signed JWT (b2b), a refresh token (refresh_token) or HTTP Basic channel credentials (client_credentials).
//	@Tags			Token
//	@Accept			json
//	@Produce		json
//	@Param			Authorization	header		string					true	"bearer {jwt} or basic {base64(bundle_id:secret)}"
//	@Param			body			body		authsdk.TokenRequest	true	"grant_type, scope and, for client_credentials, username"
//	@Success		200				{object}	authsdk.TokenResponse	"access_token, token_type, expires_in, refresh_token, scope"
//	@Failure		400				{object}	authsdk.ErrorResponse	"invalid_request, invalid_grant, unauthorized_client, unsupported_grant_type"
//	@Failure		401				{object}	authsdk.ErrorResponse	"invalid_client"
//	@Failure		409				{object}	authsdk.ErrorResponse	"conflict"
//	@Failure		500				{object}	authsdk.ErrorResponse	"server_error"
//	@Header			200				{string}	Cache-Control			"no-store"
//	@Router			/v2/token [post].
func (h *TokenHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	grantType, err := h.grantType(r)
	if err != nil {
		writeOAuth(w, authn.InvalidRequest)
		return
	}

	grant, err := service.GrantFromContext(ctx, grantType)
	if err != nil {
		authn.WriteError(w, err, authn.TokenErrors)
		return
	}

	pair, err := h.TokenService.Issue(ctx, grant)
	if err != nil {
		kind := tokenErrorKind(err)
		if kind == authn.Internal {
			log.Error("token grant failed", slog.String("grant_type", grantType), slog.Any("err", err))
		} else {
			log.Info("token grant rejected", slog.String("grant_type", grantType), slog.String("reason", err.Error()))
		}
		writeOAuth(w, kind)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, authsdk.TokenResponse{
		AccessToken:  pair.AccessToken,
		TokenType:    "bearer",
		ExpiresIn:    int(pair.AccessLifetime.Seconds()),
		RefreshToken: pair.RefreshToken,
		Scope:        []string{domain.ScopeUser},
	})
}

// grantType reads grant_type from the (possibly nested) JSON body.
func (h *TokenHandler) grantType(r *http.Request) (string, error) {
	raw, err := httpx.PeekBody(r)
	if err != nil {
		return "", err
	}

	var body map[string]json.RawMessage
	if err := json.Unmarshal(raw, &body); err != nil {
		return "", err
	}
	if h.BodyKey != "" {
		if nested, ok := body[h.BodyKey]; ok {
			var inner map[string]json.RawMessage
			if err := json.Unmarshal(nested, &inner); err == nil && inner != nil {
				body = inner
			}
		}
	}

	var grantType string
	if err := json.Unmarshal(body["grant_type"], &grantType); err != nil {
		return "", err
	}
	return grantType, nil
}

// tokenErrorKind maps service failures to token endpoint error kinds.
func tokenErrorKind(err error) authn.OAuthErrorKind {
	switch {
	case errors.Is(err, service.ErrInvalidRequest):
		return authn.InvalidRequest
	case errors.Is(err, service.ErrInvalidGrant):
		return authn.InvalidGrant
	case errors.Is(err, service.ErrUnauthorizedClient):
		return authn.UnauthorisedClient
	case errors.Is(err, service.ErrUnsupportedGrantType):
		return authn.UnsupportedGrantType
	case errors.Is(err, service.ErrInvalidClient):
		return authn.InvalidClient
	case errors.Is(err, service.ErrConflict):
		return authn.Conflict
	default:
		return authn.Internal
	}
}

func writeOAuth(w http.ResponseWriter, kind authn.OAuthErrorKind) {
	(&authn.OAuthError{Kind: kind}).WriteError(w)
}
