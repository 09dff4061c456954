package authn

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"

	"github.com/aussiebroadwan/walletauth/internal/auth/domain"
	"github.com/aussiebroadwan/walletauth/internal/auth/keys"
	"github.com/aussiebroadwan/walletauth/pkg/jwtx"
	"github.com/aussiebroadwan/walletauth/pkg/slogx"
)

const (
	clientTokenType = "B2B Client Token or Secret"

	refreshKidPrefix = "refresh"

	// Body fields read by the grant inspection.
	fieldGrantType = "grant_type"
	fieldScope     = "scope"
	fieldUsername  = "username"

	// Top level field counts per path.
	clientCredentialsFields = 3
	jwtGrantFields          = 2
)

// ClientToken validates the token endpoint credentials: a partner signed B2B
// JWT, a refresh token, or HTTP Basic client credentials.
type ClientToken struct {
	Keys    keys.Resolver
	Secrets SecretChecker

	// BodyKey nests the grant fields under a key of the request body. Empty
	// means the body itself.
	BodyKey string
}

// WalletClientToken is ClientToken reading its grant from the "token" object.
func WalletClientToken(r keys.Resolver, secrets SecretChecker) *ClientToken {
	return &ClientToken{Keys: r, Secrets: secrets, BodyKey: "token"}
}

// clientHeader is the parsed credential: a JWT with its unverified header, or
// a basic bundle id and secret.
type clientHeader struct {
	jwt    string
	kid    string
	hasKid bool
	basic  bool
	bundle string
	secret string
}

func (c *ClientToken) Validate(ctx context.Context, r *Request) (*Verified, error) {
	body := c.grantBody(r.Body)

	hdr, err := c.parseHeader(r.Authorization)
	if err != nil {
		return nil, err
	}

	grant, err := checkRequest(hdr, body)
	if err != nil {
		return nil, err
	}

	var claims jwtx.ClaimSet
	switch grant {
	case domain.GrantB2B:
		claims, err = c.b2b(ctx, hdr)
	case domain.GrantRefreshToken:
		claims, err = c.refresh(ctx, hdr)
	case domain.GrantClientCredentials:
		claims, err = c.clientCredentials(ctx, hdr, body)
	default:
		err = oauthErr(UnsupportedGrantType)
	}
	if err != nil {
		return nil, err
	}
	return newVerified(clientTokenType, claims), nil
}

func (c *ClientToken) grantBody(body map[string]json.RawMessage) map[string]json.RawMessage {
	if c.BodyKey == "" {
		return body
	}
	raw, ok := body[c.BodyKey]
	if !ok {
		return body
	}
	var nested map[string]json.RawMessage
	if err := json.Unmarshal(raw, &nested); err != nil || nested == nil {
		return body
	}
	return nested
}

func (c *ClientToken) parseHeader(value string) (clientHeader, error) {
	h, err := ParseBearerHeader(value, clientTokenType)
	if err != nil {
		return clientHeader{}, err
	}

	switch h.Scheme {
	case "bearer":
		jh, err := jwtx.ParseHeader(h.Payload)
		if err != nil {
			return clientHeader{}, authErr(InvalidToken, "Supplied token is invalid")
		}
		return clientHeader{jwt: h.Payload, kid: jh.Kid, hasKid: jh.Kid != ""}, nil

	case "basic":
		raw, err := base64.StdEncoding.DecodeString(h.Payload)
		if err != nil {
			return clientHeader{}, authErr(InvalidToken, "Supplied token is invalid")
		}
		if strings.Count(string(raw), ":") != 1 {
			return clientHeader{}, authErr(InvalidToken, "Supplied token is invalid")
		}
		bundle, secret, _ := strings.Cut(string(raw), ":")
		return clientHeader{basic: true, bundle: bundle, secret: secret}, nil

	default:
		return clientHeader{}, authErr(InvalidToken, "%s must have 'bearer' or 'basic' prefix", clientTokenType)
	}
}

// checkRequest enforces the body shape shared by every grant and returns the
// requested grant type.
func checkRequest(hdr clientHeader, body map[string]json.RawMessage) (string, error) {
	var grant *string
	if raw, ok := body[fieldGrantType]; ok {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", oauthErr(InvalidRequest)
		}
		grant = &s
	}

	required := jwtGrantFields
	if grant != nil && *grant == domain.GrantClientCredentials {
		required = clientCredentialsFields
	} else if !hdr.hasKid {
		return "", oauthErr(InvalidRequest)
	}

	if len(body) != required {
		return "", oauthErr(InvalidRequest)
	}

	var scope []string
	raw, ok := body[fieldScope]
	if !ok || json.Unmarshal(raw, &scope) != nil || len(scope) != 1 {
		return "", oauthErr(InvalidRequest)
	}
	if grant == nil || scope[0] != domain.ScopeUser {
		return "", oauthErr(InvalidRequest)
	}
	return *grant, nil
}

func (c *ClientToken) b2b(ctx context.Context, hdr clientHeader) (jwtx.ClaimSet, error) {
	key, err := c.Keys.B2BKey(ctx, hdr.kid)
	if errors.Is(err, keys.ErrNoKey) {
		return nil, oauthErr(UnauthorisedClient)
	}
	if err != nil {
		slogx.FromContext(ctx).Error("b2b key lookup failed", slog.String("kid", hdr.kid), slog.Any("err", err))
		return nil, oauthErr(InvalidClient)
	}

	claims, err := verifyGrantToken(hdr.jwt, key.Key, jwtx.B2BAlgs)
	if err != nil {
		return nil, err
	}

	// The kid binding decides the channel, never the token body.
	claims[jwtx.ClaimChannel] = key.Channel
	return claims, nil
}

func (c *ClientToken) refresh(ctx context.Context, hdr clientHeader) (jwtx.ClaimSet, error) {
	prefix, base, ok := strings.Cut(hdr.kid, "-")
	if !ok || prefix != refreshKidPrefix {
		return nil, oauthErr(InvalidRequest)
	}

	secret, err := c.Keys.AccessSecret(ctx, base)
	if errors.Is(err, keys.ErrNoKey) {
		return nil, oauthErr(UnauthorisedClient)
	}
	if err != nil {
		slogx.FromContext(ctx).Error("refresh secret lookup failed", slog.String("kid", base), slog.Any("err", err))
		return nil, oauthErr(Internal)
	}

	return verifyGrantToken(hdr.jwt, secret.Secret, jwtx.FirstPartyAlgs)
}

func (c *ClientToken) clientCredentials(ctx context.Context, hdr clientHeader, body map[string]json.RawMessage) (jwtx.ClaimSet, error) {
	if !hdr.basic || hdr.bundle == "" || hdr.secret == "" {
		return nil, oauthErr(InvalidRequest)
	}

	var username string
	if err := json.Unmarshal(body[fieldUsername], &username); err != nil || username == "" {
		return nil, oauthErr(InvalidRequest)
	}

	ok, err := c.Secrets.ValidateClientSecret(ctx, hdr.bundle, hdr.secret)
	if err != nil {
		slogx.FromContext(ctx).Error("client secret check failed", slog.String("bundle_id", hdr.bundle), slog.Any("err", err))
		return nil, oauthErr(Internal)
	}
	if !ok {
		return nil, oauthErr(InvalidRequest)
	}

	return jwtx.ClaimSet{
		jwtx.ClaimChannel: hdr.bundle,
		jwtx.ClaimSubject: username,
	}, nil
}

// verifyGrantToken maps codec failures onto the token endpoint taxonomy.
func verifyGrantToken(token string, key any, algs []string) (jwtx.ClaimSet, error) {
	claims, err := jwtx.DecodeRequired(token, key, algs)
	switch {
	case err == nil:
		return claims, nil
	case errors.Is(err, jwtx.ErrNoKey), errors.Is(err, jwtx.ErrInvalidSig):
		return nil, oauthErr(UnauthorisedClient)
	case errors.Is(err, jwtx.ErrExpired), errors.Is(err, jwtx.ErrMissingClaim):
		return nil, oauthErr(InvalidGrant)
	default:
		return nil, oauthErr(InvalidRequest)
	}
}
