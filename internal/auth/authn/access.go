package authn

import (
	"context"
	"errors"
	"log/slog"

	"github.com/aussiebroadwan/walletauth/internal/auth/keys"
	"github.com/aussiebroadwan/walletauth/pkg/jwtx"
	"github.com/aussiebroadwan/walletauth/pkg/slogx"
)

const accessTokenType = "Access Token"

// AccessToken validates first-party HS512 access tokens.
type AccessToken struct {
	Keys keys.Resolver
}

func (a *AccessToken) Validate(ctx context.Context, r *Request) (*Verified, error) {
	h, err := ParseBearerHeader(r.Authorization, accessTokenType)
	if err != nil {
		return nil, err
	}
	if h.Scheme != "bearer" {
		return nil, authErr(InvalidToken, "%s must have bearer prefix", accessTokenType)
	}

	hdr, err := jwtx.ParseHeader(h.Payload)
	if err != nil {
		return nil, authErr(InvalidToken, "Supplied token is invalid")
	}
	if hdr.Kid == "" {
		return nil, authErr(InvalidToken, "%s must have a kid header", accessTokenType)
	}

	secret, err := a.Keys.AccessSecret(ctx, hdr.Kid)
	if err != nil {
		if !errors.Is(err, keys.ErrNoKey) {
			slogx.FromContext(ctx).Error("access secret lookup failed", slog.String("kid", hdr.Kid), slog.Any("err", err))
		}
		return nil, authErr(InvalidToken, "%s has unknown secret", accessTokenType)
	}

	claims, err := jwtx.DecodeRequired(h.Payload, secret.Secret, jwtx.FirstPartyAlgs)
	if err != nil {
		return nil, accessVerifyError(err)
	}
	return newVerified(accessTokenType, claims), nil
}

func accessVerifyError(err error) *AuthError {
	switch {
	case errors.Is(err, jwtx.ErrMissingClaim):
		return authErr(MissingClaim, "%s has missing claim", accessTokenType)
	case errors.Is(err, jwtx.ErrExpired):
		return authErr(ExpiredToken, "%s expired", accessTokenType)
	case errors.Is(err, jwtx.ErrInvalidSig):
		return authErr(InvalidToken, "%s signature error", accessTokenType)
	default:
		return authErr(InvalidToken, "%s is invalid", accessTokenType)
	}
}
