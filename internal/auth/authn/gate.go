package authn

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/aussiebroadwan/walletauth/pkg/httpx"
	"github.com/aussiebroadwan/walletauth/pkg/jwtx"
	"github.com/aussiebroadwan/walletauth/pkg/slogx"
)

// ErrorStyle selects how unexpected failures are rendered.
type ErrorStyle int

const (
	ResourceErrors ErrorStyle = iota
	TokenErrors
)

type ctxKey struct{}

// WithVerified attaches v to ctx.
func WithVerified(ctx context.Context, v *Verified) context.Context {
	return context.WithValue(ctx, ctxKey{}, v)
}

// VerifiedFrom returns the claims attached by Gate.
func VerifiedFrom(ctx context.Context) (*Verified, bool) {
	v, ok := ctx.Value(ctxKey{}).(*Verified)
	return v, ok && v != nil
}

type gateConfig struct {
	onFailure func(ctx context.Context, err ErrorWriter)
}

type GateOption func(*gateConfig)

// WithFailureHook is called with every rejected request, before the error is
// written.
func WithFailureHook(fn func(ctx context.Context, err ErrorWriter)) GateOption {
	return func(c *gateConfig) { c.onFailure = fn }
}

// Gate runs a on every request and attaches the result to the request
// context. Rejected requests never reach next.
func Gate(a Authenticator, style ErrorStyle, opts ...GateOption) httpx.Middleware {
	cfg := gateConfig{}
	for _, o := range opts {
		o(&cfg)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			req := &Request{Authorization: r.Header.Get("Authorization")}
			if raw, err := httpx.PeekBody(r); err == nil && len(raw) > 0 {
				// A body that is not a JSON object is left nil and fails the
				// grant checks of the token endpoints.
				_ = json.Unmarshal(raw, &req.Body)
			}

			v, err := a.Validate(ctx, req)
			if err != nil {
				ew := asErrorWriter(err)
				if ew == nil {
					slogx.FromContext(ctx).Error("authentication failed unexpectedly", slog.Any("err", err))
					ew = internalError(style)
				}
				if cfg.onFailure != nil {
					cfg.onFailure(ctx, ew)
				}
				ew.WriteError(w)
				return
			}

			if ch, ok := v.claims.String(jwtx.ClaimChannel); ok && ch != "" {
				ctx = slogx.With(ctx, slog.String("channel", ch))
			}
			next.ServeHTTP(w, r.WithContext(WithVerified(ctx, v)))
		})
	}
}

func asErrorWriter(err error) ErrorWriter {
	var ae *AuthError
	if errors.As(err, &ae) {
		return ae
	}
	var oe *OAuthError
	if errors.As(err, &oe) {
		return oe
	}
	return nil
}

func internalError(style ErrorStyle) ErrorWriter {
	if style == TokenErrors {
		return oauthErr(Internal)
	}
	return &internalResourceError{}
}

type internalResourceError struct{}

func (*internalResourceError) Error() string { return "authn: internal error" }
func (*internalResourceError) WriteError(w http.ResponseWriter) {
	httpx.WriteJSON(w, http.StatusInternalServerError, map[string]string{
		"error_message": "Internal Server Error",
		"error_slug":    "INTERNAL_SERVER_ERROR",
	})
}

// WriteError renders err in the given style. Typed authn errors keep their own
// body.
func WriteError(w http.ResponseWriter, err error, style ErrorStyle) {
	if ew := asErrorWriter(err); ew != nil {
		ew.WriteError(w)
		return
	}
	internalError(style).WriteError(w)
}

// claim reads a resource style claim from the verified context.
func claim(ctx context.Context, name string) (any, error) {
	v, ok := VerifiedFrom(ctx)
	if !ok {
		return nil, authErr(InvalidToken, "Request context does not have an auth instance")
	}
	return v.Claim(name)
}

// tokenClaim reads a token style claim from the verified context.
func tokenClaim(ctx context.Context, name string) (any, error) {
	v, ok := VerifiedFrom(ctx)
	if !ok {
		return nil, oauthErr(InvalidGrant)
	}
	return v.TokenClaim(name)
}

func stringify(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case float64:
		return fmt.Sprintf("%.0f", s)
	default:
		return fmt.Sprint(s)
	}
}

// UserID returns sub for resource endpoints.
func UserID(ctx context.Context) (string, error) {
	v, err := claim(ctx, jwtx.ClaimSubject)
	if err != nil {
		return "", err
	}
	return stringify(v), nil
}

// Channel returns the channel bundle id for resource endpoints.
func Channel(ctx context.Context) (string, error) {
	v, err := claim(ctx, jwtx.ClaimChannel)
	if err != nil {
		return "", err
	}
	return stringify(v), nil
}

func IsTester(ctx context.Context) (bool, error) {
	v, err := claim(ctx, jwtx.ClaimIsTester)
	if err != nil {
		return false, err
	}
	b, _ := v.(bool)
	return b, nil
}

func IsTrustedChannel(ctx context.Context) (bool, error) {
	v, err := claim(ctx, jwtx.ClaimIsTrustedChannel)
	if err != nil {
		return false, err
	}
	b, _ := v.(bool)
	return b, nil
}

// TokenUser returns sub on the token endpoints. For refresh grants this is
// the user id.
func TokenUser(ctx context.Context) (string, error) {
	v, err := tokenClaim(ctx, jwtx.ClaimSubject)
	if err != nil {
		return "", err
	}
	return stringify(v), nil
}

func TokenClient(ctx context.Context) (string, error) {
	v, err := tokenClaim(ctx, jwtx.ClaimClientID)
	if err != nil {
		return "", err
	}
	return stringify(v), nil
}

func TokenChannel(ctx context.Context) (string, error) {
	v, err := tokenClaim(ctx, jwtx.ClaimChannel)
	if err != nil {
		return "", err
	}
	return stringify(v), nil
}

// ExternalUser returns sub on the token endpoints, the partner's id for the
// user on b2b and client_credentials grants.
func ExternalUser(ctx context.Context) (string, error) { return TokenUser(ctx) }

// ExternalUserEmail returns the raw email claim. present is false when the
// token carries none.
func ExternalUserEmail(ctx context.Context) (email string, present bool, err error) {
	v, ok := VerifiedFrom(ctx)
	if !ok {
		return "", false, oauthErr(InvalidGrant)
	}
	raw, ok := v.claims.Get(jwtx.ClaimEmail)
	if !ok || raw == nil {
		return "", false, nil
	}
	s, ok := raw.(string)
	if !ok {
		return "", true, oauthErr(InvalidGrant)
	}
	return s, true, nil
}

// RequireTrustedChannel rejects callers whose access token does not carry
// is_trusted_channel=true with 403.
func RequireTrustedChannel(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		trusted, err := IsTrustedChannel(r.Context())
		if err != nil {
			WriteError(w, err, ResourceErrors)
			return
		}
		if !trusted {
			authErr(Forbidden, "Forbidden").WriteError(w)
			return
		}
		next.ServeHTTP(w, r)
	})
}
