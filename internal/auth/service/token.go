package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/aussiebroadwan/walletauth/internal/auth/authn"
	"github.com/aussiebroadwan/walletauth/internal/auth/domain"
	"github.com/aussiebroadwan/walletauth/internal/auth/events"
	"github.com/aussiebroadwan/walletauth/internal/auth/keys"
	"github.com/aussiebroadwan/walletauth/internal/auth/store"
	"github.com/aussiebroadwan/walletauth/pkg/jwtx"
	"github.com/aussiebroadwan/walletauth/pkg/slogx"
)

// Recorder receives issuance metrics. *metrics.Metrics satisfies it.
type Recorder interface {
	TokenIssued(grantType string)
	UserProvisioned(raced bool)
}

type nopRecorder struct{}

func (nopRecorder) TokenIssued(string)   {}
func (nopRecorder) UserProvisioned(bool) {}

// TokenService turns a verified grant into a signed access/refresh pair,
// provisioning the backing user on first sight of an external identity.
type TokenService struct {
	Store   store.Store
	Keys    keys.Resolver
	Events  *events.Dispatcher
	Metrics Recorder

	// Used when a channel has no lifetime of its own.
	AccessTTL  time.Duration
	RefreshTTL time.Duration

	Now func() time.Time
}

// Grant is the per-request issuer state. It starts with what the verified
// credential says and is completed by ProcessToken.
type Grant struct {
	GrantType  string
	Channel    string
	ExternalID string
	UserID     string
	ClientID   string

	// Email is the raw email claim. HasEmail is false when the token had none.
	Email    string
	HasEmail bool

	IsTester        bool
	IsTrusted       bool
	AccessLifetime  time.Duration
	RefreshLifetime time.Duration
}

// GrantFromContext builds a Grant from the credential verified by the token
// endpoint gate. grantType comes from the request body, the refresh token's
// own grant_type claim records the grant that first created it.
func GrantFromContext(ctx context.Context, grantType string) (*Grant, error) {
	channel, err := authn.TokenChannel(ctx)
	if err != nil {
		return nil, err
	}
	sub, err := authn.TokenUser(ctx)
	if err != nil {
		return nil, err
	}

	g := &Grant{GrantType: grantType, Channel: channel, ExternalID: sub}

	switch grantType {
	case domain.GrantRefreshToken:
		g.UserID = sub
		if g.ClientID, err = authn.TokenClient(ctx); err != nil {
			return nil, err
		}
		if v, ok := authn.VerifiedFrom(ctx); ok {
			if ext, ok := v.Claims().String(jwtx.ClaimExternalID); ok && ext != "" {
				g.ExternalID = ext
			}
		}
	default:
		if g.Email, g.HasEmail, err = authn.ExternalUserEmail(ctx); err != nil {
			return nil, err
		}
	}
	return g, nil
}

func (s *TokenService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *TokenService) recorder() Recorder {
	if s.Metrics == nil {
		return nopRecorder{}
	}
	return s.Metrics
}

func (s *TokenService) fire(ctx context.Context, name string, payload map[string]any) {
	if s.Events == nil {
		return
	}
	s.Events.Fire(ctx, name, payload)
}

func (s *TokenService) accessTTL() time.Duration {
	if s.AccessTTL <= 0 {
		return jwtx.DefaultAccessTokenTTL
	}
	return s.AccessTTL
}

func (s *TokenService) refreshTTL() time.Duration {
	if s.RefreshTTL <= 0 {
		return jwtx.DefaultRefreshTokenTTL
	}
	return s.RefreshTTL
}

// internal wraps a storage or key failure. The cause is kept for logging,
// callers only ever see ErrInternal.
func internal(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrInternal, err)
}

// ProcessToken resolves g to a user and channel and fills in the user id,
// flags and lifetimes. A successful grant records a user_session event.
func (s *TokenService) ProcessToken(ctx context.Context, g *Grant) error {
	var err error
	switch g.GrantType {
	case domain.GrantB2B, domain.GrantClientCredentials:
		err = s.processB2BToken(ctx, g)
	case domain.GrantRefreshToken:
		err = s.processRefreshToken(ctx, g)
	default:
		return ErrUnsupportedGrantType
	}
	if err != nil {
		return err
	}

	if g.UserID != "" {
		s.fire(ctx, events.UserSession, map[string]any{
			"user_id":      g.UserID,
			"token_type":   g.GrantType,
			"channel_slug": g.Channel,
		})
	}
	return nil
}

func (s *TokenService) processRefreshToken(ctx context.Context, g *Grant) error {
	l := slogx.FromContext(ctx)

	rows, err := s.Store.Users().FindByIDAndChannel(ctx, g.UserID, g.Channel)
	if err != nil {
		l.Error("refresh user lookup failed",
			slog.String("user_id", g.UserID), slog.String("channel", g.Channel), slog.Any("err", err))
		return internal("find user channel", err)
	}
	if len(rows) != 1 {
		l.Warn("refresh token does not resolve to one user",
			slog.String("user_id", g.UserID), slog.String("channel", g.Channel), slog.Int("rows", len(rows)))
		return ErrUnauthorizedClient
	}

	row := rows[0]
	if !row.User.IsActive {
		return ErrUnauthorizedClient
	}
	if g.ClientID == "" {
		g.ClientID = row.User.ClientID
	}
	s.setTokenData(g, row.User, row.Channel)
	return nil
}

func (s *TokenService) processB2BToken(ctx context.Context, g *Grant) error {
	l := slogx.FromContext(ctx)

	rows, err := s.Store.Users().FindActiveByExternalID(ctx, g.ExternalID, g.Channel)
	if err != nil {
		l.Error("user lookup failed",
			slog.String("external_id", g.ExternalID), slog.String("channel", g.Channel), slog.Any("err", err))
		return internal("find active user", err)
	}

	var (
		user domain.User
		ch   domain.Channel
	)
	switch len(rows) {
	case 0:
		if user, ch, err = s.provisionUser(ctx, g); err != nil {
			return err
		}
	case 1:
		user, ch = rows[0].User, rows[0].Channel

		email, err := emailPolicy(g, ch.EmailRequired)
		if err != nil {
			return err
		}
		if ch.EmailRequired && !strings.EqualFold(email, user.Email) {
			l.Warn("token email does not match user record",
				slog.String("user_id", user.ID), slog.String("channel", g.Channel))
			return ErrInvalidClient
		}
		g.Email = email
	default:
		l.Error("external identity matches several active users",
			slog.String("external_id", g.ExternalID), slog.String("channel", g.Channel), slog.Int("rows", len(rows)))
		return ErrConflict
	}

	g.UserID = user.ID
	g.ClientID = user.ClientID
	s.setTokenData(g, user, ch)
	return nil
}

func (s *TokenService) setTokenData(g *Grant, u domain.User, ch domain.Channel) {
	g.IsTester = u.IsTester
	g.IsTrusted = ch.IsTrusted
	g.AccessLifetime = ch.AccessTokenLifetime(s.accessTTL())
	g.RefreshLifetime = ch.RefreshTokenLifetime(s.refreshTTL())
}

func (s *TokenService) currentSecret(ctx context.Context) (keys.Secret, error) {
	sec, err := s.Keys.CurrentSecret(ctx)
	if err != nil {
		return keys.Secret{}, internal("current signing secret", err)
	}
	return sec, nil
}

func (s *TokenService) lifetimes(g *Grant) (access, refresh time.Duration) {
	access, refresh = g.AccessLifetime, g.RefreshLifetime
	if access <= 0 {
		access = s.accessTTL()
	}
	if refresh <= 0 {
		refresh = s.refreshTTL()
	}
	return access, refresh
}

func signAccess(sec keys.Secret, g *Grant, now time.Time, ttl time.Duration) (string, error) {
	claims := jwtx.NewAccessClaims(g.UserID, g.Channel, g.IsTester, g.IsTrusted, now, ttl)
	tok, err := jwtx.SignHS512(sec.Kid, sec.Secret, claims)
	if err != nil {
		return "", internal("sign access token", err)
	}
	return tok, nil
}

func signRefresh(sec keys.Secret, g *Grant, now time.Time, ttl time.Duration) (string, error) {
	claims := jwtx.RefreshClaims{
		Subject:    g.UserID,
		Channel:    g.Channel,
		ClientID:   g.ClientID,
		GrantType:  g.GrantType,
		ExternalID: g.ExternalID,
		IssuedAt:   now,
		ExpiresAt:  now.Add(ttl),
	}
	tok, err := jwtx.SignHS512(RefreshKid(sec.Kid), sec.Secret, claims)
	if err != nil {
		return "", internal("sign refresh token", err)
	}
	return tok, nil
}

// RefreshKid is the kid header of refresh tokens signed with secret kid.
func RefreshKid(kid string) string { return "refresh-" + kid }

// CreateAccessToken signs the six claim access token for a processed grant
// with the current secret.
func (s *TokenService) CreateAccessToken(ctx context.Context, g *Grant) (string, error) {
	sec, err := s.currentSecret(ctx)
	if err != nil {
		return "", err
	}
	ttl, _ := s.lifetimes(g)
	return signAccess(sec, g, s.now(), ttl)
}

// CreateRefreshToken signs a refresh token for a processed grant. Its kid is
// the current kid prefixed with "refresh-".
func (s *TokenService) CreateRefreshToken(ctx context.Context, g *Grant) (string, error) {
	sec, err := s.currentSecret(ctx)
	if err != nil {
		return "", err
	}
	_, ttl := s.lifetimes(g)
	return signRefresh(sec, g, s.now(), ttl)
}

// Issue runs the whole grant: process, sign both tokens with the same
// secret, then ask for a balance refresh.
func (s *TokenService) Issue(ctx context.Context, g *Grant) (domain.TokenPair, error) {
	if err := s.ProcessToken(ctx, g); err != nil {
		return domain.TokenPair{}, err
	}

	sec, err := s.currentSecret(ctx)
	if err != nil {
		slogx.FromContext(ctx).Error("no signing secret", slog.Any("err", err))
		return domain.TokenPair{}, err
	}

	now := s.now()
	accessTTL, refreshTTL := s.lifetimes(g)

	access, err := signAccess(sec, g, now, accessTTL)
	if err != nil {
		return domain.TokenPair{}, err
	}
	refresh, err := signRefresh(sec, g, now, refreshTTL)
	if err != nil {
		return domain.TokenPair{}, err
	}

	s.fire(ctx, events.RefreshBalances, map[string]any{
		"user_id":      g.UserID,
		"channel_slug": g.Channel,
	})
	s.recorder().TokenIssued(g.GrantType)

	return domain.TokenPair{
		AccessToken:     access,
		RefreshToken:    refresh,
		AccessLifetime:  accessTTL,
		RefreshLifetime: refreshTTL,
	}, nil
}

// IsInternal reports whether err should surface as a server error.
func IsInternal(err error) bool { return errors.Is(err, ErrInternal) }
