package service

import (
	"context"
	"errors"
	"log/slog"
	"net/mail"
	"strings"

	"github.com/aussiebroadwan/walletauth/internal/auth/domain"
	"github.com/aussiebroadwan/walletauth/internal/auth/store"
	"github.com/aussiebroadwan/walletauth/pkg/idx"
	"github.com/aussiebroadwan/walletauth/pkg/slogx"
)

// emailPolicy applies the channel's email rules to the token's email claim
// and returns the address to store. A required claim must be present, an
// optional one may be absent or empty, anything else must parse as a bare
// address.
func emailPolicy(g *Grant, required bool) (string, error) {
	if !g.HasEmail {
		if required {
			return "", ErrInvalidGrant
		}
		return "", nil
	}
	if g.Email == "" && !required {
		return "", nil
	}
	if !validEmail(g.Email) {
		return "", ErrInvalidGrant
	}
	return g.Email, nil
}

// validEmail accepts a bare addr-spec only, no display name or brackets.
func validEmail(email string) bool {
	if email == "" || strings.TrimSpace(email) != email {
		return false
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return false
	}
	at := strings.LastIndexByte(email, '@')
	return at > 0 && strings.Contains(email[at+1:], ".")
}

// provisionUser creates the user and its consent row for a first b2b or
// client_credentials login. Concurrent first logins for the same identity
// all succeed: the losers of the insert race read back the winner's row.
func (s *TokenService) provisionUser(ctx context.Context, g *Grant) (domain.User, domain.Channel, error) {
	l := slogx.FromContext(ctx)

	ch, err := s.Store.Channels().GetChannel(ctx, g.Channel)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			l.Warn("channel not configured", slog.String("channel", g.Channel))
			return domain.User{}, domain.Channel{}, ErrUnauthorizedClient
		}
		return domain.User{}, domain.Channel{}, internal("get channel", err)
	}

	email, err := emailPolicy(g, ch.EmailRequired)
	if err != nil {
		return domain.User{}, domain.Channel{}, err
	}
	if email != "" {
		exists, err := s.Store.Users().ActiveEmailExists(ctx, email, ch.ClientID)
		if err != nil {
			return domain.User{}, domain.Channel{}, internal("check email", err)
		}
		if exists {
			l.Info("email already registered for client", slog.String("channel", g.Channel))
			return domain.User{}, domain.Channel{}, ErrInvalidGrant
		}
	}
	g.Email = email

	now := s.now().UTC()
	user := domain.User{
		ID:             idx.NewAt(now).String(),
		ExternalID:     g.ExternalID,
		ClientID:       ch.ClientID,
		Email:          email,
		IsActive:       true,
		CreatedAt:      now,
		LastAccessedAt: &now,
	}

	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.Users().CreateUser(ctx, user); err != nil {
			return err
		}
		return tx.Consents().CreateConsent(ctx, domain.ServiceConsent{
			ID:        idx.NewAt(now).String(),
			UserID:    user.ID,
			CreatedAt: now,
		})
	})
	switch {
	case err == nil:
		s.recorder().UserProvisioned(false)
		l.Info("user provisioned", slog.String("user_id", user.ID), slog.String("channel", g.Channel))
		return user, ch, nil

	case errors.Is(err, store.ErrUniqueViolation):
		l.Info("user already provisioned by a concurrent request",
			slog.String("external_id", g.ExternalID), slog.String("channel", g.Channel))

		existing, err := s.Store.Users().GetActiveByExternalID(ctx, g.ExternalID, ch.ClientID)
		if err != nil {
			return domain.User{}, domain.Channel{}, internal("re-read user", err)
		}
		s.recorder().UserProvisioned(true)
		return existing, ch, nil

	default:
		l.Error("could not create user",
			slog.String("external_id", g.ExternalID), slog.String("channel", g.Channel), slog.Any("err", err))
		return domain.User{}, domain.Channel{}, internal("create user", err)
	}
}
