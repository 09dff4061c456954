package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/aussiebroadwan/walletauth/internal/auth/domain"
	"github.com/aussiebroadwan/walletauth/internal/auth/events"
	"github.com/aussiebroadwan/walletauth/internal/auth/store"
	"github.com/aussiebroadwan/walletauth/pkg/slogx"
)

type UserService struct {
	Store store.Store
}

// GetUserByID fetches a user by id.
func (s *UserService) GetUserByID(ctx context.Context, userID string) (domain.User, error) {
	u, err := s.Store.Users().GetUserByID(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return domain.User{}, ErrUserNotFound
	}
	return u, err
}

// UpdateEmail replaces the user's email. The address must be valid and not
// held by another active user of the same client.
func (s *UserService) UpdateEmail(ctx context.Context, userID, email string) (domain.User, error) {
	email = strings.TrimSpace(email)
	if !validEmail(email) {
		return domain.User{}, ErrInvalidEmail
	}

	u, err := s.GetUserByID(ctx, userID)
	if err != nil {
		return domain.User{}, err
	}
	if u.Email == email {
		return u, nil
	}

	// A change of case only is not a conflict with the user's own row.
	if !strings.EqualFold(u.Email, email) {
		taken, err := s.Store.Users().ActiveEmailExists(ctx, email, u.ClientID)
		if err != nil {
			return domain.User{}, err
		}
		if taken {
			return domain.User{}, ErrEmailTaken
		}
	}

	if err := s.Store.Users().UpdateEmail(ctx, userID, email); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.User{}, ErrUserNotFound
		}
		return domain.User{}, err
	}

	slogx.FromContext(ctx).Info("user email updated", slog.String("user_id", userID))
	u.Email = email
	return u, nil
}

// SessionTracker is an events.Publisher that records user_session events as
// the user's last access time. Other events are ignored.
type SessionTracker struct {
	Users store.Users
}

var _ events.Publisher = (*SessionTracker)(nil)

func (t *SessionTracker) Publish(ctx context.Context, ev events.Event) error {
	if ev.Name != events.UserSession {
		return nil
	}
	userID, _ := ev.Payload["user_id"].(string)
	if userID == "" {
		return nil
	}
	at := ev.At
	if at.IsZero() {
		at = time.Now().UTC()
	}
	return t.Users.TouchLastAccessed(ctx, userID, at)
}

func (t *SessionTracker) Close() error { return nil }
