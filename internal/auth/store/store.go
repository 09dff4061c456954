package store

import (
	"context"
	"errors"
	"time"

	"github.com/aussiebroadwan/walletauth/internal/auth/domain"
)

var (
	ErrNotFound = errors.New("store: not found")

	// ErrUniqueViolation is returned only when a write hits a unique
	// constraint. Drivers must not use it for any other failure, the token
	// service treats it as a lost provisioning race.
	ErrUniqueViolation = errors.New("store: unique violation")
)

// Store is the root data access interface. Concrete drivers (sqlite, postgres)
// implement this. Sub-repositories are exposed as methods so a Tx can hand out
// the same repos bound to the transaction.
type Store interface {
	Users() Users
	Channels() Channels
	Consents() Consents

	ApplyMigrations() error

	// Tx starts a read/write transaction. The caller MUST call Commit() or
	// Rollback() on the returned Tx.
	Tx(ctx context.Context) (Tx, error)

	// WithTx runs fn in a transaction, committing when fn returns nil and
	// rolling back otherwise. fn must only use the Tx it is given.
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	Close() error
	Ping(ctx context.Context) error
}

// Tx is a transactional store. It embeds the same repos but adds Commit/Rollback.
type Tx interface {
	Store
	Commit() error
	Rollback() error
}

type Users interface {
	GetUserByID(ctx context.Context, id string) (domain.User, error)

	// FindActiveByExternalID joins active users of externalID to the channel
	// bundleID through their client. More than one row means the identity is
	// ambiguous.
	FindActiveByExternalID(ctx context.Context, externalID, bundleID string) ([]domain.UserChannel, error)

	// FindByIDAndChannel joins user id to the channel bundleID. Inactive users
	// are included so the caller can reject them explicitly.
	FindByIDAndChannel(ctx context.Context, id, bundleID string) ([]domain.UserChannel, error)

	// GetActiveByExternalID is the re-read after a lost insert race.
	GetActiveByExternalID(ctx context.Context, externalID, clientID string) (domain.User, error)

	// ActiveEmailExists compares emails case-insensitively within a client.
	ActiveEmailExists(ctx context.Context, email, clientID string) (bool, error)

	// CreateUser returns ErrUniqueViolation when an active user with the same
	// (external_id, client_id) already exists.
	CreateUser(ctx context.Context, u domain.User) error

	UpdateEmail(ctx context.Context, id, email string) error
	TouchLastAccessed(ctx context.Context, id string, at time.Time) error
	CountActive(ctx context.Context, externalID, clientID string) (int, error)
}

type Channels interface {
	GetChannel(ctx context.Context, bundleID string) (domain.Channel, error)
	ListChannels(ctx context.Context) ([]domain.Channel, error)
	CreateChannel(ctx context.Context, c domain.Channel) error

	CreateClientApplication(ctx context.Context, app domain.ClientApplication) error
	GetClientApplication(ctx context.Context, clientID string) (domain.ClientApplication, error)

	// GetSecretHashForBundle resolves the client application secret through
	// the channel's client_id.
	GetSecretHashForBundle(ctx context.Context, bundleID string) (string, error)
}

type Consents interface {
	CreateConsent(ctx context.Context, c domain.ServiceConsent) error
	GetConsentByUserID(ctx context.Context, userID string) (domain.ServiceConsent, error)
}
