package postgres

import (
	"context"
	"time"

	"github.com/aussiebroadwan/walletauth/internal/auth/domain"
	"github.com/jackc/pgx/v5"
)

type usersRepo struct{ q querier }

const userColumns = `u.id, u.external_id, u.client_id, u.email, u.is_active, u.is_tester, u.created_at, u.last_accessed_at`

const userChannelSelect = `SELECT ` + userColumns + `, ` + channelColumns + `
FROM users u
JOIN channels c ON c.client_id = u.client_id`

func userDest(u *domain.User) []any {
	return []any{&u.ID, &u.ExternalID, &u.ClientID, &u.Email, &u.IsActive, &u.IsTester, &u.CreatedAt, &u.LastAccessedAt}
}

func (r *usersRepo) GetUserByID(ctx context.Context, id string) (domain.User, error) {
	var u domain.User
	err := r.q.QueryRow(ctx, `SELECT `+userColumns+` FROM users u WHERE u.id = $1`, id).Scan(userDest(&u)...)
	return u, mapNotFound(err)
}

func (r *usersRepo) FindActiveByExternalID(ctx context.Context, externalID, bundleID string) ([]domain.UserChannel, error) {
	return r.queryUserChannels(ctx,
		userChannelSelect+` WHERE u.external_id = $1 AND u.is_active AND c.bundle_id = $2`,
		externalID, bundleID)
}

func (r *usersRepo) FindByIDAndChannel(ctx context.Context, id, bundleID string) ([]domain.UserChannel, error) {
	return r.queryUserChannels(ctx,
		userChannelSelect+` WHERE u.id = $1 AND c.bundle_id = $2`,
		id, bundleID)
}

func (r *usersRepo) queryUserChannels(ctx context.Context, query string, args ...any) ([]domain.UserChannel, error) {
	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}

	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.UserChannel, error) {
		var uc domain.UserChannel
		err := row.Scan(append(userDest(&uc.User), channelDest(&uc.Channel)...)...)
		return uc, err
	})
}

func (r *usersRepo) GetActiveByExternalID(ctx context.Context, externalID, clientID string) (domain.User, error) {
	var u domain.User
	err := r.q.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users u WHERE u.external_id = $1 AND u.client_id = $2 AND u.is_active`,
		externalID, clientID).Scan(userDest(&u)...)
	return u, mapNotFound(err)
}

func (r *usersRepo) ActiveEmailExists(ctx context.Context, email, clientID string) (bool, error) {
	var exists bool
	err := r.q.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM users WHERE client_id = $1 AND is_active AND lower(email) = lower($2))`,
		clientID, email).Scan(&exists)
	return exists, err
}

func (r *usersRepo) CreateUser(ctx context.Context, u domain.User) error {
	_, err := r.q.Exec(ctx,
		`INSERT INTO users (id, external_id, client_id, email, is_active, is_tester, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		u.ID, u.ExternalID, u.ClientID, u.Email, u.IsActive, u.IsTester, u.CreatedAt)
	return mapWriteErr("postgres: create user", err)
}

func (r *usersRepo) UpdateEmail(ctx context.Context, id, email string) error {
	tag, err := r.q.Exec(ctx, `UPDATE users SET email = $1 WHERE id = $2`, email, id)
	if err != nil {
		return mapWriteErr("postgres: update email", err)
	}
	return requireOneRow(tag)
}

func (r *usersRepo) TouchLastAccessed(ctx context.Context, id string, at time.Time) error {
	tag, err := r.q.Exec(ctx, `UPDATE users SET last_accessed_at = $1 WHERE id = $2`, at, id)
	if err != nil {
		return mapWriteErr("postgres: touch user", err)
	}
	return requireOneRow(tag)
}

func (r *usersRepo) CountActive(ctx context.Context, externalID, clientID string) (int, error) {
	var n int
	err := r.q.QueryRow(ctx,
		`SELECT COUNT(*) FROM users WHERE external_id = $1 AND client_id = $2 AND is_active`,
		externalID, clientID).Scan(&n)
	return n, err
}
