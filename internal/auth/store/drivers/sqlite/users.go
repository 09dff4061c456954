package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/aussiebroadwan/walletauth/internal/auth/domain"
)

type usersRepo struct{ q querier }

const userColumns = `u.id, u.external_id, u.client_id, u.email, u.is_active, u.is_tester, u.created_at, u.last_accessed_at`

const userChannelSelect = `SELECT ` + userColumns + `, ` + channelColumns + `
FROM users u
JOIN channels c ON c.client_id = u.client_id`

type scanner interface {
	Scan(dest ...any) error
}

func scanUser(row scanner, extra ...any) (domain.User, error) {
	var (
		u            domain.User
		lastAccessed sql.NullTime
	)
	dest := append([]any{
		&u.ID, &u.ExternalID, &u.ClientID, &u.Email, &u.IsActive, &u.IsTester, &u.CreatedAt, &lastAccessed,
	}, extra...)
	if err := row.Scan(dest...); err != nil {
		return domain.User{}, err
	}
	if lastAccessed.Valid {
		u.LastAccessedAt = &lastAccessed.Time
	}
	return u, nil
}

func (r *usersRepo) GetUserByID(ctx context.Context, id string) (domain.User, error) {
	u, err := scanUser(r.q.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users u WHERE u.id = ?`, id))
	return u, mapNotFound(err)
}

func (r *usersRepo) FindActiveByExternalID(ctx context.Context, externalID, bundleID string) ([]domain.UserChannel, error) {
	return r.queryUserChannels(ctx,
		userChannelSelect+` WHERE u.external_id = ? AND u.is_active = 1 AND c.bundle_id = ?`,
		externalID, bundleID)
}

func (r *usersRepo) FindByIDAndChannel(ctx context.Context, id, bundleID string) ([]domain.UserChannel, error) {
	return r.queryUserChannels(ctx,
		userChannelSelect+` WHERE u.id = ? AND c.bundle_id = ?`,
		id, bundleID)
}

func (r *usersRepo) queryUserChannels(ctx context.Context, query string, args ...any) ([]domain.UserChannel, error) {
	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.UserChannel
	for rows.Next() {
		var c domain.Channel
		u, err := scanUser(rows, channelDest(&c)...)
		if err != nil {
			return nil, err
		}
		out = append(out, domain.UserChannel{User: u, Channel: c})
	}
	return out, rows.Err()
}

func (r *usersRepo) GetActiveByExternalID(ctx context.Context, externalID, clientID string) (domain.User, error) {
	u, err := scanUser(r.q.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users u WHERE u.external_id = ? AND u.client_id = ? AND u.is_active = 1`,
		externalID, clientID))
	return u, mapNotFound(err)
}

func (r *usersRepo) ActiveEmailExists(ctx context.Context, email, clientID string) (bool, error) {
	var exists bool
	err := r.q.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM users WHERE client_id = ? AND is_active = 1 AND email = ? COLLATE NOCASE)`,
		clientID, email).Scan(&exists)
	return exists, err
}

func (r *usersRepo) CreateUser(ctx context.Context, u domain.User) error {
	_, err := r.q.ExecContext(ctx,
		`INSERT INTO users (id, external_id, client_id, email, is_active, is_tester, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		u.ID, u.ExternalID, u.ClientID, u.Email, u.IsActive, u.IsTester, u.CreatedAt.UTC())
	return mapWriteErr("sqlite: create user", err)
}

func (r *usersRepo) UpdateEmail(ctx context.Context, id, email string) error {
	return r.execOne(ctx, `UPDATE users SET email = ? WHERE id = ?`, email, id)
}

func (r *usersRepo) TouchLastAccessed(ctx context.Context, id string, at time.Time) error {
	return r.execOne(ctx, `UPDATE users SET last_accessed_at = ? WHERE id = ?`, at.UTC(), id)
}

func (r *usersRepo) CountActive(ctx context.Context, externalID, clientID string) (int, error) {
	var n int
	err := r.q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM users WHERE external_id = ? AND client_id = ? AND is_active = 1`,
		externalID, clientID).Scan(&n)
	return n, err
}

func (r *usersRepo) execOne(ctx context.Context, query string, args ...any) error {
	res, err := r.q.ExecContext(ctx, query, args...)
	if err != nil {
		return mapWriteErr("sqlite: update user", err)
	}
	return requireOneRow(res)
}
