package postgres

import (
	"context"

	"github.com/aussiebroadwan/walletauth/internal/auth/domain"
	"github.com/jackc/pgx/v5"
)

type channelsRepo struct{ q querier }

const channelColumns = `c.bundle_id, c.client_id, c.is_trusted, c.email_required, c.access_token_lifetime, c.refresh_token_lifetime, c.created_at`

func channelDest(c *domain.Channel) []any {
	return []any{
		&c.BundleID, &c.ClientID, &c.IsTrusted, &c.EmailRequired,
		&c.AccessTokenLifetimeMinutes, &c.RefreshTokenLifetimeMinutes, &c.CreatedAt,
	}
}

func (r *channelsRepo) GetChannel(ctx context.Context, bundleID string) (domain.Channel, error) {
	var c domain.Channel
	err := r.q.QueryRow(ctx, `SELECT `+channelColumns+` FROM channels c WHERE c.bundle_id = $1`, bundleID).
		Scan(channelDest(&c)...)
	return c, mapNotFound(err)
}

func (r *channelsRepo) ListChannels(ctx context.Context) ([]domain.Channel, error) {
	rows, err := r.q.Query(ctx, `SELECT `+channelColumns+` FROM channels c ORDER BY c.bundle_id`)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.Channel, error) {
		var c domain.Channel
		err := row.Scan(channelDest(&c)...)
		return c, err
	})
}

func (r *channelsRepo) CreateChannel(ctx context.Context, c domain.Channel) error {
	_, err := r.q.Exec(ctx,
		`INSERT INTO channels (bundle_id, client_id, is_trusted, email_required, access_token_lifetime, refresh_token_lifetime, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		c.BundleID, c.ClientID, c.IsTrusted, c.EmailRequired,
		c.AccessTokenLifetimeMinutes, c.RefreshTokenLifetimeMinutes, c.CreatedAt)
	return mapWriteErr("postgres: create channel", err)
}

func (r *channelsRepo) CreateClientApplication(ctx context.Context, app domain.ClientApplication) error {
	_, err := r.q.Exec(ctx,
		`INSERT INTO client_applications (client_id, name, secret_hash, created_at) VALUES ($1, $2, $3, $4)`,
		app.ClientID, app.Name, app.SecretHash, app.CreatedAt)
	return mapWriteErr("postgres: create client application", err)
}

func (r *channelsRepo) GetClientApplication(ctx context.Context, clientID string) (domain.ClientApplication, error) {
	var app domain.ClientApplication
	err := r.q.QueryRow(ctx,
		`SELECT client_id, name, secret_hash, created_at FROM client_applications WHERE client_id = $1`, clientID).
		Scan(&app.ClientID, &app.Name, &app.SecretHash, &app.CreatedAt)
	return app, mapNotFound(err)
}

func (r *channelsRepo) GetSecretHashForBundle(ctx context.Context, bundleID string) (string, error) {
	var hash string
	err := r.q.QueryRow(ctx,
		`SELECT a.secret_hash
		 FROM channels c JOIN client_applications a ON a.client_id = c.client_id
		 WHERE c.bundle_id = $1`, bundleID).Scan(&hash)
	return hash, mapNotFound(err)
}
