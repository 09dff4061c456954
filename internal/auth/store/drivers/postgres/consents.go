package postgres

import (
	"context"

	"github.com/aussiebroadwan/walletauth/internal/auth/domain"
)

type consentsRepo struct{ q querier }

func (r *consentsRepo) CreateConsent(ctx context.Context, c domain.ServiceConsent) error {
	_, err := r.q.Exec(ctx,
		`INSERT INTO service_consents (id, user_id, latitude, longitude, created_at) VALUES ($1, $2, $3, $4, $5)`,
		c.ID, c.UserID, c.Latitude, c.Longitude, c.CreatedAt)
	return mapWriteErr("postgres: create consent", err)
}

func (r *consentsRepo) GetConsentByUserID(ctx context.Context, userID string) (domain.ServiceConsent, error) {
	var c domain.ServiceConsent
	err := r.q.QueryRow(ctx,
		`SELECT id, user_id, latitude, longitude, created_at FROM service_consents WHERE user_id = $1`, userID).
		Scan(&c.ID, &c.UserID, &c.Latitude, &c.Longitude, &c.CreatedAt)
	return c, mapNotFound(err)
}
