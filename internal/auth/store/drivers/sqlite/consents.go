package sqlite

import (
	"context"
	"database/sql"

	"github.com/aussiebroadwan/walletauth/internal/auth/domain"
)

type consentsRepo struct{ q querier }

func (r *consentsRepo) CreateConsent(ctx context.Context, c domain.ServiceConsent) error {
	_, err := r.q.ExecContext(ctx,
		`INSERT INTO service_consents (id, user_id, latitude, longitude, created_at) VALUES (?, ?, ?, ?, ?)`,
		c.ID, c.UserID, nullFloat(c.Latitude), nullFloat(c.Longitude), c.CreatedAt.UTC())
	return mapWriteErr("sqlite: create consent", err)
}

func (r *consentsRepo) GetConsentByUserID(ctx context.Context, userID string) (domain.ServiceConsent, error) {
	var (
		c        domain.ServiceConsent
		lat, lng sql.NullFloat64
	)
	err := r.q.QueryRowContext(ctx,
		`SELECT id, user_id, latitude, longitude, created_at FROM service_consents WHERE user_id = ?`, userID).
		Scan(&c.ID, &c.UserID, &lat, &lng, &c.CreatedAt)
	if err != nil {
		return domain.ServiceConsent{}, mapNotFound(err)
	}
	c.Latitude = floatPtr(lat)
	c.Longitude = floatPtr(lng)
	return c, nil
}

func nullFloat(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}

func floatPtr(nf sql.NullFloat64) *float64 {
	if !nf.Valid {
		return nil
	}
	v := nf.Float64
	return &v
}
