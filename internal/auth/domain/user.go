package domain

import "time"

// User is the wallet account behind an external identity. There is at most
// one active user per (ExternalID, ClientID).
type User struct {
	ID             string
	ExternalID     string
	ClientID       string
	Email          string
	IsActive       bool
	IsTester       bool
	CreatedAt      time.Time
	LastAccessedAt *time.Time
}

// UserChannel is a user joined to one of its client's channels.
type UserChannel struct {
	User    User
	Channel Channel
}

// ServiceConsent is recorded once when a user is provisioned.
type ServiceConsent struct {
	ID        string
	UserID    string
	Latitude  *float64
	Longitude *float64
	CreatedAt time.Time
}
