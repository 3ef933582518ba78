package domain

import "time"

// Session is the single live refresh session of a user.
// RefreshTokenHash is the SHA-256 hex digest of the current refresh token; the raw token is never stored.
type Session struct {
	UserID           string
	RefreshTokenHash string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}
