package repository

import (
	"context"
	"errors"

	"workbench-api/internal/session/domain"
)

// ErrSessionNotFound is returned by Get when the user has no live session.
var ErrSessionNotFound = errors.New("session not found")

// Repository defines persistence for refresh sessions. There is at most one session per user.
type Repository interface {
	// Upsert stores the digest of refreshToken as the user's session, replacing any previous one atomically.
	Upsert(ctx context.Context, userID, refreshToken string) error
	// Get returns the user's session or ErrSessionNotFound.
	Get(ctx context.Context, userID string) (*domain.Session, error)
	// HasLive reports whether the user currently has a session.
	HasLive(ctx context.Context, userID string) (bool, error)
	// Delete removes the user's session. Deleting a missing session is not an error.
	Delete(ctx context.Context, userID string) error
	// Ping checks the backing store is reachable.
	Ping(ctx context.Context) error
}
