package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"workbench-api/internal/security"
	"workbench-api/internal/session/domain"
)

// PostgresRepository stores one session row per user, keyed by user_id.
type PostgresRepository struct {
	db      *sql.DB
	timeout time.Duration
	now     func() time.Time
}

// NewPostgresRepository returns a session repository that uses the given db for persistence.
func NewPostgresRepository(db *sql.DB, timeout time.Duration) *PostgresRepository {
	return &PostgresRepository{db: db, timeout: timeout, now: time.Now}
}

// Upsert inserts or replaces the user's session in one statement.
func (r *PostgresRepository) Upsert(ctx context.Context, userID, refreshToken string) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	now := r.now().UTC()
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO sessions (user_id, refresh_token_hash, created_at, updated_at)
		VALUES ($1, $2, $3, $3)
		ON CONFLICT (user_id) DO UPDATE
		SET refresh_token_hash = EXCLUDED.refresh_token_hash, updated_at = EXCLUDED.updated_at`,
		userID, security.DigestToken(refreshToken), now)
	return err
}

// Get returns the session for userID, or ErrSessionNotFound.
func (r *PostgresRepository) Get(ctx context.Context, userID string) (*domain.Session, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	var s domain.Session
	err := r.db.QueryRowContext(ctx,
		`SELECT user_id, refresh_token_hash, created_at, updated_at FROM sessions WHERE user_id = $1`, userID).
		Scan(&s.UserID, &s.RefreshTokenHash, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}
	return &s, nil
}

// HasLive reports whether a session row exists for userID.
func (r *PostgresRepository) HasLive(ctx context.Context, userID string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	var ok bool
	err := r.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM sessions WHERE user_id = $1)`, userID).Scan(&ok)
	return ok, err
}

// Delete removes the session for userID. It is idempotent.
func (r *PostgresRepository) Delete(ctx context.Context, userID string) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	_, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE user_id = $1`, userID)
	return err
}

// Ping checks database connectivity.
func (r *PostgresRepository) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	return r.db.PingContext(ctx)
}
