package repository

import (
	"context"

	"workbench-api/internal/user/domain"
)

// Repository defines persistence for users (the identity store).
// Lookups return (nil, nil) when no user matches.
type Repository interface {
	GetByID(ctx context.Context, id string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	Create(ctx context.Context, u *domain.User) error
}
