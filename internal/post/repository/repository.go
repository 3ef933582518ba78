package repository

import (
	"context"
	"errors"

	"workbench-api/internal/post/domain"
)

// ErrSlugTaken is returned by Create and Update when another post already uses the slug.
var ErrSlugTaken = errors.New("slug already in use")

// Repository defines persistence for posts.
type Repository interface {
	GetByID(ctx context.Context, id string) (*domain.Post, error)
	GetBySlug(ctx context.Context, slug string) (*domain.Post, error)
	// List returns posts newest first.
	List(ctx context.Context, limit, offset int) ([]*domain.Post, error)
	Create(ctx context.Context, p *domain.Post) error
	Update(ctx context.Context, p *domain.Post) error
	Delete(ctx context.Context, id string) error
	IncrementViews(ctx context.Context, id string) error
	// Like increments the like counter of the post with slug and reports whether it exists.
	Like(ctx context.Context, slug string) (bool, error)
}
