package repository

import (
	"context"

	"workbench-api/internal/note/domain"
)

// Repository defines persistence for notes.
type Repository interface {
	GetByID(ctx context.Context, id string) (*domain.Note, error)
	// ListByAuthor returns the author's notes, newest first. A non-empty search filters by a
	// case-insensitive substring of title, content or tags.
	ListByAuthor(ctx context.Context, authorID, search string) ([]*domain.Note, error)
	Create(ctx context.Context, n *domain.Note) error
	Update(ctx context.Context, n *domain.Note) error
	Delete(ctx context.Context, id string) error
}
