package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"workbench-api/internal/post/domain"
)

const postColumns = `id, slug, title, content, description, tags, author_id, likes, views, created_at, updated_at`

// uniqueViolation is the Postgres SQLSTATE for a unique constraint failure.
const uniqueViolation = "23505"

type PostgresRepository struct {
	db      *sql.DB
	timeout time.Duration
}

// NewPostgresRepository returns a post repository that uses the given db for persistence.
// Every call is bounded by timeout.
func NewPostgresRepository(db *sql.DB, timeout time.Duration) *PostgresRepository {
	return &PostgresRepository{db: db, timeout: timeout}
}

// GetByID returns the post for id, or nil if not found or id is not a UUID.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*domain.Post, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, nil
	}
	return r.getOne(ctx, `SELECT `+postColumns+` FROM posts WHERE id = $1`, id)
}

// GetBySlug returns the post for slug, or nil if not found.
func (r *PostgresRepository) GetBySlug(ctx context.Context, slug string) (*domain.Post, error) {
	return r.getOne(ctx, `SELECT `+postColumns+` FROM posts WHERE slug = $1`, slug)
}

func (r *PostgresRepository) getOne(ctx context.Context, query string, arg string) (*domain.Post, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	p, err := scanPost(r.db.QueryRowContext(ctx, query, arg))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return p, err
}

func (r *PostgresRepository) List(ctx context.Context, limit, offset int) ([]*domain.Post, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+postColumns+` FROM posts ORDER BY created_at DESC LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	posts := []*domain.Post{}
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return nil, err
		}
		posts = append(posts, p)
	}
	return posts, rows.Err()
}

// Create persists the post. The post must have ID and Slug set.
func (r *PostgresRepository) Create(ctx context.Context, p *domain.Post) error {
	tags, err := json.Marshal(domain.CleanTags(p.Tags))
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO posts (id, slug, title, content, description, tags, author_id, likes, views, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, 0, 0, $8, $9)`,
		p.ID, p.Slug, p.Title, p.Content, p.Description, tags, p.AuthorID, p.CreatedAt, p.UpdatedAt)
	return mapWriteErr(err)
}

// Update writes the editable fields of p. Author and counters are never changed.
func (r *PostgresRepository) Update(ctx context.Context, p *domain.Post) error {
	tags, err := json.Marshal(domain.CleanTags(p.Tags))
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	_, err = r.db.ExecContext(ctx, `
		UPDATE posts SET slug = $2, title = $3, content = $4, description = $5, tags = $6, updated_at = $7
		WHERE id = $1`,
		p.ID, p.Slug, p.Title, p.Content, p.Description, tags, p.UpdatedAt)
	return mapWriteErr(err)
}

func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	_, err := r.db.ExecContext(ctx, `DELETE FROM posts WHERE id = $1`, id)
	return err
}

func (r *PostgresRepository) IncrementViews(ctx context.Context, id string) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	_, err := r.db.ExecContext(ctx, `UPDATE posts SET views = views + 1 WHERE id = $1`, id)
	return err
}

func (r *PostgresRepository) Like(ctx context.Context, slug string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	res, err := r.db.ExecContext(ctx, `UPDATE posts SET likes = likes + 1 WHERE slug = $1`, slug)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func mapWriteErr(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return ErrSlugTaken
	}
	return err
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanPost(s scanner) (*domain.Post, error) {
	var (
		p    domain.Post
		tags []byte
	)
	err := s.Scan(&p.ID, &p.Slug, &p.Title, &p.Content, &p.Description, &tags, &p.AuthorID,
		&p.Likes, &p.Views, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	p.Tags = []string{}
	if len(tags) > 0 {
		if err := json.Unmarshal(tags, &p.Tags); err != nil {
			return nil, err
		}
	}
	return &p, nil
}
