package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"workbench-api/internal/note/domain"
)

const noteColumns = `id, title, content, tags, author_id, created_at, updated_at`

type PostgresRepository struct {
	db      *sql.DB
	timeout time.Duration
}

// NewPostgresRepository returns a note repository that uses the given db for persistence.
// Every call is bounded by timeout.
func NewPostgresRepository(db *sql.DB, timeout time.Duration) *PostgresRepository {
	return &PostgresRepository{db: db, timeout: timeout}
}

// GetByID returns the note for id, or nil if not found or id is not a UUID.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*domain.Note, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, nil
	}
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	n, err := scanNote(r.db.QueryRowContext(ctx, `SELECT `+noteColumns+` FROM notes WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return n, err
}

func (r *PostgresRepository) ListByAuthor(ctx context.Context, authorID, search string) ([]*domain.Note, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := `SELECT ` + noteColumns + ` FROM notes WHERE author_id = $1`
	args := []interface{}{authorID}
	if search = strings.TrimSpace(search); search != "" {
		query += ` AND (title ILIKE $2 OR content ILIKE $2 OR tags::text ILIKE $2)`
		args = append(args, "%"+likeEscaper.Replace(search)+"%")
	}
	query += ` ORDER BY created_at DESC`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	notes := []*domain.Note{}
	for rows.Next() {
		n, err := scanNote(rows)
		if err != nil {
			return nil, err
		}
		notes = append(notes, n)
	}
	return notes, rows.Err()
}

// Create persists the note. The note must have ID set.
func (r *PostgresRepository) Create(ctx context.Context, n *domain.Note) error {
	tags, err := json.Marshal(domain.CleanTags(n.Tags))
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO notes (id, title, content, tags, author_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		n.ID, n.Title, n.Content, tags, n.AuthorID, n.CreatedAt, n.UpdatedAt)
	return err
}

// Update writes the mutable fields of n. The author is never changed.
func (r *PostgresRepository) Update(ctx context.Context, n *domain.Note) error {
	tags, err := json.Marshal(domain.CleanTags(n.Tags))
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	_, err = r.db.ExecContext(ctx,
		`UPDATE notes SET title = $2, content = $3, tags = $4, updated_at = $5 WHERE id = $1`,
		n.ID, n.Title, n.Content, tags, n.UpdatedAt)
	return err
}

func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	_, err := r.db.ExecContext(ctx, `DELETE FROM notes WHERE id = $1`, id)
	return err
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanNote(s scanner) (*domain.Note, error) {
	var (
		n    domain.Note
		tags []byte
	)
	if err := s.Scan(&n.ID, &n.Title, &n.Content, &tags, &n.AuthorID, &n.CreatedAt, &n.UpdatedAt); err != nil {
		return nil, err
	}
	n.Tags = []string{}
	if len(tags) > 0 {
		if err := json.Unmarshal(tags, &n.Tags); err != nil {
			return nil, err
		}
	}
	return &n, nil
}
