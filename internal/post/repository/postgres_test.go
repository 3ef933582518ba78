package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"workbench-api/internal/post/domain"
)

const postID = "3f1c2b7a-5d4e-4c8b-a9f0-6e2d1c3b5a79"

func newMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewPostgresRepository(db, time.Second), mock
}

func postRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "slug", "title", "content", "description", "tags", "author_id",
		"likes", "views", "created_at", "updated_at"})
}

func TestGetBySlug(t *testing.T) {
	repo, mock := newMock(t)
	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("FROM posts WHERE slug = $1")).
		WithArgs("hello-deadbeef").
		WillReturnRows(postRows().AddRow(postID, "hello-deadbeef", "Hello", "body", "desc", []byte(`["go"]`),
			"user-1", int64(2), int64(7), now, now))

	p, err := repo.GetBySlug(context.Background(), "hello-deadbeef")
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, int64(7), p.Views)
	assert.Equal(t, []string{"go"}, p.Tags)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetByID_Missing(t *testing.T) {
	repo, mock := newMock(t)
	mock.ExpectQuery(regexp.QuoteMeta("FROM posts WHERE id = $1")).WithArgs(postID).WillReturnRows(postRows())

	p, err := repo.GetByID(context.Background(), postID)
	assert.NoError(t, err)
	assert.Nil(t, p)

	p, err = repo.GetByID(context.Background(), "hello-deadbeef")
	assert.NoError(t, err)
	assert.Nil(t, p)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestList(t *testing.T) {
	repo, mock := newMock(t)
	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY created_at DESC LIMIT $1 OFFSET $2")).
		WithArgs(10, 20).
		WillReturnRows(postRows())

	posts, err := repo.List(context.Background(), 10, 20)
	require.NoError(t, err)
	assert.NotNil(t, posts)
	assert.Empty(t, posts)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreate_SlugTaken(t *testing.T) {
	repo, mock := newMock(t)
	now := time.Now()
	p := &domain.Post{ID: postID, Slug: "s", Title: "Hello", Content: "body", Description: "desc", AuthorID: "user-1",
		CreatedAt: now, UpdatedAt: now}
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO posts")).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "posts_slug_key"})

	err := repo.Create(context.Background(), p)
	assert.ErrorIs(t, err, ErrSlugTaken)
}

func TestUpdate(t *testing.T) {
	repo, mock := newMock(t)
	now := time.Now()
	p := &domain.Post{ID: postID, Slug: "s", Title: "Hello", Content: "body", Description: "desc", UpdatedAt: now}
	mock.ExpectExec(regexp.QuoteMeta("UPDATE posts SET slug = $2")).
		WithArgs(postID, "s", "Hello", "body", "desc", []byte(`[]`), now).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Update(context.Background(), p))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCounters(t *testing.T) {
	repo, mock := newMock(t)
	mock.ExpectExec(regexp.QuoteMeta("SET views = views + 1")).WithArgs(postID).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("SET likes = likes + 1")).WithArgs("hello").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("SET likes = likes + 1")).WithArgs("nope").WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, repo.IncrementViews(context.Background(), postID))
	ok, err := repo.Like(context.Background(), "hello")
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = repo.Like(context.Background(), "nope")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDelete(t *testing.T) {
	repo, mock := newMock(t)
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM posts WHERE id = $1")).WithArgs(postID).WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Delete(context.Background(), postID))
	assert.NoError(t, mock.ExpectationsWereMet())
}
