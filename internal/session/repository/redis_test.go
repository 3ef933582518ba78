package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"workbench-api/internal/security"
)

const testPrefix = "test:session:"

func newRedisRepo(t *testing.T) (*RedisRepository, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	repo := NewRedisRepositoryWithClient(client, RedisOptions{
		KeyPrefix: testPrefix,
		TTL:       time.Hour,
		Timeout:   time.Second,
	})
	return repo, mr
}

func TestRedisRepository_UpsertAndGet(t *testing.T) {
	repo, mr := newRedisRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.Upsert(ctx, "user-1", "refresh-a"))

	s, err := repo.Get(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, "user-1", s.UserID)
	assert.True(t, security.DigestMatches("refresh-a", s.RefreshTokenHash))
	assert.False(t, s.CreatedAt.IsZero())
	assert.Equal(t, time.Hour, mr.TTL(testPrefix+"user-1"))
	assert.NotContains(t, mr.HGet(testPrefix+"user-1", "refresh_token_hash"), "refresh-a")
}

func TestRedisRepository_ZeroTTLUsesRefreshLifetime(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	repo := NewRedisRepositoryWithClient(client, RedisOptions{KeyPrefix: testPrefix})
	ctx := context.Background()

	require.NoError(t, repo.Upsert(ctx, "user-1", "refresh-a"))

	live, err := repo.HasLive(ctx, "user-1")
	require.NoError(t, err)
	assert.True(t, live)
	assert.Equal(t, security.DefaultRefreshTTL, mr.TTL(testPrefix+"user-1"))
}

func TestRedisRepository_UpsertReplacesToken(t *testing.T) {
	repo, _ := newRedisRepo(t)
	ctx := context.Background()
	first := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	repo.now = func() time.Time { return first }
	require.NoError(t, repo.Upsert(ctx, "user-1", "refresh-a"))

	repo.now = func() time.Time { return first.Add(time.Minute) }
	require.NoError(t, repo.Upsert(ctx, "user-1", "refresh-b"))

	s, err := repo.Get(ctx, "user-1")
	require.NoError(t, err)
	assert.False(t, security.DigestMatches("refresh-a", s.RefreshTokenHash), "old token must no longer match")
	assert.True(t, security.DigestMatches("refresh-b", s.RefreshTokenHash))
	assert.Equal(t, first, s.CreatedAt)
	assert.Equal(t, first.Add(time.Minute), s.UpdatedAt)
}

func TestRedisRepository_GetMissing(t *testing.T) {
	repo, _ := newRedisRepo(t)
	_, err := repo.Get(context.Background(), "nobody")
	assert.True(t, errors.Is(err, ErrSessionNotFound))
}

func TestRedisRepository_HasLiveAndDelete(t *testing.T) {
	repo, _ := newRedisRepo(t)
	ctx := context.Background()

	live, err := repo.HasLive(ctx, "user-1")
	require.NoError(t, err)
	assert.False(t, live)

	require.NoError(t, repo.Upsert(ctx, "user-1", "refresh-a"))
	live, err = repo.HasLive(ctx, "user-1")
	require.NoError(t, err)
	assert.True(t, live)

	require.NoError(t, repo.Delete(ctx, "user-1"))
	require.NoError(t, repo.Delete(ctx, "user-1"), "delete must be idempotent")
	live, err = repo.HasLive(ctx, "user-1")
	require.NoError(t, err)
	assert.False(t, live)
}

func TestRedisRepository_Expiry(t *testing.T) {
	repo, mr := newRedisRepo(t)
	ctx := context.Background()
	require.NoError(t, repo.Upsert(ctx, "user-1", "refresh-a"))

	mr.FastForward(time.Hour + time.Second)

	live, err := repo.HasLive(ctx, "user-1")
	require.NoError(t, err)
	assert.False(t, live)
}

func TestRedisRepository_StoreDown(t *testing.T) {
	repo, mr := newRedisRepo(t)
	mr.Close()

	_, err := repo.HasLive(context.Background(), "user-1")
	assert.Error(t, err)
	assert.Error(t, repo.Ping(context.Background()))
}

func TestNewRedisRepository(t *testing.T) {
	mr := miniredis.RunT(t)

	repo, err := NewRedisRepository(context.Background(), RedisOptions{Addr: mr.Addr(), KeyPrefix: testPrefix, TTL: time.Hour})
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })
	assert.NoError(t, repo.Ping(context.Background()))

	_, err = NewRedisRepository(context.Background(), RedisOptions{})
	assert.Error(t, err)
}
