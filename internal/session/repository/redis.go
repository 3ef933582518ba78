package repository

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"workbench-api/internal/security"
	"workbench-api/internal/session/domain"
)

// RedisOptions configures the Redis session store.
type RedisOptions struct {
	Addr      string
	Password  string
	DB        int
	KeyPrefix string
	// TTL is applied to every session key on upsert. It should equal the refresh token lifetime.
	TTL time.Duration
	// Timeout bounds each store call.
	Timeout time.Duration
}

// RedisRepository keeps one hash per user under KeyPrefix+userID.
type RedisRepository struct {
	client    redis.UniversalClient
	keyPrefix string
	ttl       time.Duration
	timeout   time.Duration
	now       func() time.Time
}

// upsertScript replaces the token digest and update time, keeps the first creation time
// and resets the key expiry. Running it as one script makes the upsert atomic per user.
var upsertScript = redis.NewScript(`
redis.call('HSET', KEYS[1], 'refresh_token_hash', ARGV[1], 'updated_at', ARGV[2])
redis.call('HSETNX', KEYS[1], 'created_at', ARGV[2])
redis.call('PEXPIRE', KEYS[1], ARGV[3])
return 1
`)

// NewRedisRepository connects to Redis and verifies the connection with PING.
func NewRedisRepository(ctx context.Context, opts RedisOptions) (*RedisRepository, error) {
	if opts.Addr == "" {
		return nil, errors.New("redis address is required")
	}
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	pingCtx, cancel := context.WithTimeout(ctx, orDefault(opts.Timeout))
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return NewRedisRepositoryWithClient(client, opts), nil
}

// NewRedisRepositoryWithClient wraps a pre-configured client. Used by tests with miniredis.
func NewRedisRepositoryWithClient(client redis.UniversalClient, opts RedisOptions) *RedisRepository {
	ttl := opts.TTL
	if ttl <= 0 {
		ttl = security.DefaultRefreshTTL
	}
	return &RedisRepository{
		client:    client,
		keyPrefix: opts.KeyPrefix,
		ttl:       ttl,
		timeout:   orDefault(opts.Timeout),
		now:       time.Now,
	}
}

// Close closes the Redis client connection.
func (r *RedisRepository) Close() error {
	return r.client.Close()
}

func (r *RedisRepository) key(userID string) string {
	return r.keyPrefix + userID
}

// Upsert stores the refresh token digest for userID with the configured TTL.
func (r *RedisRepository) Upsert(ctx context.Context, userID, refreshToken string) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	now := r.now().UTC().UnixNano()
	err := upsertScript.Run(ctx, r.client, []string{r.key(userID)},
		security.DigestToken(refreshToken), now, r.ttl.Milliseconds()).Err()
	if err != nil {
		return fmt.Errorf("failed to upsert session: %w", err)
	}
	return nil
}

// Get returns the session for userID, or ErrSessionNotFound.
func (r *RedisRepository) Get(ctx context.Context, userID string) (*domain.Session, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	fields, err := r.client.HGetAll(ctx, r.key(userID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	hash, ok := fields["refresh_token_hash"]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return &domain.Session{
		UserID:           userID,
		RefreshTokenHash: hash,
		CreatedAt:        parseUnixNano(fields["created_at"]),
		UpdatedAt:        parseUnixNano(fields["updated_at"]),
	}, nil
}

// HasLive reports whether the session key exists.
func (r *RedisRepository) HasLive(ctx context.Context, userID string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	n, err := r.client.Exists(ctx, r.key(userID)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check session: %w", err)
	}
	return n > 0, nil
}

// Delete removes the session key. A missing key is not an error.
func (r *RedisRepository) Delete(ctx context.Context, userID string) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	if err := r.client.Del(ctx, r.key(userID)).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// Ping checks Redis connectivity (health check).
func (r *RedisRepository) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	return r.client.Ping(ctx).Err()
}

func parseUnixNano(s string) time.Time {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return time.Time{}
	}
	return time.Unix(0, n).UTC()
}

func orDefault(d time.Duration) time.Duration {
	if d <= 0 {
		return 3 * time.Second
	}
	return d
}
