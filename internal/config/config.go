// Package config loads and validates app config from env and an optional .env file using Viper.
package config

import (
	"errors"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Session backends supported by SESSION_BACKEND.
const (
	SessionBackendPostgres = "postgres"
	SessionBackendRedis    = "redis"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	// HTTPAddr is the address the HTTP API listens on (e.g. :8080).
	HTTPAddr string `mapstructure:"HTTP_ADDR"`
	// GRPCAddr is the address the gRPC health server listens on (e.g. :9090). Empty disables it.
	GRPCAddr string `mapstructure:"GRPC_ADDR"`
	// DatabaseURL is the Postgres DSN for users, sessions, resources and audit logs.
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	// JWTAccessSecret signs access tokens (HS256). Required.
	JWTAccessSecret string `mapstructure:"JWT_ACCESS_SECRET"`
	// JWTRefreshSecret signs refresh tokens (HS256). Required and must differ from JWTAccessSecret.
	JWTRefreshSecret string `mapstructure:"JWT_REFRESH_SECRET"`
	// JWTAccessTTL is the access token lifetime (e.g. "20m").
	JWTAccessTTL string `mapstructure:"JWT_ACCESS_TTL"`
	// JWTRefreshTTL is the refresh token lifetime (e.g. "168h").
	JWTRefreshTTL string `mapstructure:"JWT_REFRESH_TTL"`
	// BcryptCost is the bcrypt cost factor (4–31); default 10.
	BcryptCost int `mapstructure:"BCRYPT_COST"`

	// SessionBackend selects the session store: "postgres" (default) or "redis".
	SessionBackend string `mapstructure:"SESSION_BACKEND"`
	// RedisAddr is host:port of the Redis server when SessionBackend is redis.
	RedisAddr string `mapstructure:"REDIS_ADDR"`
	// RedisPassword is the optional Redis AUTH password.
	RedisPassword string `mapstructure:"REDIS_PASSWORD"`
	// RedisDB is the Redis logical database number.
	RedisDB int `mapstructure:"REDIS_DB"`
	// RedisKeyPrefix namespaces session keys (default "workbench:session:").
	RedisKeyPrefix string `mapstructure:"REDIS_KEY_PREFIX"`
	// StoreTimeout bounds every session/identity store call (e.g. "3s").
	StoreTimeout string `mapstructure:"STORE_TIMEOUT"`

	// RegistrationEnabled turns on POST /auth/register. Off by default.
	RegistrationEnabled bool `mapstructure:"REGISTRATION_ENABLED"`

	// LogLevel is a logrus level name (debug, info, warn, error).
	LogLevel string `mapstructure:"LOG_LEVEL"`
	// LogFormat is "text" or "json".
	LogFormat string `mapstructure:"LOG_FORMAT"`
	// Env is the application environment (e.g. "development", "production").
	Env string `mapstructure:"APP_ENV"`

	// OTLPEndpoint is the OTLP gRPC collector endpoint. Empty disables export.
	OTLPEndpoint string `mapstructure:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	// OTLPInsecure forces plaintext to the collector even for https endpoints.
	OTLPInsecure bool `mapstructure:"OTEL_EXPORTER_OTLP_INSECURE"`
	// ServiceName is the OTel service.name resource attribute.
	ServiceName string `mapstructure:"OTEL_SERVICE_NAME"`
}

// Load reads .env (if present), then builds and validates Config from the environment via Viper.
// Missing .env is ignored (e.g. in CI). Env vars override .env. Returns an error if required fields are invalid.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig() // ignore ErrConfigFileNotFound

	v.AutomaticEnv()

	v.SetDefault("HTTP_ADDR", ":8080")
	v.SetDefault("GRPC_ADDR", ":9090")
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("JWT_ACCESS_SECRET", "")
	v.SetDefault("JWT_REFRESH_SECRET", "")
	v.SetDefault("JWT_ACCESS_TTL", "20m")
	v.SetDefault("JWT_REFRESH_TTL", "168h") // 7d
	v.SetDefault("BCRYPT_COST", 10)
	v.SetDefault("SESSION_BACKEND", SessionBackendPostgres)
	v.SetDefault("REDIS_ADDR", "localhost:6379")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("REDIS_KEY_PREFIX", "workbench:session:")
	v.SetDefault("STORE_TIMEOUT", "3s")
	v.SetDefault("REGISTRATION_ENABLED", false)
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "text")
	v.SetDefault("APP_ENV", "")
	v.SetDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	v.SetDefault("OTEL_EXPORTER_OTLP_INSECURE", false)
	v.SetDefault("OTEL_SERVICE_NAME", "workbench-api")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if cfg.HTTPAddr == "" {
		return nil, errors.New("config: HTTP_ADDR must be set")
	}
	if cfg.JWTAccessSecret == "" || cfg.JWTRefreshSecret == "" {
		return nil, errors.New("config: JWT_ACCESS_SECRET and JWT_REFRESH_SECRET must be set")
	}
	if cfg.JWTAccessSecret == cfg.JWTRefreshSecret {
		return nil, errors.New("config: JWT_ACCESS_SECRET and JWT_REFRESH_SECRET must differ")
	}

	if cfg.BcryptCost == 0 {
		cfg.BcryptCost = 10
	}
	if cfg.BcryptCost < 4 || cfg.BcryptCost > 31 {
		return nil, errors.New("config: BCRYPT_COST must be between 4 and 31")
	}

	cfg.SessionBackend = strings.ToLower(strings.TrimSpace(cfg.SessionBackend))
	switch cfg.SessionBackend {
	case SessionBackendPostgres:
	case SessionBackendRedis:
		if cfg.RedisAddr == "" {
			return nil, errors.New("config: REDIS_ADDR must be set when SESSION_BACKEND=redis")
		}
	default:
		return nil, errors.New("config: SESSION_BACKEND must be postgres or redis")
	}

	return &cfg, nil
}

// AccessTTL parses JWTAccessTTL as a time.Duration. Returns 20m if unset or invalid.
func (c *Config) AccessTTL() time.Duration {
	return parsePositive(c.JWTAccessTTL, 20*time.Minute)
}

// RefreshTTL parses JWTRefreshTTL as a time.Duration. Returns 168h if unset or invalid.
func (c *Config) RefreshTTL() time.Duration {
	return parsePositive(c.JWTRefreshTTL, 168*time.Hour)
}

// StoreCallTimeout parses StoreTimeout. Returns 3s if unset or invalid.
func (c *Config) StoreCallTimeout() time.Duration {
	return parsePositive(c.StoreTimeout, 3*time.Second)
}

// IsProduction reports whether APP_ENV is production.
func (c *Config) IsProduction() bool {
	return c != nil && strings.EqualFold(c.Env, "production")
}

func parsePositive(s string, def time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return def
	}
	return d
}
