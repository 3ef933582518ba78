// Package db opens the Postgres pool shared by every repository.
package db

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/sirupsen/logrus"
)

// ErrEmptyDSN is returned when no DSN is configured.
var ErrEmptyDSN = errors.New("db: DATABASE_URL is not set")

// Open opens a Postgres connection using the given DSN and pings it. Caller must call Close when done.
func Open(dsn string) (*sql.DB, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, ErrEmptyDSN
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxIdleTime(5 * time.Minute)
	return db, nil
}

// RetryOptions bounds OpenWithRetry.
type RetryOptions struct {
	MaxTries        uint
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

func (o RetryOptions) withDefaults() RetryOptions {
	if o.MaxTries == 0 {
		o.MaxTries = 10
	}
	if o.InitialInterval <= 0 {
		o.InitialInterval = 500 * time.Millisecond
	}
	if o.MaxInterval <= 0 {
		o.MaxInterval = 10 * time.Second
	}
	return o
}

// OpenWithRetry calls Open with exponential backoff until it succeeds, ctx is done or MaxTries is reached.
// An empty DSN fails immediately.
func OpenWithRetry(ctx context.Context, dsn string, opts RetryOptions, log logrus.FieldLogger) (*sql.DB, error) {
	return openWithRetry(ctx, func() (*sql.DB, error) { return Open(dsn) }, opts, log)
}

func openWithRetry(ctx context.Context, open func() (*sql.DB, error), opts RetryOptions, log logrus.FieldLogger) (*sql.DB, error) {
	opts = opts.withDefaults()
	if log == nil {
		log = logrus.StandardLogger()
	}

	expBackoff := backoff.NewExponentialBackOff()
	expBackoff.InitialInterval = opts.InitialInterval
	expBackoff.MaxInterval = opts.MaxInterval
	expBackoff.Reset()

	attempt := 0
	operation := func() (*sql.DB, error) {
		attempt++
		db, err := open()
		if errors.Is(err, ErrEmptyDSN) {
			return nil, backoff.Permanent(err)
		}
		return db, err
	}
	return backoff.Retry(ctx, operation,
		backoff.WithBackOff(expBackoff),
		backoff.WithMaxTries(opts.MaxTries),
		backoff.WithNotify(func(err error, next time.Duration) {
			log.WithError(err).WithFields(logrus.Fields{"attempt": attempt, "retry_in": next}).
				Warn("db: connect failed, retrying")
		}),
	)
}
