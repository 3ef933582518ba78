// seed creates a development user for local testing, since registration is disabled by default.
// Idempotent: does nothing if dev@example.com already exists.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"workbench-api/internal/config"
	"workbench-api/internal/db"
	"workbench-api/internal/platform/logging"
	"workbench-api/internal/security"
	userdomain "workbench-api/internal/user/domain"
	userrepo "workbench-api/internal/user/repository"
)

const (
	devUserEmail = "dev@example.com"
	devUsername  = "dev"
	devPassword  = "password123"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}
	log := logging.New(cfg.LogLevel, cfg.LogFormat)

	conn, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		log.WithError(err).Fatal("seed: db")
	}
	defer conn.Close()

	users := userrepo.NewPostgresRepository(conn, cfg.StoreCallTimeout())
	created, err := seedDevUser(context.Background(), users, security.NewHasher(cfg.BcryptCost))
	if err != nil {
		log.WithError(err).Fatal("seed: failed")
	}
	entry := log.WithFields(logrus.Fields{"email": devUserEmail})
	if !created {
		entry.Info("seed: already applied, skipping")
		return
	}
	entry.Info("seed: created dev user")
}

type userStore interface {
	GetByEmail(ctx context.Context, email string) (*userdomain.User, error)
	Create(ctx context.Context, u *userdomain.User) error
}

// seedDevUser creates the dev user unless it exists and reports whether it did.
func seedDevUser(ctx context.Context, users userStore, hasher *security.Hasher) (bool, error) {
	existing, err := users.GetByEmail(ctx, devUserEmail)
	if err != nil {
		return false, fmt.Errorf("seed check: %w", err)
	}
	if existing != nil {
		return false, nil
	}

	hash, err := hasher.Hash([]byte(devPassword))
	if err != nil {
		return false, fmt.Errorf("hash password: %w", err)
	}
	now := time.Now().UTC()
	u := &userdomain.User{
		ID:           uuid.NewString(),
		Email:        devUserEmail,
		Username:     devUsername,
		PasswordHash: hash,
		Roles:        []string{},
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := u.Validate(); err != nil {
		return false, err
	}
	if err := users.Create(ctx, u); err != nil {
		if errors.Is(err, userrepo.ErrEmailTaken) {
			return false, nil
		}
		return false, fmt.Errorf("create user: %w", err)
	}
	return true, nil
}
