// Package migrate runs database migrations from embedded SQL files using golang-migrate.
package migrate

import (
	"errors"
	"fmt"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"workbench-api/internal/db"
)

// Directions accepted by Run.
const (
	Up   = "up"
	Down = "down"
)

// Result reports the schema state after Run.
type Result struct {
	// Changed is false when the schema was already at the target.
	Changed bool
	// Version is the applied migration version; zero when none is applied.
	Version uint
	Dirty   bool
}

// Run applies all migrations in direction ("up" or "down") against dsn.
// Being already at the target is not an error.
func Run(dsn string, direction string) (Result, error) {
	if strings.TrimSpace(dsn) == "" {
		return Result{}, db.ErrEmptyDSN
	}
	if direction != Up && direction != Down {
		return Result{}, fmt.Errorf("direction must be up or down, got %q", direction)
	}

	sourceDriver, err := iofs.New(db.MigrationFS, "migrations")
	if err != nil {
		return Result{}, fmt.Errorf("migrate source: %w", err)
	}

	m, err := migrate.NewWithSourceInstance("iofs", sourceDriver, dsn)
	if err != nil {
		return Result{}, fmt.Errorf("migrate: %w", err)
	}
	defer func() { _, _ = m.Close() }()

	if direction == Up {
		err = m.Up()
	} else {
		err = m.Down()
	}
	res := Result{Changed: true}
	if errors.Is(err, migrate.ErrNoChange) {
		res.Changed = false
	} else if err != nil {
		return Result{}, err
	}

	res.Version, res.Dirty, err = m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return res, nil
	}
	return res, err
}
