package database

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/golang-migrate/migrate/v4"
	migratepg "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"
)

// Migrate applies every pending migration found in dir of fsys and returns the
// resulting schema version.
func Migrate(db *sqlx.DB, fsys fs.FS, dir string) (uint, error) {
	m, err := newMigrator(db, fsys, dir)
	if err != nil {
		return 0, err
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return 0, fmt.Errorf("migrate up: %w", err)
	}
	return version(m)
}

// MigrateDown rolls back steps migrations.
func MigrateDown(db *sqlx.DB, fsys fs.FS, dir string, steps int) (uint, error) {
	if steps <= 0 {
		return 0, fmt.Errorf("steps must be positive, got %d", steps)
	}
	m, err := newMigrator(db, fsys, dir)
	if err != nil {
		return 0, err
	}

	if err := m.Steps(-steps); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return 0, fmt.Errorf("migrate down: %w", err)
	}
	return version(m)
}

func newMigrator(db *sqlx.DB, fsys fs.FS, dir string) (*migrate.Migrate, error) {
	driver, err := migratepg.WithInstance(db.DB, &migratepg.Config{})
	if err != nil {
		return nil, fmt.Errorf("init postgres driver: %w", err)
	}
	src, err := iofs.New(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("iofs source: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "postgres", driver)
	if err != nil {
		return nil, fmt.Errorf("migrate instance: %w", err)
	}
	return m, nil
}

func version(m *migrate.Migrate) (uint, error) {
	v, dirty, err := m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read schema version: %w", err)
	}
	if dirty {
		log.Warn().Uint("version", v).Msg("Schema is marked dirty")
	}
	return v, nil
}
