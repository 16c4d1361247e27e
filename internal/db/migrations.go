package db

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log/slog"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// ErrLegacySchema is returned by Migrate when the file holds the tables of
// the old desktop registry, which must be imported instead.
var ErrLegacySchema = errors.New("database uses the old desktop registry schema, import it with 'armeria import-legacy'")

// IsLegacy reports whether db holds the old desktop registry tables.
func IsLegacy(ctx context.Context, db *sql.DB) (bool, error) {
	cols, err := TableColumns(ctx, db, "detentori")
	if err != nil {
		return false, err
	}
	return cols["ID_Detentore"], nil
}

func newMigrator(db *sql.DB) (*migrate.Migrate, error) {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return nil, fmt.Errorf("loading migrations: %w", err)
	}

	drv, err := sqlite.WithInstance(db, &sqlite.Config{})
	if err != nil {
		return nil, fmt.Errorf("creating migration driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, "sqlite", drv)
	if err != nil {
		return nil, fmt.Errorf("creating migrator: %w", err)
	}
	return m, nil
}

// Migrate applies all pending schema migrations. It is idempotent.
// A legacy registry is left untouched and ErrLegacySchema returned.
// The migrator is not closed because closing it would close db.
func Migrate(db *sql.DB) error {
	legacy, err := IsLegacy(context.Background(), db)
	if err != nil {
		return err
	}
	if legacy {
		return ErrLegacySchema
	}

	m, err := newMigrator(db)
	if err != nil {
		return err
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("running migrations: %w", err)
	}

	version, dirty, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return fmt.Errorf("reading schema version: %w", err)
	}
	slog.Debug("schema up to date", "version", version, "dirty", dirty)
	return nil
}

// SchemaVersion reports the currently applied migration version.
func SchemaVersion(db *sql.DB) (uint, bool, error) {
	m, err := newMigrator(db)
	if err != nil {
		return 0, false, err
	}
	version, dirty, err := m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("reading schema version: %w", err)
	}
	return version, dirty, nil
}
