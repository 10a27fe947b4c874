package database

import (
	"database/sql"
	"errors"
	"fmt"
	"os"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/rs/zerolog"
)

// Migrator applies schema migrations to the content store. The upstream
// store is crawler-owned and never migrated by this service.
type Migrator struct {
	m      *migrate.Migrate
	sqlDB  *sql.DB // database/sql facade over the pgx pool, closed with the migrator
	store  string
	logger zerolog.Logger
}

// NewMigrator wires a migrator to the given store's pool and a directory of
// SQL migration files.
func NewMigrator(db *DB, migrationsPath string, logger zerolog.Logger) (*Migrator, error) {
	if db == nil {
		return nil, fmt.Errorf("database is required")
	}
	if db.pool == nil {
		return nil, fmt.Errorf("database pool not initialized")
	}
	if migrationsPath == "" {
		return nil, fmt.Errorf("migrations path is required")
	}
	if _, err := os.Stat(migrationsPath); err != nil {
		return nil, fmt.Errorf("migrations path validation failed: %w", err)
	}

	sqlDB := stdlib.OpenDBFromPool(db.pool)

	driver, err := postgres.WithInstance(sqlDB, &postgres.Config{
		MigrationsTable: "schema_migrations",
	})
	if err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("failed to create postgres driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance("file://"+migrationsPath, "postgres", driver)
	if err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("failed to create migrator: %w", err)
	}

	return &Migrator{
		m:      m,
		sqlDB:  sqlDB,
		store:  db.name,
		logger: logger.With().Str("store", db.name).Logger(),
	}, nil
}

// Up applies every pending migration.
func (m *Migrator) Up() error {
	m.logger.Info().Msg("applying schema migrations")

	switch err := m.m.Up(); {
	case err == nil:
		m.logger.Info().Msg("schema migrations applied")
		return nil
	case errors.Is(err, migrate.ErrNoChange):
		m.logger.Info().Msg("schema already current, nothing to apply")
		return nil
	default:
		return fmt.Errorf("apply migrations: %w", err)
	}
}

// Down rolls every migration back, emptying the content store schema.
func (m *Migrator) Down() error {
	m.logger.Warn().Msg("rolling back all schema migrations")

	if err := m.m.Down(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			m.logger.Info().Msg("no applied migrations to roll back")
			return nil
		}
		return fmt.Errorf("roll back migrations: %w", err)
	}

	m.logger.Info().Msg("schema migrations rolled back")
	return nil
}

// Steps migrates n versions forward (n > 0) or backward (n < 0).
func (m *Migrator) Steps(n int) error {
	m.logger.Info().Int("steps", n).Msg("stepping schema version")

	switch err := m.m.Steps(n); {
	case err == nil:
		return nil
	case errors.Is(err, migrate.ErrNoChange):
		m.logger.Info().Msg("schema already current, nothing to apply")
		return nil
	case errors.Is(err, os.ErrNotExist):
		// Stepping past the last migration file in that direction.
		m.logger.Info().Msg("no further migrations in that direction")
		return nil
	default:
		return fmt.Errorf("step migrations: %w", err)
	}
}

// Version reports the current schema version and whether it is dirty.
func (m *Migrator) Version() (uint, bool, error) {
	return m.m.Version()
}

// Force overwrites the recorded schema version without running any
// migration, to recover from a dirty version record.
func (m *Migrator) Force(version int) error {
	m.logger.Warn().Int("version", version).Msg("forcing schema version record")
	return m.m.Force(version)
}

// Close releases the migration source and the pool facade.
func (m *Migrator) Close() error {
	srcErr, dbErr := m.m.Close()

	if m.sqlDB != nil {
		if err := m.sqlDB.Close(); err != nil && dbErr == nil {
			dbErr = err
		}
	}

	switch {
	case srcErr != nil && dbErr != nil:
		return fmt.Errorf("close migrator: source: %v, database: %w", srcErr, dbErr)
	case srcErr != nil:
		return fmt.Errorf("close migration source: %w", srcErr)
	case dbErr != nil:
		return fmt.Errorf("close migration database handle: %w", dbErr)
	}
	return nil
}

// DropAll drops every object in the store's schema. Test teardown only.
func (m *Migrator) DropAll() error {
	m.logger.Warn().Str("store", m.store).Msg("dropping all schema objects")
	return m.m.Drop()
}
