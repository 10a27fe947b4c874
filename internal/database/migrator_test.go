package database

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMigrator_Validation(t *testing.T) {
	logger := zerolog.Nop()

	t.Run("fails with nil database", func(t *testing.T) {
		migrator, err := NewMigrator(nil, "/some/path", logger)
		assert.Error(t, err)
		assert.Nil(t, migrator)
		assert.Contains(t, err.Error(), "database is required")
	})

	t.Run("fails with nil pool", func(t *testing.T) {
		migrator, err := NewMigrator(&DB{pool: nil}, "/some/path", logger)
		assert.Error(t, err)
		assert.Nil(t, migrator)
		assert.Contains(t, err.Error(), "database pool not initialized")
	})

	t.Run("fails with empty migrations path", func(t *testing.T) {
		db := setupTestDB(t)
		if db == nil {
			t.Skip("Skipping: cannot connect to database")
		}
		defer db.Close()

		migrator, err := NewMigrator(db, "", logger)
		assert.Error(t, err)
		assert.Nil(t, migrator)
		assert.Contains(t, err.Error(), "migrations path is required")
	})

	t.Run("fails with missing migrations directory", func(t *testing.T) {
		if testing.Short() {
			t.Skip("Skipping integration test in short mode")
		}

		db := setupTestDB(t)
		if db == nil {
			t.Skip("Skipping: cannot connect to database")
		}
		defer db.Close()

		migrator, err := NewMigrator(db, "/nonexistent/path", logger)
		assert.Error(t, err)
		assert.Nil(t, migrator)
		assert.Contains(t, err.Error(), "migrations path validation failed")
	})
}

// newTestMigrator connects a migrator to the test content store, skipping
// when no database is reachable.
func newTestMigrator(t *testing.T) *Migrator {
	t.Helper()

	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	db := setupTestDB(t)
	if db == nil {
		t.Skip("Skipping: cannot connect to database")
	}
	t.Cleanup(db.Close)

	migrator, err := NewMigrator(db, contentMigrationsDir(t), zerolog.Nop())
	require.NoError(t, err)
	return migrator
}

func TestMigrator_UpAndVersion(t *testing.T) {
	migrator := newTestMigrator(t)
	defer migrator.Close()

	// Up is a no-op when the schema is already current; both outcomes are
	// valid depending on the test database's state.
	require.NoError(t, migrator.Up())

	version, dirty, err := migrator.Version()
	require.NoError(t, err)
	assert.False(t, dirty, "schema must not be left dirty")
	assert.GreaterOrEqual(t, version, uint(1))
}

func TestMigrator_StepsPastLatestIsNoop(t *testing.T) {
	migrator := newTestMigrator(t)
	defer migrator.Close()

	require.NoError(t, migrator.Up())
	assert.NoError(t, migrator.Steps(1), "stepping past the newest migration must not fail")
}

func TestMigrator_ForceCurrentVersion(t *testing.T) {
	migrator := newTestMigrator(t)
	defer migrator.Close()

	require.NoError(t, migrator.Up())

	version, _, err := migrator.Version()
	require.NoError(t, err)
	assert.NoError(t, migrator.Force(int(version)))
}

func TestMigrator_Close(t *testing.T) {
	migrator := newTestMigrator(t)
	assert.NoError(t, migrator.Close())
}

// contentMigrationsDir locates the migrations directory relative to this
// package, skipping the test when the checkout does not carry it.
func contentMigrationsDir(t *testing.T) string {
	t.Helper()

	cwd, err := os.Getwd()
	require.NoError(t, err)

	dir := filepath.Join(cwd, "..", "..", "migrations")
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		t.Skipf("Skipping test: migrations directory not found at %s", dir)
	}
	return dir
}
