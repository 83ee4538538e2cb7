package store

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"strings"

	"github.com/mattn/go-sqlite3"

	"github.com/roach88/compgroup/internal/ir"
)

//go:embed schema.sql
var schemaSQL string

// Schema version tracking:
// 0 - Initial schema (pre-migration)
// 1 - Added index on ts_derived_data.computation_id
const currentSchemaVersion = 1

// DatabaseTypeHDB is the only database type that supports group computations.
const DatabaseTypeHDB = "hdb"

// Store is the SQLite-backed computation, group and time-series metadata
// store.
type Store struct {
	db *sql.DB
}

// Open opens the metadata database at path, creating it if needed, and
// brings its schema up to date. The connection runs with WAL journaling,
// a 5s busy timeout and foreign keys enforced; the last one is what turns
// deleting a computation with derived data into ir.ErrReferentialConflict.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open store %s: %w", path, err)
	}
	// foreign_keys is per connection, so the pool holds exactly one.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	for _, step := range []struct {
		name string
		fn   func(*sql.DB) error
	}{
		{"connect", func(db *sql.DB) error { return db.Ping() }},
		{"pragmas", applyPragmas},
		{"schema", applySchema},
	} {
		if err := step.fn(db); err != nil {
			db.Close()
			return nil, fmt.Errorf("open store %s: %s: %w", path, step.name, err)
		}
	}
	return &Store{db: db}, nil
}

// Close releases the connection.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// DatabaseType returns the type recorded in tsdb_properties.
func (s *Store) DatabaseType(ctx context.Context) (string, error) {
	var t string
	err := s.db.QueryRowContext(ctx,
		`SELECT prop_value FROM tsdb_properties WHERE prop_name = 'db_type'`).Scan(&t)
	if err != nil {
		return "", fmt.Errorf("read database type: %w", notFound(err))
	}
	return t, nil
}

// SetDatabaseType overwrites the recorded database type.
func (s *Store) SetDatabaseType(ctx context.Context, t string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO tsdb_properties (prop_name, prop_value) VALUES ('db_type', ?)
		ON CONFLICT(prop_name) DO UPDATE SET prop_value = excluded.prop_value
	`, t)
	if err != nil {
		return fmt.Errorf("write database type: %w", err)
	}
	return nil
}

// SupportsGroupComputations reports whether the database type can hold
// group computations.
func (s *Store) SupportsGroupComputations(ctx context.Context) (bool, error) {
	t, err := s.DatabaseType(ctx)
	if err != nil {
		return false, err
	}
	return strings.EqualFold(t, DatabaseTypeHDB), nil
}

// applyPragmas sets required SQLite configuration.
var pragmas = []string{
	"PRAGMA journal_mode = WAL",
	"PRAGMA synchronous = NORMAL",
	"PRAGMA busy_timeout = 5000",
	"PRAGMA foreign_keys = ON",
}

func applyPragmas(db *sql.DB) error {
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("%s: %w", pragma, err)
		}
	}
	return nil
}

func applySchema(db *sql.DB) error {
	if _, err := db.Exec(schemaSQL); err != nil {
		return err
	}
	return runMigrations(db)
}

// runMigrations brings a database recorded at an older user_version up to
// currentSchemaVersion.
func runMigrations(db *sql.DB) error {
	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("read user_version: %w", err)
	}
	if version < 1 {
		if err := migrateToV1(db); err != nil {
			return err
		}
	}
	if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion)); err != nil {
		return fmt.Errorf("write user_version: %w", err)
	}
	return nil
}

// migrateToV1 adds the derived-data lookup index for databases created
// before it was part of schema.sql.
func migrateToV1(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_derived_comp
		ON ts_derived_data(computation_id)
	`)
	if err != nil {
		return fmt.Errorf("migrate to v1: %w", err)
	}
	return nil
}

// pragma reads the current value of a pragma.
func (s *Store) pragma(name string) (string, error) {
	var value string
	if err := s.db.QueryRow("PRAGMA " + name).Scan(&value); err != nil {
		return "", fmt.Errorf("read pragma %s: %w", name, err)
	}
	return value, nil
}

// notFound maps sql.ErrNoRows to ir.ErrNotFound.
func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ir.ErrNotFound
	}
	return err
}

// isForeignKeyViolation reports whether err is SQLite refusing a statement
// because of a foreign key constraint.
func isForeignKeyViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintForeignKey
	}
	return false
}
