// Package store persists reservations and sessions. SQL backends (SQLite,
// Postgres) go through sqlx; JSON-file, Redis and in-memory backends cover
// the remaining deployment shapes.
package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"  // Postgres driver
	_ "modernc.org/sqlite" // Pure-Go SQLite driver

	"github.com/soyeahso/concierge/internal/logging"
)

// Driver names accepted by Open.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// ErrClosed is returned by operations on a closed DB.
var ErrClosed = errors.New("store: database closed")

func init() {
	sqlx.BindDriver(DriverSQLite, sqlx.QUESTION)
}

// DB wraps a SQL connection with migration support.
type DB struct {
	x      *sqlx.DB
	driver string
	log    *logging.Logger
}

// Open opens (or creates) a database and runs migrations. For sqlite the dsn
// is a file path; use ":memory:" for an in-memory database (useful for
// tests). For postgres it is a connection URL.
func Open(driver, dsn string, log *logging.Logger) (*DB, error) {
	var (
		x   *sqlx.DB
		err error
	)
	switch driver {
	case DriverSQLite:
		x, err = openSQLite(dsn)
	case DriverPostgres:
		x, err = sqlx.Connect(DriverPostgres, dsn)
		if err != nil {
			err = fmt.Errorf("connecting to postgres: %w", err)
		}
	default:
		err = fmt.Errorf("unsupported driver %q", driver)
	}
	if err != nil {
		return nil, err
	}

	db := &DB{x: x, driver: driver, log: log.Sub("store")}

	if err := db.migrate(context.Background()); err != nil {
		x.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	db.log.Info().Str("driver", driver).Msg("database opened")
	return db, nil
}

func openSQLite(path string) (*sqlx.DB, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
			return nil, fmt.Errorf("creating db directory: %w", err)
		}
	}

	x, err := sqlx.Open(DriverSQLite, path)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite: %w", err)
	}
	// One connection: writes are serialized and ":memory:" stays a single database.
	x.SetMaxOpenConns(1)

	// WAL mode for better concurrent read performance
	if _, err := x.Exec("PRAGMA journal_mode=WAL"); err != nil {
		x.Close()
		return nil, fmt.Errorf("setting WAL mode: %w", err)
	}
	if _, err := x.Exec("PRAGMA busy_timeout=5000"); err != nil {
		x.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}
	return x, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	db.log.Info().Msg("closing database")
	return db.x.Close()
}

// Driver returns the driver name the database was opened with.
func (db *DB) Driver() string {
	return db.driver
}

// Ping checks the connection.
func (db *DB) Ping(ctx context.Context) error {
	return db.x.PingContext(ctx)
}

// migrate runs all pending migrations.
func (db *DB) migrate(ctx context.Context) error {
	ddl := `CREATE TABLE IF NOT EXISTS schema_migrations (
		version    INTEGER PRIMARY KEY,
		applied_at TEXT NOT NULL
	)`
	if _, err := db.x.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("creating migrations table: %w", err)
	}

	for _, m := range migrations {
		applied, err := db.isMigrationApplied(ctx, m.Version)
		if err != nil {
			return err
		}
		if applied {
			continue
		}

		db.log.Info().Int("version", m.Version).Str("name", m.Name).Msg("applying migration")

		tx, err := db.x.BeginTxx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin migration %d: %w", m.Version, err)
		}

		if _, err := tx.ExecContext(ctx, m.sql(db.driver)); err != nil {
			tx.Rollback()
			return fmt.Errorf("migration %d (%s): %w", m.Version, m.Name, err)
		}

		if _, err := tx.ExecContext(ctx, tx.Rebind("INSERT INTO schema_migrations (version, applied_at) VALUES (?, ?)"),
			m.Version, formatTime(nowUTC())); err != nil {
			tx.Rollback()
			return fmt.Errorf("recording migration %d: %w", m.Version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %d: %w", m.Version, err)
		}
	}

	return nil
}

func (db *DB) isMigrationApplied(ctx context.Context, version int) (bool, error) {
	var count int
	err := db.x.GetContext(ctx, &count, db.x.Rebind("SELECT COUNT(*) FROM schema_migrations WHERE version = ?"), version)
	if err != nil {
		return false, fmt.Errorf("checking migration %d: %w", version, err)
	}
	return count > 0, nil
}
