package sqlite

import (
	"context"
	"database/sql"
	_ "embed"

	"github.com/pkg/errors"

	// Import the SQLite driver.
	_ "modernc.org/sqlite"

	"github.com/hrygo/socialbot/internal/profile"
	"github.com/hrygo/socialbot/store"
)

// SQLite is supported on a best-effort basis for development and testing.
// It carries the same tables as postgres but has no change-notification
// primitive, so the realtime event bus requires the postgres driver or the
// websocket feed.

//go:embed migration/schema.sql
var migrationSchema string

// ErrChangeFeedUnsupported is returned when a change feed is requested from
// a sqlite-backed instance.
var ErrChangeFeedUnsupported = errors.New("sqlite driver does not support change feeds")

type DB struct {
	db      *sql.DB
	profile *profile.Profile
}

// NewDB opens the sqlite database at the DSN path.
func NewDB(profile *profile.Profile) (store.Driver, error) {
	if profile.DSN == "" {
		return nil, errors.New("dsn required")
	}

	// WAL journal mode and a busy timeout keep the single-writer model usable;
	// the pool is pinned to one connection, which is optimal for WAL.
	sqliteDB, err := sql.Open("sqlite", profile.DSN+"?_pragma=foreign_keys(0)&_pragma=busy_timeout(10000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open db with dsn: %s", profile.DSN)
	}

	sqliteDB.SetMaxOpenConns(1)
	sqliteDB.SetMaxIdleConns(1)
	sqliteDB.SetConnMaxLifetime(0)
	sqliteDB.SetConnMaxIdleTime(0)

	driver := DB{db: sqliteDB, profile: profile}

	return &driver, nil
}

func (d *DB) GetDB() *sql.DB {
	return d.db
}

func (d *DB) Close() error {
	return d.db.Close()
}

// Migrate applies the embedded schema; all statements are idempotent.
func (d *DB) Migrate(ctx context.Context) error {
	if _, err := d.db.ExecContext(ctx, migrationSchema); err != nil {
		return errors.Wrap(err, "failed to apply schema")
	}
	return nil
}
