package storage

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	migratedb "github.com/golang-migrate/migrate/v4/database"
	migratepg "github.com/golang-migrate/migrate/v4/database/postgres"
	migratelite "github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/lib/pq"           // PostgreSQL driver
	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

//go:embed migrations
var migrationsFS embed.FS

// Dialect names a supported database/sql driver.
type Dialect string

const (
	Postgres Dialect = "postgres"
	SQLite   Dialect = "sqlite3"
)

// Connection describes how to reach the publication store.
type Connection struct {
	Dialect     Dialect
	DSN         string
	PingTimeout time.Duration
}

// ParseDialect validates a driver name.
func ParseDialect(name string) (Dialect, error) {
	switch Dialect(name) {
	case Postgres, "":
		return Postgres, nil
	case SQLite, "sqlite":
		return SQLite, nil
	default:
		return "", fmt.Errorf("unsupported database driver %q", name)
	}
}

// Open connects and pings the database. SQLite is limited to one connection
// so concurrent writers queue instead of failing with SQLITE_BUSY.
func Open(ctx context.Context, conn Connection) (*sql.DB, error) {
	db, err := sql.Open(string(conn.Dialect), conn.DSN)
	if err != nil {
		return nil, classify("open database", err)
	}

	if conn.Dialect == SQLite {
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(4)
		db.SetConnMaxIdleTime(5 * time.Minute)
	}

	timeout := conn.PingTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, classify("ping database", err)
	}

	return db, nil
}

// Migrate applies pending migrations on a dedicated connection and returns the schema version.
func Migrate(ctx context.Context, conn Connection) (uint, error) {
	db, err := Open(ctx, conn)
	if err != nil {
		return 0, err
	}

	var driver migratedb.Driver
	switch conn.Dialect {
	case SQLite:
		driver, err = migratelite.WithInstance(db, &migratelite.Config{})
	default:
		driver, err = migratepg.WithInstance(db, &migratepg.Config{})
	}
	if err != nil {
		_ = db.Close()
		return 0, classify("create migration driver", err)
	}

	src, err := iofs.New(migrationsFS, "migrations/"+string(conn.Dialect))
	if err != nil {
		_ = db.Close()
		return 0, fmt.Errorf("load migrations: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, string(conn.Dialect), driver)
	if err != nil {
		_ = db.Close()
		return 0, classify("create migrator", err)
	}
	// Close releases both the source and the dedicated database handle.
	defer func() { _, _ = m.Close() }()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return 0, classify("run migrations", err)
	}

	version, _, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return 0, classify("read migration version", err)
	}
	return version, nil
}
