package database

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"strconv"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/mattn/go-sqlite3"
	"github.com/pressly/goose/v3"
)

const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "postgres"
)

// ErrNotFound is returned when a single-record lookup has no match.
var ErrNotFound = errors.New("record not found")

//go:embed migrations/*.sql
var migrationsFS embed.FS

// DB wraps the database connection and provides methods for data access.
type DB struct {
	conn   *sql.DB
	driver string
}

// NewDB opens a database for driver ("sqlite3" or "postgres") and applies
// pending migrations.
func NewDB(ctx context.Context, driver, dsn string) (*DB, error) {
	var (
		sqlDriver string
		dialect   goose.Dialect
	)
	switch driver {
	case DriverSQLite:
		sqlDriver, dialect = "sqlite3", goose.DialectSQLite3
		dsn = sqliteDSN(dsn)
	case DriverPostgres:
		sqlDriver, dialect = "pgx", goose.DialectPostgres
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	conn, err := sql.Open(sqlDriver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db := &DB{conn: conn, driver: driver}

	if err := db.migrate(ctx, dialect); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	if driver == DriverSQLite {
		// sqlite allows a single writer
		conn.SetMaxOpenConns(1)
	}

	return db, nil
}

func sqliteDSN(path string) string {
	if strings.Contains(path, "?") {
		return path
	}
	return path + "?_busy_timeout=5000"
}

func (db *DB) migrate(ctx context.Context, dialect goose.Dialect) error {
	fsys, err := fs.Sub(migrationsFS, "migrations")
	if err != nil {
		return err
	}

	provider, err := goose.NewProvider(dialect, db.conn, fsys)
	if err != nil {
		return fmt.Errorf("failed to create migration provider: %w", err)
	}

	if _, err := provider.Up(ctx); err != nil {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Ping checks that the database is reachable.
func (db *DB) Ping(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}

// Driver reports the configured driver name.
func (db *DB) Driver() string {
	return db.driver
}

// rebind rewrites '?' placeholders to '$n' for postgres.
func (db *DB) rebind(query string) string {
	if db.driver != DriverPostgres {
		return query
	}

	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func now() string {
	return time.Now().UTC().Format(time.RFC3339)
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return now()
	}
	return t.UTC().Format(time.RFC3339)
}

func parseTime(s, field string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse %s: %w", field, err)
	}
	return t, nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}
