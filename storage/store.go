// Package storage persists devices and metric samples behind database/sql,
// supporting SQLite for single-node deployments and PostgreSQL for shared ones.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"github.com/c360/envmon/errors"
)

// Store wraps the SQL database and knows which driver dialect it speaks.
type Store struct {
	db     *sql.DB
	driver string
	logger *slog.Logger
}

// StoreOption configures a Store
type StoreOption func(*Store)

// WithLogger sets a custom logger for the store
func WithLogger(logger *slog.Logger) StoreOption {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// Open connects to the database, applies the schema, and verifies the
// connection. Supported drivers are "sqlite" and "postgres".
func Open(ctx context.Context, driver, dsn string, opts ...StoreOption) (*Store, error) {
	var driverName string
	switch driver {
	case "sqlite":
		driverName = "sqlite"
	case "postgres":
		driverName = "pgx"
	default:
		return nil, errors.WrapInvalid(
			fmt.Errorf("unsupported driver %q", driver),
			"Store", "Open", "select driver")
	}

	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, errors.WrapFatal(err, "Store", "Open", "open database")
	}

	if driver == "sqlite" {
		// SQLite serializes writes; a single connection avoids lock contention.
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(time.Hour)
	}

	s := &Store{
		db:     db,
		driver: driver,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, errors.WrapTransient(
			errors.ErrStorageUnavailable, "Store", "Open",
			fmt.Sprintf("ping database: %v", err))
	}

	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}

	s.logger.Info("Storage ready", "driver", driver)
	return s, nil
}

// NewWithDB wraps an existing database handle. Used by tests with sqlmock.
func NewWithDB(db *sql.DB, driver string, opts ...StoreOption) *Store {
	s := &Store{
		db:     db,
		driver: driver,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping verifies the database connection is alive.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return errors.WrapTransient(errors.ErrStorageUnavailable, "Store", "Ping",
			fmt.Sprintf("ping database: %v", err))
	}
	return nil
}

// rebind converts `?` placeholders to the dialect's positional form.
// SQLite accepts `?` natively; PostgreSQL needs `$1..$n`.
func (s *Store) rebind(query string) string {
	if s.driver != "postgres" {
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
		} else {
			b.WriteRune(r)
		}
	}
	return b.String()
}
