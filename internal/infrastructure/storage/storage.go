// Package storage persists articles and analysis clusters in PostgreSQL or SQLite.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// Driver selects the SQL dialect.
type Driver string

const (
	SQLite   Driver = "sqlite"
	Postgres Driver = "postgres"
)

// Config holds database configuration.
type Config struct {
	Driver Driver
	DSN    string
}

// DB wraps a *sql.DB with the dialect-specific statement builder.
type DB struct {
	*sql.DB
	driver  Driver
	builder sq.StatementBuilderType
	logger  *slog.Logger
}

// Open connects and pings the database.
func Open(ctx context.Context, cfg Config, logger *slog.Logger) (*DB, error) {
	if logger == nil {
		logger = slog.Default()
	}

	var (
		driverName string
		builder    sq.StatementBuilderType
	)
	switch cfg.Driver {
	case SQLite:
		driverName = "sqlite"
		builder = sq.StatementBuilder.PlaceholderFormat(sq.Question)
	case Postgres:
		driverName = "postgres"
		builder = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", cfg.Driver)
	}

	db, err := sql.Open(driverName, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	pool := poolFor(cfg.Driver)
	db.SetMaxOpenConns(pool.maxOpen)
	db.SetMaxIdleConns(pool.maxIdle)
	db.SetConnMaxLifetime(pool.maxLifetime)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &DB{
		DB:      db,
		driver:  cfg.Driver,
		builder: builder,
		logger:  logger.With("component", "storage", "driver", string(cfg.Driver)),
	}, nil
}

type poolSettings struct {
	maxOpen     int
	maxIdle     int
	maxLifetime time.Duration
}

// poolFor sizes the connection pool. SQLite runs on one connection that is
// never recycled: an in-memory database lives exactly as long as it.
func poolFor(driver Driver) poolSettings {
	if driver == SQLite {
		return poolSettings{maxOpen: 1, maxIdle: 1}
	}
	return poolSettings{maxOpen: 25, maxIdle: 5, maxLifetime: 5 * time.Minute}
}

// DriverType returns the database driver type.
func (db *DB) DriverType() Driver {
	return db.driver
}

// Migrate creates the schema for the connected dialect. It is idempotent.
func (db *DB) Migrate(ctx context.Context) error {
	statements := postgresSchema
	if db.driver == SQLite {
		statements = sqliteSchema
	}
	for _, stmt := range statements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	db.logger.Info("database migration completed", "statements", len(statements))
	return nil
}
