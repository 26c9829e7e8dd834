// Package source provides relational data-source adapters for the
// resolver. Adapters wrap database/sql drivers behind one interface and
// register themselves with the factory registry at init time.
package source

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
)

// Config holds the connection settings for one data source.
type Config struct {
	// Type selects the registered adapter ("sqlite", "postgres", "duckdb").
	Type string

	// Path is the file path for file-based databases. Use ":memory:" for
	// an in-memory database.
	Path string

	// Host and Port address network databases.
	Host string
	Port int

	// Database is the database name.
	Database string

	// Username and Password authenticate network databases.
	Username string
	Password string

	// Options holds additional driver-specific options.
	Options map[string]string
}

// Source is the adapter interface every data source implements. The
// resolver only needs parameterized statement execution; DB exposes the
// pool for it.
type Source interface {
	// Connect establishes the connection described by cfg.
	Connect(ctx context.Context, cfg Config) error

	// Close releases the connection pool.
	Close() error

	// Ping verifies the connection is alive.
	Ping(ctx context.Context) error

	// DB returns the underlying pool.
	DB() *sql.DB

	// DriverName names the SQL driver this adapter uses.
	DriverName() string
}

// BaseSQLSource provides the common database/sql plumbing. Concrete
// adapters embed it and implement Connect and DriverName.
type BaseSQLSource struct {
	Pool   *sql.DB
	Cfg    Config
	Logger *slog.Logger
}

// Close closes the pool.
func (b *BaseSQLSource) Close() error {
	if b.Pool != nil {
		if b.Logger != nil {
			b.Logger.Debug("closing data source")
		}
		return b.Pool.Close()
	}
	return nil
}

// Ping verifies the connection.
func (b *BaseSQLSource) Ping(ctx context.Context) error {
	if b.Pool == nil {
		return fmt.Errorf("data source not connected")
	}
	return b.Pool.PingContext(ctx)
}

// DB returns the pool.
func (b *BaseSQLSource) DB() *sql.DB {
	return b.Pool
}

// open opens and pings a driver connection, closing it again on failure.
func (b *BaseSQLSource) open(ctx context.Context, driver, dsn string, cfg Config) error {
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return fmt.Errorf("failed to open %s connection: %w", driver, err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping %s: %w", driver, err)
	}
	b.Pool = db
	b.Cfg = cfg
	return nil
}
