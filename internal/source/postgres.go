package source

import (
	"context"
	"fmt"
	"log/slog"

	_ "github.com/jackc/pgx/v5/stdlib" // pgx database/sql driver
)

func init() {
	Register("postgres", func(logger *slog.Logger) Source { return NewPostgres(logger) })
}

// PostgresSource is the PostgreSQL adapter over the pgx stdlib driver.
type PostgresSource struct {
	BaseSQLSource
}

// NewPostgres creates a PostgreSQL adapter. A nil logger uses the discard
// logger.
func NewPostgres(logger *slog.Logger) *PostgresSource {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &PostgresSource{BaseSQLSource: BaseSQLSource{Logger: logger}}
}

// DriverName returns the SQL driver name.
func (s *PostgresSource) DriverName() string { return "pgx" }

// Connect establishes a connection to PostgreSQL.
func (s *PostgresSource) Connect(ctx context.Context, cfg Config) error {
	dsn := buildPostgresDSN(cfg)
	s.Logger.Debug("connecting to postgres",
		slog.String("host", cfg.Host), slog.String("database", cfg.Database))
	return s.open(ctx, "pgx", dsn, cfg)
}

// buildPostgresDSN constructs a key=value connection string.
func buildPostgresDSN(cfg Config) string {
	host := cfg.Host
	if host == "" {
		host = "localhost"
	}
	port := cfg.Port
	if port == 0 {
		port = 5432
	}
	sslmode := "disable"
	if cfg.Options != nil {
		if mode, ok := cfg.Options["sslmode"]; ok {
			sslmode = mode
		}
	}

	dsn := fmt.Sprintf("host=%s port=%d dbname=%s sslmode=%s",
		host, port, cfg.Database, sslmode)
	if cfg.Username != "" {
		dsn += fmt.Sprintf(" user=%s", cfg.Username)
	}
	if cfg.Password != "" {
		dsn += fmt.Sprintf(" password=%s", cfg.Password)
	}
	return dsn
}
