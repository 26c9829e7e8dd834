package source

import (
	"context"
	"log/slog"

	_ "modernc.org/sqlite" // sqlite driver (pure Go)
)

func init() {
	Register("sqlite", func(logger *slog.Logger) Source { return NewSQLite(logger) })
}

// SQLiteSource is the file-based SQLite adapter.
type SQLiteSource struct {
	BaseSQLSource
}

// NewSQLite creates a SQLite adapter. A nil logger uses the discard logger.
func NewSQLite(logger *slog.Logger) *SQLiteSource {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &SQLiteSource{BaseSQLSource: BaseSQLSource{Logger: logger}}
}

// DriverName returns the SQL driver name.
func (s *SQLiteSource) DriverName() string { return "sqlite" }

// Connect opens the database file. An empty path means in-memory.
func (s *SQLiteSource) Connect(ctx context.Context, cfg Config) error {
	path := cfg.Path
	if path == "" {
		path = ":memory:"
	}
	s.Logger.Debug("connecting to sqlite", slog.String("path", path))
	return s.open(ctx, "sqlite", path, cfg)
}
