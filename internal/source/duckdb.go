package source

import (
	"context"
	"log/slog"

	_ "github.com/marcboeker/go-duckdb" // duckdb driver
)

func init() {
	Register("duckdb", func(logger *slog.Logger) Source { return NewDuckDB(logger) })
}

// DuckDBSource is the file-based DuckDB adapter.
type DuckDBSource struct {
	BaseSQLSource
}

// NewDuckDB creates a DuckDB adapter. A nil logger uses the discard logger.
func NewDuckDB(logger *slog.Logger) *DuckDBSource {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &DuckDBSource{BaseSQLSource: BaseSQLSource{Logger: logger}}
}

// DriverName returns the SQL driver name.
func (s *DuckDBSource) DriverName() string { return "duckdb" }

// Connect opens the database file. An empty path means in-memory.
func (s *DuckDBSource) Connect(ctx context.Context, cfg Config) error {
	path := cfg.Path
	if path == "" {
		path = ":memory:"
	}
	s.Logger.Debug("connecting to duckdb", slog.String("path", path))
	return s.open(ctx, "duckdb", path, cfg)
}
