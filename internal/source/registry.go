package source

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
)

var (
	registryMu sync.RWMutex
	registry   = make(map[string]func(*slog.Logger) Source)
)

// Register adds a source factory to the registry. Called by adapter
// implementations in their init() functions.
func Register(name string, factory func(*slog.Logger) Source) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[name] = factory
}

// Get retrieves a source factory by name.
func Get(name string) (func(*slog.Logger) Source, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	f, ok := registry[name]
	return f, ok
}

// IsRegistered checks whether a source type is registered.
func IsRegistered(name string) bool {
	_, ok := Get(name)
	return ok
}

// List returns all registered source names, sorted.
func List() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Open creates the adapter selected by cfg.Type and connects it.
// A nil logger uses the discard logger.
func Open(ctx context.Context, cfg Config, logger *slog.Logger) (Source, error) {
	if cfg.Type == "" {
		return nil, fmt.Errorf("source type not specified")
	}
	factory, ok := Get(cfg.Type)
	if !ok {
		return nil, &UnknownSourceError{Type: cfg.Type, Available: List()}
	}
	src := factory(logger)
	if err := src.Connect(ctx, cfg); err != nil {
		return nil, err
	}
	return src, nil
}

// UnknownSourceError is returned when an unknown source type is requested.
type UnknownSourceError struct {
	Type      string
	Available []string
}

func (e *UnknownSourceError) Error() string {
	return fmt.Sprintf("unknown source type %q, available: %v", e.Type, e.Available)
}
