package entity

import (
	"fmt"
	"sync"
)

// Registry is a concurrency-safe name→model map populated once at process
// initialization and read-only afterwards. Models are discoverable by
// entity name and by table name; registration order does not matter.
type Registry struct {
	mu      sync.RWMutex
	byName  map[string]*Model
	byTable map[string]*Model
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		byName:  make(map[string]*Model),
		byTable: make(map[string]*Model),
	}
}

// RegisterAll validates and registers a set of models. Registration is
// all-or-nothing: if any model fails validation or collides with an
// already-registered name or table, nothing is registered.
func (r *Registry) RegisterAll(models ...*Model) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	seenName := make(map[string]bool, len(models))
	seenTable := make(map[string]bool, len(models))
	for _, m := range models {
		if err := m.Validate(); err != nil {
			return fmt.Errorf("register: %w", err)
		}
		if seenName[m.EntityName] || r.byName[m.EntityName] != nil {
			return fmt.Errorf("register: duplicate entity name %q", m.EntityName)
		}
		if seenTable[m.TableName] || r.byTable[m.TableName] != nil {
			return fmt.Errorf("register: duplicate table name %q", m.TableName)
		}
		seenName[m.EntityName] = true
		seenTable[m.TableName] = true
	}

	for _, m := range models {
		r.byName[m.EntityName] = m
		r.byTable[m.TableName] = m
	}
	return nil
}

// ByName returns the model registered under the given entity name.
func (r *Registry) ByName(name string) (*Model, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if m, ok := r.byName[name]; ok {
		return m, nil
	}
	return nil, fmt.Errorf("unknown entity %q", name)
}

// ByTable returns the model registered under the given table name.
func (r *Registry) ByTable(table string) (*Model, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if m, ok := r.byTable[table]; ok {
		return m, nil
	}
	return nil, fmt.Errorf("unknown table %q", table)
}

// Count returns the number of registered models.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byName)
}

// All returns every registered model.
func (r *Registry) All() []*Model {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Model, 0, len(r.byName))
	for _, m := range r.byName {
		out = append(out, m)
	}
	return out
}
