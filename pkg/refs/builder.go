package refs

import (
	"fmt"
	"sync"

	"github.com/rubeniskov/ripel/pkg/entity"
	"github.com/rubeniskov/ripel/pkg/expr"
	"github.com/rubeniskov/ripel/pkg/value"
)

// BuilderRegistry maps entity names to builders producing a common result
// type. Builders are registered once at process start, looked up per
// resolution.
type BuilderRegistry[T any] struct {
	mu       sync.RWMutex
	builders map[string]Builder[T]
}

// NewBuilderRegistry creates an empty builder registry.
func NewBuilderRegistry[T any]() *BuilderRegistry[T] {
	return &BuilderRegistry[T]{builders: make(map[string]Builder[T])}
}

// Register binds a builder to an entity name. Rebinding a name is an error.
func (r *BuilderRegistry[T]) Register(entityName string, b Builder[T]) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.builders[entityName]; ok {
		return fmt.Errorf("builder for entity %q already registered", entityName)
	}
	r.builders[entityName] = b
	return nil
}

// Build applies the entity's registered builder to the enriched object.
func (r *BuilderRegistry[T]) Build(entityName string, obj value.Object, env *expr.Environment) (T, error) {
	r.mu.RLock()
	b, ok := r.builders[entityName]
	r.mu.RUnlock()
	var zero T
	if !ok {
		return zero, fmt.Errorf("no builder registered for entity %q", entityName)
	}
	return b.FromObject(obj, env)
}

// BuildScalar computes one declared field's raw scalar from an enriched
// object: evaluating the field's template when it has one, otherwise
// reading its column (falling back to the declared name for values already
// hydrated under it). Absent or null values map to none for nullable
// fields and fail fast for required ones, naming the entity, field and
// expected type. Builder implementations coerce the result to the concrete
// scalar type via the value package.
func BuildScalar(model *entity.Model, tf entity.TableField, obj value.Object, env *expr.Environment) (value.Value, error) {
	if tf.Template != "" {
		x, err := env.Compile(tf.Template)
		if err != nil {
			return value.Value{}, fmt.Errorf("entity %q field %q: %w", model.EntityName, tf.Name, err)
		}
		v, err := x.Eval(expr.ObjectContext(obj))
		if err != nil {
			return value.Value{}, fmt.Errorf("entity %q field %q: %w", model.EntityName, tf.Name, err)
		}
		return v, nil
	}

	v, ok := obj.Get(tf.Column)
	if !ok {
		v, ok = obj.Get(tf.Name)
	}
	if !ok || !v.IsSome() {
		if tf.Nullable {
			return value.None(), nil
		}
		return value.Value{}, fmt.Errorf("entity %q field %q: required %s value missing, got %s",
			model.EntityName, tf.Name, tf.TypeName, v.Kind())
	}
	return v, nil
}
