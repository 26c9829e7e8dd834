package refs

import (
	"fmt"
	"strings"

	"github.com/rubeniskov/ripel/pkg/expr"
	"github.com/rubeniskov/ripel/pkg/value"
)

// HydrateError reports a failed assignment of one association onto the
// subject. Any hydration failure aborts the whole resolution; a partially
// hydrated object is never produced.
type HydrateError struct {
	Entity string
	Field  string
	Err    error
}

func (e *HydrateError) Error() string {
	return fmt.Sprintf("hydrating %s.%s: %v", e.Entity, e.Field, e.Err)
}

func (e *HydrateError) Unwrap() error { return e.Err }

// Hydrate turns the single composite result row back into per-association
// scalars assigned onto the subject. The subject itself is never mutated;
// the enriched object is returned.
func Hydrate(subject value.Object, env *expr.Environment, plans []RefPlan, composite value.Object, labels []ProjectionLabel) (value.Object, error) {
	out := subject.Clone()

	// Bucket composite columns by alias base, keyed back to the template
	// variable each column satisfies.
	buckets := make(map[string]value.Object, len(plans))
	for _, l := range labels {
		i := strings.LastIndex(l.FullKey, "__")
		if i < 0 {
			continue
		}
		prefix := l.FullKey[:i]
		v, ok := composite.Get(l.FullKey)
		if !ok {
			continue
		}
		b := buckets[prefix]
		b.Set(l.Variable, v)
		buckets[prefix] = b
	}

	for _, plan := range plans {
		nested := buckets[plan.SQL.AliasBase]
		// The owning row is visible to target templates under "parent".
		nested.Set(parentKey, value.FromObject(out.Clone()))

		scalar, err := planScalar(plan, env, nested)
		if err != nil {
			return value.Object{}, &HydrateError{
				Entity: plan.Target.EntityName,
				Field:  plan.Source.FieldName,
				Err:    err,
			}
		}
		out.Set(plan.Source.FieldName, scalar)
	}
	return out, nil
}

// planScalar computes the value to assign for one plan: evaluating the
// target field's template against its bucket, or reading the bucket entry
// named after the target field.
func planScalar(plan RefPlan, env *expr.Environment, nested value.Object) (value.Value, error) {
	tf := plan.Target.Field
	if tf.Template == "" {
		v, ok := nested.Get(plan.Target.FieldName)
		if !ok {
			return value.Value{}, fmt.Errorf("composite row has no projected column for %q", plan.Target.FieldName)
		}
		return v, nil
	}

	x, err := env.Compile(tf.Template)
	if err != nil {
		return value.Value{}, err
	}
	v, err := x.Eval(expr.ObjectContext(nested))
	if err != nil {
		return value.Value{}, err
	}
	return v, nil
}
