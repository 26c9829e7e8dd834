package refs

import (
	"context"
	"fmt"
	"strings"

	"github.com/rubeniskov/ripel/pkg/entity"
	"github.com/rubeniskov/ripel/pkg/expr"
	"github.com/rubeniskov/ripel/pkg/query"
	"github.com/rubeniskov/ripel/pkg/value"
)

// Builder produces the final typed entity from an enriched object: for each
// declared field, evaluate its template or read its column and coerce to the
// target scalar type. Implemented once per concrete entity type, by codegen
// or by hand.
type Builder[T any] interface {
	FromObject(obj value.Object, env *expr.Environment) (T, error)
}

// BuilderFunc adapts a function to the Builder capability.
type BuilderFunc[T any] func(obj value.Object, env *expr.Environment) (T, error)

func (f BuilderFunc[T]) FromObject(obj value.Object, env *expr.Environment) (T, error) {
	return f(obj, env)
}

// ExecError reports a resolution that failed at or after statement
// execution. It carries enough context to debug the failure without
// re-running it: subject identity, generated SQL and per-plan summaries.
type ExecError struct {
	Entity   string
	Table    string
	PKColumn string
	PK       value.Value
	SQL      string
	Plans    []RefPlan
	Rows     int
	Err      error
}

func (e *ExecError) Error() string {
	var sb strings.Builder
	if e.Err != nil {
		fmt.Fprintf(&sb, "resolving references: %v\n", e.Err)
	} else if e.Rows == 0 {
		sb.WriteString("resolving references: no row returned, subject no longer satisfies its declared joins\n")
	} else {
		fmt.Fprintf(&sb, "resolving references: %d rows returned for a single-subject statement\n", e.Rows)
	}
	fmt.Fprintf(&sb, "entity: %q (table: %q)\n", e.Entity, e.Table)
	fmt.Fprintf(&sb, "pk: %s = %s\n", e.PKColumn, e.PK)
	fmt.Fprintf(&sb, "sql:\n  %s\n", e.SQL)
	fmt.Fprintf(&sb, "plans (%d):\n%s", len(e.Plans), indentLines(summarizePlans(e.Plans), 2))
	return sb.String()
}

func (e *ExecError) Unwrap() error { return e.Err }

// Resolve enriches one subject row with every declared association of the
// model in at most one additional round trip, independent of how many
// associations the model declares. An entity with no reference fields is
// already complete and returns the subject unchanged.
func Resolve(ctx context.Context, db query.DB, reg *entity.Registry, env *expr.Environment, model *entity.Model, subject value.Object) (value.Object, error) {
	plans, err := Plan(model, env, reg)
	if err != nil {
		return value.Object{}, err
	}
	if len(plans) == 0 {
		return subject, nil
	}

	q, labels, err := BuildComposite(model, subject, plans)
	if err != nil {
		return value.Object{}, err
	}

	pkCol, pkVal, err := primaryKeyValue(model, subject)
	if err != nil {
		return value.Object{}, err
	}
	sqlText, _, err := q.ToSQL()
	if err != nil {
		return value.Object{}, err
	}
	fail := func(rows int, cause error) *ExecError {
		return &ExecError{
			Entity:   model.EntityName,
			Table:    model.TableName,
			PKColumn: pkCol,
			PK:       pkVal,
			SQL:      sqlText,
			Plans:    plans,
			Rows:     rows,
			Err:      cause,
		}
	}

	rows, err := q.FetchAll(ctx, db)
	if err != nil {
		return value.Object{}, fail(0, err)
	}
	// The statement is scoped to one subject: zero rows means referential
	// integrity is broken, more than one means a modeling error. Both abort.
	if len(rows) != 1 {
		return value.Object{}, fail(len(rows), nil)
	}

	return Hydrate(subject, env, plans, rows[0], labels)
}

// ResolveAndBuild resolves the subject's associations and hands the
// enriched object to the entity builder.
func ResolveAndBuild[T any](ctx context.Context, db query.DB, reg *entity.Registry, env *expr.Environment, model *entity.Model, subject value.Object, b Builder[T]) (T, error) {
	var zero T
	enriched, err := Resolve(ctx, db, reg, env, model, subject)
	if err != nil {
		return zero, err
	}
	return b.FromObject(enriched, env)
}

func summarizePlans(plans []RefPlan) string {
	var sb strings.Builder
	for _, p := range plans {
		via := "direct"
		if len(p.SQL.Via) > 0 {
			hops := make([]string, len(p.SQL.Via))
			for i, h := range p.SQL.Via {
				hops[i] = h.String()
			}
			via = strings.Join(hops, " -> ")
		}
		fmt.Fprintf(&sb, "- %s -> %s.%s [alias_base: %s, final_alias: %s, via: %s]\n",
			p.Source.FieldName, p.Target.EntityName, p.Target.FieldName,
			p.SQL.AliasBase, p.SQL.FinalAlias, via)
	}
	return sb.String()
}

func indentLines(s string, spaces int) string {
	pad := strings.Repeat(" ", spaces)
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	for i, l := range lines {
		lines[i] = pad + l
	}
	return strings.Join(lines, "\n")
}
