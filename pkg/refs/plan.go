// Package refs resolves the declared associations of one subject row in a
// single round trip: it plans every reference field into join chains,
// compiles them into one composite SELECT, and hydrates the composite
// result row back into per-field scalars on the subject.
package refs

import (
	"fmt"
	"sort"

	"github.com/rubeniskov/ripel/pkg/entity"
	"github.com/rubeniskov/ripel/pkg/expr"
)

// SourceField names where a computed scalar lands on the enriched subject
// and which owner column joins toward the target.
type SourceField struct {
	// FieldName keys the enriched object.
	FieldName string
	// ColumnName is the owner table's join column.
	ColumnName string
}

// TargetEntity names what a reference dereferences and which variables must
// be projected from the target side.
type TargetEntity struct {
	EntityName string
	FieldName  string
	// ColumnName is the target table's join column.
	ColumnName string
	Model      *entity.Model
	// Field is the resolved target table field, including its template.
	Field entity.TableField
	// ProjectedVars is the sorted union of free variables over every
	// templated field of the target entity.
	ProjectedVars []string
}

// SQLPlan describes how to reach the target in SQL.
type SQLPlan struct {
	Via        []entity.Hop
	AliasBase  string
	FinalAlias string
}

// RefPlan is one planned reference resolution. Plans are ephemeral: they
// are created per resolution and never outlive it.
type RefPlan struct {
	Source SourceField
	Target TargetEntity
	SQL    SQLPlan
}

// ProjectionLabel routes one projected column back to its owning
// association during hydration.
type ProjectionLabel struct {
	// FullKey is the column alias, "<aliasBase>__<variable>".
	FullKey string
	// Variable is the template variable the column satisfies.
	Variable string
}

// PlanError reports a reference field that could not be planned.
type PlanError struct {
	Entity string
	Field  string
	Err    error
}

func (e *PlanError) Error() string {
	return fmt.Sprintf("planning reference %s.%s: %v", e.Entity, e.Field, e.Err)
}

func (e *PlanError) Unwrap() error { return e.Err }

// Plan turns every reference field of a model into a join plan. Planning is
// pure: no I/O and no SQL text. Plans for different fields are independent
// and order-insensitive.
func Plan(model *entity.Model, env *expr.Environment, reg *entity.Registry) ([]RefPlan, error) {
	var plans []RefPlan
	for _, rf := range model.ReferenceFields() {
		plan, err := planOne(model, rf, env, reg)
		if err != nil {
			return nil, &PlanError{Entity: model.EntityName, Field: rf.Name, Err: err}
		}
		plans = append(plans, plan)
	}
	return plans, nil
}

func planOne(model *entity.Model, rf entity.ReferenceField, env *expr.Environment, reg *entity.Registry) (RefPlan, error) {
	refEntity, refField, err := entity.ParseReference(rf.Reference)
	if err != nil {
		return RefPlan{}, fmt.Errorf("invalid reference %q: %w", rf.Reference, err)
	}

	refModel, err := reg.ByName(refEntity)
	if err != nil {
		return RefPlan{}, err
	}

	projected, err := projectedVariables(refModel, env)
	if err != nil {
		return RefPlan{}, err
	}

	// The owner's join column is the table field sharing the reference
	// field's declared name.
	ownerTF, ok := model.TableField(rf.Name)
	if !ok {
		return RefPlan{}, fmt.Errorf("no table field named %q in %q", rf.Name, model.EntityName)
	}
	targetTF, ok := refModel.TableField(refField)
	if !ok {
		return RefPlan{}, fmt.Errorf("%q is not a table field in %q", refField, refEntity)
	}
	// An untemplated target field is read from its bucket directly, so its
	// own column must be projected too.
	if targetTF.Template == "" {
		projected = insertSorted(projected, targetTF.Name)
	}

	aliasBase := "via_" + rf.Name
	finalAlias := aliasBase + "_tgt"
	if len(rf.Via) > 0 {
		finalAlias = finalAliasForChain(aliasBase, rf.Via)
	}

	return RefPlan{
		Source: SourceField{
			FieldName:  rf.Name,
			ColumnName: ownerTF.Column,
		},
		Target: TargetEntity{
			EntityName:    refEntity,
			FieldName:     refField,
			ColumnName:    targetTF.Column,
			Model:         refModel,
			Field:         targetTF,
			ProjectedVars: projected,
		},
		SQL: SQLPlan{
			Via:        rf.Via,
			AliasBase:  aliasBase,
			FinalAlias: finalAlias,
		},
	}, nil
}

// projectedVariables is the union, over every templated table field of the
// model, of the template's free variables. The result is sorted so an
// identical model always projects identical SQL.
func projectedVariables(model *entity.Model, env *expr.Environment) ([]string, error) {
	set := map[string]struct{}{}
	for _, tf := range model.TableFields() {
		if tf.Template == "" {
			continue
		}
		x, err := env.Compile(tf.Template)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", tf.Name, err)
		}
		for _, v := range x.FreeVariables() {
			// The subject is injected under "parent" at hydration time;
			// it is never a projectable column.
			if v == parentKey {
				continue
			}
			set[v] = struct{}{}
		}
	}
	out := make([]string, 0, len(set))
	for v := range set {
		out = append(out, v)
	}
	sort.Strings(out)
	return out, nil
}

// insertSorted adds name to a sorted slice if it is not already present.
func insertSorted(sorted []string, name string) []string {
	i := sort.SearchStrings(sorted, name)
	if i < len(sorted) && sorted[i] == name {
		return sorted
	}
	sorted = append(sorted, "")
	copy(sorted[i+1:], sorted[i:])
	sorted[i] = name
	return sorted
}

func hopAlias(base string, step int) string {
	return fmt.Sprintf("%s_h%d", base, step)
}

// finalAliasForChain is the alias of the last hop: its explicit rhs alias
// when present, else the generated step alias.
func finalAliasForChain(base string, via []entity.Hop) string {
	last := len(via) - 1
	if alias, ok := via[last].RHSAlias(); ok {
		return alias
	}
	return hopAlias(base, last)
}

// label builds the projection label "<prefix>__<variable>".
func label(prefix, variable string) string {
	return prefix + "__" + variable
}
