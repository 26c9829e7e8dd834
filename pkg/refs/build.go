package refs

import (
	"fmt"

	"github.com/rubeniskov/ripel/pkg/entity"
	"github.com/rubeniskov/ripel/pkg/query"
	"github.com/rubeniskov/ripel/pkg/value"
)

// parentKey is the bucket entry under which the subject's own enriched
// object is visible to target templates.
const parentKey = "parent"

// BuildComposite compiles every plan into one SELECT against the subject's
// table, aliased "self". Each association contributes one INNER JOIN per
// step, and every join is additionally scoped to the subject's primary-key
// value as a bound parameter. One column selector per projected variable is
// labeled "<aliasBase>__<variable>" for later bucketing.
func BuildComposite(model *entity.Model, subject value.Object, plans []RefPlan) (query.Query, []ProjectionLabel, error) {
	pkCol, pkVal, err := primaryKeyValue(model, subject)
	if err != nil {
		return query.Query{}, nil, err
	}

	q := query.New(model.TableName)
	selectors := []string{"self.*"}
	var labels []ProjectionLabel

	for _, plan := range plans {
		if len(plan.SQL.Via) == 0 {
			on, err := query.On(
				"self."+plan.Source.ColumnName,
				"=",
				plan.SQL.FinalAlias+"."+plan.Target.ColumnName,
			)
			if err != nil {
				return query.Query{}, nil, err
			}
			scope, err := query.OnParam("self."+pkCol, "=", pkVal)
			if err != nil {
				return query.Query{}, nil, err
			}
			q = q.Join(plan.Target.Model.TableName, plan.SQL.FinalAlias, on, scope)
		} else {
			// Each hop joins its table with the previous step's alias on
			// the left, starting from self.
			prev := "self"
			for step, hop := range plan.SQL.Via {
				rhsCol := entity.LastIdent(hop.RHSPath())
				alias := hopAlias(plan.SQL.AliasBase, step)
				if a, ok := hop.RHSAlias(); ok {
					alias = a
				}

				on, err := query.On(prev+"."+rhsCol, "=", alias+"."+hop.LHS)
				if err != nil {
					return query.Query{}, nil, err
				}
				scope, err := query.OnParam("self."+pkCol, "=", pkVal)
				if err != nil {
					return query.Query{}, nil, err
				}
				q = q.Join(hop.Table, alias, on, scope)
				prev = alias
			}
		}

		for _, variable := range plan.Target.ProjectedVars {
			// Map the template variable to its physical column; a name with
			// no field metadata is taken to be a column already.
			col := variable
			if tf, ok := plan.Target.Model.TableField(variable); ok {
				col = tf.Column
			}
			fullKey := label(plan.SQL.AliasBase, variable)
			selectors = append(selectors, fmt.Sprintf("%s.%s:%s", plan.SQL.FinalAlias, col, fullKey))
			labels = append(labels, ProjectionLabel{FullKey: fullKey, Variable: variable})
		}
	}

	q, err = q.Select(selectors...)
	if err != nil {
		return query.Query{}, nil, err
	}
	return q, labels, nil
}

// primaryKeyValue reads the subject's primary-key column and value.
func primaryKeyValue(model *entity.Model, subject value.Object) (string, value.Value, error) {
	tf, ok := model.PrimaryKeyField()
	if !ok {
		return "", value.Value{}, fmt.Errorf("no primary key in %q", model.EntityName)
	}
	v, ok := subject.Get(tf.Column)
	if !ok {
		return "", value.Value{}, fmt.Errorf("subject row missing primary key %q", tf.Column)
	}
	return tf.Column, v, nil
}
