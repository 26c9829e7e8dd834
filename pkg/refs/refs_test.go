package refs

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rubeniskov/ripel/pkg/entity"
	"github.com/rubeniskov/ripel/pkg/expr"
	"github.com/rubeniskov/ripel/pkg/value"
)

// golfRegistry builds the fixture schema: a Hole reaches its Course through
// a tee bar, and a Player references its Club directly.
func golfRegistry(t *testing.T) *entity.Registry {
	t.Helper()

	course := &entity.Model{
		EntityName: "Course",
		TableName:  "Campo",
		TypeName:   "Course",
		PrimaryKey: "id",
		Fields: []entity.Field{
			entity.TableField{Name: "id", Column: "id", PrimaryKey: true, TypeName: "string",
				Template: "ulid(random, created_at)"},
			entity.TableField{Name: "random", Column: "random", TypeName: "string"},
			entity.TableField{Name: "created_at", Column: "created_at", TypeName: "int64"},
		},
	}
	teeBar := &entity.Model{
		EntityName: "TeeBar",
		TableName:  "Barra",
		TypeName:   "TeeBar",
		PrimaryKey: "id",
		Fields: []entity.Field{
			entity.TableField{Name: "id", Column: "id", PrimaryKey: true, TypeName: "int64"},
			entity.TableField{Name: "campo_id", Column: "Campo_id", TypeName: "int64"},
		},
	}
	hole := &entity.Model{
		EntityName: "Hole",
		TableName:  "Hoyo",
		TypeName:   "Hole",
		PrimaryKey: "id",
		Fields: []entity.Field{
			entity.TableField{Name: "id", Column: "id", PrimaryKey: true, TypeName: "int64"},
			entity.TableField{Name: "course_id", Column: "TeeBar_id", TypeName: "string"},
			entity.ReferenceField{Name: "course_id", Reference: "Course.id", TypeName: "string",
				Via: []entity.Hop{
					{Table: "Barra", LHS: "id", RHS: "TeeBar_id"},
					{Table: "Campo", LHS: "id", RHS: "Barra.Campo_id,course"},
				}},
		},
	}
	club := &entity.Model{
		EntityName: "Club",
		TableName:  "Club",
		TypeName:   "Club",
		PrimaryKey: "id",
		Fields: []entity.Field{
			entity.TableField{Name: "id", Column: "id", PrimaryKey: true, TypeName: "int64"},
		},
	}
	player := &entity.Model{
		EntityName: "Player",
		TableName:  "Jugador",
		TypeName:   "Player",
		PrimaryKey: "id",
		Fields: []entity.Field{
			entity.TableField{Name: "id", Column: "id", PrimaryKey: true, TypeName: "int64"},
			entity.TableField{Name: "club_id", Column: "Club_id", TypeName: "int64"},
			entity.ReferenceField{Name: "club_id", Reference: "Club.id", TypeName: "int64"},
		},
	}

	reg := entity.NewRegistry()
	require.NoError(t, reg.RegisterAll(course, teeBar, hole, club, player))
	return reg
}

func mustModel(t *testing.T, reg *entity.Registry, name string) *entity.Model {
	t.Helper()
	m, err := reg.ByName(name)
	require.NoError(t, err)
	return m
}

func TestPlanDirectReference(t *testing.T) {
	reg := golfRegistry(t)
	env := expr.NewEnvironment()

	plans, err := Plan(mustModel(t, reg, "Player"), env, reg)
	require.NoError(t, err)
	require.Len(t, plans, 1)

	p := plans[0]
	assert.Equal(t, "club_id", p.Source.FieldName)
	assert.Equal(t, "Club_id", p.Source.ColumnName)
	assert.Equal(t, "Club", p.Target.EntityName)
	assert.Equal(t, "id", p.Target.ColumnName)
	assert.Equal(t, "via_club_id", p.SQL.AliasBase)
	assert.Equal(t, "via_club_id_tgt", p.SQL.FinalAlias)
	assert.Empty(t, p.SQL.Via)
	// Club has no templates; the untemplated target field itself is projected.
	assert.Equal(t, []string{"id"}, p.Target.ProjectedVars)
}

func TestPlanMultiHopReference(t *testing.T) {
	reg := golfRegistry(t)
	env := expr.NewEnvironment()

	plans, err := Plan(mustModel(t, reg, "Hole"), env, reg)
	require.NoError(t, err)
	require.Len(t, plans, 1)

	p := plans[0]
	assert.Equal(t, "via_course_id", p.SQL.AliasBase)
	// Final alias comes from the last hop's explicit rhs alias.
	assert.Equal(t, "course", p.SQL.FinalAlias)
	require.Len(t, p.SQL.Via, 2)
	// Free variables of Course's ulid template, sorted; the ulid builtin
	// itself is an environment global and is subtracted.
	assert.Equal(t, []string{"created_at", "random"}, p.Target.ProjectedVars)
}

func TestPlanGeneratedFinalAlias(t *testing.T) {
	reg := golfRegistry(t)
	env := expr.NewEnvironment()

	hole := &entity.Model{
		EntityName: "BackHole",
		TableName:  "HoyoTrasero",
		TypeName:   "BackHole",
		PrimaryKey: "id",
		Fields: []entity.Field{
			entity.TableField{Name: "id", Column: "id", PrimaryKey: true, TypeName: "int64"},
			entity.TableField{Name: "course_id", Column: "TeeBar_id", TypeName: "string"},
			entity.ReferenceField{Name: "course_id", Reference: "Course.id", TypeName: "string",
				Via: []entity.Hop{
					{Table: "Barra", LHS: "id", RHS: "TeeBar_id"},
					{Table: "Campo", LHS: "id", RHS: "Barra.Campo_id"},
				}},
		},
	}
	require.NoError(t, reg.RegisterAll(hole))

	plans, err := Plan(hole, env, reg)
	require.NoError(t, err)
	require.Len(t, plans, 1)
	assert.Equal(t, "via_course_id_h1", plans[0].SQL.FinalAlias)
}

func TestPlanFailures(t *testing.T) {
	reg := golfRegistry(t)
	env := expr.NewEnvironment()

	tests := []struct {
		name  string
		model *entity.Model
	}{
		{
			name: "unknown target entity",
			model: &entity.Model{
				EntityName: "A", TableName: "a", PrimaryKey: "id",
				Fields: []entity.Field{
					entity.TableField{Name: "id", Column: "id", PrimaryKey: true},
					entity.TableField{Name: "x", Column: "x"},
					entity.ReferenceField{Name: "x", Reference: "Ghost.id"},
				},
			},
		},
		{
			name: "target not a table field",
			model: &entity.Model{
				EntityName: "B", TableName: "b", PrimaryKey: "id",
				Fields: []entity.Field{
					entity.TableField{Name: "id", Column: "id", PrimaryKey: true},
					entity.TableField{Name: "x", Column: "x"},
					entity.ReferenceField{Name: "x", Reference: "Player.club_ref"},
				},
			},
		},
		{
			name: "no same-named owner column",
			model: &entity.Model{
				EntityName: "C", TableName: "c", PrimaryKey: "id",
				Fields: []entity.Field{
					entity.TableField{Name: "id", Column: "id", PrimaryKey: true},
					entity.ReferenceField{Name: "x", Reference: "Club.id"},
				},
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Plan(tt.model, env, reg)
			var perr *PlanError
			require.ErrorAs(t, err, &perr)
			assert.Equal(t, tt.model.EntityName, perr.Entity)
		})
	}
}

func TestBuildCompositeDirect(t *testing.T) {
	reg := golfRegistry(t)
	env := expr.NewEnvironment()
	model := mustModel(t, reg, "Player")

	plans, err := Plan(model, env, reg)
	require.NoError(t, err)

	subject := value.ObjectOf(map[string]value.Value{
		"id":      value.I64(9),
		"Club_id": value.I64(3),
	})
	q, labels, err := BuildComposite(model, subject, plans)
	require.NoError(t, err)

	sql, binds, err := q.ToSQL()
	require.NoError(t, err)
	assert.Equal(t,
		"SELECT `self`.*, `via_club_id_tgt`.`id` AS `via_club_id__id`"+
			" FROM `Jugador` AS self"+
			" INNER JOIN `Club` AS `via_club_id_tgt`"+
			" ON `self`.`Club_id` = `via_club_id_tgt`.`id` AND `self`.`id` = ?",
		sql)
	// The subject's primary key is always a bound parameter.
	require.Len(t, binds, 1)
	assert.True(t, binds[0].Equal(value.I64(9)))

	require.Len(t, labels, 1)
	assert.Equal(t, "via_club_id__id", labels[0].FullKey)
	assert.Equal(t, "id", labels[0].Variable)
}

func TestBuildCompositeMultiHop(t *testing.T) {
	reg := golfRegistry(t)
	env := expr.NewEnvironment()
	model := mustModel(t, reg, "Hole")

	plans, err := Plan(model, env, reg)
	require.NoError(t, err)

	subject := value.ObjectOf(map[string]value.Value{
		"id":        value.I64(1),
		"TeeBar_id": value.I64(5),
	})
	q, labels, err := BuildComposite(model, subject, plans)
	require.NoError(t, err)

	sql, binds, err := q.ToSQL()
	require.NoError(t, err)
	assert.Equal(t,
		"SELECT `self`.*,"+
			" `course`.`created_at` AS `via_course_id__created_at`,"+
			" `course`.`random` AS `via_course_id__random`"+
			" FROM `Hoyo` AS self"+
			" INNER JOIN `Barra` AS `via_course_id_h0`"+
			" ON `self`.`TeeBar_id` = `via_course_id_h0`.`id` AND `self`.`id` = ?"+
			" INNER JOIN `Campo` AS `course`"+
			" ON `via_course_id_h0`.`Campo_id` = `course`.`id` AND `self`.`id` = ?",
		sql)
	// One bound primary-key parameter per hop.
	require.Len(t, binds, 2)
	assert.True(t, binds[0].Equal(value.I64(1)))
	assert.True(t, binds[1].Equal(value.I64(1)))
	assert.Len(t, labels, 2)
}

func TestBuildCompositeMissingPK(t *testing.T) {
	reg := golfRegistry(t)
	env := expr.NewEnvironment()
	model := mustModel(t, reg, "Player")

	plans, err := Plan(model, env, reg)
	require.NoError(t, err)

	_, _, err = BuildComposite(model, value.NewObject(), plans)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing primary key")
}

func TestHydrateReadsUntemplatedColumn(t *testing.T) {
	reg := golfRegistry(t)
	env := expr.NewEnvironment()
	model := mustModel(t, reg, "Player")

	plans, err := Plan(model, env, reg)
	require.NoError(t, err)
	_, labels, err := BuildComposite(model, value.ObjectOf(map[string]value.Value{
		"id": value.I64(9), "Club_id": value.I64(3),
	}), plans)
	require.NoError(t, err)

	subject := value.ObjectOf(map[string]value.Value{
		"id":      value.I64(9),
		"Club_id": value.I64(3),
	})
	composite := value.ObjectOf(map[string]value.Value{
		"id":              value.I64(9),
		"Club_id":         value.I64(3),
		"via_club_id__id": value.I64(3),
	})
	out, err := Hydrate(subject, env, plans, composite, labels)
	require.NoError(t, err)

	// Round trip: the raw column value lands unchanged under the
	// reference field's declared name.
	got, ok := out.Get("club_id")
	require.True(t, ok)
	assert.True(t, got.Equal(value.I64(3)))

	// The subject handle itself never observes the write.
	_, ok = subject.Get("club_id")
	assert.False(t, ok)
}

func TestHydrateEvaluatesTemplate(t *testing.T) {
	reg := golfRegistry(t)
	env := expr.NewEnvironment()
	model := mustModel(t, reg, "Hole")

	plans, err := Plan(model, env, reg)
	require.NoError(t, err)
	subject := value.ObjectOf(map[string]value.Value{
		"id": value.I64(1), "TeeBar_id": value.I64(5),
	})
	_, labels, err := BuildComposite(model, subject, plans)
	require.NoError(t, err)

	composite := value.ObjectOf(map[string]value.Value{
		"id":                        value.I64(1),
		"TeeBar_id":                 value.I64(5),
		"via_course_id__random":     value.String("seed-a"),
		"via_course_id__created_at": value.I64(1700000000),
	})
	out, err := Hydrate(subject, env, plans, composite, labels)
	require.NoError(t, err)

	got, ok := out.Get("course_id")
	require.True(t, ok)
	s, ok := got.AsStr()
	require.True(t, ok)
	assert.Len(t, s, 26)

	// Deterministic: same projected inputs, same identifier.
	again, err := Hydrate(subject, env, plans, composite, labels)
	require.NoError(t, err)
	g2, _ := again.Get("course_id")
	assert.True(t, got.Equal(g2))
}

func TestHydrateMissingBucketEntryAborts(t *testing.T) {
	reg := golfRegistry(t)
	env := expr.NewEnvironment()
	model := mustModel(t, reg, "Player")

	plans, err := Plan(model, env, reg)
	require.NoError(t, err)
	subject := value.ObjectOf(map[string]value.Value{
		"id": value.I64(9), "Club_id": value.I64(3),
	})
	_, labels, err := BuildComposite(model, subject, plans)
	require.NoError(t, err)

	// Composite row lacks the projected association column entirely.
	composite := value.ObjectOf(map[string]value.Value{
		"id": value.I64(9), "Club_id": value.I64(3),
	})
	_, err = Hydrate(subject, env, plans, composite, labels)
	var herr *HydrateError
	require.ErrorAs(t, err, &herr)
	assert.Equal(t, "Club", herr.Entity)
	assert.Equal(t, "club_id", herr.Field)
}

func TestHydrateInjectsParent(t *testing.T) {
	env := expr.NewEnvironment()
	reg := entity.NewRegistry()

	// The target's templated field reads the owning row through parent.
	tag := &entity.Model{
		EntityName: "Tag",
		TableName:  "Etiqueta",
		TypeName:   "Tag",
		PrimaryKey: "id",
		Fields: []entity.Field{
			entity.TableField{Name: "id", Column: "id", PrimaryKey: true, TypeName: "string",
				Template: "prefix + '-' + str(parent.id)"},
			entity.TableField{Name: "prefix", Column: "prefix", TypeName: "string"},
		},
	}
	item := &entity.Model{
		EntityName: "Item",
		TableName:  "Articulo",
		TypeName:   "Item",
		PrimaryKey: "id",
		Fields: []entity.Field{
			entity.TableField{Name: "id", Column: "id", PrimaryKey: true, TypeName: "int64"},
			entity.TableField{Name: "tag_id", Column: "Tag_id", TypeName: "string"},
			entity.ReferenceField{Name: "tag_id", Reference: "Tag.id", TypeName: "string"},
		},
	}
	require.NoError(t, reg.RegisterAll(tag, item))

	plans, err := Plan(item, env, reg)
	require.NoError(t, err)
	// parent is supplied at hydration time, never projected.
	assert.Equal(t, []string{"prefix"}, plans[0].Target.ProjectedVars)

	subject := value.ObjectOf(map[string]value.Value{
		"id": value.I64(7), "Tag_id": value.String("x"),
	})
	_, labels, err := BuildComposite(item, subject, plans)
	require.NoError(t, err)

	composite := value.ObjectOf(map[string]value.Value{
		"id":                 value.I64(7),
		"Tag_id":             value.String("x"),
		"via_tag_id__prefix": value.String("itm"),
	})
	out, err := Hydrate(subject, env, plans, composite, labels)
	require.NoError(t, err)

	got, ok := out.Get("tag_id")
	require.True(t, ok)
	assert.True(t, got.Equal(value.String("itm-7")))
}

func TestBuildScalar(t *testing.T) {
	env := expr.NewEnvironment()
	model := &entity.Model{
		EntityName: "Thing", TableName: "thing", PrimaryKey: "id",
		Fields: []entity.Field{
			entity.TableField{Name: "id", Column: "id", PrimaryKey: true, TypeName: "int64"},
			entity.TableField{Name: "label", Column: "etiqueta", TypeName: "string"},
			entity.TableField{Name: "note", Column: "nota", TypeName: "string", Nullable: true},
			entity.TableField{Name: "slug", Column: "slug", TypeName: "string", Template: "label.lower()"},
		},
	}

	obj := value.ObjectOf(map[string]value.Value{
		"id":       value.I64(1),
		"etiqueta": value.String("HI"),
		"label":    value.String("HI"),
	})

	tfs := model.TableFields()
	got, err := BuildScalar(model, tfs[1], obj, env)
	require.NoError(t, err)
	assert.True(t, got.Equal(value.String("HI")))

	// Nullable fields map absent to none.
	got, err = BuildScalar(model, tfs[2], obj, env)
	require.NoError(t, err)
	assert.True(t, got.IsNone())

	// Templated fields evaluate against the object.
	got, err = BuildScalar(model, tfs[3], obj, env)
	require.NoError(t, err)
	assert.True(t, got.Equal(value.String("hi")))

	// Required missing fails fast naming entity and field.
	_, err = BuildScalar(model, tfs[1], value.NewObject(), env)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"Thing"`)
	assert.Contains(t, err.Error(), `"label"`)
}

func TestBuilderRegistry(t *testing.T) {
	env := expr.NewEnvironment()
	reg := NewBuilderRegistry[string]()

	require.NoError(t, reg.Register("Club", BuilderFunc[string](func(obj value.Object, _ *expr.Environment) (string, error) {
		name, _ := obj.Get("name")
		s, err := name.ToString()
		return s, err
	})))

	err := reg.Register("Club", BuilderFunc[string](func(value.Object, *expr.Environment) (string, error) {
		return "", nil
	}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already registered")

	got, err := reg.Build("Club", value.ObjectOf(map[string]value.Value{"name": value.String("augusta")}), env)
	require.NoError(t, err)
	assert.Equal(t, "augusta", got)

	_, err = reg.Build("Course", value.NewObject(), env)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `no builder registered for entity "Course"`)
}
