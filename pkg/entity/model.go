// Package entity defines the static per-entity schema metadata: field
// models, join hops and the process-wide model registry. Models are built
// once at startup (by codegen or by hand) and are read-only afterwards.
package entity

import (
	"fmt"
	"strings"
)

// Field is one declared field of an entity: either a TableField backed by a
// physical column or a ReferenceField resolved through joins.
type Field interface {
	FieldName() string
}

// TableField is a field backed by a physical column. When Template is
// non-empty the field's value is computed by evaluating the template
// instead of reading the column directly.
type TableField struct {
	Name       string
	Column     string
	PrimaryKey bool
	Template   string
	TypeName   string
	Nullable   bool
}

func (f TableField) FieldName() string { return f.Name }

func (f TableField) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s: %s", f.Name, f.TypeName)
	if f.PrimaryKey {
		sb.WriteString(" [PK]")
	}
	fmt.Fprintf(&sb, " @%s", f.Column)
	if f.Template != "" {
		fmt.Fprintf(&sb, " {tpl: %s}", f.Template)
	}
	return sb.String()
}

// ReferenceField is a declared association to another entity, written as
// "TargetEntity.targetField" and optionally reached through a Via chain.
type ReferenceField struct {
	Name      string
	Reference string
	Via       []Hop
	TypeName  string
}

func (f ReferenceField) FieldName() string { return f.Name }

func (f ReferenceField) String() string {
	s := fmt.Sprintf("%s: %s (ref %s)", f.Name, f.TypeName, f.Reference)
	if len(f.Via) > 0 {
		hops := make([]string, len(f.Via))
		for i, h := range f.Via {
			hops[i] = h.String()
		}
		s += fmt.Sprintf(" {via: %s}", strings.Join(hops, " -> "))
	}
	return s
}

// Model is the static schema for one entity.
type Model struct {
	// EntityName is the logical domain name (e.g. "Player").
	EntityName string
	// TableName is the backing table (e.g. "Jugador").
	TableName string
	// TypeName is the concrete Go type name.
	TypeName string
	// Fields in declaration order.
	Fields []Field
	// PrimaryKey is the name of the primary-key field.
	PrimaryKey string
}

// Field looks up a field model by declared name. Field counts are small,
// a linear scan is fine.
func (m *Model) Field(name string) (Field, bool) {
	for _, f := range m.Fields {
		if f.FieldName() == name {
			return f, true
		}
	}
	return nil, false
}

// TableField looks up a plain table field by declared name.
func (m *Model) TableField(name string) (TableField, bool) {
	for _, f := range m.Fields {
		if tf, ok := f.(TableField); ok && tf.Name == name {
			return tf, true
		}
	}
	return TableField{}, false
}

// TableFields returns the table fields in declaration order.
func (m *Model) TableFields() []TableField {
	var out []TableField
	for _, f := range m.Fields {
		if tf, ok := f.(TableField); ok {
			out = append(out, tf)
		}
	}
	return out
}

// ReferenceFields returns the reference fields in declaration order.
func (m *Model) ReferenceFields() []ReferenceField {
	var out []ReferenceField
	for _, f := range m.Fields {
		if rf, ok := f.(ReferenceField); ok {
			out = append(out, rf)
		}
	}
	return out
}

// PrimaryKeyField returns the table field marked as primary key.
func (m *Model) PrimaryKeyField() (TableField, bool) {
	for _, f := range m.Fields {
		if tf, ok := f.(TableField); ok && tf.PrimaryKey {
			return tf, true
		}
	}
	return TableField{}, false
}

// Validate checks the model invariants that do not require other entities:
// non-empty names and exactly one primary-key table field matching
// PrimaryKey, plus well-formed reference texts.
func (m *Model) Validate() error {
	if m.EntityName == "" || m.TableName == "" {
		return fmt.Errorf("entity %q: entity and table names are required", m.EntityName)
	}
	pks := 0
	for _, f := range m.Fields {
		switch fld := f.(type) {
		case TableField:
			if fld.PrimaryKey {
				pks++
				if fld.Name != m.PrimaryKey {
					return fmt.Errorf("entity %q: primary key field %q does not match declared %q",
						m.EntityName, fld.Name, m.PrimaryKey)
				}
			}
		case ReferenceField:
			if _, _, err := ParseReference(fld.Reference); err != nil {
				return fmt.Errorf("entity %q field %q: %w", m.EntityName, fld.Name, err)
			}
		}
	}
	if pks != 1 {
		return fmt.Errorf("entity %q: expected exactly one primary key field, found %d", m.EntityName, pks)
	}
	return nil
}

// ParseReference splits reference text "EntityName.fieldName".
func ParseReference(s string) (entityName, fieldName string, err error) {
	e, f, ok := strings.Cut(s, ".")
	if !ok {
		return "", "", fmt.Errorf("expected Entity.field in %q", s)
	}
	e, f = strings.TrimSpace(e), strings.TrimSpace(f)
	if e == "" || f == "" {
		return "", "", fmt.Errorf("expected Entity.field in %q", s)
	}
	return e, f, nil
}
