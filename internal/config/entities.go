package config

import (
	"fmt"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/rubeniskov/ripel/pkg/entity"
)

// FieldDecl is one field in a declarative entity definition. A field with a
// non-empty Reference is an association; everything else is a table field.
type FieldDecl struct {
	Name       string `koanf:"name"`
	Column     string `koanf:"column"`
	PrimaryKey bool   `koanf:"primary_key"`
	Template   string `koanf:"template"`
	Type       string `koanf:"type"`
	Nullable   bool   `koanf:"nullable"`
	Reference  string `koanf:"reference"`
	Via        string `koanf:"via"`
}

// EntityDecl is one declarative entity definition.
type EntityDecl struct {
	Name       string      `koanf:"name"`
	Table      string      `koanf:"table"`
	Type       string      `koanf:"type"`
	PrimaryKey string      `koanf:"primary_key"`
	Fields     []FieldDecl `koanf:"fields"`
}

// EntitiesFile is the root of an entity definitions document.
type EntitiesFile struct {
	Entities []EntityDecl `koanf:"entities"`
}

// LoadEntities reads a YAML entity definitions file and converts it into
// models ready for registration.
func LoadEntities(path string) ([]*entity.Model, error) {
	k := koanf.New(".")
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("failed to load entities file %s: %w", path, err)
	}

	var doc EntitiesFile
	if err := k.Unmarshal("", &doc); err != nil {
		return nil, fmt.Errorf("failed to parse entities file %s: %w", path, err)
	}
	if len(doc.Entities) == 0 {
		return nil, fmt.Errorf("entities file %s defines no entities", path)
	}

	models := make([]*entity.Model, 0, len(doc.Entities))
	for _, decl := range doc.Entities {
		m, err := decl.ToModel()
		if err != nil {
			return nil, fmt.Errorf("entity %q: %w", decl.Name, err)
		}
		models = append(models, m)
	}
	return models, nil
}

// ToModel converts the declaration into an entity model. Registration
// performs the full structural validation; this only rejects what cannot be
// represented at all.
func (d *EntityDecl) ToModel() (*entity.Model, error) {
	typeName := d.Type
	if typeName == "" {
		typeName = d.Name
	}
	m := &entity.Model{
		EntityName: d.Name,
		TableName:  d.Table,
		TypeName:   typeName,
		PrimaryKey: d.PrimaryKey,
	}
	for _, f := range d.Fields {
		fld, err := f.toField()
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", f.Name, err)
		}
		m.Fields = append(m.Fields, fld)
	}
	return m, nil
}

func (f *FieldDecl) toField() (entity.Field, error) {
	if f.Reference != "" {
		ref := entity.ReferenceField{
			Name:      f.Name,
			Reference: f.Reference,
			TypeName:  f.Type,
		}
		if f.Via != "" {
			hops, err := entity.ParseHops(f.Via)
			if err != nil {
				return nil, err
			}
			ref.Via = hops
		}
		return ref, nil
	}

	column := f.Column
	if column == "" {
		column = f.Name
	}
	return entity.TableField{
		Name:       f.Name,
		Column:     column,
		PrimaryKey: f.PrimaryKey,
		Template:   f.Template,
		TypeName:   f.Type,
		Nullable:   f.Nullable,
	}, nil
}
