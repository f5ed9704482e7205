package atomicdb

import (
	"fmt"
	"sync"

	"github.com/xeipuuv/gojsonschema"

	"github.com/kartikbazzad/atomicdb/internal/query"
)

// FieldType names the value kinds a simple schema can require. The short
// aliases accepted by type queries (str, int, float, bool, dict) work here
// too.
type FieldType string

const (
	TypeString  FieldType = "string"
	TypeNumber  FieldType = "number"
	TypeBoolean FieldType = "boolean"
	TypeList    FieldType = "list"
	TypeObject  FieldType = "object"
	TypeNull    FieldType = "null"
)

// FieldDef is one rule of a simple schema: the named field must exist when
// Required, and when present must hold a value of Type. An empty Type
// requires presence only.
type FieldDef struct {
	Name     string
	Type     FieldType
	Required bool
}

// schemaRegistry holds per-collection validation rules. A collection may
// carry a simple field-list schema, a compiled JSON Schema, or neither.
// Field lists keep their declaration order so the first reported violation
// is deterministic.
type schemaRegistry struct {
	mu     sync.RWMutex
	fields map[string][]FieldDef
	json   map[string]*gojsonschema.Schema
}

func newSchemaRegistry() *schemaRegistry {
	return &schemaRegistry{
		fields: make(map[string][]FieldDef),
		json:   make(map[string]*gojsonschema.Schema),
	}
}

// setFields installs a simple schema, replacing any previous one. Type
// names are resolved eagerly so a typo surfaces here, not on first insert.
func (r *schemaRegistry) setFields(collection string, defs []FieldDef) error {
	for _, def := range defs {
		if def.Name == "" {
			return fmt.Errorf("schema field with empty name")
		}
		if def.Type == "" {
			continue
		}
		if _, err := query.KindOf(string(def.Type)); err != nil {
			return fmt.Errorf("schema field %s: %w", def.Name, err)
		}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(defs) == 0 {
		delete(r.fields, collection)
		return nil
	}
	copied := make([]FieldDef, len(defs))
	copy(copied, defs)
	r.fields[collection] = copied
	return nil
}

// setJSON compiles and installs a JSON Schema. An empty document removes
// the schema.
func (r *schemaRegistry) setJSON(collection, schema string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if schema == "" {
		delete(r.json, collection)
		return nil
	}
	compiled, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(schema))
	if err != nil {
		return fmt.Errorf("invalid json schema: %w", err)
	}
	r.json[collection] = compiled
	return nil
}

func (r *schemaRegistry) drop(collection string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.fields, collection)
	delete(r.json, collection)
}

// validate checks doc against whatever the collection declares and returns
// the first violation. Field rules run in declaration order; the JSON
// Schema, when present, runs after them.
func (r *schemaRegistry) validate(collection string, doc map[string]interface{}) error {
	r.mu.RLock()
	defs := r.fields[collection]
	compiled := r.json[collection]
	r.mu.RUnlock()

	for _, def := range defs {
		value, ok := doc[def.Name]
		if !ok {
			if def.Required {
				return newMissingFieldError(def.Name)
			}
			continue
		}
		if def.Type == "" {
			continue
		}
		want, err := query.KindOf(string(def.Type))
		if err != nil {
			return fmt.Errorf("schema field %s: %w", def.Name, err)
		}
		if query.ValueKind(value) != want {
			return newWrongTypeError(def.Name, def.Type)
		}
	}

	if compiled == nil {
		return nil
	}
	result, err := compiled.Validate(gojsonschema.NewGoLoader(doc))
	if err != nil {
		return fmt.Errorf("schema validation error: %w", err)
	}
	if !result.Valid() {
		first := result.Errors()[0]
		return &ValidationError{Field: first.Field(), Message: first.String()}
	}
	return nil
}
