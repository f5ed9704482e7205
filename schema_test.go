package atomicdb

import (
	"errors"
	"strings"
	"testing"
)

func TestSchemaFieldRules(t *testing.T) {
	reg := newSchemaRegistry()
	err := reg.setFields("users", []FieldDef{
		{Name: "name", Type: TypeString, Required: true},
		{Name: "age", Type: TypeNumber, Required: true},
		{Name: "tags", Type: TypeList},
		{Name: "note"},
	})
	if err != nil {
		t.Fatalf("setFields failed: %v", err)
	}

	valid := Document{"name": "ada", "age": 36, "tags": []interface{}{"x"}, "note": 123}
	if err := reg.validate("users", valid); err != nil {
		t.Errorf("Valid document rejected: %v", err)
	}

	// Untyped fields accept any value, typed optional fields do not
	if err := reg.validate("users", Document{"name": "ada", "age": 36, "tags": "not-a-list"}); err == nil {
		t.Error("Wrong type on optional field accepted")
	}

	// Other collections are unaffected
	if err := reg.validate("orders", Document{}); err != nil {
		t.Errorf("Collection without schema rejected a document: %v", err)
	}
}

func TestSchemaFirstViolationWins(t *testing.T) {
	reg := newSchemaRegistry()
	if err := reg.setFields("users", []FieldDef{
		{Name: "name", Type: TypeString, Required: true},
		{Name: "age", Type: TypeNumber, Required: true},
	}); err != nil {
		t.Fatalf("setFields failed: %v", err)
	}

	// Both fields are missing; the first declared one is reported
	err := reg.validate("users", Document{})
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("Expected ValidationError, got %v", err)
	}
	if verr.Field != "name" || verr.Message != "missing required field: name" {
		t.Errorf("Wrong violation reported: field=%q message=%q", verr.Field, verr.Message)
	}

	// A wrong type on the first field outranks a missing second field
	err = reg.validate("users", Document{"name": 42})
	if !errors.As(err, &verr) {
		t.Fatalf("Expected ValidationError, got %v", err)
	}
	if verr.Field != "name" || verr.Message != "field name must be a string" {
		t.Errorf("Wrong violation reported: field=%q message=%q", verr.Field, verr.Message)
	}
}

func TestSchemaTypeAliases(t *testing.T) {
	reg := newSchemaRegistry()
	err := reg.setFields("mixed", []FieldDef{
		{Name: "a", Type: "str"},
		{Name: "b", Type: "int"},
		{Name: "c", Type: "float"},
		{Name: "d", Type: "bool"},
		{Name: "e", Type: "dict"},
		{Name: "f", Type: "array"},
	})
	if err != nil {
		t.Fatalf("Aliases rejected: %v", err)
	}

	doc := Document{
		"a": "x",
		"b": 1,
		"c": 1.5,
		"d": true,
		"e": map[string]interface{}{},
		"f": []interface{}{},
	}
	if err := reg.validate("mixed", doc); err != nil {
		t.Errorf("Alias-typed document rejected: %v", err)
	}

	// int and float both name the number kind, so they cross-accept
	if err := reg.validate("mixed", Document{"b": 1.5, "c": 2}); err != nil {
		t.Errorf("Numeric kinds should not distinguish int from float: %v", err)
	}
}

func TestSchemaRejectsBadDefinitions(t *testing.T) {
	reg := newSchemaRegistry()

	err := reg.setFields("users", []FieldDef{{Name: "age", Type: "integer"}})
	if !errors.Is(err, ErrUnknownType) {
		t.Errorf("Unknown type name should fail eagerly, got %v", err)
	}
	err = reg.setFields("users", []FieldDef{{Name: "", Type: TypeString}})
	if err == nil || !strings.Contains(err.Error(), "empty name") {
		t.Errorf("Empty field name should fail, got %v", err)
	}

	// Failed installs leave no schema behind
	if err := reg.validate("users", Document{"anything": true}); err != nil {
		t.Errorf("Rejected install should not have taken effect: %v", err)
	}
}

func TestSchemaRemoval(t *testing.T) {
	reg := newSchemaRegistry()
	if err := reg.setFields("users", []FieldDef{{Name: "name", Required: true}}); err != nil {
		t.Fatalf("setFields failed: %v", err)
	}
	if err := reg.validate("users", Document{}); err == nil {
		t.Fatal("Schema should be active")
	}

	// An empty definition list removes the schema
	if err := reg.setFields("users", nil); err != nil {
		t.Fatalf("Removal failed: %v", err)
	}
	if err := reg.validate("users", Document{}); err != nil {
		t.Errorf("Removed schema still validating: %v", err)
	}
}

func TestSchemaJSON(t *testing.T) {
	reg := newSchemaRegistry()
	schema := `{
		"type": "object",
		"properties": {
			"email": {"type": "string", "format": "email"},
			"age": {"type": "integer", "minimum": 0}
		},
		"required": ["email"]
	}`
	if err := reg.setJSON("users", schema); err != nil {
		t.Fatalf("setJSON failed: %v", err)
	}

	if err := reg.validate("users", Document{"email": "ada@example.com", "age": 36}); err != nil {
		t.Errorf("Valid document rejected: %v", err)
	}

	err := reg.validate("users", Document{"age": -1})
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("Expected ValidationError, got %v", err)
	}

	if err := reg.setJSON("users", "{not json"); err == nil {
		t.Error("Malformed schema accepted")
	}

	// Empty schema text removes the JSON Schema
	if err := reg.setJSON("users", ""); err != nil {
		t.Fatalf("Removal failed: %v", err)
	}
	if err := reg.validate("users", Document{"age": -1}); err != nil {
		t.Errorf("Removed JSON Schema still validating: %v", err)
	}
}

func TestSchemaFieldAndJSONCombined(t *testing.T) {
	reg := newSchemaRegistry()
	if err := reg.setFields("users", []FieldDef{{Name: "name", Type: TypeString, Required: true}}); err != nil {
		t.Fatalf("setFields failed: %v", err)
	}
	if err := reg.setJSON("users", `{"type": "object", "properties": {"age": {"minimum": 18}}}`); err != nil {
		t.Fatalf("setJSON failed: %v", err)
	}

	// Field rules run first
	err := reg.validate("users", Document{"age": 5})
	var verr *ValidationError
	if !errors.As(err, &verr) || verr.Field != "name" {
		t.Errorf("Field rules should report before the JSON Schema, got %v", err)
	}

	// With field rules satisfied the JSON Schema still applies
	if err := reg.validate("users", Document{"name": "kid", "age": 5}); err == nil {
		t.Error("JSON Schema violation not reported")
	}
	if err := reg.validate("users", Document{"name": "ada", "age": 36}); err != nil {
		t.Errorf("Fully valid document rejected: %v", err)
	}

	reg.drop("users")
	if err := reg.validate("users", Document{}); err != nil {
		t.Errorf("drop should remove both schema forms: %v", err)
	}
}
