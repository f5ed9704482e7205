package atomicdb

import (
	"errors"
	"testing"
)

func evalPred(t *testing.T, p Predicate, doc Document) bool {
	t.Helper()
	ok, err := p.Evaluate(doc)
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}
	return ok
}

func TestFieldComparisons(t *testing.T) {
	doc := Document{"age": 36, "name": "ada"}

	cases := []struct {
		name string
		pred Pred
		want bool
	}{
		{"eq hit", Field("age").Eq(36), true},
		{"eq miss", Field("age").Eq(37), false},
		{"eq numeric widening", Field("age").Eq(36.0), true},
		{"ne", Field("age").Ne(37), true},
		{"ne equal value", Field("age").Ne(36), false},
		{"gt", Field("age").Gt(30), true},
		{"gt boundary", Field("age").Gt(36), false},
		{"gte boundary", Field("age").Gte(36), true},
		{"lt", Field("age").Lt(40), true},
		{"lte boundary", Field("age").Lte(36), true},
		{"string ordering", Field("name").Lt("bob"), true},
		{"missing field eq", Field("ghost").Eq(1), false},
		{"missing field ne", Field("ghost").Ne(1), false},
		{"missing field gt", Field("ghost").Gt(0), false},
	}
	for _, tc := range cases {
		if got := evalPred(t, tc.pred, doc); got != tc.want {
			t.Errorf("%s: got %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestFieldMatches(t *testing.T) {
	doc := Document{"name": "adaline"}

	// The pattern anchors at the start of the value
	if !evalPred(t, Field("name").Matches("ada"), doc) {
		t.Error("Prefix pattern should match")
	}
	if evalPred(t, Field("name").Matches("line"), doc) {
		t.Error("Mid-string pattern should not match")
	}
	if !evalPred(t, Field("name").Matches("a.a"), doc) {
		t.Error("Metacharacters should work")
	}
	// Non-string and missing values never match
	if evalPred(t, Field("name").Matches("ada"), Document{"name": 3}) {
		t.Error("Non-string value should not match")
	}
	if evalPred(t, Field("name").Matches("ada"), Document{}) {
		t.Error("Missing field should not match")
	}
}

func TestFieldContains(t *testing.T) {
	doc := Document{
		"tags":  []interface{}{"a", "b", 3},
		"title": "hello world",
	}

	if !evalPred(t, Field("tags").Contains("a"), doc) {
		t.Error("List membership failed")
	}
	if !evalPred(t, Field("tags").Contains(3.0), doc) {
		t.Error("Numeric membership should widen")
	}
	if evalPred(t, Field("tags").Contains("c"), doc) {
		t.Error("Absent member matched")
	}
	// String fields fall back to substring search
	if !evalPred(t, Field("title").Contains("lo wo"), doc) {
		t.Error("Substring containment failed")
	}
	// Missing field behaves as an empty list
	if evalPred(t, Field("ghost").Contains("a"), doc) {
		t.Error("Missing field matched")
	}
}

func TestFieldExistsAndType(t *testing.T) {
	doc := Document{"a": 1, "b": nil, "c": "x", "d": []interface{}{1}, "e": map[string]interface{}{}}

	if !evalPred(t, Field("a").Exists(), doc) || !evalPred(t, Field("b").Exists(), doc) {
		t.Error("Exists should see present keys, nil values included")
	}
	if evalPred(t, Field("z").Exists(), doc) {
		t.Error("Exists saw a missing key")
	}

	typed := []struct {
		field string
		name  string
	}{
		{"a", "number"}, {"a", "int"}, {"a", "float"},
		{"b", "null"},
		{"c", "string"}, {"c", "str"},
		{"d", "list"}, {"d", "array"},
		{"e", "object"}, {"e", "dict"},
	}
	for _, tc := range typed {
		if !evalPred(t, Field(tc.field).IsType(tc.name), doc) {
			t.Errorf("IsType(%q) should match field %s", tc.name, tc.field)
		}
	}
	if evalPred(t, Field("a").IsType("string"), doc) {
		t.Error("Wrong type matched")
	}

	_, err := Field("a").IsType("integer").Evaluate(doc)
	if !errors.Is(err, ErrUnknownType) {
		t.Errorf("Expected ErrUnknownType, got %v", err)
	}
}

func TestPredCombinators(t *testing.T) {
	doc := Document{"age": 36, "role": "admin"}

	p := Field("age").Gte(18).And(Field("role").Eq("admin"))
	if !evalPred(t, p, doc) {
		t.Error("And should match")
	}
	if evalPred(t, p.Not(), doc) {
		t.Error("Not inverted wrong")
	}

	q := Field("role").Eq("user").Or(Field("age").Eq(36))
	if !evalPred(t, q, doc) {
		t.Error("Or should match on the right side")
	}

	chained := Field("age").Gt(100).Or(Field("age").Lt(10)).Not()
	if !evalPred(t, chained, doc) {
		t.Error("Chained combinators wrong")
	}

	if !evalPred(t, And(Field("age").Eq(36), Field("role").Eq("admin")), doc) {
		t.Error("Package-level And wrong")
	}
	if !evalPred(t, Or(Field("age").Eq(0), Field("role").Eq("admin")), doc) {
		t.Error("Package-level Or wrong")
	}
	if evalPred(t, Not(Field("age").Eq(36)), doc) {
		t.Error("Package-level Not wrong")
	}
}

func TestMatchFunc(t *testing.T) {
	p := MatchFunc(func(doc Document) bool {
		age, ok := doc["age"].(int)
		return ok && age%2 == 0
	})

	if !evalPred(t, p, Document{"age": 36}) {
		t.Error("Expected even age to match")
	}
	if evalPred(t, p, Document{"age": 35}) {
		t.Error("Expected odd age to miss")
	}
	if _, pure := p.Equalities(); pure {
		t.Error("Opaque predicates must not extract equalities")
	}
}

func TestEqualityExtraction(t *testing.T) {
	pure := Field("a").Eq(1).And(Field("b").Eq("x"))
	eqs, ok := pure.Equalities()
	if !ok {
		t.Fatal("Pure AND-of-equality should extract")
	}
	if len(eqs) != 2 || eqs["a"] != 1 || eqs["b"] != "x" {
		t.Errorf("Extracted conditions wrong: %v", eqs)
	}

	impure := []struct {
		name string
		pred Predicate
	}{
		{"range leaf", Field("a").Eq(1).And(Field("b").Gt(2))},
		{"or", Field("a").Eq(1).Or(Field("b").Eq(2))},
		{"not", Field("a").Eq(1).Not()},
		{"conflicting duplicate", Field("a").Eq(1).And(Field("a").Eq(2))},
	}
	for _, tc := range impure {
		if _, ok := tc.pred.Equalities(); ok {
			t.Errorf("%s: extraction should refuse", tc.name)
		}
	}

	// Repeating the same condition stays pure
	same := Field("a").Eq(1).And(Field("a").Eq(1))
	if eqs, ok := same.Equalities(); !ok || eqs["a"] != 1 {
		t.Errorf("Identical duplicate should extract: %v ok=%v", eqs, ok)
	}
}

func TestParseQueryPublicSurface(t *testing.T) {
	pred, err := ParseQuery(map[string]interface{}{
		"role": "admin",
		"age":  map[string]interface{}{"$gte": 30},
	})
	if err != nil {
		t.Fatalf("ParseQuery failed: %v", err)
	}
	if !evalPred(t, pred, Document{"role": "admin", "age": 36}) {
		t.Error("Parsed query should match")
	}
	if evalPred(t, pred, Document{"role": "admin", "age": 20}) {
		t.Error("Parsed query matched below the bound")
	}

	if _, err := ParseQuery(map[string]interface{}{
		"age": map[string]interface{}{"$between": []interface{}{1, 2}},
	}); !errors.Is(err, ErrUnknownOperator) {
		t.Errorf("Expected ErrUnknownOperator, got %v", err)
	}
}
