package rules

import (
	"strings"
	"testing"

	"github.com/kartikbazzad/atomicdb"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	engine, err := NewEngine()
	if err != nil {
		t.Fatalf("Failed to create engine: %v", err)
	}
	return engine
}

func TestEvaluate(t *testing.T) {
	engine := newTestEngine(t)

	doc := map[string]interface{}{
		"age":    36,
		"name":   "ada",
		"role":   "admin",
		"active": true,
	}

	cases := []struct {
		name       string
		expression string
		want       bool
	}{
		{"empty matches nothing", "", false},
		{"literal true", "true", true},
		{"literal false", "false", false},
		{"number comparison", "doc.age >= 18", true},
		{"number comparison false", "doc.age > 100", false},
		{"string equality", `doc.name == "ada"`, true},
		{"boolean field", "doc.active", true},
		{"conjunction", `doc.age >= 18 && doc.role == "admin"`, true},
		{"disjunction", `doc.role == "user" || doc.age == 36`, true},
		{"negation", `!(doc.name == "bob")`, true},
		{"string function", `doc.name.startsWith("ad")`, true},
		{"membership", `"age" in doc`, true},
		{"membership miss", `"ghost" in doc`, false},
	}
	for _, tc := range cases {
		got, err := engine.Evaluate(tc.expression, doc)
		if err != nil {
			t.Errorf("%s: evaluation failed: %v", tc.name, err)
			continue
		}
		if got != tc.want {
			t.Errorf("%s: got %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestEvaluateCompileError(t *testing.T) {
	engine := newTestEngine(t)

	_, err := engine.Evaluate("doc.age >=", map[string]interface{}{"age": 1})
	if err == nil {
		t.Fatal("Expected compile error")
	}
	if !strings.Contains(err.Error(), "compile error") {
		t.Errorf("Unexpected error text: %v", err)
	}
}

func TestEvaluateNonBoolean(t *testing.T) {
	engine := newTestEngine(t)

	_, err := engine.Evaluate("doc.age + 1", map[string]interface{}{"age": 1})
	if err == nil {
		t.Fatal("Expected error for non-boolean expression")
	}
	if !strings.Contains(err.Error(), "must return boolean") {
		t.Errorf("Unexpected error text: %v", err)
	}
}

func TestEvaluateMissingField(t *testing.T) {
	engine := newTestEngine(t)

	// Referencing an absent key is an evaluation error, not a non-match
	_, err := engine.Evaluate("doc.ghost == 1", map[string]interface{}{"age": 1})
	if err == nil {
		t.Fatal("Expected eval error for missing key")
	}

	// Guarding with membership avoids the error
	ok, err := engine.Evaluate(`"ghost" in doc && doc.ghost == 1`, map[string]interface{}{"age": 1})
	if err != nil {
		t.Fatalf("Guarded expression failed: %v", err)
	}
	if ok {
		t.Error("Guarded expression should not match")
	}
}

func TestProgramCache(t *testing.T) {
	engine := newTestEngine(t)

	const expression = "doc.age >= 18"
	if _, err := engine.Evaluate(expression, map[string]interface{}{"age": 20}); err != nil {
		t.Fatalf("First evaluation failed: %v", err)
	}

	cached, ok := engine.prgCache.Load(expression)
	if !ok {
		t.Fatal("Expected the compiled program to be cached")
	}

	if _, err := engine.Evaluate(expression, map[string]interface{}{"age": 10}); err != nil {
		t.Fatalf("Second evaluation failed: %v", err)
	}
	again, _ := engine.prgCache.Load(expression)
	if cached != again {
		t.Error("Expected the cached program to be reused")
	}
}

func TestPredicate(t *testing.T) {
	engine := newTestEngine(t)

	db, err := atomicdb.Open("")
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	if _, err := db.Insert("users", atomicdb.Document{"name": "ada", "age": 36}); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	if _, err := db.Insert("users", atomicdb.Document{"name": "bob", "age": 17}); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	if _, err := db.Insert("users", atomicdb.Document{"name": "cid"}); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	pred, err := engine.Predicate(`"age" in doc && doc.age >= 18`)
	if err != nil {
		t.Fatalf("Predicate failed: %v", err)
	}

	rs, err := db.Search("users", pred)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if rs.Count() != 1 {
		t.Fatalf("Expected 1 match, got %d", rs.Count())
	}
	doc, _ := rs.First()
	if doc["name"] != "ada" {
		t.Errorf("Expected ada, got %v", doc["name"])
	}

	// The document with no age errors inside CEL; the predicate treats
	// that as a non-match rather than failing the search
	unguarded, err := engine.Predicate("doc.age >= 18")
	if err != nil {
		t.Fatalf("Predicate failed: %v", err)
	}
	rs, err = db.Search("users", unguarded)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if rs.Count() != 1 {
		t.Errorf("Expected 1 match, got %d", rs.Count())
	}
}

func TestPredicateCompileErrorSurfacesEarly(t *testing.T) {
	engine := newTestEngine(t)

	if _, err := engine.Predicate("doc.age >="); err == nil {
		t.Error("Expected compile error from Predicate")
	}
}
