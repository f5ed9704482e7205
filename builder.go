package atomicdb

import (
	"github.com/kartikbazzad/atomicdb/internal/query"
)

// Predicate is a reusable boolean test over a document. Build one from
// Field, combine with And/Or/Not, or adapt any function with MatchFunc.
// Predicates built purely from Field(...).Eq(...) joined by And stay
// introspectable, letting the store answer them from a matching index.
type Predicate = query.Predicate

// Pred wraps a predicate with chainable combinators.
type Pred struct {
	Predicate
}

// And matches when both p and other match.
func (p Pred) And(other Predicate) Pred {
	return Pred{&query.And{Left: p.Predicate, Right: other}}
}

// Or matches when either p or other matches.
func (p Pred) Or(other Predicate) Pred {
	return Pred{&query.Or{Left: p.Predicate, Right: other}}
}

// Not inverts p.
func (p Pred) Not() Pred {
	return Pred{&query.Not{Inner: p.Predicate}}
}

// And combines two predicates conjunctively.
func And(left, right Predicate) Pred {
	return Pred{&query.And{Left: left, Right: right}}
}

// Or combines two predicates disjunctively.
func Or(left, right Predicate) Pred {
	return Pred{&query.Or{Left: left, Right: right}}
}

// Not inverts a predicate.
func Not(p Predicate) Pred {
	return Pred{&query.Not{Inner: p}}
}

// ParseQuery converts a map-form query into a predicate: field names map
// to literals (equality) or operator objects like {"$gt": 30}, with
// $and, $or and $not combining clauses. Find and FindOne accept the map
// form directly; ParseQuery serves callers of the predicate-taking
// operations.
func ParseQuery(q map[string]interface{}) (Predicate, error) {
	return query.Parse(q)
}

// MatchFunc adapts an arbitrary boolean function into a predicate. Such
// predicates always scan; the planner cannot see inside them.
func MatchFunc(f func(doc Document) bool) Pred {
	return Pred{query.Func(func(m map[string]interface{}) bool {
		return f(Document(m))
	})}
}

// FieldRef is a typed handle on a document field; its methods build
// predicate leaves.
type FieldRef struct {
	name string
}

// Field returns a handle for building predicates over the named field.
func Field(name string) FieldRef { return FieldRef{name: name} }

// Eq tests for exact value equality.
func (f FieldRef) Eq(value interface{}) Pred {
	return Pred{query.NewLeaf(f.name, query.OpEq, value)}
}

// Ne tests for inequality. A document without the field does not match.
func (f FieldRef) Ne(value interface{}) Pred {
	return Pred{query.NewLeaf(f.name, query.OpNe, value)}
}

// Gt tests field > value under the value's natural ordering.
func (f FieldRef) Gt(value interface{}) Pred {
	return Pred{query.NewLeaf(f.name, query.OpGt, value)}
}

// Gte tests field >= value.
func (f FieldRef) Gte(value interface{}) Pred {
	return Pred{query.NewLeaf(f.name, query.OpGte, value)}
}

// Lt tests field < value.
func (f FieldRef) Lt(value interface{}) Pred {
	return Pred{query.NewLeaf(f.name, query.OpLt, value)}
}

// Lte tests field <= value.
func (f FieldRef) Lte(value interface{}) Pred {
	return Pred{query.NewLeaf(f.name, query.OpLte, value)}
}

// Matches tests the field's string value against pattern, anchored at the
// start of the value.
func (f FieldRef) Matches(pattern string) Pred {
	return Pred{query.NewLeaf(f.name, query.OpRegex, pattern)}
}

// Contains tests membership of value in the field's list. A missing field
// behaves as an empty list; a string field falls back to substring search.
func (f FieldRef) Contains(value interface{}) Pred {
	return Pred{query.NewLeaf(f.name, query.OpContains, value)}
}

// Exists tests key presence, whatever the value.
func (f FieldRef) Exists() Pred {
	return Pred{query.NewLeaf(f.name, query.OpExists, true)}
}

// IsType tests the field's value kind: string, number, boolean, list,
// object or null. Unknown names fail the query rather than matching
// nothing.
func (f FieldRef) IsType(typeName string) Pred {
	return Pred{query.NewLeaf(f.name, query.OpType, typeName)}
}
