// Package query implements the predicate engine for atomicdb.
//
// A predicate is a reusable boolean test over a document. Structured
// predicates form an AST (leaves plus And/Or/Not combinators) that the
// planner can inspect: a pure conjunction of equality leaves exposes its
// field -> literal conditions so the store can answer it from a secondary
// index instead of scanning. Every other shape (ranges, regex, containment,
// Or, Not, opaque functions) evaluates per document during a full scan.
package query

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// Operator represents a comparison operator (e.g. $eq, $gt, $in).
type Operator string

const (
	OpEq       Operator = "$eq"
	OpNe       Operator = "$ne"
	OpGt       Operator = "$gt"
	OpGte      Operator = "$gte"
	OpLt       Operator = "$lt"
	OpLte      Operator = "$lte"
	OpIn       Operator = "$in"
	OpNin      Operator = "$nin"
	OpExists   Operator = "$exists"
	OpRegex    Operator = "$regex"
	OpContains Operator = "$contains"
	OpType     Operator = "$type"
)

// ErrUnknownOperator is returned when a query names an operator outside the
// supported set. It is an evaluation failure, never a silent non-match.
var ErrUnknownOperator = errors.New("unknown operator")

// Predicate is the common interface for every query form.
type Predicate interface {
	// Evaluate reports whether doc matches. Errors (unknown type names,
	// incomparable values, bad regex) propagate instead of degrading to
	// false.
	Evaluate(doc map[string]interface{}) (bool, error)

	// Equalities reports the field -> literal map when the predicate is a
	// pure conjunction of equality leaves. ok is false for every other
	// shape, which forces the caller onto the scan path.
	Equalities() (map[string]interface{}, bool)
}

// Leaf is a single-field test.
type Leaf struct {
	Field    string
	Operator Operator
	Value    interface{}

	re   *regexp.Regexp // compiled for OpRegex
	kind Kind           // resolved for OpType
	err  error          // construction failure, surfaced on Evaluate
}

// NewLeaf builds a field leaf, precompiling regex patterns and resolving
// type names so construction failures surface on first evaluation.
func NewLeaf(field string, op Operator, value interface{}) *Leaf {
	l := &Leaf{Field: field, Operator: op, Value: value}
	switch op {
	case OpRegex:
		pattern, ok := value.(string)
		if !ok {
			l.err = fmt.Errorf("regex pattern for field %s must be a string", field)
			return l
		}
		l.re, l.err = compileAnchored(pattern)
	case OpType:
		name, ok := value.(string)
		if !ok {
			l.err = fmt.Errorf("type name for field %s must be a string", field)
			return l
		}
		l.kind, l.err = KindOf(name)
	}
	return l
}

// compileAnchored compiles pattern to match from the start of the input,
// not to search inside it. The tail is left open.
func compileAnchored(pattern string) (*regexp.Regexp, error) {
	re, err := regexp.Compile("^(?:" + pattern + ")")
	if err != nil {
		return nil, fmt.Errorf("invalid regex pattern: %w", err)
	}
	return re, nil
}

func (l *Leaf) Evaluate(doc map[string]interface{}) (bool, error) {
	if l.err != nil {
		return false, l.err
	}

	val, exists := doc[l.Field]

	switch l.Operator {
	case OpExists:
		want := true
		if b, ok := l.Value.(bool); ok {
			want = b
		}
		return exists == want, nil

	case OpType:
		if !exists {
			return false, nil
		}
		return kindOfValue(val) == l.kind, nil

	case OpContains:
		// Membership in the document's list value. A missing field behaves
		// as an empty list. String fields fall back to substring search.
		if !exists {
			return false, nil
		}
		switch v := val.(type) {
		case []interface{}:
			for _, item := range v {
				if valueEqual(item, l.Value) {
					return true, nil
				}
			}
			return false, nil
		case string:
			s, ok := l.Value.(string)
			return ok && strings.Contains(v, s), nil
		default:
			return false, nil
		}

	case OpIn, OpNin:
		// Membership of the document's value in the candidate list.
		list, ok := l.Value.([]interface{})
		if !ok {
			return false, fmt.Errorf("value for %s on field %s must be a list", l.Operator, l.Field)
		}
		if !exists {
			return false, nil
		}
		found := false
		for _, item := range list {
			if valueEqual(val, item) {
				found = true
				break
			}
		}
		if l.Operator == OpNin {
			return !found, nil
		}
		return found, nil

	case OpRegex:
		if !exists {
			return false, nil
		}
		s, ok := val.(string)
		if !ok {
			return false, nil
		}
		re := l.re
		if re == nil {
			var err error
			re, err = compileAnchored(fmt.Sprintf("%v", l.Value))
			if err != nil {
				return false, err
			}
		}
		return re.MatchString(s), nil

	case OpEq:
		return exists && valueEqual(val, l.Value), nil

	case OpNe:
		return exists && !valueEqual(val, l.Value), nil

	case OpGt, OpGte, OpLt, OpLte:
		if !exists {
			return false, nil
		}
		cmp, err := Order(val, l.Value)
		if err != nil {
			return false, fmt.Errorf("field %s: %w", l.Field, err)
		}
		switch l.Operator {
		case OpGt:
			return cmp > 0, nil
		case OpGte:
			return cmp >= 0, nil
		case OpLt:
			return cmp < 0, nil
		default:
			return cmp <= 0, nil
		}

	default:
		return false, fmt.Errorf("%w: %s", ErrUnknownOperator, l.Operator)
	}
}

func (l *Leaf) Equalities() (map[string]interface{}, bool) {
	if l.Operator != OpEq {
		return nil, false
	}
	return map[string]interface{}{l.Field: l.Value}, true
}

// And matches when both operands match.
type And struct {
	Left, Right Predicate
}

func (n *And) Evaluate(doc map[string]interface{}) (bool, error) {
	ok, err := n.Left.Evaluate(doc)
	if err != nil || !ok {
		return false, err
	}
	return n.Right.Evaluate(doc)
}

// Equalities merges both sides when each is itself a pure equality
// conjunction. Conflicting literals for the same field taint the result:
// such a conjunction matches nothing, and an index lookup on the merged map
// would wrongly return documents.
func (n *And) Equalities() (map[string]interface{}, bool) {
	left, ok := n.Left.Equalities()
	if !ok {
		return nil, false
	}
	right, ok := n.Right.Equalities()
	if !ok {
		return nil, false
	}
	merged := make(map[string]interface{}, len(left)+len(right))
	for k, v := range left {
		merged[k] = v
	}
	for k, v := range right {
		if prev, dup := merged[k]; dup && !valueEqual(prev, v) {
			return nil, false
		}
		merged[k] = v
	}
	return merged, true
}

// Or matches when either operand matches.
type Or struct {
	Left, Right Predicate
}

func (n *Or) Evaluate(doc map[string]interface{}) (bool, error) {
	ok, err := n.Left.Evaluate(doc)
	if err != nil || ok {
		return ok, err
	}
	return n.Right.Evaluate(doc)
}

func (n *Or) Equalities() (map[string]interface{}, bool) { return nil, false }

// Not inverts its operand.
type Not struct {
	Inner Predicate
}

func (n *Not) Evaluate(doc map[string]interface{}) (bool, error) {
	ok, err := n.Inner.Evaluate(doc)
	if err != nil {
		return false, err
	}
	return !ok, nil
}

func (n *Not) Equalities() (map[string]interface{}, bool) { return nil, false }

// Func adapts an arbitrary boolean function to the Predicate interface.
// It is opaque to the planner.
type Func func(doc map[string]interface{}) bool

func (f Func) Evaluate(doc map[string]interface{}) (bool, error) { return f(doc), nil }

func (f Func) Equalities() (map[string]interface{}, bool) { return nil, false }

// All matches every document. Parse returns it for an empty query map.
type All struct{}

func (All) Evaluate(doc map[string]interface{}) (bool, error) { return true, nil }

// Equalities returns an empty condition map. The planner treats an empty
// map as "nothing to look up" and scans.
func (All) Equalities() (map[string]interface{}, bool) {
	return map[string]interface{}{}, true
}
