package query

import (
	"fmt"
)

// Parse converts a map-based query into a Predicate.
//
//	{ "age": { "$gt": 25 }, "status": "active" }
//
// Bare values mean equality. $and/$or take a list of sub-queries, $not a
// single sub-query. An empty map matches everything.
func Parse(q map[string]interface{}) (Predicate, error) {
	var preds []Predicate

	for key, val := range q {
		switch key {
		case "$and", "$or":
			list, ok := val.([]interface{})
			if !ok {
				return nil, fmt.Errorf("value for %s must be a list", key)
			}
			children := make([]Predicate, 0, len(list))
			for _, item := range list {
				subMap, ok := item.(map[string]interface{})
				if !ok {
					return nil, fmt.Errorf("element of %s must be an object", key)
				}
				sub, err := Parse(subMap)
				if err != nil {
					return nil, err
				}
				children = append(children, sub)
			}
			if len(children) == 0 {
				return nil, fmt.Errorf("%s requires at least one sub-query", key)
			}
			if key == "$and" {
				preds = append(preds, foldAnd(children))
			} else {
				preds = append(preds, foldOr(children))
			}

		case "$not":
			subMap, ok := val.(map[string]interface{})
			if !ok {
				return nil, fmt.Errorf("value for $not must be an object")
			}
			sub, err := Parse(subMap)
			if err != nil {
				return nil, err
			}
			preds = append(preds, &Not{Inner: sub})

		default:
			// Field clause: either { "$op": value, ... } or an implicit $eq.
			if valMap, ok := val.(map[string]interface{}); ok && hasOperatorKey(valMap) {
				for op, opVal := range valMap {
					switch Operator(op) {
					case OpEq, OpNe, OpGt, OpGte, OpLt, OpLte, OpIn, OpNin, OpExists, OpRegex, OpContains, OpType:
						preds = append(preds, NewLeaf(key, Operator(op), opVal))
					default:
						return nil, fmt.Errorf("%w: %s", ErrUnknownOperator, op)
					}
				}
			} else {
				preds = append(preds, NewLeaf(key, OpEq, val))
			}
		}
	}

	if len(preds) == 0 {
		return All{}, nil
	}
	return foldAnd(preds), nil
}

// hasOperatorKey reports whether m looks like an operator clause rather
// than a literal nested-object equality value.
func hasOperatorKey(m map[string]interface{}) bool {
	for k := range m {
		if len(k) > 0 && k[0] == '$' {
			return true
		}
	}
	return false
}

func foldAnd(preds []Predicate) Predicate {
	node := preds[0]
	for _, p := range preds[1:] {
		node = &And{Left: node, Right: p}
	}
	return node
}

func foldOr(preds []Predicate) Predicate {
	node := preds[0]
	for _, p := range preds[1:] {
		node = &Or{Left: node, Right: p}
	}
	return node
}
