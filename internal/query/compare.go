package query

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
)

// Kind classifies a document value for $type tests.
type Kind int

const (
	KindNull Kind = iota
	KindBool
	KindNumber
	KindString
	KindList
	KindObject
)

// ErrUnknownType is returned for a type name outside the supported set.
var ErrUnknownType = errors.New("unknown type")

// ErrIncomparable is returned when an ordering operator meets two values
// with no common ordering.
var ErrIncomparable = errors.New("incomparable values")

// KindOf resolves a type name to its Kind. The canonical names are string,
// number, boolean, list, object and null; the short aliases (str, int,
// float, bool, dict) are accepted as well.
func KindOf(name string) (Kind, error) {
	switch strings.ToLower(name) {
	case "string", "str":
		return KindString, nil
	case "number", "int", "float":
		return KindNumber, nil
	case "boolean", "bool":
		return KindBool, nil
	case "list", "array":
		return KindList, nil
	case "object", "dict":
		return KindObject, nil
	case "null":
		return KindNull, nil
	default:
		return 0, fmt.Errorf("%w: %s", ErrUnknownType, name)
	}
}

// ValueKind reports the Kind of a document value. Unknown Go types are
// treated as objects, matching how they behave once round-tripped through
// a storage backend.
func ValueKind(v interface{}) Kind { return kindOfValue(v) }

func kindOfValue(v interface{}) Kind {
	switch v.(type) {
	case nil:
		return KindNull
	case bool:
		return KindBool
	case float64, float32, int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return KindNumber
	case string:
		return KindString
	case []interface{}:
		return KindList
	case map[string]interface{}:
		return KindObject
	default:
		return KindObject
	}
}

// valueEqual is exact value equality. Numbers compare numerically across
// Go's integer and float representations (JSON decoding yields float64,
// in-process callers pass ints); there is no cross-type coercion beyond
// that.
func valueEqual(a, b interface{}) bool {
	fa, aok := toFloat(a)
	fb, bok := toFloat(b)
	if aok || bok {
		return aok && bok && fa == fb
	}
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return reflect.DeepEqual(a, b)
}

// ValueEqual is valueEqual exposed for index key comparison.
func ValueEqual(a, b interface{}) bool { return valueEqual(a, b) }

// Order compares two values under their natural ordering: numbers with
// numbers, strings with strings. Anything else has no defined ordering and
// fails rather than guessing.
func Order(a, b interface{}) (int, error) {
	fa, aok := toFloat(a)
	fb, bok := toFloat(b)
	if aok && bok {
		switch {
		case fa < fb:
			return -1, nil
		case fa > fb:
			return 1, nil
		default:
			return 0, nil
		}
	}
	sa, aok := a.(string)
	sb, bok := b.(string)
	if aok && bok {
		return strings.Compare(sa, sb), nil
	}
	return 0, fmt.Errorf("%w: %T and %T", ErrIncomparable, a, b)
}

// OrderTotal is a total ordering used for sorting: numeric when both sides
// are numeric, otherwise the string forms compare. It never fails, so mixed
// collections still sort deterministically.
func OrderTotal(a, b interface{}) int {
	if cmp, err := Order(a, b); err == nil {
		return cmp
	}
	sa := fmt.Sprintf("%v", a)
	sb := fmt.Sprintf("%v", b)
	return strings.Compare(sa, sb)
}

// Canonical normalizes a value for use as an index key component: every
// numeric representation collapses to float64 so that the literal 30 and
// the decoded 30.0 land in the same bucket. Bools collapse too, keeping
// bucket membership consistent with ValueEqual.
func Canonical(v interface{}) interface{} {
	if f, ok := toFloat(v); ok {
		return f
	}
	return v
}

func toFloat(v interface{}) (float64, bool) {
	switch i := v.(type) {
	case float64:
		return i, true
	case float32:
		return float64(i), true
	case int:
		return float64(i), true
	case int8:
		return float64(i), true
	case int16:
		return float64(i), true
	case int32:
		return float64(i), true
	case int64:
		return float64(i), true
	case uint:
		return float64(i), true
	case uint8:
		return float64(i), true
	case uint16:
		return float64(i), true
	case uint32:
		return float64(i), true
	case uint64:
		return float64(i), true
	case bool:
		if i {
			return 1, true
		}
		return 0, true
	}
	return 0, false
}
