// Package atomicdb is an embedded, in-process document store: named
// collections of schema-flexible documents, a composable predicate language
// with secondary-index acceleration for equality queries, pluggable
// persistence encodings, and a bounded connection pool for concurrent use.
//
// Basic usage:
//
//	db, err := atomicdb.Open("data.json", atomicdb.DefaultOptions())
//	id, err := db.Insert("users", atomicdb.Document{"name": "John", "age": 30})
//	rs, err := db.Search("users", atomicdb.Field("age").Gt(21))
package atomicdb

// Document is one schema-flexible record. Values follow the JSON shapes:
// nil, bool, float64 (every number), string, []interface{} and
// map[string]interface{}.
type Document map[string]interface{}

// Clone returns a deep copy. Lists and nested objects are copied; scalar
// values are immutable and shared.
func (d Document) Clone() Document {
	if d == nil {
		return nil
	}
	out := make(Document, len(d))
	for k, v := range d {
		out[k] = copyValue(v)
	}
	return out
}

func copyValue(v interface{}) interface{} {
	switch val := v.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(val))
		for k, item := range val {
			out[k] = copyValue(item)
		}
		return out
	case Document:
		out := make(map[string]interface{}, len(val))
		for k, item := range val {
			out[k] = copyValue(item)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(val))
		for i, item := range val {
			out[i] = copyValue(item)
		}
		return out
	default:
		return v
	}
}
