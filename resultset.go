package atomicdb

import (
	"sort"

	"github.com/kartikbazzad/atomicdb/internal/query"
)

// ResultSet is an immutable snapshot of matched documents. The documents
// are copies taken at query time; mutating the store afterwards never
// changes an already-returned set. Derived views (Pluck, Exclude, SortBy)
// build new sets and leave the receiver untouched.
type ResultSet struct {
	docs []Document
}

func newResultSet(docs []Document) *ResultSet {
	return &ResultSet{docs: docs}
}

// First returns the first document in the set. ok is false on an empty
// set.
func (rs *ResultSet) First() (Document, bool) {
	if len(rs.docs) == 0 {
		return nil, false
	}
	return rs.docs[0], true
}

// Last returns the final document in the set.
func (rs *ResultSet) Last() (Document, bool) {
	if len(rs.docs) == 0 {
		return nil, false
	}
	return rs.docs[len(rs.docs)-1], true
}

// Count returns the number of matched documents.
func (rs *ResultSet) Count() int { return len(rs.docs) }

// IsEmpty reports whether nothing matched.
func (rs *ResultSet) IsEmpty() bool { return len(rs.docs) == 0 }

// AsList returns the documents as a slice. The slice is fresh; the
// documents are the set's own copies.
func (rs *ResultSet) AsList() []Document {
	out := make([]Document, len(rs.docs))
	copy(out, rs.docs)
	return out
}

// Pluck projects each document to the named fields. Requested fields a
// document does not carry are omitted, not defaulted.
func (rs *ResultSet) Pluck(fields ...string) *ResultSet {
	out := make([]Document, len(rs.docs))
	for i, doc := range rs.docs {
		projected := make(Document, len(fields))
		for _, f := range fields {
			if v, ok := doc[f]; ok {
				projected[f] = copyValue(v)
			}
		}
		out[i] = projected
	}
	return newResultSet(out)
}

// Exclude drops the named fields from each document copy.
func (rs *ResultSet) Exclude(fields ...string) *ResultSet {
	drop := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		drop[f] = struct{}{}
	}
	out := make([]Document, len(rs.docs))
	for i, doc := range rs.docs {
		kept := make(Document, len(doc))
		for k, v := range doc {
			if _, skip := drop[k]; skip {
				continue
			}
			kept[k] = copyValue(v)
		}
		out[i] = kept
	}
	return newResultSet(out)
}

// SortBy orders the set by a field's value, stably: documents with equal
// keys keep their relative order. A document missing the field sorts as
// the minimum, first ascending and last descending.
func (rs *ResultSet) SortBy(field string, reverse bool) *ResultSet {
	out := make([]Document, len(rs.docs))
	for i, doc := range rs.docs {
		out[i] = doc.Clone()
	}

	sort.SliceStable(out, func(i, j int) bool {
		a, aok := out[i][field]
		b, bok := out[j][field]
		var cmp int
		switch {
		case !aok && !bok:
			cmp = 0
		case !aok:
			cmp = -1
		case !bok:
			cmp = 1
		default:
			cmp = query.OrderTotal(a, b)
		}
		if reverse {
			return cmp > 0
		}
		return cmp < 0
	})
	return newResultSet(out)
}
