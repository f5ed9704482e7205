package atomicdb

import (
	"encoding/json"
	"sort"
	"strings"
	"sync"

	"github.com/kartikbazzad/atomicdb/internal/query"
)

// Index accelerates equality lookups over one ordered set of fields. Its
// identity is the sorted field names; its key tuples use the declared
// order. Buckets map a value tuple to the stable IDs of every document
// currently carrying those values. Documents missing any covered field are
// not indexed.
type Index struct {
	fields  []string // declared order
	buckets map[string][]int64
}

func newIndex(fields []string) *Index {
	declared := make([]string, len(fields))
	copy(declared, fields)
	return &Index{fields: declared, buckets: make(map[string][]int64)}
}

// Fields returns the declared field order.
func (idx *Index) Fields() []string {
	out := make([]string, len(idx.fields))
	copy(out, idx.fields)
	return out
}

// keyFor derives the bucket key for doc. ok is false when any covered
// field is missing, which excludes the document from the index.
func (idx *Index) keyFor(doc Document) (string, bool) {
	values := make([]interface{}, len(idx.fields))
	for i, f := range idx.fields {
		v, present := doc[f]
		if !present {
			return "", false
		}
		values[i] = query.Canonical(v)
	}
	return encodeKey(values)
}

// encodeKey serializes a canonical value tuple. JSON keeps types apart:
// the string "30" and the number 30 never share a bucket.
func encodeKey(values []interface{}) (string, bool) {
	data, err := json.Marshal(values)
	if err != nil {
		return "", false
	}
	return string(data), true
}

func (idx *Index) add(id int64, doc Document) {
	key, ok := idx.keyFor(doc)
	if !ok {
		return
	}
	idx.insertID(key, id)
}

func (idx *Index) insertID(key string, id int64) {
	bucket := idx.buckets[key]
	pos := sort.Search(len(bucket), func(i int) bool { return bucket[i] >= id })
	if pos < len(bucket) && bucket[pos] == id {
		return
	}
	bucket = append(bucket, 0)
	copy(bucket[pos+1:], bucket[pos:])
	bucket[pos] = id
	idx.buckets[key] = bucket
}

func (idx *Index) remove(id int64, doc Document) {
	key, ok := idx.keyFor(doc)
	if !ok {
		return
	}
	idx.removeID(key, id)
}

func (idx *Index) removeID(key string, id int64) {
	bucket, ok := idx.buckets[key]
	if !ok {
		return
	}
	pos := sort.Search(len(bucket), func(i int) bool { return bucket[i] >= id })
	if pos >= len(bucket) || bucket[pos] != id {
		return
	}
	bucket = append(bucket[:pos], bucket[pos+1:]...)
	if len(bucket) == 0 {
		delete(idx.buckets, key)
	} else {
		idx.buckets[key] = bucket
	}
}

// update moves id between buckets when the key tuple changed. Unchanged
// keys are a no-op.
func (idx *Index) update(id int64, old, new Document) {
	oldKey, oldOK := idx.keyFor(old)
	newKey, newOK := idx.keyFor(new)
	if oldOK == newOK && oldKey == newKey {
		return
	}
	if oldOK {
		idx.removeID(oldKey, id)
	}
	if newOK {
		idx.insertID(newKey, id)
	}
}

// findAll returns the IDs for a value tuple in ascending order. The caller
// supplies values in declared field order.
func (idx *Index) findAll(values []interface{}) []int64 {
	canonical := make([]interface{}, len(values))
	for i, v := range values {
		canonical[i] = query.Canonical(v)
	}
	key, ok := encodeKey(canonical)
	if !ok {
		return nil
	}
	bucket := idx.buckets[key]
	out := make([]int64, len(bucket))
	copy(out, bucket)
	return out
}

// findOne returns the lowest ID for a value tuple. Lowest is the fixed
// deterministic choice so repeated lookups agree.
func (idx *Index) findOne(values []interface{}) (int64, bool) {
	ids := idx.findAll(values)
	if len(ids) == 0 {
		return 0, false
	}
	return ids[0], true
}

// indexManager owns every secondary index and keeps them current as
// documents change. Indexes span all collections; stable IDs are unique
// database-wide, so lookups filter per collection afterwards.
type indexManager struct {
	mu      sync.RWMutex
	indexes map[string]*Index
}

func newIndexManager() *indexManager {
	return &indexManager{indexes: make(map[string]*Index)}
}

// identityKey is order-insensitive: an index on (a, b) answers lookups
// written as (b, a).
func identityKey(fields []string) string {
	sorted := make([]string, len(fields))
	copy(sorted, fields)
	sort.Strings(sorted)
	return strings.Join(sorted, "\x00")
}

// create registers an index, returning the existing one when the field set
// is already covered.
func (m *indexManager) create(fields []string) (*Index, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := identityKey(fields)
	if idx, ok := m.indexes[key]; ok {
		return idx, false
	}
	idx := newIndex(fields)
	m.indexes[key] = idx
	return idx, true
}

func (m *indexManager) drop(fields []string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := identityKey(fields)
	if _, ok := m.indexes[key]; !ok {
		return false
	}
	delete(m.indexes, key)
	return true
}

func (m *indexManager) lookup(fields []string) (*Index, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	idx, ok := m.indexes[identityKey(fields)]
	return idx, ok
}

func (m *indexManager) list() [][]string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([][]string, 0, len(m.indexes))
	for _, idx := range m.indexes {
		out = append(out, idx.Fields())
	}
	return out
}

func (m *indexManager) addDocument(id int64, doc Document) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, idx := range m.indexes {
		idx.add(id, doc)
	}
}

func (m *indexManager) removeDocument(id int64, doc Document) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, idx := range m.indexes {
		idx.remove(id, doc)
	}
}

func (m *indexManager) updateDocument(id int64, old, new Document) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, idx := range m.indexes {
		idx.update(id, old, new)
	}
}
