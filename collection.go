package atomicdb

// record pairs a document with its stable ID inside the arena. Removal
// tombstones the slot instead of shifting neighbours, so IDs handed out by
// Insert stay valid for the lifetime of the session.
type record struct {
	id   int64
	doc  Document
	dead bool
}

// collection is a named, insertion-ordered document arena. Live documents
// keep their arena order through removals; compaction drops tombstones once
// they outnumber the living but never reassigns IDs.
type collection struct {
	name    string
	records []record
	byID    map[int64]int // stable ID -> arena slot
	live    int
}

func newCollection(name string) *collection {
	return &collection{name: name, byID: make(map[int64]int)}
}

func (c *collection) insert(id int64, doc Document) {
	c.byID[id] = len(c.records)
	c.records = append(c.records, record{id: id, doc: doc})
	c.live++
}

// get returns the live record for id.
func (c *collection) get(id int64) (*record, bool) {
	slot, ok := c.byID[id]
	if !ok {
		return nil, false
	}
	rec := &c.records[slot]
	if rec.dead {
		return nil, false
	}
	return rec, true
}

// remove tombstones id and reports whether it was live.
func (c *collection) remove(id int64) bool {
	slot, ok := c.byID[id]
	if !ok || c.records[slot].dead {
		return false
	}
	c.records[slot].dead = true
	c.records[slot].doc = nil
	delete(c.byID, id)
	c.live--
	c.maybeCompact()
	return true
}

// each calls fn for every live record in insertion order. Returning false
// stops the walk.
func (c *collection) each(fn func(rec *record) bool) {
	for i := range c.records {
		if c.records[i].dead {
			continue
		}
		if !fn(&c.records[i]) {
			return
		}
	}
}

// maybeCompact rewrites the arena once tombstones outnumber live records.
// Slot numbers change, IDs do not.
func (c *collection) maybeCompact() {
	if len(c.records) < 64 || c.live*2 > len(c.records) {
		return
	}
	compacted := make([]record, 0, c.live)
	for i := range c.records {
		if c.records[i].dead {
			continue
		}
		c.byID[c.records[i].id] = len(compacted)
		compacted = append(compacted, c.records[i])
	}
	c.records = compacted
}

func (c *collection) clear() {
	c.records = nil
	c.byID = make(map[int64]int)
	c.live = 0
}

// documents returns the live documents in insertion order, as the shared
// underlying maps. Callers that hand them out must copy.
func (c *collection) documents() []map[string]interface{} {
	out := make([]map[string]interface{}, 0, c.live)
	c.each(func(rec *record) bool {
		out = append(out, rec.doc)
		return true
	})
	return out
}

// ids returns the live stable IDs in insertion order.
func (c *collection) ids() []int64 {
	out := make([]int64, 0, c.live)
	c.each(func(rec *record) bool {
		out = append(out, rec.id)
		return true
	})
	return out
}
