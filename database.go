package atomicdb

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/kartikbazzad/atomicdb/internal/logger"
	"github.com/kartikbazzad/atomicdb/internal/query"
	"github.com/kartikbazzad/atomicdb/security"
	"github.com/kartikbazzad/atomicdb/storage"
)

// DefaultCollection always exists after Open.
const DefaultCollection = "default"

// Database is an embedded document store: named collections of
// schema-flexible documents, persisted through a storage collaborator
// after every mutation. A Database is safe for concurrent use; one
// writer or any number of readers run at a time.
type Database struct {
	mu    sync.RWMutex
	path  string
	store storage.Store

	collections map[string]*collection
	indexes     *indexManager
	schemas     *schemaRegistry

	security *security.Manager
	audit    *security.AuditLogger

	// cache holds index lookup results keyed by collection, mutation
	// version and canonical equality conditions. Stale entries die with
	// the version bump; the LRU just bounds memory.
	cache   *lru.Cache[string, []int64]
	version map[string]uint64

	modified map[string]time.Time

	nextID int64
	closed bool

	indexHits atomic.Uint64
	fullScans atomic.Uint64

	log *slog.Logger
}

// Metrics reports how queries were served since Open.
type Metrics struct {
	IndexLookups uint64
	FullScans    uint64
}

// CollectionStats describes one collection. Sizes are the JSON encoding
// sizes of the live documents.
type CollectionStats struct {
	DocumentCount   int
	TotalSize       int
	AvgDocumentSize float64
	LastModified    time.Time
}

// Open loads or creates a database at path. With no explicit Options the
// backing store is a plain JSON file, or memory-only when path is empty.
// Options select compression, encryption, an explicit storage
// collaborator, the query cache size and audit logging.
func Open(path string, options ...Options) (*Database, error) {
	opts := DefaultOptions()
	if len(options) > 0 {
		opts = options[0]
	}

	var audit *security.AuditLogger
	if opts.AuditPath != "" {
		var err error
		audit, err = security.NewAuditLogger(opts.AuditPath)
		if err != nil {
			return nil, fmt.Errorf("open audit log: %w", err)
		}
	}

	man, store, err := buildStore(path, opts, audit)
	if err != nil {
		if audit != nil {
			audit.Close()
		}
		return nil, err
	}

	db := &Database{
		path:        path,
		store:       store,
		collections: make(map[string]*collection),
		indexes:     newIndexManager(),
		schemas:     newSchemaRegistry(),
		security:    man,
		audit:       audit,
		version:     make(map[string]uint64),
		modified:    make(map[string]time.Time),
		log:         logger.Component("database"),
	}
	if opts.CacheSize > 0 {
		cache, err := lru.New[string, []int64](opts.CacheSize)
		if err != nil {
			db.teardown()
			return nil, fmt.Errorf("query cache: %w", err)
		}
		db.cache = cache
	}

	state, err := store.Load()
	if err != nil {
		db.teardown()
		return nil, fmt.Errorf("load state: %w", err)
	}

	// Collections load in sorted name order so reassigned IDs are
	// reproducible across opens of the same file.
	names := make([]string, 0, len(state))
	for name := range state {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		col := newCollection(name)
		for _, raw := range state[name] {
			db.nextID++
			col.insert(db.nextID, Document(raw))
		}
		db.collections[name] = col
	}
	db.ensure(DefaultCollection)

	db.log.Info("database opened", "path", path, "collections", len(db.collections))
	return db, nil
}

func buildStore(path string, opts Options, audit *security.AuditLogger) (*security.Manager, storage.Store, error) {
	if opts.Storage != nil {
		return nil, opts.Storage, nil
	}
	if opts.Password != "" {
		man, err := security.NewManager(opts.Password, opts.Salt)
		if err != nil {
			return nil, nil, fmt.Errorf("derive key: %w", err)
		}
		man.AttachAudit(audit)
		store, err := storage.NewEncryptedStore(path, man, opts.CompressionLevel)
		if err != nil {
			return nil, nil, err
		}
		return man, store, nil
	}
	if path == "" {
		return nil, storage.NewMemoryStore(""), nil
	}
	store, err := storage.NewJSONStore(path, opts.CompressionLevel)
	if err != nil {
		return nil, nil, err
	}
	return nil, store, nil
}

func (db *Database) teardown() {
	db.store.Close()
	if db.audit != nil {
		db.audit.Close()
	}
}

// ensure returns the named collection, creating it when absent. Callers
// hold the write lock.
func (db *Database) ensure(name string) *collection {
	col, ok := db.collections[name]
	if !ok {
		col = newCollection(name)
		db.collections[name] = col
	}
	return col
}

// touch records a mutation of the named collection, invalidating cached
// query results for it.
func (db *Database) touch(name string) {
	db.version[name]++
	db.modified[name] = time.Now().UTC()
}

// snapshot assembles the persistent form of the store. Document maps are
// shared with the arena; every backend serializes before returning, under
// the database lock.
func (db *Database) snapshot() storage.State {
	state := make(storage.State, len(db.collections))
	for name, col := range db.collections {
		state[name] = col.documents()
	}
	return state
}

func (db *Database) save() error {
	if err := db.store.Save(db.snapshot()); err != nil {
		return fmt.Errorf("persist state: %w", err)
	}
	return nil
}

// Insert validates doc against the collection's schema, stores a copy
// under a fresh stable ID, updates indexes and persists. The collection
// is created when missing. The in-memory insert stands even when
// persisting fails.
func (db *Database) Insert(collection string, doc Document) (int64, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	if db.closed {
		return 0, ErrClosed
	}
	if err := db.schemas.validate(collection, doc); err != nil {
		return 0, err
	}
	col := db.ensure(collection)
	db.nextID++
	id := db.nextID
	stored := doc.Clone()
	col.insert(id, stored)
	db.indexes.addDocument(id, stored)
	db.touch(collection)
	if err := db.save(); err != nil {
		return id, err
	}
	db.log.Debug("document inserted", "collection", collection, "id", id)
	return id, nil
}

// InsertMany inserts docs in order. Validation runs up front so either
// every document is accepted or none is; persistence happens once.
func (db *Database) InsertMany(collection string, docs []Document) ([]int64, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	if db.closed {
		return nil, ErrClosed
	}
	for _, doc := range docs {
		if err := db.schemas.validate(collection, doc); err != nil {
			return nil, err
		}
	}
	if len(docs) == 0 {
		return nil, nil
	}
	col := db.ensure(collection)
	ids := make([]int64, 0, len(docs))
	for _, doc := range docs {
		db.nextID++
		stored := doc.Clone()
		col.insert(db.nextID, stored)
		db.indexes.addDocument(db.nextID, stored)
		ids = append(ids, db.nextID)
	}
	db.touch(collection)
	if err := db.save(); err != nil {
		return ids, err
	}
	db.log.Debug("documents inserted", "collection", collection, "count", len(ids))
	return ids, nil
}

// Update shallow-merges fields into every document matching pred and
// reports how many changed. A predicate error leaves the store untouched.
func (db *Database) Update(collection string, fields Document, pred Predicate) (int, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	if db.closed {
		return 0, ErrClosed
	}
	col := db.collections[collection]
	if col == nil {
		return 0, nil
	}
	ids, err := matchIDs(col, pred)
	if err != nil {
		return 0, err
	}
	for _, id := range ids {
		rec, ok := col.get(id)
		if !ok {
			continue
		}
		old := rec.doc.Clone()
		for k, v := range fields {
			rec.doc[k] = copyValue(v)
		}
		db.indexes.updateDocument(id, old, rec.doc)
	}
	if len(ids) == 0 {
		return 0, nil
	}
	db.touch(collection)
	if err := db.save(); err != nil {
		return len(ids), err
	}
	db.log.Debug("documents updated", "collection", collection, "count", len(ids))
	return len(ids), nil
}

// Remove tombstones every document matching pred and reports how many
// went. Stable IDs of surviving documents do not change.
func (db *Database) Remove(collection string, pred Predicate) (int, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	if db.closed {
		return 0, ErrClosed
	}
	col := db.collections[collection]
	if col == nil {
		return 0, nil
	}
	ids, err := matchIDs(col, pred)
	if err != nil {
		return 0, err
	}
	for _, id := range ids {
		rec, ok := col.get(id)
		if !ok {
			continue
		}
		doc := rec.doc
		col.remove(id)
		db.indexes.removeDocument(id, doc)
	}
	if len(ids) == 0 {
		return 0, nil
	}
	db.touch(collection)
	if err := db.save(); err != nil {
		return len(ids), err
	}
	db.log.Debug("documents removed", "collection", collection, "count", len(ids))
	return len(ids), nil
}

// matchIDs collects the IDs of live records satisfying pred, in
// insertion order. Nothing is mutated, so an evaluation error aborts
// cleanly.
func matchIDs(col *collection, pred Predicate) ([]int64, error) {
	var ids []int64
	var evalErr error
	col.each(func(rec *record) bool {
		ok, err := pred.Evaluate(rec.doc)
		if err != nil {
			evalErr = err
			return false
		}
		if ok {
			ids = append(ids, rec.id)
		}
		return true
	})
	if evalErr != nil {
		return nil, evalErr
	}
	return ids, nil
}

// Get returns a copy of the single matching document, or false when
// nothing matches. With a usable index the lowest stable ID wins; on the
// scan path the first match in insertion order wins. The two agree.
func (db *Database) Get(collection string, pred Predicate) (Document, bool, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	if db.closed {
		return nil, false, ErrClosed
	}
	col := db.collections[collection]
	if col == nil {
		return nil, false, nil
	}

	if ids, served := db.lookupIndexed(collection, pred); served {
		for _, id := range ids {
			if rec, ok := col.get(id); ok {
				return rec.doc.Clone(), true, nil
			}
		}
		return nil, false, nil
	}

	var found Document
	var evalErr error
	col.each(func(rec *record) bool {
		ok, err := pred.Evaluate(rec.doc)
		if err != nil {
			evalErr = err
			return false
		}
		if ok {
			found = rec.doc.Clone()
			return false
		}
		return true
	})
	db.fullScans.Add(1)
	if evalErr != nil {
		return nil, false, evalErr
	}
	if found == nil {
		return nil, false, nil
	}
	return found, true, nil
}

// Search returns copies of every document matching pred as an immutable
// snapshot. Pure AND-of-equality predicates with a matching index are
// answered from the index; everything else scans.
func (db *Database) Search(collection string, pred Predicate) (*ResultSet, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	if db.closed {
		return nil, ErrClosed
	}
	col := db.collections[collection]
	if col == nil {
		return newResultSet(nil), nil
	}

	if ids, served := db.lookupIndexed(collection, pred); served {
		docs := make([]Document, 0, len(ids))
		for _, id := range ids {
			if rec, ok := col.get(id); ok {
				docs = append(docs, rec.doc.Clone())
			}
		}
		return newResultSet(docs), nil
	}

	var docs []Document
	var evalErr error
	col.each(func(rec *record) bool {
		ok, err := pred.Evaluate(rec.doc)
		if err != nil {
			evalErr = err
			return false
		}
		if ok {
			docs = append(docs, rec.doc.Clone())
		}
		return true
	})
	db.fullScans.Add(1)
	if evalErr != nil {
		return nil, evalErr
	}
	return newResultSet(docs), nil
}

// lookupIndexed tries to answer pred from an index: the predicate must
// reduce to equality conditions whose field set exactly matches an
// existing index. Returns candidate IDs ascending; the caller still
// filters them to its collection.
func (db *Database) lookupIndexed(collection string, pred Predicate) ([]int64, bool) {
	eqs, pure := pred.Equalities()
	if !pure || len(eqs) == 0 {
		return nil, false
	}
	fields := make([]string, 0, len(eqs))
	for f := range eqs {
		fields = append(fields, f)
	}
	idx, ok := db.indexes.lookup(fields)
	if !ok {
		return nil, false
	}

	key, cacheable := db.cacheKey(collection, eqs)
	if cacheable {
		if ids, hit := db.cache.Get(key); hit {
			db.indexHits.Add(1)
			return ids, true
		}
	}

	declared := idx.Fields()
	values := make([]interface{}, len(declared))
	for i, f := range declared {
		values[i] = eqs[f]
	}
	ids := idx.findAll(values)
	if cacheable {
		db.cache.Add(key, ids)
	}
	db.indexHits.Add(1)
	return ids, true
}

func (db *Database) cacheKey(collection string, eqs map[string]interface{}) (string, bool) {
	if db.cache == nil {
		return "", false
	}
	canon := make(map[string]interface{}, len(eqs))
	for f, v := range eqs {
		canon[f] = query.Canonical(v)
	}
	raw, err := json.Marshal(canon)
	if err != nil {
		return "", false
	}
	return collection + "#" + strconv.FormatUint(db.version[collection], 10) + "#" + string(raw), true
}

// Contains reports whether any document matches pred.
func (db *Database) Contains(collection string, pred Predicate) (bool, error) {
	_, ok, err := db.Get(collection, pred)
	return ok, err
}

// Count returns the number of live documents in the collection, zero for
// an unknown name.
func (db *Database) Count(collection string) int {
	db.mu.RLock()
	defer db.mu.RUnlock()
	col := db.collections[collection]
	if col == nil {
		return 0
	}
	return col.live
}

// All returns every live document in insertion order.
func (db *Database) All(collection string) *ResultSet {
	db.mu.RLock()
	defer db.mu.RUnlock()
	col := db.collections[collection]
	if col == nil {
		return newResultSet(nil)
	}
	docs := make([]Document, 0, col.live)
	col.each(func(rec *record) bool {
		docs = append(docs, rec.doc.Clone())
		return true
	})
	return newResultSet(docs)
}

// DocumentIDs returns the stable IDs of live documents in insertion
// order.
func (db *Database) DocumentIDs(collection string) []int64 {
	db.mu.RLock()
	defer db.mu.RUnlock()
	col := db.collections[collection]
	if col == nil {
		return nil
	}
	return col.ids()
}

// Collections returns the known collection names, sorted.
func (db *Database) Collections() []string {
	db.mu.RLock()
	defer db.mu.RUnlock()
	names := make([]string, 0, len(db.collections))
	for name := range db.collections {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Find answers a map-form query. Keys are field names; values are either
// literals (equality) or operator objects like {"$gt": 30}. $and, $or and
// $not combine. Options apply sorting, pagination and projection, in
// that order.
func (db *Database) Find(collection string, q map[string]interface{}, options ...QueryOptions) (*ResultSet, error) {
	pred, err := query.Parse(q)
	if err != nil {
		return nil, err
	}
	rs, err := db.Search(collection, pred)
	if err != nil {
		return nil, err
	}
	if len(options) == 0 {
		return rs, nil
	}
	opt := options[0]
	if opt.SortField != "" {
		rs = rs.SortBy(opt.SortField, opt.SortDesc)
	}
	if opt.Skip > 0 || opt.Limit > 0 {
		docs := rs.AsList()
		if opt.Skip > 0 {
			if opt.Skip >= len(docs) {
				docs = nil
			} else {
				docs = docs[opt.Skip:]
			}
		}
		if opt.Limit > 0 && opt.Limit < len(docs) {
			docs = docs[:opt.Limit]
		}
		rs = newResultSet(docs)
	}
	if len(opt.Fields) > 0 {
		rs = rs.Pluck(opt.Fields...)
	}
	return rs, nil
}

// FindOne answers a map-form query with the single deterministic match.
func (db *Database) FindOne(collection string, q map[string]interface{}) (Document, bool, error) {
	pred, err := query.Parse(q)
	if err != nil {
		return nil, false, err
	}
	return db.Get(collection, pred)
}

// Clear empties the collection and clears the backing store. The
// collection itself survives, empty; other collections keep their
// in-memory documents but the persisted state is gone until the next
// mutation rewrites it.
func (db *Database) Clear(collection string) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	if db.closed {
		return ErrClosed
	}
	col := db.ensure(collection)
	col.each(func(rec *record) bool {
		db.indexes.removeDocument(rec.id, rec.doc)
		return true
	})
	col.clear()
	db.touch(collection)
	if err := db.save(); err != nil {
		return err
	}
	if err := db.store.Clear(); err != nil {
		return fmt.Errorf("clear store: %w", err)
	}
	if db.audit != nil {
		db.audit.Log(security.EventStoreCleared, map[string]interface{}{"collection": collection})
	}
	db.log.Info("collection cleared", "collection", collection)
	return nil
}

// CreateIndex builds an index over the given fields and backfills it
// from every collection's live documents. Creating an index that already
// exists is a no-op. Indexes live for the session; recreate them after
// Open.
func (db *Database) CreateIndex(fields ...string) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	if db.closed {
		return ErrClosed
	}
	if len(fields) == 0 {
		return ErrNoFields
	}
	idx, created := db.indexes.create(fields)
	if !created {
		return nil
	}
	for _, col := range db.collections {
		col.each(func(rec *record) bool {
			idx.add(rec.id, rec.doc)
			return true
		})
	}
	db.log.Info("index created", "fields", idx.Fields())
	return nil
}

// DropIndex removes the index identified by the given field set.
func (db *Database) DropIndex(fields ...string) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	if db.closed {
		return ErrClosed
	}
	if !db.indexes.drop(fields) {
		return ErrIndexNotFound
	}
	db.log.Info("index dropped", "fields", fields)
	return nil
}

// Indexes lists the declared field tuples of all current indexes.
func (db *Database) Indexes() [][]string {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return db.indexes.list()
}

// SetSchema declares a simple field schema for the collection. Inserts
// validate against it; an empty defs list removes the schema.
func (db *Database) SetSchema(collection string, defs []FieldDef) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	if db.closed {
		return ErrClosed
	}
	return db.schemas.setFields(collection, defs)
}

// SetJSONSchema declares a JSON Schema document for the collection. An
// empty schema string removes it.
func (db *Database) SetJSONSchema(collection, schema string) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	if db.closed {
		return ErrClosed
	}
	return db.schemas.setJSON(collection, schema)
}

// Stats reports per-collection document count and JSON size figures.
func (db *Database) Stats(collection string) (CollectionStats, bool) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	col := db.collections[collection]
	if col == nil {
		return CollectionStats{}, false
	}
	stats := CollectionStats{
		DocumentCount: col.live,
		LastModified:  db.modified[collection],
	}
	col.each(func(rec *record) bool {
		if raw, err := json.Marshal(rec.doc); err == nil {
			stats.TotalSize += len(raw)
		}
		return true
	})
	if col.live > 0 {
		stats.AvgDocumentSize = float64(stats.TotalSize) / float64(col.live)
	}
	return stats, true
}

// Metrics reports how many queries the index path and the scan path
// served.
func (db *Database) Metrics() Metrics {
	return Metrics{
		IndexLookups: db.indexHits.Load(),
		FullScans:    db.fullScans.Load(),
	}
}

// Commit forwards to the storage collaborator when it supports explicit
// commits (the memory store does); otherwise it is a no-op.
func (db *Database) Commit() error {
	db.mu.Lock()
	defer db.mu.Unlock()
	if db.closed {
		return ErrClosed
	}
	if c, ok := db.store.(storage.Committer); ok {
		if err := c.Commit(); err != nil {
			return fmt.Errorf("commit: %w", err)
		}
	}
	return nil
}

// Salt returns the key derivation salt when the database is encrypted,
// nil otherwise. Persist it alongside the data file; reopening requires
// the same salt.
func (db *Database) Salt() []byte {
	if db.security == nil {
		return nil
	}
	return db.security.Salt()
}

// Close releases the storage collaborator and the audit log. It does not
// save; every mutation already did. Operations after Close fail with
// ErrClosed.
func (db *Database) Close() error {
	db.mu.Lock()
	defer db.mu.Unlock()
	if db.closed {
		return ErrClosed
	}
	db.closed = true
	err := db.store.Close()
	if db.audit != nil {
		if cerr := db.audit.Close(); err == nil {
			err = cerr
		}
	}
	db.log.Info("database closed", "path", db.path)
	if err != nil {
		return fmt.Errorf("close: %w", err)
	}
	return nil
}
