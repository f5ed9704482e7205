// Package shell implements the interactive command loop of atomicdbsh
// over an embedded database.
package shell

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/kartikbazzad/atomicdb"
	"github.com/kartikbazzad/atomicdb/storage"
)

// Shell holds the REPL state: the open database and the collection
// commands act on.
type Shell struct {
	db         *atomicdb.Database
	collection string
}

// New wraps an open database.
func New(db *atomicdb.Database) *Shell {
	return &Shell{db: db, collection: atomicdb.DefaultCollection}
}

// Collection returns the collection commands currently target.
func (s *Shell) Collection() string { return s.collection }

// Close closes the underlying database.
func (s *Shell) Close() error { return s.db.Close() }

// OpenDatabase builds a database on the named backend. json and
// compressed share the default file storage; password switches it to
// the encrypted variant.
func OpenDatabase(backend, path string, level int, password string) (*atomicdb.Database, error) {
	opts := atomicdb.DefaultOptions()
	switch backend {
	case "json":
		opts.CompressionLevel = level
		opts.Password = password
		return atomicdb.Open(path, opts)
	case "compressed":
		if password != "" {
			if level < 1 {
				level = 6
			}
			opts.CompressionLevel = level
			opts.Password = password
			return atomicdb.Open(path, opts)
		}
		store, err := storage.NewCompressedJSONStore(path, level)
		if err != nil {
			return nil, err
		}
		opts.Storage = store
		return atomicdb.Open(path, opts)
	case "memory":
		opts.Storage = storage.NewMemoryStore(path)
		return atomicdb.Open(path, opts)
	case "msgpack":
		opts.Storage = storage.NewMsgpackStore(path)
		return atomicdb.Open(path, opts)
	case "sqlite":
		store, err := storage.NewSQLiteStore(path)
		if err != nil {
			return nil, err
		}
		opts.Storage = store
		return atomicdb.Open(path, opts)
	case "badger":
		store, err := storage.NewBadgerStore(path)
		if err != nil {
			return nil, err
		}
		opts.Storage = store
		return atomicdb.Open(path, opts)
	default:
		return nil, fmt.Errorf("unknown backend: %s", backend)
	}
}

// Execute runs one command line and returns its output plus whether the
// shell should exit.
func (s *Shell) Execute(line string) (string, bool) {
	name, rest := splitCommand(line)
	switch name {
	case "help":
		return helpText, false
	case "exit", "quit":
		return "bye", true
	case "use":
		return s.use(rest), false
	case "insert":
		return s.insert(rest), false
	case "find":
		return s.find(rest), false
	case "get":
		return s.get(rest), false
	case "update":
		return s.update(rest), false
	case "remove":
		return s.remove(rest), false
	case "count":
		return fmt.Sprintf("%d", s.db.Count(s.collection)), false
	case "collections":
		return strings.Join(s.db.Collections(), "\n"), false
	case "index":
		return s.index(rest), false
	case "drop-index":
		return s.dropIndex(rest), false
	case "indexes":
		return s.indexes(), false
	case "clear":
		return s.clear(), false
	case "commit":
		if err := s.db.Commit(); err != nil {
			return errorText(err), false
		}
		return "ok", false
	case "stats":
		return s.stats(), false
	case "":
		return "", false
	default:
		return fmt.Sprintf("unknown command: %s (try 'help')", name), false
	}
}

func splitCommand(line string) (string, string) {
	line = strings.TrimSpace(line)
	i := strings.IndexAny(line, " \t")
	if i < 0 {
		return line, ""
	}
	return line[:i], strings.TrimSpace(line[i:])
}

// parseObjects decodes the concatenated JSON objects in rest, e.g.
// `{"active": true} {"name": "ada"}`.
func parseObjects(rest string) ([]map[string]interface{}, error) {
	dec := json.NewDecoder(strings.NewReader(rest))
	var objs []map[string]interface{}
	for {
		var m map[string]interface{}
		err := dec.Decode(&m)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("invalid json: %v", err)
		}
		objs = append(objs, m)
	}
	return objs, nil
}

func parseOne(rest string) (map[string]interface{}, error) {
	objs, err := parseObjects(rest)
	if err != nil {
		return nil, err
	}
	switch len(objs) {
	case 0:
		return map[string]interface{}{}, nil
	case 1:
		return objs[0], nil
	default:
		return nil, fmt.Errorf("expected one json object, got %d", len(objs))
	}
}

func (s *Shell) use(rest string) string {
	if rest == "" {
		return "usage: use COLLECTION"
	}
	s.collection = rest
	return fmt.Sprintf("using %s", rest)
}

func (s *Shell) insert(rest string) string {
	doc, err := parseOne(rest)
	if err != nil {
		return errorText(err)
	}
	if len(doc) == 0 {
		return "usage: insert JSON"
	}
	id, err := s.db.Insert(s.collection, doc)
	if err != nil {
		return errorText(err)
	}
	return fmt.Sprintf("inserted id=%d", id)
}

func (s *Shell) find(rest string) string {
	q, err := parseOne(rest)
	if err != nil {
		return errorText(err)
	}
	rs, err := s.db.Find(s.collection, q)
	if err != nil {
		return errorText(err)
	}
	if rs.IsEmpty() {
		return "no documents"
	}
	return renderDocs(rs.AsList())
}

func (s *Shell) get(rest string) string {
	q, err := parseOne(rest)
	if err != nil {
		return errorText(err)
	}
	doc, ok, err := s.db.FindOne(s.collection, q)
	if err != nil {
		return errorText(err)
	}
	if !ok {
		return "no match"
	}
	return renderDocs([]atomicdb.Document{doc})
}

func (s *Shell) update(rest string) string {
	objs, err := parseObjects(rest)
	if err != nil {
		return errorText(err)
	}
	if len(objs) != 2 {
		return "usage: update FIELDS-JSON QUERY-JSON"
	}
	pred, err := atomicdb.ParseQuery(objs[1])
	if err != nil {
		return errorText(err)
	}
	n, err := s.db.Update(s.collection, objs[0], pred)
	if err != nil {
		return errorText(err)
	}
	return fmt.Sprintf("updated %d", n)
}

func (s *Shell) remove(rest string) string {
	q, err := parseOne(rest)
	if err != nil {
		return errorText(err)
	}
	pred, err := atomicdb.ParseQuery(q)
	if err != nil {
		return errorText(err)
	}
	n, err := s.db.Remove(s.collection, pred)
	if err != nil {
		return errorText(err)
	}
	return fmt.Sprintf("removed %d", n)
}

func (s *Shell) index(rest string) string {
	fields := strings.Fields(rest)
	if len(fields) == 0 {
		return "usage: index FIELD [FIELD...]"
	}
	if err := s.db.CreateIndex(fields...); err != nil {
		return errorText(err)
	}
	return fmt.Sprintf("index on (%s)", strings.Join(fields, ", "))
}

func (s *Shell) dropIndex(rest string) string {
	fields := strings.Fields(rest)
	if len(fields) == 0 {
		return "usage: drop-index FIELD [FIELD...]"
	}
	if err := s.db.DropIndex(fields...); err != nil {
		return errorText(err)
	}
	return "dropped"
}

func (s *Shell) indexes() string {
	tuples := s.db.Indexes()
	if len(tuples) == 0 {
		return "no indexes"
	}
	lines := make([]string, 0, len(tuples))
	for _, fields := range tuples {
		lines = append(lines, "("+strings.Join(fields, ", ")+")")
	}
	sort.Strings(lines)
	return strings.Join(lines, "\n")
}

func (s *Shell) clear() string {
	if err := s.db.Clear(s.collection); err != nil {
		return errorText(err)
	}
	return fmt.Sprintf("cleared %s", s.collection)
}

func (s *Shell) stats() string {
	stats, ok := s.db.Stats(s.collection)
	if !ok {
		return fmt.Sprintf("no collection %s", s.collection)
	}
	return fmt.Sprintf("documents: %d\ntotal size: %d bytes\navg size: %.1f bytes",
		stats.DocumentCount, stats.TotalSize, stats.AvgDocumentSize)
}

func renderDocs(docs []atomicdb.Document) string {
	var b strings.Builder
	for i, doc := range docs {
		raw, err := json.MarshalIndent(doc, "", "  ")
		if err != nil {
			raw = []byte(fmt.Sprintf("%v", doc))
		}
		if i > 0 {
			b.WriteByte('\n')
		}
		b.Write(raw)
	}
	return b.String()
}

func errorText(err error) string {
	return fmt.Sprintf("error: %v", err)
}

const helpText = `commands:
  use COLLECTION              switch the target collection
  insert JSON                 insert a document
  find [QUERY]                list matching documents (all when omitted)
  get QUERY                   show the first matching document
  update FIELDS QUERY         merge FIELDS into matching documents
  remove QUERY                remove matching documents
  count                       count documents in the collection
  collections                 list collections
  index FIELD [FIELD...]      create an index
  drop-index FIELD [FIELD...] drop an index
  indexes                     list indexes
  clear                       empty the collection
  commit                      flush the memory backend to disk
  stats                       collection statistics
  help                        this text
  exit                        leave the shell

queries are JSON: {"age": {"$gt": 30}}, {"name": "ada"}, {} for all`
