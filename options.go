package atomicdb

import (
	"github.com/kartikbazzad/atomicdb/storage"
)

// Options configures a Database at Open time.
type Options struct {
	// Storage overrides the persistence collaborator. When nil, Open
	// builds a JSONStore at the given path (encrypted when Password is
	// set).
	Storage storage.Store

	// CompressionLevel applies to the default JSON storage: 0 is plain,
	// 1..9 compress. Ignored when Storage is set.
	CompressionLevel int

	// Password enables encryption of the default storage file. Ignored
	// when Storage is set.
	Password string

	// Salt re-derives a previous encryption key. Nil generates a fresh
	// salt; persist Manager.Salt() alongside the data to reopen it.
	Salt []byte

	// CacheSize bounds the LRU cache over index-served query results.
	// 0 disables caching.
	CacheSize int

	// AuditPath, when set, appends security events to a JSONL file.
	AuditPath string
}

// DefaultOptions returns the standard configuration: plain JSON storage,
// a small query cache, no encryption.
func DefaultOptions() Options {
	return Options{
		CacheSize: 128,
	}
}

// QueryOptions shapes Find results: sorting, pagination and field
// projection.
type QueryOptions struct {
	SortField string
	SortDesc  bool
	Limit     int
	Skip      int
	// Fields, when non-empty, limits returned documents to these
	// top-level keys.
	Fields []string
}
