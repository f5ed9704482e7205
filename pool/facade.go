package pool

import (
	"time"

	"github.com/kartikbazzad/atomicdb"
)

// DefaultTimeout bounds handle acquisition when the facade is built
// with a zero timeout.
const DefaultTimeout = 5 * time.Second

// ThreadSafe runs operations against the pooled database with
// acquisition, locking and release handled for the caller.
type ThreadSafe struct {
	pool    *Pool
	timeout time.Duration
}

// NewThreadSafe wraps a pool. timeout bounds each acquisition; zero
// means DefaultTimeout.
func NewThreadSafe(p *Pool, timeout time.Duration) *ThreadSafe {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &ThreadSafe{pool: p, timeout: timeout}
}

// Execute acquires a handle, locks it, runs fn and releases. The
// release runs on every path out of fn, a panic included.
func (t *ThreadSafe) Execute(fn func(db *atomicdb.Database) error) error {
	h, err := t.pool.Get(t.timeout)
	if err != nil {
		return err
	}
	h.Lock()
	defer func() {
		h.Unlock()
		t.pool.Put(h)
	}()
	return fn(h.DB)
}

// AtomicUpdate reads the document matching pred, computes replacement
// fields with f and merges them back, all under one handle lock so no
// other facade user interleaves. Returns false when nothing matched.
func (t *ThreadSafe) AtomicUpdate(collection string, pred atomicdb.Predicate, f func(doc atomicdb.Document) atomicdb.Document) (bool, error) {
	found := false
	err := t.Execute(func(db *atomicdb.Database) error {
		doc, ok, err := db.Get(collection, pred)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		found = true
		fields := f(doc)
		if len(fields) == 0 {
			return nil
		}
		_, err = db.Update(collection, fields, pred)
		return err
	})
	return found, err
}
