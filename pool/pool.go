// Package pool bounds concurrent access to a shared Database through a
// fixed set of handles. A handle must be acquired before use and
// returned after; acquisition waits up to a caller timeout when every
// handle is busy. The ThreadSafe facade and the Executor build the
// common usage patterns on top.
package pool

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kartikbazzad/atomicdb"
)

var (
	// ErrPoolExhausted is returned when no handle frees up within the
	// acquisition timeout.
	ErrPoolExhausted = errors.New("pool exhausted")

	// ErrPoolClosed is returned for any operation after CloseAll.
	ErrPoolClosed = errors.New("pool is closed")
)

// Handle is exclusive access to the shared database. All handles wrap
// the same *atomicdb.Database; the handle's lock is what serializes
// compound operations, not separate store instances.
type Handle struct {
	DB        *atomicdb.Database
	ID        uint64
	CreatedAt time.Time

	inUse    atomic.Bool
	lastUsed time.Time
	mu       sync.Mutex
	timeMu   sync.RWMutex
	pool     *Pool
}

// LastUsed returns when the handle last changed hands.
func (h *Handle) LastUsed() time.Time {
	h.timeMu.RLock()
	defer h.timeMu.RUnlock()
	return h.lastUsed
}

func (h *Handle) setLastUsed(t time.Time) {
	h.timeMu.Lock()
	defer h.timeMu.Unlock()
	h.lastUsed = t
}

// Lock takes the handle's operation lock. Callers using the ThreadSafe
// facade never need it directly.
func (h *Handle) Lock() { h.mu.Lock() }

// Unlock releases the handle's operation lock.
func (h *Handle) Unlock() { h.mu.Unlock() }

// InUse reports whether the handle is currently acquired.
func (h *Handle) InUse() bool { return h.inUse.Load() }

// Options configures the pool.
type Options struct {
	MinSize int // handles created up front (default: 2)
	MaxSize int // hard bound on handles (default: 10)
}

// DefaultOptions returns the standard pool configuration.
func DefaultOptions() *Options {
	return &Options{
		MinSize: 2,
		MaxSize: 10,
	}
}

// Pool hands out up to MaxSize handles over one shared database.
type Pool struct {
	db     *atomicdb.Database
	idle   chan *Handle
	done   chan struct{}
	nextID atomic.Uint64

	mu      sync.Mutex
	handles []*Handle
	total   int
	closed  bool

	minSize int
	maxSize int
}

// New wraps an already opened database in a pool. The pool takes
// ownership: CloseAll closes the database.
func New(db *atomicdb.Database, opts *Options) *Pool {
	if opts == nil {
		opts = DefaultOptions()
	}
	maxSize := opts.MaxSize
	if maxSize < 1 {
		maxSize = 1
	}
	minSize := opts.MinSize
	if minSize > maxSize {
		minSize = maxSize
	}

	p := &Pool{
		db:      db,
		idle:    make(chan *Handle, maxSize),
		done:    make(chan struct{}),
		minSize: minSize,
		maxSize: maxSize,
	}
	for i := 0; i < minSize; i++ {
		h := p.newHandle()
		p.handles = append(p.handles, h)
		p.total++
		p.idle <- h
	}
	return p
}

// Open opens a database and wraps it in a pool in one step.
func Open(path string, dbOpts atomicdb.Options, poolOpts *Options) (*Pool, error) {
	db, err := atomicdb.Open(path, dbOpts)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	return New(db, poolOpts), nil
}

func (p *Pool) newHandle() *Handle {
	h := &Handle{
		DB:        p.db,
		ID:        p.nextID.Add(1),
		CreatedAt: time.Now(),
		pool:      p,
	}
	h.setLastUsed(time.Now())
	return h
}

// Get acquires a handle: an idle one when available, a fresh one below
// MaxSize, otherwise it waits up to timeout for a return and fails with
// ErrPoolExhausted.
func (p *Pool) Get(timeout time.Duration) (*Handle, error) {
	select {
	case <-p.done:
		return nil, ErrPoolClosed
	default:
	}

	select {
	case h := <-p.idle:
		p.acquire(h)
		return h, nil
	default:
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, ErrPoolClosed
	}
	if p.total < p.maxSize {
		h := p.newHandle()
		p.handles = append(p.handles, h)
		p.total++
		p.mu.Unlock()
		p.acquire(h)
		return h, nil
	}
	p.mu.Unlock()

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case h := <-p.idle:
		p.acquire(h)
		return h, nil
	case <-p.done:
		return nil, ErrPoolClosed
	case <-timer.C:
		return nil, ErrPoolExhausted
	}
}

func (p *Pool) acquire(h *Handle) {
	h.inUse.Store(true)
	h.setLastUsed(time.Now())
}

// Put returns a handle to the pool. Returning a handle twice is a
// no-op; returning nil or a foreign handle is an error.
func (p *Pool) Put(h *Handle) error {
	if h == nil {
		return fmt.Errorf("cannot release nil handle")
	}
	if h.pool != p {
		return fmt.Errorf("handle does not belong to this pool")
	}
	if !h.inUse.CompareAndSwap(true, false) {
		return nil
	}
	h.setLastUsed(time.Now())
	select {
	case <-p.done:
		return nil
	default:
	}
	// The channel is buffered to maxSize, so this never blocks.
	p.idle <- h
	return nil
}

// Stats describes the pool at a point in time.
type Stats struct {
	TotalHandles  int
	IdleHandles   int
	ActiveHandles int
	MinSize       int
	MaxSize       int
}

// GetStats returns pool statistics.
func (p *Pool) GetStats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()

	stats := Stats{
		TotalHandles: p.total,
		MinSize:      p.minSize,
		MaxSize:      p.maxSize,
	}
	for _, h := range p.handles {
		if h.inUse.Load() {
			stats.ActiveHandles++
		} else {
			stats.IdleHandles++
		}
	}
	return stats
}

// CloseAll shuts the pool down and closes the shared database. Waiting
// acquirers fail with ErrPoolClosed.
func (p *Pool) CloseAll() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return ErrPoolClosed
	}
	p.closed = true
	close(p.done)
	p.handles = nil
	p.mu.Unlock()

	return p.db.Close()
}
