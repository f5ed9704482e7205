package pool

import (
	"fmt"

	"github.com/panjf2000/ants/v2"

	"github.com/kartikbazzad/atomicdb"
	"github.com/kartikbazzad/atomicdb/internal/logger"
)

// Executor submits facade operations to a bounded worker pool and hands
// the caller a channel for the result. It exists for fire-and-collect
// workloads where the caller wants neither a goroutine per operation
// nor to block on the database lock itself.
type Executor struct {
	workers *ants.Pool
	ts      *ThreadSafe
}

// NewExecutor starts an executor with the given number of workers.
func NewExecutor(ts *ThreadSafe, workers int) (*Executor, error) {
	p, err := ants.NewPool(workers, ants.WithPanicHandler(func(v interface{}) {
		logger.Error("executor task panic", "panic", v)
	}))
	if err != nil {
		return nil, fmt.Errorf("worker pool: %w", err)
	}
	return &Executor{workers: p, ts: ts}, nil
}

// Submit schedules fn against the pooled database. The returned channel
// delivers exactly one error (possibly nil) when the operation
// finishes. Submit itself fails when the worker pool is closed.
func (e *Executor) Submit(fn func(db *atomicdb.Database) error) (<-chan error, error) {
	ch := make(chan error, 1)
	err := e.workers.Submit(func() {
		ch <- e.ts.Execute(fn)
	})
	if err != nil {
		return nil, fmt.Errorf("submit task: %w", err)
	}
	return ch, nil
}

// Running reports the number of in-flight tasks.
func (e *Executor) Running() int { return e.workers.Running() }

// Release shuts the worker pool down after in-flight tasks finish.
func (e *Executor) Release() {
	e.workers.Release()
}
