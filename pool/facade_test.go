package pool

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/kartikbazzad/atomicdb"
)

func newTestFacade(t *testing.T, opts *Options) (*Pool, *ThreadSafe) {
	t.Helper()
	p := newTestPool(t, opts)
	return p, NewThreadSafe(p, time.Second)
}

func TestExecute(t *testing.T) {
	p, ts := newTestFacade(t, nil)
	defer p.CloseAll()

	err := ts.Execute(func(db *atomicdb.Database) error {
		_, err := db.Insert("users", atomicdb.Document{"name": "ada"})
		return err
	})
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	// The handle went back to the pool
	stats := p.GetStats()
	if stats.ActiveHandles != 0 {
		t.Errorf("Expected 0 active handles after Execute, got %d", stats.ActiveHandles)
	}

	err = ts.Execute(func(db *atomicdb.Database) error {
		if db.Count("users") != 1 {
			t.Errorf("Expected 1 user, got %d", db.Count("users"))
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
}

func TestExecuteErrorReleasesHandle(t *testing.T) {
	opts := DefaultOptions()
	opts.MinSize = 1
	opts.MaxSize = 1

	p, ts := newTestFacade(t, opts)
	defer p.CloseAll()

	wantErr := fmt.Errorf("operation failed")
	err := ts.Execute(func(db *atomicdb.Database) error {
		return wantErr
	})
	if !errors.Is(err, wantErr) {
		t.Errorf("Expected the operation error, got %v", err)
	}

	// The single handle must be free for the next caller
	if err := ts.Execute(func(db *atomicdb.Database) error { return nil }); err != nil {
		t.Errorf("Pool not usable after failed Execute: %v", err)
	}
}

func TestExecutePanicReleasesHandle(t *testing.T) {
	opts := DefaultOptions()
	opts.MinSize = 1
	opts.MaxSize = 1

	p, ts := newTestFacade(t, opts)
	defer p.CloseAll()

	func() {
		defer func() {
			if recover() == nil {
				t.Error("Expected the panic to propagate")
			}
		}()
		ts.Execute(func(db *atomicdb.Database) error {
			panic("boom")
		})
	}()

	stats := p.GetStats()
	if stats.ActiveHandles != 0 {
		t.Errorf("Expected 0 active handles after panic, got %d", stats.ActiveHandles)
	}
	if err := ts.Execute(func(db *atomicdb.Database) error { return nil }); err != nil {
		t.Errorf("Pool not usable after panic: %v", err)
	}
}

func TestAtomicUpdate(t *testing.T) {
	p, ts := newTestFacade(t, nil)
	defer p.CloseAll()

	err := ts.Execute(func(db *atomicdb.Database) error {
		_, err := db.Insert("counters", atomicdb.Document{"name": "hits", "value": 0})
		return err
	})
	if err != nil {
		t.Fatalf("Seed failed: %v", err)
	}

	found, err := ts.AtomicUpdate("counters", atomicdb.Field("name").Eq("hits"), func(doc atomicdb.Document) atomicdb.Document {
		value, _ := doc["value"].(int)
		return atomicdb.Document{"value": value + 1}
	})
	if err != nil {
		t.Fatalf("AtomicUpdate failed: %v", err)
	}
	if !found {
		t.Fatal("Expected a match")
	}

	err = ts.Execute(func(db *atomicdb.Database) error {
		doc, ok, err := db.Get("counters", atomicdb.Field("name").Eq("hits"))
		if err != nil || !ok {
			return fmt.Errorf("get counter: ok=%v err=%v", ok, err)
		}
		if doc["value"] != 1 {
			t.Errorf("Expected value 1, got %v", doc["value"])
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Readback failed: %v", err)
	}
}

func TestAtomicUpdateNoMatch(t *testing.T) {
	p, ts := newTestFacade(t, nil)
	defer p.CloseAll()

	found, err := ts.AtomicUpdate("counters", atomicdb.Field("name").Eq("missing"), func(doc atomicdb.Document) atomicdb.Document {
		t.Error("Transform should not run without a match")
		return doc
	})
	if err != nil {
		t.Fatalf("AtomicUpdate failed: %v", err)
	}
	if found {
		t.Error("Expected no match")
	}
}

func TestAtomicUpdateConcurrent(t *testing.T) {
	opts := DefaultOptions()
	opts.MinSize = 4
	opts.MaxSize = 8

	p, ts := newTestFacade(t, opts)
	defer p.CloseAll()

	err := ts.Execute(func(db *atomicdb.Database) error {
		_, err := db.Insert("counters", atomicdb.Document{"name": "hits", "value": 0})
		return err
	})
	if err != nil {
		t.Fatalf("Seed failed: %v", err)
	}

	// Read-modify-write under the handle lock must not lose increments
	const workers = 8
	const perWorker = 5

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perWorker; j++ {
				_, err := ts.AtomicUpdate("counters", atomicdb.Field("name").Eq("hits"), func(doc atomicdb.Document) atomicdb.Document {
					value, _ := doc["value"].(int)
					return atomicdb.Document{"value": value + 1}
				})
				if err != nil {
					t.Errorf("AtomicUpdate failed: %v", err)
				}
			}
		}()
	}
	wg.Wait()

	err = ts.Execute(func(db *atomicdb.Database) error {
		doc, ok, err := db.Get("counters", atomicdb.Field("name").Eq("hits"))
		if err != nil || !ok {
			return fmt.Errorf("get counter: ok=%v err=%v", ok, err)
		}
		if doc["value"] != workers*perWorker {
			t.Errorf("Lost increments: expected %d, got %v", workers*perWorker, doc["value"])
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Readback failed: %v", err)
	}
}

func TestExecutorSubmit(t *testing.T) {
	p, ts := newTestFacade(t, nil)
	defer p.CloseAll()

	exec, err := NewExecutor(ts, 4)
	if err != nil {
		t.Fatalf("Failed to create executor: %v", err)
	}
	defer exec.Release()

	const tasks = 20
	results := make([]<-chan error, 0, tasks)
	for i := 0; i < tasks; i++ {
		i := i
		ch, err := exec.Submit(func(db *atomicdb.Database) error {
			_, err := db.Insert("jobs", atomicdb.Document{"seq": i})
			return err
		})
		if err != nil {
			t.Fatalf("Submit %d failed: %v", i, err)
		}
		results = append(results, ch)
	}

	for i, ch := range results {
		if err := <-ch; err != nil {
			t.Errorf("Task %d failed: %v", i, err)
		}
	}

	err = ts.Execute(func(db *atomicdb.Database) error {
		if db.Count("jobs") != tasks {
			t.Errorf("Expected %d jobs, got %d", tasks, db.Count("jobs"))
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Readback failed: %v", err)
	}
}

func TestExecutorDeliversErrors(t *testing.T) {
	p, ts := newTestFacade(t, nil)
	defer p.CloseAll()

	exec, err := NewExecutor(ts, 2)
	if err != nil {
		t.Fatalf("Failed to create executor: %v", err)
	}
	defer exec.Release()

	wantErr := fmt.Errorf("task failed")
	ch, err := exec.Submit(func(db *atomicdb.Database) error {
		return wantErr
	})
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if err := <-ch; !errors.Is(err, wantErr) {
		t.Errorf("Expected the task error, got %v", err)
	}
}

func TestExecutorRelease(t *testing.T) {
	p, ts := newTestFacade(t, nil)
	defer p.CloseAll()

	exec, err := NewExecutor(ts, 2)
	if err != nil {
		t.Fatalf("Failed to create executor: %v", err)
	}
	exec.Release()

	if _, err := exec.Submit(func(db *atomicdb.Database) error { return nil }); err == nil {
		t.Error("Expected error submitting to a released executor")
	}
}
