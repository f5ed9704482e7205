// Command atomicdb-bench runs a mixed read/write workload against an
// atomicdb store through the connection pool and reports throughput and
// latency percentiles.
package main

import (
	"flag"
	"fmt"
	"log"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/kartikbazzad/atomicdb"
	"github.com/kartikbazzad/atomicdb/internal/logger"
	"github.com/kartikbazzad/atomicdb/pool"
	"github.com/kartikbazzad/atomicdb/storage"
)

type benchConfig struct {
	Path        string
	Backend     string
	Concurrency int
	TotalOps    int
	ReadRatio   float64 // 0.0 to 1.0 (e.g. 0.8 for 80% reads)
	Indexed     bool
	SeedDocs    int
}

func main() {
	path := flag.String("path", "bench.db", "Database path (ignored by the memory backend)")
	backend := flag.String("backend", "memory", "Storage backend: memory, json, msgpack, sqlite, badger")
	concurrency := flag.Int("c", 10, "Number of concurrent workers")
	ops := flag.Int("n", 10000, "Total number of operations")
	ratio := flag.Float64("ratio", 0.5, "Read ratio (0.0=Write Only, 1.0=Read Only)")
	indexed := flag.Bool("index", true, "Create an index on the key field before running")
	seed := flag.Int("seed", 1000, "Documents inserted before the benchmark")

	flag.Parse()

	logger.Init(logger.Config{Level: "WARN", Format: "text"})

	cfg := benchConfig{
		Path:        *path,
		Backend:     *backend,
		Concurrency: *concurrency,
		TotalOps:    *ops,
		ReadRatio:   *ratio,
		Indexed:     *indexed,
		SeedDocs:    *seed,
	}

	fmt.Printf("🔥 Starting atomicdb bench\n")
	fmt.Printf("   Backend: %s\n   Workers: %d\n   Total Ops: %d\n   Read Ratio: %.2f\n   Indexed: %v\n",
		cfg.Backend, cfg.Concurrency, cfg.TotalOps, cfg.ReadRatio, cfg.Indexed)

	if err := runBenchmark(cfg); err != nil {
		log.Fatalf("benchmark failed: %v", err)
	}
}

func openStore(cfg benchConfig) (*pool.Pool, error) {
	opts := atomicdb.DefaultOptions()
	switch cfg.Backend {
	case "memory":
		opts.Storage = storage.NewMemoryStore("")
	case "json":
		// Default backend, nothing to override
	case "msgpack":
		opts.Storage = storage.NewMsgpackStore(cfg.Path)
	case "sqlite":
		store, err := storage.NewSQLiteStore(cfg.Path)
		if err != nil {
			return nil, err
		}
		opts.Storage = store
	case "badger":
		store, err := storage.NewBadgerStore(cfg.Path)
		if err != nil {
			return nil, err
		}
		opts.Storage = store
	default:
		return nil, fmt.Errorf("unknown backend: %s", cfg.Backend)
	}

	poolOpts := pool.DefaultOptions()
	poolOpts.MinSize = cfg.Concurrency
	poolOpts.MaxSize = cfg.Concurrency * 2
	return pool.Open(cfg.Path, opts, poolOpts)
}

func runBenchmark(cfg benchConfig) error {
	p, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer p.CloseAll()

	ts := pool.NewThreadSafe(p, 30*time.Second)

	// Seed documents so reads have something to find
	err = ts.Execute(func(db *atomicdb.Database) error {
		if cfg.Indexed {
			if err := db.CreateIndex("key"); err != nil {
				return err
			}
		}
		docs := make([]atomicdb.Document, 0, cfg.SeedDocs)
		for i := 0; i < cfg.SeedDocs; i++ {
			docs = append(docs, atomicdb.Document{
				"key":  fmt.Sprintf("seed-%d", i),
				"data": "some useful payload",
			})
		}
		_, err := db.InsertMany("bench", docs)
		return err
	})
	if err != nil {
		return fmt.Errorf("seed: %w", err)
	}

	start := time.Now()

	var wg sync.WaitGroup
	opsPerWorker := cfg.TotalOps / cfg.Concurrency

	latencies := make(chan time.Duration, cfg.TotalOps)
	errors := make(chan error, cfg.TotalOps)

	for i := 0; i < cfg.Concurrency; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()

			r := rand.New(rand.NewSource(time.Now().UnixNano() + int64(id)))

			for j := 0; j < opsPerWorker; j++ {
				opStart := time.Now()

				isRead := r.Float64() < cfg.ReadRatio

				if isRead {
					key := fmt.Sprintf("seed-%d", r.Intn(cfg.SeedDocs))
					err := ts.Execute(func(db *atomicdb.Database) error {
						_, err := db.Search("bench", atomicdb.Field("key").Eq(key))
						return err
					})
					if err != nil {
						errors <- err
					}
				} else {
					err := ts.Execute(func(db *atomicdb.Database) error {
						_, err := db.Insert("bench", atomicdb.Document{
							"key":    fmt.Sprintf("w%d-%d", id, j),
							"worker": id,
							"iter":   j,
							"data":   "some useful payload",
							"ts":     time.Now().UnixNano(),
						})
						return err
					})
					if err != nil {
						errors <- err
					}
				}

				latencies <- time.Since(opStart)
			}
		}(i)
	}

	wg.Wait()
	close(latencies)
	close(errors)

	duration := time.Since(start)

	var totalLatency time.Duration
	var latList []float64
	var errCount int

	for l := range latencies {
		totalLatency += l
		latList = append(latList, float64(l.Microseconds())/1000.0) // ms
	}

	for err := range errors {
		errCount++
		if errCount <= 5 {
			fmt.Printf("Error Sample: %v\n", err)
		}
	}

	opsCount := len(latList)
	throughput := float64(opsCount) / duration.Seconds()
	avgLatency := float64(totalLatency.Milliseconds()) / float64(opsCount)

	sort.Float64s(latList)
	p50 := 0.0
	p99 := 0.0
	if len(latList) > 0 {
		p50 = latList[int(float64(len(latList))*0.50)]
		p99 = latList[int(float64(len(latList))*0.99)]
	}

	var metrics atomicdb.Metrics
	var docCount int
	ts.Execute(func(db *atomicdb.Database) error {
		metrics = db.Metrics()
		docCount = db.Count("bench")
		return nil
	})

	fmt.Println("\n📊 Results:")
	fmt.Printf("   Duration:    %v\n", duration)
	fmt.Printf("   Throughput:  %.2f ops/sec\n", throughput)
	fmt.Printf("   Avg Latency: %.2f ms\n", avgLatency)
	fmt.Printf("   P50 Latency: %.2f ms\n", p50)
	fmt.Printf("   P99 Latency: %.2f ms\n", p99)
	fmt.Printf("   Errors:      %d (%.2f%%)\n", errCount, float64(errCount)/float64(cfg.TotalOps)*100)
	fmt.Printf("   Documents:   %d\n", docCount)
	fmt.Printf("   Index/Scan:  %d lookups, %d scans\n", metrics.IndexLookups, metrics.FullScans)
	return nil
}
