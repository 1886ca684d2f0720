package main

import (
	"fmt"
	"sync"
	"time"
	"unsafe"

	"github.com/spf13/cobra"

	"github.com/tinyvisor/kheap/cmd/kheapctl/logger"
	"github.com/tinyvisor/kheap/heap"
)

var (
	stressStrategy string
	stressWorkers  int
	stressOps      int
	stressSize     int
)

func init() {
	cmd := newStressCmd()
	cmd.Flags().StringVar(&stressStrategy, "strategy", "lockless", "Slot strategy: single, percpu, or lockless")
	cmd.Flags().IntVar(&stressWorkers, "workers", 4, "Concurrent workers (and virtual CPUs)")
	cmd.Flags().IntVar(&stressOps, "ops", 100000, "Allocations per worker")
	cmd.Flags().IntVar(&stressSize, "size", 48, "Request size in bytes")
	rootCmd.AddCommand(cmd)
}

func newStressCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stress",
		Short: "Run multi-worker allocation stress against a strategy",
		Long: `The stress command builds a fresh heap, injects the chosen slot
strategy, and hammers it with concurrent allocate/free traffic. It reports
throughput and the heap's counters afterwards.

Example:
  kheapctl stress
  kheapctl stress --strategy single --workers 8 --ops 500000
  kheapctl stress --size 1024 --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStress()
		},
	}
}

type stressReport struct {
	Strategy   string
	Workers    int
	OpsWorker  int
	Size       int
	Elapsed    string
	OpsPerSec  float64
	HeapStats  heap.Stats
	NoSpaceHit uint64
}

func runStress() error {
	if stressWorkers < 1 {
		return fmt.Errorf("workers must be at least 1, got %d", stressWorkers)
	}
	if stressOps < 1 {
		return fmt.Errorf("ops must be at least 1, got %d", stressOps)
	}
	if stressSize < 1 {
		return fmt.Errorf("size must be at least 1, got %d", stressSize)
	}

	strategy, err := heap.ParseStrategy(stressStrategy)
	if err != nil {
		return err
	}
	h, err := heap.NewConfigured(heap.Config{
		Name:     "stress",
		Strategy: strategy,
		CPUs:     stressWorkers,
	})
	if err != nil {
		return fmt.Errorf("building the %s heap: %w", strategy, err)
	}

	logger.Info("strategy injected", "strategy", strategy.String(), "workers", stressWorkers)

	size := uintptr(stressSize)
	start := time.Now()

	var wg sync.WaitGroup
	for w := 0; w < stressWorkers; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			defer logger.Debug("worker done", "worker", worker)
			ptrs := make([]unsafe.Pointer, 0, 8)
			drain := func() {
				for _, q := range ptrs {
					h.Free(q, size, 8)
				}
				ptrs = ptrs[:0]
			}
			for i := 0; i < stressOps; i++ {
				p, err := h.Alloc(size, 8)
				if err != nil {
					// Out of slots: return what we hold and retry.
					drain()
					continue
				}
				ptrs = append(ptrs, p)
				if len(ptrs) == cap(ptrs) {
					drain()
				}
			}
			drain()
		}(w)
	}
	wg.Wait()

	elapsed := time.Since(start)
	stats := h.Stats()
	totalOps := float64(stats.AllocCalls + stats.FreeCalls)

	report := stressReport{
		Strategy:   stressStrategy,
		Workers:    stressWorkers,
		OpsWorker:  stressOps,
		Size:       stressSize,
		Elapsed:    elapsed.String(),
		OpsPerSec:  totalOps / elapsed.Seconds(),
		HeapStats:  stats,
		NoSpaceHit: stats.Failures,
	}

	if jsonOut {
		return printJSON(report)
	}

	printInfo("\nStress: %s strategy, %d workers x %d ops, %d-byte requests\n",
		report.Strategy, report.Workers, report.OpsWorker, report.Size)
	printInfo("  Elapsed: %s\n", report.Elapsed)
	printInfo("  Throughput: %.0f ops/sec\n", report.OpsPerSec)
	printInfo("  Allocs: %d (slab %d, early %d, pages %d)\n",
		stats.AllocCalls, stats.SlabServe, stats.EarlyServe, stats.PageServe)
	printInfo("  Frees: %d\n", stats.FreeCalls)
	printInfo("  No-space failures: %d\n", stats.Failures)
	return nil
}
