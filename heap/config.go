package heap

import (
	"fmt"

	"github.com/tinyvisor/kheap/cpu"
	"github.com/tinyvisor/kheap/heap/cache"
	"github.com/tinyvisor/kheap/heap/page"
)

// Strategy selects the slot-allocation strategy a configured heap injects.
type Strategy int

const (
	// StrategySingle serves each size class from one slab behind one
	// machine-wide lock.
	StrategySingle Strategy = iota

	// StrategyPerCPU serves each size class from one locked slab per CPU.
	StrategyPerCPU

	// StrategyLockless adds an unsynchronized per-CPU free list in front of
	// the per-CPU slabs; the same-CPU allocate/free cycle takes no lock.
	StrategyLockless
)

func (s Strategy) String() string {
	switch s {
	case StrategySingle:
		return "single"
	case StrategyPerCPU:
		return "percpu"
	case StrategyLockless:
		return "lockless"
	default:
		return fmt.Sprintf("Strategy(%d)", int(s))
	}
}

// ParseStrategy maps a strategy name to its Strategy value.
func ParseStrategy(name string) (Strategy, error) {
	switch name {
	case "single":
		return StrategySingle, nil
	case "percpu":
		return StrategyPerCPU, nil
	case "lockless":
		return StrategyLockless, nil
	default:
		return 0, fmt.Errorf("heap: unknown strategy %q (want single, percpu, or lockless)", name)
	}
}

// Config bundles the choices needed to bring a heap all the way to
// Operational in one step.
// Different configurations can be benchmarked to find the right
// contention/footprint tradeoff.
type Config struct {
	// Name for this configuration (for benchmarking)
	Name string

	// Strategy is the slot-allocation strategy to inject.
	Strategy Strategy

	// CPUs sizes the topology; 0 uses the machine topology.
	CPUs int

	// EarlyPages sizes the bootstrap region; 0 uses the default.
	EarlyPages int
}

// Predefined configurations.
var (
	// ConfigSingle: the baseline. Smallest footprint, every operation on a
	// size class serializes machine-wide.
	ConfigSingle = Config{
		Name:     "Single",
		Strategy: StrategySingle,
	}

	// ConfigPerCPU: one slab per CPU per class. Contention limited to
	// contexts pinned to the same CPU.
	ConfigPerCPU = Config{
		Name:     "PerCPU",
		Strategy: StrategyPerCPU,
	}

	// ConfigLockless: per-CPU slabs plus lock-free local free lists. The
	// common same-CPU allocate/free cycle touches no lock.
	ConfigLockless = Config{
		Name:     "Lockless",
		Strategy: StrategyLockless,
	}

	// Default configuration (used if none specified).
	DefaultConfig = ConfigLockless
)

// NewConfigured builds a heap, constructs the configured strategy set over a
// fresh platform page source, and injects it. The returned heap is already
// Operational.
func NewConfigured(cfg Config) (*Heap, error) {
	src := page.NewSource()
	topo := cpu.Machine()
	if cfg.CPUs > 0 {
		topo = cpu.NewTopology(cfg.CPUs)
	}
	h := New(Options{Pages: src, Topology: topo, EarlyPages: cfg.EarlyPages})

	var (
		set cache.Set
		ok  bool
	)
	switch cfg.Strategy {
	case StrategySingle:
		set, ok = cache.NewSingleSet(src)
	case StrategyPerCPU:
		set, ok = cache.NewPerCPUSet(src, topo.Count())
	case StrategyLockless:
		set, ok = cache.NewLocklessSet(src, topo.Count())
	default:
		return nil, fmt.Errorf("heap: unknown strategy %d", cfg.Strategy)
	}
	if !ok {
		return nil, ErrNoSpace
	}
	h.Inject(set)
	return h, nil
}
