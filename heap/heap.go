package heap

import (
	"fmt"
	"sync/atomic"
	"unsafe"

	"github.com/tinyvisor/kheap/cpu"
	"github.com/tinyvisor/kheap/heap/cache"
	"github.com/tinyvisor/kheap/heap/early"
	"github.com/tinyvisor/kheap/heap/page"
	"github.com/tinyvisor/kheap/heap/slab"
	"github.com/tinyvisor/kheap/internal/format"
	"github.com/tinyvisor/kheap/internal/spin"
)

// Options configures a Heap. The zero value selects the platform page
// source, the machine CPU topology, and the default bootstrap region.
type Options struct {
	// Pages supplies raw pages for slabs and oversized allocations.
	Pages page.Source

	// Topology is the CPU set pinned against on operational paths.
	Topology *cpu.Topology

	// EarlyPages sizes the bootstrap region, in pages.
	EarlyPages int
}

// Heap routes allocate/deallocate calls to the early heap or the injected
// slot strategies.
type Heap struct {
	pages page.Source
	topo  *cpu.Topology

	earlyMu spin.Lock
	early   *early.Heap

	// caches is nil while bootstrapping and written exactly once by
	// Inject. The atomic publication is what lets readers that observe a
	// non-nil set also observe every strategy in it fully built.
	caches atomic.Pointer[cache.Set]

	stats counters
}

type counters struct {
	allocCalls atomic.Uint64
	freeCalls  atomic.Uint64
	earlyServe atomic.Uint64
	slabServe  atomic.Uint64
	pageServe  atomic.Uint64
	failures   atomic.Uint64
}

// Stats is a point-in-time snapshot of a heap's counters.
type Stats struct {
	AllocCalls uint64 // total Alloc calls
	FreeCalls  uint64 // total Free calls
	EarlyServe uint64 // allocations served by the bootstrap heap
	SlabServe  uint64 // allocations served by slot strategies
	PageServe  uint64 // oversized allocations served as page runs
	Failures   uint64 // allocations that returned ErrNoSpace
}

// New creates a heap in the Bootstrapping state.
func New(opts Options) *Heap {
	src := opts.Pages
	if src == nil {
		src = page.NewSource()
	}
	topo := opts.Topology
	if topo == nil {
		topo = cpu.Machine()
	}
	pages := opts.EarlyPages
	if pages == 0 {
		pages = early.DefaultPages
	}
	return &Heap{
		pages: src,
		topo:  topo,
		early: early.New(pages),
	}
}

// Inject installs one slot strategy per size class and switches the heap
// from Bootstrapping to Operational. It succeeds exactly once; a second
// call is a fatal usage error, as is a set with a missing class.
func (h *Heap) Inject(set cache.Set) {
	for i, s := range set {
		if s == nil {
			panic(fmt.Errorf("heap: injected set has no strategy for the %d-byte class", format.ClassSize(i)))
		}
	}
	installed := set
	if !h.caches.CompareAndSwap(nil, &installed) {
		panic("heap: slot strategies must not be injected more than once")
	}
}

// Operational reports whether the slot strategies have been injected.
func (h *Heap) Operational() bool {
	return h.caches.Load() != nil
}

// Alloc returns memory usable for exactly size bytes, aligned to at least
// align. align must be a power of two (zero means byte alignment). Failure
// is always an explicit ErrNoSpace, never an invalid pointer.
func (h *Heap) Alloc(size, align uintptr) (unsafe.Pointer, error) {
	if n := h.stats.allocCalls.Add(1); debugAlloc && n%25000 == 0 {
		h.dumpStats()
	}
	if size == 0 {
		size = 1
	}
	if align == 0 {
		align = 1
	}
	if !format.IsPowerOfTwo(align) {
		panic(fmt.Errorf("heap: alignment %d is not a power of two", align))
	}

	if size > format.MaxSlotSize {
		return h.allocPages(size, align)
	}

	class, _ := format.ClassIndex(int(size))
	slotSize := uintptr(format.ClassSize(class))
	if !format.IsAligned(slotSize, align) {
		panic(fmt.Errorf("heap: the %d-byte class cannot satisfy alignment %d", slotSize, align))
	}

	set := h.caches.Load()
	if set == nil {
		h.earlyMu.Lock()
		p := h.early.Alloc(class)
		h.earlyMu.Unlock()
		if p == nil {
			h.stats.failures.Add(1)
			if logAlloc {
				debugLogf("alloc(%d): bootstrap region exhausted", size)
			}
			return nil, ErrNoSpace
		}
		h.stats.earlyServe.Add(1)
		return p, nil
	}

	tok := h.topo.Pin()
	s, ok := set[class].Alloc(tok)
	tok.Unpin()
	if !ok {
		h.stats.failures.Add(1)
		if logAlloc {
			debugLogf("alloc(%d): class %d has no free slot", size, slotSize)
		}
		return nil, ErrNoSpace
	}
	h.stats.slabServe.Add(1)
	return s.Raw(), nil
}

// Free returns memory obtained from a prior successful Alloc with the same
// size and alignment.
func (h *Heap) Free(ptr unsafe.Pointer, size, align uintptr) {
	h.stats.freeCalls.Add(1)
	if ptr == nil {
		panic("heap: free of nil pointer")
	}
	if size == 0 {
		size = 1
	}
	_ = align // alignment played its part at allocation time

	if size > format.MaxSlotSize {
		h.pages.Release(page.FromRaw(ptr, format.PagesFor(size)))
		return
	}

	class, _ := format.ClassIndex(int(size))

	// Checked in every state: bootstrap-era pointers must stay freeable
	// after the switch to the slot strategies.
	if h.early.Contains(ptr) {
		h.earlyMu.Lock()
		h.early.Free(ptr, class)
		h.earlyMu.Unlock()
		return
	}

	tok := h.topo.Pin()
	defer tok.Unpin()

	s, ok := slab.FromRaw(ptr)
	if !ok {
		panic(fmt.Errorf("heap: free of %p, which no slab owns", ptr))
	}
	s.Recycle(tok)
}

// Stats returns a snapshot of the heap's counters.
func (h *Heap) Stats() Stats {
	return Stats{
		AllocCalls: h.stats.allocCalls.Load(),
		FreeCalls:  h.stats.freeCalls.Load(),
		EarlyServe: h.stats.earlyServe.Load(),
		SlabServe:  h.stats.slabServe.Load(),
		PageServe:  h.stats.pageServe.Load(),
		Failures:   h.stats.failures.Load(),
	}
}

func (h *Heap) allocPages(size, align uintptr) (unsafe.Pointer, error) {
	if align > format.PageSize {
		panic(fmt.Errorf("heap: alignment %d above the page size is unsupported", align))
	}
	run, ok := h.pages.Acquire(format.PagesFor(size))
	if !ok {
		h.stats.failures.Add(1)
		if logAlloc {
			debugLogf("alloc(%d): page source exhausted", size)
		}
		return nil, ErrNoSpace
	}
	h.stats.pageServe.Add(1)
	return run.Base(), nil
}
