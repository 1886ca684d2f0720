// Package early implements the bootstrap heap: a fixed region of pages
// carved lazily into per-size-class free lists. It serves allocations
// before the per-CPU slot caches exist and keeps serving frees of its own
// pointers forever after, since memory handed out during bootstrap outlives
// the switch to the slab strategies.
//
// The region is reserved from the platform page source at construction, so
// its memory sits outside the collector's view and free-list links can be
// threaded through it the same way the slab layer does.
//
// A Heap performs no locking of its own; the dispatcher serializes access
// with one spin lock. Once the region is consumed there is no growth
// mechanism; exhaustion is terminal at this layer and surfaces as a nil
// allocation.
package early

import (
	"fmt"
	"sync/atomic"
	"unsafe"

	"github.com/tinyvisor/kheap/heap/page"
	"github.com/tinyvisor/kheap/internal/format"
)

// DefaultPages is the bootstrap region size used by the default heap.
const DefaultPages = 256

// Heap is a bootstrap allocator over one fixed region.
type Heap struct {
	region    page.Page // held for the Heap's lifetime, never released
	base      uintptr
	npages    int
	usedPages atomic.Int32
	freeHeads [format.NumClasses]uintptr
}

// New creates a bootstrap heap over a fresh region of npages pages. A
// process that cannot reserve its bootstrap region cannot run at all, so
// reservation failure is fatal.
func New(npages int) *Heap {
	if npages < 1 {
		panic(fmt.Errorf("early: region needs at least one page, got %d", npages))
	}
	run, ok := page.NewSource().Acquire(npages)
	if !ok {
		panic(fmt.Errorf("early: cannot reserve a %d-page bootstrap region", npages))
	}
	return &Heap{
		region: run,
		base:   uintptr(run.Base()),
		npages: npages,
	}
}

// Alloc pops a slot from the class's free list, carving a fresh page into
// slots of that class when the list is empty. It returns nil once the
// region is exhausted.
func (h *Heap) Alloc(class int) unsafe.Pointer {
	head := h.freeHeads[class]
	if head == 0 {
		if !h.carve(class) {
			return nil
		}
		head = h.freeHeads[class]
	}
	h.freeHeads[class] = *(*uintptr)(unsafe.Pointer(head))
	return unsafe.Pointer(head)
}

// Free pushes a pointer back onto its class's free list. The pointer must
// have come from Alloc with the same class.
func (h *Heap) Free(ptr unsafe.Pointer, class int) {
	if !h.Contains(ptr) {
		panic(fmt.Errorf("early: free of %p, which is outside the bootstrap region", ptr))
	}
	addr := uintptr(ptr)
	*(*uintptr)(unsafe.Pointer(addr)) = h.freeHeads[class]
	h.freeHeads[class] = addr
}

// Contains reports whether ptr falls inside the bootstrap region. The
// dispatcher consults it on every free, in every state, to route
// bootstrap-era pointers here.
func (h *Heap) Contains(ptr unsafe.Pointer) bool {
	addr := uintptr(ptr)
	return addr >= h.base && addr < h.base+uintptr(h.npages*format.PageSize)
}

// UsedPages returns how many pages of the region have been consumed.
// Consumption is monotonic: carved pages are never returned.
func (h *Heap) UsedPages() int {
	return int(h.usedPages.Load())
}

// TotalPages returns the region's size in pages.
func (h *Heap) TotalPages() int {
	return h.npages
}

// carve claims the next unused page and threads it into the class's free
// list. Returns false when the region is exhausted.
func (h *Heap) carve(class int) bool {
	var pageIdx int32
	for {
		n := h.usedPages.Load()
		if int(n) == h.npages {
			return false
		}
		if h.usedPages.CompareAndSwap(n, n+1) {
			pageIdx = n
			break
		}
	}

	slotSize := format.ClassSize(class)
	pageBase := h.base + uintptr(int(pageIdx)*format.PageSize)
	for off := format.PageSize - slotSize; off >= 0; off -= slotSize {
		addr := pageBase + uintptr(off)
		*(*uintptr)(unsafe.Pointer(addr)) = h.freeHeads[class]
		h.freeHeads[class] = addr
	}
	return true
}
