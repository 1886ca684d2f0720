package heap

import (
	"sync"
	"unsafe"

	"github.com/tinyvisor/kheap/heap/cache"
)

var (
	defaultOnce sync.Once
	defaultHeap *Heap
)

// Default returns the process-wide heap, creating it on first use with the
// platform page source and machine topology.
func Default() *Heap {
	defaultOnce.Do(func() {
		defaultHeap = New(Options{})
	})
	return defaultHeap
}

// Alloc allocates from the default heap.
func Alloc(size, align uintptr) (unsafe.Pointer, error) {
	return Default().Alloc(size, align)
}

// Free frees memory obtained from the default heap.
func Free(ptr unsafe.Pointer, size, align uintptr) {
	Default().Free(ptr, size, align)
}

// Inject installs the slot strategies on the default heap.
func Inject(set cache.Set) {
	Default().Inject(set)
}
