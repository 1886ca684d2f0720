// Package format defines the size constants and size-class table shared by
// every layer of the heap: the page size slabs are built on, the range of
// slot sizes served by slab caches, and the helpers for mapping a request
// size onto a class.
package format

const (
	// PageSize is the granularity of the external page source. Every slab
	// owns exactly one page, and the early heap's region is measured in
	// pages.
	PageSize = 4096

	// MinSlotSize is the smallest slot size a slab serves. Requests below
	// this are rounded up to it.
	MinSlotSize = 16

	// MaxSlotSize is the largest slot size a slab serves. Requests above
	// this bypass the slab layer and go straight to the page source.
	MaxSlotSize = 2048

	// NumClasses is the number of slot size classes: powers of two from
	// MinSlotSize through MaxSlotSize inclusive.
	NumClasses = 8
)

// SlotSizes lists the supported slot sizes in ascending order. The index of
// a size in this table is its size class.
var SlotSizes = [NumClasses]int{16, 32, 64, 128, 256, 512, 1024, 2048}

// ClassSize returns the slot size of class i. It panics if i is not a valid
// class index.
func ClassSize(i int) int {
	return SlotSizes[i]
}

// ClassIndex returns the size class whose slot size is the smallest
// supported size >= max(n, MinSlotSize). The second return is false when n
// exceeds MaxSlotSize; such requests are page-granularity allocations and
// out of the slab layer's range.
func ClassIndex(n int) (int, bool) {
	if n > MaxSlotSize {
		return 0, false
	}
	for i, size := range SlotSizes {
		if n <= size {
			return i, true
		}
	}
	// Unreachable: SlotSizes ends at MaxSlotSize.
	return 0, false
}
