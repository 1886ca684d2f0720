package format

// Alignment utilities. Slot sizes are powers of two, so a slot carved at a
// multiple of its size from a page-aligned base is naturally aligned to its
// own size.

// AlignUp returns n aligned up to the next multiple of align. align must be
// a power of two.
//
// Example:
//
//	AlignUp(1, 16)    = 16
//	AlignUp(16, 16)   = 16
//	AlignUp(17, 16)   = 32
func AlignUp(n, align uintptr) uintptr {
	return (n + align - 1) &^ (align - 1)
}

// AlignDown returns n aligned down to the previous multiple of align.
// align must be a power of two.
func AlignDown(n, align uintptr) uintptr {
	return n &^ (align - 1)
}

// IsAligned reports whether n is a multiple of align. align must be a power
// of two.
func IsAligned(n, align uintptr) bool {
	return n&(align-1) == 0
}

// IsPowerOfTwo reports whether n is a positive power of two.
func IsPowerOfTwo(n uintptr) bool {
	return n != 0 && n&(n-1) == 0
}

// PageBase returns the address of the page containing addr.
func PageBase(addr uintptr) uintptr {
	return AlignDown(addr, PageSize)
}

// PagesFor returns the number of pages needed to hold n bytes.
func PagesFor(n uintptr) int {
	return int(AlignUp(n, PageSize) / PageSize)
}
