package slab

import (
	"fmt"
	"unsafe"

	"github.com/tinyvisor/kheap/cpu"
	"github.com/tinyvisor/kheap/internal/format"
)

// Slot is the single-owner handle to one free slab slot. Its memory holds
// only the free-list link word until the slot is converted into a box or
// handed out through the heap's address-based interface.
type Slot struct {
	ptr  unsafe.Pointer
	size uintptr
}

// Raw returns the slot's underlying address, for threading through the
// heap's pointer-based interface. The handle's ownership moves with the
// pointer; the slot must eventually come back through FromRaw or the
// recycle path.
func (s Slot) Raw() unsafe.Pointer {
	return s.ptr
}

// Size returns the slot's size in bytes.
func (s Slot) Size() int {
	return int(s.size)
}

// FromRaw reconstructs the slot handle for an address previously produced
// by a slab. It returns false when the address does not belong to any live
// slab's page. An address inside a slab page that is not on a slot boundary
// is corrupt and panics.
func FromRaw(ptr unsafe.Pointer) (Slot, bool) {
	m, ok := metaOf(uintptr(ptr))
	if !ok {
		return Slot{}, false
	}
	if !format.IsAligned(uintptr(ptr)-m.pageBase, m.slotSize) {
		panic(fmt.Errorf("slab: address %p is not on a %d-byte slot boundary", ptr, m.slotSize))
	}
	return Slot{ptr: ptr, size: m.slotSize}, true
}

// Recycle routes the slot back to the strategy owning its slab, via the
// recycle function recorded in the slab's metadata. Releasing an
// unconverted slot this way keeps the slab's in-use counter balanced on
// error paths that take a slot and then abandon it.
func (s Slot) Recycle(tok cpu.Token) {
	m, ok := metaOf(uintptr(s.ptr))
	if !ok {
		panic(fmt.Errorf("slab: recycle of address %p with no owning slab", s.ptr))
	}
	m.recycle(s, m.ext, tok)
}

// Next returns the slot this one links to on a free list, or false at the
// list tail. Meaningful only while the slot is free.
func (s Slot) Next() (Slot, bool) {
	next := loadWord(uintptr(s.ptr))
	if next == 0 {
		return Slot{}, false
	}
	return Slot{ptr: unsafe.Pointer(next), size: s.size}, true
}

// SetNext links this slot to next. Meaningful only while the slot is free.
func (s Slot) SetNext(next Slot) {
	storeWord(uintptr(s.ptr), uintptr(next.ptr))
}

// ClearNext marks this slot as a free-list tail.
func (s Slot) ClearNext() {
	storeWord(uintptr(s.ptr), 0)
}

// EmplaceBox moves v into the slot's memory and returns the unique pointer
// to it. The value's size must classify to exactly this slot's size and the
// slot size must satisfy the value's alignment; a mismatch is a fatal
// layout bug. v must not contain Go pointers.
func EmplaceBox[T any](s Slot, v T) *T {
	checkSlotLayout(s.size, unsafe.Sizeof(v), unsafe.Alignof(v))
	p := (*T)(s.ptr)
	*p = v
	return p
}

// RecoverBox takes back the slot behind a pointer produced by EmplaceBox.
// The stored value is abandoned; the returned handle owns the slot again.
func RecoverBox[T any](p *T) Slot {
	m, ok := metaOf(uintptr(unsafe.Pointer(p)))
	if !ok {
		panic(fmt.Errorf("slab: %p was not placed in a slab slot", p))
	}
	var zero T
	checkSlotLayout(m.slotSize, unsafe.Sizeof(zero), unsafe.Alignof(zero))
	return Slot{ptr: unsafe.Pointer(p), size: m.slotSize}
}

// checkSlotLayout enforces the size/alignment contract between a value and
// the slot holding it: the value's size class must be the slot's own size,
// and the slot size must be a multiple of the value's alignment.
func checkSlotLayout(slotSize, size, align uintptr) {
	class, ok := format.ClassIndex(int(size))
	if !ok || uintptr(format.ClassSize(class)) != slotSize {
		panic(fmt.Errorf("slab: a %d-byte value does not belong in %d-byte slots", size, slotSize))
	}
	if !format.IsAligned(slotSize, align) {
		panic(fmt.Errorf("slab: %d-byte slots cannot align a value to %d", slotSize, align))
	}
}

func loadWord(addr uintptr) uintptr {
	return *(*uintptr)(unsafe.Pointer(addr))
}

func storeWord(addr, v uintptr) {
	*(*uintptr)(unsafe.Pointer(addr)) = v
}
