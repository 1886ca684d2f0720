package slab

import (
	"fmt"
	"sync/atomic"
	"unsafe"

	"github.com/tinyvisor/kheap/cpu"
)

// Slab-backed shared boxes.
//
// A shared box is a reference-counted value whose control block and payload
// both live inside one slab slot, so sharing a value costs no separate
// allocation. The control block layout is a fixed contract of this package:
//
//	offset  0: strong count (8 bytes)
//	offset  8: weak count   (8 bytes)
//	offset 16: payload
//
// Both counts start at 1: the initial strong reference, and the implicit
// weak reference held collectively by all strong references. When the last
// strong reference is released the payload is dead and the implicit weak
// reference drops; when the weak count reaches zero the slot is routed back
// through its slab's recycle function, never a generic free.

type sharedHeader struct {
	strong atomic.Uint64
	weak   atomic.Uint64
}

const sharedHeaderSize = unsafe.Sizeof(sharedHeader{})

// Shared is a strong reference to a slab-backed shared box.
type Shared[T any] struct {
	hdr *sharedHeader
}

// Weak is a weak reference: it keeps the slot alive but not the payload.
type Weak[T any] struct {
	hdr *sharedHeader
}

// EmplaceShared constructs the control block and payload in place inside
// the slot and returns the first strong reference. The combined size of
// control block and payload must classify to exactly this slot's size.
func EmplaceShared[T any](s Slot, v T) *Shared[T] {
	need := sharedHeaderSize + unsafe.Sizeof(v)
	if unsafe.Alignof(v) > sharedHeaderSize {
		panic(fmt.Errorf("slab: shared payload alignment %d exceeds the control block", unsafe.Alignof(v)))
	}
	checkSlotLayout(s.size, need, sharedHeaderSize)

	hdr := (*sharedHeader)(s.ptr)
	hdr.strong.Store(1)
	hdr.weak.Store(1)
	*(*T)(unsafe.Add(s.ptr, sharedHeaderSize)) = v

	return &Shared[T]{hdr: hdr}
}

// Value returns the shared payload. It panics on a released handle.
func (sh *Shared[T]) Value() *T {
	if sh.hdr == nil {
		panic("slab: value access through a released shared handle")
	}
	return (*T)(unsafe.Add(unsafe.Pointer(sh.hdr), sharedHeaderSize))
}

// Clone returns a new strong reference to the same box.
func (sh *Shared[T]) Clone() *Shared[T] {
	if sh.hdr == nil {
		panic("slab: clone of a released shared handle")
	}
	sh.hdr.strong.Add(1)
	return &Shared[T]{hdr: sh.hdr}
}

// Strong returns the current strong count. For tests and diagnostics.
func (sh *Shared[T]) Strong() uint64 {
	return sh.hdr.strong.Load()
}

// Downgrade returns a weak reference to the box.
func (sh *Shared[T]) Downgrade() *Weak[T] {
	if sh.hdr == nil {
		panic("slab: downgrade of a released shared handle")
	}
	sh.hdr.weak.Add(1)
	return &Weak[T]{hdr: sh.hdr}
}

// Release drops this strong reference. Releasing the last strong reference
// abandons the payload and drops the implicit weak reference; once no weak
// references remain the slot is recycled to its owning slab. The handle
// must not be used afterwards.
func (sh *Shared[T]) Release(tok cpu.Token) {
	if sh.hdr == nil {
		panic("slab: double release of a shared handle")
	}
	hdr := sh.hdr
	sh.hdr = nil
	if hdr.strong.Add(^uint64(0)) != 0 {
		return
	}
	releaseWeakRef(hdr, tok)
}

// Upgrade attempts to turn the weak reference into a strong one. It fails
// once the last strong reference has been released.
func (w *Weak[T]) Upgrade() (*Shared[T], bool) {
	if w.hdr == nil {
		panic("slab: upgrade of a released weak handle")
	}
	for {
		n := w.hdr.strong.Load()
		if n == 0 {
			return nil, false
		}
		if w.hdr.strong.CompareAndSwap(n, n+1) {
			return &Shared[T]{hdr: w.hdr}, true
		}
	}
}

// Release drops the weak reference. The handle must not be used afterwards.
func (w *Weak[T]) Release(tok cpu.Token) {
	if w.hdr == nil {
		panic("slab: double release of a weak handle")
	}
	hdr := w.hdr
	w.hdr = nil
	releaseWeakRef(hdr, tok)
}

func releaseWeakRef(hdr *sharedHeader, tok cpu.Token) {
	if hdr.weak.Add(^uint64(0)) != 0 {
		return
	}
	slot, ok := FromRaw(unsafe.Pointer(hdr))
	if !ok {
		panic("slab: shared box released after its slab was destroyed")
	}
	slot.Recycle(tok)
}
