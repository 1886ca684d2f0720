package slab

import (
	"fmt"
	"sync"
	"unsafe"

	"github.com/tinyvisor/kheap/cpu"
	"github.com/tinyvisor/kheap/heap/page"
	"github.com/tinyvisor/kheap/internal/format"
)

// RecycleFunc returns a slot to the strategy that owns its slab. The heap's
// free path looks it up through the slot's slab metadata and invokes it
// with the slab's extension and the caller's pin token, so each strategy
// implements its own recycle policy without the dispatcher knowing which
// one owns the slot.
type RecycleFunc func(s Slot, ext Extension, tok cpu.Token)

// ExtKind tags the variant of a slab's extension.
type ExtKind uint8

const (
	// ExtNone marks a slab with no extension data (single-lock caches).
	ExtNone ExtKind = iota

	// ExtOwnerCPU marks a slab owned by one CPU; Owner is meaningful.
	ExtOwnerCPU
)

// Extension is the per-strategy data carried by every slab. It is a tagged
// variant rather than a dynamically typed value: recycle paths switch on
// Kind instead of performing type recovery.
type Extension struct {
	Kind  ExtKind
	Owner cpu.ID
}

// meta is a slab's out-of-line metadata, reachable from any slot address
// through the frame table.
type meta struct {
	slotSize uintptr
	pageBase uintptr
	freeHead uintptr // address of the first free slot, 0 when the list is empty
	freeLen  int
	used     int
	recycle  RecycleFunc
	ext      Extension
}

// frames is the frame table: page base address -> *meta. Written once per
// slab lifetime, read on every pointer-based free.
var frames sync.Map

func metaOf(addr uintptr) (*meta, bool) {
	v, ok := frames.Load(format.PageBase(addr))
	if !ok {
		return nil, false
	}
	return v.(*meta), true
}

// Slab owns exactly one page, divided into PageSize/slotSize equal slots.
type Slab struct {
	src  page.Source
	page page.Page
	m    *meta
}

// New acquires one page from src and partitions it into slots of slotSize
// bytes, threading every slot into the free list. It returns false only
// when no page is available. slotSize must be one of the supported slot
// sizes and recycle must be non-nil; violating either is a fatal usage
// error.
func New(src page.Source, slotSize int, recycle RecycleFunc, ext Extension) (*Slab, bool) {
	if class, ok := format.ClassIndex(slotSize); !ok || format.ClassSize(class) != slotSize {
		panic(fmt.Errorf("slab: %d is not a supported slot size", slotSize))
	}
	if recycle == nil {
		panic("slab: nil recycle function")
	}

	p, ok := src.Acquire(1)
	if !ok {
		return nil, false
	}
	base := uintptr(p.Base())
	total := format.PageSize / slotSize

	// Thread the slots: each free slot's first word holds the address of
	// the next, the last holds 0.
	for i := range total {
		addr := base + uintptr(i*slotSize)
		next := addr + uintptr(slotSize)
		if i == total-1 {
			next = 0
		}
		storeWord(addr, next)
	}

	m := &meta{
		slotSize: uintptr(slotSize),
		pageBase: base,
		freeHead: base,
		freeLen:  total,
		recycle:  recycle,
		ext:      ext,
	}
	frames.Store(base, m)

	return &Slab{src: src, page: p, m: m}, true
}

// TakeSlot pops the free-list head, returning false when the slab has no
// free slot. The caller must already hold whatever synchronization its
// strategy requires; the slab itself takes no lock.
func (s *Slab) TakeSlot() (Slot, bool) {
	head := s.m.freeHead
	if head == 0 {
		return Slot{}, false
	}
	s.m.freeHead = loadWord(head)
	s.m.freeLen--
	s.m.used++
	return Slot{ptr: unsafe.Pointer(head), size: s.m.slotSize}, true
}

// ReturnSlot pushes a slot back onto the free list. The slot must have been
// produced by this slab; a mismatch is a cross-slab ownership bug and
// panics, as does returning more slots than were taken.
func (s *Slab) ReturnSlot(slot Slot) {
	if slot.ptr == nil {
		panic("slab: return of zero Slot")
	}
	addr := uintptr(slot.ptr)
	if format.PageBase(addr) != s.m.pageBase {
		panic(fmt.Errorf("slab: slot %#x was not produced by slab at %#x", addr, s.m.pageBase))
	}
	if s.m.used == 0 {
		panic("slab: in-use count underflow")
	}
	storeWord(addr, s.m.freeHead)
	s.m.freeHead = addr
	s.m.freeLen++
	s.m.used--
}

// Destroy releases the slab's page. Destroying a slab with slots still in
// use would strand live objects and panics.
func (s *Slab) Destroy() {
	if s.m.used != 0 {
		panic(fmt.Errorf("slab: destroy with %d slots still in use", s.m.used))
	}
	frames.Delete(s.m.pageBase)
	s.m.freeHead = 0
	s.m.freeLen = 0
	s.src.Release(s.page)
}

// TotalSlots returns the number of slots the slab was partitioned into.
func (s *Slab) TotalSlots() int {
	return format.PageSize / int(s.m.slotSize)
}

// UsedSlots returns the number of slots currently taken.
func (s *Slab) UsedSlots() int {
	return s.m.used
}

// FreeSlots returns the current free-list length.
func (s *Slab) FreeSlots() int {
	return s.m.freeLen
}

// HasFree reports whether any slot is free.
func (s *Slab) HasFree() bool {
	return s.m.freeHead != 0
}

// SlotSize returns the fixed slot size of this slab.
func (s *Slab) SlotSize() int {
	return int(s.m.slotSize)
}

// Extension returns the slab's extension value.
func (s *Slab) Extension() Extension {
	return s.m.ext
}
