package cache

import (
	"fmt"

	"github.com/tinyvisor/kheap/cpu"
	"github.com/tinyvisor/kheap/heap/page"
	"github.com/tinyvisor/kheap/heap/slab"
	"github.com/tinyvisor/kheap/internal/format"
)

// SlotSource is the capability every strategy provides: allocate one slot,
// proving CPU pinning with the token. Returning false means the strategy
// has no slot to give; the caller surfaces that as allocation failure.
type SlotSource interface {
	Alloc(tok cpu.Token) (slab.Slot, bool)
}

// Set holds one slot source per size class, ready for heap injection.
type Set [format.NumClasses]SlotSource

// NewSingleSet builds a Set of single-lock caches, one per size class.
func NewSingleSet(src page.Source) (Set, bool) {
	var set Set
	for i := range set {
		c, ok := NewSingle(src, format.ClassSize(i))
		if !ok {
			return Set{}, false
		}
		set[i] = c
	}
	return set, true
}

// NewPerCPUSet builds a Set of per-CPU caches, one per size class, each
// populated for ncpus CPUs.
func NewPerCPUSet(src page.Source, ncpus int) (Set, bool) {
	var set Set
	for i := range set {
		c, ok := NewPerCPU(src, format.ClassSize(i), ncpus)
		if !ok {
			return Set{}, false
		}
		set[i] = c
	}
	return set, true
}

// NewLocklessSet builds a Set of lockless-fast-path caches, one per size
// class, each populated for ncpus CPUs.
func NewLocklessSet(src page.Source, ncpus int) (Set, bool) {
	var set Set
	for i := range set {
		c, ok := NewLockless(src, format.ClassSize(i), ncpus)
		if !ok {
			return Set{}, false
		}
		set[i] = c
	}
	return set, true
}

// ownerOf extracts the owning CPU from a per-CPU slab's extension. A slab
// reaching a per-CPU recycle path without an owner tag is a wiring bug.
func ownerOf(ext slab.Extension) cpu.ID {
	if ext.Kind != slab.ExtOwnerCPU {
		panic(fmt.Errorf("cache: slab extension %d carries no owner CPU", ext.Kind))
	}
	return ext.Owner
}
