package cache

import (
	"fmt"

	"github.com/tinyvisor/kheap/cpu"
	"github.com/tinyvisor/kheap/heap/page"
	"github.com/tinyvisor/kheap/heap/slab"
)

// PerCPU serves one size class from one locked slab per CPU, each slab
// tagged with its owning CPU. Contention on the allocation path is limited
// to contexts pinned to the same CPU; a cross-CPU free takes the owner
// CPU's lock, never the freeing CPU's.
type PerCPU struct {
	locals []*Single
}

// NewPerCPU builds a per-CPU cache populated for every CPU in [0, ncpus)
// before first use. Returns false when a page cannot be acquired for some
// CPU; the partially built set is torn down.
func NewPerCPU(src page.Source, slotSize int, ncpus int) (*PerCPU, bool) {
	if ncpus < 1 {
		panic(fmt.Errorf("cache: per-CPU cache needs at least one CPU, got %d", ncpus))
	}
	c := &PerCPU{locals: make([]*Single, ncpus)}
	for i := range c.locals {
		ext := slab.Extension{Kind: slab.ExtOwnerCPU, Owner: cpu.ID(i)}
		lc, ok := newOwned(src, slotSize, c.recycleSlot, ext)
		if !ok {
			for j := range i {
				c.locals[j].Destroy()
			}
			return nil, false
		}
		c.locals[i] = lc
	}
	return c, true
}

// Alloc serves from the pinned CPU's own locked slab.
func (c *PerCPU) Alloc(tok cpu.Token) (slab.Slot, bool) {
	return c.local(tok.CPU()).Alloc(tok)
}

// recycleSlot returns a slot to the slab of the CPU that owns it, which may
// mean taking a different CPU's lock than the freeing context runs on.
func (c *PerCPU) recycleSlot(s slab.Slot, ext slab.Extension, _ cpu.Token) {
	c.local(ownerOf(ext)).Free(s)
}

// Local exposes one CPU's underlying cache, for accounting and tests.
func (c *PerCPU) Local(id cpu.ID) *Single {
	return c.local(id)
}

func (c *PerCPU) local(id cpu.ID) *Single {
	if int(id) < 0 || int(id) >= len(c.locals) {
		panic(fmt.Errorf("cache: CPU %d outside the initialized set of %d", id, len(c.locals)))
	}
	return c.locals[id]
}
