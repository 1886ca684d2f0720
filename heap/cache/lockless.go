package cache

import (
	"fmt"

	"github.com/tinyvisor/kheap/cpu"
	"github.com/tinyvisor/kheap/heap/page"
	"github.com/tinyvisor/kheap/heap/slab"
)

// Lockless layers an unsynchronized per-CPU free list over a per-CPU locked
// slab. Same-CPU allocate/free cycles run entirely on the local list and
// never take a lock; the locked slab is the fallback when the list is empty
// and the landing place for slots freed from a foreign CPU.
//
// A slot is at all times on exactly one of: in use, a CPU's local free
// list, or its slab's free list.
type Lockless struct {
	locals []*Single
	free   []*freeList
}

// NewLockless builds a lockless-fast-path cache populated for every CPU in
// [0, ncpus) before first use.
func NewLockless(src page.Source, slotSize int, ncpus int) (*Lockless, bool) {
	if ncpus < 1 {
		panic(fmt.Errorf("cache: lockless cache needs at least one CPU, got %d", ncpus))
	}
	c := &Lockless{
		locals: make([]*Single, ncpus),
		free:   make([]*freeList, ncpus),
	}
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
		c.free[i] = &freeList{}
	}
	return c, true
}

// Alloc pops the pinned CPU's local free list first; the pin token's
// exclusivity is what makes the unsynchronized access safe. On an empty
// list it falls back to the CPU's locked slab.
func (c *Lockless) Alloc(tok cpu.Token) (slab.Slot, bool) {
	id := tok.CPU()
	if s, ok := c.freeFor(id).pop(); ok {
		return s, true
	}
	return c.local(id).Alloc(tok)
}

// recycleSlot takes the lock-free path when the freeing CPU owns the slot,
// and the owner CPU's locked slab otherwise. Cross-CPU migration always
// pays for synchronization; the same-CPU cycle never does.
func (c *Lockless) recycleSlot(s slab.Slot, ext slab.Extension, tok cpu.Token) {
	owner := ownerOf(ext)
	if owner == tok.CPU() {
		c.freeFor(owner).push(s)
		return
	}
	c.local(owner).Free(s)
}

// Local exposes one CPU's underlying locked cache, for accounting and
// tests.
func (c *Lockless) Local(id cpu.ID) *Single {
	return c.local(id)
}

// LocalFreeLen returns the length of one CPU's local free list. Callers
// must hold that CPU's pin token.
func (c *Lockless) LocalFreeLen(id cpu.ID) int {
	return c.freeFor(id).len()
}

func (c *Lockless) local(id cpu.ID) *Single {
	if int(id) < 0 || int(id) >= len(c.locals) {
		panic(fmt.Errorf("cache: CPU %d outside the initialized set of %d", id, len(c.locals)))
	}
	return c.locals[id]
}

func (c *Lockless) freeFor(id cpu.ID) *freeList {
	if int(id) < 0 || int(id) >= len(c.free) {
		panic(fmt.Errorf("cache: CPU %d outside the initialized set of %d", id, len(c.free)))
	}
	return c.free[id]
}
