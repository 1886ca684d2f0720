package cache

import (
	"github.com/tinyvisor/kheap/cpu"
	"github.com/tinyvisor/kheap/heap/page"
	"github.com/tinyvisor/kheap/heap/slab"
	"github.com/tinyvisor/kheap/internal/spin"
)

// Single serves one size class from one slab behind one spin lock. Used
// standalone it is the machine-wide baseline strategy; the per-CPU
// strategies embed one Single per CPU as their locked slow path.
type Single struct {
	mu   spin.Lock
	slab *slab.Slab
}

// NewSingle builds a standalone single-lock cache whose slots recycle back
// to itself. Returns false when no page is available.
func NewSingle(src page.Source, slotSize int) (*Single, bool) {
	c := &Single{}
	sl, ok := slab.New(src, slotSize, c.recycleSlot, slab.Extension{})
	if !ok {
		return nil, false
	}
	c.slab = sl
	return c, true
}

// newOwned builds a locked slab cache whose recycle routing belongs to an
// embedding strategy: the per-CPU strategies install their own recycle
// function and an owner-CPU extension.
func newOwned(src page.Source, slotSize int, recycle slab.RecycleFunc, ext slab.Extension) (*Single, bool) {
	c := &Single{}
	sl, ok := slab.New(src, slotSize, recycle, ext)
	if !ok {
		return nil, false
	}
	c.slab = sl
	return c, true
}

// Alloc takes a slot under the lock. The token is unused here, the lock is
// the synchronization, but the signature is the shared strategy contract.
func (c *Single) Alloc(_ cpu.Token) (slab.Slot, bool) {
	c.mu.Lock()
	s, ok := c.slab.TakeSlot()
	c.mu.Unlock()
	return s, ok
}

// Free returns a slot to the slab under the lock.
func (c *Single) Free(s slab.Slot) {
	c.mu.Lock()
	c.slab.ReturnSlot(s)
	c.mu.Unlock()
}

func (c *Single) recycleSlot(s slab.Slot, _ slab.Extension, _ cpu.Token) {
	c.Free(s)
}

// LockAcquisitions returns the number of times the cache's lock has been
// taken.
func (c *Single) LockAcquisitions() uint64 {
	return c.mu.Acquisitions()
}

// Slab exposes the underlying slab, for accounting and tests.
func (c *Single) Slab() *slab.Slab {
	return c.slab
}

// Destroy tears the cache down. The slab's own precondition applies: no
// slot may still be in use.
func (c *Single) Destroy() {
	c.slab.Destroy()
}
