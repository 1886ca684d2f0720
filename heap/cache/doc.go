// Package cache implements the slot-allocation strategies layered over
// slabs. All three implement the same capability, allocating a slot given a
// CPU pin token, and differ only in how much contention they admit:
//
//   - Single: one slab behind one spin lock, machine-wide. The baseline;
//     every operation on a size class serializes.
//   - PerCPU: one locked slab per CPU. Allocation touches only the pinned
//     CPU's lock; a cross-CPU free takes the owner CPU's lock.
//   - Lockless: PerCPU plus an unsynchronized per-CPU free list consulted
//     before any lock. The common same-CPU allocate/free cycle touches no
//     lock at all; only cross-CPU migration pays for synchronization.
//
// Recycling runs through each slab's recorded recycle function, so the heap
// dispatcher frees slots without knowing which strategy owns them.
package cache
