// Package slab implements the slab: one page partitioned into fixed-size
// slots, with an intrusive free list threaded through the free slots' own
// memory and per-slab metadata kept out of line in a frame table keyed by
// page base address.
//
// A Slab performs no locking of its own. Whatever strategy embeds it owns
// the synchronization; see the cache package.
//
// Slot is the single-owner handle to one slot. While a slot is free, its
// first word holds the free-list link. Converting a slot into a unique box
// (EmplaceBox) or a shared box (EmplaceShared) transfers ownership into the
// returned handle; recovering the slot on release is the handle's job.
// Because slab memory lives outside the Go heap, values stored in slots
// must not contain Go pointers: the collector cannot see them.
package slab
