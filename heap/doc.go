// Package heap is the allocator's front door: it classifies raw
// (size, align) requests into slot size classes and routes them to
// whichever backend is active.
//
// A Heap has a two-phase lifecycle. It starts Bootstrapping, serving every
// request from the early heap under one spin lock, usable before any
// per-CPU infrastructure exists. A single Inject call installs one slot
// strategy per size class and flips the heap to Operational, one way,
// forever. Pointers handed out while bootstrapping remain freeable after
// the transition: the free path checks the early region's bounds before
// consulting slab metadata.
//
// Requests above the largest slot size bypass the slab layer entirely and
// are served as whole page runs.
package heap
